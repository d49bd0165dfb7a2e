// Package store provides the persistence layers: a content-addressed
// cache of compiled bytecode programs and the SQLite-backed evaluation
// history.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"github.com/chazu/jitcalc/pkg/bytecode"
)

var log = commonlog.GetLogger("jitcalc.store")

// cborEncMode uses canonical mode for deterministic encoding, so the
// same program always produces the same cache file bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a bytecode program to CBOR bytes.
func MarshalProgram(p *bytecode.Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a bytecode program from CBOR bytes and
// validates it, so a corrupt cache entry cannot reach the VM or JIT.
func UnmarshalProgram(data []byte) (*bytecode.Program, error) {
	var p bytecode.Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("store: unmarshal program: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("store: invalid cached program: %w", err)
	}
	return &p, nil
}

// Key returns the content address of an expression: the hex SHA-256 of
// its text.
func Key(expr string) string {
	sum := sha256.Sum256([]byte(expr))
	return hex.EncodeToString(sum[:])
}

// Cache is a directory of compiled programs keyed by expression hash.
type Cache struct {
	dir string
}

// NewCache opens (creating if needed) a program cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(expr string) string {
	return filepath.Join(c.dir, Key(expr)+".cbor")
}

// Load returns the cached program for an expression, or false if there
// is none. A corrupt entry is treated as a miss and removed.
func (c *Cache) Load(expr string) (*bytecode.Program, bool) {
	data, err := os.ReadFile(c.path(expr))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warningf("reading cache entry: %v", err)
		}
		return nil, false
	}

	p, err := UnmarshalProgram(data)
	if err != nil {
		log.Warningf("dropping corrupt cache entry for %q: %v", expr, err)
		os.Remove(c.path(expr))
		return nil, false
	}

	return p, true
}

// Store writes a compiled program into the cache.
func (c *Cache) Store(expr string, p *bytecode.Program) error {
	data, err := MarshalProgram(p)
	if err != nil {
		return fmt.Errorf("store: marshal program: %w", err)
	}
	if err := os.WriteFile(c.path(expr), data, 0o644); err != nil {
		return fmt.Errorf("store: writing cache entry: %w", err)
	}
	return nil
}
