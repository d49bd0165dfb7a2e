// Package manifest handles jitcalc.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultBenchExpression is the fixed expression the built-in `test`
// benchmark evaluates.
const DefaultBenchExpression = "2 * (3 + 1 / 2) - 6 + 2 * (3 + 1 / 2) - 6 + 2 * (3 + 1 / 2) - 6 + 2 * (3 + 1 / 2) - 6 + 2 * (3 + 1 / 2) - 6"

// Manifest represents a jitcalc.toml configuration.
type Manifest struct {
	REPL   REPL   `toml:"repl"`
	Eval   Eval   `toml:"eval"`
	Bench  Bench  `toml:"bench"`
	Server Server `toml:"server"`

	// Dir is the directory containing the jitcalc.toml file (set at
	// load time; empty for the built-in defaults).
	Dir string `toml:"-"`
}

// REPL configures the interactive shell.
type REPL struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"` // path to the history database, "" disables
}

// Eval configures expression evaluation.
type Eval struct {
	Engine   string `toml:"engine"`    // tree, vm, jit or "" for the default
	CacheDir string `toml:"cache-dir"` // compiled program cache, "" disables
}

// Bench configures the built-in `test` benchmark.
type Bench struct {
	Iterations int    `toml:"iterations"`
	Expression string `toml:"expression"`
}

// Server configures the evaluation service.
type Server struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration used when no jitcalc.toml
// is found.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = "$ "
	}
	if m.Bench.Iterations == 0 {
		m.Bench.Iterations = 1000000
	}
	if m.Bench.Expression == "" {
		m.Bench.Expression = DefaultBenchExpression
	}
	if m.Server.Addr == "" {
		m.Server.Addr = ":4567"
	}
}

// Load parses a jitcalc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "jitcalc.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()

	return &m, nil
}

// FindAndLoad walks up from startDir to find a jitcalc.toml file, then
// loads and returns the manifest. Returns the built-in defaults if no
// manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "jitcalc.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}
