package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/jitcalc/compiler"
	"github.com/chazu/jitcalc/pkg/bytecode"
)

func compileExpr(t *testing.T, input string) *bytecode.Program {
	t.Helper()
	n, err := compiler.Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return bytecode.Compile(n)
}

func TestCacheRoundTrip(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	const expr = "2 * (3 + 1/2) - 6"
	p := compileExpr(t, expr)

	if _, ok := cache.Load(expr); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	if err := cache.Store(expr, p); err != nil {
		t.Fatal(err)
	}

	got, ok := cache.Load(expr)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got.Code) != string(p.Code) || got.StackSize != p.StackSize {
		t.Errorf("cached program differs: %+v vs %+v", got, p)
	}
}

func TestCacheKeyIsContentAddressed(t *testing.T) {
	if Key("1+2") == Key("1+3") {
		t.Error("different expressions share a key")
	}
	if Key("1+2") != Key("1+2") {
		t.Error("key is not deterministic")
	}
	if len(Key("x")) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(Key("x")))
	}
}

// Marshaling is canonical: the same program always produces identical
// bytes.
func TestMarshalDeterministic(t *testing.T) {
	p := compileExpr(t, "2 ^ 3 ^ 2")

	b1, err := MarshalProgram(p)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := MarshalProgram(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(b1) != string(b2) {
		t.Error("CBOR encoding is not deterministic")
	}
}

func TestCacheDropsCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	if err != nil {
		t.Fatal(err)
	}

	const expr = "1 + 1"
	path := filepath.Join(dir, Key(expr)+".cbor")
	if err := os.WriteFile(path, []byte("not cbor"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := cache.Load(expr); ok {
		t.Fatal("corrupt entry produced a hit")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry was not removed")
	}
}

// A cached entry that decodes but fails validation must also miss: the
// VM and JIT only ever see well-formed programs.
func TestCacheRejectsMalformedProgram(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	if err != nil {
		t.Fatal(err)
	}

	bad := &bytecode.Program{Code: []byte{0x7F}, StackSize: 8}
	data, err := MarshalProgram(bad)
	if err != nil {
		t.Fatal(err)
	}
	const expr = "9 * 9"
	if err := os.WriteFile(filepath.Join(dir, Key(expr)+".cbor"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := cache.Load(expr); ok {
		t.Fatal("malformed program produced a hit")
	}
}
