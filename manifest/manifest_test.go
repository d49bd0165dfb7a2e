package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	m := Default()

	if m.REPL.Prompt != "$ " {
		t.Errorf("prompt = %q, want %q", m.REPL.Prompt, "$ ")
	}
	if m.Bench.Iterations != 1000000 {
		t.Errorf("iterations = %d, want 1000000", m.Bench.Iterations)
	}
	if m.Bench.Expression != DefaultBenchExpression {
		t.Errorf("unexpected bench expression %q", m.Bench.Expression)
	}
	if m.Server.Addr != ":4567" {
		t.Errorf("addr = %q, want :4567", m.Server.Addr)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `
[repl]
prompt = ">> "
history = "/tmp/history.db"

[eval]
engine = "vm"
cache-dir = "/tmp/cache"

[bench]
iterations = 1000

[server]
addr = ":9999"
`
	if err := os.WriteFile(filepath.Join(dir, "jitcalc.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if m.REPL.Prompt != ">> " {
		t.Errorf("prompt = %q", m.REPL.Prompt)
	}
	if m.Eval.Engine != "vm" {
		t.Errorf("engine = %q", m.Eval.Engine)
	}
	if m.Bench.Iterations != 1000 {
		t.Errorf("iterations = %d", m.Bench.Iterations)
	}
	if m.Server.Addr != ":9999" {
		t.Errorf("addr = %q", m.Server.Addr)
	}
	// Unset fields fall back to defaults.
	if m.Bench.Expression != DefaultBenchExpression {
		t.Errorf("bench expression not defaulted: %q", m.Bench.Expression)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing jitcalc.toml")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "jitcalc.toml"), []byte("[repl]\nprompt = \"# \"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if m.REPL.Prompt != "# " {
		t.Errorf("prompt = %q, want %q", m.REPL.Prompt, "# ")
	}
}

func TestFindAndLoadFallsBackToDefaults(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if m.REPL.Prompt != "$ " {
		t.Errorf("prompt = %q, want default", m.REPL.Prompt)
	}
}
