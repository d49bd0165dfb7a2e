package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryRecordAndRecent(t *testing.T) {
	h := openTestHistory(t)

	if err := h.RecordEval("1 + 2", "vm", 3, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.RecordEval("2 * 3", "jit", 6, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.RecordEval("(1 + 2", "vm", 0, errors.New("unmatched parentheses")); err != nil {
		t.Fatal(err)
	}

	evals, err := h.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 3 {
		t.Fatalf("got %d rows, want 3", len(evals))
	}

	// Newest first.
	if evals[0].Expr != "(1 + 2" || evals[0].Error != "unmatched parentheses" {
		t.Errorf("newest row = %+v", evals[0])
	}
	if evals[2].Expr != "1 + 2" || evals[2].Result != 3 || evals[2].Error != "" {
		t.Errorf("oldest row = %+v", evals[2])
	}
}

func TestHistoryRecentLimit(t *testing.T) {
	h := openTestHistory(t)

	for i := 0; i < 5; i++ {
		if err := h.RecordEval("1", "tree", 1, nil); err != nil {
			t.Fatal(err)
		}
	}

	evals, err := h.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 2 {
		t.Errorf("got %d rows, want 2", len(evals))
	}
}

func TestHistoryRecordBenchmark(t *testing.T) {
	h := openTestHistory(t)

	err := h.RecordBenchmark("2 + 2", "jit", 1000000, 4000000, 42*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	var count int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM benchmarks").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("benchmark rows = %d, want 1", count)
	}
}
