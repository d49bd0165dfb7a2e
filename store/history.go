package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// History is the SQLite store for past evaluations and benchmark runs.
type History struct {
	db *sql.DB
	mu sync.Mutex
}

// Evaluation is one recorded REPL or server evaluation.
type Evaluation struct {
	ID     int64
	Expr   string
	Engine string
	Result float64
	Error  string
}

// OpenHistory opens (creating if needed) the history database.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening history database: %w", err)
	}

	// Busy timeout for concurrent access (REPL plus server).
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: setting busy timeout: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			expr TEXT NOT NULL,
			engine TEXT NOT NULL,
			result REAL,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS benchmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			expr TEXT NOT NULL,
			engine TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			sum REAL NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: creating tables: %w", err)
		}
	}

	return &History{db: db}, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// RecordEval persists one evaluation. A nil evalErr records a success.
func (h *History) RecordEval(expr, engine string, result float64, evalErr error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := ""
	if evalErr != nil {
		msg = evalErr.Error()
	}

	_, err := h.db.Exec(
		"INSERT INTO evaluations (expr, engine, result, error) VALUES (?, ?, ?, ?)",
		expr, engine, result, msg,
	)
	if err != nil {
		return fmt.Errorf("store: recording evaluation: %w", err)
	}
	return nil
}

// RecordBenchmark persists one benchmark run for one engine.
func (h *History) RecordBenchmark(expr, engine string, iterations int, sum float64, elapsed time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.db.Exec(
		"INSERT INTO benchmarks (expr, engine, iterations, sum, elapsed_ms) VALUES (?, ?, ?, ?, ?)",
		expr, engine, iterations, sum, elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("store: recording benchmark: %w", err)
	}
	return nil
}

// Recent returns the most recent evaluations, newest first.
func (h *History) Recent(limit int) ([]Evaluation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.db.Query(
		"SELECT id, expr, engine, result, error FROM evaluations ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: querying history: %w", err)
	}
	defer rows.Close()

	var evals []Evaluation
	for rows.Next() {
		var e Evaluation
		if err := rows.Scan(&e.ID, &e.Expr, &e.Engine, &e.Result, &e.Error); err != nil {
			return nil, fmt.Errorf("store: scanning history row: %w", err)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
