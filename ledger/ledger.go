// Package ledger keeps a SQLite history of training runs.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    dataset TEXT NOT NULL,
    output_dir TEXT NOT NULL,
    target TEXT NOT NULL,
    samples INTEGER NOT NULL,
    features INTEGER NOT NULL,
    classes INTEGER NOT NULL,
    accuracy REAL NOT NULL,
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// Run is one recorded training run.
type Run struct {
	ID         string
	Dataset    string
	OutputDir  string
	Target     string
	Samples    int
	Features   int
	Classes    int
	Accuracy   float64
	StartedAt  time.Time
	DurationMs int64
}

// Ledger is a run history stored in a SQLite file.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create ledger directory %s", dir)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger %s", path)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable WAL")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create ledger schema")
	}
	return &Ledger{db: db, path: path}, nil
}

// Path returns the ledger file.
func (l *Ledger) Path() string { return l.path }

// Record stores run. IDs must be unique.
func (l *Ledger) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.NewValidationError("id", "is required", run.ID)
	}
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO runs (id, dataset, output_dir, target, samples, features, classes, accuracy, started_at, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.OutputDir, run.Target,
		run.Samples, run.Features, run.Classes, run.Accuracy,
		run.StartedAt.UnixNano(), run.DurationMs,
	)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", run.ID)
	}
	return nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all runs.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
        SELECT id, dataset, output_dir, target, samples, features, classes, accuracy, started_at, duration_ms
        FROM runs
        ORDER BY started_at DESC, rowid DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started int64
		)
		if err := rows.Scan(&r.ID, &r.Dataset, &r.OutputDir, &r.Target,
			&r.Samples, &r.Features, &r.Classes, &r.Accuracy, &started, &r.DurationMs); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		r.StartedAt = time.Unix(0, started)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return runs, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
