// Package storage persists run history to SQLite so past simulations can be
// listed and inspected after the process exits.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
)

type Store struct {
	db *sql.DB
}

// RunRecord is one simulation run.
type RunRecord struct {
	ID         string
	ConfigJSON string
	MaxSteps   int
	Status     string
}

// RunWithMeta adds the DB-maintained columns.
type RunWithMeta struct {
	RunRecord
	RowID      int64
	StepsDone  int
	CreatedAt  string
	FinishedAt string
}

// TickRow is one archived tick of a run.
type TickRow struct {
	RunID      string
	Tick       int
	Price      float64
	Volume     float64
	Swaps      int
	Errors     int
	RecordJSON string
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    config_json TEXT NOT NULL DEFAULT '',
    max_steps INTEGER NOT NULL,
    status TEXT NOT NULL,
    steps_done INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS ticks (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    tick INTEGER NOT NULL,
    price REAL NOT NULL,
    volume REAL NOT NULL,
    swaps INTEGER NOT NULL,
    errors INTEGER NOT NULL,
    record_json TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(run_id, tick)
);

CREATE INDEX IF NOT EXISTS idx_ticks_run ON ticks(run_id, tick);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, run RunRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, config_json, max_steps, status)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    config_json=excluded.config_json,
    max_steps=excluded.max_steps,
    status=excluded.status
`, run.ID, run.ConfigJSON, run.MaxSteps, run.Status)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) AppendTick(ctx context.Context, row TickRow) error {
	if strings.TrimSpace(row.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	if row.Tick < 0 {
		return fmt.Errorf("tick must not be negative")
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO ticks (run_id, tick, price, volume, swaps, errors, record_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, tick) DO NOTHING
`, row.RunID, row.Tick, row.Price, row.Volume, row.Swaps, row.Errors, row.RecordJSON)
	if err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
UPDATE runs SET steps_done = steps_done + 1 WHERE id = ?
`, row.RunID)
	if err != nil {
		return fmt.Errorf("bump steps done: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	if strings.TrimSpace(runID) == "" || strings.TrimSpace(status) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE runs
SET status = ?, finished_at = CURRENT_TIMESTAMP
WHERE id = ?
`, status, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ListRuns pages runs newest first. A zero cursor starts from the top.
func (s *Store) ListRuns(ctx context.Context, cursor int64, limit int) ([]RunWithMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT rowid, id, config_json, max_steps, status, steps_done, created_at, COALESCE(finished_at, '')
FROM runs
WHERE (? = 0 OR rowid < ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunWithMeta
	for rows.Next() {
		var rec RunWithMeta
		if err := rows.Scan(&rec.RowID, &rec.ID, &rec.ConfigJSON, &rec.MaxSteps, &rec.Status, &rec.StepsDone, &rec.CreatedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*RunWithMeta, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT rowid, id, config_json, max_steps, status, steps_done, created_at, COALESCE(finished_at, '')
FROM runs
WHERE id = ?
LIMIT 1
`, runID)

	var rec RunWithMeta
	if err := row.Scan(&rec.RowID, &rec.ID, &rec.ConfigJSON, &rec.MaxSteps, &rec.Status, &rec.StepsDone, &rec.CreatedAt, &rec.FinishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListTicks(ctx context.Context, runID string) ([]TickRow, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, tick, price, volume, swaps, errors, record_json
FROM ticks
WHERE run_id = ?
ORDER BY tick ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list ticks: %w", err)
	}
	defer rows.Close()

	var ticks []TickRow
	for rows.Next() {
		var rec TickRow
		if err := rows.Scan(&rec.RunID, &rec.Tick, &rec.Price, &rec.Volume, &rec.Swaps, &rec.Errors, &rec.RecordJSON); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		ticks = append(ticks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ticks rows: %w", err)
	}
	return ticks, nil
}

// MarshalConfig serializes an arbitrary config for the runs table.
func MarshalConfig(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
