package pipeline

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// RunRecord is the metadata of one unit execution.
type RunRecord struct {
	ID         string         `json:"id"`
	Unit       string         `json:"unit"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Elapsed    time.Duration  `json:"elapsed"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SourceCheck is the last availability probe of a metric's remote file.
type SourceCheck struct {
	Metric    string  `json:"metric"`
	URL       string  `json:"url"`
	Status    int     `json:"status"`
	Error     *string `json:"error,omitempty"`
	CheckedAt int64   `json:"checked_at"`
}

// RunStore persists run history and source checks in SQLite.
type RunStore struct {
	db *sql.DB
}

// OpenRunStore opens (or creates) the SQLite database at path and ensures
// its tables exist.
func OpenRunStore(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	const ddl = `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id          TEXT PRIMARY KEY,
		unit        TEXT NOT NULL,
		status      TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		elapsed_ms  INTEGER NOT NULL,
		error       TEXT,
		metadata    TEXT
	);
	CREATE INDEX IF NOT EXISTS pipeline_runs_unit ON pipeline_runs (unit, started_at);
	CREATE TABLE IF NOT EXISTS source_checks (
		metric     TEXT PRIMARY KEY,
		url        TEXT NOT NULL,
		status     INTEGER NOT NULL,
		error      TEXT,
		checked_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create run store tables: %w", err)
	}
	return &RunStore{db: db}, nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Record inserts a finished run.
func (s *RunStore) Record(r RunRecord) error {
	var meta []byte
	if len(r.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(r.Metadata); err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
	}
	var errText *string
	if r.Error != "" {
		errText = &r.Error
	}
	_, err := s.db.Exec(`INSERT INTO pipeline_runs
		(id, unit, status, started_at, finished_at, elapsed_ms, error, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Unit, r.Status, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.Elapsed.Milliseconds(), errText, string(meta))
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

const runColumns = `id, unit, status, started_at, finished_at, elapsed_ms, error, metadata`

func scanRun(sc interface{ Scan(...any) error }) (RunRecord, error) {
	var (
		r                 RunRecord
		started, finished int64
		elapsedMS         int64
		errText, metaText sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.Unit, &r.Status, &started, &finished, &elapsedMS, &errText, &metaText); err != nil {
		return r, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	r.FinishedAt = time.UnixMilli(finished).UTC()
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	r.Error = errText.String
	if metaText.String != "" {
		if err := json.Unmarshal([]byte(metaText.String), &r.Metadata); err != nil {
			return r, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
	}
	return r, nil
}

// LatestRun returns the most recent run of unit, or nil if it never ran.
func (s *RunStore) LatestRun(unit string) (*RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM pipeline_runs
		WHERE unit = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, unit)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run of %s: %w", unit, err)
	}
	return &r, nil
}

// ListRuns returns up to limit runs, newest first. An empty unit lists all.
func (s *RunStore) ListRuns(unit string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM pipeline_runs
		WHERE (? = '' OR unit = ?) ORDER BY started_at DESC, rowid DESC LIMIT ?`, unit, unit, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecordCheck upserts the latest probe result for metric.
func (s *RunStore) RecordCheck(metric, url string, status int, checkErr string) error {
	var errPtr *string
	if checkErr != "" {
		errPtr = &checkErr
	}
	_, err := s.db.Exec(`INSERT INTO source_checks (metric, url, status, error, checked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (metric) DO UPDATE SET
			url = excluded.url, status = excluded.status,
			error = excluded.error, checked_at = excluded.checked_at`,
		metric, url, status, errPtr, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record check for %s: %w", metric, err)
	}
	return nil
}

// ListChecks returns all source checks ordered by metric.
func (s *RunStore) ListChecks() ([]SourceCheck, error) {
	rows, err := s.db.Query(`SELECT metric, url, status, error, checked_at
		FROM source_checks ORDER BY metric`)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	checks := []SourceCheck{}
	for rows.Next() {
		var c SourceCheck
		if err := rows.Scan(&c.Metric, &c.URL, &c.Status, &c.Error, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}
