// Package history records run summaries in SQLite. It is write-only
// telemetry for humans: the scheduler never reads it, so runs stay
// independent of each other.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/buildrunner/internal/runner"
	"github.com/aristath/buildrunner/internal/scheduler"
)

// RunRecord is one stored run.
type RunRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Verdict   string // "success", "success with warnings" or "failure"
	Failed    int
	Warned    int
	Blocked   int
	Total     int
}

// Store persists run summaries.
type Store interface {
	RecordRun(ctx context.Context, startedAt time.Time, duration time.Duration, verdict string, results []runner.TaskResult) (string, error)
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates a SQLite-backed store at the given path, creating parent
// directories if needed. Enables WAL mode and a busy timeout.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// OpenMemory creates an in-memory store for testing.
func OpenMemory(ctx context.Context) (*SQLiteStore, error) {
	return open(ctx, "file::memory:?mode=memory&cache=shared")
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Required for modernc.org/sqlite: the connection string cannot
	// enable foreign keys.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// RecordRun stores one run summary plus its per-task outcomes and
// returns the generated run ID.
func (s *SQLiteStore) RecordRun(ctx context.Context, startedAt time.Time, duration time.Duration, verdict string, results []runner.TaskResult) (string, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID := uuid.NewString()

	var failed, warned, blocked int
	for _, r := range results {
		switch r.Status {
		case scheduler.StatusFailure:
			failed++
		case scheduler.StatusSuccessWithWarning:
			warned++
		case scheduler.StatusBlocked:
			blocked++
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, verdict, failed, warned, blocked, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, startedAt.UTC(), duration.Milliseconds(), verdict, failed, warned, blocked, len(results))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, r := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_tasks (run_id, name, status, duration_ms)
			VALUES (?, ?, ?, ?)
		`, runID, r.Name, r.Status.String(), r.Duration.Milliseconds())
		if err != nil {
			return "", fmt.Errorf("failed to insert task outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, verdict, failed, warned, blocked, total
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &durationMS, &rec.Verdict,
			&rec.Failed, &rec.Warned, &rec.Blocked, &rec.Total); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
