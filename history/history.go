// Package history keeps a log of project progress in a SQLite database.
//
// A row is written only when the project's phase or overall progress differs
// from the most recent row, so heartbeat publishes of an idle project do not
// grow the log.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/amonks/swarmboard/status"
	_ "modernc.org/sqlite"
)

// Entry is one recorded change.
type Entry struct {
	ID              int64     `json:"id" yaml:"id"`
	RecordedAt      time.Time `json:"recorded_at" yaml:"recorded_at"`
	Project         string    `json:"project" yaml:"project"`
	Phase           int       `json:"phase" yaml:"phase"`
	PhaseStatus     string    `json:"phase_status" yaml:"phase_status"`
	OverallProgress int       `json:"overall_progress" yaml:"overall_progress"`
	Source          string    `json:"source" yaml:"source"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at TEXT NOT NULL,
		project TEXT NOT NULL,
		phase INTEGER NOT NULL,
		phase_status TEXT NOT NULL,
		overall_progress INTEGER NOT NULL,
		source TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_project ON snapshots(project, id)`,
}

// Store is an open history database.
type Store struct {
	db *sql.DB

	// mu serializes Record so the latest-entry check and the insert are atomic.
	mu sync.Mutex
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}
	for _, statement := range schema {
		if _, err := db.Exec(statement); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create history schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends snapshot to the log unless it matches the project's latest
// entry. It reports whether a row was written.
func (s *Store) Record(ctx context.Context, snapshot status.Snapshot, source string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("record history: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var phase, progress int
	var phaseStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT phase, phase_status, overall_progress FROM snapshots WHERE project = ? ORDER BY id DESC LIMIT 1`,
		snapshot.ProjectName,
	).Scan(&phase, &phaseStatus, &progress)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("record history: %w", err)
	case phase == snapshot.Phase.Number && phaseStatus == string(snapshot.Phase.Status) && progress == snapshot.OverallProgress:
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (recorded_at, project, phase, phase_status, overall_progress, source) VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
		snapshot.ProjectName,
		snapshot.Phase.Number,
		string(snapshot.Phase.Status),
		snapshot.OverallProgress,
		source,
	)
	if err != nil {
		return false, fmt.Errorf("record history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("record history: %w", err)
	}
	return true, nil
}

// List returns up to limit entries for project, newest first. A limit of
// zero or less returns every entry.
func (s *Store) List(ctx context.Context, project string, limit int) ([]Entry, error) {
	query := `SELECT id, recorded_at, project, phase, phase_status, overall_progress, source
		FROM snapshots WHERE project = ? ORDER BY id DESC`
	args := []any{project}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var recordedAt string
		if err := rows.Scan(&entry.ID, &recordedAt, &entry.Project, &entry.Phase, &entry.PhaseStatus, &entry.OverallProgress, &entry.Source); err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		entry.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("list history: parse time %q: %w", recordedAt, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}
