// Package store is the SQLite record store for organizations, events
// and the event-scoped records the planner reads and mutates: tasks,
// budget items, participants, documents and planning sessions.
//
// Batch operations run inside a single transaction so a tool call
// either lands completely or not at all.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store manages planner records in SQLite. All public methods are safe
// for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, logger: logger.With("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		address    TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id                     TEXT PRIMARY KEY,
		organization_id        TEXT NOT NULL REFERENCES organizations(id),
		title                  TEXT NOT NULL,
		event_type             TEXT NOT NULL DEFAULT '',
		start_date             TEXT NOT NULL DEFAULT '',
		end_date               TEXT NOT NULL DEFAULT '',
		location               TEXT NOT NULL DEFAULT '',
		status                 TEXT NOT NULL DEFAULT 'draft',
		budget_estimated_total REAL NOT NULL DEFAULT 0,
		budget_actual_total    REAL NOT NULL DEFAULT 0,
		risk_level             TEXT NOT NULL DEFAULT '',
		requires_approval      INTEGER NOT NULL DEFAULT 0,
		created_at             TEXT NOT NULL,
		updated_at             TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_org ON events(organization_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		event_id    TEXT NOT NULL REFERENCES events(id),
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date    TEXT NOT NULL DEFAULT '',
		assignee    TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'todo',
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_event ON tasks(event_id);

	CREATE TABLE IF NOT EXISTS budget_items (
		id          TEXT PRIMARY KEY,
		event_id    TEXT NOT NULL REFERENCES events(id),
		category    TEXT NOT NULL DEFAULT 'General',
		description TEXT NOT NULL,
		qty         REAL NOT NULL DEFAULT 1,
		unit_cost   REAL NOT NULL DEFAULT 0,
		notes       TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_budget_event ON budget_items(event_id);

	CREATE TABLE IF NOT EXISTS participants (
		id                    TEXT PRIMARY KEY,
		event_id              TEXT NOT NULL REFERENCES events(id),
		name                  TEXT NOT NULL,
		role                  TEXT NOT NULL DEFAULT 'guest',
		status                TEXT NOT NULL DEFAULT 'invited',
		is_minor              INTEGER NOT NULL DEFAULT 0,
		needs_transport       INTEGER NOT NULL DEFAULT 0,
		permission_received   INTEGER NOT NULL DEFAULT 0,
		medical_form_received INTEGER NOT NULL DEFAULT 0,
		created_at            TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_participants_event ON participants(event_id);

	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		event_id   TEXT NOT NULL REFERENCES events(id),
		title      TEXT NOT NULL,
		doc_type   TEXT NOT NULL DEFAULT 'draft',
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_event ON documents(event_id);

	CREATE TABLE IF NOT EXISTS planning_sessions (
		id                TEXT PRIMARY KEY,
		event_id          TEXT NOT NULL UNIQUE REFERENCES events(id),
		plan              TEXT NOT NULL,
		missing_items     TEXT NOT NULL,
		conversation      TEXT NOT NULL,
		last_generated_at TEXT NOT NULL DEFAULT '',
		summary           TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
