// Package usage is the usage ledger that gates remote model calls. It
// keeps one counter row per organization per UTC day (tokens and
// requests) and an audit log with one row per remote call. The cap
// check and the increment are separate statements, so concurrent turns
// may overrun a cap slightly; the caps are soft limits.
package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/llm"
)

// ErrLimitExceeded is the sentinel wrapped by every *LimitError.
var ErrLimitExceeded = errors.New("usage limit exceeded")

// Limit scopes.
const (
	ScopeEventMessages = "event_messages"
	ScopeDailyTokens   = "daily_tokens"
)

// LimitError reports which cap rejected a turn.
type LimitError struct {
	Scope   string
	Limit   int64
	Current int64
}

func (e *LimitError) Error() string {
	switch e.Scope {
	case ScopeEventMessages:
		return fmt.Sprintf("this event reached its limit of %d planning messages", e.Limit)
	case ScopeDailyTokens:
		return fmt.Sprintf("your organization reached today's planning usage limit (%d of %d tokens)", e.Current, e.Limit)
	}
	return fmt.Sprintf("%s limit reached (%d of %d)", e.Scope, e.Current, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// Limits are the configured caps. Zero disables a cap.
type Limits struct {
	MaxMessagesPerEvent int
	DailyTokenCap       int64
}

// Request log statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
)

// DailyUsage is one organization's counter row for a UTC day.
type DailyUsage struct {
	OrganizationID string    `json:"organization_id"`
	Day            string    `json:"day"`
	Tokens         int64     `json:"tokens"`
	Requests       int64     `json:"requests"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RequestLog is the audit record of one remote call. It is written
// before the call and completed exactly once after it.
type RequestLog struct {
	ID             string          `json:"id"`
	EventID        string          `json:"event_id"`
	OrganizationID string          `json:"organization_id"`
	Model          string          `json:"model"`
	Input          json.RawMessage `json:"input,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
	InputTokens    int             `json:"input_tokens"`
	OutputTokens   int             `json:"output_tokens"`
	TotalTokens    int             `json:"total_tokens"`
	LatencyMS      int64           `json:"latency_ms"`
	Status         string          `json:"status"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    time.Time       `json:"completed_at,omitzero"`
}

// Store is the SQLite-backed ledger. All public methods are safe for
// concurrent use (SQLite serializes writes).
type Store struct {
	db     *sql.DB
	limits Limits
	now    func() time.Time
	logger *slog.Logger
}

// NewStore opens the ledger at dbPath, creating the schema on first use.
func NewStore(dbPath string, limits Limits, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	s := &Store{db: db, limits: limits, now: time.Now, logger: logger.With("component", "usage")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Limits returns the configured caps.
func (s *Store) Limits() Limits { return s.limits }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_daily (
		organization_id TEXT NOT NULL,
		day             TEXT NOT NULL,
		tokens          INTEGER NOT NULL DEFAULT 0,
		requests        INTEGER NOT NULL DEFAULT 0,
		updated_at      TEXT NOT NULL,
		PRIMARY KEY (organization_id, day)
	);

	CREATE TABLE IF NOT EXISTS request_log (
		id              TEXT PRIMARY KEY,
		event_id        TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		model           TEXT NOT NULL,
		input           TEXT,
		response        TEXT,
		input_tokens    INTEGER NOT NULL DEFAULT 0,
		output_tokens   INTEGER NOT NULL DEFAULT 0,
		total_tokens    INTEGER NOT NULL DEFAULT 0,
		latency_ms      INTEGER NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		error           TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		completed_at    TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_request_log_event ON request_log(event_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) today() string {
	return s.now().UTC().Format(time.DateOnly)
}

// CheckAndReserve decides whether another remote-backed turn may run.
// userTurns is the number of user turns already in the event's
// conversation, not counting the incoming one. Today's organization
// row is created if missing. Failures are *LimitError values.
func (s *Store) CheckAndReserve(ctx context.Context, organizationID string, userTurns int) error {
	if limit := s.limits.MaxMessagesPerEvent; limit > 0 && userTurns >= limit {
		return &LimitError{Scope: ScopeEventMessages, Limit: int64(limit), Current: int64(userTurns)}
	}

	day, err := s.ensureDay(ctx, organizationID)
	if err != nil {
		return err
	}
	if limit := s.limits.DailyTokenCap; limit > 0 && day.Tokens >= limit {
		return &LimitError{Scope: ScopeDailyTokens, Limit: limit, Current: day.Tokens}
	}
	return nil
}

func (s *Store) ensureDay(ctx context.Context, organizationID string) (DailyUsage, error) {
	day := s.today()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_daily (organization_id, day, tokens, requests, updated_at)
		 VALUES (?, ?, 0, 0, ?)
		 ON CONFLICT(organization_id, day) DO NOTHING`,
		organizationID, day, s.now().UTC().Format(time.RFC3339),
	); err != nil {
		return DailyUsage{}, fmt.Errorf("create daily usage row: %w", err)
	}
	return s.Today(ctx, organizationID)
}

// Today returns the organization's counter row for the current UTC
// day. A missing row reads as zero.
func (s *Store) Today(ctx context.Context, organizationID string) (DailyUsage, error) {
	d := DailyUsage{OrganizationID: organizationID, Day: s.today()}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT tokens, requests, updated_at FROM usage_daily WHERE organization_id = ? AND day = ?`,
		organizationID, d.Day,
	).Scan(&d.Tokens, &d.Requests, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return d, nil
	}
	if err != nil {
		return DailyUsage{}, fmt.Errorf("read daily usage: %w", err)
	}
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return d, nil
}

// Record adds the provider-reported usage of one successful call to
// today's counters. A nil usage records nothing; tokens are never
// estimated.
func (s *Store) Record(ctx context.Context, organizationID string, u *llm.Usage) error {
	if u == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_daily (organization_id, day, tokens, requests, updated_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(organization_id, day) DO UPDATE SET
			tokens = tokens + excluded.tokens,
			requests = requests + 1,
			updated_at = excluded.updated_at`,
		organizationID, s.today(), u.TotalTokens, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// BeginRequest writes a pending request log row and returns its ID.
func (s *Store) BeginRequest(ctx context.Context, eventID, organizationID, model string, input any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate request log ID: %w", err)
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode request input: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO request_log (id, event_id, organization_id, model, input, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), eventID, organizationID, model, string(payload), StatusPending,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert request log: %w", err)
	}
	return id.String(), nil
}

// Outcome is the result of a logged remote call.
type Outcome struct {
	Response json.RawMessage
	Usage    *llm.Usage
	Latency  time.Duration
	Err      error
}

// FinishRequest completes a pending request log row. Rows that are no
// longer pending are left untouched.
func (s *Store) FinishRequest(ctx context.Context, id string, o Outcome) error {
	status, errText := StatusSuccess, ""
	if o.Err != nil {
		status, errText = StatusError, o.Err.Error()
	}
	var in, out, total int
	if o.Usage != nil {
		in, out, total = o.Usage.InputTokens, o.Usage.OutputTokens, o.Usage.TotalTokens
	}
	var response any
	if len(o.Response) > 0 {
		response = string(o.Response)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE request_log SET response = ?, input_tokens = ?, output_tokens = ?, total_tokens = ?,
			latency_ms = ?, status = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		response, in, out, total, o.Latency.Milliseconds(), status, errText,
		s.now().UTC().Format(time.RFC3339Nano), id, StatusPending)
	if err != nil {
		return fmt.Errorf("complete request log: %w", err)
	}
	return nil
}

// ListRequests returns the most recent request log rows for an event,
// newest first.
func (s *Store) ListRequests(ctx context.Context, eventID string, limit int) ([]RequestLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, organization_id, model, COALESCE(input, ''), COALESCE(response, ''),
			input_tokens, output_tokens, total_tokens, latency_ms, status, error, created_at, completed_at
		 FROM request_log WHERE event_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("list request log: %w", err)
	}
	defer rows.Close()

	out := []RequestLog{}
	for rows.Next() {
		var r RequestLog
		var input, response, created, completed string
		if err := rows.Scan(&r.ID, &r.EventID, &r.OrganizationID, &r.Model, &input, &response,
			&r.InputTokens, &r.OutputTokens, &r.TotalTokens, &r.LatencyMS, &r.Status, &r.Error,
			&created, &completed); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		if input != "" {
			r.Input = json.RawMessage(input)
		}
		if response != "" {
			r.Response = json.RawMessage(response)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		if completed != "" {
			r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
