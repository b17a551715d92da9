package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
)

// LoadSession returns the planning session of an event, or
// ErrNotFound when the event has none yet.
func (s *Store) LoadSession(ctx context.Context, eventID string) (*session.Session, error) {
	var (
		sess                            session.Session
		plan, missing, conversation     string
		lastGenerated, created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, plan, missing_items, conversation, last_generated_at, summary, created_at, updated_at
		 FROM planning_sessions WHERE event_id = ?`, eventID,
	).Scan(&sess.ID, &sess.EventID, &plan, &missing, &conversation, &lastGenerated, &sess.Summary, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session for event %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if err := json.Unmarshal([]byte(plan), &sess.Plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := json.Unmarshal([]byte(missing), &sess.MissingItems); err != nil {
		return nil, fmt.Errorf("decode missing items: %w", err)
	}
	if err := json.Unmarshal([]byte(conversation), &sess.Conversation); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	if sess.Plan.Sections == nil {
		sess.Plan.Sections = []session.Section{}
	}
	if sess.MissingItems == nil {
		sess.MissingItems = []string{}
	}
	if sess.Conversation == nil {
		sess.Conversation = []session.Turn{}
	}
	if t := parseTime(lastGenerated); !t.IsZero() {
		sess.LastGeneratedAt = &t
	}
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)
	return &sess, nil
}

// SaveSession writes the whole session in one statement, inserting it
// on first save.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	if sess.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		sess.ID = id
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	plan, err := json.Marshal(sess.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	missing, err := json.Marshal(sess.MissingItems)
	if err != nil {
		return fmt.Errorf("encode missing items: %w", err)
	}
	conversation, err := json.Marshal(sess.Conversation)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	var lastGenerated string
	if sess.LastGeneratedAt != nil {
		lastGenerated = formatTime(*sess.LastGeneratedAt)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO planning_sessions
			(id, event_id, plan, missing_items, conversation, last_generated_at, summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id) DO UPDATE SET
			plan = excluded.plan,
			missing_items = excluded.missing_items,
			conversation = excluded.conversation,
			last_generated_at = excluded.last_generated_at,
			summary = excluded.summary,
			updated_at = excluded.updated_at`,
		sess.ID, sess.EventID, string(plan), string(missing), string(conversation),
		lastGenerated, sess.Summary, formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
