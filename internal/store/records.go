package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQL fragments for query building.
const (
	eventColumns = "id, organization_id, title, event_type, start_date, end_date, location, status, " +
		"budget_estimated_total, budget_actual_total, risk_level, requires_approval, created_at, updated_at"
	taskColumns        = "id, event_id, title, description, due_date, assignee, status, created_at"
	budgetColumns      = "id, event_id, category, description, qty, unit_cost, notes, created_at, updated_at"
	participantColumns = "id, event_id, name, role, status, is_minor, needs_transport, permission_received, medical_form_received, created_at"
	documentColumns    = "id, event_id, title, doc_type, content, created_at"
)

// Organization is a youth club.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is the spine of a planned activity.
type Event struct {
	ID                   string    `json:"id"`
	OrganizationID       string    `json:"organization_id"`
	Title                string    `json:"title"`
	EventType            string    `json:"event_type,omitempty"`
	StartDate            time.Time `json:"start_date,omitzero"`
	EndDate              time.Time `json:"end_date,omitzero"`
	Location             string    `json:"location,omitempty"`
	Status               string    `json:"status"`
	BudgetEstimatedTotal float64   `json:"budget_estimated_total"`
	BudgetActualTotal    float64   `json:"budget_actual_total"`
	RiskLevel            string    `json:"risk_level,omitempty"`
	RequiresApproval     bool      `json:"requires_approval"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// EventPatch is the whitelisted set of event fields the planner may
// change. Nil fields are left untouched.
type EventPatch struct {
	Title                *string
	StartDate            *time.Time
	EndDate              *time.Time
	Location             *string
	Status               *string
	BudgetEstimatedTotal *float64
	BudgetActualTotal    *float64
	RiskLevel            *string
	RequiresApproval     *bool
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p == EventPatch{}
}

// Task is an event to-do.
type Task struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// BudgetItem is one line of the event budget.
type BudgetItem struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Qty         float64   `json:"qty"`
	UnitCost    float64   `json:"unit_cost"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Total returns qty × unit cost.
func (b BudgetItem) Total() float64 { return b.Qty * b.UnitCost }

// Participant is a person attending or helping with an event.
type Participant struct {
	ID                  string    `json:"id"`
	EventID             string    `json:"event_id"`
	Name                string    `json:"name"`
	Role                string    `json:"role"`
	Status              string    `json:"status"`
	IsMinor             bool      `json:"is_minor"`
	NeedsTransport      bool      `json:"needs_transport"`
	PermissionReceived  bool      `json:"permission_received"`
	MedicalFormReceived bool      `json:"medical_form_received"`
	CreatedAt           time.Time `json:"created_at"`
}

// Document is a generated draft (letter, form, notice).
type Document struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Title     string    `json:"title"`
	DocType   string    `json:"doc_type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateOrganization inserts an organization, assigning an ID if unset.
func (s *Store) CreateOrganization(ctx context.Context, o *Organization) error {
	if o.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		o.ID = id
	}
	o.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, address, created_at) VALUES (?, ?, ?, ?)`,
		o.ID, o.Name, o.Address, formatTime(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

// GetOrganization returns an organization by ID.
func (s *Store) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	var o Organization
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, created_at FROM organizations WHERE id = ?`, id,
	).Scan(&o.ID, &o.Name, &o.Address, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	o.CreatedAt = parseTime(created)
	return &o, nil
}

// CreateEvent inserts an event, assigning an ID and defaults.
func (s *Store) CreateEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.Status == "" {
		e.Status = "draft"
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrganizationID, e.Title, e.EventType,
		formatTime(e.StartDate), formatTime(e.EndDate), e.Location, e.Status,
		e.BudgetEstimatedTotal, e.BudgetActualTotal, e.RiskLevel, boolInt(e.RequiresApproval),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var start, end, created, updated string
	var approval int
	if err := row.Scan(&e.ID, &e.OrganizationID, &e.Title, &e.EventType, &start, &end,
		&e.Location, &e.Status, &e.BudgetEstimatedTotal, &e.BudgetActualTotal,
		&e.RiskLevel, &approval, &created, &updated); err != nil {
		return nil, err
	}
	e.StartDate = parseTime(start)
	e.EndDate = parseTime(end)
	e.RequiresApproval = approval != 0
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

// PatchEvent applies the non-nil fields of p and returns the updated
// event. Only the columns named by EventPatch can change.
func (s *Store) PatchEvent(ctx context.Context, id string, p EventPatch) (*Event, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.StartDate != nil {
		add("start_date", formatTime(*p.StartDate))
	}
	if p.EndDate != nil {
		add("end_date", formatTime(*p.EndDate))
	}
	if p.Location != nil {
		add("location", *p.Location)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.BudgetEstimatedTotal != nil {
		add("budget_estimated_total", *p.BudgetEstimatedTotal)
	}
	if p.BudgetActualTotal != nil {
		add("budget_actual_total", *p.BudgetActualTotal)
	}
	if p.RiskLevel != nil {
		add("risk_level", *p.RiskLevel)
	}
	if p.RequiresApproval != nil {
		add("requires_approval", boolInt(*p.RequiresApproval))
	}
	if len(sets) == 0 {
		return s.GetEvent(ctx, id)
	}
	add("updated_at", formatTime(time.Now().UTC()))
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, `UPDATE events SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("patch event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return s.GetEvent(ctx, id)
}

// CreateTasks inserts tasks for an event in one transaction. Status
// defaults to todo.
func (s *Store) CreateTasks(ctx context.Context, eventID string, tasks []Task) ([]Task, error) {
	now := time.Now().UTC()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range tasks {
			t := &tasks[i]
			id, err := newID()
			if err != nil {
				return err
			}
			t.ID, t.EventID, t.CreatedAt = id, eventID, now
			if t.Status == "" {
				t.Status = "todo"
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.EventID, t.Title, t.Description, t.DueDate, t.Assignee, t.Status, formatTime(now),
			); err != nil {
				return fmt.Errorf("insert task %q: %w", t.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTasks returns an event's tasks in creation order.
func (s *Store) ListTasks(ctx context.Context, eventID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE event_id = ? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		var t Task
		var created string
		if err := rows.Scan(&t.ID, &t.EventID, &t.Title, &t.Description, &t.DueDate, &t.Assignee, &t.Status, &created); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateBudgetItems inserts budget items in one transaction. Qty
// defaults to 1 and category to General.
func (s *Store) CreateBudgetItems(ctx context.Context, eventID string, items []BudgetItem) ([]BudgetItem, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range items {
			if err := insertBudgetItem(ctx, tx, eventID, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func insertBudgetItem(ctx context.Context, tx *sql.Tx, eventID string, b *BudgetItem) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	b.ID, b.EventID, b.CreatedAt, b.UpdatedAt = id, eventID, now, now
	if b.Qty <= 0 {
		b.Qty = 1
	}
	if b.Category == "" {
		b.Category = "General"
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO budget_items (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.EventID, b.Category, b.Description, b.Qty, b.UnitCost, b.Notes, formatTime(now), formatTime(now),
	); err != nil {
		return fmt.Errorf("insert budget item %q: %w", b.Description, err)
	}
	return nil
}

// UpsertBudgetItem updates the first existing item of the event for
// which match returns true, or inserts item when none does. It reports
// whether a new row was created.
func (s *Store) UpsertBudgetItem(ctx context.Context, eventID string, item BudgetItem, match func(BudgetItem) bool) (BudgetItem, bool, error) {
	created := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := listBudgetItems(ctx, tx, eventID)
		if err != nil {
			return err
		}
		for _, b := range existing {
			if !match(b) {
				continue
			}
			item.ID, item.EventID, item.CreatedAt = b.ID, eventID, b.CreatedAt
			item.UpdatedAt = time.Now().UTC()
			if item.Category == "" {
				item.Category = b.Category
			}
			_, err := tx.ExecContext(ctx,
				`UPDATE budget_items SET category = ?, description = ?, qty = ?, unit_cost = ?, notes = ?, updated_at = ? WHERE id = ?`,
				item.Category, item.Description, item.Qty, item.UnitCost, item.Notes, formatTime(item.UpdatedAt), item.ID)
			if err != nil {
				return fmt.Errorf("update budget item: %w", err)
			}
			return nil
		}
		created = true
		return insertBudgetItem(ctx, tx, eventID, &item)
	})
	if err != nil {
		return BudgetItem{}, false, err
	}
	return item, created, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listBudgetItems(ctx context.Context, q queryer, eventID string) ([]BudgetItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budget_items WHERE event_id = ? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	defer rows.Close()

	out := []BudgetItem{}
	for rows.Next() {
		var b BudgetItem
		var created, updated string
		if err := rows.Scan(&b.ID, &b.EventID, &b.Category, &b.Description, &b.Qty, &b.UnitCost, &b.Notes, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan budget item: %w", err)
		}
		b.CreatedAt = parseTime(created)
		b.UpdatedAt = parseTime(updated)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBudgetItems returns an event's budget items in creation order.
func (s *Store) ListBudgetItems(ctx context.Context, eventID string) ([]BudgetItem, error) {
	return listBudgetItems(ctx, s.db, eventID)
}

// AddParticipants inserts participants in one transaction. Role
// defaults to guest and status to invited.
func (s *Store) AddParticipants(ctx context.Context, eventID string, ps []Participant) ([]Participant, error) {
	now := time.Now().UTC()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range ps {
			p := &ps[i]
			id, err := newID()
			if err != nil {
				return err
			}
			p.ID, p.EventID, p.CreatedAt = id, eventID, now
			if p.Role == "" {
				p.Role = "guest"
			}
			if p.Status == "" {
				p.Status = "invited"
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO participants (`+participantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.EventID, p.Name, p.Role, p.Status,
				boolInt(p.IsMinor), boolInt(p.NeedsTransport), boolInt(p.PermissionReceived), boolInt(p.MedicalFormReceived),
				formatTime(now),
			); err != nil {
				return fmt.Errorf("insert participant %q: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// ListParticipants returns an event's participants in creation order.
func (s *Store) ListParticipants(ctx context.Context, eventID string) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE event_id = ? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := []Participant{}
	for rows.Next() {
		var p Participant
		var minor, transport, permission, medical int
		var created string
		if err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.Role, &p.Status,
			&minor, &transport, &permission, &medical, &created); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.IsMinor = minor != 0
		p.NeedsTransport = transport != 0
		p.PermissionReceived = permission != 0
		p.MedicalFormReceived = medical != 0
		p.CreatedAt = parseTime(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateDocument stores a generated document.
func (s *Store) CreateDocument(ctx context.Context, d *Document) error {
	id, err := newID()
	if err != nil {
		return err
	}
	d.ID = id
	d.CreatedAt = time.Now().UTC()
	if d.DocType == "" {
		d.DocType = "draft"
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.EventID, d.Title, d.DocType, d.Content, formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// ListDocuments returns an event's documents in creation order.
func (s *Store) ListDocuments(ctx context.Context, eventID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE event_id = ? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var d Document
		var created string
		if err := rows.Scan(&d.ID, &d.EventID, &d.Title, &d.DocType, &d.Content, &created); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.CreatedAt = parseTime(created)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Snapshot is the event and all of its records.
type Snapshot struct {
	Event        *Event        `json:"event"`
	Tasks        []Task        `json:"tasks"`
	BudgetItems  []BudgetItem  `json:"budget_items"`
	Participants []Participant `json:"participants"`
	Documents    []Document    `json:"documents"`
}

// Snapshot loads an event with its tasks, budget, participants and
// documents.
func (s *Store) Snapshot(ctx context.Context, eventID string) (*Snapshot, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Event: ev}
	if snap.Tasks, err = s.ListTasks(ctx, eventID); err != nil {
		return nil, err
	}
	if snap.BudgetItems, err = s.ListBudgetItems(ctx, eventID); err != nil {
		return nil, err
	}
	if snap.Participants, err = s.ListParticipants(ctx, eventID); err != nil {
		return nil, err
	}
	if snap.Documents, err = s.ListDocuments(ctx, eventID); err != nil {
		return nil, err
	}
	return snap, nil
}
