// Package planner is the conversational orchestrator. For each user
// message it decides whether local heuristics can act directly (place
// searches, pending actions, rental estimates) or whether the remote
// model must run a bounded tool-calling loop, and it keeps the session
// and usage ledger consistent with what happened.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/events"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/llm"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/tools"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/usage"
)

// MaxRounds bounds the remote tool-calling loop of one turn.
const MaxRounds = 3

// ErrRemote marks a failed remote planning call. It is the only
// failure, besides usage limits, that fails a whole turn.
var ErrRemote = errors.New("remote planning call failed")

// Records is the record store as the planner uses it.
type Records interface {
	GetEvent(ctx context.Context, id string) (*store.Event, error)
	GetOrganization(ctx context.Context, id string) (*store.Organization, error)
	LoadSession(ctx context.Context, eventID string) (*session.Session, error)
	SaveSession(ctx context.Context, sess *session.Session) error
	CreateDocument(ctx context.Context, d *store.Document) error
	Snapshot(ctx context.Context, eventID string) (*store.Snapshot, error)
}

// Ledger is the usage ledger and request log.
type Ledger interface {
	CheckAndReserve(ctx context.Context, organizationID string, userTurns int) error
	Record(ctx context.Context, organizationID string, u *llm.Usage) error
	BeginRequest(ctx context.Context, eventID, organizationID, model string, input any) (string, error)
	FinishRequest(ctx context.Context, id string, o usage.Outcome) error
}

// Config wires a Planner.
type Config struct {
	Records         Records
	Ledger          Ledger
	Tools           *tools.Registry
	Client          llm.Client
	Model           string
	MaxOutputTokens int
	Rental          rental.Params
	Bus             *events.Bus
	Logger          *slog.Logger
	// Now is the clock; nil means time.Now.
	Now             func() time.Time
}

// Planner handles user messages for events.
type Planner struct {
	records   Records
	ledger    Ledger
	tools     *tools.Registry
	client    llm.Client
	model     string
	maxTokens int
	rental    rental.Params
	bus       *events.Bus
	logger    *slog.Logger
	now       func() time.Time

	locks sync.Map // event ID -> *sync.Mutex
}

// New creates a Planner.
func New(cfg Config) *Planner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Planner{
		records:   cfg.Records,
		ledger:    cfg.Ledger,
		tools:     cfg.Tools,
		client:    cfg.Client,
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
		rental:    cfg.Rental,
		bus:       cfg.Bus,
		logger:    logger.With("component", "planner"),
		now:       now,
	}
}

// Request is one inbound user message.
type Request struct {
	EventID          string
	User             string
	Message          string
	// CreateBudgetItem, when set, updates the sticky preference that
	// makes rental estimates write budget lines.
	CreateBudgetItem *bool
	Debug            bool
}

// Reply is the result of a handled message: the assistant text plus a
// snapshot of everything the turn may have changed.
type Reply struct {
	AssistantMessage string              `json:"assistant_message"`
	Event            *store.Event        `json:"event"`
	Plan             session.Plan        `json:"plan"`
	Tasks            []store.Task        `json:"tasks"`
	BudgetItems      []store.BudgetItem  `json:"budget_items"`
	Participants     []store.Participant `json:"participants"`
	Documents        []store.Document    `json:"documents"`
	MissingItems     []string            `json:"missing_items"`
	Debug            *Debug              `json:"debug,omitempty"`
}

// Debug describes how a turn was handled.
type Debug struct {
	Path          string   `json:"path"`
	DocumentMode  bool     `json:"document_mode"`
	NonPlace      bool     `json:"non_place"`
	PlaceIntent   bool     `json:"place_intent"`
	PendingPlace  string   `json:"pending_place,omitempty"`
	InferredTool  string   `json:"inferred_tool,omitempty"`
	ForcedTool    string   `json:"forced_tool,omitempty"`
	Rounds        int      `json:"rounds"`
	ToolsExecuted []string `json:"tools_executed,omitempty"`
	PendingAction string   `json:"pending_action,omitempty"`
}

// Turn paths.
const (
	PathPlace          = "place_search"
	PathPendingAction  = "pending_action"
	PathRentalEstimate = "rental_estimate"
	PathRemote         = "remote"
)

// turn is the working state of one HandleMessage call.
type turn struct {
	req   Request
	event *store.Event
	org   *store.Organization
	sess  *session.Session
	scope tools.Scope
	debug Debug
	start time.Time
}

func (p *Planner) lock(eventID string) func() {
	v, _ := p.locks.LoadOrStore(eventID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// HandleMessage runs one conversational turn for an event. It returns
// a *usage.LimitError when a cap is reached (nothing is changed) and
// an error wrapping ErrRemote when the remote model cannot be reached.
func (p *Planner) HandleMessage(ctx context.Context, req Request) (*Reply, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, fmt.Errorf("message is empty")
	}
	defer p.lock(req.EventID)()

	t, err := p.load(ctx, req)
	if err != nil {
		return nil, err
	}

	p.bus.Publish(events.Event{
		Source: events.SourcePlanner,
		Kind:   events.KindTurnStart,
		Data:   map[string]any{"event_id": t.event.ID, "user": req.User, "message_len": len(req.Message)},
	})

	if err := p.ledger.CheckAndReserve(ctx, t.org.ID, t.sess.UserTurns()); err != nil {
		var le *usage.LimitError
		if errors.As(err, &le) {
			p.logger.Warn("usage limit reached", "event_id", t.event.ID, "organization_id", t.org.ID, "scope", le.Scope, "limit", le.Limit)
			p.bus.Publish(events.Event{
				Source: events.SourceUsage,
				Kind:   events.KindLimitExceeded,
				Data:   map[string]any{"event_id": t.event.ID, "organization_id": t.org.ID, "scope": le.Scope},
			})
		}
		return nil, err
	}

	if req.CreateBudgetItem != nil {
		t.sess.Plan.SetPref(session.PrefCreateBudgetItem, *req.CreateBudgetItem)
	}
	t.sess.Append(session.Turn{Role: session.RoleUser, Content: req.Message, At: p.now().UTC()})

	text, err := p.route(ctx, t)
	if err != nil {
		return nil, err
	}
	return p.finish(ctx, t, text)
}

// load reads the event, its organization and the session, creating
// and seeding the session on first use.
func (p *Planner) load(ctx context.Context, req Request) (*turn, error) {
	ev, err := p.records.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	org, err := p.records.GetOrganization(ctx, ev.OrganizationID)
	if err != nil {
		return nil, err
	}
	sess, err := p.records.LoadSession(ctx, ev.ID)
	if errors.Is(err, store.ErrNotFound) {
		sess = session.New(ev.ID)
		p.logger.Info("planning session created", "event_id", ev.ID)
	} else if err != nil {
		return nil, err
	}
	if sess.SeedMissingItems(ev.EventType) {
		p.logger.Debug("missing items seeded", "event_id", ev.ID, "event_type", ev.EventType, "count", len(sess.MissingItems))
	}

	t := &turn{req: req, event: ev, org: org, sess: sess, start: p.now()}
	t.scope = tools.Scope{
		EventID:             ev.ID,
		OrganizationID:      org.ID,
		OrganizationAddress: org.Address,
		User:                req.User,
		Event:               ev,
		Session:             sess,
	}
	return t, nil
}

// route picks the handling path for the turn and returns the assistant
// text. Local paths append their own assistant turn.
func (p *Planner) route(ctx context.Context, t *turn) (string, error) {
	c := classify(t.req.Message, t.sess.Plan.PendingPlace())
	t.debug.DocumentMode = c.document
	t.debug.NonPlace = c.nonPlace
	t.debug.PlaceIntent = c.placeIntent
	t.debug.PendingPlace = c.pendingPlace
	if c.hasInferred {
		t.debug.InferredTool = string(c.inferred)
	}

	if c.suppressed() || c.abandonPending {
		t.sess.Plan.SetPendingPlaceIntent("")
	}

	if c.placeIntent || (c.pendingPlace != "" && c.hasLocation) {
		t.debug.Path = PathPlace
		return p.resolvePlace(ctx, t, c), nil
	}

	var forced tools.Name
	if pa := t.sess.Plan.PendingAction; pa != nil && !c.hasInferred {
		text, ok := p.resolvePendingAction(ctx, t, pa)
		if ok {
			t.debug.Path = PathPendingAction
			return text, nil
		}
		if name, valid := tools.ParseName(pa.Tool); valid && (name == tools.UpdateEventSpine || name == tools.UpdatePlanSection) {
			forced = name
		}
	}

	if c.hasInferred && c.inferred == tools.EstimateRentalCosts {
		if text, ok := p.resolveRentalEstimate(ctx, t); ok {
			t.debug.Path = PathRentalEstimate
			return text, nil
		}
		forced = tools.EstimateRentalCosts
	}

	t.debug.Path = PathRemote
	return p.remote(ctx, t, c, forced)
}

// finish records the final assistant text, persists the session once
// and builds the reply.
func (p *Planner) finish(ctx context.Context, t *turn, text string) (*Reply, error) {
	now := p.now().UTC()
	t.sess.Summary = text
	t.sess.LastGeneratedAt = &now
	if pa := t.sess.Plan.PendingAction; pa != nil {
		t.debug.PendingAction = pa.Tool
	}

	if err := p.records.SaveSession(ctx, t.sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	snap, err := p.records.Snapshot(ctx, t.event.ID)
	if err != nil {
		return nil, err
	}

	p.bus.Publish(events.Event{
		Source: events.SourcePlanner,
		Kind:   events.KindTurnComplete,
		Data: map[string]any{
			"event_id":   t.event.ID,
			"path":       t.debug.Path,
			"rounds":     t.debug.Rounds,
			"elapsed_ms": now.Sub(t.start).Milliseconds(),
		},
	})
	p.logger.Info("turn complete",
		"event_id", t.event.ID,
		"path", t.debug.Path,
		"rounds", t.debug.Rounds,
		"tools", len(t.debug.ToolsExecuted),
		"elapsed", now.Sub(t.start),
	)

	reply := &Reply{
		AssistantMessage: text,
		Event:            snap.Event,
		Plan:             t.sess.Plan,
		Tasks:            snap.Tasks,
		BudgetItems:      snap.BudgetItems,
		Participants:     snap.Participants,
		Documents:        snap.Documents,
		MissingItems:     t.sess.MissingItems,
	}
	if t.req.Debug {
		d := t.debug
		reply.Debug = &d
	}
	return reply, nil
}

// appendAssistant records a local reply.
func (p *Planner) appendAssistant(t *turn, text string, res *tools.Result) {
	turn := session.Turn{Role: session.RoleAssistant, Content: text, At: p.now().UTC()}
	if res != nil {
		turn.Places = tools.PlaceMaps(res.Places)
		t.debug.ToolsExecuted = append(t.debug.ToolsExecuted, string(res.Tool))
	}
	t.sess.Append(turn)
}
