// Package tools defines the planning tools the orchestrator and the
// remote model may invoke against an event.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/events"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/llm"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/places"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
)

// Records is the slice of the record store the handlers mutate.
type Records interface {
	PatchEvent(ctx context.Context, id string, p store.EventPatch) (*store.Event, error)
	CreateTasks(ctx context.Context, eventID string, tasks []store.Task) ([]store.Task, error)
	CreateBudgetItems(ctx context.Context, eventID string, items []store.BudgetItem) ([]store.BudgetItem, error)
	UpsertBudgetItem(ctx context.Context, eventID string, item store.BudgetItem, match func(store.BudgetItem) bool) (store.BudgetItem, bool, error)
	AddParticipants(ctx context.Context, eventID string, ps []store.Participant) ([]store.Participant, error)
}

// Scope is the explicit context of one tool execution: the active
// event, its organization and the session being edited. Handlers
// mutate Session in memory; the caller persists it.
type Scope struct {
	EventID             string
	OrganizationID      string
	OrganizationAddress string
	User                string
	Event               *store.Event
	Session             *session.Session
}

// Result is the outcome of one tool execution. Exactly one of Payload
// and Error is meaningful.
type Result struct {
	Tool    Name
	Payload any
	Error   string
	// Places holds the shaped venues of a place search, for the turn
	// record.
	Places []ShapedPlace
}

// OK reports whether the tool succeeded.
func (r Result) OK() bool { return r.Error == "" }

// JSON renders the result as the tool-result turn content.
func (r Result) JSON() string {
	var v any = r.Payload
	if !r.OK() {
		v = map[string]string{"error": r.Error}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "encode result: "+err.Error())
	}
	return string(b)
}

func failure(name Name, err error) Result {
	return Result{Tool: name, Error: err.Error()}
}

func failuref(name Name, format string, args ...any) Result {
	return Result{Tool: name, Error: fmt.Sprintf(format, args...)}
}

// PlaceDefaults are the search parameters used when a call leaves
// them out.
type PlaceDefaults struct {
	RadiusKm   int
	MaxResults int
	MinRating  float64
}

// Tool binds a catalog name to its schema and handler.
type Tool struct {
	Name        Name
	Description string
	Parameters  jsonschema.Definition
	Limits      Limits
	handler     func(ctx context.Context, sc Scope, args map[string]any) Result
}

// Registry holds the tool catalog and its collaborators.
type Registry struct {
	tools    map[Name]*Tool
	records  Records
	places   places.Lookup
	rental   rental.Params
	defaults PlaceDefaults
	bus      *events.Bus
	logger   *slog.Logger
}

// Config wires a Registry. Places may be nil, in which case the place
// tools report that lookups are not configured.
type Config struct {
	Records  Records
	Places   places.Lookup
	Rental   rental.Params
	Defaults PlaceDefaults
	Bus      *events.Bus
	Logger   *slog.Logger
}

// NewRegistry creates a registry with the full catalog.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Defaults.RadiusKm <= 0 {
		cfg.Defaults.RadiusKm = 40
	}
	if cfg.Defaults.MaxResults <= 0 {
		cfg.Defaults.MaxResults = 8
	}
	r := &Registry{
		tools:    make(map[Name]*Tool, len(Catalog)),
		records:  cfg.Records,
		places:   cfg.Places,
		rental:   cfg.Rental,
		defaults: cfg.Defaults,
		bus:      cfg.Bus,
		logger:   logger.With("component", "tools"),
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) register(t *Tool) {
	r.tools[t.Name] = t
}

// Get returns a catalog tool, or nil for unknown names.
func (r *Registry) Get(name Name) *Tool {
	return r.tools[name]
}

// Specs returns the catalog in the form offered to the model.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(Catalog))
	for _, name := range Catalog {
		t := r.tools[name]
		specs = append(specs, llm.ToolSpec{
			Name:        string(t.Name),
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return specs
}

// Execute runs a tool call from the model. Unknown tools, malformed or
// invalid arguments and event mismatches are reported in the Result,
// never as a panic or Go error.
func (r *Registry) Execute(ctx context.Context, sc Scope, call llm.ToolCall) Result {
	name, ok := ParseName(call.Function.Name)
	if !ok {
		return Result{Tool: Name(call.Function.Name), Error: fmt.Sprintf("%v: %s", ErrUnknownTool, call.Function.Name)}
	}
	if call.Function.ParseError != "" {
		return failure(name, &ValidationError{Reason: "arguments are not a JSON object: " + call.Function.ParseError})
	}
	return r.run(ctx, sc, name, call.Function.Arguments)
}

// Run executes a tool with arguments built locally. The arguments go
// through a JSON round trip so they are validated exactly like model
// output.
func (r *Registry) Run(ctx context.Context, sc Scope, name Name, args map[string]any) Result {
	raw, err := json.Marshal(args)
	if err != nil {
		return failure(name, fmt.Errorf("encode arguments: %w", err))
	}
	decoded, parseErr := llm.DecodeArguments(string(raw))
	if parseErr != "" {
		return failure(name, &ValidationError{Reason: parseErr})
	}
	return r.run(ctx, sc, name, decoded)
}

func (r *Registry) run(ctx context.Context, sc Scope, name Name, args map[string]any) Result {
	t := r.tools[name]
	if t == nil {
		return failure(name, fmt.Errorf("%w: %s", ErrUnknownTool, name))
	}
	if err := validate(t, args); err != nil {
		r.logger.Debug("tool arguments rejected", "tool", name, "error", err)
		return failure(name, err)
	}
	if id, _ := argString(args, "event_id"); id != sc.EventID {
		r.logger.Warn("tool call targets another event", "tool", name, "event_id", id, "active_event", sc.EventID)
		return failure(name, ErrEventMismatch)
	}

	r.bus.Publish(events.Event{
		Source: events.SourceTools,
		Kind:   events.KindToolCall,
		Data:   map[string]any{"event_id": sc.EventID, "tool": string(name)},
	})
	start := time.Now()
	res := t.handler(ctx, sc, args)
	res.Tool = name
	elapsed := time.Since(start)

	r.bus.Publish(events.Event{
		Source: events.SourceTools,
		Kind:   events.KindToolDone,
		Data: map[string]any{
			"event_id":    sc.EventID,
			"tool":        string(name),
			"ok":          res.OK(),
			"duration_ms": elapsed.Milliseconds(),
		},
	})
	if res.OK() {
		r.logger.Info("tool executed", "tool", name, "event_id", sc.EventID, "elapsed", elapsed)
	} else {
		r.logger.Warn("tool failed", "tool", name, "event_id", sc.EventID, "error", res.Error, "elapsed", elapsed)
	}
	return res
}

// isCanceled reports whether err came from the caller giving up.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
