package planner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/llm"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/places"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/prompts"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/tools"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/usage"
)

// mockClient records requests and answers with respond.
type mockClient struct {
	mu       sync.Mutex
	requests []*llm.Request
	respond  func(n int, req *llm.Request) (*llm.Response, error)
}

func (m *mockClient) Send(_ context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()
	if m.respond == nil {
		return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: "ok"}}, nil
	}
	return m.respond(n, req)
}

func (m *mockClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func textReply(s string) *llm.Response {
	return &llm.Response{
		Message: llm.Message{Role: llm.RoleAssistant, Content: s},
		Usage:   &llm.Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
	}
}

type fakePlaces struct {
	mu        sync.Mutex
	nearby    []places.Place
	geocoded  []string
	radiusM   []int
	textCalls int
}

func (f *fakePlaces) Geocode(_ context.Context, address string) (places.LatLng, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geocoded = append(f.geocoded, address)
	return places.LatLng{Lat: 28.54, Lng: -81.38}, nil
}

func (f *fakePlaces) NearbySearch(_ context.Context, _ places.LatLng, _ string, radius int) ([]places.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.radiusM = append(f.radiusM, radius)
	return append([]places.Place(nil), f.nearby...), nil
}

func (f *fakePlaces) TextSearch(context.Context, string) ([]places.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	return nil, nil
}

func (f *fakePlaces) DistanceMatrix(_ context.Context, _ string, dests []string) ([]places.DistanceElement, error) {
	return make([]places.DistanceElement, len(dests)), nil
}

var campgrounds = []places.Place{
	{PlaceID: "p1", Name: "Lake Louisa Campground", Rating: 4.7, UserRatingsTotal: 820, Address: "7305 US-27, Clermont, FL"},
	{PlaceID: "p2", Name: "Moss Park", Rating: 4.5, UserRatingsTotal: 1400, Address: "12901 Moss Park Rd, Orlando, FL"},
}

type harness struct {
	planner *Planner
	store   *store.Store
	ledger  *usage.Store
	client  *mockClient
	places  *fakePlaces
	eventID string
}

func newHarness(t *testing.T, limits usage.Limits) *harness {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "planner.db"), nil)
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	ledger, err := usage.NewStore(filepath.Join(dir, "usage.db"), limits, nil)
	if err != nil {
		t.Fatalf("usage.NewStore() error: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	_, ev, err := st.Seed(context.Background(), store.SeedSpec{
		OrganizationName:    "Pathfinders Club",
		OrganizationAddress: "100 Club Ave, Orlando FL 32801",
		EventTitle:          "Spring Campout",
		EventType:           "camp",
		StartDate:           time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		EndDate:             time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}

	fp := &fakePlaces{}
	client := &mockClient{}
	reg := tools.NewRegistry(tools.Config{Records: st, Places: fp, Rental: rental.DefaultParams()})
	p := New(Config{
		Records: st,
		Ledger:  ledger,
		Tools:   reg,
		Client:  client,
		Model:   "test-model",
		Rental:  rental.DefaultParams(),
		Now:     func() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) },
	})
	return &harness{planner: p, store: st, ledger: ledger, client: client, places: fp, eventID: ev.ID}
}

func (h *harness) send(t *testing.T, msg string) *Reply {
	t.Helper()
	reply, err := h.planner.HandleMessage(context.Background(), Request{EventID: h.eventID, User: "leader", Message: msg, Debug: true})
	if err != nil {
		t.Fatalf("HandleMessage(%q) error: %v", msg, err)
	}
	return reply
}

func (h *harness) session(t *testing.T) *session.Session {
	t.Helper()
	sess, err := h.store.LoadSession(context.Background(), h.eventID)
	if err != nil {
		t.Fatalf("LoadSession() error: %v", err)
	}
	return sess
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		msg         string
		pending     string
		wantPlace   bool
		wantDoc     bool
		wantPending string
		wantAbandon bool
		wantTool    tools.Name
	}{
		{name: "place search", msg: "Find campgrounds near Orlando FL", wantPlace: true, wantTool: tools.FindRecommendedPlaces},
		{name: "document", msg: "Draft a permission slip for the parents", wantDoc: true},
		{name: "tasks are not places", msg: "Add tasks for the park trip", wantTool: tools.CreateTasks},
		{name: "task list naming a document", msg: "Reserve campsite, Collect permission slips, Buy snacks", wantDoc: true},
		{name: "location resumes pending place", msg: "How about Tampa FL?", pending: "Find campgrounds", wantPending: "Find campgrounds"},
		{name: "unrelated message abandons pending place", msg: "What should we pack?", pending: "Find campgrounds", wantAbandon: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(tt.msg, tt.pending)
			if c.placeIntent != tt.wantPlace {
				t.Errorf("placeIntent = %v, want %v", c.placeIntent, tt.wantPlace)
			}
			if c.document != tt.wantDoc {
				t.Errorf("document = %v, want %v", c.document, tt.wantDoc)
			}
			if c.pendingPlace != tt.wantPending {
				t.Errorf("pendingPlace = %q, want %q", c.pendingPlace, tt.wantPending)
			}
			if c.abandonPending != tt.wantAbandon {
				t.Errorf("abandonPending = %v, want %v", c.abandonPending, tt.wantAbandon)
			}
			if tt.wantTool != "" && c.inferred != tt.wantTool {
				t.Errorf("inferred = %q, want %q", c.inferred, tt.wantTool)
			}
		})
	}
}

func TestLocationFrom(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Find campgrounds near Orlando FL within 30 miles", "Orlando FL"},
		{"parks near 200 Main St, Kissimmee FL", "200 Main St, Kissimmee FL"},
		{"32801", "32801"},
		{"find zoos", ""},
	}
	for _, tt := range tests {
		if got := locationFrom(tt.msg); got != tt.want {
			t.Errorf("locationFrom(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestPlaceSearchRunsLocally(t *testing.T) {
	h := newHarness(t, usage.Limits{})
	h.places.nearby = campgrounds

	reply := h.send(t, "Find campgrounds near Orlando FL within 30 miles")

	if h.client.calls() != 0 {
		t.Fatalf("remote calls = %d, want 0", h.client.calls())
	}
	if reply.Debug.Path != PathPlace {
		t.Errorf("path = %q, want %q", reply.Debug.Path, PathPlace)
	}
	if len(h.places.geocoded) != 1 || h.places.geocoded[0] != "Orlando FL" {
		t.Errorf("geocoded = %v, want [Orlando FL]", h.places.geocoded)
	}
	if len(h.places.radiusM) != 1 || h.places.radiusM[0] != 48000 {
		t.Errorf("radius = %v, want [48000]", h.places.radiusM)
	}
	if !strings.Contains(reply.AssistantMessage, "Lake Louisa Campground") {
		t.Errorf("reply does not list the campground: %q", reply.AssistantMessage)
	}

	sess := h.session(t)
	if len(sess.Conversation) != 2 {
		t.Fatalf("conversation has %d turns, want 2", len(sess.Conversation))
	}
	last := sess.Conversation[1]
	if last.Role != session.RoleAssistant || len(last.Places) != 2 {
		t.Errorf("assistant turn = %s with %d places, want assistant with 2", last.Role, len(last.Places))
	}
	sec, ok := sess.Plan.Section(session.SectionRecommendations)
	if !ok || len(sec.Items) != 2 {
		t.Fatalf("Recommendations section = %+v, want 2 items", sec)
	}
	if sess.Plan.PendingPlace() != "" {
		t.Errorf("pending place = %q, want cleared", sess.Plan.PendingPlace())
	}
}

func TestPendingPlaceResumesWithLocation(t *testing.T) {
	h := newHarness(t, usage.Limits{})

	h.send(t, "Find campgrounds")
	if got := h.session(t).Plan.PendingPlace(); got != "Find campgrounds" {
		t.Fatalf("pending place = %q, want armed after empty search", got)
	}

	h.places.nearby = campgrounds
	reply := h.send(t, "How about Tampa FL?")
	if reply.Debug.Path != PathPlace || reply.Debug.PendingPlace != "Find campgrounds" {
		t.Errorf("debug = %+v, want place path resuming the pending request", reply.Debug)
	}
	if got := h.places.geocoded[len(h.places.geocoded)-1]; got != "Tampa FL" {
		t.Errorf("last geocoded address = %q, want Tampa FL", got)
	}
	if h.session(t).Plan.PendingPlace() != "" {
		t.Error("pending place should clear after a successful search")
	}
	if h.client.calls() != 0 {
		t.Errorf("remote calls = %d, want 0", h.client.calls())
	}
}

func TestPendingActionResumesLocally(t *testing.T) {
	h := newHarness(t, usage.Limits{})
	h.client.respond = func(int, *llm.Request) (*llm.Response, error) {
		return textReply("Sure, which tasks should I add?"), nil
	}

	h.send(t, "Can you add some tasks?")
	pa := h.session(t).Plan.PendingAction
	if pa == nil || pa.Tool != string(tools.CreateTasks) {
		t.Fatalf("pending action = %+v, want create_tasks", pa)
	}

	reply := h.send(t, "Reserve campsite; Pack first aid kit; Buy snacks")
	if h.client.calls() != 1 {
		t.Errorf("remote calls = %d, want 1", h.client.calls())
	}
	if reply.Debug.Path != PathPendingAction {
		t.Errorf("path = %q, want %q", reply.Debug.Path, PathPendingAction)
	}
	if len(reply.Tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(reply.Tasks))
	}
	if reply.Tasks[0].Title != "Reserve campsite" {
		t.Errorf("first task = %q", reply.Tasks[0].Title)
	}
	if h.session(t).Plan.PendingAction != nil {
		t.Error("pending action should clear once resolved")
	}
}

func TestPendingActionFromGuidanceExample(t *testing.T) {
	h := newHarness(t, usage.Limits{})
	h.client.respond = func(int, *llm.Request) (*llm.Response, error) {
		return textReply(""), nil
	}

	first := h.send(t, "Can you add some tasks?")
	want := prompts.ToolGuidance(string(tools.CreateTasks))
	if first.AssistantMessage != want {
		t.Errorf("reply = %q, want the create_tasks guidance", first.AssistantMessage)
	}
	if pa := h.session(t).Plan.PendingAction; pa == nil || pa.Tool != string(tools.CreateTasks) {
		t.Fatalf("pending action = %+v, want create_tasks", pa)
	}

	reply := h.send(t, "Reserve campsite, Collect permission slips, Buy snacks")
	if h.client.calls() != 1 {
		t.Errorf("remote calls = %d, want 1", h.client.calls())
	}
	if reply.Debug.Path != PathPendingAction {
		t.Errorf("path = %q, want %q", reply.Debug.Path, PathPendingAction)
	}
	if !reply.Debug.DocumentMode || reply.Debug.InferredTool != "" {
		t.Errorf("debug = %+v, want document words and no inferred tool", reply.Debug)
	}
	titles := make([]string, len(reply.Tasks))
	for i, task := range reply.Tasks {
		titles[i] = task.Title
	}
	if strings.Join(titles, "|") != "Reserve campsite|Collect permission slips|Buy snacks" {
		t.Errorf("tasks = %v", titles)
	}
	if len(reply.Documents) != 0 {
		t.Errorf("documents = %d, want 0", len(reply.Documents))
	}
	if h.session(t).Plan.PendingAction != nil {
		t.Error("pending action should clear once resolved")
	}
}

func TestForcedToolChoice(t *testing.T) {
	t.Run("rental cost without a vehicle", func(t *testing.T) {
		h := newHarness(t, usage.Limits{})
		h.client.respond = func(int, *llm.Request) (*llm.Response, error) {
			return textReply("Which vehicles do you need?"), nil
		}

		reply := h.send(t, "How much will transportation cost for the trip?")
		if h.client.calls() != 1 {
			t.Fatalf("remote calls = %d, want 1", h.client.calls())
		}
		want := llm.Forced(string(tools.EstimateRentalCosts))
		if got := h.client.requests[0].ToolChoice; got != want {
			t.Errorf("round 1 tool choice = %+v, want %+v", got, want)
		}
		if reply.Debug.Path != PathRemote || reply.Debug.ForcedTool != string(tools.EstimateRentalCosts) {
			t.Errorf("debug = %+v, want a forced remote turn", reply.Debug)
		}
		if pa := h.session(t).Plan.PendingAction; pa == nil || pa.Tool != string(tools.EstimateRentalCosts) {
			t.Errorf("pending action = %+v, want estimate_rental_costs", pa)
		}
	})

	t.Run("pending spine edit then auto", func(t *testing.T) {
		h := newHarness(t, usage.Limits{})
		h.client.respond = func(n int, _ *llm.Request) (*llm.Response, error) {
			switch n {
			case 1:
				return textReply(""), nil
			case 2:
				return &llm.Response{Message: llm.Message{
					Role: llm.RoleAssistant,
					ToolCalls: []llm.ToolCall{{
						ID: "call_1",
						Function: llm.FunctionCall{
							Name: string(tools.UpdateEventSpine),
							Arguments: map[string]any{
								"event_id": h.eventID,
								"patch":    map[string]any{"title": "Spring Campout at Lake Louisa"},
							},
						},
					}},
				}}, nil
			}
			return textReply("Renamed the event."), nil
		}

		first := h.send(t, "Change the event location")
		if first.AssistantMessage != prompts.ToolGuidance(string(tools.UpdateEventSpine)) {
			t.Errorf("reply = %q, want the update_event_spine guidance", first.AssistantMessage)
		}
		if got := h.client.requests[0].ToolChoice; got.Mode != llm.ToolChoiceAuto {
			t.Errorf("first turn tool choice = %+v, want auto", got)
		}
		if pa := h.session(t).Plan.PendingAction; pa == nil || pa.Tool != string(tools.UpdateEventSpine) {
			t.Fatalf("pending action = %+v, want update_event_spine", pa)
		}

		reply := h.send(t, "Call it Spring Campout at Lake Louisa")
		if h.client.calls() != 3 {
			t.Fatalf("remote calls = %d, want 3", h.client.calls())
		}
		tests := []struct {
			round int
			want  llm.ToolChoice
		}{
			{1, llm.Forced(string(tools.UpdateEventSpine))},
			{2, llm.ToolChoice{Mode: llm.ToolChoiceAuto}},
		}
		for _, tt := range tests {
			if got := h.client.requests[tt.round].ToolChoice; got != tt.want {
				t.Errorf("round %d tool choice = %+v, want %+v", tt.round, got, tt.want)
			}
		}
		if reply.Debug.ForcedTool != string(tools.UpdateEventSpine) {
			t.Errorf("forced tool = %q", reply.Debug.ForcedTool)
		}
		if reply.Event.Title != "Spring Campout at Lake Louisa" {
			t.Errorf("title = %q, want the patched title", reply.Event.Title)
		}
		if h.session(t).Plan.PendingAction != nil {
			t.Error("pending action should clear after the tool ran")
		}
	})
}

func TestLimitExceededChangesNothing(t *testing.T) {
	h := newHarness(t, usage.Limits{MaxMessagesPerEvent: 1})
	h.places.nearby = campgrounds
	h.send(t, "Find campgrounds near Orlando FL")

	_, err := h.planner.HandleMessage(context.Background(), Request{EventID: h.eventID, Message: "Find zoos near Orlando FL"})
	var le *usage.LimitError
	if !errors.As(err, &le) || le.Scope != usage.ScopeEventMessages {
		t.Fatalf("error = %v, want event message limit", err)
	}
	if got := len(h.session(t).Conversation); got != 2 {
		t.Errorf("conversation has %d turns, want 2", got)
	}
}

func TestDocumentRequestSavesDraft(t *testing.T) {
	h := newHarness(t, usage.Limits{})
	h.client.respond = func(int, *llm.Request) (*llm.Response, error) {
		return textReply("# Permission Slip\n\nStudent name: ________"), nil
	}

	reply := h.send(t, "Write a permission slip for the parents")

	req := h.client.requests[0]
	if req.ToolChoice.Mode != llm.ToolChoiceNone || len(req.Tools) != 0 {
		t.Errorf("document request offered tools: choice=%v tools=%d", req.ToolChoice, len(req.Tools))
	}
	if !strings.Contains(req.Input[0].Content, "Tools are disabled") {
		t.Error("system prompt should carry document instructions")
	}
	if len(reply.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(reply.Documents))
	}
	doc := reply.Documents[0]
	if doc.Title != "Permission Slip for Spring Campout" || doc.DocType != "permission_slip" {
		t.Errorf("document = %q (%s)", doc.Title, doc.DocType)
	}
	if h.session(t).Plan.PendingAction != nil {
		t.Error("document turns must not arm a pending action")
	}
}

func TestRemoteLoopStopsAfterMaxRounds(t *testing.T) {
	h := newHarness(t, usage.Limits{})
	h.client.respond = func(n int, _ *llm.Request) (*llm.Response, error) {
		return &llm.Response{Message: llm.Message{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{
				ID: "call_" + string(rune('0'+n)),
				Function: llm.FunctionCall{
					Name:      string(tools.CreateTasks),
					Arguments: map[string]any{"event_id": h.eventID, "tasks": []any{map[string]any{"title": "Task"}}},
				},
			}},
		}}, nil
	}

	reply := h.send(t, "Add a task to book the campsite")

	if h.client.calls() != MaxRounds {
		t.Errorf("remote calls = %d, want %d", h.client.calls(), MaxRounds)
	}
	if reply.AssistantMessage != prompts.RoundsExhaustedFallback {
		t.Errorf("reply = %q, want the rounds-exhausted fallback", reply.AssistantMessage)
	}
	if len(reply.Tasks) != MaxRounds {
		t.Errorf("tasks = %d, want %d", len(reply.Tasks), MaxRounds)
	}
	if reply.Debug.Rounds != MaxRounds {
		t.Errorf("debug rounds = %d", reply.Debug.Rounds)
	}

	day, err := h.ledger.Today(context.Background(), reply.Event.OrganizationID)
	if err != nil {
		t.Fatalf("Today() error: %v", err)
	}
	if day.Requests != 0 {
		t.Errorf("requests = %d, want 0 for responses without usage", day.Requests)
	}
}

func TestRentalEstimateRunsLocally(t *testing.T) {
	h := newHarness(t, usage.Limits{})
	yes := true
	reply, err := h.planner.HandleMessage(context.Background(), Request{
		EventID:          h.eventID,
		Message:          "How much would it cost to rent 2 buses for 2 days?",
		CreateBudgetItem: &yes,
		Debug:            true,
	})
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if h.client.calls() != 0 {
		t.Errorf("remote calls = %d, want 0", h.client.calls())
	}
	if reply.Debug.Path != PathRentalEstimate {
		t.Errorf("path = %q, want %q", reply.Debug.Path, PathRentalEstimate)
	}
	if !strings.Contains(reply.AssistantMessage, "$2000.00 - $4000.00") {
		t.Errorf("reply = %q, want the bus range", reply.AssistantMessage)
	}
	if len(reply.BudgetItems) != 1 || reply.BudgetItems[0].Category != "Transportation" {
		t.Errorf("budget items = %+v, want one transportation line", reply.BudgetItems)
	}
	if v, _ := reply.Plan.PrefBool(session.PrefCreateBudgetItem); !v {
		t.Error("budget preference should be stored")
	}
}

func TestRemoteFailure(t *testing.T) {
	h := newHarness(t, usage.Limits{})
	h.client.respond = func(int, *llm.Request) (*llm.Response, error) {
		return nil, errors.New("connection refused")
	}

	_, err := h.planner.HandleMessage(context.Background(), Request{EventID: h.eventID, Message: "What should we pack?"})
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("error = %v, want ErrRemote", err)
	}
	if _, err := h.store.LoadSession(context.Background(), h.eventID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("LoadSession() error = %v, want no session saved", err)
	}

	logs, err := h.ledger.ListRequests(context.Background(), h.eventID, 10)
	if err != nil {
		t.Fatalf("ListRequests() error: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != usage.StatusError {
		t.Errorf("request log = %+v, want one failed row", logs)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	h := newHarness(t, usage.Limits{})
	if _, err := h.planner.HandleMessage(context.Background(), Request{EventID: h.eventID, Message: "   "}); err == nil {
		t.Fatal("expected an error for an empty message")
	}
}
