package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/events"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/planner"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/usage"
)

type fakePlanner struct {
	reply *planner.Reply
	err   error
	got   planner.Request
}

func (f *fakePlanner) HandleMessage(_ context.Context, req planner.Request) (*planner.Reply, error) {
	f.got = req
	return f.reply, f.err
}

type fakeRecords struct {
	events   map[string]*store.Event
	sessions map[string]*session.Session
}

func (f *fakeRecords) GetEvent(_ context.Context, id string) (*store.Event, error) {
	if ev, ok := f.events[id]; ok {
		return ev, nil
	}
	return nil, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
}

func (f *fakeRecords) LoadSession(_ context.Context, eventID string) (*session.Session, error) {
	if s, ok := f.sessions[eventID]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("session for event %s: %w", eventID, store.ErrNotFound)
}

type fakeLedger struct {
	rows []usage.RequestLog
}

func (f *fakeLedger) Today(_ context.Context, orgID string) (usage.DailyUsage, error) {
	return usage.DailyUsage{OrganizationID: orgID, Day: "2026-03-02", Tokens: 1234, Requests: 3}, nil
}

func (f *fakeLedger) ListRequests(_ context.Context, eventID string, limit int) ([]usage.RequestLog, error) {
	var out []usage.RequestLog
	for _, r := range f.rows {
		if r.EventID == eventID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(p *fakePlanner) (*Server, *fakeRecords, *events.Bus) {
	recs := &fakeRecords{
		events:   map[string]*store.Event{"evt-1": {ID: "evt-1", EventType: "camp", Title: "Spring Campout"}},
		sessions: map[string]*session.Session{},
	}
	bus := events.New()
	srv := NewServer(Config{
		Planner: p,
		Records: recs,
		Ledger:  &fakeLedger{rows: []usage.RequestLog{{ID: "r1", EventID: "evt-1", Status: usage.StatusSuccess}}},
		Bus:     bus,
	})
	return srv, recs, bus
}

func postMessage(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/evt-1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleMessage(t *testing.T) {
	fp := &fakePlanner{reply: &planner.Reply{AssistantMessage: "Added **2** tasks:\n\n- Buy snacks\n- Book bus"}}
	srv, _, _ := newTestServer(fp)

	rec := postMessage(t, srv.Handler(), `{"user":"ana","message":"add tasks","create_budget_item":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fp.got.EventID != "evt-1" || fp.got.User != "ana" || fp.got.Message != "add tasks" {
		t.Errorf("planner request = %+v", fp.got)
	}
	if fp.got.CreateBudgetItem == nil || !*fp.got.CreateBudgetItem {
		t.Error("create_budget_item should be passed through")
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["assistant_message"] != fp.reply.AssistantMessage {
		t.Errorf("assistant_message = %v", body["assistant_message"])
	}
	html, _ := body["assistant_html"].(string)
	if !strings.Contains(html, "<strong>2</strong>") || !strings.Contains(html, "<li>Buy snacks</li>") {
		t.Errorf("assistant_html = %q", html)
	}
}

func TestHandleMessage_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "malformed body", body: `{`, want: http.StatusBadRequest},
		{name: "empty message", body: `{"message":"  "}`, want: http.StatusBadRequest},
		{name: "limit", body: `{"message":"hi"}`, err: &usage.LimitError{Scope: usage.ScopeDailyTokens, Limit: 10, Current: 12}, want: http.StatusTooManyRequests},
		{name: "unknown event", body: `{"message":"hi"}`, err: fmt.Errorf("event x: %w", store.ErrNotFound), want: http.StatusNotFound},
		{name: "remote failure", body: `{"message":"hi"}`, err: fmt.Errorf("%w: timeout", planner.ErrRemote), want: http.StatusBadGateway},
		{name: "other failure", body: `{"message":"hi"}`, err: errors.New("disk full"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(&fakePlanner{err: tt.err})
			rec := postMessage(t, srv.Handler(), tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			var body struct {
				Error struct {
					Message string `json:"message"`
					Scope   string `json:"scope"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Message == "" {
				t.Error("error message is empty")
			}
			if tt.want == http.StatusTooManyRequests && body.Error.Scope != usage.ScopeDailyTokens {
				t.Errorf("scope = %q", body.Error.Scope)
			}
		})
	}
}

func TestHandleSession(t *testing.T) {
	srv, recs, _ := newTestServer(&fakePlanner{})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/evt-1/session", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sess session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.EventID != "evt-1" || len(sess.MissingItems) == 0 {
		t.Errorf("fresh session = %+v, want seeded checklist", sess)
	}

	recs.sessions["evt-1"] = &session.Session{EventID: "evt-1", Summary: "saved"}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/evt-1/session", nil))
	if !strings.Contains(rec.Body.String(), `"summary":"saved"`) {
		t.Errorf("stored session not returned: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/nope/session", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown event status = %d, want 404", rec.Code)
	}
}

func TestUsageAndRequests(t *testing.T) {
	srv, _, _ := newTestServer(&fakePlanner{})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/organizations/org-1/usage", nil))
	var day usage.DailyUsage
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("decode usage: %v", err)
	}
	if day.OrganizationID != "org-1" || day.Tokens != 1234 {
		t.Errorf("usage = %+v", day)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/evt-1/requests?limit=5", nil))
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode requests: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/evt-1/requests?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	srv, _, _ := newTestServer(&fakePlanner{})
	h := srv.Handler()
	for _, path := range []string{"/health", "/v1/version", "/"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
}

func TestEventStream(t *testing.T) {
	srv, _, bus := newTestServer(&fakePlanner{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/stream?event_id=evt-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	bus.Publish(events.Event{Source: events.SourcePlanner, Kind: events.KindTurnStart, Data: map[string]any{"event_id": "evt-2"}})
	bus.Publish(events.Event{Source: events.SourcePlanner, Kind: events.KindTurnComplete, Data: map[string]any{"event_id": "evt-1"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	if got.Kind != events.KindTurnComplete {
		t.Errorf("kind = %q, want the event filtered to evt-1", got.Kind)
	}
}
