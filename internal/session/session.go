// Package session defines the per-event planning session: the plan
// document, the missing-items checklist, the conversation turns and
// the two resumable markers (pending place intent, pending action).
//
// A Session is plain data. The orchestrator loads it, mutates it in
// memory for one turn and hands it back to the store in a single save.
package session

import (
	"strings"
	"time"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/llm"
)

// Turn roles.
const (
	RoleUser      = llm.RoleUser
	RoleAssistant = llm.RoleAssistant
	RoleTool      = llm.RoleTool
)

// Preference keys.
const (
	PrefCreateBudgetItem = "create_budget_item"
)

// Well-known section names.
const (
	SectionRecommendations = "Recommendations"
	SectionTransportation  = "Transportation Options"
)

// Item is one entry of a plan section. Meta is passthrough data from
// the places provider or the model and is never interpreted here.
type Item struct {
	Label  string         `json:"label"`
	Detail string         `json:"detail,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Section is a named part of the plan.
type Section struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
	Items   []Item `json:"items"`
}

// SectionPatch updates a section. A nil Summary or Items leaves that
// field unchanged.
type SectionPatch struct {
	Summary *string
	Items   []Item
}

// PendingAction is a tool the planner intends to run once the user
// supplies the missing details.
type PendingAction struct {
	Tool        string    `json:"tool"`
	RequestedAt time.Time `json:"requested_at"`
	LastPrompt  string    `json:"last_prompt,omitempty"`
}

// Plan is the structured plan document.
type Plan struct {
	Sections           []Section      `json:"sections"`
	Preferences        map[string]any `json:"preferences,omitempty"`
	PendingPlaceIntent *string        `json:"pending_place_intent"`
	PendingAction      *PendingAction `json:"pending_action"`
}

// Section returns the section with the given name (case-insensitive).
func (p *Plan) Section(name string) (*Section, bool) {
	name = strings.TrimSpace(name)
	for i := range p.Sections {
		if strings.EqualFold(p.Sections[i].Name, name) {
			return &p.Sections[i], true
		}
	}
	return nil, false
}

// UpsertSection applies patch to the named section, appending a new
// section when none matches.
func (p *Plan) UpsertSection(name string, patch SectionPatch) *Section {
	s, ok := p.Section(name)
	if !ok {
		p.Sections = append(p.Sections, Section{Name: strings.TrimSpace(name), Items: []Item{}})
		s = &p.Sections[len(p.Sections)-1]
	}
	if patch.Summary != nil {
		s.Summary = *patch.Summary
	}
	if patch.Items != nil {
		s.Items = patch.Items
	}
	return s
}

// AppendItems adds items to the end of the named section, creating it
// if needed.
func (p *Plan) AppendItems(name string, items ...Item) *Section {
	s := p.UpsertSection(name, SectionPatch{})
	s.Items = append(s.Items, items...)
	return s
}

// PrefBool reads a boolean preference. The second result is false when
// the preference is unset or not a boolean.
func (p *Plan) PrefBool(key string) (bool, bool) {
	v, ok := p.Preferences[key].(bool)
	return v, ok
}

// SetPref stores a preference flag.
func (p *Plan) SetPref(key string, v any) {
	if p.Preferences == nil {
		p.Preferences = map[string]any{}
	}
	p.Preferences[key] = v
}

// SetPendingPlaceIntent arms the place-intent marker with the request
// text; an empty text clears it.
func (p *Plan) SetPendingPlaceIntent(text string) {
	if text == "" {
		p.PendingPlaceIntent = nil
		return
	}
	p.PendingPlaceIntent = &text
}

// PendingPlace returns the armed place-intent text, or "".
func (p *Plan) PendingPlace() string {
	if p.PendingPlaceIntent == nil {
		return ""
	}
	return *p.PendingPlaceIntent
}

// Turn is one message of the conversation.
type Turn struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []llm.ToolCall   `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Places     []map[string]any `json:"places,omitempty"`
	At         time.Time        `json:"at"`
}

// Session is the persisted planning state of one event.
type Session struct {
	ID              string     `json:"id"`
	EventID         string     `json:"event_id"`
	Plan            Plan       `json:"plan"`
	MissingItems    []string   `json:"missing_items"`
	Conversation    []Turn     `json:"conversation"`
	LastGeneratedAt *time.Time `json:"last_generated_at,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// New returns an empty session for an event.
func New(eventID string) *Session {
	return &Session{
		EventID:      eventID,
		Plan:         Plan{Sections: []Section{}},
		MissingItems: []string{},
		Conversation: []Turn{},
	}
}

// Append adds a turn, stamping its time if unset.
func (s *Session) Append(t Turn) {
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	s.Conversation = append(s.Conversation, t)
}

// UserTurns counts the user turns in the conversation.
func (s *Session) UserTurns() int {
	n := 0
	for _, t := range s.Conversation {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

// SeedMissingItems fills an empty checklist with the default list for
// the event type. It reports whether anything was seeded.
func (s *Session) SeedMissingItems(eventType string) bool {
	if len(s.MissingItems) > 0 {
		return false
	}
	s.MissingItems = DefaultChecklist(eventType)
	return true
}

var checklists = map[string][]string{
	"camp": {
		"Campsite reservation confirmed",
		"Signed permission slips and medical releases",
		"Tents and sleeping gear list",
		"Meal plan and food shopping list",
		"First aid kit and certified first aider",
		"Transportation and drivers",
		"Emergency contact sheet",
	},
	"trip": {
		"Transportation booked",
		"Signed permission slips",
		"Itinerary shared with parents",
		"Chaperone ratio confirmed",
		"Emergency contact sheet",
		"Budget approved",
	},
	"outing": {
		"Venue confirmed",
		"Signed permission slips",
		"Transportation or meeting point",
		"Snacks and water",
		"Chaperones assigned",
	},
	"service": {
		"Partner organization contact confirmed",
		"Supplies and tools list",
		"Signed permission slips",
		"Service hours sign-in sheet",
		"Transportation",
	},
	"default": {
		"Date and venue confirmed",
		"Budget approved",
		"Participants invited",
		"Permission slips collected",
		"Emergency contact sheet",
	},
}

// DefaultChecklist returns a copy of the seed checklist for an event
// type, falling back to the generic list.
func DefaultChecklist(eventType string) []string {
	key := strings.ToLower(strings.TrimSpace(eventType))
	switch {
	case strings.Contains(key, "camp"):
		key = "camp"
	case strings.Contains(key, "trip"), strings.Contains(key, "excursion"):
		key = "trip"
	case strings.Contains(key, "outing"), strings.Contains(key, "activity"):
		key = "outing"
	case strings.Contains(key, "service"):
		key = "service"
	default:
		key = "default"
	}
	return append([]string(nil), checklists[key]...)
}
