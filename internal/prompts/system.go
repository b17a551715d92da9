package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// baseSystemTemplate frames every planning request. The format verbs
// are today's date and the active event ID.
const baseSystemTemplate = `You are an event planning assistant for a youth club. You help leaders plan trips, camps and outings by editing the event plan with the tools provided.

Today is %s. The active event ID is %s. Every tool call must pass this exact event_id.

## When to Use Tools
- Use a tool only when the leader asks you to add or change something.
- create_tasks, create_budget_items and add_participants always add new records; never repeat a call that already succeeded.
- update_plan_section replaces the named section; include every item the section should keep.
- set_missing_items replaces the whole checklist.
- find_recommended_places and find_rental_agencies search near the organization's address unless an address is given.
- If a detail is missing, ask one short question instead of guessing.

## Rules
- Keep replies short and practical. Use Markdown lists for multiple items.
- Never invent prices, phone numbers or addresses; use tool results.
- Tool results arrive as JSON. If a result has an "error", explain it plainly and suggest a fix.`

// documentTemplate replaces the tool section when the leader asks for
// a document.
const documentTemplate = `

## Document Request
The leader wants a document (letter, form, waiver or notice). Tools are disabled for this reply. Write the complete document in Markdown, ready to print, using the event details below. Leave blanks like ________ for anything unknown.`

// SystemInput is the event context given to the model.
type SystemInput struct {
	Today               time.Time
	EventID             string
	OrganizationAddress string
	Event               any
	Plan                any
	MissingItems        []string
	Tasks               any
	BudgetItems         any
	Participants        any
	Preferences         map[string]any
	DocumentMode        bool
}

// PlannerSystemPrompt renders the system message for one planning
// request.
func PlannerSystemPrompt(in SystemInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, baseSystemTemplate, in.Today.Format("Monday, January 2, 2006"), in.EventID)
	if in.DocumentMode {
		sb.WriteString(documentTemplate)
	}

	sb.WriteString("\n\n## Organization\n")
	if in.OrganizationAddress != "" {
		sb.WriteString("Home address: " + in.OrganizationAddress + "\n")
	} else {
		sb.WriteString("Home address: unknown (ask for an address before searching for places)\n")
	}

	section(&sb, "Event", in.Event)
	section(&sb, "Plan", in.Plan)
	section(&sb, "Missing Items", in.MissingItems)
	section(&sb, "Recent Tasks", in.Tasks)
	section(&sb, "Recent Budget Items", in.BudgetItems)
	section(&sb, "Recent Participants", in.Participants)
	if len(in.Preferences) > 0 {
		section(&sb, "Preferences", in.Preferences)
	}
	return sb.String()
}

func section(sb *strings.Builder, title string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		b = []byte(fmt.Sprintf("%q", "unavailable: "+err.Error()))
	}
	fmt.Fprintf(sb, "\n## %s\n```json\n%s\n```\n", title, b)
}
