package prompts

import (
	"strings"
	"testing"
	"time"
)

func TestPlannerSystemPrompt(t *testing.T) {
	result := PlannerSystemPrompt(SystemInput{
		Today:               time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EventID:             "evt-123",
		OrganizationAddress: "100 Club Ave, Orlando FL",
		Event:               map[string]any{"title": "Spring Campout"},
		MissingItems:        []string{"Medical forms"},
	})

	for _, want := range []string{"evt-123", "Monday, March 2, 2026", "100 Club Ave", "Spring Campout", "Medical forms"} {
		if !strings.Contains(result, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
	if strings.Contains(result, "Document Request") {
		t.Error("document instructions should only appear in document mode")
	}
	if strings.Contains(result, "## Preferences") {
		t.Error("empty preferences should be omitted")
	}
}

func TestPlannerSystemPrompt_DocumentMode(t *testing.T) {
	result := PlannerSystemPrompt(SystemInput{EventID: "evt-1", DocumentMode: true})
	if !strings.Contains(result, "Tools are disabled") {
		t.Error("document mode should say tools are disabled")
	}
	if !strings.Contains(result, "unknown") {
		t.Error("missing organization address should be called out")
	}
}

func TestToolGuidance(t *testing.T) {
	for _, tool := range []string{
		"create_tasks", "create_budget_items", "add_participants", "set_missing_items",
		"find_rental_agencies", "estimate_rental_costs", "find_recommended_places",
		"update_event_spine", "update_plan_section",
	} {
		if ToolGuidance(tool) == "" {
			t.Errorf("no guidance for %s", tool)
		}
	}
	if ToolGuidance("launch_rocket") != "" {
		t.Error("unknown tool should have no guidance")
	}
}
