package session

import "testing"

func TestUpsertSection_MergesByName(t *testing.T) {
	var p Plan
	first := "Day one"
	p.UpsertSection("Itinerary", SectionPatch{Summary: &first, Items: []Item{{Label: "Arrive"}}})

	second := "Day one and two"
	p.UpsertSection("itinerary ", SectionPatch{Summary: &second})

	if len(p.Sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(p.Sections))
	}
	s := p.Sections[0]
	if s.Summary != second {
		t.Errorf("summary = %q, want %q", s.Summary, second)
	}
	if len(s.Items) != 1 || s.Items[0].Label != "Arrive" {
		t.Errorf("items = %+v, want untouched", s.Items)
	}
}

func TestAppendItems(t *testing.T) {
	var p Plan
	p.AppendItems(SectionTransportation, Item{Label: "Bus"})
	p.AppendItems(SectionTransportation, Item{Label: "Van"})
	s, ok := p.Section(SectionTransportation)
	if !ok || len(s.Items) != 2 {
		t.Fatalf("section = %+v, ok = %v", s, ok)
	}
}

func TestPendingPlaceIntent(t *testing.T) {
	var p Plan
	p.SetPendingPlaceIntent("find parks")
	if p.PendingPlace() != "find parks" {
		t.Errorf("PendingPlace = %q", p.PendingPlace())
	}
	p.SetPendingPlaceIntent("")
	if p.PendingPlaceIntent != nil {
		t.Error("marker should be cleared")
	}
}

func TestPreferences(t *testing.T) {
	var p Plan
	if _, ok := p.PrefBool(PrefCreateBudgetItem); ok {
		t.Error("unset preference reported as set")
	}
	p.SetPref(PrefCreateBudgetItem, true)
	if v, ok := p.PrefBool(PrefCreateBudgetItem); !ok || !v {
		t.Errorf("PrefBool = %v, %v", v, ok)
	}
}

func TestUserTurnsAndSeed(t *testing.T) {
	s := New("ev1")
	s.Append(Turn{Role: RoleUser, Content: "hi"})
	s.Append(Turn{Role: RoleAssistant, Content: "hello"})
	s.Append(Turn{Role: RoleUser, Content: "plan a camp"})
	if got := s.UserTurns(); got != 2 {
		t.Errorf("UserTurns = %d, want 2", got)
	}
	if s.Conversation[0].At.IsZero() {
		t.Error("turn time not stamped")
	}

	if !s.SeedMissingItems("Summer Camp") {
		t.Fatal("expected seeding on empty checklist")
	}
	if len(s.MissingItems) == 0 || s.MissingItems[0] != "Campsite reservation confirmed" {
		t.Errorf("missing items = %v", s.MissingItems)
	}
	if s.SeedMissingItems("trip") {
		t.Error("seeding must not replace an existing checklist")
	}
}

func TestDefaultChecklist_ReturnsCopy(t *testing.T) {
	a := DefaultChecklist("unknown")
	a[0] = "changed"
	if b := DefaultChecklist("unknown"); b[0] == "changed" {
		t.Error("DefaultChecklist must not share backing storage")
	}
}
