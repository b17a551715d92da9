package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
)

// spineFields are the event fields update_event_spine may change.
var spineFields = []string{
	"title", "start_date", "end_date", "location", "status",
	"budget_estimated_total", "budget_actual_total", "risk_level", "requires_approval",
}

func (r *Registry) handleUpdateEventSpine(ctx context.Context, sc Scope, args map[string]any) Result {
	raw, _ := argObject(args, "patch")

	var p store.EventPatch
	var ignored []string
	for key := range raw {
		if !slices.Contains(spineFields, key) {
			ignored = append(ignored, key)
		}
	}
	slices.Sort(ignored)

	if s, ok := argString(raw, "title"); ok {
		p.Title = &s
	}
	for _, key := range []string{"start_date", "end_date"} {
		s, ok := argString(raw, key)
		if !ok {
			continue
		}
		t, ok := parseDate(s)
		if !ok {
			return failure(UpdateEventSpine, &ValidationError{Path: "patch." + key, Reason: "expected YYYY-MM-DD or RFC 3339 date"})
		}
		if key == "start_date" {
			p.StartDate = &t
		} else {
			p.EndDate = &t
		}
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return failure(UpdateEventSpine, &ValidationError{Path: "patch.end_date", Reason: "is before start_date"})
	}
	if s, ok := argString(raw, "location"); ok {
		p.Location = &s
	}
	if s, ok := argString(raw, "status"); ok {
		p.Status = &s
	}
	if n, ok := argNumber(raw, "budget_estimated_total"); ok {
		p.BudgetEstimatedTotal = &n
	}
	if n, ok := argNumber(raw, "budget_actual_total"); ok {
		p.BudgetActualTotal = &n
	}
	if s, ok := argString(raw, "risk_level"); ok {
		p.RiskLevel = &s
	}
	if b, ok := argBool(raw, "requires_approval"); ok {
		p.RequiresApproval = &b
	}
	if p.Empty() {
		return failuref(UpdateEventSpine, "patch has no updatable fields (allowed: %s)", strings.Join(spineFields, ", "))
	}

	ev, err := r.records.PatchEvent(ctx, sc.EventID, p)
	if err != nil {
		return failure(UpdateEventSpine, err)
	}
	if sc.Event != nil {
		*sc.Event = *ev
	}
	out := map[string]any{"event": ev}
	if len(ignored) > 0 {
		out["ignored_fields"] = ignored
	}
	return Result{Payload: out}
}

func (r *Registry) handleUpdatePlanSection(_ context.Context, sc Scope, args map[string]any) Result {
	name, _ := argString(args, "section_name")
	if name == "" {
		return failure(UpdatePlanSection, &ValidationError{Path: "section_name", Reason: "must not be empty"})
	}
	raw, _ := argObject(args, "section_patch")

	var patch session.SectionPatch
	if s, ok := raw["summary"].(string); ok {
		patch.Summary = &s
	}
	if _, ok := raw["items"]; ok {
		patch.Items = []session.Item{}
		for _, it := range argObjects(raw, "items") {
			label, _ := argString(it, "label")
			detail, _ := argString(it, "detail")
			meta, _ := argObject(it, "meta")
			patch.Items = append(patch.Items, session.Item{Label: label, Detail: detail, Meta: meta})
		}
	}

	sec := sc.Session.Plan.UpsertSection(name, patch)
	return Result{Payload: map[string]any{"section": *sec}}
}

func (r *Registry) handleCreateTasks(ctx context.Context, sc Scope, args map[string]any) Result {
	var tasks []store.Task
	for i, raw := range argObjects(args, "tasks") {
		title, ok := argString(raw, "title")
		if !ok {
			return failure(CreateTasks, &ValidationError{Path: fmt.Sprintf("tasks[%d].title", i), Reason: "must not be empty"})
		}
		t := store.Task{Title: title}
		t.Description, _ = argString(raw, "description")
		t.Assignee, _ = argString(raw, "assignee")
		t.Status, _ = argString(raw, "status")
		if due, ok := argString(raw, "due_date"); ok {
			d, ok := parseDate(due)
			if !ok {
				return failure(CreateTasks, &ValidationError{Path: fmt.Sprintf("tasks[%d].due_date", i), Reason: "expected YYYY-MM-DD"})
			}
			t.DueDate = d.Format("2006-01-02")
		}
		tasks = append(tasks, t)
	}

	created, err := r.records.CreateTasks(ctx, sc.EventID, tasks)
	if err != nil {
		return failure(CreateTasks, err)
	}
	return Result{Payload: map[string]any{"created": len(created), "tasks": created}}
}

func (r *Registry) handleCreateBudgetItems(ctx context.Context, sc Scope, args map[string]any) Result {
	var items []store.BudgetItem
	for i, raw := range argObjects(args, "items") {
		desc, ok := argString(raw, "description")
		if !ok {
			return failure(CreateBudgetItems, &ValidationError{Path: fmt.Sprintf("items[%d].description", i), Reason: "must not be empty"})
		}
		b := store.BudgetItem{Description: desc, Qty: 1}
		b.Category, _ = argString(raw, "category")
		b.Notes, _ = argString(raw, "notes")
		if q, ok := argNumber(raw, "qty"); ok && q > 0 {
			b.Qty = q
		}
		b.UnitCost, _ = argNumber(raw, "unit_cost")
		items = append(items, b)
	}

	created, err := r.records.CreateBudgetItems(ctx, sc.EventID, items)
	if err != nil {
		return failure(CreateBudgetItems, err)
	}
	var total float64
	for _, b := range created {
		total += b.Total()
	}
	return Result{Payload: map[string]any{"created": len(created), "items": created, "total": total}}
}

func (r *Registry) handleSetMissingItems(_ context.Context, sc Scope, args map[string]any) Result {
	items := argStrings(args, "items")
	sc.Session.MissingItems = items
	return Result{Payload: map[string]any{"missing_items": items, "count": len(items)}}
}

func (r *Registry) handleAddParticipants(ctx context.Context, sc Scope, args map[string]any) Result {
	var ps []store.Participant
	for i, raw := range argObjects(args, "participants") {
		name, ok := argString(raw, "name")
		if !ok {
			return failure(AddParticipants, &ValidationError{Path: fmt.Sprintf("participants[%d].name", i), Reason: "must not be empty"})
		}
		p := store.Participant{Name: name}
		if role, ok := argString(raw, "role"); ok {
			p.Role = strings.ToLower(role)
		}
		if status, ok := argString(raw, "status"); ok {
			p.Status = strings.ToLower(status)
		}
		p.IsMinor, _ = argBool(raw, "is_minor")
		p.NeedsTransport, _ = argBool(raw, "needs_transport")
		p.PermissionReceived, _ = argBool(raw, "permission_received")
		p.MedicalFormReceived, _ = argBool(raw, "medical_form_received")
		ps = append(ps, p)
	}

	created, err := r.records.AddParticipants(ctx, sc.EventID, ps)
	if err != nil {
		return failure(AddParticipants, err)
	}
	return Result{Payload: map[string]any{"created": len(created), "participants": created}}
}
