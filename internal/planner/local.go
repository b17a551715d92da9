package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/events"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/intent"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/prompts"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/tools"
)

// classification is what the local heuristics say about a message.
type classification struct {
	document       bool
	nonPlace       bool
	placeIntent    bool
	hasLocation    bool
	pendingPlace   string
	abandonPending bool
	inferred       tools.Name
	hasInferred    bool
}

func (c classification) suppressed() bool { return c.document || c.nonPlace }

func classify(msg, pendingPlace string) classification {
	c := classification{
		document: intent.IsDocumentRequest(msg),
		nonPlace: intent.IsNonPlaceRequest(msg),
	}
	c.inferred, c.hasInferred = intent.InferToolIntent(msg)
	_, hasRadius := intent.ExtractRadiusKm(msg)
	c.hasLocation = intent.LooksLikeAddress(msg) || intent.ExtractLocationHint(msg) != "" || hasRadius
	if c.suppressed() {
		return c
	}

	c.placeIntent = intent.DetectPlaceIntent(msg)
	if !c.placeIntent && pendingPlace != "" {
		if c.hasLocation {
			c.pendingPlace = pendingPlace
		} else {
			c.abandonPending = true
		}
	}
	return c
}

// locationFrom picks the search address a message supplies: an address
// after "near"/"in"/"at", the whole message when it is an address, or
// a city/state/ZIP hint. An empty result means the organization's
// address.
func locationFrom(msg string) string {
	if phrase := intent.ExtractAddressPhrase(msg); phrase != "" {
		return phrase
	}
	if intent.LooksLikeAddress(msg) && !intent.DetectPlaceIntent(msg) {
		return strings.TrimRight(strings.TrimSpace(msg), ".?!")
	}
	return intent.ExtractLocationHint(msg)
}

func (p *Planner) publishLocal(t *turn, path string, tool tools.Name) {
	p.bus.Publish(events.Event{
		Source: events.SourcePlanner,
		Kind:   events.KindLocalResolve,
		Data:   map[string]any{"event_id": t.event.ID, "path": path, "tool": string(tool)},
	})
}

// resolvePlace runs a venue search straight from the message (or the
// pending place request it completes). No remote call is made.
func (p *Planner) resolvePlace(ctx context.Context, t *turn, c classification) string {
	msg := t.req.Message
	source := msg
	if !c.placeIntent {
		source = c.pendingPlace
	}

	keyword := intent.PlaceKeyword(source)
	if keyword == "" {
		keyword = source
	}
	args := map[string]any{"event_id": t.event.ID, "intent": keyword}
	if addr := locationFrom(msg); addr != "" {
		args["address"] = addr
	}
	if km, ok := intent.ExtractRadiusKm(msg); ok {
		args["radius_km"] = km
	} else if km, ok := intent.ExtractRadiusKm(source); ok {
		args["radius_km"] = km
	}
	if n, ok := intent.ExtractRequestedCount(msg); ok {
		args["max_results"] = n
	} else if n, ok := intent.ExtractRequestedCount(source); ok {
		args["max_results"] = n
	}

	p.publishLocal(t, PathPlace, tools.FindRecommendedPlaces)
	res := p.tools.Run(ctx, t.scope, tools.FindRecommendedPlaces, args)

	var text string
	switch {
	case !res.OK():
		t.sess.Plan.SetPendingPlaceIntent(source)
		text = fmt.Sprintf("I couldn't search for %s: %s\n\n%s", keyword, res.Error, prompts.ToolGuidance(string(tools.FindRecommendedPlaces)))
	case len(res.Places) == 0:
		t.sess.Plan.SetPendingPlaceIntent(source)
		text = fmt.Sprintf("I couldn't find any %s near %s. Try another city or ZIP code, or a wider radius like \"within 50 miles\".",
			keyword, payloadString(res, "address_used"))
	default:
		t.sess.Plan.SetPendingPlaceIntent("")
		text = fmt.Sprintf("I found %d recommended places for %s near %s:\n\n%s\n\nI saved them in the %s section of the plan.",
			len(res.Places), keyword, payloadString(res, "address_used"), placeList(res.Places), session.SectionRecommendations)
	}
	p.appendAssistant(t, text, &res)
	return text
}

// resolvePendingAction tries to run the pending tool from the details
// in the message. It reports false when the message does not carry
// what the tool needs. Document words in an answer ("Collect
// permission slips") do not stop it.
func (p *Planner) resolvePendingAction(ctx context.Context, t *turn, pa *session.PendingAction) (string, bool) {
	name, ok := tools.ParseName(pa.Tool)
	if !ok {
		p.logger.Warn("dropping unknown pending action", "event_id", t.event.ID, "tool", pa.Tool)
		t.sess.Plan.PendingAction = nil
		return "", false
	}

	args, ok := p.pendingArgs(name, t.req.Message, pa.LastPrompt)
	if !ok {
		return "", false
	}
	args["event_id"] = t.event.ID

	p.publishLocal(t, PathPendingAction, name)
	res := p.tools.Run(ctx, t.scope, name, args)
	text := describe(res)
	if res.OK() {
		t.sess.Plan.PendingAction = nil
	} else if g := prompts.ToolGuidance(string(name)); g != "" {
		text += "\n\n" + g
	}
	p.appendAssistant(t, text, &res)
	return text, true
}

// pendingArgs builds tool arguments for a pending action from a
// follow-up message. Spine and plan-section edits need the model and
// never resolve here.
func (p *Planner) pendingArgs(name tools.Name, msg, lastPrompt string) (map[string]any, bool) {
	switch name {
	case tools.CreateTasks:
		titles := intent.ParseListItems(msg)
		if len(titles) == 0 {
			return nil, false
		}
		return map[string]any{"tasks": lo.Map(titles, func(s string, _ int) map[string]any {
			return map[string]any{"title": s}
		})}, true

	case tools.CreateBudgetItems:
		lines := intent.ParseBudgetItems(msg)
		if len(lines) == 0 {
			return nil, false
		}
		return map[string]any{"items": lo.Map(lines, func(l intent.BudgetLine, _ int) map[string]any {
			item := map[string]any{"description": l.Description, "qty": max(l.Qty, 1)}
			if l.HasAmount {
				item["unit_cost"] = l.Amount
			}
			return item
		})}, true

	case tools.AddParticipants:
		people := intent.ParseParticipants(msg)
		if len(people) == 0 {
			return nil, false
		}
		return map[string]any{"participants": lo.Map(people, func(pl intent.ParticipantLine, _ int) map[string]any {
			return map[string]any{"name": pl.Name, "role": pl.Role, "status": pl.Status}
		})}, true

	case tools.SetMissingItems:
		items := intent.ParseListItems(msg)
		if len(items) == 0 {
			return nil, false
		}
		return map[string]any{"items": items}, true

	case tools.FindRentalAgencies, tools.FindRecommendedPlaces:
		addr := locationFrom(msg)
		if addr == "" {
			return nil, false
		}
		args := map[string]any{"address": addr}
		if km, ok := intent.ExtractRadiusKm(msg); ok {
			args["radius_km"] = km
		}
		if name == tools.FindRentalAgencies {
			d := intent.ExtractRentalDetailsWith(lastPrompt+"\n"+msg, p.rental)
			if d.VehicleType != "" {
				args["vehicle_type"] = d.VehicleType
			}
			return args, true
		}
		kw := intent.PlaceKeyword(lastPrompt)
		if kw == "" {
			kw = "places"
		}
		args["intent"] = kw
		return args, true

	case tools.EstimateRentalCosts:
		args, ok := p.rentalArgs(msg)
		return args, ok
	}
	return nil, false
}

// rentalArgs builds estimate_rental_costs arguments from a message, or
// reports false when no vehicle type is named.
func (p *Planner) rentalArgs(msg string) (map[string]any, bool) {
	d := intent.ExtractRentalDetailsWith(msg, p.rental)
	if d.VehicleType == "" {
		return nil, false
	}
	args := map[string]any{"vehicle_type": d.VehicleType, "vehicles_count": d.VehiclesCount}
	if d.Passengers > 0 {
		args["passengers"] = d.Passengers
	}
	if d.Days > 0 {
		args["days"] = d.Days
	}
	if dest := intent.ExtractDestination(msg); dest != "" {
		args["destination"] = dest
	}
	return args, true
}

// resolveRentalEstimate answers a rental cost question locally when the
// message names a vehicle.
func (p *Planner) resolveRentalEstimate(ctx context.Context, t *turn) (string, bool) {
	args, ok := p.rentalArgs(t.req.Message)
	if !ok {
		return "", false
	}
	args["event_id"] = t.event.ID

	p.publishLocal(t, PathRentalEstimate, tools.EstimateRentalCosts)
	res := p.tools.Run(ctx, t.scope, tools.EstimateRentalCosts, args)
	if pa := t.sess.Plan.PendingAction; res.OK() && pa != nil && pa.Tool == string(tools.EstimateRentalCosts) {
		t.sess.Plan.PendingAction = nil
	}
	text := describe(res)
	p.appendAssistant(t, text, &res)
	return text, true
}

func payloadString(res tools.Result, key string) string {
	m, _ := res.Payload.(map[string]any)
	s, _ := m[key].(string)
	return s
}
