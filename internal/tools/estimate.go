package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/places"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
)

const transportCategory = "Transportation"

func (r *Registry) handleEstimateRentalCosts(ctx context.Context, sc Scope, args map[string]any) Result {
	vehicle, _ := argString(args, "vehicle_type")
	bucket, ok := rental.Normalize(vehicle)
	if !ok {
		return failuref(EstimateRentalCosts, "unrecognized vehicle type %q: try car, SUV, minivan, 12- or 15-passenger van, shuttle bus, school bus, bus or coach", vehicle)
	}

	in := rental.Input{VehicleType: bucket, Days: 1}
	in.Passengers, _ = argInt(args, "passengers")
	if n, ok := argInt(args, "vehicles_count"); ok && n > 0 {
		in.Count = n
	} else {
		in.Count = r.rental.VehiclesFor(bucket, in.Passengers)
	}
	if n, ok := argInt(args, "days"); ok && n > 0 {
		in.Days = n
	} else if sc.Event != nil {
		in.Days = rental.DaySpan(sc.Event.StartDate, sc.Event.EndDate)
	}

	origin, ok := argString(args, "pickup")
	if !ok {
		origin = strings.TrimSpace(sc.OrganizationAddress)
	}
	dest, ok := argString(args, "destination")
	if !ok && sc.Event != nil {
		dest = strings.TrimSpace(sc.Event.Location)
	}
	var notes []string
	if origin != "" && dest != "" {
		miles, err := r.roundTripMiles(ctx, origin, dest)
		if err != nil {
			r.logger.Warn("round trip distance unavailable", "origin", origin, "destination", dest, "error", err)
			notes = append(notes, "Fuel not estimated: "+placesError(err))
		}
		in.RoundTripMiles = miles
	} else {
		notes = append(notes, "Fuel not estimated: need both a pickup address and a destination.")
	}

	est, err := r.rental.Estimate(in)
	if err != nil {
		return failure(EstimateRentalCosts, err)
	}

	out := map[string]any{"estimate": est}
	if origin != "" {
		out["pickup"] = origin
	}
	if dest != "" {
		out["destination"] = dest
	}
	if len(notes) > 0 {
		out["notes"] = notes
	}

	createBudget, explicit := argBool(args, "create_budget_item")
	if !explicit {
		createBudget, _ = sc.Session.Plan.PrefBool(session.PrefCreateBudgetItem)
	}
	if createBudget {
		items, err := r.upsertTransportBudget(ctx, sc.EventID, est)
		if err != nil {
			return failure(EstimateRentalCosts, err)
		}
		out["budget_items"] = items
	}

	sec := sc.Session.Plan.AppendItems(session.SectionTransportation, estimateItem(est))
	if sec.Summary == "" {
		sec.Summary = "Rental agencies and cost estimates"
	}
	return Result{Payload: out}
}

func (r *Registry) roundTripMiles(ctx context.Context, origin, dest string) (float64, error) {
	if r.places == nil {
		return 0, places.ErrNotConfigured
	}
	elems, err := r.places.DistanceMatrix(ctx, origin, []string{dest})
	if err != nil {
		return 0, err
	}
	if len(elems) == 0 || !elems[0].OK() {
		return 0, fmt.Errorf("no driving route from %q to %q", origin, dest)
	}
	return rental.MetersToMiles(elems[0].DistanceValue) * 2, nil
}

// upsertTransportBudget writes the rental line and, when fuel was
// estimated, the gas line. Existing lines for the same vehicle are
// updated rather than duplicated.
func (r *Registry) upsertTransportBudget(ctx context.Context, eventID string, est rental.Estimate) ([]store.BudgetItem, error) {
	var out []store.BudgetItem

	rentalItem := store.BudgetItem{
		Category:    transportCategory,
		Description: fmt.Sprintf("%s rental", rental.Label(est.VehicleType)),
		Qty:         float64(est.Days * est.VehiclesCount),
		UnitCost:    est.UnitCost,
		Notes: fmt.Sprintf("Estimated range $%.2f-$%.2f (%d x %d days at $%.0f-$%.0f/day)",
			est.TotalRange[0], est.TotalRange[1], est.VehiclesCount, est.Days, est.DailyRate.Low, est.DailyRate.High),
	}
	item, _, err := r.records.UpsertBudgetItem(ctx, eventID, rentalItem, func(b store.BudgetItem) bool {
		desc := strings.ToLower(b.Description)
		return strings.EqualFold(b.Category, transportCategory) &&
			!strings.Contains(desc, "gas") &&
			(strings.Contains(desc, "rental") || strings.Contains(desc, est.VehicleType))
	})
	if err != nil {
		return nil, fmt.Errorf("upsert rental budget item: %w", err)
	}
	out = append(out, item)

	if est.GasEstimate != nil {
		gasItem := store.BudgetItem{
			Category:    transportCategory,
			Description: fmt.Sprintf("Gas for %s", strings.ToLower(rental.Label(est.VehicleType))),
			Qty:         1,
			UnitCost:    *est.GasEstimate,
			Notes: fmt.Sprintf("%.0f round-trip miles at %.0f mpg, %d vehicle(s)",
				est.RoundTripMiles, est.MPG, est.VehiclesCount),
		}
		item, _, err := r.records.UpsertBudgetItem(ctx, eventID, gasItem, func(b store.BudgetItem) bool {
			return strings.EqualFold(b.Category, transportCategory) &&
				strings.Contains(strings.ToLower(b.Description), "gas")
		})
		if err != nil {
			return nil, fmt.Errorf("upsert gas budget item: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

func estimateItem(est rental.Estimate) session.Item {
	detail := fmt.Sprintf("$%.2f-$%.2f for %d day(s)", est.TotalRange[0], est.TotalRange[1], est.Days)
	if est.GasEstimate != nil {
		detail += fmt.Sprintf(", about $%.2f in gas", *est.GasEstimate)
	}
	meta := map[string]any{
		"vehicle_type":   est.VehicleType,
		"vehicles_count": est.VehiclesCount,
		"days":           est.Days,
		"total_range":    []float64{est.TotalRange[0], est.TotalRange[1]},
		"unit_cost":      est.UnitCost,
	}
	if est.GasEstimate != nil {
		meta["gas_estimate"] = *est.GasEstimate
		meta["round_trip_miles"] = est.RoundTripMiles
	}
	if len(est.Suggestions) > 0 {
		meta["suggestions"] = est.Suggestions
	}
	return session.Item{
		Label:  fmt.Sprintf("Rental estimate: %d x %s", est.VehiclesCount, rental.Label(est.VehicleType)),
		Detail: detail,
		Meta:   meta,
	}
}
