package planner

import (
	"fmt"
	"strings"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/tools"
)

// placeList renders shaped places as a Markdown bullet list.
func placeList(ps []tools.ShapedPlace) string {
	var sb strings.Builder
	for i, p := range ps {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "- **%s**", p.Name)
		if p.Rating > 0 {
			fmt.Fprintf(&sb, " (%.1f stars, %d reviews)", p.Rating, p.UserRatingsTotal)
		}
		if p.Address != "" {
			sb.WriteString(" - " + p.Address)
		}
		if p.DistanceText != "" {
			fmt.Fprintf(&sb, " - %s, %s", p.DistanceText, p.DurationText)
		}
		if p.Phone != "" {
			sb.WriteString(" - " + p.Phone)
		}
	}
	return sb.String()
}

// describe summarizes a locally executed tool for the user.
func describe(res tools.Result) string {
	if !res.OK() {
		return fmt.Sprintf("I couldn't run %s: %s", res.Tool, res.Error)
	}
	m, _ := res.Payload.(map[string]any)

	switch res.Tool {
	case tools.CreateTasks:
		ts, _ := m["tasks"].([]store.Task)
		return bulletReply(fmt.Sprintf("Added %d task%s:", len(ts), plural(len(ts))), len(ts), func(i int) string {
			if ts[i].DueDate != "" {
				return fmt.Sprintf("%s (due %s)", ts[i].Title, ts[i].DueDate)
			}
			return ts[i].Title
		})

	case tools.CreateBudgetItems:
		items, _ := m["items"].([]store.BudgetItem)
		total, _ := m["total"].(float64)
		text := bulletReply(fmt.Sprintf("Added %d budget item%s:", len(items), plural(len(items))), len(items), func(i int) string {
			b := items[i]
			if b.UnitCost == 0 {
				return fmt.Sprintf("%s (cost to be confirmed)", b.Description)
			}
			return fmt.Sprintf("%s: %s x $%.2f = $%.2f", b.Description, trimFloat(b.Qty), b.UnitCost, b.Total())
		})
		return text + fmt.Sprintf("\n\nTotal added: $%.2f", total)

	case tools.AddParticipants:
		ps, _ := m["participants"].([]store.Participant)
		return bulletReply(fmt.Sprintf("Added %d participant%s:", len(ps), plural(len(ps))), len(ps), func(i int) string {
			parts := []string{ps[i].Name}
			if ps[i].Role != "" {
				parts = append(parts, ps[i].Role)
			}
			if ps[i].Status != "" {
				parts = append(parts, ps[i].Status)
			}
			return strings.Join(parts, " - ")
		})

	case tools.SetMissingItems:
		items, _ := m["missing_items"].([]string)
		return bulletReply("Updated the missing items checklist:", len(items), func(i int) string { return items[i] })

	case tools.FindRecommendedPlaces, tools.FindRentalAgencies:
		if len(res.Places) == 0 {
			return fmt.Sprintf("I didn't find any matches near %s.", m["address_used"])
		}
		return fmt.Sprintf("Here is what I found near %s:\n\n%s", m["address_used"], placeList(res.Places))

	case tools.EstimateRentalCosts:
		return describeEstimate(m)
	}
	return fmt.Sprintf("Done: %s.", res.Tool)
}

func describeEstimate(m map[string]any) string {
	est, ok := m["estimate"].(rental.Estimate)
	if !ok {
		return "The rental estimate is ready."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Estimated rental for %d x %s over %d day%s: $%.2f - $%.2f (about $%.2f per vehicle per day).",
		est.VehiclesCount, rental.Label(est.VehicleType), est.Days, plural(est.Days),
		est.TotalRange[0], est.TotalRange[1], est.UnitCost)
	if est.GasEstimate != nil {
		fmt.Fprintf(&sb, "\nGas for about %.0f round-trip miles: $%.2f.", est.RoundTripMiles, *est.GasEstimate)
	}
	for _, s := range est.Suggestions {
		sb.WriteString("\n" + s)
	}
	if notes, _ := m["notes"].([]string); len(notes) > 0 {
		sb.WriteString("\n" + strings.Join(notes, "\n"))
	}
	if items, _ := m["budget_items"].([]store.BudgetItem); len(items) > 0 {
		fmt.Fprintf(&sb, "\n\nI updated %d transportation line%s in the budget.", len(items), plural(len(items)))
	}
	return sb.String()
}

func bulletReply(header string, n int, line func(i int) string) string {
	var sb strings.Builder
	sb.WriteString(header)
	for i := range n {
		sb.WriteString("\n- " + line(i))
	}
	return sb.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
