package tools

// Name identifies one tool of the closed catalog.
type Name string

// The tool catalog.
const (
	UpdateEventSpine      Name = "update_event_spine"
	UpdatePlanSection     Name = "update_plan_section"
	CreateTasks           Name = "create_tasks"
	CreateBudgetItems     Name = "create_budget_items"
	SetMissingItems       Name = "set_missing_items"
	AddParticipants       Name = "add_participants"
	FindRecommendedPlaces Name = "find_recommended_places"
	FindRentalAgencies    Name = "find_rental_agencies"
	EstimateRentalCosts   Name = "estimate_rental_costs"
)

// Catalog lists every tool in the order it is offered to the model.
var Catalog = []Name{
	UpdateEventSpine,
	UpdatePlanSection,
	CreateTasks,
	CreateBudgetItems,
	SetMissingItems,
	AddParticipants,
	FindRecommendedPlaces,
	FindRentalAgencies,
	EstimateRentalCosts,
}

// ParseName resolves a tool name received from outside (model output,
// persisted pending action). Unknown names report false.
func ParseName(s string) (Name, bool) {
	n := Name(s)
	if n.Valid() {
		return n, true
	}
	return "", false
}

// Valid reports whether n is part of the catalog.
func (n Name) Valid() bool {
	switch n {
	case UpdateEventSpine, UpdatePlanSection, CreateTasks, CreateBudgetItems,
		SetMissingItems, AddParticipants, FindRecommendedPlaces,
		FindRentalAgencies, EstimateRentalCosts:
		return true
	}
	return false
}

func (n Name) String() string { return string(n) }
