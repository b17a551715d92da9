package prompts

// toolGuidance asks the user for the details a tool needs. Keys are
// tool names.
var toolGuidance = map[string]string{
	"create_tasks":            "Which tasks should I add? List them separated by commas or on separate lines, for example: Reserve campsite, Collect permission slips, Buy snacks.",
	"create_budget_items":     "Which budget items should I add? Give one per line with a cost, for example: Campsite fee $45; 2 x Tents $120.",
	"add_participants":        "Who should I add? Give one person per line as Name - role - status, for example: Ana Ruiz - counselor - confirmed.",
	"set_missing_items":       "What's still missing? List the items separated by commas or on separate lines and I'll replace the checklist.",
	"find_rental_agencies":    "Where should I look for rental agencies? Send a city, ZIP code or street address, and optionally a radius like \"within 20 miles\".",
	"estimate_rental_costs":   "What kind of vehicle do you need? For example: two 15-passenger vans for 3 days, or a bus for 40 kids.",
	"find_recommended_places": "Where should I search? Send a city, ZIP code or street address, and optionally a radius like \"within 30 miles\".",
	"update_event_spine":      "What should I change on the event? You can set the title, dates, location, status, budget totals, risk level or approval flag.",
	"update_plan_section":     "Which part of the plan should I update (itinerary, meals, packing list, logistics), and what should it say?",
}

// ToolGuidance returns the follow-up question for a tool whose details
// are missing, or "" for an unknown tool.
func ToolGuidance(tool string) string {
	return toolGuidance[tool]
}
