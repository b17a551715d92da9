package tools

import "github.com/sashabaranov/go-openai/jsonschema"

func eventIDProp() jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.String,
		Description: "ID of the event being planned. Must be the active event.",
	}
}

func str(desc string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: desc}
}

var (
	number  = jsonschema.Definition{Type: jsonschema.Number}
	integer = jsonschema.Definition{Type: jsonschema.Integer}
	boolean = jsonschema.Definition{Type: jsonschema.Boolean}
)

func (r *Registry) registerBuiltins() {
	r.register(&Tool{
		Name:        UpdateEventSpine,
		Description: "Update core event fields: title, dates, location, status, budget totals, risk level or the approval flag. Other fields are ignored.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id": eventIDProp(),
				"patch": {
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"title":                  str(""),
						"start_date":             str("YYYY-MM-DD or RFC 3339"),
						"end_date":               str("YYYY-MM-DD or RFC 3339"),
						"location":               str(""),
						"status":                 {Type: jsonschema.String, Enum: []string{"draft", "planning", "approved", "confirmed", "completed", "cancelled"}},
						"budget_estimated_total": number,
						"budget_actual_total":    number,
						"risk_level":             {Type: jsonschema.String, Enum: []string{"low", "medium", "high"}},
						"requires_approval":      boolean,
					},
				},
			},
			Required: []string{"event_id", "patch"},
		},
		Limits: Limits{
			Min: map[string]float64{"budget_estimated_total": 0, "budget_actual_total": 0},
		},
		handler: r.handleUpdateEventSpine,
	})

	r.register(&Tool{
		Name:        UpdatePlanSection,
		Description: "Create or update a named section of the event plan (itinerary, meals, packing list, logistics). A section with the same name is updated in place.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id":     eventIDProp(),
				"section_name": str(""),
				"section_patch": {
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"summary": str(""),
						"items": {
							Type: jsonschema.Array,
							Items: &jsonschema.Definition{
								Type: jsonschema.Object,
								Properties: map[string]jsonschema.Definition{
									"label":  str(""),
									"detail": str(""),
									"meta":   {Type: jsonschema.Object},
								},
								Required: []string{"label"},
							},
						},
					},
				},
			},
			Required: []string{"event_id", "section_name", "section_patch"},
		},
		handler: r.handleUpdatePlanSection,
	})

	r.register(&Tool{
		Name:        CreateTasks,
		Description: "Create one or more tasks for the event.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id": eventIDProp(),
				"tasks": {
					Type: jsonschema.Array,
					Items: &jsonschema.Definition{
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"title":       str(""),
							"description": str(""),
							"due_date":    str("YYYY-MM-DD"),
							"assignee":    str(""),
							"status":      {Type: jsonschema.String, Enum: []string{"todo", "in_progress", "done"}},
						},
						Required: []string{"title"},
					},
				},
			},
			Required: []string{"event_id", "tasks"},
		},
		Limits:  Limits{MinItems: map[string]int{"tasks": 1}},
		handler: r.handleCreateTasks,
	})

	r.register(&Tool{
		Name:        CreateBudgetItems,
		Description: "Add line items to the event budget.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id": eventIDProp(),
				"items": {
					Type: jsonschema.Array,
					Items: &jsonschema.Definition{
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"description": str(""),
							"category":    str(""),
							"qty":         number,
							"unit_cost":   number,
							"notes":       str(""),
						},
						Required: []string{"description"},
					},
				},
			},
			Required: []string{"event_id", "items"},
		},
		Limits: Limits{
			Min:      map[string]float64{"qty": 0, "unit_cost": 0},
			MinItems: map[string]int{"items": 1},
		},
		handler: r.handleCreateBudgetItems,
	})

	r.register(&Tool{
		Name:        SetMissingItems,
		Description: "Replace the event's missing-items checklist with the given list.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id": eventIDProp(),
				"items": {
					Type:  jsonschema.Array,
					Items: &jsonschema.Definition{Type: jsonschema.String},
				},
			},
			Required: []string{"event_id", "items"},
		},
		handler: r.handleSetMissingItems,
	})

	r.register(&Tool{
		Name:        AddParticipants,
		Description: "Add people to the event roster.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id": eventIDProp(),
				"participants": {
					Type: jsonschema.Array,
					Items: &jsonschema.Definition{
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"name":                  str(""),
							"role":                  str(""),
							"status":                str(""),
							"is_minor":              boolean,
							"needs_transport":       boolean,
							"permission_received":   boolean,
							"medical_form_received": boolean,
						},
						Required: []string{"name"},
					},
				},
			},
			Required: []string{"event_id", "participants"},
		},
		Limits:  Limits{MinItems: map[string]int{"participants": 1}},
		handler: r.handleAddParticipants,
	})

	r.register(&Tool{
		Name:        FindRecommendedPlaces,
		Description: "Search for venues (campgrounds, parks, restaurants, museums) near an address, defaulting to the organization's address, and save them to the Recommendations section.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id":         eventIDProp(),
				"intent":           str(`What to look for, e.g. "campgrounds"`),
				"address":          str("Where to search; defaults to the organization address"),
				"radius_km":        integer,
				"max_results":      integer,
				"min_rating":       number,
				"include_distance": boolean,
			},
			Required: []string{"event_id", "intent"},
		},
		Limits: Limits{
			Min: map[string]float64{"radius_km": 1, "max_results": 1, "min_rating": 0},
		},
		handler: r.handleFindRecommendedPlaces,
	})

	r.register(&Tool{
		Name:        FindRentalAgencies,
		Description: "Find vehicle rental agencies near an address and add them to the Transportation Options section.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id":     eventIDProp(),
				"vehicle_type": str(`e.g. "15-passenger van", "bus"`),
				"address":      str(""),
				"radius_km":    integer,
				"max_results":  integer,
			},
			Required: []string{"event_id"},
		},
		Limits: Limits{
			Min: map[string]float64{"radius_km": 1, "max_results": 1},
		},
		handler: r.handleFindRentalAgencies,
	})

	r.register(&Tool{
		Name:        EstimateRentalCosts,
		Description: "Estimate vehicle rental and fuel costs for the event, optionally adding budget line items.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"event_id":           eventIDProp(),
				"vehicle_type":       str(""),
				"vehicles_count":     integer,
				"days":               integer,
				"passengers":         integer,
				"pickup":             str("Origin address; defaults to the organization address"),
				"destination":        str("Destination; defaults to the event location"),
				"create_budget_item": boolean,
			},
			Required: []string{"event_id", "vehicle_type"},
		},
		Limits: Limits{
			Min: map[string]float64{"vehicles_count": 1, "days": 1, "passengers": 0},
		},
		handler: r.handleEstimateRentalCosts,
	})
}
