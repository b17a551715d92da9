// Package intent classifies free-text planning messages and extracts
// structured fragments from them: locations, radii, counts, rental
// details and list items. Every function is pure; nothing here touches
// the network or the store, so the heuristics can be tested exhaustively.
package intent

import (
	"regexp"
	"strings"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/tools"
)

// wordsRe builds a case-insensitive, word-bounded alternation. Spaces
// inside a term match any run of whitespace.
func wordsRe(terms ...string) *regexp.Regexp {
	parts := make([]string, len(terms))
	for i, t := range terms {
		q := regexp.QuoteMeta(t)
		parts[i] = strings.ReplaceAll(q, " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

var (
	documentRe = wordsRe(
		"document", "documents", "form", "forms", "waiver", "waivers",
		"letter", "letters", "permission slip", "permission slips",
		"consent", "flyer", "flyers", "flier", "newsletter", "certificate",
		"template", "memo", "notice", "pdf", "medical release",
	)

	nonPlaceRe = wordsRe(
		"task", "tasks", "todo", "todos", "to-do", "to-dos", "to do list",
		"budget", "budgets", "expense", "expenses", "line item", "line items",
		"participant", "participants", "attendee", "attendees", "roster",
		"checklist", "checklists", "missing item", "missing items",
		"agenda", "agendas",
	)

	placeCategoryRe = wordsRe(
		"camp", "camps", "camping", "campground", "campgrounds", "campsite", "campsites",
		"rv park", "rv parks", "cabin", "cabins", "retreat center", "retreat centers",
		"restaurant", "restaurants", "diner", "diners", "cafe", "cafes", "pizza", "buffet",
		"museum", "museums", "science center", "planetarium", "aquarium", "aquariums",
		"zoo", "zoos", "park", "parks", "state park", "state parks", "national park", "national parks",
		"amusement park", "amusement parks", "theme park", "theme parks", "water park", "water parks",
		"trampoline park",
		"beach", "beaches", "lake", "lakes", "trail", "trails", "hike", "hikes", "hiking",
		"hotel", "hotels", "motel", "motels", "lodge", "lodges", "lodging",
		"venue", "venues", "church", "churches", "gym", "gyms", "pool", "pools",
		"bowling", "skating rink", "roller rink", "ice rink", "farm", "farms",
		"orchard", "orchards", "attraction", "attractions", "playground", "playgrounds",
	)

	placeActionRe = wordsRe(
		"find", "search", "look for", "looking for", "locate", "near", "nearby",
		"near me", "around", "close to", "closest", "recommend", "recommendation",
		"recommendations", "suggest", "suggestion", "suggestions", "within",
		"where",
	)

	rentalWordRe   = wordsRe("rent", "rental", "rentals", "renting", "agency", "agencies")
	rentalSearchRe = wordsRe(
		"where", "near", "nearby", "find", "recommend", "around", "close to",
		"closest", "search", "looking for", "look for", "locate",
	)

	rentalVehicleRe = wordsRe(
		"rent", "rental", "van", "vans", "bus", "buses", "coach", "coaches",
		"shuttle", "shuttles", "minivan", "minivans", "suv", "suvs",
		"vehicle", "vehicles", "transportation", "transport",
	)
	rentalCostRe = wordsRe(
		"cost", "costs", "price", "prices", "pricing", "estimate", "estimated",
		"how much", "quote", "quotes", "expensive", "rate", "rates", "gas", "fuel",
	)

	taskRe        = wordsRe("task", "tasks", "todo", "todos", "to-do", "to-dos", "to do list", "assign")
	budgetRe      = wordsRe("budget item", "budget items", "budget", "expense", "expenses", "line item", "line items", "cost item", "cost items")
	participantRe = wordsRe(
		"participant", "participants", "attendee", "attendees", "roster",
		"chaperone", "chaperones", "camper", "campers", "guest list", "sign up", "signed up",
	)
	missingRe = wordsRe(
		"missing", "checklist", "forgetting", "forgot", "still need",
		"reminder", "reminders",
	)
	eventUpdateRe = wordsRe(
		"rename", "retitle", "title", "event name", "start date", "end date",
		"dates", "change the date", "move the event", "location", "status",
		"risk level", "risk", "approval", "requires approval", "estimated total",
		"actual total",
	)
	planSectionRe = wordsRe(
		"itinerary", "schedule", "plan section", "section", "meal plan", "menu",
		"packing list", "timeline", "overview", "logistics",
	)
)

// IsDocumentRequest reports whether the message asks for a document,
// form or letter. Such turns never trigger place handling.
func IsDocumentRequest(msg string) bool {
	return documentRe.MatchString(msg)
}

// IsNonPlaceRequest reports whether the message is about tasks,
// budget, participants, checklists or agendas.
func IsNonPlaceRequest(msg string) bool {
	return nonPlaceRe.MatchString(msg)
}

// DetectPlaceIntent reports whether the message is a venue search: it
// must name a place category and an action or locality word, and must
// not be about tasks, budget, participants or checklists.
func DetectPlaceIntent(msg string) bool {
	if IsNonPlaceRequest(msg) {
		return false
	}
	return placeCategoryRe.MatchString(msg) && placeActionRe.MatchString(msg)
}

// DetectRentalAgencyIntent reports whether the message asks where to
// rent vehicles.
func DetectRentalAgencyIntent(msg string) bool {
	return rentalWordRe.MatchString(msg) && rentalSearchRe.MatchString(msg)
}

func detectRentalCostIntent(msg string) bool {
	return rentalVehicleRe.MatchString(msg) && rentalCostRe.MatchString(msg)
}

// InferToolIntent maps message vocabulary to the single tool the user
// most likely wants, in fixed priority order. The second result is
// false when nothing matches.
func InferToolIntent(msg string) (tools.Name, bool) {
	switch {
	case DetectRentalAgencyIntent(msg):
		return tools.FindRentalAgencies, true
	case detectRentalCostIntent(msg):
		return tools.EstimateRentalCosts, true
	case DetectPlaceIntent(msg):
		return tools.FindRecommendedPlaces, true
	case taskRe.MatchString(msg):
		return tools.CreateTasks, true
	case budgetRe.MatchString(msg):
		return tools.CreateBudgetItems, true
	case participantRe.MatchString(msg):
		return tools.AddParticipants, true
	case missingRe.MatchString(msg):
		return tools.SetMissingItems, true
	case eventUpdateRe.MatchString(msg):
		return tools.UpdateEventSpine, true
	case planSectionRe.MatchString(msg):
		return tools.UpdatePlanSection, true
	}
	return "", false
}

// PlaceKeyword returns the place category named in the message, in
// lower case with collapsed spaces, preferring the longest phrase
// ("state park" over "park"). It returns "" when no category matches.
func PlaceKeyword(msg string) string {
	best := ""
	for _, m := range placeCategoryRe.FindAllString(msg, -1) {
		if len(m) > len(best) {
			best = m
		}
	}
	return strings.ToLower(strings.Join(strings.Fields(best), " "))
}

// DocumentKind returns the document vocabulary the message uses
// ("permission slip", "waiver", "letter"), singular and lower case, or
// "" for a message that is not a document request.
func DocumentKind(msg string) string {
	best := ""
	for _, m := range documentRe.FindAllString(msg, -1) {
		if len(m) > len(best) {
			best = m
		}
	}
	kind := strings.ToLower(strings.Join(strings.Fields(best), " "))
	if kind != "pdf" && !strings.HasSuffix(kind, "ss") {
		kind = strings.TrimSuffix(kind, "s")
	}
	return kind
}
