package intent

import (
	"math"
	"strconv"
	"testing"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/tools"
)

func TestDetectPlaceIntent(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"find campgrounds near Orlando FL within 30 miles", true},
		{"Can you recommend a museum for the kids?", true},
		{"any state parks close to Tampa", true},
		{"restaurants nearby", true},
		{"We need a campground", false},                  // no action word
		{"find out who is coming", false},                // no category
		{"add tasks to book the campground near", false}, // task vocabulary suppresses
		{"set the budget for the museum near town", false},
		{"update the parking plan", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := DetectPlaceIntent(tt.msg); got != tt.want {
				t.Errorf("DetectPlaceIntent(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestPlaceKeyword(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"find campgrounds near Orlando FL within 30 miles", "campgrounds"},
		{"any State  Parks close to Tampa", "state parks"},
		{"find an amusement park near us", "amusement park"},
		{"what should we do next", ""},
	}
	for _, tt := range tests {
		if got := PlaceKeyword(tt.msg); got != tt.want {
			t.Errorf("PlaceKeyword(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestIsDocumentRequest(t *testing.T) {
	if !IsDocumentRequest("Draft a permission slip for parents") {
		t.Error("permission slip should be a document request")
	}
	if !IsDocumentRequest("write a letter to the park ranger") {
		t.Error("letter should be a document request")
	}
	if IsDocumentRequest("find parks near Ocala FL") {
		t.Error("place search is not a document request")
	}
}

func TestDocumentKind(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Draft permission slips for parents", "permission slip"},
		{"write a letter to the park ranger", "letter"},
		{"we need a liability waiver", "waiver"},
		{"find parks near Ocala FL", ""},
	}
	for _, tt := range tests {
		if got := DocumentKind(tt.msg); got != tt.want {
			t.Errorf("DocumentKind(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestDetectRentalAgencyIntent(t *testing.T) {
	if !DetectRentalAgencyIntent("Where can we rent a 15 passenger van?") {
		t.Error("want rental agency intent")
	}
	if DetectRentalAgencyIntent("how much to rent a bus") {
		t.Error("cost question is not an agency search")
	}
}

func TestInferToolIntent(t *testing.T) {
	tests := []struct {
		msg  string
		want tools.Name
		ok   bool
	}{
		{"find rental agencies near the church", tools.FindRentalAgencies, true},
		{"how much would a bus cost for 2 days", tools.EstimateRentalCosts, true},
		{"find campgrounds near Orlando FL", tools.FindRecommendedPlaces, true},
		{"add some tasks", tools.CreateTasks, true},
		{"add budget items for food", tools.CreateBudgetItems, true},
		{"add participants to the roster", tools.AddParticipants, true},
		{"what am I forgetting?", tools.SetMissingItems, true},
		{"rename the event to Spring Campout", tools.UpdateEventSpine, true},
		{"draft the itinerary for day one", tools.UpdatePlanSection, true},
		{"hello there", "", false},
		{"Buy snacks, Reserve campsite, Pack first aid kit", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := InferToolIntent(tt.msg)
			if got != tt.want || ok != tt.ok {
				t.Errorf("InferToolIntent(%q) = %q, %v; want %q, %v", tt.msg, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractRadiusKm(t *testing.T) {
	for _, n := range []int{1, 5, 10, 25, 30, 50, 100} {
		msg := "parks within " + strconv.Itoa(n) + " miles"
		got, ok := ExtractRadiusKm(msg)
		want := int(math.Round(float64(n) * 1.60934))
		if !ok || got != want {
			t.Errorf("ExtractRadiusKm(%q) = %d, %v; want %d", msg, got, ok, want)
		}
	}
	for _, n := range []int{3, 40, 80} {
		msg := "within " + strconv.Itoa(n) + " km of the church"
		got, ok := ExtractRadiusKm(msg)
		if !ok || got != n {
			t.Errorf("ExtractRadiusKm(%q) = %d, %v; want %d", msg, got, ok, n)
		}
	}
	if got, ok := ExtractRadiusKm("a 30-mile radius"); !ok || got != 48 {
		t.Errorf("hyphenated radius = %d, %v", got, ok)
	}
	if _, ok := ExtractRadiusKm("find parks"); ok {
		t.Error("no radius expected")
	}
}

func TestExtractLocationHint(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"find campgrounds near Orlando FL within 30 miles", "Orlando FL"},
		{"parks around Saint Augustine, Florida", "Saint Augustine, Florida"},
		{"somewhere in texas", "texas"},
		{"near 32801 please", "32801"},
		{"Tampa FL 33602", "Tampa FL 33602"},
		{"find me a park", ""},
		{"budget is $12000", ""},
		{"Find parks in FL", "FL"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := ExtractLocationHint(tt.msg); got != tt.want {
				t.Errorf("ExtractLocationHint(%q) = %q, want %q", tt.msg, got, tt.want)
			}
		})
	}
}

func TestExtractRequestedCount(t *testing.T) {
	tests := []struct {
		msg  string
		want int
		ok   bool
	}{
		{"find 5 campgrounds near Orlando FL", 5, true},
		{"top three museums", 3, true},
		{"parks within 30 miles", 0, false},
		{"show 50 parks", 0, false},
		{"camps for $20 near 2026-06-01", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := ExtractRequestedCount(tt.msg)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ExtractRequestedCount(%q) = %d, %v; want %d, %v", tt.msg, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLooksLikeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"100 Main St", true},
		{"12 Oak Lane, Ocala", true},
		{"Orlando, FL 32801", true},
		{"32801", true},
		{"Main Street", false},
		{"room 5", false},
		{"3 x", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := LooksLikeAddress(tt.in); got != tt.want {
				t.Errorf("LooksLikeAddress(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractAddressPhrase(t *testing.T) {
	got := ExtractAddressPhrase("find parks near 100 Main St, Springfield IL within 10 miles")
	if got != "100 Main St, Springfield IL" {
		t.Errorf("ExtractAddressPhrase = %q", got)
	}
	if got := ExtractAddressPhrase("find parks near Orlando"); got != "" {
		t.Errorf("ExtractAddressPhrase = %q, want empty", got)
	}
}

func TestExtractRentalDetails(t *testing.T) {
	tests := []struct {
		msg  string
		want RentalDetails
	}{
		{
			"15 passenger van for 3 days",
			RentalDetails{VehicleType: rental.Van15, Days: 3, VehiclesCount: 1},
		},
		{
			"we have 31 kids and need 15-passenger vans for 2 nights",
			RentalDetails{VehicleType: rental.Van15, Passengers: 31, Days: 2, VehiclesCount: 3},
		},
		{
			"rent 2 buses for a 4-day trip",
			RentalDetails{VehicleType: rental.Bus, Days: 4, VehiclesCount: 2, VehiclesExplicit: true},
		},
		{
			"cost of a school bus",
			RentalDetails{VehicleType: rental.SchoolBus, VehiclesCount: 1},
		},
		{
			"minivan for 10 people",
			RentalDetails{VehicleType: rental.Minivan, Passengers: 10, VehiclesCount: 2},
		},
		{
			"how much is transportation",
			RentalDetails{VehiclesCount: 1},
		},
		{
			"two 15-passenger vans for 3 days",
			RentalDetails{VehicleType: rental.Van15, Days: 3, VehiclesCount: 2, VehiclesExplicit: true},
		},
		{
			"a bus for 40 kids",
			RentalDetails{VehicleType: rental.Bus, Passengers: 40, VehiclesCount: 1},
		},
		{
			"Three minivans for two days",
			RentalDetails{VehicleType: rental.Minivan, Days: 2, VehiclesCount: 3, VehiclesExplicit: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := ExtractRentalDetails(tt.msg); got != tt.want {
				t.Errorf("ExtractRentalDetails(%q) = %+v, want %+v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestExtractDestination(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"we want to go to Disney World for 2 days", "Disney World"},
		{"bus for our trip to Blue Spring State Park, 40 kids", "Blue Spring State Park"},
		{"drive to Ocala on Friday", "Ocala"},
		{"shuttle to Kennedy Space Center", "Kennedy Space Center"},
		{"we need to rent a van", ""},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := ExtractDestination(tt.msg); got != tt.want {
				t.Errorf("ExtractDestination(%q) = %q, want %q", tt.msg, got, tt.want)
			}
		})
	}
}

func TestParseListItems(t *testing.T) {
	got := ParseListItems("Tasks: 1. Book the bus\n- Buy snacks; and print waivers, ")
	want := []string{"Book the bus", "Buy snacks", "print waivers"}
	if len(got) != len(want) {
		t.Fatalf("ParseListItems = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseBudgetItems(t *testing.T) {
	got := ParseBudgetItems("Bus: $1,200; Snacks 120\n2 x Campsite $45.50 each")
	if len(got) != 3 {
		t.Fatalf("ParseBudgetItems = %+v, want 3 items", got)
	}
	if got[0].Description != "Bus" || got[0].Amount != 1200 || got[0].Qty != 1 {
		t.Errorf("item 0 = %+v", got[0])
	}
	if got[1].Description != "Snacks" || got[1].Amount != 120 {
		t.Errorf("item 1 = %+v", got[1])
	}
	if got[2].Description != "Campsite" || got[2].Amount != 45.5 || got[2].Qty != 2 {
		t.Errorf("item 2 = %+v", got[2])
	}
}

func TestParseParticipants(t *testing.T) {
	got := ParseParticipants("Ana Lopez - Chaperone - Confirmed\nBen Ortiz\nCara Diaz - driver")
	want := []ParticipantLine{
		{Name: "Ana Lopez", Role: "chaperone", Status: "confirmed"},
		{Name: "Ben Ortiz", Role: "guest", Status: "invited"},
		{Name: "Cara Diaz", Role: "driver", Status: "invited"},
	}
	if len(got) != len(want) {
		t.Fatalf("ParseParticipants = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("participant %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
