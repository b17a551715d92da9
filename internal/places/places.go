// Package places provides geocoding and venue search for the planner.
//
// The [Lookup] interface is what the tool layer consumes; [Google] is
// the production implementation backed by the Google Maps web
// services. Provider failures are reported as [*StatusError] values
// that unwrap to one of the category sentinels below, so callers can
// tell a key restriction from a quota problem from an empty result.
package places

import (
	"context"
	"errors"
	"fmt"
)

// Failure categories.
var (
	ErrNotConfigured  = errors.New("places lookup not configured")
	ErrRequestDenied  = errors.New("request denied")
	ErrOverQuota      = errors.New("quota exceeded")
	ErrInvalidRequest = errors.New("invalid request")
	ErrZeroResults    = errors.New("no results")
)

// StatusError is a non-OK provider status.
type StatusError struct {
	Op      string // geocode, nearbysearch, textsearch, distancematrix
	Status  string // provider status string, e.g. REQUEST_DENIED
	Message string // provider error_message, may be empty
	Err     error  // category sentinel
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error { return e.Err }

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l LatLng) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lng)
}

// Place is one venue returned by a search. Raw holds the provider's
// full record and is passed through untouched to plan item metadata.
type Place struct {
	PlaceID          string         `json:"place_id"`
	Name             string         `json:"name"`
	Rating           float64        `json:"rating"`
	UserRatingsTotal int            `json:"user_ratings_total"`
	Address          string         `json:"address"`
	Phone            string         `json:"formatted_phone_number,omitempty"`
	IntlPhone        string         `json:"international_phone_number,omitempty"`
	Types            []string       `json:"types,omitempty"`
	Location         LatLng         `json:"location"`
	Raw              map[string]any `json:"-"`
}

// DistanceElement is one origin→destination cell of a distance matrix.
type DistanceElement struct {
	Status        string `json:"status"`
	DistanceText  string `json:"distance_text"`
	DistanceValue int    `json:"distance_value"` // meters
	DurationText  string `json:"duration_text"`
	DurationValue int    `json:"duration_value"` // seconds
}

// OK reports whether the element carries a usable distance.
func (d DistanceElement) OK() bool { return d.Status == "OK" }

// Lookup is the places provider contract. Searches return an empty
// slice, not an error, when the provider found nothing.
type Lookup interface {
	Geocode(ctx context.Context, address string) (LatLng, error)
	NearbySearch(ctx context.Context, loc LatLng, keyword string, radiusMeters int) ([]Place, error)
	TextSearch(ctx context.Context, query string) ([]Place, error)
	DistanceMatrix(ctx context.Context, origin string, destinations []string) ([]DistanceElement, error)
}

// statusErr maps a provider status string to a StatusError, or nil
// for OK.
func statusErr(op, status, message string) error {
	var cat error
	switch status {
	case "OK":
		return nil
	case "REQUEST_DENIED":
		cat = ErrRequestDenied
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		cat = ErrOverQuota
	case "INVALID_REQUEST", "MAX_ELEMENTS_EXCEEDED", "MAX_DIMENSIONS_EXCEEDED", "NOT_FOUND":
		cat = ErrInvalidRequest
	case "ZERO_RESULTS":
		cat = ErrZeroResults
	default:
		cat = fmt.Errorf("unexpected status %q", status)
	}
	return &StatusError{Op: op, Status: status, Message: message, Err: cat}
}
