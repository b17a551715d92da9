package tools

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/places"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
)

// campingFallbacks are tried in order, appended to the intent, when the
// primary venue search comes back empty.
var campingFallbacks = []string{"campground", "rv park", "state park", "camping"}

// ShapedPlace is the venue record returned to callers and stored on
// the conversation turn.
type ShapedPlace struct {
	Name             string   `json:"name"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Address          string   `json:"address"`
	Phone            string   `json:"formatted_phone_number,omitempty"`
	IntlPhone        string   `json:"international_phone_number,omitempty"`
	DistanceText     string   `json:"distance_text,omitempty"`
	DistanceValue    int      `json:"distance_value,omitempty"`
	DurationText     string   `json:"duration_text,omitempty"`
	DurationValue    int      `json:"duration_value,omitempty"`
	PlaceID          string   `json:"place_id"`
	Types            []string `json:"types,omitempty"`

	raw map[string]any
}

// Map renders the place as a generic map for the turn record.
func (p ShapedPlace) Map() map[string]any {
	m := map[string]any{
		"name":               p.Name,
		"rating":             p.Rating,
		"user_ratings_total": p.UserRatingsTotal,
		"address":            p.Address,
		"place_id":           p.PlaceID,
	}
	if p.Phone != "" {
		m["formatted_phone_number"] = p.Phone
	}
	if p.IntlPhone != "" {
		m["international_phone_number"] = p.IntlPhone
	}
	if p.DistanceText != "" {
		m["distance_text"] = p.DistanceText
		m["distance_value"] = p.DistanceValue
		m["duration_text"] = p.DurationText
		m["duration_value"] = p.DurationValue
	}
	if len(p.Types) > 0 {
		m["types"] = p.Types
	}
	return m
}

// PlaceMaps converts shaped places for a conversation turn.
func PlaceMaps(ps []ShapedPlace) []map[string]any {
	return lo.Map(ps, func(p ShapedPlace, _ int) map[string]any { return p.Map() })
}

// placeItem is the plan-section entry for a venue.
func placeItem(p ShapedPlace) session.Item {
	detail := p.Address
	if p.Rating > 0 {
		detail = fmt.Sprintf("%s (rating %.1f, %d reviews)", p.Address, p.Rating, p.UserRatingsTotal)
	}
	if p.DistanceText != "" {
		detail += ", " + p.DistanceText + " away"
	}
	meta := p.raw
	if meta == nil {
		meta = p.Map()
	}
	return session.Item{Label: p.Name, Detail: detail, Meta: meta}
}

type searchRequest struct {
	intent          string
	address         string
	// origin is where distances are measured from; blank means address.
	origin          string
	radiusKm        int
	maxResults      int
	minRating       float64
	includeDistance bool
	fallbacks       []string
}

// searchPlaces runs the venue search: nearby search around the geocoded
// address, text search when the address does not geocode, then the
// fallback terms while nothing has been found.
func (r *Registry) searchPlaces(ctx context.Context, req searchRequest) ([]ShapedPlace, error) {
	if r.places == nil {
		return nil, places.ErrNotConfigured
	}

	var found []places.Place
	loc, err := r.places.Geocode(ctx, req.address)
	switch {
	case errors.Is(err, places.ErrZeroResults):
		r.logger.Debug("address did not geocode, using text search", "address", req.address)
		found, err = r.places.TextSearch(ctx, req.intent+" near "+req.address)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		found, err = r.places.NearbySearch(ctx, loc, req.intent, req.radiusKm*1000)
		if err != nil {
			return nil, err
		}
	}

	for _, term := range req.fallbacks {
		if len(found) > 0 {
			break
		}
		q := req.intent + " " + term + " near " + req.address
		r.logger.Debug("empty venue search, trying fallback", "query", q)
		found, err = r.places.TextSearch(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	shaped := rankPlaces(found, req.minRating, req.maxResults)
	if req.includeDistance && len(shaped) > 0 {
		r.attachDistances(ctx, cmp.Or(req.origin, req.address), shaped)
	}
	return shaped, nil
}

// rankPlaces filters by rating, drops repeated place IDs keeping the
// first, sorts by rating then review count and truncates.
func rankPlaces(found []places.Place, minRating float64, limit int) []ShapedPlace {
	kept := lo.Filter(found, func(p places.Place, _ int) bool {
		return minRating <= 0 || p.Rating >= minRating
	})
	kept = lo.UniqBy(kept, func(p places.Place) string {
		if p.PlaceID != "" {
			return p.PlaceID
		}
		return strings.ToLower(p.Name + "|" + p.Address)
	})
	slices.SortStableFunc(kept, func(a, b places.Place) int {
		if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
			return c
		}
		return cmp.Compare(b.UserRatingsTotal, a.UserRatingsTotal)
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return lo.Map(kept, func(p places.Place, _ int) ShapedPlace {
		return ShapedPlace{
			Name:             p.Name,
			Rating:           p.Rating,
			UserRatingsTotal: p.UserRatingsTotal,
			Address:          p.Address,
			Phone:            p.Phone,
			IntlPhone:        p.IntlPhone,
			PlaceID:          p.PlaceID,
			Types:            p.Types,
			raw:              p.Raw,
		}
	})
}

// attachDistances fills distance and duration from origin. Failures
// only cost the distance columns.
func (r *Registry) attachDistances(ctx context.Context, origin string, ps []ShapedPlace) {
	dests := lo.Map(ps, func(p ShapedPlace, _ int) string {
		if p.PlaceID != "" {
			return "place_id:" + p.PlaceID
		}
		return p.Address
	})
	elems, err := r.places.DistanceMatrix(ctx, origin, dests)
	if err != nil {
		r.logger.Warn("distance matrix failed", "origin", origin, "error", err)
		return
	}
	for i, el := range elems {
		if i >= len(ps) || !el.OK() {
			continue
		}
		ps[i].DistanceText = el.DistanceText
		ps[i].DistanceValue = el.DistanceValue
		ps[i].DurationText = el.DurationText
		ps[i].DurationValue = el.DurationValue
	}
}

// placesError rewrites a lookup failure into a message a club leader
// can act on.
func placesError(err error) string {
	msg := err.Error()
	var se *places.StatusError
	if errors.As(err, &se) && se.Message != "" {
		msg = se.Message
	}
	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "referer") || strings.Contains(lower, "referrer"):
		return "The places API key is restricted to browser referrers, which server requests cannot use. Configure a server key restricted by IP instead."
	case errors.Is(err, places.ErrNotConfigured):
		return "Place search is not configured. Set places.api_key in the config."
	case errors.Is(err, places.ErrOverQuota):
		return "The places service quota is exhausted for now. Try again later."
	case errors.Is(err, places.ErrRequestDenied):
		return "The places service denied the request: " + msg
	case errors.Is(err, places.ErrInvalidRequest):
		return "The places service rejected the request as invalid: " + msg
	case errors.Is(err, places.ErrZeroResults):
		return "That address could not be found. Try a full street address or a ZIP code."
	case isCanceled(err):
		return "Place search was interrupted: " + err.Error()
	}
	return "Place search failed: " + err.Error()
}

func (r *Registry) resolveAddress(sc Scope, args map[string]any) (string, bool) {
	if a, ok := argString(args, "address"); ok {
		return a, true
	}
	a := strings.TrimSpace(sc.OrganizationAddress)
	return a, a != ""
}

func (r *Registry) handleFindRecommendedPlaces(ctx context.Context, sc Scope, args map[string]any) Result {
	address, ok := r.resolveAddress(sc, args)
	if !ok {
		return failuref(FindRecommendedPlaces, "no address to search from: give an address or set the organization's address")
	}
	// An address override moves the search; travel is still measured
	// from the club.
	req := searchRequest{
		address:         address,
		origin:          strings.TrimSpace(sc.OrganizationAddress),
		radiusKm:        r.defaults.RadiusKm,
		maxResults:      r.defaults.MaxResults,
		minRating:       r.defaults.MinRating,
		includeDistance: true,
		fallbacks:       campingFallbacks,
	}
	req.intent, _ = argString(args, "intent")
	if n, ok := argInt(args, "radius_km"); ok && n > 0 {
		req.radiusKm = n
	}
	if n, ok := argInt(args, "max_results"); ok && n > 0 {
		req.maxResults = n
	}
	if f, ok := argNumber(args, "min_rating"); ok {
		req.minRating = f
	}
	if b, ok := argBool(args, "include_distance"); ok {
		req.includeDistance = b
	}

	shaped, err := r.searchPlaces(ctx, req)
	if err != nil {
		r.logger.Warn("place search failed", "intent", req.intent, "address", address, "error", err)
		return failuref(FindRecommendedPlaces, "%s", placesError(err))
	}

	summary := fmt.Sprintf("%d %s within %d km of %s", len(shaped), req.intent, req.radiusKm, address)
	sc.Session.Plan.UpsertSection(session.SectionRecommendations, session.SectionPatch{
		Summary: &summary,
		Items:   lo.Map(shaped, func(p ShapedPlace, _ int) session.Item { return placeItem(p) }),
	})
	return Result{
		Payload: map[string]any{
			"address_used":  address,
			"distance_from": cmp.Or(req.origin, address),
			"count":         len(shaped),
			"places":        shaped,
		},
		Places:  shaped,
	}
}

func (r *Registry) handleFindRentalAgencies(ctx context.Context, sc Scope, args map[string]any) Result {
	address, ok := r.resolveAddress(sc, args)
	if !ok {
		return failuref(FindRentalAgencies, "no address to search from: give an address or set the organization's address")
	}
	vehicle := "vehicle"
	if v, ok := argString(args, "vehicle_type"); ok {
		vehicle = v
		if bucket, ok := rental.Normalize(v); ok {
			vehicle = bucket
		}
	}
	req := searchRequest{
		intent:          vehicle + " rental",
		address:         address,
		radiusKm:        r.defaults.RadiusKm,
		maxResults:      r.defaults.MaxResults,
		includeDistance: true,
	}
	if n, ok := argInt(args, "radius_km"); ok && n > 0 {
		req.radiusKm = n
	}
	if n, ok := argInt(args, "max_results"); ok && n > 0 {
		req.maxResults = n
	}

	shaped, err := r.searchPlaces(ctx, req)
	if err != nil {
		r.logger.Warn("rental agency search failed", "vehicle", vehicle, "address", address, "error", err)
		return failuref(FindRentalAgencies, "%s", placesError(err))
	}

	sec := sc.Session.Plan.AppendItems(session.SectionTransportation,
		lo.Map(shaped, func(p ShapedPlace, _ int) session.Item { return placeItem(p) })...)
	if sec.Summary == "" {
		sec.Summary = "Rental agencies and cost estimates"
	}
	return Result{
		Payload: map[string]any{"address_used": address, "intent": req.intent, "count": len(shaped), "places": shaped},
		Places:  shaped,
	}
}
