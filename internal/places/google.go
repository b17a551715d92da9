package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/httpkit"
)

// maxRadiusMeters is the largest search radius the Places API accepts.
const maxRadiusMeters = 50000

// GoogleConfig configures the Google Maps client.
type GoogleConfig struct {
	APIKey string
	// BaseURL replaces https://maps.googleapis.com; blank keeps it.
	BaseURL           string
	GeocodeCacheTTL   time.Duration
	RequestsPerSecond float64
}

// Google implements Lookup on the Google Maps web services client,
// adding a geocode cache, request collapsing and pacing.
type Google struct {
	client   *maps.Client // nil when no API key is configured
	limiter  *rate.Limiter
	geocodes *cache.Cache
	inflight singleflight.Group
	logger   *slog.Logger
}

// NewGoogle creates a Google places client. Without an API key every
// call fails with ErrNotConfigured.
func NewGoogle(cfg GoogleConfig, logger *slog.Logger) *Google {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.GeocodeCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	g := &Google{
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		geocodes: cache.New(ttl, 2*ttl),
		logger:   logger.With("provider", "google_places"),
	}
	if cfg.APIKey == "" {
		return g
	}

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(httpkit.New(httpkit.Config{
			Timeout:    15 * time.Second,
			Retries:    2,
			RetryDelay: 300 * time.Millisecond,
			Logger:     logger,
		})),
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		opts = append(opts, maps.WithBaseURL(base))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		g.logger.Error("maps client not created", "error", err)
		return g
	}
	g.client = client
	return g
}

// Geocode resolves an address to coordinates. Results are cached and
// concurrent lookups for the same address share one request.
func (g *Google) Geocode(ctx context.Context, address string) (LatLng, error) {
	key := strings.ToLower(strings.TrimSpace(address))
	if key == "" {
		return LatLng{}, &StatusError{Op: "geocode", Status: "INVALID_REQUEST", Message: "empty address", Err: ErrInvalidRequest}
	}
	if v, ok := g.geocodes.Get(key); ok {
		return v.(LatLng), nil
	}

	v, err, _ := g.inflight.Do(key, func() (any, error) {
		if err := g.begin(ctx, "geocode"); err != nil {
			return LatLng{}, err
		}
		start := time.Now()
		results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
		g.done("geocode", start, err)
		if err != nil {
			return LatLng{}, clientErr("geocode", err)
		}
		if len(results) == 0 {
			return LatLng{}, &StatusError{Op: "geocode", Status: "ZERO_RESULTS", Err: ErrZeroResults}
		}
		at := results[0].Geometry.Location
		loc := LatLng{Lat: at.Lat, Lng: at.Lng}
		g.geocodes.SetDefault(key, loc)
		return loc, nil
	})
	if err != nil {
		return LatLng{}, err
	}
	return v.(LatLng), nil
}

// NearbySearch finds places around loc matching keyword. The radius is
// capped at the provider's 50 km maximum.
func (g *Google) NearbySearch(ctx context.Context, loc LatLng, keyword string, radiusMeters int) ([]Place, error) {
	if err := g.begin(ctx, "nearbysearch"); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := g.client.NearbySearch(ctx, &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: loc.Lat, Lng: loc.Lng},
		Radius:   uint(min(max(radiusMeters, 1), maxRadiusMeters)),
		Keyword:  keyword,
	})
	g.done("nearbysearch", start, err)
	return searchResults("nearbysearch", resp, err)
}

// TextSearch finds places matching a free-text query such as
// "campgrounds near Orlando FL".
func (g *Google) TextSearch(ctx context.Context, query string) ([]Place, error) {
	if err := g.begin(ctx, "textsearch"); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := g.client.TextSearch(ctx, &maps.TextSearchRequest{Query: query})
	g.done("textsearch", start, err)
	return searchResults("textsearch", resp, err)
}

func searchResults(op string, resp maps.PlacesSearchResponse, err error) ([]Place, error) {
	if err != nil {
		err = clientErr(op, err)
		if errors.Is(err, ErrZeroResults) {
			return []Place{}, nil
		}
		return nil, err
	}
	out := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		raw, err := toRaw(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, FromRaw(raw))
	}
	return out, nil
}

// DistanceMatrix returns one element per destination, in order.
// Destinations may be addresses or "place_id:<id>" references.
func (g *Google) DistanceMatrix(ctx context.Context, origin string, destinations []string) ([]DistanceElement, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	if err := g.begin(ctx, "distancematrix"); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := g.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: destinations,
		Units:        maps.UnitsImperial,
	})
	g.done("distancematrix", start, err)
	if err != nil {
		return nil, clientErr("distancematrix", err)
	}

	out := make([]DistanceElement, len(destinations))
	if resp == nil || len(resp.Rows) == 0 {
		return out, nil
	}
	for i, el := range resp.Rows[0].Elements {
		if i >= len(out) {
			break
		}
		out[i] = DistanceElement{Status: el.Status}
		if el.Status == "OK" {
			out[i].DistanceText = el.Distance.HumanReadable
			out[i].DistanceValue = el.Distance.Meters
			out[i].DurationText = durationText(el.Duration)
			out[i].DurationValue = int(el.Duration.Seconds())
		}
	}
	return out, nil
}

// begin checks the client is configured and waits for the pacer.
func (g *Google) begin(ctx context.Context, op string) error {
	if g.client == nil {
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", op, err)
	}
	return nil
}

func (g *Google) done(op string, start time.Time, err error) {
	g.logger.Debug("places request complete", "op", op, "elapsed", time.Since(start), "error", err)
}

// clientErr turns a maps client error into a StatusError when it
// carries a provider status ("maps: REQUEST_DENIED - message").
func clientErr(op string, err error) error {
	if rest, ok := strings.CutPrefix(err.Error(), "maps: "); ok {
		status, msg, _ := strings.Cut(rest, " - ")
		if isStatusCode(status) {
			return statusErr(op, status, strings.TrimSpace(msg))
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isStatusCode(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool { return (r < 'A' || r > 'Z') && r != '_' }) < 0
}

// toRaw renders a provider result as the generic record kept in
// Place.Raw.
func toRaw(r maps.PlacesSearchResult) (map[string]any, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode place: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode place: %w", err)
	}
	return raw, nil
}

// durationText renders a travel time the way the provider's own text
// fields do: "21 mins", "1 hour 5 mins".
func durationText(d time.Duration) string {
	mins := int(d.Round(time.Minute).Minutes())
	h, m := mins/60, mins%60
	switch {
	case h == 0:
		return unit(m, "min")
	case m == 0:
		return unit(h, "hour")
	}
	return unit(h, "hour") + " " + unit(m, "min")
}

func unit(n int, name string) string {
	if n == 1 {
		return "1 " + name
	}
	return fmt.Sprintf("%d %ss", n, name)
}

// FromRaw converts a provider result record into a Place, keeping the
// record itself in Raw.
func FromRaw(raw map[string]any) Place {
	p := Place{Raw: raw}
	p.PlaceID, _ = raw["place_id"].(string)
	p.Name, _ = raw["name"].(string)
	p.Rating, _ = raw["rating"].(float64)
	if n, ok := raw["user_ratings_total"].(float64); ok {
		p.UserRatingsTotal = int(n)
	}
	if addr, ok := raw["formatted_address"].(string); ok && addr != "" {
		p.Address = addr
	} else {
		p.Address, _ = raw["vicinity"].(string)
	}
	p.Phone, _ = raw["formatted_phone_number"].(string)
	p.IntlPhone, _ = raw["international_phone_number"].(string)
	if types, ok := raw["types"].([]any); ok {
		for _, t := range types {
			if s, ok := t.(string); ok {
				p.Types = append(p.Types, s)
			}
		}
	}
	geom, _ := raw["geometry"].(map[string]any)
	loc, _ := geom["location"].(map[string]any)
	p.Location.Lat, _ = loc["lat"].(float64)
	p.Location.Lng, _ = loc["lng"].(float64)
	return p
}
