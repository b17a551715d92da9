// Package rental estimates vehicle rental and fuel costs for event
// transportation. It holds the canonical vehicle buckets, their daily
// rate ranges and capacities, and the arithmetic behind the
// estimate_rental_costs tool. Nothing here performs I/O.
package rental

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical vehicle buckets.
const (
	Car            = "car"
	SUV            = "suv"
	Minivan        = "minivan"
	Van12          = "12-passenger van"
	Van15          = "15-passenger van"
	PassengerVan   = "passenger van"
	Van            = "van"
	ShuttleBus     = "shuttle bus"
	MiniBus        = "mini bus"
	SchoolBus      = "school bus"
	Bus            = "bus"
	Coach          = "coach"
	defaultGasCost = 3.5
)

// Rate is a daily rental price range in dollars.
type Rate struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Midpoint returns the average of the range, rounded to cents.
func (r Rate) Midpoint() float64 { return Round2((r.Low + r.High) / 2) }

var dailyRates = map[string]Rate{
	Car:          {Low: 45, High: 90},
	SUV:          {Low: 70, High: 140},
	Minivan:      {Low: 80, High: 150},
	Van12:        {Low: 120, High: 220},
	Van15:        {Low: 150, High: 260},
	PassengerVan: {Low: 130, High: 240},
	Van:          {Low: 100, High: 200},
	ShuttleBus:   {Low: 350, High: 700},
	MiniBus:      {Low: 300, High: 650},
	SchoolBus:    {Low: 400, High: 800},
	Bus:          {Low: 500, High: 1000},
	Coach:        {Low: 800, High: 1600},
}

// DailyRate returns the rate range for a canonical bucket.
func DailyRate(bucket string) (Rate, bool) {
	r, ok := dailyRates[bucket]
	return r, ok
}

// bucketRules is checked in order; the first rule whose terms all
// appear in the lowered input wins. Numeric sizes and the specific bus
// kinds come before the generic words they contain.
var bucketRules = []struct {
	any    []string
	also   []string
	bucket string
}{
	{any: []string{"15"}, also: []string{"passenger", "van", "pax", "seat"}, bucket: Van15},
	{any: []string{"12"}, also: []string{"passenger", "van", "pax", "seat"}, bucket: Van12},
	{any: []string{"school"}, bucket: SchoolBus},
	{any: []string{"shuttle"}, bucket: ShuttleBus},
	{any: []string{"coach"}, bucket: Coach},
	{any: []string{"mini bus", "minibus", "mini-bus"}, bucket: MiniBus},
	{any: []string{"minivan", "mini van", "mini-van"}, bucket: Minivan},
	{any: []string{"passenger van"}, bucket: PassengerVan},
	{any: []string{"bus"}, bucket: Bus},
	{any: []string{"suv"}, bucket: SUV},
	{any: []string{"van"}, bucket: Van},
	{any: []string{"car", "sedan"}, bucket: Car},
}

// Normalize maps free-text vehicle descriptions ("a 15 pax van",
// "Motorcoach") to a canonical bucket.
func Normalize(vehicle string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(vehicle))
	if v == "" {
		return "", false
	}
	for _, r := range bucketRules {
		if !containsAny(v, r.any) {
			continue
		}
		if len(r.also) > 0 && !containsAny(v, r.also) {
			continue
		}
		return r.bucket, true
	}
	return "", false
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// DefaultCapacity returns the nominal seats per vehicle for the buckets
// that have a meaningful threshold.
func DefaultCapacity() map[string]int {
	return map[string]int{
		Van12:   12,
		Van15:   15,
		Bus:     40,
		Coach:   40,
		Van:     12,
		Minivan: 7,
	}
}

// Label returns a display form of a bucket, e.g. "15-Passenger Van".
func Label(bucket string) string {
	if bucket == SUV {
		return "SUV"
	}
	return cases.Title(language.English).String(bucket)
}

// Params are the tunable heuristics of the estimator.
type Params struct {
	GasPricePerGallon float64
	MPGBus            float64
	MPGVan            float64
	MPGDefault        float64
	Capacity          map[string]int
}

// DefaultParams returns the stock heuristics.
func DefaultParams() Params {
	return Params{
		GasPricePerGallon: defaultGasCost,
		MPGBus:            7,
		MPGVan:            15,
		MPGDefault:        22,
		Capacity:          DefaultCapacity(),
	}
}

// MPG returns the fuel economy assumed for a bucket.
func (p Params) MPG(bucket string) float64 {
	switch {
	case strings.Contains(bucket, "bus") || strings.Contains(bucket, "coach"):
		return p.MPGBus
	case strings.Contains(bucket, "van"):
		return p.MPGVan
	default:
		return p.MPGDefault
	}
}

// Input describes one estimate request. Zero Count and Days mean 1.
// RoundTripMiles of zero means the distance is unknown and no gas
// estimate is produced.
type Input struct {
	VehicleType    string
	Count          int
	Days           int
	Passengers     int
	RoundTripMiles float64
}

// Estimate is the computed result.
type Estimate struct {
	VehicleType    string     `json:"vehicle_type"`
	VehiclesCount  int        `json:"vehicles_count"`
	Days           int        `json:"days"`
	Passengers     int        `json:"passengers,omitempty"`
	DailyRate      Rate       `json:"daily_rate"`
	TotalRange     [2]float64 `json:"total_range"`
	UnitCost       float64    `json:"unit_cost"`
	RoundTripMiles float64    `json:"round_trip_miles,omitempty"`
	MPG            float64    `json:"mpg,omitempty"`
	GasEstimate    *float64   `json:"gas_estimate,omitempty"`
	Suggestions    []string   `json:"suggestions,omitempty"`
}

// Estimate computes the rental range and, when a round trip distance
// is known, the fuel cost.
func (p Params) Estimate(in Input) (Estimate, error) {
	bucket, ok := Normalize(in.VehicleType)
	if !ok {
		return Estimate{}, fmt.Errorf("unrecognized vehicle type %q", in.VehicleType)
	}
	rate := dailyRates[bucket]
	count := max(in.Count, 1)
	days := max(in.Days, 1)

	est := Estimate{
		VehicleType:   bucket,
		VehiclesCount: count,
		Days:          days,
		Passengers:    max(in.Passengers, 0),
		DailyRate:     rate,
		TotalRange: [2]float64{
			Round2(rate.Low * float64(days*count)),
			Round2(rate.High * float64(days*count)),
		},
		UnitCost: rate.Midpoint(),
	}

	if in.RoundTripMiles > 0 {
		mpg := p.MPG(bucket)
		price := p.GasPricePerGallon
		if price <= 0 {
			price = defaultGasCost
		}
		if mpg > 0 {
			gas := Round2(in.RoundTripMiles / mpg * price * float64(count))
			est.RoundTripMiles = Round2(in.RoundTripMiles)
			est.MPG = mpg
			est.GasEstimate = &gas
		}
	}

	if capacity := p.Capacity[bucket]; capacity > 0 && est.Passengers > capacity*count {
		need := int(math.Ceil(float64(est.Passengers) / float64(capacity)))
		est.Suggestions = append(est.Suggestions,
			fmt.Sprintf("%d passengers exceed the %d seats of %d %s; consider a larger vehicle or %d vehicles.",
				est.Passengers, capacity*count, count, Label(bucket), need))
	}
	return est, nil
}

// VehiclesFor returns how many vehicles of a bucket are needed to seat
// passengers, or 1 when the bucket has no known capacity.
func (p Params) VehiclesFor(bucket string, passengers int) int {
	capacity := p.Capacity[bucket]
	if capacity <= 0 || passengers <= 0 {
		return 1
	}
	return int(math.Ceil(float64(passengers) / float64(capacity)))
}

// DaySpan returns the inclusive number of days an event covers. A
// missing or inverted end date counts as a single day.
func DaySpan(start, end time.Time) int {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 1
	}
	y1, m1, d1 := start.Date()
	y2, m2, d2 := end.In(start.Location()).Date()
	from := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	days := int(math.Ceil(to.Sub(from).Hours()/24)) + 1
	return max(days, 1)
}

// MetersToMiles converts a distance in meters.
func MetersToMiles(m int) float64 { return float64(m) / 1609.344 }

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }
