package intent

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
)

const kmPerMile = 1.60934

var (
	stateNameRe   = stateNamesRe()
	stateAbbrevRe = stateAbbrevsRe()
	zipRe         = regexp.MustCompile(`(?:^|[^\d$.,])(\d{5})(?:-\d{4})?\b`)

	radiusRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*-?\s*(miles?|mi|kilometers?|kilometres?|kms?)\b`)
	moneyRe  = regexp.MustCompile(`\$\s*\d[\d,]*(?:\.\d+)?`)
	smallRe  = regexp.MustCompile(`(?:^|[^\d\-/:.$])(\d{1,2})(?:$|[^\d\-/:.])`)
	digitRe  = regexp.MustCompile(`\d`)

	numberWordRe = regexp.MustCompile(`(?i)\b(one|two|three|four|five|six|seven|eight|nine|ten)\b`)
	numberWords  = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	}

	streetRe = wordsRe(
		"street", "st", "avenue", "ave", "road", "rd", "boulevard", "blvd",
		"drive", "dr", "lane", "ln", "way", "court", "ct", "highway", "hwy",
		"parkway", "pkwy", "place", "pl", "circle", "cir", "trail", "trl",
		"terrace", "suite", "route",
	)
	addressLeadRe  = regexp.MustCompile(`(?i)\b(?:near|around|close to|by|at|from|in)\s+`)
	radiusClauseRe = regexp.MustCompile(`(?i)\s*\b(?:within|in|inside)\s+(?:a\s+)?\d+(?:\.\d+)?\s*-?\s*(?:miles?|mi|kilometers?|kilometres?|kms?)\b.*$`)

	// cityStop lists capitalized words that precede a state but are not
	// part of a city name.
	cityStop = map[string]bool{
		"find": true, "near": true, "in": true, "around": true, "by": true,
		"the": true, "show": true, "me": true, "any": true, "i": true,
		"we": true, "please": true, "recommend": true, "search": true,
		"look": true, "what": true, "where": true, "are": true, "there": true,
		"to": true, "from": true, "of": true, "within": true, "at": true,
		"our": true, "trip": true, "camp": true, "go": true,
	}
)

func stateNamesRe() *regexp.Regexp {
	names := make([]string, 0, len(usStates))
	for n := range usStates {
		names = append(names, n)
	}
	// Longest first so "west virginia" is preferred over "virginia".
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return wordsRe(names...)
}

func stateAbbrevsRe() *regexp.Regexp {
	abbrevs := make([]string, 0, len(usStates))
	for _, a := range usStates {
		abbrevs = append(abbrevs, a)
	}
	sort.Strings(abbrevs)
	return regexp.MustCompile(`\b(?:` + strings.Join(abbrevs, "|") + `)\b`)
}

// ExtractLocationHint returns a US location mentioned in the message:
// a state name or uppercase postal abbreviation together with up to
// three capitalized words before it ("Orlando FL", "Saint Augustine,
// Florida"), a 5-digit ZIP, or both. It returns "" when none is found.
func ExtractLocationHint(msg string) string {
	zip := ""
	if m := zipRe.FindStringSubmatch(msg); m != nil {
		zip = m[1]
	}

	loc := leftmost(stateNameRe.FindStringIndex(msg), stateAbbrevRe.FindStringIndex(msg))
	if loc == nil {
		return zip
	}
	hint := strings.TrimSpace(cityBefore(msg[:loc[0]]) + " " + msg[loc[0]:loc[1]])
	if zip != "" && !strings.Contains(hint, zip) {
		hint += " " + zip
	}
	return hint
}

func leftmost(a, b []int) []int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b[0] < a[0]:
		return b
	}
	return a
}

func cityBefore(prefix string) string {
	fields := strings.Fields(prefix)
	var city []string
	for i := len(fields) - 1; i >= 0 && len(city) < 3; i-- {
		w := fields[i]
		clean := strings.TrimRight(w, ",")
		if clean == "" || (clean != w && len(city) > 0) {
			break
		}
		r := []rune(clean)
		if !unicode.IsUpper(r[0]) || cityStop[strings.ToLower(clean)] {
			break
		}
		if strings.IndexFunc(clean, func(r rune) bool { return !unicode.IsLetter(r) && r != '.' && r != '\'' && r != '-' }) >= 0 {
			break
		}
		city = append([]string{w}, city...)
	}
	return strings.Join(city, " ")
}

// ExtractRadiusKm parses "N miles" or "N km" into whole kilometers.
// Miles are converted at 1.60934 km and rounded to the nearest integer.
func ExtractRadiusKm(msg string) (int, bool) {
	m := radiusRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "mi") {
		return int(math.Round(n * kmPerMile)), true
	}
	return int(math.Round(n)), true
}

// ExtractRequestedCount returns how many results the user asked for:
// the first standalone number between 1 and 20 that is not part of a
// radius, amount or date, else an English number word one through ten.
func ExtractRequestedCount(msg string) (int, bool) {
	cleaned := radiusRe.ReplaceAllString(msg, " ")
	cleaned = moneyRe.ReplaceAllString(cleaned, " ")
	for _, m := range smallRe.FindAllStringSubmatch(cleaned, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 20 {
			return n, true
		}
	}
	if m := numberWordRe.FindStringSubmatch(cleaned); m != nil {
		return numberWords[strings.ToLower(m[1])], true
	}
	return 0, false
}

// LooksLikeAddress reports whether s plausibly is a street address: at
// least six characters with a digit and a street word or comma, or any
// text carrying a ZIP code.
func LooksLikeAddress(s string) bool {
	s = strings.TrimSpace(s)
	if zipRe.MatchString(s) {
		return true
	}
	if len(s) < 6 || !digitRe.MatchString(s) {
		return false
	}
	return streetRe.MatchString(s) || strings.Contains(s, ",")
}

// ExtractAddressPhrase returns the address following a locality word
// ("near 100 Main St, Springfield"), with any trailing radius clause
// removed, or "" when what follows does not look like an address.
func ExtractAddressPhrase(msg string) string {
	for _, loc := range addressLeadRe.FindAllStringIndex(msg, -1) {
		cand := radiusClauseRe.ReplaceAllString(msg[loc[1]:], "")
		cand = strings.TrimRight(strings.TrimSpace(cand), ".?!")
		if LooksLikeAddress(cand) {
			return cand
		}
	}
	return ""
}

// RentalDetails are the transportation facts found in a message.
type RentalDetails struct {
	VehicleType      string `json:"vehicle_type,omitempty"`
	Passengers       int    `json:"passengers,omitempty"`
	Days             int    `json:"days,omitempty"`
	VehiclesCount    int    `json:"vehicles_count"`
	VehiclesExplicit bool   `json:"-"`
}

var (
	vehicleRules = []struct {
		re     *regexp.Regexp
		bucket string
	}{
		{regexp.MustCompile(`(?i)\b15-(?:passenger|pax|seater)\b|\b15\s+(?:passenger|pax|seater)\s+vans?\b`), rental.Van15},
		{regexp.MustCompile(`(?i)\b12-(?:passenger|pax|seater)\b|\b12\s+(?:passenger|pax|seater)\s+vans?\b`), rental.Van12},
		{regexp.MustCompile(`(?i)\bmini[\s-]?vans?\b`), rental.Minivan},
		{regexp.MustCompile(`(?i)\bschool\s+bus(?:es)?\b`), rental.SchoolBus},
		{regexp.MustCompile(`(?i)\bshuttles?(?:\s+bus(?:es)?)?\b`), rental.ShuttleBus},
		{regexp.MustCompile(`(?i)\bmini[\s-]?bus(?:es)?\b`), rental.MiniBus},
		{regexp.MustCompile(`(?i)\b(?:motor\s*)?coach(?:es)?\b`), rental.Coach},
		{regexp.MustCompile(`(?i)\bbus(?:es)?\b`), rental.Bus},
		{regexp.MustCompile(`(?i)\bsuvs?\b`), rental.SUV},
		{regexp.MustCompile(`(?i)\bpassenger\s+vans?\b`), rental.PassengerVan},
		{regexp.MustCompile(`(?i)\bvans?\b`), rental.Van},
		{regexp.MustCompile(`(?i)\bcars?\b`), rental.Car},
	}

	passengersRe = regexp.MustCompile(`(?i)\b` + countPattern + `\s+(?:people|persons|passengers|kids|children|students|riders|youth|campers|members|scouts)\b`)
	daysRe       = regexp.MustCompile(`(?i)\b` + countPattern + `[\s-]*(?:days?|nights?)\b`)
	vehiclesRe   = regexp.MustCompile(`(?i)\b` + countPattern + `\s+(?:(?:15|12)[\s-]*(?:passenger|pax|seater)\s+)?(?:vans|buses|cars|suvs|minivans|coaches|vehicles|shuttles|van|bus|car|suv|minivan|coach|vehicle|shuttle)\b`)
)

// countPattern captures a count written as digits or as a number word
// one through ten.
const countPattern = `(\d+|one|two|three|four|five|six|seven|eight|nine|ten)`

func parseCount(s string) int {
	if n, ok := numberWords[strings.ToLower(s)]; ok {
		return n
	}
	n, _ := strconv.Atoi(s)
	return n
}

// ExtractRentalDetails finds vehicle type, passengers, days and vehicle
// count in a message using the stock capacity table.
func ExtractRentalDetails(msg string) RentalDetails {
	return ExtractRentalDetailsWith(msg, rental.DefaultParams())
}

// ExtractRentalDetailsWith is ExtractRentalDetails with explicit
// estimator parameters, whose capacity table infers the vehicle count
// from the passenger count when none is stated.
func ExtractRentalDetailsWith(msg string, p rental.Params) RentalDetails {
	var d RentalDetails
	for _, r := range vehicleRules {
		if r.re.MatchString(msg) {
			d.VehicleType = r.bucket
			break
		}
	}
	if m := passengersRe.FindStringSubmatch(msg); m != nil {
		d.Passengers = parseCount(m[1])
	}
	if m := daysRe.FindStringSubmatch(msg); m != nil {
		d.Days = parseCount(m[1])
	}
	if m := vehiclesRe.FindStringSubmatch(msg); m != nil {
		if n := parseCount(m[1]); n > 0 {
			d.VehiclesCount = n
			d.VehiclesExplicit = true
		}
	}
	if !d.VehiclesExplicit {
		d.VehiclesCount = 1
		if d.VehicleType != "" {
			d.VehiclesCount = p.VehiclesFor(d.VehicleType, d.Passengers)
		}
	}
	return d
}

var (
	travelToRe = regexp.MustCompile(`(?i)\b(?:go(?:ing)?|trip|drive|driving|travel(?:ing|ling)?|head(?:ing)?|headed|ride)\s+to\s+([^,.;!?\n]+)`)
	bareToRe   = regexp.MustCompile(`\bto\s+([A-Z][^,.;!?\n]*)`)
	clauseEnd  = regexp.MustCompile(`(?i)\s+(?:for|on|from|with|and|next|this|during|by|within|in\s+\d)\b.*$`)
)

// ExtractDestination returns the place named after "go to" / "trip to"
// or, failing that, after a "to" followed by a capitalized word.
func ExtractDestination(msg string) string {
	m := travelToRe.FindStringSubmatch(msg)
	if m == nil {
		m = bareToRe.FindStringSubmatch(msg)
	}
	if m == nil {
		return ""
	}
	dest := clauseEnd.ReplaceAllString(m[1], "")
	dest = strings.TrimSpace(dest)
	dest = strings.TrimPrefix(dest, "the ")
	return dest
}
