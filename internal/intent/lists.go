package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	thousandsRe = regexp.MustCompile(`(\d),(\d{3})\b`)
	splitRe     = regexp.MustCompile(`[\n;,]+`)
	bulletRe    = regexp.MustCompile(`^(?:[-*•·–—>]+|\d+[.)]|\[[ xX]?\])\s*`)
	andRe       = regexp.MustCompile(`(?i)^(?:and|also|plus)\s+`)

	// labelRe recognizes a leading "Tasks:" style label. The label must
	// be list vocabulary so "Bus: $500" keeps its description.
	labelRe = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:add|create|set|here\s+are|new|the)?\s*(?:the\s+)?(?:following\s+)?` +
		`(?:tasks?|to-?dos?|items?|budget(?:\s+items?)?|expenses?|participants?|attendees?|people|names|missing(?:\s+items?)?|checklist|reminders?|list)\s*:\s*`)

	qtyRe       = regexp.MustCompile(`(?i)\b(\d+)\s*[x×]\s*|\s*[x×]\s*(\d+)\b`)
	dollarRe    = regexp.MustCompile(`\$\s*(\d+(?:\.\d{1,2})?)`)
	bareNumRe   = regexp.MustCompile(`\b(\d+(?:\.\d{1,2})?)\b`)
	descTrimSet = " \t-:=@–—"
	descTailRe  = regexp.MustCompile(`(?i)\s+(?:for|at|costs?|is|of|each)$`)
)

// ParseListItems splits free text into list entries on newlines,
// semicolons and commas, dropping a leading list label, bullets and
// numbering.
func ParseListItems(text string) []string {
	text = thousandsRe.ReplaceAllString(text, "$1$2")
	text = labelRe.ReplaceAllString(text, "")
	var out []string
	for _, part := range splitRe.Split(text, -1) {
		item := strings.TrimSpace(part)
		item = bulletRe.ReplaceAllString(item, "")
		item = andRe.ReplaceAllString(item, "")
		item = strings.TrimSpace(strings.TrimRight(item, "."))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// BudgetLine is one parsed budget entry.
type BudgetLine struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Qty         int     `json:"qty"`
	HasAmount   bool    `json:"-"`
}

// ParseBudgetItems parses entries like "Bus rental $850",
// "Snacks 120" or "2 x Campsite $45". Entries without a description
// are dropped; entries without an amount keep Amount zero.
func ParseBudgetItems(text string) []BudgetLine {
	var out []BudgetLine
	for _, item := range ParseListItems(text) {
		line := BudgetLine{Qty: 1}
		rest := item

		if m := qtyRe.FindStringSubmatchIndex(rest); m != nil {
			num := submatch(rest, m, 1)
			if num == "" {
				num = submatch(rest, m, 2)
			}
			if n, err := strconv.Atoi(num); err == nil && n > 0 {
				line.Qty = n
				rest = rest[:m[0]] + " " + rest[m[1]:]
			}
		}

		if m := dollarRe.FindStringSubmatchIndex(rest); m != nil {
			line.Amount, _ = strconv.ParseFloat(rest[m[2]:m[3]], 64)
			line.HasAmount = true
			rest = rest[:m[0]] + " " + rest[m[1]:]
		} else if all := bareNumRe.FindAllStringSubmatchIndex(rest, -1); len(all) > 0 {
			m := all[len(all)-1]
			line.Amount, _ = strconv.ParseFloat(rest[m[2]:m[3]], 64)
			line.HasAmount = true
			rest = rest[:m[0]] + " " + rest[m[1]:]
		}

		desc := strings.Join(strings.Fields(rest), " ")
		desc = strings.Trim(desc, descTrimSet)
		desc = descTailRe.ReplaceAllString(desc, "")
		desc = strings.Trim(desc, descTrimSet)
		if desc == "" {
			continue
		}
		line.Description = desc
		out = append(out, line)
	}
	return out
}

func submatch(s string, idx []int, n int) string {
	if 2*n+1 >= len(idx) || idx[2*n] < 0 {
		return ""
	}
	return s[idx[2*n]:idx[2*n+1]]
}

// ParticipantLine is one parsed participant entry.
type ParticipantLine struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// ParseParticipants parses entries of the form "Name - role - status".
// Role defaults to guest and status to invited.
func ParseParticipants(text string) []ParticipantLine {
	var out []ParticipantLine
	for _, item := range ParseListItems(text) {
		parts := strings.Split(item, " - ")
		p := ParticipantLine{
			Name:   strings.TrimSpace(parts[0]),
			Role:   "guest",
			Status: "invited",
		}
		if p.Name == "" {
			continue
		}
		if len(parts) > 1 {
			if r := strings.ToLower(strings.TrimSpace(parts[1])); r != "" {
				p.Role = r
			}
		}
		if len(parts) > 2 {
			if s := strings.ToLower(strings.TrimSpace(parts[2])); s != "" {
				p.Status = s
			}
		}
		out = append(out, p)
	}
	return out
}
