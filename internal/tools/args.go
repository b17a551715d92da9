package tools

import (
	"strings"
	"time"
)

// Argument accessors. Arguments arrive as decoded JSON, so numbers are
// float64. Each accessor reports whether the key held a usable value.

func argString(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

func argNumber(args map[string]any, key string) (float64, bool) {
	switch n := args[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func argInt(args map[string]any, key string) (int, bool) {
	n, ok := argNumber(args, key)
	return int(n), ok
}

func argBool(args map[string]any, key string) (bool, bool) {
	b, ok := args[key].(bool)
	return b, ok
}

func argObject(args map[string]any, key string) (map[string]any, bool) {
	m, ok := args[key].(map[string]any)
	return m, ok
}

func argObjects(args map[string]any, key string) []map[string]any {
	arr, _ := args[key].([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func argStrings(args map[string]any, key string) []string {
	arr, _ := args[key].([]any)
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if s, ok := el.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04", time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
