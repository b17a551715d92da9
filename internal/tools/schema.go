package tools

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Limits are the lower bounds a tool places on its arguments, keyed by
// property name. jsonschema.Definition has no keywords for them.
type Limits struct {
	Min      map[string]float64
	MinItems map[string]int
}

// validate checks args against a tool's parameter definition. Null
// members count as absent. jsonschema.Validate decides; when it rejects
// the arguments, locate names the first offending path.
func validate(t *Tool, args map[string]any) error {
	clean, _ := dropNulls(args).(map[string]any)
	if !jsonschema.Validate(t.Parameters, clean) {
		return locate(t.Parameters, clean, "")
	}
	return checkLimits(t.Parameters, t.Limits, clean, "")
}

func locate(def jsonschema.Definition, v any, path string) error {
	switch def.Type {
	case jsonschema.Object:
		obj, ok := v.(map[string]any)
		if !ok {
			return mismatch(def, v, path)
		}
		for _, key := range def.Required {
			if _, present := obj[key]; !present {
				return &ValidationError{Path: join(path, key), Reason: "is required"}
			}
		}
		for _, key := range slices.Sorted(maps.Keys(def.Properties)) {
			sub := def.Properties[key]
			if val, present := obj[key]; present && !jsonschema.Validate(sub, val) {
				return locate(sub, val, join(path, key))
			}
		}
	case jsonschema.Array:
		arr, ok := v.([]any)
		if !ok {
			return mismatch(def, v, path)
		}
		if def.Items != nil {
			for i, el := range arr {
				if !jsonschema.Validate(*def.Items, el) {
					return locate(*def.Items, el, fmt.Sprintf("%s[%d]", path, i))
				}
			}
		}
	default:
		if _, isString := v.(string); isString && def.Type == jsonschema.String && len(def.Enum) > 0 {
			return &ValidationError{Path: path, Reason: "must be one of " + strings.Join(def.Enum, ", ")}
		}
		return mismatch(def, v, path)
	}
	return &ValidationError{Path: path, Reason: "does not match the tool schema"}
}

func checkLimits(def jsonschema.Definition, lim Limits, v any, path string) error {
	switch def.Type {
	case jsonschema.Object:
		obj, _ := v.(map[string]any)
		for _, key := range slices.Sorted(maps.Keys(def.Properties)) {
			val, present := obj[key]
			if !present {
				continue
			}
			p := join(path, key)
			if floor, ok := lim.Min[key]; ok {
				if n, isNum := asFloat(val); isNum && n < floor {
					return &ValidationError{Path: p, Reason: fmt.Sprintf("must be at least %g", floor)}
				}
			}
			if floor, ok := lim.MinItems[key]; ok {
				if arr, isArr := val.([]any); isArr && len(arr) < floor {
					return &ValidationError{Path: p, Reason: fmt.Sprintf("needs at least %d item(s)", floor)}
				}
			}
			if err := checkLimits(def.Properties[key], lim, val, p); err != nil {
				return err
			}
		}
	case jsonschema.Array:
		arr, _ := v.([]any)
		if def.Items == nil {
			return nil
		}
		for i, el := range arr {
			if err := checkLimits(*def.Items, lim, el, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func dropNulls(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			if el != nil {
				out[k] = dropNulls(el)
			}
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = dropNulls(el)
		}
		return out
	}
	return v
}

func mismatch(def jsonschema.Definition, v any, path string) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf("expected %s, got %s", def.Type, typeName(v))}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
