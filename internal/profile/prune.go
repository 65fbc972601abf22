package profile

import "strings"

// Prune recursively removes empty values from a decoded JSON tree and returns
// the cleaned value, or nil if the value itself is empty.
//
// Empty means: nil, an empty or whitespace-only string, the literal string
// "null", an empty list, or an empty mapping. A mapping entry whose value
// prunes to nil is dropped; a list's nil elements are dropped and a list that
// becomes fully empty collapses to nil at its parent. Non-string scalars
// (numbers, booleans) pass through unchanged.
//
// Prune is idempotent: applying it twice yields the same result as once.
func Prune(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if cleaned := Prune(item); cleaned != nil {
				out[k] = cleaned
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out

	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if cleaned := Prune(item); cleaned != nil {
				out = append(out, cleaned)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out

	case string:
		s := strings.TrimSpace(val)
		if s == "" || s == "null" {
			return nil
		}
		return s

	case nil:
		return nil

	default:
		return val
	}
}
