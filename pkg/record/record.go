// Package record provides path lookup and copy-on-write merging over the
// nested map/slice documents that applicant data is decoded into.
package record

import (
	"strconv"
	"strings"
)

// Record is an applicant document: JSON-shaped nested maps, slices and scalars.
type Record = map[string]any

// Lookup walks a dot-separated path. Map segments select keys; numeric
// segments index slices. Any missing step yields (nil, false).
func Lookup(doc map[string]any, path string) (any, bool) {
	if doc == nil || path == "" {
		return nil, false
	}
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Clone deep-copies maps and slices; scalars are shared.
func Clone(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch node := v.(type) {
	case map[string]any:
		return Clone(node)
	case []any:
		out := make([]any, len(node))
		for i, item := range node {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Merge returns a new document equal to base with delta deep-merged on top.
// Nested maps merge key by key; any other delta value replaces the base value.
// Neither input is modified.
func Merge(base, delta map[string]any) map[string]any {
	out := Clone(base)
	for k, v := range delta {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = Merge(existing, sub)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

// Set returns a delta document placing value at path, creating intermediate maps.
func Set(path string, value any) map[string]any {
	segments := strings.Split(path, ".")
	leaf := map[string]any{segments[len(segments)-1]: value}
	for i := len(segments) - 2; i >= 0; i-- {
		leaf = map[string]any{segments[i]: leaf}
	}
	return leaf
}
