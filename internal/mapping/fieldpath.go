// internal/mapping/fieldpath.go
package mapping

import (
	"strings"

	"github.com/forgemap/forgemap/internal/types"
)

/*
 * Dotted field path resolution for records.
 *
 * Resolves paths like "payload.pull_request.user.login" against a nested
 * record, walking keys left to right. Any absent intermediate key or null
 * value resolves to nil rather than an error; classification treats a nil
 * extraction the same as an explicit null in the record.
 *
 * List short-circuit: when traversal reaches a sequence, the sequence itself
 * is returned and remaining path segments are ignored. List-extraction
 * callers (project.go) rely on this to receive the raw list at the point a
 * path crosses into one; the trailing segments are applied per element there.
 */

// Extract resolves a dotted field path against a record.
// Returns nil when any intermediate key is absent or null.
func Extract(record types.Record, path string) any {
	return ExtractSegments(record, strings.Split(path, "."))
}

// ExtractSegments resolves a pre-split field path against a record.
func ExtractSegments(record types.Record, segments []string) any {
	current := any(map[string]any(record))
	for _, key := range segments {
		if seq, ok := current.([]any); ok {
			// Path crossed into a sequence: hand back the whole list
			return seq
		}
		obj, ok := asMapping(current)
		if !ok {
			return nil
		}
		next, ok := obj[key]
		if !ok || next == nil {
			return nil
		}
		current = next
	}
	return current
}

// asMapping normalizes the two mapping shapes that occur in practice:
// map[string]any from JSON decoding and types.Record built by a stage.
func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case types.Record:
		return m, true
	default:
		return nil, false
	}
}
