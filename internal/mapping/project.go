// internal/mapping/project.go
package mapping

import (
	"strings"

	"github.com/forgemap/forgemap/internal/types"
)

/*
 * Record projection for field-mapping specs.
 *
 * A spec is an arbitrarily nested mapping of output key to one of:
 *   - a dotted path string (leaf): resolved via Extract
 *   - a nested mapping: recursed and nested in the output
 *   - a one-element sequence containing a mapping of output key -> dotted
 *     path (list extraction): all contained paths share a parent list path
 *     (last segment dropped); one output element is produced per source list
 *     item with each output key set to item[lastSegment].
 *
 * Projection is a pure function of (record, spec); applying it twice yields
 * identical output. Spec shape validation happens at document load
 * (ValidateFieldSpec), so Project assumes a well-formed spec.
 */

// Project produces an output record from record according to spec.
func Project(record types.Record, spec map[string]any) types.Record {
	out := make(types.Record, len(spec))
	for key, sub := range spec {
		switch mapping := sub.(type) {
		case map[string]any:
			out[key] = Project(record, mapping)
		case []any:
			out[key] = projectList(record, mapping)
		default:
			path, _ := sub.(string)
			out[key] = Extract(record, path)
		}
	}
	return out
}

// projectList applies the one-element list-extraction form. The shared list
// path is any contained path with its last segment dropped; a non-sequence
// at that path yields an empty list.
func projectList(record types.Record, form []any) []any {
	element, ok := form[0].(map[string]any)
	if !ok {
		return []any{}
	}

	var parent []string
	for _, p := range element {
		if path, ok := p.(string); ok {
			segments := strings.Split(path, ".")
			parent = segments[:len(segments)-1]
			break
		}
	}

	base, ok := ExtractSegments(record, parent).([]any)
	if !ok {
		return []any{}
	}

	out := make([]any, 0, len(base))
	for _, item := range base {
		row := make(map[string]any, len(element))
		for key, p := range element {
			path, _ := p.(string)
			segments := strings.Split(path, ".")
			last := segments[len(segments)-1]
			if obj, ok := asMapping(item); ok {
				row[key] = obj[last]
			} else {
				row[key] = nil
			}
		}
		out = append(out, row)
	}
	return out
}

// ValidateFieldSpec checks a field-mapping spec shape at document load time.
// Leaves must be strings, nested values mappings, and the list form exactly
// one element holding a mapping of output key to dotted path string.
func ValidateFieldSpec(spec map[string]any) error {
	for _, sub := range spec {
		switch v := sub.(type) {
		case map[string]any:
			if err := ValidateFieldSpec(v); err != nil {
				return err
			}
		case []any:
			if len(v) != 1 {
				return types.ErrMalformedFieldSpec
			}
			element, ok := v[0].(map[string]any)
			if !ok || len(element) == 0 {
				return types.ErrMalformedFieldSpec
			}
			for _, p := range element {
				if _, ok := p.(string); !ok {
					return types.ErrMalformedFieldSpec
				}
			}
		case string:
			// dotted path leaf
		default:
			return types.ErrMalformedFieldSpec
		}
	}
	return nil
}
