// Package types provides domain models shared across forgemap components.
//
// Zero-dependency design: types.go and errors.go use only the standard
// library. ID utilities in ids.go import uuid but are isolated so callers
// that never generate run IDs do not pull it in.
package types

import (
	"strings"
	"time"
)

// Record is one structured unit flowing through the pipeline: a raw forge
// event, a mapped action, or a mapped activity. Values are the shapes
// encoding/json produces for `any`: string, float64, bool, nil,
// map[string]any, []any. Stages treat records as owned by the producer and
// never mutate one they did not create.
type Record map[string]any

// MappingKind distinguishes the two rule stages a mapping document drives.
type MappingKind string

const (
	// KindAction maps raw events to actions (stage one).
	KindAction MappingKind = "action"

	// KindActivity maps actions to activities (stage two).
	KindActivity MappingKind = "activity"
)

// Valid reports whether k names a known mapping stage.
func (k MappingKind) Valid() bool {
	return k == KindAction || k == KindActivity
}

// TimestampLayout is the canonical wire format every normalized record
// timestamp is rewritten to: second precision, UTC, trailing Z.
const TimestampLayout = "2006-01-02T15:04:05Z"

// ParseTimestamp parses a normalized or ISO-like timestamp value as found in
// raw records: either a string (sub-second precision tolerated and dropped)
// or a JSON number holding epoch milliseconds.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := t
		if i := strings.IndexByte(s, '.'); i >= 0 {
			s = s[:i] + "Z"
		}
		parsed, err := time.Parse(TimestampLayout, s)
		if err != nil {
			return time.Time{}, &TimestampError{Value: v, Cause: err}
		}
		return parsed, nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	default:
		return time.Time{}, &TimestampError{Value: v}
	}
}

// FormatTimestamp renders t in the canonical wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
