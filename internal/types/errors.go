package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for forgemap operations.
var (
	// ErrInvalidStrategy indicates an unknown mapping strategy value.
	ErrInvalidStrategy = errors.New("invalid mapping strategy")

	// ErrMissingFallbackRule indicates a flexible-strategy document without
	// its reserved fallback rule.
	ErrMissingFallbackRule = errors.New("mapping document has no fallback rule")

	// ErrMalformedFieldSpec indicates a field-mapping spec with an invalid
	// shape (empty list form, or a list element that is not a mapping).
	ErrMalformedFieldSpec = errors.New("malformed field-mapping spec")

	// ErrMalformedDocument indicates a mapping document that is not a JSON
	// object or lacks a rule section.
	ErrMalformedDocument = errors.New("malformed mapping document")

	// ErrInvalidMappingName indicates a mapping filename that does not follow
	// the {platform}_{kind}_{date}.json convention.
	ErrInvalidMappingName = errors.New("invalid mapping filename")

	// ErrNoMappingVersion indicates no mapping version is effective at the
	// requested time.
	ErrNoMappingVersion = errors.New("no mapping version effective at time")
)

// ClassificationError reports a record that matched no rule under the strict
// mapping strategy. Carries the record snapshot so the caller can identify
// the offending input.
type ClassificationError struct {
	Record Record
}

func (e *ClassificationError) Error() string {
	snapshot, err := json.Marshal(e.Record)
	if err != nil {
		return fmt.Sprintf("no rule matched record: %v", e.Record)
	}
	return fmt.Sprintf("no rule matched record: %s", snapshot)
}

// TimestampError reports a record timestamp that could not be parsed where
// normalization is mandatory. Partitioning recovers from these by dropping
// the record; the rule engine does not.
type TimestampError struct {
	Value any
	Cause error
}

func (e *TimestampError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unparseable timestamp %v: %v", e.Value, e.Cause)
	}
	return fmt.Sprintf("unparseable timestamp %v (string or epoch milliseconds expected)", e.Value)
}

func (e *TimestampError) Unwrap() error {
	return e.Cause
}
