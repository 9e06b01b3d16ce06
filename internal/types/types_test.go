package types

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
	}{
		{"canonical string", "2024-01-01T00:00:00Z"},
		{"sub-second precision", "2024-01-01T00:00:00.123Z"},
		{"epoch milliseconds float", float64(1704067200000)},
		{"epoch milliseconds int", int64(1704067200000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.value)
			if err != nil {
				t.Fatalf("ParseTimestamp(%v) error = %v, want nil", tt.value, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseTimestamp(%v) = %v, want %v", tt.value, got, want)
			}
		})
	}
}

func TestParseTimestamp_Errors(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"garbage string", "not a time"},
		{"nil", nil},
		{"boolean", true},
		{"mapping", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTimestamp(tt.value)
			var tsErr *TimestampError
			if !errors.As(err, &tsErr) {
				t.Fatalf("ParseTimestamp(%v) error = %v, want TimestampError", tt.value, err)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 30, 45, 123456789, time.UTC)
	if got := FormatTimestamp(at); got != "2024-06-01T12:30:45Z" {
		t.Errorf("FormatTimestamp() = %q", got)
	}
}

func TestRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	if a == b {
		t.Errorf("NewRunID() produced duplicate ids: %s", a)
	}
	if _, err := ParseRunID(string(a)); err != nil {
		t.Errorf("ParseRunID(%s) error = %v, want nil", a, err)
	}
	if _, err := ParseRunID("not-a-uuid"); err == nil {
		t.Errorf("ParseRunID(not-a-uuid) error = nil, want error")
	}
}

func TestMappingKind_Valid(t *testing.T) {
	if !KindAction.Valid() || !KindActivity.Valid() {
		t.Errorf("built-in kinds must be valid")
	}
	if MappingKind("event").Valid() {
		t.Errorf("unknown kind must be invalid")
	}
}
