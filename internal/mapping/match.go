// internal/mapping/match.go
package mapping

import (
	"regexp"
	"strconv"
	"strings"
)

/*
 * Condition matching for rule documents.
 *
 * Compares a rule-specified expected value against an actual extracted value
 * with recursive required-if-present semantics:
 *
 *   - expected mapping: every pair whose key is present in the actual
 *     sub-mapping must match recursively; pairs absent from the actual value
 *     are trivially satisfied. This is not strict key-set equality.
 *   - expected sequence: actual must be a non-empty sequence; elements are
 *     zipped positionally to the shorter length and all must match.
 *   - expected string bounded by ^...$: full regular-expression match against
 *     the actual value coerced to string.
 *   - anything else: equality with numeric tolerance (float64/int/int64 from
 *     JSON decoding compare equal when numerically equal).
 */

// Match reports whether actual satisfies the expected condition value.
func Match(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		obj, ok := asMapping(actual)
		if !ok {
			// Non-mapping actual cannot contain any of the expected keys
			return len(exp) == 0
		}
		for key, sub := range exp {
			inner, present := obj[key]
			if !present {
				continue
			}
			if !Match(inner, sub) {
				return false
			}
		}
		return true

	case []any:
		seq, ok := actual.([]any)
		if !ok || len(seq) == 0 {
			return false
		}
		n := len(seq)
		if len(exp) < n {
			n = len(exp)
		}
		for i := 0; i < n; i++ {
			if !Match(seq[i], exp[i]) {
				return false
			}
		}
		return true

	case string:
		if isAnchoredPattern(exp) {
			return matchPattern(exp, actual)
		}
		return equal(actual, expected)

	default:
		return equal(actual, expected)
	}
}

// isAnchoredPattern reports whether s is a ^...$ bounded regex pattern.
// Unanchored strings are plain equality operands.
func isAnchoredPattern(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, "^") && strings.HasSuffix(s, "$")
}

// matchPattern matches actual (coerced to string) against an anchored regex.
// An uncompilable pattern never matches; document authors get the miss
// surfaced through classification rather than a hard failure mid-batch.
func matchPattern(pattern string, actual any) bool {
	s, ok := coerceString(actual)
	if !ok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// coerceString renders scalar values as strings for regex matching.
// Mappings, sequences, and nulls have no string form.
func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// equal performs equality comparison with numeric type coercion.
// Handles float64/int/int64 mixing for JSON compatibility.
func equal(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return a == b
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
// Handles float64, int, int64 from JSON unmarshaling.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
