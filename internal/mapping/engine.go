// internal/mapping/engine.go
package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forgemap/forgemap/internal/types"
)

/*
 * Rule engine: classification + projection over one mapping document.
 *
 * Per record:
 *   1. Normalize a working copy: parse a string-serialized payload field,
 *      rewrite the timestamp field to canonical second-precision UTC.
 *   2. Extract the discriminator value via the configured dotted path.
 *   3. First-match-wins over rules in document order: the rule discriminator
 *      must equal the record's, and every other match entry must satisfy
 *      Match against the value extracted at its dotted path.
 *   4. Build {outputKey: ruleName, common fields when requested, details}.
 *   5. No match: strict fails the batch with the offending record; flexible
 *      logs one advisory per batch and maps through the fallback rule.
 *
 * The engine is immutable after construction and holds no cross-call state;
 * the same type drives both the event->action and action->activity stages,
 * parameterized only by the document.
 */

// Strategy selects the no-match policy for a batch.
type Strategy string

const (
	// StrategyStrict aborts the batch on the first unmapped record.
	StrategyStrict Strategy = "strict"

	// StrategyFlexible maps unmapped records through the fallback rule,
	// logging one advisory per batch.
	StrategyFlexible Strategy = "flexible"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyStrict || s == StrategyFlexible
}

// Engine classifies records against one mapping document.
type Engine struct {
	doc      *Document
	strategy Strategy
	fallback *Rule
	discLeaf string
	log      zerolog.Logger
}

// NewEngine builds an engine for doc under the given strategy.
// Flexible strategy requires the document's reserved fallback rule.
func NewEngine(doc *Document, strategy Strategy, log zerolog.Logger) (*Engine, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidStrategy, strategy)
	}

	engine := &Engine{
		doc:      doc,
		strategy: strategy,
		discLeaf: doc.DiscriminatorLeaf(),
		log:      log,
	}

	if strategy == StrategyFlexible {
		engine.fallback = doc.FindRule(doc.FallbackName)
		if engine.fallback == nil {
			return nil, fmt.Errorf("%w: %q", types.ErrMissingFallbackRule, doc.FallbackName)
		}
	}

	return engine, nil
}

// MapBatch classifies every record in order. Strict-mode classification
// failures and timestamp normalization failures abort the whole batch; no
// partial output is returned.
func (e *Engine) MapBatch(records []types.Record) ([]types.Record, error) {
	out := make([]types.Record, 0, len(records))
	warned := false

	for _, record := range records {
		working, err := e.normalize(record)
		if err != nil {
			return nil, err
		}

		rule := e.classify(working)
		if rule == nil {
			if e.strategy == StrategyStrict {
				return nil, &types.ClassificationError{Record: working}
			}
			if !warned {
				e.log.Warn().
					Str("fallback", e.doc.FallbackName).
					Msg("some records matched no rule and were mapped through the fallback category")
				warned = true
			}
			rule = e.fallback
		}

		out = append(out, e.buildOutput(working, rule))
	}

	return out, nil
}

// classify returns the first rule matching the record, or nil.
func (e *Engine) classify(record types.Record) *Rule {
	discriminator := Extract(record, e.doc.Parameters.DiscriminatorKey)

	for i := range e.doc.Rules {
		rule := &e.doc.Rules[i]
		if !equal(discriminator, rule.Match[e.discLeaf]) {
			continue
		}
		if !e.conditionsHold(record, rule) {
			continue
		}
		return rule
	}
	return nil
}

// conditionsHold checks every non-discriminator match entry, each keyed by a
// dotted record path.
func (e *Engine) conditionsHold(record types.Record, rule *Rule) bool {
	for path, expected := range rule.Match {
		if path == e.discLeaf {
			continue
		}
		if !Match(Extract(record, path), expected) {
			return false
		}
	}
	return true
}

// normalize returns a shallow working copy with the payload deserialized and
// the timestamp rewritten to canonical form. The input record is not
// mutated; nested values are shared with the caller but never written to.
func (e *Engine) normalize(record types.Record) (types.Record, error) {
	working := make(types.Record, len(record))
	for k, v := range record {
		working[k] = v
	}

	if serialized, ok := working["payload"].(string); ok {
		var payload any
		if err := json.Unmarshal([]byte(serialized), &payload); err != nil {
			return nil, fmt.Errorf("deserializing payload: %w", err)
		}
		working["payload"] = payload
	}

	key := e.doc.Parameters.TimestampKey
	switch working[key].(type) {
	case string, float64, int, int64:
		parsed, err := types.ParseTimestamp(working[key])
		if err != nil {
			return nil, err
		}
		working[key] = types.FormatTimestamp(parsed)
	}

	return working, nil
}

// buildOutput assembles the mapped record for a matched rule.
func (e *Engine) buildOutput(record types.Record, rule *Rule) types.Record {
	out := types.Record{e.doc.OutputKey: rule.Name}

	if rule.IncludeCommonFields && e.doc.CommonFields != nil {
		for k, v := range Project(record, e.doc.CommonFields) {
			out[k] = v
		}
	}

	if rule.Details != nil {
		out["details"] = Project(record, rule.Details)
	} else {
		out["details"] = types.Record{}
	}

	return out
}
