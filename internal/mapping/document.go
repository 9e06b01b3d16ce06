// internal/mapping/document.go
package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgemap/forgemap/internal/types"
)

/*
 * Mapping document parsing.
 *
 * A document has three parts: parameters (discriminator and timestamp field
 * paths), common_fields (a field-mapping spec merged into every matched
 * output that requests it), and one rule section ("actions" or "activities")
 * mapping output category names to rules.
 *
 * Rule order is load-bearing: classification is first-match-wins in document
 * order, so the section is decoded with a json.Decoder token walk instead of
 * an ordinary map unmarshal (Go maps would lose declaration order and break
 * the tie-break). Field-mapping spec shapes are validated here so malformed
 * documents fail at load time, not mid-batch.
 */

// Reserved fallback category names per rule section.
const (
	FallbackAction   = "UnknownAction"
	FallbackActivity = "UnknownActivity"
)

// Parameters configures how the engine reads input records.
type Parameters struct {
	DiscriminatorKey string // dotted path to the discriminator value
	TimestampKey     string // record key holding the timestamp
}

// Rule pairs a discriminator sub-document with output attributes.
// The discriminator value is the match entry under the last segment of the
// document's discriminator key; remaining entries are extra conditions keyed
// by dotted record path.
type Rule struct {
	Name                string
	Match               map[string]any
	IncludeCommonFields bool
	Details             map[string]any
}

// Document is an immutable rule-set driving one classification stage.
type Document struct {
	Kind         types.MappingKind
	Parameters   Parameters
	CommonFields map[string]any
	Rules        []Rule // declaration order, significant
	OutputKey    string // "action" or "activity"
	FallbackName string
}

// DiscriminatorLeaf returns the last segment of the discriminator key, which
// is where a rule's discriminator value lives in its match sub-document.
func (d *Document) DiscriminatorLeaf() string {
	segments := strings.Split(d.Parameters.DiscriminatorKey, ".")
	return segments[len(segments)-1]
}

// FindRule returns the rule with the given category name, or nil.
func (d *Document) FindRule(name string) *Rule {
	for i := range d.Rules {
		if d.Rules[i].Name == name {
			return &d.Rules[i]
		}
	}
	return nil
}

// documentHeader captures the order-insensitive parts of a document.
type documentHeader struct {
	Parameters   map[string]string `json:"parameters"`
	CommonFields map[string]any    `json:"common_fields"`
	Actions      json.RawMessage   `json:"actions"`
	Activities   json.RawMessage   `json:"activities"`
}

// ruleBody is the per-rule JSON shape. The discriminator sub-document key
// matches the stage: "event" for action documents, "action" for activity
// documents.
type ruleBody struct {
	Event      map[string]any `json:"event"`
	Action     map[string]any `json:"action"`
	Attributes struct {
		IncludeCommonFields bool           `json:"include_common_fields"`
		Details             map[string]any `json:"details"`
	} `json:"attributes"`
}

// ParseDocument parses and validates a mapping document.
func ParseDocument(data []byte) (*Document, error) {
	var header documentHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedDocument, err)
	}

	doc := &Document{
		Parameters: Parameters{
			DiscriminatorKey: "type",
			TimestampKey:     "created_at",
		},
		CommonFields: header.CommonFields,
	}

	switch {
	case header.Actions != nil:
		doc.Kind = types.KindAction
		doc.OutputKey = "action"
		doc.FallbackName = FallbackAction
	case header.Activities != nil:
		doc.Kind = types.KindActivity
		doc.OutputKey = "activity"
		doc.FallbackName = FallbackActivity
		doc.Parameters.DiscriminatorKey = "action"
	default:
		return nil, fmt.Errorf("%w: no actions or activities section", types.ErrMalformedDocument)
	}

	if v, ok := header.Parameters["event_type_key"]; ok {
		doc.Parameters.DiscriminatorKey = v
	}
	if v, ok := header.Parameters["created_at_key"]; ok {
		doc.Parameters.TimestampKey = v
	}

	section := header.Actions
	if doc.Kind == types.KindActivity {
		section = header.Activities
	}
	rules, err := parseOrderedRules(section)
	if err != nil {
		return nil, err
	}
	doc.Rules = rules

	if doc.CommonFields != nil {
		if err := ValidateFieldSpec(doc.CommonFields); err != nil {
			return nil, fmt.Errorf("common_fields: %w", err)
		}
	}
	for _, rule := range doc.Rules {
		if rule.Details != nil {
			if err := ValidateFieldSpec(rule.Details); err != nil {
				return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
			}
		}
	}

	return doc, nil
}

// parseOrderedRules decodes a rule section preserving declaration order.
func parseOrderedRules(section json.RawMessage) ([]Rule, error) {
	dec := json.NewDecoder(bytes.NewReader(section))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedDocument, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: rule section is not an object", types.ErrMalformedDocument)
	}

	var rules []Rule
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrMalformedDocument, err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string rule name", types.ErrMalformedDocument)
		}

		var body ruleBody
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", types.ErrMalformedDocument, name, err)
		}

		match := body.Event
		if match == nil {
			match = body.Action
		}
		if match == nil {
			match = map[string]any{}
		}

		rules = append(rules, Rule{
			Name:                name,
			Match:               match,
			IncludeCommonFields: body.Attributes.IncludeCommonFields,
			Details:             body.Attributes.Details,
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedDocument, err)
	}

	return rules, nil
}
