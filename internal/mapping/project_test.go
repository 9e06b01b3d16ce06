package mapping

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/forgemap/forgemap/internal/types"
)

func spec(t *testing.T, raw string) map[string]any {
	t.Helper()
	return map[string]any(record(t, raw))
}

func TestProject_Normal(t *testing.T) {
	rec := record(t, `{
		"type": "PushEvent",
		"actor": {"id": 1, "login": "alice"},
		"repo": {"id": 10, "name": "r"},
		"payload": {
			"ref": "refs/heads/main",
			"commits": [
				{"sha": "abc", "message": "one", "author": {"email": "a@x"}},
				{"sha": "def", "message": "two", "author": {"email": "b@x"}}
			]
		}
	}`)

	tests := []struct {
		name string
		spec string
		want string
	}{
		{
			name: "scalar paths",
			spec: `{"actor": "actor.login", "repo": "repo.name"}`,
			want: `{"actor": "alice", "repo": "r"}`,
		},
		{
			name: "nested spec nests output",
			spec: `{"who": {"login": "actor.login", "id": "actor.id"}}`,
			want: `{"who": {"login": "alice", "id": 10}}`,
		},
		{
			name: "missing path projects null",
			spec: `{"org": "org.login"}`,
			want: `{"org": null}`,
		},
		{
			name: "list extraction",
			spec: `{"commits": [{"sha": "payload.commits.sha", "message": "payload.commits.message"}]}`,
			want: `{"commits": [{"sha": "abc", "message": "one"}, {"sha": "def", "message": "two"}]}`,
		},
		{
			name: "list extraction missing element key",
			spec: `{"commits": [{"sha": "payload.commits.sha", "url": "payload.commits.url"}]}`,
			want: `{"commits": [{"sha": "abc", "url": null}, {"sha": "def", "url": null}]}`,
		},
		{
			name: "list extraction over non-list yields empty list",
			spec: `{"commits": [{"ref": "payload.ref.name"}]}`,
			want: `{"commits": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(rec, spec(t, tt.spec))
			want := record(t, tt.want)
			if !equalAsJSON(got, want) {
				t.Errorf("Project() = %v, want %v", got, want)
			}
		})
	}
}

// equalAsJSON compares a projected record against a decoded fixture,
// tolerating the types.Record vs map[string]any distinction.
func equalAsJSON(got types.Record, want types.Record) bool {
	return reflect.DeepEqual(normalizeValue(map[string]any(got)), normalizeValue(map[string]any(want)))
}

func normalizeValue(v any) any {
	switch typed := v.(type) {
	case types.Record:
		return normalizeValue(map[string]any(typed))
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, inner := range typed {
			out[k] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return v
	}
}

func TestValidateFieldSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{"scalar leaf", `{"repo": "repo.name"}`, false},
		{"nested mapping", `{"who": {"login": "actor.login"}}`, false},
		{"list form", `{"commits": [{"sha": "payload.commits.sha"}]}`, false},
		{"numeric leaf", `{"repo": 42}`, true},
		{"empty list form", `{"commits": []}`, true},
		{"two element list form", `{"commits": [{"a": "x.a"}, {"b": "x.b"}]}`, true},
		{"list element not a mapping", `{"commits": ["payload.commits.sha"]}`, true},
		{"list element empty mapping", `{"commits": [{}]}`, true},
		{"list element non-string path", `{"commits": [{"sha": 7}]}`, true},
		{"nested invalid leaf", `{"who": {"id": true}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldSpec(spec(t, tt.spec))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFieldSpec() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, types.ErrMalformedFieldSpec) {
				t.Errorf("error = %v, want ErrMalformedFieldSpec", err)
			}
		})
	}
}

// Property: projection is a pure function of (record, spec); applying it
// twice yields identical output.
func TestProject_PropertyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("projection applied twice is identical", prop.ForAll(
		func(login string, repoID int, includeCommits bool) bool {
			rec := types.Record{
				"actor": map[string]any{"login": login},
				"repo":  map[string]any{"id": float64(repoID)},
				"payload": map[string]any{
					"commits": []any{
						map[string]any{"sha": login + "-sha"},
					},
				},
			}
			fieldSpec := map[string]any{
				"who":  "actor.login",
				"repo": map[string]any{"id": "repo.id"},
			}
			if includeCommits {
				fieldSpec["commits"] = []any{map[string]any{"sha": "payload.commits.sha"}}
			}

			first := Project(rec, fieldSpec)
			second := Project(rec, fieldSpec)
			return reflect.DeepEqual(first, second)
		},
		gen.AlphaString(),
		gen.IntRange(0, 1<<30),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
