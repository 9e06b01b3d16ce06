package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemap/forgemap/internal/mapping"
	"github.com/forgemap/forgemap/internal/preprocess"
	"github.com/forgemap/forgemap/internal/types"
	"github.com/forgemap/forgemap/internal/versions"
)

const actionDocument = `{
	"common_fields": {"date": "created_at", "actor": "actor.login"},
	"actions": {
		"Star": {
			"event": {"type": "WatchEvent"},
			"attributes": {"include_common_fields": true, "details": {"repo": "repo.name"}}
		},
		"UnknownAction": {"event": {}, "attributes": {"details": {"type": "type"}}}
	}
}`

const activityDocument = `{
	"activities": {
		"Starring": {
			"action": {"action": "Star"},
			"attributes": {"details": {"repo": "details.repo"}}
		},
		"UnknownActivity": {"action": {}, "attributes": {}}
	}
}`

type fakeSource struct {
	batches [][]types.Record
	err     error
}

func (s *fakeSource) Batches() ([][]types.Record, error) {
	return s.batches, s.err
}

type fakeLoader struct {
	available []versions.Version
	err       error
	calls     int
}

func (l *fakeLoader) Versions(platform string) ([]versions.Version, error) {
	l.calls++
	return l.available, l.err
}

type fakeSink struct {
	actions    []types.Record
	activities []types.Record
	writes     int
}

func (s *fakeSink) WriteActions(records []types.Record) error {
	s.writes++
	s.actions = records
	return nil
}

func (s *fakeSink) WriteActivities(records []types.Record) error {
	s.writes++
	s.activities = records
	return nil
}

func parseDoc(t *testing.T, raw string) *mapping.Document {
	t.Helper()
	doc, err := mapping.ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func versionPair(t *testing.T, date string) []versions.Version {
	t.Helper()
	at, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return []versions.Version{
		{Platform: "github", Kind: types.KindAction, EffectiveFrom: at, Document: parseDoc(t, actionDocument)},
		{Platform: "github", Kind: types.KindActivity, EffectiveFrom: at, Document: parseDoc(t, activityDocument)},
	}
}

func watchEvent(id, actor, repo, at string) types.Record {
	return types.Record{
		"id":         id,
		"type":       "WatchEvent",
		"actor":      map[string]any{"id": float64(1), "login": actor},
		"repo":       map[string]any{"id": float64(10), "name": repo},
		"created_at": at,
	}
}

func TestPipeline_Run(t *testing.T) {
	loader := &fakeLoader{available: versionPair(t, "2024-01-01")}
	sink := &fakeSink{}

	pipe, err := New(Config{Platform: "github", Strategy: mapping.StrategyFlexible}, loader, sink, zerolog.Nop())
	require.NoError(t, err)

	source := &fakeSource{batches: [][]types.Record{{
		watchEvent("1", "alice", "r", "2024-03-15T00:00:00Z"),
		watchEvent("2", "bob", "s", "2024-03-16T00:00:00Z"),
	}}}

	result, err := pipe.Run(source)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Events)
	assert.Equal(t, 1, result.Periods)
	require.Len(t, sink.actions, 2)
	require.Len(t, sink.activities, 2)
	assert.Equal(t, "Star", sink.actions[0]["action"])
	assert.Equal(t, "alice", sink.actions[0]["actor"])
	assert.Equal(t, "Starring", sink.activities[0]["activity"])
	assert.NotEmpty(t, result.RunID)
}

func TestPipeline_Run_AppliesExclusionsAndFilter(t *testing.T) {
	loader := &fakeLoader{available: versionPair(t, "2024-01-01")}
	sink := &fakeSink{}

	cfg := Config{
		Platform:   "github",
		Strategy:   mapping.StrategyFlexible,
		Exclusions: preprocess.Exclusions{Actors: []string{"bot"}},
	}
	pipe, err := New(cfg, loader, sink, zerolog.Nop())
	require.NoError(t, err)

	review := types.Record{
		"id":         "2",
		"type":       "PullRequestReviewEvent",
		"actor":      map[string]any{"id": float64(1), "login": "alice"},
		"repo":       map[string]any{"id": float64(10), "name": "r"},
		"created_at": "2024-03-15T00:00:01Z",
	}
	comment := types.Record{
		"id":         "3",
		"type":       "PullRequestReviewCommentEvent",
		"actor":      map[string]any{"id": float64(1), "login": "alice"},
		"repo":       map[string]any{"id": float64(10), "name": "r"},
		"created_at": "2024-03-15T00:00:02Z",
	}

	source := &fakeSource{batches: [][]types.Record{{
		watchEvent("1", "bot", "r", "2024-03-15T00:00:00Z"), // excluded actor
		review,  // suppressed by the adjacent comment
		comment, // survives
	}}}

	result, err := pipe.Run(source)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Events)
	require.Len(t, sink.actions, 1)
	assert.Equal(t, "UnknownAction", sink.actions[0]["action"])
}

func TestPipeline_Run_NonGithubSkipsReviewFilter(t *testing.T) {
	loader := &fakeLoader{available: []versions.Version{
		{Platform: "gitlab", Kind: types.KindAction, EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Document: parseDoc(t, actionDocument)},
		{Platform: "gitlab", Kind: types.KindActivity, EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Document: parseDoc(t, activityDocument)},
	}}
	sink := &fakeSink{}

	pipe, err := New(Config{Platform: "gitlab", Strategy: mapping.StrategyFlexible}, loader, sink, zerolog.Nop())
	require.NoError(t, err)

	// On github this review would be suppressed by the adjacent comment.
	source := &fakeSource{batches: [][]types.Record{{
		{
			"id": "1", "type": "PullRequestReviewEvent",
			"actor":      map[string]any{"id": float64(1), "login": "alice"},
			"repo":       map[string]any{"id": float64(10), "name": "r"},
			"created_at": "2024-03-15T00:00:00Z",
		},
		{
			"id": "2", "type": "PullRequestReviewCommentEvent",
			"actor":      map[string]any{"id": float64(1), "login": "alice"},
			"repo":       map[string]any{"id": float64(10), "name": "r"},
			"created_at": "2024-03-15T00:00:01Z",
		},
	}}}

	result, err := pipe.Run(source)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Events)
}

func TestPipeline_Run_StrictAbortLeavesSinkUntouched(t *testing.T) {
	loader := &fakeLoader{available: versionPair(t, "2024-01-01")}
	sink := &fakeSink{}

	pipe, err := New(Config{Platform: "github", Strategy: mapping.StrategyStrict}, loader, sink, zerolog.Nop())
	require.NoError(t, err)

	source := &fakeSource{batches: [][]types.Record{{
		watchEvent("1", "alice", "r", "2024-03-15T00:00:00Z"),
		{"id": "2", "type": "NoSuchEvent", "created_at": "2024-03-15T00:00:01Z"},
	}}}

	_, err = pipe.Run(source)
	var classification *types.ClassificationError
	require.ErrorAs(t, err, &classification)
	assert.Zero(t, sink.writes, "sink must not be touched on a failed run")
}

func TestPipeline_Run_SkipsPeriodWithoutVersion(t *testing.T) {
	// Only an action version exists before June; the first period has no
	// activity counterpart and is skipped, the second maps normally.
	june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	available := []versions.Version{
		{Platform: "github", Kind: types.KindAction, EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Document: parseDoc(t, actionDocument)},
		{Platform: "github", Kind: types.KindAction, EffectiveFrom: june, Document: parseDoc(t, actionDocument)},
		{Platform: "github", Kind: types.KindActivity, EffectiveFrom: june, Document: parseDoc(t, activityDocument)},
	}
	loader := &fakeLoader{available: available}
	sink := &fakeSink{}

	pipe, err := New(Config{Platform: "github", Strategy: mapping.StrategyFlexible}, loader, sink, zerolog.Nop())
	require.NoError(t, err)

	source := &fakeSource{batches: [][]types.Record{{
		watchEvent("1", "alice", "r", "2024-03-15T00:00:00Z"),
		watchEvent("2", "bob", "s", "2024-07-01T00:00:00Z"),
	}}}

	result, err := pipe.Run(source)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Periods)
	require.Len(t, sink.actions, 1)
	assert.Equal(t, "bob", sink.actions[0]["actor"])
}

func TestPipeline_Run_CustomMappingsBypassResolution(t *testing.T) {
	loader := &fakeLoader{}
	sink := &fakeSink{}

	cfg := Config{
		Platform:       "github",
		Strategy:       mapping.StrategyFlexible,
		CustomAction:   parseDoc(t, actionDocument),
		CustomActivity: parseDoc(t, activityDocument),
	}
	pipe, err := New(cfg, loader, sink, zerolog.Nop())
	require.NoError(t, err)

	source := &fakeSource{batches: [][]types.Record{{
		watchEvent("1", "alice", "r", "2024-03-15T00:00:00Z"),
	}}}

	result, err := pipe.Run(source)
	require.NoError(t, err)

	assert.Zero(t, loader.calls, "custom mappings must bypass the version loader")
	assert.Equal(t, 1, result.Periods)
	require.Len(t, sink.activities, 1)
	assert.Equal(t, "Starring", sink.activities[0]["activity"])
}

func TestPipeline_Run_SourceError(t *testing.T) {
	pipe, err := New(Config{Platform: "github", Strategy: mapping.StrategyStrict}, &fakeLoader{}, &fakeSink{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = pipe.Run(&fakeSource{err: errors.New("boom")})
	require.Error(t, err)
}

func TestNew_InvalidStrategy(t *testing.T) {
	_, err := New(Config{Platform: "github", Strategy: mapping.Strategy("lenient")}, &fakeLoader{}, &fakeSink{}, zerolog.Nop())
	require.ErrorIs(t, err, types.ErrInvalidStrategy)
}
