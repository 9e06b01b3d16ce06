// internal/pipeline/pipeline.go
package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forgemap/forgemap/internal/mapping"
	"github.com/forgemap/forgemap/internal/preprocess"
	"github.com/forgemap/forgemap/internal/types"
	"github.com/forgemap/forgemap/internal/versions"
)

/*
 * Pipeline orchestration.
 *
 * One run sequences: exclusion pre-filter -> redundant-review filter (per
 * input batch, in arrival order, one stateful filter instance per run) ->
 * version partitioning -> per-period event->action mapping -> action->
 * activity mapping. Results accumulate in memory and reach the sinks only
 * after every period succeeds; a classification or configuration error
 * aborts the run with nothing written.
 *
 * The review filter's carry-over makes call order significant, so batches
 * are consumed strictly in the order the source yields them.
 */

// Source supplies raw record batches in arrival order. Each batch is one
// filter call; directory sources yield one batch per file.
type Source interface {
	Batches() ([][]types.Record, error)
}

// Loader enumerates the available mapping versions for a platform, both
// kinds, each with its effective-from date and parsed document.
type Loader interface {
	Versions(platform string) ([]versions.Version, error)
}

// Sink accepts the final ordered outputs. Implementations own the
// persistence format; they are invoked only after a fully successful run.
type Sink interface {
	WriteActions(records []types.Record) error
	WriteActivities(records []types.Record) error
}

// reviewFilterPlatform is the only platform whose streams carry the
// redundant review pattern; other platforms pass through untouched.
const reviewFilterPlatform = "github"

// Config carries per-run pipeline settings.
type Config struct {
	Platform     string
	Strategy     mapping.Strategy
	Exclusions   preprocess.Exclusions
	TimestampKey string // record field used for version partitioning

	// Custom documents bypass version resolution when both are set.
	CustomAction   *mapping.Document
	CustomActivity *mapping.Document
}

// Result summarizes one completed run.
type Result struct {
	RunID      types.RunID
	Events     int
	Periods    int
	Actions    []types.Record
	Activities []types.Record
}

// Pipeline wires the collaborators for repeated runs.
type Pipeline struct {
	cfg    Config
	loader Loader
	sink   Sink
	log    zerolog.Logger
}

// New creates a pipeline. Strategy validity is checked here so a
// misconfigured run fails before any input is read.
func New(cfg Config, loader Loader, sink Sink, log zerolog.Logger) (*Pipeline, error) {
	if !cfg.Strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidStrategy, cfg.Strategy)
	}
	if cfg.TimestampKey == "" {
		cfg.TimestampKey = "created_at"
	}
	return &Pipeline{cfg: cfg, loader: loader, sink: sink, log: log}, nil
}

// Run executes one full run over the source.
func (p *Pipeline) Run(source Source) (*Result, error) {
	runID := types.NewRunID()
	log := p.log.With().Str("run_id", string(runID)).Logger()

	events, err := p.preprocess(source, log)
	if err != nil {
		return nil, err
	}
	log.Info().Int("events", len(events)).Msg("preprocessing complete")

	result := &Result{RunID: runID, Events: len(events)}

	if p.cfg.CustomAction != nil && p.cfg.CustomActivity != nil {
		log.Info().Msg("custom mappings configured, skipping version resolution")
		actions, activities, err := p.mapPeriod(events, p.cfg.CustomAction, p.cfg.CustomActivity, log)
		if err != nil {
			return nil, err
		}
		result.Periods = 1
		result.Actions = actions
		result.Activities = activities
		return result, p.write(result)
	}

	available, err := p.loader.Versions(p.cfg.Platform)
	if err != nil {
		return nil, fmt.Errorf("loading mapping versions: %w", err)
	}

	parts := versions.Partition(events, available, p.cfg.TimestampKey, log)
	log.Info().Int("periods", len(parts)).Msg("partitioned events by mapping version")

	for _, part := range parts {
		key := part.Period.VersionKey()

		actionVersion, actionErr := versions.SelectVersion(available, types.KindAction, key)
		activityVersion, activityErr := versions.SelectVersion(available, types.KindActivity, key)
		if actionErr != nil || activityErr != nil {
			log.Warn().
				Stringer("period", part.Period).
				Int("events", len(part.Events)).
				Msg("no valid mapping version for period, skipping")
			continue
		}

		log.Info().
			Stringer("period", part.Period).
			Int("events", len(part.Events)).
			Time("action_version", actionVersion.EffectiveFrom).
			Time("activity_version", activityVersion.EffectiveFrom).
			Msg("processing period")

		actions, activities, err := p.mapPeriod(part.Events, actionVersion.Document, activityVersion.Document, log)
		if err != nil {
			return nil, err
		}

		result.Periods++
		result.Actions = append(result.Actions, actions...)
		result.Activities = append(result.Activities, activities...)
	}

	return result, p.write(result)
}

// preprocess applies exclusions and the review filter batch by batch.
func (p *Pipeline) preprocess(source Source, log zerolog.Logger) ([]types.Record, error) {
	batches, err := source.Batches()
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}

	filter := preprocess.NewReviewFilter(log)

	var events []types.Record
	for _, batch := range batches {
		batch = preprocess.ApplyExclusions(batch, p.cfg.Exclusions)
		if p.cfg.Platform == reviewFilterPlatform {
			batch, err = filter.Filter(batch)
			if err != nil {
				return nil, fmt.Errorf("filtering redundant reviews: %w", err)
			}
		}
		events = append(events, batch...)
	}
	return events, nil
}

// mapPeriod runs both rule stages over one sub-batch.
func (p *Pipeline) mapPeriod(events []types.Record, actionDoc, activityDoc *mapping.Document, log zerolog.Logger) ([]types.Record, []types.Record, error) {
	actionEngine, err := mapping.NewEngine(actionDoc, p.cfg.Strategy, log)
	if err != nil {
		return nil, nil, err
	}
	activityEngine, err := mapping.NewEngine(activityDoc, p.cfg.Strategy, log)
	if err != nil {
		return nil, nil, err
	}

	actions, err := actionEngine.MapBatch(events)
	if err != nil {
		return nil, nil, fmt.Errorf("mapping events to actions: %w", err)
	}
	activities, err := activityEngine.MapBatch(actions)
	if err != nil {
		return nil, nil, fmt.Errorf("mapping actions to activities: %w", err)
	}
	return actions, activities, nil
}

// write flushes accumulated outputs. Called only after the whole run
// succeeded so failures never interleave partial and complete results.
func (p *Pipeline) write(result *Result) error {
	if err := p.sink.WriteActions(result.Actions); err != nil {
		return fmt.Errorf("writing actions: %w", err)
	}
	if err := p.sink.WriteActivities(result.Activities); err != nil {
		return fmt.Errorf("writing activities: %w", err)
	}
	return nil
}
