package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgemap/forgemap/internal/core/config"
	"github.com/forgemap/forgemap/internal/core/jsonio"
	"github.com/forgemap/forgemap/internal/core/mappingdir"
	"github.com/forgemap/forgemap/internal/core/store"
	"github.com/forgemap/forgemap/internal/mapping"
	"github.com/forgemap/forgemap/internal/pipeline"
	"github.com/forgemap/forgemap/internal/preprocess"
)

const Version = "0.1.0"

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map raw events to actions and activities",
	RunE:  runMap,
}

func init() {
	rootCmd.AddCommand(mapCmd)
	mapCmd.Flags().String("raw-events", "", "path to a raw events file or directory")
	mapCmd.Flags().String("output-actions", "", "output file for mapped actions")
	mapCmd.Flags().String("output-activities", "", "output file for mapped activities")
	mapCmd.Flags().String("platform", "", "platform whose mapping documents apply")
	mapCmd.Flags().String("strategy", "", "mapping strategy (strict, flexible)")
	mapCmd.Flags().String("mapping-dir", "", "directory holding versioned mapping documents")
	mapCmd.Flags().StringSlice("actors-to-remove", nil, "actor logins to drop before mapping")
	mapCmd.Flags().StringSlice("repos-to-remove", nil, "repository names to drop before mapping")
	mapCmd.Flags().StringSlice("orgs-to-remove", nil, "organization logins to drop before mapping")
	mapCmd.Flags().String("custom-action-mapping", "", "explicit event-to-action mapping file (bypasses version resolution)")
	mapCmd.Flags().String("custom-activity-mapping", "", "explicit action-to-activity mapping file (bypasses version resolution)")
	mapCmd.Flags().String("archive-db", "", "optional archive database URL (sqlite:// or postgres://)")
}

func runMap(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	mergeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pipeCfg := pipeline.Config{
		Platform: cfg.Platform,
		Strategy: mapping.Strategy(cfg.Strategy),
		Exclusions: preprocess.Exclusions{
			Actors: cfg.ActorsToRemove,
			Repos:  cfg.ReposToRemove,
			Orgs:   cfg.OrgsToRemove,
		},
	}

	if cfg.CustomActionMapping != "" && cfg.CustomActivityMapping != "" {
		actionDoc, err := mappingdir.LoadDocument(cfg.CustomActionMapping)
		if err != nil {
			return fmt.Errorf("custom action mapping: %w", err)
		}
		activityDoc, err := mappingdir.LoadDocument(cfg.CustomActivityMapping)
		if err != nil {
			return fmt.Errorf("custom activity mapping: %w", err)
		}
		pipeCfg.CustomAction = actionDoc
		pipeCfg.CustomActivity = activityDoc
	}

	loader := mappingdir.New(cfg.MappingDir, log)
	sink := jsonio.NewJSONLSink(cfg.OutputActions, cfg.OutputActivities)

	pipe, err := pipeline.New(pipeCfg, loader, sink, log)
	if err != nil {
		return err
	}

	log.Info().Str("version", Version).Str("platform", cfg.Platform).Msg("starting mapping run")

	result, err := pipe.Run(jsonio.NewFileSource(cfg.RawEvents))
	if err != nil {
		log.Error().Err(err).Msg("mapping run failed")
		return err
	}

	log.Info().
		Int("events", result.Events).
		Int("periods", result.Periods).
		Int("actions", len(result.Actions)).
		Int("activities", len(result.Activities)).
		Msg("mapping run complete")

	if cfg.ArchiveDB != "" {
		archive, err := store.OpenArchive(cfg.ArchiveDB)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer archive.Close()
		if err := archive.RecordRun(result.RunID, cfg.Platform, result.Events, result.Actions, result.Activities); err != nil {
			return fmt.Errorf("archiving run: %w", err)
		}
		log.Info().Str("run_id", string(result.RunID)).Msg("run archived")
	}

	return nil
}

// mergeFlags overlays explicitly set flags onto the loaded config.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("raw-events") {
		cfg.RawEvents, _ = cmd.Flags().GetString("raw-events")
	}
	if cmd.Flags().Changed("output-actions") {
		cfg.OutputActions, _ = cmd.Flags().GetString("output-actions")
	}
	if cmd.Flags().Changed("output-activities") {
		cfg.OutputActivities, _ = cmd.Flags().GetString("output-activities")
	}
	if cmd.Flags().Changed("platform") {
		cfg.Platform, _ = cmd.Flags().GetString("platform")
	}
	if cmd.Flags().Changed("strategy") {
		cfg.Strategy, _ = cmd.Flags().GetString("strategy")
	}
	if cmd.Flags().Changed("mapping-dir") {
		cfg.MappingDir, _ = cmd.Flags().GetString("mapping-dir")
	}
	if cmd.Flags().Changed("actors-to-remove") {
		cfg.ActorsToRemove, _ = cmd.Flags().GetStringSlice("actors-to-remove")
	}
	if cmd.Flags().Changed("repos-to-remove") {
		cfg.ReposToRemove, _ = cmd.Flags().GetStringSlice("repos-to-remove")
	}
	if cmd.Flags().Changed("orgs-to-remove") {
		cfg.OrgsToRemove, _ = cmd.Flags().GetStringSlice("orgs-to-remove")
	}
	if cmd.Flags().Changed("custom-action-mapping") {
		cfg.CustomActionMapping, _ = cmd.Flags().GetString("custom-action-mapping")
	}
	if cmd.Flags().Changed("custom-activity-mapping") {
		cfg.CustomActivityMapping, _ = cmd.Flags().GetString("custom-activity-mapping")
	}
	if cmd.Flags().Changed("archive-db") {
		cfg.ArchiveDB, _ = cmd.Flags().GetString("archive-db")
	}
}
