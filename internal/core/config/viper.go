package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// merged by the command layer after loading.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching Default()
	v.SetDefault("platform", "github")
	v.SetDefault("strategy", "flexible")
	v.SetDefault("mapping_dir", "./mappings")
	v.SetDefault("output_actions", "actions.jsonl")
	v.SetDefault("output_activities", "activities.jsonl")
	v.SetDefault("actors_to_remove", []string{})
	v.SetDefault("repos_to_remove", []string{})
	v.SetDefault("orgs_to_remove", []string{})

	// Bind environment variables with FORGEMAP_ prefix
	v.SetEnvPrefix("FORGEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Platform:              v.GetString("platform"),
		Strategy:              v.GetString("strategy"),
		MappingDir:            v.GetString("mapping_dir"),
		RawEvents:             v.GetString("raw_events"),
		OutputActions:         v.GetString("output_actions"),
		OutputActivities:      v.GetString("output_activities"),
		ActorsToRemove:        v.GetStringSlice("actors_to_remove"),
		ReposToRemove:         v.GetStringSlice("repos_to_remove"),
		OrgsToRemove:          v.GetStringSlice("orgs_to_remove"),
		CustomActionMapping:   v.GetString("custom_action_mapping"),
		CustomActivityMapping: v.GetString("custom_activity_mapping"),
		ArchiveDB:             v.GetString("archive_db"),
	}

	return cfg, nil
}
