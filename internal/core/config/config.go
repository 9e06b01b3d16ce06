// Package config provides configuration management for forgemap runs.
package config

import (
	"fmt"
)

// Config holds settings for one mapping run.
type Config struct {
	Platform         string
	Strategy         string
	MappingDir       string
	RawEvents        string
	OutputActions    string
	OutputActivities string

	ActorsToRemove []string
	ReposToRemove  []string
	OrgsToRemove   []string

	// Custom mapping files bypass version resolution when both are set.
	CustomActionMapping   string
	CustomActivityMapping string

	// Optional archive database URL (sqlite://path or postgres://...).
	ArchiveDB string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Platform:         "github",
		Strategy:         "flexible",
		MappingDir:       "./mappings",
		OutputActions:    "actions.jsonl",
		OutputActivities: "activities.jsonl",
	}
}

// Validate checks the settings a run cannot proceed without.
func (c *Config) Validate() error {
	if c.Platform == "" {
		return fmt.Errorf("platform must not be empty")
	}
	if c.Strategy != "strict" && c.Strategy != "flexible" {
		return fmt.Errorf("strategy must be strict or flexible, got %q", c.Strategy)
	}
	if c.RawEvents == "" {
		return fmt.Errorf("raw events path must not be empty")
	}
	if c.OutputActions == "" || c.OutputActivities == "" {
		return fmt.Errorf("output paths must not be empty")
	}
	if (c.CustomActionMapping == "") != (c.CustomActivityMapping == "") {
		return fmt.Errorf("custom mappings must be set for both stages or neither")
	}
	return nil
}
