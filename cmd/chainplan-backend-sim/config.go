package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meow-stack/chainplan/internal/remote"
)

// SimConfig is the simulator fixture file.
type SimConfig struct {
	// Plans are served as-is until refreshed.
	Plans []*remote.PlanResponse `yaml:"plans"`
	// FailSteps lists "plan_id/step_index" pairs that fail instead of
	// succeeding when they leave in_progress.
	FailSteps []string `yaml:"fail_steps"`
}

// NewDefaultSimConfig returns a config with no plans.
func NewDefaultSimConfig() SimConfig {
	return SimConfig{}
}

// LoadConfig loads simulator configuration from a YAML file.
func LoadConfig(path string) (SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SimConfig{}, err
	}

	config := NewDefaultSimConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return SimConfig{}, err
	}

	return config, nil
}
