package config

import "time"

// OrchestratorConfig controls how often the extraction pipeline sweeps
// manufacturers to advance their per-field state.
type OrchestratorConfig struct {
	// SweepInterval is the delay between sweeps over the manufacturer table.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// SweepLimit bounds how many manufacturers are fetched per sweep.
	SweepLimit int `yaml:"sweep_limit"`
}

// DefaultOrchestratorConfig returns the built-in orchestrator sweep defaults.
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		SweepInterval: 2 * time.Minute,
		SweepLimit:    500,
	}
}
