package config

import "time"

// StationConfig controls how the batch station ticks over each API key:
// polling cadence, provider timeouts and the cooldowns applied after a
// batch finishes ingesting.
type StationConfig struct {
	// TickInterval is the base interval between ticks for a given key.
	TickInterval time.Duration `yaml:"tick_interval"`

	// PollTimeout bounds a single "retrieve batch status" round-trip.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// ConnectTimeout bounds establishing the TCP/TLS connection to the
	// batch provider.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// TransferTimeout bounds the body read/write of large upload and
	// download requests (file upload, result download).
	TransferTimeout time.Duration `yaml:"transfer_timeout"`

	// SuccessCooldown is applied to a key after a batch finishes ingesting
	// as completed or expired.
	SuccessCooldown time.Duration `yaml:"success_cooldown"`

	// FailureCooldown is applied to a key after a batch fails.
	FailureCooldown time.Duration `yaml:"failure_cooldown"`

	// GracefulShutdownTimeout bounds how long Stop waits for in-flight
	// ticks to finish.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrchestratorConcurrency bounds how many manufacturers a single
	// completed batch's orchestrator dispatch advances at once.
	OrchestratorConcurrency int `yaml:"orchestrator_concurrency"`
}

// DefaultStationConfig returns the built-in station defaults, matching the
// cooldowns and timeouts the provider integration was designed around.
func DefaultStationConfig() *StationConfig {
	return &StationConfig{
		TickInterval:            5 * time.Minute,
		PollTimeout:             5 * time.Minute,
		ConnectTimeout:          60 * time.Second,
		TransferTimeout:         30 * time.Minute,
		SuccessCooldown:         10 * time.Minute,
		FailureCooldown:         30 * time.Minute,
		GracefulShutdownTimeout: 5 * time.Minute,
		OrchestratorConcurrency: 100,
	}
}
