package config

import (
	"fmt"
	"time"

	"github.com/jyl/universe/internal/env"
)

// WorkerConfig holds all configuration for the snapshot worker binary.
type WorkerConfig struct {
	Database         DatabaseConfig
	Snapshot         SnapshotConfig
	Observability    ObservabilityConfig
	Interval         time.Duration `env:"UNIVERSE_SNAPSHOT_INTERVAL" default:"24h"`
	OperationTimeout time.Duration `env:"UNIVERSE_WORKER_OPERATION_TIMEOUT" default:"1m"`
}

// Validate validates the worker schedule.
func (c *WorkerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("UNIVERSE_SNAPSHOT_INTERVAL must be positive")
	}
	return nil
}

// LoadWorkerConfig loads and validates worker configuration from environment.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}

	return cfg, nil
}
