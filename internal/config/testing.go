package config

import (
	"fmt"

	"github.com/jyl/universe/internal/env"
)

// TestConfig holds configuration for PostgreSQL integration tests.
// An empty DSN means the tests are skipped.
type TestConfig struct {
	DSN string `env:"UNIVERSE_TEST_DB_DSN"`
}

// LoadTestConfig loads test configuration from environment.
func LoadTestConfig() (*TestConfig, error) {
	cfg := &TestConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load test config: %w", err)
	}

	return cfg, nil
}
