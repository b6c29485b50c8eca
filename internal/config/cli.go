package config

import (
	"fmt"

	"github.com/jyl/universe/internal/env"
)

// APIKeyConfig holds API key format configuration.
type APIKeyConfig struct {
	KeyType     string `env:"UNIVERSE_API_KEY_TYPE" default:"sk"`
	ServiceName string `env:"UNIVERSE_API_SERVICE_NAME" default:"universe"`
	Version     string `env:"UNIVERSE_API_VERSION" default:"v1"`
}

// CLIConfig holds configuration for the universectl admin tool.
type CLIConfig struct {
	Database DatabaseConfig
	APIKey   APIKeyConfig
	Snapshot SnapshotConfig
}

// LoadCLIConfig loads and validates admin tool configuration from environment.
func LoadCLIConfig() (*CLIConfig, error) {
	cfg := &CLIConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load cli config: %w", err)
	}

	return cfg, nil
}
