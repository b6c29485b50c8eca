package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jyl/universe/internal/env"
)

// ErrSessionSecretTooShort is returned when the session signing secret is
// missing or weaker than 32 bytes.
var ErrSessionSecretTooShort = errors.New("UNIVERSE_SESSION_SECRET must be at least 32 bytes")

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	Auth            AuthConfig
	Collections     CollectionConfig
	Snapshot        SnapshotConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"UNIVERSE_SHUTDOWN_TIMEOUT" default:"10s"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host              string        `env:"UNIVERSE_HTTP_HOST"`
	Port              string        `env:"UNIVERSE_HTTP_PORT" default:"8081"`
	ReadTimeout       time.Duration `env:"UNIVERSE_HTTP_READ_TIMEOUT" default:"5s"`
	WriteTimeout      time.Duration `env:"UNIVERSE_HTTP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout       time.Duration `env:"UNIVERSE_HTTP_IDLE_TIMEOUT" default:"120s"`
	ReadHeaderTimeout time.Duration `env:"UNIVERSE_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	MaxHeaderBytes    int           `env:"UNIVERSE_HTTP_MAX_HEADER_BYTES" default:"1048576"`
	MaxBodyBytes      int64         `env:"UNIVERSE_HTTP_MAX_BODY_BYTES" default:"1048576"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string `env:"UNIVERSE_CORS_ALLOWED_ORIGINS"`

	// TLS configuration for HTTPS
	TLSEnabled  bool   `env:"UNIVERSE_TLS_ENABLED"`
	TLSCertFile string `env:"UNIVERSE_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"UNIVERSE_TLS_KEY_FILE"`
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if c.TLSEnabled && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("UNIVERSE_TLS_CERT_FILE and UNIVERSE_TLS_KEY_FILE are required when TLS is enabled")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("UNIVERSE_HTTP_MAX_BODY_BYTES must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *HTTPConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// AuthConfig holds authenticator configuration.
type AuthConfig struct {
	OperationTimeout time.Duration `env:"UNIVERSE_AUTH_OPERATION_TIMEOUT" default:"5s"`
	UpdateQueueSize  int           `env:"UNIVERSE_AUTH_UPDATE_QUEUE_SIZE" default:"1000"`

	SessionSecret        string        `env:"UNIVERSE_SESSION_SECRET"`
	SessionIdleTimeout   time.Duration `env:"UNIVERSE_SESSION_IDLE_TIMEOUT" default:"1h"`
	SessionCheckInterval time.Duration `env:"UNIVERSE_SESSION_CHECK_INTERVAL" default:"1m"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return ErrSessionSecretTooShort
	}
	if c.SessionIdleTimeout <= 0 || c.SessionCheckInterval <= 0 {
		return fmt.Errorf("UNIVERSE_SESSION_IDLE_TIMEOUT and UNIVERSE_SESSION_CHECK_INTERVAL must be positive")
	}
	return nil
}

// CollectionConfig holds list manager configuration.
type CollectionConfig struct {
	// SyncTimeout bounds each row store call made by a list manager.
	SyncTimeout time.Duration `env:"UNIVERSE_SYNC_TIMEOUT" default:"10s"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"UNIVERSE_OTEL_ENABLED" default:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" default:"universe"`
	LogLevel    string `env:"UNIVERSE_LOG_LEVEL" default:"info"`
}

// Validate validates the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown UNIVERSE_LOG_LEVEL %q: use debug, info, warn or error", c.LogLevel)
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}
