package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication configuration
//   - database.go: Database, Redis and role directory configuration
//   - http.go: HTTP server configuration
//   - arbitration.go: Session arbitration and portal lifecycle
//   - eventbus.go: Event bus sizing and cross-instance relay
//   - observability.go: Metrics and tracing
type AppConfig struct {
	// IsDev controls development mode behavior (strict invariant checks, mock auth guardrails).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Storage configuration
	Postgres  DBConfig    `envPrefix:"DB_"`
	Redis     RedisConfig `envPrefix:"REDIS_"`
	Directory DirectoryConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Arbitration configuration
	Arbitration ArbitrationConfig

	// Event bus configuration
	EventBus EventBusConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Directory.Sanitize()
	c.Arbitration.Sanitize()
	c.EventBus.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// UsesPostgres reports whether any configured component needs a database connection.
func (c *AppConfig) UsesPostgres() bool {
	return c.Directory.Backend == DirectoryBackendPostgres
}
