/*
Package config loads server configuration from the environment.

PURPOSE:
  One flat struct, populated by envconfig with sane local-dev defaults.
  A .env file is honored when present (loaded by the caller via godotenv)
  so local runs need no exported variables.
*/
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Port the HTTP server listens on.
	Port int `envconfig:"PORT" default:"8080"`

	// DBPath is the SQLite database file. ":memory:" runs ephemeral.
	DBPath string `envconfig:"DB_PATH" default:"./data/accounting.db"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	// DueSoonDays is the lookahead window for due-soon invoice alerts.
	DueSoonDays int `envconfig:"ALERT_DUE_SOON_DAYS" default:"7"`

	// CORSOrigins is the comma-separated list of allowed origins.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return c, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
