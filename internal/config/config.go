package config

import (
	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
)

// Config holds the environment-driven application configuration
type Config struct {
	// GitHub. An empty token works for public repositories, at the
	// lower unauthenticated rate limit.
	GitHubToken string `env:"GITHUB_TOKEN"`

	// Run history storage
	HistoryEnabled bool   `env:"HISTORY_ENABLED" envDefault:"true"`
	StorageType    string `env:"STORAGE_TYPE" envDefault:"sqlite"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"./pubsync.db"`
	PostgresURL    string `env:"POSTGRES_URL"`

	// Root of the local site tree the sync writes into
	SiteRoot string `env:"SITE_ROOT" envDefault:"."`

	// Roster document location, used by the API server
	RosterPath string `env:"ROSTER_PATH" envDefault:"members.yml"`

	// API Server
	APIPort string `env:"API_PORT" envDefault:"8080"`
	APIHost string `env:"API_HOST" envDefault:"localhost"`

	// CLI
	APIEndpoint string `env:"API_ENDPOINT" envDefault:"http://localhost:8080"`
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to parse environment", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StorageType != "sqlite" && c.StorageType != "postgres" {
		return apperrors.NewConfigError("STORAGE_TYPE must be 'sqlite' or 'postgres'", nil)
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return apperrors.NewConfigError("POSTGRES_URL is required when STORAGE_TYPE is 'postgres'", nil)
	}
	return nil
}
