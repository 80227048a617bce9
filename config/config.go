// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the conversation backend.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	IndexerURL   string        `env:"INDEXER_URL" envDefault:"http://127.0.0.1:8000/graphql"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`

	// WatchJobs lists job IDs whose logs this instance mirrors from the
	// indexer into the local store.
	WatchJobs []string `env:"WATCH_JOBS" envSeparator:","`

	IPFSAPIURL  string        `env:"IPFS_API_URL" envDefault:"http://127.0.0.1:5001"`
	IPFSTimeout time.Duration `env:"IPFS_HTTP_TIMEOUT" envDefault:"30s"`

	RelayURL     string        `env:"RELAY_URL" envDefault:"http://127.0.0.1:7100"`
	RelayTimeout time.Duration `env:"RELAY_TIMEOUT" envDefault:"30s"`

	// StoreDriver selects the persistence backend: "memory" or "postgres".
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr   string        `env:"REDIS_ADDR"`
	JobCacheTTL time.Duration `env:"JOB_CACHE_TTL" envDefault:"30s"`

	// SeedFixtures loads demo jobs and users on startup for dev mode.
	SeedFixtures bool `env:"SEED_FIXTURES" envDefault:"false"`

	LinkBase string `env:"LINK_BASE" envDefault:"https://openwork.local"`

	// APIKey, when set, gates the HTTP API behind X-API-Key / bearer auth.
	APIKey string `env:"API_KEY"`
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required with STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}
