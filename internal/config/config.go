// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds the process settings. Draw settings are persisted separately.
type Config struct {
	Addr         string        `env:"PRIZEDRAW_ADDR" envDefault:"127.0.0.1:8080"`
	StoreDriver  string        `env:"PRIZEDRAW_STORE_DRIVER" envDefault:"sqlite"`
	StorePath    string        `env:"PRIZEDRAW_STORE_PATH" envDefault:"prizedraw.db"`
	DismissDelay time.Duration `env:"PRIZEDRAW_DISMISS_DELAY" envDefault:"5s"`
	LogVerbose   bool          `env:"PRIZEDRAW_LOG_VERBOSE"`
	LogFile      string        `env:"PRIZEDRAW_LOG_FILE"`
}

// Load parses Config from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.StoreDriver {
	case DriverSQLite, DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if cfg.DismissDelay <= 0 {
		return Config{}, fmt.Errorf("dismiss delay must be positive, got %s", cfg.DismissDelay)
	}
	return cfg, nil
}
