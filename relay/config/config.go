// Package config loads relay settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the relay reads from the environment. Command-line
// flags in main default to these values and override them when set.
type Config struct {
	Host         string        `env:"RELAY_HOST" envDefault:"0.0.0.0"`
	Port         string        `env:"RELAY_PORT" envDefault:"8765"`
	PingInterval time.Duration `env:"RELAY_PING_INTERVAL" envDefault:"10s"`
	IdleTimeout  time.Duration `env:"RELAY_IDLE_TIMEOUT" envDefault:"60s"`
	Debug        bool          `env:"RELAY_DEBUG" envDefault:"false"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PingInterval <= 0 {
		return fmt.Errorf("RELAY_PING_INTERVAL must be positive, got %s", c.PingInterval)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("RELAY_IDLE_TIMEOUT must be positive, got %s", c.IdleTimeout)
	}
	if c.PingInterval >= c.IdleTimeout {
		return fmt.Errorf("RELAY_PING_INTERVAL (%s) must be shorter than RELAY_IDLE_TIMEOUT (%s)",
			c.PingInterval, c.IdleTimeout)
	}
	return nil
}

// Addr is the host:port the HTTP server binds.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
