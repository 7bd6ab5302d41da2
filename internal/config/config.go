// Package config loads scanstream settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-provided settings. Per-run choices such as
// the filter and crop are command-line flags.
type Config struct {
	APIURL     string `env:"SCANSTREAM_API_URL" envDefault:"https://api.evrythng.com"`
	APIKey     string `env:"SCANSTREAM_API_KEY"`
	AppID      string `env:"SCANSTREAM_APP_ID"`
	IdentityDB string `env:"SCANSTREAM_IDENTITY_DB" envDefault:"scanstream.db"`
	LogFile    string `env:"SCANSTREAM_LOG_FILE"`

	OTELEndpoint string `env:"SCANSTREAM_OTEL_ENDPOINT"`
	OTELEnabled  bool   `env:"SCANSTREAM_OTEL_ENABLED" envDefault:"true"`

	MinRemoteInterval time.Duration `env:"SCANSTREAM_MIN_REMOTE_INTERVAL" envDefault:"1500ms"`
	DebounceWindow    time.Duration `env:"SCANSTREAM_DEBOUNCE" envDefault:"1500ms"`
	IdealWidth        int           `env:"SCANSTREAM_IDEAL_WIDTH" envDefault:"1920"`
	IdealHeight       int           `env:"SCANSTREAM_IDEAL_HEIGHT" envDefault:"1080"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no session could run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("SCANSTREAM_API_URL must not be empty")
	}
	if c.MinRemoteInterval <= 0 {
		return fmt.Errorf("SCANSTREAM_MIN_REMOTE_INTERVAL must be positive")
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("SCANSTREAM_DEBOUNCE must not be negative")
	}
	if c.IdealWidth <= 0 || c.IdealHeight <= 0 {
		return fmt.Errorf("ideal capture size must be positive, got %dx%d", c.IdealWidth, c.IdealHeight)
	}
	return nil
}

// Remote reports whether the recognition service can be used.
func (c Config) Remote() bool {
	return strings.TrimSpace(c.APIKey) != ""
}
