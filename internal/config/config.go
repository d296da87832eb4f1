// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-sourced setting. Secrets come in through
// the environment only; there is no config file with key material in it.
type Config struct {
	// MasterKey is the 64-hex-char AES-256 key every secret is sealed with.
	// The process must not start without it.
	MasterKey string `env:"DEVAULT_MASTER_KEY,required,notEmpty"`

	JWTAccessSecret  string        `env:"DEVAULT_JWT_ACCESS_SECRET,required,notEmpty"`
	JWTRefreshSecret string        `env:"DEVAULT_JWT_REFRESH_SECRET,required,notEmpty"`
	JWTAccessTTL     time.Duration `env:"DEVAULT_JWT_ACCESS_TTL" envDefault:"15m"`
	JWTRefreshTTL    time.Duration `env:"DEVAULT_JWT_REFRESH_TTL" envDefault:"720h"`

	AppName  string `env:"DEVAULT_APP_NAME" envDefault:"DeVault"`
	LogLevel string `env:"DEVAULT_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("access and refresh JWT secrets must differ")
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name onto a slog.Level, defaulting to
// info for anything unrecognized.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
