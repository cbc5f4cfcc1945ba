// Package config loads CLI settings from SLOTBIND_* environment variables.
// Command-line flags override what is loaded here.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds settings shared by every command.
type Config struct {
	DB          string `env:"SLOTBIND_DB"            envDefault:"slotbind.db"`
	Format      string `env:"SLOTBIND_FORMAT"        envDefault:"text"`
	LogLevel    string `env:"SLOTBIND_LOG_LEVEL"     envDefault:"warn"`
	MaxSteps    int    `env:"SLOTBIND_MAX_STEPS"     envDefault:"1000"`
	MetricsFile string `env:"SLOTBIND_METRICS_FILE"`
}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("SLOTBIND_FORMAT: invalid format %q (must be text or json)", c.Format)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("SLOTBIND_MAX_STEPS: must be at least 1, got %d", c.MaxSteps)
	}
	return nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("SLOTBIND_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// NewLogger builds a logger writing to w: JSON lines when format is
// "json", logfmt-style text otherwise.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
