// Package config loads gatewire settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "GATEWIRE_"

// Config holds the pipeline bounds and ambient settings.
//
// Every field can be set from the environment (GATEWIRE_<NAME>) and
// overridden by CLI flags.
type Config struct {
	// MaxPendingPerKey caps replays queued under one dependency key; the
	// oldest is evicted first. Zero disables the cap.
	MaxPendingPerKey int `env:"MAX_PENDING_PER_KEY" envDefault:"64"`

	// PendingTTL drops replays that have waited longer. Zero disables it.
	PendingTTL time.Duration `env:"PENDING_TTL" envDefault:"10m"`

	// MaxDeferralsPerNotification bounds deferrals across one
	// notification's replays.
	MaxDeferralsPerNotification int `env:"MAX_DEFERRALS_PER_NOTIFICATION" envDefault:"8"`

	// MaxHeldPerGuild caps notifications held back for one locked guild;
	// the oldest is dropped first. Zero disables the cap.
	MaxHeldPerGuild int `env:"MAX_HELD_PER_GUILD" envDefault:"1024"`

	// GhostTTL expires ghost users and ghost private channels. Zero keeps
	// them forever.
	GhostTTL time.Duration `env:"GHOST_TTL" envDefault:"30m"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Database is the journal path. Empty means no journal.
	Database string `env:"DATABASE"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads the configuration from environ instead of the process
// environment when environ is non-nil. Used by tests.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.MaxPendingPerKey < 0 {
		errs = append(errs, fmt.Errorf("max pending per key must not be negative, got %d", c.MaxPendingPerKey))
	}
	if c.MaxHeldPerGuild < 0 {
		errs = append(errs, fmt.Errorf("max held per guild must not be negative, got %d", c.MaxHeldPerGuild))
	}
	if c.PendingTTL < 0 {
		errs = append(errs, fmt.Errorf("pending ttl must not be negative, got %s", c.PendingTTL))
	}
	if c.MaxDeferralsPerNotification < 1 {
		errs = append(errs, fmt.Errorf("max deferrals per notification must be at least 1, got %d", c.MaxDeferralsPerNotification))
	}
	if c.GhostTTL < 0 {
		errs = append(errs, fmt.Errorf("ghost ttl must not be negative, got %s", c.GhostTTL))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("sweep interval must not be negative, got %s", c.SweepInterval))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != FormatText && c.LogFormat != FormatJSON {
		errs = append(errs, fmt.Errorf("log format must be %q or %q, got %q", FormatText, FormatJSON, c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
