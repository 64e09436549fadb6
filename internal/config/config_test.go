package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, Config{
		MaxPendingPerKey:            64,
		PendingTTL:                  10 * time.Minute,
		MaxDeferralsPerNotification: 8,
		MaxHeldPerGuild:             1024,
		GhostTTL:                    30 * time.Minute,
		SweepInterval:               30 * time.Second,
		LogLevel:                    "info",
		LogFormat:                   "text",
	}, cfg)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"GATEWIRE_MAX_PENDING_PER_KEY": "3",
		"GATEWIRE_PENDING_TTL":         "90s",
		"GATEWIRE_GHOST_TTL":           "0s",
		"GATEWIRE_LOG_LEVEL":           "debug",
		"GATEWIRE_LOG_FORMAT":          "json",
		"GATEWIRE_DATABASE":            "/tmp/journal.db",
		"MAX_PENDING_PER_KEY":          "99",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxPendingPerKey, "unprefixed variables are ignored")
	assert.Equal(t, 90*time.Second, cfg.PendingTTL)
	assert.Equal(t, time.Duration(0), cfg.GhostTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/tmp/journal.db", cfg.Database)
}

func TestLoadFrom_ParseError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"GATEWIRE_PENDING_TTL": "soon"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"), "got %v", err)
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("GATEWIRE_MAX_DEFERRALS_PER_NOTIFICATION", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxDeferralsPerNotification)
}

func TestValidate(t *testing.T) {
	base, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"negative cap", func(c *Config) { c.MaxPendingPerKey = -1 }, "max pending per key"},
		{"negative ttl", func(c *Config) { c.PendingTTL = -time.Second }, "pending ttl"},
		{"negative held cap", func(c *Config) { c.MaxHeldPerGuild = -1 }, "max held per guild"},
		{"zero quota", func(c *Config) { c.MaxDeferralsPerNotification = 0 }, "max deferrals"},
		{"negative ghost ttl", func(c *Config) { c.GhostTTL = -time.Second }, "ghost ttl"},
		{"negative sweep", func(c *Config) { c.SweepInterval = -time.Second }, "sweep interval"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, base.Validate())
}

func TestNewLogger_JSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn", LogFormat: FormatJSON}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "seq", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, float64(3), rec["seq"])
}

func TestNewLogger_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := Config{}.NewLogger(&buf)

	logger.Debug("hidden")
	logger.Info("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=visible")
}
