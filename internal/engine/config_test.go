package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gatewire/internal/config"
)

func TestConfigOptions(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"GATEWIRE_MAX_PENDING_PER_KEY":            "2",
		"GATEWIRE_SWEEP_INTERVAL":                 "0s",
		"GATEWIRE_MAX_DEFERRALS_PER_NOTIFICATION": "3",
		"GATEWIRE_MAX_HELD_PER_GUILD":             "5",
	})
	require.NoError(t, err)

	f := newFixture(t, ConfigOptions(cfg)...)
	assert.Equal(t, time.Duration(0), f.shard.sweepInterval)
	assert.Equal(t, 5, f.shard.maxHeld)
	assert.Equal(t, 2, f.shard.Deferrals().maxPerKey)
	assert.Equal(t, 3, f.shard.Deferrals().maxDeferrals)
	assert.Equal(t, cfg.PendingTTL, f.shard.Deferrals().ttl)
}
