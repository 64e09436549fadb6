package engine

import "github.com/roach88/gatewire/internal/config"

// ConfigOptions maps the loaded configuration onto shard options.
func ConfigOptions(cfg config.Config) []ShardOption {
	return []ShardOption{
		WithSweepInterval(cfg.SweepInterval),
		WithMaxHeldPerGuild(cfg.MaxHeldPerGuild),
		WithDeferralOptions(
			WithMaxPendingPerKey(cfg.MaxPendingPerKey),
			WithPendingTTL(cfg.PendingTTL),
			WithMaxDeferralsPerNotification(cfg.MaxDeferralsPerNotification),
		),
	}
}
