package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	notifications  *prometheus.CounterVec
	pending        prometheus.Gauge
	dropped        *prometheus.CounterVec
	listenerFaults prometheus.Counter
	cacheEntries   *prometheus.GaugeVec
	lockedGuilds   prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests; registering twice on one registry
// panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewire_notifications_total",
			Help: "Notifications handled by the router, by outcome status",
		}, []string{"status"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gatewire_deferrals_pending",
			Help: "Notifications waiting in the deferral queue",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewire_deferrals_dropped_total",
			Help: "Deferrals refused or discarded, by reason",
		}, []string{"reason"}),
		listenerFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatewire_listener_faults_total",
			Help: "Listener invocations that panicked",
		}),
		cacheEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gatewire_cache_entries",
			Help: "Cached entities by tier, refreshed on every sweep",
		}, []string{"tier"}),
		lockedGuilds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gatewire_guilds_locked",
			Help: "Guilds in bring-up, refreshed on every sweep",
		}),
	}
}

// ObserveOutcome counts one router outcome.
func (m *Metrics) ObserveOutcome(status Status) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(status)).Inc()
}

// SetPending records the deferral queue size.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// DeferralDropped counts a refused or discarded deferral.
func (m *Metrics) DeferralDropped(reason DropReason) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(string(reason)).Inc()
}

// SetCacheEntries records the repository's per-tier entry counts.
func (m *Metrics) SetCacheEntries(counts map[string]int) {
	if m == nil {
		return
	}
	for tier, n := range counts {
		m.cacheEntries.WithLabelValues(tier).Set(float64(n))
	}
}

// SetLockedGuilds records the number of guilds in bring-up.
func (m *Metrics) SetLockedGuilds(n int) {
	if m == nil {
		return
	}
	m.lockedGuilds.Set(float64(n))
}

// ListenerFault counts a panicking listener invocation.
func (m *Metrics) ListenerFault() {
	if m == nil {
		return
	}
	m.listenerFaults.Inc()
}
