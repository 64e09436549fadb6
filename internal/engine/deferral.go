package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/gatewire/internal/ir"
)

const (
	// DefaultMaxPendingPerKey caps the replays queued under one key.
	DefaultMaxPendingPerKey = 64

	// DefaultPendingTTL is how long a replay may wait before Sweep drops it.
	DefaultPendingTTL = 10 * time.Minute
)

// ResumeFunc re-enters the router with a notification whose dependency key
// became available. chain is the deferral chain the replay belongs to.
type ResumeFunc func(ctx context.Context, key ir.DeferralKey, chain uint64, n ir.RawNotification) Outcome

// EvictFunc observes a pending replay discarded by the per-key cap or the
// TTL sweep.
type EvictFunc func(ctx context.Context, key ir.DeferralKey, n ir.RawNotification, reason DropReason)

// pendingReplay is the stored (payload, resume) pair. The payload is the
// raw notification alone, never resolved entities.
//
// chain identifies one delivery across its replays. Identical payloads
// delivered twice get two chains, so their replays are tracked apart.
type pendingReplay struct {
	notification ir.RawNotification
	resume       ResumeFunc
	queuedAt     time.Time
	chain        uint64
}

// DeferralOption configures a DeferralQueue.
type DeferralOption func(*DeferralQueue)

// WithMaxPendingPerKey sets the per-key cap. Zero or less disables it.
func WithMaxPendingPerKey(n int) DeferralOption {
	return func(q *DeferralQueue) {
		q.maxPerKey = n
	}
}

// WithPendingTTL sets the age after which Sweep drops a pending replay.
// Zero disables expiry.
func WithPendingTTL(ttl time.Duration) DeferralOption {
	return func(q *DeferralQueue) {
		q.ttl = ttl
	}
}

// WithMaxDeferralsPerNotification sets the per-notification deferral quota.
func WithMaxDeferralsPerNotification(n int) DeferralOption {
	return func(q *DeferralQueue) {
		q.maxDeferrals = n
	}
}

// WithDeferralClock replaces time.Now for queue timestamps.
func WithDeferralClock(now func() time.Time) DeferralOption {
	return func(q *DeferralQueue) {
		q.now = now
	}
}

// WithEvictionLogLimit sets how many eviction warnings per second are logged
// before the rest fall back to debug.
func WithEvictionLogLimit(perSecond float64, burst int) DeferralOption {
	return func(q *DeferralQueue) {
		q.warnLimit = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithDeferralMetrics attaches metrics. nil is allowed.
func WithDeferralMetrics(m *Metrics) DeferralOption {
	return func(q *DeferralQueue) {
		q.metrics = m
	}
}

// DeferralQueue holds notifications waiting for a missing entity, keyed by
// the entity they wait on.
//
// Entries under one key are kept FIFO and replayed in ascending sequence
// order. Identical payloads registered twice are kept twice.
//
// The queue is driven from the shard's single writer. The mutex only makes
// the introspection methods safe for other goroutines.
type DeferralQueue struct {
	mu       sync.Mutex
	pending  map[ir.DeferralKey][]pendingReplay
	total    int
	worklist []ir.DeferralKey
	draining bool

	guard        *ReplayGuard
	quotas       map[uint64]*DeferralQuota
	maxDeferrals int
	nextChain    uint64

	maxPerKey int
	ttl       time.Duration
	now       func() time.Time
	warnLimit *rate.Limiter
	metrics   *Metrics
	onEvict   []EvictFunc
}

// NewDeferralQueue creates an empty queue.
func NewDeferralQueue(opts ...DeferralOption) *DeferralQueue {
	q := &DeferralQueue{
		pending:      make(map[ir.DeferralKey][]pendingReplay),
		guard:        NewReplayGuard(),
		quotas:       make(map[uint64]*DeferralQuota),
		maxDeferrals: DefaultMaxDeferralsPerNotification,
		maxPerKey:    DefaultMaxPendingPerKey,
		ttl:          DefaultPendingTTL,
		now:          time.Now,
		warnLimit:    rate.NewLimiter(rate.Limit(1), 5),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnEvict subscribes fn to discarded replays.
func (q *DeferralQueue) OnEvict(fn EvictFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onEvict = append(q.onEvict, fn)
}

// Register queues n under key with its resume continuation.
//
// chain is zero for a live delivery, which starts a new deferral chain. A
// replay passes the chain it was resumed with; registering that chain again
// under a key it already waited on returns a cyclic deferral error. Every
// registration counts against the chain's deferral quota. A refused
// registration ends its chain.
func (q *DeferralQueue) Register(ctx context.Context, key ir.DeferralKey, n ir.RawNotification, chain uint64, resume ResumeFunc) error {
	q.mu.Lock()

	if chain == 0 {
		q.nextChain++
		chain = q.nextChain
	} else if q.guard.WouldCycle(chain, key) {
		q.forgetLocked(chain)
		q.mu.Unlock()
		q.metrics.DeferralDropped(ReasonCyclicDeferral)
		return NewCyclicDeferralError(n.Seq, key)
	}

	quota, ok := q.quotas[chain]
	if !ok {
		quota = NewDeferralQuota(q.maxDeferrals)
		q.quotas[chain] = quota
	}
	if err := quota.Check(n.Seq); err != nil {
		q.forgetLocked(chain)
		q.mu.Unlock()
		q.metrics.DeferralDropped(ReasonDeferralQuota)
		return err
	}
	q.guard.Record(chain, key)

	list := append(q.pending[key], pendingReplay{
		notification: n,
		resume:       resume,
		queuedAt:     q.now(),
		chain:        chain,
	})
	q.total++

	var evicted []pendingReplay
	if q.maxPerKey > 0 && len(list) > q.maxPerKey {
		cut := len(list) - q.maxPerKey
		evicted = append(evicted, list[:cut]...)
		list = append([]pendingReplay(nil), list[cut:]...)
		q.total -= cut
	}
	q.pending[key] = list
	total := q.total
	q.mu.Unlock()

	q.metrics.SetPending(total)
	for _, e := range evicted {
		q.evicted(ctx, key, e, ReasonEvicted)
	}
	return nil
}

// Resolve replays every notification queued under key, in ascending
// sequence order, and returns the number replayed.
//
// A Resolve issued while another is draining (a replay or a listener made
// another entity available) is queued and replayed by the outermost call
// before it returns; the nested call returns 0.
func (q *DeferralQueue) Resolve(ctx context.Context, key ir.DeferralKey) int {
	q.mu.Lock()
	q.worklist = append(q.worklist, key)
	if q.draining {
		q.mu.Unlock()
		return 0
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	replayed := 0
	for {
		q.mu.Lock()
		if len(q.worklist) == 0 {
			q.mu.Unlock()
			return replayed
		}
		k := q.worklist[0]
		q.worklist = q.worklist[1:]
		entries := q.pending[k]
		delete(q.pending, k)
		q.total -= len(entries)
		total := q.total
		q.mu.Unlock()

		if len(entries) == 0 {
			continue
		}
		q.metrics.SetPending(total)

		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].notification.Seq < entries[j].notification.Seq
		})

		slog.Debug("replaying deferrals", "key", k.String(), "count", len(entries))
		for _, e := range entries {
			e.resume(ctx, k, e.chain, e.notification)
			replayed++
		}
	}
}

// Sweep drops replays that have waited longer than the TTL and returns the
// number dropped. Keys are swept in a stable order.
func (q *DeferralQueue) Sweep(ctx context.Context, now time.Time) int {
	if q.ttl <= 0 {
		return 0
	}

	type expiredEntry struct {
		key   ir.DeferralKey
		entry pendingReplay
	}

	q.mu.Lock()
	var expired []expiredEntry
	for _, key := range q.sortedKeysLocked() {
		list := q.pending[key]
		kept := list[:0]
		for _, e := range list {
			if now.Sub(e.queuedAt) > q.ttl {
				expired = append(expired, expiredEntry{key: key, entry: e})
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(q.pending, key)
		} else {
			q.pending[key] = kept
		}
	}
	q.total -= len(expired)
	total := q.total
	q.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	q.metrics.SetPending(total)
	for _, x := range expired {
		q.evicted(ctx, x.key, x.entry, ReasonExpired)
	}
	return len(expired)
}

// Forget clears the guard history and quota of a finished chain. Other
// chains carrying the same payload are untouched.
func (q *DeferralQueue) Forget(chain uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.forgetLocked(chain)
}

func (q *DeferralQueue) forgetLocked(chain uint64) {
	q.guard.Clear(chain)
	delete(q.quotas, chain)
}

// Chains returns the number of deferral chains still tracked.
func (q *DeferralQueue) Chains() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.quotas)
}

// Len returns the number of pending replays across all keys.
func (q *DeferralQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// Pending returns the notifications queued under key in queue order.
func (q *DeferralQueue) Pending(key ir.DeferralKey) []ir.RawNotification {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.pending[key]
	out := make([]ir.RawNotification, len(list))
	for i, e := range list {
		out[i] = e.notification
	}
	return out
}

// Keys returns every key with pending replays, sorted by kind then id.
func (q *DeferralQueue) Keys() []ir.DeferralKey {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedKeysLocked()
}

func (q *DeferralQueue) sortedKeysLocked() []ir.DeferralKey {
	keys := make([]ir.DeferralKey, 0, len(q.pending))
	for k := range q.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].ID < keys[j].ID
	})
	return keys
}

// evicted reports a discarded replay. Warnings are rate limited; the
// overflow is logged at debug.
func (q *DeferralQueue) evicted(ctx context.Context, key ir.DeferralKey, e pendingReplay, reason DropReason) {
	q.Forget(e.chain)
	q.metrics.DeferralDropped(reason)

	err := NewEvictionError(e.notification.Seq, key, reason)
	if q.warnLimit.Allow() {
		slog.Warn("pending replay discarded", "key", key.String(), "seq", e.notification.Seq, "reason", reason, "error", err)
	} else {
		slog.Debug("pending replay discarded", "key", key.String(), "seq", e.notification.Seq, "reason", reason)
	}

	q.mu.Lock()
	hooks := make([]EvictFunc, len(q.onEvict))
	copy(hooks, q.onEvict)
	q.mu.Unlock()

	for _, fn := range hooks {
		fn(ctx, key, e.notification, reason)
	}
}
