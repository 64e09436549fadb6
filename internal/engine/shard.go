package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/gatewire/internal/cache"
	"github.com/roach88/gatewire/internal/ir"
)

const (
	// DefaultSweepInterval is how often Run sweeps expired deferrals.
	DefaultSweepInterval = 30 * time.Second

	// DefaultMaxHeldPerGuild caps the notifications held for one locked
	// guild.
	DefaultMaxHeldPerGuild = 1024
)

type shardConfig struct {
	journal       Journal
	metrics       *Metrics
	sessions      SessionGenerator
	clock         *Clock
	sweepInterval time.Duration
	maxHeld       int
	deferralOpts  []DeferralOption
	listeners     []Listener
}

// ShardOption configures a Shard.
type ShardOption func(*shardConfig)

// WithJournal persists outcomes and pending replays to j.
func WithJournal(j Journal) ShardOption {
	return func(c *shardConfig) {
		c.journal = j
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) ShardOption {
	return func(c *shardConfig) {
		c.metrics = m
	}
}

// WithSessionGenerator sets the source of the shard's session token.
// Default: UUIDv7Generator.
func WithSessionGenerator(g SessionGenerator) ShardOption {
	return func(c *shardConfig) {
		c.sessions = g
	}
}

// WithClock sets the sequence clock used to stamp notifications.
func WithClock(clock *Clock) ShardOption {
	return func(c *shardConfig) {
		c.clock = clock
	}
}

// WithSweepInterval sets how often Run sweeps expired deferrals.
// Zero or less disables the sweep.
func WithSweepInterval(d time.Duration) ShardOption {
	return func(c *shardConfig) {
		c.sweepInterval = d
	}
}

// WithMaxHeldPerGuild caps the notifications held while a guild is locked.
// The oldest is dropped first. Zero or less disables the cap.
func WithMaxHeldPerGuild(n int) ShardOption {
	return func(c *shardConfig) {
		c.maxHeld = n
	}
}

// WithDeferralOptions passes options to the shard's deferral queue.
func WithDeferralOptions(opts ...DeferralOption) ShardOption {
	return func(c *shardConfig) {
		c.deferralOpts = append(c.deferralOpts, opts...)
	}
}

// WithListener registers a listener before the shard starts.
func WithListener(l Listener) ShardOption {
	return func(c *shardConfig) {
		c.listeners = append(c.listeners, l)
	}
}

// Shard is the single-writer dispatcher of one gateway connection.
//
// It owns the router, the deferral queue and the emitter, and holds back
// notifications for guilds mid bring-up until the guild unlocks.
//
// Thread-safety model:
//   - Submit*(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Dispatch(), Apply(), Unlock(): the single writer only; use them
//     instead of Run (tests, harness), never alongside it
//
// Cache and lock mutations that should trigger replays must happen on the
// writer: through Apply, or through SubmitApply from other goroutines.
type Shard struct {
	session   string
	clock     *Clock
	queue     *eventQueue
	repo      *cache.Repository
	locks     *cache.GuildLocks
	router    *Router
	deferrals *DeferralQueue
	emitter   *Emitter
	metrics   *Metrics

	sweepInterval time.Duration
	maxHeld       int

	// ctx is the context of the work the writer is currently doing. Cache
	// and lock hooks carry no context of their own and use it.
	ctx context.Context

	mu      sync.Mutex
	blocked map[ir.Snowflake][]ir.RawNotification
}

// NewShard creates a shard over a repository and a lock table and
// subscribes it to their availability and unlock hooks.
func NewShard(repo *cache.Repository, locks *cache.GuildLocks, opts ...ShardOption) *Shard {
	cfg := shardConfig{
		sessions:      UUIDv7Generator{},
		sweepInterval: DefaultSweepInterval,
		maxHeld:       DefaultMaxHeldPerGuild,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock()
	}

	deferralOpts := append([]DeferralOption{WithDeferralMetrics(cfg.metrics)}, cfg.deferralOpts...)

	s := &Shard{
		session:       cfg.sessions.Generate(),
		clock:         cfg.clock,
		queue:         newEventQueue(),
		repo:          repo,
		locks:         locks,
		deferrals:     NewDeferralQueue(deferralOpts...),
		emitter:       NewEmitter(cfg.metrics),
		metrics:       cfg.metrics,
		sweepInterval: cfg.sweepInterval,
		maxHeld:       cfg.maxHeld,
		ctx:           context.Background(),
		blocked:       make(map[ir.Snowflake][]ir.RawNotification),
	}
	for _, l := range cfg.listeners {
		s.emitter.Register(l)
	}

	s.router = NewRouter(RouterConfig{
		Locks:     locks,
		Resolver:  NewResolver(repo),
		Deferrals: s.deferrals,
		Emitter:   s.emitter,
		Journal:   cfg.journal,
		Session:   s.session,
		Metrics:   cfg.metrics,
		OnReplay:  s.replayed,
	})

	repo.OnAvailable(func(key ir.DeferralKey) {
		s.deferrals.Resolve(s.ctx, key)
	})
	locks.OnUnlock(func(guildID ir.Snowflake) {
		s.releaseGuild(s.ctx, guildID)
	})

	return s
}

// Session returns the shard's session token.
func (s *Shard) Session() string {
	return s.session
}

// Router returns the shard's router.
func (s *Shard) Router() *Router {
	return s.router
}

// Deferrals returns the shard's deferral queue.
func (s *Shard) Deferrals() *DeferralQueue {
	return s.deferrals
}

// Emitter returns the shard's emitter.
func (s *Shard) Emitter() *Emitter {
	return s.emitter
}

// Clock returns the shard's sequence clock.
func (s *Shard) Clock() *Clock {
	return s.clock
}

// Submit enqueues a notification for the Run loop.
// Returns false if the shard has stopped.
func (s *Shard) Submit(n ir.RawNotification) bool {
	return s.queue.Enqueue(shardEvent{Type: shardEventNotification, Notification: n})
}

// SubmitEntityAvailable asks the Run loop to replay deferrals waiting on
// key, for entities loaded into the repository without going through its
// Put methods' hooks on this shard.
func (s *Shard) SubmitEntityAvailable(key ir.DeferralKey) bool {
	return s.queue.Enqueue(shardEvent{Type: shardEventEntityAvailable, Key: key})
}

// SubmitGuildUnlocked asks the Run loop to end a guild's bring-up cycle.
func (s *Shard) SubmitGuildUnlocked(guildID ir.Snowflake) bool {
	return s.queue.Enqueue(shardEvent{Type: shardEventGuildUnlocked, GuildID: guildID})
}

// SubmitApply asks the Run loop to run fn, typically a repository Put.
func (s *Shard) SubmitApply(fn func(ctx context.Context)) bool {
	return s.queue.Enqueue(shardEvent{Type: shardEventApply, Apply: fn})
}

// Run starts the single-writer loop. Blocks until ctx is cancelled or Stop
// is called.
//
// ERROR HANDLING: routing never returns an error; faults are logged where
// they happen and processing continues with the next event.
func (s *Shard) Run(ctx context.Context) error {
	slog.Info("shard starting", "session", s.session)

	var sweep <-chan time.Time
	if s.sweepInterval > 0 {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		ev, ok := s.queue.TryDequeue()
		if ok {
			s.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("shard stopping: context cancelled", "session", s.session)
			s.queue.Close()
			return ctx.Err()

		case now := <-sweep:
			s.Sweep(ctx, now)

		case <-s.queue.Wait():
			// The signal channel closes with the queue; a stale signal for
			// an already dequeued event just loops back.
			if s.queue.Len() == 0 && s.queue.Closed() {
				slog.Info("shard stopping: queue closed", "session", s.session)
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it is drained.
func (s *Shard) Stop() {
	s.queue.Close()
}

func (s *Shard) process(ctx context.Context, ev shardEvent) {
	switch ev.Type {
	case shardEventNotification:
		s.Dispatch(ctx, ev.Notification)
	case shardEventEntityAvailable:
		s.Apply(ctx, func(ctx context.Context) {
			s.deferrals.Resolve(ctx, ev.Key)
		})
	case shardEventGuildUnlocked:
		s.Unlock(ctx, ev.GuildID)
	case shardEventApply:
		if ev.Apply != nil {
			s.Apply(ctx, ev.Apply)
		}
	default:
		logEventError(ev, fmt.Errorf("unknown shard event type: %d", ev.Type))
	}
}

// Dispatch stamps and routes one notification on the caller's goroutine.
// A Blocked notification is buffered until its guild unlocks.
func (s *Shard) Dispatch(ctx context.Context, n ir.RawNotification) Outcome {
	if n.Seq == 0 {
		n.Seq = s.clock.Next()
	} else {
		s.clock.Observe(n.Seq)
	}

	var out Outcome
	s.Apply(ctx, func(ctx context.Context) {
		out = s.router.Handle(ctx, n)
	})
	if out.Status == StatusBlocked {
		s.hold(n)
	}
	return out
}

// Apply runs fn as the writer with ctx as the context of any replay the
// work triggers.
func (s *Shard) Apply(ctx context.Context, fn func(ctx context.Context)) {
	prev := s.ctx
	s.ctx = ctx
	defer func() { s.ctx = prev }()
	fn(ctx)
}

// Lock starts a guild bring-up cycle.
func (s *Shard) Lock(guildID ir.Snowflake) bool {
	return s.locks.Lock(guildID)
}

// Unlock ends a guild bring-up cycle. Held notifications for the guild are
// dispatched in arrival order before Unlock returns.
func (s *Shard) Unlock(ctx context.Context, guildID ir.Snowflake) bool {
	var ok bool
	s.Apply(ctx, func(context.Context) {
		ok = s.locks.Unlock(guildID)
	})
	return ok
}

// Sweep drops deferrals older than the pending TTL, reclaims expired ghost
// entities and refreshes the cache gauges. Returns the deferrals dropped.
func (s *Shard) Sweep(ctx context.Context, now time.Time) int {
	var n int
	s.Apply(ctx, func(ctx context.Context) {
		n = s.deferrals.Sweep(ctx, now)
	})
	ghosts := s.repo.DeleteExpired()

	s.metrics.SetCacheEntries(s.repo.Counts())
	s.metrics.SetLockedGuilds(s.locks.LockedCount())
	slog.Debug("sweep finished",
		"session", s.session,
		"expired_deferrals", n,
		"expired_ghosts", ghosts,
		"chains", s.deferrals.Chains(),
	)
	return n
}

// DropGuild discards the notifications held for a guild that went away and
// returns how many there were.
func (s *Shard) DropGuild(guildID ir.Snowflake) int {
	s.mu.Lock()
	held := len(s.blocked[guildID])
	delete(s.blocked, guildID)
	s.mu.Unlock()

	if held > 0 {
		slog.Warn("discarding notifications held for removed guild",
			"session", s.session,
			"guild_id", guildID,
			"count", held,
		)
	}
	return held
}

// Held returns the notifications buffered for a locked guild.
func (s *Shard) Held(guildID ir.Snowflake) []ir.RawNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ir.RawNotification(nil), s.blocked[guildID]...)
}

func (s *Shard) hold(n ir.RawNotification) {
	s.mu.Lock()
	list := append(s.blocked[n.GuildID], n)
	var dropped []ir.RawNotification
	if s.maxHeld > 0 && len(list) > s.maxHeld {
		cut := len(list) - s.maxHeld
		dropped = append(dropped, list[:cut]...)
		list = append([]ir.RawNotification(nil), list[cut:]...)
	}
	s.blocked[n.GuildID] = list
	s.mu.Unlock()

	for _, d := range dropped {
		slog.Warn("discarding oldest notification held for locked guild",
			"session", s.session,
			"guild_id", d.GuildID,
			"seq", d.Seq,
			"limit", s.maxHeld,
		)
		s.router.droppedHeld(s.ctx, d)
	}
}

// replayed buffers replays that hit a guild which began a new bring-up
// cycle while they waited.
func (s *Shard) replayed(_ context.Context, n ir.RawNotification, out Outcome) {
	if out.Status == StatusBlocked {
		s.hold(n)
	}
}

// releaseGuild re-dispatches the notifications held for an unlocked guild.
func (s *Shard) releaseGuild(ctx context.Context, guildID ir.Snowflake) {
	s.mu.Lock()
	held := s.blocked[guildID]
	delete(s.blocked, guildID)
	s.mu.Unlock()

	if len(held) == 0 {
		return
	}
	slog.Debug("releasing held notifications", "session", s.session, "guild_id", guildID, "count", len(held))
	for _, n := range held {
		s.Dispatch(ctx, n)
	}
}

// logEventError logs a shard event that could not be processed.
func logEventError(ev shardEvent, err error) {
	slog.Error("shard event processing failed",
		"event_type", ev.Type.String(),
		"seq", ev.Notification.Seq,
		"error", err,
	)
}
