package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/gatewire/internal/cache"
	"github.com/roach88/gatewire/internal/config"
	"github.com/roach88/gatewire/internal/engine"
	"github.com/roach88/gatewire/internal/ir"
	"github.com/roach88/gatewire/internal/store"
	"github.com/roach88/gatewire/internal/testutil"
)

type runConfig struct {
	store    *store.Store
	metrics  *engine.Metrics
	ghostTTL time.Duration
	opts     []engine.ShardOption
}

// Option configures a scenario run.
type Option func(*runConfig)

// WithStore journals into st instead of a fresh in-memory database. The
// caller keeps ownership of st.
func WithStore(st *store.Store) Option {
	return func(c *runConfig) {
		c.store = st
	}
}

// WithConfig applies the deferral bounds and ghost TTL from cfg. The sweep
// interval is ignored: scenario runs never sweep on a timer.
func WithConfig(cfg config.Config) Option {
	return func(c *runConfig) {
		c.ghostTTL = cfg.GhostTTL
		c.opts = append(c.opts, engine.ConfigOptions(cfg)...)
	}
}

// WithMetrics records the run in m.
func WithMetrics(m *engine.Metrics) Option {
	return func(c *runConfig) {
		c.metrics = m
	}
}

// Harness is the scenario execution engine: one shard over fresh caches,
// a journal, a deterministic sequence clock and a fixed session.
type Harness struct {
	store  *store.Store
	shard  *engine.Shard
	repo   *cache.Repository
	clock  *testutil.DeterministicClock
	events *eventRecorder
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database unless WithStore is
// given. An error means the run itself could not proceed; failed
// expectations and assertions are reported in the Result instead.
//
// Execution flow:
// 1. Seed caches and lock the setup guilds
// 2. Execute steps, checking expect clauses on notify steps
// 3. Read back the journal
// 4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	st := cfg.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	h := newHarness(scenario, st, cfg)
	result := NewResult()
	result.Session = h.shard.Session()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	records, err := st.ReadOutcomes(ctx, h.shard.Session())
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	for _, rec := range records {
		result.Journal = append(result.Journal, newJournalEntry(rec))
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Session: h.shard.Session(),
		Pending: h.shard.Deferrals(),
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, st *store.Store, cfg runConfig) *Harness {
	repo := cache.NewRepository(scenario.Setup.SelfUser, cfg.ghostTTL)
	locks := cache.NewGuildLocks()
	events := &eventRecorder{}

	opts := append([]engine.ShardOption{
		engine.WithJournal(st),
		engine.WithMetrics(cfg.metrics),
		engine.WithSessionGenerator(testutil.NewFixedSessionGenerator(scenario.Session)),
	}, cfg.opts...)
	opts = append(opts,
		engine.WithSweepInterval(0),
		engine.WithListener(events),
	)
	shard := engine.NewShard(repo, locks, opts...)

	return &Harness{
		store:  st,
		shard:  shard,
		repo:   repo,
		clock:  testutil.NewDeterministicClock(),
		events: events,
	}
}

// executeSetup seeds the caches and lock table.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	var setupErr error
	h.shard.Apply(ctx, func(context.Context) {
		for _, u := range setup.Users {
			h.repo.PutUser(u.user(false))
		}
		for _, u := range setup.GhostUsers {
			h.repo.PutGhostUser(u.user(true))
		}
		for i, c := range setup.Channels {
			ch, err := c.channel(false)
			if err != nil {
				setupErr = fmt.Errorf("channels[%d]: %w", i, err)
				return
			}
			h.repo.PutChannel(ch)
		}
		for i, c := range setup.PrivateChannels {
			ch, err := c.channel(false)
			if err != nil {
				setupErr = fmt.Errorf("private_channels[%d]: %w", i, err)
				return
			}
			h.repo.PutPrivateChannel(ch)
		}
		for i, c := range setup.GhostPrivateChannels {
			ch, err := c.channel(true)
			if err != nil {
				setupErr = fmt.Errorf("ghost_private_channels[%d]: %w", i, err)
				return
			}
			h.repo.PutGhostPrivateChannel(ch)
		}
		for _, e := range setup.Emotes {
			h.repo.PutEmote(e.emote())
		}
	})
	if setupErr != nil {
		return setupErr
	}

	for _, g := range setup.LockedGuilds {
		h.shard.Lock(g)
	}
	slog.Debug("scenario setup complete", "session", h.shard.Session(), "locked_guilds", len(setup.LockedGuilds))
	return nil
}

// executeSteps runs every step and checks its expect clause.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		op := step.Op()
		if op == "" {
			return fmt.Errorf("step %d: expected exactly one operation, got %v", i, step.Ops())
		}

		mark := h.events.mark()
		entry := TraceStep{Step: i, Op: op}

		switch op {
		case OpNotify:
			n := *step.Notify
			n.Seq = h.clock.Stamp(n.Seq)
			out := h.shard.Dispatch(ctx, n)
			entry.Seq = out.Seq
			entry.Outcome = out.String()
			if step.Expect != nil {
				for _, msg := range checkExpect(i, step.Expect, out) {
					result.AddError(msg)
				}
			}
		case OpLock:
			h.shard.Lock(step.Lock)
		case OpUnlock:
			h.shard.Unlock(ctx, step.Unlock)
		default:
			if err := h.applyEntity(ctx, step); err != nil {
				return fmt.Errorf("step %d (%s): %w", i, op, err)
			}
		}

		entry.Events = h.events.since(mark)
		result.Trace = append(result.Trace, entry)

		slog.Debug("scenario step completed",
			"step", i,
			"op", op,
			"outcome", entry.Outcome,
			"events", len(entry.Events),
		)
	}
	return nil
}

// applyEntity performs an add_* step on the writer so waiting deferrals
// replay before the step finishes.
func (h *Harness) applyEntity(ctx context.Context, step Step) error {
	var err error
	h.shard.Apply(ctx, func(context.Context) {
		switch {
		case step.AddUser != nil:
			h.repo.PutUser(step.AddUser.user(false))
		case step.AddGhostUser != nil:
			h.repo.PutGhostUser(step.AddGhostUser.user(true))
		case step.AddChannel != nil:
			var ch ir.Channel
			if ch, err = step.AddChannel.channel(false); err == nil {
				h.repo.PutChannel(ch)
			}
		case step.AddPrivateChannel != nil:
			var ch ir.Channel
			if ch, err = step.AddPrivateChannel.channel(false); err == nil {
				h.repo.PutPrivateChannel(ch)
			}
		case step.AddGhostPrivateChannel != nil:
			var ch ir.Channel
			if ch, err = step.AddGhostPrivateChannel.channel(true); err == nil {
				h.repo.PutGhostPrivateChannel(ch)
			}
		case step.AddEmote != nil:
			h.repo.PutEmote(step.AddEmote.emote())
		}
	})
	return err
}

// checkExpect compares a notify step's outcome with its expect clause.
func checkExpect(step int, want *Expect, out engine.Outcome) []string {
	var errs []string
	fail := func(field string, expected, actual any) {
		errs = append(errs, (&AssertionError{
			Type:     fmt.Sprintf("steps[%d].expect.%s", step, field),
			Expected: fmt.Sprint(expected),
			Actual:   fmt.Sprint(actual),
		}).Error())
	}

	if want.Status != string(out.Status) {
		fail("status", want.Status, out)
		return errs
	}
	if want.Reason != "" && want.Reason != string(out.Reason) {
		fail("reason", want.Reason, out.Reason)
	}
	if want.Key != "" && want.Key != out.Key.String() {
		fail("key", want.Key, out.Key)
	}
	if want.Events != nil {
		got := make([]string, len(out.Events))
		for i, ev := range out.Events {
			got[i] = string(ev.Type)
		}
		if !slices.Equal(want.Events, got) {
			fail("events", want.Events, got)
		}
	}
	return errs
}
