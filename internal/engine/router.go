package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/gatewire/internal/ir"
	"github.com/roach88/gatewire/internal/store"
)

// LockChecker reports guild bring-up state.
// Implemented by *cache.GuildLocks.
type LockChecker interface {
	IsLocked(guildID ir.Snowflake) bool
}

// Journal persists outcomes and pending replays.
// Implemented by *store.Store.
type Journal interface {
	RecordOutcome(ctx context.Context, rec store.OutcomeRecord) error
	SaveDeferral(ctx context.Context, rec store.DeferralRecord) error
	DeleteDeferral(ctx context.Context, session string, seq int64, key ir.DeferralKey) (bool, error)
}

// ReplayHook observes the outcome of every replayed notification.
type ReplayHook func(ctx context.Context, n ir.RawNotification, out Outcome)

// RouterConfig wires a Router to its collaborators.
// Locks, Resolver, Deferrals and Emitter are required.
type RouterConfig struct {
	Locks     LockChecker
	Resolver  *Resolver
	Deferrals *DeferralQueue
	Emitter   *Emitter

	// Journal and Session are optional; without a journal nothing is
	// persisted.
	Journal Journal
	Session string

	Metrics  *Metrics
	OnReplay ReplayHook
}

// Router turns one raw notification into exactly one terminal outcome:
// Blocked, Dropped, Deferred or Emitted.
//
// The router never mutates a cache. Replays from the deferral queue enter
// through the same path as live notifications, so a replay produces what
// live handling would have produced with the dependency present.
type Router struct {
	locks     LockChecker
	resolver  *Resolver
	deferrals *DeferralQueue
	emitter   *Emitter
	journal   Journal
	session   string
	metrics   *Metrics
	onReplay  ReplayHook
}

// NewRouter creates a router and subscribes it to deferral evictions so
// discarded replays reach the journal.
func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		locks:     cfg.Locks,
		resolver:  cfg.Resolver,
		deferrals: cfg.Deferrals,
		emitter:   cfg.Emitter,
		journal:   cfg.Journal,
		session:   cfg.Session,
		metrics:   cfg.Metrics,
		onReplay:  cfg.OnReplay,
	}
	r.deferrals.OnEvict(r.evicted)
	return r
}

// Handle routes a live notification.
func (r *Router) Handle(ctx context.Context, n ir.RawNotification) Outcome {
	return r.handle(ctx, n, 0)
}

// replay is the ResumeFunc stored with every deferral.
func (r *Router) replay(ctx context.Context, key ir.DeferralKey, chain uint64, n ir.RawNotification) Outcome {
	if r.journal != nil {
		if _, err := r.journal.DeleteDeferral(ctx, r.session, n.Seq, key); err != nil {
			slog.Error("failed to delete pending replay", "session", r.session, "seq", n.Seq, "key", key.String(), "error", err)
		}
	}
	return r.handle(ctx, n, chain)
}

// handle routes n. chain is zero for a live notification and the deferral
// chain for a replay.
func (r *Router) handle(ctx context.Context, n ir.RawNotification, chain uint64) Outcome {
	replayed := chain != 0
	out := r.route(ctx, n, chain)
	out.Seq = n.Seq
	out.Replayed = replayed

	// A blocked replay comes back as a live delivery with a new chain.
	if replayed && out.Status != StatusDeferred {
		r.deferrals.Forget(chain)
	}
	r.metrics.ObserveOutcome(out.Status)
	r.record(ctx, n, out)

	if replayed && r.onReplay != nil {
		r.onReplay(ctx, n, out)
	}
	return out
}

func (r *Router) route(ctx context.Context, n ir.RawNotification, chain uint64) Outcome {
	// A locked guild is still being brought up; nothing about it can be
	// trusted yet, so the notification is held back untouched.
	if n.HasGuild() && r.locks.IsLocked(n.GuildID) {
		return Blocked(n.GuildID)
	}

	if err := n.Validate(); err != nil {
		slog.Debug("dropping malformed notification", "seq", n.Seq, "kind", n.Kind, "error", err)
		return Dropped(ReasonMalformed)
	}
	action, _ := n.Kind.Action()

	user, err := r.resolver.User(n.UserID)
	if err != nil {
		if n.Kind.IsRemoval() {
			slog.Debug("dropping removal from unknown user", "seq", n.Seq, "user_id", n.UserID)
			return Dropped(ReasonUnresolvableActor)
		}
		return r.deferOn(ctx, n, err, chain)
	}

	channel, err := r.resolver.Channel(n.ChannelID)
	if err != nil {
		return r.deferOn(ctx, n, err, chain)
	}

	emote, err := r.resolver.Emote(n.Emoji)
	if err != nil {
		if errors.Is(err, ErrUnnamedEmote) {
			slog.Debug("dropping reaction with unnamed uncached emote", "seq", n.Seq, "emote_id", n.Emoji.ID)
			return Dropped(ReasonUnnamedEmote)
		}
		if errors.Is(err, ir.ErrMalformed) {
			slog.Debug("dropping malformed notification", "seq", n.Seq, "error", err)
			return Dropped(ReasonMalformed)
		}
		return r.deferOn(ctx, n, err, chain)
	}

	reaction := &ir.Reaction{
		Channel:   channel,
		Emote:     emote,
		MessageID: n.MessageID,
		Self:      r.resolver.IsSelf(user.ID),
		Count:     ir.UnknownCount,
	}

	events, ok := ir.BuildEvents(action, n.Seq, user, reaction)
	if !ok {
		slog.Error("reaction on channel kind that cannot carry reactions",
			"seq", n.Seq,
			"channel_id", channel.ID,
			"channel_kind", channel.Kind,
		)
		return Dropped(ReasonInvalidChannelKind)
	}

	for _, ev := range events {
		r.emitter.Deliver(ev)
	}
	return Emitted(events)
}

// deferOn queues n under the key carried by a resolution error.
func (r *Router) deferOn(ctx context.Context, n ir.RawNotification, resolveErr error, chain uint64) Outcome {
	key, ok := IsMissingEntity(resolveErr)
	if !ok {
		slog.Error("unexpected resolution error", "seq", n.Seq, "error", resolveErr)
		return Dropped(ReasonMalformed)
	}

	if err := r.deferrals.Register(ctx, key, n, chain, r.replay); err != nil {
		switch {
		case IsCyclicDeferral(err):
			slog.Warn("dropping cyclic re-deferral", "seq", n.Seq, "key", key.String(), "error", err)
			return Dropped(ReasonCyclicDeferral)
		case IsQuotaError(err):
			slog.Warn("dropping notification over deferral quota", "seq", n.Seq, "key", key.String(), "error", err)
			return Dropped(ReasonDeferralQuota)
		default:
			slog.Error("deferral failed", "seq", n.Seq, "key", key.String(), "error", err)
			return Dropped(ReasonMalformed)
		}
	}

	slog.Debug("notification deferred", "seq", n.Seq, "key", key.String(), "replayed", chain != 0)

	if r.journal != nil {
		rec := store.DeferralRecord{Session: r.session, Seq: n.Seq, Key: key, Notification: n}
		if err := r.journal.SaveDeferral(ctx, rec); err != nil {
			slog.Error("failed to journal pending replay", "session", r.session, "seq", n.Seq, "key", key.String(), "error", err)
		}
	}
	return Deferred(key)
}

// evicted journals a pending replay discarded by the deferral queue.
func (r *Router) evicted(ctx context.Context, key ir.DeferralKey, n ir.RawNotification, reason DropReason) {
	r.metrics.ObserveOutcome(StatusDropped)
	if r.journal == nil {
		return
	}
	if _, err := r.journal.DeleteDeferral(ctx, r.session, n.Seq, key); err != nil {
		slog.Error("failed to delete pending replay", "session", r.session, "seq", n.Seq, "key", key.String(), "error", err)
	}
	r.record(ctx, n, Outcome{Status: StatusDropped, Seq: n.Seq, Key: key, Reason: reason})
}

// droppedHeld journals a notification discarded from a locked guild's
// buffer.
func (r *Router) droppedHeld(ctx context.Context, n ir.RawNotification) {
	r.metrics.ObserveOutcome(StatusDropped)
	r.record(ctx, n, Outcome{Status: StatusDropped, Seq: n.Seq, Reason: ReasonHeldOverflow})
}

// record writes the outcome to the journal. Errors are logged and
// processing continues: a journal fault must not change routing.
func (r *Router) record(ctx context.Context, n ir.RawNotification, out Outcome) {
	if r.journal == nil {
		return
	}
	rec := store.OutcomeRecord{
		Session:  r.session,
		Seq:      n.Seq,
		Kind:     n.Kind,
		Status:   string(out.Status),
		GuildID:  n.GuildID,
		Key:      out.Key,
		Reason:   string(out.Reason),
		Events:   len(out.Events),
		Replayed: out.Replayed,
	}
	if err := r.journal.RecordOutcome(ctx, rec); err != nil {
		slog.Error("failed to journal outcome",
			"session", r.session,
			"seq", n.Seq,
			"status", out.Status,
			"error", err,
		)
	}
}
