package engine

import (
	"fmt"

	"github.com/roach88/gatewire/internal/ir"
)

// Status is the terminal state a notification reached in the router.
type Status string

const (
	StatusBlocked  Status = "blocked"
	StatusDropped  Status = "dropped"
	StatusDeferred Status = "deferred"
	StatusEmitted  Status = "emitted"
)

// DropReason explains a Dropped outcome or a discarded pending replay.
type DropReason string

const (
	ReasonMalformed          DropReason = "malformed"
	ReasonUnresolvableActor  DropReason = "unresolvable_actor"
	ReasonUnnamedEmote       DropReason = "unnamed_emote"
	ReasonInvalidChannelKind DropReason = "invalid_channel_kind"
	ReasonCyclicDeferral     DropReason = "cyclic_deferral"
	ReasonDeferralQuota      DropReason = "deferral_quota"

	// ReasonEvicted and ReasonExpired discard pending replays rather than
	// live notifications.
	ReasonEvicted DropReason = "evicted"
	ReasonExpired DropReason = "expired"

	// ReasonHeldOverflow discards the oldest notification held for a locked
	// guild once its buffer is full.
	ReasonHeldOverflow DropReason = "held_overflow"
)

// Outcome is the result of handling one notification.
//
// Exactly one of GuildID (Blocked), Key (Deferred), Reason (Dropped) or
// Events (Emitted) is meaningful, chosen by Status.
type Outcome struct {
	Status   Status         `json:"status"`
	Seq      int64          `json:"seq"`
	GuildID  ir.Snowflake   `json:"guild_id,omitempty"`
	Key      ir.DeferralKey `json:"key,omitempty"`
	Reason   DropReason     `json:"reason,omitempty"`
	Events   []ir.Event     `json:"events,omitempty"`
	Replayed bool           `json:"replayed,omitempty"`
}

// Blocked builds the outcome for a notification held back by a guild lock.
func Blocked(guildID ir.Snowflake) Outcome {
	return Outcome{Status: StatusBlocked, GuildID: guildID}
}

// Dropped builds the outcome for a discarded notification.
func Dropped(reason DropReason) Outcome {
	return Outcome{Status: StatusDropped, Reason: reason}
}

// Deferred builds the outcome for a notification queued under key.
func Deferred(key ir.DeferralKey) Outcome {
	return Outcome{Status: StatusDeferred, Key: key}
}

// Emitted builds the outcome for a notification delivered as events.
func Emitted(events []ir.Event) Outcome {
	return Outcome{Status: StatusEmitted, Events: events}
}

// Terminal reports whether the notification is finished with. Blocked and
// Deferred notifications come back through the router later.
func (o Outcome) Terminal() bool {
	return o.Status == StatusDropped || o.Status == StatusEmitted
}

// String renders the outcome the way it is logged.
func (o Outcome) String() string {
	switch o.Status {
	case StatusBlocked:
		return fmt.Sprintf("Blocked(%s)", o.GuildID)
	case StatusDropped:
		return fmt.Sprintf("Dropped(%s)", o.Reason)
	case StatusDeferred:
		return fmt.Sprintf("Deferred(%s)", o.Key)
	case StatusEmitted:
		return fmt.Sprintf("Emitted(%d)", len(o.Events))
	default:
		return "Unknown"
	}
}
