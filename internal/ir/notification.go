package ir

import (
	"errors"
	"fmt"
)

// NotificationKind is the gateway dispatch type of a notification.
type NotificationKind string

const (
	KindReactionAdd    NotificationKind = "MESSAGE_REACTION_ADD"
	KindReactionRemove NotificationKind = "MESSAGE_REACTION_REMOVE"
)

// ErrMalformed marks a notification whose reference data cannot be used.
var ErrMalformed = errors.New("malformed notification")

// Action returns the reaction action carried by the kind.
func (k NotificationKind) Action() (Action, bool) {
	switch k {
	case KindReactionAdd:
		return ActionAdd, true
	case KindReactionRemove:
		return ActionRemove, true
	default:
		return "", false
	}
}

// IsRemoval reports whether the kind withdraws state rather than adding it.
// Removals referencing an unknown actor are dropped instead of deferred.
func (k NotificationKind) IsRemoval() bool {
	return k == KindReactionRemove
}

// EmojiRef is the reaction marker reference of a notification.
// ID is zero for unicode markers; Name is empty when the gateway omitted it.
type EmojiRef struct {
	ID       Snowflake `json:"id" yaml:"id" cbor:"1,keyasint,omitempty"`
	Name     string    `json:"name,omitempty" yaml:"name" cbor:"2,keyasint,omitempty"`
	Animated bool      `json:"animated,omitempty" yaml:"animated" cbor:"3,keyasint,omitempty"`
}

// IsCustom reports whether the marker references a custom emote.
func (e EmojiRef) IsCustom() bool {
	return !e.ID.IsZero()
}

// RawNotification is one decoded reaction notification.
//
// It is the minimal immutable payload kept by a pending deferral: replaying
// it through the router must give the same outcome as live processing.
type RawNotification struct {
	Kind      NotificationKind `json:"kind" yaml:"kind" cbor:"1,keyasint"`
	Seq       int64            `json:"seq" yaml:"seq" cbor:"2,keyasint"`
	GuildID   Snowflake        `json:"guild_id,omitempty" yaml:"guild_id" cbor:"3,keyasint,omitempty"`
	ChannelID Snowflake        `json:"channel_id" yaml:"channel_id" cbor:"4,keyasint"`
	MessageID Snowflake        `json:"message_id" yaml:"message_id" cbor:"5,keyasint"`
	UserID    Snowflake        `json:"user_id" yaml:"user_id" cbor:"6,keyasint"`
	Emoji     EmojiRef         `json:"emoji" yaml:"emoji" cbor:"7,keyasint"`
}

// HasGuild reports whether the notification is guild scoped.
func (n RawNotification) HasGuild() bool {
	return !n.GuildID.IsZero()
}

// Validate checks the reference fields. Every failure wraps ErrMalformed.
//
// A marker with neither id nor name is the malformed case the gateway is
// known to produce; missing user, channel or message ids are decode faults.
func (n RawNotification) Validate() error {
	if _, ok := n.Kind.Action(); !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, n.Kind)
	}
	if n.Emoji.ID.IsZero() && n.Emoji.Name == "" {
		return fmt.Errorf("%w: emoji has neither id nor name", ErrMalformed)
	}
	if n.UserID.IsZero() {
		return fmt.Errorf("%w: missing user_id", ErrMalformed)
	}
	if n.ChannelID.IsZero() {
		return fmt.Errorf("%w: missing channel_id", ErrMalformed)
	}
	if n.MessageID.IsZero() {
		return fmt.Errorf("%w: missing message_id", ErrMalformed)
	}
	return nil
}
