package ir

import "golang.org/x/text/unicode/norm"

// UnknownCount is the Count of a reaction built from a gateway notification;
// the notification does not carry the aggregate count.
const UnknownCount = -1

// ReactionEmote is the marker of a resolved reaction: either a custom emote
// or a unicode marker identified by name alone.
//
// Transient marks a stand-in synthesized for an uncached custom emote. It
// lives only as long as the event that carries it and is never cached.
type ReactionEmote struct {
	ID        Snowflake `json:"id,omitempty"`
	Name      string    `json:"name"`
	Animated  bool      `json:"animated,omitempty"`
	Custom    bool      `json:"custom"`
	Transient bool      `json:"transient,omitempty"`
}

// CustomReactionEmote wraps a custom emote.
func CustomReactionEmote(e Emote, transient bool) ReactionEmote {
	return ReactionEmote{
		ID:        e.ID,
		Name:      e.Name,
		Animated:  e.Animated,
		Custom:    true,
		Transient: transient,
	}
}

// UnicodeReactionEmote builds a name-only marker. The name is NFC
// normalized so composed and decomposed forms of one marker compare equal.
func UnicodeReactionEmote(name string) ReactionEmote {
	return ReactionEmote{Name: norm.NFC.String(name)}
}

// Reaction is a fully resolved reaction value. It is constructed only after
// every dependency resolved and is shared, never copied, by the events
// emitted for one notification.
type Reaction struct {
	Channel   Channel       `json:"channel"`
	Emote     ReactionEmote `json:"emote"`
	MessageID Snowflake     `json:"message_id"`
	Self      bool          `json:"self"`
	Count     int           `json:"count"`
}
