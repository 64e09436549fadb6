package engine

import (
	"fmt"

	"github.com/roach88/gatewire/internal/ir"
)

// Lookup is the read side of the entity repository.
// Implemented by *cache.Repository.
type Lookup interface {
	SelfID() ir.Snowflake
	User(id ir.Snowflake) (ir.User, bool)
	GhostUser(id ir.Snowflake) (ir.User, bool)
	Channel(id ir.Snowflake) (ir.Channel, bool)
	Emote(id ir.Snowflake) (ir.Emote, bool)
}

// Resolver turns notification references into cached entities.
//
// It is a pure function of cache state: it never blocks, never mutates a
// cache and never caches what it synthesizes.
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a resolver over a repository.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// User resolves the reacting user: primary cache, then ghost cache.
func (r *Resolver) User(id ir.Snowflake) (ir.User, error) {
	if u, ok := r.lookup.User(id); ok {
		return u, nil
	}
	if u, ok := r.lookup.GhostUser(id); ok {
		return u, nil
	}
	return ir.User{}, &MissingEntityError{Key: ir.Key(ir.EntityUser, id)}
}

// Channel resolves the channel: guild text, private, then ghost private.
func (r *Resolver) Channel(id ir.Snowflake) (ir.Channel, error) {
	if c, ok := r.lookup.Channel(id); ok {
		return c, nil
	}
	return ir.Channel{}, &MissingEntityError{Key: ir.Key(ir.EntityChannel, id)}
}

// Emote resolves the reaction marker.
//
// A cached custom emote wins. An uncached custom emote that carries a name
// becomes a transient stand-in; without a name it is ErrUnnamedEmote. A
// marker without id is a unicode marker and always resolves.
func (r *Resolver) Emote(ref ir.EmojiRef) (ir.ReactionEmote, error) {
	if !ref.IsCustom() {
		if ref.Name == "" {
			return ir.ReactionEmote{}, fmt.Errorf("%w: emoji has neither id nor name", ir.ErrMalformed)
		}
		return ir.UnicodeReactionEmote(ref.Name), nil
	}

	if e, ok := r.lookup.Emote(ref.ID); ok {
		return ir.CustomReactionEmote(e, false), nil
	}
	if ref.Name == "" {
		return ir.ReactionEmote{}, ErrUnnamedEmote
	}

	stand := ir.Emote{ID: ref.ID, Name: ref.Name, Animated: ref.Animated, Fake: true}
	return ir.CustomReactionEmote(stand, true), nil
}

// IsSelf reports whether id is the connected account.
func (r *Resolver) IsSelf(id ir.Snowflake) bool {
	self := r.lookup.SelfID()
	return !self.IsZero() && self == id
}
