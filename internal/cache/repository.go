package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roach88/gatewire/internal/ir"
)

// AvailabilityFunc is called after an entity has been stored.
type AvailabilityFunc func(key ir.DeferralKey)

// Repository is the single access point for cached entities.
//
// Lookup order is fixed here so every caller resolves the same way:
//   - users: primary, then ghost
//   - channels: guild text, then private, then ghost private
//   - emotes: custom emote cache only
type Repository struct {
	mu              sync.RWMutex
	selfID          ir.Snowflake
	users           map[ir.Snowflake]ir.User
	textChannels    map[ir.Snowflake]ir.Channel
	privateChannels map[ir.Snowflake]ir.Channel
	emotes          map[ir.Snowflake]ir.Emote

	ghostUsers    *gocache.Cache
	ghostChannels *gocache.Cache

	subMu       sync.RWMutex
	subscribers []AvailabilityFunc
}

// NewRepository creates an empty repository. ghostTTL bounds how long ghost
// entries stay resolvable; zero keeps them until removed.
func NewRepository(selfID ir.Snowflake, ghostTTL time.Duration) *Repository {
	// cleanupInterval 0 disables the janitor goroutine; expired items are
	// invisible to Get and reclaimed by DeleteExpired.
	return &Repository{
		selfID:          selfID,
		users:           make(map[ir.Snowflake]ir.User),
		textChannels:    make(map[ir.Snowflake]ir.Channel),
		privateChannels: make(map[ir.Snowflake]ir.Channel),
		emotes:          make(map[ir.Snowflake]ir.Emote),
		ghostUsers:      gocache.New(ghostTTL, 0),
		ghostChannels:   gocache.New(ghostTTL, 0),
	}
}

// SelfID returns the id of the connected account.
func (r *Repository) SelfID() ir.Snowflake {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selfID
}

// SetSelfID records the connected account once the session is ready.
func (r *Repository) SetSelfID(id ir.Snowflake) {
	r.mu.Lock()
	r.selfID = id
	r.mu.Unlock()
}

// OnAvailable subscribes to entity availability. Subscribers run in
// registration order after the entity is visible to lookups.
func (r *Repository) OnAvailable(fn AvailabilityFunc) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Repository) notify(key ir.DeferralKey) {
	r.subMu.RLock()
	subs := make([]AvailabilityFunc, len(r.subscribers))
	copy(subs, r.subscribers)
	r.subMu.RUnlock()

	for _, fn := range subs {
		fn(key)
	}
}

// User looks up the primary user tier.
func (r *Repository) User(id ir.Snowflake) (ir.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// GhostUser looks up the ghost user tier.
func (r *Repository) GhostUser(id ir.Snowflake) (ir.User, bool) {
	v, ok := r.ghostUsers.Get(id.String())
	if !ok {
		return ir.User{}, false
	}
	return v.(ir.User), true
}

// Channel looks up a message channel across guild text, private and ghost
// private tiers, in that order.
func (r *Repository) Channel(id ir.Snowflake) (ir.Channel, bool) {
	r.mu.RLock()
	if c, ok := r.textChannels[id]; ok {
		r.mu.RUnlock()
		return c, true
	}
	if c, ok := r.privateChannels[id]; ok {
		r.mu.RUnlock()
		return c, true
	}
	r.mu.RUnlock()

	v, ok := r.ghostChannels.Get(id.String())
	if !ok {
		return ir.Channel{}, false
	}
	return v.(ir.Channel), true
}

// Emote looks up the custom emote cache.
func (r *Repository) Emote(id ir.Snowflake) (ir.Emote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.emotes[id]
	return e, ok
}

// PutUser stores a fully known user and announces it.
// A ghost entry for the same id is superseded and removed.
func (r *Repository) PutUser(u ir.User) {
	u.Fake = false
	r.mu.Lock()
	r.users[u.ID] = u
	r.mu.Unlock()
	r.ghostUsers.Delete(u.ID.String())

	r.notify(ir.Key(ir.EntityUser, u.ID))
}

// PutGhostUser stores a user known only indirectly and announces it.
func (r *Repository) PutGhostUser(u ir.User) {
	u.Fake = true
	r.ghostUsers.SetDefault(u.ID.String(), u)
	r.notify(ir.Key(ir.EntityUser, u.ID))
}

// PutChannel stores a guild channel and announces it.
func (r *Repository) PutChannel(c ir.Channel) {
	c.Fake = false
	r.mu.Lock()
	r.textChannels[c.ID] = c
	r.mu.Unlock()

	r.notify(ir.Key(ir.EntityChannel, c.ID))
}

// PutPrivateChannel stores a private (or group) channel and announces it.
func (r *Repository) PutPrivateChannel(c ir.Channel) {
	c.Fake = false
	r.mu.Lock()
	r.privateChannels[c.ID] = c
	r.mu.Unlock()
	r.ghostChannels.Delete(c.ID.String())

	r.notify(ir.Key(ir.EntityChannel, c.ID))
}

// PutGhostPrivateChannel stores a private channel known only indirectly.
func (r *Repository) PutGhostPrivateChannel(c ir.Channel) {
	c.Fake = true
	r.ghostChannels.SetDefault(c.ID.String(), c)
	r.notify(ir.Key(ir.EntityChannel, c.ID))
}

// PutEmote stores a custom emote and announces it.
func (r *Repository) PutEmote(e ir.Emote) {
	e.Fake = false
	r.mu.Lock()
	r.emotes[e.ID] = e
	r.mu.Unlock()

	r.notify(ir.Key(ir.EntityEmote, e.ID))
}

// RemoveUser drops a user from both tiers.
func (r *Repository) RemoveUser(id ir.Snowflake) {
	r.mu.Lock()
	delete(r.users, id)
	r.mu.Unlock()
	r.ghostUsers.Delete(id.String())
}

// RemoveChannel drops a channel from every tier.
func (r *Repository) RemoveChannel(id ir.Snowflake) {
	r.mu.Lock()
	delete(r.textChannels, id)
	delete(r.privateChannels, id)
	r.mu.Unlock()
	r.ghostChannels.Delete(id.String())
}

// RemoveEmote drops a custom emote.
func (r *Repository) RemoveEmote(id ir.Snowflake) {
	r.mu.Lock()
	delete(r.emotes, id)
	r.mu.Unlock()
}

// DeleteExpired frees ghost entries past their TTL and returns how many
// were removed.
func (r *Repository) DeleteExpired() int {
	before := r.ghostUsers.ItemCount() + r.ghostChannels.ItemCount()
	r.ghostUsers.DeleteExpired()
	r.ghostChannels.DeleteExpired()
	return before - r.ghostUsers.ItemCount() - r.ghostChannels.ItemCount()
}

// Counts reports the number of entries per tier. Expired ghost entries not
// yet reclaimed are included.
func (r *Repository) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"users":            len(r.users),
		"ghost_users":      r.ghostUsers.ItemCount(),
		"text_channels":    len(r.textChannels),
		"private_channels": len(r.privateChannels),
		"ghost_channels":   r.ghostChannels.ItemCount(),
		"emotes":           len(r.emotes),
	}
}
