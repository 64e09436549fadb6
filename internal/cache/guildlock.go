package cache

import (
	"sync"

	"github.com/roach88/gatewire/internal/ir"
)

// LockState is the bring-up state of one guild.
type LockState int

const (
	// Unlocked: the guild's entity graph is complete and safe to expose.
	// Guilds without an entry are Unlocked.
	Unlocked LockState = iota
	// Locked: bring-up in progress; guild-scoped notifications are blocked.
	Locked
)

// String returns the state name.
func (s LockState) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// UnlockFunc is called after a guild finished its bring-up.
type UnlockFunc func(guildID ir.Snowflake)

// GuildLocks is the guild lock table.
//
// Each bring-up cycle is Lock → Unlock. There is no transition back to
// Locked inside a cycle: Lock on a locked guild is a no-op, and a new cycle
// only starts after the previous one unlocked.
type GuildLocks struct {
	mu     sync.RWMutex
	states map[ir.Snowflake]LockState

	subMu       sync.RWMutex
	subscribers []UnlockFunc
}

// NewGuildLocks creates an empty table; every guild starts Unlocked.
func NewGuildLocks() *GuildLocks {
	return &GuildLocks{states: make(map[ir.Snowflake]LockState)}
}

// IsLocked reports whether guild-scoped notifications for the guild must be
// held back.
func (g *GuildLocks) IsLocked(guildID ir.Snowflake) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.states[guildID] == Locked
}

// state returns the guild's current state.
func (g *GuildLocks) state(guildID ir.Snowflake) LockState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.states[guildID]
}

// Lock starts a bring-up cycle. Returns false if one is already running.
func (g *GuildLocks) Lock(guildID ir.Snowflake) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.states[guildID] == Locked {
		return false
	}
	g.states[guildID] = Locked
	return true
}

// Unlock ends the running bring-up cycle and notifies subscribers.
// Returns false if the guild was not locked.
func (g *GuildLocks) Unlock(guildID ir.Snowflake) bool {
	g.mu.Lock()
	if g.states[guildID] != Locked {
		g.mu.Unlock()
		return false
	}
	// Unlocked is the absent state; drop the entry so the table only
	// holds guilds mid bring-up.
	delete(g.states, guildID)
	g.mu.Unlock()

	g.subMu.RLock()
	subs := make([]UnlockFunc, len(g.subscribers))
	copy(subs, g.subscribers)
	g.subMu.RUnlock()

	for _, fn := range subs {
		fn(guildID)
	}
	return true
}

// OnUnlock subscribes to Locked → Unlocked transitions.
func (g *GuildLocks) OnUnlock(fn UnlockFunc) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	g.subscribers = append(g.subscribers, fn)
}

// LockedCount returns the number of guilds currently in bring-up.
func (g *GuildLocks) LockedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.states)
}
