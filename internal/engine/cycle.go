package engine

import (
	"sync"

	"github.com/roach88/gatewire/internal/ir"
)

// ReplayGuard tracks the keys each deferral chain has been deferred under.
// A chain is one delivery of a notification followed through its replays.
//
// A replay that defers again under a key its chain already waited on means the availability signal did not make the entity
// resolvable. Re-queuing it would let one notification ping-pong between
// the queue and the router, so the router drops it instead.
//
// Only replays are checked. Live handling of the same payload twice before
// its dependency arrives must still accumulate queue entries.
//
// History for a chain is cleared when its replay stops deferring or its
// pending replay is evicted.
type ReplayGuard struct {
	mu      sync.Mutex
	history map[uint64]map[ir.DeferralKey]bool
}

// NewReplayGuard creates an empty guard.
func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{
		history: make(map[uint64]map[ir.DeferralKey]bool),
	}
}

// WouldCycle reports whether chain was already deferred under key.
func (g *ReplayGuard) WouldCycle(chain uint64, key ir.DeferralKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.history[chain] == nil {
		return false
	}
	return g.history[chain][key]
}

// Record marks that chain was deferred under key.
func (g *ReplayGuard) Record(chain uint64, key ir.DeferralKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.history[chain] == nil {
		g.history[chain] = make(map[ir.DeferralKey]bool)
	}
	g.history[chain][key] = true
}

// Clear removes all history for chain.
func (g *ReplayGuard) Clear(chain uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.history, chain)
}

// historySize returns the number of chains with tracked history.
func (g *ReplayGuard) historySize() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.history)
}

// keysFor returns the number of keys tracked for chain.
func (g *ReplayGuard) keysFor(chain uint64) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.history[chain])
}
