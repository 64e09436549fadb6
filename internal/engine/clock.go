package engine

import "sync/atomic"

// Clock is the shard's logical sequence clock.
//
// Notifications that arrive without a gateway sequence are stamped from it,
// and Observe folds gateway-supplied sequences back in so stamped values
// never collide with them. Ordering never depends on wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The shard's single-writer loop is normally the only caller.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume after the last journaled sequence.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Observe advances the clock to seq if seq is ahead of it. It never moves
// the clock backwards.
func (c *Clock) Observe(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur {
			return
		}
		if c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
