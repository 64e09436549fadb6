package testutil

import "sync"

// DeterministicClock stamps scenario notifications with reproducible
// sequence numbers.
//
// Scenario steps may pin a sequence explicitly; Observe folds those in so
// later stamped values stay ahead of them, mirroring the shard clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a new deterministic clock starting at 0.
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Observe advances the clock to seq if it is ahead.
func (c *DeterministicClock) Observe(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.seq {
		c.seq = seq
	}
}

// Stamp returns seq when it is set, otherwise the next sequence number.
func (c *DeterministicClock) Stamp(seq int64) int64 {
	if seq == 0 {
		return c.Next()
	}
	c.Observe(seq)
	return seq
}

// Reset resets the clock to 0 for test reuse.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
