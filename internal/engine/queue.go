package engine

import (
	"context"
	"sync"

	"github.com/roach88/gatewire/internal/ir"
)

// shardEventType distinguishes the work items of the shard loop.
type shardEventType int

const (
	// shardEventNotification is a raw notification to route.
	shardEventNotification shardEventType = iota + 1
	// shardEventEntityAvailable replays deferrals waiting on a key.
	shardEventEntityAvailable
	// shardEventGuildUnlocked ends a guild bring-up cycle.
	shardEventGuildUnlocked
	// shardEventApply runs a cache mutation on the shard's context.
	shardEventApply
)

func (t shardEventType) String() string {
	switch t {
	case shardEventNotification:
		return "notification"
	case shardEventEntityAvailable:
		return "entity_available"
	case shardEventGuildUnlocked:
		return "guild_unlocked"
	case shardEventApply:
		return "apply"
	default:
		return "unknown"
	}
}

// shardEvent is one unit of work for the shard loop.
type shardEvent struct {
	Type         shardEventType
	Notification ir.RawNotification
	Key          ir.DeferralKey
	GuildID      ir.Snowflake
	Apply        func(ctx context.Context)
}

// eventQueue is a thread-safe FIFO queue for shard events.
//
// The queue is unbounded so gateway readers never block on a slow shard.
// Enqueue may be called from any goroutine; only the shard's Run loop
// dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []shardEvent
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]shardEvent, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e shardEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (shardEvent{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (shardEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return shardEvent{}, false
	}

	e := q.events[0]

	// Clear the slot so the backing array does not retain the closure.
	q.events[0] = shardEvent{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
