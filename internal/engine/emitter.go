package engine

import (
	"log/slog"
	"sync"

	"github.com/roach88/gatewire/internal/ir"
)

// Listener receives domain events.
type Listener interface {
	OnEvent(ev ir.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev ir.Event)

// OnEvent calls f(ev).
func (f ListenerFunc) OnEvent(ev ir.Event) {
	f(ev)
}

// Emitter fans events out to listeners in registration order.
//
// A panicking listener is logged and counted; the remaining listeners
// still receive the event.
type Emitter struct {
	mu        sync.RWMutex
	listeners []Listener
	metrics   *Metrics
}

// NewEmitter creates an emitter. metrics may be nil.
func NewEmitter(metrics *Metrics) *Emitter {
	return &Emitter{metrics: metrics}
}

// Register appends a listener.
func (e *Emitter) Register(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Len returns the number of registered listeners.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

// Deliver hands ev to every listener synchronously and returns the number
// of listeners that panicked.
//
// The listener slice is snapshotted first so a listener may register
// another listener without deadlocking; the new one sees the next event.
func (e *Emitter) Deliver(ev ir.Event) (faults int) {
	e.mu.RLock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for i, l := range listeners {
		if !e.invoke(i, l, ev) {
			faults++
		}
	}
	return faults
}

// invoke calls one listener, reporting false if it panicked.
func (e *Emitter) invoke(index int, l Listener, ev ir.Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			e.metrics.ListenerFault()
			slog.Error("listener panicked",
				"event_type", ev.Type,
				"seq", ev.Seq,
				"listener", index,
				"panic", r,
			)
		}
	}()
	l.OnEvent(ev)
	return true
}
