package harness

import (
	"sync"

	"github.com/roach88/gatewire/internal/engine"
	"github.com/roach88/gatewire/internal/ir"
	"github.com/roach88/gatewire/internal/store"
)

// TraceEvent is one delivered event as it appears in a trace.
type TraceEvent struct {
	Type  ir.EventType `json:"type"`
	Seq   int64        `json:"seq"`
	User  ir.Snowflake `json:"user"`
	Emote string       `json:"emote"`
	Self  bool         `json:"self,omitempty"`
}

func newTraceEvent(ev ir.Event) TraceEvent {
	te := TraceEvent{Type: ev.Type, Seq: ev.Seq, User: ev.User.ID}
	if ev.Reaction != nil {
		te.Emote = ev.Reaction.Emote.Name
		te.Self = ev.Reaction.Self
	}
	return te
}

// TraceStep records what one scenario step did. Events include replays the
// step triggered, not only the step's own emissions.
type TraceStep struct {
	Step    int          `json:"step"`
	Op      string       `json:"op"`
	Seq     int64        `json:"seq,omitempty"`
	Outcome string       `json:"outcome,omitempty"`
	Events  []TraceEvent `json:"events,omitempty"`
}

// JournalEntry is a journaled outcome in a trace.
type JournalEntry struct {
	Seq      int64  `json:"seq"`
	Status   string `json:"status"`
	Key      string `json:"key,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Events   int    `json:"events,omitempty"`
	Replayed bool   `json:"replayed,omitempty"`
}

func newJournalEntry(rec store.OutcomeRecord) JournalEntry {
	e := JournalEntry{
		Seq:      rec.Seq,
		Status:   rec.Status,
		Reason:   rec.Reason,
		Events:   rec.Events,
		Replayed: rec.Replayed,
	}
	if !rec.Key.IsZero() {
		e.Key = rec.Key.String()
	}
	return e
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	Session string `json:"session"`

	// Trace has one entry per step, in order.
	Trace []TraceStep `json:"trace"`

	// Journal is every outcome the router journaled, in write order.
	Journal []JournalEntry `json:"journal"`

	// Errors contains failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceStep{},
		Journal: []JournalEntry{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events flattens the events of every step.
func (r *Result) Events() []TraceEvent {
	var out []TraceEvent
	for _, step := range r.Trace {
		out = append(out, step.Events...)
	}
	return out
}

// eventRecorder collects delivered events for the trace.
type eventRecorder struct {
	mu     sync.Mutex
	events []ir.Event
}

var _ engine.Listener = (*eventRecorder)(nil)

func (r *eventRecorder) OnEvent(ev ir.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// since returns the events recorded after mark.
func (r *eventRecorder) since(mark int) []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mark >= len(r.events) {
		return nil
	}
	out := make([]TraceEvent, 0, len(r.events)-mark)
	for _, ev := range r.events[mark:] {
		out = append(out, newTraceEvent(ev))
	}
	return out
}

func (r *eventRecorder) mark() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
