package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gatewire/internal/engine"
	"github.com/roach88/gatewire/internal/ir"
	"github.com/roach88/gatewire/internal/store"
)

func intPtr(n int) *int { return &n }

func resultWithEvents(types ...ir.EventType) *Result {
	r := NewResult()
	step := TraceStep{Op: OpNotify}
	for _, typ := range types {
		step.Events = append(step.Events, TraceEvent{Type: typ, Seq: 1})
	}
	r.Trace = append(r.Trace, step)
	return r
}

func TestAssertEvents(t *testing.T) {
	r := resultWithEvents(ir.EventGuildReactionAdd, ir.EventReactionAdd)

	tests := []struct {
		name string
		a    Assertion
		pass bool
	}{
		{"types match", Assertion{Type: AssertEvents, Types: []string{"GUILD_MESSAGE_REACTION_ADD", "MESSAGE_REACTION_ADD"}}, true},
		{"order matters", Assertion{Type: AssertEvents, Types: []string{"MESSAGE_REACTION_ADD", "GUILD_MESSAGE_REACTION_ADD"}}, false},
		{"count match", Assertion{Type: AssertEvents, Count: intPtr(2)}, true},
		{"count mismatch", Assertion{Type: AssertEvents, Count: intPtr(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(r, []Assertion{tt.a}, nil)
			if tt.pass {
				assert.Empty(t, errs)
			} else {
				assert.Len(t, errs, 1)
			}
		})
	}
}

func TestAssertEvents_NoEvents(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertEvents, Types: []string{}}}, nil)
	assert.Empty(t, errs)
}

func TestAssertPending(t *testing.T) {
	ctx := context.Background()
	q := engine.NewDeferralQueue()
	n := ir.RawNotification{Kind: ir.KindReactionAdd, Seq: 1, ChannelID: 2, MessageID: 3, UserID: 4, Emoji: ir.EmojiRef{Name: "x"}}
	require.NoError(t, q.Register(ctx, ir.Key(ir.EntityUser, 4), n, 0, nil))
	require.NoError(t, q.Register(ctx, ir.Key(ir.EntityChannel, 2), n, 0, nil))

	actx := &AssertionContext{Ctx: ctx, Pending: q}

	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertPending, Count: intPtr(2)},
		{Type: AssertPending, Keys: []string{"user:4", "channel:2"}},
	}, actx)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertPending, Keys: []string{"user:4"}},
	}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "keys [channel:2 user:4]")
}

func TestAssertPending_JournalDisagrees(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	q := engine.NewDeferralQueue()
	n := ir.RawNotification{Kind: ir.KindReactionAdd, Seq: 1, ChannelID: 2, MessageID: 3, UserID: 4, Emoji: ir.EmojiRef{Name: "x"}}
	require.NoError(t, q.Register(ctx, ir.Key(ir.EntityUser, 4), n, 0, nil))

	actx := &AssertionContext{Ctx: ctx, Store: st, Session: "s", Pending: q}
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertPending, Count: intPtr(1)}}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "journaled pending replays")
}

func TestAssertOutcomes(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	for _, status := range []string{"deferred", "emitted", "emitted"} {
		require.NoError(t, st.RecordOutcome(ctx, store.OutcomeRecord{
			Session: "s",
			Seq:     1,
			Kind:    ir.KindReactionAdd,
			Status:  status,
		}))
	}
	actx := &AssertionContext{Ctx: ctx, Store: st, Session: "s"}

	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertOutcomes, Count: intPtr(3), Statuses: map[string]int{"emitted": 2, "dropped": 0}},
	}, actx)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertOutcomes, Statuses: map[string]int{"emitted": 1, "deferred": 2}},
	}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "deferred=1 (want 2), emitted=2 (want 1)")
}

func TestEvaluateAssertions_MissingContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertPending, Count: intPtr(0)},
		{Type: AssertOutcomes, Count: intPtr(0)},
		{Type: "final_state"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "pending requires the deferral queue")
	assert.Contains(t, errs[1], "outcomes requires the journal")
	assert.Contains(t, errs[2], `unknown assertion type "final_state"`)
}

func TestAssertionError_Error(t *testing.T) {
	err := &AssertionError{Type: "events", Expected: "2 events", Actual: "0 events"}
	assert.Equal(t, "assertion failed: events: expected 2 events, got 0 events", err.Error())
}
