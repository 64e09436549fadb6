package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gatewire/internal/ir"
)

func TestReadOutcomes_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadOutcomes(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPendingDeferrals_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.PendingDeferrals(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPendingDeferrals_OrderedByKeyThenArrival(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	userKey := ir.Key(ir.EntityUser, 5)
	channelKey := ir.Key(ir.EntityChannel, 20)
	saves := []DeferralRecord{
		{Session: "s", Seq: 4, Key: userKey, Notification: createTestNotification(4, 5)},
		{Session: "s", Seq: 2, Key: channelKey, Notification: createTestNotification(2, 6)},
		{Session: "s", Seq: 1, Key: userKey, Notification: createTestNotification(1, 5)},
	}
	for _, rec := range saves {
		require.NoError(t, s.SaveDeferral(ctx, rec))
	}

	got, err := s.PendingDeferrals(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// "channel" sorts before "user".
	assert.Equal(t, channelKey, got[0].Key)
	assert.Equal(t, userKey, got[1].Key)
	assert.Equal(t, int64(1), got[1].Seq)
	assert.Equal(t, int64(4), got[2].Seq)
}

func TestListSessions_FirstSeenOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, session := range []string{"b", "a", "b", "c"} {
		require.NoError(t, s.RecordOutcome(ctx, OutcomeRecord{
			Session: session, Seq: 1, Kind: ir.KindReactionAdd, Status: "emitted", Events: 2,
		}))
	}

	got, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, got)
}

func TestCountByStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, status := range []string{"emitted", "deferred", "emitted", "dropped"} {
		require.NoError(t, s.RecordOutcome(ctx, OutcomeRecord{
			Session: "s", Seq: int64(i + 1), Kind: ir.KindReactionAdd, Status: status,
		}))
	}

	got, err := s.CountByStatus(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"emitted": 2, "deferred": 1, "dropped": 1}, got)
}
