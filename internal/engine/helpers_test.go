package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/roach88/gatewire/internal/cache"
	"github.com/roach88/gatewire/internal/ir"
	"github.com/roach88/gatewire/internal/store"
)

const (
	testSelf    ir.Snowflake = 1
	testGuild   ir.Snowflake = 100
	testText    ir.Snowflake = 200
	testPrivate ir.Snowflake = 201
	testMessage ir.Snowflake = 300
	testUser    ir.Snowflake = 400
	testEmote   ir.Snowflake = 500
)

// recorder collects delivered events.
type recorder struct {
	mu     sync.Mutex
	events []ir.Event
}

func (r *recorder) OnEvent(ev ir.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Event(nil), r.events...)
}

func (r *recorder) Types() []ir.EventType {
	var types []ir.EventType
	for _, ev := range r.Events() {
		types = append(types, ev.Type)
	}
	return types
}

func (r *recorder) Seqs() []int64 {
	var seqs []int64
	for _, ev := range r.Events() {
		seqs = append(seqs, ev.Seq)
	}
	return seqs
}

// fixture is a shard with an empty repository and an attached recorder.
type fixture struct {
	shard *Shard
	repo  *cache.Repository
	locks *cache.GuildLocks
	rec   *recorder
}

func newFixture(t *testing.T, opts ...ShardOption) *fixture {
	t.Helper()
	f := &fixture{
		repo:  cache.NewRepository(testSelf, 0),
		locks: cache.NewGuildLocks(),
		rec:   &recorder{},
	}
	opts = append([]ShardOption{
		WithSessionGenerator(NewFixedGenerator("test-session")),
		WithSweepInterval(0),
		WithListener(f.rec),
	}, opts...)
	f.shard = NewShard(f.repo, f.locks, opts...)
	return f
}

// seed populates the user, the guild text channel and the custom emote.
func (f *fixture) seed() *fixture {
	f.repo.PutUser(ir.User{ID: testUser, Name: "ada"})
	f.repo.PutChannel(ir.Channel{ID: testText, Kind: ir.ChannelText, GuildID: testGuild, Name: "general"})
	f.repo.PutEmote(ir.Emote{ID: testEmote, GuildID: testGuild, Name: "blob"})
	return f
}

func (f *fixture) dispatch(n ir.RawNotification) Outcome {
	return f.shard.Dispatch(context.Background(), n)
}

// put runs a repository mutation as the shard's writer.
func (f *fixture) put(fn func(repo *cache.Repository)) {
	f.shard.Apply(context.Background(), func(context.Context) { fn(f.repo) })
}

func guildAdd(seq int64, emoji ir.EmojiRef) ir.RawNotification {
	return ir.RawNotification{
		Kind:      ir.KindReactionAdd,
		Seq:       seq,
		GuildID:   testGuild,
		ChannelID: testText,
		MessageID: testMessage,
		UserID:    testUser,
		Emoji:     emoji,
	}
}

func guildRemove(seq int64, emoji ir.EmojiRef) ir.RawNotification {
	n := guildAdd(seq, emoji)
	n.Kind = ir.KindReactionRemove
	return n
}

func privateAdd(seq int64, emoji ir.EmojiRef) ir.RawNotification {
	return ir.RawNotification{
		Kind:      ir.KindReactionAdd,
		Seq:       seq,
		ChannelID: testPrivate,
		MessageID: testMessage,
		UserID:    testUser,
		Emoji:     emoji,
	}
}

func fire() ir.EmojiRef {
	return ir.EmojiRef{Name: "🔥"}
}

// memJournal is an in-memory Journal that can be told to fail.
type memJournal struct {
	mu       sync.Mutex
	outcomes []string
	pending  int
	fail     error
}

func (j *memJournal) RecordOutcome(_ context.Context, rec store.OutcomeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.outcomes = append(j.outcomes, rec.Status)
	return nil
}

func (j *memJournal) SaveDeferral(context.Context, store.DeferralRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.pending++
	return nil
}

func (j *memJournal) DeleteDeferral(context.Context, string, int64, ir.DeferralKey) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return false, j.fail
	}
	j.pending--
	return true, nil
}
