package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/gatewire/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestNotification creates a guild reaction-add notification.
func createTestNotification(seq int64, user ir.Snowflake) ir.RawNotification {
	return ir.RawNotification{
		Kind:      ir.KindReactionAdd,
		Seq:       seq,
		GuildID:   10,
		ChannelID: 20,
		MessageID: 30,
		UserID:    user,
		Emoji:     ir.EmojiRef{ID: 40, Name: "blob", Animated: true},
	}
}
