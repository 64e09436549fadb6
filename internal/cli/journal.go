package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/gatewire/internal/store"
)

// JournalOptions holds the flags shared by commands that read a journal.
type JournalOptions struct {
	*RootOptions
	Database string
	Session  string
}

// openJournal opens an existing journal. store.Open would silently create
// a missing file, which is never what an inspection command wants.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}
	return store.Open(path)
}

// resolveSession returns the requested session, or the most recent one in
// the journal when none was requested. Empty means the journal has none.
func resolveSession(ctx context.Context, st *store.Store, session string) (string, error) {
	if session != "" {
		return session, nil
	}
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", nil
	}
	return sessions[len(sessions)-1], nil
}

func journalErrorCode(err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCodeNotFound
	}
	return ErrCodeStore
}
