package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gatewire/internal/store"
)

// PendingResult lists the replays still waiting in a session.
type PendingResult struct {
	Session string                 `json:"session"`
	Pending []store.DeferralRecord `json:"pending"`
	Keys    int                    `json:"keys"`
	Replays int                    `json:"replays"`
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List deferred notifications still waiting on a dependency",
		Long: `List the pending replays journaled for a session, grouped by the
dependency key they wait on.

Without --session the most recent session in the journal is shown.

Examples:
  gatewire pending --db ./journal.db
  gatewire pending --db ./journal.db --session 0190a5b2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show (default: most recent)")

	return cmd
}

func runPending(ctx context.Context, opts *JournalOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := openJournal(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, journalErrorCode(err), "failed to open database", err)
	}
	defer st.Close()

	session, err := resolveSession(ctx, st, opts.Session)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
	}

	result := PendingResult{Session: session, Pending: []store.DeferralRecord{}}
	if session != "" {
		if result.Pending, err = st.PendingDeferrals(ctx, session); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read pending deferrals", err)
		}
	}
	result.Replays = len(result.Pending)

	// Rows arrive ordered by key, so a key change starts a new group.
	var groups [][]store.DeferralRecord
	for i, rec := range result.Pending {
		if i == 0 || rec.Key != result.Pending[i-1].Key {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], rec)
	}
	result.Keys = len(groups)

	if opts.Format == "json" {
		return formatter.SuccessFor(session, result)
	}

	w := formatter.Writer
	if result.Replays == 0 {
		fmt.Fprintln(w, "No pending deferrals.")
		return nil
	}
	fmt.Fprintf(w, "Session %s: %d pending across %d keys\n", session, result.Replays, result.Keys)
	for _, group := range groups {
		fmt.Fprintf(w, "\n  %s\n", group[0].Key)
		for _, rec := range group {
			n := rec.Notification
			fmt.Fprintf(w, "    seq=%d %s channel=%s message=%s user=%s\n",
				rec.Seq, n.Kind, n.ChannelID, n.MessageID, n.UserID)
		}
	}
	return nil
}
