package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/gatewire/internal/store"
)

// TraceResult is the journaled history of one session.
type TraceResult struct {
	Session  string                `json:"session"`
	Outcomes []store.OutcomeRecord `json:"outcomes"`
	Counts   map[string]int        `json:"counts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the outcomes journaled for a session",
		Long: `Show every outcome the router journaled for a session, in processing
order, with per-status totals. Replayed outcomes are marked.

Without --session the most recent session in the journal is shown.

Examples:
  gatewire trace --db ./journal.db
  gatewire trace --db ./journal.db --session 0190a5b2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show (default: most recent)")

	return cmd
}

func runTrace(ctx context.Context, opts *JournalOptions, cmd *cobra.Command) error {
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

	result := TraceResult{Session: session, Outcomes: []store.OutcomeRecord{}, Counts: map[string]int{}}
	if session != "" {
		if result.Outcomes, err = st.ReadOutcomes(ctx, session); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read outcomes", err)
		}
		if result.Counts, err = st.CountByStatus(ctx, session); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to count outcomes", err)
		}
	}

	if opts.Format == "json" {
		return formatter.SuccessFor(session, result)
	}

	w := formatter.Writer
	if len(result.Outcomes) == 0 {
		if session == "" {
			fmt.Fprintln(w, "Journal has no sessions.")
		} else {
			fmt.Fprintf(w, "No outcomes found for session: %s\n", session)
		}
		return nil
	}

	fmt.Fprintf(w, "Session %s\n\n", session)
	for _, rec := range result.Outcomes {
		fmt.Fprintf(w, "  seq=%-6d %-9s %s\n", rec.Seq, rec.Status, describeOutcome(rec))
	}

	statuses := make([]string, 0, len(result.Counts))
	for s := range result.Counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	fmt.Fprintln(w)
	for _, s := range statuses {
		fmt.Fprintf(w, "  %s: %d\n", s, result.Counts[s])
	}
	return nil
}

// describeOutcome renders the status-specific detail of a record.
func describeOutcome(rec store.OutcomeRecord) string {
	var detail string
	switch rec.Status {
	case "blocked":
		detail = "guild " + rec.GuildID.String()
	case "deferred":
		detail = "on " + rec.Key.String()
	case "dropped":
		detail = rec.Reason
		if !rec.Key.IsZero() {
			detail += " (" + rec.Key.String() + ")"
		}
	case "emitted":
		detail = fmt.Sprintf("%d events", rec.Events)
	}
	if rec.Replayed {
		detail += " [replay]"
	}
	return detail
}
