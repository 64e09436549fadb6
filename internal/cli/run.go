package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/gatewire/internal/engine"
	"github.com/roach88/gatewire/internal/harness"
	"github.com/roach88/gatewire/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Metrics  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario through a shard",
		Long: `Run a scenario file through a fresh shard and print its trace.

Outcomes are journaled into an in-memory database unless --db is given,
in which case they are appended to that file and can be inspected later
with trace and pending.

Exit codes:
  0 - Every expectation and assertion held
  1 - The scenario failed
  2 - Command error (unreadable scenario, database error, etc.)

Example:
  gatewire run ./scenarios/deferred_user_replay.yaml
  gatewire run --db ./journal.db ./scenarios/guild_lock.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default: in-memory)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics after the run")

	return cmd
}

func runScenarioFile(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenario not found: %s", path), nil)
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), "failed to load scenario", err)
	}

	runOpts := opts.harnessOptions()
	database := opts.Database
	if database == "" && opts.Config != nil {
		database = opts.Config.Database
	}
	if database != "" {
		st, err := store.Open(database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithStore(st))
		formatter.VerboseLog("Journaling to %s", database)
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		runOpts = append(runOpts, harness.WithMetrics(engine.NewMetrics(reg)))
	}

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRunFailed, "scenario run failed", err)
	}

	// Metrics go to stderr in JSON mode so stdout stays one document.
	metricsOut := formatter.Writer
	if opts.Format == "json" {
		if err := formatter.SuccessFor(result.Session, result); err != nil {
			return err
		}
		metricsOut = formatter.GetErrWriter()
	} else {
		printResult(formatter.Writer, scenario.Name, result)
	}
	if reg != nil {
		if err := writeMetrics(metricsOut, reg); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write metrics", err)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", scenario.Name, len(result.Errors)))
	}
	return nil
}

// harnessOptions maps the loaded config onto harness options.
func (o *RootOptions) harnessOptions() []harness.Option {
	if o.Config == nil {
		return nil
	}
	return []harness.Option{harness.WithConfig(*o.Config)}
}

// printResult renders a run as one line per step.
func printResult(w io.Writer, name string, result *harness.Result) {
	mark := "✓"
	if !result.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (session %s)\n", mark, name, result.Session)

	for _, step := range result.Trace {
		line := fmt.Sprintf("  [%d] %s", step.Step, step.Op)
		if step.Outcome != "" {
			line += fmt.Sprintf(" seq=%d -> %s", step.Seq, step.Outcome)
		}
		fmt.Fprintln(w, line)
		for _, ev := range step.Events {
			fmt.Fprintf(w, "        %s seq=%d user=%s emote=%s\n", ev.Type, ev.Seq, ev.User, ev.Emote)
		}
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// writeMetrics renders every gathered family in the Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// loadErrorCode tells schema mismatches apart from other load failures.
func loadErrorCode(err error) string {
	var schemaErr *harness.SchemaError
	if errors.As(err, &schemaErr) {
		return ErrCodeSchema
	}
	return ErrCodeLoadFailed
}
