package harness

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/gatewire/internal/engine"
	"github.com/roach88/gatewire/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type or expect field
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// AssertionContext provides the end-of-run state assertions inspect.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Session string
	Pending *engine.DeferralQueue
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEvents:
			err = assertEvents(result.Events(), assertion)
		case AssertPending:
			if actx == nil || actx.Pending == nil {
				err = fmt.Errorf("assertion[%d]: pending requires the deferral queue", i)
			} else {
				err = assertPending(actx, assertion)
			}
		case AssertOutcomes:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: outcomes requires the journal", i)
			} else {
				err = assertOutcomes(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertEvents checks the ordered types and/or count of delivered events.
func assertEvents(events []TraceEvent, a Assertion) error {
	if a.Count != nil && len(events) != *a.Count {
		return &AssertionError{
			Type:     AssertEvents,
			Expected: fmt.Sprintf("%d events", *a.Count),
			Actual:   fmt.Sprintf("%d events", len(events)),
		}
	}
	if a.Types == nil {
		return nil
	}

	got := make([]string, len(events))
	for i, ev := range events {
		got[i] = string(ev.Type)
	}
	if !slices.Equal(a.Types, got) {
		return &AssertionError{
			Type:     AssertEvents,
			Expected: fmt.Sprintf("%v", a.Types),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertPending checks the deferrals still waiting. The journal must agree
// with the in-memory queue.
func assertPending(actx *AssertionContext, a Assertion) error {
	pending := actx.Pending.Len()

	if actx.Store != nil {
		rows, err := actx.Store.PendingDeferrals(actx.Ctx, actx.Session)
		if err != nil {
			return fmt.Errorf("read pending deferrals: %w", err)
		}
		if len(rows) != pending {
			return &AssertionError{
				Type:     AssertPending,
				Expected: fmt.Sprintf("%d journaled pending replays", pending),
				Actual:   fmt.Sprintf("%d", len(rows)),
			}
		}
	}

	if a.Count != nil && pending != *a.Count {
		return &AssertionError{
			Type:     AssertPending,
			Expected: fmt.Sprintf("%d pending", *a.Count),
			Actual:   fmt.Sprintf("%d pending", pending),
		}
	}

	if a.Keys != nil {
		keys := actx.Pending.Keys()
		got := make([]string, len(keys))
		for i, k := range keys {
			got[i] = k.String()
		}
		want := append([]string(nil), a.Keys...)
		sort.Strings(want)
		sort.Strings(got)
		if !slices.Equal(want, got) {
			return &AssertionError{
				Type:     AssertPending,
				Expected: fmt.Sprintf("keys %v", want),
				Actual:   fmt.Sprintf("keys %v", got),
			}
		}
	}
	return nil
}

// assertOutcomes checks journaled outcome counts per status.
func assertOutcomes(actx *AssertionContext, a Assertion) error {
	counts, err := actx.Store.CountByStatus(actx.Ctx, actx.Session)
	if err != nil {
		return fmt.Errorf("count outcomes: %w", err)
	}

	if a.Count != nil {
		total := 0
		for _, n := range counts {
			total += n
		}
		if total != *a.Count {
			return &AssertionError{
				Type:     AssertOutcomes,
				Expected: fmt.Sprintf("%d outcomes", *a.Count),
				Actual:   fmt.Sprintf("%d outcomes", total),
			}
		}
	}

	statuses := make([]string, 0, len(a.Statuses))
	for s := range a.Statuses {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	var mismatches []string
	for _, s := range statuses {
		if counts[s] != a.Statuses[s] {
			mismatches = append(mismatches, fmt.Sprintf("%s=%d (want %d)", s, counts[s], a.Statuses[s]))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertOutcomes,
			Expected: formatCounts(a.Statuses),
			Actual:   strings.Join(mismatches, ", "),
		}
	}
	return nil
}

// formatCounts renders a status map with sorted keys.
func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}
