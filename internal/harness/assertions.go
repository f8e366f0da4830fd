package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/cadence/internal/trace"
)

// defaultTolerance applies to float assertions without an explicit one.
const defaultTolerance = 1e-9

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []trace.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event)
		}
	}

	return buf.String()
}

// assertTraceOrder checks that marks appear in the given order, comparing
// first occurrences. Intervening events are allowed.
func assertTraceOrder(events []trace.Event, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range events {
		if e.Kind != trace.KindMark {
			continue
		}
		if _, seen := positions[e.Label]; !seen {
			positions[e.Label] = i + 1 // 1-indexed for readability
		}
	}

	for _, mark := range a.Marks {
		if positions[mark] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all marks present: %v", a.Marks),
				Actual:   fmt.Sprintf("missing mark: %s", mark),
				Trace:    events,
			}
		}
	}

	for i := 1; i < len(a.Marks); i++ {
		prev, curr := a.Marks[i-1], a.Marks[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("marks in order: %v", a.Marks),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: events,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of events of a kind and label.
func assertTraceCount(events []trace.Event, a Assertion) error {
	kind := trace.Kind(a.Kind)
	if kind == "" {
		kind = trace.KindMark
	}

	count := trace.Count(events, kind, a.Label)
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events labelled %q", *a.Count, kind, a.Label),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    events,
		}
	}
	return nil
}

func assertCounter(result *Result, a Assertion) error {
	got := result.Counters[a.Counter]
	if got != *a.Value {
		return &AssertionError{
			Type:     AssertCounter,
			Expected: fmt.Sprintf("counter %s = %d", a.Counter, *a.Value),
			Actual:   fmt.Sprintf("counter %s = %d", a.Counter, got),
		}
	}
	return nil
}

func assertDrained(result *Result, a Assertion) error {
	if result.Drained != *a.Expect {
		return &AssertionError{
			Type:     AssertDrained,
			Expected: fmt.Sprintf("drained = %t", *a.Expect),
			Actual:   fmt.Sprintf("drained = %t", result.Drained),
		}
	}
	return nil
}

func assertElapsed(result *Result, a Assertion) error {
	if !within(result.Elapsed, *a.Seconds, a.Tolerance) {
		return &AssertionError{
			Type:     AssertElapsed,
			Expected: fmt.Sprintf("elapsed %v ± %v", *a.Seconds, tolerance(a.Tolerance)),
			Actual:   fmt.Sprintf("elapsed %v", result.Elapsed),
		}
	}
	return nil
}

func assertTicks(result *Result, a Assertion) error {
	if result.Ticks != int64(*a.Count) {
		return &AssertionError{
			Type:     AssertTicks,
			Expected: fmt.Sprintf("%d ticks", *a.Count),
			Actual:   fmt.Sprintf("%d ticks", result.Ticks),
		}
	}
	return nil
}

func assertProgress(result *Result, a Assertion) error {
	got, ok := result.Progress[a.Label]
	if !ok {
		return &AssertionError{
			Type:     AssertProgress,
			Expected: fmt.Sprintf("progress of %s", a.Label),
			Actual:   "duration never ran",
			Trace:    result.Trace,
		}
	}
	if !within(got, *a.Progress, a.Tolerance) {
		return &AssertionError{
			Type:     AssertProgress,
			Expected: fmt.Sprintf("progress of %s = %v ± %v", a.Label, *a.Progress, tolerance(a.Tolerance)),
			Actual:   fmt.Sprintf("progress of %s = %v", a.Label, got),
		}
	}
	return nil
}

func assertError(result *Result, a Assertion) error {
	if result.RunError == "" {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("run error containing %q", a.Contains),
			Actual:   "run completed without error",
		}
	}
	if !strings.Contains(result.RunError, a.Contains) {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("run error containing %q", a.Contains),
			Actual:   result.RunError,
		}
	}
	return nil
}

func tolerance(t float64) float64 {
	if t == 0 {
		return defaultTolerance
	}
	return t
}

func within(got, want, tol float64) bool {
	return math.Abs(got-want) <= tolerance(tol)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, a := range assertions {
		if err := validateAssertion(i, a); err != nil {
			errs = append(errs, err.Error())
			continue
		}

		var err error
		switch a.Type {
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertCounter:
			err = assertCounter(result, a)
		case AssertDrained:
			err = assertDrained(result, a)
		case AssertElapsed:
			err = assertElapsed(result, a)
		case AssertTicks:
			err = assertTicks(result, a)
		case AssertProgress:
			err = assertProgress(result, a)
		case AssertError:
			err = assertError(result, a)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
