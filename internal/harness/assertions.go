package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		if event.Outcome == OutcomeError {
			fmt.Fprintf(&buf, "  [%d] %s error %s\n", i+1, event.Step, event.ErrorKind)
			continue
		}
		fmt.Fprintf(&buf, "  [%d] %s ok\n", i+1, event.Step)
	}

	return buf.String()
}

// assertStepOutcome checks that the named step finished with the given outcome.
func assertStepOutcome(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Step != assertion.Step {
			continue
		}
		if event.Outcome == assertion.Outcome {
			return nil
		}
		return &AssertionError{
			Type:     AssertStepOutcome,
			Expected: fmt.Sprintf("step %s to finish %s", assertion.Step, assertion.Outcome),
			Actual:   fmt.Sprintf("finished %s", event.Outcome),
			Trace:    trace,
		}
	}

	return &AssertionError{
		Type:     AssertStepOutcome,
		Expected: fmt.Sprintf("step %s to finish %s", assertion.Step, assertion.Outcome),
		Actual:   "step not found in trace",
		Trace:    trace,
	}
}

// assertOutcomeCount checks that exactly Count steps finished with Outcome.
func assertOutcomeCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Outcome == assertion.Outcome {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d steps with outcome %s", assertion.Count, assertion.Outcome),
			Actual:   fmt.Sprintf("%d steps", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertSameFingerprint checks that every listed step succeeded and
// compiled to the same output.
func assertSameFingerprint(trace []TraceEvent, assertion Assertion) error {
	var want, first string
	for _, name := range assertion.Steps {
		event, ok := findEvent(trace, name)
		if !ok {
			return &AssertionError{
				Type:     AssertSameFingerprint,
				Expected: fmt.Sprintf("step %s in trace", name),
				Actual:   "step not found in trace",
				Trace:    trace,
			}
		}
		if event.Outcome != OutcomeOK {
			return &AssertionError{
				Type:     AssertSameFingerprint,
				Expected: fmt.Sprintf("step %s to compile", name),
				Actual:   fmt.Sprintf("%s error: %s", event.ErrorKind, event.Error),
				Trace:    trace,
			}
		}
		if want == "" {
			want, first = event.Fingerprint, name
			continue
		}
		if event.Fingerprint != want {
			return &AssertionError{
				Type:     AssertSameFingerprint,
				Expected: fmt.Sprintf("step %s to compile like %s (%s)", name, first, want),
				Actual:   event.Fingerprint,
				Trace:    trace,
			}
		}
	}
	return nil
}

func findEvent(trace []TraceEvent, step string) (TraceEvent, bool) {
	for _, event := range trace {
		if event.Step == step {
			return event, true
		}
	}
	return TraceEvent{}, false
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStepOutcome:
			err = assertStepOutcome(result.Trace, assertion)
		case AssertOutcomeCount:
			err = assertOutcomeCount(result.Trace, assertion)
		case AssertSameFingerprint:
			err = assertSameFingerprint(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
