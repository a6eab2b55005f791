package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/cosmongo/internal/ir"
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
	for _, event := range e.Trace {
		target := event.ID
		if event.Query != "" {
			target = event.Query
		}
		fmt.Fprintf(&buf, "  [%d] %s %s -> %d\n", event.Seq, event.Op, target, event.Status)
	}

	return buf.String()
}

// assertTraceCount checks that op appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s to appear %d times", assertion.Op, assertion.Count),
		Actual:   fmt.Sprintf("appeared %d times", count),
		Trace:    trace,
	}
}

// assertFinalState checks one stored item against the expected fields.
func assertFinalState(result *Result, assertion Assertion) error {
	doc, found := result.State[assertion.ID].(map[string]any)

	if assertion.Absent {
		if !found {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("item %s to be absent", assertion.ID),
			Actual:   fmt.Sprintf("found %v", doc),
			Trace:    result.Trace,
		}
	}

	if !found {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("item %s with %v", assertion.ID, assertion.Expect),
			Actual:   "item not found",
			Trace:    result.Trace,
		}
	}
	if !matchSubset(doc, assertion.Expect) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("item %s with %v", assertion.ID, assertion.Expect),
			Actual:   fmt.Sprintf("%v", doc),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalCount checks the number of stored items.
func assertFinalCount(result *Result, assertion Assertion) error {
	if len(result.State) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalCount,
		Expected: fmt.Sprintf("%d items", assertion.Count),
		Actual:   fmt.Sprintf("%d items", len(result.State)),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions runs every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result, a)
		case AssertFinalCount:
			err = assertFinalCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

// matchSubset reports whether every expected field equals the actual one.
func matchSubset(actual, expected map[string]any) bool {
	if actual == nil {
		return len(expected) == 0
	}
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values by their canonical JSON, so an int
// from YAML equals the int64 read back from a store.
func valuesEqual(a, b any) bool {
	ca, errA := canonical(a)
	cb, errB := canonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

func canonical(v any) ([]byte, error) {
	irv, err := ir.FromAny(v)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(irv)
}
