package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/store"
	"github.com/stage-tech/basestar-sub001/internal/view"
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

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Step, event.Op, event.Input)
		}
	}

	return buf.String()
}

// AssertionContext provides the final state assertions read from.
type AssertionContext struct {
	Store *store.Store
	Views *view.Maintainer
	Ctx   context.Context
}

// EvaluateAssertions runs every assertion and returns the failure
// messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(actx, assertion)
		case AssertViewRow:
			err = assertViewRow(actx, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceContains checks that a step with the given op, and input
// when set, ran without error.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Op != assertion.Op || event.Error != "" {
			continue
		}
		if assertion.Input == "" || event.Input == assertion.Input {
			return nil
		}
	}

	expected := assertion.Op
	if assertion.Input != "" {
		expected = fmt.Sprintf("%s %q", assertion.Op, assertion.Input)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("successful step %s", expected),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that steps with the given inputs appear in
// order. Steps don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Input]; !seen {
			positions[event.Input] = i + 1 // 1-indexed for readability
		}
	}

	for _, input := range assertion.Inputs {
		if positions[input] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all inputs present: %v", assertion.Inputs),
				Actual:   fmt.Sprintf("missing input: %s", input),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Inputs); i++ {
		prev := assertion.Inputs[i-1]
		curr := assertion.Inputs[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("inputs in order: %v", assertion.Inputs),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the op appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState reads an object and checks its record, including
// derived fields and the id, schema and version fields, with subset
// semantics.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	obj, err := actx.Store.Get(actx.Ctx, assertion.Schema, assertion.ID)
	if errors.Is(err, store.ErrNotFound) {
		if assertion.Absent {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("object %s/%s", assertion.Schema, assertion.ID),
			Actual:   "object not found",
		}
	}
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("object %s/%s", assertion.Schema, assertion.ID),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}
	if assertion.Absent {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("object %s/%s to be absent", assertion.Schema, assertion.ID),
			Actual:   fmt.Sprintf("found version %d", obj.Version),
		}
	}

	return matchFields(AssertFinalState, obj.Record(), assertion.Expect)
}

// assertViewRow finds the one view row whose group values match Group
// and checks its columns with subset semantics.
func assertViewRow(actx *AssertionContext, assertion Assertion) error {
	rows, err := actx.Views.Rows(assertion.View)
	if err != nil {
		return &AssertionError{
			Type:     AssertViewRow,
			Expected: fmt.Sprintf("rows of view %s", assertion.View),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}

	var matched []ir.IRObject
	for _, row := range rows {
		if matchFields(AssertViewRow, row, assertion.Group) == nil {
			matched = append(matched, row)
		}
	}

	groupDesc := formatFields(assertion.Group)
	switch {
	case len(matched) == 0 && assertion.Absent:
		return nil
	case len(matched) == 0:
		return &AssertionError{
			Type:     AssertViewRow,
			Expected: fmt.Sprintf("row in %s where %s", assertion.View, groupDesc),
			Actual:   "row not found",
		}
	case assertion.Absent:
		return &AssertionError{
			Type:     AssertViewRow,
			Expected: fmt.Sprintf("no row in %s where %s", assertion.View, groupDesc),
			Actual:   fmt.Sprintf("%d rows matched", len(matched)),
		}
	case len(matched) > 1:
		return &AssertionError{
			Type:     AssertViewRow,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.View, groupDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	return matchFields(AssertViewRow, matched[0], assertion.Expect)
}

// matchFields checks that actual holds every expected field. Extra
// fields in actual are ignored; numbers compare across int and float.
func matchFields(typ string, actual ir.IRObject, expected map[string]any) error {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want, err := ir.FromGo(expected[key])
		if err != nil {
			return fmt.Errorf("expected field %q: %w", key, err)
		}
		got, exists := actual[key]
		if !exists {
			got = ir.Undefined
		}
		if !ir.Equal(want, got) {
			return &AssertionError{
				Type:     typ,
				Expected: fmt.Sprintf("field %q = %s", key, formatValue(want)),
				Actual:   fmt.Sprintf("field %q = %s", key, formatValue(got)),
			}
		}
	}
	return nil
}

// formatFields creates a human-readable description of field conditions.
func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " AND ")
}
