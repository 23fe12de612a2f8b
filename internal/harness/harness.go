package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stage-tech/basestar-sub001/internal/aggregate"
	"github.com/stage-tech/basestar-sub001/internal/compiler"
	"github.com/stage-tech/basestar-sub001/internal/disjunction"
	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/parser"
	"github.com/stage-tech/basestar-sub001/internal/store"
	"github.com/stage-tech/basestar-sub001/internal/testutil"
	"github.com/stage-tech/basestar-sub001/internal/view"
)

// Harness executes scenario steps against an isolated store and the
// views declared by the scenario catalog.
type Harness struct {
	store *store.Store
	views *view.Maintainer
	ids   *testutil.SequentialIDs

	// applyErr holds the first view maintenance failure of the current
	// step. Views are applied synchronously from the store change handler.
	applyErr error
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential
// object ids, so traces are reproducible.
//
// Execution flow:
// 1. Load and validate the catalog, register its schemas and build views
// 2. Execute setup steps, which must succeed
// 3. Execute flow steps, checking expect clauses
// 4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	catalog := &ir.Catalog{}
	if scenario.Catalog != "" {
		loaded, err := compiler.LoadCatalog(scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		if verrs := compiler.Validate(loaded); len(verrs) > 0 {
			errs := make([]error, len(verrs))
			for i, verr := range verrs {
				errs[i] = verr
			}
			return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
		}
		catalog = loaded
	}

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = "obj"
	}
	h := &Harness{ids: testutil.NewSequentialIDs(prefix)}

	st, err := store.Open(":memory:",
		store.WithIDGenerator(h.ids.Generate),
		store.WithChangeHandler(h.onChange))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	for _, schema := range catalog.Schemas {
		if err := st.Register(ctx, schema); err != nil {
			return nil, fmt.Errorf("failed to register schema: %w", err)
		}
	}
	views, err := view.BuildAll(catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to build views: %w", err)
	}
	h.views = view.NewMaintainer(st, views)

	for i, step := range scenario.Setup {
		if _, _, err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("failed to execute setup step %d: %w", i, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		op, input := step.Op()
		out, seq, err := h.execute(ctx, step)

		event := TraceEvent{Step: i, Op: op, Input: input, Output: out, Seq: seq}
		if err != nil {
			event.Error = err.Error()
		}
		result.AddTrace(event)

		if msg := checkExpect(step.Expect, out, err); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s %q: %s", i, op, input, msg))
		}

		slog.Debug("flow step completed", "step", i, "op", op, "input", input, "error", err)
	}

	actx := &AssertionContext{
		Store: st,
		Views: h.views,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// onChange keeps views current with every write.
func (h *Harness) onChange(c store.Change) {
	if h.views == nil {
		return
	}
	if err := h.views.Apply(context.Background(), c); err != nil && h.applyErr == nil {
		h.applyErr = err
	}
}

// execute runs one step. It returns the step output and, for writes, the
// change sequence the write was stamped with.
func (h *Harness) execute(ctx context.Context, step FlowStep) (ir.IRValue, int64, error) {
	op, input := step.Op()
	switch op {
	case OpEval:
		e, vars, err := parseWithVars(input, step.Vars)
		if err != nil {
			return nil, 0, err
		}
		out, err := expr.Evaluate(e, expr.NewContext(vars))
		return out, 0, err

	case OpBind:
		e, vars, err := parseWithVars(input, step.Vars)
		if err != nil {
			return nil, 0, err
		}
		bound, err := expr.Bind(e, expr.NewContext(vars), nil)
		if err != nil {
			return nil, 0, err
		}
		return ir.IRString(expr.Render(bound)), 0, nil

	case OpDNF:
		e, err := parseExpr(input)
		if err != nil {
			return nil, 0, err
		}
		terms, err := disjunction.NormalizeLimit(e, store.DefaultTermLimit)
		if err != nil {
			return nil, 0, err
		}
		out := ir.IRArray{}
		for _, term := range terms.Strings() {
			out = append(out, ir.IRString(term))
		}
		return out, 0, nil

	case OpCreate, OpUpdate, OpDelete:
		return h.write(ctx, op, input, step)

	case OpFilter:
		where, err := parseExpr(step.Where)
		if err != nil {
			return nil, 0, err
		}
		objs, err := h.store.Filter(ctx, input, where)
		if err != nil {
			return nil, 0, err
		}
		out := make(ir.IRArray, len(objs))
		for i, obj := range objs {
			out[i] = ir.IRString(obj.ID)
		}
		return out, 0, nil

	case OpView:
		rows, err := h.views.Rows(input)
		if err != nil {
			return nil, 0, err
		}
		out := make(ir.IRArray, len(rows))
		for i, row := range rows {
			out[i] = row
		}
		return out, 0, nil

	default:
		return nil, 0, fmt.Errorf("step sets no single operation")
	}
}

// write performs a store write and surfaces view maintenance failures as
// the step error.
func (h *Harness) write(ctx context.Context, op, schema string, step FlowStep) (ir.IRValue, int64, error) {
	h.applyErr = nil

	var out ir.IRValue = ir.Undefined
	switch op {
	case OpCreate, OpUpdate:
		data, err := convertToIRObject(step.Data)
		if err != nil {
			return nil, 0, err
		}
		var obj ir.Object
		switch {
		case op == OpUpdate:
			obj, err = h.store.Update(ctx, schema, step.ID, step.Version, data)
		case step.ID != "":
			obj, err = h.store.CreateWithID(ctx, schema, step.ID, data)
		default:
			obj, err = h.store.Create(ctx, schema, data)
		}
		if err != nil {
			return nil, 0, err
		}
		out = obj.Record()
	case OpDelete:
		if err := h.store.Delete(ctx, schema, step.ID, step.Version); err != nil {
			return nil, 0, err
		}
	}

	if h.applyErr != nil {
		return nil, 0, fmt.Errorf("view maintenance: %w", h.applyErr)
	}
	seq, err := h.store.LastSeq(ctx)
	if err != nil {
		return nil, 0, err
	}
	return out, seq, nil
}

// checkExpect compares a step outcome with its expect clause and returns
// a failure message, or "" when the outcome is acceptable.
func checkExpect(expect *ExpectClause, out ir.IRValue, err error) string {
	switch {
	case expect == nil:
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		return ""
	case expect.Error != "":
		if err == nil {
			return fmt.Sprintf("expected error containing %q, got %s", expect.Error, formatValue(out))
		}
		if !strings.Contains(err.Error(), expect.Error) {
			return fmt.Sprintf("expected error containing %q, got %q", expect.Error, err.Error())
		}
		return ""
	case err != nil:
		return fmt.Sprintf("unexpected error: %v", err)
	case expect.HasValue():
		var raw any
		if decodeErr := expect.Value.Decode(&raw); decodeErr != nil {
			return fmt.Sprintf("invalid expected value: %v", decodeErr)
		}
		want, convErr := ir.FromGo(raw)
		if convErr != nil {
			return fmt.Sprintf("invalid expected value: %v", convErr)
		}
		if !ir.Equal(want, out) {
			return fmt.Sprintf("expected %s, got %s", formatValue(want), formatValue(out))
		}
	}
	return ""
}

func parseExpr(src string) (expr.Expr, error) {
	return parser.Parse(src, parser.WithAggregates(aggregate.Names()...))
}

func parseWithVars(src string, vars map[string]any) (expr.Expr, ir.IRObject, error) {
	e, err := parseExpr(src)
	if err != nil {
		return nil, nil, err
	}
	obj, err := convertToIRObject(vars)
	if err != nil {
		return nil, nil, err
	}
	return e, obj, nil
}

// convertToIRObject converts YAML-decoded fields to an ir object. A null
// field becomes undefined.
func convertToIRObject(fields map[string]any) (ir.IRObject, error) {
	if fields == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromGo(fields)
	if err != nil {
		return nil, err
	}
	return v.(ir.IRObject), nil
}

// formatValue renders a value as canonical JSON for messages.
func formatValue(v ir.IRValue) string {
	if v == nil || ir.IsUndefined(v) {
		return "undefined"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
