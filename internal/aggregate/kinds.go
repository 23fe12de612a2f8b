package aggregate

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

var errMalformedState = errors.New("malformed aggregate state")

// tally is the state shared by sum and avg. Integers and floats are
// accumulated apart so that a group holding only integers finalizes to an
// exact integer, even after float contributions have been removed.
type tally struct {
	ints   ir.IRInt
	floats ir.IRFloat
	n      int64
	nf     int64 // float contributors
}

func (t tally) state() ir.IRValue {
	return ir.IRArray{t.ints, t.floats, ir.IRInt(t.n), ir.IRInt(t.nf)}
}

func untally(state ir.IRValue) (tally, error) {
	arr, ok := state.(ir.IRArray)
	if !ok || len(arr) != 4 {
		return tally{}, fmt.Errorf("%w: %v", errMalformedState, state)
	}
	ints, ok1 := arr[0].(ir.IRInt)
	floats, ok2 := arr[1].(ir.IRFloat)
	n, ok3 := arr[2].(ir.IRInt)
	nf, ok4 := arr[3].(ir.IRInt)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return tally{}, fmt.Errorf("%w: %v", errMalformedState, state)
	}
	return tally{ints: ints, floats: floats, n: int64(n), nf: int64(nf)}, nil
}

// total is the exact integer sum while no float is present.
func (t tally) total() ir.IRValue {
	if t.nf == 0 {
		return t.ints
	}
	return ir.IRFloat(float64(t.ints) + float64(t.floats))
}

// step adds (sign 1) or subtracts (sign -1) one value.
func step(state, v ir.IRValue, sign int64) (ir.IRValue, error) {
	if ir.IsUndefined(v) {
		return state, nil
	}
	t, err := untally(state)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case ir.IRInt:
		t.ints += ir.IRInt(sign) * x
	case ir.IRFloat:
		t.floats += ir.IRFloat(sign) * x
		t.nf += sign
		if t.nf == 0 {
			t.floats = 0
		}
	default:
		op := "+"
		if sign < 0 {
			op = "-"
		}
		return nil, &ir.TypeError{Op: op, Left: ir.KindInteger, Right: ir.KindOf(v)}
	}
	t.n += sign
	return t.state(), nil
}

func mergeTallies(a, b ir.IRValue) (ir.IRValue, error) {
	x, err := untally(a)
	if err != nil {
		return nil, err
	}
	y, err := untally(b)
	if err != nil {
		return nil, err
	}
	return tally{ints: x.ints + y.ints, floats: x.floats + y.floats, n: x.n + y.n, nf: x.nf + y.nf}.state(), nil
}

// sum adds the numeric values of its argument.
type sum struct{ base }

func (a *sum) Evaluate(rows iter.Seq[expr.Context]) (ir.IRValue, error) { return fold(a, rows) }
func (*sum) IsAppendable() bool                                         { return true }
func (*sum) IsRemovable() bool                                          { return true }
func (*sum) Init() ir.IRValue                                           { return tally{}.state() }

func (*sum) Append(state, v ir.IRValue) (ir.IRValue, error) { return step(state, v, 1) }
func (*sum) Remove(state, v ir.IRValue) (ir.IRValue, error) { return step(state, v, -1) }
func (*sum) Combine(a, b ir.IRValue) (ir.IRValue, error)    { return mergeTallies(a, b) }

func (*sum) Finalize(state ir.IRValue) ir.IRValue {
	t, err := untally(state)
	if err != nil || t.n == 0 {
		return ir.Undefined
	}
	return t.total()
}

// avg tracks total and count so that removal is exact.
type avg struct{ base }

func (a *avg) Evaluate(rows iter.Seq[expr.Context]) (ir.IRValue, error) { return fold(a, rows) }
func (*avg) IsAppendable() bool                                         { return true }
func (*avg) IsRemovable() bool                                          { return true }
func (*avg) Init() ir.IRValue                                           { return tally{}.state() }

func (*avg) Append(state, v ir.IRValue) (ir.IRValue, error) { return step(state, v, 1) }
func (*avg) Remove(state, v ir.IRValue) (ir.IRValue, error) { return step(state, v, -1) }
func (*avg) Combine(a, b ir.IRValue) (ir.IRValue, error)    { return mergeTallies(a, b) }

// Finalize divides in floating point. An empty group is Undefined.
func (*avg) Finalize(state ir.IRValue) ir.IRValue {
	t, err := untally(state)
	if err != nil || t.n == 0 {
		return ir.Undefined
	}
	return ir.IRFloat((float64(t.ints) + float64(t.floats)) / float64(t.n))
}

// count counts rows, or rows where its argument is defined.
type count struct{ base }

func (a *count) Evaluate(rows iter.Seq[expr.Context]) (ir.IRValue, error) { return fold(a, rows) }
func (*count) IsAppendable() bool                                         { return true }
func (*count) IsRemovable() bool                                          { return true }
func (*count) Init() ir.IRValue                                           { return ir.IRInt(0) }

func (*count) Append(state, v ir.IRValue) (ir.IRValue, error) {
	if ir.IsUndefined(v) {
		return state, nil
	}
	return ir.Add(state, ir.IRInt(1))
}

func (*count) Remove(state, v ir.IRValue) (ir.IRValue, error) {
	if ir.IsUndefined(v) {
		return state, nil
	}
	return ir.Sub(state, ir.IRInt(1))
}

func (*count) Combine(a, b ir.IRValue) (ir.IRValue, error) { return ir.Add(a, b) }
func (*count) Finalize(state ir.IRValue) ir.IRValue        { return state }

// extremum keeps the smallest (dir -1) or largest (dir 1) value seen.
// Without the full value set a removal cannot be undone.
type extremum struct {
	base
	dir int
}

func (a *extremum) Evaluate(rows iter.Seq[expr.Context]) (ir.IRValue, error) { return fold(a, rows) }
func (*extremum) IsAppendable() bool                                         { return true }
func (*extremum) IsRemovable() bool                                          { return false }
func (*extremum) Init() ir.IRValue                                           { return ir.Undefined }

func (a *extremum) Append(state, v ir.IRValue) (ir.IRValue, error) {
	if ir.IsUndefined(v) {
		return state, nil
	}
	if ir.IsUndefined(state) {
		return v, nil
	}
	c, err := ir.Compare(a.name, v, state)
	if err != nil {
		return nil, err
	}
	if c*a.dir > 0 {
		return v, nil
	}
	return state, nil
}

func (*extremum) Remove(ir.IRValue, ir.IRValue) (ir.IRValue, error) { return nil, ErrNotRemovable }
func (a *extremum) Combine(x, y ir.IRValue) (ir.IRValue, error)     { return a.Append(x, y) }
func (*extremum) Finalize(state ir.IRValue) ir.IRValue              { return state }

// collect gathers defined values in arrival order.
type collect struct{ base }

func (a *collect) Evaluate(rows iter.Seq[expr.Context]) (ir.IRValue, error) { return fold(a, rows) }
func (*collect) IsAppendable() bool                                         { return true }
func (*collect) IsRemovable() bool                                          { return true }
func (*collect) Init() ir.IRValue                                           { return ir.IRArray{} }

func (*collect) Append(state, v ir.IRValue) (ir.IRValue, error) {
	arr, ok := state.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("%w: %v", errMalformedState, state)
	}
	if ir.IsUndefined(v) {
		return arr, nil
	}
	return append(slices.Clip(arr), v), nil
}

// Remove drops the first element identical to v. Removing a value that
// was never appended leaves the state unchanged.
func (*collect) Remove(state, v ir.IRValue) (ir.IRValue, error) {
	arr, ok := state.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("%w: %v", errMalformedState, state)
	}
	i := slices.IndexFunc(arr, func(e ir.IRValue) bool { return ir.Identical(e, v) })
	if i < 0 {
		return arr, nil
	}
	return slices.Delete(slices.Clone(arr), i, i+1), nil
}

func (*collect) Combine(a, b ir.IRValue) (ir.IRValue, error) {
	x, ok := a.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("%w: %v", errMalformedState, a)
	}
	y, ok := b.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("%w: %v", errMalformedState, b)
	}
	out := make(ir.IRArray, 0, len(x)+len(y))
	return append(append(out, x...), y...), nil
}

func (*collect) Finalize(state ir.IRValue) ir.IRValue { return state }

// countDistinct needs the full value set, so it only supports batch
// evaluation.
type countDistinct struct{ base }

func (*countDistinct) IsAppendable() bool { return false }
func (*countDistinct) IsRemovable() bool  { return false }

func (a *countDistinct) Evaluate(rows iter.Seq[expr.Context]) (ir.IRValue, error) {
	seen := make(map[string]struct{})
	for row := range rows {
		v, err := a.Input(row)
		if err != nil {
			return nil, err
		}
		if ir.IsUndefined(v) {
			continue
		}
		key, err := ir.GroupKey([]ir.IRValue{v})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.name, err)
		}
		seen[key] = struct{}{}
	}
	return ir.IRInt(len(seen)), nil
}
