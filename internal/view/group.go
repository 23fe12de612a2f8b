package view

import (
	"fmt"
	"slices"

	"github.com/stage-tech/basestar-sub001/internal/aggregate"
	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// group is the maintained state of one group of a view.
type group struct {
	values ir.IRArray
	// members maps object id to the version folded into states.
	members map[string]int64
	// states holds one entry per aggregate of the view: the incremental
	// state for decomposable kinds, the final value otherwise.
	states []ir.IRValue
}

func (v *View) newGroup(values ir.IRArray) *group {
	g := &group{
		values:  values,
		members: make(map[string]int64),
		states:  make([]ir.IRValue, len(v.aggs)),
	}
	for i, agg := range v.aggs {
		if d, ok := agg.(aggregate.Decomposable); ok {
			g.states[i] = d.Init()
		} else {
			g.states[i] = ir.Undefined
		}
	}
	return g
}

// step applies Append or Remove for one row to every aggregate. States are
// replaced only when every aggregate succeeds.
func (v *View) step(g *group, row expr.Context, remove bool) error {
	next := make([]ir.IRValue, len(g.states))
	for i, agg := range v.aggs {
		d := agg.(aggregate.Decomposable)
		in, err := d.Input(row)
		if err != nil {
			return err
		}
		if remove {
			next[i], err = d.Remove(g.states[i], in)
		} else {
			next[i], err = d.Append(g.states[i], in)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", agg.Name(), err)
		}
	}
	g.states = next
	return nil
}

// fill computes every aggregate from scratch over rows.
func (v *View) fill(g *group, rows []expr.Context) error {
	for i, agg := range v.aggs {
		d, ok := agg.(aggregate.Decomposable)
		if !ok {
			val, err := agg.Evaluate(slices.Values(rows))
			if err != nil {
				return err
			}
			g.states[i] = val
			continue
		}
		state := d.Init()
		for _, row := range rows {
			in, err := d.Input(row)
			if err != nil {
				return err
			}
			if state, err = d.Append(state, in); err != nil {
				return fmt.Errorf("%s: %w", agg.Name(), err)
			}
		}
		g.states[i] = state
	}
	return nil
}

// row finalises a group into an output row: the group-by values under
// their rendered expressions plus one entry per column.
func (v *View) row(g *group) (ir.IRObject, error) {
	out := make(ir.IRObject, len(v.GroupBy)+len(v.Columns))
	scope := make(ir.IRObject)
	for i, name := range v.groupNames() {
		out[name] = g.values[i]
		if ref, ok := v.GroupBy[i].(*expr.NameRef); ok {
			setPath(scope, ref.Path, g.values[i])
		}
	}
	groupCtx := expr.NewContext(scope)

	for _, col := range v.Columns {
		final := make(map[string]ir.IRValue, len(col.nodes))
		for j, node := range col.nodes {
			i := col.first + j
			state := g.states[i]
			if d, ok := v.aggs[i].(aggregate.Decomposable); ok {
				state = d.Finalize(state)
			}
			final[expr.Key(node)] = state
		}
		resolved, err := expr.Rewrite(col.Expr, func(n expr.Expr) (expr.Expr, error) {
			if node, ok := n.(*expr.Aggregate); ok {
				return expr.Const(final[expr.Key(node)]), nil
			}
			return n, nil
		})
		if err != nil {
			return nil, err
		}
		val, err := expr.Evaluate(resolved, groupCtx)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		out[col.Name] = val
	}
	return out, nil
}

// setPath stores v at a dotted path, creating intermediate mappings.
func setPath(obj ir.IRObject, path expr.Path, v ir.IRValue) {
	for _, seg := range path[:len(path)-1] {
		next, ok := obj[seg].(ir.IRObject)
		if !ok {
			next = make(ir.IRObject)
			obj[seg] = next
		}
		obj = next
	}
	obj[path[len(path)-1]] = v
}
