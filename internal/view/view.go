package view

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/stage-tech/basestar-sub001/internal/aggregate"
	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/parser"
)

// ErrNoAggregate is returned for a view column without an aggregate.
var ErrNoAggregate = errors.New("column contains no aggregate")

// View is a parsed view definition.
type View struct {
	Name    string
	Schema  string
	Where   expr.Expr // nil selects every object
	GroupBy []expr.Expr
	Columns []Column // sorted by name

	// aggs lists the aggregates of every column in column order.
	aggs []aggregate.Aggregate
	// appendable is set when every aggregate is decomposable; removable
	// additionally requires every aggregate to support Remove.
	appendable bool
	removable  bool
}

// Column is one output column: an expression over aggregates and the
// group-by values.
type Column struct {
	Name  string
	Expr  expr.Expr
	nodes []*expr.Aggregate
	first int // index of the column's first aggregate in View.aggs
}

// Build parses a view specification.
func Build(spec ir.ViewSpec) (*View, error) {
	v := &View{Name: spec.Name, Schema: spec.Schema}

	if spec.Where != "" {
		where, err := parser.Parse(spec.Where)
		if err != nil {
			return nil, fmt.Errorf("view %s: where: %w", spec.Name, err)
		}
		v.Where = where
	}

	for i, src := range spec.GroupBy {
		g, err := parser.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("view %s: group[%d]: %w", spec.Name, i, err)
		}
		v.GroupBy = append(v.GroupBy, g)
	}

	if len(spec.Aggregates) == 0 {
		return nil, fmt.Errorf("view %s: at least one aggregate is required", spec.Name)
	}

	v.appendable, v.removable = true, true
	for _, name := range slices.Sorted(maps.Keys(spec.Aggregates)) {
		e, err := parser.Parse(spec.Aggregates[name], parser.WithAggregates(aggregate.Names()...))
		if err != nil {
			return nil, fmt.Errorf("view %s: column %s: %w", spec.Name, name, err)
		}
		col := Column{Name: name, Expr: e, first: len(v.aggs)}
		expr.Walk(e, func(n expr.Expr) bool {
			if node, ok := n.(*expr.Aggregate); ok {
				col.nodes = append(col.nodes, node)
				return false
			}
			return true
		})
		if len(col.nodes) == 0 {
			return nil, fmt.Errorf("view %s: column %s: %w", spec.Name, name, ErrNoAggregate)
		}
		for _, node := range col.nodes {
			agg, err := aggregate.FromExpr(node)
			if err != nil {
				return nil, fmt.Errorf("view %s: column %s: %w", spec.Name, name, err)
			}
			d, ok := agg.(aggregate.Decomposable)
			v.appendable = v.appendable && ok && d.IsAppendable()
			v.removable = v.removable && ok && d.IsRemovable()
			v.aggs = append(v.aggs, agg)
		}
		v.Columns = append(v.Columns, col)
	}

	return v, nil
}

// BuildAll parses every view of a catalog, checking that each names a
// declared schema.
func BuildAll(catalog *ir.Catalog) ([]*View, error) {
	views := make([]*View, 0, len(catalog.Views))
	for _, spec := range catalog.Views {
		if _, ok := catalog.Schema(spec.Schema); !ok {
			return nil, fmt.Errorf("view %s: unknown schema %s", spec.Name, spec.Schema)
		}
		v, err := Build(spec)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Incremental reports whether inserts and removals are both applied
// without reading the store.
func (v *View) Incremental() bool {
	return v.removable
}

// classify evaluates the where clause and group key for a row. ok is
// false when the row is outside the view.
func (v *View) classify(row expr.Context) (key string, values ir.IRArray, ok bool, err error) {
	if v.Where != nil {
		w, err := expr.Evaluate(v.Where, row)
		if err != nil {
			return "", nil, false, fmt.Errorf("where: %w", err)
		}
		if !ir.Truthy(w) {
			return "", nil, false, nil
		}
	}

	values = make(ir.IRArray, len(v.GroupBy))
	for i, g := range v.GroupBy {
		if values[i], err = expr.Evaluate(g, row); err != nil {
			return "", nil, false, fmt.Errorf("group %s: %w", expr.Render(g), err)
		}
	}
	key, err = ir.GroupKey(values)
	if err != nil {
		return "", nil, false, err
	}
	return key, values, true, nil
}

// groupNames returns the output column names of the group-by values.
func (v *View) groupNames() []string {
	names := make([]string, len(v.GroupBy))
	for i, g := range v.GroupBy {
		names[i] = expr.Render(g)
	}
	return names
}
