package aggregate

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

var (
	// ErrUnknownAggregate is returned for an unregistered aggregate name.
	ErrUnknownAggregate = errors.New("unknown aggregate")

	// ErrArity is returned when an aggregate receives the wrong number of
	// arguments.
	ErrArity = errors.New("wrong number of arguments")

	// ErrNestedAggregate is returned when an aggregate argument itself
	// contains an aggregate.
	ErrNestedAggregate = errors.New("aggregate arguments cannot contain aggregates")

	// ErrNotRemovable is returned by Remove on kinds that only support
	// appending.
	ErrNotRemovable = errors.New("aggregate does not support remove")
)

// ConstructionError reports an aggregate that could not be built from its
// name and arguments. It is only ever returned by New and FromExpr.
type ConstructionError struct {
	Name  string
	Arity int
	Err   error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("aggregate %s/%d: %v", e.Name, e.Arity, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// Aggregate computes one value from a group of rows.
type Aggregate interface {
	Name() string
	Args() []expr.Expr

	// Evaluate folds every row of the group. rows may be ranged over once.
	Evaluate(rows iter.Seq[expr.Context]) (ir.IRValue, error)

	IsAppendable() bool
	IsRemovable() bool
}

// Decomposable is an Aggregate with an incremental state.
type Decomposable interface {
	Aggregate

	// Input evaluates the aggregate argument for one row.
	Input(row expr.Context) (ir.IRValue, error)

	Init() ir.IRValue
	Append(state, v ir.IRValue) (ir.IRValue, error)
	Remove(state, v ir.IRValue) (ir.IRValue, error)
	Combine(a, b ir.IRValue) (ir.IRValue, error)
	Finalize(state ir.IRValue) ir.IRValue
}

type constructor struct {
	minArgs, maxArgs int
	build            func(args []expr.Expr) Aggregate
}

var registry = map[string]constructor{
	"sum":           {1, 1, func(args []expr.Expr) Aggregate { return &sum{base{"sum", args}} }},
	"avg":           {1, 1, func(args []expr.Expr) Aggregate { return &avg{base{"avg", args}} }},
	"count":         {0, 1, func(args []expr.Expr) Aggregate { return &count{base{"count", args}} }},
	"min":           {1, 1, func(args []expr.Expr) Aggregate { return &extremum{base{"min", args}, -1} }},
	"max":           {1, 1, func(args []expr.Expr) Aggregate { return &extremum{base{"max", args}, 1} }},
	"collect":       {1, 1, func(args []expr.Expr) Aggregate { return &collect{base{"collect", args}} }},
	"countDistinct": {1, 1, func(args []expr.Expr) Aggregate { return &countDistinct{base{"countDistinct", args}} }},
}

// Names returns the registered aggregate names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the aggregate registered under name. Unknown names, wrong
// arity and nested aggregates fail here and never during evaluation.
func New(name string, args []expr.Expr) (Aggregate, error) {
	c, ok := registry[name]
	if !ok {
		return nil, &ConstructionError{Name: name, Arity: len(args), Err: ErrUnknownAggregate}
	}
	if len(args) < c.minArgs || len(args) > c.maxArgs {
		return nil, &ConstructionError{Name: name, Arity: len(args), Err: ErrArity}
	}
	for _, arg := range args {
		if containsAggregate(arg) {
			return nil, &ConstructionError{Name: name, Arity: len(args), Err: ErrNestedAggregate}
		}
	}
	return c.build(slices.Clone(args)), nil
}

// FromExpr constructs the aggregate described by an Aggregate node.
func FromExpr(n *expr.Aggregate) (Aggregate, error) {
	return New(n.Name, n.Args)
}

func containsAggregate(e expr.Expr) bool {
	found := false
	expr.Walk(e, func(n expr.Expr) bool {
		if _, ok := n.(*expr.Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}

// base carries the name and arguments shared by every kind.
type base struct {
	name string
	args []expr.Expr
}

func (b base) Name() string      { return b.name }
func (b base) Args() []expr.Expr { return b.args }

// Input evaluates the single argument against row. Kinds without an
// argument count every row as true.
func (b base) Input(row expr.Context) (ir.IRValue, error) {
	if len(b.args) == 0 {
		return ir.IRBool(true), nil
	}
	v, err := expr.Evaluate(b.args[0], row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return v, nil
}

// fold is the batch path for decomposable kinds.
func fold(agg Decomposable, rows iter.Seq[expr.Context]) (ir.IRValue, error) {
	state := agg.Init()
	for row := range rows {
		v, err := agg.Input(row)
		if err != nil {
			return nil, err
		}
		if state, err = agg.Append(state, v); err != nil {
			return nil, fmt.Errorf("%s: %w", agg.Name(), err)
		}
	}
	return agg.Finalize(state), nil
}
