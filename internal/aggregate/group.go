package aggregate

import (
	"iter"

	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Resolve replaces every Aggregate node in e with its value over rows,
// leaving an expression that can be evaluated against a single group
// context. rows is ranged over once per aggregate node.
func Resolve(e expr.Expr, rows iter.Seq[expr.Context]) (expr.Expr, error) {
	return expr.Rewrite(e, func(n expr.Expr) (expr.Expr, error) {
		node, ok := n.(*expr.Aggregate)
		if !ok {
			return n, nil
		}
		agg, err := FromExpr(node)
		if err != nil {
			return nil, err
		}
		v, err := agg.Evaluate(rows)
		if err != nil {
			return nil, err
		}
		return expr.Const(v), nil
	})
}

// EvaluateGroup evaluates an expression that mixes aggregates and scalar
// terms, such as sum(total) / count(). Scalar terms are evaluated against
// group, which typically holds the group-by values.
func EvaluateGroup(e expr.Expr, rows iter.Seq[expr.Context], group expr.Context) (ir.IRValue, error) {
	resolved, err := Resolve(e, rows)
	if err != nil {
		return nil, err
	}
	return expr.Evaluate(resolved, group)
}

// Collect builds every aggregate node in e, in pre-order.
func Collect(e expr.Expr) ([]Aggregate, error) {
	var (
		out []Aggregate
		err error
	)
	expr.Walk(e, func(n expr.Expr) bool {
		if err != nil {
			return false
		}
		node, ok := n.(*expr.Aggregate)
		if !ok {
			return true
		}
		var agg Aggregate
		if agg, err = FromExpr(node); err == nil {
			out = append(out, agg)
		}
		return false
	})
	return out, err
}
