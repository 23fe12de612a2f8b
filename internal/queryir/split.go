package queryir

import (
	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Reserved columns present on every object table.
const (
	ColumnID      = "id"
	ColumnVersion = "version"
	ColumnBody    = "body"
)

var compareOps = map[expr.BinaryOp]CompareOp{
	expr.OpEq: OpEq,
	expr.OpNe: OpNe,
	expr.OpLt: OpLt,
	expr.OpLe: OpLe,
	expr.OpGt: OpGt,
	expr.OpGe: OpGe,
}

// ColumnType returns the declared type of a queryable column: the
// reserved id and version columns or an indexed schema field.
func ColumnType(schema ir.ObjectSchema, name string) (string, bool) {
	switch name {
	case ColumnID:
		return ir.TypeString, true
	case ColumnVersion:
		return ir.TypeInt, true
	}
	if !schema.IsIndexed(name) {
		return "", false
	}
	return schema.FieldType(name)
}

// Split partitions the conjuncts of a DNF term into pushed-down predicates
// and a residual expression. base supplies the table and columns; its
// filter is replaced.
//
// When nothing can be pushed down the residual is term itself.
func Split(base Select, schema ir.ObjectSchema, term expr.Expr) Plan {
	conjuncts := []expr.Expr{term}
	if and, ok := term.(*expr.And); ok {
		conjuncts = and.Terms
	}

	var (
		preds    []Predicate
		residual []expr.Expr
	)
	for _, c := range conjuncts {
		if p, ok := pushdown(schema, c); ok {
			preds = append(preds, p)
		} else {
			residual = append(residual, c)
		}
	}

	plan := Plan{Select: base}
	switch len(preds) {
	case 0:
		plan.Select.Filter = nil
		if len(conjuncts) > 0 {
			plan.Residual = term
		}
		return plan
	case 1:
		plan.Select.Filter = preds[0]
	default:
		plan.Select.Filter = And{Predicates: preds}
	}

	switch len(residual) {
	case 0:
	case 1:
		plan.Residual = residual[0]
	default:
		plan.Residual = expr.NewAnd(residual...)
	}
	return plan
}

func pushdown(schema ir.ObjectSchema, e expr.Expr) (Predicate, bool) {
	switch n := e.(type) {
	case *expr.Binary:
		if n.Op == expr.OpIn {
			return pushdownIn(schema, n)
		}
		op, ok := compareOps[n.Op]
		if !ok {
			return nil, false
		}
		if field, typ, ok := column(schema, n.Left); ok {
			if v, ok := scalar(typ, n.Right); ok {
				return Compare{Field: field, Op: op, Value: v}, true
			}
		}
		if field, typ, ok := column(schema, n.Right); ok {
			if v, ok := scalar(typ, n.Left); ok {
				return Compare{Field: field, Op: op.flip(), Value: v}, true
			}
		}
	case *expr.NameRef:
		// A bare boolean column is true only when stored as true.
		if field, typ, ok := column(schema, n); ok && typ == ir.TypeBool {
			return Compare{Field: field, Op: OpEq, Value: ir.IRBool(true)}, true
		}
	}
	return nil, false
}

func pushdownIn(schema ir.ObjectSchema, n *expr.Binary) (Predicate, bool) {
	field, typ, ok := column(schema, n.Left)
	if !ok {
		return nil, false
	}
	arr, ok := constantList(n.Right)
	if !ok {
		return nil, false
	}
	values := make([]ir.IRValue, 0, len(arr))
	for _, v := range arr {
		if !matches(typ, v) {
			return nil, false
		}
		values = append(values, v)
	}
	return In{Field: field, Values: values}, true
}

// constantList accepts a folded sequence constant or an array literal of
// constants.
func constantList(e expr.Expr) (ir.IRArray, bool) {
	switch n := e.(type) {
	case *expr.Constant:
		arr, ok := n.Value.(ir.IRArray)
		return arr, ok
	case *expr.ArrayLit:
		arr := make(ir.IRArray, 0, len(n.Elems))
		for _, elem := range n.Elems {
			c, ok := elem.(*expr.Constant)
			if !ok {
				return nil, false
			}
			arr = append(arr, c.Value)
		}
		return arr, true
	}
	return nil, false
}

func column(schema ir.ObjectSchema, e expr.Expr) (string, string, bool) {
	ref, ok := e.(*expr.NameRef)
	if !ok || len(ref.Path) != 1 {
		return "", "", false
	}
	typ, ok := ColumnType(schema, ref.Path[0])
	if !ok {
		return "", "", false
	}
	return ref.Path[0], typ, true
}

func scalar(typ string, e expr.Expr) (ir.IRValue, bool) {
	c, ok := e.(*expr.Constant)
	if !ok || !matches(typ, c.Value) {
		return nil, false
	}
	return c.Value, true
}

// matches reports whether SQLite compares v against a column of typ the
// same way the evaluator would.
func matches(typ string, v ir.IRValue) bool {
	switch ir.KindOf(v) {
	case ir.KindText:
		return typ == ir.TypeString
	case ir.KindInteger, ir.KindFloat:
		return typ == ir.TypeInt || typ == ir.TypeFloat
	case ir.KindBoolean:
		return typ == ir.TypeBool
	default:
		return false
	}
}
