package queryir

import (
	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Query is a backend query. Sealed to this package.
type Query interface {
	queryNode()
}

// Predicate is a pushed-down condition. Sealed to this package.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from a table, keeping rows matching Filter.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY id
//
// A nil Filter selects every row. Columns must be explicit.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
}

func (Select) queryNode() {}

// CompareOp is a column comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// flip returns the operator with its operands swapped: 1 < x is x > 1.
func (op CompareOp) flip() CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op
	}
}

// Compare is <field> <op> <value>. Value is a defined scalar.
type Compare struct {
	Field string
	Op    CompareOp
	Value ir.IRValue
}

func (Compare) predicateNode() {}

// In is <field> IN (<values>). An empty list matches nothing.
type In struct {
	Field  string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// And is a conjunction. An empty And matches every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Plan is one DNF term split for execution. Residual is nil when the whole
// term was pushed down.
type Plan struct {
	Select   Select
	Residual expr.Expr
}

// Matches evaluates the residual against a candidate row.
func (p Plan) Matches(row expr.Context) (bool, error) {
	if p.Residual == nil {
		return true, nil
	}
	v, err := expr.Evaluate(p.Residual, row)
	if err != nil {
		return false, err
	}
	return ir.Truthy(v), nil
}
