package queryir

import (
	"fmt"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// ValidationResult reports whether a query can be answered exactly by a
// backend.
type ValidationResult struct {
	// IsPushable is true when Warnings is empty.
	IsPushable bool

	Warnings []string
}

// Validate checks a query against the pushdown rules for schema. Queries
// built by Split always pass; hand-built queries may not.
//
// Validate is a pure function with no side effects.
func Validate(q Query, schema ir.ObjectSchema) ValidationResult {
	v := &validator{schema: schema, warnings: []string{}}
	v.validateQuery(q)
	return ValidationResult{
		IsPushable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	schema   ir.ObjectSchema
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addWarning("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addWarning("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addWarning("select without a table")
	}
	if len(sel.Columns) == 0 {
		v.addWarning("select requires an explicit column list")
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addWarning("unknown predicate type %T", p)
	}
}

func (v *validator) validateCompare(c Compare) {
	switch c.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
	default:
		v.addWarning("field %q uses unknown operator %q", c.Field, c.Op)
	}
	v.validateValue(c.Field, c.Value)
}

func (v *validator) validateIn(in In) {
	for _, val := range in.Values {
		v.validateValue(in.Field, val)
	}
}

func (v *validator) validateValue(field string, val ir.IRValue) {
	typ, ok := ColumnType(v.schema, field)
	if !ok {
		v.addWarning("field %q is not an indexed column", field)
		return
	}
	switch {
	case ir.IsUndefined(val):
		v.addWarning("field %q compared to undefined", field)
	case !matches(typ, val):
		v.addWarning("field %q of type %s compared to %s", field, typ, ir.KindOf(val))
	}
}
