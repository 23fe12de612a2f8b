package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func validSchema() ir.ObjectSchema {
	return ir.ObjectSchema{
		Name:    "Order",
		Fields:  map[string]string{"status": ir.TypeString, "total": ir.TypeFloat, "lines": ir.TypeArray},
		Indexed: []string{"status"},
	}
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ir.ObjectSchema)
		want   []string
	}{
		{"valid", func(*ir.ObjectSchema) {}, []string{}},
		{"bad name", func(s *ir.ObjectSchema) { s.Name = "my-order" }, []string{ErrInvalidName}},
		{"no fields", func(s *ir.ObjectSchema) { s.Fields = nil; s.Indexed = nil }, []string{ErrSchemaNoFields}},
		{"bad type", func(s *ir.ObjectSchema) { s.Fields["note"] = "text" }, []string{ErrInvalidFieldType}},
		{"reserved", func(s *ir.ObjectSchema) { s.Fields["version"] = ir.TypeInt }, []string{ErrReservedField}},
		{"unknown index", func(s *ir.ObjectSchema) { s.Indexed = append(s.Indexed, "missing") }, []string{ErrUnknownIndexedField}},
		{"non-scalar index", func(s *ir.ObjectSchema) { s.Indexed = append(s.Indexed, "lines") }, []string{ErrIndexedNotScalar}},
		{"derived parse error", func(s *ir.ObjectSchema) { s.Derived = map[string]string{"big": "total >"} }, []string{ErrInvalidDerived}},
		{"derived shadows field", func(s *ir.ObjectSchema) { s.Derived = map[string]string{"total": "1"} }, []string{ErrDuplicateName}},
		{"derived cycle", func(s *ir.ObjectSchema) { s.Derived = map[string]string{"a": "b + 1", "b": "a + 1"} }, []string{ErrInvalidDerived}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchema()
			tt.modify(&s)
			errs := Validate(&s)
			got := codes(errs)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got, "%v", errs)
			}
		})
	}
}

func TestValidateView(t *testing.T) {
	valid := ir.ViewSpec{
		Name:       "Stats",
		Schema:     "Order",
		Where:      `status != "void"`,
		GroupBy:    []string{"status"},
		Aggregates: map[string]string{"n": "count()", "avg": "sum(total) / count()"},
	}
	assert.Empty(t, Validate(valid))

	bad := ir.ViewSpec{
		Name:    "Stats",
		Schema:  "Order",
		Where:   "status ==",
		GroupBy: []string{"("},
		Aggregates: map[string]string{
			"a": "total + 1",
			"b": "median(total)",
			"c": "sum(a, b)",
		},
	}
	errs := Validate(&bad)
	assert.Equal(t, []string{ErrInvalidWhereClause, ErrInvalidGroupBy, ErrInvalidAggregate, ErrInvalidAggregate, ErrInvalidAggregate}, codes(errs))
	assert.Equal(t, `expression "total + 1" contains no aggregate`, errs[2].Message)
	assert.Equal(t, "aggregate sum/2: wrong number of arguments", errs[4].Message)

	empty := ir.ViewSpec{Name: "Empty", Schema: "Order"}
	assert.Equal(t, []string{ErrViewNoAggregates}, codes(Validate(empty)))
}

func TestValidateCatalog(t *testing.T) {
	catalog := &ir.Catalog{
		Schemas: []ir.ObjectSchema{validSchema(), validSchema()},
		Views: []ir.ViewSpec{
			{Name: "V", Schema: "Order", Aggregates: map[string]string{"n": "count()"}},
			{Name: "V", Schema: "Missing", Aggregates: map[string]string{"n": "count()"}},
		},
	}
	errs := Validate(catalog)
	require.Len(t, errs, 3)
	assert.Equal(t, "schemas[1].name", errs[0].Field)
	assert.Equal(t, ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "views[1].name", errs[1].Field)
	assert.Equal(t, ErrUnknownSchema, errs[2].Code)
	assert.Equal(t, `[E110] views[1].schema: view "V" references unknown schema "Missing"`, errs[2].Error())
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate(42)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}
