package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "pushable",
			query: Select{From: "t", Columns: []string{"id"}, Filter: Compare{Field: "qty", Op: OpLt, Value: ir.IRFloat(2.5)}},
			want:  []string{},
		},
		{
			name:  "pointer select",
			query: &Select{From: "t", Columns: []string{"id"}},
			want:  []string{},
		},
		{
			name:  "nil",
			query: nil,
			want:  []string{"nil query"},
		},
		{
			name:  "missing table and columns",
			query: Select{},
			want:  []string{"select without a table", "select requires an explicit column list"},
		},
		{
			name:  "undefined literal",
			query: Select{From: "t", Columns: []string{"id"}, Filter: Compare{Field: "status", Op: OpEq, Value: ir.Undefined}},
			want:  []string{`field "status" compared to undefined`},
		},
		{
			name: "unknown column and kind mismatch",
			query: Select{From: "t", Columns: []string{"id"}, Filter: And{Predicates: []Predicate{
				Compare{Field: "note", Op: OpEq, Value: ir.IRString("x")},
				In{Field: "rush", Values: []ir.IRValue{ir.IRInt(1)}},
			}}},
			want: []string{
				`field "note" is not an indexed column`,
				`field "rush" of type bool compared to integer`,
			},
		},
		{
			name:  "non-scalar literal",
			query: Select{From: "t", Columns: []string{"id"}, Filter: &Compare{Field: "status", Op: OpEq, Value: ir.IRArray{}}},
			want:  []string{`field "status" of type string compared to sequence`},
		},
		{
			name:  "unknown operator",
			query: Select{From: "t", Columns: []string{"id"}, Filter: Compare{Field: "qty", Op: "LIKE", Value: ir.IRInt(1)}},
			want:  []string{`field "qty" uses unknown operator "LIKE"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.query, orders)
			assert.Equal(t, tt.want, res.Warnings)
			assert.Equal(t, len(tt.want) == 0, res.IsPushable)
		})
	}
}
