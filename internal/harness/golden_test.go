package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

func TestMarshalSnapshot(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Step: 0, Op: OpEval, Input: "1 + 1", Output: ir.IRInt(2)})
	result.AddTrace(TraceEvent{Step: 1, Op: OpEval, Input: "missing", Output: ir.Undefined})
	result.AddTrace(TraceEvent{Step: 2, Op: OpDelete, Input: "Order", Seq: 7})
	result.AddTrace(TraceEvent{Step: 3, Op: OpEval, Input: "1 / 0", Error: "division by zero"})

	data, err := MarshalSnapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"snap","trace":[`+
			`{"input":"1 + 1","op":"eval","output":2,"step":0},`+
			`{"input":"missing","op":"eval","step":1},`+
			`{"input":"Order","op":"delete","seq":7,"step":2},`+
			`{"error":"division by zero","input":"1 / 0","op":"eval","step":3}]}`,
		string(data))
}

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	run := func() []byte {
		result, err := Run(&Scenario{
			Name:        "deterministic",
			Description: "same scenario, same bytes",
			Catalog:     ordersCatalog,
			Flow: []FlowStep{
				{Create: "Order", Data: map[string]any{"status": "open", "total": 1.5, "customer": "ann"}},
				{View: "Revenue"},
			},
		})
		require.NoError(t, err)
		data, err := MarshalSnapshot("deterministic", result)
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, run(), run())
}

func TestAssertGolden(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "expressions",
		Description: "re-check a stored golden file without re-running",
		Flow: []FlowStep{
			{Eval: "a ?? b", Vars: map[string]any{"b": 2}},
			{Eval: "missing > 1"},
			{Eval: "[x * 2 for x of xs]", Vars: map[string]any{"xs": []any{1, 2, 3}}},
			{Eval: "x > 2 for any x of xs", Vars: map[string]any{"xs": []any{1, 2, 3}}},
			{Eval: "name.size()", Vars: map[string]any{"name": "basestar"}},
			{Eval: `1 + "a"`, Expect: &ExpectClause{Error: "type error"}},
			{Eval: "missing"},
			{DNF: "a || b && (c || d)"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "expressions", result))
}
