package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

func TestParseRoundTrip(t *testing.T) {
	// Each source is already in rendered form, so Render(Parse(src)) == src.
	sources := []string{
		"a + b * c",
		"(a + b) * c",
		"a - b - c",
		"a - (b - c)",
		"a && b && c",
		"a && (b && c)",
		"a && b || c && d",
		"(a || b) && c",
		"a ?? b ?? c",
		"(a ?? b) || c",
		"x > 1 && y in [\"a\", \"b\"]",
		"!(a == b)",
		"!!a",
		"-x",
		"--1",
		"-(1)",
		"a - -1",
		"(-1).abs()",
		"-1.abs()",
		"~x & 255",
		"1 << 2 | x >> 1",
		"a.b.c",
		"a.b.size()",
		"f(x).y",
		"f()[0]",
		"xs[i + 1].name",
		"max(1, x, 2.5)",
		"1e+21",
		"2.0",
		"null",
		"true != false",
		`{"k": v, "n": 1}`,
		"{}",
		"[]",
		"[x.n * 2 for x of xs]",
		"[i for i, x of xs]",
		"{k: v + 1 for k, v of m}",
		"x.a || x.b for any x of y",
		"x.ok for all x of items && flag",
		"(x for all x of y) && z",
		"a for any a of as for all as of groups",
		"x == 2 for any x of (y for any y of z)",
		`name.startsWith("a\"b")`,
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			e, err := Parse(src)
			require.NoError(t, err)
			assert.Equal(t, src, expr.Render(e))

			again, err := Parse(expr.Render(e))
			require.NoError(t, err)
			assert.True(t, expr.Equal(e, again))
		})
	}
}

func TestParseStructure(t *testing.T) {
	e := MustParse("a || b && c || d")
	or, ok := e.(*expr.Or)
	require.True(t, ok)
	require.Len(t, or.Terms, 3)
	_, ok = or.Terms[1].(*expr.And)
	assert.True(t, ok)

	e = MustParse("x.a || x.b for any x of y")
	q, ok := e.(*expr.ForAny)
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, q.Names)
	_, ok = q.Body.(*expr.Or)
	assert.True(t, ok)

	e = MustParse("[a for any a of xs]")
	arr, ok := e.(*expr.ArrayLit)
	require.True(t, ok)
	_, ok = arr.Elems[0].(*expr.ForAny)
	assert.True(t, ok)

	e = MustParse("a.b.c(1)")
	mc, ok := e.(*expr.MemberCall)
	require.True(t, ok)
	assert.Equal(t, "a.b", mc.Target.String())
	assert.Equal(t, "c", mc.Name)
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want ir.IRValue
	}{
		{"42", ir.IRInt(42)},
		{"-42", ir.IRInt(-42)},
		{"-9223372036854775808", ir.IRInt(-9223372036854775808)},
		{"1.5", ir.IRFloat(1.5)},
		{"2.5E-3", ir.IRFloat(0.0025)},
		{"1e3", ir.IRFloat(1000)},
		{`"tab\there"`, ir.IRString("tab\there")},
		{`'it\'s "quoted"'`, ir.IRString(`it's "quoted"`)},
		{"true", ir.IRBool(true)},
		{"null", ir.Undefined},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			c, ok := e.(*expr.Constant)
			require.True(t, ok, "expected constant, got %T", e)
			assert.Equal(t, tt.want, c.Value)
		})
	}
}

func TestParseAggregates(t *testing.T) {
	e := MustParse("sum(total) / count()", WithAggregates("sum", "count"))
	b, ok := e.(*expr.Binary)
	require.True(t, ok)
	_, ok = b.Left.(*expr.Aggregate)
	assert.True(t, ok)
	_, ok = b.Right.(*expr.Aggregate)
	assert.True(t, ok)

	e = MustParse("sum(total)")
	_, ok = e.(*expr.Call)
	assert.True(t, ok, "aggregates are plain calls unless registered")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"", "syntax error at offset 0: unexpected end of input"},
		{"a +", "syntax error at offset 3: unexpected end of input"},
		{"a b", `syntax error at offset 2: unexpected identifier "b"`},
		{"(a", "syntax error at offset 2: unexpected end of input"},
		{`"open`, "syntax error at offset 0: unterminated string literal"},
		{"a # b", "syntax error at offset 2: unexpected character '#'"},
		{"12abc", `syntax error at offset 0: malformed number "12a"`},
		{"[x for a, b, c of y]", "syntax error at offset 15: at most two iterator names are allowed"},
		{"[x for of of y]", `syntax error at offset 7: unexpected identifier "of"`},
		{"99999999999999999999", "syntax error at offset 0: integer 99999999999999999999 out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestParseMaxDepth(t *testing.T) {
	src := ""
	for range 50 {
		src += "("
	}
	src += "x"
	for range 50 {
		src += ")"
	}

	_, err := Parse(src)
	require.NoError(t, err)

	_, err = Parse(src, WithMaxDepth(20))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested too deeply")
}

func TestParseThenEvaluate(t *testing.T) {
	e := MustParse(`items.size() > 1 && (x.price * x.qty > 100 for any x of items) && (status ?? "new") == "new"`)
	ctx := expr.NewContext(ir.IRObject{
		"items": ir.IRArray{
			ir.IRObject{"price": ir.IRFloat(12.5), "qty": ir.IRInt(10)},
			ir.IRObject{"price": ir.IRInt(1), "qty": ir.IRInt(1)},
		},
	})

	v, err := expr.Evaluate(e, ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.IRBool(true), v)
}
