package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

func TestCopySameChildrenReturnsReceiver(t *testing.T) {
	nodes := []Expr{
		i(1),
		Ref("a.b"),
		&Unary{Op: OpNot, Operand: Ref("a")},
		bin(OpAdd, Ref("a"), i(1)),
		NewAnd(Ref("a"), Ref("b")),
		NewOr(),
		&Call{Name: "f", Args: []Expr{i(1)}},
		&Member{Target: &Call{Name: "f"}, Name: "x"},
		&Index{Target: Ref("a"), Index: i(0)},
		&MemberCall{Target: Ref("a"), Name: "m", Args: []Expr{i(1), i(2)}},
		&ArrayLit{Elems: []Expr{i(1)}},
		&ObjectLit{Entries: []Entry{{Key: s("k"), Value: i(1)}}},
		&ForArray{Yield: Ref("x"), Names: []string{"x"}, Source: Ref("y")},
		&ForObject{Key: Ref("x"), Value: i(1), Names: []string{"x"}, Source: Ref("y")},
		&ForAny{Body: Ref("x"), Names: []string{"x"}, Source: Ref("y")},
		&ForAll{Body: Ref("x"), Names: []string{"x"}, Source: Ref("y")},
		&Aggregate{Name: "sum", Args: []Expr{Ref("x")}},
	}

	for _, n := range nodes {
		t.Run(n.String(), func(t *testing.T) {
			assert.Same(t, n, n.Copy(n.Children()))
		})
	}
}

func TestCopyWithNewChildren(t *testing.T) {
	orig := &MemberCall{Target: Ref("a"), Name: "m", Args: []Expr{i(1)}}
	next := orig.Copy([]Expr{Ref("b"), i(2)})

	mc, ok := next.(*MemberCall)
	require.True(t, ok)
	assert.NotSame(t, orig, mc)
	assert.Equal(t, "m", mc.Name)
	assert.Equal(t, "b.m(2)", mc.String())
	assert.Equal(t, "a.m(1)", orig.String())

	assert.Panics(t, func() { bin(OpAdd, i(1), i(2)).Copy([]Expr{i(1)}) })
}

func TestBindFoldsConstants(t *testing.T) {
	e := bin(OpAdd, bin(OpMul, i(2), i(3)), Ref("x"))

	bound, err := Bind(e, Empty(), nil)
	require.NoError(t, err)
	assert.Equal(t, "6 + x", bound.String())

	bound, err = Bind(e, NewContext(ir.IRObject{"x": ir.IRInt(4)}), nil)
	require.NoError(t, err)
	require.True(t, IsConstant(bound))
	assert.Equal(t, ir.IRInt(10), bound.(*Constant).Value)
}

func TestBindConstantTreeMatchesEvaluate(t *testing.T) {
	exprs := []Expr{
		bin(OpAdd, i(1), f(1)),
		NewOr(bin(OpLt, i(1), i(2)), b(false)),
		&MemberCall{Target: s("abc"), Name: "substring", Args: []Expr{i(1)}},
		&ForArray{Yield: bin(OpMul, Ref("x"), i(2)), Names: []string{"x"}, Source: &ArrayLit{Elems: []Expr{i(1), i(2)}}},
		&ForAny{Body: bin(OpGt, Ref("x"), i(1)), Names: []string{"x"}, Source: &ArrayLit{Elems: []Expr{i(1), i(2)}}},
	}

	for _, e := range exprs {
		t.Run(e.String(), func(t *testing.T) {
			want, err := Evaluate(e, Empty())
			require.NoError(t, err)

			bound, err := Bind(e, Empty(), nil)
			require.NoError(t, err)
			require.True(t, IsConstant(bound), "expected constant, got %s", bound)
			assert.True(t, ir.Identical(want, bound.(*Constant).Value))

			again, err := Bind(bound, Empty(), nil)
			require.NoError(t, err)
			assert.Same(t, bound, again)
		})
	}
}

func TestBindUnchangedReturnsSameTree(t *testing.T) {
	e := NewAnd(bin(OpEq, Ref("a"), Ref("b")), &MemberCall{Target: Ref("c"), Name: "size"})

	bound, err := Bind(e, Empty(), nil)
	require.NoError(t, err)
	assert.Same(t, e, bound)
}

func TestBindSharesUnchangedSubtrees(t *testing.T) {
	untouched := bin(OpEq, Ref("a"), Ref("b"))
	e := NewAnd(untouched, bin(OpEq, Ref("c"), i(1)))

	bound, err := Bind(e, NewContext(ir.IRObject{"c": ir.IRInt(1)}), nil)
	require.NoError(t, err)

	and, ok := bound.(*And)
	require.True(t, ok)
	assert.Same(t, untouched, and.Terms[0])
	assert.Equal(t, ir.IRBool(true), and.Terms[1].(*Constant).Value)
}

func TestBindRenamesFreePaths(t *testing.T) {
	rename := func(p Path) Path {
		if p.Root() == "this" {
			return append(Path{"row"}, p.Tail()...)
		}
		return p
	}
	e := bin(OpGt, Ref("this.total"), Ref("limit"))

	bound, err := Bind(e, Empty(), rename)
	require.NoError(t, err)
	assert.Equal(t, "row.total > limit", bound.String())
}

func TestBindComprehensionShadowsIterator(t *testing.T) {
	// x inside the body refers to the iterator, not the outer x.
	e := &ForAny{Body: bin(OpEq, Ref("x"), Ref("target")), Names: []string{"x"}, Source: Ref("xs")}
	ctx := NewContext(ir.IRObject{"x": ir.IRInt(99), "target": ir.IRInt(2)})

	bound, err := Bind(e, ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "x == 2 for any x of xs", bound.String())

	v, err := Evaluate(bound, NewContext(ir.IRObject{"xs": ir.IRArray{ir.IRInt(1), ir.IRInt(2)}}))
	require.NoError(t, err)
	assert.Equal(t, ir.IRBool(true), v)
}

func TestBindComprehensionRenamerSkipsIterator(t *testing.T) {
	rename := func(p Path) Path { return append(Path{"outer"}, p...) }
	e := &ForArray{Yield: bin(OpAdd, Ref("x.n"), Ref("k")), Names: []string{"x"}, Source: Ref("xs")}

	bound, err := Bind(e, Empty(), rename)
	require.NoError(t, err)
	assert.Equal(t, "[x.n + outer.k for x of outer.xs]", bound.String())
}

func TestBindNeverFoldsAggregates(t *testing.T) {
	e := &Aggregate{Name: "sum", Args: []Expr{bin(OpAdd, i(1), i(2))}}

	bound, err := Bind(e, Empty(), nil)
	require.NoError(t, err)
	agg, ok := bound.(*Aggregate)
	require.True(t, ok)
	assert.Equal(t, "sum(3)", agg.String())
}

func TestBindPropagatesFoldErrors(t *testing.T) {
	_, err := Bind(bin(OpAdd, Ref("x"), bin(OpDiv, i(1), i(0))), Empty(), nil)
	assert.Same(t, ir.ErrDivideByZero, err)

	_, err = Bind(bin(OpSub, s("a"), i(1)), Empty(), nil)
	var te *ir.TypeError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, "-", te.Op)
}

func TestContextWithDoesNotMutateParent(t *testing.T) {
	root := NewContext(ir.IRObject{"a": ir.IRInt(1)})
	child := root.With(map[string]ir.IRValue{"a": ir.IRInt(2), "b": ir.IRInt(3)})
	sibling := root.With(map[string]ir.IRValue{"b": ir.IRInt(4)})

	v, _ := root.Get("a")
	assert.Equal(t, ir.IRInt(1), v)
	_, ok := root.Get("b")
	assert.False(t, ok)

	v, _ = child.Get("a")
	assert.Equal(t, ir.IRInt(2), v)
	v, _ = sibling.Get("b")
	assert.Equal(t, ir.IRInt(4), v)
	v, _ = sibling.Get("a")
	assert.Equal(t, ir.IRInt(1), v)

	grandchild := child.With(map[string]ir.IRValue{"c": ir.IRInt(5)})
	assert.Equal(t, ir.IRInt(3), Lookup(grandchild, Path{"b"}))
}

func TestMethodTable(t *testing.T) {
	table := DefaultMethods()
	table.Register("double", 0, func(target ir.IRValue, _ []ir.IRValue) (ir.IRValue, error) {
		return ir.Mul(target, ir.IRInt(2))
	}, ir.KindInteger)

	ctx := NewContext(nil, WithMethods(table))
	v, err := ctx.Call(ir.IRInt(4), "double", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(8), v)

	// The default table is unaffected.
	_, err = Empty().Call(ir.IRInt(4), "double", nil)
	assert.EqualError(t, err, "no method double/0 on integer")

	_, err = ctx.Call(ir.IRString("x"), "substring", []ir.IRValue{ir.IRInt(0), ir.IRInt(1), ir.IRInt(2)})
	assert.EqualError(t, err, "no method substring/3 on text")
}

func TestDefaultMethods(t *testing.T) {
	tests := []struct {
		name   string
		target ir.IRValue
		member string
		args   []ir.IRValue
		want   ir.IRValue
	}{
		{"text size counts runes", ir.IRString("hé"), "size", nil, ir.IRInt(2)},
		{"startsWith", ir.IRString("basestar"), "startsWith", []ir.IRValue{ir.IRString("base")}, ir.IRBool(true)},
		{"endsWith", ir.IRString("basestar"), "endsWith", []ir.IRValue{ir.IRString("x")}, ir.IRBool(false)},
		{"substring range", ir.IRString("basestar"), "substring", []ir.IRValue{ir.IRInt(4), ir.IRInt(8)}, ir.IRString("star")},
		{"substring clamps", ir.IRString("abc"), "substring", []ir.IRValue{ir.IRInt(2), ir.IRInt(99)}, ir.IRString("c")},
		{"text indexOf", ir.IRString("abc"), "indexOf", []ir.IRValue{ir.IRString("c")}, ir.IRInt(2)},
		{"sequence indexOf", ir.IRArray{ir.IRInt(1), ir.IRInt(2)}, "indexOf", []ir.IRValue{ir.IRFloat(2)}, ir.IRInt(1)},
		{"sequence contains", ir.IRArray{ir.IRInt(1)}, "contains", []ir.IRValue{ir.IRInt(1)}, ir.IRBool(true)},
		{"keys sorted", ir.IRObject{"b": ir.IRInt(1), "a": ir.IRInt(2)}, "keys", nil, ir.IRArray{ir.IRString("a"), ir.IRString("b")}},
		{"values by key", ir.IRObject{"b": ir.IRInt(1), "a": ir.IRInt(2)}, "values", nil, ir.IRArray{ir.IRInt(2), ir.IRInt(1)}},
		{"containsKey", ir.IRObject{"a": ir.IRInt(1)}, "containsKey", []ir.IRValue{ir.IRString("a")}, ir.IRBool(true)},
		{"isEmpty", ir.IRArray{}, "isEmpty", nil, ir.IRBool(true)},
		{"isEmpty with elements", ir.IRArray{ir.IRInt(0)}, "isEmpty", nil, ir.IRBool(false)},
		{"isEmpty text", ir.IRString("a"), "isEmpty", nil, ir.IRBool(false)},
		{"isEmpty mapping", ir.IRObject{}, "isEmpty", nil, ir.IRBool(true)},
		{"abs int", ir.IRInt(-3), "abs", nil, ir.IRInt(3)},
		{"floor float", ir.IRFloat(2.7), "floor", nil, ir.IRInt(2)},
		{"ceil int", ir.IRInt(2), "ceil", nil, ir.IRInt(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Empty().Call(tt.target, tt.member, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFreeConversions(t *testing.T) {
	call := func(name string, arg ir.IRValue) ir.IRValue {
		v, err := Empty().Call(nil, name, []ir.IRValue{arg})
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, ir.IRInt(42), call("int", ir.IRString(" 42 ")))
	assert.Equal(t, ir.Undefined, call("int", ir.IRString("x")))
	assert.Equal(t, ir.IRInt(2), call("int", ir.IRFloat(2.9)))
	assert.Equal(t, ir.IRFloat(1.5), call("float", ir.IRString("1.5")))
	assert.Equal(t, ir.IRString("[1,2]"), call("str", ir.IRArray{ir.IRInt(1), ir.IRInt(2)}))
	assert.Equal(t, ir.IRInt(3), call("size", ir.IRString("abc")))
	assert.Equal(t, ir.Undefined, call("size", ir.Undefined))
}
