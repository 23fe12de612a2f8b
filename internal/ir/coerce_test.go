package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmeticPromotion(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b IRValue) (IRValue, error)
		a, b IRValue
		want IRValue
	}{
		{"int plus int stays exact", Add, IRInt(1), IRInt(1), IRInt(2)},
		{"int plus float promotes", Add, IRInt(1), IRFloat(1), IRFloat(2)},
		{"float plus int promotes", Add, IRFloat(0.5), IRInt(1), IRFloat(1.5)},
		{"int minus int", Sub, IRInt(5), IRInt(7), IRInt(-2)},
		{"int times float", Mul, IRInt(3), IRFloat(0.5), IRFloat(1.5)},
		{"int division truncates", Div, IRInt(7), IRInt(2), IRInt(3)},
		{"float division", Div, IRInt(7), IRFloat(2), IRFloat(3.5)},
		{"int modulo", Mod, IRInt(7), IRInt(3), IRInt(1)},
		{"float modulo", Mod, IRFloat(7.5), IRInt(2), IRFloat(1.5)},
		{"bit and", BitAnd, IRInt(6), IRInt(3), IRInt(2)},
		{"bit or", BitOr, IRInt(6), IRInt(3), IRInt(7)},
		{"bit xor", BitXor, IRInt(6), IRInt(3), IRInt(5)},
		{"shift left", Shl, IRInt(1), IRInt(4), IRInt(16)},
		{"shift right", Shr, IRInt(16), IRInt(2), IRInt(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddCollections(t *testing.T) {
	got, err := Add(IRString("a"), IRString("b"))
	require.NoError(t, err)
	assert.Equal(t, IRString("ab"), got)

	got, err = Add(IRArray{IRInt(1), IRInt(2)}, IRArray{IRInt(2)})
	require.NoError(t, err)
	assert.Equal(t, IRArray{IRInt(1), IRInt(2), IRInt(2)}, got)

	left := IRObject{"a": IRInt(1)}
	got, err = Add(left, IRObject{"a": IRInt(2), "b": IRInt(3)})
	require.NoError(t, err)
	assert.Equal(t, IRObject{"a": IRInt(2), "b": IRInt(3)}, got)
	assert.Equal(t, IRObject{"a": IRInt(1)}, left, "operands must not be mutated")
}

func TestArithmeticUndefinedPropagates(t *testing.T) {
	for _, fn := range []func(a, b IRValue) (IRValue, error){Add, Sub, Mul, Div, Mod, BitAnd, Shl} {
		got, err := fn(IRInt(1), Undefined)
		require.NoError(t, err)
		assert.Equal(t, Undefined, got)

		got, err = fn(nil, IRString("x"))
		require.NoError(t, err)
		assert.Equal(t, Undefined, got)
	}

	got, err := Negate(Undefined)
	require.NoError(t, err)
	assert.Equal(t, Undefined, got)
}

func TestTypeErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b IRValue) (IRValue, error)
		a, b IRValue
		msg  string
	}{
		{"text plus int", Add, IRString("a"), IRInt(1), "operator + not defined for text and integer"},
		{"bitwise on float", BitAnd, IRFloat(1), IRInt(1), "operator & not defined for float and integer"},
		{"bitwise or on integral float", BitOr, IRInt(1), IRFloat(2), "operator | not defined for integer and float"},
		{"shift by integral float", Shl, IRInt(1), IRFloat(2), "operator << not defined for integer and float"},
		{"sequence minus", Sub, IRArray{}, IRArray{}, "operator - not defined for sequence and sequence"},
		{"mapping plus sequence", Add, IRObject{}, IRArray{}, "operator + not defined for mapping and sequence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn(tt.a, tt.b)
			require.Error(t, err)
			assert.True(t, IsTypeError(err))
			assert.Equal(t, "type error: "+tt.msg, err.Error())
		})
	}

	_, err := Negate(IRString("x"))
	assert.EqualError(t, err, "type error: operator - not defined for text")
	_, err = BitNot(IRFloat(1))
	assert.True(t, IsTypeError(err))
}

func TestDivideByZero(t *testing.T) {
	_, err := Div(IRInt(1), IRInt(0))
	assert.True(t, errors.Is(err, ErrDivideByZero))

	_, err = Mod(IRInt(1), IRInt(0))
	assert.True(t, errors.Is(err, ErrDivideByZero))

	got, err := Div(IRFloat(1), IRInt(0))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, got.Kind())

	_, err = Shl(IRInt(1), IRInt(-1))
	assert.True(t, errors.Is(err, ErrNegativeShift))
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(Undefined))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(IRInt(0)))
	assert.False(t, Truthy(IRFloat(0)))
	assert.False(t, Truthy(IRString("")))
	assert.False(t, Truthy(IRArray{}))
	assert.False(t, Truthy(IRObject{}))
	assert.True(t, Truthy(IRBool(true)))
	assert.True(t, Truthy(IRInt(-1)))
	assert.True(t, Truthy(IRString("x")))
	assert.True(t, Truthy(IRArray{Undefined}))
}

func TestCompare(t *testing.T) {
	c, err := Compare("<", IRInt(1), IRFloat(1.5))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare("<", IRString("b"), IRString("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = Compare("<", IRBool(false), IRBool(true))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = Compare("<", IRString("a"), IRInt(1))
	assert.True(t, IsTypeError(err))
}

func TestEqualAndIdentical(t *testing.T) {
	assert.True(t, Equal(IRInt(1), IRFloat(1)))
	assert.False(t, Identical(IRInt(1), IRFloat(1)))
	assert.True(t, Equal(IRArray{IRInt(1)}, IRArray{IRFloat(1)}))
	assert.False(t, Identical(IRArray{IRInt(1)}, IRArray{IRFloat(1)}))
	assert.True(t, Equal(IRObject{"a": IRString("x")}, IRObject{"a": IRString("x")}))
	assert.False(t, Equal(IRObject{"a": IRString("x")}, IRObject{"b": IRString("x")}))
	assert.False(t, Equal(IRString("1"), IRInt(1)))
	assert.True(t, Equal(Undefined, nil))
}

func TestContains(t *testing.T) {
	tests := []struct {
		name string
		coll IRValue
		item IRValue
		want bool
	}{
		{"sequence hit", IRArray{IRInt(1), IRInt(2)}, IRFloat(2), true},
		{"sequence miss", IRArray{IRInt(1)}, IRInt(3), false},
		{"mapping key", IRObject{"a": IRInt(1)}, IRString("a"), true},
		{"mapping non-text key", IRObject{"a": IRInt(1)}, IRInt(1), false},
		{"substring", IRString("hello"), IRString("ell"), true},
		{"undefined collection", Undefined, IRInt(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Contains(tt.coll, tt.item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Contains(IRInt(1), IRInt(1))
	assert.True(t, IsTypeError(err))
}
