package ir

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDivideByZero is returned by integer division and modulo by zero.
// Float division follows IEEE 754 instead.
var ErrDivideByZero = errors.New("division by zero")

// ErrNegativeShift is returned when a shift count is negative.
var ErrNegativeShift = errors.New("negative shift count")

// TypeError reports an operator applied to operand kinds for which no
// coercion rule exists.
type TypeError struct {
	Op    string
	Left  Kind
	Right Kind
	Unary bool
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	if e.Unary {
		return fmt.Sprintf("type error: operator %s not defined for %s", e.Op, e.Left)
	}
	return fmt.Sprintf("type error: operator %s not defined for %s and %s", e.Op, e.Left, e.Right)
}

// IsTypeError returns true if err is (or wraps) a *TypeError.
func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}

// kindPair keys the coercion matrix.
type kindPair struct {
	left, right Kind
}

type binaryFunc func(a, b IRValue) (IRValue, error)

// numericRules expands an integer and a float implementation into the four
// numeric kind pairs. Integer pairs stay exact; any float operand promotes
// both sides to float.
func numericRules(intFn func(a, b int64) (IRValue, error), floatFn func(a, b float64) IRValue) map[kindPair]binaryFunc {
	float := func(a, b IRValue) (IRValue, error) {
		return floatFn(toFloat(a), toFloat(b)), nil
	}
	return map[kindPair]binaryFunc{
		{KindInteger, KindInteger}: func(a, b IRValue) (IRValue, error) {
			return intFn(int64(a.(IRInt)), int64(b.(IRInt)))
		},
		{KindInteger, KindFloat}: float,
		{KindFloat, KindInteger}: float,
		{KindFloat, KindFloat}:   float,
	}
}

// integerRules covers operators that only accept integers (bitwise).
func integerRules(intFn func(a, b int64) (IRValue, error)) map[kindPair]binaryFunc {
	return map[kindPair]binaryFunc{
		{KindInteger, KindInteger}: func(a, b IRValue) (IRValue, error) {
			return intFn(int64(a.(IRInt)), int64(b.(IRInt)))
		},
	}
}

func toFloat(v IRValue) float64 {
	switch n := v.(type) {
	case IRInt:
		return float64(n)
	case IRFloat:
		return float64(n)
	default:
		return math.NaN()
	}
}

var (
	addRules = numericRules(
		func(a, b int64) (IRValue, error) { return IRInt(a + b), nil },
		func(a, b float64) IRValue { return IRFloat(a + b) },
	)
	subRules = numericRules(
		func(a, b int64) (IRValue, error) { return IRInt(a - b), nil },
		func(a, b float64) IRValue { return IRFloat(a - b) },
	)
	mulRules = numericRules(
		func(a, b int64) (IRValue, error) { return IRInt(a * b), nil },
		func(a, b float64) IRValue { return IRFloat(a * b) },
	)
	divRules = numericRules(
		func(a, b int64) (IRValue, error) {
			if b == 0 {
				return nil, ErrDivideByZero
			}
			return IRInt(a / b), nil
		},
		func(a, b float64) IRValue { return IRFloat(a / b) },
	)
	modRules = numericRules(
		func(a, b int64) (IRValue, error) {
			if b == 0 {
				return nil, ErrDivideByZero
			}
			return IRInt(a % b), nil
		},
		func(a, b float64) IRValue { return IRFloat(math.Mod(a, b)) },
	)
	bitAndRules = integerRules(func(a, b int64) (IRValue, error) { return IRInt(a & b), nil })
	bitOrRules  = integerRules(func(a, b int64) (IRValue, error) { return IRInt(a | b), nil })
	bitXorRules = integerRules(func(a, b int64) (IRValue, error) { return IRInt(a ^ b), nil })
	shlRules    = integerRules(func(a, b int64) (IRValue, error) {
		if b < 0 {
			return nil, ErrNegativeShift
		}
		return IRInt(a << b), nil
	})
	shrRules = integerRules(func(a, b int64) (IRValue, error) {
		if b < 0 {
			return nil, ErrNegativeShift
		}
		return IRInt(a >> b), nil
	})
)

func init() {
	addRules[kindPair{KindText, KindText}] = func(a, b IRValue) (IRValue, error) {
		return a.(IRString) + b.(IRString), nil
	}
	addRules[kindPair{KindSequence, KindSequence}] = func(a, b IRValue) (IRValue, error) {
		left, right := a.(IRArray), b.(IRArray)
		out := make(IRArray, 0, len(left)+len(right))
		out = append(out, left...)
		return append(out, right...), nil
	}
	addRules[kindPair{KindMapping, KindMapping}] = func(a, b IRValue) (IRValue, error) {
		left, right := a.(IRObject), b.(IRObject)
		out := make(IRObject, len(left)+len(right))
		for k, v := range left {
			out[k] = v
		}
		for k, v := range right {
			out[k] = v
		}
		return out, nil
	}
}

// apply looks up the rule for (kind(a), kind(b)). Undefined operands
// propagate as Undefined without consulting the matrix.
func apply(op string, rules map[kindPair]binaryFunc, a, b IRValue) (IRValue, error) {
	lk, rk := KindOf(a), KindOf(b)
	if lk == KindUndefined || rk == KindUndefined {
		return Undefined, nil
	}
	fn, ok := rules[kindPair{lk, rk}]
	if !ok {
		return nil, &TypeError{Op: op, Left: lk, Right: rk}
	}
	return fn(a, b)
}

// Add implements +: numeric sum, text and sequence concatenation, and
// right-biased mapping union.
func Add(a, b IRValue) (IRValue, error) { return apply("+", addRules, a, b) }

// Sub implements -.
func Sub(a, b IRValue) (IRValue, error) { return apply("-", subRules, a, b) }

// Mul implements *.
func Mul(a, b IRValue) (IRValue, error) { return apply("*", mulRules, a, b) }

// Div implements /. Integer division truncates toward zero.
func Div(a, b IRValue) (IRValue, error) { return apply("/", divRules, a, b) }

// Mod implements %.
func Mod(a, b IRValue) (IRValue, error) { return apply("%", modRules, a, b) }

// BitAnd implements &.
func BitAnd(a, b IRValue) (IRValue, error) { return apply("&", bitAndRules, a, b) }

// BitOr implements |.
func BitOr(a, b IRValue) (IRValue, error) { return apply("|", bitOrRules, a, b) }

// BitXor implements ^.
func BitXor(a, b IRValue) (IRValue, error) { return apply("^", bitXorRules, a, b) }

// Shl implements <<.
func Shl(a, b IRValue) (IRValue, error) { return apply("<<", shlRules, a, b) }

// Shr implements >>.
func Shr(a, b IRValue) (IRValue, error) { return apply(">>", shrRules, a, b) }

// Negate implements unary minus.
func Negate(v IRValue) (IRValue, error) {
	switch n := v.(type) {
	case nil, IRUndefined:
		return Undefined, nil
	case IRInt:
		return -n, nil
	case IRFloat:
		return -n, nil
	default:
		return nil, &TypeError{Op: "-", Left: v.Kind(), Unary: true}
	}
}

// BitNot implements unary ~.
func BitNot(v IRValue) (IRValue, error) {
	switch n := v.(type) {
	case nil, IRUndefined:
		return Undefined, nil
	case IRInt:
		return ^n, nil
	default:
		return nil, &TypeError{Op: "~", Left: v.Kind(), Unary: true}
	}
}

// Truthy reports the boolean interpretation of a value: Undefined is
// false, numbers are true when non-zero, text, sequences and mappings when
// non-empty.
func Truthy(v IRValue) bool {
	switch val := v.(type) {
	case nil, IRUndefined:
		return false
	case IRBool:
		return bool(val)
	case IRInt:
		return val != 0
	case IRFloat:
		return val != 0
	case IRString:
		return val != ""
	case IRArray:
		return len(val) > 0
	case IRObject:
		return len(val) > 0
	default:
		return false
	}
}

// Compare orders two defined values: numbers across kinds, text
// lexicographically, booleans with false before true. Other pairs are a
// type error. Callers handle Undefined before calling Compare.
func Compare(op string, a, b IRValue) (int, error) {
	lk, rk := KindOf(a), KindOf(b)
	switch {
	case lk == KindInteger && rk == KindInteger:
		return cmpOrdered(int64(a.(IRInt)), int64(b.(IRInt))), nil
	case lk.IsNumeric() && rk.IsNumeric():
		return cmpOrdered(toFloat(a), toFloat(b)), nil
	case lk == KindText && rk == KindText:
		return strings.Compare(string(a.(IRString)), string(b.(IRString))), nil
	case lk == KindBoolean && rk == KindBoolean:
		return cmpOrdered(boolRank(bool(a.(IRBool))), boolRank(bool(b.(IRBool)))), nil
	default:
		return 0, &TypeError{Op: op, Left: lk, Right: rk}
	}
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolRank(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Equal reports value equality. Numbers compare across kinds (1 == 1.0),
// sequences element-wise and mappings key-wise.
func Equal(a, b IRValue) bool {
	lk, rk := KindOf(a), KindOf(b)
	if lk.IsNumeric() && rk.IsNumeric() {
		if lk == KindInteger && rk == KindInteger {
			return a.(IRInt) == b.(IRInt)
		}
		return toFloat(a) == toFloat(b)
	}
	if lk != rk {
		return false
	}
	return sameComposite(a, b, Equal)
}

// Identical reports structural identity: like Equal, but an integer is
// never identical to a float. Used for expression equality.
func Identical(a, b IRValue) bool {
	lk, rk := KindOf(a), KindOf(b)
	if lk != rk {
		return false
	}
	if lk.IsNumeric() {
		if lk == KindInteger {
			return a.(IRInt) == b.(IRInt)
		}
		return a.(IRFloat) == b.(IRFloat)
	}
	return sameComposite(a, b, Identical)
}

// sameComposite compares two values of the same non-numeric kind using
// elem to compare nested values.
func sameComposite(a, b IRValue, elem func(a, b IRValue) bool) bool {
	switch left := a.(type) {
	case nil, IRUndefined:
		return true
	case IRString:
		return left == b.(IRString)
	case IRBool:
		return left == b.(IRBool)
	case IRArray:
		right := b.(IRArray)
		if len(left) != len(right) {
			return false
		}
		for i := range left {
			if !elem(left[i], right[i]) {
				return false
			}
		}
		return true
	case IRObject:
		right := b.(IRObject)
		if len(left) != len(right) {
			return false
		}
		for k, lv := range left {
			rv, ok := right[k]
			if !ok || !elem(lv, rv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Contains implements the in operator: element membership for sequences,
// key membership for mappings and substring search for text. An
// Undefined collection contains nothing.
func Contains(collection, item IRValue) (bool, error) {
	switch coll := collection.(type) {
	case nil, IRUndefined:
		return false, nil
	case IRArray:
		for _, elem := range coll {
			if Equal(elem, item) {
				return true, nil
			}
		}
		return false, nil
	case IRObject:
		key, ok := item.(IRString)
		if !ok {
			return false, nil
		}
		_, found := coll[string(key)]
		return found, nil
	case IRString:
		sub, ok := item.(IRString)
		if !ok {
			return false, &TypeError{Op: "in", Left: KindOf(item), Right: KindText}
		}
		return strings.Contains(string(coll), string(sub)), nil
	default:
		return false, &TypeError{Op: "in", Left: KindOf(item), Right: collection.Kind()}
	}
}
