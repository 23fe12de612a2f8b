package expr

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Method implements a function or method. target is nil for free
// functions.
type Method func(target ir.IRValue, args []ir.IRValue) (ir.IRValue, error)

// Variadic is the arity used to register a method accepting any number of
// arguments. Exact-arity entries take precedence.
const Variadic = -1

type methodKey struct {
	free  bool
	kind  ir.Kind
	name  string
	arity int
}

// MethodTable dispatches calls by receiver kind, member name and arity.
// A table must not be modified once it is shared with a context.
type MethodTable struct {
	methods map[methodKey]Method
}

// MethodError reports a call that matched no registered method.
type MethodError struct {
	Receiver ir.Kind
	Free     bool
	Name     string
	Arity    int
}

// Error implements the error interface.
func (e *MethodError) Error() string {
	if e.Free {
		return fmt.Sprintf("no function %s/%d", e.Name, e.Arity)
	}
	return fmt.Sprintf("no method %s/%d on %s", e.Name, e.Arity, e.Receiver)
}

// NewMethodTable returns an empty table.
func NewMethodTable() *MethodTable {
	return &MethodTable{methods: make(map[methodKey]Method)}
}

// Clone returns an independent copy that may be extended.
func (t *MethodTable) Clone() *MethodTable {
	return &MethodTable{methods: maps.Clone(t.methods)}
}

// Register adds a method for receivers of the given kinds.
func (t *MethodTable) Register(name string, arity int, fn Method, kinds ...ir.Kind) {
	for _, k := range kinds {
		t.methods[methodKey{kind: k, name: name, arity: arity}] = fn
	}
}

// RegisterFunc adds a free function.
func (t *MethodTable) RegisterFunc(name string, arity int, fn Method) {
	t.methods[methodKey{free: true, name: name, arity: arity}] = fn
}

// Call dispatches to the registered method.
func (t *MethodTable) Call(target ir.IRValue, name string, args []ir.IRValue) (ir.IRValue, error) {
	key := methodKey{free: target == nil, kind: ir.KindOf(target), name: name, arity: len(args)}
	if key.free {
		key.kind = ir.KindUndefined
	}
	fn, ok := t.methods[key]
	if !ok {
		key.arity = Variadic
		fn, ok = t.methods[key]
	}
	if !ok {
		return nil, &MethodError{Receiver: ir.KindOf(target), Free: target == nil, Name: name, Arity: len(args)}
	}
	return fn(target, args)
}

// defaultMethods is built once and never modified.
var defaultMethods = buildDefaultMethods()

// DefaultMethods returns a copy of the standard library of methods and
// functions.
func DefaultMethods() *MethodTable {
	return defaultMethods.Clone()
}

func buildDefaultMethods() *MethodTable {
	t := NewMethodTable()
	collections := []ir.Kind{ir.KindText, ir.KindSequence, ir.KindMapping}
	numbers := []ir.Kind{ir.KindInteger, ir.KindFloat}

	t.Register("size", 0, func(target ir.IRValue, _ []ir.IRValue) (ir.IRValue, error) {
		return size(target), nil
	}, collections...)
	t.Register("isEmpty", 0, func(target ir.IRValue, _ []ir.IRValue) (ir.IRValue, error) {
		return ir.IRBool(size(target) == ir.IRInt(0)), nil
	}, collections...)
	t.Register("contains", 1, func(target ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
		if ir.IsUndefined(args[0]) {
			return ir.IRBool(false), nil
		}
		ok, err := ir.Contains(target, args[0])
		return ir.IRBool(ok), err
	}, ir.KindText, ir.KindSequence)
	t.Register("containsKey", 1, func(target ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
		key, ok := args[0].(ir.IRString)
		if !ok {
			return ir.IRBool(false), nil
		}
		_, found := target.(ir.IRObject)[string(key)]
		return ir.IRBool(found), nil
	}, ir.KindMapping)
	t.Register("indexOf", 1, indexOf, ir.KindText, ir.KindSequence)
	t.Register("keys", 0, func(target ir.IRValue, _ []ir.IRValue) (ir.IRValue, error) {
		keys := target.(ir.IRObject).SortedKeys()
		out := make(ir.IRArray, len(keys))
		for i, k := range keys {
			out[i] = ir.IRString(k)
		}
		return out, nil
	}, ir.KindMapping)
	t.Register("values", 0, func(target ir.IRValue, _ []ir.IRValue) (ir.IRValue, error) {
		obj := target.(ir.IRObject)
		out := make(ir.IRArray, 0, len(obj))
		for _, k := range obj.SortedKeys() {
			out = append(out, obj[k])
		}
		return out, nil
	}, ir.KindMapping)

	t.Register("startsWith", 1, textPredicate(strings.HasPrefix), ir.KindText)
	t.Register("endsWith", 1, textPredicate(strings.HasSuffix), ir.KindText)
	t.Register("toUpperCase", 0, textTransform(strings.ToUpper), ir.KindText)
	t.Register("toLowerCase", 0, textTransform(strings.ToLower), ir.KindText)
	t.Register("trim", 0, textTransform(strings.TrimSpace), ir.KindText)
	t.Register("substring", 1, substring, ir.KindText)
	t.Register("substring", 2, substring, ir.KindText)

	t.Register("abs", 0, numeric(math.Abs, func(n int64) int64 {
		if n < 0 {
			return -n
		}
		return n
	}), numbers...)
	t.Register("floor", 0, rounding(math.Floor), numbers...)
	t.Register("ceil", 0, rounding(math.Ceil), numbers...)
	t.Register("round", 0, rounding(math.Round), numbers...)

	// Free functions take the receiver as their first argument.
	for _, name := range []string{"size", "abs", "floor", "ceil", "round"} {
		t.RegisterFunc(name, 1, asFunc(t, name))
	}
	t.RegisterFunc("min", Variadic, extremum("min", -1))
	t.RegisterFunc("max", Variadic, extremum("max", 1))
	t.RegisterFunc("str", 1, toText)
	t.RegisterFunc("int", 1, toInt)
	t.RegisterFunc("float", 1, toFloat)
	return t
}

// asFunc exposes the zero-arity method name as a one-argument function.
func asFunc(t *MethodTable, name string) Method {
	return func(_ ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
		if ir.IsUndefined(args[0]) {
			return ir.Undefined, nil
		}
		return t.Call(args[0], name, nil)
	}
}

func size(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		return ir.IRInt(utf8.RuneCountInString(string(val)))
	case ir.IRArray:
		return ir.IRInt(len(val))
	case ir.IRObject:
		return ir.IRInt(len(val))
	default:
		return ir.Undefined
	}
}

func indexOf(target ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
	switch val := target.(type) {
	case ir.IRString:
		sub, ok := args[0].(ir.IRString)
		if !ok {
			return nil, &ir.TypeError{Op: "indexOf", Left: ir.KindText, Right: ir.KindOf(args[0])}
		}
		i := strings.Index(string(val), string(sub))
		if i < 0 {
			return ir.IRInt(-1), nil
		}
		return ir.IRInt(utf8.RuneCountInString(string(val)[:i])), nil
	default:
		for i, elem := range val.(ir.IRArray) {
			if ir.Equal(elem, args[0]) {
				return ir.IRInt(i), nil
			}
		}
		return ir.IRInt(-1), nil
	}
}

func textPredicate(fn func(s, arg string) bool) Method {
	return func(target ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
		arg, ok := args[0].(ir.IRString)
		if !ok {
			return ir.IRBool(false), nil
		}
		return ir.IRBool(fn(string(target.(ir.IRString)), string(arg))), nil
	}
}

func textTransform(fn func(string) string) Method {
	return func(target ir.IRValue, _ []ir.IRValue) (ir.IRValue, error) {
		return ir.IRString(fn(string(target.(ir.IRString)))), nil
	}
}

// substring takes rune offsets [start, end). Offsets are clamped to the
// string.
func substring(target ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
	runes := []rune(string(target.(ir.IRString)))
	bounds := make([]int, len(args))
	for i, a := range args {
		n, ok := a.(ir.IRInt)
		if !ok {
			return nil, &ir.TypeError{Op: "substring", Left: ir.KindText, Right: ir.KindOf(a)}
		}
		bounds[i] = min(max(int(n), 0), len(runes))
	}
	end := len(runes)
	if len(bounds) == 2 {
		end = bounds[1]
	}
	if bounds[0] >= end {
		return ir.IRString(""), nil
	}
	return ir.IRString(string(runes[bounds[0]:end])), nil
}

func numeric(floatFn func(float64) float64, intFn func(int64) int64) Method {
	return func(target ir.IRValue, _ []ir.IRValue) (ir.IRValue, error) {
		if n, ok := target.(ir.IRInt); ok {
			return ir.IRInt(intFn(int64(n))), nil
		}
		return ir.IRFloat(floatFn(float64(target.(ir.IRFloat)))), nil
	}
}

// rounding leaves integers unchanged and rounds floats to an integer.
func rounding(fn func(float64) float64) Method {
	return func(target ir.IRValue, _ []ir.IRValue) (ir.IRValue, error) {
		if n, ok := target.(ir.IRInt); ok {
			return n, nil
		}
		f := fn(float64(target.(ir.IRFloat)))
		if f < math.MinInt64 || f >= math.MaxInt64 || math.IsNaN(f) {
			return ir.IRFloat(f), nil
		}
		return ir.IRInt(int64(f)), nil
	}
}

// extremum returns the least (dir -1) or greatest (dir 1) defined
// argument. A single sequence argument is expanded.
func extremum(op string, dir int) Method {
	return func(_ ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
		if len(args) == 1 {
			if seq, ok := args[0].(ir.IRArray); ok {
				args = seq
			}
		}
		var best ir.IRValue = ir.Undefined
		for _, a := range args {
			if ir.IsUndefined(a) {
				continue
			}
			if ir.IsUndefined(best) {
				best = a
				continue
			}
			c, err := ir.Compare(op, a, best)
			if err != nil {
				return nil, err
			}
			if c == dir {
				best = a
			}
		}
		return best, nil
	}
}

func toText(_ ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
	switch v := args[0].(type) {
	case ir.IRString:
		return v, nil
	case ir.IRUndefined:
		return ir.Undefined, nil
	case ir.IRInt:
		return ir.IRString(strconv.FormatInt(int64(v), 10)), nil
	case ir.IRBool:
		return ir.IRString(strconv.FormatBool(bool(v))), nil
	default:
		b, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, err
		}
		return ir.IRString(b), nil
	}
}

func toInt(_ ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
	switch v := args[0].(type) {
	case ir.IRInt, ir.IRUndefined:
		return v, nil
	case ir.IRFloat:
		return ir.IRInt(int64(v)), nil
	case ir.IRBool:
		if v {
			return ir.IRInt(1), nil
		}
		return ir.IRInt(0), nil
	case ir.IRString:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return ir.Undefined, nil
		}
		return ir.IRInt(n), nil
	default:
		return nil, &ir.TypeError{Op: "int", Left: v.Kind(), Unary: true}
	}
}

func toFloat(_ ir.IRValue, args []ir.IRValue) (ir.IRValue, error) {
	switch v := args[0].(type) {
	case ir.IRFloat, ir.IRUndefined:
		return v, nil
	case ir.IRInt:
		return ir.IRFloat(v), nil
	case ir.IRString:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return ir.Undefined, nil
		}
		return ir.IRFloat(f), nil
	default:
		return nil, &ir.TypeError{Op: "float", Left: v.Kind(), Unary: true}
	}
}
