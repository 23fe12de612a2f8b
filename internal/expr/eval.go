package expr

import (
	"errors"
	"fmt"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// ErrUngroupedAggregate is returned when an Aggregate node is evaluated
// against a single context instead of through the aggregate engine.
var ErrUngroupedAggregate = errors.New("aggregate evaluated outside a group")

// ErrIteratorArity is returned by comprehensions declaring other than one
// or two iterator names.
var ErrIteratorArity = errors.New("comprehension requires one or two iterator names")

// Evaluate computes the value of e against ctx.
//
// Missing variables evaluate to Undefined; operators decide how Undefined
// propagates. Errors from the coercion matrix are returned unwrapped.
func Evaluate(e Expr, ctx Context) (ir.IRValue, error) {
	switch n := e.(type) {
	case *Constant:
		return n.Value, nil
	case *NameRef:
		return Lookup(ctx, n.Path), nil
	case *Unary:
		v, err := Evaluate(n.Operand, ctx)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case OpNegate:
			return ir.Negate(v)
		case OpBitNot:
			return ir.BitNot(v)
		default:
			return ir.IRBool(!ir.Truthy(v)), nil
		}
	case *Binary:
		return evalBinary(n, ctx)
	case *And:
		for _, term := range n.Terms {
			v, err := Evaluate(term, ctx)
			if err != nil {
				return nil, err
			}
			if !ir.Truthy(v) {
				return ir.IRBool(false), nil
			}
		}
		return ir.IRBool(true), nil
	case *Or:
		for _, term := range n.Terms {
			v, err := Evaluate(term, ctx)
			if err != nil {
				return nil, err
			}
			if ir.Truthy(v) {
				return ir.IRBool(true), nil
			}
		}
		return ir.IRBool(false), nil
	case *Call:
		args, err := evalAll(n.Args, ctx)
		if err != nil {
			return nil, err
		}
		return ctx.Call(nil, n.Name, args)
	case *Member:
		target, err := Evaluate(n.Target, ctx)
		if err != nil {
			return nil, err
		}
		return member(target, n.Name)
	case *Index:
		return evalIndex(n, ctx)
	case *MemberCall:
		target, err := Evaluate(n.Target, ctx)
		if err != nil {
			return nil, err
		}
		if ir.IsUndefined(target) {
			return ir.Undefined, nil
		}
		args, err := evalAll(n.Args, ctx)
		if err != nil {
			return nil, err
		}
		return ctx.Call(target, n.Name, args)
	case *ArrayLit:
		elems, err := evalAll(n.Elems, ctx)
		if err != nil {
			return nil, err
		}
		return ir.IRArray(elems), nil
	case *ObjectLit:
		out := make(ir.IRObject, len(n.Entries))
		for _, entry := range n.Entries {
			if err := evalEntry(out, entry.Key, entry.Value, ctx); err != nil {
				return nil, err
			}
		}
		return out, nil
	case *ForArray:
		out := ir.IRArray{}
		found, err := iterate(n.Names, n.Source, ctx, func(scope Context) (bool, error) {
			v, err := Evaluate(n.Yield, scope)
			if err != nil {
				return false, err
			}
			out = append(out, v)
			return true, nil
		})
		if err != nil || !found {
			return ir.Undefined, err
		}
		return out, nil
	case *ForObject:
		out := ir.IRObject{}
		found, err := iterate(n.Names, n.Source, ctx, func(scope Context) (bool, error) {
			return true, evalEntry(out, n.Key, n.Value, scope)
		})
		if err != nil || !found {
			return ir.Undefined, err
		}
		return out, nil
	case *ForAny:
		result := false
		_, err := iterate(n.Names, n.Source, ctx, func(scope Context) (bool, error) {
			v, err := Evaluate(n.Body, scope)
			if err != nil {
				return false, err
			}
			result = ir.Truthy(v)
			return !result, nil
		})
		if err != nil {
			return nil, err
		}
		return ir.IRBool(result), nil
	case *ForAll:
		result := true
		found, err := iterate(n.Names, n.Source, ctx, func(scope Context) (bool, error) {
			v, err := Evaluate(n.Body, scope)
			if err != nil {
				return false, err
			}
			result = ir.Truthy(v)
			return result, nil
		})
		if err != nil {
			return nil, err
		}
		return ir.IRBool(found && result), nil
	case *Aggregate:
		return nil, fmt.Errorf("%s: %w", n.Name, ErrUngroupedAggregate)
	default:
		return nil, fmt.Errorf("evaluate: unknown node type %T", e)
	}
}

func evalAll(exprs []Expr, ctx Context) ([]ir.IRValue, error) {
	out := make([]ir.IRValue, len(exprs))
	for i, e := range exprs {
		v, err := Evaluate(e, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func evalBinary(n *Binary, ctx Context) (ir.IRValue, error) {
	left, err := Evaluate(n.Left, ctx)
	if err != nil {
		return nil, err
	}
	if n.Op == OpCoalesce {
		if !ir.IsUndefined(left) {
			return left, nil
		}
		return Evaluate(n.Right, ctx)
	}
	right, err := Evaluate(n.Right, ctx)
	if err != nil {
		return nil, err
	}
	if n.Op.IsComparison() {
		if ir.IsUndefined(left) || ir.IsUndefined(right) {
			return ir.IRBool(false), nil
		}
		ok, err := compare(n.Op, left, right)
		if err != nil {
			return nil, err
		}
		return ir.IRBool(ok), nil
	}
	return arithmetic(n.Op, left, right)
}

func compare(op BinaryOp, left, right ir.IRValue) (bool, error) {
	switch op {
	case OpEq:
		return ir.Equal(left, right), nil
	case OpNe:
		return !ir.Equal(left, right), nil
	case OpIn:
		return ir.Contains(right, left)
	}
	c, err := ir.Compare(op.Token(), left, right)
	if err != nil {
		return false, err
	}
	switch op {
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

// arithmetic applies a non-comparison binary operator to two values.
func arithmetic(op BinaryOp, left, right ir.IRValue) (ir.IRValue, error) {
	switch op {
	case OpAdd:
		return ir.Add(left, right)
	case OpSub:
		return ir.Sub(left, right)
	case OpMul:
		return ir.Mul(left, right)
	case OpDiv:
		return ir.Div(left, right)
	case OpMod:
		return ir.Mod(left, right)
	case OpBitAnd:
		return ir.BitAnd(left, right)
	case OpBitOr:
		return ir.BitOr(left, right)
	case OpBitXor:
		return ir.BitXor(left, right)
	case OpShl:
		return ir.Shl(left, right)
	case OpShr:
		return ir.Shr(left, right)
	default:
		return nil, fmt.Errorf("evaluate: unknown operator %s", op.Token())
	}
}

func member(target ir.IRValue, name string) (ir.IRValue, error) {
	switch t := target.(type) {
	case nil, ir.IRUndefined:
		return ir.Undefined, nil
	case ir.IRObject:
		return t.Get(name), nil
	default:
		return nil, &ir.TypeError{Op: "." + name, Left: target.Kind(), Unary: true}
	}
}

func evalIndex(n *Index, ctx Context) (ir.IRValue, error) {
	target, err := Evaluate(n.Target, ctx)
	if err != nil {
		return nil, err
	}
	idx, err := Evaluate(n.Index, ctx)
	if err != nil {
		return nil, err
	}
	if ir.IsUndefined(target) || ir.IsUndefined(idx) {
		return ir.Undefined, nil
	}
	switch t := target.(type) {
	case ir.IRArray:
		if i, ok := idx.(ir.IRInt); ok {
			if i < 0 || int(i) >= len(t) {
				return ir.Undefined, nil
			}
			return t[i], nil
		}
	case ir.IRObject:
		if key, ok := idx.(ir.IRString); ok {
			return t.Get(string(key)), nil
		}
	}
	return nil, &ir.TypeError{Op: "[]", Left: target.Kind(), Right: idx.Kind()}
}

func evalEntry(out ir.IRObject, keyExpr, valueExpr Expr, ctx Context) error {
	k, err := Evaluate(keyExpr, ctx)
	if err != nil {
		return err
	}
	key, ok := k.(ir.IRString)
	if !ok {
		return &ir.TypeError{Op: "{:}", Left: ir.KindOf(k), Unary: true}
	}
	v, err := Evaluate(valueExpr, ctx)
	if err != nil {
		return err
	}
	out[string(key)] = v
	return nil
}

// iterate evaluates source and calls fn with a scope for every element
// until fn returns false. found is false when the source is Undefined.
func iterate(names []string, source Expr, ctx Context, fn func(scope Context) (bool, error)) (found bool, err error) {
	if len(names) < 1 || len(names) > 2 {
		return false, fmt.Errorf("%w: got %d", ErrIteratorArity, len(names))
	}
	src, err := Evaluate(source, ctx)
	if err != nil {
		return false, err
	}
	bind := func(k, v ir.IRValue) map[string]ir.IRValue {
		if len(names) == 1 {
			return map[string]ir.IRValue{names[0]: v}
		}
		return map[string]ir.IRValue{names[0]: k, names[1]: v}
	}
	switch s := src.(type) {
	case nil, ir.IRUndefined:
		return false, nil
	case ir.IRArray:
		for i, elem := range s {
			more, err := fn(ctx.With(bind(ir.IRInt(i), elem)))
			if err != nil || !more {
				return true, err
			}
		}
		return true, nil
	case ir.IRObject:
		for _, k := range s.SortedKeys() {
			more, err := fn(ctx.With(bind(ir.IRString(k), s[k])))
			if err != nil || !more {
				return true, err
			}
		}
		return true, nil
	default:
		return false, &ir.TypeError{Op: "for", Left: src.Kind(), Unary: true}
	}
}
