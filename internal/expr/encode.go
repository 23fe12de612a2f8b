package expr

import (
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Encode returns the structural form of e as an ir value. Two expressions
// are Equal exactly when their encodings are Identical, which makes the
// encoding suitable for content hashing and JSON output.
func Encode(e Expr) ir.IRValue {
	switch n := e.(type) {
	case *Constant:
		return ir.IRObject{"const": orUndefined(n.Value)}
	case *NameRef:
		return ir.IRObject{"name": ir.IRString(n.Path.String())}
	case *Unary:
		return ir.IRObject{"op": ir.IRString(n.Op.Token()), "args": encodeAll(n.Children())}
	case *Binary:
		return ir.IRObject{"op": ir.IRString(n.Token()), "args": encodeAll(n.Children())}
	case *And:
		return ir.IRObject{"op": ir.IRString(n.Token()), "args": encodeAll(n.Terms)}
	case *Or:
		return ir.IRObject{"op": ir.IRString(n.Token()), "args": encodeAll(n.Terms)}
	case *Call:
		return ir.IRObject{"call": ir.IRString(n.Name), "args": encodeAll(n.Args)}
	case *Member:
		return ir.IRObject{"member": ir.IRString(n.Name), "target": Encode(n.Target)}
	case *Index:
		return ir.IRObject{"op": ir.IRString("[]"), "args": encodeAll(n.Children())}
	case *MemberCall:
		return ir.IRObject{
			"call":   ir.IRString(n.Name),
			"target": Encode(n.Target),
			"args":   encodeAll(n.Args),
		}
	case *ArrayLit:
		return ir.IRObject{"array": encodeAll(n.Elems)}
	case *ObjectLit:
		entries := make(ir.IRArray, len(n.Entries))
		for i, entry := range n.Entries {
			entries[i] = ir.IRArray{Encode(entry.Key), Encode(entry.Value)}
		}
		return ir.IRObject{"object": entries}
	case *ForArray:
		return ir.IRObject{
			"for":    ir.IRString("array"),
			"names":  encodeNames(n.Names),
			"yield":  Encode(n.Yield),
			"source": Encode(n.Source),
		}
	case *ForObject:
		return ir.IRObject{
			"for":    ir.IRString("object"),
			"names":  encodeNames(n.Names),
			"key":    Encode(n.Key),
			"value":  Encode(n.Value),
			"source": Encode(n.Source),
		}
	case *ForAny:
		return encodeQuantifier("any", n.Names, n.Body, n.Source)
	case *ForAll:
		return encodeQuantifier("all", n.Names, n.Body, n.Source)
	case *Aggregate:
		return ir.IRObject{"aggregate": ir.IRString(n.Name), "args": encodeAll(n.Args)}
	default:
		return ir.Undefined
	}
}

func encodeAll(exprs []Expr) ir.IRArray {
	out := make(ir.IRArray, len(exprs))
	for i, e := range exprs {
		out[i] = Encode(e)
	}
	return out
}

func encodeNames(names []string) ir.IRArray {
	out := make(ir.IRArray, len(names))
	for i, n := range names {
		out[i] = ir.IRString(n)
	}
	return out
}

func encodeQuantifier(kind string, names []string, body, source Expr) ir.IRValue {
	return ir.IRObject{
		"for":    ir.IRString(kind),
		"names":  encodeNames(names),
		"body":   Encode(body),
		"source": Encode(source),
	}
}

func orUndefined(v ir.IRValue) ir.IRValue {
	if v == nil {
		return ir.Undefined
	}
	return v
}

// Key returns a content hash of e's structure. Expressions have the same
// Key exactly when they are Equal.
func Key(e Expr) string {
	h, err := ir.Hash(ir.DomainExpression, Encode(e))
	if err != nil {
		// Non-finite float constants have no canonical encoding; the
		// rendering still identifies them.
		return ir.MustHash(ir.DomainExpression, ir.IRArray{ir.IRString("text"), ir.IRString(Render(e))})
	}
	return h
}
