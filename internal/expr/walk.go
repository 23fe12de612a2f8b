package expr

import (
	"slices"
	"strings"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the children of that node.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children() {
		Walk(c, fn)
	}
}

// Rewrite rebuilds e bottom-up: children are rewritten first, the node is
// rebuilt through Copy, and fn is applied to the result. Sub-trees that fn
// leaves unchanged keep their identity.
func Rewrite(e Expr, fn func(Expr) (Expr, error)) (Expr, error) {
	children := e.Children()
	var next []Expr
	for i, c := range children {
		r, err := Rewrite(c, fn)
		if err != nil {
			return nil, err
		}
		if next == nil && r != c {
			next = slices.Clone(children)
		}
		if next != nil {
			next[i] = r
		}
	}
	if next != nil {
		e = e.Copy(next)
	}
	return fn(e)
}

// Paths returns the free paths referenced by e, sorted and without
// duplicates. Paths rooted at a comprehension's iterator names inside its
// body are bound, not free, and are excluded.
func Paths(e Expr) []Path {
	seen := make(map[string]Path)
	collectPaths(e, nil, seen)
	out := make([]Path, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Path) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

func collectPaths(e Expr, bound []string, seen map[string]Path) {
	var body []Expr
	var source Expr
	var names []string
	switch n := e.(type) {
	case *NameRef:
		if !slices.Contains(bound, n.Path.Root()) {
			seen[n.Path.String()] = n.Path
		}
		return
	case *ForArray:
		body, names, source = []Expr{n.Yield}, n.Names, n.Source
	case *ForObject:
		body, names, source = []Expr{n.Key, n.Value}, n.Names, n.Source
	case *ForAny:
		body, names, source = []Expr{n.Body}, n.Names, n.Source
	case *ForAll:
		body, names, source = []Expr{n.Body}, n.Names, n.Source
	default:
		for _, c := range e.Children() {
			collectPaths(c, bound, seen)
		}
		return
	}
	collectPaths(source, bound, seen)
	inner := append(slices.Clone(bound), names...)
	for _, c := range body {
		collectPaths(c, inner, seen)
	}
}

// Equal reports structural equality. Constants compare with
// ir.Identical, so 1 and 1.0 are different expressions.
func Equal(a, b Expr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch x := a.(type) {
	case *Constant:
		y, ok := b.(*Constant)
		return ok && ir.Identical(x.Value, y.Value)
	case *NameRef:
		y, ok := b.(*NameRef)
		return ok && x.Path.Equal(y.Path)
	case *Unary:
		y, ok := b.(*Unary)
		if !ok || x.Op != y.Op {
			return false
		}
	case *Binary:
		y, ok := b.(*Binary)
		if !ok || x.Op != y.Op {
			return false
		}
	case *And:
		if _, ok := b.(*And); !ok {
			return false
		}
	case *Or:
		if _, ok := b.(*Or); !ok {
			return false
		}
	case *Call:
		y, ok := b.(*Call)
		if !ok || x.Name != y.Name {
			return false
		}
	case *Member:
		y, ok := b.(*Member)
		if !ok || x.Name != y.Name {
			return false
		}
	case *Index:
		if _, ok := b.(*Index); !ok {
			return false
		}
	case *MemberCall:
		y, ok := b.(*MemberCall)
		if !ok || x.Name != y.Name {
			return false
		}
	case *ArrayLit:
		if _, ok := b.(*ArrayLit); !ok {
			return false
		}
	case *ObjectLit:
		if _, ok := b.(*ObjectLit); !ok {
			return false
		}
	case *ForArray:
		y, ok := b.(*ForArray)
		if !ok || !slices.Equal(x.Names, y.Names) {
			return false
		}
	case *ForObject:
		y, ok := b.(*ForObject)
		if !ok || !slices.Equal(x.Names, y.Names) {
			return false
		}
	case *ForAny:
		y, ok := b.(*ForAny)
		if !ok || !slices.Equal(x.Names, y.Names) {
			return false
		}
	case *ForAll:
		y, ok := b.(*ForAll)
		if !ok || !slices.Equal(x.Names, y.Names) {
			return false
		}
	case *Aggregate:
		y, ok := b.(*Aggregate)
		if !ok || x.Name != y.Name {
			return false
		}
	default:
		return false
	}
	return slices.EqualFunc(a.Children(), b.Children(), Equal)
}
