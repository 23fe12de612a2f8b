package expr

import "slices"

// Renamer maps a free path to the path it should be resolved as. A nil
// Renamer leaves paths unchanged.
type Renamer func(Path) Path

// Bind resolves free names of e against ctx and folds every node whose
// children are all constants into a single Constant. A comprehension is
// folded when its source is constant and its body refers to nothing but
// its own iterator names.
//
// Names are renamed first; a renamed name whose root is bound in ctx
// becomes a Constant, otherwise it stays a NameRef for evaluation time.
// Unchanged sub-trees are returned as-is, so Bind(e) == e when there is
// nothing to resolve or fold. Aggregate nodes are never folded.
//
// Bind does not check types. It fails only when folding a constant
// sub-tree fails, and returns that evaluation error unchanged.
func Bind(e Expr, ctx Context, rename Renamer) (Expr, error) {
	b := &binder{ctx: ctx, rename: rename}
	return b.bind(e)
}

type binder struct {
	ctx    Context
	rename Renamer
}

// scoped returns a binder for the body of a comprehension: iterator names
// are hidden from the context and never renamed.
func (b *binder) scoped(names []string) *binder {
	rename := b.rename
	if rename != nil {
		rename = func(p Path) Path {
			if slices.Contains(names, p.Root()) {
				return p
			}
			return b.rename(p)
		}
	}
	return &binder{ctx: shadow(b.ctx, names), rename: rename}
}

func (b *binder) bind(e Expr) (Expr, error) {
	switch n := e.(type) {
	case *Constant:
		return n, nil
	case *NameRef:
		return b.bindName(n), nil
	case *Aggregate:
		children, err := b.bindAll(n.Args)
		if err != nil {
			return nil, err
		}
		return n.Copy(children), nil
	case *ForArray:
		return b.bindScoped(n, n.Names, []Expr{n.Yield}, n.Source)
	case *ForObject:
		return b.bindScoped(n, n.Names, []Expr{n.Key, n.Value}, n.Source)
	case *ForAny:
		return b.bindScoped(n, n.Names, []Expr{n.Body}, n.Source)
	case *ForAll:
		return b.bindScoped(n, n.Names, []Expr{n.Body}, n.Source)
	default:
		children, err := b.bindAll(e.Children())
		if err != nil {
			return nil, err
		}
		return b.fold(e.Copy(children), children)
	}
}

func (b *binder) bindName(n *NameRef) Expr {
	p := n.Path
	if b.rename != nil {
		p = b.rename(p)
	}
	if v, ok := b.ctx.Get(p.Root()); ok {
		return Const(descend(v, p[1:]))
	}
	if p.Equal(n.Path) {
		return n
	}
	return &NameRef{Path: p}
}

func (b *binder) bindAll(exprs []Expr) ([]Expr, error) {
	var out []Expr
	for i, e := range exprs {
		bound, err := b.bind(e)
		if err != nil {
			return nil, err
		}
		if out == nil && bound != e {
			out = make([]Expr, len(exprs))
			copy(out, exprs[:i])
		}
		if out != nil {
			out[i] = bound
		}
	}
	if out == nil {
		return exprs, nil
	}
	return out, nil
}

// bindScoped binds the body expressions under a scope hiding names and
// the source under the outer scope. Children are laid out body first,
// source last, matching the Children order of every comprehension.
func (b *binder) bindScoped(n Expr, names []string, body []Expr, source Expr) (Expr, error) {
	boundBody, err := b.scoped(names).bindAll(body)
	if err != nil {
		return nil, err
	}
	boundSource, err := b.bind(source)
	if err != nil {
		return nil, err
	}
	children := append(slices.Clone(boundBody), boundSource)
	rebuilt := n.Copy(children)
	if IsConstant(boundSource) && closed(rebuilt) {
		return b.fold(rebuilt, nil)
	}
	return b.fold(rebuilt, children)
}

// closed reports whether e has no free paths and no aggregates, so its
// value depends only on the context's functions.
func closed(e Expr) bool {
	if len(Paths(e)) > 0 {
		return false
	}
	ok := true
	Walk(e, func(n Expr) bool {
		if _, agg := n.(*Aggregate); agg {
			ok = false
		}
		return ok
	})
	return ok
}

// fold evaluates e when all of its children are constants.
func (b *binder) fold(e Expr, children []Expr) (Expr, error) {
	if _, ok := e.(*Constant); ok {
		return e, nil
	}
	for _, c := range children {
		if !IsConstant(c) {
			return e, nil
		}
	}
	v, err := Evaluate(e, b.ctx)
	if err != nil {
		return nil, err
	}
	return Const(v), nil
}
