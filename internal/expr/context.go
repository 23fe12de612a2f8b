package expr

import (
	"maps"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Context supplies variable values and method dispatch to the evaluator.
//
// Implementations must be safe for concurrent reads: the engine never
// mutates a context, and With returns a new logical context instead of
// modifying the receiver.
type Context interface {
	// Get returns the value bound to a top-level name.
	Get(name string) (ir.IRValue, bool)

	// Call invokes member on target with args. A nil target calls a free
	// function.
	Call(target ir.IRValue, member string, args []ir.IRValue) (ir.IRValue, error)

	// With returns a context in which bindings shadow the receiver's names.
	With(bindings map[string]ir.IRValue) Context
}

// ContextOption configures a root context.
type ContextOption func(*mapContext)

// WithMethods sets the method table used for Call. The default is
// DefaultMethods().
func WithMethods(m *MethodTable) ContextOption {
	return func(c *mapContext) {
		c.methods = m
	}
}

// mapContext is the root context backed by a mapping.
type mapContext struct {
	vars    ir.IRObject
	methods *MethodTable
}

// NewContext returns a root context over vars. The mapping is not copied;
// callers must not mutate it while the context is in use.
func NewContext(vars ir.IRObject, opts ...ContextOption) Context {
	c := &mapContext{vars: vars, methods: defaultMethods}
	for _, opt := range opts {
		opt(c)
	}
	if c.vars == nil {
		c.vars = ir.IRObject{}
	}
	return c
}

// Empty returns a context with no variables and the default methods.
func Empty() Context {
	return NewContext(nil)
}

func (c *mapContext) Get(name string) (ir.IRValue, bool) {
	v, ok := c.vars[name]
	if !ok {
		return nil, false
	}
	if v == nil {
		return ir.Undefined, true
	}
	return v, true
}

func (c *mapContext) Call(target ir.IRValue, member string, args []ir.IRValue) (ir.IRValue, error) {
	return c.methods.Call(target, member, args)
}

func (c *mapContext) With(bindings map[string]ir.IRValue) Context {
	return newOverlay(c, bindings)
}

// overlay layers bindings over a parent context. The parent is only
// referenced, never modified, so one parent can back many scopes.
type overlay struct {
	parent   Context
	bindings map[string]ir.IRValue
}

func newOverlay(parent Context, bindings map[string]ir.IRValue) *overlay {
	return &overlay{parent: parent, bindings: maps.Clone(bindings)}
}

func (o *overlay) Get(name string) (ir.IRValue, bool) {
	if v, ok := o.bindings[name]; ok {
		if v == nil {
			return ir.Undefined, true
		}
		return v, true
	}
	return o.parent.Get(name)
}

func (o *overlay) Call(target ir.IRValue, member string, args []ir.IRValue) (ir.IRValue, error) {
	return o.parent.Call(target, member, args)
}

func (o *overlay) With(bindings map[string]ir.IRValue) Context {
	return newOverlay(o, bindings)
}

// shadowed hides names of the parent context. The binder uses it so that
// iterator names inside a comprehension body are never resolved against
// an outer variable of the same spelling.
type shadowed struct {
	parent Context
	hidden map[string]bool
}

func shadow(parent Context, names []string) Context {
	hidden := make(map[string]bool, len(names))
	for _, n := range names {
		hidden[n] = true
	}
	return &shadowed{parent: parent, hidden: hidden}
}

func (s *shadowed) Get(name string) (ir.IRValue, bool) {
	if s.hidden[name] {
		return nil, false
	}
	return s.parent.Get(name)
}

func (s *shadowed) Call(target ir.IRValue, member string, args []ir.IRValue) (ir.IRValue, error) {
	return s.parent.Call(target, member, args)
}

func (s *shadowed) With(bindings map[string]ir.IRValue) Context {
	return newOverlay(s, bindings)
}

// Lookup resolves a full path against ctx. Missing names and fields of
// non-mappings yield Undefined.
func Lookup(ctx Context, p Path) ir.IRValue {
	if len(p) == 0 {
		return ir.Undefined
	}
	v, ok := ctx.Get(p[0])
	if !ok {
		return ir.Undefined
	}
	return descend(v, p[1:])
}

func descend(v ir.IRValue, rest Path) ir.IRValue {
	for _, name := range rest {
		obj, ok := v.(ir.IRObject)
		if !ok {
			return ir.Undefined
		}
		v = obj.Get(name)
	}
	return v
}
