package expr

import (
	"fmt"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Expr is a sealed interface over the expression node types. Nodes are
// immutable pointers; a transform that changes nothing returns the same
// pointer.
//
// Only the types in this file implement Expr. Consumers dispatch with an
// exhaustive type switch.
type Expr interface {
	// Children returns the direct child expressions in a fixed order.
	Children() []Expr

	// Copy rebuilds the node with the given children, keeping non-child
	// state such as operators and names. It returns the receiver when every
	// child is reference-identical to the current one.
	Copy(children []Expr) Expr

	// Precedence is the binding strength used for rendering.
	Precedence() int

	String() string

	expr() // Sealed - only this package implements Expr
}

// Precedence levels, lowest binding first.
const (
	PrecQuantifier = iota
	PrecCoalesce
	PrecOr
	PrecAnd
	PrecCompare
	PrecBitwise
	PrecAdditive
	PrecMultiplicative
	PrecUnary
	PrecPrimary
)

// Constant is a literal or folded value.
type Constant struct {
	Value ir.IRValue
}

// NameRef references a value reachable from the context.
type NameRef struct {
	Path Path
}

// UnaryOp enumerates prefix operators.
type UnaryOp int

const (
	OpNegate UnaryOp = iota
	OpNot
	OpBitNot
)

var unaryTokens = [...]string{OpNegate: "-", OpNot: "!", OpBitNot: "~"}

// Token returns the operator's textual form.
func (op UnaryOp) Token() string {
	if int(op) < len(unaryTokens) {
		return unaryTokens[op]
	}
	return fmt.Sprintf("unary(%d)", int(op))
}

// Unary applies a prefix operator.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// BinaryOp enumerates infix operators other than && and ||, which are
// n-ary nodes of their own.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIn
	OpCoalesce
)

var binaryTokens = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^", OpShl: "<<", OpShr: ">>",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpIn: "in", OpCoalesce: "??",
}

// Token returns the operator's textual form.
func (op BinaryOp) Token() string {
	if int(op) < len(binaryTokens) {
		return binaryTokens[op]
	}
	return fmt.Sprintf("binary(%d)", int(op))
}

// Precedence returns the binding strength of the operator.
func (op BinaryOp) Precedence() int {
	switch op {
	case OpMul, OpDiv, OpMod:
		return PrecMultiplicative
	case OpAdd, OpSub:
		return PrecAdditive
	case OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
		return PrecBitwise
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn:
		return PrecCompare
	default:
		return PrecCoalesce
	}
}

// IsComparison reports whether the operator yields a boolean that is
// false whenever an operand is undefined.
func (op BinaryOp) IsComparison() bool {
	return op.Precedence() == PrecCompare
}

// BinaryOpFromToken returns the operator for a token.
func BinaryOpFromToken(tok string) (BinaryOp, bool) {
	for i, t := range binaryTokens {
		if t == tok {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// Binary applies an infix operator.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// And is an n-ary conjunction. An empty And is true.
type And struct {
	Terms []Expr
}

// Or is an n-ary disjunction. An empty Or is false.
type Or struct {
	Terms []Expr
}

// Call invokes a free function through the context.
type Call struct {
	Name string
	Args []Expr
}

// Member reads a field of a computed mapping, e.g. f(x).name.
type Member struct {
	Target Expr
	Name   string
}

// Index reads a sequence element or mapping entry, e.g. xs[0].
type Index struct {
	Target Expr
	Index  Expr
}

// MemberCall invokes a method on a receiver through the context.
type MemberCall struct {
	Target Expr
	Name   string
	Args   []Expr
}

// ArrayLit builds a sequence.
type ArrayLit struct {
	Elems []Expr
}

// Entry is a key/value pair of an ObjectLit.
type Entry struct {
	Key   Expr
	Value Expr
}

// ObjectLit builds a mapping. Keys must evaluate to text.
type ObjectLit struct {
	Entries []Entry
}

// ForArray is the comprehension [yield for names of source].
//
// Over a sequence, one name binds the element and two names bind the
// index and the element. Over a mapping, one name binds the value and two
// names bind the key and the value.
type ForArray struct {
	Yield  Expr
	Names  []string
	Source Expr
}

// ForObject is the comprehension {key: value for names of source}.
type ForObject struct {
	Key    Expr
	Value  Expr
	Names  []string
	Source Expr
}

// ForAny is the existential quantifier: body for any names of source.
type ForAny struct {
	Body   Expr
	Names  []string
	Source Expr
}

// ForAll is the universal quantifier: body for all names of source.
type ForAll struct {
	Body   Expr
	Names  []string
	Source Expr
}

// Aggregate is a group-level call such as sum(x). It cannot be evaluated
// against a single context.
type Aggregate struct {
	Name string
	Args []Expr
}

func (*Constant) expr()   {}
func (*NameRef) expr()    {}
func (*Unary) expr()      {}
func (*Binary) expr()     {}
func (*And) expr()        {}
func (*Or) expr()         {}
func (*Call) expr()       {}
func (*Member) expr()     {}
func (*Index) expr()      {}
func (*MemberCall) expr() {}
func (*ArrayLit) expr()   {}
func (*ObjectLit) expr()  {}
func (*ForArray) expr()   {}
func (*ForObject) expr()  {}
func (*ForAny) expr()     {}
func (*ForAll) expr()     {}
func (*Aggregate) expr()  {}

// Constructors.

// Const wraps a value in a Constant. nil becomes Undefined.
func Const(v ir.IRValue) *Constant {
	if v == nil {
		v = ir.Undefined
	}
	return &Constant{Value: v}
}

// Ref builds a NameRef from a dotted path string.
func Ref(path string) *NameRef {
	return &NameRef{Path: ParsePath(path)}
}

// NewBinary builds a Binary node.
func NewBinary(op BinaryOp, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// NewAnd builds a conjunction of terms.
func NewAnd(terms ...Expr) *And {
	return &And{Terms: terms}
}

// NewOr builds a disjunction of terms.
func NewOr(terms ...Expr) *Or {
	return &Or{Terms: terms}
}

// Children.

func (*Constant) Children() []Expr   { return nil }
func (*NameRef) Children() []Expr    { return nil }
func (n *Unary) Children() []Expr    { return []Expr{n.Operand} }
func (n *Binary) Children() []Expr   { return []Expr{n.Left, n.Right} }
func (n *And) Children() []Expr      { return n.Terms }
func (n *Or) Children() []Expr       { return n.Terms }
func (n *Call) Children() []Expr     { return n.Args }
func (n *Member) Children() []Expr   { return []Expr{n.Target} }
func (n *Index) Children() []Expr    { return []Expr{n.Target, n.Index} }
func (n *ArrayLit) Children() []Expr { return n.Elems }
func (n *ForArray) Children() []Expr { return []Expr{n.Yield, n.Source} }
func (n *ForAny) Children() []Expr   { return []Expr{n.Body, n.Source} }
func (n *ForAll) Children() []Expr   { return []Expr{n.Body, n.Source} }
func (n *Aggregate) Children() []Expr {
	return n.Args
}

func (n *MemberCall) Children() []Expr {
	out := make([]Expr, 0, len(n.Args)+1)
	out = append(out, n.Target)
	return append(out, n.Args...)
}

func (n *ObjectLit) Children() []Expr {
	out := make([]Expr, 0, 2*len(n.Entries))
	for _, e := range n.Entries {
		out = append(out, e.Key, e.Value)
	}
	return out
}

func (n *ForObject) Children() []Expr {
	return []Expr{n.Key, n.Value, n.Source}
}

// Copy.

// sameChildren reports whether next holds exactly the nodes of prev.
func sameChildren(prev, next []Expr) bool {
	if len(prev) != len(next) {
		return false
	}
	for i := range prev {
		if prev[i] != next[i] {
			return false
		}
	}
	return true
}

func checkArity(node string, children []Expr, want int) {
	if len(children) != want {
		panic(fmt.Sprintf("%s.Copy: expected %d children, got %d", node, want, len(children)))
	}
}

func (n *Constant) Copy(children []Expr) Expr {
	checkArity("Constant", children, 0)
	return n
}

func (n *NameRef) Copy(children []Expr) Expr {
	checkArity("NameRef", children, 0)
	return n
}

func (n *Unary) Copy(children []Expr) Expr {
	checkArity("Unary", children, 1)
	if children[0] == n.Operand {
		return n
	}
	return &Unary{Op: n.Op, Operand: children[0]}
}

func (n *Binary) Copy(children []Expr) Expr {
	checkArity("Binary", children, 2)
	if children[0] == n.Left && children[1] == n.Right {
		return n
	}
	return &Binary{Op: n.Op, Left: children[0], Right: children[1]}
}

func (n *And) Copy(children []Expr) Expr {
	if sameChildren(n.Terms, children) {
		return n
	}
	return &And{Terms: children}
}

func (n *Or) Copy(children []Expr) Expr {
	if sameChildren(n.Terms, children) {
		return n
	}
	return &Or{Terms: children}
}

func (n *Call) Copy(children []Expr) Expr {
	if sameChildren(n.Args, children) {
		return n
	}
	return &Call{Name: n.Name, Args: children}
}

func (n *Member) Copy(children []Expr) Expr {
	checkArity("Member", children, 1)
	if children[0] == n.Target {
		return n
	}
	return &Member{Target: children[0], Name: n.Name}
}

func (n *Index) Copy(children []Expr) Expr {
	checkArity("Index", children, 2)
	if children[0] == n.Target && children[1] == n.Index {
		return n
	}
	return &Index{Target: children[0], Index: children[1]}
}

func (n *MemberCall) Copy(children []Expr) Expr {
	checkArity("MemberCall", children, len(n.Args)+1)
	if sameChildren(n.Children(), children) {
		return n
	}
	return &MemberCall{Target: children[0], Name: n.Name, Args: children[1:]}
}

func (n *ArrayLit) Copy(children []Expr) Expr {
	if sameChildren(n.Elems, children) {
		return n
	}
	return &ArrayLit{Elems: children}
}

func (n *ObjectLit) Copy(children []Expr) Expr {
	if len(children)%2 != 0 {
		panic(fmt.Sprintf("ObjectLit.Copy: expected an even number of children, got %d", len(children)))
	}
	if sameChildren(n.Children(), children) {
		return n
	}
	entries := make([]Entry, len(children)/2)
	for i := range entries {
		entries[i] = Entry{Key: children[2*i], Value: children[2*i+1]}
	}
	return &ObjectLit{Entries: entries}
}

func (n *ForArray) Copy(children []Expr) Expr {
	checkArity("ForArray", children, 2)
	if children[0] == n.Yield && children[1] == n.Source {
		return n
	}
	return &ForArray{Yield: children[0], Names: n.Names, Source: children[1]}
}

func (n *ForObject) Copy(children []Expr) Expr {
	checkArity("ForObject", children, 3)
	if children[0] == n.Key && children[1] == n.Value && children[2] == n.Source {
		return n
	}
	return &ForObject{Key: children[0], Value: children[1], Names: n.Names, Source: children[2]}
}

func (n *ForAny) Copy(children []Expr) Expr {
	checkArity("ForAny", children, 2)
	if children[0] == n.Body && children[1] == n.Source {
		return n
	}
	return &ForAny{Body: children[0], Names: n.Names, Source: children[1]}
}

func (n *ForAll) Copy(children []Expr) Expr {
	checkArity("ForAll", children, 2)
	if children[0] == n.Body && children[1] == n.Source {
		return n
	}
	return &ForAll{Body: children[0], Names: n.Names, Source: children[1]}
}

func (n *Aggregate) Copy(children []Expr) Expr {
	if sameChildren(n.Args, children) {
		return n
	}
	return &Aggregate{Name: n.Name, Args: children}
}

// Precedence.

func (n *Constant) Precedence() int {
	switch v := n.Value.(type) {
	case ir.IRInt:
		if v < 0 {
			return PrecUnary
		}
	case ir.IRFloat:
		if v < 0 {
			return PrecUnary
		}
	}
	return PrecPrimary
}

func (*NameRef) Precedence() int    { return PrecPrimary }
func (*Unary) Precedence() int      { return PrecUnary }
func (n *Binary) Precedence() int   { return n.Op.Precedence() }
func (*Call) Precedence() int       { return PrecPrimary }
func (*Member) Precedence() int     { return PrecPrimary }
func (*Index) Precedence() int      { return PrecPrimary }
func (*MemberCall) Precedence() int { return PrecPrimary }
func (*ArrayLit) Precedence() int   { return PrecPrimary }
func (*ObjectLit) Precedence() int  { return PrecPrimary }
func (*ForArray) Precedence() int   { return PrecPrimary }
func (*ForObject) Precedence() int  { return PrecPrimary }
func (*ForAny) Precedence() int     { return PrecQuantifier }
func (*ForAll) Precedence() int     { return PrecQuantifier }
func (*Aggregate) Precedence() int  { return PrecPrimary }

// And and Or render as the literals true and false when empty.
func (n *And) Precedence() int {
	if len(n.Terms) == 0 {
		return PrecPrimary
	}
	return PrecAnd
}

func (n *Or) Precedence() int {
	if len(n.Terms) == 0 {
		return PrecPrimary
	}
	return PrecOr
}

// Token returns the operator token of a Binary node.
func (n *Binary) Token() string { return n.Op.Token() }

// Token returns "&&".
func (*And) Token() string { return "&&" }

// Token returns "||".
func (*Or) Token() string { return "||" }

// String.

func (n *Constant) String() string   { return Render(n) }
func (n *NameRef) String() string    { return Render(n) }
func (n *Unary) String() string      { return Render(n) }
func (n *Binary) String() string     { return Render(n) }
func (n *And) String() string        { return Render(n) }
func (n *Or) String() string         { return Render(n) }
func (n *Call) String() string       { return Render(n) }
func (n *Member) String() string     { return Render(n) }
func (n *Index) String() string      { return Render(n) }
func (n *MemberCall) String() string { return Render(n) }
func (n *ArrayLit) String() string   { return Render(n) }
func (n *ObjectLit) String() string  { return Render(n) }
func (n *ForArray) String() string   { return Render(n) }
func (n *ForObject) String() string  { return Render(n) }
func (n *ForAny) String() string     { return Render(n) }
func (n *ForAll) String() string     { return Render(n) }
func (n *Aggregate) String() string  { return Render(n) }

// IsConstant reports whether e is a Constant node.
func IsConstant(e Expr) bool {
	_, ok := e.(*Constant)
	return ok
}
