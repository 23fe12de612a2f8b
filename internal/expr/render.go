package expr

import (
	"strconv"
	"strings"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Render returns the textual form of e with the minimum parentheses
// needed to parse back to the same tree. An empty And renders as true and
// an empty Or as false.
func Render(e Expr) string {
	var sb strings.Builder
	render(&sb, e)
	return sb.String()
}

// renderChild wraps child in parentheses when it binds looser than min.
func renderChild(sb *strings.Builder, child Expr, min int) {
	if child.Precedence() < min {
		sb.WriteByte('(')
		render(sb, child)
		sb.WriteByte(')')
		return
	}
	render(sb, child)
}

func renderList(sb *strings.Builder, exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			sb.WriteString(", ")
		}
		render(sb, e)
	}
}

func renderIterator(sb *strings.Builder, quantifier string, names []string, source Expr) {
	sb.WriteString(" for ")
	if quantifier != "" {
		sb.WriteString(quantifier)
		sb.WriteByte(' ')
	}
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(" of ")
	renderChild(sb, source, PrecCoalesce)
}

func render(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Constant:
		renderValue(sb, n.Value)
	case *NameRef:
		sb.WriteString(n.Path.String())
	case *Unary:
		sb.WriteString(n.Op.Token())
		if c, ok := n.Operand.(*Constant); ok && n.Op == OpNegate && c.Precedence() == PrecPrimary && ir.KindOf(c.Value).IsNumeric() {
			// -1 would read back as a negative literal.
			sb.WriteByte('(')
			render(sb, c)
			sb.WriteByte(')')
			return
		}
		renderChild(sb, n.Operand, PrecUnary)
	case *Binary:
		prec := n.Precedence()
		renderChild(sb, n.Left, prec)
		sb.WriteByte(' ')
		sb.WriteString(n.Token())
		sb.WriteByte(' ')
		renderChild(sb, n.Right, prec+1)
	case *And:
		renderJunction(sb, n.Terms, n.Token(), "true", PrecAnd)
	case *Or:
		renderJunction(sb, n.Terms, n.Token(), "false", PrecOr)
	case *Call:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		renderList(sb, n.Args)
		sb.WriteByte(')')
	case *Aggregate:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		renderList(sb, n.Args)
		sb.WriteByte(')')
	case *Member:
		renderChild(sb, n.Target, PrecPrimary)
		sb.WriteByte('.')
		sb.WriteString(n.Name)
	case *Index:
		renderChild(sb, n.Target, PrecPrimary)
		sb.WriteByte('[')
		render(sb, n.Index)
		sb.WriteByte(']')
	case *MemberCall:
		renderChild(sb, n.Target, PrecPrimary)
		sb.WriteByte('.')
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		renderList(sb, n.Args)
		sb.WriteByte(')')
	case *ArrayLit:
		sb.WriteByte('[')
		renderList(sb, n.Elems)
		sb.WriteByte(']')
	case *ObjectLit:
		sb.WriteByte('{')
		for i, entry := range n.Entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			render(sb, entry.Key)
			sb.WriteString(": ")
			render(sb, entry.Value)
		}
		sb.WriteByte('}')
	case *ForArray:
		sb.WriteByte('[')
		render(sb, n.Yield)
		renderIterator(sb, "", n.Names, n.Source)
		sb.WriteByte(']')
	case *ForObject:
		sb.WriteByte('{')
		render(sb, n.Key)
		sb.WriteString(": ")
		render(sb, n.Value)
		renderIterator(sb, "", n.Names, n.Source)
		sb.WriteByte('}')
	case *ForAny:
		render(sb, n.Body)
		renderIterator(sb, "any", n.Names, n.Source)
	case *ForAll:
		render(sb, n.Body)
		renderIterator(sb, "all", n.Names, n.Source)
	}
}

// renderJunction renders the terms of an And or Or. Nested junctions of
// the same precedence are parenthesized so they keep their structure.
func renderJunction(sb *strings.Builder, terms []Expr, token, empty string, prec int) {
	if len(terms) == 0 {
		sb.WriteString(empty)
		return
	}
	for i, term := range terms {
		if i > 0 {
			sb.WriteByte(' ')
			sb.WriteString(token)
			sb.WriteByte(' ')
		}
		renderChild(sb, term, prec+1)
	}
}

func renderValue(sb *strings.Builder, v ir.IRValue) {
	switch val := v.(type) {
	case nil, ir.IRUndefined:
		sb.WriteString("null")
	case ir.IRString:
		sb.WriteString(strconv.Quote(string(val)))
	case ir.IRInt:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case ir.IRFloat:
		s := strconv.FormatFloat(float64(val), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		sb.WriteString(s)
	case ir.IRBool:
		sb.WriteString(strconv.FormatBool(bool(val)))
	case ir.IRArray:
		sb.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				sb.WriteString(", ")
			}
			renderValue(sb, elem)
		}
		sb.WriteByte(']')
	case ir.IRObject:
		sb.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			renderValue(sb, val[k])
		}
		sb.WriteByte('}')
	}
}
