// Package parser turns the textual expression syntax into expr trees.
//
// The grammar, loosest binding first:
//
//	expr       = coalesce { "for" ("any" | "all") names "of" coalesce }
//	coalesce   = binary operators by precedence: ?? || && (== != < <= > >= in) (& | ^ << >>) (+ -) (* / %)
//	unary      = ("-" | "!" | "~") unary | postfix
//	postfix    = primary { "." ident [ "(" args ")" ] | "[" expr "]" }
//	primary    = literal | ident [ "(" args ")" ] | "(" expr ")" | array | object
//	array      = "[" [ expr ( "for" names "of" coalesce | { "," expr } ) ] "]"
//	object     = "{" [ expr ":" expr ( "for" names "of" coalesce | { "," expr ":" expr } ) ] "}"
//	names      = ident { "," ident }
//
// Render in package expr produces text this parser reads back to an Equal
// tree.
package parser

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// DefaultMaxDepth bounds nesting so hostile input cannot exhaust the stack.
const DefaultMaxDepth = 256

// SyntaxError reports malformed input with a byte offset.
type SyntaxError struct {
	Pos int
	Msg string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// Option configures parsing.
type Option func(*config)

type config struct {
	aggregates map[string]bool
	maxDepth   int
}

// WithAggregates makes calls to the named functions parse as Aggregate
// nodes instead of Call nodes.
func WithAggregates(names ...string) Option {
	return func(c *config) {
		for _, n := range names {
			c.aggregates[n] = true
		}
	}
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		c.maxDepth = n
	}
}

var keywords = []string{"true", "false", "null", "for", "any", "all", "of", "in"}

// Parse parses a complete expression.
func Parse(src string, opts ...Option) (expr.Expr, error) {
	cfg := config{aggregates: make(map[string]bool), maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&cfg)
	}

	lx := &lexer{input: src}
	var tokens []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			break
		}
	}

	p := &parser{tokens: tokens, cfg: cfg}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, p.unexpected(tok)
	}
	return e, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for expressions known to be valid.
func MustParse(src string, opts ...Option) expr.Expr {
	e, err := Parse(src, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	tokens []Token
	pos    int
	depth  int
	cfg    config
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) Token {
	if i := p.pos + offset; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

// isSymbol reports whether the current token is the given symbol or
// keyword.
func (p *parser) is(text string) bool {
	tok := p.peek()
	return (tok.Kind == TokenSymbol || tok.Kind == TokenIdent) && tok.Text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return p.unexpected(p.peek())
	}
	return nil
}

func (p *parser) unexpected(tok Token) error {
	if tok.Kind == TokenEOF {
		return &SyntaxError{Pos: tok.Pos, Msg: "unexpected end of input"}
	}
	return &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected %s %q", tok.Kind, tok.Text)}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.cfg.maxDepth {
		return &SyntaxError{Pos: p.peek().Pos, Msg: "expression nested too deeply"}
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseExpr() (expr.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	e, err := p.parseBinary(expr.PrecCoalesce)
	if err != nil {
		return nil, err
	}
	for p.is("for") && (p.peekAt(1).Text == "any" || p.peekAt(1).Text == "all") {
		p.advance()
		kind := p.advance().Text
		names, source, err := p.parseIterator()
		if err != nil {
			return nil, err
		}
		if kind == "any" {
			e = &expr.ForAny{Body: e, Names: names, Source: source}
		} else {
			e = &expr.ForAll{Body: e, Names: names, Source: source}
		}
	}
	return e, nil
}

// parseIterator reads `names of source` after the for keyword.
func (p *parser) parseIterator() ([]string, expr.Expr, error) {
	var names []string
	for {
		tok := p.peek()
		if tok.Kind != TokenIdent || slices.Contains(keywords, tok.Text) {
			return nil, nil, p.unexpected(tok)
		}
		names = append(names, p.advance().Text)
		if !p.accept(",") {
			break
		}
	}
	if len(names) > 2 {
		return nil, nil, &SyntaxError{Pos: p.peek().Pos, Msg: "at most two iterator names are allowed"}
	}
	if err := p.expect("of"); err != nil {
		return nil, nil, err
	}
	source, err := p.parseBinary(expr.PrecCoalesce)
	if err != nil {
		return nil, nil, err
	}
	return names, source, nil
}

// binaryPrec returns the precedence of the operator at the current token,
// or -1 when the token is not a binary operator.
func (p *parser) binaryPrec() int {
	tok := p.peek()
	if tok.Kind != TokenSymbol && !(tok.Kind == TokenIdent && tok.Text == "in") {
		return -1
	}
	switch tok.Text {
	case "&&":
		return expr.PrecAnd
	case "||":
		return expr.PrecOr
	}
	if op, ok := expr.BinaryOpFromToken(tok.Text); ok {
		return op.Precedence()
	}
	return -1
}

// parseBinary implements precedence climbing. && and || collect all
// operands of a run into one n-ary node.
func (p *parser) parseBinary(minPrec int) (expr.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec := p.binaryPrec()
		if prec < minPrec {
			return left, nil
		}
		tok := p.advance()
		if tok.Text == "&&" || tok.Text == "||" {
			terms := []expr.Expr{left}
			for {
				right, err := p.parseBinary(prec + 1)
				if err != nil {
					return nil, err
				}
				terms = append(terms, right)
				if !p.accept(tok.Text) {
					break
				}
			}
			if tok.Text == "&&" {
				left = &expr.And{Terms: terms}
			} else {
				left = &expr.Or{Terms: terms}
			}
			continue
		}
		op, _ := expr.BinaryOpFromToken(tok.Text)
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (expr.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	var op expr.UnaryOp
	switch {
	case p.is("-"):
		// A minus directly before a number literal is part of the literal,
		// unless the literal is the receiver of a postfix operation.
		if num := p.peekAt(1); (num.Kind == TokenInt || num.Kind == TokenFloat) && !isPostfix(p.peekAt(2)) {
			p.advance()
			return p.parseNumber(p.advance(), true)
		}
		op = expr.OpNegate
	case p.is("!"):
		op = expr.OpNot
	case p.is("~"):
		op = expr.OpBitNot
	default:
		return p.parsePostfix()
	}
	p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &expr.Unary{Op: op, Operand: operand}, nil
}

func isPostfix(tok Token) bool {
	return tok.Kind == TokenSymbol && (tok.Text == "." || tok.Text == "[" || tok.Text == "(")
}

func (p *parser) parsePostfix() (expr.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("."):
			tok := p.peek()
			if tok.Kind != TokenIdent {
				return nil, p.unexpected(tok)
			}
			name := p.advance().Text
			if p.accept("(") {
				args, err := p.parseList(")")
				if err != nil {
					return nil, err
				}
				e = &expr.MemberCall{Target: e, Name: name, Args: args}
			} else if ref, ok := e.(*expr.NameRef); ok {
				e = &expr.NameRef{Path: ref.Path.Child(name)}
			} else {
				e = &expr.Member{Target: e, Name: name}
			}
		case p.accept("["):
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = &expr.Index{Target: e, Index: idx}
		default:
			return e, nil
		}
	}
}

// parseList reads comma-separated expressions up to the closing symbol,
// which is consumed.
func (p *parser) parseList(closing string) ([]expr.Expr, error) {
	var out []expr.Expr
	if p.accept(closing) {
		return out, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.accept(closing) {
			return out, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parsePrimary() (expr.Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case TokenInt, TokenFloat:
		return p.parseNumber(p.advance(), false)
	case TokenString:
		p.advance()
		return expr.Const(ir.IRString(tok.Text)), nil
	case TokenIdent:
		return p.parseIdent()
	case TokenSymbol:
		switch tok.Text {
		case "(":
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "[":
			p.advance()
			return p.parseArray()
		case "{":
			p.advance()
			return p.parseObject()
		}
	}
	return nil, p.unexpected(tok)
}

func (p *parser) parseNumber(tok Token, negative bool) (expr.Expr, error) {
	text := tok.Text
	if negative {
		text = "-" + text
	}
	if tok.Kind == TokenInt {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("integer %s out of range", text)}
		}
		return expr.Const(ir.IRInt(n)), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("invalid float %s", text)}
	}
	return expr.Const(ir.IRFloat(f)), nil
}

func (p *parser) parseIdent() (expr.Expr, error) {
	tok := p.advance()
	switch tok.Text {
	case "true":
		return expr.Const(ir.IRBool(true)), nil
	case "false":
		return expr.Const(ir.IRBool(false)), nil
	case "null":
		return expr.Const(ir.Undefined), nil
	}
	if slices.Contains(keywords, tok.Text) {
		return nil, p.unexpected(tok)
	}
	if p.accept("(") {
		args, err := p.parseList(")")
		if err != nil {
			return nil, err
		}
		if p.cfg.aggregates[tok.Text] {
			return &expr.Aggregate{Name: tok.Text, Args: args}, nil
		}
		return &expr.Call{Name: tok.Text, Args: args}, nil
	}
	return &expr.NameRef{Path: expr.Path{tok.Text}}, nil
}

func (p *parser) parseArray() (expr.Expr, error) {
	if p.accept("]") {
		return &expr.ArrayLit{}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.accept("for") {
		names, source, err := p.parseIterator()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return &expr.ForArray{Yield: first, Names: names, Source: source}, nil
	}
	elems := []expr.Expr{first}
	for !p.accept("]") {
		if err := p.expect(","); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &expr.ArrayLit{Elems: elems}, nil
}

func (p *parser) parseEntry() (expr.Entry, error) {
	key, err := p.parseExpr()
	if err != nil {
		return expr.Entry{}, err
	}
	if err := p.expect(":"); err != nil {
		return expr.Entry{}, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return expr.Entry{}, err
	}
	return expr.Entry{Key: key, Value: value}, nil
}

func (p *parser) parseObject() (expr.Expr, error) {
	if p.accept("}") {
		return &expr.ObjectLit{}, nil
	}
	first, err := p.parseEntry()
	if err != nil {
		return nil, err
	}
	if p.accept("for") {
		names, source, err := p.parseIterator()
		if err != nil {
			return nil, err
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
		return &expr.ForObject{Key: first.Key, Value: first.Value, Names: names, Source: source}, nil
	}
	entries := []expr.Entry{first}
	for !p.accept("}") {
		if err := p.expect(","); err != nil {
			return nil, err
		}
		entry, err := p.parseEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return &expr.ObjectLit{Entries: entries}, nil
}
