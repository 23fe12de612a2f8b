package parser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenInt
	TokenFloat
	TokenString
	TokenSymbol
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenInt:
		return "integer"
	case TokenFloat:
		return "float"
	case TokenString:
		return "string"
	default:
		return "symbol"
	}
}

// Token is a lexical token. For strings Text holds the unquoted value.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// symbols is ordered longest first so two-character operators win.
var symbols = []string{
	"<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "??",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "!", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".",
}

// lexer scans the input one token at a time.
type lexer struct {
	input string
	pos   int
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		r, w := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += w
	}
}

// next returns the next token or a *SyntaxError.
func (l *lexer) next() (Token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Kind: TokenEOF, Pos: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	switch {
	case r == '"' || r == '\'':
		return l.scanString(r)
	case r >= '0' && r <= '9':
		return l.scanNumber()
	case r == '_' || unicode.IsLetter(r):
		return l.scanIdent(), nil
	}

	for _, sym := range symbols {
		if strings.HasPrefix(l.input[l.pos:], sym) {
			l.pos += len(sym)
			return Token{Kind: TokenSymbol, Text: sym, Pos: start}, nil
		}
	}
	return Token{}, &SyntaxError{Pos: start, Msg: "unexpected character " + strconv.QuoteRune(r)}
}

func (l *lexer) scanIdent() Token {
	start := l.pos
	for l.pos < len(l.input) {
		r, w := utf8.DecodeRuneInString(l.input[l.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += w
	}
	return Token{Kind: TokenIdent, Text: l.input[start:l.pos], Pos: start}
}

func (l *lexer) digits() {
	for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
		l.pos++
	}
}

func (l *lexer) peekDigit(offset int) bool {
	i := l.pos + offset
	return i < len(l.input) && l.input[i] >= '0' && l.input[i] <= '9'
}

// scanNumber reads 12, 1.5, 1e9 or 2.5E-3. A dot not followed by a digit
// ends the number so that 1.abs() is a method call.
func (l *lexer) scanNumber() (Token, error) {
	start := l.pos
	kind := TokenInt
	l.digits()
	if l.pos < len(l.input) && l.input[l.pos] == '.' && l.peekDigit(1) {
		kind = TokenFloat
		l.pos++
		l.digits()
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		offset := 1
		if l.pos+1 < len(l.input) && (l.input[l.pos+1] == '+' || l.input[l.pos+1] == '-') {
			offset = 2
		}
		if l.peekDigit(offset) {
			kind = TokenFloat
			l.pos += offset
			l.digits()
		}
	}
	text := l.input[start:l.pos]
	if l.pos < len(l.input) {
		if r, _ := utf8.DecodeRuneInString(l.input[l.pos:]); r == '_' || unicode.IsLetter(r) {
			return Token{}, &SyntaxError{Pos: start, Msg: "malformed number " + strconv.Quote(text+string(r))}
		}
	}
	return Token{Kind: kind, Text: text, Pos: start}, nil
}

// scanString reads a quoted string with Go escape sequences. Single-quoted
// strings may contain unescaped double quotes.
func (l *lexer) scanString(quote rune) (Token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '\\':
			l.pos += 2
			continue
		case rune(c) == quote:
			l.pos++
			body := l.input[start+1 : l.pos-1]
			if quote == '\'' {
				body = strings.ReplaceAll(body, `\'`, `'`)
				body = strings.ReplaceAll(body, `"`, `\"`)
			}
			s, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return Token{}, &SyntaxError{Pos: start, Msg: "invalid string literal"}
			}
			return Token{Kind: TokenString, Text: s, Pos: start}, nil
		case c == '\n':
			return Token{}, &SyntaxError{Pos: start, Msg: "newline in string literal"}
		}
		l.pos++
	}
	return Token{}, &SyntaxError{Pos: start, Msg: "unterminated string literal"}
}
