// Package lexer turns Pluto source text into a stream of token.Token
// values (spec.md §4.1). It never panics on malformed input: every failure
// becomes a *diag.Diagnostic with a LexError kind and a span.
package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
)

// Lexer scans a single source buffer.
type Lexer struct {
	src   []byte
	pos   int
	diags diag.Bag
}

// New constructs a Lexer over src.
func New(src []byte) *Lexer {
	return &Lexer{src: src}
}

// Diagnostics returns every diagnostic recorded so far.
func (l *Lexer) Diagnostics() *diag.Bag { return &l.diags }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	return b
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool  { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isAlnum(b byte) bool  { return isAlpha(b) || isDigit(b) }
func isSpace(b byte) bool  { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		b := l.peekByte()
		if isSpace(b) {
			l.pos++
			continue
		}
		if b == '/' && l.peekByteAt(1) == '/' {
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

// Next returns the next token, or a token.EOF token at end of input. Lexical
// errors are recorded in Diagnostics and the lexer resynchronizes by
// skipping the offending byte, so the caller always eventually reaches EOF.
func (l *Lexer) Next() token.Token {
	l.skipTrivia()
	start := l.pos
	if l.pos >= len(l.src) {
		return token.Token{Kind: token.EOF, Span: token.Span{Start: start, End: start}}
	}

	b := l.peekByte()
	switch {
	case isAlpha(b):
		return l.lexIdentOrKeyword(start)
	case isDigit(b):
		return l.lexNumber(start)
	case b == '"':
		return l.lexString(start, false)
	case b == 'f' && l.peekByteAt(1) == '"':
		l.pos++ // consume 'f'
		return l.lexString(start, true)
	default:
		return l.lexOperator(start)
	}
}

func (l *Lexer) lexIdentOrKeyword(start int) token.Token {
	for l.pos < len(l.src) && isAlnum(l.peekByte()) {
		l.pos++
	}
	lit := string(l.src[start:l.pos])
	sp := token.Span{Start: start, End: l.pos}
	if kw, ok := token.Keywords[lit]; ok {
		return token.Token{Kind: kw, Lit: lit, Span: sp}
	}
	return token.Token{Kind: token.Ident, Lit: lit, Span: sp}
}

func (l *Lexer) lexNumber(start int) token.Token {
	for l.pos < len(l.src) && isDigit(l.peekByte()) {
		l.pos++
	}
	isFloat := false
	if l.peekByte() == '.' && isDigit(l.peekByteAt(1)) {
		isFloat = true
		l.pos++
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.pos++
		}
	}
	lit := string(l.src[start:l.pos])
	sp := token.Span{Start: start, End: l.pos}
	if isFloat {
		return token.Token{Kind: token.Float, Lit: lit, Span: sp}
	}
	return token.Token{Kind: token.Int, Lit: lit, Span: sp}
}

// lexString scans a "..." or f"..." literal. For f-strings it returns a
// single FString token whose Lit is the raw interior text (including
// doubled-brace escapes); the parser is responsible for splitting it into
// FStringSegment values because that requires recursively parsing the
// interior {expr} sub-expressions with this same Lexer/Parser pair.
func (l *Lexer) lexString(start int, interp bool) token.Token {
	l.pos++ // consume opening quote
	var sb strings.Builder
	braceDepth := 0
	for {
		if l.pos >= len(l.src) {
			l.diags.Addf(diag.LexError, token.Span{Start: start, End: l.pos}, "unterminated string literal")
			break
		}
		b := l.advance()
		if b == '"' && braceDepth == 0 {
			break
		}
		if b == '\\' && !interp {
			sb.WriteByte(decodeEscape(l))
			continue
		}
		if interp && b == '{' {
			if braceDepth == 0 && l.peekByte() == '{' {
				l.pos++
				sb.WriteByte('{')
				continue
			}
			braceDepth++
			sb.WriteByte('{')
			continue
		}
		if interp && b == '}' {
			if braceDepth == 0 && l.peekByte() == '}' {
				l.pos++
				sb.WriteByte('}')
				continue
			}
			if braceDepth > 0 {
				braceDepth--
			}
			sb.WriteByte('}')
			continue
		}
		sb.WriteByte(b)
	}
	sp := token.Span{Start: start, End: l.pos}
	kind := token.String
	if interp {
		kind = token.FString
	}
	return token.Token{Kind: kind, Lit: sb.String(), Span: sp}
}

func decodeEscape(l *Lexer) byte {
	if l.pos >= len(l.src) {
		return '\\'
	}
	e := l.advance()
	switch e {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '\\':
		return '\\'
	case '"':
		return '"'
	case '0':
		return 0
	default:
		return e
	}
}

type opEntry struct {
	two  string
	kind token.Kind
}

var twoCharOps = []opEntry{
	{"==", token.EqEq}, {"!=", token.NotEq}, {"<=", token.LtEq}, {">=", token.GtEq},
	{"&&", token.AndAnd}, {"||", token.OrOr}, {"->", token.Arrow}, {"=>", token.FatArrow},
	{"..", token.DotDot}, {"::", token.ColonColon}, {"<-", token.LArrow},
}

var oneCharOps = map[byte]token.Kind{
	'+': token.Plus, '-': token.Minus, '*': token.Star, '/': token.Slash, '%': token.Percent,
	'=': token.Eq, '<': token.Lt, '>': token.Gt, '!': token.Bang, '?': token.Question,
	'.': token.Dot, ',': token.Comma, ':': token.Colon, ';': token.Semi,
	'(': token.LParen, ')': token.RParen, '{': token.LBrace, '}': token.RBrace,
	'[': token.LBracket, ']': token.RBracket, '|': token.Pipe, '&': token.Amp,
	'@': token.At,
}

func (l *Lexer) lexOperator(start int) token.Token {
	if l.pos+1 < len(l.src) {
		two := string(l.src[l.pos : l.pos+2])
		for _, e := range twoCharOps {
			if e.two == two {
				l.pos += 2
				return token.Token{Kind: e.kind, Lit: two, Span: token.Span{Start: start, End: l.pos}}
			}
		}
	}
	b := l.advance()
	if kind, ok := oneCharOps[b]; ok {
		return token.Token{Kind: kind, Lit: string(b), Span: token.Span{Start: start, End: l.pos}}
	}
	r, size := utf8.DecodeRune(l.src[start:])
	if size == 0 {
		size = 1
	}
	l.pos = start + size
	l.diags.Addf(diag.LexError, token.Span{Start: start, End: l.pos}, "unexpected character %q", r)
	return token.Token{Kind: token.Invalid, Lit: string(r), Span: token.Span{Start: start, End: l.pos}}
}
