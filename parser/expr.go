package parser

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
)

// parseBlock parses a `{ stmt* }` block. Every statement is itself an
// expression (spec.md §4.1); a trailing `;` between statements is optional
// and purely cosmetic.
func (p *Parser) parseBlock() *ast.BlockExpr {
	start := p.tok.Span
	p.expect(token.LBrace)
	var stmts []ast.Expr
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if !p.enter() {
			break
		}
		stmts = append(stmts, p.parseStmt())
		p.accept(token.Semi)
		p.leave()
	}
	p.expect(token.RBrace)
	b := &ast.BlockExpr{Stmts: stmts}
	b.Sp = start.Join(p.prev.Span)
	return b
}

// parseStmt parses one block statement: a plain expression, an assignment,
// or a channel send, any of which may start with an arbitrary expression.
func (p *Parser) parseStmt() ast.Expr {
	start := p.tok.Span
	e := p.parseExpr()
	switch {
	case p.accept(token.LArrow):
		try := p.accept(token.Question)
		val := p.parseExpr()
		s := &ast.SendExpr{Target: e, Value: val, Try: try}
		s.Sp = start.Join(p.prev.Span)
		return s
	case p.accept(token.Eq):
		val := p.parseExpr()
		if idx, ok := e.(*ast.IndexExpr); ok {
			a := &ast.IndexAssignExpr{Target: idx.Target, Index: idx.Index, Value: val}
			a.Sp = start.Join(p.prev.Span)
			return a
		}
		a := &ast.AssignExpr{Target: e, Value: val}
		a.Sp = start.Join(p.prev.Span)
		return a
	default:
		return e
	}
}

// parseExpr is the entry point of the precedence-climbing chain:
// ||, &&, equality, relational, additive, multiplicative, unary, postfix.
func (p *Parser) parseExpr() ast.Expr { return p.parseOr() }

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.at(token.OrOr) {
		start := left.Span()
		p.advance()
		right := p.parseAnd()
		b := &ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right}
		b.Sp = start.Join(p.prev.Span)
		left = b
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	for p.at(token.AndAnd) {
		start := left.Span()
		p.advance()
		right := p.parseEquality()
		b := &ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right}
		b.Sp = start.Join(p.prev.Span)
		left = b
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	for p.at(token.EqEq) || p.at(token.NotEq) {
		start := left.Span()
		op := ast.OpEq
		if p.tok.Kind == token.NotEq {
			op = ast.OpNotEq
		}
		p.advance()
		right := p.parseRelational()
		b := &ast.BinaryExpr{Op: op, Left: left, Right: right}
		b.Sp = start.Join(p.prev.Span)
		left = b
	}
	return left
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseAdditive()
	for p.at(token.Lt) || p.at(token.LtEq) || p.at(token.Gt) || p.at(token.GtEq) {
		start := left.Span()
		var op ast.BinOp
		switch p.tok.Kind {
		case token.Lt:
			op = ast.OpLt
		case token.LtEq:
			op = ast.OpLtEq
		case token.Gt:
			op = ast.OpGt
		case token.GtEq:
			op = ast.OpGtEq
		}
		p.advance()
		right := p.parseAdditive()
		b := &ast.BinaryExpr{Op: op, Left: left, Right: right}
		b.Sp = start.Join(p.prev.Span)
		left = b
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.at(token.Plus) || p.at(token.Minus) {
		start := left.Span()
		op := ast.OpAdd
		if p.tok.Kind == token.Minus {
			op = ast.OpSub
		}
		p.advance()
		right := p.parseMultiplicative()
		b := &ast.BinaryExpr{Op: op, Left: left, Right: right}
		b.Sp = start.Join(p.prev.Span)
		left = b
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for p.at(token.Star) || p.at(token.Slash) || p.at(token.Percent) {
		start := left.Span()
		var op ast.BinOp
		switch p.tok.Kind {
		case token.Star:
			op = ast.OpMul
		case token.Slash:
			op = ast.OpDiv
		case token.Percent:
			op = ast.OpMod
		}
		p.advance()
		right := p.parseUnary()
		b := &ast.BinaryExpr{Op: op, Left: left, Right: right}
		b.Sp = start.Join(p.prev.Span)
		left = b
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	start := p.tok.Span
	switch {
	case p.accept(token.Bang):
		operand := p.parseUnary()
		u := &ast.UnaryExpr{Op: ast.OpNot, Operand: operand}
		u.Sp = start.Join(p.prev.Span)
		return u
	case p.accept(token.Minus):
		operand := p.parseUnary()
		u := &ast.UnaryExpr{Op: ast.OpNeg, Operand: operand}
		u.Sp = start.Join(p.prev.Span)
		return u
	case p.accept(token.LArrow):
		try := p.accept(token.Question)
		operand := p.parseUnary()
		r := &ast.RecvExpr{Target: operand, Try: try}
		r.Sp = start.Join(p.prev.Span)
		return r
	default:
		return p.parsePostfix()
	}
}

// parsePostfix chains field access, calls, indexing, the postfix propagate
// operator `!`, and `catch` handlers onto a primary expression.
func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		switch {
		case p.accept(token.Dot):
			name := p.expect(token.Ident).Lit
			fa := &ast.FieldAccess{Target: e, Field: name}
			fa.Sp = e.Span().Join(p.prev.Span)
			e = fa
		case p.at(token.LParen):
			e = p.parseCallTail(e)
		case p.accept(token.LBracket):
			idx := p.parseExpr()
			p.expect(token.RBracket)
			ie := &ast.IndexExpr{Target: e, Index: idx}
			ie.Sp = e.Span().Join(p.prev.Span)
			e = ie
		case p.accept(token.Bang):
			pe := &ast.PropagateExpr{Subject: e}
			pe.Sp = e.Span().Join(p.prev.Span)
			e = pe
		case p.accept(token.KwCatch):
			e = p.parseCatchTail(e)
		default:
			return e
		}
	}
}

// parseCallTail parses `(args...)` applied to callee. A single-argument call
// to the bare identifier `close` is recognized as the built-in CloseExpr
// rather than an ordinary call, mirroring Go's own built-in close().
func (p *Parser) parseCallTail(callee ast.Expr) ast.Expr {
	start := callee.Span()
	p.expect(token.LParen)
	var args []ast.Expr
	for !p.at(token.RParen) && !p.at(token.EOF) {
		args = append(args, p.parseExpr())
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	sp := start.Join(p.prev.Span)
	if id, ok := callee.(*ast.Ident); ok && id.Name == "close" && len(args) == 1 {
		ce := &ast.CloseExpr{Target: args[0]}
		ce.Sp = sp
		return ce
	}
	c := &ast.CallExpr{Callee: callee, Args: args}
	c.Sp = sp
	return c
}

// parseCatchTail parses the handler following a postfix `catch`: either a
// bare `catch { ... }` (clears the whole error set) or `catch ErrorName { ... }`.
func (p *Parser) parseCatchTail(subject ast.Expr) ast.Expr {
	start := subject.Span()
	ce := &ast.CatchExpr{Subject: subject}
	if p.at(token.LBrace) {
		ce.Wildcard = true
		ce.Handler = p.parseBlock()
	} else {
		ce.ErrorName = p.expect(token.Ident).Lit
		ce.Handler = p.parseBlock()
	}
	ce.Sp = start.Join(p.prev.Span)
	return ce
}

func (p *Parser) parsePrimary() ast.Expr {
	start := p.tok.Span
	switch p.tok.Kind {
	case token.Int:
		lit := p.tok.Lit
		p.advance()
		n := &ast.IntLit{Value: int64(parseIntLit(lit))}
		n.Sp = start
		return n
	case token.Float:
		lit := p.tok.Lit
		p.advance()
		n := &ast.FloatLit{Value: parseFloatLit(lit)}
		n.Sp = start
		return n
	case token.KwTrue:
		p.advance()
		n := &ast.BoolLit{Value: true}
		n.Sp = start
		return n
	case token.KwFalse:
		p.advance()
		n := &ast.BoolLit{Value: false}
		n.Sp = start
		return n
	case token.KwNone:
		p.advance()
		n := &ast.NoneLit{}
		n.Sp = start
		return n
	case token.String:
		lit := p.tok.Lit
		p.advance()
		n := &ast.StringLit{Value: lit}
		n.Sp = start
		return n
	case token.FString:
		tok := p.tok
		p.advance()
		return p.parseFStringLit(start, tok.Lit)
	case token.Ident:
		return p.parseIdentOrStructLit(start)
	case token.KwSelf:
		p.advance()
		n := &ast.Ident{Name: "self"}
		n.Sp = start
		return n
	case token.LParen:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RParen)
		return e
	case token.Pipe:
		return p.parseClosure(start)
	case token.KwLet:
		return p.parseLet()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwMatch:
		return p.parseMatch()
	case token.KwSpawn:
		return p.parseSpawn(start)
	case token.KwScope:
		return p.parseScope(start)
	case token.KwRaise:
		return p.parseRaiseExpr(start)
	case token.KwReturn:
		return p.parseReturn(start)
	case token.KwYield:
		return p.parseYield(start)
	case token.KwChan:
		return p.parseChan(start)
	case token.LBrace:
		return p.parseBlock()
	default:
		p.diags.Addf(diag.ParseError, p.tok.Span, "unexpected token %s %q in expression", p.tok.Kind, p.tok.Lit)
		p.advance()
		n := &ast.NoneLit{}
		n.Sp = start
		return n
	}
}

// parseIdentOrStructLit resolves the ambiguity between a bare identifier and
// `Name { field: value, ... }` struct-literal construction. Struct literals
// are suppressed while noStructLit is set (if/while/for/match subjects), the
// same restriction Go applies to composite literals in statement conditions.
func (p *Parser) parseIdentOrStructLit(start token.Span) ast.Expr {
	name := p.tok.Lit
	p.advance()
	if p.at(token.ColonColon) {
		path := []string{name}
		for p.accept(token.ColonColon) {
			path = append(path, p.expect(token.Ident).Lit)
		}
		qa := &ast.QualifiedAccess{Path: path}
		qa.Sp = start.Join(p.prev.Span)
		return qa
	}
	if !p.noStructLit && p.at(token.LBrace) {
		return p.parseStructLitTail(start, name)
	}
	id := &ast.Ident{Name: name}
	id.Sp = start
	return id
}

func (p *Parser) parseStructLitTail(start token.Span, name string) *ast.StructLit {
	p.expect(token.LBrace)
	var fields []ast.StructField
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		fname := p.expect(token.Ident).Lit
		p.expect(token.Colon)
		val := p.parseExpr()
		fields = append(fields, ast.StructField{Name: fname, Value: val})
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	sl := &ast.StructLit{ClassName: name, Fields: fields}
	sl.Sp = start.Join(p.prev.Span)
	return sl
}

func (p *Parser) parseClosure(start token.Span) *ast.Closure {
	p.expect(token.Pipe)
	var params []ast.ClosureParam
	for !p.at(token.Pipe) && !p.at(token.EOF) {
		name := p.expect(token.Ident).Lit
		var typ ast.TypeExpr
		if p.accept(token.Colon) {
			typ = p.parseType()
		}
		params = append(params, ast.ClosureParam{Name: name, Type: typ})
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.Pipe)
	var ret ast.TypeExpr
	if p.accept(token.Arrow) {
		ret = p.parseType()
	}
	var body ast.Expr
	if p.at(token.LBrace) {
		body = p.parseBlock()
	} else {
		body = p.parseExpr()
	}
	c := &ast.Closure{Params: params, Return: ret, Body: body}
	c.Sp = start.Join(p.prev.Span)
	return c
}

func (p *Parser) parseLet() *ast.LetExpr {
	start := p.tok.Span
	p.expect(token.KwLet)
	mut := p.accept(token.KwMut)
	var names []string
	if p.accept(token.LParen) {
		names = append(names, p.expect(token.Ident).Lit)
		for p.accept(token.Comma) {
			names = append(names, p.expect(token.Ident).Lit)
		}
		p.expect(token.RParen)
	} else {
		names = append(names, p.expect(token.Ident).Lit)
	}
	var typ ast.TypeExpr
	if p.accept(token.Colon) {
		typ = p.parseType()
	}
	p.expect(token.Eq)
	val := p.parseExpr()
	l := &ast.LetExpr{Names: names, Type: typ, Mutable: mut, Value: val}
	l.Sp = start.Join(p.prev.Span)
	return l
}

// parseCondExpr parses an if/while/for/match subject with struct-literal
// parsing suppressed so its trailing `{` is read as the body, not a field
// list.
func (p *Parser) parseCondExpr() ast.Expr {
	p.noStructLit = true
	e := p.parseExpr()
	p.noStructLit = false
	return e
}

func (p *Parser) parseIf() *ast.IfExpr {
	start := p.tok.Span
	p.expect(token.KwIf)
	cond := p.parseCondExpr()
	then := p.parseBlock()
	ie := &ast.IfExpr{Cond: cond, Then: then}
	if p.accept(token.KwElse) {
		if p.at(token.KwIf) {
			ie.Else = p.parseIf()
		} else {
			ie.Else = p.parseBlock()
		}
	}
	ie.Sp = start.Join(p.prev.Span)
	return ie
}

func (p *Parser) parseWhile() *ast.WhileExpr {
	start := p.tok.Span
	p.expect(token.KwWhile)
	cond := p.parseCondExpr()
	body := p.parseBlock()
	w := &ast.WhileExpr{Cond: cond, Body: body}
	w.Sp = start.Join(p.prev.Span)
	return w
}

func (p *Parser) parseFor() *ast.ForExpr {
	start := p.tok.Span
	p.expect(token.KwFor)
	name := p.expect(token.Ident).Lit
	p.expect(token.KwIn)
	iter := p.parseCondExpr()
	body := p.parseBlock()
	f := &ast.ForExpr{Binding: name, Iterable: iter, Body: body}
	f.Sp = start.Join(p.prev.Span)
	return f
}

func (p *Parser) parseMatch() *ast.MatchExpr {
	start := p.tok.Span
	p.expect(token.KwMatch)
	subj := p.parseCondExpr()
	p.expect(token.LBrace)
	var arms []ast.MatchArm
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		arms = append(arms, p.parseMatchArm())
		p.accept(token.Comma)
	}
	p.expect(token.RBrace)
	m := &ast.MatchExpr{Subject: subj, Arms: arms}
	m.Sp = start.Join(p.prev.Span)
	return m
}

// parseMatchArm parses one `pattern => body` arm. pattern is one of: `_`, a
// literal, or `EnumName.Variant(bindNames...)` / `EnumName.Variant`.
func (p *Parser) parseMatchArm() ast.MatchArm {
	start := p.tok.Span
	var arm ast.MatchArm
	switch {
	case p.at(token.Ident) && p.tok.Lit == "_":
		p.advance()
		arm.Wildcard = true
	case p.at(token.Int), p.at(token.Float), p.at(token.String), p.at(token.KwTrue), p.at(token.KwFalse), p.at(token.KwNone):
		arm.Literal = p.parsePrimary()
	default:
		name := p.expect(token.Ident).Lit
		p.expect(token.Dot)
		variant := p.expect(token.Ident).Lit
		arm.EnumName = name
		arm.Variant = variant
		if p.accept(token.LParen) {
			for !p.at(token.RParen) && !p.at(token.EOF) {
				arm.BindNames = append(arm.BindNames, p.expect(token.Ident).Lit)
				if !p.accept(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
		}
	}
	p.expect(token.FatArrow)
	arm.Body = p.parseExpr()
	arm.Sp = start.Join(p.prev.Span)
	return arm
}

// parseSpawn parses `spawn callee(args...)`; the callee must be a call
// expression (spawning a bare value makes no sense), which the spawn
// desugarer later lowers into a deep-copying task launch.
func (p *Parser) parseSpawn(start token.Span) ast.Expr {
	p.expect(token.KwSpawn)
	called := p.parsePostfix()
	s := &ast.SpawnExpr{}
	if call, ok := called.(*ast.CallExpr); ok {
		s.Callee = call.Callee
		s.Args = call.Args
	} else {
		p.diags.Addf(diag.ParseError, start, "spawn requires a call expression")
		s.Callee = called
	}
	s.Sp = start.Join(p.prev.Span)
	return s
}

func (p *Parser) parseScope(start token.Span) *ast.ScopeExpr {
	p.expect(token.KwScope)
	body := p.parseBlock()
	s := &ast.ScopeExpr{Body: body}
	s.Sp = start.Join(p.prev.Span)
	return s
}

// parseRaiseExpr parses `raise ErrorName(field: value, ...)` or the bare
// `raise ErrorName` form for errors with no fields.
func (p *Parser) parseRaiseExpr(start token.Span) *ast.RaiseExpr {
	p.expect(token.KwRaise)
	name := p.expect(token.Ident).Lit
	var fields []ast.StructField
	if p.accept(token.LParen) {
		for !p.at(token.RParen) && !p.at(token.EOF) {
			fname := p.expect(token.Ident).Lit
			p.expect(token.Colon)
			val := p.parseExpr()
			fields = append(fields, ast.StructField{Name: fname, Value: val})
			if !p.accept(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
	}
	r := &ast.RaiseExpr{ErrorName: name, Args: fields}
	r.Sp = start.Join(p.prev.Span)
	return r
}

func (p *Parser) atStmtEnd() bool {
	return p.at(token.Semi) || p.at(token.RBrace) || p.at(token.EOF)
}

func (p *Parser) parseReturn(start token.Span) *ast.ReturnExpr {
	p.expect(token.KwReturn)
	var val ast.Expr
	if !p.atStmtEnd() {
		val = p.parseExpr()
	}
	r := &ast.ReturnExpr{Value: val}
	r.Sp = start.Join(p.prev.Span)
	return r
}

func (p *Parser) parseYield(start token.Span) *ast.YieldExpr {
	p.expect(token.KwYield)
	var val ast.Expr
	if !p.atStmtEnd() {
		val = p.parseExpr()
	}
	y := &ast.YieldExpr{Value: val}
	y.Sp = start.Join(p.prev.Span)
	return y
}

// parseChan parses `chan<T>(capacity)`; capacity is optional (default 1,
// applied later by typeck/codegen, not the parser).
func (p *Parser) parseChan(start token.Span) *ast.ChanExpr {
	p.expect(token.KwChan)
	p.expect(token.Lt)
	elem := p.parseType()
	p.expect(token.Gt)
	p.expect(token.LParen)
	var capacity ast.Expr
	if !p.at(token.RParen) {
		capacity = p.parseExpr()
	}
	p.expect(token.RParen)
	c := &ast.ChanExpr{Elem: elem, Capacity: capacity}
	c.Sp = start.Join(p.prev.Span)
	return c
}

// parseFStringLit splits the raw interior text of an f-string token into
// literal-text and interpolated-expression segments. Each {expr} region is
// re-lexed and re-parsed with a fresh Parser; its diagnostics are merged
// into the outer bag. Span offsets inside the recursive parse are relative
// to the extracted substring, not the original source, since the lexer does
// not retain per-segment absolute offsets for interpolated regions.
func (p *Parser) parseFStringLit(start token.Span, raw string) *ast.FStringLit {
	var segs []ast.FStringSegment
	var text []byte
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c != '{' {
			text = append(text, c)
			i++
			continue
		}
		if len(text) > 0 {
			segs = append(segs, ast.FStringSegment{Text: string(text)})
			text = nil
		}
		depth := 1
		j := i + 1
		for j < len(raw) && depth > 0 {
			if raw[j] == '{' {
				depth++
			} else if raw[j] == '}' {
				depth--
				if depth == 0 {
					break
				}
			}
			j++
		}
		if depth > 0 {
			p.diags.Addf(diag.ParseError, start, "unterminated interpolation in f-string")
			break
		}
		exprSrc := raw[i+1 : j]
		sub := New([]byte(exprSrc))
		e := sub.parseExpr()
		p.diags.Merge(sub.Diagnostics())
		segs = append(segs, ast.FStringSegment{Expr: e})
		i = j + 1
	}
	if len(text) > 0 {
		segs = append(segs, ast.FStringSegment{Text: string(text)})
	}
	f := &ast.FStringLit{Segments: segs}
	f.Sp = start
	return f
}

func parseFloatLit(lit string) float64 {
	var intPart, fracPart int64
	var fracDigits int
	i := 0
	for i < len(lit) && lit[i] != '.' {
		intPart = intPart*10 + int64(lit[i]-'0')
		i++
	}
	if i < len(lit) && lit[i] == '.' {
		i++
		for i < len(lit) {
			fracPart = fracPart*10 + int64(lit[i]-'0')
			fracDigits++
			i++
		}
	}
	v := float64(intPart)
	if fracDigits > 0 {
		div := 1.0
		for k := 0; k < fracDigits; k++ {
			div *= 10
		}
		v += float64(fracPart) / div
	}
	return v
}
