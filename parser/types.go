package parser

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
)

// parseType parses a type annotation. The result may contain QualifiedType
// or TypeVar nodes that must not survive the module flattener / typeck
// respectively; parseType itself never resolves names.
func (p *Parser) parseType() ast.TypeExpr {
	t := p.parseBaseType()
	for p.accept(token.Question) {
		nt := &ast.NullableType{Elem: t}
		nt.Sp = t.Span().Join(p.prev.Span)
		t = nt
	}
	return t
}

func (p *Parser) parseBaseType() ast.TypeExpr {
	start := p.tok.Span
	switch p.tok.Kind {
	case token.Ident:
		switch p.tok.Lit {
		case "int":
			p.advance()
			t := &ast.PrimitiveType{Kind: ast.PrimInt}
			t.Sp = start
			return t
		case "float":
			p.advance()
			t := &ast.PrimitiveType{Kind: ast.PrimFloat}
			t.Sp = start
			return t
		case "bool":
			p.advance()
			t := &ast.PrimitiveType{Kind: ast.PrimBool}
			t.Sp = start
			return t
		case "byte":
			p.advance()
			t := &ast.PrimitiveType{Kind: ast.PrimByte}
			t.Sp = start
			return t
		case "string":
			p.advance()
			t := &ast.StringType{}
			t.Sp = start
			return t
		case "bytes":
			p.advance()
			t := &ast.BytesType{}
			t.Sp = start
			return t
		}
		return p.parseNamedType(start)
	case token.KwSender:
		p.advance()
		p.expect(token.Lt)
		elem := p.parseType()
		p.expect(token.Gt)
		t := &ast.SenderType{Elem: elem}
		t.Sp = start.Join(p.prev.Span)
		return t
	case token.KwReceiver:
		p.advance()
		p.expect(token.Lt)
		elem := p.parseType()
		p.expect(token.Gt)
		t := &ast.ReceiverType{Elem: elem}
		t.Sp = start.Join(p.prev.Span)
		return t
	case token.KwTask:
		p.advance()
		p.expect(token.Lt)
		res := p.parseType()
		p.expect(token.Gt)
		t := &ast.TaskType{Result: res}
		t.Sp = start.Join(p.prev.Span)
		return t
	case token.KwStream:
		p.advance()
		p.expect(token.Lt)
		elem := p.parseType()
		p.expect(token.Gt)
		t := &ast.StreamType{Elem: elem}
		t.Sp = start.Join(p.prev.Span)
		return t
	case token.KwNullable:
		p.advance()
		p.expect(token.Lt)
		elem := p.parseType()
		p.expect(token.Gt)
		t := &ast.NullableType{Elem: elem}
		t.Sp = start.Join(p.prev.Span)
		return t
	case token.LBracket:
		p.advance()
		elem := p.parseType()
		if p.accept(token.Colon) {
			val := p.parseType()
			p.expect(token.RBracket)
			t := &ast.MapType{Key: elem, Value: val}
			t.Sp = start.Join(p.prev.Span)
			return t
		}
		p.expect(token.RBracket)
		t := &ast.ArrayType{Elem: elem}
		t.Sp = start.Join(p.prev.Span)
		return t
	case token.LBrace:
		p.advance()
		elem := p.parseType()
		p.expect(token.RBrace)
		t := &ast.SetType{Elem: elem}
		t.Sp = start.Join(p.prev.Span)
		return t
	case token.LParen:
		p.advance()
		var elems []ast.TypeExpr
		for !p.at(token.RParen) && !p.at(token.EOF) {
			elems = append(elems, p.parseType())
			if !p.accept(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
		t := &ast.TupleType{Elems: elems}
		t.Sp = start.Join(p.prev.Span)
		return t
	case token.KwFn:
		p.advance()
		p.expect(token.LParen)
		var params []ast.TypeExpr
		for !p.at(token.RParen) && !p.at(token.EOF) {
			params = append(params, p.parseType())
			if !p.accept(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
		var ret ast.TypeExpr
		if p.accept(token.Arrow) {
			ret = p.parseType()
		}
		var errs []string
		if p.at(token.Ident) && p.tok.Lit == "raises" {
			p.advance()
			p.expect(token.LParen)
			for !p.at(token.RParen) && !p.at(token.EOF) {
				errs = append(errs, p.expect(token.Ident).Lit)
				if !p.accept(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
		}
		t := &ast.FuncType{Params: params, Return: ret, ErrorSet: errs}
		t.Sp = start.Join(p.prev.Span)
		return t
	default:
		p.diags.Addf(diag.ParseError, p.tok.Span, "expected a type, found %s %q", p.tok.Kind, p.tok.Lit)
		p.advance()
		t := &ast.StringType{}
		t.Sp = start
		return t
	}
}

// parseNamedType parses a `::`-qualified type reference with optional type
// arguments: `Name<T, U>` or `mod::sub::Name<T>`. A single-segment path
// yields a ClassRefType (the xref resolver later reclassifies it as a trait
// or enum reference if that is what the name actually binds to); a
// multi-segment path yields a QualifiedType for the module flattener to
// rewrite. `::` rather than `.` keeps this unambiguous with field access in
// expression position, where the same split applies (see parser/expr.go).
func (p *Parser) parseNamedType(start token.Span) ast.TypeExpr {
	var path []string
	path = append(path, p.expect(token.Ident).Lit)
	for p.accept(token.ColonColon) {
		path = append(path, p.expect(token.Ident).Lit)
	}
	var targs []ast.TypeExpr
	if p.accept(token.Lt) {
		for !p.at(token.Gt) && !p.at(token.EOF) {
			targs = append(targs, p.parseType())
			if !p.accept(token.Comma) {
				break
			}
		}
		p.expect(token.Gt)
	}
	sp := start.Join(p.prev.Span)
	if len(path) > 1 {
		t := &ast.QualifiedType{Path: path}
		t.Sp = sp
		return t
	}
	t := &ast.ClassRefType{Name: path[0], TypeArgs: targs}
	t.Sp = sp
	return t
}
