package parser

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
)

func (p *Parser) parseTypeParams() []ast.TypeParam {
	if !p.accept(token.Lt) {
		return nil
	}
	var out []ast.TypeParam
	for {
		name := p.expect(token.Ident).Lit
		tp := ast.TypeParam{Name: name}
		if p.accept(token.Colon) {
			tp.Bounds = append(tp.Bounds, p.expect(token.Ident).Lit)
			for p.accept(token.Plus) {
				tp.Bounds = append(tp.Bounds, p.expect(token.Ident).Lit)
			}
		}
		out = append(out, tp)
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.Gt)
	return out
}

func (p *Parser) parseParams() []ast.Param {
	p.expect(token.LParen)
	var out []ast.Param
	for !p.at(token.RParen) && !p.at(token.EOF) {
		mut := p.accept(token.KwMut)
		name := p.expect(token.Ident).Lit
		var typ ast.TypeExpr
		if name == "self" {
			// `self` / `mut self` carries no explicit type annotation.
		} else {
			p.expect(token.Colon)
			typ = p.parseType()
		}
		out = append(out, ast.Param{Name: name, Type: typ, Mutable: mut})
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	return out
}

func (p *Parser) parseReturnType() ast.TypeExpr {
	if p.at(token.LBrace) || p.at(token.Semi) {
		return nil
	}
	return p.parseType()
}

// parseFunc parses `fn name<T>(params) Return { body }` or, when no body
// follows, the extern form `fn name(params) Return`.
func (p *Parser) parseFunc(public bool) *ast.FuncDecl {
	start := p.tok.Span
	p.expect(token.KwFn)
	isGen := false
	name := p.expect(token.Ident).Lit
	tps := p.parseTypeParams()
	params := p.parseParams()
	ret := p.parseReturnType()
	contracts := p.parseContracts()
	var body *ast.BlockExpr
	if p.at(token.LBrace) {
		body = p.parseBlock()
	} else {
		p.accept(token.Semi)
	}
	return &ast.FuncDecl{
		Sp: start.Join(p.prev.Span), ID: ast.NewID(), Name: name,
		TypeParams: tps, Params: params, Return: ret, Body: body,
		Contracts: contracts, Public: public, IsGenerator: isGen,
	}
}

func (p *Parser) parseContracts() []ast.Contract {
	var out []ast.Contract
	for p.at(token.KwRequires) {
		start := p.tok.Span
		p.advance()
		e := p.parseExpr()
		out = append(out, ast.Contract{Sp: start.Join(p.prev.Span), Kind: ast.ContractRequires, Name: renderExprLabel(e), Expr: e})
	}
	return out
}

func (p *Parser) parseInvariants() []ast.Contract {
	var out []ast.Contract
	for p.at(token.KwInvariant) {
		start := p.tok.Span
		p.advance()
		e := p.parseExpr()
		out = append(out, ast.Contract{Sp: start.Join(p.prev.Span), Kind: ast.ContractInvariant, Name: renderExprLabel(e), Expr: e})
	}
	return out
}

// renderExprLabel produces a best-effort diagnostic label for a contract
// expression, e.g. "self.n >= 0". It is not a faithful pretty-printer (that
// is the out-of-scope pretty-printer's job), only stable enough to appear in
// a contract-violation diagnostic (spec.md §8 scenario 5).
func renderExprLabel(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.IntLit:
		return fmt.Sprintf("%d", n.Value)
	case *ast.FloatLit:
		return fmt.Sprintf("%g", n.Value)
	case *ast.BoolLit:
		return fmt.Sprintf("%t", n.Value)
	case *ast.FieldAccess:
		return renderExprLabel(n.Target) + "." + n.Field
	case *ast.CallExpr:
		return renderExprLabel(n.Callee) + "()"
	case *ast.UnaryExpr:
		return unOpLabel(n.Op) + renderExprLabel(n.Operand)
	case *ast.BinaryExpr:
		return renderExprLabel(n.Left) + " " + binOpLabel(n.Op) + " " + renderExprLabel(n.Right)
	default:
		return "<contract>"
	}
}

func binOpLabel(op ast.BinOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpMod:
		return "%"
	case ast.OpEq:
		return "=="
	case ast.OpNotEq:
		return "!="
	case ast.OpLt:
		return "<"
	case ast.OpLtEq:
		return "<="
	case ast.OpGt:
		return ">"
	case ast.OpGtEq:
		return ">="
	case ast.OpAnd:
		return "&&"
	case ast.OpOr:
		return "||"
	default:
		return "?"
	}
}

func unOpLabel(op ast.UnOp) string {
	if op == ast.OpNot {
		return "!"
	}
	return "-"
}

func (p *Parser) parseClass(public bool) *ast.ClassDecl {
	start := p.tok.Span
	p.expect(token.KwClass)
	name := p.expect(token.Ident).Lit
	tps := p.parseTypeParams()
	var brackets []ast.BracketDep
	if p.accept(token.LBracket) {
		for !p.at(token.RBracket) && !p.at(token.EOF) {
			bn := p.expect(token.Ident).Lit
			p.expect(token.Colon)
			bt := p.parseType()
			brackets = append(brackets, ast.BracketDep{Name: bn, Type: bt})
			if !p.accept(token.Comma) {
				break
			}
		}
		p.expect(token.RBracket)
	}
	var implements []string
	if p.accept(token.Colon) {
		implements = append(implements, p.expect(token.Ident).Lit)
		for p.accept(token.Plus) {
			implements = append(implements, p.expect(token.Ident).Lit)
		}
	}
	p.expect(token.LBrace)
	cd := &ast.ClassDecl{
		Sp: start, ID: ast.NewID(), Name: name, TypeParams: tps,
		Implements: implements, BracketDeps: brackets, Public: public,
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if !p.enter() {
			break
		}
		p.parseClassMember(cd)
		p.leave()
	}
	p.expect(token.RBrace)
	cd.Sp = cd.Sp.Join(p.prev.Span)
	return cd
}

func (p *Parser) parseClassMember(cd *ast.ClassDecl) {
	switch p.tok.Kind {
	case token.KwInvariant:
		cd.Invariants = append(cd.Invariants, p.parseInvariants()...)
	case token.KwPub:
		p.advance()
		p.parseClassField(cd, true)
	case token.KwFn:
		cd.Methods = append(cd.Methods, p.parseFunc(false))
	default:
		p.parseClassField(cd, false)
	}
}

func (p *Parser) parseClassField(cd *ast.ClassDecl, public bool) {
	if p.at(token.KwFn) {
		m := p.parseFunc(public)
		cd.Methods = append(cd.Methods, m)
		return
	}
	start := p.tok.Span
	name := p.expect(token.Ident).Lit
	p.expect(token.Colon)
	typ := p.parseType()
	p.accept(token.Semi)
	cd.Fields = append(cd.Fields, ast.FieldDecl{Sp: start.Join(p.prev.Span), Name: name, Type: typ, Public: public})
}

func (p *Parser) parseTrait(public bool) *ast.TraitDecl {
	start := p.tok.Span
	p.expect(token.KwTrait)
	name := p.expect(token.Ident).Lit
	p.expect(token.LBrace)
	td := &ast.TraitDecl{Sp: start, ID: ast.NewID(), Name: name, Public: public}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		msp := p.tok.Span
		p.expect(token.KwFn)
		mname := p.expect(token.Ident).Lit
		params := p.parseParams()
		ret := p.parseReturnType()
		var def *ast.BlockExpr
		if p.at(token.LBrace) {
			def = p.parseBlock()
		} else {
			p.accept(token.Semi)
		}
		td.Methods = append(td.Methods, ast.MethodSig{Sp: msp.Join(p.prev.Span), ID: ast.NewID(), Name: mname, Params: params, Return: ret, Default: def})
	}
	p.expect(token.RBrace)
	td.Sp = td.Sp.Join(p.prev.Span)
	return td
}

func (p *Parser) parseEnum(public bool) *ast.EnumDecl {
	start := p.tok.Span
	p.expect(token.KwEnum)
	name := p.expect(token.Ident).Lit
	tps := p.parseTypeParams()
	p.expect(token.LBrace)
	ed := &ast.EnumDecl{Sp: start, ID: ast.NewID(), Name: name, TypeParams: tps, Public: public}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		vsp := p.tok.Span
		vname := p.expect(token.Ident).Lit
		var fields []ast.FieldDecl
		if p.accept(token.LParen) {
			for !p.at(token.RParen) && !p.at(token.EOF) {
				fname := p.expect(token.Ident).Lit
				p.expect(token.Colon)
				ftyp := p.parseType()
				fields = append(fields, ast.FieldDecl{Name: fname, Type: ftyp})
				if !p.accept(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
		}
		ed.Variants = append(ed.Variants, ast.VariantDecl{Sp: vsp.Join(p.prev.Span), Name: vname, Fields: fields})
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	ed.Sp = ed.Sp.Join(p.prev.Span)
	return ed
}

func (p *Parser) parseErrorDecl(public bool) *ast.ErrorDecl {
	start := p.tok.Span
	p.expect(token.KwError)
	name := p.expect(token.Ident).Lit
	errd := &ast.ErrorDecl{Sp: start, ID: ast.NewID(), Name: name, Public: public}
	if p.accept(token.LBrace) {
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			fname := p.expect(token.Ident).Lit
			p.expect(token.Colon)
			ftyp := p.parseType()
			errd.Fields = append(errd.Fields, ast.FieldDecl{Name: fname, Type: ftyp})
			p.accept(token.Semi)
		}
		p.expect(token.RBrace)
	} else {
		p.accept(token.Semi)
	}
	errd.Sp = errd.Sp.Join(p.prev.Span)
	return errd
}

func (p *Parser) parseInjectFields() []ast.BracketDep {
	var out []ast.BracketDep
	for p.at(token.Ident) {
		name := p.tok.Lit
		p.advance()
		p.expect(token.Colon)
		typ := p.parseType()
		out = append(out, ast.BracketDep{Name: name, Type: typ})
		p.accept(token.Semi)
	}
	return out
}

func (p *Parser) parseApp() *ast.AppDecl {
	start := p.tok.Span
	p.expect(token.KwApp)
	name := p.expect(token.Ident).Lit
	p.expect(token.LBrace)
	deps := p.parseInjectFields()
	var main *ast.FuncDecl
	if p.at(token.KwFn) {
		main = p.parseFunc(false)
	} else {
		p.diags.Addf(diag.ParseError, p.tok.Span, "app %q must declare fn main(self)", name)
	}
	p.expect(token.RBrace)
	return &ast.AppDecl{Sp: start.Join(p.prev.Span), ID: ast.NewID(), Name: name, BracketDeps: deps, Main: main}
}

func (p *Parser) parseStage() *ast.StageDecl {
	start := p.tok.Span
	p.expect(token.KwStage)
	name := p.expect(token.Ident).Lit
	p.expect(token.LBrace)
	deps := p.parseInjectFields()
	var main *ast.FuncDecl
	if p.at(token.KwFn) {
		main = p.parseFunc(false)
	}
	p.expect(token.RBrace)
	return &ast.StageDecl{Sp: start.Join(p.prev.Span), ID: ast.NewID(), Name: name, BracketDeps: deps, Main: main}
}

func (p *Parser) parseSystem() *ast.SystemDecl {
	start := p.tok.Span
	p.expect(token.KwSystem)
	name := p.expect(token.Ident).Lit
	p.expect(token.LBrace)
	sys := &ast.SystemDecl{Sp: start, ID: ast.NewID(), Name: name}
	for p.at(token.Ident) {
		sys.Stages = append(sys.Stages, p.tok.Lit)
		p.advance()
		p.accept(token.Comma)
	}
	p.expect(token.RBrace)
	sys.Sp = sys.Sp.Join(p.prev.Span)
	return sys
}

// parseTest parses `test "name" [@strategy[(max_depth: N, max_schedules: N)]] { body }`.
func (p *Parser) parseTest() *ast.TestDecl {
	start := p.tok.Span
	p.expect(token.KwTest)
	name := p.expect(token.String).Lit
	td := &ast.TestDecl{Sp: start, ID: ast.NewID(), Name: name}
	if p.accept(token.At) {
		td.Strategy = p.expect(token.Ident).Lit
		if p.accept(token.LParen) {
			for !p.at(token.RParen) && !p.at(token.EOF) {
				key := p.expect(token.Ident).Lit
				p.expect(token.Colon)
				val := p.expect(token.Int).Lit
				n := parseIntLit(val)
				switch key {
				case "max_depth":
					td.MaxDepth = n
				case "max_schedules":
					td.MaxSched = n
				}
				if !p.accept(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
		}
	}
	td.Body = p.parseBlock()
	td.Sp = td.Sp.Join(p.prev.Span)
	return td
}

func parseIntLit(lit string) int {
	n := 0
	for _, c := range lit {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
