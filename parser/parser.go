// Package parser is a hand-written recursive-descent parser with precedence
// climbing for binary operators (spec.md §4.1). It never panics on
// malformed input: lexical and syntactic errors become *diag.Diagnostic
// values collected in a Bag, and a recursion-depth bound turns pathological
// nesting into a diagnostic instead of a stack overflow.
//
// The parser never constructs monomorphized names, lifted closure names, or
// desugared spawn wrappers; those belong exclusively to later passes
// (spec.md §4.1, "Contract").
package parser

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/lexer"
	"github.com/plutolang/pluto/token"
)

// maxDepth bounds recursive-descent recursion so pathologically deep/nested
// input produces a diagnostic rather than a stack overflow.
const maxDepth = 250

// Parser consumes a token stream and produces an *ast.Program.
type Parser struct {
	lex   *lexer.Lexer
	tok   token.Token
	prev  token.Token
	diags diag.Bag
	depth int

	// noStructLit suppresses struct-literal parsing of `Ident { ... }` while
	// parsing if/while/for/match subjects, so the opening brace is always
	// read as the start of the body (mirrors Go's own composite-literal
	// restriction in statement conditions).
	noStructLit bool
}

// New constructs a Parser over src.
func New(src []byte) *Parser {
	p := &Parser{lex: lexer.New(src)}
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.prev = p.tok
	p.tok = p.lex.Next()
}

func (p *Parser) at(k token.Kind) bool { return p.tok.Kind == k }

func (p *Parser) accept(k token.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k token.Kind) token.Token {
	if !p.at(k) {
		p.diags.Addf(diag.ParseError, p.tok.Span, "expected %s, found %s %q", k, p.tok.Kind, p.tok.Lit)
		// Resynchronize: pretend the expected token was there so callers can
		// keep parsing and surface further diagnostics in one run.
		return p.tok
	}
	t := p.tok
	p.advance()
	return t
}

func (p *Parser) enter() bool {
	p.depth++
	if p.depth > maxDepth {
		p.diags.Addf(diag.ParseError, p.tok.Span, "nested structure exceeds maximum depth (%d)", maxDepth)
		return false
	}
	return true
}

func (p *Parser) leave() { p.depth-- }

// Diagnostics returns the accumulated lexical and syntactic diagnostics.
func (p *Parser) Diagnostics() *diag.Bag {
	var all diag.Bag
	all.Merge(p.lex.Diagnostics())
	all.Merge(&p.diags)
	return &all
}

// Parse parses a full compilation unit and returns the resulting Program.
// It always returns a Program (possibly partial); callers should check
// Diagnostics().HasErrors() rather than relying on a non-nil error alone.
func Parse(src []byte) (*ast.Program, error) {
	p := New(src)
	prog := p.parseProgram()
	return prog, p.Diagnostics().AsError()
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.at(token.EOF) {
		if !p.enter() {
			break
		}
		p.parseTopLevel(prog)
		p.leave()
	}
	return prog
}

func (p *Parser) parseTopLevel(prog *ast.Program) {
	switch p.tok.Kind {
	case token.KwImport:
		prog.Imports = append(prog.Imports, p.parseImport())
	case token.KwModule:
		prog.Modules = append(prog.Modules, p.parseModule())
	case token.KwPub:
		p.advance()
		p.parsePublicDecl(prog, true)
	case token.KwFn, token.KwClass, token.KwTrait, token.KwEnum, token.KwError, token.KwApp, token.KwStage, token.KwSystem, token.KwTest:
		p.parsePublicDecl(prog, false)
	default:
		p.diags.Addf(diag.ParseError, p.tok.Span, "unexpected token %s at top level", p.tok.Kind)
		p.advance()
	}
}

func (p *Parser) parsePublicDecl(prog *ast.Program, public bool) {
	switch p.tok.Kind {
	case token.KwFn:
		fn := p.parseFunc(public)
		if fn.Body == nil {
			prog.Externs = append(prog.Externs, &ast.ExternFuncDecl{
				Sp: fn.Sp, ID: fn.ID, Name: fn.Name, TypeParams: fn.TypeParams,
				Params: fn.Params, Return: fn.Return, Public: fn.Public,
			})
		} else {
			prog.Funcs = append(prog.Funcs, fn)
		}
	case token.KwClass:
		prog.Classes = append(prog.Classes, p.parseClass(public))
	case token.KwTrait:
		prog.Traits = append(prog.Traits, p.parseTrait(public))
	case token.KwEnum:
		prog.Enums = append(prog.Enums, p.parseEnum(public))
	case token.KwError:
		prog.Errors = append(prog.Errors, p.parseErrorDecl(public))
	case token.KwApp:
		app := p.parseApp()
		if prog.App != nil {
			p.diags.Addf(diag.ParseError, app.Sp, "program may declare at most one app")
		}
		prog.App = app
	case token.KwStage:
		prog.Stages = append(prog.Stages, p.parseStage())
	case token.KwSystem:
		sys := p.parseSystem()
		if prog.System != nil {
			p.diags.Addf(diag.ParseError, sys.Sp, "program may declare at most one system")
		}
		prog.System = sys
	case token.KwTest:
		prog.Tests = append(prog.Tests, p.parseTest())
	default:
		p.diags.Addf(diag.ParseError, p.tok.Span, "expected a declaration after pub")
		p.advance()
	}
}

func (p *Parser) parseImport() ast.Import {
	start := p.tok.Span
	p.expect(token.KwImport)
	path := p.parseDottedPath()
	return ast.Import{Sp: start.Join(p.prev.Span), Path: path}
}

func (p *Parser) parseDottedPath() []string {
	var path []string
	path = append(path, p.expect(token.Ident).Lit)
	for p.accept(token.Dot) {
		path = append(path, p.expect(token.Ident).Lit)
	}
	return path
}

func (p *Parser) parseModule() *ast.Module {
	start := p.tok.Span
	p.expect(token.KwModule)
	path := p.parseDottedPath()
	p.expect(token.LBrace)
	mod := &ast.Module{Sp: start, Path: path}
	inner := &ast.Program{}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if !p.enter() {
			break
		}
		p.parseTopLevel(inner)
		p.leave()
	}
	p.expect(token.RBrace)
	mod.Imports = inner.Imports
	mod.Funcs = inner.Funcs
	mod.Externs = inner.Externs
	mod.Classes = inner.Classes
	mod.Traits = inner.Traits
	mod.Enums = inner.Enums
	mod.Errors = inner.Errors
	mod.App = inner.App
	mod.Stages = inner.Stages
	mod.System = inner.System
	mod.Tests = inner.Tests
	mod.Sp = mod.Sp.Join(p.prev.Span)
	return mod
}
