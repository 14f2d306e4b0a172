package xref

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
)

func isClass(d ast.Decl) bool { _, ok := d.(*ast.ClassDecl); return ok }
func isTrait(d ast.Decl) bool { _, ok := d.(*ast.TraitDecl); return ok }
func isEnum(d ast.Decl) bool  { _, ok := d.(*ast.EnumDecl); return ok }
func isError(d ast.Decl) bool { _, ok := d.(*ast.ErrorDecl); return ok }
func isStage(d ast.Decl) bool { _, ok := d.(*ast.StageDecl); return ok }
func isCallable(d ast.Decl) bool {
	switch d.(type) {
	case *ast.FuncDecl, *ast.ExternFuncDecl:
		return true
	default:
		return false
	}
}

// resolveProgram resolves every reference in prog, recursing into any
// not-yet-flattened Module declarations so every function body anywhere in
// the program gets a resolve pass.
func (r *Resolver) resolveProgram(prog *ast.Program) {
	r.resolveDecls(prog.Funcs, prog.Externs, prog.Classes, prog.Traits, prog.Enums, prog.Errors, prog.App, prog.Stages, prog.System, prog.Tests)
	for _, m := range prog.Modules {
		r.resolveDecls(m.Funcs, m.Externs, m.Classes, m.Traits, m.Enums, m.Errors, m.App, m.Stages, m.System, m.Tests)
	}
}

func (r *Resolver) resolveDecls(
	funcs []*ast.FuncDecl, externs []*ast.ExternFuncDecl, classes []*ast.ClassDecl, traits []*ast.TraitDecl,
	enums []*ast.EnumDecl, errs []*ast.ErrorDecl, app *ast.AppDecl,
	stages []*ast.StageDecl, sys *ast.SystemDecl, tests []*ast.TestDecl,
) {
	for _, f := range funcs {
		r.resolveFunc(f)
	}
	for _, ex := range externs {
		pop := r.pushTypeParams(ex.Sp, ex.TypeParams)
		for i := range ex.Params {
			r.resolveTypeExpr(&ex.Params[i].Type)
		}
		if ex.Return != nil {
			r.resolveTypeExpr(&ex.Return)
		}
		pop()
	}
	for _, c := range classes {
		r.resolveClass(c)
	}
	for _, t := range traits {
		r.resolveTrait(t)
	}
	for _, e := range enums {
		pop := r.pushTypeParams(e.Sp, e.TypeParams)
		for vi := range e.Variants {
			for fi := range e.Variants[vi].Fields {
				r.resolveTypeExpr(&e.Variants[vi].Fields[fi].Type)
			}
		}
		pop()
	}
	for _, e := range errs {
		for fi := range e.Fields {
			r.resolveTypeExpr(&e.Fields[fi].Type)
		}
	}
	if app != nil {
		r.resolveBracketDeps(app.BracketDeps)
		if app.Main != nil {
			r.resolveFunc(app.Main)
		}
	}
	for _, s := range stages {
		r.resolveBracketDeps(s.BracketDeps)
		if s.Main != nil {
			r.resolveFunc(s.Main)
		}
	}
	if sys != nil {
		for _, name := range sys.Stages {
			r.lookupKind(name, sys.Sp, "a stage", isStage)
		}
	}
	for _, t := range tests {
		if t.Body != nil {
			r.resolveBlock(t.Body, newScope(nil))
		}
	}
}

func (r *Resolver) resolveFunc(f *ast.FuncDecl) {
	pop := r.pushTypeParams(f.Sp, f.TypeParams)
	defer pop()
	sc := newScope(nil)
	for i := range f.Params {
		r.resolveTypeExpr(&f.Params[i].Type)
		sc.bind(f.Params[i].Name)
	}
	if f.Return != nil {
		r.resolveTypeExpr(&f.Return)
	}
	for i := range f.Contracts {
		r.resolveExpr(&f.Contracts[i].Expr, sc)
	}
	if f.Body != nil {
		r.resolveBlock(f.Body, sc)
	}
}

func (r *Resolver) resolveClass(c *ast.ClassDecl) {
	pop := r.pushTypeParams(c.Sp, c.TypeParams)
	defer pop()
	r.resolveBracketDeps(c.BracketDeps)
	for fi := range c.Fields {
		r.resolveTypeExpr(&c.Fields[fi].Type)
	}
	for _, name := range c.Implements {
		r.lookupKind(name, c.Sp, "a trait", isTrait)
	}
	sc := newScope(nil)
	for i := range c.Invariants {
		r.resolveExpr(&c.Invariants[i].Expr, sc)
	}
	for _, m := range c.Methods {
		r.resolveFunc(m)
	}
}

func (r *Resolver) resolveTrait(t *ast.TraitDecl) {
	for mi := range t.Methods {
		m := &t.Methods[mi]
		for pi := range m.Params {
			r.resolveTypeExpr(&m.Params[pi].Type)
		}
		if m.Return != nil {
			r.resolveTypeExpr(&m.Return)
		}
		if m.Default != nil {
			sc := newScope(nil)
			for _, p := range m.Params {
				sc.bind(p.Name)
			}
			r.resolveBlock(m.Default, sc)
		}
	}
}

func (r *Resolver) resolveBracketDeps(deps []ast.BracketDep) {
	for i := range deps {
		r.resolveTypeExpr(&deps[i].Type)
	}
}

// pushTypeParams validates tps' trait bounds and binds their names into a
// new scope nested under whatever type-parameter scope is currently active
// (a method's own type parameters sit alongside its enclosing class's), so
// that a later ClassRefType reference to a type parameter's own name
// resolves as a type variable rather than an unknown top-level name. The
// returned func restores the previous scope and must be called when the
// declaration's type positions are done being resolved.
func (r *Resolver) pushTypeParams(sp token.Span, tps []ast.TypeParam) func() {
	for _, tp := range tps {
		for _, bound := range tp.Bounds {
			r.lookupKind(bound, sp, "a trait", isTrait)
		}
	}
	parent := r.typeParams
	child := newScope(parent)
	for _, tp := range tps {
		child.bind(tp.Name)
	}
	r.typeParams = child
	return func() { r.typeParams = parent }
}

// wrongKindErr is a small helper for the Ident/Call reclassification sites
// in expr.go, kept here next to the other diag.* call sites for visibility.
func (r *Resolver) wrongKindErr(name string, sp token.Span, want string) {
	r.diags.Addf(diag.XrefError, sp, "%q is not %s", name, want)
}
