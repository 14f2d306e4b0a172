package flatten

import "github.com/plutolang/pluto/ast"

// resolveProgram walks every declaration in prog, plus every declaration in
// each not-yet-concatenated Module, rewriting qualified references in type
// and expression position.
func (f *Flattener) resolveProgram(prog *ast.Program) {
	f.resolveDecls("", prog.Funcs, prog.Externs, prog.Classes, prog.Traits, prog.Enums, prog.Errors, prog.App, prog.Stages, prog.System, prog.Tests)
	for _, m := range prog.Modules {
		path := pathKey(m.Path)
		f.resolveDecls(path, m.Funcs, m.Externs, m.Classes, m.Traits, m.Enums, m.Errors, m.App, m.Stages, m.System, m.Tests)
	}
}

func (f *Flattener) resolveDecls(
	modulePath string,
	funcs []*ast.FuncDecl, externs []*ast.ExternFuncDecl, classes []*ast.ClassDecl, traits []*ast.TraitDecl,
	enums []*ast.EnumDecl, errs []*ast.ErrorDecl, app *ast.AppDecl,
	stages []*ast.StageDecl, sys *ast.SystemDecl, tests []*ast.TestDecl,
) {
	for _, fn := range funcs {
		f.resolveFunc(modulePath, fn)
	}
	for _, ex := range externs {
		for i := range ex.Params {
			f.resolveTypeExpr(modulePath, &ex.Params[i].Type)
		}
		f.resolveTypeExpr(modulePath, &ex.Return)
	}
	for _, c := range classes {
		f.resolveClass(modulePath, c)
	}
	for _, t := range traits {
		for mi := range t.Methods {
			m := &t.Methods[mi]
			for pi := range m.Params {
				f.resolveTypeExpr(modulePath, &m.Params[pi].Type)
			}
			f.resolveTypeExpr(modulePath, &m.Return)
			if m.Default != nil {
				f.resolveBlock(modulePath, m.Default)
			}
		}
	}
	for _, e := range enums {
		for vi := range e.Variants {
			for fi := range e.Variants[vi].Fields {
				f.resolveTypeExpr(modulePath, &e.Variants[vi].Fields[fi].Type)
			}
		}
	}
	for _, e := range errs {
		for fi := range e.Fields {
			f.resolveTypeExpr(modulePath, &e.Fields[fi].Type)
		}
	}
	if app != nil {
		for i := range app.BracketDeps {
			f.resolveTypeExpr(modulePath, &app.BracketDeps[i].Type)
		}
		if app.Main != nil {
			f.resolveFunc(modulePath, app.Main)
		}
	}
	for _, s := range stages {
		for i := range s.BracketDeps {
			f.resolveTypeExpr(modulePath, &s.BracketDeps[i].Type)
		}
		if s.Main != nil {
			f.resolveFunc(modulePath, s.Main)
		}
	}
	_ = sys // SystemDecl.Stages is a name list resolved by xref; no type/expr positions here
	for _, t := range tests {
		if t.Body != nil {
			f.resolveBlock(modulePath, t.Body)
		}
	}
}

func (f *Flattener) resolveFunc(modulePath string, fn *ast.FuncDecl) {
	for i := range fn.Params {
		f.resolveTypeExpr(modulePath, &fn.Params[i].Type)
	}
	f.resolveTypeExpr(modulePath, &fn.Return)
	for i := range fn.Contracts {
		f.resolveExpr(modulePath, &fn.Contracts[i].Expr)
	}
	if fn.Body != nil {
		f.resolveBlock(modulePath, fn.Body)
	}
}

func (f *Flattener) resolveClass(modulePath string, c *ast.ClassDecl) {
	for fi := range c.Fields {
		f.resolveTypeExpr(modulePath, &c.Fields[fi].Type)
	}
	for i := range c.BracketDeps {
		f.resolveTypeExpr(modulePath, &c.BracketDeps[i].Type)
	}
	for i := range c.Invariants {
		f.resolveExpr(modulePath, &c.Invariants[i].Expr)
	}
	for _, m := range c.Methods {
		f.resolveFunc(modulePath, m)
	}
}
