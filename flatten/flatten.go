// Package flatten is the module flattener (spec.md §4.3). It runs after
// xref and turns `module.sub.Thing` surface syntax and `import foo.bar`
// declarations into a single flat namespace: every QualifiedAccess
// expression and QualifiedType type node is rewritten to a concrete
// reference to the declaration it names, pub-visibility is checked across
// module boundaries, and every Module's declarations are concatenated into
// the Program's own flat lists.
//
// Import cycles (module A imports B, B imports A, transitively or not) are
// a compile error. Diamond imports - two modules importing a common
// dependency - are permitted; nothing is duplicated, since a declaration is
// identified by its UUID rather than copied per importer.
package flatten

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
)

// token0 is the span used for diagnostics that are not anchored to a single
// syntax location (e.g. an import-cycle report spanning several modules).
func token0() token.Span { return token.Span{} }

// Flattener carries the state needed to resolve qualified references and
// concatenate every Module into the Program.
type Flattener struct {
	// byQualifiedName maps a "::"-joined fully-qualified name (module path
	// segments followed by the declaration name, or the bare name for a
	// root-level declaration) to the declaration it names.
	byQualifiedName map[string]ast.Decl
	// moduleOf maps a declaration UUID to the dotted path of the module it
	// was declared in ("" for root-level declarations).
	moduleOf map[ast.ID]string
	// importsOf maps a module path (or "" for root) to the list of paths it
	// imports, used for cycle detection and qualified-name resolution
	// through an aliased first segment.
	importsOf map[string][][]string

	diags diag.Bag
}

// Flatten performs the module-flattening pass in place and returns an error
// aggregating every diagnostic produced. On success prog.Modules is empty
// and every surviving declaration lives in the Program's own flat lists.
func Flatten(prog *ast.Program) error {
	f := &Flattener{
		byQualifiedName: map[string]ast.Decl{},
		moduleOf:        map[ast.ID]string{},
		importsOf:       map[string][][]string{},
	}
	f.register(prog)
	f.checkImportCycles()
	f.resolveProgram(prog)
	f.concatenate(prog)
	if f.diags.HasErrors() {
		return f.diags.AsError()
	}
	assertNoQualifiedSurvives(prog)
	return nil
}

func (f *Flattener) register(prog *ast.Program) {
	for _, d := range prog.AllDecls() {
		f.addDecl("", d)
	}
	f.importsOf[""] = importPaths(prog.Imports)

	for _, m := range prog.Modules {
		path := pathKey(m.Path)
		inner := &ast.Program{
			Funcs: m.Funcs, Externs: m.Externs, Classes: m.Classes, Traits: m.Traits,
			Enums: m.Enums, Errors: m.Errors, App: m.App, Stages: m.Stages,
			System: m.System, Tests: m.Tests,
		}
		for _, d := range inner.AllDecls() {
			f.addDecl(path, d)
		}
		f.importsOf[path] = append(f.importsOf[path], importPaths(m.Imports)...)
	}
}

func (f *Flattener) addDecl(modulePath string, d ast.Decl) {
	f.moduleOf[d.DeclID()] = modulePath
	qn := qualify(modulePath, d.DeclName())
	f.byQualifiedName[qn] = d
}

func importPaths(imports []ast.Import) [][]string {
	var out [][]string
	for _, imp := range imports {
		out = append(out, imp.Path)
	}
	return out
}

func pathKey(path []string) string {
	key := ""
	for i, seg := range path {
		if i > 0 {
			key += "::"
		}
		key += seg
	}
	return key
}

func qualify(modulePath, name string) string {
	if modulePath == "" {
		return name
	}
	return modulePath + "::" + name
}

// checkImportCycles walks the import graph built during register and
// reports a FlattenError for every cycle found. Diamond shapes (two modules
// importing a common dependency through different paths) are not cycles
// and are left untouched.
func (f *Flattener) checkImportCycles() {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(path string) bool
	visit = func(path string) bool {
		if color[path] == black {
			return false
		}
		if color[path] == gray {
			f.diags.Addf(diag.FlattenError, token0(), "import cycle detected at module %q", displayPath(path))
			return true
		}
		color[path] = gray
		for _, imp := range f.importsOf[path] {
			if visit(pathKey(imp)) {
				return true
			}
		}
		color[path] = black
		return false
	}
	for path := range f.importsOf {
		if color[path] == white {
			visit(path)
		}
	}
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

func assertNoQualifiedSurvives(prog *ast.Program) {
	if len(prog.Modules) != 0 {
		panic("flatten: Program.Modules not emptied after flattening")
	}
	for _, d := range prog.AllDecls() {
		walkDeclForQualified(d)
	}
}

func walkDeclForQualified(d ast.Decl) {
	switch v := d.(type) {
	case *ast.FuncDecl:
		assertFuncClean(v)
	case *ast.ExternFuncDecl:
		for i := range v.Params {
			assertTypeClean(v.Params[i].Type)
		}
		assertTypeClean(v.Return)
	case *ast.ClassDecl:
		for i := range v.Fields {
			assertTypeClean(v.Fields[i].Type)
		}
		for i := range v.BracketDeps {
			assertTypeClean(v.BracketDeps[i].Type)
		}
		for _, m := range v.Methods {
			assertFuncClean(m)
		}
	case *ast.TraitDecl:
		for _, m := range v.Methods {
			for i := range m.Params {
				assertTypeClean(m.Params[i].Type)
			}
			assertTypeClean(m.Return)
		}
	case *ast.EnumDecl:
		for _, variant := range v.Variants {
			for i := range variant.Fields {
				assertTypeClean(variant.Fields[i].Type)
			}
		}
	case *ast.ErrorDecl:
		for i := range v.Fields {
			assertTypeClean(v.Fields[i].Type)
		}
	case *ast.AppDecl:
		for i := range v.BracketDeps {
			assertTypeClean(v.BracketDeps[i].Type)
		}
		if v.Main != nil {
			assertFuncClean(v.Main)
		}
	case *ast.StageDecl:
		for i := range v.BracketDeps {
			assertTypeClean(v.BracketDeps[i].Type)
		}
		if v.Main != nil {
			assertFuncClean(v.Main)
		}
	case *ast.SystemDecl:
		// no type or expression positions
	case *ast.TestDecl:
		if v.Body != nil {
			assertExprClean(v.Body)
		}
	default:
		panic(fmt.Sprintf("flatten: unhandled declaration variant %T", d))
	}
}

func assertFuncClean(fn *ast.FuncDecl) {
	for i := range fn.Params {
		assertTypeClean(fn.Params[i].Type)
	}
	assertTypeClean(fn.Return)
	for i := range fn.Contracts {
		assertExprClean(fn.Contracts[i].Expr)
	}
	if fn.Body != nil {
		assertExprClean(fn.Body)
	}
}

// concatenate appends every Module's declarations into prog's own flat
// lists and empties prog.Modules.
func (f *Flattener) concatenate(prog *ast.Program) {
	for _, m := range prog.Modules {
		prog.Funcs = append(prog.Funcs, m.Funcs...)
		prog.Externs = append(prog.Externs, m.Externs...)
		prog.Classes = append(prog.Classes, m.Classes...)
		prog.Traits = append(prog.Traits, m.Traits...)
		prog.Enums = append(prog.Enums, m.Enums...)
		prog.Errors = append(prog.Errors, m.Errors...)
		if m.App != nil {
			if prog.App != nil {
				f.diags.Addf(diag.FlattenError, m.Sp, "more than one app declared across modules")
			} else {
				prog.App = m.App
			}
		}
		prog.Stages = append(prog.Stages, m.Stages...)
		if m.System != nil {
			if prog.System != nil {
				f.diags.Addf(diag.FlattenError, m.Sp, "more than one system declared across modules")
			} else {
				prog.System = m.System
			}
		}
		prog.Tests = append(prog.Tests, m.Tests...)
	}
	prog.Modules = nil
}
