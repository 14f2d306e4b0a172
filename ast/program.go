package ast

import "github.com/plutolang/pluto/token"

// Import is a single `import foo.bar` declaration.
type Import struct {
	Sp   token.Span
	Path []string // e.g. ["foo", "bar"]
}

// Module is a named, possibly-nested source unit as produced by the parser
// for a `module` block. The flattener (spec.md §4.3) consumes every Module
// in a Program and concatenates their declarations into Program's flat
// lists; no Module survives past that pass.
type Module struct {
	Sp      token.Span
	Path    []string // e.g. ["foo", "sub"]
	Imports []Import
	Funcs   []*FuncDecl
	Externs []*ExternFuncDecl
	Classes []*ClassDecl
	Traits  []*TraitDecl
	Enums   []*EnumDecl
	Errors  []*ErrorDecl
	App     *AppDecl
	Stages  []*StageDecl
	System  *SystemDecl
	Tests   []*TestDecl
}

// Program is the top-level container for a whole compilation
// (spec.md §3, "Program").
type Program struct {
	Imports []Import
	Modules []*Module // consumed and emptied by the module flattener

	Funcs   []*FuncDecl
	Externs []*ExternFuncDecl
	Classes []*ClassDecl
	Traits  []*TraitDecl
	Enums   []*EnumDecl
	Errors  []*ErrorDecl
	App     *AppDecl // at most one
	Stages  []*StageDecl
	System  *SystemDecl // at most one
	Tests   []*TestDecl

	// EntryFunc is the synthetic no-argument program entry point built by DI
	// wiring (spec.md §4.8 step 2): it constructs one singleton per
	// DI-participating class in dependency order and calls App.Main. Nil
	// until DI wiring runs; nil permanently for a program with no App.
	EntryFunc *FuncDecl
}

// AllDecls returns every top-level declaration in a stable order, used by
// passes that need to iterate declarations generically (register phase,
// UUID registries, etc).
func (p *Program) AllDecls() []Decl {
	var out []Decl
	for _, f := range p.Funcs {
		out = append(out, f)
	}
	for _, f := range p.Externs {
		out = append(out, f)
	}
	for _, c := range p.Classes {
		out = append(out, c)
	}
	for _, t := range p.Traits {
		out = append(out, t)
	}
	for _, e := range p.Enums {
		out = append(out, e)
	}
	for _, e := range p.Errors {
		out = append(out, e)
	}
	if p.App != nil {
		out = append(out, p.App)
	}
	for _, s := range p.Stages {
		out = append(out, s)
	}
	if p.System != nil {
		out = append(out, p.System)
	}
	for _, t := range p.Tests {
		out = append(out, t)
	}
	return out
}

// DeclByID returns the declaration with the given UUID, or nil.
func (p *Program) DeclByID(id ID) Decl {
	for _, d := range p.AllDecls() {
		if d.DeclID() == id {
			return d
		}
	}
	return nil
}
