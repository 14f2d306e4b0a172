// Package xref is the cross-reference resolver (spec.md §4.2). It runs a
// single pass over a freshly-parsed *ast.Program and, for every
// call/struct-literal/enum-construction/raise/match-arm/etc. reference,
// resolves the target declaration's UUID and stores it on the expression
// node (the xrefNode-embedding kinds in package ast). Two-phase lifecycle —
// register a name registry, then resolve against it — mirrors the
// Prepare/Validate split the teacher's expr/agent/*.go uses before
// validating a DSL root against its own registry.
//
// Module-qualified names (QualifiedType, QualifiedAccess, and any
// ClassRefType/TraitRefType/EnumRefType whose parser-produced path carried
// more than one segment) are deliberately left unresolved here: the module
// flattener (spec.md §4.3) owns rewriting those into flat names and is
// already in a position to resolve them directly against its own
// fully-qualified registry, so xref only ever sees — and only ever needs to
// resolve — single-segment, same-namespace references.
package xref

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
)

// Resolver holds the declaration registry built during the register phase
// and the diagnostics accumulated during the resolve phase.
type Resolver struct {
	registry   map[string][]ast.Decl
	typeParams *scope
	diags      diag.Bag
}

// Resolve runs the cross-reference pass over prog in place and returns an
// error (a non-empty diag.Bag) if any reference could not be resolved.
func Resolve(prog *ast.Program) error {
	r := &Resolver{registry: map[string][]ast.Decl{}}
	r.register(prog)
	r.resolveProgram(prog)
	return r.diags.AsError()
}

// register walks every declaration reachable from prog — including
// declarations nested in not-yet-flattened ast.Module blocks — and indexes
// them by name in a single flat namespace. Functions, classes, traits,
// enums, and errors all share this namespace, matching the grammar's single
// set of top-level declaration keywords.
func (r *Resolver) register(prog *ast.Program) {
	for _, d := range prog.AllDecls() {
		r.add(d)
	}
	for _, m := range prog.Modules {
		r.registerModule(m)
	}
}

func (r *Resolver) registerModule(m *ast.Module) {
	inner := &ast.Program{
		Funcs: m.Funcs, Externs: m.Externs, Classes: m.Classes, Traits: m.Traits,
		Enums: m.Enums, Errors: m.Errors, App: m.App, Stages: m.Stages,
		System: m.System, Tests: m.Tests,
	}
	for _, d := range inner.AllDecls() {
		r.add(d)
	}
}

func (r *Resolver) add(d ast.Decl) {
	r.registry[d.DeclName()] = append(r.registry[d.DeclName()], d)
}

// lookup resolves name against the registry, reporting "unknown name" or
// "ambiguous name" as appropriate. It returns nil if resolution failed (a
// diagnostic has already been recorded).
func (r *Resolver) lookup(name string, sp token.Span) ast.Decl {
	matches := r.registry[name]
	switch len(matches) {
	case 0:
		r.diags.Addf(diag.XrefError, sp, "unknown name %q", name)
		return nil
	case 1:
		return matches[0]
	default:
		r.diags.Addf(diag.XrefError, sp, "ambiguous name %q (%d candidate declarations)", name, len(matches))
		return nil
	}
}

// lookupKind resolves name and additionally requires the result be one of
// wantKinds, reporting a wrong-kind-reference diagnostic otherwise.
func (r *Resolver) lookupKind(name string, sp token.Span, what string, ok func(ast.Decl) bool) ast.Decl {
	d := r.lookup(name, sp)
	if d == nil {
		return nil
	}
	if !ok(d) {
		r.diags.Addf(diag.XrefError, sp, "%q is not %s", name, what)
		return nil
	}
	return d
}
