package typeck

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/types"
)

// localVar is a name bound in a function body: a parameter, a `let`
// binding, a for-loop or match-arm binding, or a closure parameter.
type localVar struct {
	Type    types.Type
	Mutable bool
}

// localScope is the lexical scope stack for local bindings, mirroring
// xref.scope but carrying checked types instead of just presence.
type localScope struct {
	parent *localScope
	vars   map[string]*localVar
}

func newLocalScope(parent *localScope) *localScope {
	return &localScope{parent: parent, vars: map[string]*localVar{}}
}

func (s *localScope) bind(name string, t types.Type, mutable bool) {
	if name != "" && name != "_" {
		s.vars[name] = &localVar{Type: t, Mutable: mutable}
	}
}

func (s *localScope) lookup(name string) (*localVar, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// funcCtx carries the information check needs about the function whose
// body is currently being walked: its declared return type (for `return`
// and `yield`), and, inside a method body, `self`'s checked type and
// whether it was declared `mut self` (for the mutability rules in
// mutability.go).
type funcCtx struct {
	Return     types.Type
	IsStream   bool // declared return is StreamType: `yield` checks against its element
	SelfType   types.Type
	SelfMut    bool
	InClass    *classInfo
}

// Checker walks a flattened, xref-resolved Program and reports every
// violation of spec.md §4.4 it finds, accumulating diagnostics rather than
// stopping at the first (the same policy xref and flatten use).
type Checker struct {
	prog  *ast.Program
	env   *Env
	diags diag.Bag
}

// Check type-checks prog in place, recording the checked type of every
// expression is NOT persisted on the AST (the grammar's nodes carry no
// type-annotation slot); instead Check's only externally visible effect is
// its returned diagnostics. Later passes that need a checked type recompute
// it locally from the now-validated, monomorphic program.
func Check(prog *ast.Program) error {
	var diags diag.Bag
	env := register(prog, &diags)
	c := &Checker{prog: prog, env: env, diags: diags}
	c.checkProgram()
	return c.diags.AsError()
}

func (c *Checker) checkProgram() {
	for _, f := range c.prog.Funcs {
		c.checkFunc(f, nil)
	}
	for _, ci := range c.env.classes {
		for _, m := range ci.Decl.Methods {
			c.checkFunc(m, ci)
		}
	}
	if c.prog.App != nil {
		c.checkBracketDeps(c.prog.App.BracketDeps)
		if c.prog.App.Main != nil {
			c.checkFunc(c.prog.App.Main, nil)
		}
	}
	for _, s := range c.prog.Stages {
		c.checkBracketDeps(s.BracketDeps)
		if s.Main != nil {
			c.checkFunc(s.Main, nil)
		}
	}
	for _, t := range c.prog.Tests {
		if t.Body != nil {
			c.checkBlock(t.Body, newLocalScope(nil), &funcCtx{})
		}
	}
}

// checkBracketDeps only checks that a dependency names a class or a trait;
// resolving a trait-typed dependency to its concrete provider class (and
// rejecting a missing or ambiguous one) is DI wiring's job, since it runs
// program-wide after every class's Implements list is available (spec.md
// §4.8).
func (c *Checker) checkBracketDeps(deps []ast.BracketDep) {
	for _, d := range deps {
		conv := types.NewConverter(nil)
		t := conv.From(d.Type)
		switch t.(type) {
		case *types.ClassRef, *types.TraitRef:
		default:
			c.diags.Addf(diag.TypeError, d.Sp, "bracket dependency %q must name a class or trait", d.Name)
		}
	}
}

// checkFunc type-checks one function or method body. self is non-nil only
// for a method: it supplies self's checked type and determines whether
// `self` is mutable for this particular method (spec.md §4.4's mutability
// rule, applied per-method since `mut self` is declared on the method, not
// the class).
func (c *Checker) checkFunc(f *ast.FuncDecl, self *classInfo) {
	if f == nil || f.Body == nil {
		return
	}
	var declTPs []ast.TypeParam
	if self != nil {
		declTPs = append(declTPs, self.Decl.TypeParams...)
	}
	declTPs = append(declTPs, f.TypeParams...)
	conv := types.NewConverter(typeParamNames(declTPs))

	sc := newLocalScope(nil)
	fc := &funcCtx{Return: conv.From(f.Return)}
	if st, ok := fc.Return.(*types.Stream); ok {
		fc.IsStream = true
		fc.Return = st.Elem
	}
	if self != nil {
		fc.InClass = self
		targs := make([]types.Type, len(self.TypeParams))
		for i, name := range self.TypeParams {
			targs[i] = &types.Var{Name: name, ID: i}
		}
		fc.SelfType = &types.ClassRef{ID: self.Decl.ID, Name: self.Decl.Name, TypeArgs: targs}
	}
	for _, p := range f.Params {
		if p.Name == "self" {
			fc.SelfMut = p.Mutable
			sc.bind("self", fc.SelfType, p.Mutable)
			continue
		}
		sc.bind(p.Name, conv.From(p.Type), p.Mutable)
	}
	for _, ct := range f.Contracts {
		c.checkContract(ct, sc, fc)
	}
	c.checkBlock(f.Body, sc, fc)
}
