// Package di wires dependency injection (spec.md §4.8): it resolves every
// bracket-dependency to a concrete provider class, topologically sorts the
// reachable DI graph rooted at the App (cycles are a compile error),
// synthesizes a program entry point that constructs one singleton per
// participating class in dependency order and calls App.Main, marks classes
// shared by more than one concurrent accessor, and blocks manual
// struct-literal construction of any class the graph now owns.
package di

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
)

// EntryFuncName is the synthesized program entry point's declared name.
const EntryFuncName = "__pluto_entry"

// node is one DI-participating class: either a real ClassDecl or a
// synthetic wrapper standing in for the App or a Stage root, so both flow
// through the same provider-resolution and topological-sort machinery as
// an ordinary bracket-dependency-declaring class.
type node struct {
	class *ast.ClassDecl
	// deps holds the resolved provider node for each of class.BracketDeps,
	// in the same order, so entry synthesis can zip a dep name to the
	// singleton variable that satisfies it.
	deps []*node
}

// wirer holds the working state for one Wire call.
type wirer struct {
	diags diag.Bag

	byID        map[ast.ID]*ast.ClassDecl
	byTraitImpl map[string][]*ast.ClassDecl
	methodOwner map[ast.ID]*ast.ClassDecl

	nodes  map[ast.ID]*node
	color  map[ast.ID]int
	order  []*node
}

const (
	white = iota
	gray
	black
)

// Wire rewrites prog in place. It is a no-op if prog has no App — a
// program with no App participates in no DI graph (spec.md §3, the App is
// the DI root).
func Wire(prog *ast.Program) error {
	if prog.App == nil {
		return nil
	}
	w := &wirer{
		byID:        map[ast.ID]*ast.ClassDecl{},
		byTraitImpl: map[string][]*ast.ClassDecl{},
		methodOwner: map[ast.ID]*ast.ClassDecl{},
		nodes:       map[ast.ID]*node{},
		color:       map[ast.ID]int{},
	}
	for _, c := range prog.Classes {
		w.byID[c.ID] = c
		for _, tr := range c.Implements {
			w.byTraitImpl[tr] = append(w.byTraitImpl[tr], c)
		}
		for _, m := range c.Methods {
			w.methodOwner[m.ID] = c
		}
	}

	appClass := &ast.ClassDecl{
		Sp:          prog.App.Sp,
		ID:          prog.App.ID,
		Name:        prog.App.Name,
		BracketDeps: prog.App.BracketDeps,
	}
	if prog.App.Main != nil {
		appClass.Methods = []*ast.FuncDecl{prog.App.Main}
		w.methodOwner[prog.App.Main.ID] = appClass
	}
	w.byID[appClass.ID] = appClass

	appRoot := w.getNode(appClass)
	if w.diags.HasErrors() {
		return w.diags.AsError()
	}
	if err := w.visit(appRoot); err != nil {
		w.diags.Addf(diag.DIError, appClass.Sp, "%s", err.Error())
		return w.diags.AsError()
	}
	appOrder := append([]*node(nil), w.order...)

	// Stage bracket-deps are resolved and cycle-checked too (a class a
	// Stage depends on is exactly as DI-managed as one an App depends on),
	// but no entry point is synthesized for a Stage: spec.md §3 reserves
	// Stage execution for the future distributed-RPC phase this compiler
	// does not drive yet.
	for _, s := range prog.Stages {
		stageClass := &ast.ClassDecl{Sp: s.Sp, ID: s.ID, Name: s.Name, BracketDeps: s.BracketDeps}
		if s.Main != nil {
			stageClass.Methods = []*ast.FuncDecl{s.Main}
			w.methodOwner[s.Main.ID] = stageClass
		}
		w.byID[stageClass.ID] = stageClass
		n := w.getNode(stageClass)
		if w.diags.HasErrors() {
			return w.diags.AsError()
		}
		if err := w.visit(n); err != nil {
			w.diags.Addf(diag.DIError, stageClass.Sp, "%s", err.Error())
			return w.diags.AsError()
		}
	}

	markConcurrentlyAccessed(prog, w.nodes, w.methodOwner)
	for _, n := range w.nodes {
		// appClass and each stageClass are synthetic wrappers, not real
		// entries in prog.Classes, so marking DIManaged on them is inert;
		// real participating classes get it so the spawn desugarer can
		// exempt an injected singleton reference from deep-copy.
		n.class.DIManaged = true
		// appClass itself is never spawned, so it can never be marked
		// concurrently-accessed; the check is defensive, not load-bearing.
		if n.class.ConcurrentlyAccessed && n.class != appClass {
			wrapLocking(n.class)
		}
	}

	w.blockManualConstruction(prog)
	if w.diags.HasErrors() {
		return w.diags.AsError()
	}

	entry := synthesizeEntry(appClass, appOrder)
	prog.Funcs = append(prog.Funcs, entry)
	prog.EntryFunc = entry

	return nil
}

// getNode returns c's node, building it (and recursively resolving its
// bracket-deps' providers) the first time c is seen. Resolution errors are
// accumulated on w.diags rather than returned, so every bad dependency in
// the program is reported in one pass instead of stopping at the first.
func (w *wirer) getNode(c *ast.ClassDecl) *node {
	if n, ok := w.nodes[c.ID]; ok {
		return n
	}
	n := &node{class: c}
	w.nodes[c.ID] = n
	for _, dep := range c.BracketDeps {
		provider, err := w.resolveProvider(dep)
		if err != nil {
			w.diags.Addf(diag.DIError, dep.Sp, "%s", err.Error())
			continue
		}
		n.deps = append(n.deps, w.getNode(provider))
	}
	return n
}

func (w *wirer) resolveProvider(dep ast.BracketDep) (*ast.ClassDecl, error) {
	switch t := dep.Type.(type) {
	case *ast.ClassRefType:
		if t.TargetID == nil {
			return nil, fmt.Errorf("bracket dependency %q names an unresolved class", dep.Name)
		}
		c, ok := w.byID[*t.TargetID]
		if !ok {
			return nil, fmt.Errorf("bracket dependency %q: no provider class %q", dep.Name, t.Name)
		}
		return c, nil
	case *ast.TraitRefType:
		matches := w.byTraitImpl[t.Name]
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("bracket dependency %q: no class implements trait %q", dep.Name, t.Name)
		case 1:
			return matches[0], nil
		default:
			names := make([]string, len(matches))
			for i, m := range matches {
				names[i] = m.Name
			}
			sort.Strings(names)
			return nil, fmt.Errorf("bracket dependency %q: ambiguous provider for trait %q (candidates: %s)",
				dep.Name, t.Name, strings.Join(names, ", "))
		}
	default:
		return nil, fmt.Errorf("bracket dependency %q has a type that cannot name a DI provider", dep.Name)
	}
}

// visit extends w.order with n and everything it depends on, using w.color
// (shared across every root Wire visits) so a class already ordered via an
// earlier root is neither revisited nor mistaken for a cycle.
func (w *wirer) visit(n *node) error {
	switch w.color[n.class.ID] {
	case black:
		return nil
	case gray:
		return fmt.Errorf("dependency cycle at class %q", n.class.Name)
	}
	w.color[n.class.ID] = gray
	for _, d := range n.deps {
		if err := w.visit(d); err != nil {
			return fmt.Errorf("%s -> %w", n.class.Name, err)
		}
	}
	w.color[n.class.ID] = black
	w.order = append(w.order, n)
	return nil
}

// synthesizeEntry builds the synthetic program entry point (spec.md §4.8
// step 2): one `let` per participating class, in dependency order, each
// StructLit threading its resolved providers' singleton variables into the
// matching BracketDeps slots, followed by the call into App.Main.
func synthesizeEntry(appClass *ast.ClassDecl, order []*node) *ast.FuncDecl {
	varName := map[ast.ID]string{}
	stmts := make([]ast.Expr, 0, len(order)+1)

	for _, n := range order {
		name := "__di_" + n.class.Name
		varName[n.class.ID] = name

		fields := make([]ast.StructField, len(n.class.BracketDeps))
		for i, dep := range n.class.BracketDeps {
			provID := n.deps[i].class.ID
			fields[i] = ast.StructField{Name: dep.Name, Value: &ast.Ident{Name: varName[provID]}}
		}
		classID := n.class.ID
		lit := &ast.StructLit{ClassName: n.class.Name, Fields: fields, IsDIConstruct: true}
		lit.TargetID = &classID
		stmts = append(stmts, &ast.LetExpr{Names: []string{name}, Value: lit})
	}

	if len(appClass.Methods) == 1 {
		appVar := varName[appClass.ID]
		mainID := appClass.Methods[0].ID
		call := &ast.CallExpr{
			Callee: &ast.FieldAccess{Target: &ast.Ident{Name: appVar}, Field: "main"},
		}
		call.TargetID = &mainID
		stmts = append(stmts, call)
	}

	return &ast.FuncDecl{
		ID:   ast.NewID(),
		Name: EntryFuncName,
		Body: &ast.BlockExpr{Stmts: stmts},
	}
}

// blockManualConstruction scans every StructLit reachable in the program
// and rejects a non-synthetic one that targets a DI-participating class
// (spec.md §4.8 step 4): its bracket-deps cannot be supplied from source,
// manual or otherwise, once DI owns its construction.
func (w *wirer) blockManualConstruction(prog *ast.Program) {
	check := func(e ast.Expr) bool {
		lit, ok := e.(*ast.StructLit)
		if !ok || lit.IsDIConstruct || lit.TargetID == nil {
			return true
		}
		if n, ok := w.nodes[*lit.TargetID]; ok {
			w.diags.Addf(diag.DIError, lit.Sp,
				"class %q is DI-managed and cannot be constructed with a struct literal", n.class.Name)
		}
		return true
	}
	v := ast.VisitorFunc(check)
	ast.WalkProgram(v, prog)
}
