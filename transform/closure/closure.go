// Package closure lifts every inline Closure expression into a synthesized
// top-level function plus a ClosureCreate reference (spec.md §4.6). Closures
// are processed bottom-up — a closure nested inside another closure's body
// is lifted first — so an outer closure's free-variable scan only ever sees
// the inner one's already-rewritten ClosureCreate and its Captures, never a
// raw Closure node.
package closure

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
)

// scope is a lexical binding stack local to this pass: it tracks a
// (possibly inferred, possibly nil) TypeExpr for every name in play so a
// lifted function's captured parameters can be given concrete types
// without re-running inference. depth increases by one per nested scope
// and is the free-variable discriminator: a name bound at or above a
// closure's own depth-at-creation is free; bound deeper, it's local.
type scope struct {
	parent *scope
	depth  int
	vars   map[string]ast.TypeExpr
}

func newScope(parent *scope) *scope {
	d := 0
	if parent != nil {
		d = parent.depth + 1
	}
	return &scope{parent: parent, depth: d, vars: map[string]ast.TypeExpr{}}
}

func (s *scope) bind(name string, t ast.TypeExpr) { s.vars[name] = t }

func (s *scope) find(name string) (ast.TypeExpr, int, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if t, ok := sc.vars[name]; ok {
			return t, sc.depth, true
		}
	}
	return nil, 0, false
}

// capture is one free variable a lifted closure needs passed in as a
// leading parameter.
type capture struct {
	name string
	typ  ast.TypeExpr
}

type lifter struct {
	enums  map[ast.ID]*ast.EnumDecl
	lifted []*ast.FuncDecl
	count  int
}

// Lift rewrites prog in place: every Closure is replaced by a ClosureCreate
// referring to a newly synthesized top-level function, appended to
// prog.Funcs. Post-pass invariant: no ast.Closure node survives anywhere in
// the program (spec.md §4.6).
func Lift(prog *ast.Program) error {
	l := &lifter{enums: map[ast.ID]*ast.EnumDecl{}}
	for _, e := range prog.Enums {
		l.enums[e.ID] = e
	}

	for _, f := range prog.Funcs {
		l.liftFunc(f, nil)
	}
	for _, cl := range prog.Classes {
		self := classSelfType(cl)
		for _, m := range cl.Methods {
			l.liftFunc(m, self)
		}
	}
	for _, t := range prog.Traits {
		for i := range t.Methods {
			m := &t.Methods[i]
			if m.Default == nil {
				continue
			}
			root := newScope(nil)
			for _, p := range m.Params {
				if p.Name == "self" {
					root.bind("self", nil)
					continue
				}
				root.bind(p.Name, p.Type)
			}
			l.rewriteBlock(m.Default, root, -1, nil)
		}
	}
	if prog.App != nil {
		l.liftFunc(prog.App.Main, nil)
	}
	for _, s := range prog.Stages {
		l.liftFunc(s.Main, nil)
	}
	for _, t := range prog.Tests {
		l.rewriteBlock(t.Body, newScope(nil), -1, nil)
	}

	prog.Funcs = append(prog.Funcs, l.lifted...)
	return nil
}

// classSelfType builds the ClassRefType a class method's "self" resolves
// to, mirroring typeck's own fc.SelfType construction (typeck/typeck.go,
// checkFunc) — self's own type parameters stand for themselves here since
// this pass runs before monomorphization ties them down to concrete types.
func classSelfType(cl *ast.ClassDecl) ast.TypeExpr {
	id := cl.ID
	var args []ast.TypeExpr
	for _, tp := range cl.TypeParams {
		args = append(args, &ast.TypeVar{Name: tp.Name})
	}
	return &ast.ClassRefType{Name: cl.Name, TargetID: &id, TypeArgs: args}
}

func (l *lifter) liftFunc(f *ast.FuncDecl, selfType ast.TypeExpr) {
	if f == nil || f.Body == nil {
		return
	}
	root := newScope(nil)
	for _, p := range f.Params {
		if p.Name == "self" {
			root.bind("self", selfType)
			continue
		}
		root.bind(p.Name, p.Type)
	}
	l.rewriteBlock(f.Body, root, -1, nil)
}

func (l *lifter) rewriteBlock(b *ast.BlockExpr, sc *scope, boundary int, acc *[]capture) {
	if b == nil {
		return
	}
	child := newScope(sc)
	for i := range b.Stmts {
		l.rewrite(&b.Stmts[i], child, boundary, acc)
	}
}

// noteRef records name as a free variable of the closure currently being
// lifted (acc), if it resolves to a binding at or above boundary's depth —
// i.e. bound outside the closure rather than by one of its own
// params/lets/for-bindings/nested-closure params. A name that doesn't
// resolve at all is a reference to a top-level declaration (function,
// class, enum) rather than a captured variable, and is left alone.
func (l *lifter) noteRef(name string, sc *scope, boundary int, acc *[]capture) {
	if acc == nil {
		return
	}
	t, depth, ok := sc.find(name)
	if !ok || depth > boundary {
		return
	}
	for _, c := range *acc {
		if c.name == name {
			return
		}
	}
	*acc = append(*acc, capture{name: name, typ: t})
}

// rewrite walks *e in place: rewriting statements' bindings into sc exactly
// as xref/typeck do, recording free-variable references against acc (the
// innermost closure currently being lifted, or nil outside any closure),
// and replacing every Closure it finds with a lifted ClosureCreate.
func (l *lifter) rewrite(e *ast.Expr, sc *scope, boundary int, acc *[]capture) {
	if e == nil || *e == nil {
		return
	}
	switch n := (*e).(type) {
	case *ast.Ident:
		l.noteRef(n.Name, sc, boundary, acc)
	case *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.NoneLit, *ast.StringLit, *ast.QualifiedAccess:
	case *ast.FStringLit:
		for i := range n.Segments {
			if n.Segments[i].Expr != nil {
				l.rewrite(&n.Segments[i].Expr, sc, boundary, acc)
			}
		}
	case *ast.BinaryExpr:
		l.rewrite(&n.Left, sc, boundary, acc)
		l.rewrite(&n.Right, sc, boundary, acc)
	case *ast.UnaryExpr:
		l.rewrite(&n.Operand, sc, boundary, acc)
	case *ast.CallExpr:
		l.rewrite(&n.Callee, sc, boundary, acc)
		for i := range n.Args {
			l.rewrite(&n.Args[i], sc, boundary, acc)
		}
	case *ast.FieldAccess:
		l.rewrite(&n.Target, sc, boundary, acc)
	case *ast.IndexExpr:
		l.rewrite(&n.Target, sc, boundary, acc)
		l.rewrite(&n.Index, sc, boundary, acc)
	case *ast.StructLit:
		for i := range n.Fields {
			l.rewrite(&n.Fields[i].Value, sc, boundary, acc)
		}
	case *ast.EnumConstructExpr:
		for i := range n.Args {
			l.rewrite(&n.Args[i], sc, boundary, acc)
		}
	case *ast.AssignExpr:
		l.rewrite(&n.Target, sc, boundary, acc)
		l.rewrite(&n.Value, sc, boundary, acc)
	case *ast.IndexAssignExpr:
		l.rewrite(&n.Target, sc, boundary, acc)
		l.rewrite(&n.Index, sc, boundary, acc)
		l.rewrite(&n.Value, sc, boundary, acc)
	case *ast.LetExpr:
		l.rewrite(&n.Value, sc, boundary, acc)
		if len(n.Names) == 2 {
			t0, t1 := tupleElems(n.Type)
			sc.bind(n.Names[0], t0)
			sc.bind(n.Names[1], t1)
		} else if len(n.Names) == 1 {
			sc.bind(n.Names[0], n.Type)
		}
	case *ast.IfExpr:
		l.rewrite(&n.Cond, sc, boundary, acc)
		l.rewriteBlock(n.Then, sc, boundary, acc)
		l.rewrite(&n.Else, sc, boundary, acc)
	case *ast.WhileExpr:
		l.rewrite(&n.Cond, sc, boundary, acc)
		l.rewriteBlock(n.Body, sc, boundary, acc)
	case *ast.ForExpr:
		l.rewrite(&n.Iterable, sc, boundary, acc)
		inner := newScope(sc)
		inner.bind(n.Binding, n.Type)
		l.rewriteBlock(n.Body, inner, boundary, acc)
	case *ast.MatchExpr:
		l.rewrite(&n.Subject, sc, boundary, acc)
		for i := range n.Arms {
			arm := &n.Arms[i]
			inner := newScope(sc)
			if !arm.Wildcard && arm.TargetID != nil {
				if ed := l.enums[*arm.TargetID]; ed != nil {
					for _, v := range ed.Variants {
						if v.Name != arm.Variant {
							continue
						}
						for j, fd := range v.Fields {
							if j < len(arm.BindNames) {
								inner.bind(arm.BindNames[j], fd.Type)
							}
						}
					}
				}
			}
			if arm.Literal != nil {
				l.rewrite(&arm.Literal, sc, boundary, acc)
			}
			l.rewrite(&arm.Body, inner, boundary, acc)
		}
	case *ast.Closure:
		l.liftClosure(e, n, sc, boundary, acc)
	case *ast.ClosureCreate:
		for i := range n.Captures {
			l.rewrite(&n.Captures[i], sc, boundary, acc)
		}
	case *ast.SpawnExpr:
		l.rewrite(&n.Callee, sc, boundary, acc)
		for i := range n.Args {
			l.rewrite(&n.Args[i], sc, boundary, acc)
		}
	case *ast.ScopeExpr:
		l.rewriteBlock(n.Body, sc, boundary, acc)
	case *ast.RaiseExpr:
		for i := range n.Args {
			l.rewrite(&n.Args[i].Value, sc, boundary, acc)
		}
	case *ast.CatchExpr:
		l.rewrite(&n.Subject, sc, boundary, acc)
		l.rewrite(&n.Handler, sc, boundary, acc)
	case *ast.PropagateExpr:
		l.rewrite(&n.Subject, sc, boundary, acc)
	case *ast.ChanExpr:
		l.rewrite(&n.Capacity, sc, boundary, acc)
	case *ast.SendExpr:
		l.rewrite(&n.Target, sc, boundary, acc)
		l.rewrite(&n.Value, sc, boundary, acc)
	case *ast.RecvExpr:
		l.rewrite(&n.Target, sc, boundary, acc)
	case *ast.CloseExpr:
		l.rewrite(&n.Target, sc, boundary, acc)
	case *ast.YieldExpr:
		l.rewrite(&n.Value, sc, boundary, acc)
	case *ast.ReturnExpr:
		l.rewrite(&n.Value, sc, boundary, acc)
	case *ast.BlockExpr:
		l.rewriteBlock(n, sc, boundary, acc)
	default:
		panic(fmt.Sprintf("closure: unhandled expression variant %T", n))
	}
}

// tupleElems extracts the two element TypeExprs backfilled by typeck onto a
// `let (tx, rx) = ...` binding's synthesized TupleType, or (nil, nil) if
// typeck left it unannotated (the value itself failed to type-check).
func tupleElems(t ast.TypeExpr) (ast.TypeExpr, ast.TypeExpr) {
	tt, ok := t.(*ast.TupleType)
	if !ok || len(tt.Elems) != 2 {
		return nil, nil
	}
	return tt.Elems[0], tt.Elems[1]
}

// liftClosure replaces *slot (a Closure) with a ClosureCreate, synthesizing
// the lifted function and recording its free variables as captures. Free
// variables that are themselves free in the *enclosing* closure (acc) are
// propagated upward via noteRef on the rewritten capture expressions, so a
// doubly-nested closure's innermost free variable reaches every enclosing
// lifted function's own parameter list.
func (l *lifter) liftClosure(slot *ast.Expr, n *ast.Closure, sc *scope, outerBoundary int, outerAcc *[]capture) {
	inner := newScope(sc)
	for _, p := range n.Params {
		inner.bind(p.Name, p.Type)
	}

	var innerAcc []capture
	l.rewrite(&n.Body, inner, sc.depth, &innerAcc)

	l.count++
	fnName := fmt.Sprintf("__closure_%d", l.count)

	params := make([]ast.Param, 0, len(innerAcc)+len(n.Params))
	for _, c := range innerAcc {
		params = append(params, ast.Param{Name: c.name, Type: c.typ})
	}
	for _, p := range n.Params {
		params = append(params, ast.Param{Name: p.Name, Type: p.Type})
	}

	fd := &ast.FuncDecl{
		ID:     ast.NewID(),
		Name:   fnName,
		Params: params,
		Return: n.Return,
		Body:   asBlock(n.Body),
	}
	fd.Sp = n.Sp
	l.lifted = append(l.lifted, fd)

	captures := make([]ast.Expr, len(innerAcc))
	for i, c := range innerAcc {
		id := &ast.Ident{Name: c.name}
		id.Sp = n.Sp
		captures[i] = id
	}
	cc := &ast.ClosureCreate{FnName: fnName, Captures: captures}
	cc.Sp = n.Sp
	fnID := fd.ID
	cc.TargetID = &fnID
	*slot = cc

	for _, c := range innerAcc {
		l.noteRef(c.name, sc, outerBoundary, outerAcc)
	}
}

// asBlock wraps a closure body that is a bare expression (the `|x| x + 1`
// shorthand, spec.md §4.1) into a single-statement block; a block body is
// used as-is, since a BlockExpr's trailing statement is already its value
// under the same implicit-last-expression convention a top-level
// FuncDecl's body uses (typeck/infer.go, checkBlock).
func asBlock(body ast.Expr) *ast.BlockExpr {
	if b, ok := body.(*ast.BlockExpr); ok {
		return b
	}
	b := &ast.BlockExpr{Stmts: []ast.Expr{body}}
	b.Sp = body.Span()
	return b
}
