package xref

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
)

// resolveBlock resolves every statement of b in a fresh child scope of
// parent, so let-bindings introduced by one statement are visible to the
// statements that follow it but not to the block's surrounding scope.
func (r *Resolver) resolveBlock(b *ast.BlockExpr, parent *scope) {
	sc := newScope(parent)
	for i := range b.Stmts {
		r.resolveExpr(&b.Stmts[i], sc)
	}
}

// resolveExpr resolves *e in place. It mirrors ast.Walk's exhaustive type
// switch (same "no silently-missed variants" discipline, spec.md §8) but,
// unlike Walk, carries a rewritable slot so the one case the parser defers
// entirely to this pass — an ambiguous `Ident.Field(args)` call that in
// fact names an enum variant constructor — can replace the node in place,
// and a lexical scope so a call through a local (closure, task, parameter)
// is never mistaken for a reference to a top-level declaration.
func (r *Resolver) resolveExpr(e *ast.Expr, sc *scope) {
	if e == nil || *e == nil {
		return
	}
	switch n := (*e).(type) {
	case *ast.Ident, *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.NoneLit, *ast.StringLit, *ast.QualifiedAccess:
		// leaves: plain Ident references are resolved by scope lookup at
		// typeck time, not here (spec.md §4.2 only names
		// call/struct-literal/enum-construction/raise/match-arm sites);
		// QualifiedAccess is left for the module flattener.
	case *ast.FStringLit:
		for i := range n.Segments {
			if n.Segments[i].Expr != nil {
				r.resolveExpr(&n.Segments[i].Expr, sc)
			}
		}
	case *ast.BinaryExpr:
		r.resolveExpr(&n.Left, sc)
		r.resolveExpr(&n.Right, sc)
	case *ast.UnaryExpr:
		r.resolveExpr(&n.Operand, sc)
	case *ast.CallExpr:
		r.resolveCall(e, n, sc)
	case *ast.FieldAccess:
		r.resolveExpr(&n.Target, sc)
	case *ast.IndexExpr:
		r.resolveExpr(&n.Target, sc)
		r.resolveExpr(&n.Index, sc)
	case *ast.StructLit:
		d := r.lookupKind(n.ClassName, n.Sp, "a class", isClass)
		setTargetID(&n.TargetID, d)
		for i := range n.TypeArgs {
			r.resolveTypeExpr(&n.TypeArgs[i])
		}
		for i := range n.Fields {
			r.resolveExpr(&n.Fields[i].Value, sc)
		}
	case *ast.EnumConstructExpr:
		if n.TargetID == nil {
			d := r.lookupKind(n.EnumName, n.Sp, "an enum", isEnum)
			setTargetID(&n.TargetID, d)
		}
		for i := range n.Args {
			r.resolveExpr(&n.Args[i], sc)
		}
	case *ast.AssignExpr:
		r.resolveExpr(&n.Target, sc)
		r.resolveExpr(&n.Value, sc)
	case *ast.IndexAssignExpr:
		r.resolveExpr(&n.Target, sc)
		r.resolveExpr(&n.Index, sc)
		r.resolveExpr(&n.Value, sc)
	case *ast.LetExpr:
		if n.Type != nil {
			r.resolveTypeExpr(&n.Type)
		}
		r.resolveExpr(&n.Value, sc)
		for _, name := range n.Names {
			sc.bind(name)
		}
	case *ast.IfExpr:
		r.resolveExpr(&n.Cond, sc)
		r.resolveBlock(n.Then, sc)
		if n.Else != nil {
			r.resolveExpr(&n.Else, sc)
		}
	case *ast.WhileExpr:
		r.resolveExpr(&n.Cond, sc)
		r.resolveBlock(n.Body, sc)
	case *ast.ForExpr:
		r.resolveExpr(&n.Iterable, sc)
		child := newScope(sc)
		child.bind(n.Binding)
		r.resolveBlock(n.Body, child)
	case *ast.MatchExpr:
		r.resolveMatch(n, sc)
	case *ast.Closure:
		child := newScope(sc)
		for pi := range n.Params {
			if n.Params[pi].Type != nil {
				r.resolveTypeExpr(&n.Params[pi].Type)
			}
			child.bind(n.Params[pi].Name)
		}
		if n.Return != nil {
			r.resolveTypeExpr(&n.Return)
		}
		r.resolveExpr(&n.Body, child)
	case *ast.ClosureCreate:
		for i := range n.Captures {
			r.resolveExpr(&n.Captures[i], sc)
		}
	case *ast.SpawnExpr:
		r.resolveSpawn(n, sc)
	case *ast.ScopeExpr:
		r.resolveBlock(n.Body, sc)
	case *ast.RaiseExpr:
		d := r.lookupKind(n.ErrorName, n.Sp, "an error", isError)
		setTargetID(&n.TargetID, d)
		for i := range n.Args {
			r.resolveExpr(&n.Args[i].Value, sc)
		}
	case *ast.CatchExpr:
		r.resolveExpr(&n.Subject, sc)
		if !n.Wildcard {
			d := r.lookupKind(n.ErrorName, n.Sp, "an error", isError)
			setTargetID(&n.TargetID, d)
		}
		if n.Handler != nil {
			r.resolveExpr(&n.Handler, sc)
		}
	case *ast.PropagateExpr:
		r.resolveExpr(&n.Subject, sc)
	case *ast.ChanExpr:
		r.resolveTypeExpr(&n.Elem)
		if n.Capacity != nil {
			r.resolveExpr(&n.Capacity, sc)
		}
	case *ast.SendExpr:
		r.resolveExpr(&n.Target, sc)
		r.resolveExpr(&n.Value, sc)
	case *ast.RecvExpr:
		r.resolveExpr(&n.Target, sc)
	case *ast.CloseExpr:
		r.resolveExpr(&n.Target, sc)
	case *ast.YieldExpr:
		if n.Value != nil {
			r.resolveExpr(&n.Value, sc)
		}
	case *ast.ReturnExpr:
		if n.Value != nil {
			r.resolveExpr(&n.Value, sc)
		}
	case *ast.BlockExpr:
		r.resolveBlock(n, sc)
	default:
		panic(fmt.Sprintf("xref: unhandled expression variant %T", n))
	}
}

// resolveCall handles the one reclassification the parser explicitly
// defers to xref: `Ident.Field(args)` where Ident names an enum and Field
// names one of its variants becomes an *ast.EnumConstructExpr in place.
// Every other call shape resolves its callee (a direct function reference,
// or the receiver of an as-yet-untyped method call left for typeck's trait
// resolution, spec.md §4.4) without attempting method dispatch here.
func (r *Resolver) resolveCall(slot *ast.Expr, n *ast.CallExpr, sc *scope) {
	if fa, ok := n.Callee.(*ast.FieldAccess); ok {
		if base, ok2 := fa.Target.(*ast.Ident); ok2 && !sc.has(base.Name) {
			if matches := r.registry[base.Name]; len(matches) == 1 {
				if ed, ok3 := matches[0].(*ast.EnumDecl); ok3 {
					if !variantExists(ed, fa.Field) {
						r.diags.Addf(diag.XrefError, n.Sp, "enum %q has no variant %q", ed.Name, fa.Field)
						return
					}
					ec := &ast.EnumConstructExpr{EnumName: ed.Name, Variant: fa.Field, TypeArgs: n.TypeArgs, Args: n.Args}
					ec.Sp = n.Sp
					setTargetID(&ec.TargetID, ed)
					*slot = ec
					for i := range ec.Args {
						r.resolveExpr(&ec.Args[i], sc)
					}
					return
				}
			}
		}
		r.resolveExpr(&n.Callee, sc)
		for i := range n.Args {
			r.resolveExpr(&n.Args[i], sc)
		}
		return
	}
	if id, ok := n.Callee.(*ast.Ident); ok {
		r.resolveCalleeIdent(id, &n.TargetID, sc)
	} else {
		r.resolveExpr(&n.Callee, sc)
	}
	for i := range n.Args {
		r.resolveExpr(&n.Args[i], sc)
	}
}

func (r *Resolver) resolveSpawn(n *ast.SpawnExpr, sc *scope) {
	if id, ok := n.Callee.(*ast.Ident); ok {
		r.resolveCalleeIdent(id, &n.TargetID, sc)
	} else {
		r.resolveExpr(&n.Callee, sc)
	}
	for i := range n.Args {
		r.resolveExpr(&n.Args[i], sc)
	}
}

// resolveCalleeIdent resolves a bare identifier used as a call/spawn
// target. A name shadowed by a local binding is a call through a value
// (closure, task, parameter) and is left unresolved — not a declaration
// reference, and not an error.
func (r *Resolver) resolveCalleeIdent(id *ast.Ident, targetSlot **ast.ID, sc *scope) {
	if sc.has(id.Name) {
		return
	}
	d := r.lookupKind(id.Name, id.Span(), "callable", isCallable)
	setTargetID(&id.TargetID, d)
	setTargetID(targetSlot, d)
}

func (r *Resolver) resolveMatch(n *ast.MatchExpr, sc *scope) {
	r.resolveExpr(&n.Subject, sc)
	for ai := range n.Arms {
		arm := &n.Arms[ai]
		child := newScope(sc)
		if !arm.Wildcard && arm.Literal == nil {
			d := r.lookupKind(arm.EnumName, arm.Sp, "an enum", isEnum)
			setTargetID(&arm.TargetID, d)
			if ed, ok := d.(*ast.EnumDecl); ok && !variantExists(ed, arm.Variant) {
				r.diags.Addf(diag.XrefError, arm.Sp, "enum %q has no variant %q", ed.Name, arm.Variant)
			}
			for _, bn := range arm.BindNames {
				child.bind(bn)
			}
		}
		if arm.Literal != nil {
			r.resolveExpr(&arm.Literal, sc)
		}
		r.resolveExpr(&arm.Body, child)
	}
}

func variantExists(ed *ast.EnumDecl, variant string) bool {
	for _, v := range ed.Variants {
		if v.Name == variant {
			return true
		}
	}
	return false
}
