package flatten

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
)

// resolveBlock resolves every statement of b, in the module at modulePath.
func (f *Flattener) resolveBlock(modulePath string, b *ast.BlockExpr) {
	if b == nil {
		return
	}
	for i := range b.Stmts {
		f.resolveExpr(modulePath, &b.Stmts[i])
	}
}

// resolveExpr resolves *e in place. Unlike xref's walk, no lexical scope is
// needed here: a QualifiedAccess can only ever originate from an explicit
// `::`-path in source, never from a bare local name, so there is nothing a
// local binding could shadow. Every type expression reachable from an
// expression position (closure signatures, chan element types, let
// annotations, generic call/struct/enum-construct type arguments) is also
// walked, since a QualifiedType can appear there too.
func (f *Flattener) resolveExpr(modulePath string, e *ast.Expr) {
	if e == nil || *e == nil {
		return
	}
	switch n := (*e).(type) {
	case *ast.Ident, *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.NoneLit, *ast.StringLit:
		// leaves
	case *ast.FStringLit:
		for i := range n.Segments {
			if n.Segments[i].Expr != nil {
				f.resolveExpr(modulePath, &n.Segments[i].Expr)
			}
		}
	case *ast.BinaryExpr:
		f.resolveExpr(modulePath, &n.Left)
		f.resolveExpr(modulePath, &n.Right)
	case *ast.UnaryExpr:
		f.resolveExpr(modulePath, &n.Operand)
	case *ast.CallExpr:
		f.resolveExpr(modulePath, &n.Callee)
		for i := range n.TypeArgs {
			f.resolveTypeExpr(modulePath, &n.TypeArgs[i])
		}
		for i := range n.Args {
			f.resolveExpr(modulePath, &n.Args[i])
		}
	case *ast.FieldAccess:
		f.resolveExpr(modulePath, &n.Target)
	case *ast.QualifiedAccess:
		f.resolveQualifiedAccess(modulePath, e, n)
	case *ast.IndexExpr:
		f.resolveExpr(modulePath, &n.Target)
		f.resolveExpr(modulePath, &n.Index)
	case *ast.StructLit:
		for i := range n.TypeArgs {
			f.resolveTypeExpr(modulePath, &n.TypeArgs[i])
		}
		for i := range n.Fields {
			f.resolveExpr(modulePath, &n.Fields[i].Value)
		}
	case *ast.EnumConstructExpr:
		for i := range n.TypeArgs {
			f.resolveTypeExpr(modulePath, &n.TypeArgs[i])
		}
		for i := range n.Args {
			f.resolveExpr(modulePath, &n.Args[i])
		}
	case *ast.AssignExpr:
		f.resolveExpr(modulePath, &n.Target)
		f.resolveExpr(modulePath, &n.Value)
	case *ast.IndexAssignExpr:
		f.resolveExpr(modulePath, &n.Target)
		f.resolveExpr(modulePath, &n.Index)
		f.resolveExpr(modulePath, &n.Value)
	case *ast.LetExpr:
		if n.Type != nil {
			f.resolveTypeExpr(modulePath, &n.Type)
		}
		f.resolveExpr(modulePath, &n.Value)
	case *ast.IfExpr:
		f.resolveExpr(modulePath, &n.Cond)
		f.resolveBlock(modulePath, n.Then)
		if n.Else != nil {
			f.resolveExpr(modulePath, &n.Else)
		}
	case *ast.WhileExpr:
		f.resolveExpr(modulePath, &n.Cond)
		f.resolveBlock(modulePath, n.Body)
	case *ast.ForExpr:
		f.resolveExpr(modulePath, &n.Iterable)
		f.resolveBlock(modulePath, n.Body)
	case *ast.MatchExpr:
		f.resolveExpr(modulePath, &n.Subject)
		for ai := range n.Arms {
			arm := &n.Arms[ai]
			if arm.Literal != nil {
				f.resolveExpr(modulePath, &arm.Literal)
			}
			f.resolveExpr(modulePath, &arm.Body)
		}
	case *ast.Closure:
		for pi := range n.Params {
			if n.Params[pi].Type != nil {
				f.resolveTypeExpr(modulePath, &n.Params[pi].Type)
			}
		}
		if n.Return != nil {
			f.resolveTypeExpr(modulePath, &n.Return)
		}
		f.resolveExpr(modulePath, &n.Body)
	case *ast.ClosureCreate:
		for i := range n.Captures {
			f.resolveExpr(modulePath, &n.Captures[i])
		}
	case *ast.SpawnExpr:
		f.resolveExpr(modulePath, &n.Callee)
		for i := range n.Args {
			f.resolveExpr(modulePath, &n.Args[i])
		}
	case *ast.ScopeExpr:
		f.resolveBlock(modulePath, n.Body)
	case *ast.RaiseExpr:
		for i := range n.Args {
			f.resolveExpr(modulePath, &n.Args[i].Value)
		}
	case *ast.CatchExpr:
		f.resolveExpr(modulePath, &n.Subject)
		if n.Handler != nil {
			f.resolveExpr(modulePath, &n.Handler)
		}
	case *ast.PropagateExpr:
		f.resolveExpr(modulePath, &n.Subject)
	case *ast.ChanExpr:
		f.resolveTypeExpr(modulePath, &n.Elem)
		if n.Capacity != nil {
			f.resolveExpr(modulePath, &n.Capacity)
		}
	case *ast.SendExpr:
		f.resolveExpr(modulePath, &n.Target)
		f.resolveExpr(modulePath, &n.Value)
	case *ast.RecvExpr:
		f.resolveExpr(modulePath, &n.Target)
	case *ast.CloseExpr:
		f.resolveExpr(modulePath, &n.Target)
	case *ast.YieldExpr:
		if n.Value != nil {
			f.resolveExpr(modulePath, &n.Value)
		}
	case *ast.ReturnExpr:
		if n.Value != nil {
			f.resolveExpr(modulePath, &n.Value)
		}
	case *ast.BlockExpr:
		f.resolveBlock(modulePath, n)
	default:
		panic(fmt.Sprintf("flatten: unhandled expression variant %T", n))
	}
}

// resolveQualifiedAccess replaces a QualifiedAccess with a plain Ident
// carrying the resolved TargetID, the same node shape typeck already
// expects for a resolved name (spec.md §4.2's xrefNode contract).
func (f *Flattener) resolveQualifiedAccess(modulePath string, slot *ast.Expr, n *ast.QualifiedAccess) {
	d := f.resolveQualified(modulePath, n.Path, n.Sp)
	id := &ast.Ident{Name: n.Path[len(n.Path)-1]}
	id.Sp = n.Sp
	setTargetID(&id.TargetID, d)
	*slot = id
}

// assertExprClean panics if e, or anything it contains, is a
// QualifiedAccess. Called only after a successful Flatten.
func assertExprClean(e ast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Ident, *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.NoneLit, *ast.StringLit:
	case *ast.FStringLit:
		for _, seg := range n.Segments {
			assertExprClean(seg.Expr)
		}
	case *ast.BinaryExpr:
		assertExprClean(n.Left)
		assertExprClean(n.Right)
	case *ast.UnaryExpr:
		assertExprClean(n.Operand)
	case *ast.CallExpr:
		assertExprClean(n.Callee)
		for _, ta := range n.TypeArgs {
			assertTypeClean(ta)
		}
		for _, a := range n.Args {
			assertExprClean(a)
		}
	case *ast.FieldAccess:
		assertExprClean(n.Target)
	case *ast.QualifiedAccess:
		panic("flatten: QualifiedAccess survived flattening")
	case *ast.IndexExpr:
		assertExprClean(n.Target)
		assertExprClean(n.Index)
	case *ast.StructLit:
		for _, ta := range n.TypeArgs {
			assertTypeClean(ta)
		}
		for _, fl := range n.Fields {
			assertExprClean(fl.Value)
		}
	case *ast.EnumConstructExpr:
		for _, ta := range n.TypeArgs {
			assertTypeClean(ta)
		}
		for _, a := range n.Args {
			assertExprClean(a)
		}
	case *ast.AssignExpr:
		assertExprClean(n.Target)
		assertExprClean(n.Value)
	case *ast.IndexAssignExpr:
		assertExprClean(n.Target)
		assertExprClean(n.Index)
		assertExprClean(n.Value)
	case *ast.LetExpr:
		assertTypeClean(n.Type)
		assertExprClean(n.Value)
	case *ast.IfExpr:
		assertExprClean(n.Cond)
		assertBlockClean(n.Then)
		assertExprClean(n.Else)
	case *ast.WhileExpr:
		assertExprClean(n.Cond)
		assertBlockClean(n.Body)
	case *ast.ForExpr:
		assertExprClean(n.Iterable)
		assertBlockClean(n.Body)
	case *ast.MatchExpr:
		assertExprClean(n.Subject)
		for _, arm := range n.Arms {
			assertExprClean(arm.Literal)
			assertExprClean(arm.Body)
		}
	case *ast.Closure:
		for _, p := range n.Params {
			assertTypeClean(p.Type)
		}
		assertTypeClean(n.Return)
		assertExprClean(n.Body)
	case *ast.ClosureCreate:
		for _, c := range n.Captures {
			assertExprClean(c)
		}
	case *ast.SpawnExpr:
		assertExprClean(n.Callee)
		for _, a := range n.Args {
			assertExprClean(a)
		}
	case *ast.ScopeExpr:
		assertBlockClean(n.Body)
	case *ast.RaiseExpr:
		for _, a := range n.Args {
			assertExprClean(a.Value)
		}
	case *ast.CatchExpr:
		assertExprClean(n.Subject)
		assertExprClean(n.Handler)
	case *ast.PropagateExpr:
		assertExprClean(n.Subject)
	case *ast.ChanExpr:
		assertTypeClean(n.Elem)
		assertExprClean(n.Capacity)
	case *ast.SendExpr:
		assertExprClean(n.Target)
		assertExprClean(n.Value)
	case *ast.RecvExpr:
		assertExprClean(n.Target)
	case *ast.CloseExpr:
		assertExprClean(n.Target)
	case *ast.YieldExpr:
		assertExprClean(n.Value)
	case *ast.ReturnExpr:
		assertExprClean(n.Value)
	case *ast.BlockExpr:
		assertBlockClean(n)
	default:
		panic(fmt.Sprintf("flatten: unhandled expression variant %T", e))
	}
}

func assertBlockClean(b *ast.BlockExpr) {
	if b == nil {
		return
	}
	for _, stmt := range b.Stmts {
		assertExprClean(stmt)
	}
}
