package effects

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
)

// checkPropagation walks b reporting every fallible call site missing its
// required `!` (spec.md §4.5: "[propagation's] absence at a site when
// errors remain after local handling is a compile error").
func checkPropagation(b *ast.BlockExpr, errSets map[ast.ID]map[ast.ID]bool, declared map[ast.ID]bool, diags *diag.Bag) {
	if b == nil {
		return
	}
	walkGuard(b, false, errSets, declared, diags)
}

// walkGuard walks e looking for a fallible CallExpr that is not the direct
// operand of `!` or the subject of a `catch`. guarded is true only for the
// immediate child reached through one of those two forms; it resets to
// false at every other position, since a fallible call nested two levels
// down (an argument, an operand) needs its own guard independent of
// whatever wraps its parent.
func walkGuard(e ast.Expr, guarded bool, errSets map[ast.ID]map[ast.ID]bool, declared map[ast.ID]bool, diags *diag.Bag) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Ident, *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.NoneLit, *ast.StringLit, *ast.QualifiedAccess, *ast.Closure:
		return
	case *ast.FStringLit:
		for _, seg := range n.Segments {
			walkGuard(seg.Expr, false, errSets, declared, diags)
		}
	case *ast.BinaryExpr:
		walkGuard(n.Left, false, errSets, declared, diags)
		walkGuard(n.Right, false, errSets, declared, diags)
	case *ast.UnaryExpr:
		walkGuard(n.Operand, false, errSets, declared, diags)
	case *ast.CallExpr:
		if !guarded {
			if set := callErrors(n, errSets, declared); len(set) > 0 {
				diags.Addf(diag.EffectError, n.Span(), "fallible call requires `!` or an enclosing `catch`")
			}
		}
		walkGuard(n.Callee, false, errSets, declared, diags)
		for _, a := range n.Args {
			walkGuard(a, false, errSets, declared, diags)
		}
	case *ast.FieldAccess:
		walkGuard(n.Target, false, errSets, declared, diags)
	case *ast.IndexExpr:
		walkGuard(n.Target, false, errSets, declared, diags)
		walkGuard(n.Index, false, errSets, declared, diags)
	case *ast.StructLit:
		for _, f := range n.Fields {
			walkGuard(f.Value, false, errSets, declared, diags)
		}
	case *ast.EnumConstructExpr:
		for _, a := range n.Args {
			walkGuard(a, false, errSets, declared, diags)
		}
	case *ast.AssignExpr:
		walkGuard(n.Target, false, errSets, declared, diags)
		walkGuard(n.Value, false, errSets, declared, diags)
	case *ast.IndexAssignExpr:
		walkGuard(n.Target, false, errSets, declared, diags)
		walkGuard(n.Index, false, errSets, declared, diags)
		walkGuard(n.Value, false, errSets, declared, diags)
	case *ast.LetExpr:
		walkGuard(n.Value, false, errSets, declared, diags)
	case *ast.IfExpr:
		walkGuard(n.Cond, false, errSets, declared, diags)
		walkGuard(n.Then, false, errSets, declared, diags)
		walkGuard(n.Else, false, errSets, declared, diags)
	case *ast.WhileExpr:
		walkGuard(n.Cond, false, errSets, declared, diags)
		walkGuard(n.Body, false, errSets, declared, diags)
	case *ast.ForExpr:
		walkGuard(n.Iterable, false, errSets, declared, diags)
		walkGuard(n.Body, false, errSets, declared, diags)
	case *ast.MatchExpr:
		walkGuard(n.Subject, false, errSets, declared, diags)
		for _, arm := range n.Arms {
			walkGuard(arm.Body, false, errSets, declared, diags)
		}
	case *ast.ClosureCreate:
		for _, cap := range n.Captures {
			walkGuard(cap, false, errSets, declared, diags)
		}
	case *ast.SpawnExpr:
		walkGuard(n.Callee, false, errSets, declared, diags)
		for _, a := range n.Args {
			walkGuard(a, false, errSets, declared, diags)
		}
	case *ast.ScopeExpr:
		walkGuard(n.Body, false, errSets, declared, diags)
	case *ast.RaiseExpr:
		for _, f := range n.Args {
			walkGuard(f.Value, false, errSets, declared, diags)
		}
	case *ast.CatchExpr:
		walkGuard(n.Subject, true, errSets, declared, diags)
		walkGuard(n.Handler, false, errSets, declared, diags)
	case *ast.PropagateExpr:
		walkGuard(n.Subject, true, errSets, declared, diags)
	case *ast.ChanExpr:
		walkGuard(n.Capacity, false, errSets, declared, diags)
	case *ast.SendExpr:
		if !guarded {
			if set := sendOwnErrors(n); len(set) > 0 {
				diags.Addf(diag.EffectError, n.Span(), "fallible call requires `!` or an enclosing `catch`")
			}
		}
		walkGuard(n.Target, false, errSets, declared, diags)
		walkGuard(n.Value, false, errSets, declared, diags)
	case *ast.RecvExpr:
		if !guarded {
			if set := recvOwnErrors(n); len(set) > 0 {
				diags.Addf(diag.EffectError, n.Span(), "fallible call requires `!` or an enclosing `catch`")
			}
		}
		walkGuard(n.Target, false, errSets, declared, diags)
	case *ast.CloseExpr:
		walkGuard(n.Target, false, errSets, declared, diags)
	case *ast.YieldExpr:
		walkGuard(n.Value, false, errSets, declared, diags)
	case *ast.ReturnExpr:
		walkGuard(n.Value, false, errSets, declared, diags)
	case *ast.BlockExpr:
		for _, stmt := range n.Stmts {
			walkGuard(stmt, false, errSets, declared, diags)
		}
	default:
		panic("effects: unhandled expression variant")
	}
}

// sendOwnErrors is the builtin error set a send/try_send site itself
// raises, independent of its target/value subexpressions (spec.md §4.5,
// §4.13) — the same set effects.go's exprErrors computes for *ast.SendExpr,
// duplicated here so checkPropagation's guard check does not need the full
// errSets/declared closure just to ask "does this site raise anything."
func sendOwnErrors(n *ast.SendExpr) map[ast.ID]bool {
	out := map[ast.ID]bool{ChannelClosed: true}
	if n.Try {
		out[ChannelFull] = true
	}
	return out
}

// recvOwnErrors mirrors sendOwnErrors for recv/try_recv.
func recvOwnErrors(n *ast.RecvExpr) map[ast.ID]bool {
	out := map[ast.ID]bool{ChannelClosed: true}
	if n.Try {
		out[ChannelEmpty] = true
	}
	return out
}
