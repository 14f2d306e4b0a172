// Package effects performs whole-program error-effect inference (spec.md
// §4.5): a call-graph walk, run strictly after typeck succeeds, computing
// for every function the closed set of error-declaration UUIDs it may
// raise. The walk's register/fixed-point shape mirrors typeck's own
// register-then-converge discipline (typeck/env.go, typeck/typeck.go):
// every callable body in the program is indexed once, then the per-body
// error sets are unioned to a fixed point, since recursion and mutual calls
// mean a single top-down pass cannot see a callee's full set before the
// callee itself has converged.
package effects

import (
	"sort"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/google/uuid"
)

// Builtin error IDs raised implicitly by channel and task operations
// (spec.md §4.5, §4.13). These have no surface ErrorDecl — send/recv/get
// are builtin operators, not user-declared error sites — so they're given
// fixed, stable UUIDs here rather than assigned at parse time.
var (
	ChannelClosed = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	ChannelFull   = uuid.MustParse("00000000-0000-4000-8000-000000000002")
	ChannelEmpty  = uuid.MustParse("00000000-0000-4000-8000-000000000003")
	TaskCancelled = uuid.MustParse("00000000-0000-4000-8000-000000000004")
)

// Infer walks prog's call graph, filling in FuncDecl.ErrorSet for every
// top-level function, class method, and App/Stage entry point, and
// reporting every fallible call site missing its required `!` (spec.md
// §4.5) as a diag.EffectError.
func Infer(prog *ast.Program) error {
	var diags diag.Bag

	bodies := map[ast.ID]*ast.BlockExpr{}
	slots := map[ast.ID]*[]ast.ID{}

	addFunc := func(f *ast.FuncDecl) {
		if f == nil {
			return
		}
		bodies[f.ID] = f.Body
		slots[f.ID] = &f.ErrorSet
	}
	for _, f := range prog.Funcs {
		addFunc(f)
	}
	for _, ex := range prog.Externs {
		// externs have no body to analyze; treated as a permanently-empty
		// leaf (spec.md has no syntax for an extern's declared error set).
		bodies[ex.ID] = nil
	}
	for _, cl := range prog.Classes {
		for _, m := range cl.Methods {
			addFunc(m)
		}
	}
	for _, t := range prog.Traits {
		for i := range t.Methods {
			m := &t.Methods[i]
			if m.Default != nil {
				bodies[m.ID] = m.Default
			}
		}
	}
	if prog.App != nil {
		addFunc(prog.App.Main)
	}
	for _, s := range prog.Stages {
		addFunc(s.Main)
	}

	declared := map[ast.ID]bool{
		ChannelClosed: true,
		ChannelFull:   true,
		ChannelEmpty:  true,
		TaskCancelled: true,
	}
	for _, e := range prog.Errors {
		declared[e.ID] = true
	}

	errSets := map[ast.ID]map[ast.ID]bool{}
	for id := range bodies {
		errSets[id] = map[ast.ID]bool{}
	}

	for changed := true; changed; {
		changed = false
		for id, body := range bodies {
			next := blockErrors(body, errSets, declared)
			if !setEqual(errSets[id], next) {
				errSets[id] = next
				changed = true
			}
		}
	}

	for id, slot := range slots {
		*slot = sortedIDs(errSets[id])
	}

	for _, body := range bodies {
		checkPropagation(body, errSets, declared, &diags)
	}
	for _, t := range prog.Tests {
		checkPropagation(t.Body, errSets, declared, &diags)
	}

	return diags.AsError()
}

func sortedIDs(set map[ast.ID]bool) []ast.ID {
	if len(set) == 0 {
		return nil
	}
	out := make([]ast.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func setEqual(a, b map[ast.ID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}

func union(dst, src map[ast.ID]bool) {
	for id := range src {
		dst[id] = true
	}
}

// unionNew merges a and b into a freshly allocated set (or returns nil if
// both are empty), since callers build errSets bottom-up and must never
// mutate a child result that may be shared or reused.
func unionNew(a, b map[ast.ID]bool) map[ast.ID]bool {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := map[ast.ID]bool{}
	union(out, a)
	union(out, b)
	return out
}

func blockErrors(b *ast.BlockExpr, errSets map[ast.ID]map[ast.ID]bool, declared map[ast.ID]bool) map[ast.ID]bool {
	if b == nil {
		return nil
	}
	var out map[ast.ID]bool
	for _, stmt := range b.Stmts {
		out = unionNew(out, exprErrors(stmt, errSets, declared))
	}
	return out
}

// exprErrors computes the set of error-declaration IDs e's evaluation may
// raise: the union of its own direct raises, every sub-expression's raises,
// every call's resolved target error set (or the closed universe of
// declared errors when the target cannot be statically resolved), and the
// implicit errors of channel/task operations.
func exprErrors(e ast.Expr, errSets map[ast.ID]map[ast.ID]bool, declared map[ast.ID]bool) map[ast.ID]bool {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Ident, *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.NoneLit, *ast.StringLit:
		return nil
	case *ast.FStringLit:
		var out map[ast.ID]bool
		for _, seg := range n.Segments {
			out = unionNew(out, exprErrors(seg.Expr, errSets, declared))
		}
		return out
	case *ast.BinaryExpr:
		return unionNew(exprErrors(n.Left, errSets, declared), exprErrors(n.Right, errSets, declared))
	case *ast.UnaryExpr:
		return exprErrors(n.Operand, errSets, declared)
	case *ast.CallExpr:
		return callErrors(n, errSets, declared)
	case *ast.FieldAccess:
		return exprErrors(n.Target, errSets, declared)
	case *ast.QualifiedAccess:
		return nil
	case *ast.IndexExpr:
		return unionNew(exprErrors(n.Target, errSets, declared), exprErrors(n.Index, errSets, declared))
	case *ast.StructLit:
		var out map[ast.ID]bool
		for _, f := range n.Fields {
			out = unionNew(out, exprErrors(f.Value, errSets, declared))
		}
		return out
	case *ast.EnumConstructExpr:
		var out map[ast.ID]bool
		for _, a := range n.Args {
			out = unionNew(out, exprErrors(a, errSets, declared))
		}
		return out
	case *ast.AssignExpr:
		return unionNew(exprErrors(n.Target, errSets, declared), exprErrors(n.Value, errSets, declared))
	case *ast.IndexAssignExpr:
		out := unionNew(exprErrors(n.Target, errSets, declared), exprErrors(n.Index, errSets, declared))
		return unionNew(out, exprErrors(n.Value, errSets, declared))
	case *ast.LetExpr:
		return exprErrors(n.Value, errSets, declared)
	case *ast.IfExpr:
		out := unionNew(exprErrors(n.Cond, errSets, declared), blockErrors(n.Then, errSets, declared))
		return unionNew(out, exprErrors(n.Else, errSets, declared))
	case *ast.WhileExpr:
		return unionNew(exprErrors(n.Cond, errSets, declared), blockErrors(n.Body, errSets, declared))
	case *ast.ForExpr:
		out := exprErrors(n.Iterable, errSets, declared)
		if _, isRecv := n.Iterable.(*ast.RecvExpr); !isRecv {
			// a `for x in rx` loop over a Receiver desugars to a recv-loop
			// (spec.md §4.13) even though no RecvExpr node appears in the
			// surface syntax; a literal RecvExpr iterable already
			// contributed ChannelClosed via its own case below.
			out = unionNew(out, map[ast.ID]bool{ChannelClosed: true})
		}
		return unionNew(out, blockErrors(n.Body, errSets, declared))
	case *ast.MatchExpr:
		out := exprErrors(n.Subject, errSets, declared)
		for _, arm := range n.Arms {
			out = unionNew(out, exprErrors(arm.Body, errSets, declared))
		}
		return out
	case *ast.Closure:
		// defining a closure doesn't itself raise; its body's errors belong
		// to the closure once it's called (and, pre-lift, a call through a
		// local closure variable has no resolvable TargetID, so it already
		// falls into the conservative closed-universe case below).
		return nil
	case *ast.ClosureCreate:
		var out map[ast.ID]bool
		for _, cap := range n.Captures {
			out = unionNew(out, exprErrors(cap, errSets, declared))
		}
		return out
	case *ast.SpawnExpr:
		// opaque (spec.md §4.5): only the spawning context's own argument
		// evaluation can raise here; the callee's errors surface solely via
		// task.get(), which typeck resolves to no TargetID and this pass
		// therefore already treats conservatively.
		var out map[ast.ID]bool
		for _, a := range n.Args {
			out = unionNew(out, exprErrors(a, errSets, declared))
		}
		return out
	case *ast.ScopeExpr:
		return blockErrors(n.Body, errSets, declared)
	case *ast.RaiseExpr:
		out := map[ast.ID]bool{}
		if n.TargetID != nil {
			out[*n.TargetID] = true
		}
		for _, f := range n.Args {
			union(out, exprErrors(f.Value, errSets, declared))
		}
		return out
	case *ast.CatchExpr:
		return catchErrors(n, errSets, declared)
	case *ast.PropagateExpr:
		return exprErrors(n.Subject, errSets, declared)
	case *ast.ChanExpr:
		return exprErrors(n.Capacity, errSets, declared)
	case *ast.SendExpr:
		out := unionNew(exprErrors(n.Target, errSets, declared), exprErrors(n.Value, errSets, declared))
		out = unionNew(out, map[ast.ID]bool{ChannelClosed: true})
		if n.Try {
			out = unionNew(out, map[ast.ID]bool{ChannelFull: true})
		}
		return out
	case *ast.RecvExpr:
		out := unionNew(exprErrors(n.Target, errSets, declared), map[ast.ID]bool{ChannelClosed: true})
		if n.Try {
			out = unionNew(out, map[ast.ID]bool{ChannelEmpty: true})
		}
		return out
	case *ast.CloseExpr:
		return exprErrors(n.Target, errSets, declared)
	case *ast.YieldExpr:
		return exprErrors(n.Value, errSets, declared)
	case *ast.ReturnExpr:
		return exprErrors(n.Value, errSets, declared)
	case *ast.BlockExpr:
		return blockErrors(n, errSets, declared)
	default:
		panic("effects: unhandled expression variant")
	}
}

// callErrors resolves a CallExpr's contribution: its arguments' own errors,
// plus either the resolved target's current error set or, when the target
// cannot be statically determined, the full closed universe of declared
// errors (spec.md §4.5's conservative fallibility rule, generalized from
// task.get() — the one case the spec names explicitly — to every call whose
// callee this pass cannot resolve to a TargetID: a call through a local
// closure variable, or a method dispatch typeck itself could not settle).
// Task.cancel() is the one builtin call that is deliberately never
// fallible, even though it also resolves to no TargetID.
func callErrors(n *ast.CallExpr, errSets map[ast.ID]map[ast.ID]bool, declared map[ast.ID]bool) map[ast.ID]bool {
	var out map[ast.ID]bool
	for _, a := range n.Args {
		out = unionNew(out, exprErrors(a, errSets, declared))
	}
	if n.TargetID != nil {
		return unionNew(out, errSets[*n.TargetID])
	}
	if fa, ok := n.Callee.(*ast.FieldAccess); ok && fa.Field == "cancel" {
		return unionNew(out, exprErrors(fa.Target, errSets, declared))
	}
	return unionNew(out, declared)
}

// catchErrors applies spec.md §4.5's clearing rules: a wildcard handler
// clears the guarded subject's whole error set; the shorthand `catch X`
// clears only the error xref resolved ErrorName to. Either way the
// handler's own errors (which run only when an error was actually caught)
// are added back in.
func catchErrors(n *ast.CatchExpr, errSets map[ast.ID]map[ast.ID]bool, declared map[ast.ID]bool) map[ast.ID]bool {
	subj := exprErrors(n.Subject, errSets, declared)
	if n.Wildcard {
		return exprErrors(n.Handler, errSets, declared)
	}
	var cleared map[ast.ID]bool
	if n.TargetID != nil {
		cleared = map[ast.ID]bool{}
		for id := range subj {
			if id != *n.TargetID {
				cleared[id] = true
			}
		}
	} else {
		cleared = subj
	}
	return unionNew(cleared, exprErrors(n.Handler, errSets, declared))
}
