package closure_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/transform/closure"
	"github.com/plutolang/pluto/typeck"
	"github.com/plutolang/pluto/xref"
	"github.com/stretchr/testify/require"
)

func mustLift(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, xref.Resolve(prog))
	require.NoError(t, flatten.Flatten(prog))
	require.NoError(t, typeck.Check(prog))
	require.NoError(t, closure.Lift(prog))
	return prog
}

func findFunc(prog *ast.Program, name string) *ast.FuncDecl {
	for _, f := range prog.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// noClosuresSurvive walks every function body in prog and fails the test if
// any ast.Closure node remains, enforcing spec.md §4.6's post-pass invariant.
func noClosuresSurvive(t *testing.T, prog *ast.Program) {
	t.Helper()
	for _, f := range prog.Funcs {
		walkNoClosure(t, f.Body)
	}
	for _, cl := range prog.Classes {
		for _, m := range cl.Methods {
			walkNoClosure(t, m.Body)
		}
	}
}

func walkNoClosure(t *testing.T, e ast.Expr) {
	t.Helper()
	if e == nil {
		return
	}
	_, isClosure := e.(*ast.Closure)
	require.Falsef(t, isClosure, "a Closure node survived lifting: %#v", e)
	switch n := e.(type) {
	case *ast.BlockExpr:
		for _, s := range n.Stmts {
			walkNoClosure(t, s)
		}
	case *ast.LetExpr:
		walkNoClosure(t, n.Value)
	case *ast.IfExpr:
		walkNoClosure(t, n.Cond)
		walkNoClosure(t, n.Then)
		walkNoClosure(t, n.Else)
	case *ast.WhileExpr:
		walkNoClosure(t, n.Cond)
		walkNoClosure(t, n.Body)
	case *ast.ForExpr:
		walkNoClosure(t, n.Iterable)
		walkNoClosure(t, n.Body)
	case *ast.MatchExpr:
		walkNoClosure(t, n.Subject)
		for _, arm := range n.Arms {
			walkNoClosure(t, arm.Body)
		}
	case *ast.BinaryExpr:
		walkNoClosure(t, n.Left)
		walkNoClosure(t, n.Right)
	case *ast.CallExpr:
		walkNoClosure(t, n.Callee)
		for _, a := range n.Args {
			walkNoClosure(t, a)
		}
	case *ast.ClosureCreate:
		for _, c := range n.Captures {
			walkNoClosure(t, c)
		}
	case *ast.ReturnExpr:
		walkNoClosure(t, n.Value)
	}
}

func TestLiftNoCaptureClosure(t *testing.T) {
	prog := mustLift(t, `
fn caller() int {
	let f = |x: int| -> int { return x + 1 }
	return f(1)
}
`)
	noClosuresSurvive(t, prog)
	lifted := findFunc(prog, "__closure_1")
	require.NotNil(t, lifted)
	require.Len(t, lifted.Params, 1)
	require.Equal(t, "x", lifted.Params[0].Name)
}

func TestLiftCapturesOuterLetBoundVariable(t *testing.T) {
	prog := mustLift(t, `
fn caller() int {
	let base = 10
	let f = |x: int| -> int { return x + base }
	return f(1)
}
`)
	noClosuresSurvive(t, prog)
	lifted := findFunc(prog, "__closure_1")
	require.NotNil(t, lifted)
	require.Len(t, lifted.Params, 2)
	require.Equal(t, "base", lifted.Params[0].Name)
	require.Equal(t, "x", lifted.Params[1].Name)

	caller := findFunc(prog, "caller")
	let, ok := caller.Body.Stmts[1].(*ast.LetExpr)
	require.True(t, ok)
	cc, ok := let.Value.(*ast.ClosureCreate)
	require.True(t, ok)
	require.Len(t, cc.Captures, 1)
	ident, ok := cc.Captures[0].(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "base", ident.Name)
}

func TestLiftCapturesOuterFunctionParameter(t *testing.T) {
	prog := mustLift(t, `
fn caller(base: int) int {
	let f = |x: int| -> int { return x + base }
	return f(1)
}
`)
	noClosuresSurvive(t, prog)
	lifted := findFunc(prog, "__closure_1")
	require.NotNil(t, lifted)
	require.Len(t, lifted.Params, 2)
	require.Equal(t, "base", lifted.Params[0].Name)
}

func TestLiftCapturesForLoopBindingVariable(t *testing.T) {
	prog := mustLift(t, `
fn caller(xs: [int]) int {
	let total = 0
	for x in xs {
		let f = || -> int { return x }
		total = total + f()
	}
	return total
}
`)
	noClosuresSurvive(t, prog)
	lifted := findFunc(prog, "__closure_1")
	require.NotNil(t, lifted)
	require.Len(t, lifted.Params, 1)
	require.Equal(t, "x", lifted.Params[0].Name)
}

func TestLiftCapturesSelfInsideClassMethod(t *testing.T) {
	prog := mustLift(t, `
class Counter {
	n: int

	fn make_adder(self) int {
		let f = || -> int { return self.n }
		return f()
	}
}
`)
	noClosuresSurvive(t, prog)
	lifted := findFunc(prog, "__closure_1")
	require.NotNil(t, lifted)
	require.Len(t, lifted.Params, 1)
	require.Equal(t, "self", lifted.Params[0].Name)
}

func TestLiftNestedClosurePropagatesCaptureToOuter(t *testing.T) {
	prog := mustLift(t, `
fn caller() int {
	let base = 1
	let outer = || -> int {
		let inner = || -> int { return base }
		return inner()
	}
	return outer()
}
`)
	noClosuresSurvive(t, prog)

	// inner closure lifts first (bottom-up): __closure_1 is the inner one,
	// capturing "base" directly.
	inner := findFunc(prog, "__closure_1")
	require.NotNil(t, inner)
	require.Len(t, inner.Params, 1)
	require.Equal(t, "base", inner.Params[0].Name)

	// outer closure lifts second: it must also take "base" as a leading
	// parameter, since its body references it only through inner's capture.
	outer := findFunc(prog, "__closure_2")
	require.NotNil(t, outer)
	require.Len(t, outer.Params, 1)
	require.Equal(t, "base", outer.Params[0].Name)

	// and outer's body must pass "base" along as inner's capture.
	innerLet, ok := outer.Body.Stmts[0].(*ast.LetExpr)
	require.True(t, ok)
	cc, ok := innerLet.Value.(*ast.ClosureCreate)
	require.True(t, ok)
	require.Len(t, cc.Captures, 1)
	ident, ok := cc.Captures[0].(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "base", ident.Name)
}

func TestLiftBareExpressionShorthandBody(t *testing.T) {
	prog := mustLift(t, `
fn caller() int {
	let base = 5
	let f = |x: int| x + base
	return f(1)
}
`)
	noClosuresSurvive(t, prog)
	lifted := findFunc(prog, "__closure_1")
	require.NotNil(t, lifted)
	require.NotNil(t, lifted.Body)
	require.Len(t, lifted.Body.Stmts, 1)
	_, isBinary := lifted.Body.Stmts[0].(*ast.BinaryExpr)
	require.True(t, isBinary)
}

func TestLiftAppendsLiftedFunctionsToProgFuncs(t *testing.T) {
	before := mustLift(t, `
fn one() int {
	return 1
}
`)
	require.Len(t, before.Funcs, 1)

	prog := mustLift(t, `
fn one() int {
	return 1
}

fn caller() int {
	let a = || -> int { return 1 }
	let b = || -> int { return 2 }
	return a() + b()
}
`)
	require.NotNil(t, findFunc(prog, "__closure_1"))
	require.NotNil(t, findFunc(prog, "__closure_2"))
	require.NotNil(t, findFunc(prog, "one"))
	require.NotNil(t, findFunc(prog, "caller"))
}
