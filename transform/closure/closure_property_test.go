package closure_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/plutolang/pluto/ast"
)

// genClosureBodyOp generates one operation a generated closure body performs
// on its captured int `x`: returning it, doubling it, or negating it. Every
// variant typechecks against `fn(x: int) int`, so the generated program
// never needs more scaffolding than the closure and its one call site.
var closureBodyOps = []string{
	"return x",
	"return x + x",
	"return 0 - x",
}

func genClosureBodyOp() gopter.Gen {
	return gen.OneConstOf(closureBodyOps[0], closureBodyOps[1:]...)
}

// TestLiftPostClosureLiftProperty is spec.md §8's universal invariant: "no
// inline closure AST node remains" after transform/closure.Lift, for any
// generated single-capture closure body.
func TestLiftPostClosureLiftProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("lifted closures leave no inline Closure node", prop.ForAll(
		func(op string) bool {
			src := fmt.Sprintf(`
fn caller(n: int) int {
	let f = |x: int| -> int { %s }
	return f(n)
}
`, op)
			prog := mustLift(t, src)
			return programHasNoInlineClosure(prog)
		},
		genClosureBodyOp(),
	))

	properties.TestingRun(t)
}

// programHasNoInlineClosure is the bool-returning twin of this package's
// noClosuresSurvive/walkNoClosure t-based assertions, usable from inside a
// gopter property function where failure must be a returned false rather
// than a t.Fatal.
func programHasNoInlineClosure(prog *ast.Program) bool {
	for _, f := range prog.Funcs {
		if !exprHasNoInlineClosure(f.Body) {
			return false
		}
	}
	for _, cl := range prog.Classes {
		for _, m := range cl.Methods {
			if !exprHasNoInlineClosure(m.Body) {
				return false
			}
		}
	}
	return true
}

func exprHasNoInlineClosure(e ast.Expr) bool {
	if e == nil {
		return true
	}
	if _, isClosure := e.(*ast.Closure); isClosure {
		return false
	}
	switch n := e.(type) {
	case *ast.BlockExpr:
		for _, s := range n.Stmts {
			if !exprHasNoInlineClosure(s) {
				return false
			}
		}
	case *ast.LetExpr:
		return exprHasNoInlineClosure(n.Value)
	case *ast.IfExpr:
		return exprHasNoInlineClosure(n.Cond) && exprHasNoInlineClosure(n.Then) && exprHasNoInlineClosure(n.Else)
	case *ast.WhileExpr:
		return exprHasNoInlineClosure(n.Cond) && exprHasNoInlineClosure(n.Body)
	case *ast.ForExpr:
		return exprHasNoInlineClosure(n.Iterable) && exprHasNoInlineClosure(n.Body)
	case *ast.MatchExpr:
		if !exprHasNoInlineClosure(n.Subject) {
			return false
		}
		for _, arm := range n.Arms {
			if !exprHasNoInlineClosure(arm.Body) {
				return false
			}
		}
	case *ast.BinaryExpr:
		return exprHasNoInlineClosure(n.Left) && exprHasNoInlineClosure(n.Right)
	case *ast.CallExpr:
		if !exprHasNoInlineClosure(n.Callee) {
			return false
		}
		for _, a := range n.Args {
			if !exprHasNoInlineClosure(a) {
				return false
			}
		}
	case *ast.ClosureCreate:
		for _, c := range n.Captures {
			if !exprHasNoInlineClosure(c) {
				return false
			}
		}
	case *ast.ReturnExpr:
		return exprHasNoInlineClosure(n.Value)
	}
	return true
}
