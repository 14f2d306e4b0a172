package spawn_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/effects"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/transform/closure"
	"github.com/plutolang/pluto/transform/di"
	"github.com/plutolang/pluto/transform/mono"
	"github.com/plutolang/pluto/transform/spawn"
	"github.com/plutolang/pluto/typeck"
	"github.com/plutolang/pluto/xref"
	"github.com/stretchr/testify/require"
)

func mustDesugar(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, xref.Resolve(prog))
	require.NoError(t, flatten.Flatten(prog))
	require.NoError(t, typeck.Check(prog))
	require.NoError(t, effects.Infer(prog))
	require.NoError(t, closure.Lift(prog))
	require.NoError(t, mono.Monomorphize(prog))
	require.NoError(t, di.Wire(prog))
	require.NoError(t, spawn.Desugar(prog))
	return prog
}

func findSpawn(t *testing.T, b *ast.BlockExpr) *ast.SpawnExpr {
	t.Helper()
	for _, s := range b.Stmts {
		if sp, ok := s.(*ast.SpawnExpr); ok {
			return sp
		}
	}
	t.Fatal("no SpawnExpr found")
	return nil
}

func findLiftedFunc(prog *ast.Program, id ast.ID) *ast.FuncDecl {
	for _, f := range prog.Funcs {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func TestDesugarFreeFunctionSpawnCapturesEvaluatedArgs(t *testing.T) {
	prog := mustDesugar(t, `
fn worker(n: int) {
	let x = n
}

app Server {
	fn main(self) {
		spawn worker(1 + 2)
	}
}
`)
	sp := findSpawn(t, prog.App.Main.Body)
	require.Empty(t, sp.Args)

	cc, ok := sp.Callee.(*ast.ClosureCreate)
	require.True(t, ok)
	require.Len(t, cc.Captures, 1)

	// no deep-copy for a primitive int argument
	_, isCall := cc.Captures[0].(*ast.CallExpr)
	require.False(t, isCall)

	fd := findLiftedFunc(prog, *cc.TargetID)
	require.NotNil(t, fd)
	require.Len(t, fd.Params, 1)
	require.Equal(t, "__spawn_arg0", fd.Params[0].Name)

	require.Len(t, fd.Body.Stmts, 1)
	ret, ok := fd.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	call, ok := ret.Value.(*ast.CallExpr)
	require.True(t, ok)
	calleeIdent, ok := call.Callee.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "worker", calleeIdent.Name)
	require.Len(t, call.Args, 1)
	argIdent, ok := call.Args[0].(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "__spawn_arg0", argIdent.Name)
}

func TestDesugarDeepCopiesHeapTypedArgument(t *testing.T) {
	prog := mustDesugar(t, `
class Item {
	n: int
}

fn worker(it: Item) {
	let x = it.n
}

app Server {
	fn main(self) {
		let it = Item { n: 1 }
		spawn worker(it)
	}
}
`)
	sp := findSpawn(t, prog.App.Main.Body)
	cc, ok := sp.Callee.(*ast.ClosureCreate)
	require.True(t, ok)
	require.Len(t, cc.Captures, 1)

	call, ok := cc.Captures[0].(*ast.CallExpr)
	require.True(t, ok, "expected the Item argument to be wrapped in a deep-copy call, got %T", cc.Captures[0])
	calleeIdent, ok := call.Callee.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "__pluto_deep_copy", calleeIdent.Name)
	require.Len(t, call.Args, 2)
}

func TestDesugarExemptsDIManagedSingletonFromDeepCopy(t *testing.T) {
	prog := mustDesugar(t, `
class Counter[logger: Logger] {
	n: int

	fn get(self) int {
		return self.n
	}
}

class Logger {
}

fn worker(c: Counter) {
	let v = c.get()
}

app Server {
	counter: Counter

	fn main(self) {
		spawn worker(self.counter)
	}
}
`)
	sp := findSpawn(t, prog.App.Main.Body)
	cc, ok := sp.Callee.(*ast.ClosureCreate)
	require.True(t, ok)
	require.Len(t, cc.Captures, 1)

	// a DI-managed Counter reference crosses the spawn boundary unwrapped
	_, isCall := cc.Captures[0].(*ast.CallExpr)
	require.False(t, isCall, "a DI-managed singleton must not be deep-copied across a spawn boundary")

	_, isFieldAccess := cc.Captures[0].(*ast.FieldAccess)
	require.True(t, isFieldAccess)
}

func TestDesugarMethodCallSpawnCapturesReceiver(t *testing.T) {
	prog := mustDesugar(t, `
class Counter {
	n: int

	fn bump(mut self) {
		self.n = self.n + 1
	}
}

app Server {
	fn main(self) {
		let c = Counter { n: 0 }
		spawn c.bump()
	}
}
`)
	sp := findSpawn(t, prog.App.Main.Body)
	cc, ok := sp.Callee.(*ast.ClosureCreate)
	require.True(t, ok)
	require.Len(t, cc.Captures, 1)
	require.Empty(t, sp.Args)

	fd := findLiftedFunc(prog, *cc.TargetID)
	require.NotNil(t, fd)
	require.Len(t, fd.Params, 1)
	require.Equal(t, "__spawn_recv", fd.Params[0].Name)

	ret := fd.Body.Stmts[0].(*ast.ReturnExpr)
	call := ret.Value.(*ast.CallExpr)
	fa, ok := call.Callee.(*ast.FieldAccess)
	require.True(t, ok)
	require.Equal(t, "bump", fa.Field)
	recvIdent, ok := fa.Target.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "__spawn_recv", recvIdent.Name)
}

func TestDesugarRejectsPropagationInSpawnArgs(t *testing.T) {
	prog := &ast.Program{}
	fn := &ast.FuncDecl{ID: ast.NewID(), Name: "f", Params: []ast.Param{{Name: "x"}}}
	prog.Funcs = append(prog.Funcs, fn)

	calleeIdent := &ast.Ident{Name: "f"}
	fnID := fn.ID
	calleeIdent.TargetID = &fnID

	sp := &ast.SpawnExpr{
		Callee: calleeIdent,
		Args:   []ast.Expr{&ast.PropagateExpr{Subject: &ast.IntLit{Value: 1}}},
	}
	mainFn := &ast.FuncDecl{ID: ast.NewID(), Name: "main", Body: &ast.BlockExpr{Stmts: []ast.Expr{sp}}}
	prog.Funcs = append(prog.Funcs, mainFn)

	err := spawn.Desugar(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "propagation")
}
