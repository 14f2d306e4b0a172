package di_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/effects"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/transform/closure"
	"github.com/plutolang/pluto/transform/di"
	"github.com/plutolang/pluto/transform/mono"
	"github.com/plutolang/pluto/typeck"
	"github.com/plutolang/pluto/xref"
	"github.com/stretchr/testify/require"
)

// mustPipeline runs every pass that precedes DI wiring in the real
// compiler pipeline, then Wire itself, requiring every stage to succeed.
func mustPipeline(t *testing.T, src string) *ast.Program {
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
	return prog
}

// pipelineErr runs the same pipeline but returns Wire's error instead of
// asserting success, for the negative test cases.
func pipelineErr(t *testing.T, src string) error {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, xref.Resolve(prog))
	require.NoError(t, flatten.Flatten(prog))
	require.NoError(t, typeck.Check(prog))
	require.NoError(t, effects.Infer(prog))
	require.NoError(t, closure.Lift(prog))
	require.NoError(t, mono.Monomorphize(prog))
	return di.Wire(prog)
}

func findClass(prog *ast.Program, name string) *ast.ClassDecl {
	for _, c := range prog.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func letName(t *testing.T, e ast.Expr) (string, *ast.StructLit) {
	t.Helper()
	let, ok := e.(*ast.LetExpr)
	require.True(t, ok, "expected a LetExpr, got %T", e)
	require.Len(t, let.Names, 1)
	lit, ok := let.Value.(*ast.StructLit)
	require.True(t, ok, "expected a StructLit, got %T", let.Value)
	return let.Names[0], lit
}

func TestWireSimpleAppSingleClass(t *testing.T) {
	prog := mustPipeline(t, `
class Store {
	data: int
}

app Server {
	store: Store

	fn main(self) {
		let x = 1
	}
}
`)
	require.NotNil(t, prog.EntryFunc)
	require.Equal(t, di.EntryFuncName, prog.EntryFunc.Name)
	require.Len(t, prog.EntryFunc.Body.Stmts, 3)

	name0, lit0 := letName(t, prog.EntryFunc.Body.Stmts[0])
	require.Equal(t, "__di_Store", name0)
	require.True(t, lit0.IsDIConstruct)
	require.Equal(t, "Store", lit0.ClassName)
	require.Empty(t, lit0.Fields)

	name1, lit1 := letName(t, prog.EntryFunc.Body.Stmts[1])
	require.Equal(t, "__di_Server", name1)
	require.Equal(t, "Server", lit1.ClassName)
	require.Len(t, lit1.Fields, 1)
	require.Equal(t, "store", lit1.Fields[0].Name)
	storeRef, ok := lit1.Fields[0].Value.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "__di_Store", storeRef.Name)

	call, ok := prog.EntryFunc.Body.Stmts[2].(*ast.CallExpr)
	require.True(t, ok)
	require.NotNil(t, call.TargetID)
	require.Equal(t, prog.App.Main.ID, *call.TargetID)
}

func TestWireOrdersConstructionByDependency(t *testing.T) {
	prog := mustPipeline(t, `
class A {
}

class B[a: A] {
}

app Server {
	b: B

	fn main(self) {
		let x = 1
	}
}
`)
	require.Len(t, prog.EntryFunc.Body.Stmts, 4)
	name0, _ := letName(t, prog.EntryFunc.Body.Stmts[0])
	name1, _ := letName(t, prog.EntryFunc.Body.Stmts[1])
	name2, _ := letName(t, prog.EntryFunc.Body.Stmts[2])
	require.Equal(t, "__di_A", name0)
	require.Equal(t, "__di_B", name1)
	require.Equal(t, "__di_Server", name2)
}

func TestWireDetectsCycle(t *testing.T) {
	err := pipelineErr(t, `
class A[b: B] {
}

class B[a: A] {
}

app Server {
	a: A

	fn main(self) {
		let x = 1
	}
}
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func TestWireMissingProviderForTraitDep(t *testing.T) {
	err := pipelineErr(t, `
trait Greeter {
	fn greet(self) string
}

app Server {
	g: Greeter

	fn main(self) {
		let x = 1
	}
}
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no class implements")
}

func TestWireAmbiguousProviderForTraitDep(t *testing.T) {
	err := pipelineErr(t, `
trait Greeter {
	fn greet(self) string
}

class EnglishGreeter : Greeter {
	fn greet(self) string {
		return "hi"
	}
}

class FrenchGreeter : Greeter {
	fn greet(self) string {
		return "salut"
	}
}

app Server {
	g: Greeter

	fn main(self) {
		let x = 1
	}
}
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ambiguous provider")
}

func TestWireBlocksManualConstructionOfDIClass(t *testing.T) {
	err := pipelineErr(t, `
class Store {
	data: int
}

app Server {
	store: Store

	fn main(self) {
		let x = 1
	}
}

fn bad() Store {
	return Store { data: 1 }
}
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "DI-managed")
}

func TestWireMarksConcurrentlyAccessedAndWrapsLocking(t *testing.T) {
	prog := mustPipeline(t, `
class Counter[logger: Logger] {
	n: int

	fn get(self) int {
		return self.n
	}

	fn bump(mut self) {
		if self.n < 0 {
			return
		}
		self.n = self.n + 1
	}
}

class Logger {
}

fn worker(c: Counter) {
	c.bump()
}

app Server {
	counter: Counter

	fn main(self) {
		spawn worker(self.counter)
		self.counter.get()
	}
}
`)
	counter := findClass(prog, "Counter")
	require.NotNil(t, counter)
	require.True(t, counter.ConcurrentlyAccessed)

	var get, bump *ast.FuncDecl
	for _, m := range counter.Methods {
		switch m.Name {
		case "get":
			get = m
		case "bump":
			bump = m
		}
	}
	require.NotNil(t, get)
	require.NotNil(t, bump)

	// get: non-mut self gets a read-lock; its body already ends in an
	// explicit return so no trailing unlock is appended after it.
	require.Len(t, get.Body.Stmts, 3)
	lockCall, ok := get.Body.Stmts[0].(*ast.CallExpr)
	require.True(t, ok)
	requireCallee(t, lockCall, "__pluto_rwlock_rlock")
	unlockCall, ok := get.Body.Stmts[1].(*ast.CallExpr)
	require.True(t, ok)
	requireCallee(t, unlockCall, "__pluto_rwlock_runlock")
	_, ok = get.Body.Stmts[2].(*ast.ReturnExpr)
	require.True(t, ok)

	// bump: mut self gets a write-lock; the early return inside the if
	// releases it before returning, and the implicit fallthrough path
	// releases it again at the end of the body.
	require.Len(t, bump.Body.Stmts, 4)
	wlock, ok := bump.Body.Stmts[0].(*ast.CallExpr)
	require.True(t, ok)
	requireCallee(t, wlock, "__pluto_rwlock_wlock")

	ifExpr, ok := bump.Body.Stmts[1].(*ast.IfExpr)
	require.True(t, ok)
	require.Len(t, ifExpr.Then.Stmts, 2)
	innerUnlock, ok := ifExpr.Then.Stmts[0].(*ast.CallExpr)
	require.True(t, ok)
	requireCallee(t, innerUnlock, "__pluto_rwlock_wunlock")
	_, ok = ifExpr.Then.Stmts[1].(*ast.ReturnExpr)
	require.True(t, ok)

	_, ok = bump.Body.Stmts[2].(*ast.AssignExpr)
	require.True(t, ok)
	finalUnlock, ok := bump.Body.Stmts[3].(*ast.CallExpr)
	require.True(t, ok)
	requireCallee(t, finalUnlock, "__pluto_rwlock_wunlock")
}

func requireCallee(t *testing.T, call *ast.CallExpr, name string) {
	t.Helper()
	id, ok := call.Callee.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, name, id.Name)
}
