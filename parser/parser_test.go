package parser

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse([]byte(src))
	require.NoError(t, err)
	return prog
}

func TestParseFuncWithContractsAndBody(t *testing.T) {
	prog := mustParse(t, `
fn divide(a: int, b: int) int
	requires b != 0
{
	return a / b
}
`)
	require.Len(t, prog.Funcs, 1)
	fn := prog.Funcs[0]
	require.Equal(t, "divide", fn.Name)
	require.Len(t, fn.Params, 2)
	require.Len(t, fn.Contracts, 1)
	require.Equal(t, "b != 0", fn.Contracts[0].Name)
	require.NotNil(t, fn.Body)
	require.Len(t, fn.Body.Stmts, 1)
	ret, ok := fn.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	require.IsType(t, &ast.BinaryExpr{}, ret.Value)
}

func TestParseClassWithBracketDepsAndInvariant(t *testing.T) {
	prog := mustParse(t, `
pub class Counter[clock: Clock] {
	n: int

	invariant self.n >= 0

	pub fn increment(mut self) {
		self.n = self.n + 1
	}
}
`)
	require.Len(t, prog.Classes, 1)
	cd := prog.Classes[0]
	require.True(t, cd.Public)
	require.Len(t, cd.BracketDeps, 1)
	require.Equal(t, "clock", cd.BracketDeps[0].Name)
	require.Len(t, cd.Invariants, 1)
	require.Len(t, cd.Methods, 1)
	require.Equal(t, "increment", cd.Methods[0].Name)
}

func TestParseEnumAndMatch(t *testing.T) {
	prog := mustParse(t, `
enum Option {
	Some(value: int),
	None,
}

fn unwrap_or(o: Option, fallback: int) int {
	match o {
		Option.Some(v) => return v,
		_ => return fallback,
	}
}
`)
	require.Len(t, prog.Enums, 1)
	require.Len(t, prog.Enums[0].Variants, 2)
	require.Len(t, prog.Funcs, 1)
	match, ok := prog.Funcs[0].Body.Stmts[0].(*ast.MatchExpr)
	require.True(t, ok)
	require.Len(t, match.Arms, 2)
	require.Equal(t, "Option", match.Arms[0].EnumName)
	require.Equal(t, "Some", match.Arms[0].Variant)
	require.Equal(t, []string{"v"}, match.Arms[0].BindNames)
	require.True(t, match.Arms[1].Wildcard)
}

func TestParseSpawnAndChannelPipeline(t *testing.T) {
	prog := mustParse(t, `
fn worker(rx: Receiver<int>, tx: Sender<int>) {
	for v in rx {
		tx <- v * 2
	}
}

fn main() {
	let (tx, rx) = chan<int>(4)
	spawn worker(rx, tx)
	let got = <- rx
}
`)
	require.Len(t, prog.Funcs, 2)
	main := prog.Funcs[1]
	let0, ok := main.Body.Stmts[0].(*ast.LetExpr)
	require.True(t, ok)
	require.Equal(t, []string{"tx", "rx"}, let0.Names)
	require.IsType(t, &ast.ChanExpr{}, let0.Value)

	spawn, ok := main.Body.Stmts[1].(*ast.SpawnExpr)
	require.True(t, ok)
	require.Len(t, spawn.Args, 2)

	let1, ok := main.Body.Stmts[2].(*ast.LetExpr)
	require.True(t, ok)
	require.IsType(t, &ast.RecvExpr{}, let1.Value)

	worker := prog.Funcs[0]
	forExpr, ok := worker.Body.Stmts[0].(*ast.ForExpr)
	require.True(t, ok)
	send, ok := forExpr.Body.Stmts[0].(*ast.SendExpr)
	require.True(t, ok)
	require.IsType(t, &ast.BinaryExpr{}, send.Value)
}

func TestParseRaiseCatchAndPropagate(t *testing.T) {
	prog := mustParse(t, `
error NotFound { key: string }

fn lookup(key: string) int {
	raise NotFound(key: key)
}

fn safe_lookup(key: string) int {
	return lookup(key) catch NotFound {
		return -1
	}
}

fn propagating(key: string) int {
	return lookup(key)!
}
`)
	require.Len(t, prog.Errors, 1)
	require.Equal(t, "NotFound", prog.Errors[0].Name)

	raiseFn := prog.Funcs[0]
	raiseStmt, ok := raiseFn.Body.Stmts[0].(*ast.RaiseExpr)
	require.True(t, ok)
	require.Equal(t, "NotFound", raiseStmt.ErrorName)

	safeFn := prog.Funcs[1]
	ret, ok := safeFn.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	catch, ok := ret.Value.(*ast.CatchExpr)
	require.True(t, ok)
	require.False(t, catch.Wildcard)
	require.Equal(t, "NotFound", catch.ErrorName)

	propFn := prog.Funcs[2]
	ret2, ok := propFn.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	require.IsType(t, &ast.PropagateExpr{}, ret2.Value)
}

func TestParseIfElseChainAndStructLitSuppression(t *testing.T) {
	prog := mustParse(t, `
class Point {
	x: int
	y: int
}

fn classify(p: Point) int {
	if p.x > 0 {
		return 1
	} else if p.x < 0 {
		return -1
	} else {
		return 0
	}
}

fn make_point() Point {
	return Point { x: 1, y: 2 }
}
`)
	fn := prog.Funcs[0]
	ifExpr, ok := fn.Body.Stmts[0].(*ast.IfExpr)
	require.True(t, ok)
	require.IsType(t, &ast.BinaryExpr{}, ifExpr.Cond)
	elseIf, ok := ifExpr.Else.(*ast.IfExpr)
	require.True(t, ok)
	require.NotNil(t, elseIf.Else)

	mk := prog.Funcs[1]
	ret, ok := mk.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	lit, ok := ret.Value.(*ast.StructLit)
	require.True(t, ok)
	require.Equal(t, "Point", lit.ClassName)
	require.Len(t, lit.Fields, 2)
}

func TestParseTestDeclWithStrategy(t *testing.T) {
	prog := mustParse(t, `
test "no deadlock under any interleaving" @exhaustive(max_depth: 32, max_schedules: 1000) {
	let x = 1
}
`)
	require.Len(t, prog.Tests, 1)
	td := prog.Tests[0]
	require.Equal(t, "no deadlock under any interleaving", td.Name)
	require.Equal(t, "exhaustive", td.Strategy)
	require.Equal(t, 32, td.MaxDepth)
	require.Equal(t, 1000, td.MaxSched)
}

func TestParseFStringInterpolation(t *testing.T) {
	prog := mustParse(t, `
fn greet(name: string) string {
	return f"hello {name}, {1 + 2} times"
}
`)
	ret, ok := prog.Funcs[0].Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	fstr, ok := ret.Value.(*ast.FStringLit)
	require.True(t, ok)
	require.True(t, len(fstr.Segments) >= 4)
	require.Equal(t, "hello ", fstr.Segments[0].Text)
	require.IsType(t, &ast.Ident{}, fstr.Segments[1].Expr)
	require.IsType(t, &ast.BinaryExpr{}, fstr.Segments[3].Expr)
}

func TestParseAppDecl(t *testing.T) {
	prog := mustParse(t, `
app Server {
	store: Store

	fn main(self) {
		let ready = true
	}
}
`)
	require.NotNil(t, prog.App)
	require.Equal(t, "Server", prog.App.Name)
	require.Len(t, prog.App.BracketDeps, 1)
	require.NotNil(t, prog.App.Main)
}

func TestParseQualifiedAccessExpr(t *testing.T) {
	prog := mustParse(t, `
fn main() int {
	return geo::shapes::ORIGIN_X
}
`)
	ret, ok := prog.Funcs[0].Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	qa, ok := ret.Value.(*ast.QualifiedAccess)
	require.True(t, ok)
	require.Equal(t, []string{"geo", "shapes", "ORIGIN_X"}, qa.Path)
}

func TestParseRecordsDiagnosticOnMalformedInput(t *testing.T) {
	p := New([]byte(`fn broken( { `))
	p.parseProgram()
	require.True(t, p.Diagnostics().HasErrors())
}
