package effects_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/effects"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/typeck"
	"github.com/plutolang/pluto/xref"
	"github.com/stretchr/testify/require"
)

func mustPrep(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, xref.Resolve(prog))
	require.NoError(t, flatten.Flatten(prog))
	require.NoError(t, typeck.Check(prog))
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

func TestInferDirectRaisePropagatedWithBang(t *testing.T) {
	prog := mustPrep(t, `
error NotFound

fn lookup(n: int) int {
	if n < 0 {
		raise NotFound
	}
	return n
}
`)
	require.NoError(t, effects.Infer(prog))
	f := findFunc(prog, "lookup")
	require.Len(t, f.ErrorSet, 1)
}

func TestInferCallSiteMissingBangFails(t *testing.T) {
	prog := mustPrep(t, `
error NotFound

fn lookup(n: int) int {
	if n < 0 {
		raise NotFound
	}
	return n
}

fn caller(n: int) int {
	let x = lookup(n)
	return x
}
`)
	err := effects.Infer(prog)
	require.Error(t, err)
}

func TestInferCallSiteWithBangPasses(t *testing.T) {
	prog := mustPrep(t, `
error NotFound

fn lookup(n: int) int {
	if n < 0 {
		raise NotFound
	}
	return n
}

fn caller(n: int) int {
	let x = lookup(n)!
	return x
}
`)
	require.NoError(t, effects.Infer(prog))
	f := findFunc(prog, "caller")
	require.Len(t, f.ErrorSet, 1)
}

func TestInferCatchWildcardClearsErrorSet(t *testing.T) {
	prog := mustPrep(t, `
error NotFound

fn lookup(n: int) int {
	if n < 0 {
		raise NotFound
	}
	return n
}

fn caller(n: int) int {
	let x = lookup(n) catch {
		return 0
	}
	return x
}
`)
	require.NoError(t, effects.Infer(prog))
	f := findFunc(prog, "caller")
	require.Empty(t, f.ErrorSet)
}

func TestInferCatchShorthandClearsOnlyNamedError(t *testing.T) {
	prog := mustPrep(t, `
error NotFound
error TooBig

fn lookup(n: int) int {
	if n < 0 {
		raise NotFound
	}
	if n > 100 {
		raise TooBig
	}
	return n
}

fn caller(n: int) int {
	let x = lookup(n) catch NotFound {
		return 0
	}
	return x
}
`)
	err := effects.Infer(prog)
	require.Error(t, err)
	f := findFunc(prog, "caller")
	require.Len(t, f.ErrorSet, 1)
}

func TestInferChannelOpsRaiseChannelClosed(t *testing.T) {
	prog := mustPrep(t, `
fn producer() int {
	let (tx, rx) = chan<int>(1)
	tx <- 1
	return <-rx
}
`)
	// both send and recv are unguarded here, so Infer must report the
	// missing `!`/`catch` in addition to computing the error set.
	err := effects.Infer(prog)
	require.Error(t, err)
	f := findFunc(prog, "producer")
	require.Contains(t, f.ErrorSet, effects.ChannelClosed)
}

func TestInferTrySendAddsChannelFull(t *testing.T) {
	prog := mustPrep(t, `
fn producer() int {
	let (tx, rx) = chan<int>(1)
	tx <-? 1
	return <-rx
}
`)
	err := effects.Infer(prog)
	require.Error(t, err)
	f := findFunc(prog, "producer")
	require.Contains(t, f.ErrorSet, effects.ChannelFull)
	require.Contains(t, f.ErrorSet, effects.ChannelClosed)
}

func TestInferUnguardedSendRequiresBang(t *testing.T) {
	prog := mustPrep(t, `
fn producer() {
	let (tx, rx) = chan<int>(1)
	tx <- 1
	let _ = rx
}
`)
	require.Error(t, effects.Infer(prog))
}

func TestInferUnguardedRecvRequiresBang(t *testing.T) {
	prog := mustPrep(t, `
fn consumer() int {
	let (tx, rx) = chan<int>(1)
	let _ = tx
	return <-rx
}
`)
	require.Error(t, effects.Infer(prog))
}

func TestInferUnguardedTrySendRequiresBang(t *testing.T) {
	prog := mustPrep(t, `
fn producer() {
	let (tx, rx) = chan<int>(1)
	tx <-? 1
	let _ = rx
}
`)
	require.Error(t, effects.Infer(prog))
}

func TestInferUnguardedTryRecvRequiresBang(t *testing.T) {
	prog := mustPrep(t, `
fn consumer() int {
	let (tx, rx) = chan<int>(1)
	let _ = tx
	return <-?rx
}
`)
	require.Error(t, effects.Infer(prog))
}

func TestInferSpawnOpaqueDoesNotPropagateToSpawningContext(t *testing.T) {
	prog := mustPrep(t, `
error Boom

fn risky() int {
	raise Boom
}

fn caller() {
	spawn risky()
}
`)
	require.NoError(t, effects.Infer(prog))
	f := findFunc(prog, "caller")
	require.Empty(t, f.ErrorSet)
}

func TestInferTaskGetConservativelyFallible(t *testing.T) {
	prog := mustPrep(t, `
error Boom

fn risky() int {
	raise Boom
	return 0
}

fn caller() int {
	let t = spawn risky()
	return t.get()!
}
`)
	require.NoError(t, effects.Infer(prog))
	f := findFunc(prog, "caller")
	require.NotEmpty(t, f.ErrorSet)
}

func TestInferTaskGetWithoutBangFails(t *testing.T) {
	prog := mustPrep(t, `
fn risky() int {
	return 0
}

fn caller() int {
	let t = spawn risky()
	return t.get()
}
`)
	err := effects.Infer(prog)
	require.Error(t, err)
}

func TestInferTaskCancelNeverFallible(t *testing.T) {
	prog := mustPrep(t, `
fn risky() int {
	return 0
}

fn caller() {
	let t = spawn risky()
	t.cancel()
}
`)
	require.NoError(t, effects.Infer(prog))
}

func TestInferRecursiveFunctionConverges(t *testing.T) {
	prog := mustPrep(t, `
error Negative

fn factorial(n: int) int {
	if n < 0 {
		raise Negative
	}
	if n == 0 {
		return 1
	}
	return n
}

fn caller(n: int) int {
	return factorial(n)!
}
`)
	require.NoError(t, effects.Infer(prog))
	f := findFunc(prog, "factorial")
	require.Len(t, f.ErrorSet, 1)
}
