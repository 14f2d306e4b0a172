package typeck_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/typeck"
	"github.com/plutolang/pluto/xref"
	"github.com/stretchr/testify/require"
)

func mustCheck(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, xref.Resolve(prog))
	require.NoError(t, flatten.Flatten(prog))
	require.NoError(t, typeck.Check(prog))
	return prog
}

func checkErr(t *testing.T, src string) error {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, xref.Resolve(prog))
	require.NoError(t, flatten.Flatten(prog))
	return typeck.Check(prog)
}

func TestCheckSimpleFunctionPasses(t *testing.T) {
	mustCheck(t, `
fn add(a: int, b: int) int {
	return a + b
}

fn caller() int {
	return add(1, 2)
}
`)
}

func TestCheckReturnTypeMismatchFails(t *testing.T) {
	err := checkErr(t, `
fn broken() int {
	return "not an int"
}
`)
	require.Error(t, err)
}

func TestCheckGenericFunctionInfersTypeArgument(t *testing.T) {
	mustCheck(t, `
fn identity<T>(x: T) T {
	return x
}

fn caller() int {
	return identity(42)
}
`)
}

func TestCheckGenericFunctionArgumentMismatchFails(t *testing.T) {
	err := checkErr(t, `
fn pair<T>(a: T, b: T) T {
	return a
}

fn caller() int {
	return pair(1, "two")
}
`)
	require.Error(t, err)
}

func TestCheckClassFieldAccessAndMethodCall(t *testing.T) {
	mustCheck(t, `
class Point {
	x: int
	y: int

	fn sum(self) int {
		return self.x + self.y
	}
}

fn caller() int {
	let p = Point { x: 1, y: 2 }
	return p.sum()
}
`)
}

func TestCheckGenericClassMethodSubstitutesClassTypeArg(t *testing.T) {
	mustCheck(t, `
class Box<T> {
	value: T

	fn get(self) T {
		return self.value
	}
}

fn caller() int {
	let b = Box { value: 7 }
	return b.get()
}
`)
}

func TestCheckMutSelfMethodRejectedThroughImmutableReceiver(t *testing.T) {
	err := checkErr(t, `
class Counter {
	n: int

	fn increment(mut self) {
		self.n = self.n + 1
	}
}

fn caller() {
	let c = Counter { n: 0 }
	c.increment()
}
`)
	require.Error(t, err)
}

func TestCheckMutSelfMethodAllowedThroughMutableReceiver(t *testing.T) {
	mustCheck(t, `
class Counter {
	n: int

	fn increment(mut self) {
		self.n = self.n + 1
	}
}

fn caller() {
	let mut c = Counter { n: 0 }
	c.increment()
}
`)
}

func TestCheckTraitImplementationMissingMethodFails(t *testing.T) {
	err := checkErr(t, `
trait Greeter {
	fn greet(self) string
}

class Silent : Greeter {
}
`)
	require.Error(t, err)
}

func TestCheckTraitImplementationSatisfiedByOwnMethod(t *testing.T) {
	mustCheck(t, `
trait Greeter {
	fn greet(self) string
}

class Loud : Greeter {
	fn greet(self) string {
		return "hello"
	}
}
`)
}

func TestCheckEnumConstructAndMatch(t *testing.T) {
	mustCheck(t, `
enum Option {
	Some(value: int),
	None,
}

fn unwrap_or(o: Option, default: int) int {
	match o {
		Option.Some(value) => { return value }
		_ => { return default }
	}
}

fn caller() int {
	return unwrap_or(Option.Some(5), 0)
}
`)
}

func TestCheckContractOutsideDecidableFragmentFails(t *testing.T) {
	err := checkErr(t, `
fn risky(n: int) int
	requires identity_call(n) > 0
{
	return n
}

fn identity_call(n: int) int {
	return n
}
`)
	require.Error(t, err)
}

func TestCheckChanSendRecvRoundTrip(t *testing.T) {
	mustCheck(t, `
fn producer() int {
	let (tx, rx) = chan<int>(1)
	tx <- 1
	return <-rx
}
`)
}
