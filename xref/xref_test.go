package xref_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/xref"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	return prog
}

func TestResolveFunctionCallAndStructLit(t *testing.T) {
	prog := mustParse(t, `
class Point {
	x: int
	y: int
}

fn origin() Point {
	return Point { x: 0, y: 0 }
}

fn distance_from_origin(p: Point) int {
	let o = origin()
	return o.x
}
`)
	require.NoError(t, xref.Resolve(prog))

	originFn := prog.Funcs[0]
	ret, ok := originFn.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	lit, ok := ret.Value.(*ast.StructLit)
	require.True(t, ok)
	require.NotNil(t, lit.TargetID)
	require.Equal(t, prog.Classes[0].ID, *lit.TargetID)

	distFn := prog.Funcs[1]
	let0, ok := distFn.Body.Stmts[0].(*ast.LetExpr)
	require.True(t, ok)
	call, ok := let0.Value.(*ast.CallExpr)
	require.True(t, ok)
	require.NotNil(t, call.TargetID)
	require.Equal(t, originFn.ID, *call.TargetID)
}

func TestResolveEnumConstructReclassification(t *testing.T) {
	prog := mustParse(t, `
enum Option {
	Some(value: int),
	None,
}

fn some_five() Option {
	return Option.Some(5)
}
`)
	require.NoError(t, xref.Resolve(prog))

	fn := prog.Funcs[0]
	ret, ok := fn.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	ec, ok := ret.Value.(*ast.EnumConstructExpr)
	require.True(t, ok)
	require.Equal(t, "Option", ec.EnumName)
	require.Equal(t, "Some", ec.Variant)
	require.NotNil(t, ec.TargetID)
	require.Equal(t, prog.Enums[0].ID, *ec.TargetID)
	require.Len(t, ec.Args, 1)
}

func TestResolveRaiseAndMatchArm(t *testing.T) {
	prog := mustParse(t, `
error NotFound { key: string }

enum Option {
	Some(value: int),
	None,
}

fn lookup(key: string) int {
	raise NotFound(key: key)
}

fn unwrap(o: Option) int {
	match o {
		Option.Some(v) => return v,
		_ => return 0,
	}
}
`)
	require.NoError(t, xref.Resolve(prog))

	raiseFn := prog.Funcs[0]
	raiseStmt, ok := raiseFn.Body.Stmts[0].(*ast.RaiseExpr)
	require.True(t, ok)
	require.NotNil(t, raiseStmt.TargetID)
	require.Equal(t, prog.Errors[0].ID, *raiseStmt.TargetID)

	unwrapFn := prog.Funcs[1]
	match, ok := unwrapFn.Body.Stmts[0].(*ast.MatchExpr)
	require.True(t, ok)
	require.NotNil(t, match.Arms[0].TargetID)
	require.Equal(t, prog.Enums[0].ID, *match.Arms[0].TargetID)
}

func TestResolveUnknownNameProducesXrefError(t *testing.T) {
	prog := mustParse(t, `
fn main() {
	not_a_real_function()
}
`)
	err := xref.Resolve(prog)
	require.Error(t, err)
}

func TestResolveLocalClosureCallNotMisresolved(t *testing.T) {
	prog := mustParse(t, `
fn apply(f: fn(int) -> int, x: int) int {
	return f(x)
}
`)
	require.NoError(t, xref.Resolve(prog))

	fn := prog.Funcs[0]
	ret, ok := fn.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	call, ok := ret.Value.(*ast.CallExpr)
	require.True(t, ok)
	require.Nil(t, call.TargetID)
}

func TestResolveGenericTypeParamNotTreatedAsUnknownName(t *testing.T) {
	prog := mustParse(t, `
fn identity<T>(x: T) T {
	return x
}
`)
	require.NoError(t, xref.Resolve(prog))

	fn := prog.Funcs[0]
	ref, ok := fn.Params[0].Type.(*ast.ClassRefType)
	require.True(t, ok)
	require.Equal(t, "T", ref.Name)
	require.Nil(t, ref.TargetID)

	retRef, ok := fn.Return.(*ast.ClassRefType)
	require.True(t, ok)
	require.Equal(t, "T", retRef.Name)
	require.Nil(t, retRef.TargetID)
}

func TestResolveClassGenericMethodSeesOwnAndEnclosingTypeParams(t *testing.T) {
	prog := mustParse(t, `
class Box<T> {
	value: T

	fn replace<U>(self, x: U) T {
		return self.value
	}
}
`)
	require.NoError(t, xref.Resolve(prog))

	c := prog.Classes[0]
	fieldRef, ok := c.Fields[0].Type.(*ast.ClassRefType)
	require.True(t, ok)
	require.Equal(t, "T", fieldRef.Name)
	require.Nil(t, fieldRef.TargetID)

	method := c.Methods[0]
	paramRef, ok := method.Params[1].Type.(*ast.ClassRefType)
	require.True(t, ok)
	require.Equal(t, "U", paramRef.Name)
	require.Nil(t, paramRef.TargetID)

	retRef, ok := method.Return.(*ast.ClassRefType)
	require.True(t, ok)
	require.Equal(t, "T", retRef.Name)
	require.Nil(t, retRef.TargetID)
}

func TestResolveExternFuncParamsAndReturn(t *testing.T) {
	prog := mustParse(t, `
enum Option {
	Some(value: int),
	None,
}

extern fn maybe_value() Option
`)
	require.NoError(t, xref.Resolve(prog))

	ext := prog.Externs[0]
	ref, ok := ext.Return.(*ast.EnumRefType)
	require.True(t, ok)
	require.Equal(t, "Option", ref.Name)
	require.NotNil(t, ref.TargetID)
	require.Equal(t, prog.Enums[0].ID, *ref.TargetID)
}

func TestResolveAmbiguousNameAcrossModules(t *testing.T) {
	prog := mustParse(t, `
fn helper() int {
	return 1
}

module extra {
	fn helper() int {
		return 2
	}
}

fn caller() int {
	return helper()
}
`)
	err := xref.Resolve(prog)
	require.Error(t, err)
}
