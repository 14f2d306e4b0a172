package mono_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/transform/mono"
	"github.com/plutolang/pluto/typeck"
	"github.com/plutolang/pluto/xref"
	"github.com/stretchr/testify/require"
)

func mustMono(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, xref.Resolve(prog))
	require.NoError(t, flatten.Flatten(prog))
	require.NoError(t, typeck.Check(prog))
	require.NoError(t, mono.Monomorphize(prog))
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

func findClass(prog *ast.Program, name string) *ast.ClassDecl {
	for _, c := range prog.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// noGenericsSurvive walks the whole program and fails if any generic
// declaration template or bare type-variable reference remains, enforcing
// spec.md §4.7's post-pass invariant.
func noGenericsSurvive(t *testing.T, prog *ast.Program) {
	t.Helper()
	for _, f := range prog.Funcs {
		require.Emptyf(t, f.TypeParams, "generic FuncDecl %q survived monomorphization", f.Name)
		walkNoTypeVar(t, f.Return)
		for _, p := range f.Params {
			walkNoTypeVar(t, p.Type)
		}
	}
	for _, cl := range prog.Classes {
		require.Emptyf(t, cl.TypeParams, "generic ClassDecl %q survived monomorphization", cl.Name)
		for _, fd := range cl.Fields {
			walkNoTypeVar(t, fd.Type)
		}
	}
	for _, e := range prog.Enums {
		require.Emptyf(t, e.TypeParams, "generic EnumDecl %q survived monomorphization", e.Name)
	}
}

func walkNoTypeVar(t *testing.T, te ast.TypeExpr) {
	t.Helper()
	if te == nil {
		return
	}
	_, isVar := te.(*ast.TypeVar)
	require.Falsef(t, isVar, "a TypeVar survived monomorphization: %#v", te)
	switch n := te.(type) {
	case *ast.ArrayType:
		walkNoTypeVar(t, n.Elem)
	case *ast.MapType:
		walkNoTypeVar(t, n.Key)
		walkNoTypeVar(t, n.Value)
	case *ast.SetType:
		walkNoTypeVar(t, n.Elem)
	case *ast.NullableType:
		walkNoTypeVar(t, n.Elem)
	case *ast.ClassRefType:
		require.NotNilf(t, n.TargetID, "unresolved ClassRefType %q survived monomorphization", n.Name)
		for _, ta := range n.TypeArgs {
			walkNoTypeVar(t, ta)
		}
	case *ast.TupleType:
		for _, el := range n.Elems {
			walkNoTypeVar(t, el)
		}
	}
}

func TestMonoSpecializesGenericFunctionCall(t *testing.T) {
	prog := mustMono(t, `
fn identity<T>(x: T) T {
	return x
}

fn caller() int {
	return identity(42)
}
`)
	noGenericsSurvive(t, prog)
	require.Nil(t, findFunc(prog, "identity"))
	spec := findFunc(prog, "identity__int")
	require.NotNil(t, spec)
	require.Len(t, spec.Params, 1)
	prim, ok := spec.Params[0].Type.(*ast.PrimitiveType)
	require.True(t, ok)
	require.Equal(t, ast.PrimInt, prim.Kind)
}

func TestMonoSpecializesSameGenericTwiceForDifferentArgs(t *testing.T) {
	prog := mustMono(t, `
fn identity<T>(x: T) T {
	return x
}

fn caller_int() int {
	return identity(1)
}

fn caller_bool() bool {
	return identity(true)
}
`)
	noGenericsSurvive(t, prog)
	require.NotNil(t, findFunc(prog, "identity__int"))
	require.NotNil(t, findFunc(prog, "identity__bool"))
	require.Nil(t, findFunc(prog, "identity"))
}

func TestMonoSpecializesGenericClassConstructionAndMethodImplicitArgs(t *testing.T) {
	prog := mustMono(t, `
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
	noGenericsSurvive(t, prog)
	require.Nil(t, findClass(prog, "Box"))
	spec := findClass(prog, "Box_int")
	require.NotNil(t, spec)
	require.Len(t, spec.Fields, 1)
	prim, ok := spec.Fields[0].Type.(*ast.PrimitiveType)
	require.True(t, ok)
	require.Equal(t, ast.PrimInt, prim.Kind)
	require.Len(t, spec.Methods, 1)
	getMethod := spec.Methods[0]
	require.Equal(t, "get", getMethod.Name)
	retPrim, ok := getMethod.Return.(*ast.PrimitiveType)
	require.True(t, ok)
	require.Equal(t, ast.PrimInt, retPrim.Kind)
}

func TestMonoRecursiveGenericFunctionTerminates(t *testing.T) {
	prog := mustMono(t, `
fn repeat<T>(x: T, n: int) T {
	if n <= 0 {
		return x
	}
	return repeat(x, n - 1)
}

fn caller() int {
	return repeat(9, 3)
}
`)
	noGenericsSurvive(t, prog)
	spec := findFunc(prog, "repeat__int")
	require.NotNil(t, spec)

	// the recursive call inside the specialized body must target the same
	// specialization, not an un-specialized (and now-deleted) template.
	ifExpr, ok := spec.Body.Stmts[0].(*ast.IfExpr)
	require.True(t, ok)
	_ = ifExpr
	ret, ok := spec.Body.Stmts[1].(*ast.ReturnExpr)
	require.True(t, ok)
	call, ok := ret.Value.(*ast.CallExpr)
	require.True(t, ok)
	require.NotNil(t, call.TargetID)
	require.Equal(t, spec.ID, *call.TargetID)
}

func TestMonoGenericEnumConstructionSpecializes(t *testing.T) {
	prog := mustMono(t, `
enum Option<T> {
	Some(value: T),
	None,
}

fn caller() int {
	let o = Option.Some(5)
	match o {
		Option.Some(value) => { return value }
		_ => { return 0 }
	}
}
`)
	noGenericsSurvive(t, prog)
	require.Nil(t, prog.Enums)
}

func TestMonoLeavesNonGenericCodeUntouched(t *testing.T) {
	prog := mustMono(t, `
fn add(a: int, b: int) int {
	return a + b
}

fn caller() int {
	return add(1, 2)
}
`)
	noGenericsSurvive(t, prog)
	require.NotNil(t, findFunc(prog, "add"))
	require.NotNil(t, findFunc(prog, "caller"))
	require.Len(t, prog.Funcs, 2)
}
