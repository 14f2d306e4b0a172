package flatten_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/xref"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, xref.Resolve(prog))
	return prog
}

func TestFlattenResolvesQualifiedCallAndConcatenatesModules(t *testing.T) {
	prog := mustParse(t, `
module geo.shapes {
	pub fn origin_x() int {
		return 0
	}
}

fn caller() int {
	return geo::shapes::origin_x()
}
`)
	require.NoError(t, flatten.Flatten(prog))
	require.Empty(t, prog.Modules)
	require.Len(t, prog.Funcs, 2)

	var caller *ast.FuncDecl
	var originX *ast.FuncDecl
	for _, fn := range prog.Funcs {
		switch fn.Name {
		case "caller":
			caller = fn
		case "origin_x":
			originX = fn
		}
	}
	require.NotNil(t, caller)
	require.NotNil(t, originX)

	ret, ok := caller.Body.Stmts[0].(*ast.ReturnExpr)
	require.True(t, ok)
	id, ok := ret.Value.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "origin_x", id.Name)
	require.NotNil(t, id.TargetID)
	require.Equal(t, originX.ID, *id.TargetID)
}

func TestFlattenRejectsNonPubCrossModuleReference(t *testing.T) {
	prog := mustParse(t, `
module geo.shapes {
	fn origin_x() int {
		return 0
	}
}

fn caller() int {
	return geo::shapes::origin_x()
}
`)
	err := flatten.Flatten(prog)
	require.Error(t, err)
}

func TestFlattenResolvesQualifiedTypeToClassRef(t *testing.T) {
	prog := mustParse(t, `
module geo.shapes {
	pub class Point {
		x: int
		y: int
	}
}

fn make_point() geo::shapes::Point {
	return Point { x: 1, y: 2 }
}
`)
	require.NoError(t, flatten.Flatten(prog))

	var makePoint *ast.FuncDecl
	var point *ast.ClassDecl
	for _, fn := range prog.Funcs {
		if fn.Name == "make_point" {
			makePoint = fn
		}
	}
	for _, c := range prog.Classes {
		if c.Name == "Point" {
			point = c
		}
	}
	require.NotNil(t, makePoint)
	require.NotNil(t, point)

	ref, ok := makePoint.Return.(*ast.ClassRefType)
	require.True(t, ok)
	require.Equal(t, "Point", ref.Name)
	require.NotNil(t, ref.TargetID)
	require.Equal(t, point.ID, *ref.TargetID)
}

func TestFlattenDetectsImportCycle(t *testing.T) {
	prog := mustParse(t, `
module a {
	import b

	pub fn from_a() int {
		return 1
	}
}

module b {
	import a

	pub fn from_b() int {
		return 2
	}
}
`)
	err := flatten.Flatten(prog)
	require.Error(t, err)
}

func TestFlattenPermitsDiamondImport(t *testing.T) {
	prog := mustParse(t, `
module common {
	pub fn shared() int {
		return 1
	}
}

module a {
	import common

	pub fn from_a() int {
		return common::shared()
	}
}

module b {
	import common

	pub fn from_b() int {
		return common::shared()
	}
}
`)
	require.NoError(t, flatten.Flatten(prog))
	require.Empty(t, prog.Modules)
	require.Len(t, prog.Funcs, 3)
}
