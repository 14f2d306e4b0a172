package types_test

import (
	"testing"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/types"
	"github.com/stretchr/testify/require"
)

func TestEqualPrimitivesAndNominalTypes(t *testing.T) {
	require.True(t, types.Equal(&types.Primitive{Kind: ast.PrimInt}, &types.Primitive{Kind: ast.PrimInt}))
	require.False(t, types.Equal(&types.Primitive{Kind: ast.PrimInt}, &types.Primitive{Kind: ast.PrimFloat}))

	id := ast.NewID()
	a := &types.ClassRef{ID: id, Name: "Box", TypeArgs: []types.Type{&types.Primitive{Kind: ast.PrimInt}}}
	b := &types.ClassRef{ID: id, Name: "Box", TypeArgs: []types.Type{&types.Primitive{Kind: ast.PrimInt}}}
	c := &types.ClassRef{ID: id, Name: "Box", TypeArgs: []types.Type{&types.StringT{}}}
	require.True(t, types.Equal(a, b))
	require.False(t, types.Equal(a, c))

	other := ast.NewID()
	d := &types.ClassRef{ID: other, Name: "Box", TypeArgs: []types.Type{&types.Primitive{Kind: ast.PrimInt}}}
	require.False(t, types.Equal(a, d), "nominal equality must key off ID, not just Name")
}

func TestEqualNullableNeverCollapsesWithElem(t *testing.T) {
	elem := &types.Primitive{Kind: ast.PrimInt}
	nullable := &types.Nullable{Elem: elem}
	require.False(t, types.Equal(nullable, elem))
	require.True(t, types.Equal(nullable, &types.Nullable{Elem: &types.Primitive{Kind: ast.PrimInt}}))
}

func TestEqualFuncIsStructural(t *testing.T) {
	f1 := &types.Func{
		Params: []types.Type{&types.Primitive{Kind: ast.PrimInt}},
		Return: &types.StringT{},
	}
	f2 := &types.Func{
		Params: []types.Type{&types.Primitive{Kind: ast.PrimInt}},
		Return: &types.StringT{},
	}
	f3 := &types.Func{
		Params: []types.Type{&types.Primitive{Kind: ast.PrimFloat}},
		Return: &types.StringT{},
	}
	require.True(t, types.Equal(f1, f2))
	require.False(t, types.Equal(f1, f3))
}

func TestConverterSharesVarAcrossPositions(t *testing.T) {
	tparam := &ast.ClassRefType{Name: "T"}
	conv := types.NewConverter([]string{"T"})

	paramType := conv.From(tparam)
	returnType := conv.From(tparam)

	tv, ok := paramType.(*types.Var)
	require.True(t, ok)
	require.Equal(t, "T", tv.Name)
	require.True(t, types.Equal(paramType, returnType), "both occurrences of T must convert to the same Var")
}

func TestConverterResolvesClassRefWithTargetID(t *testing.T) {
	id := ast.NewID()
	ref := &ast.ClassRefType{Name: "Point", TargetID: &id}
	conv := types.NewConverter(nil)

	got := conv.From(ref)
	cr, ok := got.(*types.ClassRef)
	require.True(t, ok)
	require.Equal(t, id, cr.ID)
	require.Equal(t, "Point", cr.Name)
}

func TestConverterPanicsOnUnresolvedClassRef(t *testing.T) {
	ref := &ast.ClassRefType{Name: "Mystery"}
	conv := types.NewConverter(nil)
	require.Panics(t, func() { conv.From(ref) })
}

func TestConverterCompositeTypes(t *testing.T) {
	conv := types.NewConverter(nil)
	arr := &ast.ArrayType{Elem: &ast.PrimitiveType{Kind: ast.PrimInt}}
	got := conv.From(arr)
	a, ok := got.(*types.Array)
	require.True(t, ok)
	require.Equal(t, "int", a.Elem.String())
	require.Equal(t, "[int]", a.String())
}
