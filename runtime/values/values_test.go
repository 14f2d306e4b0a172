package values_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plutolang/pluto/runtime/values"
)

func TestSliceAndMaterialize(t *testing.T) {
	s := values.NewString("hello world")
	sl, err := values.Slice(s, 6, 5)
	require.NoError(t, err)
	require.Equal(t, values.KindStringSlice, sl.Kind)

	m := values.Materialize(sl)
	require.Equal(t, values.KindString, m.Kind)
	require.Equal(t, "world", m.Str)
}

func TestSliceOutOfRange(t *testing.T) {
	s := values.NewString("abc")
	_, err := values.Slice(s, 1, 10)
	require.Error(t, err)
}

func TestDeepCopyArrayIsIndependent(t *testing.T) {
	arr := &values.Value{Kind: values.KindArray, Elems: []*values.Value{values.NewInt(1), values.NewInt(2)}}
	cp, err := values.DeepCopy(arr)
	require.NoError(t, err)
	require.NotSame(t, arr, cp)
	require.NotSame(t, arr.Elems[0], cp.Elems[0])
	require.Equal(t, arr.Elems[0].Primitive, cp.Elems[0].Primitive)
}

func TestDeepCopyObjectRecursesIntoFields(t *testing.T) {
	inner := &values.Value{Kind: values.KindObject, TypeID: "Inner", Fields: []*values.Value{values.NewInt(42)}}
	outer := &values.Value{Kind: values.KindObject, TypeID: "Outer", Fields: []*values.Value{inner}}
	cp, err := values.DeepCopy(outer)
	require.NoError(t, err)
	require.NotSame(t, outer.Fields[0], cp.Fields[0])
	require.Equal(t, "Inner", cp.Fields[0].TypeID)
}

func TestDeepCopyStringSharesReference(t *testing.T) {
	s := values.NewString("shared")
	cp, err := values.DeepCopy(s)
	require.NoError(t, err)
	require.Equal(t, s.Str, cp.Str)
}

func TestDeepCopyRejectsTaskAndChannel(t *testing.T) {
	_, err := values.DeepCopy(&values.Value{Kind: values.KindTask})
	require.ErrorIs(t, err, values.ErrDeepCopyUnsupported)

	_, err = values.DeepCopy(&values.Value{Kind: values.KindChannel})
	require.ErrorIs(t, err, values.ErrDeepCopyUnsupported)
}

func TestDeepCopyOrFaultWrapsError(t *testing.T) {
	_, err := values.DeepCopyOrFault(&values.Value{Kind: values.KindChannel})
	require.Error(t, err)
}
