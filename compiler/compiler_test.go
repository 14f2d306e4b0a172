package compiler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plutolang/pluto/compiler"
)

func TestCompileRunsEveryPassAndEmitsContainer(t *testing.T) {
	p := compiler.New()
	result, err := p.Compile(context.Background(), []byte(`
fn add(a: int, b: int) int {
	return a + b
}
`))
	require.NoError(t, err)
	require.NotNil(t, result.Container)
	require.NotNil(t, result.Container.Module)
	require.NotEmpty(t, result.Container.Derived.Decls)
}

func TestCompileReportsParseErrors(t *testing.T) {
	p := compiler.New()
	_, err := p.Compile(context.Background(), []byte(`fn (( not valid`))
	require.Error(t, err)
}

func TestCompileReportsTypeErrors(t *testing.T) {
	p := compiler.New()
	_, err := p.Compile(context.Background(), []byte(`
fn bad() int {
	return "not an int"
}
`))
	require.Error(t, err)
}

func TestLowerReturnsIRWithoutEmitting(t *testing.T) {
	p := compiler.New()
	_, mod, err := p.Lower(context.Background(), []byte(`
fn main() {
	let x = 1
}
`))
	require.NoError(t, err)
	require.NotNil(t, mod)
	require.NotEmpty(t, mod.Funcs)
}
