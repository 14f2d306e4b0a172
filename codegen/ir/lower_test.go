package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/codegen/ir"
	"github.com/plutolang/pluto/effects"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/transform/closure"
	"github.com/plutolang/pluto/transform/di"
	"github.com/plutolang/pluto/transform/mono"
	"github.com/plutolang/pluto/transform/spawn"
	"github.com/plutolang/pluto/typeck"
	"github.com/plutolang/pluto/xref"
)

func mustLower(t *testing.T, src string) *ir.Module {
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
	require.NoError(t, spawn.Desugar(prog))
	mod, err := ir.Lower(prog)
	require.NoError(t, err)
	return mod
}

func findFunc(mod *ir.Module, name string) *ir.Func {
	for _, f := range mod.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func TestLowerArithmeticFunction(t *testing.T) {
	mod := mustLower(t, `
fn add(a: int, b: int) int {
	return a + b
}
`)
	fn := findFunc(mod, "add")
	require.NotNil(t, fn)
	require.Equal(t, []string{"a", "b"}, fn.Params)
	require.Len(t, fn.Blocks, 1)

	insts := fn.Blocks[0].Insts
	require.True(t, len(insts) >= 2)
	bin := insts[len(insts)-2]
	require.Equal(t, ir.OpBinary, bin.Op)
	require.Equal(t, "add", bin.BinOp)
	ret := insts[len(insts)-1]
	require.Equal(t, ir.OpRet, ret.Op)
}

func TestLowerIfBranchesIntoDistinctBlocks(t *testing.T) {
	mod := mustLower(t, `
fn classify(n: int) int {
	if n > 0 {
		return 1
	} else {
		return 0
	}
}
`)
	fn := findFunc(mod, "classify")
	require.NotNil(t, fn)
	// entry, then, else, endif
	require.Len(t, fn.Blocks, 4)
	entry := fn.Blocks[0]
	last := entry.Insts[len(entry.Insts)-1]
	require.Equal(t, ir.OpCondBr, last.Op)
	require.NotEmpty(t, last.ThenBlock)
	require.NotEmpty(t, last.ElseBlock)
}

func TestLowerStructLitEmitsAllocAndInvariantCheck(t *testing.T) {
	mod := mustLower(t, `
class Point {
	x: int
	y: int
}

fn origin() Point {
	return Point { x: 0, y: 0 }
}
`)
	fn := findFunc(mod, "origin")
	require.NotNil(t, fn)
	var sawAlloc, sawCheck bool
	for _, i := range fn.Blocks[0].Insts {
		if i.Op == ir.OpAlloc {
			sawAlloc = true
		}
		if i.Op == ir.OpInvariantCheck {
			sawCheck = true
		}
	}
	require.True(t, sawAlloc)
	require.True(t, sawCheck)
}

func TestLowerWhileLoopStructure(t *testing.T) {
	mod := mustLower(t, `
fn countdown(n: int) {
	while n > 0 {
		n = n - 1
	}
}
`)
	fn := findFunc(mod, "countdown")
	require.NotNil(t, fn)
	// entry, loop_head, loop_body, loop_exit
	require.Len(t, fn.Blocks, 4)
	head := fn.Blocks[1]
	last := head.Insts[len(head.Insts)-1]
	require.Equal(t, ir.OpCondBr, last.Op)
}
