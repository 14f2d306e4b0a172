package container_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/google/uuid"

	"github.com/plutolang/pluto/codegen/ir"
	"github.com/plutolang/pluto/container"
)

// genDeclCount generates how many synthetic declarations (and matching
// lowered functions) a generated container carries.
func genDeclCount() gopter.Gen {
	return gen.IntRange(0, 6)
}

// buildContainer assembles a deterministic Container with n synthesized
// functions and a matching derived-section index, standing in for the
// "canonical AST" spec.md §8's serialization-round-trip property ranges
// over.
func buildContainer(n int) *container.Container {
	funcs := make([]*ir.Func, 0, n)
	decls := make([]container.DeclEntry, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("fn_%d", i)
		funcs = append(funcs, &ir.Func{
			Name:   name,
			Params: nil,
			Blocks: []*ir.Block{
				{Name: "entry", Insts: []ir.Inst{
					{Op: ir.OpConstInt, Result: 1, IntVal: int64(i)},
					{Op: ir.OpRet, IntVal: int64(i)},
				}},
			},
		})
		decls = append(decls, container.DeclEntry{
			ID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String(),
			Kind: "func",
			Name: name,
		})
	}
	return &container.Container{
		Source:  []byte(fmt.Sprintf("// %d functions\n", n)),
		Module:  &ir.Module{Funcs: funcs},
		Derived: container.BuildDerived(decls),
	}
}

// TestContainerSerializationRoundTripProperty is spec.md §8's universal
// invariant: "for every canonical AST, serializing and deserializing yields
// a byte-identical binary." For any generated declaration count, writing,
// reading back, and re-writing the resulting Container produces the exact
// same bytes as the first write.
func TestContainerSerializationRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("container Write/Read/Write round-trips byte-identically", prop.ForAll(
		func(n int) bool {
			c := buildContainer(n)

			var first bytes.Buffer
			if err := container.Write(&first, c); err != nil {
				return false
			}

			got, err := container.Read(bytes.NewReader(first.Bytes()))
			if err != nil {
				return false
			}

			var second bytes.Buffer
			if err := container.Write(&second, got); err != nil {
				return false
			}

			return bytes.Equal(first.Bytes(), second.Bytes())
		},
		genDeclCount(),
	))

	properties.TestingRun(t)
}
