// Package emit assembles the lowered codegen/ir.Module and a Program's
// declaration index into a container.Container and writes it as a PLTO v3
// object (spec.md §4.10, "Codegen is non-mutating on the source Program; its
// output is an object file that is then linked with the compiled runtime
// object").
package emit

import (
	"io"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/codegen/ir"
	"github.com/plutolang/pluto/container"
)

// Build lowers prog and assembles the resulting container, without writing
// it anywhere; callers that only need the in-memory object (tests, the
// store package) can stop here. src is prog's original source text, carried
// into the container's source section unchanged (spec.md §6).
func Build(prog *ast.Program, src []byte) (*container.Container, error) {
	mod, err := ir.Lower(prog)
	if err != nil {
		return nil, err
	}
	return &container.Container{
		Source:  src,
		Module:  mod,
		Derived: container.BuildDerived(declIndex(prog)),
	}, nil
}

// Emit lowers prog and writes the resulting PLTO v3 object to w.
func Emit(w io.Writer, prog *ast.Program, src []byte) error {
	c, err := Build(prog, src)
	if err != nil {
		return err
	}
	return container.Write(w, c)
}

// declIndex builds the derived-section index: every top-level declaration's
// UUID, kind, and name, in ast.Program.AllDecls order (already deterministic
// — see that method's own doc comment).
func declIndex(prog *ast.Program) []container.DeclEntry {
	decls := prog.AllDecls()
	out := make([]container.DeclEntry, 0, len(decls))
	for _, d := range decls {
		out = append(out, container.DeclEntry{
			ID:   d.DeclID().String(),
			Kind: declKind(d),
			Name: d.DeclName(),
		})
	}
	return out
}

func declKind(d ast.Decl) string {
	switch d.(type) {
	case *ast.FuncDecl:
		return "func"
	case *ast.ExternFuncDecl:
		return "extern"
	case *ast.ClassDecl:
		return "class"
	case *ast.TraitDecl:
		return "trait"
	case *ast.EnumDecl:
		return "enum"
	case *ast.ErrorDecl:
		return "error"
	case *ast.AppDecl:
		return "app"
	case *ast.StageDecl:
		return "stage"
	case *ast.SystemDecl:
		return "system"
	case *ast.TestDecl:
		return "test"
	default:
		return "unknown"
	}
}
