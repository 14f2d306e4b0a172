package flatten

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
)

// resolveQualified resolves a "::"-separated Path, written inside the
// module at modulePath, to the declaration it names. It tries an absolute
// match first (the path is already fully qualified against the flat
// registry), then falls back to treating Path[0] as a name imported by the
// enclosing module, substituting the import's own path and retrying.
func (f *Flattener) resolveQualified(modulePath string, path []string, sp token.Span) ast.Decl {
	if d, ok := f.byQualifiedName[pathKey(path)]; ok {
		f.checkVisibility(modulePath, d, path, sp)
		return d
	}
	for _, imp := range f.importsOf[modulePath] {
		if len(imp) == 0 || len(path) == 0 || imp[len(imp)-1] != path[0] {
			continue
		}
		full := append(append([]string{}, imp...), path[1:]...)
		if d, ok := f.byQualifiedName[pathKey(full)]; ok {
			f.checkVisibility(modulePath, d, path, sp)
			return d
		}
	}
	f.diags.Addf(diag.FlattenError, sp, "unknown qualified name %q", pathKey(path))
	return nil
}

// checkVisibility reports a FlattenError when a cross-module reference
// names a declaration that is not pub, unless the reference originates
// from the declaration's own module.
func (f *Flattener) checkVisibility(fromModule string, d ast.Decl, path []string, sp token.Span) {
	declModule := f.moduleOf[d.DeclID()]
	if declModule == fromModule {
		return
	}
	if !isPublic(d) {
		f.diags.Addf(diag.FlattenError, sp, "%q is not pub, cannot be referenced from outside its module", pathKey(path))
	}
}

func isPublic(d ast.Decl) bool {
	switch v := d.(type) {
	case *ast.FuncDecl:
		return v.Public
	case *ast.ExternFuncDecl:
		return v.Public
	case *ast.ClassDecl:
		return v.Public
	case *ast.TraitDecl:
		return v.Public
	case *ast.EnumDecl:
		return v.Public
	case *ast.ErrorDecl:
		return v.Public
	default:
		// AppDecl, StageDecl, SystemDecl, TestDecl are roots, never the
		// target of a qualified reference.
		return false
	}
}

func (f *Flattener) wrongKindErr(name string, sp token.Span, want string) {
	f.diags.Addf(diag.FlattenError, sp, "%q is not %s", name, want)
}

func setTargetID(slot **ast.ID, d ast.Decl) {
	if d == nil {
		return
	}
	id := d.DeclID()
	*slot = &id
}
