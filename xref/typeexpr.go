package xref

import "github.com/plutolang/pluto/ast"

// resolveTypeExpr resolves *t in place, rewriting it when a single-segment
// ClassRefType — the parser's default guess for any unqualified named type
// (parser/types.go, "the xref resolver later reclassifies it") — actually
// binds to a trait or enum declaration rather than a class. Multi-segment
// QualifiedType nodes are left untouched for the flattener to rewrite.
func (r *Resolver) resolveTypeExpr(t *ast.TypeExpr) {
	if t == nil || *t == nil {
		return
	}
	switch n := (*t).(type) {
	case *ast.PrimitiveType, *ast.StringType, *ast.BytesType, *ast.QualifiedType, *ast.TypeVar:
		// leaves (QualifiedType deferred to the flattener; TypeVar not yet introduced)
	case *ast.ArrayType:
		r.resolveTypeExpr(&n.Elem)
	case *ast.MapType:
		r.resolveTypeExpr(&n.Key)
		r.resolveTypeExpr(&n.Value)
	case *ast.SetType:
		r.resolveTypeExpr(&n.Elem)
	case *ast.NullableType:
		r.resolveTypeExpr(&n.Elem)
	case *ast.SenderType:
		r.resolveTypeExpr(&n.Elem)
	case *ast.ReceiverType:
		r.resolveTypeExpr(&n.Elem)
	case *ast.TaskType:
		r.resolveTypeExpr(&n.Result)
	case *ast.StreamType:
		r.resolveTypeExpr(&n.Elem)
	case *ast.TupleType:
		for i := range n.Elems {
			r.resolveTypeExpr(&n.Elems[i])
		}
	case *ast.FuncType:
		for i := range n.Params {
			r.resolveTypeExpr(&n.Params[i])
		}
		if n.Return != nil {
			r.resolveTypeExpr(&n.Return)
		}
	case *ast.ClassRefType:
		r.resolveClassRef(t, n)
	case *ast.TraitRefType:
		d := r.lookupKind(n.Name, n.Sp, "a trait", isTrait)
		setTargetID(&n.TargetID, d)
		for i := range n.TypeArgs {
			r.resolveTypeExpr(&n.TypeArgs[i])
		}
	case *ast.EnumRefType:
		d := r.lookupKind(n.Name, n.Sp, "an enum", isEnum)
		setTargetID(&n.TargetID, d)
		for i := range n.TypeArgs {
			r.resolveTypeExpr(&n.TypeArgs[i])
		}
	}
}

// resolveClassRef resolves a ClassRefType's name against the registry. If
// it in fact binds to a TraitDecl or EnumDecl, *slot is rewritten to the
// corresponding *ast.TraitRefType / *ast.EnumRefType so every later pass can
// pattern-match on the concrete reference kind instead of re-deriving it.
//
// A name that matches an in-scope type parameter (the enclosing function's
// or class's own `<T>`) is left exactly as-is, with no TargetID: it is a
// type-variable reference, not a declaration reference, and typeck resolves
// it against the type-parameter environment instead.
func (r *Resolver) resolveClassRef(slot *ast.TypeExpr, n *ast.ClassRefType) {
	if r.typeParams != nil && r.typeParams.has(n.Name) {
		for i := range n.TypeArgs {
			r.resolveTypeExpr(&n.TypeArgs[i])
		}
		return
	}
	d := r.lookup(n.Name, n.Sp)
	if d == nil {
		for i := range n.TypeArgs {
			r.resolveTypeExpr(&n.TypeArgs[i])
		}
		return
	}
	switch d.(type) {
	case *ast.ClassDecl:
		setTargetID(&n.TargetID, d)
	case *ast.TraitDecl:
		tr := &ast.TraitRefType{Name: n.Name, TypeArgs: n.TypeArgs}
		tr.Sp = n.Sp
		setTargetID(&tr.TargetID, d)
		*slot = tr
	case *ast.EnumDecl:
		er := &ast.EnumRefType{Name: n.Name, TypeArgs: n.TypeArgs}
		er.Sp = n.Sp
		setTargetID(&er.TargetID, d)
		*slot = er
	default:
		r.wrongKindErr(n.Name, n.Sp, "a type (class, trait, or enum)")
	}
	for i := range n.TypeArgs {
		r.resolveTypeExpr(&n.TypeArgs[i])
	}
}

func setTargetID(slot **ast.ID, d ast.Decl) {
	if d == nil {
		return
	}
	id := d.DeclID()
	*slot = &id
}
