package flatten

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
)

// resolveTypeExpr resolves *slot in place. Every QualifiedType found is
// replaced by the concrete ClassRefType/TraitRefType/EnumRefType it names,
// mirroring the reclassification xref performs for single-segment
// ClassRefType nodes (spec.md §4.2, §4.3).
func (f *Flattener) resolveTypeExpr(modulePath string, slot *ast.TypeExpr) {
	if slot == nil || *slot == nil {
		return
	}
	switch t := (*slot).(type) {
	case *ast.PrimitiveType, *ast.StringType, *ast.BytesType, *ast.TypeVar:
		// leaves
	case *ast.ArrayType:
		f.resolveTypeExpr(modulePath, &t.Elem)
	case *ast.MapType:
		f.resolveTypeExpr(modulePath, &t.Key)
		f.resolveTypeExpr(modulePath, &t.Value)
	case *ast.SetType:
		f.resolveTypeExpr(modulePath, &t.Elem)
	case *ast.NullableType:
		f.resolveTypeExpr(modulePath, &t.Elem)
	case *ast.ClassRefType:
		for i := range t.TypeArgs {
			f.resolveTypeExpr(modulePath, &t.TypeArgs[i])
		}
	case *ast.TraitRefType:
		for i := range t.TypeArgs {
			f.resolveTypeExpr(modulePath, &t.TypeArgs[i])
		}
	case *ast.EnumRefType:
		for i := range t.TypeArgs {
			f.resolveTypeExpr(modulePath, &t.TypeArgs[i])
		}
	case *ast.FuncType:
		for i := range t.Params {
			f.resolveTypeExpr(modulePath, &t.Params[i])
		}
		f.resolveTypeExpr(modulePath, &t.Return)
	case *ast.SenderType:
		f.resolveTypeExpr(modulePath, &t.Elem)
	case *ast.ReceiverType:
		f.resolveTypeExpr(modulePath, &t.Elem)
	case *ast.TaskType:
		f.resolveTypeExpr(modulePath, &t.Result)
	case *ast.StreamType:
		f.resolveTypeExpr(modulePath, &t.Elem)
	case *ast.TupleType:
		for i := range t.Elems {
			f.resolveTypeExpr(modulePath, &t.Elems[i])
		}
	case *ast.QualifiedType:
		f.resolveQualifiedType(modulePath, slot, t)
	default:
		panic(fmt.Sprintf("flatten: unhandled type variant %T", t))
	}
}

func (f *Flattener) resolveQualifiedType(modulePath string, slot *ast.TypeExpr, n *ast.QualifiedType) {
	d := f.resolveQualified(modulePath, n.Path, n.Sp)
	if d == nil {
		return
	}
	name := n.Path[len(n.Path)-1]
	switch d.(type) {
	case *ast.ClassDecl:
		r := &ast.ClassRefType{Name: name}
		r.Sp = n.Sp
		setTargetID(&r.TargetID, d)
		*slot = r
	case *ast.TraitDecl:
		r := &ast.TraitRefType{Name: name}
		r.Sp = n.Sp
		setTargetID(&r.TargetID, d)
		*slot = r
	case *ast.EnumDecl:
		r := &ast.EnumRefType{Name: name}
		r.Sp = n.Sp
		setTargetID(&r.TargetID, d)
		*slot = r
	default:
		f.wrongKindErr(name, n.Sp, "a type (class, trait, or enum)")
	}
}

// assertTypeClean panics if t, or anything it contains, is a QualifiedType.
// Called only after a successful Flatten, as the post-pass invariant
// (spec.md §4.3): encountering one past this point is a compiler bug.
func assertTypeClean(t ast.TypeExpr) {
	if t == nil {
		return
	}
	switch n := t.(type) {
	case *ast.PrimitiveType, *ast.StringType, *ast.BytesType, *ast.TypeVar:
	case *ast.ArrayType:
		assertTypeClean(n.Elem)
	case *ast.MapType:
		assertTypeClean(n.Key)
		assertTypeClean(n.Value)
	case *ast.SetType:
		assertTypeClean(n.Elem)
	case *ast.NullableType:
		assertTypeClean(n.Elem)
	case *ast.ClassRefType:
		for _, ta := range n.TypeArgs {
			assertTypeClean(ta)
		}
	case *ast.TraitRefType:
		for _, ta := range n.TypeArgs {
			assertTypeClean(ta)
		}
	case *ast.EnumRefType:
		for _, ta := range n.TypeArgs {
			assertTypeClean(ta)
		}
	case *ast.FuncType:
		for _, p := range n.Params {
			assertTypeClean(p)
		}
		assertTypeClean(n.Return)
	case *ast.SenderType:
		assertTypeClean(n.Elem)
	case *ast.ReceiverType:
		assertTypeClean(n.Elem)
	case *ast.TaskType:
		assertTypeClean(n.Result)
	case *ast.StreamType:
		assertTypeClean(n.Elem)
	case *ast.TupleType:
		for _, e := range n.Elems {
			assertTypeClean(e)
		}
	case *ast.QualifiedType:
		panic("flatten: QualifiedType survived flattening")
	default:
		panic(fmt.Sprintf("flatten: unhandled type variant %T", t))
	}
}
