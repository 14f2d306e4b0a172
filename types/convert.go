package types

import "github.com/plutolang/pluto/ast"

// Converter turns ast.TypeExpr surface syntax into checked types, resolving
// a declaration's own type-parameter names to stable *Var values so two
// occurrences of the same type parameter (a function's parameter and its
// return type both naming T) convert to the same Var rather than two
// unrelated ones.
type Converter struct {
	vars map[string]*Var
	next int
}

// NewConverter creates a Converter whose type-parameter environment is
// declNames: the Name of every ast.TypeParam in scope for the declaration
// being converted (a method's own type parameters plus its enclosing
// class's, outermost first).
func NewConverter(declNames []string) *Converter {
	c := &Converter{vars: map[string]*Var{}}
	for _, name := range declNames {
		c.vars[name] = &Var{Name: name, ID: c.next}
		c.next++
	}
	return c
}

// From converts t. A ClassRefType with a nil TargetID whose Name matches a
// name passed to NewConverter is this declaration's own type parameter and
// converts to that Var; xref leaves such references untouched for exactly
// this reason (see xref.Resolver.pushTypeParams). Any other TargetID-less
// reference reaching here means xref or flatten failed to resolve it, which
// is a bug upstream of typeck, not a user error — From panics rather than
// silently treating it as unconstrained.
func (c *Converter) From(t ast.TypeExpr) Type {
	if t == nil {
		return nil
	}
	switch n := t.(type) {
	case *ast.PrimitiveType:
		return &Primitive{Kind: n.Kind}
	case *ast.StringType:
		return &StringT{}
	case *ast.BytesType:
		return &BytesT{}
	case *ast.ArrayType:
		return &Array{Elem: c.From(n.Elem)}
	case *ast.MapType:
		return &Map{Key: c.From(n.Key), Value: c.From(n.Value)}
	case *ast.SetType:
		return &Set{Elem: c.From(n.Elem)}
	case *ast.NullableType:
		return &Nullable{Elem: c.From(n.Elem)}
	case *ast.ClassRefType:
		if n.TargetID == nil {
			if v, ok := c.vars[n.Name]; ok {
				return v
			}
			panic("types: unresolved class reference " + n.Name + " reached typeck")
		}
		return &ClassRef{ID: *n.TargetID, Name: n.Name, TypeArgs: c.fromAll(n.TypeArgs)}
	case *ast.TraitRefType:
		if n.TargetID == nil {
			panic("types: unresolved trait reference " + n.Name + " reached typeck")
		}
		return &TraitRef{ID: *n.TargetID, Name: n.Name, TypeArgs: c.fromAll(n.TypeArgs)}
	case *ast.EnumRefType:
		if n.TargetID == nil {
			panic("types: unresolved enum reference " + n.Name + " reached typeck")
		}
		return &EnumRef{ID: *n.TargetID, Name: n.Name, TypeArgs: c.fromAll(n.TypeArgs)}
	case *ast.FuncType:
		// ErrorSet is left empty: FuncType.ErrorSet only carries surface
		// names until effect inference resolves them to declaration IDs
		// (spec.md §4.5), which runs after typeck.
		return &Func{Params: c.fromAll(n.Params), Return: c.From(n.Return)}
	case *ast.SenderType:
		return &Sender{Elem: c.From(n.Elem)}
	case *ast.ReceiverType:
		return &Receiver{Elem: c.From(n.Elem)}
	case *ast.TaskType:
		return &Task{Result: c.From(n.Result)}
	case *ast.StreamType:
		return &Stream{Elem: c.From(n.Elem)}
	case *ast.TupleType:
		return &Tuple{Elems: c.fromAll(n.Elems)}
	case *ast.TypeVar:
		if v, ok := c.vars[n.Name]; ok {
			return v
		}
		v := &Var{Name: n.Name, ID: c.next}
		c.next++
		c.vars[n.Name] = v
		return v
	case *ast.QualifiedType:
		panic("types: QualifiedType survived flattening")
	default:
		panic("types: unhandled ast.TypeExpr variant")
	}
}

func (c *Converter) fromAll(ts []ast.TypeExpr) []Type {
	if ts == nil {
		return nil
	}
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = c.From(t)
	}
	return out
}

// Fresh allocates a new, uniquely-numbered inference variable not tied to
// any declared type parameter — used by typeck when inferring a generic
// call's type arguments from its argument expressions.
func (c *Converter) Fresh(name string) *Var {
	v := &Var{Name: name, ID: c.next}
	c.next++
	return v
}

// ToTypeExpr converts a checked Type back into surface TypeExpr syntax, for
// passes downstream of typeck (closure lifting, monomorphization, spawn
// desugaring) that need a concrete, codegen-facing type for something the
// parser left optional — an un-annotated `let`, a `for` binding, a closure
// parameter or return type inferred rather than written. A Var converts to
// a bare TypeVar: one may still legitimately appear in a not-yet-monomorphized
// generic declaration's own body, to be substituted away by transform/mono.
func ToTypeExpr(t Type) ast.TypeExpr {
	if t == nil {
		return nil
	}
	switch n := t.(type) {
	case *Primitive:
		return &ast.PrimitiveType{Kind: n.Kind}
	case *StringT:
		return &ast.StringType{}
	case *BytesT:
		return &ast.BytesType{}
	case *Array:
		return &ast.ArrayType{Elem: ToTypeExpr(n.Elem)}
	case *Map:
		return &ast.MapType{Key: ToTypeExpr(n.Key), Value: ToTypeExpr(n.Value)}
	case *Set:
		return &ast.SetType{Elem: ToTypeExpr(n.Elem)}
	case *Nullable:
		return &ast.NullableType{Elem: ToTypeExpr(n.Elem)}
	case *ClassRef:
		id := n.ID
		return &ast.ClassRefType{Name: n.Name, TypeArgs: toAllExpr(n.TypeArgs), TargetID: &id}
	case *TraitRef:
		id := n.ID
		return &ast.TraitRefType{Name: n.Name, TypeArgs: toAllExpr(n.TypeArgs), TargetID: &id}
	case *EnumRef:
		id := n.ID
		return &ast.EnumRefType{Name: n.Name, TypeArgs: toAllExpr(n.TypeArgs), TargetID: &id}
	case *Func:
		return &ast.FuncType{Params: toAllExpr(n.Params), Return: ToTypeExpr(n.Return)}
	case *Sender:
		return &ast.SenderType{Elem: ToTypeExpr(n.Elem)}
	case *Receiver:
		return &ast.ReceiverType{Elem: ToTypeExpr(n.Elem)}
	case *Task:
		return &ast.TaskType{Result: ToTypeExpr(n.Result)}
	case *Stream:
		return &ast.StreamType{Elem: ToTypeExpr(n.Elem)}
	case *Tuple:
		return &ast.TupleType{Elems: toAllExpr(n.Elems)}
	case *Var:
		return &ast.TypeVar{Name: n.Name}
	default:
		panic("types: unhandled Type variant in ToTypeExpr")
	}
}

// ToTypeExprs converts a slice of resolved Types into TypeExprs, in the
// same order — the form transform/mono needs for a call site's resolved
// generic instantiation.
func ToTypeExprs(ts []Type) []ast.TypeExpr {
	return toAllExpr(ts)
}

func toAllExpr(ts []Type) []ast.TypeExpr {
	if ts == nil {
		return nil
	}
	out := make([]ast.TypeExpr, len(ts))
	for i, t := range ts {
		out[i] = ToTypeExpr(t)
	}
	return out
}
