package ast

import "github.com/plutolang/pluto/token"

// TypeExpr is the surface syntax for a type annotation, as written by the
// user or synthesized by a transform pass. It is distinct from the checked
// representation in package types, which carries resolved identities instead
// of names.
type TypeExpr interface {
	typeExprNode()
	Span() token.Span
}

type baseType struct{ Sp token.Span }

func (baseType) typeExprNode()      {}
func (b baseType) Span() token.Span { return b.Sp }

// Primitive scalar kind.
type PrimitiveKind int

const (
	PrimInt PrimitiveKind = iota
	PrimFloat
	PrimBool
	PrimByte
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimInt:
		return "int"
	case PrimFloat:
		return "float"
	case PrimBool:
		return "bool"
	case PrimByte:
		return "byte"
	default:
		return "?"
	}
}

// PrimitiveType is one of int/float/bool/byte.
type PrimitiveType struct {
	baseType
	Kind PrimitiveKind
}

// StringType is the string type.
type StringType struct{ baseType }

// BytesType is the immutable byte-buffer type.
type BytesType struct{ baseType }

// ArrayType is array-of-Elem.
type ArrayType struct {
	baseType
	Elem TypeExpr
}

// MapType is map-of-Key-to-Value.
type MapType struct {
	baseType
	Key   TypeExpr
	Value TypeExpr
}

// SetType is set-of-Elem.
type SetType struct {
	baseType
	Elem TypeExpr
}

// NullableType is Nullable(Elem), distinguishable from bare null.
type NullableType struct {
	baseType
	Elem TypeExpr
}

// ClassRefType references a class declaration, possibly with instantiated
// type arguments.
type ClassRefType struct {
	baseType
	Name     string
	TypeArgs []TypeExpr
	// TargetID is filled in by the cross-reference resolver.
	TargetID *ID
}

// TraitRefType references a trait declaration.
type TraitRefType struct {
	baseType
	Name     string
	TypeArgs []TypeExpr
	TargetID *ID
}

// EnumRefType references an enum declaration with type arguments.
type EnumRefType struct {
	baseType
	Name     string
	TypeArgs []TypeExpr
	TargetID *ID
}

// FuncType is a function type: parameter types, return type, and error set.
type FuncType struct {
	baseType
	Params   []TypeExpr
	Return   TypeExpr // nil means no return value
	ErrorSet []string // error type names; resolved to IDs during effect inference
}

// SenderType is the send endpoint of a channel of Elem.
type SenderType struct {
	baseType
	Elem TypeExpr
}

// ReceiverType is the receive endpoint of a channel of Elem.
type ReceiverType struct {
	baseType
	Elem TypeExpr
}

// TaskType is the handle returned by spawn, yielding Result when awaited.
type TaskType struct {
	baseType
	Result TypeExpr
}

// StreamType is a generator's produced-value stream.
type StreamType struct {
	baseType
	Elem TypeExpr
}

// TupleType is the privileged pair used to type `chan<T>(cap)` construction,
// i.e. (Sender<T>, Receiver<T>).
type TupleType struct {
	baseType
	Elems []TypeExpr
}

// TypeVar is a placeholder used only during inference; no TypeVar may
// survive into a surviving type expression after monomorphization.
type TypeVar struct {
	baseType
	Name string
}

// QualifiedType is `module.sub.Thing` surface syntax; the module flattener
// rewrites every occurrence into a concrete reference type and this node
// must never survive flattening.
type QualifiedType struct {
	baseType
	Path []string
}

var (
	_ TypeExpr = (*PrimitiveType)(nil)
	_ TypeExpr = (*StringType)(nil)
	_ TypeExpr = (*BytesType)(nil)
	_ TypeExpr = (*ArrayType)(nil)
	_ TypeExpr = (*MapType)(nil)
	_ TypeExpr = (*SetType)(nil)
	_ TypeExpr = (*NullableType)(nil)
	_ TypeExpr = (*ClassRefType)(nil)
	_ TypeExpr = (*TraitRefType)(nil)
	_ TypeExpr = (*EnumRefType)(nil)
	_ TypeExpr = (*FuncType)(nil)
	_ TypeExpr = (*SenderType)(nil)
	_ TypeExpr = (*ReceiverType)(nil)
	_ TypeExpr = (*TaskType)(nil)
	_ TypeExpr = (*StreamType)(nil)
	_ TypeExpr = (*TupleType)(nil)
	_ TypeExpr = (*TypeVar)(nil)
	_ TypeExpr = (*QualifiedType)(nil)
)
