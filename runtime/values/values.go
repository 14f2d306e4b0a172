// Package values implements the native runtime's heap value representations
// (spec.md §4.10, "Object layouts") and the deep-copy-on-spawn primitive
// (spec.md §4.9, §5 "Shared-resource policy"): strings, string slices,
// arrays, maps, and sets, each carrying enough shape information for
// runtime/gc to scan their children.
//
// Grounded the same way as runtime/gc: no teacher/example repo models value
// representations at this level, so this package follows spec.md directly.
// Its only third-party-library question (none) is noted in DESIGN.md.
package values

import (
	"fmt"

	"github.com/plutolang/pluto/runtime"
)

// Kind distinguishes the runtime shape of a Value, mirroring gc.Tag but
// scoped to values rather than raw heap headers.
type Kind int

const (
	KindPrimitive Kind = iota
	KindString
	KindStringSlice
	KindArray
	KindMap
	KindSet
	KindBytes
	KindObject // class/error instance
	KindEnum
	KindTask
	KindChannel
)

// Value is the runtime's uniform representation of any heap or primitive
// value flowing through generated code. Primitive carries scalars
// (int/float/bool) directly; the heap-shaped kinds use the corresponding
// field below.
type Value struct {
	Kind Kind

	Primitive any // int64, float64, or bool

	Str string // KindString: immutable, reference-shared (spec.md §4.10)

	// KindStringSlice: materialized lazily into an owned string at the
	// escape boundaries spec.md §4.10 names (return, field store,
	// array/map/set insert, closure capture).
	Backing *string
	Offset  int
	Len     int

	Elems []*Value // KindArray, KindSet (keys only)

	Keys []*Value // KindMap
	Vals []*Value // KindMap, parallel to Keys

	Bytes []byte // KindBytes

	Fields []*Value // KindObject: bracket-deps then declared fields, in order
	TypeID string   // KindObject, KindEnum: the originating class/error/enum id

	Discriminant int      // KindEnum
	Variant      []*Value // KindEnum: the active variant's payload fields
}

// NewInt, NewFloat, NewBool construct primitive values.
func NewInt(v int64) *Value     { return &Value{Kind: KindPrimitive, Primitive: v} }
func NewFloat(v float64) *Value { return &Value{Kind: KindPrimitive, Primitive: v} }
func NewBool(v bool) *Value     { return &Value{Kind: KindPrimitive, Primitive: v} }

// NewString constructs an owned, reference-shared string value.
func NewString(s string) *Value { return &Value{Kind: KindString, Str: s} }

// Slice returns a string-slice view into v's backing string without
// allocating a new owned string (spec.md §4.10, "String slice").
func Slice(v *Value, offset, length int) (*Value, error) {
	if v.Kind != KindString {
		return nil, fmt.Errorf("pluto: cannot slice non-string value of kind %d", v.Kind)
	}
	if offset < 0 || length < 0 || offset+length > len(v.Str) {
		return nil, fmt.Errorf("pluto: string slice [%d:%d] out of range for length %d", offset, offset+length, len(v.Str))
	}
	backing := v.Str
	return &Value{Kind: KindStringSlice, Backing: &backing, Offset: offset, Len: length}, nil
}

// Materialize forces a KindStringSlice into a fresh owned KindString,
// spec.md §4.10's defined escape boundary behavior. Non-slice values pass
// through unchanged.
func Materialize(v *Value) *Value {
	if v.Kind != KindStringSlice {
		return v
	}
	return NewString((*v.Backing)[v.Offset : v.Offset+v.Len])
}

// ErrDeepCopyUnsupported is returned when DeepCopy is asked to copy a task
// or channel value (spec.md §4.9: "Attempting to deep-copy a task or
// channel value is a runtime error").
var ErrDeepCopyUnsupported = fmt.Errorf("pluto: deep-copying a task or channel value is not supported")

// DeepCopy implements __pluto_deep_copy(value, type_id): the spawn-boundary
// isolation primitive (spec.md §4.9). Primitives copy trivially; strings are
// shared by reference since they are immutable at runtime; classes, arrays,
// maps, sets, and enums with heap fields are recursively copied. Tasks and
// channels are rejected.
func DeepCopy(v *Value) (*Value, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case KindPrimitive, KindString:
		cp := *v
		return &cp, nil
	case KindStringSlice:
		return Materialize(v), nil
	case KindBytes:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return &Value{Kind: KindBytes, Bytes: b}, nil
	case KindArray, KindSet:
		elems := make([]*Value, len(v.Elems))
		for i, e := range v.Elems {
			c, err := DeepCopy(e)
			if err != nil {
				return nil, err
			}
			elems[i] = c
		}
		return &Value{Kind: v.Kind, Elems: elems}, nil
	case KindMap:
		keys := make([]*Value, len(v.Keys))
		vals := make([]*Value, len(v.Vals))
		for i := range v.Keys {
			k, err := DeepCopy(v.Keys[i])
			if err != nil {
				return nil, err
			}
			val, err := DeepCopy(v.Vals[i])
			if err != nil {
				return nil, err
			}
			keys[i], vals[i] = k, val
		}
		return &Value{Kind: KindMap, Keys: keys, Vals: vals}, nil
	case KindObject:
		fields := make([]*Value, len(v.Fields))
		for i, f := range v.Fields {
			c, err := DeepCopy(f)
			if err != nil {
				return nil, err
			}
			fields[i] = c
		}
		return &Value{Kind: KindObject, TypeID: v.TypeID, Fields: fields}, nil
	case KindEnum:
		variant := make([]*Value, len(v.Variant))
		for i, f := range v.Variant {
			c, err := DeepCopy(f)
			if err != nil {
				return nil, err
			}
			variant[i] = c
		}
		return &Value{Kind: KindEnum, TypeID: v.TypeID, Discriminant: v.Discriminant, Variant: variant}, nil
	case KindTask, KindChannel:
		return nil, ErrDeepCopyUnsupported
	default:
		return nil, fmt.Errorf("pluto: deep copy of unknown value kind %d", v.Kind)
	}
}

// DeepCopyOrFault adapts DeepCopy's error into a *runtime.Fault, the shape
// generated code calls at a spawn boundary expects (spec.md §4.9's runtime
// error on task/channel copy is non-catchable, consistent with other
// "impossible state" runtime panics in spec.md §4.13's error taxonomy).
func DeepCopyOrFault(v *Value) (*Value, error) {
	cp, err := DeepCopy(v)
	if err != nil {
		return nil, runtime.NewFault("spawn.deep_copy", "%s", err.Error())
	}
	return cp, nil
}
