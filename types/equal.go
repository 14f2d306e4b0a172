package types

// Equal reports whether a and b are the same checked type (spec.md §4.4,
// "Unification"): nominal equality (declaration ID plus recursive
// type-argument equality) for ClassRef/TraitRef/EnumRef, structural
// recursive equality for every other composite kind, and plain field
// equality for the rest. Nullable(T) never equals T — see the Nullable
// doc comment — so callers that want to allow T where Nullable(T) is
// expected must widen explicitly before calling Equal, not rely on it.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Primitive:
		y, ok := b.(*Primitive)
		return ok && x.Kind == y.Kind
	case *StringT:
		_, ok := b.(*StringT)
		return ok
	case *BytesT:
		_, ok := b.(*BytesT)
		return ok
	case *Array:
		y, ok := b.(*Array)
		return ok && Equal(x.Elem, y.Elem)
	case *Map:
		y, ok := b.(*Map)
		return ok && Equal(x.Key, y.Key) && Equal(x.Value, y.Value)
	case *Set:
		y, ok := b.(*Set)
		return ok && Equal(x.Elem, y.Elem)
	case *Nullable:
		y, ok := b.(*Nullable)
		return ok && Equal(x.Elem, y.Elem)
	case *ClassRef:
		y, ok := b.(*ClassRef)
		return ok && x.ID == y.ID && equalTypeArgs(x.TypeArgs, y.TypeArgs)
	case *TraitRef:
		y, ok := b.(*TraitRef)
		return ok && x.ID == y.ID && equalTypeArgs(x.TypeArgs, y.TypeArgs)
	case *EnumRef:
		y, ok := b.(*EnumRef)
		return ok && x.ID == y.ID && equalTypeArgs(x.TypeArgs, y.TypeArgs)
	case *Func:
		y, ok := b.(*Func)
		if !ok || len(x.Params) != len(y.Params) || len(x.ErrorSet) != len(y.ErrorSet) {
			return false
		}
		for i := range x.Params {
			if !Equal(x.Params[i], y.Params[i]) {
				return false
			}
		}
		for i := range x.ErrorSet {
			if x.ErrorSet[i] != y.ErrorSet[i] {
				return false
			}
		}
		return Equal(x.Return, y.Return)
	case *Sender:
		y, ok := b.(*Sender)
		return ok && Equal(x.Elem, y.Elem)
	case *Receiver:
		y, ok := b.(*Receiver)
		return ok && Equal(x.Elem, y.Elem)
	case *Task:
		y, ok := b.(*Task)
		return ok && Equal(x.Result, y.Result)
	case *Stream:
		y, ok := b.(*Stream)
		return ok && Equal(x.Elem, y.Elem)
	case *Tuple:
		y, ok := b.(*Tuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Var:
		y, ok := b.(*Var)
		return ok && x.ID == y.ID
	default:
		return false
	}
}

func equalTypeArgs(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// IsNullable reports whether t is Nullable(_), and returns its element type.
func IsNullable(t Type) (Type, bool) {
	n, ok := t.(*Nullable)
	if !ok {
		return nil, false
	}
	return n.Elem, true
}
