package types

// Substitute returns t with every Var whose ID has an entry in subst
// replaced by that entry, recursively. It is used at a generic call site
// once unification has determined bindings for the callee's own type
// parameters, to produce the call's concrete parameter and return types.
func Substitute(t Type, subst map[int]Type) Type {
	if t == nil {
		return nil
	}
	switch n := t.(type) {
	case *Var:
		if r, ok := subst[n.ID]; ok {
			return r
		}
		return n
	case *Primitive, *StringT, *BytesT:
		return n
	case *Array:
		return &Array{Elem: Substitute(n.Elem, subst)}
	case *Map:
		return &Map{Key: Substitute(n.Key, subst), Value: Substitute(n.Value, subst)}
	case *Set:
		return &Set{Elem: Substitute(n.Elem, subst)}
	case *Nullable:
		return &Nullable{Elem: Substitute(n.Elem, subst)}
	case *ClassRef:
		return &ClassRef{ID: n.ID, Name: n.Name, TypeArgs: substituteAll(n.TypeArgs, subst)}
	case *TraitRef:
		return &TraitRef{ID: n.ID, Name: n.Name, TypeArgs: substituteAll(n.TypeArgs, subst)}
	case *EnumRef:
		return &EnumRef{ID: n.ID, Name: n.Name, TypeArgs: substituteAll(n.TypeArgs, subst)}
	case *Func:
		return &Func{Params: substituteAll(n.Params, subst), Return: Substitute(n.Return, subst), ErrorSet: n.ErrorSet}
	case *Sender:
		return &Sender{Elem: Substitute(n.Elem, subst)}
	case *Receiver:
		return &Receiver{Elem: Substitute(n.Elem, subst)}
	case *Task:
		return &Task{Result: Substitute(n.Result, subst)}
	case *Stream:
		return &Stream{Elem: Substitute(n.Elem, subst)}
	case *Tuple:
		return &Tuple{Elems: substituteAll(n.Elems, subst)}
	default:
		return t
	}
}

func substituteAll(ts []Type, subst map[int]Type) []Type {
	if ts == nil {
		return nil
	}
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = Substitute(t, subst)
	}
	return out
}

// FreeVars collects the IDs of every Var reachable from t into out.
func FreeVars(t Type, out map[int]bool) {
	if t == nil {
		return
	}
	switch n := t.(type) {
	case *Var:
		out[n.ID] = true
	case *Array:
		FreeVars(n.Elem, out)
	case *Map:
		FreeVars(n.Key, out)
		FreeVars(n.Value, out)
	case *Set:
		FreeVars(n.Elem, out)
	case *Nullable:
		FreeVars(n.Elem, out)
	case *ClassRef:
		for _, a := range n.TypeArgs {
			FreeVars(a, out)
		}
	case *TraitRef:
		for _, a := range n.TypeArgs {
			FreeVars(a, out)
		}
	case *EnumRef:
		for _, a := range n.TypeArgs {
			FreeVars(a, out)
		}
	case *Func:
		for _, p := range n.Params {
			FreeVars(p, out)
		}
		FreeVars(n.Return, out)
	case *Sender:
		FreeVars(n.Elem, out)
	case *Receiver:
		FreeVars(n.Elem, out)
	case *Task:
		FreeVars(n.Result, out)
	case *Stream:
		FreeVars(n.Elem, out)
	case *Tuple:
		for _, e := range n.Elems {
			FreeVars(e, out)
		}
	}
}
