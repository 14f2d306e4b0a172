package typeck

import "github.com/plutolang/pluto/types"

// unifyInto matches pattern (a scheme's parameter or return type, which may
// contain *types.Var standing for the callable's own type parameters)
// against concrete (an argument's inferred type), recording any new Var
// binding into subst. A Var already bound in subst must agree with concrete
// under types.Equal (spec.md §4.4, "nominal for class/enum/trait types...
// structural for function types").
//
// Nullable widening is handled asymmetrically, matching the spec's "allowed
// only when the target context permits it": a concrete T may stand in for a
// pattern Nullable(T), but not the reverse.
func unifyInto(pattern, concrete types.Type, subst map[int]types.Type) bool {
	if pattern == nil || concrete == nil {
		return pattern == nil && concrete == nil
	}
	if v, ok := pattern.(*types.Var); ok {
		if existing, bound := subst[v.ID]; bound {
			return types.Equal(existing, concrete)
		}
		subst[v.ID] = concrete
		return true
	}
	switch p := pattern.(type) {
	case *types.Primitive:
		c, ok := concrete.(*types.Primitive)
		return ok && p.Kind == c.Kind
	case *types.StringT:
		_, ok := concrete.(*types.StringT)
		return ok
	case *types.BytesT:
		_, ok := concrete.(*types.BytesT)
		return ok
	case *types.Array:
		c, ok := concrete.(*types.Array)
		return ok && unifyInto(p.Elem, c.Elem, subst)
	case *types.Map:
		c, ok := concrete.(*types.Map)
		return ok && unifyInto(p.Key, c.Key, subst) && unifyInto(p.Value, c.Value, subst)
	case *types.Set:
		c, ok := concrete.(*types.Set)
		return ok && unifyInto(p.Elem, c.Elem, subst)
	case *types.Nullable:
		if c, ok := concrete.(*types.Nullable); ok {
			return unifyInto(p.Elem, c.Elem, subst)
		}
		return unifyInto(p.Elem, concrete, subst)
	case *types.ClassRef:
		c, ok := concrete.(*types.ClassRef)
		if !ok || p.ID != c.ID || len(p.TypeArgs) != len(c.TypeArgs) {
			return false
		}
		for i := range p.TypeArgs {
			if !unifyInto(p.TypeArgs[i], c.TypeArgs[i], subst) {
				return false
			}
		}
		return true
	case *types.TraitRef:
		c, ok := concrete.(*types.TraitRef)
		return ok && p.ID == c.ID && unifyAllInto(p.TypeArgs, c.TypeArgs, subst)
	case *types.EnumRef:
		c, ok := concrete.(*types.EnumRef)
		return ok && p.ID == c.ID && unifyAllInto(p.TypeArgs, c.TypeArgs, subst)
	case *types.Func:
		c, ok := concrete.(*types.Func)
		return ok && unifyAllInto(p.Params, c.Params, subst) && unifyInto(p.Return, c.Return, subst)
	case *types.Sender:
		c, ok := concrete.(*types.Sender)
		return ok && unifyInto(p.Elem, c.Elem, subst)
	case *types.Receiver:
		c, ok := concrete.(*types.Receiver)
		return ok && unifyInto(p.Elem, c.Elem, subst)
	case *types.Task:
		c, ok := concrete.(*types.Task)
		return ok && unifyInto(p.Result, c.Result, subst)
	case *types.Stream:
		c, ok := concrete.(*types.Stream)
		return ok && unifyInto(p.Elem, c.Elem, subst)
	case *types.Tuple:
		c, ok := concrete.(*types.Tuple)
		return ok && unifyAllInto(p.Elems, c.Elems, subst)
	default:
		return types.Equal(pattern, concrete)
	}
}

func unifyAllInto(pattern, concrete []types.Type, subst map[int]types.Type) bool {
	if len(pattern) != len(concrete) {
		return false
	}
	for i := range pattern {
		if !unifyInto(pattern[i], concrete[i], subst) {
			return false
		}
	}
	return true
}
