// Package typeck is the type checker (spec.md §4.4). It runs after xref and
// flatten, on a Program with no Modules left and no QualifiedAccess/
// QualifiedType nodes, and assumes every name reference already carries its
// resolved TargetID.
//
// Checking is a two-phase register/check split, the same shape the
// teacher's expr/agent/registry.go and expr/agent/policy.go use for
// validating a DSL root against its own registry before walking expression
// bodies: register first builds an Env of every declaration's checked
// signature (so a forward reference to a function declared later in the
// file, or a class referencing a sibling via a method, resolves correctly
// regardless of declaration order), then check walks every function, method,
// and test body's expressions bottom-up against that Env.
package typeck

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/types"
)

// scheme is a callable's checked signature, with its own type parameters
// represented as *types.Var values private to this scheme — a call site
// instantiates fresh Vars from TypeParamNames and unifies them against its
// arguments, never reusing the scheme's own Vars directly.
type scheme struct {
	TypeParamNames []string
	// TypeParamIDs[i] is the *types.Var ID standing for TypeParamNames[i]
	// within Params/Return, kept alongside the names (rather than assuming
	// position == ID) so a method scheme can be sliced down to just its own
	// type parameters, after the class's have been substituted away at a
	// call site, without losing track of which Var ID each remaining name
	// still refers to.
	TypeParamIDs []int
	Params       []types.Type
	Return       types.Type
	Mutable      []bool // per-param `mut` flag, Params[0] meaningful only for methods
}

// classInfo is a class's checked shape: field types, its own methods (not
// including inherited trait defaults), and the trait IDs it implements.
type classInfo struct {
	Decl       *ast.ClassDecl
	TypeParams []string
	Fields     map[string]types.Type
	FieldOrder []string
	Methods    map[string]*scheme
	// MethodIDs mirrors Methods, giving each own method's FuncDecl.ID — the
	// resolved call-graph target effect inference records onto a method
	// call's CallExpr.TargetID.
	MethodIDs  map[string]ast.ID
	Implements []ast.ID
}

type traitInfo struct {
	Decl    *ast.TraitDecl
	Methods map[string]*scheme
	// Sigs mirrors Methods, giving each method's MethodSig (its ID is the
	// call-graph target for a default-method dispatch).
	Sigs map[string]*ast.MethodSig
}

type variantInfo struct {
	Fields     map[string]types.Type
	FieldOrder []string
}

type enumInfo struct {
	Decl       *ast.EnumDecl
	TypeParams []string
	Variants   map[string]*variantInfo
}

type errorInfo struct {
	Decl       *ast.ErrorDecl
	Fields     map[string]types.Type
	FieldOrder []string
}

// Env is the whole program's checked declaration environment.
type Env struct {
	prog    *ast.Program
	classes map[ast.ID]*classInfo
	traits  map[ast.ID]*traitInfo
	enums   map[ast.ID]*enumInfo
	errs    map[ast.ID]*errorInfo
	funcs   map[ast.ID]*scheme // FuncDecl and ExternFuncDecl, keyed by DeclID
}

func newEnv(prog *ast.Program) *Env {
	return &Env{
		prog:    prog,
		classes: map[ast.ID]*classInfo{},
		traits:  map[ast.ID]*traitInfo{},
		enums:   map[ast.ID]*enumInfo{},
		errs:    map[ast.ID]*errorInfo{},
		funcs:   map[ast.ID]*scheme{},
	}
}

func typeParamNames(tps []ast.TypeParam) []string {
	if len(tps) == 0 {
		return nil
	}
	out := make([]string, len(tps))
	for i, tp := range tps {
		out[i] = tp.Name
	}
	return out
}

func funcScheme(tps []ast.TypeParam, params []ast.Param, ret ast.TypeExpr) *scheme {
	names := typeParamNames(tps)
	conv := types.NewConverter(names)
	ids := make([]int, len(names))
	for i := range names {
		ids[i] = i // NewConverter assigns sequential IDs starting at 0, in order
	}
	s := &scheme{TypeParamNames: names, TypeParamIDs: ids}
	for _, p := range params {
		if p.Name == "self" {
			s.Params = append(s.Params, nil)
		} else {
			s.Params = append(s.Params, conv.From(p.Type))
		}
		s.Mutable = append(s.Mutable, p.Mutable)
	}
	s.Return = conv.From(ret)
	return s
}

// register builds the Env for prog, a program already flattened so every
// FuncDecl/ClassDecl/TraitDecl/EnumDecl/ErrorDecl lives in its flat
// top-level lists (spec.md §4.3's post-pass invariant).
func register(prog *ast.Program, diags *diag.Bag) *Env {
	env := newEnv(prog)

	for _, t := range prog.Traits {
		ti := &traitInfo{Decl: t, Methods: map[string]*scheme{}, Sigs: map[string]*ast.MethodSig{}}
		for i := range t.Methods {
			m := &t.Methods[i]
			ti.Methods[m.Name] = funcScheme(nil, m.Params, m.Return)
			ti.Sigs[m.Name] = m
		}
		env.traits[t.ID] = ti
	}

	for _, e := range prog.Enums {
		names := typeParamNames(e.TypeParams)
		ei := &enumInfo{Decl: e, TypeParams: names, Variants: map[string]*variantInfo{}}
		for _, v := range e.Variants {
			conv := types.NewConverter(names)
			vi := &variantInfo{Fields: map[string]types.Type{}}
			for _, fd := range v.Fields {
				vi.Fields[fd.Name] = conv.From(fd.Type)
				vi.FieldOrder = append(vi.FieldOrder, fd.Name)
			}
			ei.Variants[v.Name] = vi
		}
		env.enums[e.ID] = ei
	}

	for _, e := range prog.Errors {
		conv := types.NewConverter(nil)
		ei := &errorInfo{Decl: e, Fields: map[string]types.Type{}}
		for _, fd := range e.Fields {
			ei.Fields[fd.Name] = conv.From(fd.Type)
			ei.FieldOrder = append(ei.FieldOrder, fd.Name)
		}
		env.errs[e.ID] = ei
	}

	for _, c := range prog.Classes {
		names := typeParamNames(c.TypeParams)
		ci := &classInfo{Decl: c, TypeParams: names, Fields: map[string]types.Type{}, Methods: map[string]*scheme{}, MethodIDs: map[string]ast.ID{}}
		conv := types.NewConverter(names)
		for _, fd := range c.Fields {
			ci.Fields[fd.Name] = conv.From(fd.Type)
			ci.FieldOrder = append(ci.FieldOrder, fd.Name)
		}
		for _, m := range c.Methods {
			ci.Methods[m.Name] = funcScheme(append(append([]ast.TypeParam{}, c.TypeParams...), m.TypeParams...), m.Params, m.Return)
			ci.MethodIDs[m.Name] = m.ID
		}
		for _, traitName := range c.Implements {
			if d := declIDByName(prog, traitName); d != nil {
				ci.Implements = append(ci.Implements, d.DeclID())
			}
		}
		env.classes[c.ID] = ci
	}

	for _, f := range prog.Funcs {
		env.funcs[f.ID] = funcScheme(f.TypeParams, f.Params, f.Return)
	}
	for _, ex := range prog.Externs {
		env.funcs[ex.ID] = funcScheme(ex.TypeParams, ex.Params, ex.Return)
	}

	checkTraitImplementations(prog, env, diags)
	return env
}

// declIDByName resolves a bare trait name against the flat program; xref
// already verified c.Implements names a trait, so this only needs to find
// it again for its ID. Linear scan is fine: implements-lists are short and
// register runs once per program.
func declIDByName(prog *ast.Program, name string) ast.Decl {
	for _, t := range prog.Traits {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// checkTraitImplementations verifies every class that declares `: Trait`
// provides (itself, or via a default method) every method the trait
// requires, with a compatible signature (spec.md §4.4, "missing trait
// impl"/"ambiguous trait method").
func checkTraitImplementations(prog *ast.Program, env *Env, diags *diag.Bag) {
	for _, c := range prog.Classes {
		ci := env.classes[c.ID]
		for _, traitID := range ci.Implements {
			ti := env.traits[traitID]
			if ti == nil {
				continue
			}
			for name, want := range ti.Methods {
				got, ok := ci.Methods[name]
				if !ok {
					if hasDefault(ti.Decl, name) {
						continue
					}
					diags.Addf(diag.TypeError, c.Sp, "class %q does not implement method %q required by trait %q", c.Name, name, ti.Decl.Name)
					continue
				}
				// got's Params[0] is the method's self slot (funcScheme records
				// nil there); want's Params never includes self, since
				// MethodSig.Params is the trait method's argument list only.
				gotArgs := got.Params
				if len(gotArgs) > 0 && gotArgs[0] == nil {
					gotArgs = gotArgs[1:]
				}
				if len(gotArgs) != len(want.Params) {
					diags.Addf(diag.TypeError, c.Sp, "class %q method %q has %d parameters, trait %q requires %d", c.Name, name, len(gotArgs), ti.Decl.Name, len(want.Params))
				}
			}
		}
	}
}

func hasDefault(t *ast.TraitDecl, name string) bool {
	for _, m := range t.Methods {
		if m.Name == name {
			return m.Default != nil
		}
	}
	return false
}
