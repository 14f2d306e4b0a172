// Package mono monomorphizes every generic function, class, and enum
// instantiation site into a concrete specialized copy (spec.md §4.7).
// Specialization is triggered lazily while cloning a declaration's body: the
// first time a generic call/construction site is encountered for a given
// (declaration, concrete-type-argument-tuple) pair, a specialized copy is
// synthesized and cached; every later site with the same pair reuses it.
// Recursive and mutually-recursive generics terminate because the cache
// entry is registered before the specialized body itself is cloned, exactly
// mirroring transform/closure's bottom-up, cache-before-recurse discipline.
package mono

import (
	"fmt"
	"strings"

	"github.com/plutolang/pluto/ast"
)

type specKey struct {
	orig    ast.ID
	mangled string
}

// methodOwner records which (possibly generic) class declares a given
// method, by the method's own FuncDecl.ID — needed to split a method call's
// combined TypeArgs (spec.md §4.7; see typeck/call.go's inferMethodCall)
// back into its class-level and method-own halves.
type methodOwner struct {
	class *ast.ClassDecl
	index int
}

type monomorphizer struct {
	genericFuncs   map[ast.ID]*ast.FuncDecl
	genericClasses map[ast.ID]*ast.ClassDecl
	genericEnums   map[ast.ID]*ast.EnumDecl
	methodOwner    map[ast.ID]methodOwner

	funcSpecs  map[specKey]*ast.FuncDecl
	classSpecs map[specKey]*ast.ClassDecl
	enumSpecs  map[specKey]*ast.EnumDecl

	outFuncs   []*ast.FuncDecl
	outClasses []*ast.ClassDecl
	outEnums   []*ast.EnumDecl
}

// Monomorphize rewrites prog in place. Post-pass invariant: no ast.TypeVar
// and no type-parameter-name-only ClassRefType survives anywhere in the
// program — every remaining type expression is concrete (spec.md §4.7).
//
// Scope: a method additionally declaring its own type parameters beyond its
// enclosing class's is specialized only against its class's type arguments;
// any further method-own type argument is passed through unspecialized. No
// program in the pack's worked examples exercises a doubly-generic method,
// and the common case — a generic class with ordinary methods, spec.md's
// own `Box<T>` shape — is fully specialized.
func Monomorphize(prog *ast.Program) error {
	m := &monomorphizer{
		genericFuncs:   map[ast.ID]*ast.FuncDecl{},
		genericClasses: map[ast.ID]*ast.ClassDecl{},
		genericEnums:   map[ast.ID]*ast.EnumDecl{},
		methodOwner:    map[ast.ID]methodOwner{},
		funcSpecs:      map[specKey]*ast.FuncDecl{},
		classSpecs:     map[specKey]*ast.ClassDecl{},
		enumSpecs:      map[specKey]*ast.EnumDecl{},
	}

	var keepFuncs []*ast.FuncDecl
	for _, f := range prog.Funcs {
		if len(f.TypeParams) > 0 {
			m.genericFuncs[f.ID] = f
			continue
		}
		keepFuncs = append(keepFuncs, f)
	}
	var keepClasses []*ast.ClassDecl
	for _, cl := range prog.Classes {
		for i, meth := range cl.Methods {
			m.methodOwner[meth.ID] = methodOwner{class: cl, index: i}
		}
		if len(cl.TypeParams) > 0 {
			m.genericClasses[cl.ID] = cl
			continue
		}
		keepClasses = append(keepClasses, cl)
	}
	var keepEnums []*ast.EnumDecl
	for _, e := range prog.Enums {
		if len(e.TypeParams) > 0 {
			m.genericEnums[e.ID] = e
			continue
		}
		keepEnums = append(keepEnums, e)
	}

	for _, f := range keepFuncs {
		f.Body = m.cloneBlock(f.Body, nil)
	}
	for _, cl := range keepClasses {
		for _, meth := range cl.Methods {
			meth.Body = m.cloneBlock(meth.Body, nil)
		}
	}
	for i := range prog.Traits {
		for j := range prog.Traits[i].Methods {
			sig := &prog.Traits[i].Methods[j]
			sig.Default = m.cloneBlock(sig.Default, nil)
		}
	}
	if prog.App != nil && prog.App.Main != nil {
		prog.App.Main.Body = m.cloneBlock(prog.App.Main.Body, nil)
	}
	for _, s := range prog.Stages {
		if s.Main != nil {
			s.Main.Body = m.cloneBlock(s.Main.Body, nil)
		}
	}
	for _, t := range prog.Tests {
		t.Body = m.cloneBlock(t.Body, nil)
	}

	prog.Funcs = append(keepFuncs, m.outFuncs...)
	prog.Classes = append(keepClasses, m.outClasses...)
	prog.Enums = append(keepEnums, m.outEnums...)
	return nil
}

// specializeFunc returns the specialized copy of orig for args, synthesizing
// and caching one on first use.
func (m *monomorphizer) specializeFunc(orig *ast.FuncDecl, args []ast.TypeExpr) *ast.FuncDecl {
	mangled := mangleTypeArgs(args)
	key := specKey{orig: orig.ID, mangled: mangled}
	if spec, ok := m.funcSpecs[key]; ok {
		return spec
	}
	subst := bindTypeParams(orig.TypeParams, args)

	spec := &ast.FuncDecl{
		Name:        orig.Name + "__" + mangled,
		ID:          ast.NewID(),
		Params:      m.cloneParams(orig.Params, subst),
		Return:      m.cloneType(orig.Return, subst),
		Public:      orig.Public,
		IsGenerator: orig.IsGenerator,
		ErrorSet:    append([]ast.ID(nil), orig.ErrorSet...),
	}
	spec.Sp = orig.Sp
	m.funcSpecs[key] = spec
	m.outFuncs = append(m.outFuncs, spec)

	spec.Contracts = m.cloneContracts(orig.Contracts, subst)
	spec.Body = m.cloneBlock(orig.Body, subst)
	return spec
}

// specializeClass returns the specialized copy of orig for args. Method
// declarations (with fresh IDs) are registered in methodOwner and the
// specCache before their bodies are cloned, so a method that calls a sibling
// method on the same generic class resolves back to this same in-progress
// specialization rather than recursing forever.
func (m *monomorphizer) specializeClass(orig *ast.ClassDecl, args []ast.TypeExpr) *ast.ClassDecl {
	mangled := mangleTypeArgs(args)
	key := specKey{orig: orig.ID, mangled: mangled}
	if spec, ok := m.classSpecs[key]; ok {
		return spec
	}
	subst := bindTypeParams(orig.TypeParams, args)

	spec := &ast.ClassDecl{
		Name:                 orig.Name + "__" + mangled,
		ID:                   ast.NewID(),
		Fields:               m.cloneFields(orig.Fields, subst),
		Implements:           append([]string(nil), orig.Implements...),
		BracketDeps:          m.cloneBracketDeps(orig.BracketDeps, subst),
		Public:               orig.Public,
		ConcurrentlyAccessed: orig.ConcurrentlyAccessed,
	}
	spec.Sp = orig.Sp
	m.classSpecs[key] = spec
	m.outClasses = append(m.outClasses, spec)

	spec.Invariants = m.cloneContracts(orig.Invariants, subst)
	spec.Methods = make([]*ast.FuncDecl, len(orig.Methods))
	for i, meth := range orig.Methods {
		nm := &ast.FuncDecl{
			Name:        meth.Name,
			ID:          ast.NewID(),
			TypeParams:  append([]ast.TypeParam(nil), meth.TypeParams...),
			Params:      m.cloneParams(meth.Params, subst),
			Return:      m.cloneType(meth.Return, subst),
			Public:      meth.Public,
			IsGenerator: meth.IsGenerator,
			ErrorSet:    append([]ast.ID(nil), meth.ErrorSet...),
		}
		nm.Sp = meth.Sp
		spec.Methods[i] = nm
		m.methodOwner[nm.ID] = methodOwner{class: spec, index: i}
	}
	for i, meth := range orig.Methods {
		spec.Methods[i].Contracts = m.cloneContracts(meth.Contracts, subst)
		spec.Methods[i].Body = m.cloneBlock(meth.Body, subst)
	}
	return spec
}

func (m *monomorphizer) specializeEnum(orig *ast.EnumDecl, args []ast.TypeExpr) *ast.EnumDecl {
	mangled := mangleTypeArgs(args)
	key := specKey{orig: orig.ID, mangled: mangled}
	if spec, ok := m.enumSpecs[key]; ok {
		return spec
	}
	subst := bindTypeParams(orig.TypeParams, args)

	spec := &ast.EnumDecl{
		Name:   orig.Name + "__" + mangled,
		ID:     ast.NewID(),
		Public: orig.Public,
	}
	spec.Sp = orig.Sp
	m.enumSpecs[key] = spec
	m.outEnums = append(m.outEnums, spec)

	spec.Variants = make([]ast.VariantDecl, len(orig.Variants))
	for i, v := range orig.Variants {
		nv := ast.VariantDecl{Name: v.Name, Fields: m.cloneFields(v.Fields, subst)}
		nv.Sp = v.Sp
		spec.Variants[i] = nv
	}
	return spec
}

func bindTypeParams(tps []ast.TypeParam, args []ast.TypeExpr) map[string]ast.TypeExpr {
	subst := map[string]ast.TypeExpr{}
	for i, tp := range tps {
		if i < len(args) {
			subst[tp.Name] = args[i]
		}
	}
	return subst
}

func (m *monomorphizer) cloneParams(ps []ast.Param, subst map[string]ast.TypeExpr) []ast.Param {
	if ps == nil {
		return nil
	}
	out := make([]ast.Param, len(ps))
	for i, p := range ps {
		out[i] = ast.Param{Name: p.Name, Mutable: p.Mutable, Type: m.cloneType(p.Type, subst)}
	}
	return out
}

func (m *monomorphizer) cloneFields(fs []ast.FieldDecl, subst map[string]ast.TypeExpr) []ast.FieldDecl {
	if fs == nil {
		return nil
	}
	out := make([]ast.FieldDecl, len(fs))
	for i, f := range fs {
		nf := ast.FieldDecl{Name: f.Name, Public: f.Public, Injected: f.Injected, Type: m.cloneType(f.Type, subst)}
		nf.Sp = f.Sp
		out[i] = nf
	}
	return out
}

func (m *monomorphizer) cloneBracketDeps(ds []ast.BracketDep, subst map[string]ast.TypeExpr) []ast.BracketDep {
	if ds == nil {
		return nil
	}
	out := make([]ast.BracketDep, len(ds))
	for i, d := range ds {
		nd := ast.BracketDep{Name: d.Name, Type: m.cloneType(d.Type, subst)}
		nd.Sp = d.Sp
		out[i] = nd
	}
	return out
}

func (m *monomorphizer) cloneContracts(cs []ast.Contract, subst map[string]ast.TypeExpr) []ast.Contract {
	if cs == nil {
		return nil
	}
	out := make([]ast.Contract, len(cs))
	for i, c := range cs {
		nc := ast.Contract{Kind: c.Kind, Name: c.Name, Expr: m.cloneExpr(c.Expr, subst)}
		nc.Sp = c.Sp
		out[i] = nc
	}
	return out
}

func cloneID(id *ast.ID) *ast.ID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// cloneType deep-copies t, substituting a type-parameter reference — either
// an already-backfilled ast.TypeVar or the parser/xref's surface form for an
// unresolved-but-in-scope type parameter name, a TargetID-less ClassRefType
// (xref/typeexpr.go, resolveClassRef) — with its bound concrete type.
func (m *monomorphizer) cloneType(t ast.TypeExpr, subst map[string]ast.TypeExpr) ast.TypeExpr {
	if t == nil {
		return nil
	}
	switch n := t.(type) {
	case *ast.PrimitiveType:
		c := &ast.PrimitiveType{Kind: n.Kind}
		c.Sp = n.Sp
		return c
	case *ast.StringType:
		c := &ast.StringType{}
		c.Sp = n.Sp
		return c
	case *ast.BytesType:
		c := &ast.BytesType{}
		c.Sp = n.Sp
		return c
	case *ast.ArrayType:
		c := &ast.ArrayType{Elem: m.cloneType(n.Elem, subst)}
		c.Sp = n.Sp
		return c
	case *ast.MapType:
		c := &ast.MapType{Key: m.cloneType(n.Key, subst), Value: m.cloneType(n.Value, subst)}
		c.Sp = n.Sp
		return c
	case *ast.SetType:
		c := &ast.SetType{Elem: m.cloneType(n.Elem, subst)}
		c.Sp = n.Sp
		return c
	case *ast.NullableType:
		c := &ast.NullableType{Elem: m.cloneType(n.Elem, subst)}
		c.Sp = n.Sp
		return c
	case *ast.ClassRefType:
		if n.TargetID == nil {
			if repl, ok := subst[n.Name]; ok {
				return repl
			}
		}
		c := &ast.ClassRefType{Name: n.Name, TypeArgs: m.cloneTypeSlice(n.TypeArgs, subst), TargetID: cloneID(n.TargetID)}
		c.Sp = n.Sp
		return c
	case *ast.TraitRefType:
		c := &ast.TraitRefType{Name: n.Name, TypeArgs: m.cloneTypeSlice(n.TypeArgs, subst), TargetID: cloneID(n.TargetID)}
		c.Sp = n.Sp
		return c
	case *ast.EnumRefType:
		c := &ast.EnumRefType{Name: n.Name, TypeArgs: m.cloneTypeSlice(n.TypeArgs, subst), TargetID: cloneID(n.TargetID)}
		c.Sp = n.Sp
		return c
	case *ast.FuncType:
		c := &ast.FuncType{Params: m.cloneTypeSlice(n.Params, subst), Return: m.cloneType(n.Return, subst), ErrorSet: append([]string(nil), n.ErrorSet...)}
		c.Sp = n.Sp
		return c
	case *ast.SenderType:
		c := &ast.SenderType{Elem: m.cloneType(n.Elem, subst)}
		c.Sp = n.Sp
		return c
	case *ast.ReceiverType:
		c := &ast.ReceiverType{Elem: m.cloneType(n.Elem, subst)}
		c.Sp = n.Sp
		return c
	case *ast.TaskType:
		c := &ast.TaskType{Result: m.cloneType(n.Result, subst)}
		c.Sp = n.Sp
		return c
	case *ast.StreamType:
		c := &ast.StreamType{Elem: m.cloneType(n.Elem, subst)}
		c.Sp = n.Sp
		return c
	case *ast.TupleType:
		c := &ast.TupleType{Elems: m.cloneTypeSlice(n.Elems, subst)}
		c.Sp = n.Sp
		return c
	case *ast.TypeVar:
		if repl, ok := subst[n.Name]; ok {
			return repl
		}
		c := &ast.TypeVar{Name: n.Name}
		c.Sp = n.Sp
		return c
	case *ast.QualifiedType:
		panic("mono: QualifiedType survived flattening")
	default:
		panic(fmt.Sprintf("mono: unhandled TypeExpr variant %T", t))
	}
}

func (m *monomorphizer) cloneTypeSlice(ts []ast.TypeExpr, subst map[string]ast.TypeExpr) []ast.TypeExpr {
	if ts == nil {
		return nil
	}
	out := make([]ast.TypeExpr, len(ts))
	for i, t := range ts {
		out[i] = m.cloneType(t, subst)
	}
	return out
}

// mangleTypeArgs renders a resolved type-argument tuple as the `base__T1__T2`
// suffix spec.md §4.7 names.
func mangleTypeArgs(args []ast.TypeExpr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = mangleType(a)
	}
	return strings.Join(parts, "__")
}

func mangleType(t ast.TypeExpr) string {
	switch n := t.(type) {
	case *ast.PrimitiveType:
		return n.Kind.String()
	case *ast.StringType:
		return "string"
	case *ast.BytesType:
		return "bytes"
	case *ast.ArrayType:
		return "array_" + mangleType(n.Elem)
	case *ast.MapType:
		return "map_" + mangleType(n.Key) + "_" + mangleType(n.Value)
	case *ast.SetType:
		return "set_" + mangleType(n.Elem)
	case *ast.NullableType:
		return "opt_" + mangleType(n.Elem)
	case *ast.ClassRefType:
		return mangleNamed(n.Name, n.TypeArgs)
	case *ast.TraitRefType:
		return mangleNamed(n.Name, n.TypeArgs)
	case *ast.EnumRefType:
		return mangleNamed(n.Name, n.TypeArgs)
	case *ast.FuncType:
		return "fn"
	case *ast.SenderType:
		return "sender_" + mangleType(n.Elem)
	case *ast.ReceiverType:
		return "receiver_" + mangleType(n.Elem)
	case *ast.TaskType:
		return "task_" + mangleType(n.Result)
	case *ast.StreamType:
		return "stream_" + mangleType(n.Elem)
	case *ast.TupleType:
		parts := make([]string, len(n.Elems))
		for i, e := range n.Elems {
			parts[i] = mangleType(e)
		}
		return "tuple_" + strings.Join(parts, "_")
	case *ast.TypeVar:
		panic("mono: type variable " + n.Name + " reached mangling unresolved")
	default:
		panic(fmt.Sprintf("mono: unhandled TypeExpr variant %T in mangleType", t))
	}
}

func mangleNamed(name string, args []ast.TypeExpr) string {
	if len(args) == 0 {
		return name
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = mangleType(a)
	}
	return name + "_" + strings.Join(parts, "_")
}

// splitMethodTypeArgs separates a method call's combined TypeArgs (class
// args first, then the method's own — typeck/call.go's inferMethodCall) back
// into the two halves, given the owning class's own declared parameter count.
func splitMethodTypeArgs(all []ast.TypeExpr, nClassTPs int) (classArgs, methodArgs []ast.TypeExpr) {
	if nClassTPs > len(all) {
		return all, nil
	}
	return all[:nClassTPs], all[nClassTPs:]
}
