package typeck

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/token"
	"github.com/plutolang/pluto/types"
)

// inferCallLike checks a call-shaped expression — CallExpr or the implicit
// call inside SpawnExpr — against whichever scheme its callee resolves to.
// record, when non-nil, is invoked with the resolved target declaration ID
// once a method call dispatches to a concrete method or trait default; xref
// never resolves a FieldAccess callee's TargetID itself (method dispatch is
// left to this package's trait resolution), so this is the one place that
// call-graph edge becomes visible on the AST for effect inference to read
// back later.
func (c *Checker) inferCallLike(sp token.Span, callee ast.Expr, typeArgs []ast.TypeExpr, args []ast.Expr, sc *localScope, fc *funcCtx, record func(ast.ID), typeArgsOut func([]types.Type)) types.Type {
	switch cal := callee.(type) {
	case *ast.FieldAccess:
		return c.inferMethodCall(sp, cal, typeArgs, args, sc, fc, record, typeArgsOut)
	case *ast.Ident:
		if lv, ok := sc.lookup(cal.Name); ok {
			return c.checkCallAgainstFunc(sp, lv.Type, args, sc, fc)
		}
		if cal.TargetID != nil {
			if sch, ok := c.env.funcs[*cal.TargetID]; ok {
				t, resolved := c.checkCallAgainstScheme(sp, sch, typeArgs, args, sc, fc)
				if typeArgsOut != nil && len(resolved) > 0 {
					typeArgsOut(resolved)
				}
				return t
			}
		}
		c.errorf(sp, "call to undefined function %q", cal.Name)
		return nil
	default:
		t := c.infer(callee, sc, fc)
		return c.checkCallAgainstFunc(sp, t, args, sc, fc)
	}
}

// inferMethodCall handles `target.method(args...)`: it infers the
// receiver's type, requires a ClassRef, looks the method up (own methods
// first, then trait defaults), and substitutes the receiver's concrete
// type arguments into the class-level portion of the method's combined
// scheme before unifying the remaining, method-own type parameters
// against the call's arguments.
func (c *Checker) inferMethodCall(sp token.Span, fa *ast.FieldAccess, typeArgs []ast.TypeExpr, args []ast.Expr, sc *localScope, fc *funcCtx, record func(ast.ID), typeArgsOut func([]types.Type)) types.Type {
	recv := c.infer(fa.Target, sc, fc)
	if recv == nil {
		return nil
	}
	if task, ok := recv.(*types.Task); ok {
		return c.checkTaskMethod(sp, task, fa.Field, args, sc, fc)
	}
	cr, ok := recv.(*types.ClassRef)
	if !ok {
		c.errorf(sp, "cannot call method %q on %s", fa.Field, recv.String())
		return nil
	}
	ci := c.env.classes[cr.ID]
	if ci == nil {
		c.errorf(sp, "unknown class in method call %q", fa.Field)
		return nil
	}
	sch, targetID := c.lookupMethodID(ci, fa.Field, sp)
	if sch == nil {
		return nil
	}
	if record != nil && targetID != nil {
		record(*targetID)
	}
	if len(sch.Mutable) > 0 && sch.Mutable[0] && !c.isMutableReceiver(fa.Target, sc, fc) {
		c.errorf(sp, "cannot call mut-self method %q through an immutable receiver", fa.Field)
	}

	// The receiver's class-level type parameters occupy the low end of
	// sch.TypeParamIDs (see classInfo/funcScheme in env.go): substitute
	// them with the receiver's concrete TypeArgs, then hand the remaining,
	// method-own type parameters to checkCallAgainstScheme for per-call
	// inference.
	subst := map[int]types.Type{}
	nClassTPs := len(ci.TypeParams)
	for i := 0; i < nClassTPs && i < len(cr.TypeArgs); i++ {
		subst[sch.TypeParamIDs[i]] = cr.TypeArgs[i]
	}
	remaining := &scheme{
		Return:  types.Substitute(sch.Return, subst),
		Mutable: sch.Mutable,
	}
	for _, p := range sch.Params {
		remaining.Params = append(remaining.Params, types.Substitute(p, subst))
	}
	if nClassTPs < len(sch.TypeParamNames) {
		remaining.TypeParamNames = sch.TypeParamNames[nClassTPs:]
		remaining.TypeParamIDs = sch.TypeParamIDs[nClassTPs:]
	}
	// skip the self slot: Params[0]/Mutable[0] describe the receiver itself.
	if len(remaining.Params) > 0 {
		remaining.Params = remaining.Params[1:]
	}
	t, resolved := c.checkCallAgainstScheme(sp, remaining, typeArgs, args, sc, fc)
	// typeArgsOut carries the receiver's class-level type arguments ahead of
	// the method's own, in that order — transform/mono's one way to learn
	// which class specialization a method call targets, since the call's
	// TargetID alone only names the method within the *original* generic
	// class template (spec.md §4.7).
	if typeArgsOut != nil && (len(cr.TypeArgs) > 0 || len(resolved) > 0) {
		combined := make([]types.Type, 0, len(cr.TypeArgs)+len(resolved))
		combined = append(combined, cr.TypeArgs...)
		combined = append(combined, resolved...)
		typeArgsOut(combined)
	}
	return t
}

// checkTaskMethod handles the two builtin Task<T> methods (spec.md §4.5,
// §4.13): get() blocks for the spawned call's result and cancel() sets a
// cooperative cancellation flag. Neither resolves to a TargetID — effect
// inference's conservative fallibility rule (spec.md §4.5) is exactly what
// get()'s "may raise anything the spawned function could, plus
// TaskCancelled" semantics needs, since this pass has no static link back to
// the function a given task was spawned from.
func (c *Checker) checkTaskMethod(sp token.Span, task *types.Task, field string, args []ast.Expr, sc *localScope, fc *funcCtx) types.Type {
	for _, a := range args {
		c.infer(a, sc, fc)
	}
	switch field {
	case "get":
		if len(args) != 0 {
			c.errorf(sp, "Task.get takes no arguments")
		}
		return task.Result
	case "cancel":
		if len(args) != 0 {
			c.errorf(sp, "Task.cancel takes no arguments")
		}
		return nil
	default:
		c.errorf(sp, "Task has no method %q", field)
		return nil
	}
}

// lookupMethod resolves name against ci's own methods, falling back to a
// trait default body if exactly one implemented trait supplies one
// (spec.md §4.4, "ambiguous trait method").
func (c *Checker) lookupMethod(ci *classInfo, name string, sp token.Span) *scheme {
	sch, _ := c.lookupMethodID(ci, name, sp)
	return sch
}

// lookupMethodID is lookupMethod plus the resolved call-graph target: the
// method's own FuncDecl.ID, or the dispatching trait default's MethodSig.ID.
func (c *Checker) lookupMethodID(ci *classInfo, name string, sp token.Span) (*scheme, *ast.ID) {
	if sch, ok := ci.Methods[name]; ok {
		id := ci.MethodIDs[name]
		return sch, &id
	}
	var found *scheme
	var foundID *ast.ID
	var foundTrait string
	for _, traitID := range ci.Implements {
		ti := c.env.traits[traitID]
		if ti == nil {
			continue
		}
		sch, ok := ti.Methods[name]
		if !ok || !hasDefault(ti.Decl, name) {
			continue
		}
		if found != nil {
			c.errorf(sp, "method %q is ambiguous between traits %q and %q", name, foundTrait, ti.Decl.Name)
			return nil, nil
		}
		found, foundTrait = sch, ti.Decl.Name
		if sig, ok := ti.Sigs[name]; ok {
			id := sig.ID
			foundID = &id
		}
	}
	if found == nil {
		c.errorf(sp, "class %q has no method %q", ci.Decl.Name, name)
	}
	return found, foundID
}

// checkCallAgainstFunc checks a call whose callee is an arbitrary
// expression (a local closure variable, or any other value) already known
// to have checked type t, which must be a structural *types.Func.
func (c *Checker) checkCallAgainstFunc(sp token.Span, t types.Type, args []ast.Expr, sc *localScope, fc *funcCtx) types.Type {
	if t == nil {
		return nil
	}
	fn, ok := t.(*types.Func)
	if !ok {
		c.errorf(sp, "cannot call non-function value of type %s", t.String())
		return nil
	}
	if len(args) != len(fn.Params) {
		c.errorf(sp, "call has %d arguments, expected %d", len(args), len(fn.Params))
	}
	n := len(args)
	if len(fn.Params) < n {
		n = len(fn.Params)
	}
	for i := 0; i < n; i++ {
		argT := c.infer(args[i], sc, fc)
		if argT != nil && fn.Params[i] != nil && !types.Equal(argT, fn.Params[i]) {
			c.errorf(sp, "argument %d: expected %s, got %s", i+1, fn.Params[i].String(), argT.String())
		}
	}
	return fn.Return
}

// checkCallAgainstScheme checks a call against sch, a possibly-generic
// callable signature. Explicit type arguments bind sch's own type
// parameters directly; otherwise each parameter is unified against its
// argument's inferred type to infer them (spec.md §4.4, "Unification").
// The second return value is sch's type arguments in TypeParamIDs order,
// resolved whether they came from explicit syntax or unification — the
// concrete instantiation transform/mono needs to pick (or synthesize) this
// call site's specialized target. It is nil when sch has no type
// parameters.
func (c *Checker) checkCallAgainstScheme(sp token.Span, sch *scheme, explicitTypeArgs []ast.TypeExpr, args []ast.Expr, sc *localScope, fc *funcCtx) (types.Type, []types.Type) {
	subst := map[int]types.Type{}

	if len(explicitTypeArgs) > 0 {
		if len(explicitTypeArgs) != len(sch.TypeParamIDs) {
			c.errorf(sp, "call has %d explicit type arguments, expected %d", len(explicitTypeArgs), len(sch.TypeParamIDs))
		} else {
			conv := types.NewConverter(nil)
			for i, ta := range explicitTypeArgs {
				subst[sch.TypeParamIDs[i]] = conv.From(ta)
			}
		}
	}

	if len(args) != len(sch.Params) {
		c.errorf(sp, "call has %d arguments, expected %d", len(args), len(sch.Params))
	}
	n := len(args)
	if len(sch.Params) < n {
		n = len(sch.Params)
	}
	argTypes := make([]types.Type, n)
	for i := 0; i < n; i++ {
		argTypes[i] = c.infer(args[i], sc, fc)
	}
	for i := 0; i < n; i++ {
		pattern := sch.Params[i]
		if pattern == nil || argTypes[i] == nil {
			continue
		}
		if !unifyInto(pattern, argTypes[i], subst) {
			c.errorf(sp, "argument %d: cannot unify %s with %s", i+1, pattern.String(), argTypes[i].String())
		}
	}
	var resolved []types.Type
	for _, id := range sch.TypeParamIDs {
		t, ok := subst[id]
		if !ok {
			c.errorf(sp, "cannot infer type argument for call")
			break
		}
		resolved = append(resolved, t)
	}
	return types.Substitute(sch.Return, subst), resolved
}

func (c *Checker) inferFieldAccess(n *ast.FieldAccess, sc *localScope, fc *funcCtx) types.Type {
	recv := c.infer(n.Target, sc, fc)
	if recv == nil {
		return nil
	}
	if task, ok := recv.(*types.Task); ok {
		switch n.Field {
		case "get":
			return &types.Func{Return: task.Result}
		case "cancel":
			return &types.Func{}
		}
		c.errorf(n.Sp, "Task has no method %q", n.Field)
		return nil
	}
	cr, ok := recv.(*types.ClassRef)
	if !ok {
		c.errorf(n.Sp, "cannot access field %q on %s", n.Field, recv.String())
		return nil
	}
	ci := c.env.classes[cr.ID]
	if ci == nil {
		return nil
	}
	if t, ok := ci.Fields[n.Field]; ok {
		subst := map[int]types.Type{}
		for i := 0; i < len(ci.TypeParams) && i < len(cr.TypeArgs); i++ {
			subst[i] = cr.TypeArgs[i]
		}
		return types.Substitute(t, subst)
	}
	if sch := c.lookupMethod(ci, n.Field, n.Sp); sch != nil {
		params := sch.Params
		if len(params) > 0 {
			params = params[1:]
		}
		return &types.Func{Params: params, Return: sch.Return}
	}
	c.errorf(n.Sp, "class %q has no field or method %q", ci.Decl.Name, n.Field)
	return nil
}

func (c *Checker) inferStructLit(n *ast.StructLit, sc *localScope, fc *funcCtx) types.Type {
	if n.TargetID == nil {
		c.errorf(n.Sp, "unresolved class %q in struct literal", n.ClassName)
		return nil
	}
	ci := c.env.classes[*n.TargetID]
	if ci == nil {
		return nil
	}
	conv := types.NewConverter(nil)
	targs := make([]types.Type, len(ci.TypeParams))
	for i, ta := range n.TypeArgs {
		if i < len(targs) {
			targs[i] = conv.From(ta)
		}
	}
	subst := map[int]types.Type{}
	for i := range targs {
		if targs[i] != nil {
			subst[i] = targs[i]
		}
	}
	for _, f := range n.Fields {
		valT := c.infer(f.Value, sc, fc)
		declT, ok := ci.Fields[f.Name]
		if !ok {
			c.errorf(n.Sp, "class %q has no field %q", ci.Decl.Name, f.Name)
			continue
		}
		want := types.Substitute(declT, subst)
		if valT != nil && !types.Equal(want, valT) {
			// a bare type parameter with no explicit/substituted binding
			// still unifies against the field value, inferring it.
			if !unifyInto(want, valT, subst) {
				c.errorf(n.Sp, "field %q: expected %s, got %s", f.Name, want.String(), valT.String())
			}
		}
	}
	for i := range targs {
		if t, ok := subst[i]; ok {
			targs[i] = t
		}
	}
	if len(targs) > 0 {
		n.TypeArgs = types.ToTypeExprs(targs)
	}
	return &types.ClassRef{ID: ci.Decl.ID, Name: ci.Decl.Name, TypeArgs: targs}
}

func (c *Checker) inferEnumConstruct(n *ast.EnumConstructExpr, sc *localScope, fc *funcCtx) types.Type {
	if n.TargetID == nil {
		c.errorf(n.Sp, "unresolved enum %q in constructor", n.EnumName)
		return nil
	}
	ei := c.env.enums[*n.TargetID]
	if ei == nil {
		return nil
	}
	vi, ok := ei.Variants[n.Variant]
	if !ok {
		c.errorf(n.Sp, "enum %q has no variant %q", n.EnumName, n.Variant)
		return nil
	}
	conv := types.NewConverter(nil)
	targs := make([]types.Type, len(ei.TypeParams))
	for i, ta := range n.TypeArgs {
		if i < len(targs) {
			targs[i] = conv.From(ta)
		}
	}
	subst := map[int]types.Type{}
	for i := range targs {
		if targs[i] != nil {
			subst[i] = targs[i]
		}
	}
	if len(n.Args) != len(vi.FieldOrder) {
		c.errorf(n.Sp, "variant %q.%q takes %d arguments, got %d", n.EnumName, n.Variant, len(vi.FieldOrder), len(n.Args))
	}
	m := len(n.Args)
	if len(vi.FieldOrder) < m {
		m = len(vi.FieldOrder)
	}
	for i := 0; i < m; i++ {
		argT := c.infer(n.Args[i], sc, fc)
		want := types.Substitute(vi.Fields[vi.FieldOrder[i]], subst)
		if argT != nil {
			if !unifyInto(want, argT, subst) {
				c.errorf(n.Sp, "variant field %d: expected %s, got %s", i+1, want.String(), argT.String())
			}
		}
	}
	for i := range targs {
		if t, ok := subst[i]; ok {
			targs[i] = t
		}
	}
	if len(targs) > 0 {
		n.TypeArgs = types.ToTypeExprs(targs)
	}
	return &types.EnumRef{ID: ei.Decl.ID, Name: ei.Decl.Name, TypeArgs: targs}
}

// checkMutableAssignTarget enforces spec.md §4.4's mutability rule: an
// assignment or index-assignment whose target roots at `self` requires the
// enclosing method to have been declared `mut self`; one rooted at any
// other local requires that local to have been bound `let mut`.
func (c *Checker) checkMutableAssignTarget(target ast.Expr, sc *localScope, fc *funcCtx) {
	switch t := target.(type) {
	case *ast.Ident:
		if lv, ok := sc.lookup(t.Name); ok && !lv.Mutable {
			c.errorf(t.Sp, "cannot assign to immutable binding %q", t.Name)
		}
	case *ast.FieldAccess:
		root := rootIdent(t.Target)
		if root != nil && root.Name == "self" {
			if !fc.SelfMut {
				c.errorf(t.Sp, "cannot assign to self.%s in a method not declared `mut self`", t.Field)
			}
			return
		}
		c.checkMutableAssignTarget(t.Target, sc, fc)
	case *ast.IndexExpr:
		c.checkMutableAssignTarget(t.Target, sc, fc)
	}
}

// isMutableReceiver reports whether target is a valid receiver for a
// mut-self method call: `self` inside a method itself declared `mut self`,
// a `let mut`-bound local, or a field/index path rooted at either.
func (c *Checker) isMutableReceiver(target ast.Expr, sc *localScope, fc *funcCtx) bool {
	root := rootIdent(target)
	if root == nil {
		return false
	}
	if root.Name == "self" {
		return fc.SelfMut
	}
	lv, ok := sc.lookup(root.Name)
	return ok && lv.Mutable
}

func rootIdent(e ast.Expr) *ast.Ident {
	switch t := e.(type) {
	case *ast.Ident:
		return t
	case *ast.FieldAccess:
		return rootIdent(t.Target)
	case *ast.IndexExpr:
		return rootIdent(t.Target)
	default:
		return nil
	}
}

// checkContract validates a requires/invariant clause is within the
// decidable fragment (spec.md §4.4: field access, comparisons, arithmetic,
// logical operators, literals, and `.len()`) and that it type-checks to
// bool.
func (c *Checker) checkContract(ct ast.Contract, sc *localScope, fc *funcCtx) {
	if !isDecidableExpr(ct.Expr) {
		c.errorf(ct.Sp, "contract %q uses an expression form outside the decidable fragment", ct.Name)
		return
	}
	t := c.infer(ct.Expr, sc, fc)
	c.expectBool(ct.Sp, t)
}

func isDecidableExpr(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.Ident, *ast.StringLit:
		return true
	case *ast.BinaryExpr:
		return isDecidableExpr(n.Left) && isDecidableExpr(n.Right)
	case *ast.UnaryExpr:
		return isDecidableExpr(n.Operand)
	case *ast.FieldAccess:
		return isDecidableExpr(n.Target)
	case *ast.CallExpr:
		fa, ok := n.Callee.(*ast.FieldAccess)
		if !ok || fa.Field != "len" || len(n.Args) != 0 {
			return false
		}
		return isDecidableExpr(fa.Target)
	default:
		return false
	}
}
