// Package spawn desugars `spawn f(args...)` (spec.md §4.9): it validates
// spawn arguments, wraps the call into a zero-argument closure capturing
// the evaluated arguments, and inserts a deep-copy call around every
// heap-typed argument so the spawned task observes an isolated copy. It
// runs after transform/di, so a spawn argument that names a DI singleton
// is already known and exempted from the copy.
package spawn

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
)

// sig is the parameter/return shape of a callable declaration, keyed by
// its FuncDecl/MethodSig ID — enough to recover a spawn argument's static
// type for the deep-copy decision without re-deriving typeck's own
// function environment.
type sig struct {
	params   []ast.Param
	ret      ast.TypeExpr
	isMethod bool // true if params[0] is the implicit "self" receiver
}

type desugarer struct {
	diags diag.Bag

	sigs      map[ast.ID]sig
	globalFn  map[ast.ID]bool // prog.Funcs / prog.Externs — callable with no capture
	diManaged map[ast.ID]bool

	lifted []*ast.FuncDecl
	count  int
}

// Desugar rewrites prog in place. Every SpawnExpr ends up with a
// ClosureCreate callee and no arguments of its own; the original callee
// and (possibly deep-copy-wrapped) arguments become the closure's
// Captures.
func Desugar(prog *ast.Program) error {
	d := &desugarer{
		sigs:      map[ast.ID]sig{},
		globalFn:  map[ast.ID]bool{},
		diManaged: map[ast.ID]bool{},
	}
	for _, f := range prog.Funcs {
		d.sigs[f.ID] = sig{params: f.Params, ret: f.Return}
		d.globalFn[f.ID] = true
	}
	for _, e := range prog.Externs {
		d.sigs[e.ID] = sig{params: e.Params, ret: e.Return}
		d.globalFn[e.ID] = true
	}
	for _, c := range prog.Classes {
		if c.DIManaged {
			d.diManaged[c.ID] = true
		}
		for _, m := range c.Methods {
			d.sigs[m.ID] = sig{params: m.Params, ret: m.Return, isMethod: true}
		}
	}
	for _, t := range prog.Traits {
		for _, m := range t.Methods {
			d.sigs[m.ID] = sig{params: m.Params, ret: m.Return, isMethod: true}
		}
	}
	if prog.App != nil && prog.App.Main != nil {
		d.sigs[prog.App.Main.ID] = sig{params: prog.App.Main.Params, ret: prog.App.Main.Return, isMethod: true}
	}
	for _, s := range prog.Stages {
		if s.Main != nil {
			d.sigs[s.Main.ID] = sig{params: s.Main.Params, ret: s.Main.Return, isMethod: true}
		}
	}

	for _, f := range prog.Funcs {
		d.rewriteFunc(f)
	}
	for _, c := range prog.Classes {
		for _, m := range c.Methods {
			d.rewriteFunc(m)
		}
	}
	for _, t := range prog.Traits {
		for i := range t.Methods {
			if t.Methods[i].Default != nil {
				d.rewriteBlock(t.Methods[i].Default)
			}
		}
	}
	if prog.App != nil {
		d.rewriteFunc(prog.App.Main)
	}
	for _, s := range prog.Stages {
		d.rewriteFunc(s.Main)
	}
	for _, ts := range prog.Tests {
		d.rewriteBlock(ts.Body)
	}

	prog.Funcs = append(prog.Funcs, d.lifted...)
	return d.diags.AsError()
}

func (d *desugarer) rewriteFunc(f *ast.FuncDecl) {
	if f == nil || f.Body == nil {
		return
	}
	d.rewriteBlock(f.Body)
}

func (d *desugarer) rewriteBlock(b *ast.BlockExpr) {
	if b == nil {
		return
	}
	for i := range b.Stmts {
		d.rewrite(&b.Stmts[i])
	}
}

// rewrite walks *e in place, recursing into every child position exactly
// as ast.Walk would, except it needs addressable slots (not a read-only
// Visitor) so a found SpawnExpr's own Callee/Args can be replaced.
func (d *desugarer) rewrite(e *ast.Expr) {
	if e == nil || *e == nil {
		return
	}
	switch n := (*e).(type) {
	case *ast.Ident, *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.NoneLit, *ast.StringLit, *ast.QualifiedAccess:
	case *ast.FStringLit:
		for i := range n.Segments {
			if n.Segments[i].Expr != nil {
				d.rewrite(&n.Segments[i].Expr)
			}
		}
	case *ast.BinaryExpr:
		d.rewrite(&n.Left)
		d.rewrite(&n.Right)
	case *ast.UnaryExpr:
		d.rewrite(&n.Operand)
	case *ast.CallExpr:
		d.rewrite(&n.Callee)
		for i := range n.Args {
			d.rewrite(&n.Args[i])
		}
	case *ast.FieldAccess:
		d.rewrite(&n.Target)
	case *ast.IndexExpr:
		d.rewrite(&n.Target)
		d.rewrite(&n.Index)
	case *ast.StructLit:
		for i := range n.Fields {
			d.rewrite(&n.Fields[i].Value)
		}
	case *ast.EnumConstructExpr:
		for i := range n.Args {
			d.rewrite(&n.Args[i])
		}
	case *ast.AssignExpr:
		d.rewrite(&n.Target)
		d.rewrite(&n.Value)
	case *ast.IndexAssignExpr:
		d.rewrite(&n.Target)
		d.rewrite(&n.Index)
		d.rewrite(&n.Value)
	case *ast.LetExpr:
		d.rewrite(&n.Value)
	case *ast.IfExpr:
		d.rewrite(&n.Cond)
		d.rewriteBlock(n.Then)
		d.rewrite(&n.Else)
	case *ast.WhileExpr:
		d.rewrite(&n.Cond)
		d.rewriteBlock(n.Body)
	case *ast.ForExpr:
		d.rewrite(&n.Iterable)
		d.rewriteBlock(n.Body)
	case *ast.MatchExpr:
		d.rewrite(&n.Subject)
		for i := range n.Arms {
			if n.Arms[i].Literal != nil {
				d.rewrite(&n.Arms[i].Literal)
			}
			d.rewrite(&n.Arms[i].Body)
		}
	case *ast.ClosureCreate:
		for i := range n.Captures {
			d.rewrite(&n.Captures[i])
		}
	case *ast.SpawnExpr:
		d.rewrite(&n.Callee)
		for i := range n.Args {
			d.rewrite(&n.Args[i])
		}
		d.desugarSpawn(n)
	case *ast.ScopeExpr:
		// No surface syntax declares scoped-singleton bindings on a
		// ScopeExpr (parser/expr.go's parseScope takes only a body), so
		// there is nothing to thread through as a scoped bracket-dep here;
		// a scope block lowers at codegen as a plain block. Nested spawns
		// inside it still get desugared.
		d.rewriteBlock(n.Body)
	case *ast.RaiseExpr:
		for i := range n.Args {
			d.rewrite(&n.Args[i].Value)
		}
	case *ast.CatchExpr:
		d.rewrite(&n.Subject)
		d.rewrite(&n.Handler)
	case *ast.PropagateExpr:
		d.rewrite(&n.Subject)
	case *ast.ChanExpr:
		d.rewrite(&n.Capacity)
	case *ast.SendExpr:
		d.rewrite(&n.Target)
		d.rewrite(&n.Value)
	case *ast.RecvExpr:
		d.rewrite(&n.Target)
	case *ast.CloseExpr:
		d.rewrite(&n.Target)
	case *ast.YieldExpr:
		d.rewrite(&n.Value)
	case *ast.ReturnExpr:
		d.rewrite(&n.Value)
	case *ast.BlockExpr:
		d.rewriteBlock(n)
	default:
		panic(fmt.Sprintf("spawn: unhandled expression variant %T", n))
	}
}

// desugarSpawn rewrites n in place per spec.md §4.9 steps 1-4.
func (d *desugarer) desugarSpawn(n *ast.SpawnExpr) {
	d.validateArgs(n.Args)

	var captures []ast.Expr
	var params []ast.Param
	var bodyCallee ast.Expr

	switch cal := n.Callee.(type) {
	case *ast.FieldAccess:
		captures = append(captures, cal.Target)
		params = append(params, ast.Param{Name: "__spawn_recv"})
		bodyCallee = &ast.FieldAccess{Target: &ast.Ident{Name: "__spawn_recv"}, Field: cal.Field}
	case *ast.Ident:
		if cal.TargetID != nil && d.globalFn[*cal.TargetID] {
			// A reference to a top-level function or extern is visible
			// from any synthesized function too; no capture needed.
			bodyCallee = cal
		} else {
			captures = append(captures, cal)
			params = append(params, ast.Param{Name: "__spawn_fn"})
			bodyCallee = &ast.Ident{Name: "__spawn_fn"}
		}
	default:
		captures = append(captures, n.Callee)
		params = append(params, ast.Param{Name: "__spawn_fn"})
		bodyCallee = &ast.Ident{Name: "__spawn_fn"}
	}

	s, hasSig := d.sigs[derefID(n.TargetID)]

	var argIdents []ast.Expr
	for i, arg := range n.Args {
		name := fmt.Sprintf("__spawn_arg%d", i)
		var paramType ast.TypeExpr
		if hasSig {
			idx := i
			if s.isMethod {
				idx++
			}
			if idx < len(s.params) {
				paramType = s.params[idx].Type
			}
		}

		capExpr := arg
		if needsDeepCopy(paramType, d.diManaged) {
			capExpr = &ast.CallExpr{
				Callee: &ast.Ident{Name: "__pluto_deep_copy"},
				Args:   []ast.Expr{arg, &ast.StringLit{Value: typeTag(paramType)}},
			}
		}
		captures = append(captures, capExpr)
		params = append(params, ast.Param{Name: name, Type: paramType})
		argIdents = append(argIdents, &ast.Ident{Name: name})
	}

	d.count++
	fnName := fmt.Sprintf("__spawn_%d", d.count)

	call := &ast.CallExpr{Callee: bodyCallee, Args: argIdents}
	if n.TargetID != nil {
		id := *n.TargetID
		call.TargetID = &id
	}
	ret := &ast.ReturnExpr{Value: call}

	body := &ast.BlockExpr{Stmts: []ast.Expr{ret}}
	body.Sp = n.Sp
	fd := &ast.FuncDecl{
		ID:     ast.NewID(),
		Name:   fnName,
		Params: params,
		Body:   body,
	}
	if hasSig {
		fd.Return = s.ret
	}
	fd.Sp = n.Sp
	d.lifted = append(d.lifted, fd)

	fnID := fd.ID
	n.Callee = &ast.ClosureCreate{FnName: fnName, TargetID: &fnID, Captures: captures}
	n.Args = nil
}

// validateArgs rejects a `!` anywhere inside a spawn argument (spec.md
// §4.9 step 1): the caller must evaluate fallible sub-expressions before
// spawn, since spawn opacity makes propagating an error across it unsound.
// A bare unhandled fallible call is already rejected program-wide by
// effects.Infer, so this only needs to additionally forbid `!` itself.
func (d *desugarer) validateArgs(args []ast.Expr) {
	check := func(e ast.Expr) bool {
		if _, ok := e.(*ast.PropagateExpr); ok {
			d.diags.Addf(diag.EffectError, e.Span(),
				"spawn arguments may not use the `!` propagation operator; evaluate fallible sub-expressions before spawn")
		}
		return true
	}
	v := ast.VisitorFunc(check)
	for _, a := range args {
		ast.Walk(v, a)
	}
}

func derefID(id *ast.ID) ast.ID {
	if id == nil {
		return ast.ZeroID
	}
	return *id
}

// needsDeepCopy reports whether a value of type t must be deep-copied when
// crossing a spawn boundary (spec.md §4.9 step 4): primitives are copied
// by value trivially and strings are shared by reference, so neither
// needs it; task and channel handles are deliberately excluded too (the
// spec makes deep-copying one a runtime error, so this pass never
// synthesizes that call for them). A DI-managed class reference is
// exempted so the singleton the DI-wiring lock-wrapping protects stays the
// same shared instance inside the spawned task.
func needsDeepCopy(t ast.TypeExpr, diManaged map[ast.ID]bool) bool {
	switch tt := t.(type) {
	case nil:
		return false
	case *ast.NullableType:
		return needsDeepCopy(tt.Elem, diManaged)
	case *ast.ClassRefType:
		if tt.TargetID != nil && diManaged[*tt.TargetID] {
			return false
		}
		return true
	case *ast.ArrayType, *ast.MapType, *ast.SetType, *ast.EnumRefType:
		return true
	default:
		return false
	}
}

// typeTag names the runtime type tag threaded through as __pluto_deep_copy's
// second argument. A placeholder ahead of codegen's own type-id table:
// codegen/ir is expected to resolve this name to a concrete numeric type id
// during its own registration pass, the same way RaiseExpr.ErrorName and
// EnumConstructExpr.EnumName are resolved by name elsewhere in this
// pipeline rather than carrying a pre-resolved identity.
func typeTag(t ast.TypeExpr) string {
	switch tt := t.(type) {
	case *ast.ClassRefType:
		return "class:" + tt.Name
	case *ast.EnumRefType:
		return "enum:" + tt.Name
	case *ast.ArrayType:
		return "array"
	case *ast.MapType:
		return "map"
	case *ast.SetType:
		return "set"
	case *ast.NullableType:
		return typeTag(tt.Elem)
	default:
		return "unknown"
	}
}
