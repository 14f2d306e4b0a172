package typeck

import (
	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/token"
	"github.com/plutolang/pluto/types"
)

func (c *Checker) errorf(sp token.Span, format string, args ...any) {
	c.diags.Addf(diag.TypeError, sp, format, args...)
}

// checkBlock type-checks every statement of b in sc, returning the type of
// the last statement (an empty block has no type; callers that need one
// treat a nil result as "no value").
func (c *Checker) checkBlock(b *ast.BlockExpr, sc *localScope, fc *funcCtx) types.Type {
	if b == nil {
		return nil
	}
	var last types.Type
	for _, stmt := range b.Stmts {
		last = c.infer(stmt, sc, fc)
	}
	return last
}

// infer computes e's checked type, reporting a diag.TypeError and
// returning nil for anything it cannot type (a nil result is treated by
// every caller as "already reported, don't cascade").
func (c *Checker) infer(e ast.Expr, sc *localScope, fc *funcCtx) types.Type {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Ident:
		return c.inferIdent(n, sc)
	case *ast.IntLit:
		return &types.Primitive{Kind: ast.PrimInt}
	case *ast.FloatLit:
		return &types.Primitive{Kind: ast.PrimFloat}
	case *ast.BoolLit:
		return &types.Primitive{Kind: ast.PrimBool}
	case *ast.NoneLit:
		return &types.Nullable{Elem: &types.Var{Name: "_none", ID: -1}}
	case *ast.StringLit:
		return &types.StringT{}
	case *ast.FStringLit:
		for _, seg := range n.Segments {
			if seg.Expr != nil {
				c.infer(seg.Expr, sc, fc)
			}
		}
		return &types.StringT{}
	case *ast.BinaryExpr:
		return c.inferBinary(n, sc, fc)
	case *ast.UnaryExpr:
		return c.inferUnary(n, sc, fc)
	case *ast.CallExpr:
		return c.inferCallLike(n.Sp, n.Callee, n.TypeArgs, n.Args, sc, fc,
			func(id ast.ID) { n.TargetID = &id },
			func(resolved []types.Type) { n.TypeArgs = types.ToTypeExprs(resolved) })
	case *ast.FieldAccess:
		return c.inferFieldAccess(n, sc, fc)
	case *ast.QualifiedAccess:
		c.errorf(n.Sp, "internal: QualifiedAccess reached typeck")
		return nil
	case *ast.IndexExpr:
		return c.inferIndex(n, sc, fc)
	case *ast.StructLit:
		return c.inferStructLit(n, sc, fc)
	case *ast.EnumConstructExpr:
		return c.inferEnumConstruct(n, sc, fc)
	case *ast.AssignExpr:
		return c.inferAssign(n, sc, fc)
	case *ast.IndexAssignExpr:
		return c.inferIndexAssign(n, sc, fc)
	case *ast.LetExpr:
		return c.inferLet(n, sc, fc)
	case *ast.IfExpr:
		return c.inferIf(n, sc, fc)
	case *ast.WhileExpr:
		cond := c.infer(n.Cond, sc, fc)
		c.expectBool(n.Sp, cond)
		c.checkBlock(n.Body, newLocalScope(sc), fc)
		return nil
	case *ast.ForExpr:
		return c.inferFor(n, sc, fc)
	case *ast.MatchExpr:
		return c.inferMatch(n, sc, fc)
	case *ast.Closure:
		return c.inferClosure(n, sc, fc)
	case *ast.ClosureCreate:
		for _, cap := range n.Captures {
			c.infer(cap, sc, fc)
		}
		return nil
	case *ast.SpawnExpr:
		return c.inferSpawn(n, sc, fc)
	case *ast.ScopeExpr:
		return c.checkBlock(n.Body, newLocalScope(sc), fc)
	case *ast.RaiseExpr:
		return c.inferRaise(n, sc, fc)
	case *ast.CatchExpr:
		return c.inferCatch(n, sc, fc)
	case *ast.PropagateExpr:
		return c.infer(n.Subject, sc, fc)
	case *ast.ChanExpr:
		return c.inferChan(n, sc, fc)
	case *ast.SendExpr:
		return c.inferSend(n, sc, fc)
	case *ast.RecvExpr:
		return c.inferRecv(n, sc, fc)
	case *ast.CloseExpr:
		c.infer(n.Target, sc, fc)
		return nil
	case *ast.YieldExpr:
		return c.inferYield(n, sc, fc)
	case *ast.ReturnExpr:
		return c.inferReturn(n, sc, fc)
	case *ast.BlockExpr:
		return c.checkBlock(n, newLocalScope(sc), fc)
	default:
		panic("typeck: unhandled expression variant")
	}
}

func (c *Checker) inferIdent(n *ast.Ident, sc *localScope) types.Type {
	if lv, ok := sc.lookup(n.Name); ok {
		return lv.Type
	}
	if n.TargetID != nil {
		if sch, ok := c.env.funcs[*n.TargetID]; ok {
			return &types.Func{Params: sch.Params, Return: sch.Return}
		}
	}
	c.errorf(n.Sp, "undefined name %q", n.Name)
	return nil
}

func (c *Checker) expectBool(sp token.Span, t types.Type) {
	if t == nil {
		return
	}
	if p, ok := t.(*types.Primitive); !ok || p.Kind != ast.PrimBool {
		c.errorf(sp, "expected bool, got %s", t.String())
	}
}

func isNumeric(t types.Type) bool {
	p, ok := t.(*types.Primitive)
	return ok && (p.Kind == ast.PrimInt || p.Kind == ast.PrimFloat)
}

func (c *Checker) inferBinary(n *ast.BinaryExpr, sc *localScope, fc *funcCtx) types.Type {
	l := c.infer(n.Left, sc, fc)
	r := c.infer(n.Right, sc, fc)
	if l == nil || r == nil {
		return nil
	}
	switch n.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if !isNumeric(l) || !types.Equal(l, r) {
			c.errorf(n.Sp, "arithmetic operator requires matching numeric operands, got %s and %s", l.String(), r.String())
			return nil
		}
		return l
	case ast.OpEq, ast.OpNotEq:
		if !types.Equal(l, r) {
			c.errorf(n.Sp, "cannot compare %s with %s", l.String(), r.String())
		}
		return &types.Primitive{Kind: ast.PrimBool}
	case ast.OpLt, ast.OpLtEq, ast.OpGt, ast.OpGtEq:
		if !isNumeric(l) || !types.Equal(l, r) {
			c.errorf(n.Sp, "ordering operator requires matching numeric operands, got %s and %s", l.String(), r.String())
		}
		return &types.Primitive{Kind: ast.PrimBool}
	case ast.OpAnd, ast.OpOr:
		c.expectBool(n.Sp, l)
		c.expectBool(n.Sp, r)
		return &types.Primitive{Kind: ast.PrimBool}
	default:
		panic("typeck: unhandled binary operator")
	}
}

func (c *Checker) inferUnary(n *ast.UnaryExpr, sc *localScope, fc *funcCtx) types.Type {
	t := c.infer(n.Operand, sc, fc)
	if t == nil {
		return nil
	}
	switch n.Op {
	case ast.OpNeg:
		if !isNumeric(t) {
			c.errorf(n.Sp, "unary - requires a numeric operand, got %s", t.String())
		}
		return t
	case ast.OpNot:
		c.expectBool(n.Sp, t)
		return &types.Primitive{Kind: ast.PrimBool}
	default:
		panic("typeck: unhandled unary operator")
	}
}

func (c *Checker) inferIndex(n *ast.IndexExpr, sc *localScope, fc *funcCtx) types.Type {
	target := c.infer(n.Target, sc, fc)
	idx := c.infer(n.Index, sc, fc)
	if target == nil {
		return nil
	}
	switch t := target.(type) {
	case *types.Array:
		if idx != nil && !isNumeric(idx) {
			c.errorf(n.Sp, "array index must be numeric, got %s", idx.String())
		}
		return t.Elem
	case *types.Map:
		if idx != nil && !types.Equal(idx, t.Key) {
			c.errorf(n.Sp, "map index must be %s, got %s", t.Key.String(), idx.String())
		}
		return t.Value
	default:
		c.errorf(n.Sp, "cannot index %s", target.String())
		return nil
	}
}

func (c *Checker) inferAssign(n *ast.AssignExpr, sc *localScope, fc *funcCtx) types.Type {
	val := c.infer(n.Value, sc, fc)
	target := c.infer(n.Target, sc, fc)
	c.checkMutableAssignTarget(n.Target, sc, fc)
	if target != nil && val != nil && !types.Equal(target, val) {
		c.errorf(n.Sp, "cannot assign %s to %s", val.String(), target.String())
	}
	return nil
}

func (c *Checker) inferIndexAssign(n *ast.IndexAssignExpr, sc *localScope, fc *funcCtx) types.Type {
	target := c.infer(n.Target, sc, fc)
	c.infer(n.Index, sc, fc)
	val := c.infer(n.Value, sc, fc)
	c.checkMutableAssignTarget(n.Target, sc, fc)
	if target == nil {
		return nil
	}
	var elem types.Type
	switch t := target.(type) {
	case *types.Array:
		elem = t.Elem
	case *types.Map:
		elem = t.Value
	default:
		c.errorf(n.Sp, "cannot index-assign into %s", target.String())
		return nil
	}
	if elem != nil && val != nil && !types.Equal(elem, val) {
		c.errorf(n.Sp, "cannot assign %s into element of type %s", val.String(), elem.String())
	}
	return nil
}

func (c *Checker) inferLet(n *ast.LetExpr, sc *localScope, fc *funcCtx) types.Type {
	val := c.infer(n.Value, sc, fc)
	if len(n.Names) == 2 {
		// the `let (tx, rx) = chan<T>(cap)` tuple-binding form (spec.md §3, "Types")
		tup, ok := val.(*types.Tuple)
		if !ok || len(tup.Elems) != 2 {
			if val != nil {
				c.errorf(n.Sp, "expected a (Sender, Receiver) pair, got %s", val.String())
			}
			sc.bind(n.Names[0], nil, n.Mutable)
			sc.bind(n.Names[1], nil, n.Mutable)
			return nil
		}
		sc.bind(n.Names[0], tup.Elems[0], n.Mutable)
		sc.bind(n.Names[1], tup.Elems[1], n.Mutable)
		if n.Type == nil {
			n.Type = types.ToTypeExpr(tup)
		}
		return nil
	}
	declared := val
	if n.Type != nil {
		conv := types.NewConverter(nil)
		declared = conv.From(n.Type)
		if val != nil && !types.Equal(declared, val) {
			c.errorf(n.Sp, "let %s: %s declared type does not match value of type %s", n.Names[0], declared.String(), val.String())
		}
	} else if declared != nil {
		// no source annotation: backfill the inferred type so later passes
		// (closure lifting, monomorphization) that need this binding's
		// concrete type don't have to re-derive it.
		n.Type = types.ToTypeExpr(declared)
	}
	if len(n.Names) == 1 {
		sc.bind(n.Names[0], declared, n.Mutable)
	}
	return nil
}

func (c *Checker) inferIf(n *ast.IfExpr, sc *localScope, fc *funcCtx) types.Type {
	cond := c.infer(n.Cond, sc, fc)
	c.expectBool(n.Sp, cond)
	thenT := c.checkBlock(n.Then, newLocalScope(sc), fc)
	if n.Else == nil {
		return nil
	}
	elseT := c.infer(n.Else, sc, fc)
	if thenT != nil && elseT != nil && !types.Equal(thenT, elseT) {
		// Both branches producing incompatible value types is only an error
		// when the if-expression's result is actually used; the common
		// statement-position case (each branch ending in `return`/`raise`)
		// is not flagged here since Then/Else's static type in that case is
		// irrelevant to the caller.
		return nil
	}
	return thenT
}

func (c *Checker) inferFor(n *ast.ForExpr, sc *localScope, fc *funcCtx) types.Type {
	it := c.infer(n.Iterable, sc, fc)
	inner := newLocalScope(sc)
	if it != nil {
		var elem types.Type
		switch t := it.(type) {
		case *types.Array:
			elem = t.Elem
		case *types.Set:
			elem = t.Elem
		case *types.Receiver:
			elem = t.Elem
		case *types.Stream:
			elem = t.Elem
		default:
			c.errorf(n.Sp, "cannot iterate over %s", it.String())
		}
		if elem != nil {
			inner.bind(n.Binding, elem, false)
			if n.Type == nil {
				n.Type = types.ToTypeExpr(elem)
			}
		}
	}
	c.checkBlock(n.Body, inner, fc)
	return nil
}

func (c *Checker) inferMatch(n *ast.MatchExpr, sc *localScope, fc *funcCtx) types.Type {
	c.infer(n.Subject, sc, fc)
	for i := range n.Arms {
		arm := &n.Arms[i]
		inner := newLocalScope(sc)
		if !arm.Wildcard && arm.Literal != nil {
			c.infer(arm.Literal, inner, fc)
		}
		if arm.EnumName != "" && arm.TargetID != nil {
			if ei := c.env.enums[*arm.TargetID]; ei != nil {
				if vi := ei.Variants[arm.Variant]; vi != nil {
					for j, name := range vi.FieldOrder {
						if j < len(arm.BindNames) {
							inner.bind(arm.BindNames[j], vi.Fields[name], false)
						}
					}
				}
			}
		}
		c.infer(arm.Body, inner, fc)
	}
	return nil
}

func (c *Checker) inferClosure(n *ast.Closure, sc *localScope, fc *funcCtx) types.Type {
	inner := newLocalScope(sc)
	conv := types.NewConverter(nil)
	params := make([]types.Type, len(n.Params))
	for i, p := range n.Params {
		var t types.Type
		if p.Type != nil {
			t = conv.From(p.Type)
		}
		params[i] = t
		inner.bind(p.Name, t, false)
	}
	body := c.infer(n.Body, inner, fc)
	ret := body
	if n.Return != nil {
		ret = conv.From(n.Return)
	} else if ret != nil {
		n.Return = types.ToTypeExpr(ret)
	}
	for i := range n.Params {
		if n.Params[i].Type == nil && params[i] != nil {
			n.Params[i].Type = types.ToTypeExpr(params[i])
		}
	}
	return &types.Func{Params: params, Return: ret}
}

func (c *Checker) inferSpawn(n *ast.SpawnExpr, sc *localScope, fc *funcCtx) types.Type {
	result := c.inferCallLike(n.Sp, n.Callee, nil, n.Args, sc, fc,
		func(id ast.ID) { n.TargetID = &id },
		func(resolved []types.Type) { n.TypeArgs = types.ToTypeExprs(resolved) })
	return &types.Task{Result: result}
}

func (c *Checker) inferRaise(n *ast.RaiseExpr, sc *localScope, fc *funcCtx) types.Type {
	var ei *errorInfo
	if n.TargetID != nil {
		ei = c.env.errs[*n.TargetID]
	}
	for _, field := range n.Args {
		valT := c.infer(field.Value, sc, fc)
		if ei == nil {
			continue
		}
		want, ok := ei.Fields[field.Name]
		if !ok {
			c.errorf(n.Sp, "error %q has no field %q", n.ErrorName, field.Name)
			continue
		}
		if valT != nil && want != nil && !types.Equal(want, valT) {
			c.errorf(n.Sp, "error field %q: expected %s, got %s", field.Name, want.String(), valT.String())
		}
	}
	return nil
}

func (c *Checker) inferCatch(n *ast.CatchExpr, sc *localScope, fc *funcCtx) types.Type {
	subj := c.infer(n.Subject, sc, fc)
	if n.Handler != nil {
		hv := c.infer(n.Handler, sc, fc)
		if subj != nil && hv != nil && !types.Equal(subj, hv) {
			c.errorf(n.Sp, "catch handler produces %s, expected %s to match the guarded expression", hv.String(), subj.String())
		}
	}
	return subj
}

func (c *Checker) inferChan(n *ast.ChanExpr, sc *localScope, fc *funcCtx) types.Type {
	conv := types.NewConverter(nil)
	elem := conv.From(n.Elem)
	if n.Capacity != nil {
		cap := c.infer(n.Capacity, sc, fc)
		if cap != nil && !isNumeric(cap) {
			c.errorf(n.Sp, "channel capacity must be numeric, got %s", cap.String())
		}
	}
	return &types.Tuple{Elems: []types.Type{&types.Sender{Elem: elem}, &types.Receiver{Elem: elem}}}
}

func (c *Checker) inferSend(n *ast.SendExpr, sc *localScope, fc *funcCtx) types.Type {
	target := c.infer(n.Target, sc, fc)
	val := c.infer(n.Value, sc, fc)
	sender, ok := target.(*types.Sender)
	if target != nil && !ok {
		c.errorf(n.Sp, "send target must be a Sender, got %s", target.String())
		return nil
	}
	if ok && val != nil && sender.Elem != nil && !types.Equal(sender.Elem, val) {
		c.errorf(n.Sp, "cannot send %s on Sender<%s>", val.String(), sender.Elem.String())
	}
	if n.Try {
		return &types.Primitive{Kind: ast.PrimBool}
	}
	return nil
}

func (c *Checker) inferRecv(n *ast.RecvExpr, sc *localScope, fc *funcCtx) types.Type {
	target := c.infer(n.Target, sc, fc)
	recv, ok := target.(*types.Receiver)
	if target != nil && !ok {
		c.errorf(n.Sp, "recv target must be a Receiver, got %s", target.String())
		return nil
	}
	if !ok {
		return nil
	}
	if n.Try {
		return &types.Nullable{Elem: recv.Elem}
	}
	return recv.Elem
}

func (c *Checker) inferYield(n *ast.YieldExpr, sc *localScope, fc *funcCtx) types.Type {
	if !fc.IsStream {
		c.errorf(n.Sp, "yield used outside a generator function")
	}
	if n.Value != nil {
		v := c.infer(n.Value, sc, fc)
		if v != nil && fc.Return != nil && !types.Equal(v, fc.Return) {
			c.errorf(n.Sp, "yield produces %s, generator declared Stream<%s>", v.String(), fc.Return.String())
		}
	}
	return nil
}

func (c *Checker) inferReturn(n *ast.ReturnExpr, sc *localScope, fc *funcCtx) types.Type {
	if n.Value == nil {
		if fc.Return != nil {
			c.errorf(n.Sp, "bare return in a function declared to return %s", fc.Return.String())
		}
		return nil
	}
	v := c.infer(n.Value, sc, fc)
	if v != nil && fc.Return != nil && !types.Equal(v, fc.Return) {
		c.errorf(n.Sp, "return value %s does not match declared return type %s", v.String(), fc.Return.String())
	}
	return nil
}
