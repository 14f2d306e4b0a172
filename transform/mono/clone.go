package mono

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
)

// cloneBlock clones a function/method body, substituting subst into every
// type slot and resolving every generic call/construction site it contains.
// subst is nil when cloning a non-generic declaration's own body (the common
// top-level case); it carries the enclosing specialization's type-parameter
// bindings when cloning the body of a specializeFunc/specializeClass/
// specializeEnum call.
func (m *monomorphizer) cloneBlock(b *ast.BlockExpr, subst map[string]ast.TypeExpr) *ast.BlockExpr {
	if b == nil {
		return nil
	}
	out := &ast.BlockExpr{Stmts: make([]ast.Expr, len(b.Stmts))}
	out.Sp = b.Sp
	for i, s := range b.Stmts {
		out.Stmts[i] = m.cloneExpr(s, subst)
	}
	return out
}

// cloneExpr deep-copies e, substituting type-parameter references via subst
// and triggering specialization at every generic call/construction site
// encountered (spec.md §4.7). Exhaustive over every ast.Expr variant, keyed
// to the same case list as ast/expr.go's own `var (_ Expr = ...)` block.
func (m *monomorphizer) cloneExpr(e ast.Expr, subst map[string]ast.TypeExpr) ast.Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Ident:
		c := &ast.Ident{Name: n.Name}
		c.Sp = n.Sp
		c.TargetID = cloneID(n.TargetID)
		return c
	case *ast.IntLit:
		c := &ast.IntLit{Value: n.Value}
		c.Sp = n.Sp
		return c
	case *ast.FloatLit:
		c := &ast.FloatLit{Value: n.Value}
		c.Sp = n.Sp
		return c
	case *ast.BoolLit:
		c := &ast.BoolLit{Value: n.Value}
		c.Sp = n.Sp
		return c
	case *ast.NoneLit:
		c := &ast.NoneLit{}
		c.Sp = n.Sp
		return c
	case *ast.StringLit:
		c := &ast.StringLit{Value: n.Value}
		c.Sp = n.Sp
		return c
	case *ast.FStringLit:
		segs := make([]ast.FStringSegment, len(n.Segments))
		for i, s := range n.Segments {
			segs[i] = ast.FStringSegment{Text: s.Text, Expr: m.cloneExpr(s.Expr, subst)}
		}
		c := &ast.FStringLit{Segments: segs}
		c.Sp = n.Sp
		return c
	case *ast.BinaryExpr:
		c := &ast.BinaryExpr{Op: n.Op, Left: m.cloneExpr(n.Left, subst), Right: m.cloneExpr(n.Right, subst)}
		c.Sp = n.Sp
		return c
	case *ast.UnaryExpr:
		c := &ast.UnaryExpr{Op: n.Op, Operand: m.cloneExpr(n.Operand, subst)}
		c.Sp = n.Sp
		return c
	case *ast.CallExpr:
		return m.cloneCall(n, subst)
	case *ast.FieldAccess:
		c := &ast.FieldAccess{Target: m.cloneExpr(n.Target, subst), Field: n.Field}
		c.Sp = n.Sp
		return c
	case *ast.QualifiedAccess:
		panic("mono: QualifiedAccess survived flattening")
	case *ast.IndexExpr:
		c := &ast.IndexExpr{Target: m.cloneExpr(n.Target, subst), Index: m.cloneExpr(n.Index, subst)}
		c.Sp = n.Sp
		return c
	case *ast.StructLit:
		return m.cloneStructLit(n, subst)
	case *ast.EnumConstructExpr:
		return m.cloneEnumConstruct(n, subst)
	case *ast.AssignExpr:
		c := &ast.AssignExpr{Target: m.cloneExpr(n.Target, subst), Value: m.cloneExpr(n.Value, subst)}
		c.Sp = n.Sp
		return c
	case *ast.IndexAssignExpr:
		c := &ast.IndexAssignExpr{Target: m.cloneExpr(n.Target, subst), Index: m.cloneExpr(n.Index, subst), Value: m.cloneExpr(n.Value, subst)}
		c.Sp = n.Sp
		return c
	case *ast.LetExpr:
		c := &ast.LetExpr{
			Names:   append([]string(nil), n.Names...),
			Type:    m.cloneType(n.Type, subst),
			Mutable: n.Mutable,
			Value:   m.cloneExpr(n.Value, subst),
		}
		c.Sp = n.Sp
		return c
	case *ast.IfExpr:
		c := &ast.IfExpr{Cond: m.cloneExpr(n.Cond, subst), Then: m.cloneBlock(n.Then, subst), Else: m.cloneExpr(n.Else, subst)}
		c.Sp = n.Sp
		return c
	case *ast.WhileExpr:
		c := &ast.WhileExpr{Cond: m.cloneExpr(n.Cond, subst), Body: m.cloneBlock(n.Body, subst)}
		c.Sp = n.Sp
		return c
	case *ast.ForExpr:
		c := &ast.ForExpr{
			Binding:  n.Binding,
			Type:     m.cloneType(n.Type, subst),
			Iterable: m.cloneExpr(n.Iterable, subst),
			Body:     m.cloneBlock(n.Body, subst),
		}
		c.Sp = n.Sp
		return c
	case *ast.MatchExpr:
		arms := make([]ast.MatchArm, len(n.Arms))
		for i, a := range n.Arms {
			// TargetID keeps pointing at the original (possibly still
			// generic) enum declaration: a variant's field layout and
			// discriminant order are identical across every specialization
			// of the same enum, so resolving against the template is safe
			// and lets every arm share one TargetID regardless of which
			// concrete instantiation the match subject actually has.
			na := ast.MatchArm{
				Wildcard:  a.Wildcard,
				Literal:   m.cloneExpr(a.Literal, subst),
				EnumName:  a.EnumName,
				Variant:   a.Variant,
				BindNames: append([]string(nil), a.BindNames...),
				Body:      m.cloneExpr(a.Body, subst),
			}
			na.Sp = a.Sp
			na.TargetID = cloneID(a.TargetID)
			arms[i] = na
		}
		c := &ast.MatchExpr{Subject: m.cloneExpr(n.Subject, subst), Arms: arms}
		c.Sp = n.Sp
		return c
	case *ast.Closure:
		params := make([]ast.ClosureParam, len(n.Params))
		for i, p := range n.Params {
			params[i] = ast.ClosureParam{Name: p.Name, Type: m.cloneType(p.Type, subst)}
		}
		c := &ast.Closure{Params: params, Return: m.cloneType(n.Return, subst), Body: m.cloneExpr(n.Body, subst)}
		c.Sp = n.Sp
		return c
	case *ast.ClosureCreate:
		caps := make([]ast.Expr, len(n.Captures))
		for i, cap := range n.Captures {
			caps[i] = m.cloneExpr(cap, subst)
		}
		c := &ast.ClosureCreate{FnName: n.FnName, TargetID: cloneID(n.TargetID), Captures: caps}
		c.Sp = n.Sp
		return c
	case *ast.SpawnExpr:
		return m.cloneSpawn(n, subst)
	case *ast.ScopeExpr:
		c := &ast.ScopeExpr{Body: m.cloneBlock(n.Body, subst)}
		c.Sp = n.Sp
		return c
	case *ast.RaiseExpr:
		fields := make([]ast.StructField, len(n.Args))
		for i, f := range n.Args {
			fields[i] = ast.StructField{Name: f.Name, Value: m.cloneExpr(f.Value, subst)}
		}
		c := &ast.RaiseExpr{ErrorName: n.ErrorName, Args: fields}
		c.Sp = n.Sp
		c.TargetID = cloneID(n.TargetID)
		return c
	case *ast.CatchExpr:
		c := &ast.CatchExpr{
			Subject:   m.cloneExpr(n.Subject, subst),
			Wildcard:  n.Wildcard,
			ErrorName: n.ErrorName,
			Handler:   m.cloneExpr(n.Handler, subst),
		}
		c.Sp = n.Sp
		c.TargetID = cloneID(n.TargetID)
		return c
	case *ast.PropagateExpr:
		c := &ast.PropagateExpr{Subject: m.cloneExpr(n.Subject, subst)}
		c.Sp = n.Sp
		return c
	case *ast.ChanExpr:
		c := &ast.ChanExpr{Elem: m.cloneType(n.Elem, subst), Capacity: m.cloneExpr(n.Capacity, subst)}
		c.Sp = n.Sp
		return c
	case *ast.SendExpr:
		c := &ast.SendExpr{Target: m.cloneExpr(n.Target, subst), Value: m.cloneExpr(n.Value, subst), Try: n.Try}
		c.Sp = n.Sp
		return c
	case *ast.RecvExpr:
		c := &ast.RecvExpr{Target: m.cloneExpr(n.Target, subst), Try: n.Try}
		c.Sp = n.Sp
		return c
	case *ast.CloseExpr:
		c := &ast.CloseExpr{Target: m.cloneExpr(n.Target, subst)}
		c.Sp = n.Sp
		return c
	case *ast.YieldExpr:
		c := &ast.YieldExpr{Value: m.cloneExpr(n.Value, subst)}
		c.Sp = n.Sp
		return c
	case *ast.ReturnExpr:
		c := &ast.ReturnExpr{Value: m.cloneExpr(n.Value, subst)}
		c.Sp = n.Sp
		return c
	case *ast.BlockExpr:
		return m.cloneBlock(n, subst)
	default:
		panic(fmt.Sprintf("mono: unhandled Expr variant %T", e))
	}
}

func (m *monomorphizer) cloneCall(n *ast.CallExpr, subst map[string]ast.TypeExpr) ast.Expr {
	callee := m.cloneExpr(n.Callee, subst)
	args := make([]ast.Expr, len(n.Args))
	for i, a := range n.Args {
		args[i] = m.cloneExpr(a, subst)
	}
	typeArgs := m.cloneTypeSlice(n.TypeArgs, subst)
	targetID := cloneID(n.TargetID)

	if targetID != nil {
		if fd, ok := m.genericFuncs[*targetID]; ok {
			spec := m.specializeFunc(fd, typeArgs)
			id := spec.ID
			targetID = &id
			if ident, ok := callee.(*ast.Ident); ok {
				ident.Name = spec.Name
			}
			typeArgs = nil
		} else if mo, ok := m.methodOwner[*targetID]; ok && len(mo.class.TypeParams) > 0 {
			classArgs, methodArgs := splitMethodTypeArgs(typeArgs, len(mo.class.TypeParams))
			specClass := m.specializeClass(mo.class, classArgs)
			specMethod := specClass.Methods[mo.index]
			id := specMethod.ID
			targetID = &id
			typeArgs = methodArgs
		}
	}

	out := &ast.CallExpr{Callee: callee, TypeArgs: typeArgs, Args: args}
	out.Sp = n.Sp
	out.TargetID = targetID
	return out
}

func (m *monomorphizer) cloneStructLit(n *ast.StructLit, subst map[string]ast.TypeExpr) ast.Expr {
	fields := make([]ast.StructField, len(n.Fields))
	for i, f := range n.Fields {
		fields[i] = ast.StructField{Name: f.Name, Value: m.cloneExpr(f.Value, subst)}
	}
	typeArgs := m.cloneTypeSlice(n.TypeArgs, subst)
	className := n.ClassName
	targetID := cloneID(n.TargetID)

	if targetID != nil {
		if cd, ok := m.genericClasses[*targetID]; ok {
			spec := m.specializeClass(cd, typeArgs)
			id := spec.ID
			targetID = &id
			className = spec.Name
			typeArgs = nil
		}
	}

	out := &ast.StructLit{ClassName: className, TypeArgs: typeArgs, Fields: fields, IsDIConstruct: n.IsDIConstruct}
	out.Sp = n.Sp
	out.TargetID = targetID
	return out
}

func (m *monomorphizer) cloneEnumConstruct(n *ast.EnumConstructExpr, subst map[string]ast.TypeExpr) ast.Expr {
	args := make([]ast.Expr, len(n.Args))
	for i, a := range n.Args {
		args[i] = m.cloneExpr(a, subst)
	}
	typeArgs := m.cloneTypeSlice(n.TypeArgs, subst)
	enumName := n.EnumName
	targetID := cloneID(n.TargetID)

	if targetID != nil {
		if ed, ok := m.genericEnums[*targetID]; ok {
			spec := m.specializeEnum(ed, typeArgs)
			id := spec.ID
			targetID = &id
			enumName = spec.Name
			typeArgs = nil
		}
	}

	out := &ast.EnumConstructExpr{EnumName: enumName, Variant: n.Variant, TypeArgs: typeArgs, Args: args}
	out.Sp = n.Sp
	out.TargetID = targetID
	return out
}

func (m *monomorphizer) cloneSpawn(n *ast.SpawnExpr, subst map[string]ast.TypeExpr) ast.Expr {
	callee := m.cloneExpr(n.Callee, subst)
	args := make([]ast.Expr, len(n.Args))
	for i, a := range n.Args {
		args[i] = m.cloneExpr(a, subst)
	}
	typeArgs := m.cloneTypeSlice(n.TypeArgs, subst)
	targetID := cloneID(n.TargetID)

	if targetID != nil {
		if fd, ok := m.genericFuncs[*targetID]; ok {
			spec := m.specializeFunc(fd, typeArgs)
			id := spec.ID
			targetID = &id
			if ident, ok := callee.(*ast.Ident); ok {
				ident.Name = spec.Name
			}
			typeArgs = nil
		} else if mo, ok := m.methodOwner[*targetID]; ok && len(mo.class.TypeParams) > 0 {
			classArgs, methodArgs := splitMethodTypeArgs(typeArgs, len(mo.class.TypeParams))
			specClass := m.specializeClass(mo.class, classArgs)
			specMethod := specClass.Methods[mo.index]
			id := specMethod.ID
			targetID = &id
			typeArgs = methodArgs
		}
	}

	out := &ast.SpawnExpr{Callee: callee, Args: args, TypeArgs: typeArgs}
	out.Sp = n.Sp
	out.TargetID = targetID
	return out
}
