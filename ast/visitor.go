package ast

import "fmt"

// Visitor receives every Expr node reachable from a Walk call, along with
// the list of its immediate child expressions (already walked). Visit
// returning false stops recursion into e's children (they are still passed
// in Children for inspection, just not auto-recursed by Walk).
type Visitor interface {
	Visit(e Expr) (recurse bool)
}

// VisitorFunc adapts a plain function to Visitor.
type VisitorFunc func(Expr) bool

func (f VisitorFunc) Visit(e Expr) bool { return f(e) }

// Walk traverses e and every expression reachable from it, calling v.Visit
// on each node before recursing into its children. The type switch below is
// deliberately exhaustive: adding a new Expr variant without adding a case
// here makes Walk panic on that node instead of silently skipping its
// children, satisfying the "no silently-missed variants" invariant
// (spec.md §8).
func Walk(v Visitor, e Expr) {
	if e == nil {
		return
	}
	if !v.Visit(e) {
		return
	}
	switch n := e.(type) {
	case *Ident, *IntLit, *FloatLit, *BoolLit, *NoneLit, *StringLit:
		// leaves
	case *FStringLit:
		for _, seg := range n.Segments {
			if seg.Expr != nil {
				Walk(v, seg.Expr)
			}
		}
	case *BinaryExpr:
		Walk(v, n.Left)
		Walk(v, n.Right)
	case *UnaryExpr:
		Walk(v, n.Operand)
	case *CallExpr:
		Walk(v, n.Callee)
		for _, a := range n.Args {
			Walk(v, a)
		}
	case *FieldAccess:
		Walk(v, n.Target)
	case *QualifiedAccess:
		// leaf until flattened
	case *IndexExpr:
		Walk(v, n.Target)
		Walk(v, n.Index)
	case *StructLit:
		for _, f := range n.Fields {
			Walk(v, f.Value)
		}
	case *EnumConstructExpr:
		for _, a := range n.Args {
			Walk(v, a)
		}
	case *AssignExpr:
		Walk(v, n.Target)
		Walk(v, n.Value)
	case *IndexAssignExpr:
		Walk(v, n.Target)
		Walk(v, n.Index)
		Walk(v, n.Value)
	case *LetExpr:
		Walk(v, n.Value)
	case *IfExpr:
		Walk(v, n.Cond)
		Walk(v, n.Then)
		if n.Else != nil {
			Walk(v, n.Else)
		}
	case *WhileExpr:
		Walk(v, n.Cond)
		Walk(v, n.Body)
	case *ForExpr:
		Walk(v, n.Iterable)
		Walk(v, n.Body)
	case *MatchExpr:
		Walk(v, n.Subject)
		for _, arm := range n.Arms {
			if arm.Literal != nil {
				Walk(v, arm.Literal)
			}
			Walk(v, arm.Body)
		}
	case *Closure:
		Walk(v, n.Body)
	case *ClosureCreate:
		for _, c := range n.Captures {
			Walk(v, c)
		}
	case *SpawnExpr:
		Walk(v, n.Callee)
		for _, a := range n.Args {
			Walk(v, a)
		}
	case *ScopeExpr:
		Walk(v, n.Body)
	case *RaiseExpr:
		for _, f := range n.Args {
			Walk(v, f.Value)
		}
	case *CatchExpr:
		Walk(v, n.Subject)
		if n.Handler != nil {
			Walk(v, n.Handler)
		}
	case *PropagateExpr:
		Walk(v, n.Subject)
	case *ChanExpr:
		if n.Capacity != nil {
			Walk(v, n.Capacity)
		}
	case *SendExpr:
		Walk(v, n.Target)
		Walk(v, n.Value)
	case *RecvExpr:
		Walk(v, n.Target)
	case *CloseExpr:
		Walk(v, n.Target)
	case *YieldExpr:
		if n.Value != nil {
			Walk(v, n.Value)
		}
	case *ReturnExpr:
		if n.Value != nil {
			Walk(v, n.Value)
		}
	case *BlockExpr:
		for _, s := range n.Stmts {
			Walk(v, s)
		}
	default:
		panic(fmt.Sprintf("ast.Walk: unhandled expression variant %T", e))
	}
}

// WalkFunc walks every expression reachable from a function body and its
// contracts, including nested closures before they are lifted.
func WalkFunc(v Visitor, f *FuncDecl) {
	for _, c := range f.Contracts {
		Walk(v, c.Expr)
	}
	if f.Body != nil {
		Walk(v, f.Body)
	}
}

// WalkProgram walks every function, method, and contract body in p.
func WalkProgram(v Visitor, p *Program) {
	for _, f := range p.Funcs {
		WalkFunc(v, f)
	}
	for _, c := range p.Classes {
		for _, inv := range c.Invariants {
			Walk(v, inv.Expr)
		}
		for _, m := range c.Methods {
			WalkFunc(v, m)
		}
	}
	for _, t := range p.Traits {
		for _, m := range t.Methods {
			if m.Default != nil {
				Walk(v, m.Default)
			}
		}
	}
	if p.App != nil && p.App.Main != nil {
		WalkFunc(v, p.App.Main)
	}
	for _, s := range p.Stages {
		if s.Main != nil {
			WalkFunc(v, s.Main)
		}
	}
	for _, t := range p.Tests {
		if t.Body != nil {
			Walk(v, t.Body)
		}
	}
}
