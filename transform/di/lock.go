package di

import "github.com/plutolang/pluto/ast"

// markConcurrentlyAccessed implements spec.md §4.8 step 3's detection half:
// a class is concurrently-accessed if more than one spawn site's
// synchronous call graph reaches it, or if at least one spawn site's does
// and App.Main's own synchronous call graph (the spawning context) also
// reaches it. "Reaches" never crosses a spawn boundary on its own — a
// lifted spawned function's body lives in its own FuncDecl that ast.Walk
// only enters when that function is registered and walked directly, so a
// SpawnExpr node's Callee (a bare Ident or a ClosureCreate, never the
// callee's body inline) can't leak synchronous reach into its caller.
func markConcurrentlyAccessed(prog *ast.Program, nodes map[ast.ID]*node, methodOwner map[ast.ID]*ast.ClassDecl) {
	bodies := map[ast.ID]*ast.BlockExpr{}
	addFunc := func(f *ast.FuncDecl) {
		if f != nil {
			bodies[f.ID] = f.Body
		}
	}
	for _, f := range prog.Funcs {
		addFunc(f)
	}
	for _, c := range prog.Classes {
		for _, m := range c.Methods {
			addFunc(m)
		}
	}
	for _, t := range prog.Traits {
		for i := range t.Methods {
			if t.Methods[i].Default != nil {
				bodies[t.Methods[i].ID] = t.Methods[i].Default
			}
		}
	}
	if prog.App != nil {
		addFunc(prog.App.Main)
	}
	for _, s := range prog.Stages {
		addFunc(s.Main)
	}

	calls := map[ast.ID][]ast.ID{}
	for id, body := range bodies {
		calls[id] = directCallTargets(body)
	}

	reach := map[ast.ID]map[ast.ID]bool{}
	for id := range bodies {
		reach[id] = map[ast.ID]bool{}
	}
	for changed := true; changed; {
		changed = false
		for id := range bodies {
			next := map[ast.ID]bool{}
			for _, callee := range calls[id] {
				if owner, ok := methodOwner[callee]; ok {
					if _, participates := nodes[owner.ID]; participates {
						next[owner.ID] = true
					}
				}
				for cid := range reach[callee] {
					next[cid] = true
				}
			}
			if !reachEqual(next, reach[id]) {
				reach[id] = next
				changed = true
			}
		}
	}

	siteCount := map[ast.ID]int{}
	for _, body := range bodies {
		if body == nil {
			continue
		}
		ast.Walk(ast.VisitorFunc(func(e ast.Expr) bool {
			sp, ok := e.(*ast.SpawnExpr)
			if !ok {
				return true
			}
			target := spawnTarget(sp)
			if target != nil {
				for cid := range reach[*target] {
					siteCount[cid]++
				}
			}
			return true
		}), body)
	}

	var mainReach map[ast.ID]bool
	if prog.App != nil && prog.App.Main != nil {
		mainReach = reach[prog.App.Main.ID]
	}

	for cid, n := range nodes {
		count := siteCount[cid]
		if count > 1 || (count >= 1 && mainReach[cid]) {
			n.class.ConcurrentlyAccessed = true
		}
	}
}

func spawnTarget(sp *ast.SpawnExpr) *ast.ID {
	if sp.TargetID != nil {
		return sp.TargetID
	}
	if cc, ok := sp.Callee.(*ast.ClosureCreate); ok {
		return cc.TargetID
	}
	return nil
}

func directCallTargets(body *ast.BlockExpr) []ast.ID {
	var out []ast.ID
	if body == nil {
		return out
	}
	ast.Walk(ast.VisitorFunc(func(e ast.Expr) bool {
		if ce, ok := e.(*ast.CallExpr); ok && ce.TargetID != nil {
			out = append(out, *ce.TargetID)
		}
		return true
	}), body)
	return out
}

func reachEqual(a, b map[ast.ID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}

// contractChecks builds one runtime invariant-check call per declared class
// invariant, reused verbatim (same Expr objects) at every splice point
// wrapLocking inserts into: each is a pure, side-effect-free boolean
// expression over the decidable contract fragment (spec.md §4.4), so
// sharing the node across multiple call sites in the tree is safe — nothing
// downstream mutates a Contract's Expr in place.
func contractChecks(invs []ast.Contract) []ast.Expr {
	var out []ast.Expr
	for _, inv := range invs {
		if inv.Kind != ast.ContractInvariant {
			continue
		}
		out = append(out, &ast.CallExpr{
			Callee: &ast.Ident{Name: "__pluto_check_contract"},
			Args:   []ast.Expr{&ast.StringLit{Value: inv.Name}, inv.Expr},
		})
	}
	return out
}

func intrinsicCall(name string, args ...ast.Expr) ast.Expr {
	return &ast.CallExpr{Callee: &ast.Ident{Name: name}, Args: args}
}

func isReturn(e ast.Expr) bool {
	_, ok := e.(*ast.ReturnExpr)
	return ok
}

// wrapLocking implements spec.md §4.8 step 3's rewrite half: every method on
// a concurrently-accessed class acquires a read-lock (plain methods) or
// write-lock (`mut self` methods) on entry and releases it on every exit
// path, re-checking invariants before a write-lock release.
func wrapLocking(class *ast.ClassDecl) {
	checks := contractChecks(class.Invariants)
	for _, m := range class.Methods {
		if m.Body == nil {
			continue
		}
		mutSelf := len(m.Params) > 0 && m.Params[0].Name == "self" && m.Params[0].Mutable
		lockName, unlockName := "__pluto_rwlock_rlock", "__pluto_rwlock_runlock"
		if mutSelf {
			lockName, unlockName = "__pluto_rwlock_wlock", "__pluto_rwlock_wunlock"
		}

		var before []ast.Expr
		if mutSelf {
			before = append(before, checks...)
		}
		before = append(before, intrinsicCall(unlockName, &ast.Ident{Name: "self"}))

		spliceReturns(m.Body, before)
		// a body that unconditionally returns at the top level already got
		// before spliced in immediately ahead of that return; appending it
		// again here would be dead code after the return.
		if n := len(m.Body.Stmts); n == 0 || !isReturn(m.Body.Stmts[n-1]) {
			m.Body.Stmts = append(m.Body.Stmts, before...)
		}
		m.Body.Stmts = append([]ast.Expr{intrinsicCall(lockName, &ast.Ident{Name: "self"})}, m.Body.Stmts...)
	}
}

// spliceReturns inserts before immediately ahead of every *ast.ReturnExpr
// directly in b.Stmts or reachable through nested if/while/for/match bodies,
// without crossing into a closure or spawned call (neither can contain a
// ReturnExpr belonging to this method — a closure's own returns belong to
// its own, separately-lifted function).
func spliceReturns(b *ast.BlockExpr, before []ast.Expr) {
	if b == nil {
		return
	}
	out := make([]ast.Expr, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		spliceInStmt(s, before)
		if _, ok := s.(*ast.ReturnExpr); ok {
			out = append(out, before...)
		}
		out = append(out, s)
	}
	b.Stmts = out
}

func spliceInStmt(e ast.Expr, before []ast.Expr) {
	switch n := e.(type) {
	case *ast.IfExpr:
		spliceReturns(n.Then, before)
		spliceInElse(n.Else, before)
	case *ast.WhileExpr:
		spliceReturns(n.Body, before)
	case *ast.ForExpr:
		spliceReturns(n.Body, before)
	case *ast.MatchExpr:
		for i := range n.Arms {
			if blk, ok := n.Arms[i].Body.(*ast.BlockExpr); ok {
				spliceReturns(blk, before)
			}
		}
	}
}

func spliceInElse(e ast.Expr, before []ast.Expr) {
	switch n := e.(type) {
	case *ast.BlockExpr:
		spliceReturns(n, before)
	case *ast.IfExpr:
		spliceReturns(n.Then, before)
		spliceInElse(n.Else, before)
	}
}
