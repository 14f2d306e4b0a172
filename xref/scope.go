package xref

// scope tracks names bound by function parameters, let-bindings,
// for-loop bindings, match-arm binds, and closure parameters, so the
// resolver can tell a call to a local variable (a closure value, say) apart
// from a reference to a top-level declaration. xref only ever resolves the
// latter; a shadowed name is left unresolved, not reported as unknown.
type scope struct {
	parent *scope
	names  map[string]bool
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: map[string]bool{}}
}

func (s *scope) bind(name string) {
	if name != "" {
		s.names[name] = true
	}
}

func (s *scope) has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return true
		}
	}
	return false
}
