// Package types is the checked type representation used by typeck
// (spec.md §4.4, "Types"). Unlike ast.TypeExpr, which is surface syntax
// carrying names and spans, a types.Type carries resolved identities
// (declaration UUIDs for nominal types) and is comparable with Equal
// without needing the declaring Program in scope.
package types

import "github.com/plutolang/pluto/ast"

// Type is any checked type. Implementations are comparable by Equal, not
// by Go's == operator, since class/trait/enum references carry slices of
// type arguments.
type Type interface {
	typeNode()
	String() string
}

type base struct{}

func (base) typeNode() {}

type Primitive struct {
	base
	Kind ast.PrimitiveKind
}

func (p *Primitive) String() string { return p.Kind.String() }

type StringT struct{ base }

func (StringT) String() string { return "string" }

type BytesT struct{ base }

func (BytesT) String() string { return "bytes" }

type Array struct {
	base
	Elem Type
}

func (a *Array) String() string { return "[" + a.Elem.String() + "]" }

type Map struct {
	base
	Key, Value Type
}

func (m *Map) String() string { return "map<" + m.Key.String() + ", " + m.Value.String() + ">" }

type Set struct {
	base
	Elem Type
}

func (s *Set) String() string { return "set<" + s.Elem.String() + ">" }

// Nullable is Nullable(T); it is never collapsed with T itself since
// Nullable(T) is not a subtype of T (spec.md §3, "Type invariants").
type Nullable struct {
	base
	Elem Type
}

func (n *Nullable) String() string { return "Nullable(" + n.Elem.String() + ")" }

// ClassRef, TraitRef, EnumRef are nominal types: equality is strict name
// (via ID) plus type-argument equality, never structural.
type ClassRef struct {
	base
	ID       ast.ID
	Name     string
	TypeArgs []Type
}

func (c *ClassRef) String() string { return nominalString(c.Name, c.TypeArgs) }

type TraitRef struct {
	base
	ID       ast.ID
	Name     string
	TypeArgs []Type
}

func (t *TraitRef) String() string { return nominalString(t.Name, t.TypeArgs) }

type EnumRef struct {
	base
	ID       ast.ID
	Name     string
	TypeArgs []Type
}

func (e *EnumRef) String() string { return nominalString(e.Name, e.TypeArgs) }

func nominalString(name string, args []Type) string {
	if len(args) == 0 {
		return name
	}
	s := name + "<"
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ">"
}

// Func is structural: two function types unify if params, return, and
// error-set line up positionally (spec.md §4.4, "Unification").
type Func struct {
	base
	Params   []Type
	Return   Type // nil means no return value
	ErrorSet []ast.ID
}

func (f *Func) String() string {
	s := "fn("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	s += ")"
	if f.Return != nil {
		s += " " + f.Return.String()
	}
	return s
}

type Sender struct {
	base
	Elem Type
}

func (s *Sender) String() string { return "Sender<" + s.Elem.String() + ">" }

type Receiver struct {
	base
	Elem Type
}

func (r *Receiver) String() string { return "Receiver<" + r.Elem.String() + ">" }

type Task struct {
	base
	Result Type
}

func (t *Task) String() string { return "Task<" + t.Result.String() + ">" }

type Stream struct {
	base
	Elem Type
}

func (s *Stream) String() string { return "Stream<" + s.Elem.String() + ">" }

// Tuple is the privileged (Sender<T>, Receiver<T>) pair produced by
// `chan<T>(cap)` construction (spec.md §3, "Types").
type Tuple struct {
	base
	Elems []Type
}

func (t *Tuple) String() string {
	s := "("
	for i, e := range t.Elems {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + ")"
}

// Var is a type-variable placeholder that exists only during inference;
// no Var may appear in a declaration's checked type after typeck completes
// on a monomorphic program (spec.md §4.7, "Post-pass invariant").
type Var struct {
	base
	Name string
	ID   int
}

func (v *Var) String() string { return "'" + v.Name }

var (
	_ Type = (*Primitive)(nil)
	_ Type = (*StringT)(nil)
	_ Type = (*BytesT)(nil)
	_ Type = (*Array)(nil)
	_ Type = (*Map)(nil)
	_ Type = (*Set)(nil)
	_ Type = (*Nullable)(nil)
	_ Type = (*ClassRef)(nil)
	_ Type = (*TraitRef)(nil)
	_ Type = (*EnumRef)(nil)
	_ Type = (*Func)(nil)
	_ Type = (*Sender)(nil)
	_ Type = (*Receiver)(nil)
	_ Type = (*Task)(nil)
	_ Type = (*Stream)(nil)
	_ Type = (*Tuple)(nil)
	_ Type = (*Var)(nil)
)
