package ast

import "github.com/plutolang/pluto/token"

// Decl is any top-level declaration. Every Decl has a persistent UUID
// (spec.md §3, "Spans and UUIDs").
type Decl interface {
	exprNode2() // distinguishes Decl from Expr at the type level; both carry spans
	Span() token.Span
	DeclID() ID
	DeclName() string
}

// TypeParam is a generic type parameter with an optional trait-bound set.
type TypeParam struct {
	Name   string
	Bounds []string // trait names; resolved to IDs by xref
}

// Param is a function or method parameter.
type Param struct {
	Name    string
	Type    TypeExpr
	Mutable bool
}

// Contract is a `requires`/`invariant` clause restricted to the decidable
// fragment validated during typeck (spec.md §4.4): field access,
// comparisons, arithmetic, logical operators, literals, and `.len()`.
type Contract struct {
	Sp   token.Span
	Kind ContractKind
	Name string // diagnostic label, e.g. "self.n >= 0"
	Expr Expr
}

type ContractKind int

const (
	ContractInvariant ContractKind = iota
	ContractRequires
)

// FuncDecl is a top-level or lifted function declaration. Body is nil only
// for ExternFuncDecl-equivalent externs, which are represented separately
// below since the spec treats "extern function declarations" as their own
// program-level list.
type FuncDecl struct {
	Sp          token.Span
	ID          ID
	Name        string
	TypeParams  []TypeParam
	Params      []Param
	Return      TypeExpr
	Body        *BlockExpr
	Contracts   []Contract
	Public      bool
	IsGenerator bool
	// ErrorSet is populated by effect inference: the closed set of error
	// declaration IDs this function may raise.
	ErrorSet []ID
}

func (d *FuncDecl) exprNode2()        {}
func (d *FuncDecl) Span() token.Span  { return d.Sp }
func (d *FuncDecl) DeclID() ID        { return d.ID }
func (d *FuncDecl) DeclName() string  { return d.Name }

// ExternFuncDecl declares a function with no body, implemented by the
// runtime or linked native code.
type ExternFuncDecl struct {
	Sp         token.Span
	ID         ID
	Name       string
	TypeParams []TypeParam
	Params     []Param
	Return     TypeExpr
	Public     bool
}

func (d *ExternFuncDecl) exprNode2()       {}
func (d *ExternFuncDecl) Span() token.Span { return d.Sp }
func (d *ExternFuncDecl) DeclID() ID       { return d.ID }
func (d *ExternFuncDecl) DeclName() string { return d.Name }

// FieldDecl is a class field.
type FieldDecl struct {
	Sp       token.Span
	Name     string
	Type     TypeExpr
	Public   bool
	Injected bool
}

// BracketDep is a DI bracket-dependency declaration: `class Foo[dep: Bar]`.
type BracketDep struct {
	Sp   token.Span
	Name string
	Type TypeExpr
}

// ClassDecl is a class declaration, optionally DI-participating via
// BracketDeps.
type ClassDecl struct {
	Sp          token.Span
	ID          ID
	Name        string
	TypeParams  []TypeParam
	Fields      []FieldDecl
	Methods     []*FuncDecl // first param name is "self"; Mutable marks `mut self`
	Implements  []string    // trait names; resolved by xref
	Invariants  []Contract
	BracketDeps []BracketDep
	Public      bool

	// ConcurrentlyAccessed is set by DI wiring (spec.md §4.8 step 3) when
	// this class is reachable from more than one spawn site, or from a
	// spawn site and the spawning context.
	ConcurrentlyAccessed bool

	// DIManaged is set by DI wiring for every class reachable in the DI
	// graph rooted at the App. The spawn desugarer (spec.md §4.9) reads it
	// to exempt an injected singleton reference from the automatic
	// deep-copy it otherwise inserts for every heap-typed spawn argument:
	// a DI singleton crossing a spawn boundary is meant to stay the same
	// shared instance DI wiring's lock-wrapping makes safe to access
	// concurrently, not an isolated copy.
	DIManaged bool
}

func (d *ClassDecl) exprNode2()       {}
func (d *ClassDecl) Span() token.Span { return d.Sp }
func (d *ClassDecl) DeclID() ID       { return d.ID }
func (d *ClassDecl) DeclName() string { return d.Name }

// MethodSig is a trait method signature, with an optional default body.
// ID is only meaningful when Default is non-nil: a default body is itself
// schedulable call-graph work (effect inference walks it like any other
// function body), so it needs the same persistent-UUID identity every
// other declaration carries (spec.md §3, "Spans and UUIDs").
type MethodSig struct {
	Sp      token.Span
	ID      ID
	Name    string
	Params  []Param
	Return  TypeExpr
	Default *BlockExpr // nil means implementers must provide a body
}

// TraitDecl is a trait declaration.
type TraitDecl struct {
	Sp      token.Span
	ID      ID
	Name    string
	Methods []MethodSig
	Public  bool
}

func (d *TraitDecl) exprNode2()       {}
func (d *TraitDecl) Span() token.Span { return d.Sp }
func (d *TraitDecl) DeclID() ID       { return d.ID }
func (d *TraitDecl) DeclName() string { return d.Name }

// VariantDecl is one enum variant, with an optional field list.
type VariantDecl struct {
	Sp     token.Span
	Name   string
	Fields []FieldDecl
}

// EnumDecl is an enum declaration.
type EnumDecl struct {
	Sp         token.Span
	ID         ID
	Name       string
	TypeParams []TypeParam
	Variants   []VariantDecl
	Public     bool
}

func (d *EnumDecl) exprNode2()       {}
func (d *EnumDecl) Span() token.Span { return d.Sp }
func (d *EnumDecl) DeclID() ID       { return d.ID }
func (d *EnumDecl) DeclName() string { return d.Name }

// ErrorDecl declares a first-class nominal error type; its runtime
// representation is identical to a class (spec.md §3).
type ErrorDecl struct {
	Sp     token.Span
	ID     ID
	Name   string
	Fields []FieldDecl
	Public bool
}

func (d *ErrorDecl) exprNode2()       {}
func (d *ErrorDecl) Span() token.Span { return d.Sp }
func (d *ErrorDecl) DeclID() ID       { return d.ID }
func (d *ErrorDecl) DeclName() string { return d.Name }

// AppDecl is the unique DI root: an inject-field list plus `main(self)`.
// At most one may exist per program (spec.md §3).
type AppDecl struct {
	Sp          token.Span
	ID          ID
	Name        string
	BracketDeps []BracketDep
	Main        *FuncDecl
}

func (d *AppDecl) exprNode2()       {}
func (d *AppDecl) Span() token.Span { return d.Sp }
func (d *AppDecl) DeclID() ID       { return d.ID }
func (d *AppDecl) DeclName() string { return d.Name }

// StageDecl is a unit-of-deployment declaration, reserved for the
// future distributed-RPC phase (spec.md §3, §6 domain stack). It carries
// the same inject-field+main(self) shape as AppDecl but is not executed by
// this phase-1 core.
type StageDecl struct {
	Sp          token.Span
	ID          ID
	Name        string
	BracketDeps []BracketDep
	Main        *FuncDecl
}

func (d *StageDecl) exprNode2()       {}
func (d *StageDecl) Span() token.Span { return d.Sp }
func (d *StageDecl) DeclID() ID       { return d.ID }
func (d *StageDecl) DeclName() string { return d.Name }

// SystemDecl is the single optional system declaration (at most one per
// Program), grouping Stages for future cross-pod orchestration.
type SystemDecl struct {
	Sp     token.Span
	ID     ID
	Name   string
	Stages []string // Stage names; resolved by xref
}

func (d *SystemDecl) exprNode2()       {}
func (d *SystemDecl) Span() token.Span { return d.Sp }
func (d *SystemDecl) DeclID() ID       { return d.ID }
func (d *SystemDecl) DeclName() string { return d.Name }

// TestDecl is a `test "name" { ... }` block, lifted to the Program's Tests
// list by the parser.
type TestDecl struct {
	Sp        token.Span
	ID        ID
	Name      string
	Body      *BlockExpr
	Strategy  string // "", "sequential", "round_robin", "random", "exhaustive"
	MaxDepth  int
	MaxSched  int
}

func (d *TestDecl) exprNode2()       {}
func (d *TestDecl) Span() token.Span { return d.Sp }
func (d *TestDecl) DeclID() ID       { return d.ID }
func (d *TestDecl) DeclName() string { return d.Name }

var (
	_ Decl = (*FuncDecl)(nil)
	_ Decl = (*ExternFuncDecl)(nil)
	_ Decl = (*ClassDecl)(nil)
	_ Decl = (*TraitDecl)(nil)
	_ Decl = (*EnumDecl)(nil)
	_ Decl = (*ErrorDecl)(nil)
	_ Decl = (*AppDecl)(nil)
	_ Decl = (*StageDecl)(nil)
	_ Decl = (*SystemDecl)(nil)
	_ Decl = (*TestDecl)(nil)
)
