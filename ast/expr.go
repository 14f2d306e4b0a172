package ast

import "github.com/plutolang/pluto/token"

// Expr is any expression node. Every new variant added to this interface
// must be handled by every exhaustive walker in this package and in every
// pass; Walk below panics on an unrecognized variant specifically so that
// adding a variant without updating the walkers fails loudly rather than
// silently mishandling the new node (spec.md §8, "exhaustive pattern
// matches").
type Expr interface {
	exprNode()
	Span() token.Span
}

type baseExpr struct{ Sp token.Span }

func (baseExpr) exprNode()          {}
func (b baseExpr) Span() token.Span { return b.Sp }

// xrefNode is embedded by every expression kind that carries a resolved
// target declaration.
type xrefNode struct {
	TargetID *ID
}

type Ident struct {
	baseExpr
	xrefNode
	Name string
}

type IntLit struct {
	baseExpr
	Value int64
}

type FloatLit struct {
	baseExpr
	Value float64
}

type BoolLit struct {
	baseExpr
	Value bool
}

type NoneLit struct{ baseExpr }

// StringLit is a plain, non-interpolating string literal.
type StringLit struct {
	baseExpr
	Value string // already escape-decoded
}

// FStringSegment is either a literal text chunk (Expr == nil) or an
// interpolated sub-expression (Text == "").
type FStringSegment struct {
	Text string
	Expr Expr
}

// FStringLit is an `f"..."` literal with interior {expr} segments.
type FStringLit struct {
	baseExpr
	Segments []FStringSegment
}

type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAnd
	OpOr
)

type BinaryExpr struct {
	baseExpr
	Op          BinOp
	Left, Right Expr
}

type UnOp int

const (
	OpNeg UnOp = iota
	OpNot
)

type UnaryExpr struct {
	baseExpr
	Op      UnOp
	Operand Expr
}

// CallExpr is `callee<TypeArgs>(Args)`. Callee is usually an Ident or a
// FieldAccess (method call); TypeArgs is non-nil only for explicit generic
// instantiation.
type CallExpr struct {
	baseExpr
	xrefNode
	Callee   Expr
	TypeArgs []TypeExpr
	Args     []Expr
}

// FieldAccess is `Target.Field`, used both for plain field reads and as the
// receiver position of a method CallExpr.
type FieldAccess struct {
	baseExpr
	Target Expr
	Field  string
}

// QualifiedAccess is `module.sub.Thing` surface syntax; like QualifiedType,
// it must not survive the module flattener.
type QualifiedAccess struct {
	baseExpr
	Path []string
}

type IndexExpr struct {
	baseExpr
	Target, Index Expr
}

type StructField struct {
	Name  string
	Value Expr
}

// StructLit is `ClassName { field: value, ... }`.
type StructLit struct {
	baseExpr
	xrefNode
	ClassName string
	TypeArgs  []TypeExpr
	Fields    []StructField
	// IsDIConstruct marks a StructLit synthesized by DI wiring to build a
	// singleton: Fields carries the resolved bracket-dependency values (by
	// BracketDep.Name) rather than ordinary declared-field values, which a
	// source-level literal can never supply (spec.md §4.8 step 4). false
	// for every literal the parser produces.
	IsDIConstruct bool
}

// EnumConstructExpr is `EnumName.Variant(args...)` or `EnumName.Variant`.
type EnumConstructExpr struct {
	baseExpr
	xrefNode
	EnumName string
	Variant  string
	TypeArgs []TypeExpr
	Args     []Expr
}

type AssignExpr struct {
	baseExpr
	Target Expr // Ident or FieldAccess
	Value  Expr
}

type IndexAssignExpr struct {
	baseExpr
	Target Expr
	Index  Expr
	Value  Expr
}

// LetExpr is a binding statement: `let name: T? = value` or a channel-pair
// binding `let (tx, rx) = value`.
type LetExpr struct {
	baseExpr
	Names   []string // len > 1 only for the Sender/Receiver tuple form
	Type    TypeExpr // optional
	Mutable bool
	Value   Expr
}

type IfExpr struct {
	baseExpr
	Cond       Expr
	Then       *BlockExpr
	Else       Expr // *BlockExpr or *IfExpr, nil if absent
}

type WhileExpr struct {
	baseExpr
	Cond Expr
	Body *BlockExpr
}

// ForExpr is `for Binding in Iterable { Body }`. Iterable may be a Receiver
// expression, in which case this desugars (at codegen) to a recv-loop that
// exits cleanly on ChannelClosed (spec.md §4.13).
type ForExpr struct {
	baseExpr
	Binding string
	// Type is Binding's element type, backfilled by typeck (array/set/
	// Receiver/Stream element type) — the loop binding has no surface type
	// annotation, so downstream passes (closure lifting, monomorphization)
	// that need a concrete type for a captured loop variable read it here.
	Type     TypeExpr
	Iterable Expr
	Body     *BlockExpr
}

type MatchArm struct {
	baseExpr
	xrefNode
	// Pattern is one of: wildcard ("_"), a literal Expr, or
	// "EnumName.Variant(bindNames...)" captured structurally.
	Wildcard    bool
	Literal     Expr
	EnumName    string
	Variant     string
	BindNames   []string
	Body        Expr
}

type MatchExpr struct {
	baseExpr
	Subject Expr
	Arms    []MatchArm
}

// ClosureParam is a closure's declared parameter.
type ClosureParam struct {
	Name string
	Type TypeExpr // optional, inferred if nil
}

// Closure is surface syntax for an inline lambda. The closure lifter
// replaces every occurrence with ClosureCreate; no Closure node may survive
// that pass (spec.md §4.6).
type Closure struct {
	baseExpr
	Params []ClosureParam
	Return TypeExpr // optional
	Body   Expr
}

// ClosureCreate replaces a lifted Closure: FnName refers to the
// synthesized top-level `__closure_<N>` function, and Captures lists the
// free-variable expressions evaluated at the creation site, in the order
// the lifted function expects them as its leading parameters.
type ClosureCreate struct {
	baseExpr
	FnName   string
	TargetID *ID
	Captures []Expr
}

// SpawnExpr is `spawn f(args...)`; the spawn desugarer rewrites its
// argument-evaluation and deep-copy semantics but the node form itself
// persists through codegen as the lowering anchor.
type SpawnExpr struct {
	baseExpr
	xrefNode
	Callee Expr
	Args   []Expr
	// TypeArgs is backfilled by typeck with the spawned call's resolved
	// generic instantiation, if Callee names a generic function — spawn
	// has no surface syntax for explicit type arguments, so this is always
	// inferred rather than parsed. transform/mono reads it to rewrite
	// Callee to the specialized function name.
	TypeArgs []TypeExpr
}

// ScopeExpr is `scope { Body }`, introducing scoped singletons for its
// duration (spec.md §4.9).
type ScopeExpr struct {
	baseExpr
	Body *BlockExpr
}

type RaiseExpr struct {
	baseExpr
	xrefNode
	ErrorName string
	Args      []StructField
}

// CatchExpr consumes the error raised by Subject. Wildcard == true means a
// bare `catch { ... }` handler (clears the whole error set); otherwise
// ErrorName names the single error type the shorthand `catch X` clears, and
// TargetID (meaningful only in that case) resolves it to its declaration.
type CatchExpr struct {
	baseExpr
	xrefNode
	Subject   Expr
	Wildcard  bool
	ErrorName string
	Handler   Expr // nil for the shorthand form
}

// PropagateExpr is the postfix `!` operator.
type PropagateExpr struct {
	baseExpr
	Subject Expr
}

// ChanExpr is `chan<T>(capacity)`.
type ChanExpr struct {
	baseExpr
	Elem     TypeExpr
	Capacity Expr // nil means default capacity (1)
}

type SendExpr struct {
	baseExpr
	Target Expr
	Value  Expr
	Try    bool
}

type RecvExpr struct {
	baseExpr
	Target Expr
	Try    bool
}

type CloseExpr struct {
	baseExpr
	Target Expr
}

type YieldExpr struct {
	baseExpr
	Value Expr
}

type ReturnExpr struct {
	baseExpr
	Value Expr // nil for bare `return`
}

type BlockExpr struct {
	baseExpr
	Stmts []Expr
}

var (
	_ Expr = (*Ident)(nil)
	_ Expr = (*IntLit)(nil)
	_ Expr = (*FloatLit)(nil)
	_ Expr = (*BoolLit)(nil)
	_ Expr = (*NoneLit)(nil)
	_ Expr = (*StringLit)(nil)
	_ Expr = (*FStringLit)(nil)
	_ Expr = (*BinaryExpr)(nil)
	_ Expr = (*UnaryExpr)(nil)
	_ Expr = (*CallExpr)(nil)
	_ Expr = (*FieldAccess)(nil)
	_ Expr = (*QualifiedAccess)(nil)
	_ Expr = (*IndexExpr)(nil)
	_ Expr = (*StructLit)(nil)
	_ Expr = (*EnumConstructExpr)(nil)
	_ Expr = (*AssignExpr)(nil)
	_ Expr = (*IndexAssignExpr)(nil)
	_ Expr = (*LetExpr)(nil)
	_ Expr = (*IfExpr)(nil)
	_ Expr = (*WhileExpr)(nil)
	_ Expr = (*ForExpr)(nil)
	_ Expr = (*MatchExpr)(nil)
	_ Expr = (*Closure)(nil)
	_ Expr = (*ClosureCreate)(nil)
	_ Expr = (*SpawnExpr)(nil)
	_ Expr = (*ScopeExpr)(nil)
	_ Expr = (*RaiseExpr)(nil)
	_ Expr = (*CatchExpr)(nil)
	_ Expr = (*PropagateExpr)(nil)
	_ Expr = (*ChanExpr)(nil)
	_ Expr = (*SendExpr)(nil)
	_ Expr = (*RecvExpr)(nil)
	_ Expr = (*CloseExpr)(nil)
	_ Expr = (*YieldExpr)(nil)
	_ Expr = (*ReturnExpr)(nil)
	_ Expr = (*BlockExpr)(nil)
)
