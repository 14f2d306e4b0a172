// Package ir is the deterministic, generator-facing intermediate
// representation the code generator lowers the canonical (post-transform)
// AST into before emission (spec.md §4.10). Module mirrors the shape of the
// teacher's codegen/ir.Design: plain, JSON-tagged, ordered data the
// downstream emitter (codegen/emit) can walk without depending on the AST or
// on map iteration order.
//
// Go-native realization: SPEC_FULL.md §0. Module is lowered to
// codegen/emit's binary container instead of to a linked native object; the
// SSA-like basic-block shape below is exactly what an ISA backend would
// consume, kept here as data instead of machine code.
package ir

import "github.com/plutolang/pluto/codegen/abi"

// Module is one whole-program compilation unit's lowered IR.
type Module struct {
	// Funcs is every lowered function, in the same order Lower visited them
	// (prog.Funcs, then every class method, then the synthesized entry
	// point last if present).
	Funcs []*Func `json:"funcs"`
	// Tags is the type-tag registry assigned to every class/error/enum
	// declaration, carried alongside so the emitted container can record it
	// (codegen/emit's derived section).
	Tags *abi.Registry `json:"-"`
}

// Func is one lowered function: a flat list of basic blocks in layout
// order, the first of which is the entry block.
type Func struct {
	Name     string   `json:"name"`
	Params   []string `json:"params"`
	NumLocal int      `json:"num_locals"` // local Value slots beyond params
	Blocks   []*Block `json:"blocks"`
	// ErrorSet names the error declarations this function may raise, carried
	// from ast.FuncDecl.ErrorSet for the emitter's derived-section index.
	ErrorSet []string `json:"error_set,omitempty"`
}

// Block is one SSA-like basic block: a straight-line instruction list ended
// by exactly one terminator instruction (Br, CondBr, Ret, or Unreachable).
type Block struct {
	Name  string `json:"name"`
	Insts []Inst `json:"insts"`
}

// Value is an SSA value reference: either a literal/block-local ValueID or
// a stable reference to a named program entity (function, global, field).
type Value struct {
	// ID identifies a value produced by some earlier instruction in the same
	// function ("%12"-style). Zero means Name/Const carries the value
	// instead.
	ID int `json:"id,omitempty"`
	// Name is set for a reference to a parameter, captured value, or
	// top-level function by name; empty otherwise.
	Name string `json:"name,omitempty"`
}

// Op identifies an instruction's operation.
type Op string

const (
	OpConstInt     Op = "const_int"
	OpConstFloat   Op = "const_float"
	OpConstBool    Op = "const_bool"
	OpConstString  Op = "const_string"
	OpConstNone    Op = "const_none"
	OpBinary       Op = "binary"
	OpUnary        Op = "unary"
	OpCall         Op = "call"
	OpAlloc        Op = "alloc"        // allocates a class/error/enum instance per abi.Tag
	OpAllocArray   Op = "alloc_array"
	OpAllocMap     Op = "alloc_map"
	OpAllocSet     Op = "alloc_set"
	OpFieldLoad    Op = "field_load"
	OpFieldStore   Op = "field_store"
	OpIndexLoad    Op = "index_load"
	OpIndexStore   Op = "index_store"
	OpStrConcat    Op = "str_concat"   // string interpolation lowering
	OpMakeClosure  Op = "make_closure"
	OpTaskSpawn    Op = "task_spawn"   // __pluto_task_spawn
	OpTaskGet      Op = "task_get"     // __pluto_task_get
	OpChanMake     Op = "chan_make"
	OpChanSend     Op = "chan_send"
	OpChanRecv     Op = "chan_recv"
	OpChanTrySend  Op = "chan_try_send"
	OpChanTryRecv  Op = "chan_try_recv"
	OpChanClose    Op = "chan_close"
	OpDeepCopy     Op = "deep_copy"    // __pluto_deep_copy
	OpRaise        Op = "raise"        // sets current_error TLS and returns
	OpErrorCheck   Op = "error_check"  // inline TLS-check branch after a fallible call
	OpErrorClear   Op = "error_clear"  // catch's clear-and-handle sequence
	OpRequiresCheck Op = "requires_check"
	OpInvariantCheck Op = "invariant_check"
	OpRLock        Op = "rlock"
	OpRUnlock      Op = "runlock"
	OpWLock        Op = "wlock"
	OpWUnlock      Op = "wunlock"
	OpYield        Op = "yield"
	OpGenNext      Op = "gen_next"

	OpBr         Op = "br"
	OpCondBr     Op = "cond_br"
	OpRet        Op = "ret"
	OpSwitch     Op = "switch" // match lowering: discriminant/value switch
	OpUnreachable Op = "unreachable"
)

// Inst is one IR instruction. Not every field is meaningful for every Op;
// unused fields are left zero, matching the sparse-struct convention the
// teacher's own IR types use for kind-specific variants (ir.Owner above
// leaves AgentName/AgentSlug empty for a service-owned toolset).
type Inst struct {
	Op Op `json:"op"`
	// Result is the destination Value this instruction defines; zero ID for
	// instructions with no result (store, branch, ...).
	Result int `json:"result,omitempty"`

	IntVal    int64   `json:"int_val,omitempty"`
	FloatVal  float64 `json:"float_val,omitempty"`
	BoolVal   bool    `json:"bool_val,omitempty"`
	StringVal string  `json:"string_val,omitempty"`

	BinOp  string  `json:"bin_op,omitempty"`
	UnOp   string  `json:"un_op,omitempty"`
	Args   []Value `json:"args,omitempty"`
	Callee Value   `json:"callee,omitempty"`

	Tag   abi.Tag `json:"tag,omitempty"`
	Field string  `json:"field,omitempty"`

	TargetBlock  string `json:"target_block,omitempty"`
	ThenBlock    string `json:"then_block,omitempty"`
	ElseBlock    string `json:"else_block,omitempty"`
	Cond         Value  `json:"cond,omitempty"`

	// Cases is used by OpSwitch: each case's discriminant/literal value and
	// target block, in source order; the last entry with Default set true
	// (if any) is the fallback.
	Cases []SwitchCase `json:"cases,omitempty"`

	ErrorName string `json:"error_name,omitempty"`
	ClassName string `json:"class_name,omitempty"`

	ConcurrentlyAccessed bool `json:"concurrently_accessed,omitempty"`
}

// SwitchCase is one arm of an OpSwitch instruction.
type SwitchCase struct {
	Value      int64  `json:"value"`
	TargetBlock string `json:"target_block"`
	Default    bool   `json:"default,omitempty"`
}
