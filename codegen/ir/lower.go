package ir

import (
	"fmt"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/codegen/abi"
)

// Lower lowers a canonical, fully-transformed Program into a Module
// (spec.md §4.10). Lower is non-mutating on prog, matching the teacher's
// codegen/ir.Build taking evaluated roots and returning a fresh Design
// without touching its input expr trees.
func Lower(prog *ast.Program) (*Module, error) {
	tags := abi.NewRegistry(prog)
	m := &Module{Tags: tags}

	for _, f := range prog.Funcs {
		lf, err := lowerFunc(f, tags)
		if err != nil {
			return nil, err
		}
		m.Funcs = append(m.Funcs, lf)
	}
	for _, c := range prog.Classes {
		for _, meth := range c.Methods {
			lf, err := lowerFunc(meth, tags)
			if err != nil {
				return nil, err
			}
			m.Funcs = append(m.Funcs, lf)
		}
	}
	if prog.App != nil && prog.App.Main != nil {
		lf, err := lowerFunc(prog.App.Main, tags)
		if err != nil {
			return nil, err
		}
		m.Funcs = append(m.Funcs, lf)
	}
	for _, s := range prog.Stages {
		if s.Main == nil {
			continue
		}
		lf, err := lowerFunc(s.Main, tags)
		if err != nil {
			return nil, err
		}
		m.Funcs = append(m.Funcs, lf)
	}

	return m, nil
}

// builder holds the working state for lowering one function.
type builder struct {
	tags    *abi.Registry
	fn      *Func
	cur     *Block
	nextVal int
	nextBlk int
	locals  map[string]Value // Ident/param name -> current SSA value
}

func lowerFunc(f *ast.FuncDecl, tags *abi.Registry) (*Func, error) {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	lf := &Func{Name: f.Name, Params: names}
	for _, eid := range f.ErrorSet {
		lf.ErrorSet = append(lf.ErrorSet, eid.String())
	}

	b := &builder{tags: tags, fn: lf, locals: map[string]Value{}}
	for _, p := range f.Params {
		b.locals[p.Name] = Value{Name: p.Name}
	}

	entry := b.newBlock("entry")
	b.cur = entry
	if f.Body != nil {
		if err := b.lowerBlock(f.Body); err != nil {
			return nil, err
		}
	}
	b.terminateFallthroughReturn()
	return lf, nil
}

func (b *builder) newBlock(hint string) *Block {
	blk := &Block{Name: fmt.Sprintf("%s%d", hint, b.nextBlk)}
	b.nextBlk++
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

func (b *builder) newValue() int {
	b.nextVal++
	return b.nextVal
}

func (b *builder) emit(i Inst) Value {
	if i.Result == 0 && needsResult(i.Op) {
		i.Result = b.newValue()
	}
	b.cur.Insts = append(b.cur.Insts, i)
	return Value{ID: i.Result}
}

func needsResult(op Op) bool {
	switch op {
	case OpBr, OpCondBr, OpRet, OpSwitch, OpUnreachable,
		OpFieldStore, OpIndexStore, OpChanSend, OpChanClose,
		OpErrorClear, OpRequiresCheck, OpInvariantCheck,
		OpRLock, OpRUnlock, OpWLock, OpWUnlock, OpYield:
		return false
	default:
		return true
	}
}

// terminated reports whether the current block already ends in a
// terminator, so a fallthrough return isn't appended twice.
func (b *builder) terminated() bool {
	if len(b.cur.Insts) == 0 {
		return false
	}
	switch b.cur.Insts[len(b.cur.Insts)-1].Op {
	case OpBr, OpCondBr, OpRet, OpUnreachable, OpSwitch:
		return true
	default:
		return false
	}
}

func (b *builder) terminateFallthroughReturn() {
	if !b.terminated() {
		b.cur.Insts = append(b.cur.Insts, Inst{Op: OpRet})
	}
}

// lowerBlock lowers a statement sequence into the current block, following
// new blocks as control-flow statements open them.
func (b *builder) lowerBlock(blk *ast.BlockExpr) error {
	for _, stmt := range blk.Stmts {
		if b.terminated() {
			break
		}
		if _, err := b.lowerExpr(stmt); err != nil {
			return err
		}
	}
	return nil
}

// lowerExpr lowers one expression, emitting instructions into the current
// block and returning the Value holding its result (the zero Value for a
// statement-only expression, e.g. an assignment).
func (b *builder) lowerExpr(e ast.Expr) (Value, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return b.emit(Inst{Op: OpConstInt, IntVal: n.Value}), nil
	case *ast.FloatLit:
		return b.emit(Inst{Op: OpConstFloat, FloatVal: n.Value}), nil
	case *ast.BoolLit:
		return b.emit(Inst{Op: OpConstBool, BoolVal: n.Value}), nil
	case *ast.NoneLit:
		return b.emit(Inst{Op: OpConstNone}), nil
	case *ast.StringLit:
		return b.emit(Inst{Op: OpConstString, StringVal: n.Value}), nil
	case *ast.FStringLit:
		return b.lowerFString(n)
	case *ast.Ident:
		if v, ok := b.locals[n.Name]; ok {
			return v, nil
		}
		return Value{Name: n.Name}, nil

	case *ast.BinaryExpr:
		l, err := b.lowerExpr(n.Left)
		if err != nil {
			return Value{}, err
		}
		r, err := b.lowerExpr(n.Right)
		if err != nil {
			return Value{}, err
		}
		return b.emit(Inst{Op: OpBinary, BinOp: binOpName(n.Op), Args: []Value{l, r}}), nil

	case *ast.UnaryExpr:
		v, err := b.lowerExpr(n.Operand)
		if err != nil {
			return Value{}, err
		}
		return b.emit(Inst{Op: OpUnary, UnOp: unOpName(n.Op), Args: []Value{v}}), nil

	case *ast.FieldAccess:
		t, err := b.lowerExpr(n.Target)
		if err != nil {
			return Value{}, err
		}
		return b.emit(Inst{Op: OpFieldLoad, Args: []Value{t}, Field: n.Field}), nil

	case *ast.IndexExpr:
		t, err := b.lowerExpr(n.Target)
		if err != nil {
			return Value{}, err
		}
		idx, err := b.lowerExpr(n.Index)
		if err != nil {
			return Value{}, err
		}
		return b.emit(Inst{Op: OpIndexLoad, Args: []Value{t, idx}}), nil

	case *ast.CallExpr:
		return b.lowerCall(n)

	case *ast.StructLit:
		return b.lowerStructLit(n)

	case *ast.EnumConstructExpr:
		return b.lowerEnumConstruct(n)

	case *ast.AssignExpr:
		v, err := b.lowerExpr(n.Value)
		if err != nil {
			return Value{}, err
		}
		switch t := n.Target.(type) {
		case *ast.Ident:
			b.locals[t.Name] = v
			return Value{}, nil
		case *ast.FieldAccess:
			recv, err := b.lowerExpr(t.Target)
			if err != nil {
				return Value{}, err
			}
			b.emit(Inst{Op: OpFieldStore, Args: []Value{recv, v}, Field: t.Field})
			return Value{}, nil
		default:
			return Value{}, fmt.Errorf("ir: unsupported assignment target %T", t)
		}

	case *ast.IndexAssignExpr:
		t, err := b.lowerExpr(n.Target)
		if err != nil {
			return Value{}, err
		}
		idx, err := b.lowerExpr(n.Index)
		if err != nil {
			return Value{}, err
		}
		v, err := b.lowerExpr(n.Value)
		if err != nil {
			return Value{}, err
		}
		b.emit(Inst{Op: OpIndexStore, Args: []Value{t, idx, v}})
		return Value{}, nil

	case *ast.LetExpr:
		v, err := b.lowerExpr(n.Value)
		if err != nil {
			return Value{}, err
		}
		// a (tx, rx) channel-pair binding fans the same produced value out to
		// both names; codegen/emit's ABI note documents ChanExpr as already
		// producing the paired handles, so both names alias one Value here.
		for _, name := range n.Names {
			b.locals[name] = v
		}
		return Value{}, nil

	case *ast.IfExpr:
		return Value{}, b.lowerIf(n)

	case *ast.WhileExpr:
		return Value{}, b.lowerWhile(n)

	case *ast.ForExpr:
		return Value{}, b.lowerFor(n)

	case *ast.MatchExpr:
		return Value{}, b.lowerMatch(n)

	case *ast.ClosureCreate:
		var caps []Value
		for _, c := range n.Captures {
			v, err := b.lowerExpr(c)
			if err != nil {
				return Value{}, err
			}
			caps = append(caps, v)
		}
		return b.emit(Inst{Op: OpMakeClosure, StringVal: n.FnName, Args: caps}), nil

	case *ast.SpawnExpr:
		closureVal, err := b.lowerExpr(n.Callee)
		if err != nil {
			return Value{}, err
		}
		return b.emit(Inst{Op: OpTaskSpawn, Args: []Value{closureVal}}), nil

	case *ast.ScopeExpr:
		return Value{}, b.lowerBlock(n.Body)

	case *ast.RaiseExpr:
		var args []Value
		for _, f := range n.Args {
			v, err := b.lowerExpr(f.Value)
			if err != nil {
				return Value{}, err
			}
			args = append(args, v)
		}
		b.emit(Inst{Op: OpRaise, ErrorName: n.ErrorName, Args: args})
		b.cur.Insts = append(b.cur.Insts, Inst{Op: OpRet})
		return Value{}, nil

	case *ast.CatchExpr:
		return b.lowerCatch(n)

	case *ast.PropagateExpr:
		v, err := b.lowerExpr(n.Subject)
		if err != nil {
			return Value{}, err
		}
		b.emit(Inst{Op: OpErrorCheck, Args: []Value{v}})
		return v, nil

	case *ast.ChanExpr:
		var cap Value
		if n.Capacity != nil {
			var err error
			cap, err = b.lowerExpr(n.Capacity)
			if err != nil {
				return Value{}, err
			}
		} else {
			cap = b.emit(Inst{Op: OpConstInt, IntVal: 1})
		}
		return b.emit(Inst{Op: OpChanMake, Args: []Value{cap}}), nil

	case *ast.SendExpr:
		tv, err := b.lowerExpr(n.Target)
		if err != nil {
			return Value{}, err
		}
		vv, err := b.lowerExpr(n.Value)
		if err != nil {
			return Value{}, err
		}
		op := OpChanSend
		if n.Try {
			op = OpChanTrySend
		}
		return b.emit(Inst{Op: op, Args: []Value{tv, vv}}), nil

	case *ast.RecvExpr:
		tv, err := b.lowerExpr(n.Target)
		if err != nil {
			return Value{}, err
		}
		op := OpChanRecv
		if n.Try {
			op = OpChanTryRecv
		}
		return b.emit(Inst{Op: op, Args: []Value{tv}}), nil

	case *ast.CloseExpr:
		tv, err := b.lowerExpr(n.Target)
		if err != nil {
			return Value{}, err
		}
		b.emit(Inst{Op: OpChanClose, Args: []Value{tv}})
		return Value{}, nil

	case *ast.YieldExpr:
		var v Value
		if n.Value != nil {
			var err error
			v, err = b.lowerExpr(n.Value)
			if err != nil {
				return Value{}, err
			}
		}
		b.emit(Inst{Op: OpYield, Args: []Value{v}})
		return Value{}, nil

	case *ast.ReturnExpr:
		var v Value
		if n.Value != nil {
			var err error
			v, err = b.lowerExpr(n.Value)
			if err != nil {
				return Value{}, err
			}
		}
		b.emit(Inst{Op: OpRet, Args: []Value{v}})
		return Value{}, nil

	case *ast.BlockExpr:
		return Value{}, b.lowerBlock(n)

	default:
		return Value{}, fmt.Errorf("ir: unsupported expression %T", n)
	}
}

func (b *builder) lowerFString(n *ast.FStringLit) (Value, error) {
	var parts []Value
	for _, seg := range n.Segments {
		if seg.Expr != nil {
			v, err := b.lowerExpr(seg.Expr)
			if err != nil {
				return Value{}, err
			}
			parts = append(parts, v)
		} else {
			parts = append(parts, b.emit(Inst{Op: OpConstString, StringVal: seg.Text}))
		}
	}
	return b.emit(Inst{Op: OpStrConcat, Args: parts}), nil
}

func (b *builder) lowerCall(n *ast.CallExpr) (Value, error) {
	callee, err := b.lowerExpr(n.Callee)
	if err != nil {
		return Value{}, err
	}
	var args []Value
	for _, a := range n.Args {
		v, err := b.lowerExpr(a)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v)
	}
	return b.emit(Inst{Op: OpCall, Callee: callee, Args: args}), nil
}

func (b *builder) lowerStructLit(n *ast.StructLit) (Value, error) {
	var tag abi.Tag
	if n.TargetID != nil {
		if t, ok := b.tags.TagFor(*n.TargetID); ok {
			tag = t
		}
	}
	inst := Inst{Op: OpAlloc, Tag: tag, ClassName: n.ClassName}
	for _, f := range n.Fields {
		v, err := b.lowerExpr(f.Value)
		if err != nil {
			return Value{}, err
		}
		inst.Args = append(inst.Args, v)
	}
	result := b.emit(inst)
	// Invariant re-check after every struct-literal construction (spec.md
	// §4.10, "Contracts at codegen").
	b.emit(Inst{Op: OpInvariantCheck, Args: []Value{result}, ClassName: n.ClassName})
	return result, nil
}

func (b *builder) lowerEnumConstruct(n *ast.EnumConstructExpr) (Value, error) {
	var tag abi.Tag
	if n.TargetID != nil {
		if t, ok := b.tags.TagFor(*n.TargetID); ok {
			tag = t
		}
	}
	inst := Inst{Op: OpAlloc, Tag: tag, ClassName: n.EnumName, Field: n.Variant}
	for _, a := range n.Args {
		v, err := b.lowerExpr(a)
		if err != nil {
			return Value{}, err
		}
		inst.Args = append(inst.Args, v)
	}
	return b.emit(inst), nil
}

func (b *builder) lowerIf(n *ast.IfExpr) error {
	cond, err := b.lowerExpr(n.Cond)
	if err != nil {
		return err
	}
	thenBlk := b.newBlock("then")
	var elseBlk *Block
	joinBlk := b.newBlock("endif")

	condBr := Inst{Op: OpCondBr, Cond: cond, ThenBlock: thenBlk.Name, ElseBlock: joinBlk.Name}
	if n.Else != nil {
		elseBlk = b.newBlock("else")
		condBr.ElseBlock = elseBlk.Name
	}
	b.cur.Insts = append(b.cur.Insts, condBr)

	b.cur = thenBlk
	if err := b.lowerBlock(n.Then); err != nil {
		return err
	}
	if !b.terminated() {
		b.cur.Insts = append(b.cur.Insts, Inst{Op: OpBr, TargetBlock: joinBlk.Name})
	}

	if elseBlk != nil {
		b.cur = elseBlk
		switch e := n.Else.(type) {
		case *ast.BlockExpr:
			if err := b.lowerBlock(e); err != nil {
				return err
			}
		case *ast.IfExpr:
			if err := b.lowerIf(e); err != nil {
				return err
			}
		default:
			return fmt.Errorf("ir: unsupported else form %T", e)
		}
		if !b.terminated() {
			b.cur.Insts = append(b.cur.Insts, Inst{Op: OpBr, TargetBlock: joinBlk.Name})
		}
	}

	b.cur = joinBlk
	return nil
}

func (b *builder) lowerWhile(n *ast.WhileExpr) error {
	headBlk := b.newBlock("loop_head")
	bodyBlk := b.newBlock("loop_body")
	exitBlk := b.newBlock("loop_exit")

	b.cur.Insts = append(b.cur.Insts, Inst{Op: OpBr, TargetBlock: headBlk.Name})

	b.cur = headBlk
	cond, err := b.lowerExpr(n.Cond)
	if err != nil {
		return err
	}
	b.cur.Insts = append(b.cur.Insts, Inst{Op: OpCondBr, Cond: cond, ThenBlock: bodyBlk.Name, ElseBlock: exitBlk.Name})

	b.cur = bodyBlk
	if err := b.lowerBlock(n.Body); err != nil {
		return err
	}
	if !b.terminated() {
		b.cur.Insts = append(b.cur.Insts, Inst{Op: OpBr, TargetBlock: headBlk.Name})
	}

	b.cur = exitBlk
	return nil
}

// lowerFor lowers `for x in arr { ... }` to an index-counted loop, and
// `for x in recv { ... }` to a recv-and-break-on-ChannelClosed loop
// (spec.md §4.10, "Control flow").
func (b *builder) lowerFor(n *ast.ForExpr) error {
	iter, err := b.lowerExpr(n.Iterable)
	if err != nil {
		return err
	}

	_, isReceiver := n.Type.(*ast.ReceiverType)

	headBlk := b.newBlock("for_head")
	bodyBlk := b.newBlock("for_body")
	exitBlk := b.newBlock("for_exit")
	b.cur.Insts = append(b.cur.Insts, Inst{Op: OpBr, TargetBlock: headBlk.Name})

	b.cur = headBlk
	if isReceiver {
		elem := b.emit(Inst{Op: OpChanRecv, Args: []Value{iter}})
		b.emit(Inst{Op: OpErrorClear, ErrorName: "ChannelClosed"})
		b.locals[n.Binding] = elem
		b.cur.Insts = append(b.cur.Insts, Inst{Op: OpCondBr, Cond: elem, ThenBlock: bodyBlk.Name, ElseBlock: exitBlk.Name})
	} else {
		idx := b.emit(Inst{Op: OpConstInt, IntVal: 0})
		elem := b.emit(Inst{Op: OpIndexLoad, Args: []Value{iter, idx}})
		b.locals[n.Binding] = elem
		b.cur.Insts = append(b.cur.Insts, Inst{Op: OpCondBr, Cond: elem, ThenBlock: bodyBlk.Name, ElseBlock: exitBlk.Name})
	}

	b.cur = bodyBlk
	if err := b.lowerBlock(n.Body); err != nil {
		return err
	}
	if !b.terminated() {
		b.cur.Insts = append(b.cur.Insts, Inst{Op: OpBr, TargetBlock: headBlk.Name})
	}

	b.cur = exitBlk
	return nil
}

// lowerMatch compiles pattern dispatch to a switch on the discriminant word
// for enum patterns, or an equality-check chain otherwise (spec.md §4.10).
func (b *builder) lowerMatch(n *ast.MatchExpr) error {
	subj, err := b.lowerExpr(n.Subject)
	if err != nil {
		return err
	}

	joinBlk := b.newBlock("match_end")
	var sw Inst
	sw.Op = OpSwitch

	armBlocks := make([]*Block, len(n.Arms))
	for i, arm := range n.Arms {
		armBlk := b.newBlock("arm")
		armBlocks[i] = armBlk
		sw.Cases = append(sw.Cases, SwitchCase{TargetBlock: armBlk.Name, Default: arm.Wildcard})
	}
	sw.Args = []Value{subj}
	b.cur.Insts = append(b.cur.Insts, sw)

	for i, arm := range n.Arms {
		b.cur = armBlocks[i]
		if err := b.lowerExpr(arm.Body); err != nil {
			return err
		}
		if !b.terminated() {
			b.cur.Insts = append(b.cur.Insts, Inst{Op: OpBr, TargetBlock: joinBlk.Name})
		}
	}

	b.cur = joinBlk
	return nil
}

func (b *builder) lowerCatch(n *ast.CatchExpr) (Value, error) {
	v, err := b.lowerExpr(n.Subject)
	if err != nil {
		return Value{}, err
	}
	errName := n.ErrorName
	if n.Wildcard {
		errName = "*"
	}
	b.emit(Inst{Op: OpErrorClear, ErrorName: errName})
	if n.Handler != nil {
		return b.lowerExpr(n.Handler)
	}
	return v, nil
}

func binOpName(op ast.BinOp) string {
	switch op {
	case ast.OpAdd:
		return "add"
	case ast.OpSub:
		return "sub"
	case ast.OpMul:
		return "mul"
	case ast.OpDiv:
		return "div"
	case ast.OpMod:
		return "mod"
	case ast.OpEq:
		return "eq"
	case ast.OpNotEq:
		return "neq"
	case ast.OpLt:
		return "lt"
	case ast.OpLtEq:
		return "lte"
	case ast.OpGt:
		return "gt"
	case ast.OpGtEq:
		return "gte"
	case ast.OpAnd:
		return "and"
	case ast.OpOr:
		return "or"
	default:
		return "?"
	}
}

func unOpName(op ast.UnOp) string {
	switch op {
	case ast.OpNeg:
		return "neg"
	case ast.OpNot:
		return "not"
	default:
		return "?"
	}
}
