package ir

import (
	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/types"
)

// Builder emits instructions into one function, tracking the block
// currently being appended to.
type Builder struct {
	Program *Program
	Fn      *Function
	block   *BasicBlock
}

// NewBuilder returns a builder positioned at fn's entry block.
func NewBuilder(p *Program, fn *Function) *Builder {
	return &Builder{Program: p, Fn: fn, block: fn.Blocks[0]}
}

// SetBlock moves the insertion point to b; subsequent emits append there.
func (bd *Builder) SetBlock(b *BasicBlock) { bd.block = b }

// Block returns the block currently being appended to.
func (bd *Builder) Block() *BasicBlock { return bd.block }

type widthOps struct {
	constOp                                     Opcode
	add, sub, mul, div                          Opcode
	cmpEq, cmpNe, cmpLt, cmpLe, cmpGt, cmpGe     Opcode
}

func (bd *Builder) widthOpsFor(k types.Kind) widthOps {
	switch k {
	case types.KindI8:
		return widthOps{OpI8Const, OpI8Add, OpI8Sub, OpI8Mul, OpI8Div,
			OpI8CmpEq, OpI8CmpNe, OpI8CmpLt, OpI8CmpLe, OpI8CmpGt, OpI8CmpGe}
	case types.KindI16:
		return widthOps{OpI16Const, OpI16Add, OpI16Sub, OpI16Mul, OpI16Div,
			OpI16CmpEq, OpI16CmpNe, OpI16CmpLt, OpI16CmpLe, OpI16CmpGt, OpI16CmpGe}
	case types.KindI32:
		return widthOps{OpI32Const, OpI32Add, OpI32Sub, OpI32Mul, OpI32Div,
			OpI32CmpEq, OpI32CmpNe, OpI32CmpLt, OpI32CmpLe, OpI32CmpGt, OpI32CmpGe}
	case types.KindI64:
		return widthOps{OpI64Const, OpI64Add, OpI64Sub, OpI64Mul, OpI64Div,
			OpI64CmpEq, OpI64CmpNe, OpI64CmpLt, OpI64CmpLe, OpI64CmpGt, OpI64CmpGe}
	default:
		panic("ir: width operations only defined for i8/i16/i32/i64")
	}
}

// IntConst emits an integer constant of the given width. i1/i8/i16/i32
// embed the literal directly; i64 always indexes the program's I64Pool.
func (bd *Builder) IntConst(width types.Kind, lit int64) Value {
	if width == types.KindI1 {
		v := uint64(0)
		if lit != 0 {
			v = 1
		}
		return bd.Fn.emit(bd.block, packT1(OpI1Const, v))
	}
	if width == types.KindI64 {
		idx := len(bd.Program.I64Pool)
		bd.Program.I64Pool = append(bd.Program.I64Pool, lit)
		return bd.Fn.emit(bd.block, packT1(OpI64Const, uint64(idx)))
	}
	ops := bd.widthOpsFor(width)
	return bd.Fn.emit(bd.block, packT1(ops.constOp, uint64(lit)&(1<<48-1)))
}

// FloatConst emits an f64 constant, always via the program's F64Pool.
func (bd *Builder) FloatConst(lit float64) Value {
	idx := len(bd.Program.F64Pool)
	bd.Program.F64Pool = append(bd.Program.F64Pool, lit)
	return bd.Fn.emit(bd.block, packT1(OpF64Const, uint64(idx)))
}

func (bd *Builder) binOp(op Opcode, a, b Value) Value {
	return bd.Fn.emit(bd.block, packT2(op, a, b))
}

// Add/Sub/Mul/Div take the operand width explicitly — KHIR instructions
// do not carry an implicit "infer from operand" type, per §4.2.
func (bd *Builder) Add(width types.Kind, a, b Value) Value {
	return bd.binOp(bd.widthOpsFor(width).add, a, b)
}
func (bd *Builder) Sub(width types.Kind, a, b Value) Value {
	return bd.binOp(bd.widthOpsFor(width).sub, a, b)
}
func (bd *Builder) Mul(width types.Kind, a, b Value) Value {
	return bd.binOp(bd.widthOpsFor(width).mul, a, b)
}
func (bd *Builder) Div(width types.Kind, a, b Value) Value {
	return bd.binOp(bd.widthOpsFor(width).div, a, b)
}

// CmpOp selects which relation a comparison tests.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Cmp emits an integer comparison; the result is always i1.
func (bd *Builder) Cmp(width types.Kind, op CmpOp, a, b Value) Value {
	ops := bd.widthOpsFor(width)
	table := [...]Opcode{ops.cmpEq, ops.cmpNe, ops.cmpLt, ops.cmpLe, ops.cmpGt, ops.cmpGe}
	return bd.binOp(table[op], a, b)
}

func (bd *Builder) FAdd(a, b Value) Value { return bd.binOp(OpF64Add, a, b) }
func (bd *Builder) FSub(a, b Value) Value { return bd.binOp(OpF64Sub, a, b) }
func (bd *Builder) FMul(a, b Value) Value { return bd.binOp(OpF64Mul, a, b) }
func (bd *Builder) FDiv(a, b Value) Value { return bd.binOp(OpF64Div, a, b) }

// FCmp emits an f64 comparison; the result is always i1.
func (bd *Builder) FCmp(op CmpOp, a, b Value) Value {
	table := [...]Opcode{OpF64CmpEq, OpF64CmpNe, OpF64CmpLt, OpF64CmpLe, OpF64CmpGt, OpF64CmpGe}
	return bd.binOp(table[op], a, b)
}

// Lnot negates an i1 value. Open question resolved: lnot is defined only
// over i1 (see DESIGN.md) — callers narrowing an i8 flag must emit an
// explicit comparison against zero first.
func (bd *Builder) Lnot(a Value) Value {
	return bd.Fn.emit(bd.block, packT2(OpLnot, a, NoValue))
}

// Conv converts src to target, using kind to select the lowering rule
// the assembler backend applies (zero/sign extend, truncate, int<->float,
// or a no-op bitcast).
func (bd *Builder) Conv(target types.ID, kind ConvKind, src Value) Value {
	return bd.Fn.emit(bd.block, packT3(OpConv, src, uint8(kind), uint16(target)))
}

// Alloca reserves stack space sized for the pointee of ptrType (a
// pointer type) and returns a pointer value of that type.
func (bd *Builder) Alloca(ptrType types.ID) Value {
	return bd.Fn.emit(bd.block, packT3(OpAlloca, 0, 0, uint16(ptrType)))
}

// Load reads a value of type loaded from ptr.
func (bd *Builder) Load(loaded types.ID, ptr Value) Value {
	return bd.Fn.emit(bd.block, packT3(OpLoad, ptr, 0, uint16(loaded)))
}

// Store writes val to *ptr. Stores have no result type.
func (bd *Builder) Store(ptr, val Value) Value {
	return bd.Fn.emit(bd.block, packT2(OpStore, ptr, val))
}

// PtrCast reinterprets src (any pointer value, typically the untyped
// result of PtrAdd) as a pointer of type target.
func (bd *Builder) PtrCast(target types.ID, src Value) Value {
	return bd.Fn.emit(bd.block, packT3(OpPtrCast, src, 0, uint16(target)))
}

// PtrAdd advances an i8* by a byte offset. Its result is in the untyped
// set (§4.2, §8.1) and must be consumed by PtrCast before any other use.
func (bd *Builder) PtrAdd(ptr, byteOffset Value) Value {
	return bd.Fn.emit(bd.block, packT2(OpPtrAdd, ptr, byteOffset))
}

// FuncArg reads formal parameter idx, typed argType.
func (bd *Builder) FuncArg(argType types.ID, idx int) Value {
	return bd.Fn.emit(bd.block, packT3(OpFuncArg, instValue(uint32(idx)), 0, uint16(argType)))
}

// Nullptr produces a null pointer of the given pointer type.
func (bd *Builder) Nullptr(ptrType types.ID) Value {
	return bd.Fn.emit(bd.block, packT3(OpNullptr, 0, 0, uint16(ptrType)))
}

// CallArg stages argument idx for the CALL/CallIndirect that follows
// immediately after a contiguous run of CallArg instructions (§3.3).
func (bd *Builder) CallArg(idx int, v Value) {
	bd.Fn.emit(bd.block, packTcallArg(uint8(idx), v))
}

// Call invokes the function registered at funcIdx (Program.DeclareFunction),
// whose type is fnType. The caller must have emitted exactly arity
// CallArg instructions immediately beforehand.
func (bd *Builder) Call(fnType types.ID, funcIdx int) Value {
	return bd.Fn.emit(bd.block, packT3(OpCall, instValue(uint32(funcIdx)), 0, uint16(fnType)))
}

// CallIndirect invokes the function pointer value fnPtr, whose type is
// fnType.
func (bd *Builder) CallIndirect(fnType types.ID, fnPtr Value) Value {
	return bd.Fn.emit(bd.block, packT3(OpCallIndirect, fnPtr, 0, uint16(fnType)))
}

// Br unconditionally transfers control to target and terminates the
// current block.
func (bd *Builder) Br(target *BasicBlock) {
	bd.Fn.emit(bd.block, packT5(OpBr, 0, uint32(target.ID), 0))
}

// CondBr transfers control to ifTrue or ifFalse depending on cond (i1)
// and terminates the current block.
func (bd *Builder) CondBr(cond Value, ifTrue, ifFalse *BasicBlock) {
	bd.Fn.emit(bd.block, packT5(OpCondBr, cond, uint32(ifTrue.ID), uint32(ifFalse.ID)))
}

// Return terminates the current block with no value (void function).
func (bd *Builder) Return() {
	bd.Fn.emit(bd.block, packT1(OpReturn, 0))
}

// ReturnValue terminates the current block, returning v.
func (bd *Builder) ReturnValue(v Value) {
	bd.Fn.emit(bd.block, packT2(OpReturnValue, v, NoValue))
}

// TypeOf recovers the result type of a function-local value, following
// §4.2's rule table. It returns an UntypedFragment error for opcodes in
// the untyped set, and for terminators (which produce no value).
func (fn *Function) TypeOf(tm *types.Manager, v Value) (types.ID, error) {
	if v.IsConstant() {
		panic("ir: TypeOf called with a constant-pool value; use Program.ConstantType")
	}
	w := fn.Inst(v)
	op := w.Opcode()
	if op.IsUntyped() {
		return 0, errors.UntypedFragment(opcodeName(op))
	}

	switch op {
	case OpI1Const:
		return tm.I1(), nil
	case OpI8Const:
		return tm.I8(), nil
	case OpI16Const:
		return tm.I16(), nil
	case OpI32Const:
		return tm.I32(), nil
	case OpI64Const:
		return tm.I64(), nil
	case OpF64Const:
		return tm.F64(), nil
	case OpI8Add, OpI8Sub, OpI8Mul, OpI8Div:
		return tm.I8(), nil
	case OpI16Add, OpI16Sub, OpI16Mul, OpI16Div:
		return tm.I16(), nil
	case OpI32Add, OpI32Sub, OpI32Mul, OpI32Div:
		return tm.I32(), nil
	case OpI64Add, OpI64Sub, OpI64Mul, OpI64Div:
		return tm.I64(), nil
	case OpF64Add, OpF64Sub, OpF64Mul, OpF64Div:
		return tm.F64(), nil
	case OpLnot:
		return tm.I1(), nil
	case OpI8CmpEq, OpI8CmpNe, OpI8CmpLt, OpI8CmpLe, OpI8CmpGt, OpI8CmpGe,
		OpI16CmpEq, OpI16CmpNe, OpI16CmpLt, OpI16CmpLe, OpI16CmpGt, OpI16CmpGe,
		OpI32CmpEq, OpI32CmpNe, OpI32CmpLt, OpI32CmpLe, OpI32CmpGt, OpI32CmpGe,
		OpI64CmpEq, OpI64CmpNe, OpI64CmpLt, OpI64CmpLe, OpI64CmpGt, OpI64CmpGe,
		OpF64CmpEq, OpF64CmpNe, OpF64CmpLt, OpF64CmpLe, OpF64CmpGt, OpF64CmpGe:
		return tm.I1(), nil
	case OpConv, OpAlloca, OpLoad, OpPtrCast, OpFuncArg, OpNullptr, OpPhi:
		return types.ID(w.t3Type()), nil
	case OpCall, OpCallIndirect:
		result, _ := tm.FunctionSignature(types.ID(w.t3Type()))
		return result, nil
	case OpStore, OpBr, OpCondBr, OpReturn, OpReturnValue:
		return tm.Void(), nil
	default:
		panic("ir: TypeOf: unhandled opcode")
	}
}
