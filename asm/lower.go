package asm

import (
	"math"

	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

type blockFixup struct {
	at     int
	target int // block id, or -1 for the shared epilogue
}

// callFixup records a direct-call CallRel32 site within the shared
// buffer a multi-function compile writes, along with the callee's
// function-table index — resolved against labelOffsets once every
// function's entry offset in the buffer is known (spec §4.3's
// declarations-then-bodies phasing).
type callFixup struct {
	at      int
	funcIdx int
}

// SymbolResolver maps an external function's declared name (ir.Function.
// Name, for a function with External set — see runtime.
// DeclareExternalFunctions) to its absolute runtime address. Used to
// resolve calls to functions the program declares but does not define,
// such as the runtime library's hash-table and skinner-join entry
// points.
type SymbolResolver func(name string) (uintptr, bool)

// NoExternalSymbols is the default resolver: every external symbol is
// reported unresolved, so a program that calls one without supplying a
// real resolver fails lowering with a clear error instead of branching
// into an unpatched placeholder.
func NoExternalSymbols(name string) (uintptr, bool) { return 0, false }

// lowering carries the mutable state of one function's code generation
// pass: the buffer being written, the chosen register assignment, and
// the backpatch lists resolved once every block's start offset is known.
type lowering struct {
	buf          *CodeBuffer
	prog         *ir.Program
	fn           *ir.Function
	assign       *Assignment
	blockOffsets []int
	fixups       []blockFixup

	// data resolves constant-pool operands (globals, char-array and
	// aggregate constants) to absolute addresses (spec §4.3.1). Always
	// non-nil: Lower and CompileProgram both build one before lowering
	// any function body.
	data *DataSection

	// labelOffsets maps a function-table index to its entry offset
	// within buf, for functions whose body is compiled into this same
	// buffer — populated with just this function's own index (self
	// offset 0) by Lower, and with every internal function's offset by
	// CompileProgram. A direct call whose callee is internal but absent
	// from this map cannot be resolved in this compile unit and is a
	// lowering error, not a silently-unpatched call.
	labelOffsets map[int]int
	resolveExternal SymbolResolver
	callFixups      []callFixup

	// allocaOffsets and scratchF64Offset live below assign.FrameSize in
	// the stack frame: alloca reserves real storage sized off its
	// pointee type (the generic per-value spill slot sizing in
	// stackspill.go/linearscan.go only accounts for the 8-byte pointer
	// alloca itself produces), and f64 constants are staged through one
	// shared scratch slot on their way from an immediate-loaded GPR into
	// an xmm register.
	allocaOffsets   map[ir.Value]int
	scratchF64Offset int
	totalFrameSize   int
}

// Lower assembles fn into executable machine code using the given
// register allocation strategy, returning the code buffer with the
// program's data section attached; it is not executable until Finalize
// is called on it. This is the JIT backend's entry point (spec §5) for a single,
// self-contained function: a direct call to any function other than fn
// itself cannot be resolved here (see CompileProgram, which lowers every
// function of a program into one shared buffer and can).
func Lower(prog *ir.Program, fn *ir.Function, ra RegAlloc) (*CodeBuffer, error) {
	data, err := BuildDataSection(prog)
	if err != nil {
		return nil, err
	}

	labels := map[int]int{}
	if idx, ok := prog.FunctionIndex(fn.Name); ok {
		labels[idx] = 0
	}

	buf := NewCodeBuffer()
	if err := lowerFunctionBody(buf, prog, fn, ra, data, labels, NoExternalSymbols); err != nil {
		return nil, err
	}
	buf.AttachData(data)
	return buf, nil
}

// lowerFunctionBody lowers fn's instructions into buf starting at
// whatever offset buf already holds, patching its own internal
// block/epilogue jumps immediately. Direct calls to internal functions
// are patched here too, against the offsets already in labels (a target
// missing from labels is an UnknownName error), since a standalone Lower
// has no later function to place; calls to an external symbol are resolved immediately via
// resolveExternal since their address never depends on this buffer's
// layout.
func lowerFunctionBody(buf *CodeBuffer, prog *ir.Program, fn *ir.Function, ra RegAlloc, data *DataSection, labels map[int]int, resolveExternal SymbolResolver) error {
	fixups, err := lowerFunctionBodyAt(buf, prog, fn, ra, data, labels, resolveExternal)
	if err != nil {
		return err
	}
	// A standalone Lower call has no later function to place, so any
	// recorded call fixup must already target something inside this
	// same buffer (a self-recursive call) — patch it now.
	for _, fx := range fixups {
		off, ok := labels[fx.funcIdx]
		if !ok {
			return errors.UnknownName(errors.PhaseLower, fn.Name+": unresolved call target")
		}
		buf.PatchRel32(fx.at, off)
	}
	return nil
}

// lowerFunctionBodyAt emits fn's prologue, body and epilogue into buf,
// resolving block-local jumps immediately and returning the list of
// direct-call sites that still need a callee offset patched in (the
// caller decides when every callee's offset is known).
func lowerFunctionBodyAt(buf *CodeBuffer, prog *ir.Program, fn *ir.Function, ra RegAlloc, data *DataSection, labels map[int]int, resolveExternal SymbolResolver) ([]callFixup, error) {
	assign, err := ra.Allocate(fn, prog.Types)
	if err != nil {
		return nil, errors.BackendBuildFailed("jit", err)
	}

	lw := &lowering{
		buf:             buf,
		prog:            prog,
		fn:              fn,
		assign:          assign,
		blockOffsets:    make([]int, len(fn.Blocks)),
		data:            data,
		labelOffsets:    labels,
		resolveExternal: resolveExternal,
	}
	lw.layoutAllocas()

	subAt := emitPrologue(lw.buf, lw.totalFrameSize)

	for _, b := range fn.Blocks {
		lw.blockOffsets[b.ID] = lw.buf.Len()
		for _, idx := range b.Instrs {
			if err := lw.lowerInst(ir.LocalValue(uint32(idx)), fn.Instrs[idx]); err != nil {
				return nil, err
			}
		}
	}

	epilogueOffset := lw.buf.Len()
	emitEpilogue(lw.buf)

	for _, fx := range lw.fixups {
		target := epilogueOffset
		if fx.target >= 0 {
			target = lw.blockOffsets[fx.target]
		}
		lw.buf.PatchRel32(fx.at, target)
	}
	patchFrameSize(lw.buf, subAt, lw.totalFrameSize)

	return lw.callFixups, nil
}

// layoutAllocas reserves stack space for every alloca in fn beyond the
// register allocator's spill area, and one shared slot used to stage
// f64 constant bit patterns between a GPR immediate load and an xmm
// move (there is no single-instruction mov-immediate-to-xmm on x86-64).
func (lw *lowering) layoutAllocas() {
	lw.allocaOffsets = make(map[ir.Value]int)
	offset := lw.assign.FrameSize

	for i, w := range lw.fn.Instrs {
		if w.Opcode() != ir.OpAlloca {
			continue
		}
		ptrType := types.ID(w.T3Type())
		pointee := lw.prog.Types.ElemType(ptrType)
		l := lw.prog.Types.Layout(pointee)
		size := int(l.Size)
		if size == 0 {
			size = 8
		}
		offset += size
		offset = alignUp(offset, int(l.Align))
		lw.allocaOffsets[ir.LocalValue(uint32(i))] = -offset
	}

	offset += 8
	lw.scratchF64Offset = -offset
	lw.totalFrameSize = alignUp(offset, 16)
}

// loadInt materializes v's current value into a general-purpose
// register: its assigned register if it has one, a reload from its
// stack slot if it's a spilled function-local value, or — for a
// constant-pool value (a global reference, a struct/array constant, a
// char-array constant, or a bare i64 literal) — an immediate load of its
// resolved value or absolute address (spec §4.3.1).
func (lw *lowering) loadInt(v ir.Value, scratch Register) Register {
	if v.IsConstant() {
		lw.buf.MovRegImm64(scratch, lw.constIntBits(v))
		return scratch
	}
	if r, ok := lw.assign.IntReg[v]; ok {
		return r
	}
	lw.buf.MovRegMem(scratch, int32(lw.assign.StackSlot[v]))
	return scratch
}

// constIntBits resolves a constant-pool value to the 64-bit pattern an
// integer/pointer register should hold: the literal itself for an
// i64_const, or the data section's absolute address for anything that
// names storage (spec §4.3.1 — globals and aggregate/char-array
// constants resolve to relocated label addresses, not inline bytes).
func (lw *lowering) constIntBits(v ir.Value) uint64 {
	w := lw.prog.ConstantPool[v.Index()]
	switch w.Opcode() {
	case ir.OpI64Const:
		return uint64(lw.prog.I64Pool[w.PoolIndex()])
	case ir.OpGlobalRef:
		return uint64(lw.data.GlobalAddr(int(w.T3Arg().Index())))
	case ir.OpGlobalCharArrayConst, ir.OpStructConst, ir.OpArrayConst:
		addr, _ := lw.data.ConstAddr(int(v.Index()))
		return uint64(addr)
	default:
		return 0
	}
}

// loadFloat materializes v's current value into an xmm register,
// analogous to loadInt. A constant-pool f64 literal is staged through
// intScratch2 (there is no single-instruction mov-immediate-to-xmm on
// x86-64); intScratch2 never holds a value callers of loadFloat still
// need live at the point they call it.
func (lw *lowering) loadFloat(v ir.Value, scratch XMM) XMM {
	if v.IsConstant() {
		w := lw.prog.ConstantPool[v.Index()]
		if w.Opcode() == ir.OpF64Const {
			lit := lw.prog.F64Pool[w.PoolIndex()]
			lw.buf.MovRegImm64(intScratch2, math.Float64bits(lit))
			lw.buf.MovMemReg(int32(lw.scratchF64Offset), intScratch2)
			lw.buf.MovsdLoad(scratch, int32(lw.scratchF64Offset))
		}
		return scratch
	}
	if r, ok := lw.assign.FloatReg[v]; ok {
		return r
	}
	lw.buf.MovsdLoad(scratch, int32(lw.assign.StackSlot[v]))
	return scratch
}

// storeInt writes a computed value (currently in src) to wherever dst is
// assigned to live.
func (lw *lowering) storeInt(dst ir.Value, src Register) {
	if r, ok := lw.assign.IntReg[dst]; ok {
		if r != src {
			lw.buf.MovRegReg(r, src)
		}
		return
	}
	lw.buf.MovMemReg(int32(lw.assign.StackSlot[dst]), src)
}

func (lw *lowering) storeFloat(dst ir.Value, src XMM) {
	if r, ok := lw.assign.FloatReg[dst]; ok {
		if r != src {
			lw.buf.MovsdRegReg(r, src)
		}
		return
	}
	lw.buf.MovsdStore(int32(lw.assign.StackSlot[dst]), src)
}

func widthCmpCond(op ir.Opcode) (Condition, bool) {
	switch op {
	case ir.OpI8CmpEq, ir.OpI16CmpEq, ir.OpI32CmpEq, ir.OpI64CmpEq, ir.OpF64CmpEq:
		return CondE, true
	case ir.OpI8CmpNe, ir.OpI16CmpNe, ir.OpI32CmpNe, ir.OpI64CmpNe, ir.OpF64CmpNe:
		return CondNE, true
	case ir.OpI8CmpLt, ir.OpI16CmpLt, ir.OpI32CmpLt, ir.OpI64CmpLt, ir.OpF64CmpLt:
		return CondL, true
	case ir.OpI8CmpLe, ir.OpI16CmpLe, ir.OpI32CmpLe, ir.OpI64CmpLe, ir.OpF64CmpLe:
		return CondLE, true
	case ir.OpI8CmpGt, ir.OpI16CmpGt, ir.OpI32CmpGt, ir.OpI64CmpGt, ir.OpF64CmpGt:
		return CondG, true
	case ir.OpI8CmpGe, ir.OpI16CmpGe, ir.OpI32CmpGe, ir.OpI64CmpGe, ir.OpF64CmpGe:
		return CondGE, true
	default:
		return 0, false
	}
}

func isFloatOpcode(op ir.Opcode) bool {
	switch op {
	case ir.OpF64Const, ir.OpF64Add, ir.OpF64Sub, ir.OpF64Mul, ir.OpF64Div,
		ir.OpF64CmpEq, ir.OpF64CmpNe, ir.OpF64CmpLt, ir.OpF64CmpLe, ir.OpF64CmpGt, ir.OpF64CmpGe:
		return true
	default:
		return false
	}
}

func (lw *lowering) lowerInst(v ir.Value, w ir.Inst) error {
	op := w.Opcode()

	switch op {
	case ir.OpI1Const, ir.OpI8Const, ir.OpI16Const, ir.OpI32Const:
		lw.buf.MovRegImm64(intScratch1, uint64(w.SignedConstant()))
		lw.storeInt(v, intScratch1)
	case ir.OpI64Const:
		lit := lw.prog.I64Pool[w.PoolIndex()]
		lw.buf.MovRegImm64(intScratch1, uint64(lit))
		lw.storeInt(v, intScratch1)
	case ir.OpF64Const:
		lit := lw.prog.F64Pool[w.PoolIndex()]
		lw.buf.MovRegImm64(intScratch1, math.Float64bits(lit))
		lw.buf.MovMemReg(int32(lw.scratchF64Offset), intScratch1)
		lw.buf.MovsdLoad(floatScratch1, int32(lw.scratchF64Offset))
		lw.storeFloat(v, floatScratch1)
	case ir.OpI8Add, ir.OpI16Add, ir.OpI32Add, ir.OpI64Add:
		lw.lowerIntBinOp(v, w, func(d, s Register) { lw.buf.AddRegReg(d, s) })
	case ir.OpI8Sub, ir.OpI16Sub, ir.OpI32Sub, ir.OpI64Sub:
		lw.lowerIntBinOp(v, w, func(d, s Register) { lw.buf.SubRegReg(d, s) })
	case ir.OpI8Mul, ir.OpI16Mul, ir.OpI32Mul, ir.OpI64Mul:
		lw.lowerIntBinOp(v, w, func(d, s Register) { lw.buf.ImulRegReg(d, s) })
	case ir.OpI8Div, ir.OpI16Div, ir.OpI32Div, ir.OpI64Div:
		lw.lowerDiv(v, w)
	case ir.OpF64Add:
		lw.lowerFloatBinOp(v, w, func(d, s XMM) { lw.buf.AddsdRegReg(d, s) })
	case ir.OpF64Sub:
		lw.lowerFloatBinOp(v, w, func(d, s XMM) { lw.buf.SubsdRegReg(d, s) })
	case ir.OpF64Mul:
		lw.lowerFloatBinOp(v, w, func(d, s XMM) { lw.buf.MulsdRegReg(d, s) })
	case ir.OpF64Div:
		lw.lowerFloatBinOp(v, w, func(d, s XMM) { lw.buf.DivsdRegReg(d, s) })
	case ir.OpLnot:
		a := lw.loadInt(w.Arg0(), intScratch1)
		lw.buf.MovRegImm64(intScratch2, 1)
		lw.buf.CmpRegReg(a, intScratch2)
		lw.buf.SetCC(CondNE, intScratch1)
		lw.storeInt(v, intScratch1)
	default:
		if cond, ok := widthCmpCond(op); ok {
			lw.lowerCompare(v, w, cond)
			return nil
		}
		return lw.lowerMiscInst(v, w)
	}
	return nil
}

func (lw *lowering) lowerIntBinOp(v ir.Value, w ir.Inst, emit func(dst, src Register)) {
	a := lw.loadInt(w.Arg0(), intScratch1)
	b := lw.loadInt(w.Arg1(), intScratch2)
	emit(a, b)
	lw.storeInt(v, a)
}

func (lw *lowering) lowerFloatBinOp(v ir.Value, w ir.Inst, emit func(dst, src XMM)) {
	a := lw.loadFloat(w.Arg0(), floatScratch1)
	b := lw.loadFloat(w.Arg1(), floatScratch2)
	emit(a, b)
	lw.storeFloat(v, a)
}

func (lw *lowering) lowerDiv(v ir.Value, w ir.Inst) {
	a := lw.loadInt(w.Arg0(), RAX)
	if a != RAX {
		lw.buf.MovRegReg(RAX, a)
	}
	lw.buf.Cqo()
	b := lw.loadInt(w.Arg1(), intScratch2)
	lw.buf.IdivReg(b)
	lw.storeInt(v, RAX)
}

func (lw *lowering) lowerCompare(v ir.Value, w ir.Inst, cond Condition) {
	if isFloatOpcode(w.Opcode()) {
		a := lw.loadFloat(w.Arg0(), floatScratch1)
		b := lw.loadFloat(w.Arg1(), floatScratch2)
		lw.buf.ComisdRegReg(a, b)
	} else {
		a := lw.loadInt(w.Arg0(), intScratch1)
		b := lw.loadInt(w.Arg1(), intScratch2)
		lw.buf.CmpRegReg(a, b)
	}
	lw.buf.SetCC(cond, intScratch1)
	lw.storeInt(v, intScratch1)
}

// lowerMiscInst handles memory, conversion, call, control-flow and phi
// instructions — the T3/T5/Tcall_arg-format opcodes not covered by the
// arithmetic/comparison dispatch above.
func (lw *lowering) lowerMiscInst(v ir.Value, w ir.Inst) error {
	switch w.Opcode() {
	case ir.OpAlloca:
		lw.buf.LeaRegMem(intScratch1, int32(lw.allocaOffsets[v]))
		lw.storeInt(v, intScratch1)
	case ir.OpLoad:
		ptr := lw.loadInt(w.T3Arg(), intScratch1)
		typ := types.ID(w.T3Type())
		if lw.prog.Types.Kind(typ) == types.KindF64 {
			lw.buf.MovsdLoadIndirect(floatScratch1, ptr, 0)
			lw.storeFloat(v, floatScratch1)
		} else {
			lw.buf.MovRegIndirect(intScratch2, ptr, 0)
			lw.storeInt(v, intScratch2)
		}
	case ir.OpStore:
		ptr := lw.loadInt(w.Arg0(), intScratch1)
		if isFloatValue(lw.prog, lw.fn, w.Arg1()) {
			val := lw.loadFloat(w.Arg1(), floatScratch1)
			lw.buf.MovsdStoreIndirect(ptr, 0, val)
		} else {
			val := lw.loadInt(w.Arg1(), intScratch2)
			lw.buf.MovIndirectReg(ptr, 0, val)
		}
	case ir.OpPtrCast, ir.OpConv:
		src := lw.loadInt(w.T3Arg(), intScratch1)
		lw.storeInt(v, src)
	case ir.OpPtrAdd:
		ptr := lw.loadInt(w.Arg0(), intScratch1)
		off := lw.loadInt(w.Arg1(), intScratch2)
		lw.buf.AddRegReg(ptr, off)
		lw.storeInt(v, ptr)
	case ir.OpNullptr:
		lw.buf.MovRegImm64(intScratch1, 0)
		lw.storeInt(v, intScratch1)
	case ir.OpFuncArg:
		idx := int(w.T3Arg().Index())
		if idx < len(sysvIntArgRegs) {
			lw.storeInt(v, sysvIntArgRegs[idx])
		}
	case ir.OpCallArg:
		// Consumed by the following Call/CallIndirect, which walks
		// backward over the preceding contiguous run of call_arg
		// instructions to collect the callee's arguments (§3.3).
	case ir.OpCall, ir.OpCallIndirect:
		return lw.lowerCall(v, w)
	case ir.OpPhi:
		// Slot already has a home (register or stack); phi_member
		// lowering below writes into it from each predecessor.
	case ir.OpPhiMember:
		phi, incoming := w.Arg0(), w.Arg1()
		r := lw.loadInt(incoming, intScratch1)
		lw.storeInt(phi, r)
	case ir.OpBr:
		at := lw.buf.JmpRel32()
		lw.fixups = append(lw.fixups, blockFixup{at: at, target: int(w.T5BlockA())})
	case ir.OpCondBr:
		cond := lw.loadInt(w.T5Arg(), intScratch1)
		lw.buf.MovRegImm64(intScratch2, 0)
		lw.buf.CmpRegReg(cond, intScratch2)
		at := lw.buf.JccRel32(CondNE)
		lw.fixups = append(lw.fixups, blockFixup{at: at, target: int(w.T5BlockA())})
		at2 := lw.buf.JmpRel32()
		lw.fixups = append(lw.fixups, blockFixup{at: at2, target: int(w.T5BlockB())})
	case ir.OpReturn:
		at := lw.buf.JmpRel32()
		lw.fixups = append(lw.fixups, blockFixup{at: at, target: -1})
	case ir.OpReturnValue:
		retVal := w.Arg0()
		if _, ok := lw.assign.FloatReg[retVal]; ok {
			lw.loadFloat(retVal, XMM0)
		} else if lw.prog != nil {
			r := lw.loadInt(retVal, RAX)
			if r != RAX {
				lw.buf.MovRegReg(RAX, r)
			}
		}
		at := lw.buf.JmpRel32()
		lw.fixups = append(lw.fixups, blockFixup{at: at, target: -1})
	}
	return nil
}

// lowerCall packs the preceding run of call_arg instructions into the
// SysV argument registers, emits the call, and routes the result into
// the value's assigned location. Only the six integer and eight float
// argument registers are filled: arguments beyond them are not passed,
// on the stack or otherwise.
//
// A direct call (OpCall) resolves its target one of two ways (spec
// §4.3.5): if the callee is declared external (runtime.
// DeclareExternalFunctions), resolveExternal supplies its absolute
// address, loaded into a scratch register and called indirectly (its
// address may lie outside a JIT page's ±2GB CallRel32 range); if it is
// an internal function compiled into this same buffer, the call site is
// emitted as a CallRel32 placeholder and recorded as a callFixup,
// patched once every function's offset in the buffer is known. An
// internal callee absent from labelOffsets — i.e. not part of this
// compile unit — is a lowering error, not a silently-unpatched call.
func (lw *lowering) lowerCall(v ir.Value, w ir.Inst) error {
	args := lw.precedingCallArgs(v)
	intIdx, floatIdx := 0, 0
	for _, a := range args {
		if isFloatValue(lw.prog, lw.fn, a) {
			if floatIdx < len(sysvFloatArgRegs) {
				src := lw.loadFloat(a, floatScratch1)
				lw.buf.MovsdRegReg(sysvFloatArgRegs[floatIdx], src)
				floatIdx++
			}
		} else {
			if intIdx < len(sysvIntArgRegs) {
				src := lw.loadInt(a, intScratch1)
				lw.buf.MovRegReg(sysvIntArgRegs[intIdx], src)
				intIdx++
			}
		}
	}

	if w.Opcode() == ir.OpCallIndirect {
		fnPtr := lw.loadInt(w.T3Arg(), intScratch2)
		lw.buf.CallReg(fnPtr)
	} else {
		funcIdx := int(w.T3Arg().Index())
		callee := lw.prog.Functions[funcIdx]
		if callee.External {
			addr, ok := lw.resolveExternal(callee.Name)
			if !ok {
				return errors.UnknownName(errors.PhaseLower, callee.Name)
			}
			lw.buf.MovRegImm64(intScratch2, uint64(addr))
			lw.buf.CallReg(intScratch2)
		} else if _, ok := lw.labelOffsets[funcIdx]; ok {
			at := lw.buf.CallRel32()
			lw.callFixups = append(lw.callFixups, callFixup{at: at, funcIdx: funcIdx})
		} else {
			return errors.UnknownName(errors.PhaseLower, callee.Name+": not part of this compile unit")
		}
	}

	result, _ := lw.prog.Types.FunctionSignature(types.ID(w.T3Type()))
	if lw.prog.Types.Kind(result) == types.KindF64 {
		lw.storeFloat(v, XMM0)
	} else if lw.prog.Types.Kind(result) != types.KindVoid {
		lw.storeInt(v, RAX)
	}
	return nil
}

// precedingCallArgs walks backward from v over the contiguous run of
// call_arg instructions feeding it, returning them in argument order.
func (lw *lowering) precedingCallArgs(v ir.Value) []ir.Value {
	var rev []ir.Value
	idx := int(v.Index()) - 1
	for idx >= 0 {
		w := lw.fn.Instrs[idx]
		if w.Opcode() != ir.OpCallArg {
			break
		}
		rev = append(rev, w.CallArgValue())
		idx--
	}
	args := make([]ir.Value, len(rev))
	for i, a := range rev {
		args[len(rev)-1-i] = a
	}
	return args
}
