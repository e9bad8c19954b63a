package asm

// This file implements the minimal x86-64 SysV encoder the lowering
// pass in lower.go drives: REX-prefixed register/register and
// register/memory forms, and the handful of opcodes KHIR's instruction
// set needs (arithmetic, compares+setcc, moves, stack frame
// management, and control transfer).

func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | rm&7
}

func regExt(r Register) bool { return r >= R8 }
func regLow(r Register) byte { return byte(r) & 7 }

func xmmExt(x XMM) bool { return x >= XMM8 }
func xmmLow(x XMM) byte { return byte(x) & 7 }

// MovRegImm64 emits `mov reg, imm64`.
func (b *CodeBuffer) MovRegImm64(dst Register, imm uint64) {
	b.emit(rex(true, false, false, regExt(dst)), 0xB8|regLow(dst))
	b.emit64(imm)
}

// MovRegReg emits `mov dst, src` (64-bit).
func (b *CodeBuffer) MovRegReg(dst, src Register) {
	b.emit(rex(true, regExt(src), false, regExt(dst)), 0x89, modrm(3, regLow(src), regLow(dst)))
}

// MovRegMem emits `mov dst, [RBP+disp32]`.
func (b *CodeBuffer) MovRegMem(dst Register, disp int32) {
	b.MovRegIndirect(dst, RBP, disp)
}

// LeaRegMem emits `lea dst, [RBP+disp32]`.
func (b *CodeBuffer) LeaRegMem(dst Register, disp int32) {
	b.emit(rex(true, regExt(dst), false, false), 0x8D, modrm(2, regLow(dst), 5))
	b.emit32(uint32(disp))
}

// MovMemReg emits `mov [RBP+disp32], src`.
func (b *CodeBuffer) MovMemReg(disp int32, src Register) {
	b.MovIndirectReg(RBP, disp, src)
}

// MovRegIndirect emits `mov dst, [base+disp32]` for an arbitrary base
// register (used to dereference pointer values, as opposed to the
// frame-relative spill-slot access MovRegMem provides).
func (b *CodeBuffer) MovRegIndirect(dst, base Register, disp int32) {
	b.emit(rex(true, regExt(dst), false, regExt(base)), 0x8B, modrm(2, regLow(dst), regLow(base)))
	b.emit32(uint32(disp))
}

// MovIndirectReg emits `mov [base+disp32], src`.
func (b *CodeBuffer) MovIndirectReg(base Register, disp int32, src Register) {
	b.emit(rex(true, regExt(src), false, regExt(base)), 0x89, modrm(2, regLow(src), regLow(base)))
	b.emit32(uint32(disp))
}

// AddRegReg / SubRegReg / ImulRegReg / CmpRegReg: `op dst, src`.
func (b *CodeBuffer) AddRegReg(dst, src Register) { b.arith(0x01, dst, src) }
func (b *CodeBuffer) SubRegReg(dst, src Register) { b.arith(0x29, dst, src) }
func (b *CodeBuffer) CmpRegReg(dst, src Register) { b.arith(0x39, dst, src) }

func (b *CodeBuffer) arith(opcode byte, dst, src Register) {
	b.emit(rex(true, regExt(src), false, regExt(dst)), opcode, modrm(3, regLow(src), regLow(dst)))
}

// ImulRegReg emits `imul dst, src` (two-operand form, 0F AF).
func (b *CodeBuffer) ImulRegReg(dst, src Register) {
	b.emit(rex(true, regExt(dst), false, regExt(src)), 0x0F, 0xAF, modrm(3, regLow(dst), regLow(src)))
}

// Cqo emits `cqo` (sign-extend RAX into RDX:RAX), required before idiv.
func (b *CodeBuffer) Cqo() {
	b.emit(rex(true, false, false, false), 0x99)
}

// IdivReg emits `idiv reg` (signed RDX:RAX / reg -> RAX quotient, RDX remainder).
func (b *CodeBuffer) IdivReg(reg Register) {
	b.emit(rex(true, false, false, regExt(reg)), 0xF7, modrm(3, 7, regLow(reg)))
}

// SetCC emits `setCC al`-style byte-set from the last comparison's
// flags, using the one-byte destination register's low 8 bits.
type Condition byte

const (
	CondE Condition = iota
	CondNE
	CondL
	CondLE
	CondG
	CondGE
)

var setccOpcodes = [...]byte{0x94, 0x95, 0x9C, 0x9E, 0x9F, 0x9D}
var jccOpcodes = [...]byte{0x84, 0x85, 0x8C, 0x8E, 0x8F, 0x8D}

// SetCC emits `setCC dst8` then zero-extends dst into its 64-bit form.
func (b *CodeBuffer) SetCC(cond Condition, dst Register) {
	b.emit(rex(false, false, false, regExt(dst)), 0x0F, setccOpcodes[cond], modrm(3, 0, regLow(dst)))
	b.emit(rex(true, regExt(dst), false, regExt(dst)), 0x0F, 0xB6, modrm(3, regLow(dst), regLow(dst)))
}

// JccRel32 emits a near conditional jump with a placeholder displacement
// and returns the byte offset to patch via PatchRel32.
func (b *CodeBuffer) JccRel32(cond Condition) int {
	b.emit(0x0F, jccOpcodes[cond])
	at := b.Len()
	b.emit32(0)
	return at
}

// JmpRel32 emits a near unconditional jump with a placeholder
// displacement.
func (b *CodeBuffer) JmpRel32() int {
	b.emit(0xE9)
	at := b.Len()
	b.emit32(0)
	return at
}

// CallRel32 emits a near relative call with a placeholder displacement.
func (b *CodeBuffer) CallRel32() int {
	b.emit(0xE8)
	at := b.Len()
	b.emit32(0)
	return at
}

// CallReg emits `call reg` (indirect, register-addressed).
func (b *CodeBuffer) CallReg(reg Register) {
	if regExt(reg) {
		b.emit(rex(false, false, false, true))
	}
	b.emit(0xFF, modrm(3, 2, regLow(reg)))
}

// PushReg / PopReg: callee-saved register save/restore.
func (b *CodeBuffer) PushReg(reg Register) {
	if regExt(reg) {
		b.emit(rex(false, false, false, true))
	}
	b.emit(0x50 | regLow(reg))
}

func (b *CodeBuffer) PopReg(reg Register) {
	if regExt(reg) {
		b.emit(rex(false, false, false, true))
	}
	b.emit(0x58 | regLow(reg))
}

// SubRspImm32 / AddRspImm32 adjust the stack pointer for the local frame.
func (b *CodeBuffer) SubRspImm32(imm uint32) {
	b.emit(rex(true, false, false, false), 0x81, modrm(3, 5, byte(RSP)))
	b.emit32(imm)
}

func (b *CodeBuffer) AddRspImm32(imm uint32) {
	b.emit(rex(true, false, false, false), 0x81, modrm(3, 0, byte(RSP)))
	b.emit32(imm)
}

// Ret emits `ret`.
func (b *CodeBuffer) Ret() { b.emit(0xC3) }

// --- SSE2 scalar double-precision ---

func (b *CodeBuffer) sse(prefix byte, opcode byte, dst, src XMM) {
	b.emit(prefix)
	if xmmExt(dst) || xmmExt(src) {
		b.emit(rex(false, xmmExt(dst), false, xmmExt(src)))
	}
	b.emit(0x0F, opcode, modrm(3, xmmLow(dst), xmmLow(src)))
}

func (b *CodeBuffer) MovsdRegReg(dst, src XMM) { b.sse(0xF2, 0x10, dst, src) }
func (b *CodeBuffer) AddsdRegReg(dst, src XMM) { b.sse(0xF2, 0x58, dst, src) }
func (b *CodeBuffer) SubsdRegReg(dst, src XMM) { b.sse(0xF2, 0x5C, dst, src) }
func (b *CodeBuffer) MulsdRegReg(dst, src XMM) { b.sse(0xF2, 0x59, dst, src) }
func (b *CodeBuffer) DivsdRegReg(dst, src XMM) { b.sse(0xF2, 0x5E, dst, src) }
func (b *CodeBuffer) ComisdRegReg(a, b2 XMM)   { b.sse(0x66, 0x2F, a, b2) }

// MovsdLoad / MovsdStore: scalar double memory access relative to RBP.
func (b *CodeBuffer) MovsdLoad(dst XMM, disp int32) {
	b.emit(0xF2)
	if xmmExt(dst) {
		b.emit(rex(false, xmmExt(dst), false, false))
	}
	b.emit(0x0F, 0x10, modrm(2, xmmLow(dst), 5))
	b.emit32(uint32(disp))
}

func (b *CodeBuffer) MovsdStore(disp int32, src XMM) {
	b.emit(0xF2)
	if xmmExt(src) {
		b.emit(rex(false, xmmExt(src), false, false))
	}
	b.emit(0x0F, 0x11, modrm(2, xmmLow(src), 5))
	b.emit32(uint32(disp))
}

// MovsdLoadIndirect / MovsdStoreIndirect: scalar double memory access
// relative to an arbitrary base register (pointer dereference).
func (b *CodeBuffer) MovsdLoadIndirect(dst XMM, base Register, disp int32) {
	b.emit(0xF2)
	if xmmExt(dst) || regExt(base) {
		b.emit(rex(false, xmmExt(dst), false, regExt(base)))
	}
	b.emit(0x0F, 0x10, modrm(2, xmmLow(dst), regLow(base)))
	b.emit32(uint32(disp))
}

func (b *CodeBuffer) MovsdStoreIndirect(base Register, disp int32, src XMM) {
	b.emit(0xF2)
	if xmmExt(src) || regExt(base) {
		b.emit(rex(false, xmmExt(src), false, regExt(base)))
	}
	b.emit(0x0F, 0x11, modrm(2, xmmLow(src), regLow(base)))
	b.emit32(uint32(disp))
}
