package asm

// emitPrologue pushes the callee-saved registers in the fixed order the
// epilogue unwinds in reverse, establishes a frame pointer, and reserves
// frameSize bytes of locals via a back-patched `sub rsp, imm32` (the
// frame size is not known until the register allocator and lowering
// pass have both run).
func emitPrologue(b *CodeBuffer, frameSize int) (subImmAt int) {
	for _, r := range calleeSaved {
		b.PushReg(r)
	}
	b.MovRegReg(RBP, RSP)
	b.emit(rex(true, false, false, false), 0x81, modrm(3, 5, byte(RSP)))
	at := b.Len()
	b.emit32(uint32(frameSize))
	return at
}

// patchFrameSize overwrites the placeholder sub-rsp immediate emitted by
// emitPrologue once the true frame size is known.
func patchFrameSize(b *CodeBuffer, at int, frameSize int) {
	b.bytes[at] = byte(frameSize)
	b.bytes[at+1] = byte(frameSize >> 8)
	b.bytes[at+2] = byte(frameSize >> 16)
	b.bytes[at+3] = byte(frameSize >> 24)
}

// emitEpilogue restores RSP from the frame pointer, pops the callee-saved
// registers in reverse push order (RBP first), and returns. Every return
// path in a function jumps to a single epilogue label rather than
// repeating this sequence, keeping the callee-saved discipline in one
// place.
func emitEpilogue(b *CodeBuffer) {
	b.MovRegReg(RSP, RBP)
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		b.PopReg(calleeSaved[i])
	}
	b.Ret()
}
