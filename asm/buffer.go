package asm

import (
	"golang.org/x/sys/unix"

	"github.com/kushdb/khir/errors"
)

// CodeBuffer accumulates machine code bytes and, once Finalize is
// called, maps them into an executable page via mmap — the JIT
// write-then-protect-then-execute discipline (spec §5, §8.2 scenario 5).
type CodeBuffer struct {
	bytes []byte
	mem   []byte
	data  *DataSection
}

// AttachData associates ds with this buffer so Release tears down both
// the executable code pages and the data section's RW pages together —
// they share the same compile's lifetime.
func (b *CodeBuffer) AttachData(ds *DataSection) { b.data = ds }

// Data returns the code buffer's attached data section, or nil if none
// was attached.
func (b *CodeBuffer) Data() *DataSection { return b.data }

// NewCodeBuffer returns an empty, writable code buffer.
func NewCodeBuffer() *CodeBuffer {
	return &CodeBuffer{}
}

func (b *CodeBuffer) emit(bs ...byte) {
	b.bytes = append(b.bytes, bs...)
}

func (b *CodeBuffer) emit32(v uint32) {
	b.emit(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (b *CodeBuffer) emit64(v uint64) {
	b.emit32(uint32(v))
	b.emit32(uint32(v >> 32))
}

// Len returns the number of bytes written so far, used as a label for
// backpatched jump/call targets.
func (b *CodeBuffer) Len() int { return len(b.bytes) }

// PatchRel32 overwrites the 4-byte relative displacement at byte offset
// at (the position immediately after a jmp/jcc/call opcode byte) so it
// targets target, a later (or earlier) offset into the same buffer.
func (b *CodeBuffer) PatchRel32(at, target int) {
	rel := int32(target - (at + 4))
	b.bytes[at] = byte(rel)
	b.bytes[at+1] = byte(rel >> 8)
	b.bytes[at+2] = byte(rel >> 16)
	b.bytes[at+3] = byte(rel >> 24)
}

// Bytes returns the buffer's raw contents (only meaningful before
// Finalize).
func (b *CodeBuffer) Bytes() []byte { return b.bytes }

// Finalize copies the accumulated bytes into freshly mmap'd read-write
// pages, remaps them read+execute, and returns the address of their
// start. The code at that address follows the SysV x86-64 calling
// convention; the address is a raw machine-code pointer, not a Go func
// value.
func (b *CodeBuffer) Finalize() (uintptr, error) {
	size := len(b.bytes)
	if size == 0 {
		return 0, errors.BackendBuildFailed("jit", nil)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, errors.BackendBuildFailed("jit", err)
	}
	copy(mem, b.bytes)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return 0, errors.BackendBuildFailed("jit", err)
	}
	b.mem = mem
	return uintptr(unsafePointer(mem)), nil
}

// Release unmaps a finalized buffer's executable pages, along with its
// attached data section's pages, if any.
func (b *CodeBuffer) Release() error {
	var dataErr error
	if b.data != nil {
		dataErr = b.data.Release()
	}
	if b.mem == nil {
		return dataErr
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	if err != nil {
		return err
	}
	return dataErr
}
