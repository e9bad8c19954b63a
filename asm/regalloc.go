package asm

import (
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// Assignment records where each of a function's values live: in a
// general-purpose register, an xmm register, or spilled to a stack slot.
// Exactly one of the three maps holds an entry for a given value.
type Assignment struct {
	IntReg     map[ir.Value]Register
	FloatReg   map[ir.Value]XMM
	StackSlot  map[ir.Value]int // byte offset from RBP, negative
	FrameSize  int              // total bytes of local stack, 16-byte aligned
}

func newAssignment() *Assignment {
	return &Assignment{
		IntReg:    make(map[ir.Value]Register),
		FloatReg:  make(map[ir.Value]XMM),
		StackSlot: make(map[ir.Value]int),
	}
}

// RegAlloc is the pluggable register-allocation strategy the assembler
// backend lowers through (spec §5: stack-spill and linear-scan).
type RegAlloc interface {
	Allocate(fn *ir.Function, tm *types.Manager) (*Assignment, error)
	Name() string
}

// isFloatValue reports whether v produces an f64, and so belongs in the
// xmm allocation class rather than the general-purpose one. v may be a
// function-local instruction or a constant-pool value (a global
// reference, a struct/array constant, a char-array constant) — prog.
// ValueType resolves both through the correct arena.
func isFloatValue(prog *ir.Program, fn *ir.Function, v ir.Value) bool {
	typ, err := prog.ValueType(fn, v)
	if err != nil {
		return false
	}
	return prog.Types.Kind(typ) == types.KindF64
}

// allValues returns every value a function's instruction vector defines,
// in emission order — the stack-spill allocator's working set.
func allValues(fn *ir.Function) []ir.Value {
	vals := make([]ir.Value, len(fn.Instrs))
	for i := range fn.Instrs {
		vals[i] = ir.LocalValue(uint32(i))
	}
	return vals
}
