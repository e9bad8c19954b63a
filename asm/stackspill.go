package asm

import (
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// stackSpillAlloc is the simplest of the two strategies: every value
// gets its own stack slot, and the assembler backend reloads operands
// into a scratch register immediately before each instruction that needs
// them. It never runs out of registers and needs no liveness analysis,
// at the cost of a load/store around almost every instruction — the
// baseline strategy the adaptive dispatch policy in driver/ compares
// against (spec §9).
type stackSpillAlloc struct{}

// NewStackSpillAlloc returns the stack-spill register allocation
// strategy.
func NewStackSpillAlloc() RegAlloc { return stackSpillAlloc{} }

func (stackSpillAlloc) Name() string { return "stack-spill" }

func (stackSpillAlloc) Allocate(fn *ir.Function, tm *types.Manager) (*Assignment, error) {
	a := newAssignment()
	offset := 0
	for _, v := range allValues(fn) {
		w := fn.Inst(v)
		if w.Opcode().IsUntyped() {
			continue
		}
		typ, err := fn.TypeOf(tm, v)
		if err != nil || tm.Kind(typ) == types.KindVoid {
			continue
		}
		offset += 8
		a.StackSlot[v] = -offset
	}
	a.FrameSize = alignUp(offset, 16)
	return a, nil
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
