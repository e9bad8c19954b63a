package asm

import (
	"sort"

	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// liveInterval is a value's [start, end] span over the function's flat
// instruction index space — an approximation of true per-block liveness
// that treats the whole function as one linear program order. Good
// enough for straight-line and lightly-branching pipeline bodies, the
// common case in compiled query fragments; a block-aware dataflow
// liveness pass is future work.
type liveInterval struct {
	value      ir.Value
	start, end int
	isFloat    bool
}

// active pairs a live interval with the physical register it currently
// holds.
type activeInt struct {
	liveInterval
	reg Register
}

type activeFloat struct {
	liveInterval
	reg XMM
}

// linearScanAlloc implements Poletto & Sundaresan-style linear scan: walk
// intervals in start order, keep an active set sorted by end, expire
// anything that has ended, and spill the interval with the farthest end
// point when the active set exceeds the register budget.
type linearScanAlloc struct{}

// NewLinearScanAlloc returns the linear-scan register allocation
// strategy.
func NewLinearScanAlloc() RegAlloc { return linearScanAlloc{} }

func (linearScanAlloc) Name() string { return "linear-scan" }

func (linearScanAlloc) Allocate(fn *ir.Function, tm *types.Manager) (*Assignment, error) {
	intervals := computeLiveIntervals(fn, tm)
	a := newAssignment()
	spillOffset := 0

	var ints, floats []liveInterval
	for _, iv := range intervals {
		if iv.isFloat {
			floats = append(floats, iv)
		} else {
			ints = append(ints, iv)
		}
	}
	sort.Slice(ints, func(i, j int) bool { return ints[i].start < ints[j].start })
	sort.Slice(floats, func(i, j int) bool { return floats[i].start < floats[j].start })

	var active []activeInt
	for _, iv := range ints {
		kept := active[:0]
		for _, a2 := range active {
			if a2.end >= iv.start {
				kept = append(kept, a2)
			}
		}
		active = kept

		if len(active) < len(allocatableInt) {
			used := make(map[Register]bool, len(active))
			for _, a2 := range active {
				used[a2.reg] = true
			}
			for _, r := range allocatableInt {
				if !used[r] {
					a.IntReg[iv.value] = r
					active = append(active, activeInt{iv, r})
					break
				}
			}
			continue
		}

		sort.Slice(active, func(i, j int) bool { return active[i].end < active[j].end })
		farthest := active[len(active)-1]
		if farthest.end > iv.end {
			spillOffset += 8
			a.StackSlot[farthest.value] = -spillOffset
			delete(a.IntReg, farthest.value)
			a.IntReg[iv.value] = farthest.reg
			active[len(active)-1] = activeInt{iv, farthest.reg}
		} else {
			spillOffset += 8
			a.StackSlot[iv.value] = -spillOffset
		}
	}

	var activeF []activeFloat
	for _, iv := range floats {
		kept := activeF[:0]
		for _, a2 := range activeF {
			if a2.end >= iv.start {
				kept = append(kept, a2)
			}
		}
		activeF = kept

		if len(activeF) < len(allocatableFloat) {
			used := make(map[XMM]bool, len(activeF))
			for _, a2 := range activeF {
				used[a2.reg] = true
			}
			for _, r := range allocatableFloat {
				if !used[r] {
					a.FloatReg[iv.value] = r
					activeF = append(activeF, activeFloat{iv, r})
					break
				}
			}
			continue
		}

		sort.Slice(activeF, func(i, j int) bool { return activeF[i].end < activeF[j].end })
		farthest := activeF[len(activeF)-1]
		if farthest.end > iv.end {
			spillOffset += 8
			a.StackSlot[farthest.value] = -spillOffset
			delete(a.FloatReg, farthest.value)
			a.FloatReg[iv.value] = farthest.reg
			activeF[len(activeF)-1] = activeFloat{iv, farthest.reg}
		} else {
			spillOffset += 8
			a.StackSlot[iv.value] = -spillOffset
		}
	}

	a.FrameSize = alignUp(spillOffset, 16)
	return a, nil
}

// computeLiveIntervals derives a [def, last-use] span for every
// non-void, non-untyped value in fn by scanning the flat instruction
// vector once for definitions and once for operand references.
func computeLiveIntervals(fn *ir.Function, tm *types.Manager) []liveInterval {
	spans := make(map[ir.Value]*liveInterval)

	for i, w := range fn.Instrs {
		v := ir.LocalValue(uint32(i))
		if w.Opcode().IsUntyped() {
			continue
		}
		typ, err := fn.TypeOf(tm, v)
		if err != nil || tm.Kind(typ) == types.KindVoid {
			continue
		}
		spans[v] = &liveInterval{value: v, start: i, end: i, isFloat: tm.Kind(typ) == types.KindF64}
	}

	for i, w := range fn.Instrs {
		for _, operand := range w.Operands() {
			if iv, ok := spans[operand]; ok && i > iv.end {
				iv.end = i
			}
		}
	}

	out := make([]liveInterval, 0, len(spans))
	for _, iv := range spans {
		out = append(out, *iv)
	}
	return out
}
