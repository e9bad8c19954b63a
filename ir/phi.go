package ir

import "github.com/kushdb/khir/types"

// Phi reserves a typed value slot for a join point without yet knowing
// its incoming edges — phase one of the two-phase protocol in spec §3.5.
// It returns both the phi's Value (to be used by consumers) and an
// opaque handle to pass to AddIncoming/CompletePhi.
func (bd *Builder) Phi(typ types.ID) (Value, *PhiHandle) {
	v := bd.Fn.emit(bd.block, packT3(OpPhi, 0, 0, uint16(typ)))
	h := &PhiHandle{idx: int(v.Index())}
	bd.Fn.pendingPhis = append(bd.Fn.pendingPhis, pendingPhi{phiIdx: h.idx})
	return v, h
}

// PhiHandle names an in-progress phi across the two construction phases.
type PhiHandle struct {
	idx int
}

// AddIncoming emits a phi_member in the current block carrying incoming,
// with its phi back-reference left as a placeholder (§3.5: "the phi it
// belongs to is not yet known"). CompletePhi patches every phi_member's
// placeholder once all predecessors have been visited.
func (bd *Builder) AddIncoming(h *PhiHandle, incoming Value) {
	idx := len(bd.Fn.Instrs)
	bd.Fn.emit(bd.block, packT2(OpPhiMember, NoValue, incoming))
	for i := range bd.Fn.pendingPhis {
		if bd.Fn.pendingPhis[i].phiIdx == h.idx {
			bd.Fn.pendingPhis[i].members = append(bd.Fn.pendingPhis[i].members, idx)
			return
		}
	}
	panic("ir: AddIncoming called with an unknown phi handle")
}

// CompletePhi back-patches every phi_member recorded for h so its first
// operand points at the phi instruction itself, then drops h's bookkeeping
// entry. Must be called once all of a phi's predecessors have emitted
// their phi_member via AddIncoming.
func (bd *Builder) CompletePhi(h *PhiHandle) {
	fn := bd.Fn
	for i := range fn.pendingPhis {
		if fn.pendingPhis[i].phiIdx != h.idx {
			continue
		}
		phiVal := instValue(uint32(h.idx))
		for _, memberIdx := range fn.pendingPhis[i].members {
			old := fn.Instrs[memberIdx]
			_, incoming := old.arg0(), old.arg1()
			fn.Instrs[memberIdx] = packT2(OpPhiMember, phiVal, incoming)
		}
		fn.pendingPhis = append(fn.pendingPhis[:i], fn.pendingPhis[i+1:]...)
		return
	}
	panic("ir: CompletePhi called with an unknown or already-completed phi handle")
}

// PhiIncoming returns the (phi, incoming) pair carried by a completed
// phi_member instruction.
func (fn *Function) PhiIncoming(v Value) (phi, incoming Value) {
	w := fn.Inst(v)
	if w.Opcode() != OpPhiMember {
		panic("ir: PhiIncoming called on a non-phi_member instruction")
	}
	return w.arg0(), w.arg1()
}
