package ir

import (
	"testing"

	"github.com/kushdb/khir/types"
)

// TestPhiTwoPhaseConstruction builds an if/else/merge diamond where the
// merge block's phi selects between the two branch-local values, per
// spec §3.5's two-phase construction protocol.
func TestPhiTwoPhaseConstruction(t *testing.T) {
	p, tm := newTestProgram()
	fn := NewFunction("diamond", tm.Function(tm.I32(), []types.ID{tm.I1()}))
	p.DeclareFunction(fn)
	bd := NewBuilder(p, fn)

	entry := fn.Blocks[0]
	thenB := fn.NewBlock("then")
	elseB := fn.NewBlock("else")
	mergeB := fn.NewBlock("merge")

	cond := bd.FuncArg(tm.I1(), 0)
	bd.CondBr(cond, thenB, elseB)
	_ = entry

	bd.SetBlock(thenB)
	thenVal := bd.IntConst(types.KindI32, 1)
	bd.Br(mergeB)

	bd.SetBlock(elseB)
	elseVal := bd.IntConst(types.KindI32, 2)
	bd.Br(mergeB)

	bd.SetBlock(mergeB)
	phiVal, handle := bd.Phi(tm.I32())

	bd.SetBlock(thenB)
	bd.AddIncoming(handle, thenVal)
	bd.SetBlock(elseB)
	bd.AddIncoming(handle, elseVal)
	bd.CompletePhi(handle)

	bd.SetBlock(mergeB)
	bd.ReturnValue(phiVal)

	typ, err := fn.TypeOf(tm, phiVal)
	if err != nil {
		t.Fatalf("TypeOf(phi) failed: %v", err)
	}
	if typ != tm.I32() {
		t.Errorf("TypeOf(phi) = %v, want i32", typ)
	}

	// Both phi_member instructions must now point back at the phi.
	var members []Value
	for _, idx := range thenB.Instrs {
		if fn.Instrs[idx].Opcode() == OpPhiMember {
			members = append(members, instValue(uint32(idx)))
		}
	}
	for _, idx := range elseB.Instrs {
		if fn.Instrs[idx].Opcode() == OpPhiMember {
			members = append(members, instValue(uint32(idx)))
		}
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 phi_member instructions, got %d", len(members))
	}
	for _, m := range members {
		phi, incoming := fn.PhiIncoming(m)
		if phi != phiVal {
			t.Errorf("phi_member back-reference = %v, want %v", phi, phiVal)
		}
		if incoming != thenVal && incoming != elseVal {
			t.Errorf("phi_member incoming = %v, not one of the branch values", incoming)
		}
	}
}

func TestPhiMemberIsUntyped(t *testing.T) {
	p, tm := newTestProgram()
	fn := NewFunction("f", tm.Function(tm.Void(), nil))
	p.DeclareFunction(fn)
	bd := NewBuilder(p, fn)

	_, handle := bd.Phi(tm.I32())
	v := bd.IntConst(types.KindI32, 5)
	bd.AddIncoming(handle, v)
	bd.CompletePhi(handle)

	var memberVal Value
	for _, idx := range fn.Blocks[0].Instrs {
		if fn.Instrs[idx].Opcode() == OpPhiMember {
			memberVal = instValue(uint32(idx))
		}
	}
	if _, err := fn.TypeOf(tm, memberVal); err == nil {
		t.Fatal("expected UntypedFragment error for phi_member")
	}
}
