package asm

import (
	"testing"

	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

func buildAddFunction(tm *types.Manager) (*ir.Program, *ir.Function) {
	p := ir.NewProgram(tm)
	fnType := tm.Function(tm.I32(), []types.ID{tm.I32(), tm.I32()})
	fn := ir.NewFunction("add", fnType)
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)
	a := bd.FuncArg(tm.I32(), 0)
	b := bd.FuncArg(tm.I32(), 1)
	sum := bd.Add(types.KindI32, a, b)
	bd.ReturnValue(sum)
	return p, fn
}

// TestRegAllocStrategiesProduceNonEmptyCode reproduces spec §8.2
// scenario 1 in spirit: both register-allocation strategies must be
// able to lower the same simple arithmetic function.
func TestRegAllocStrategiesProduceNonEmptyCode(t *testing.T) {
	for _, strategy := range []Strategy{StackSpill, LinearScan} {
		t.Run(string(strategy), func(t *testing.T) {
			tm := types.NewManager()
			p, fn := buildAddFunction(tm)
			ra, err := NewRegAlloc(strategy)
			if err != nil {
				t.Fatalf("NewRegAlloc(%s) failed: %v", strategy, err)
			}
			buf, err := Lower(p, fn, ra)
			if err != nil {
				t.Fatalf("Lower failed: %v", err)
			}
			if buf.Len() == 0 {
				t.Error("expected non-empty machine code")
			}
		})
	}
}

func TestStackSpillAssignsEverySlotDistinctly(t *testing.T) {
	tm := types.NewManager()
	_, fn := buildAddFunction(tm)
	a := NewStackSpillAlloc()
	assign, err := a.Allocate(fn, tm)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	seen := make(map[int]bool)
	for _, slot := range assign.StackSlot {
		if seen[slot] {
			t.Errorf("duplicate stack slot %d", slot)
		}
		seen[slot] = true
	}
}

func TestLinearScanStaysWithinRegisterBudget(t *testing.T) {
	tm := types.NewManager()
	p := ir.NewProgram(tm)
	fn := ir.NewFunction("many", tm.Function(tm.I64(), nil))
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)

	// More live values than allocatable registers forces a spill.
	var vals []ir.Value
	for i := 0; i < len(allocatableInt)+4; i++ {
		vals = append(vals, bd.IntConst(types.KindI64, int64(i)))
	}
	acc := vals[0]
	for _, v := range vals[1:] {
		acc = bd.Add(types.KindI64, acc, v)
	}
	bd.ReturnValue(acc)

	ra := NewLinearScanAlloc()
	assign, err := ra.Allocate(fn, tm)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(assign.StackSlot) == 0 {
		t.Error("expected at least one spill when live values exceed the register budget")
	}
}

func TestCodeBufferFinalizeIsExecutable(t *testing.T) {
	tm := types.NewManager()
	p, fn := buildAddFunction(tm)
	buf, addr, err := CompileFunction(p, fn, StackSpill)
	if err != nil {
		t.Fatalf("CompileFunction failed: %v", err)
	}
	defer buf.Release()
	if buf.Len() == 0 {
		t.Error("expected non-empty machine code")
	}
	if addr == 0 {
		t.Error("expected a non-zero entry address")
	}
}
