package ir

import (
	"testing"

	"github.com/kushdb/khir/types"
)

func TestScalarConstants(t *testing.T) {
	p, tm := newTestProgram()

	i := p.I64Const(42)
	if got := p.ConstantType(i); got != tm.I64() {
		t.Errorf("ConstantType(i64 const) = %v, want i64", got)
	}

	f := p.F64Const(3.5)
	if got := p.ConstantType(f); got != tm.F64() {
		t.Errorf("ConstantType(f64 const) = %v, want f64", got)
	}

	s := p.CharArrayConst([]byte("hello"))
	if got := p.ConstantType(s); got != tm.I8Ptr() {
		t.Errorf("ConstantType(char array const) = %v, want i8*", got)
	}
}

func TestAggregateConstantForwardReference(t *testing.T) {
	p, tm := newTestProgram()
	structType, _ := tm.NamedStruct([]types.ID{tm.I64(), tm.I64()}, "Pair")

	outerSlotVal, outerSlot := p.NewAggregateSlot(structType, false)
	a := p.I64Const(1)
	b := p.I64Const(2)
	outerSlot.Resolve(p, []Value{a, b})

	if got := p.ConstantType(outerSlotVal); got != tm.Pointer(structType) {
		t.Errorf("ConstantType(struct const) = %v, want pointer-to-struct", got)
	}

	order, err := p.TopologicalConstants()
	if err != nil {
		t.Fatalf("TopologicalConstants failed: %v", err)
	}
	pos := make(map[int]int, len(order))
	for i, idx := range order {
		pos[idx] = i
	}
	if pos[int(outerSlotVal.Index())] < pos[int(a.Index())] {
		t.Error("struct constant emitted before a dependency it references")
	}
	if pos[int(outerSlotVal.Index())] < pos[int(b.Index())] {
		t.Error("struct constant emitted before a dependency it references")
	}
}
