package ir

import (
	"testing"

	"github.com/kushdb/khir/types"
)

func newTestProgram() (*Program, *types.Manager) {
	tm := types.NewManager()
	return NewProgram(tm), tm
}

func TestBuilderArithmeticAndTypeOf(t *testing.T) {
	p, tm := newTestProgram()
	fnType := tm.Function(tm.I32(), []types.ID{tm.I32(), tm.I32()})
	fn := NewFunction("add", fnType)
	p.DeclareFunction(fn)
	bd := NewBuilder(p, fn)

	a := bd.FuncArg(tm.I32(), 0)
	b := bd.FuncArg(tm.I32(), 1)
	sum := bd.Add(types.KindI32, a, b)
	bd.ReturnValue(sum)

	typ, err := fn.TypeOf(tm, sum)
	if err != nil {
		t.Fatalf("TypeOf(sum) failed: %v", err)
	}
	if typ != tm.I32() {
		t.Errorf("TypeOf(sum) = %v, want i32", typ)
	}
}

func TestBuilderComparisonResultIsI1(t *testing.T) {
	p, tm := newTestProgram()
	fn := NewFunction("cmp", tm.Function(tm.I1(), nil))
	p.DeclareFunction(fn)
	bd := NewBuilder(p, fn)

	a := bd.IntConst(types.KindI32, 1)
	b := bd.IntConst(types.KindI32, 2)
	cmp := bd.Cmp(types.KindI32, CmpLt, a, b)

	typ, err := fn.TypeOf(tm, cmp)
	if err != nil {
		t.Fatalf("TypeOf(cmp) failed: %v", err)
	}
	if typ != tm.I1() {
		t.Errorf("TypeOf(cmp) = %v, want i1", typ)
	}
}

func TestPtrAddIsUntyped(t *testing.T) {
	p, tm := newTestProgram()
	fn := NewFunction("f", tm.Function(tm.Void(), nil))
	p.DeclareFunction(fn)
	bd := NewBuilder(p, fn)

	ptr := bd.Nullptr(tm.I8Ptr())
	off := bd.IntConst(types.KindI64, 8)
	added := bd.PtrAdd(ptr, off)

	if _, err := fn.TypeOf(tm, added); err == nil {
		t.Fatal("expected UntypedFragment error for ptr_add")
	}
}

func TestPtrCastRecoversType(t *testing.T) {
	p, tm := newTestProgram()
	fn := NewFunction("f", tm.Function(tm.Void(), nil))
	p.DeclareFunction(fn)
	bd := NewBuilder(p, fn)

	ptr := bd.Nullptr(tm.I8Ptr())
	off := bd.IntConst(types.KindI64, 8)
	added := bd.PtrAdd(ptr, off)
	i32ptr := tm.Pointer(tm.I32())
	cast := bd.PtrCast(i32ptr, added)

	typ, err := fn.TypeOf(tm, cast)
	if err != nil {
		t.Fatalf("TypeOf(ptr_cast) failed: %v", err)
	}
	if typ != i32ptr {
		t.Errorf("TypeOf(ptr_cast) = %v, want i32*", typ)
	}
}

func TestCallResolvesResultTypeFromFunctionType(t *testing.T) {
	p, tm := newTestProgram()
	calleeType := tm.Function(tm.I64(), []types.ID{tm.I64()})
	callee := NewExternalFunction("double", calleeType)
	idx := p.DeclareFunction(callee)

	caller := NewFunction("caller", tm.Function(tm.I64(), nil))
	p.DeclareFunction(caller)
	bd := NewBuilder(p, caller)

	arg := bd.IntConst(types.KindI64, 21)
	bd.CallArg(0, arg)
	result := bd.Call(calleeType, idx)
	bd.ReturnValue(result)

	typ, err := caller.TypeOf(tm, result)
	if err != nil {
		t.Fatalf("TypeOf(call) failed: %v", err)
	}
	if typ != tm.I64() {
		t.Errorf("TypeOf(call) = %v, want i64", typ)
	}
}

func TestControlFlowBlocksTerminate(t *testing.T) {
	p, tm := newTestProgram()
	fn := NewFunction("branch", tm.Function(tm.Void(), []types.ID{tm.I1()}))
	p.DeclareFunction(fn)
	bd := NewBuilder(p, fn)

	entry := fn.Blocks[0]
	thenB := fn.NewBlock("then")
	elseB := fn.NewBlock("else")

	cond := bd.FuncArg(tm.I1(), 0)
	bd.CondBr(cond, thenB, elseB)

	bd.SetBlock(thenB)
	bd.Return()
	bd.SetBlock(elseB)
	bd.Return()

	if _, ok := entry.Terminator(fn); !ok {
		t.Error("entry block should be terminated by condbr")
	}
	if _, ok := thenB.Terminator(fn); !ok {
		t.Error("then block should be terminated by return")
	}
}
