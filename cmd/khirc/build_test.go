package main

import (
	"testing"
	"unsafe"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// compileEntry JITs prog's mainName function with the named register
// allocation strategy via the whole-program path and returns its callable
// entry address, releasing the backing pages on test cleanup.
func compileEntry(t *testing.T, prog *ir.Program, mainName string, strategy asm.Strategy) uintptr {
	t.Helper()
	idx, ok := prog.FunctionIndex(mainName)
	if !ok {
		t.Fatalf("%s not declared", mainName)
	}
	buf, entries, err := asm.CompileProgram(prog, strategy, asm.NoExternalSymbols)
	if err != nil {
		t.Fatalf("CompileProgram(%s) failed: %v", strategy, err)
	}
	t.Cleanup(func() { buf.Release() })
	addr, ok := entries[idx]
	if !ok {
		t.Fatalf("%s has no compiled entry", mainName)
	}
	return addr
}

func TestBuildIntegerAddProgramDeclaresPublicCompute(t *testing.T) {
	tm := newTypeManager()
	prog, mainName := buildIntegerAddProgram(tm)
	if mainName != "compute" {
		t.Fatalf("mainName = %q, want \"compute\"", mainName)
	}
	idx, ok := prog.FunctionIndex(mainName)
	if !ok {
		t.Fatal("compute not declared")
	}
	fn := prog.Functions[idx]
	if !fn.Public {
		t.Error("expected compute to be declared public")
	}
	if len(fn.Blocks) != 1 {
		t.Errorf("expected a single entry block, got %d", len(fn.Blocks))
	}
}

func TestBuildBranchPhiProgramHasFourBlocks(t *testing.T) {
	tm := newTypeManager()
	prog, mainName := buildBranchPhiProgram(tm)
	idx, _ := prog.FunctionIndex(mainName)
	fn := prog.Functions[idx]
	if len(fn.Blocks) != 4 {
		t.Errorf("expected entry+then+else+merge = 4 blocks, got %d", len(fn.Blocks))
	}
}

func TestBuildStructLoadProgramTakesStructPointerReturnsI64(t *testing.T) {
	tm := newTypeManager()
	prog, mainName := buildStructLoadProgram(tm)
	idx, ok := prog.FunctionIndex(mainName)
	if !ok {
		t.Fatal("compute not declared")
	}
	fn := prog.Functions[idx]
	result, args := tm.FunctionSignature(fn.Type)
	if result != tm.I64() {
		t.Errorf("result type = %v, want i64", result)
	}
	if len(args) != 1 {
		t.Fatalf("expected a single struct-pointer argument, got %d", len(args))
	}
	if tm.Kind(args[0]) != types.KindPointer {
		t.Errorf("argument type = %v, want a pointer", tm.Kind(args[0]))
	}
}

func TestBuildLoopSumProgramHasFourBlocks(t *testing.T) {
	tm := newTypeManager()
	prog, mainName := buildLoopSumProgram(tm)
	idx, _ := prog.FunctionIndex(mainName)
	fn := prog.Functions[idx]
	if len(fn.Blocks) != 4 {
		t.Errorf("expected entry+header+body+exit = 4 blocks, got %d", len(fn.Blocks))
	}
}

func TestBuildGlobalMutationProgramRegistersPublicGlobal(t *testing.T) {
	tm := newTypeManager()
	prog, mainName := buildGlobalMutationProgram(tm)
	if len(prog.Globals) != 1 {
		t.Fatalf("expected exactly one global, got %d", len(prog.Globals))
	}
	if !prog.Globals[0].Public {
		t.Error("expected the counter global to be public")
	}
	if _, ok := prog.FunctionIndex(mainName); !ok {
		t.Fatal("compute not declared")
	}
}

// TestIntegerAddProgramExecutesCorrectly JITs and calls spec.md §8.2
// scenario 1 under both register-allocation strategies and checks the
// actual arithmetic result, not just the IR shape.
func TestIntegerAddProgramExecutesCorrectly(t *testing.T) {
	for _, strategy := range []asm.Strategy{asm.StackSpill, asm.LinearScan} {
		t.Run(string(strategy), func(t *testing.T) {
			tm := newTypeManager()
			prog, mainName := buildIntegerAddProgram(tm)
			addr := compileEntry(t, prog, mainName, strategy)
			f := *(*func(int32, int32) int32)(unsafe.Pointer(&addr))
			if got, want := f(5, 7), int32(12); got != want {
				t.Errorf("compute(5, 7) = %d, want %d", got, want)
			}
			if got, want := f(-3, 3), int32(0); got != want {
				t.Errorf("compute(-3, 3) = %d, want %d", got, want)
			}
		})
	}
}

// TestBranchPhiProgramSelectsCorrectIncomingValue JITs and calls spec.md
// §8.2 scenario 2, checking the two-phase phi actually selects the branch
// taken rather than some fixed or garbage operand.
func TestBranchPhiProgramSelectsCorrectIncomingValue(t *testing.T) {
	tm := newTypeManager()
	prog, mainName := buildBranchPhiProgram(tm)
	addr := compileEntry(t, prog, mainName, asm.LinearScan)
	f := *(*func(bool, int64, int64) int64)(unsafe.Pointer(&addr))
	if got, want := f(true, 5, 9), int64(5); got != want {
		t.Errorf("compute(true, 5, 9) = %d, want %d", got, want)
	}
	if got, want := f(false, 5, 9), int64(9); got != want {
		t.Errorf("compute(false, 5, 9) = %d, want %d", got, want)
	}
}

// TestStructLoadProgramReadsThirdField JITs and calls spec.md §8.2
// scenario 3, checking the PtrAdd/PtrCast/Load chain resolves to the
// struct's third field rather than some other offset.
func TestStructLoadProgramReadsThirdField(t *testing.T) {
	tm := newTypeManager()
	prog, mainName := buildStructLoadProgram(tm)
	addr := compileEntry(t, prog, mainName, asm.StackSpill)
	s := structLayout{A: 7, B: 42, C: 123456}
	f := *(*func(unsafe.Pointer) int64)(unsafe.Pointer(&addr))
	if got, want := f(unsafe.Pointer(&s)), int64(123456); got != want {
		t.Errorf("compute(&s) = %d, want %d", got, want)
	}
}

// TestLoopSumProgramComputesExpectedTotal JITs and calls spec.md §8.2
// scenario 4: sum(0..10) * 3 = 45 * 3 = 135, exercising the back-edge phi.
func TestLoopSumProgramComputesExpectedTotal(t *testing.T) {
	tm := newTypeManager()
	prog, mainName := buildLoopSumProgram(tm)
	addr := compileEntry(t, prog, mainName, asm.LinearScan)
	f := *(*func() int64)(unsafe.Pointer(&addr))
	if got, want := f(), int64(135); got != want {
		t.Errorf("compute() = %d, want %d", got, want)
	}
}

// TestGlobalMutationProgramStoresAndRereadsThroughGlobal JITs and calls
// spec.md §8.2 scenario 5 — the exact shape (bd.Store(dest, globalPtr)
// where globalPtr is a constant-pool GlobalRef) that previously panicked
// in lowering instead of compiling.
func TestGlobalMutationProgramStoresAndRereadsThroughGlobal(t *testing.T) {
	for _, strategy := range []asm.Strategy{asm.StackSpill, asm.LinearScan} {
		t.Run(string(strategy), func(t *testing.T) {
			tm := newTypeManager()
			prog, mainName := buildGlobalMutationProgram(tm)
			addr := compileEntry(t, prog, mainName, strategy)
			var dest unsafe.Pointer
			f := *(*func(*unsafe.Pointer) int64)(unsafe.Pointer(&addr))
			if got, want := f(&dest), int64(99); got != want {
				t.Errorf("compute(&dest) = %d, want %d", got, want)
			}
		})
	}
}

func TestBuildPipelineDemoProducesAThreeStageGraph(t *testing.T) {
	g, src, _, _ := buildPipelineDemo()
	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder failed: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 pipelines, got %d", len(order))
	}
	if src.size != 3 {
		t.Errorf("source size = %d, want 3", src.size)
	}
	if order[len(order)-1].ID != 2 {
		t.Errorf("expected the sink pipeline (id 2) last in topological order, got id %d", order[len(order)-1].ID)
	}
}
