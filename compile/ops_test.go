package compile

import (
	"context"
	"testing"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/driver"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// declareStatusFn declares name() -> i32, returning the literal status
// on every call — enough for init/body/reset, which the driver only
// checks for a zero/non-zero outcome.
func declareStatusFn(prog *ir.Program, tm *types.Manager, name string, status int32) {
	fn := ir.NewFunction(name, tm.Function(tm.I32(), nil))
	fn.Public = true
	prog.DeclareFunction(fn)
	bd := ir.NewBuilder(prog, fn)
	bd.ReturnValue(bd.IntConst(types.KindI32, int64(status)))
}

func declareSizeFn(prog *ir.Program, tm *types.Manager, name string, size int64) {
	fn := ir.NewFunction(name, tm.Function(tm.I64(), nil))
	fn.Public = true
	prog.DeclareFunction(fn)
	bd := ir.NewBuilder(prog, fn)
	bd.ReturnValue(bd.IntConst(types.KindI64, size))
}

// declareBodyRangeFn declares name(start, end i64) -> i32, ignoring its
// arguments and always succeeding — morsel content is irrelevant here,
// only that Execute calls it with the right boundaries.
func declareBodyRangeFn(prog *ir.Program, tm *types.Manager, name string) {
	fn := ir.NewFunction(name, tm.Function(tm.I32(), []types.ID{tm.I64(), tm.I64()}))
	fn.Public = true
	prog.DeclareFunction(fn)
	bd := ir.NewBuilder(prog, fn)
	bd.FuncArg(tm.I64(), 0)
	bd.FuncArg(tm.I64(), 1)
	bd.ReturnValue(bd.IntConst(types.KindI32, 0))
}

// buildThreePipelineProgram declares the nine native symbols a
// source/split/sink three-pipeline DAG needs: p0 is non-split and
// drives p1's morsel count via p0_size; p1 is split; p2 is the sink.
func buildThreePipelineProgram() *ir.Program {
	tm := types.NewManager()
	prog := ir.NewProgram(tm)

	declareStatusFn(prog, tm, "p0_init", 0)
	declareStatusFn(prog, tm, "p0_body", 0)
	declareSizeFn(prog, tm, "p0_size", 3)
	declareStatusFn(prog, tm, "p0_reset", 0)

	declareStatusFn(prog, tm, "p1_init", 0)
	declareBodyRangeFn(prog, tm, "p1_body_range")
	declareStatusFn(prog, tm, "p1_reset", 0)

	declareStatusFn(prog, tm, "p2_init", 0)
	declareStatusFn(prog, tm, "p2_body", 0)
	declareStatusFn(prog, tm, "p2_reset", 0)

	return prog
}

// TestCompilePipelinesExecutesACompiledThreePipelineGraph wires
// CompilePipelines' output directly into driver.Execute and checks it
// runs a real compiled three-pipeline DAG to completion — closing the
// gap where driver.Ops had no producer wiring it to either backend's
// compiled output.
func TestCompilePipelinesExecutesACompiledThreePipelineGraph(t *testing.T) {
	prog := buildThreePipelineProgram()
	symbols := []PipelineSymbols{
		{Name: "p0", Init: "p0_init", Body: "p0_body", Size: "p0_size", Reset: "p0_reset"},
		{Name: "p1", Init: "p1_init", BodyRange: "p1_body_range", Reset: "p1_reset", Split: true},
		{Name: "p2", Init: "p2_init", Body: "p2_body", Reset: "p2_reset"},
	}

	cfg := DefaultConfig()
	ops, buf, err := CompilePipelines(context.Background(), prog, symbols, cfg)
	if err != nil {
		t.Fatalf("CompilePipelines failed: %v", err)
	}
	defer buf.Release()
	if len(ops) != 3 {
		t.Fatalf("expected 3 Ops, got %d", len(ops))
	}

	p0 := &driver.Pipeline{ID: 0, Ops: ops[0]}
	p1 := &driver.Pipeline{ID: 1, DriverPred: p0, Preds: []*driver.Pipeline{p0}, Split: true, Ops: ops[1]}
	p2 := &driver.Pipeline{ID: 2, Preds: []*driver.Pipeline{p1}, Ops: ops[2]}
	g := driver.NewGraph(p0, p1, p2)

	if err := driver.Execute(context.Background(), g, driver.ModeStatic); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
}

// TestCompilePipelinesSurfacesUnknownSymbol confirms a misnamed pipeline
// symbol fails CompilePipelines rather than silently leaving a zero
// address the driver would later crash calling.
func TestCompilePipelinesSurfacesUnknownSymbol(t *testing.T) {
	prog := buildThreePipelineProgram()
	symbols := []PipelineSymbols{
		{Name: "p0", Init: "p0_init", Body: "does_not_exist", Size: "p0_size", Reset: "p0_reset"},
	}

	_, _, err := CompilePipelines(context.Background(), prog, symbols, DefaultConfig())
	if err == nil {
		t.Fatal("expected an error for an unknown pipeline symbol")
	}
}

// Regression guard: asm.StackSpill is the strategy DefaultConfig
// selects, and CompilePipelines must work under it too (not just
// LinearScan), since the two allocators hand the shared lowering code
// different register and stack-slot assignments.
var _ asm.Strategy = DefaultConfig().RegAllocImpl
