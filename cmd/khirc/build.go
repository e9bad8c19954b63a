package main

import (
	"context"
	"fmt"
	"strconv"
	"unsafe"

	"github.com/kushdb/khir/driver"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// parseInt32/parseInt64/parseBool convert one interactive textinput.Value()
// (or a batch-mode default) the way the teacher's convertArg does per WIT
// type — falling back to the field's own default on a malformed entry
// rather than failing the whole run.
func parseInt32(s, fallback string) int32 {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		v, _ = strconv.ParseInt(fallback, 10, 32)
	}
	return int32(v)
}

func parseInt64(s, fallback string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		v, _ = strconv.ParseInt(fallback, 10, 64)
	}
	return v
}

func parseBool(s, fallback string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		v, _ = strconv.ParseBool(fallback)
	}
	return v
}

// newTypeManager returns a fresh type manager for one scenario build. Each
// scenario gets its own manager rather than sharing one across runs, since
// types.Manager interns content-addressed types and scenarios never need
// to share a type universe.
func newTypeManager() *types.Manager {
	return types.NewManager()
}

// buildIntegerAddProgram reproduces spec.md §8.2 scenario 1: a two-register
// integer add, the simplest possible shape for both register-allocation
// strategies to lower.
func buildIntegerAddProgram(tm *types.Manager) (*ir.Program, string) {
	p := ir.NewProgram(tm)
	fnType := tm.Function(tm.I32(), []types.ID{tm.I32(), tm.I32()})
	fn := ir.NewFunction("compute", fnType)
	fn.Public = true
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)
	a := bd.FuncArg(tm.I32(), 0)
	b := bd.FuncArg(tm.I32(), 1)
	bd.ReturnValue(bd.Add(types.KindI32, a, b))
	return p, "compute"
}

func runIntBinary(ctx context.Context, entryAddr uintptr, args []string) (string, error) {
	a := parseInt32(argOrDefault(args, 0, "5"), "5")
	b := parseInt32(argOrDefault(args, 1, "7"), "7")
	f := *(*func(int32, int32) int32)(unsafe.Pointer(&entryAddr))
	return fmt.Sprintf("compute(%d, %d) = %d", a, b, f(a, b)), nil
}

// argOrDefault returns args[i], or fallback if args is too short — batch
// mode runs every scenario with its default arguments rather than
// requiring -arg flags for each parameter.
func argOrDefault(args []string, i int, fallback string) string {
	if i < len(args) {
		return args[i]
	}
	return fallback
}

// buildBranchPhiProgram reproduces spec.md §8.2 scenario 2: a diamond CFG
// whose merge block selects between two branch-local i64 values with a
// two-phase phi, mirroring ir.TestPhiTwoPhaseConstruction's shape.
func buildBranchPhiProgram(tm *types.Manager) (*ir.Program, string) {
	p := ir.NewProgram(tm)
	fnType := tm.Function(tm.I64(), []types.ID{tm.I1(), tm.I64(), tm.I64()})
	fn := ir.NewFunction("compute", fnType)
	fn.Public = true
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)

	thenB := fn.NewBlock("then")
	elseB := fn.NewBlock("else")
	mergeB := fn.NewBlock("merge")

	cond := bd.FuncArg(tm.I1(), 0)
	a := bd.FuncArg(tm.I64(), 1)
	b := bd.FuncArg(tm.I64(), 2)
	bd.CondBr(cond, thenB, elseB)

	bd.SetBlock(thenB)
	bd.Br(mergeB)

	bd.SetBlock(elseB)
	bd.Br(mergeB)

	bd.SetBlock(mergeB)
	phiVal, handle := bd.Phi(tm.I64())
	bd.SetBlock(thenB)
	bd.AddIncoming(handle, a)
	bd.SetBlock(elseB)
	bd.AddIncoming(handle, b)
	bd.CompletePhi(handle)

	bd.SetBlock(mergeB)
	bd.ReturnValue(phiVal)
	return p, "compute"
}

func runBranchPhi(ctx context.Context, entryAddr uintptr, args []string) (string, error) {
	cond := parseBool(argOrDefault(args, 0, "true"), "true")
	a := parseInt64(argOrDefault(args, 1, "5"), "5")
	b := parseInt64(argOrDefault(args, 2, "9"), "9")
	f := *(*func(bool, int64, int64) int64)(unsafe.Pointer(&entryAddr))
	return fmt.Sprintf("compute(%v, %d, %d) = %d", cond, a, b, f(cond, a, b)), nil
}

// structLayout is the S{i8,i16,i64} type every struct-load invocation
// shares: the CLI builds both the IR's type and the matching Go struct so
// runStructLoad can populate a real instance for the compiled function to
// dereference.
type structLayout struct {
	A int8
	_ [1]byte
	B int16
	_ [4]byte
	C int64
}

// buildStructLoadProgram reproduces spec.md §8.2 scenario 3: loading the
// third field of a three-field struct through a pointer argument, exercising
// types.Manager's SysV layout and ir.Builder's PtrAdd/PtrCast/Load chain.
func buildStructLoadProgram(tm *types.Manager) (*ir.Program, string) {
	p := ir.NewProgram(tm)
	structType := tm.Struct([]types.ID{tm.I8(), tm.I16(), tm.I64()})
	structPtr := tm.Pointer(structType)
	i64Ptr := tm.Pointer(tm.I64())
	fnType := tm.Function(tm.I64(), []types.ID{structPtr})
	fn := ir.NewFunction("compute", fnType)
	fn.Public = true
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)

	s := bd.FuncArg(structPtr, 0)
	offset, _ := tm.PointerOffset(structType, []int{0, 2}, false)
	raw := bd.PtrCast(tm.I8Ptr(), s)
	field := bd.PtrAdd(raw, bd.IntConst(types.KindI64, offset))
	fieldPtr := bd.PtrCast(i64Ptr, field)
	bd.ReturnValue(bd.Load(tm.I64(), fieldPtr))
	return p, "compute"
}

func runStructLoad(ctx context.Context, entryAddr uintptr, args []string) (string, error) {
	c := parseInt64(argOrDefault(args, 0, "1000"), "1000")
	s := structLayout{A: 7, B: 42, C: c}
	f := *(*func(unsafe.Pointer) int64)(unsafe.Pointer(&entryAddr))
	return fmt.Sprintf("compute(&S{A:7,B:42,C:%d}) = %d", c, f(unsafe.Pointer(&s))), nil
}

// buildLoopSumProgram reproduces spec.md §8.2 scenario 4: a counted loop
// accumulating sum(i for i in 0..10), then scaling by 3 — a back-edge phi
// rather than a diamond-merge phi.
func buildLoopSumProgram(tm *types.Manager) (*ir.Program, string) {
	p := ir.NewProgram(tm)
	fnType := tm.Function(tm.I64(), nil)
	fn := ir.NewFunction("compute", fnType)
	fn.Public = true
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)

	headerB := fn.NewBlock("header")
	bodyB := fn.NewBlock("body")
	exitB := fn.NewBlock("exit")

	zero := bd.IntConst(types.KindI64, 0)
	limit := bd.IntConst(types.KindI64, 10)
	one := bd.IntConst(types.KindI64, 1)
	three := bd.IntConst(types.KindI64, 3)
	bd.Br(headerB)

	bd.SetBlock(headerB)
	iPhi, iHandle := bd.Phi(tm.I64())
	sumPhi, sumHandle := bd.Phi(tm.I64())
	cond := bd.Cmp(types.KindI64, ir.CmpLt, iPhi, limit)
	bd.CondBr(cond, bodyB, exitB)

	bd.SetBlock(bodyB)
	nextSum := bd.Add(types.KindI64, sumPhi, iPhi)
	nextI := bd.Add(types.KindI64, iPhi, one)
	bd.Br(headerB)

	bd.SetBlock(headerB)
	bd.AddIncoming(iHandle, zero)
	bd.AddIncoming(sumHandle, zero)
	bd.SetBlock(bodyB)
	bd.AddIncoming(iHandle, nextI)
	bd.AddIncoming(sumHandle, nextSum)
	bd.CompletePhi(iHandle)
	bd.CompletePhi(sumHandle)

	bd.SetBlock(exitB)
	bd.ReturnValue(bd.Mul(types.KindI64, sumPhi, three))
	return p, "compute"
}

func runNullary(ctx context.Context, entryAddr uintptr, args []string) (string, error) {
	f := *(*func() int64)(unsafe.Pointer(&entryAddr))
	return fmt.Sprintf("compute() = %d", f()), nil
}

// buildGlobalMutationProgram reproduces spec.md §8.2 scenario 5: a public
// i64 global, stored through an out-parameter pointer, then read back
// through the double pointer the caller supplied.
func buildGlobalMutationProgram(tm *types.Manager) (*ir.Program, string) {
	p := ir.NewProgram(tm)
	i64 := tm.I64()
	i64Ptr := tm.Pointer(i64)
	i64PtrPtr := tm.Pointer(i64Ptr)

	initVal := p.I64Const(99)
	globalIdx := p.AddGlobal(ir.Global{Name: "counter", Type: i64, Public: true, Initializer: initVal})

	fnType := tm.Function(tm.I64(), []types.ID{i64PtrPtr})
	fn := ir.NewFunction("compute", fnType)
	fn.Public = true
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)

	dest := bd.FuncArg(i64PtrPtr, 0)
	globalPtr := p.GlobalRef(i64, globalIdx)
	bd.Store(dest, globalPtr)
	reread := bd.Load(i64Ptr, dest)
	bd.ReturnValue(bd.Load(i64, reread))
	return p, "compute"
}

func runGlobalMutation(ctx context.Context, entryAddr uintptr, args []string) (string, error) {
	var dest unsafe.Pointer
	f := *(*func(*unsafe.Pointer) int64)(unsafe.Pointer(&entryAddr))
	result := f(&dest)
	return fmt.Sprintf("compute(&dest) = %d (global `counter` read back through dest)", result), nil
}

// recordingOps is a driver.Ops implementation that logs every call it
// receives, so the interactive and batch front-ends can render a per-morsel
// trace for the pipeline-dispatch scenario.
type recordingOps struct {
	name    string
	size    int
	resets  int
	inits   int
	ranges  [][3]int // [start, end, backend]
	fullRun int
}

func (r *recordingOps) Init(ctx context.Context) error {
	r.inits++
	return nil
}

func (r *recordingOps) Body(ctx context.Context) error {
	r.fullRun++
	return nil
}

func (r *recordingOps) BodyRange(ctx context.Context, backend driver.Backend, start, end int) error {
	r.ranges = append(r.ranges, [3]int{start, end, int(backend)})
	return nil
}

func (r *recordingOps) Size(ctx context.Context) (int, error) {
	return r.size, nil
}

func (r *recordingOps) Reset(ctx context.Context) error {
	r.resets++
	return nil
}

// buildPipelineDemo reproduces spec.md §8.2 scenario 6 / driver's own
// TestThreePipelineDAGRunsInTopologicalOrder: a three-tuple source pipeline,
// a split middle pipeline driven by it, and a sink.
func buildPipelineDemo() (*driver.Graph, *recordingOps, *recordingOps, *recordingOps) {
	src := &recordingOps{name: "source", size: 3}
	mid := &recordingOps{name: "filter"}
	sink := &recordingOps{name: "sink"}

	p0 := &driver.Pipeline{ID: 0, Ops: src}
	p1 := &driver.Pipeline{ID: 1, DriverPred: p0, Preds: []*driver.Pipeline{p0}, Split: true, Ops: mid}
	p2 := &driver.Pipeline{ID: 2, Preds: []*driver.Pipeline{p1}, Ops: sink}

	return driver.NewGraph(p0, p1, p2), src, mid, sink
}
