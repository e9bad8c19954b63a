package compile

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/driver"
	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/opt"
)

// PipelineSymbols names the four-or-five compiled function symbols a
// pipeline owns (spec.md §3.7: "Each pipeline owns four named function
// symbols: init, body (or body(start,end) when split), reset, and — if
// it has successors — size"). One of Body/BodyRange is set, matching
// the pipeline's Split flag; Size is empty for a pipeline with no
// successors.
type PipelineSymbols struct {
	Name      string
	Init      string
	Body      string
	BodyRange string
	Size      string
	Reset     string
	Split     bool
}

// nativeOps is the driver.Ops implementation compile.CompilePipelines
// hands back: six native entry addresses (bodyRangeOpt is zero unless
// the optimizing backend was also built, which only happens in adaptive
// mode), cast and called the same unsafe-pointer-to-func way
// cmd/khirc/build.go's run* helpers call a single compiled function.
// Every compiled entry point returns an int32 status (0 success,
// nonzero a backend-defined failure code) except size, which returns
// the row count directly as an int64.
type nativeOps struct {
	name         string
	initAddr     uintptr
	bodyAddr     uintptr
	bodyRangeJIT uintptr
	bodyRangeOpt uintptr
	sizeAddr     uintptr
	resetAddr    uintptr
}

func callStatus(addr uintptr) error {
	f := *(*func() int32)(unsafe.Pointer(&addr))
	if code := f(); code != 0 {
		return fmt.Errorf("status %d", code)
	}
	return nil
}

func (o *nativeOps) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.initAddr == 0 {
		return nil
	}
	if err := callStatus(o.initAddr); err != nil {
		return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, o.name+": init failed")
	}
	return nil
}

func (o *nativeOps) Body(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := callStatus(o.bodyAddr); err != nil {
		return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, o.name+": body failed")
	}
	return nil
}

func (o *nativeOps) BodyRange(ctx context.Context, backend driver.Backend, start, end int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := o.bodyRangeJIT
	if backend == driver.BackendOptimizing && o.bodyRangeOpt != 0 {
		addr = o.bodyRangeOpt
	}
	f := *(*func(int64, int64) int32)(unsafe.Pointer(&addr))
	if code := f(int64(start), int64(end)); code != 0 {
		return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, fmt.Errorf("status %d", code), o.name+": body(start,end) failed")
	}
	return nil
}

func (o *nativeOps) Size(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f := *(*func() int64)(unsafe.Pointer(&o.sizeAddr))
	return int(f()), nil
}

func (o *nativeOps) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.resetAddr == 0 {
		return nil
	}
	if err := callStatus(o.resetAddr); err != nil {
		return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, o.name+": reset failed")
	}
	return nil
}

// CompilePipelines JIT-compiles every function prog declares once
// (asm.CompileProgram, spec §4.3's whole-program pass), then — only in
// adaptive mode, and only for split pipelines' body(start,end) symbol —
// additionally drives the optimizing backend's textual-IR-to-shared-
// library pipeline, so driver.Execute's runAdaptiveSplitPipeline has a
// real compiled body to switch to instead of the JIT's. It returns one
// driver.Ops per PipelineSymbols entry, in the same order, wired to the
// compiled entry addresses rather than left as the stub the driver
// previously had no producer for.
func CompilePipelines(ctx context.Context, prog *ir.Program, pipelines []PipelineSymbols, cfg Config) ([]driver.Ops, *asm.CodeBuffer, error) {
	buf, entries, err := asm.CompileProgram(prog, cfg.RegAllocImpl, asm.NoExternalSymbols)
	if err != nil {
		return nil, nil, err
	}

	var optSymbols map[string]uintptr
	if cfg.PipelineMode == driver.ModeAdaptive {
		optSymbols, err = buildOptimizingSymbols(ctx, prog, pipelines)
		if err != nil {
			return nil, nil, err
		}
	}

	resolve := func(name string) (uintptr, error) {
		if name == "" {
			return 0, nil
		}
		idx, ok := prog.FunctionIndex(name)
		if !ok {
			return 0, errors.UnknownName(errors.PhaseSchedule, name)
		}
		addr, ok := entries[idx]
		if !ok {
			return 0, errors.UnknownName(errors.PhaseSchedule, name)
		}
		return addr, nil
	}

	out := make([]driver.Ops, len(pipelines))
	for i, sym := range pipelines {
		initAddr, err := resolve(sym.Init)
		if err != nil {
			return nil, nil, err
		}
		resetAddr, err := resolve(sym.Reset)
		if err != nil {
			return nil, nil, err
		}
		sizeAddr, err := resolve(sym.Size)
		if err != nil {
			return nil, nil, err
		}

		ops := &nativeOps{name: sym.Name, initAddr: initAddr, resetAddr: resetAddr, sizeAddr: sizeAddr}
		if sym.Split {
			if ops.bodyRangeJIT, err = resolve(sym.BodyRange); err != nil {
				return nil, nil, err
			}
			ops.bodyRangeOpt = optSymbols[sym.BodyRange]
		} else {
			if ops.bodyAddr, err = resolve(sym.Body); err != nil {
				return nil, nil, err
			}
		}
		out[i] = ops
	}
	return out, buf, nil
}

// buildOptimizingSymbols compiles prog through the optimizing backend
// once and resolves every split pipeline's body(start,end) symbol in
// the resulting shared library — the only function adaptive dispatch
// ever runs on that backend (spec §4.5 step 3).
func buildOptimizingSymbols(ctx context.Context, prog *ir.Program, pipelines []PipelineSymbols) (map[string]uintptr, error) {
	tc, err := opt.NewToolchain()
	if err != nil {
		return nil, err
	}
	objPath, err := tc.BuildObject(ctx, prog)
	if err != nil {
		return nil, err
	}
	soPath, err := tc.BuildSharedLibrary(ctx, objPath)
	if err != nil {
		return nil, err
	}

	out := make(map[string]uintptr, len(pipelines))
	for _, p := range pipelines {
		if !p.Split || p.BodyRange == "" {
			continue
		}
		addr, err := opt.LoadPlugin(soPath, p.BodyRange)
		if err != nil {
			return nil, err
		}
		out[p.BodyRange] = addr
	}
	return out, nil
}
