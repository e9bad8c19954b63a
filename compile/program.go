package compile

import (
	"context"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/opt"
)

// Program wraps a fully-built ir.Program with the single operation
// spec.md §6.1 names at this layer: translate(backend). The backend
// only ever borrows the program by reference for the duration of
// Translate (spec.md §9 design note on breaking the
// Program↔Backend↔Function reference cycle) — afterwards it owns only
// the emitted code buffer and entry address.
type Program struct {
	IR *ir.Program
}

// NewProgram wraps ir for translation.
func NewProgram(prog *ir.Program) *Program {
	return &Program{IR: prog}
}

// Result is what Translate hands back: the callable entry address and
// which backend produced it. Buffer is non-nil only for BackendAsm,
// since that is the only backend whose executable pages this process
// must keep mapped (and eventually Release) itself — the optimizing
// backend's shared library is owned by the dynamic loader once
// dlopen'd.
type Result struct {
	Backend   Backend
	EntryAddr uintptr
	Buffer    *asm.CodeBuffer
	SoPath    string
}

// Translate lowers p's mainName function using the backend and
// register allocation strategy cfg names, ignoring cfg.PipelineMode
// (that option governs driver.Execute's morsel dispatch, not backend
// selection).
func (p *Program) Translate(ctx context.Context, mainName string, cfg Config) (*Result, error) {
	switch cfg.Backend {
	case BackendAsm:
		return translateJIT(p.IR, mainName, cfg.RegAllocImpl)
	case BackendOptimizing:
		return translateOptimizing(ctx, p.IR, mainName)
	default:
		return nil, errors.BackendBuildFailed(string(cfg.Backend), nil)
	}
}

func translateJIT(prog *ir.Program, mainName string, strategy asm.Strategy) (*Result, error) {
	idx, ok := prog.FunctionIndex(mainName)
	if !ok {
		return nil, errors.UnknownName(errors.PhaseLower, mainName)
	}
	buf, entries, err := asm.CompileProgram(prog, strategy, asm.NoExternalSymbols)
	if err != nil {
		return nil, err
	}
	addr, ok := entries[idx]
	if !ok {
		return nil, errors.UnknownName(errors.PhaseLower, mainName)
	}
	return &Result{Backend: BackendAsm, EntryAddr: addr, Buffer: buf}, nil
}

func translateOptimizing(ctx context.Context, prog *ir.Program, mainName string) (*Result, error) {
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
	addr, err := opt.LoadPlugin(soPath, mainName)
	if err != nil {
		return nil, err
	}
	return &Result{
		Backend:   BackendOptimizing,
		EntryAddr: addr,
		SoPath:    soPath,
	}, nil
}
