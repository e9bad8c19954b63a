package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/opt"
)

// Backend selects which code generator a CacheEntry.Compile call
// targets.
type Backend int

const (
	BackendJIT Backend = iota
	BackendOptimizing
)

// CacheEntry is one trie leaf: the program compiled for a given join
// order, which backend produced it, and its published entry function
// pointer. Compiled is set only after entryFn is visible, so a reader
// that observes Compiled()==true is guaranteed a usable EntryFn().
type CacheEntry struct {
	mu      sync.Mutex
	program *ir.Program
	backend Backend

	entryFn  atomic.Uintptr
	compiled atomic.Bool
}

// Program returns the compiled program, or nil before the first
// Compile call.
func (e *CacheEntry) Program() *ir.Program {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.program
}

// BackendUsed returns which backend last compiled this entry.
func (e *CacheEntry) BackendUsed() Backend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend
}

// Compiled reports whether entryFn has been published.
func (e *CacheEntry) Compiled() bool { return e.compiled.Load() }

// EntryFn returns the published entry function address. Zero until
// Compiled() is true.
func (e *CacheEntry) EntryFn() uintptr { return e.entryFn.Load() }

// Compile builds prog's mainName function with the requested backend
// — the JIT assembler directly, or the optimizing backend's full
// textual-IR-to-shared-library pipeline — and publishes the resulting
// entry point atomically, setting Compiled() true last (spec §4.6:
// "publishes the function pointer atomically with compiled? := true").
func (e *CacheEntry) Compile(ctx context.Context, prog *ir.Program, mainName string, backend Backend, strategy asm.Strategy) error {
	addr, err := compileEntryPoint(ctx, prog, mainName, backend, strategy)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.program = prog
	e.backend = backend
	e.mu.Unlock()

	e.entryFn.Store(addr)
	e.compiled.Store(true)
	return nil
}

func compileEntryPoint(ctx context.Context, prog *ir.Program, mainName string, backend Backend, strategy asm.Strategy) (uintptr, error) {
	idx, ok := prog.FunctionIndex(mainName)
	if !ok {
		return 0, errors.UnknownName(errors.PhaseCache, mainName)
	}

	switch backend {
	case BackendJIT:
		_, entries, err := asm.CompileProgram(prog, strategy, asm.NoExternalSymbols)
		if err != nil {
			return 0, err
		}
		addr, ok := entries[idx]
		if !ok {
			return 0, errors.UnknownName(errors.PhaseCache, mainName)
		}
		return addr, nil
	case BackendOptimizing:
		tc, err := opt.NewToolchain()
		if err != nil {
			return 0, err
		}
		objPath, err := tc.BuildObject(ctx, prog)
		if err != nil {
			return 0, err
		}
		soPath, err := tc.BuildSharedLibrary(ctx, objPath)
		if err != nil {
			return 0, err
		}
		addr, err := opt.LoadPlugin(soPath, mainName)
		if err != nil {
			return 0, err
		}
		return addr, nil
	default:
		return 0, errors.BackendBuildFailed("unknown", nil)
	}
}
