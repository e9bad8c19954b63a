package asm

import (
	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
)

// CompileProgram lowers every internal (non-external) function declared in
// prog into one shared code buffer, resolving direct calls between them —
// the whole-program entry point the JIT backend needs (spec §4.3): a
// program's named entry function can call any other function compiled
// into the same program, not just itself, and CompileFunction alone never
// placed more than one function into a buffer to call.
//
// It proceeds in the two phases spec §4.3 calls for: a declarations pass
// records every internal function's table index in a shared label table
// before any body is lowered, so a call forward to a not-yet-placed callee
// is still recognized as resolvable when its caller is lowered; a bodies
// pass then lowers each function in turn, recording its actual entry
// offset in the same table as it is placed and collecting every
// direct-call site that still needs patching. Once every function has
// been placed, every recorded call site is patched against the
// now-complete table before the buffer is finalized into executable
// pages — so no CallRel32 site ever reaches Finalize unpatched.
//
// The returned map gives every internal function's absolute entry
// address, keyed by its Program.Functions index, valid once the buffer
// has been finalized.
func CompileProgram(prog *ir.Program, strategy Strategy, resolveExternal SymbolResolver) (*CodeBuffer, map[int]uintptr, error) {
	if resolveExternal == nil {
		resolveExternal = NoExternalSymbols
	}

	data, err := BuildDataSection(prog)
	if err != nil {
		return nil, nil, err
	}

	labels := map[int]int{}
	for i, fn := range prog.Functions {
		if !fn.External {
			labels[i] = 0
		}
	}

	buf := NewCodeBuffer()
	var allFixups []callFixup

	for i, fn := range prog.Functions {
		if fn.External {
			continue
		}
		ra, err := NewRegAlloc(strategy)
		if err != nil {
			return nil, nil, err
		}
		labels[i] = buf.Len()
		fixups, err := lowerFunctionBodyAt(buf, prog, fn, ra, data, labels, resolveExternal)
		if err != nil {
			return nil, nil, err
		}
		allFixups = append(allFixups, fixups...)
	}

	for _, fx := range allFixups {
		off, ok := labels[fx.funcIdx]
		if !ok {
			return nil, nil, errors.UnknownName(errors.PhaseLower, "compile program: unresolved call target")
		}
		buf.PatchRel32(fx.at, off)
	}

	buf.AttachData(data)
	addr, err := buf.Finalize()
	if err != nil {
		return nil, nil, err
	}

	entries := make(map[int]uintptr, len(labels))
	for idx, off := range labels {
		entries[idx] = addr + uintptr(off)
	}
	return buf, entries, nil
}
