package asm

import (
	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
)

// Strategy names the two pluggable register-allocation strategies spec
// §5 calls out.
type Strategy string

const (
	StackSpill Strategy = "stack-spill"
	LinearScan Strategy = "linear-scan"
)

// NewRegAlloc resolves a strategy name to its implementation.
func NewRegAlloc(s Strategy) (RegAlloc, error) {
	switch s {
	case StackSpill:
		return NewStackSpillAlloc(), nil
	case LinearScan:
		return NewLinearScanAlloc(), nil
	default:
		return nil, errors.BackendBuildFailed("jit", nil)
	}
}

// CompileFunction lowers fn to machine code using the named register
// allocation strategy and finalizes it into an executable buffer,
// returning the buffer alongside the entry address Finalize mapped it
// to (the value cache.CacheEntry.Compile publishes as entry_fn_ptr).
func CompileFunction(prog *ir.Program, fn *ir.Function, strategy Strategy) (*CodeBuffer, uintptr, error) {
	ra, err := NewRegAlloc(strategy)
	if err != nil {
		return nil, 0, err
	}
	buf, err := Lower(prog, fn, ra)
	if err != nil {
		return nil, 0, err
	}
	addr, err := buf.Finalize()
	if err != nil {
		return nil, 0, err
	}
	return buf, addr, nil
}
