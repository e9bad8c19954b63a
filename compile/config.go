package compile

import (
	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/driver"
)

// Backend selects the code generator Program.Translate targets.
type Backend string

const (
	// BackendAsm is the in-process JIT assembler (asm.CompileProgram).
	BackendAsm Backend = "asm"
	// BackendOptimizing is the textual-IR-to-shared-library path
	// (opt.Toolchain + opt.LoadPlugin).
	BackendOptimizing Backend = "llvm"
)

// Config is the three process-wide options spec.md §6.1 names,
// threaded explicitly through every call site rather than held as
// package-level mutable state (spec.md §9's "mutable-singleton config
// flags" design note; resolved the same way the teacher threads
// linker.InstancePre options through Build calls instead of a global).
type Config struct {
	Backend      Backend
	RegAllocImpl asm.Strategy
	PipelineMode driver.PipelineMode
}

// DefaultConfig returns the JIT backend with stack-spill allocation and
// static (non-adaptive) pipeline dispatch — the cheapest-to-compile,
// simplest-to-reason-about configuration, matching what §4.5 step 3
// documents as adaptive mode's own first-two-morsels baseline.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendAsm,
		RegAllocImpl: asm.StackSpill,
		PipelineMode: driver.ModeStatic,
	}
}
