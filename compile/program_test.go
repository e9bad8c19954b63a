package compile

import (
	"context"
	"testing"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/driver"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

func buildConstFunction(tm *types.Manager) *ir.Program {
	p := ir.NewProgram(tm)
	fnType := tm.Function(tm.I64(), nil)
	fn := ir.NewFunction("main", fnType)
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)
	c := bd.IntConst(types.KindI64, 7)
	bd.ReturnValue(c)
	return p
}

func TestDefaultConfigSelectsJITWithStackSpill(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend != BackendAsm {
		t.Errorf("Backend = %v, want BackendAsm", cfg.Backend)
	}
	if cfg.RegAllocImpl != asm.StackSpill {
		t.Errorf("RegAllocImpl = %v, want StackSpill", cfg.RegAllocImpl)
	}
	if cfg.PipelineMode != driver.ModeStatic {
		t.Errorf("PipelineMode = %v, want ModeStatic", cfg.PipelineMode)
	}
}

func TestTranslateJITProducesExecutableEntry(t *testing.T) {
	tm := types.NewManager()
	prog := NewProgram(buildConstFunction(tm))

	result, err := prog.Translate(context.Background(), "main", DefaultConfig())
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	defer result.Buffer.Release()

	if result.Backend != BackendAsm {
		t.Errorf("Backend = %v, want BackendAsm", result.Backend)
	}
	if result.EntryAddr == 0 {
		t.Error("expected a non-zero entry address")
	}
	if result.Buffer == nil {
		t.Error("expected a non-nil code buffer for the JIT backend")
	}
}

func TestTranslateUnknownFunctionFails(t *testing.T) {
	tm := types.NewManager()
	prog := NewProgram(buildConstFunction(tm))

	_, err := prog.Translate(context.Background(), "not_declared", DefaultConfig())
	if err == nil {
		t.Error("expected an error translating an undeclared function name")
	}
}
