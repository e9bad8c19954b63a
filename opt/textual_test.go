package opt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

func TestEmitTextualIncludesFunctionSignature(t *testing.T) {
	tm := types.NewManager()
	p := ir.NewProgram(tm)
	fnType := tm.Function(tm.I32(), []types.ID{tm.I32()})
	fn := ir.NewFunction("double", fnType)
	fn.Public = true
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)
	a := bd.FuncArg(tm.I32(), 0)
	sum := bd.Add(types.KindI32, a, a)
	bd.ReturnValue(sum)

	out, err := EmitTextual(p)
	if err != nil {
		t.Fatalf("EmitTextual failed: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "double(int32_t arg0)") {
		t.Errorf("expected a C function signature for double, got:\n%s", text)
	}
	if strings.Contains(text, "static int32_t double(") {
		t.Errorf("expected public linkage to drop the static qualifier, got:\n%s", text)
	}
	if !strings.Contains(text, "return v") {
		t.Errorf("expected a return statement, got:\n%s", text)
	}
}

func TestPipelineIsFixedOrder(t *testing.T) {
	want := []Pass{PassInstCombine, PassReassociate, PassGVN, PassCFGSimplify1, PassAggressiveDCE, PassCFGSimplify2}
	if len(Pipeline) != len(want) {
		t.Fatalf("Pipeline length = %d, want %d", len(Pipeline), len(want))
	}
	for i := range want {
		if Pipeline[i] != want[i] {
			t.Errorf("Pipeline[%d] = %s, want %s", i, Pipeline[i], want[i])
		}
	}
}

func TestEmitTextualDeclaresExternalFunctionsWithoutBody(t *testing.T) {
	tm := types.NewManager()
	p := ir.NewProgram(tm)
	fn := ir.NewExternalFunction("hash_table_insert", tm.Function(tm.Void(), nil))
	p.DeclareFunction(fn)

	var buf bytes.Buffer
	out, err := EmitTextual(p)
	buf.Write(out)
	if err != nil {
		t.Fatalf("EmitTextual failed: %v", err)
	}
	if !strings.Contains(buf.String(), "extern void hash_table_insert(void);") {
		t.Errorf("expected an extern declaration for hash_table_insert, got:\n%s", buf.String())
	}
}

func TestEmitTextualRendersGlobalAndConstantAsStaticObjects(t *testing.T) {
	tm := types.NewManager()
	p := ir.NewProgram(tm)
	i64 := tm.I64()
	p.AddGlobal(ir.Global{Name: "counter", Type: i64, Public: true, Initializer: p.I64Const(0)})

	fnType := tm.Function(tm.Void(), nil)
	fn := ir.NewFunction("bump", fnType)
	fn.Public = true
	p.DeclareFunction(fn)
	bd := ir.NewBuilder(p, fn)
	bd.Return()

	out, err := EmitTextual(p)
	if err != nil {
		t.Fatalf("EmitTextual failed: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "int64_t khir_global0;") {
		t.Errorf("expected a tentative definition for the global, got:\n%s", text)
	}
	if !strings.Contains(text, "int64_t khir_global0 = 0LL;") {
		t.Errorf("expected the global's constant initializer rendered as a literal, got:\n%s", text)
	}
}
