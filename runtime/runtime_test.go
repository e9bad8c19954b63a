package runtime

import (
	"testing"

	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

func TestStandardOpaqueTypesRegistersCatalog(t *testing.T) {
	tm := types.NewManager()
	if err := StandardOpaqueTypes(tm); err != nil {
		t.Fatalf("StandardOpaqueTypes failed: %v", err)
	}
	for _, name := range catalog {
		if _, err := tm.Lookup(name); err != nil {
			t.Errorf("expected %s to be registered, got error: %v", name, err)
		}
	}
}

func TestStandardOpaqueTypesRejectsDoubleRegistration(t *testing.T) {
	tm := types.NewManager()
	if err := StandardOpaqueTypes(tm); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := StandardOpaqueTypes(tm); err == nil {
		t.Error("expected an error re-registering the opaque type catalog")
	}
}

func TestDeclareExternalFunctionsWiresSkinnerJoinEntryPoints(t *testing.T) {
	tm := types.NewManager()
	if err := StandardOpaqueTypes(tm); err != nil {
		t.Fatalf("StandardOpaqueTypes failed: %v", err)
	}
	prog := ir.NewProgram(tm)
	if err := DeclareExternalFunctions(prog, tm); err != nil {
		t.Fatalf("DeclareExternalFunctions failed: %v", err)
	}

	permIdx, ok := prog.FunctionIndex(SkinnerJoinPermutable)
	if !ok {
		t.Fatal("expected permutable skinner join to be declared")
	}
	recompIdx, ok := prog.FunctionIndex(SkinnerJoinRecompiling)
	if !ok {
		t.Fatal("expected recompiling skinner join to be declared")
	}
	if permIdx == recompIdx {
		t.Error("expected two distinct external function declarations")
	}
	if !prog.Functions[permIdx].External || !prog.Functions[recompIdx].External {
		t.Error("expected both skinner join entry points to be external declarations")
	}
}

func TestDeclareExternalFunctionsFailsWithoutOpaqueCatalog(t *testing.T) {
	tm := types.NewManager()
	prog := ir.NewProgram(tm)
	if err := DeclareExternalFunctions(prog, tm); err == nil {
		t.Error("expected an error when the opaque type catalog was never registered")
	}
}
