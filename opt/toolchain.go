package opt

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
)

// Toolchain drives an external C compiler to turn EmitTextual's rendering
// of a Program into a position-independent object file and, from there, a
// dynamic library — the optimizing backend never generates machine code
// itself, unlike asm.Lower (spec §6).
type Toolchain struct {
	// Compiler is the external binary invoked to compile/link the
	// generated C source — the host's C compiler driver (cc, typically
	// gcc or clang).
	Compiler string
	WorkDir  string
}

// NewToolchain returns a Toolchain using cc and a fresh temp directory.
func NewToolchain() (*Toolchain, error) {
	dir, err := os.MkdirTemp("", "khir-opt-*")
	if err != nil {
		return nil, errors.BackendBuildFailed("optimizing", err)
	}
	return &Toolchain{Compiler: "cc", WorkDir: dir}, nil
}

// BuildObject renders prog as C source and runs it through the host
// toolchain, producing a position-independent object file.
func (tc *Toolchain) BuildObject(ctx context.Context, prog *ir.Program) (string, error) {
	logPipeline()

	src, err := EmitTextual(prog)
	if err != nil {
		return "", errors.BackendBuildFailed("optimizing", err)
	}

	srcPath := filepath.Join(tc.WorkDir, "module.c")
	if err := os.WriteFile(srcPath, src, 0o644); err != nil {
		return "", errors.BackendBuildFailed("optimizing", err)
	}

	objPath := filepath.Join(tc.WorkDir, "module.o")
	cmd := exec.CommandContext(ctx, tc.Compiler, "-fPIC", "-O2", "-c", srcPath, "-o", objPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errors.Wrap(errors.PhaseLower, errors.KindBackendBuildFailed, err, string(out))
	}
	return objPath, nil
}

// BuildSharedLibrary links an already-built object file into a .so the
// runtime can dlopen (via DynamicLoaderFailed on failure — see
// LoadPlugin).
func (tc *Toolchain) BuildSharedLibrary(ctx context.Context, objPath string) (string, error) {
	soPath := filepath.Join(tc.WorkDir, "module.so")
	cmd := exec.CommandContext(ctx, tc.Compiler, "-shared", "-o", soPath, objPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errors.Wrap(errors.PhaseLink, errors.KindBackendBuildFailed, err, string(out))
	}
	return soPath, nil
}
