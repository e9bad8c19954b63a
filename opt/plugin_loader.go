package opt

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/kushdb/khir/errors"
)

// LoadPlugin dlopens a shared library opt.Toolchain.BuildSharedLibrary
// produced and resolves a compiled entry point by symbol name, returning
// its address. The toolchain links module.so with a plain C compiler
// (cc -shared), not go build -buildmode=plugin, so Go's own plugin
// package cannot open it — plugin.Open insists on Go-specific metadata
// sections no cc-built .so carries, and fails every such file with
// "plugin was built with a different version of package runtime" or
// similar. cgo's direct binding onto libdl's dlopen/dlsym is the one
// answer the retrieved example pack offers no alternative to: nothing in
// it wraps loading an arbitrary C shared library from Go (see
// DESIGN.md).
func LoadPlugin(soPath, symbol string) (uintptr, error) {
	cPath := C.CString(soPath)
	defer C.free(unsafe.Pointer(cPath))

	handle := C.dlopen(cPath, C.RTLD_NOW)
	if handle == nil {
		return 0, errors.DynamicLoaderFailed(soPath, fmt.Errorf("dlopen: %s", C.GoString(C.dlerror())))
	}

	cSym := C.CString(symbol)
	defer C.free(unsafe.Pointer(cSym))

	addr := C.dlsym(handle, cSym)
	if addr == nil {
		return 0, errors.DynamicLoaderFailed(soPath, fmt.Errorf("dlsym %s: %s", symbol, C.GoString(C.dlerror())))
	}
	return uintptr(addr), nil
}
