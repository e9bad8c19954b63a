package asm

import "unsafe"

// unsafePointer returns the address of a byte slice's backing array, for
// handing an mmap'd executable region's start address to a caller as a
// callable function pointer.
func unsafePointer(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
