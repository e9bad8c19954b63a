// Package asm is the JIT backend: it lowers an ir.Function to x86-64
// SysV machine code in an executable buffer, behind a pluggable
// register-allocation strategy (spec §5).
package asm
