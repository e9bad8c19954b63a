// Package ir implements the KHIR instruction packer, basic-block/function
// bookkeeping, the two-phase phi construction protocol, and the constant
// pool described in spec §3 and §4.2.
//
// Every instruction is a packed 64-bit word (see Pack/Unpack in
// instruction.go) interpreted in one of five layouts selected by opcode;
// a Value is a 32-bit handle into one of two arenas — a function's own
// instruction vector, or the program-level constant pool — so a constant
// can be shared across functions while intra-function values stay cheap
// indices.
package ir
