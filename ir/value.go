package ir

// Value is a handle to either an instruction result or a constant-pool
// entry. Bit 31 selects the arena; the low 31 bits are the index within
// it. Builder-facing code only ever sees Value; instruction words carry a
// 24-bit compressed form (23-bit index + 1 arena bit) produced by pack24.
type Value uint32

const valueArenaBit Value = 1 << 31

// NoValue is the zero handle used in operand slots that are unused for a
// given opcode (e.g. the second argument of lnot).
const NoValue Value = valueArenaBit | Value(operandIndexMask)

func instValue(idx uint32) Value {
	return Value(idx)
}

// LocalValue constructs the Value naming the instruction at index idx in
// whatever function it is later used against. Exported for backends that
// iterate a function's Instrs by position (asm.RegAlloc implementations).
func LocalValue(idx uint32) Value {
	return instValue(idx)
}

// ConstantValue constructs the Value naming the constant-pool entry at
// idx. Exported for backends that walk Program.ConstantPool by position
// (asm.DataSection, opt's textual emitter).
func ConstantValue(idx uint32) Value {
	return constValue(idx)
}

func constValue(idx uint32) Value {
	return valueArenaBit | Value(idx)
}

// IsConstant reports whether v names an entry in the program constant
// pool rather than an instruction in some function's body.
func (v Value) IsConstant() bool {
	return v&valueArenaBit != 0
}

// Index returns v's position within its arena.
func (v Value) Index() uint32 {
	return uint32(v &^ valueArenaBit)
}

const operandIndexBits = 23
const operandIndexMask = uint32(1)<<operandIndexBits - 1

// pack24 compresses a Value into the 24-bit operand field carried by T2,
// T3 and Tcall_arg instruction words: bit 23 is the arena selector, bits
// 0-22 are the index. Values whose index does not fit are a builder bug,
// not a user error — functions and pools with more than 2^23 entries are
// outside KHIR's design envelope.
func pack24(v Value) uint32 {
	idx := v.Index()
	if idx > operandIndexMask {
		panic("ir: value index exceeds 24-bit operand field")
	}
	arena := uint32(0)
	if v.IsConstant() {
		arena = 1
	}
	return idx | arena<<operandIndexBits
}

func unpack24(field uint32) Value {
	idx := field & operandIndexMask
	if field>>operandIndexBits&1 != 0 {
		return constValue(idx)
	}
	return instValue(idx)
}
