package ir

// Opcode occupies the low 8 bits of every packed instruction word.
type Opcode uint8

const (
	OpNop Opcode = iota

	// Per-width integer constants, arithmetic and comparisons. i64
	// literals are never embedded directly (they would not fit the
	// 48-bit T1 constant field in general) — they always index the
	// program's I64Pool, the same pool constant-pool I64Const entries
	// draw from, so a literal is represented identically whether it
	// lives in a function body or the constant pool.
	OpI1Const
	OpI8Const
	OpI16Const
	OpI32Const
	OpI64Const

	OpI8Add
	OpI8Sub
	OpI8Mul
	OpI8Div
	OpI16Add
	OpI16Sub
	OpI16Mul
	OpI16Div
	OpI32Add
	OpI32Sub
	OpI32Mul
	OpI32Div
	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64Div

	OpI8CmpEq
	OpI8CmpNe
	OpI8CmpLt
	OpI8CmpLe
	OpI8CmpGt
	OpI8CmpGe
	OpI16CmpEq
	OpI16CmpNe
	OpI16CmpLt
	OpI16CmpLe
	OpI16CmpGt
	OpI16CmpGe
	OpI32CmpEq
	OpI32CmpNe
	OpI32CmpLt
	OpI32CmpLe
	OpI32CmpGt
	OpI32CmpGe
	OpI64CmpEq
	OpI64CmpNe
	OpI64CmpLt
	OpI64CmpLe
	OpI64CmpGt
	OpI64CmpGe

	OpF64Const
	OpF64Add
	OpF64Sub
	OpF64Mul
	OpF64Div
	OpF64CmpEq
	OpF64CmpNe
	OpF64CmpLt
	OpF64CmpLe
	OpF64CmpGt
	OpF64CmpGe

	// Lnot is defined only over i1 operands (open question resolved in
	// DESIGN.md): converting an i8 to i1 first makes the narrowing
	// explicit at every call site instead of silently truncating.
	OpLnot

	// Conv carries its target type in type_id and the conversion kind
	// in sarg (see ConvKind); its source operand is an ordinary value.
	OpConv

	OpAlloca
	OpLoad
	OpStore
	OpPtrCast
	// OpPtrAdd produces a byte pointer whose semantic type is not
	// recoverable from the instruction alone — it is in the untyped
	// set (§4.2) and must be immediately ptr-cast before use.
	OpPtrAdd

	OpFuncArg
	OpNullptr

	OpCallArg
	OpCall
	OpCallIndirect

	// Phi/PhiMember implement the two-phase construction protocol
	// (§3.5): phi reserves a typed slot; phi_member (emitted in a
	// predecessor block) carries an incoming value and a not-yet-known
	// back-reference to the phi it feeds, patched in by CompletePhi.
	OpPhi
	OpPhiMember

	OpBr
	OpCondBr
	OpReturn
	OpReturnValue

	// Constant-pool-only opcodes.
	OpGlobalCharArrayConst
	OpConstElem
	OpStructConst
	OpArrayConst
	OpGlobalRef
)

// ConvKind is Conv's sarg discriminant.
type ConvKind uint8

const (
	ConvZExt ConvKind = iota
	ConvSExt
	ConvTrunc
	ConvIntToFloat
	ConvFloatToInt
	ConvBitcast
)

// untypedSet lists the opcodes for which type_of is not defined in
// isolation (§4.2, §8.1): their result only acquires meaning once
// consumed by a ptr_cast, call or phi completion.
var untypedSet = map[Opcode]bool{
	OpPtrAdd:    true,
	OpCallArg:   true,
	OpPhiMember: true,
	OpConstElem: true,
}

// IsUntyped reports whether op belongs to the untyped instruction set.
func (op Opcode) IsUntyped() bool {
	return untypedSet[op]
}

// isTerminator reports whether op ends a basic block.
func (op Opcode) isTerminator() bool {
	switch op {
	case OpBr, OpCondBr, OpReturn, OpReturnValue:
		return true
	default:
		return false
	}
}
