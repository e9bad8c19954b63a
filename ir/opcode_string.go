package ir

var opcodeNames = map[Opcode]string{
	OpNop:      "nop",
	OpI1Const:  "i1_const",
	OpI8Const:  "i8_const",
	OpI16Const: "i16_const",
	OpI32Const: "i32_const",
	OpI64Const: "i64_const",

	OpI8Add: "i8_add", OpI8Sub: "i8_sub", OpI8Mul: "i8_mul", OpI8Div: "i8_div",
	OpI16Add: "i16_add", OpI16Sub: "i16_sub", OpI16Mul: "i16_mul", OpI16Div: "i16_div",
	OpI32Add: "i32_add", OpI32Sub: "i32_sub", OpI32Mul: "i32_mul", OpI32Div: "i32_div",
	OpI64Add: "i64_add", OpI64Sub: "i64_sub", OpI64Mul: "i64_mul", OpI64Div: "i64_div",

	OpI8CmpEq: "i8_cmp_eq", OpI8CmpNe: "i8_cmp_ne", OpI8CmpLt: "i8_cmp_lt",
	OpI8CmpLe: "i8_cmp_le", OpI8CmpGt: "i8_cmp_gt", OpI8CmpGe: "i8_cmp_ge",
	OpI16CmpEq: "i16_cmp_eq", OpI16CmpNe: "i16_cmp_ne", OpI16CmpLt: "i16_cmp_lt",
	OpI16CmpLe: "i16_cmp_le", OpI16CmpGt: "i16_cmp_gt", OpI16CmpGe: "i16_cmp_ge",
	OpI32CmpEq: "i32_cmp_eq", OpI32CmpNe: "i32_cmp_ne", OpI32CmpLt: "i32_cmp_lt",
	OpI32CmpLe: "i32_cmp_le", OpI32CmpGt: "i32_cmp_gt", OpI32CmpGe: "i32_cmp_ge",
	OpI64CmpEq: "i64_cmp_eq", OpI64CmpNe: "i64_cmp_ne", OpI64CmpLt: "i64_cmp_lt",
	OpI64CmpLe: "i64_cmp_le", OpI64CmpGt: "i64_cmp_gt", OpI64CmpGe: "i64_cmp_ge",

	OpF64Const: "f64_const", OpF64Add: "f64_add", OpF64Sub: "f64_sub",
	OpF64Mul: "f64_mul", OpF64Div: "f64_div",
	OpF64CmpEq: "f64_cmp_eq", OpF64CmpNe: "f64_cmp_ne", OpF64CmpLt: "f64_cmp_lt",
	OpF64CmpLe: "f64_cmp_le", OpF64CmpGt: "f64_cmp_gt", OpF64CmpGe: "f64_cmp_ge",

	OpLnot:      "lnot",
	OpConv:      "conv",
	OpAlloca:    "alloca",
	OpLoad:      "load",
	OpStore:     "store",
	OpPtrCast:   "ptr_cast",
	OpPtrAdd:    "ptr_add",
	OpFuncArg:   "func_arg",
	OpNullptr:   "nullptr",
	OpCallArg:   "call_arg",
	OpCall:      "call",
	OpCallIndirect: "call_indirect",
	OpPhi:       "phi",
	OpPhiMember: "phi_member",
	OpBr:        "br",
	OpCondBr:    "condbr",
	OpReturn:    "return",
	OpReturnValue: "return_value",

	OpGlobalCharArrayConst: "global_char_array_const",
	OpConstElem:            "const_elem",
	OpStructConst:          "struct_const",
	OpArrayConst:           "array_const",
	OpGlobalRef:            "global_ref",
}

func opcodeName(op Opcode) string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "unknown"
}

func (op Opcode) String() string { return opcodeName(op) }
