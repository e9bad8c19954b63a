package opt

import (
	"bytes"
	"fmt"

	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// EmitTextual renders prog as C source for the host toolchain (spec §6.3):
// every KHIR type collapses to a small, fixed C vocabulary (stdint.h's
// fixed-width integers, double, and void* for every pointer/aggregate/
// opaque/function type — the same "everything is a register-sized bit
// pattern or an address" treatment asm/lower.go applies when lowering to
// machine code directly), every global and constant-pool aggregate
// becomes a file-scope static object the C compiler itself allocates and
// relocates, and every function becomes a goto-threaded C function body:
// one label per basic block, one statement per instruction, phi nodes
// lowered to plain assignments in their predecessor block (C has no SSA
// phi of its own) into a function-scope variable declared once up front.
func EmitTextual(prog *ir.Program) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "#include <stdint.h>")
	fmt.Fprintln(&buf)

	if err := emitDataSection(&buf, prog); err != nil {
		return nil, err
	}

	for _, fn := range prog.Functions {
		if fn.External {
			if err := emitExternDecl(&buf, prog.Types, fn); err != nil {
				return nil, err
			}
			continue
		}
		if err := emitFunction(&buf, prog, fn); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// cType maps a KHIR type to the C type its values are represented as.
// Pointers, arrays, structs, function types and opaque (runtime-owned)
// types all collapse to void*: nothing in this backend ever accesses an
// aggregate by value, only through the explicit ptr_add/ptr_cast/load/
// store chain spec §4.1/§4.2 already requires, so a single untyped
// pointer representation covers every one of them.
func cType(tm *types.Manager, t types.ID) string {
	switch tm.Kind(t) {
	case types.KindVoid:
		return "void"
	case types.KindI1:
		return "_Bool"
	case types.KindI8:
		return "int8_t"
	case types.KindI16:
		return "int16_t"
	case types.KindI32:
		return "int32_t"
	case types.KindI64:
		return "int64_t"
	case types.KindF64:
		return "double"
	default:
		return "void *"
	}
}

// emitExternDecl forward-declares an external (runtime-library) function
// so calls to it type-check; it is never defined in this translation
// unit — the dynamic library produced by opt.Toolchain.BuildSharedLibrary
// is expected to be linked against the runtime library that provides it.
func emitExternDecl(buf *bytes.Buffer, tm *types.Manager, fn *ir.Function) error {
	result, args := tm.FunctionSignature(fn.Type)
	_, err := fmt.Fprintf(buf, "extern %s %s(%s);\n", cType(tm, result), fn.Name, cParamList(tm, args))
	return err
}

func cParamList(tm *types.Manager, args []types.ID) string {
	if len(args) == 0 {
		return "void"
	}
	var parts bytes.Buffer
	for i, a := range args {
		if i > 0 {
			parts.WriteString(", ")
		}
		fmt.Fprintf(&parts, "%s arg%d", cType(tm, a), i)
	}
	return parts.String()
}

// emitDataSection renders prog's module globals and constant-pool
// aggregate/char-array entries as file-scope C objects. Globals and
// constants can reference each other in either direction (an aggregate
// constant's element can be a GlobalRef, and a global's initializer can
// be an aggregate/char-array constant), so every object is first
// forward-declared without an initializer (a tentative definition, valid
// anywhere it is later completed) and only then given its real
// initializer — the same two-pass shape asm.DataSection uses (reserve
// every address first, fill in pointer-valued content once every address
// is known), done here with the C compiler's own static-initializer
// relocations instead of a hand-rolled patch list.
func emitDataSection(buf *bytes.Buffer, prog *ir.Program) error {
	order, err := prog.TopologicalConstants()
	if err != nil {
		return errors.BackendBuildFailed("optimizing", err)
	}

	structTypes := map[int]string{}
	for _, idx := range order {
		w := prog.ConstantPool[idx]
		if w.Opcode() != ir.OpStructConst {
			continue
		}
		name := fmt.Sprintf("khir_agg_t%d", idx)
		structTypes[idx] = name
		resultType := prog.Types.ElemType(prog.ConstantType(ir.ConstantValue(uint32(idx))))
		fmt.Fprintf(buf, "struct %s {\n", name)
		for i, f := range prog.Types.StructFields(resultType) {
			fmt.Fprintf(buf, "  %s f%d;\n", cType(prog.Types, f), i)
		}
		fmt.Fprintf(buf, "};\n")
	}

	for i, g := range prog.Globals {
		fmt.Fprintf(buf, "%s khir_global%d;\n", cType(prog.Types, g.Type), i)
	}
	for _, idx := range order {
		w := prog.ConstantPool[idx]
		switch w.Opcode() {
		case ir.OpGlobalCharArrayConst:
			data := prog.CharArrayPool[w.PoolIndex()]
			fmt.Fprintf(buf, "unsigned char khir_const%d[%d];\n", idx, len(data))
		case ir.OpStructConst:
			fmt.Fprintf(buf, "struct %s khir_const%d;\n", structTypes[idx], idx)
		case ir.OpArrayConst:
			v := ir.ConstantValue(uint32(idx))
			resultType := prog.Types.ElemType(prog.ConstantType(v))
			elemType := prog.Types.ElemType(resultType)
			n := len(prog.AggregateElems(idx))
			fmt.Fprintf(buf, "%s khir_const%d[%d];\n", cType(prog.Types, elemType), idx, n)
		}
	}
	fmt.Fprintln(buf)

	for _, idx := range order {
		w := prog.ConstantPool[idx]
		switch w.Opcode() {
		case ir.OpGlobalCharArrayConst:
			data := prog.CharArrayPool[w.PoolIndex()]
			fmt.Fprintf(buf, "unsigned char khir_const%d[%d] = {", idx, len(data))
			for i, b := range data {
				if i > 0 {
					buf.WriteString(", ")
				}
				fmt.Fprintf(buf, "0x%02x", b)
			}
			buf.WriteString("};\n")
		case ir.OpStructConst:
			elems := prog.AggregateElems(idx)
			fmt.Fprintf(buf, "struct %s khir_const%d = {", structTypes[idx], idx)
			for i, e := range elems {
				if i > 0 {
					buf.WriteString(", ")
				}
				buf.WriteString(constInitExpr(prog, e))
			}
			buf.WriteString("};\n")
		case ir.OpArrayConst:
			elems := prog.AggregateElems(idx)
			v := ir.ConstantValue(uint32(idx))
			resultType := prog.Types.ElemType(prog.ConstantType(v))
			elemType := prog.Types.ElemType(resultType)
			fmt.Fprintf(buf, "%s khir_const%d[%d] = {", cType(prog.Types, elemType), idx, len(elems))
			for i, e := range elems {
				if i > 0 {
					buf.WriteString(", ")
				}
				buf.WriteString(constInitExpr(prog, e))
			}
			buf.WriteString("};\n")
		}
	}

	for i, g := range prog.Globals {
		if !g.Initializer.IsConstant() {
			continue
		}
		fmt.Fprintf(buf, "%s khir_global%d = %s;\n", cType(prog.Types, g.Type), i, constInitExpr(prog, g.Initializer))
	}
	fmt.Fprintln(buf)
	return nil
}

// constInitExpr renders a constant-pool value as a static-initializer
// expression: a literal for a scalar, an address-of for a global
// reference or struct constant (arrays decay to a pointer on their own).
func constInitExpr(prog *ir.Program, v ir.Value) string {
	if !v.IsConstant() {
		return "0"
	}
	w := prog.ConstantPool[v.Index()]
	switch w.Opcode() {
	case ir.OpI64Const:
		return fmt.Sprintf("%dLL", prog.I64Pool[w.PoolIndex()])
	case ir.OpF64Const:
		return fmt.Sprintf("%.17g", prog.F64Pool[w.PoolIndex()])
	case ir.OpGlobalRef:
		return fmt.Sprintf("&khir_global%d", w.T3Arg().Index())
	case ir.OpGlobalCharArrayConst, ir.OpArrayConst:
		return fmt.Sprintf("khir_const%d", v.Index())
	case ir.OpStructConst:
		return fmt.Sprintf("&khir_const%d", v.Index())
	default:
		return "0"
	}
}

// emitFunction renders fn's signature and goto-threaded body.
func emitFunction(buf *bytes.Buffer, prog *ir.Program, fn *ir.Function) error {
	tm := prog.Types
	result, args := tm.FunctionSignature(fn.Type)
	linkage := "static "
	if fn.Public {
		linkage = ""
	}
	fmt.Fprintf(buf, "%s%s %s(%s) {\n", linkage, cType(tm, result), fn.Name, cParamList(tm, args))

	if err := emitDeclarations(buf, prog, fn); err != nil {
		return err
	}

	if len(fn.Blocks) > 0 {
		fmt.Fprintf(buf, "  goto bb%d;\n", fn.Blocks[0].ID)
	}
	for _, b := range fn.Blocks {
		fmt.Fprintf(buf, "bb%d:;\n", b.ID)
		for _, idx := range b.Instrs {
			if err := emitStatement(buf, prog, fn, idx, fn.Instrs[idx]); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(buf, "}")
	fmt.Fprintln(buf)
	return nil
}

// emitDeclarations hoists every instruction result (and alloca's backing
// storage) to a function-scope C declaration, so a value computed in one
// block and consumed in another (a loop-invariant, or a phi's home slot)
// is always in scope regardless of which label the goto-threaded body
// happens to jump through — C only forbids jumping past a declaration
// with a variably-modified (VLA) type, never an ordinary one, so hoisting
// every declaration ahead of the first label sidesteps that restriction
// entirely instead of reasoning about it block by block.
func emitDeclarations(buf *bytes.Buffer, prog *ir.Program, fn *ir.Function) error {
	for idx, w := range fn.Instrs {
		switch w.Opcode() {
		case ir.OpCallArg, ir.OpPhiMember, ir.OpBr, ir.OpCondBr, ir.OpReturn, ir.OpReturnValue, ir.OpStore:
			continue
		case ir.OpPtrAdd:
			fmt.Fprintf(buf, "  void *v%d;\n", idx)
			continue
		case ir.OpAlloca:
			pointee := prog.Types.ElemType(types.ID(w.T3Type()))
			size := prog.Types.Layout(pointee).Size
			if size == 0 {
				size = 8
			}
			fmt.Fprintf(buf, "  unsigned char v%d_mem[%d];\n", idx, size)
			fmt.Fprintf(buf, "  void *v%d;\n", idx)
			continue
		case ir.OpCall, ir.OpCallIndirect:
			result, _ := prog.Types.FunctionSignature(types.ID(w.T3Type()))
			if prog.Types.Kind(result) == types.KindVoid {
				continue
			}
		}
		typ, err := prog.ValueType(fn, ir.LocalValue(uint32(idx)))
		if err != nil {
			return errors.BackendBuildFailed("optimizing", err)
		}
		fmt.Fprintf(buf, "  %s v%d;\n", cType(prog.Types, typ), idx)
	}
	return nil
}

// valueRef renders a value operand as a C expression: a bare local for a
// function-local value, a literal or address-of for a constant-pool one.
func valueRef(prog *ir.Program, v ir.Value) string {
	if !v.IsConstant() {
		return fmt.Sprintf("v%d", v.Index())
	}
	return constInitExpr(prog, v)
}

var cmpOperators = map[ir.Opcode]string{
	ir.OpI8CmpEq: "==", ir.OpI16CmpEq: "==", ir.OpI32CmpEq: "==", ir.OpI64CmpEq: "==", ir.OpF64CmpEq: "==",
	ir.OpI8CmpNe: "!=", ir.OpI16CmpNe: "!=", ir.OpI32CmpNe: "!=", ir.OpI64CmpNe: "!=", ir.OpF64CmpNe: "!=",
	ir.OpI8CmpLt: "<", ir.OpI16CmpLt: "<", ir.OpI32CmpLt: "<", ir.OpI64CmpLt: "<", ir.OpF64CmpLt: "<",
	ir.OpI8CmpLe: "<=", ir.OpI16CmpLe: "<=", ir.OpI32CmpLe: "<=", ir.OpI64CmpLe: "<=", ir.OpF64CmpLe: "<=",
	ir.OpI8CmpGt: ">", ir.OpI16CmpGt: ">", ir.OpI32CmpGt: ">", ir.OpI64CmpGt: ">", ir.OpF64CmpGt: ">",
	ir.OpI8CmpGe: ">=", ir.OpI16CmpGe: ">=", ir.OpI32CmpGe: ">=", ir.OpI64CmpGe: ">=", ir.OpF64CmpGe: ">=",
}

var arithOperators = map[ir.Opcode]string{
	ir.OpI8Add: "+", ir.OpI16Add: "+", ir.OpI32Add: "+", ir.OpI64Add: "+", ir.OpF64Add: "+",
	ir.OpI8Sub: "-", ir.OpI16Sub: "-", ir.OpI32Sub: "-", ir.OpI64Sub: "-", ir.OpF64Sub: "-",
	ir.OpI8Mul: "*", ir.OpI16Mul: "*", ir.OpI32Mul: "*", ir.OpI64Mul: "*", ir.OpF64Mul: "*",
	ir.OpI8Div: "/", ir.OpI16Div: "/", ir.OpI32Div: "/", ir.OpI64Div: "/", ir.OpF64Div: "/",
}

// emitStatement renders idx's instruction as one or more C statements.
func emitStatement(buf *bytes.Buffer, prog *ir.Program, fn *ir.Function, idx int, w ir.Inst) error {
	tm := prog.Types
	op := w.Opcode()

	if sym, ok := arithOperators[op]; ok {
		fmt.Fprintf(buf, "  v%d = %s %s %s;\n", idx, valueRef(prog, w.Arg0()), sym, valueRef(prog, w.Arg1()))
		return nil
	}
	if sym, ok := cmpOperators[op]; ok {
		fmt.Fprintf(buf, "  v%d = (%s %s %s) ? 1 : 0;\n", idx, valueRef(prog, w.Arg0()), sym, valueRef(prog, w.Arg1()))
		return nil
	}

	switch op {
	case ir.OpI1Const, ir.OpI8Const, ir.OpI16Const, ir.OpI32Const:
		fmt.Fprintf(buf, "  v%d = %d;\n", idx, w.SignedConstant())
	case ir.OpI64Const:
		fmt.Fprintf(buf, "  v%d = %dLL;\n", idx, prog.I64Pool[w.PoolIndex()])
	case ir.OpF64Const:
		fmt.Fprintf(buf, "  v%d = %.17g;\n", idx, prog.F64Pool[w.PoolIndex()])
	case ir.OpLnot:
		fmt.Fprintf(buf, "  v%d = !%s;\n", idx, valueRef(prog, w.Arg0()))
	case ir.OpConv:
		target := cType(tm, types.ID(w.T3Type()))
		src := valueRef(prog, w.T3Arg())
		if ir.ConvKind(w.T3Sarg()) == ir.ConvBitcast {
			fmt.Fprintf(buf, "  v%d = *(%s*)&v%d;\n", idx, target, w.T3Arg().Index())
		} else {
			fmt.Fprintf(buf, "  v%d = (%s)%s;\n", idx, target, src)
		}
	case ir.OpAlloca:
		fmt.Fprintf(buf, "  v%d = (void*)v%d_mem;\n", idx, idx)
	case ir.OpLoad:
		target := cType(tm, types.ID(w.T3Type()))
		fmt.Fprintf(buf, "  v%d = *(%s*)%s;\n", idx, target, valueRef(prog, w.T3Arg()))
	case ir.OpStore:
		storedType, err := prog.ValueType(fn, w.Arg1())
		if err != nil {
			return errors.BackendBuildFailed("optimizing", err)
		}
		fmt.Fprintf(buf, "  *(%s*)%s = %s;\n", cType(tm, storedType), valueRef(prog, w.Arg0()), valueRef(prog, w.Arg1()))
	case ir.OpPtrCast:
		fmt.Fprintf(buf, "  v%d = %s;\n", idx, valueRef(prog, w.T3Arg()))
	case ir.OpPtrAdd:
		fmt.Fprintf(buf, "  v%d = (void*)((unsigned char*)%s + %s);\n", idx, valueRef(prog, w.Arg0()), valueRef(prog, w.Arg1()))
	case ir.OpNullptr:
		fmt.Fprintf(buf, "  v%d = (void*)0;\n", idx)
	case ir.OpFuncArg:
		fmt.Fprintf(buf, "  v%d = arg%d;\n", idx, w.T3Arg().Index())
	case ir.OpCallArg:
		// Consumed by the following Call/CallIndirect below.
	case ir.OpCall, ir.OpCallIndirect:
		return emitCall(buf, prog, fn, idx, w)
	case ir.OpPhi:
		// Declared up front; phi_member assigns into it from each
		// predecessor block.
	case ir.OpPhiMember:
		fmt.Fprintf(buf, "  v%d = %s;\n", w.Arg0().Index(), valueRef(prog, w.Arg1()))
	case ir.OpBr:
		fmt.Fprintf(buf, "  goto bb%d;\n", w.T5BlockA())
	case ir.OpCondBr:
		fmt.Fprintf(buf, "  if (%s) goto bb%d; else goto bb%d;\n", valueRef(prog, w.T5Arg()), w.T5BlockA(), w.T5BlockB())
	case ir.OpReturn:
		fmt.Fprintln(buf, "  return;")
	case ir.OpReturnValue:
		fmt.Fprintf(buf, "  return %s;\n", valueRef(prog, w.Arg0()))
	default:
		return errors.BackendBuildFailed("optimizing", fmt.Errorf("unhandled opcode in textual emitter: %v", op))
	}
	return nil
}

// precedingCallArgs walks backward from v over the contiguous run of
// call_arg instructions feeding it, returning them in argument order —
// the same backward scan asm.lowering.precedingCallArgs performs over
// the packed instruction form.
func precedingCallArgs(fn *ir.Function, idx int) []ir.Value {
	var rev []ir.Value
	i := idx - 1
	for i >= 0 {
		w := fn.Instrs[i]
		if w.Opcode() != ir.OpCallArg {
			break
		}
		rev = append(rev, w.CallArgValue())
		i--
	}
	args := make([]ir.Value, len(rev))
	for i, a := range rev {
		args[len(rev)-1-i] = a
	}
	return args
}

func emitCall(buf *bytes.Buffer, prog *ir.Program, fn *ir.Function, idx int, w ir.Inst) error {
	args := precedingCallArgs(fn, idx)
	argExprs := make([]string, len(args))
	for i, a := range args {
		argExprs[i] = valueRef(prog, a)
	}
	argList := ""
	for i, e := range argExprs {
		if i > 0 {
			argList += ", "
		}
		argList += e
	}

	result, sig := prog.Types.FunctionSignature(types.ID(w.T3Type()))
	var callee string
	if w.Opcode() == ir.OpCallIndirect {
		callee = fmt.Sprintf("((%s (*)(%s))%s)", cType(prog.Types, result), cParamList(prog.Types, sig), valueRef(prog, w.T3Arg()))
	} else {
		callee = prog.Functions[int(w.T3Arg().Index())].Name
	}

	if prog.Types.Kind(result) == types.KindVoid {
		fmt.Fprintf(buf, "  %s(%s);\n", callee, argList)
	} else {
		fmt.Fprintf(buf, "  v%d = %s(%s);\n", idx, callee, argList)
	}
	return nil
}
