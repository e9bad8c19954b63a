package ir

import (
	"fmt"
	"io"
)

// Dump writes a human-readable rendering of the program's functions and
// constant pool, in the spirit of the original implementation's
// program-printer tool — useful for inspecting a built program's
// structure by hand.
func (p *Program) Dump(w io.Writer) error {
	for i, fn := range p.Functions {
		if err := dumpFunction(w, i, fn); err != nil {
			return err
		}
	}
	return dumpConstantPool(w, p)
}

func dumpFunction(w io.Writer, idx int, fn *Function) error {
	kind := "define"
	if fn.External {
		kind = "declare"
	}
	if _, err := fmt.Fprintf(w, "%s @%s  ; fn#%d\n", kind, fn.Name, idx); err != nil {
		return err
	}
	for _, b := range fn.Blocks {
		if _, err := fmt.Fprintf(w, "%s:\n", blockLabel(b)); err != nil {
			return err
		}
		for _, instrIdx := range b.Instrs {
			if err := dumpInst(w, instrIdx, fn.Instrs[instrIdx]); err != nil {
				return err
			}
		}
	}
	return nil
}

// TextualBody writes fn's basic blocks in the same rendering Dump uses,
// without the "define"/"declare" signature line.
func (fn *Function) TextualBody(w io.Writer) error {
	for _, b := range fn.Blocks {
		if _, err := fmt.Fprintf(w, "%s:\n", blockLabel(b)); err != nil {
			return err
		}
		for _, instrIdx := range b.Instrs {
			if err := dumpInst(w, instrIdx, fn.Instrs[instrIdx]); err != nil {
				return err
			}
		}
	}
	return nil
}

func blockLabel(b *BasicBlock) string {
	if b.Name != "" {
		return fmt.Sprintf("%s.%d", b.Name, b.ID)
	}
	return fmt.Sprintf("bb%d", b.ID)
}

func dumpInst(w io.Writer, idx int, inst Inst) error {
	op := inst.Opcode()
	var detail string
	switch op {
	case OpBr:
		detail = fmt.Sprintf("label bb%d", inst.t5BlockA())
	case OpCondBr:
		detail = fmt.Sprintf("%s, label bb%d, label bb%d", inst.t5Arg(), inst.t5BlockA(), inst.t5BlockB())
	case OpCallArg:
		detail = fmt.Sprintf("#%d %s", inst.callArgIndex(), inst.callArgValue())
	case OpI1Const, OpI8Const, OpI16Const, OpI32Const:
		detail = fmt.Sprintf("%d", inst.signedConstant())
	case OpI64Const, OpF64Const, OpGlobalCharArrayConst:
		detail = fmt.Sprintf("pool[%d]", inst.poolIndex())
	default:
		if op.IsUntyped() || op == OpStore || op == OpReturn || op == OpReturnValue {
			detail = fmt.Sprintf("%s, %s", inst.arg0(), inst.arg1())
		} else {
			detail = fmt.Sprintf("type=%d %s", inst.t3Type(), inst.t3Arg())
		}
	}
	_, err := fmt.Fprintf(w, "  %%%d = %s %s\n", idx, op, detail)
	return err
}

func (v Value) String() string {
	if v == NoValue {
		return "_"
	}
	if v.IsConstant() {
		return fmt.Sprintf("@c%d", v.Index())
	}
	return fmt.Sprintf("%%%d", v.Index())
}

func dumpConstantPool(w io.Writer, p *Program) error {
	if len(p.ConstantPool) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "constants:\n"); err != nil {
		return err
	}
	for i, inst := range p.ConstantPool {
		if err := dumpInst(w, i, inst); err != nil {
			return err
		}
	}
	return nil
}
