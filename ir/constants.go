package ir

import (
	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/types"
)

// aggregateMeta records the element Values and result type of a
// struct_const/array_const pool entry, keyed by its own pool index —
// the packed Inst alone only carries an element count (sarg), not the
// elements themselves (those live in the preceding run of const_elem
// words, mirroring call_arg/call).
type aggregateMeta struct {
	resultType types.ID
	elems      []Value
}

// AggregateSlot is a forward-declared struct/array constant: its pool
// index is assigned immediately so other constants may reference it
// before its element list is known, but it is not valid to emit until
// Resolve is called. This is what makes the constant pool an acyclic DAG
// rather than requiring strict bottom-up declaration order (Design Note).
type AggregateSlot struct {
	idx int
}

func (p *Program) ensureAggregates() {
	if p.aggregates == nil {
		p.aggregates = make(map[int]*aggregateMeta)
	}
}

// I64Const interns lit in the program's i64 pool and emits a constant
// pool entry for it.
func (p *Program) I64Const(lit int64) Value {
	idx := len(p.I64Pool)
	p.I64Pool = append(p.I64Pool, lit)
	return p.pushConst(packT1(OpI64Const, uint64(idx)))
}

// F64Const interns lit in the program's f64 pool and emits a constant
// pool entry for it.
func (p *Program) F64Const(lit float64) Value {
	idx := len(p.F64Pool)
	p.F64Pool = append(p.F64Pool, lit)
	return p.pushConst(packT1(OpF64Const, uint64(idx)))
}

// CharArrayConst interns a byte string and emits a global_char_array_const
// entry (result type i8*).
func (p *Program) CharArrayConst(bytes []byte) Value {
	idx := len(p.CharArrayPool)
	p.CharArrayPool = append(p.CharArrayPool, bytes)
	return p.pushConst(packT1(OpGlobalCharArrayConst, uint64(idx)))
}

// GlobalRef emits a constant pool entry naming a module global, typed as
// a pointer to pointee.
func (p *Program) GlobalRef(pointee types.ID, globalIdx int) Value {
	return p.pushConst(packT3(OpGlobalRef, instValue(uint32(globalIdx)), 0, uint16(pointee)))
}

// NewAggregateSlot reserves a pool index for a struct or array constant
// of resultType (a pointer-to-struct or pointer-to-array type) whose
// elements are not yet known. Call Resolve once they are.
func (p *Program) NewAggregateSlot(resultType types.ID, isArray bool) (Value, *AggregateSlot) {
	p.ensureAggregates()
	op := OpStructConst
	if isArray {
		op = OpArrayConst
	}
	v := p.pushConst(packT3(op, 0, 0, uint16(resultType)))
	idx := int(v.Index())
	p.aggregates[idx] = &aggregateMeta{resultType: resultType}
	return v, &AggregateSlot{idx: idx}
}

// Resolve fills in a forward-declared aggregate's element list (other
// constant-pool Values, possibly slots not yet themselves resolved).
func (s *AggregateSlot) Resolve(p *Program, elems []Value) {
	meta := p.aggregates[s.idx]
	if meta == nil {
		panic("ir: Resolve called on an unknown aggregate slot")
	}
	meta.elems = append([]Value(nil), elems...)
	w := p.ConstantPool[s.idx]
	p.ConstantPool[s.idx] = packT3(w.Opcode(), 0, uint8(len(elems)), w.t3Type())
}

func (p *Program) pushConst(w Inst) Value {
	idx := len(p.ConstantPool)
	p.ConstantPool = append(p.ConstantPool, w)
	return constValue(uint32(idx))
}

// ConstantType recovers a constant-pool value's type.
func (p *Program) ConstantType(v Value) types.ID {
	w := p.ConstantPool[v.Index()]
	switch w.Opcode() {
	case OpI64Const:
		return p.Types.I64()
	case OpF64Const:
		return p.Types.F64()
	case OpGlobalCharArrayConst:
		return p.Types.I8Ptr()
	case OpGlobalRef:
		return p.Types.Pointer(types.ID(w.t3Type()))
	case OpStructConst, OpArrayConst:
		return p.Types.Pointer(types.ID(w.t3Type()))
	default:
		panic("ir: ConstantType: not a constant-pool opcode")
	}
}

// AggregateElems returns the element values of the struct_const/
// array_const pool entry at idx, in field/element order. Exported for
// backends serializing the constant pool into a data section.
func (p *Program) AggregateElems(idx int) []Value {
	meta := p.aggregates[idx]
	if meta == nil {
		return nil
	}
	return meta.elems
}

// constantDeps returns the constant-pool indices idx's entry directly
// depends on (empty for scalar literals and global refs).
func (p *Program) constantDeps(idx int) []int {
	meta := p.aggregates[idx]
	if meta == nil {
		return nil
	}
	deps := make([]int, 0, len(meta.elems))
	for _, e := range meta.elems {
		if e.IsConstant() {
			deps = append(deps, int(e.Index()))
		}
	}
	return deps
}

// TopologicalConstants returns the constant pool's indices ordered so
// that every entry appears after the entries it depends on — the
// fixed-point pass the optimizing and JIT backends both need before
// emitting the pool, since AggregateSlot lets entries reference
// constants declared (but not yet resolved) later in program order.
func (p *Program) TopologicalConstants() ([]int, error) {
	n := len(p.ConstantPool)
	emitted := make([]bool, n)
	order := make([]int, 0, n)

	for len(order) < n {
		progressed := false
		for i := 0; i < n; i++ {
			if emitted[i] {
				continue
			}
			ready := true
			for _, d := range p.constantDeps(i) {
				if !emitted[d] {
					ready = false
					break
				}
			}
			if ready {
				emitted[i] = true
				order = append(order, i)
				progressed = true
			}
		}
		if !progressed {
			return nil, errors.InvalidConstantDependency("constant pool contains a cyclic dependency")
		}
	}
	return order, nil
}
