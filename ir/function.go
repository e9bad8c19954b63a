package ir

import "github.com/kushdb/khir/types"

// BasicBlock is a named sequence of instructions ending (once sealed) in
// exactly one terminator (br, condbr, return, return_value) — spec §3.4,
// §8.1's "every block outside the entry must be reachable and
// terminated" invariant.
type BasicBlock struct {
	ID     int
	Name   string
	Instrs []int // indices into the owning Function's Instrs
}

// Function is a KHIR function body: a flat instruction vector shared by
// all of its basic blocks, plus block bookkeeping. External functions
// (declared, not defined) carry a Type and Name but no blocks — see
// runtime.StandardOpaqueTypes for the catalog of such declarations.
type Function struct {
	Name     string
	Type     types.ID // types.KindFunction
	Public   bool
	External bool

	Instrs []Inst
	Blocks []*BasicBlock

	pendingPhis []pendingPhi
}

// pendingPhi tracks a phi whose member list is still being assembled —
// see phi.go.
type pendingPhi struct {
	phiIdx   int
	members  []int // indices of phi_member instructions feeding this phi
}

// NewFunction creates a function with a single entry block named
// "entry".
func NewFunction(name string, typ types.ID) *Function {
	fn := &Function{Name: name, Type: typ}
	fn.Blocks = append(fn.Blocks, &BasicBlock{ID: 0, Name: "entry"})
	return fn
}

// NewExternalFunction registers a declaration with no body, for linking
// against runtime-provided symbols (spec §10.4's declare_external_function).
func NewExternalFunction(name string, typ types.ID) *Function {
	return &Function{Name: name, Type: typ, External: true}
}

// Block returns the basic block with the given id, or nil.
func (fn *Function) Block(id int) *BasicBlock {
	if id < 0 || id >= len(fn.Blocks) {
		return nil
	}
	return fn.Blocks[id]
}

// NewBlock appends and returns a fresh, empty basic block.
func (fn *Function) NewBlock(name string) *BasicBlock {
	id := len(fn.Blocks)
	b := &BasicBlock{ID: id, Name: name}
	fn.Blocks = append(fn.Blocks, b)
	return b
}

// emit appends w to the function's instruction vector and records its
// index in block b, returning the resulting instruction Value.
func (fn *Function) emit(b *BasicBlock, w Inst) Value {
	idx := len(fn.Instrs)
	fn.Instrs = append(fn.Instrs, w)
	b.Instrs = append(b.Instrs, idx)
	return instValue(uint32(idx))
}

// Inst returns the instruction word a function-local Value names.
func (fn *Function) Inst(v Value) Inst {
	return fn.Instrs[v.Index()]
}

// Terminator returns b's last instruction, or false if b is still open
// (empty, or its last instruction is not a terminator opcode).
func (b *BasicBlock) Terminator(fn *Function) (Inst, bool) {
	if len(b.Instrs) == 0 {
		return 0, false
	}
	last := fn.Instrs[b.Instrs[len(b.Instrs)-1]]
	return last, last.Opcode().isTerminator()
}
