package ir

import "github.com/kushdb/khir/types"

// Global describes a module-level variable: constant-ness, visibility,
// its type, and a constant-pool handle for its initializer.
type Global struct {
	Name        string
	Type        types.ID
	Constant    bool
	Public      bool
	Initializer Value
}

// Program is the top-level compilation unit: a type manager, the
// constant pool, module globals, and the function table. A single
// Program is shared by the JIT and optimizing backends (spec §2).
type Program struct {
	Types *types.Manager

	// ConstantPool holds one packed instruction per constant-pool
	// entry, in creation order; a constant Value's index (ir.Value.Index)
	// is its position here.
	ConstantPool []Inst

	// Literal side-tables backing OpI64Const/OpF64Const/
	// OpGlobalCharArrayConst pool entries — the packed word only ever
	// carries an index into one of these.
	I64Pool       []int64
	F64Pool       []float64
	CharArrayPool [][]byte

	Globals   []Global
	Functions []*Function

	funcIndex  map[string]int
	aggregates map[int]*aggregateMeta
}

// NewProgram creates an empty program over an existing type manager.
func NewProgram(tm *types.Manager) *Program {
	return &Program{
		Types:     tm,
		funcIndex: make(map[string]int),
	}
}

// DeclareFunction registers fn in the function table, keyed by name for
// later call-site resolution. Returns the function's index, used as the
// T3 "arg" operand of direct Call instructions.
func (p *Program) DeclareFunction(fn *Function) int {
	idx := len(p.Functions)
	p.Functions = append(p.Functions, fn)
	p.funcIndex[fn.Name] = idx
	return idx
}

// FunctionIndex looks up a previously declared function's table index by
// name.
func (p *Program) FunctionIndex(name string) (int, bool) {
	idx, ok := p.funcIndex[name]
	return idx, ok
}

// AddGlobal appends a global and returns its index.
func (p *Program) AddGlobal(g Global) int {
	idx := len(p.Globals)
	p.Globals = append(p.Globals, g)
	return idx
}

// ValueType resolves v's type regardless of which arena it comes from:
// constant-pool values dispatch to ConstantType, function-local values
// to fn.TypeOf. Backends that decode raw instruction operands (asm,
// opt) should call this instead of fn.TypeOf directly, since an
// operand of a T2/T3/Tcall_arg instruction is legally allowed to be a
// constant-pool value (a global reference, a struct/array constant, a
// char-array constant) and fn.TypeOf panics on those.
func (p *Program) ValueType(fn *Function, v Value) (types.ID, error) {
	if v.IsConstant() {
		return p.ConstantType(v), nil
	}
	return fn.TypeOf(p.Types, v)
}
