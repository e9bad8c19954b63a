package asm

import (
	"encoding/binary"
	"math"

	"golang.org/x/sys/unix"

	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// dataPatch records a pointer-valued byte slot in a DataSection's
// backing memory that must be overwritten with an absolute address once
// the region's final base is known (mmap fixes the base before any
// bytes are copied in, but the offsets a pointer-valued slot targets are
// only known relative to the still-being-assembled buffer).
type dataPatch struct {
	at     int // byte offset of the 8-byte pointer slot
	target int // byte offset of the address it should hold
}

// DataSection materializes a program's constant pool and module globals
// into one mmap'd read-write region with stable absolute addresses,
// satisfying spec §4.3.1's requirement that globals and aggregate/
// char-array constants resolve to relocated label addresses rather than
// being read out of a function's own stack frame. Unlike CodeBuffer, a
// DataSection's addresses are final as soon as it is built — mmap
// returns the backing pages immediately, so there is no
// write-then-protect step before the region can be addressed from
// generated code.
//
// It is built once per ir.Program and shared by every function the JIT
// backend lowers against that program: the constant pool and global
// table are program-level, not per-function.
type DataSection struct {
	mem  []byte
	base uintptr

	// constOffset maps a constant-pool index to its byte offset into mem.
	// Scalar literals (OpI64Const/OpF64Const) have no section storage of
	// their own — they are materialized as immediates at their use site
	// — so their entry is -1.
	constOffset []int

	// globalOffset maps a global index to its byte offset into mem.
	globalOffset []int
}

// BuildDataSection serializes prog's constant pool (in dependency order,
// via Program.TopologicalConstants) and module globals into a single RW
// region. Globals are laid out first so that a GlobalRef or aggregate
// constant emitted afterwards can always resolve the address it points
// to.
func BuildDataSection(prog *ir.Program) (*DataSection, error) {
	order, err := prog.TopologicalConstants()
	if err != nil {
		return nil, errors.BackendBuildFailed("jit", err)
	}

	ds := &DataSection{
		constOffset:  make([]int, len(prog.ConstantPool)),
		globalOffset: make([]int, len(prog.Globals)),
	}
	for i := range ds.constOffset {
		ds.constOffset[i] = -1
	}
	for i := range ds.globalOffset {
		ds.globalOffset[i] = -1
	}

	var buf []byte
	var patches []dataPatch

	write := func(size, align int) int {
		for align > 1 && len(buf)%align != 0 {
			buf = append(buf, 0)
		}
		off := len(buf)
		buf = append(buf, make([]byte, size)...)
		return off
	}

	for i, g := range prog.Globals {
		l := prog.Types.Layout(g.Type)
		size := int(l.Size)
		align := int(l.Align)
		if size == 0 {
			size, align = 8, 8
		}
		ds.globalOffset[i] = write(size, align)
	}

	for _, idx := range order {
		w := prog.ConstantPool[idx]
		switch w.Opcode() {
		case ir.OpI64Const, ir.OpF64Const:
			// No section storage: materialized as an immediate at the
			// use site (asm/lower.go).
		case ir.OpGlobalCharArrayConst:
			data := prog.CharArrayPool[w.PoolIndex()]
			off := write(len(data), 1)
			copy(buf[off:], data)
			ds.constOffset[idx] = off
		case ir.OpStructConst, ir.OpArrayConst:
			v := ir.ConstantValue(uint32(idx))
			pointee := prog.Types.ElemType(prog.ConstantType(v))
			layout := prog.Types.Layout(pointee)
			off := write(int(layout.Size), int(layout.Align))
			ds.constOffset[idx] = off
			writeAggregate(prog, ds, buf, off, pointee, idx, &patches)
		}
	}

	for i, g := range prog.Globals {
		if !g.Initializer.IsConstant() {
			continue
		}
		writeValue(prog, ds, buf, ds.globalOffset[i], g.Initializer, &patches)
	}

	if len(buf) == 0 {
		return ds, nil
	}

	mem, err := unix.Mmap(-1, 0, len(buf), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.BackendBuildFailed("jit", err)
	}
	copy(mem, buf)
	ds.mem = mem
	ds.base = uintptr(unsafePointer(mem))

	for _, p := range patches {
		binary.LittleEndian.PutUint64(mem[p.at:], uint64(ds.base)+uint64(p.target))
	}

	return ds, nil
}

// writeAggregate fills buf[off:off+layout(resultType).Size] with the
// struct_const/array_const pool entry at idx's element values, each
// placed at its field or array-element offset within resultType.
func writeAggregate(prog *ir.Program, ds *DataSection, buf []byte, off int, resultType types.ID, idx int, patches *[]dataPatch) {
	elems := prog.AggregateElems(idx)
	if prog.Types.Kind(resultType) == types.KindArray {
		elemType := prog.Types.ElemType(resultType)
		elemSize := int(prog.Types.Layout(elemType).Size)
		for i, e := range elems {
			writeValue(prog, ds, buf, off+i*elemSize, e, patches)
		}
		return
	}

	fieldOffsets := prog.Types.FieldOffsets(resultType)
	for i, e := range elems {
		if i >= len(fieldOffsets) {
			break
		}
		writeValue(prog, ds, buf, off+int(fieldOffsets[i]), e, patches)
	}
}

// writeValue writes v's bytes (or, for a value that resolves to an
// address, queues a dataPatch recording where that address belongs)
// starting at buf[off].
func writeValue(prog *ir.Program, ds *DataSection, buf []byte, off int, v ir.Value, patches *[]dataPatch) {
	if !v.IsConstant() {
		return
	}
	w := prog.ConstantPool[v.Index()]
	switch w.Opcode() {
	case ir.OpI64Const:
		binary.LittleEndian.PutUint64(buf[off:], uint64(prog.I64Pool[w.PoolIndex()]))
	case ir.OpF64Const:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(prog.F64Pool[w.PoolIndex()]))
	case ir.OpGlobalRef:
		target := int(w.T3Arg().Index())
		*patches = append(*patches, dataPatch{at: off, target: ds.globalOffset[target]})
	case ir.OpGlobalCharArrayConst, ir.OpStructConst, ir.OpArrayConst:
		*patches = append(*patches, dataPatch{at: off, target: ds.constOffset[int(v.Index())]})
	}
}

// GlobalAddr returns the absolute runtime address of global idx's
// storage.
func (ds *DataSection) GlobalAddr(idx int) uintptr {
	return ds.base + uintptr(ds.globalOffset[idx])
}

// ConstAddr returns the absolute runtime address of the constant-pool
// entry at idx's storage (a char-array or struct/array constant). ok is
// false for a scalar literal (OpI64Const/OpF64Const), which has no
// section storage.
func (ds *DataSection) ConstAddr(idx int) (addr uintptr, ok bool) {
	off := ds.constOffset[idx]
	if off < 0 {
		return 0, false
	}
	return ds.base + uintptr(off), true
}

// Release unmaps the section's backing pages.
func (ds *DataSection) Release() error {
	if ds.mem == nil {
		return nil
	}
	err := unix.Munmap(ds.mem)
	ds.mem = nil
	return err
}
