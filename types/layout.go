package types

// alignTo rounds off up to the next multiple of align (align must be a
// power of two, or 1).
func alignTo(off, align uint64) uint64 {
	if align <= 1 {
		return off
	}
	return (off + align - 1) &^ (align - 1)
}

// Layout is the SysV x86-64 size/alignment of a type.
type Layout struct {
	Size  uint64
	Align uint64
}

// Layout returns the size/alignment of t. Structs return the layout
// computed once at their creation; arrays are recomputed from their
// element type on every call, which is cheap.
func (m *Manager) Layout(t ID) Layout {
	e := &m.entries[t]
	switch e.kind {
	case KindVoid:
		return Layout{Size: 0, Align: 1}
	case KindI1, KindI8:
		return Layout{Size: 1, Align: 1}
	case KindI16:
		return Layout{Size: 2, Align: 2}
	case KindI32:
		return Layout{Size: 4, Align: 4}
	case KindI64, KindF64, KindPointer:
		return Layout{Size: 8, Align: 8}
	case KindArray:
		elemLayout := m.Layout(e.elem)
		return Layout{Size: elemLayout.Size * uint64(e.arrLen), Align: elemLayout.Align}
	case KindStruct:
		return e.layout
	case KindFunction, KindOpaque:
		// Function types are never materialized as values (only pointers to
		// them are); opaque types are owned and sized by the runtime library
		// that declared them. Callers must not place either by value.
		return Layout{Size: 0, Align: 1}
	default:
		return Layout{Size: 0, Align: 1}
	}
}

// computeStructLayout lays out a struct's fields with natural alignment —
// the same accumulate-offset-then-round-up-to-max-align discipline as a
// C struct — and caches the result (size, align, per-field offsets) on
// the entry. Called once, at struct creation; struct fields can only
// reference already-created types, so this can never observe a cycle.
func (m *Manager) computeStructLayout(id ID) {
	e := &m.entries[id]
	fields := e.args

	if len(fields) == 0 {
		e.layout = Layout{Size: 0, Align: 1}
		e.fieldOffsets = nil
		return
	}

	offsets := make([]uint64, len(fields))
	maxAlign := uint64(1)
	offset := uint64(0)

	for i, f := range fields {
		fl := m.Layout(f)
		offset = alignTo(offset, fl.Align)
		offsets[i] = offset
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
		offset += fl.Size
	}

	e.layout = Layout{Size: alignTo(offset, maxAlign), Align: maxAlign}
	e.fieldOffsets = offsets
}

// FieldOffsets returns the absolute byte offset of each field of a struct
// type, in declaration order. Offsets are monotonically non-decreasing
// per spec §8.1's layout invariant.
func (m *Manager) FieldOffsets(t ID) []uint64 {
	e := &m.entries[t]
	if e.kind != KindStruct {
		panic("types: FieldOffsets called on non-struct type")
	}
	return e.fieldOffsets
}

// PointerOffset computes the total byte offset of a GEP-style index path
// rooted at a pointer to t, and the pointee type of the resulting
// pointer. The first index steps through an array of t (its multiplier
// is t's own size, unless dynamic is set, which treats the first index as
// already expressed in elements-of-t and skips the multiplication);
// remaining indices navigate struct fields or array elements of whatever
// type the path has reached.
func (m *Manager) PointerOffset(t ID, indices []int, dynamic bool) (offset int64, result ID) {
	if len(indices) == 0 {
		return 0, t
	}

	if !dynamic {
		offset += int64(indices[0]) * int64(m.Layout(t).Size)
	}
	cur := t

	for _, idx := range indices[1:] {
		switch m.Kind(cur) {
		case KindStruct:
			offs := m.FieldOffsets(cur)
			offset += int64(offs[idx])
			cur = m.StructFields(cur)[idx]
		case KindArray:
			elem := m.ElemType(cur)
			offset += int64(idx) * int64(m.Layout(elem).Size)
			cur = elem
		default:
			panic("types: PointerOffset index path descends into a non-aggregate type")
		}
	}

	return offset, cur
}
