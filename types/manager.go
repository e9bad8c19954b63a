package types

import (
	"strconv"
	"strings"

	"github.com/kushdb/khir/errors"
)

// ID is an opaque handle into a Manager's type table.
type ID int

const invalidID ID = -1

type entry struct {
	name   string
	args   []ID // struct fields, or function argument types
	layout Layout
	fieldOffsets []uint64 // struct field offsets, valid len(args) entries
	elem   ID             // pointer elem, array elem, or function result
	arrLen int
	kind   Kind
	layoutComputed bool
}

// Manager interns types and computes their SysV x86-64 layout once, at
// creation time. The zero value is not usable; construct with NewManager.
type Manager struct {
	entries    []entry
	structural map[string]ID // interning key -> ID, for anonymous composite types
	named      map[string]ID // name -> ID, for named structs and opaque types

	base [7]ID // void, i1, i8, i16, i32, i64, f64 in that fixed order
	i8ptr ID
}

// NewManager creates a Manager with the seven reserved base types already
// interned at handles 0..6, and i8* interned immediately after, matching
// the fixed numbering spec §3.1 guarantees to dependent backends.
func NewManager() *Manager {
	m := &Manager{
		entries:    make([]entry, 0, 64),
		structural: make(map[string]ID, 64),
		named:      make(map[string]ID, 16),
	}

	baseKinds := []Kind{KindVoid, KindI1, KindI8, KindI16, KindI32, KindI64, KindF64}
	for i, k := range baseKinds {
		id := m.push(entry{kind: k})
		m.base[i] = id
	}

	m.i8ptr = m.Pointer(m.I8())
	return m
}

func (m *Manager) push(e entry) ID {
	id := ID(len(m.entries))
	m.entries = append(m.entries, e)
	return id
}

func (m *Manager) Void() ID { return m.base[0] }
func (m *Manager) I1() ID   { return m.base[1] }
func (m *Manager) I8() ID   { return m.base[2] }
func (m *Manager) I16() ID  { return m.base[3] }
func (m *Manager) I32() ID  { return m.base[4] }
func (m *Manager) I64() ID  { return m.base[5] }
func (m *Manager) F64() ID  { return m.base[6] }

// I8Ptr returns the distinguished i8* handle reserved per spec §3.1.
func (m *Manager) I8Ptr() ID { return m.i8ptr }

// Kind returns the kind of t.
func (m *Manager) Kind(t ID) Kind { return m.entries[t].kind }

// Pointer interns pointer-to-elem, returning the existing handle on a
// structural duplicate.
func (m *Manager) Pointer(elem ID) ID {
	key := "p:" + strconv.Itoa(int(elem))
	if id, ok := m.structural[key]; ok {
		return id
	}
	id := m.push(entry{kind: KindPointer, elem: elem})
	m.structural[key] = id
	return id
}

// Array interns an array of n elements of elem, returning the existing
// handle on a structural duplicate.
func (m *Manager) Array(elem ID, n int) ID {
	key := "a:" + strconv.Itoa(int(elem)) + ":" + strconv.Itoa(n)
	if id, ok := m.structural[key]; ok {
		return id
	}
	id := m.push(entry{kind: KindArray, elem: elem, arrLen: n})
	m.structural[key] = id
	return id
}

// Struct interns an anonymous struct of the given field types, returning
// the existing handle on a structural duplicate (same element IDs, same
// arity, in order).
func (m *Manager) Struct(fields []ID) ID {
	key := structuralKey("s", fields)
	if id, ok := m.structural[key]; ok {
		return id
	}
	id := m.push(entry{kind: KindStruct, args: append([]ID(nil), fields...)})
	m.computeStructLayout(id)
	m.structural[key] = id
	return id
}

// Function interns a function type (result, args), returning the existing
// handle on a structural duplicate.
func (m *Manager) Function(result ID, args []ID) ID {
	key := "f:" + strconv.Itoa(int(result)) + ":" + structuralKey("", args)
	if id, ok := m.structural[key]; ok {
		return id
	}
	id := m.push(entry{kind: KindFunction, elem: result, args: append([]ID(nil), args...)})
	m.structural[key] = id
	return id
}

// NamedStruct creates a new named struct type. Fails with
// errors.KindDuplicateName if name is already registered.
func (m *Manager) NamedStruct(fields []ID, name string) (ID, error) {
	if _, ok := m.named[name]; ok {
		return invalidID, errors.DuplicateName(errors.PhaseType, name)
	}
	id := m.push(entry{kind: KindStruct, args: append([]ID(nil), fields...), name: name})
	m.computeStructLayout(id)
	m.named[name] = id
	return id, nil
}

// Opaque creates a new opaque (incomplete, runtime-owned) type referred to
// by name. Fails with errors.KindDuplicateName if name is already
// registered.
func (m *Manager) Opaque(name string) (ID, error) {
	if _, ok := m.named[name]; ok {
		return invalidID, errors.DuplicateName(errors.PhaseType, name)
	}
	id := m.push(entry{kind: KindOpaque, name: name})
	m.named[name] = id
	return id, nil
}

// Lookup resolves a named struct or opaque type by name.
func (m *Manager) Lookup(name string) (ID, error) {
	id, ok := m.named[name]
	if !ok {
		return invalidID, errors.UnknownName(errors.PhaseType, name)
	}
	return id, nil
}

// ElemType returns the pointee type of a pointer, or the element type of
// an array. Panics if t is not a pointer or array — a dependency bug, not
// a well-formed-program error.
func (m *Manager) ElemType(t ID) ID {
	e := m.entries[t]
	if e.kind != KindPointer && e.kind != KindArray {
		panic("types: ElemType called on non-pointer/array type")
	}
	return e.elem
}

// ArrayLen returns the declared length of an array type.
func (m *Manager) ArrayLen(t ID) int {
	e := m.entries[t]
	if e.kind != KindArray {
		panic("types: ArrayLen called on non-array type")
	}
	return e.arrLen
}

// FunctionSignature returns the result and argument types of a function
// type.
func (m *Manager) FunctionSignature(t ID) (result ID, args []ID) {
	e := m.entries[t]
	if e.kind != KindFunction {
		panic("types: FunctionSignature called on non-function type")
	}
	return e.elem, e.args
}

// StructFields returns the field types of a struct type, in declaration
// order.
func (m *Manager) StructFields(t ID) []ID {
	e := m.entries[t]
	if e.kind != KindStruct {
		panic("types: StructFields called on non-struct type")
	}
	return e.args
}

// Name returns the registered name of a named struct or opaque type, or
// "" for anonymous/base/composite types.
func (m *Manager) Name(t ID) string { return m.entries[t].name }

func structuralKey(prefix string, ids []ID) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(id)))
	}
	b.WriteByte(']')
	return b.String()
}
