package types

import "testing"

func TestBaseTypesReservedOrder(t *testing.T) {
	m := NewManager()

	tests := []struct {
		name string
		id   ID
		kind Kind
	}{
		{"void", m.Void(), KindVoid},
		{"i1", m.I1(), KindI1},
		{"i8", m.I8(), KindI8},
		{"i16", m.I16(), KindI16},
		{"i32", m.I32(), KindI32},
		{"i64", m.I64(), KindI64},
		{"f64", m.F64(), KindF64},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if int(tt.id) != i {
				t.Errorf("%s handle = %d, want %d", tt.name, tt.id, i)
			}
			if m.Kind(tt.id) != tt.kind {
				t.Errorf("Kind(%s) = %v, want %v", tt.name, m.Kind(tt.id), tt.kind)
			}
		})
	}

	if m.Kind(m.I8Ptr()) != KindPointer {
		t.Errorf("I8Ptr should be a pointer type")
	}
	if m.ElemType(m.I8Ptr()) != m.I8() {
		t.Errorf("I8Ptr should point to i8")
	}
}

func TestInterningIdempotence(t *testing.T) {
	m := NewManager()

	p1 := m.Pointer(m.I32())
	p2 := m.Pointer(m.I32())
	if p1 != p2 {
		t.Errorf("Pointer(i32) not interned: %d != %d", p1, p2)
	}

	a1 := m.Array(m.I64(), 10)
	a2 := m.Array(m.I64(), 10)
	if a1 != a2 {
		t.Errorf("Array(i64,10) not interned: %d != %d", a1, a2)
	}
	a3 := m.Array(m.I64(), 11)
	if a1 == a3 {
		t.Error("Array(i64,10) and Array(i64,11) must not share a handle")
	}

	s1 := m.Struct([]ID{m.I8(), m.I16(), m.I64()})
	s2 := m.Struct([]ID{m.I8(), m.I16(), m.I64()})
	if s1 != s2 {
		t.Errorf("Struct not interned: %d != %d", s1, s2)
	}
	s3 := m.Struct([]ID{m.I8(), m.I64(), m.I16()})
	if s1 == s3 {
		t.Error("structs with different field order must not share a handle")
	}

	f1 := m.Function(m.I64(), []ID{m.I32(), m.I32()})
	f2 := m.Function(m.I64(), []ID{m.I32(), m.I32()})
	if f1 != f2 {
		t.Errorf("Function not interned: %d != %d", f1, f2)
	}
}

func TestNamedStructDuplicate(t *testing.T) {
	m := NewManager()

	if _, err := m.NamedStruct([]ID{m.I32()}, "Tuple"); err != nil {
		t.Fatalf("first NamedStruct(Tuple) failed: %v", err)
	}
	if _, err := m.NamedStruct([]ID{m.I64()}, "Tuple"); err == nil {
		t.Fatal("expected DuplicateName error on second NamedStruct(Tuple)")
	}
}

func TestOpaqueDuplicateAndLookup(t *testing.T) {
	m := NewManager()

	id, err := m.Opaque("HashTable")
	if err != nil {
		t.Fatalf("Opaque(HashTable) failed: %v", err)
	}
	if _, err := m.Opaque("HashTable"); err == nil {
		t.Fatal("expected DuplicateName error on second Opaque(HashTable)")
	}

	got, err := m.Lookup("HashTable")
	if err != nil {
		t.Fatalf("Lookup(HashTable) failed: %v", err)
	}
	if got != id {
		t.Errorf("Lookup(HashTable) = %d, want %d", got, id)
	}

	if _, err := m.Lookup("Vector"); err == nil {
		t.Fatal("expected UnknownName error for undeclared name")
	}
}

func TestFunctionSignatureAndStructFields(t *testing.T) {
	m := NewManager()

	args := []ID{m.I32(), m.F64()}
	fn := m.Function(m.I64(), args)
	result, gotArgs := m.FunctionSignature(fn)
	if result != m.I64() {
		t.Errorf("result = %d, want i64", result)
	}
	if len(gotArgs) != 2 || gotArgs[0] != m.I32() || gotArgs[1] != m.F64() {
		t.Errorf("args = %v, want %v", gotArgs, args)
	}

	fields := []ID{m.I8(), m.I64()}
	s := m.Struct(fields)
	gotFields := m.StructFields(s)
	if len(gotFields) != 2 || gotFields[0] != m.I8() || gotFields[1] != m.I64() {
		t.Errorf("fields = %v, want %v", gotFields, fields)
	}
}
