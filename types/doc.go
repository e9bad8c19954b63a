// Package types implements the KHIR type manager: an interned,
// content-addressed universe of types with SysV x86-64 layout computed
// once at creation time.
//
// Types are opaque small-integer handles (ID). Structurally equal
// non-named types (same kind, same element IDs, same arity) share one
// ID; named structs and opaque types are interned by name and a second
// registration under the same name fails with errors.KindDuplicateName.
//
//	tm := types.NewManager()
//	i32 := tm.I32()
//	ptr := tm.Pointer(i32)
//	again := tm.Pointer(i32)
//	// ptr == again: structural interning
//
// Types are created monotonically during IR building and are never
// destroyed before the owning Manager is discarded.
package types
