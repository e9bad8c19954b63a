package runtime

import "github.com/kushdb/khir/types"

// Opaque type names the runtime library owns. Emitted code only ever
// holds pointers to these — their layout is private to the runtime,
// never computed by the type manager (spec §4.1: opaque types have no
// layout).
const (
	HashTable          = "HashTable"
	Vector             = "Vector"
	TupleIdxTable      = "TupleIdxTable"
	ColumnScan         = "ColumnScan"
	SkinnerJoinExecutor = "SkinnerJoinExecutor"
)

// catalog is registered once per types.Manager by StandardOpaqueTypes,
// matching the original implementation's forward_declare.cc: a fixed
// list of runtime-owned opaque types, registered before translation of
// any query-specific IR begins.
var catalog = []string{
	HashTable,
	Vector,
	TupleIdxTable,
	ColumnScan,
	SkinnerJoinExecutor,
}

// StandardOpaqueTypes registers the runtime's fixed opaque-type
// catalog against tm. Call once per types.Manager, before building any
// program that references these types by name via tm.Lookup.
func StandardOpaqueTypes(tm *types.Manager) error {
	for _, name := range catalog {
		if _, err := tm.Opaque(name); err != nil {
			return err
		}
	}
	return nil
}
