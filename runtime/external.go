package runtime

import (
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// Symbol names match the runtime library's own exported C symbols —
// the JIT backend calls these as direct calls (ir.Builder.Call) and
// the optimizing backend's linked shared library resolves them at
// dlopen time, so the string must match exactly what the runtime
// library exports.
const (
	symHashTableCreate  = "kush_runtime_hash_table_create"
	symHashTableInsert  = "kush_runtime_hash_table_insert"
	symHashTableGet     = "kush_runtime_hash_table_get"
	symHashTableFree    = "kush_runtime_hash_table_free"
	symVectorCreate     = "kush_runtime_vector_create"
	symVectorPushBack   = "kush_runtime_vector_push_back"
	symVectorGet        = "kush_runtime_vector_get"
	symVectorSize       = "kush_runtime_vector_size"
	symVectorFree       = "kush_runtime_vector_free"
	symTupleIdxCreate   = "kush_runtime_tuple_idx_table_create"
	symTupleIdxInsert   = "kush_runtime_tuple_idx_table_insert"
	symTupleIdxSize     = "kush_runtime_tuple_idx_table_size"
	symTupleIdxFree     = "kush_runtime_tuple_idx_table_free"
	symColumnScanInit   = "kush_runtime_column_scan_init"
	symColumnScanAdvance = "kush_runtime_column_scan_advance"

	// SkinnerJoinPermutable and SkinnerJoinRecompiling are declared as
	// two distinct external functions, not one polymorphic entry point
	// — the original implementation's runtime/skinner_join_executor.h
	// separates "toggle predicate flags" (permutable) from "re-lower
	// the join body under a new order" (recompiling), and a single
	// emitted call site is always one or the other, never both.
	SkinnerJoinPermutable  = "kush_runtime_execute_permutable_skinner_join"
	SkinnerJoinRecompiling = "kush_runtime_execute_recompiling_skinner_join"
)

// DeclareExternalFunctions registers the runtime library's fixed
// catalog of external functions against prog, using tm for the opaque
// and pointer types the signatures reference. tm must already have
// StandardOpaqueTypes registered. Mirrors the original's ForwardDeclare
// static methods (one per proxy class), collapsed into a single entry
// point the way runtime.StandardOpaqueTypes collapses type
// registration (spec §10.4).
func DeclareExternalFunctions(prog *ir.Program, tm *types.Manager) error {
	hashTable, err := tm.Lookup(HashTable)
	if err != nil {
		return err
	}
	vector, err := tm.Lookup(Vector)
	if err != nil {
		return err
	}
	tupleIdx, err := tm.Lookup(TupleIdxTable)
	if err != nil {
		return err
	}
	columnScan, err := tm.Lookup(ColumnScan)
	if err != nil {
		return err
	}

	hashTablePtr := tm.Pointer(hashTable)
	vectorPtr := tm.Pointer(vector)
	tupleIdxPtr := tm.Pointer(tupleIdx)
	columnScanPtr := tm.Pointer(columnScan)
	i8ptr := tm.I8Ptr()
	i32ptr := tm.Pointer(tm.I32())

	declare := func(name string, result types.ID, args []types.ID) {
		fnType := tm.Function(result, args)
		prog.DeclareFunction(ir.NewExternalFunction(name, fnType))
	}

	declare(symHashTableCreate, hashTablePtr, nil)
	declare(symHashTableInsert, tm.Void(), []types.ID{hashTablePtr, tm.I64(), i8ptr})
	declare(symHashTableGet, i8ptr, []types.ID{hashTablePtr, tm.I64()})
	declare(symHashTableFree, tm.Void(), []types.ID{hashTablePtr})

	declare(symVectorCreate, vectorPtr, []types.ID{tm.I64()})
	declare(symVectorPushBack, tm.Void(), []types.ID{vectorPtr, i8ptr})
	declare(symVectorGet, i8ptr, []types.ID{vectorPtr, tm.I64()})
	declare(symVectorSize, tm.I64(), []types.ID{vectorPtr})
	declare(symVectorFree, tm.Void(), []types.ID{vectorPtr})

	declare(symTupleIdxCreate, tupleIdxPtr, nil)
	declare(symTupleIdxInsert, tm.Void(), []types.ID{tupleIdxPtr, i32ptr, tm.I32()})
	declare(symTupleIdxSize, tm.I32(), []types.ID{tupleIdxPtr})
	declare(symTupleIdxFree, tm.Void(), []types.ID{tupleIdxPtr})

	declare(symColumnScanInit, columnScanPtr, []types.ID{i8ptr, tm.I64()})
	declare(symColumnScanAdvance, tm.I1(), []types.ID{columnScanPtr})

	if err := declareSkinnerJoinExecutors(prog, tm, tupleIdxPtr); err != nil {
		return err
	}
	return nil
}

// declareSkinnerJoinExecutors registers the two skinner-join entry
// points, their signatures grounded directly on the original's
// SkinnerJoinExecutor::ForwardDeclare (compile/proxy/
// skinner_join_executor.cc): the permutable variant takes a join
// handler function-pointer array and flag/progress bookkeeping
// arrays; the recompiling variant takes a translator pointer able to
// re-lower the join body, plus materialized buffer/index arrays and a
// tuple-index table.
func declareSkinnerJoinExecutors(prog *ir.Program, tm *types.Manager, tupleIdxPtr types.ID) error {
	i8ptr := tm.I8Ptr()
	i32ptr := tm.Pointer(tm.I32())
	handlerType := tm.Function(tm.I32(), []types.ID{tm.I32(), tm.I1()})
	handlerPtr := tm.Pointer(handlerType)
	handlerPtrPtr := tm.Pointer(handlerPtr)

	permutableType := tm.Function(tm.Void(), []types.ID{
		tm.I32(), tm.I32(), // num_tables, num_predicates
		i8ptr, i8ptr, i8ptr, // table_predicate_to_flag, tables_per_predicate, flag_arr
		handlerPtrPtr, handlerPtr, // join_handler_fn_arr, valid_tuple_handler
		tm.I32(),                  // table_predicate_to_flag_idx_len
		i32ptr, i32ptr, i32ptr, i32ptr, i32ptr, // progress, table_ctr, idx, last_table, num_result_tuples
	})
	prog.DeclareFunction(ir.NewExternalFunction(SkinnerJoinPermutable, permutableType))

	recompilingType := tm.Function(tm.Void(), []types.ID{
		tm.I32(),                    // num_tables
		i32ptr,                      // cardinality_arr
		i8ptr,                       // table_connections
		i8ptr,                       // codegen (opaque translator handle)
		tm.Pointer(i8ptr),           // materialized_buffers
		tm.Pointer(i8ptr),           // materialized_indexes
		tupleIdxPtr,                 // tuple_idx_table
	})
	prog.DeclareFunction(ir.NewExternalFunction(SkinnerJoinRecompiling, recompilingType))

	return nil
}
