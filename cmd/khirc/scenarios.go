package main

import (
	"context"

	"github.com/kushdb/khir/driver"
	"github.com/kushdb/khir/ir"
	"github.com/kushdb/khir/types"
)

// paramSpec names one editable argument a scenario's run func accepts,
// mirroring the teacher's funcInfo/paramInfo split: a display name, a
// type hint shown as the input's placeholder, and the value pre-filled
// when the interactive model first renders the field.
type paramSpec struct {
	name       string
	typeHint   string
	defaultVal string
}

// scenario names one of the demo programs this CLI can build and run.
// Each mirrors one of the worked examples the tests in ir/, asm/, and
// driver/ already exercise in isolation — the CLI's job is to show the
// same shapes end to end, through Program.Translate, for a human.
type scenario struct {
	name        string
	description string
	params      []paramSpec
	build       func(tm *types.Manager) (*ir.Program, string)
	run         func(ctx context.Context, entryAddr uintptr, args []string) (string, error)
	// pipeline, if non-nil, builds a driver.Graph instead of calling a
	// compiled entry point directly — used only by the pipeline-dispatch
	// scenario.
	pipeline func() (*driver.Graph, *recordingOps, *recordingOps, *recordingOps)
}

var scenarios = []scenario{
	{
		name:        "integer-add",
		description: "compute(i32, i32) -> i32: return a + b",
		params: []paramSpec{
			{name: "a", typeHint: "i32", defaultVal: "5"},
			{name: "b", typeHint: "i32", defaultVal: "7"},
		},
		build: buildIntegerAddProgram,
		run:   runIntBinary,
	},
	{
		name:        "branch-phi",
		description: "compute(i1, i64, i64) -> i64: cond ? a : b via a join-block phi",
		params: []paramSpec{
			{name: "cond", typeHint: "i1 (true/false)", defaultVal: "true"},
			{name: "a", typeHint: "i64", defaultVal: "5"},
			{name: "b", typeHint: "i64", defaultVal: "9"},
		},
		build: buildBranchPhiProgram,
		run:   runBranchPhi,
	},
	{
		name:        "struct-load",
		description: "compute(S*) -> i64: load the third field of struct S{i8,i16,i64}",
		params: []paramSpec{
			{name: "c", typeHint: "i64 (third field)", defaultVal: "1000"},
		},
		build: buildStructLoadProgram,
		run:   runStructLoad,
	},
	{
		name:        "loop-sum",
		description: "compute() -> i64: sum(i for i in 0..10) * 3",
		build:       buildLoopSumProgram,
		run:         runNullary,
	},
	{
		name:        "global-mutation",
		description: "compute(i64**) -> i64: store a public global through dest, return **dest",
		build:       buildGlobalMutationProgram,
		run:         runGlobalMutation,
	},
	{
		name:        "pipeline-dispatch",
		description: "three-pipeline DAG: split morsel dispatch over a 3-tuple source",
		pipeline:    buildPipelineDemo,
	},
}
