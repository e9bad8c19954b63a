package driver

import "context"

// Backend selects which compiled body a split pipeline's morsel should
// run against.
type Backend int

const (
	BackendJIT Backend = iota
	BackendOptimizing
)

func (b Backend) String() string {
	if b == BackendOptimizing {
		return "optimizing"
	}
	return "jit"
}

// Ops is the set of compiled entry points a pipeline exposes, named the
// way spec §3.7/§4.5 names them: init, body (or body(start,end) when
// split), reset, and size. The driver never compiles these itself —
// Ops is the seam compile.CompilePipelines wires a pipeline's compiled
// native function addresses into, casting them through the same
// unsafe-pointer-to-func pattern cmd/khirc uses to call a single
// compiled entry point.
type Ops interface {
	// Init runs once before any Body call.
	Init(ctx context.Context) error

	// Body runs a non-split pipeline's single morsel.
	Body(ctx context.Context) error

	// BodyRange runs one morsel [start, end) of a split pipeline using
	// the selected backend.
	BodyRange(ctx context.Context, backend Backend, start, end int) error

	// Size reports how many input rows a split pipeline's driver
	// predecessor has produced, used to compute morsel boundaries.
	Size(ctx context.Context) (int, error)

	// Reset runs once, after every successor has consumed this
	// pipeline's output.
	Reset(ctx context.Context) error
}

// Pipeline is one node of the execution DAG (spec §3.7): an id, an
// optional driver predecessor that paces morsel dispatch, a list of
// other predecessors, and a split flag selecting single-shot vs.
// morsel-iterated body dispatch.
type Pipeline struct {
	ID         int
	DriverPred *Pipeline
	Preds      []*Pipeline
	Split      bool
	Ops        Ops
}

// AllPredecessors returns the pipeline's full predecessor set — the
// driver predecessor (if any) plus the other listed predecessors, with
// duplicates removed. This is the set whose user-count is incremented
// on this pipeline's completion (spec §4.5 step 2.4).
func (p *Pipeline) AllPredecessors() []*Pipeline {
	seen := make(map[int]bool, len(p.Preds)+1)
	var out []*Pipeline
	add := func(pred *Pipeline) {
		if pred == nil || seen[pred.ID] {
			return
		}
		seen[pred.ID] = true
		out = append(out, pred)
	}
	add(p.DriverPred)
	for _, pred := range p.Preds {
		add(pred)
	}
	return out
}
