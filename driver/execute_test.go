package driver

import (
	"context"
	"testing"
)

// fakeOps is a test double recording which calls were made, in order.
type fakeOps struct {
	id         int
	size       int
	initCalls  int
	resetCalls int
	bodyCalls  int
	ranges     [][2]int
}

func (f *fakeOps) Init(ctx context.Context) error { f.initCalls++; return nil }
func (f *fakeOps) Body(ctx context.Context) error { f.bodyCalls++; return nil }
func (f *fakeOps) BodyRange(ctx context.Context, backend Backend, start, end int) error {
	f.ranges = append(f.ranges, [2]int{start, end})
	return nil
}
func (f *fakeOps) Size(ctx context.Context) (int, error) { return f.size, nil }
func (f *fakeOps) Reset(ctx context.Context) error       { f.resetCalls++; return nil }

// TestThreePipelineDAGRunsInTopologicalOrder reproduces the three-pipeline
// scenario: pipeline 0 produces 3 tuples, pipeline 1 is split with 0 as
// its driver predecessor (size()=3), pipeline 2 is the sink. With
// CHUNK_SIZE=8192 all 3 rows fit in a single morsel, so body(start,end)
// is called exactly once, spanning [0,3).
func TestThreePipelineDAGRunsInTopologicalOrder(t *testing.T) {
	p0Ops := &fakeOps{id: 0, size: 3}
	p1Ops := &fakeOps{id: 1}
	p2Ops := &fakeOps{id: 2}

	p0 := &Pipeline{ID: 0, Ops: p0Ops}
	p1 := &Pipeline{ID: 1, DriverPred: p0, Preds: []*Pipeline{p0}, Split: true, Ops: p1Ops}
	p2 := &Pipeline{ID: 2, Preds: []*Pipeline{p1}, Ops: p2Ops}

	g := NewGraph(p0, p1, p2)
	if err := Execute(context.Background(), g, ModeStatic); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for _, ops := range []*fakeOps{p0Ops, p1Ops, p2Ops} {
		if ops.initCalls != 1 {
			t.Errorf("pipeline %d: init called %d times, want 1", ops.id, ops.initCalls)
		}
		if ops.resetCalls != 1 {
			t.Errorf("pipeline %d: reset called %d times, want 1", ops.id, ops.resetCalls)
		}
	}

	if len(p1Ops.ranges) != 1 || p1Ops.ranges[0] != [2]int{0, 3} {
		t.Errorf("pipeline 1 body(start,end) calls = %v, want exactly one call spanning [0,3)", p1Ops.ranges)
	}
}

func TestTopologicalOrderAcceptsSingleSinkGraph(t *testing.T) {
	p0 := &Pipeline{ID: 0, Ops: &fakeOps{}}
	p1 := &Pipeline{ID: 1, Preds: []*Pipeline{p0}, Ops: &fakeOps{}}
	g := NewGraph(p0, p1)
	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[len(order)-1].ID != 1 {
		t.Fatalf("expected order ending in the sink pipeline, got %v", order)
	}
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	p0 := &Pipeline{ID: 0, Ops: &fakeOps{}}
	p1 := &Pipeline{ID: 1, Preds: []*Pipeline{p0}, Ops: &fakeOps{}}
	p0.Preds = []*Pipeline{p1} // fabricate a cycle
	g := NewGraph(p0, p1)
	if _, err := g.TopologicalOrder(); err == nil {
		t.Fatalf("expected an error for a cyclic pipeline graph")
	}
}

func TestMorselRangesPartitionsIntoChunkSizeWidths(t *testing.T) {
	ranges := morselRanges(ChunkSize*2 + 5)
	if len(ranges) != 3 {
		t.Fatalf("expected 3 morsels, got %d: %v", len(ranges), ranges)
	}
	if ranges[0] != [2]int{0, ChunkSize} || ranges[1] != [2]int{ChunkSize, ChunkSize * 2} || ranges[2] != [2]int{ChunkSize * 2, ChunkSize*2 + 5} {
		t.Errorf("unexpected morsel boundaries: %v", ranges)
	}
}

func TestAdaptivePolicySwitchesForLongPipelines(t *testing.T) {
	// A slow JIT morsel (10ms) with many morsels remaining should
	// switch: 100 morsels * (10/1.2) + 10 < 100*10.
	if !shouldSwitchToOptimizing(10.0, 100) {
		t.Errorf("expected switch to optimizing backend for a long, slow pipeline")
	}
	// A fast JIT morsel with few remaining should not switch: the
	// fixed overhead dominates.
	if shouldSwitchToOptimizing(0.01, 1) {
		t.Errorf("expected to stay on JIT for a short, fast pipeline")
	}
}

func TestAdaptiveRunProbesThenDispatchesRemainder(t *testing.T) {
	driverOps := &fakeOps{size: ChunkSize * 10}
	splitOps := &fakeOps{}
	driverPipe := &Pipeline{ID: 0, Ops: driverOps}
	splitPipe := &Pipeline{ID: 1, DriverPred: driverPipe, Preds: []*Pipeline{driverPipe}, Split: true, Ops: splitOps}

	g := NewGraph(driverPipe, splitPipe)
	if err := Execute(context.Background(), g, ModeAdaptive); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(splitOps.ranges) != 10 {
		t.Fatalf("expected 10 morsels dispatched, got %d", len(splitOps.ranges))
	}
}
