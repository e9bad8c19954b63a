package driver

import (
	"context"
	"time"

	"github.com/kushdb/khir/errors"
	"github.com/kushdb/khir/internal/khirlog"
)

var log = khirlog.New()

// Logger returns the package-level logger for the execution driver.
func Logger() *khirlog.Holder { return log }

// PipelineMode selects whether split pipelines may switch to the
// optimizing backend mid-execution.
type PipelineMode int

const (
	// ModeStatic always runs split pipelines on the JIT body.
	ModeStatic PipelineMode = iota
	// ModeAdaptive runs the §4.5 step-3 probe-and-switch policy.
	ModeAdaptive
)

// Execute runs graph's pipelines to completion: topological order,
// init/body/reset dispatch, morsel iteration for split pipelines, and
// (in adaptive mode) the JIT-vs-optimizing switchover policy.
func Execute(ctx context.Context, g *Graph, mode PipelineMode) error {
	order, err := g.TopologicalOrder()
	if err != nil {
		return err
	}
	successorOf := g.successorCounts()
	userCount := make(map[int]int, len(order))

	for _, p := range order {
		log.Get().Sugar().Debugf("pipeline %d: init", p.ID)
		if err := p.Ops.Init(ctx); err != nil {
			return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, "pipeline init failed")
		}

		if !p.Split {
			if err := p.Ops.Body(ctx); err != nil {
				return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, "pipeline body failed")
			}
		} else {
			if err := runSplitPipeline(ctx, p, mode); err != nil {
				return err
			}
		}

		for _, pred := range p.AllPredecessors() {
			userCount[pred.ID]++
			if userCount[pred.ID] == successorOf[pred.ID] {
				log.Get().Sugar().Debugf("pipeline %d: reset (all %d consumers done)", pred.ID, successorOf[pred.ID])
				if err := pred.Ops.Reset(ctx); err != nil {
					return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, "pipeline reset failed")
				}
			}
		}
	}

	// The sink (last in topological order, zero successors) is reset
	// once all of its own work completes.
	sink := order[len(order)-1]
	if successorOf[sink.ID] == 0 {
		log.Get().Sugar().Debugf("pipeline %d: reset (sink)", sink.ID)
		if err := sink.Ops.Reset(ctx); err != nil {
			return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, "sink pipeline reset failed")
		}
	}

	return nil
}

func runSplitPipeline(ctx context.Context, p *Pipeline, mode PipelineMode) error {
	size, err := p.DriverPred.Ops.Size(ctx)
	if err != nil {
		return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, "driver predecessor size() failed")
	}
	ranges := morselRanges(size)

	if mode != ModeAdaptive {
		for _, r := range ranges {
			if err := p.Ops.BodyRange(ctx, BackendJIT, r[0], r[1]); err != nil {
				return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, "pipeline body(start,end) failed")
			}
		}
		return nil
	}

	return runAdaptiveSplitPipeline(ctx, p, ranges)
}

// runAdaptiveSplitPipeline implements spec §4.5 step 3: probe the
// first AdaptiveThreshold morsels on the JIT body while timing them,
// then decide once whether the remainder should run on the optimizing
// backend. A morsel begun on a backend always completes on it.
func runAdaptiveSplitPipeline(ctx context.Context, p *Pipeline, ranges [][2]int) error {
	probeCount := AdaptiveThreshold
	if probeCount > len(ranges) {
		probeCount = len(ranges)
	}

	var totalProbeMillis float64
	for i := 0; i < probeCount; i++ {
		r := ranges[i]
		start := time.Now()
		if err := p.Ops.BodyRange(ctx, BackendJIT, r[0], r[1]); err != nil {
			return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, "pipeline body(start,end) failed")
		}
		totalProbeMillis += float64(time.Since(start).Microseconds()) / 1000.0
	}

	remaining := ranges[probeCount:]
	if len(remaining) == 0 {
		return nil
	}

	meanUnopt := totalProbeMillis / float64(probeCount)
	backend := BackendJIT
	if shouldSwitchToOptimizing(meanUnopt, len(remaining)) {
		backend = BackendOptimizing
		log.Get().Sugar().Infof("pipeline %d: switching to optimizing backend after %d-morsel probe (mean %.3fms)", p.ID, probeCount, meanUnopt)
	}

	for _, r := range remaining {
		if err := p.Ops.BodyRange(ctx, backend, r[0], r[1]); err != nil {
			return errors.Wrap(errors.PhaseSchedule, errors.KindBackendBuildFailed, err, "pipeline body(start,end) failed")
		}
	}
	return nil
}
