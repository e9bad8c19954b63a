package driver

import "github.com/kushdb/khir/errors"

// Graph is the full pipeline DAG built for one compiled program.
type Graph struct {
	Pipelines []*Pipeline
}

// NewGraph returns a Graph over the given pipelines. Order does not
// matter — TopologicalOrder derives scheduling order from the
// predecessor links on each Pipeline.
func NewGraph(pipelines ...*Pipeline) *Graph {
	return &Graph{Pipelines: pipelines}
}

// successorCounts returns, for every pipeline id, the number of other
// pipelines that list it as a predecessor (driver or otherwise). This
// is the denominator step 2.4 compares a predecessor's running
// user-count against before calling that predecessor's Reset.
func (g *Graph) successorCounts() map[int]int {
	counts := make(map[int]int, len(g.Pipelines))
	for _, p := range g.Pipelines {
		counts[p.ID] = 0
	}
	for _, p := range g.Pipelines {
		for _, pred := range p.AllPredecessors() {
			counts[pred.ID]++
		}
	}
	return counts
}

// TopologicalOrder produces an ordering where every pipeline precedes
// its successors (spec §4.5 step 1), via Kahn's algorithm over the
// AllPredecessors edges. It fails with OutputPipelineHasSuccessor if
// the resulting order's final pipeline still has a successor. Only that
// final pipeline is checked: a graph with more than one pipeline without
// successors is not rejected.
func (g *Graph) TopologicalOrder() ([]*Pipeline, error) {
	remaining := make(map[int]int, len(g.Pipelines))
	byID := make(map[int]*Pipeline, len(g.Pipelines))
	for _, p := range g.Pipelines {
		byID[p.ID] = p
		remaining[p.ID] = len(p.AllPredecessors())
	}

	var ready []*Pipeline
	for _, p := range g.Pipelines {
		if remaining[p.ID] == 0 {
			ready = append(ready, p)
		}
	}

	successors := make(map[int][]*Pipeline, len(g.Pipelines))
	for _, p := range g.Pipelines {
		for _, pred := range p.AllPredecessors() {
			successors[pred.ID] = append(successors[pred.ID], p)
		}
	}

	var order []*Pipeline
	for len(ready) > 0 {
		p := ready[0]
		ready = ready[1:]
		order = append(order, p)
		for _, succ := range successors[p.ID] {
			remaining[succ.ID]--
			if remaining[succ.ID] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if len(order) != len(g.Pipelines) {
		return nil, errors.New(errors.PhaseSchedule, errors.KindInvalidConstantDependency).
			Detail("pipeline graph contains a cycle and cannot be topologically scheduled").
			Build()
	}

	counts := g.successorCounts()
	if last := order[len(order)-1]; counts[last.ID] > 0 {
		return nil, errors.OutputPipelineHasSuccessor(last.ID)
	}

	return order, nil
}
