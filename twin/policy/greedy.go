package policy

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/predict"
)

// GreedyLatencyPolicy places each stage independently on whichever
// candidate node minimises predicted latency (spec.md §4.6).
type GreedyLatencyPolicy struct {
	state    *twin.StateStore
	sim      *predict.Simulator
	clusters LatencyLookup
}

// NewGreedyLatencyPolicy creates a GreedyLatencyPolicy. clusters may be nil
// (degraded single-cluster mode).
func NewGreedyLatencyPolicy(state *twin.StateStore, sim *predict.Simulator, clusters LatencyLookup) *GreedyLatencyPolicy {
	return &GreedyLatencyPolicy{state: state, sim: sim, clusters: clusters}
}

// Place implements Policy.
func (p *GreedyLatencyPolicy) Place(job twin.Job) map[string]twin.PlacementDecision {
	placements := make(map[string]twin.PlacementDecision, len(job.Stages))
	placedNode := make(map[string]twin.Node, len(job.Stages))

	for _, stage := range job.Stages {
		cands := candidateNodesWithAllocatable(p.state, stage)
		if len(cands) == 0 {
			logrus.WithField("stage", stage.ID).Warn("greedy: no candidate nodes for stage")
			continue
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].Name < cands[j].Name })

		var best *twin.Node
		var bestFormat twin.ExecFormat
		bestScore := -1.0

		for i := range cands {
			node := cands[i]
			format, err := p.sim.ChooseExecFormat(stage, node)
			if err != nil {
				continue
			}
			score := p.sim.ComputeStageLatencyMs(stage, node, format)
			score += predecessorDelay(p.sim, p.state, stage, placedNode, node)
			if stage.Predecessor == "" {
				score += originLatency(p.state, p.clusters, job, node)
			}

			if best == nil || score < bestScore {
				bestScore = score
				best = &cands[i]
				bestFormat = format
			}
		}

		if best == nil {
			logrus.WithField("stage", stage.ID).Warn("greedy: no feasible exec format for any candidate")
			continue
		}

		placements[stage.ID] = twin.PlacementDecision{
			StageID:    stage.ID,
			NodeName:   best.Name,
			ExecFormat: bestFormat,
		}
		placedNode[stage.ID] = *best
	}

	return placements
}
