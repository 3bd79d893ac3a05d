package policy

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/predict"
)

// defaultCapacityWeight, defaultResiliencyWeight, defaultUtilizationWeight
// are the default weight triple, grounded on
// original_source/dt/policy/resilient.py's constructor defaults.
const (
	defaultCapacityWeight    = 0.3
	defaultResiliencyWeight  = 0.5
	defaultUtilizationWeight = 0.2

	// latencyTiebreakCoeff is the soft per-ms latency penalty added to the
	// composite score, keeping latency influential without dominating the
	// reliability signals (spec.md §4.7).
	latencyTiebreakCoeff = 0.001
)

// ResilientPolicy is a weighted multi-criteria placement policy trading off
// capacity fit, node resiliency, and utilisation headroom against a soft
// latency tiebreaker (spec.md §4.7).
type ResilientPolicy struct {
	state      *twin.StateStore
	sim        *predict.Simulator
	clusters   LatencyLookup
	scorer     ResiliencyScorer
	wCapacity  float64
	wResiliency float64
	wUtil      float64
}

// NewResilientPolicy creates a ResilientPolicy with the given weight triple.
// Weights are normalised to sum to 1 if they do not already, with a warning
// logged (spec.md §4.7).
func NewResilientPolicy(state *twin.StateStore, sim *predict.Simulator, clusters LatencyLookup, scorer ResiliencyScorer, wCapacity, wResiliency, wUtil float64) *ResilientPolicy {
	total := wCapacity + wResiliency + wUtil
	if total <= 0 {
		wCapacity, wResiliency, wUtil = defaultCapacityWeight, defaultResiliencyWeight, defaultUtilizationWeight
	} else if !almostOne(total) {
		logrus.Warn("resilient policy weights do not sum to 1.0, normalizing")
		wCapacity /= total
		wResiliency /= total
		wUtil /= total
	}
	return &ResilientPolicy{
		state: state, sim: sim, clusters: clusters, scorer: scorer,
		wCapacity: wCapacity, wResiliency: wResiliency, wUtil: wUtil,
	}
}

// NewDefaultResilientPolicy creates a ResilientPolicy with the default
// weight triple (0.3, 0.5, 0.2).
func NewDefaultResilientPolicy(state *twin.StateStore, sim *predict.Simulator, clusters LatencyLookup, scorer ResiliencyScorer) *ResilientPolicy {
	return NewResilientPolicy(state, sim, clusters, scorer, defaultCapacityWeight, defaultResiliencyWeight, defaultUtilizationWeight)
}

func almostOne(v float64) bool {
	return math.Abs(v-1.0) < 1e-9
}

// Place implements Policy.
func (p *ResilientPolicy) Place(job twin.Job) map[string]twin.PlacementDecision {
	placements := make(map[string]twin.PlacementDecision, len(job.Stages))
	placedNode := make(map[string]twin.Node, len(job.Stages))

	for _, stage := range job.Stages {
		cands := candidateNodesWithAllocatable(p.state, stage)
		if len(cands) == 0 {
			logrus.WithField("stage", stage.ID).Warn("resilient: no candidate nodes for stage")
			continue
		}

		var best *twin.Node
		var bestFormat twin.ExecFormat
		bestScore := math.Inf(-1)

		for i := range cands {
			node := cands[i]
			format, err := p.sim.ChooseExecFormat(stage, node)
			if err != nil {
				continue
			}

			latency := p.sim.ComputeStageLatencyMs(stage, node, format)
			latency += predecessorDelay(p.sim, p.state, stage, placedNode, node)
			if stage.Predecessor == "" {
				latency += originLatency(p.state, p.clusters, job, node)
			}

			capacityFit := capacityFitScore(stage, node)
			resiliencyScore := p.scorer.ComputeNodeScore(node.Name)
			utilHeadroom := utilizationHeadroom(node)

			composite := p.wCapacity*capacityFit +
				p.wResiliency*resiliencyScore +
				p.wUtil*utilHeadroom -
				latencyTiebreakCoeff*latency

			if composite > bestScore {
				bestScore = composite
				best = &cands[i]
				bestFormat = format
			}
		}

		if best == nil {
			logrus.WithField("stage", stage.ID).Warn("resilient: no feasible exec format for any candidate")
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

// capacityFitScore is min(1 - cpu/allocatable_cpu, 1 - mem/allocatable_mem),
// clamped to [0,1] (spec.md §4.7).
func capacityFitScore(stage twin.JobStage, node twin.Node) float64 {
	if node.K8s.AllocatableCPU <= 0 || node.K8s.AllocatableMemGB <= 0 {
		return 0.0
	}
	cpuFit := 1.0 - float64(stage.Compute.CPU)/float64(node.K8s.AllocatableCPU)
	memFit := 1.0 - stage.Compute.MemGB/node.K8s.AllocatableMemGB
	fit := math.Min(cpuFit, memFit)
	if fit < 0 {
		return 0
	}
	if fit > 1 {
		return 1
	}
	return fit
}

// utilizationHeadroom is 1 - max(cpu_util, mem_util)/100 (spec.md §4.7).
func utilizationHeadroom(node twin.Node) float64 {
	return 1.0 - math.Max(node.Tel.CPUUtil, node.Tel.MemUtil)/100.0
}
