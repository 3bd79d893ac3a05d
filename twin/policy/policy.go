// Package policy implements the three placement policies and their common
// contract (spec.md §4.5–§4.8). Each policy is a variant sharing helpers by
// composition, not inheritance, per the design note in spec.md §9.
package policy

import (
	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/predict"
)

// Policy decides, for a given job, which node and exec format each stage
// should run on. Implementations iterate stages in declaration order
// (= topological order) and return a mapping with exactly one entry per
// successfully placed stage. Stages with no feasible candidate are dropped
// from the mapping rather than erroring; callers treat an incomplete
// mapping as spec.md's NoFeasiblePlacement (spec.md §4.5).
type Policy interface {
	Place(job twin.Job) map[string]twin.PlacementDecision
}

// LatencyLookup resolves inter-cluster latency; satisfied by
// *cluster.Manager. Mirrors predict.LatencyLookup so policies never need to
// import the cluster package directly.
type LatencyLookup = predict.LatencyLookup

// ResiliencyScorer computes a [0,1] reliability estimate for a node;
// satisfied by *resiliency.Scorer.
type ResiliencyScorer interface {
	ComputeNodeScore(name string) float64
}

// candidateNodes enumerates nodes eligible for a stage: available, and
// satisfying the GPU requirement if one is declared (spec.md §4.5, the
// policy-common part of the contract shared by all three policies).
func candidateNodes(state *twin.StateStore, stage twin.JobStage) []twin.Node {
	var out []twin.Node
	for _, n := range state.ListNodes() {
		if !n.Available {
			continue
		}
		if stage.Compute.GPUVRAMGB > 0 && n.Hardware.GPUVRAMGB < stage.Compute.GPUVRAMGB {
			continue
		}
		out = append(out, n)
	}
	return out
}

// candidateNodesWithAllocatable additionally requires allocatable CPU/mem
// headroom, the hard gate used by Greedy and Resilient but not CVaR
// (spec.md §4.5, and the Open Question in spec.md §9 about this being a
// per-policy flag).
func candidateNodesWithAllocatable(state *twin.StateStore, stage twin.JobStage) []twin.Node {
	var out []twin.Node
	for _, n := range candidateNodes(state, stage) {
		if n.K8s.AllocatableCPU < stage.Compute.CPU {
			continue
		}
		if n.K8s.AllocatableMemGB < stage.Compute.MemGB {
			continue
		}
		out = append(out, n)
	}
	return out
}

// originLatency computes the ingress delay from a job's origin to a
// candidate node, or 0 if the job declares no origin or no cluster manager
// was configured.
func originLatency(state *twin.StateStore, clusters LatencyLookup, job twin.Job, node twin.Node) float64 {
	if job.Origin == nil || clusters == nil {
		return 0.0
	}
	nodeCluster, ok := state.GetCluster(node.Name)
	if !ok {
		return 0.0
	}
	return clusters.GetLatencyBetween(job.Origin.Cluster, nodeCluster, job.Origin.Node, node.Name)
}

// predecessorDelay computes the network delay from a stage's already-placed
// predecessor to a candidate node. If the predecessor was dropped (never
// placed), the delay term is silently omitted, per spec.md §9's documented
// leniency.
func predecessorDelay(sim *predict.Simulator, state *twin.StateStore, stage twin.JobStage, placed map[string]twin.Node, node twin.Node) float64 {
	if stage.Predecessor == "" {
		return 0.0
	}
	predNode, ok := placed[stage.Predecessor]
	if !ok {
		return 0.0
	}
	return sim.ComputeNetworkDelayMs(predNode, node)
}

// CandidateNodes is the exported form of candidateNodes, used by the
// engine package to build shadow plans from the same eligibility rule
// policies use for primary placement.
func CandidateNodes(state *twin.StateStore, stage twin.JobStage) []twin.Node {
	return candidateNodes(state, stage)
}
