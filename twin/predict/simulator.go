// Package predict implements the predictive simulator: stage-latency,
// network-delay, exec-format selection, and whole-plan scoring
// (spec.md §4.4).
package predict

import (
	"fmt"
	"math"

	"github.com/dtwin/dtwin/twin"
)

// intraClusterFloorMs is the small same-cluster network-delay floor applied
// when two nodes share a cluster but are not the same node (spec.md §4.4
// operation 3: "Same cluster → small floor").
const intraClusterFloorMs = 1.0

// wasmOverhead is the format-overhead multiplier applied when a stage runs
// under wasm rather than native (spec.md §4.4 operation 2).
const wasmOverhead = 1.35

// LatencyLookup resolves inter-cluster latency; satisfied by
// *cluster.Manager. Kept as an interface here so the simulator never
// imports the cluster package directly, avoiding a dependency cycle and
// matching the leaf-first dependency order in spec.md §2.
type LatencyLookup interface {
	GetLatencyBetween(clusterA, clusterB, nodeA, nodeB string) float64
}

// Simulator is the predictive scoring engine. It is deterministic when
// FailureRate is zero (spec.md §4.4).
type Simulator struct {
	state       *twin.StateStore
	clusters    LatencyLookup
	rng         *twin.PartitionedRNG
	FailureRate float64
}

// NewSimulator creates a Simulator bound to a StateStore and a cluster
// latency lookup. rng may be nil; one is lazily created from entropy if a
// chaos draw is needed and none was supplied.
func NewSimulator(state *twin.StateStore, clusters LatencyLookup, rng *twin.PartitionedRNG) *Simulator {
	return &Simulator{state: state, clusters: clusters, rng: rng}
}

// WithFailureRate returns a copy of the Simulator configured for chaos runs:
// stage latency is multiplied by a stochastic penalty whose expectation
// grows with failureRate. Zero leaves the simulator deterministic
// (spec.md §4.4, closing paragraph).
func (s *Simulator) WithFailureRate(failureRate float64) *Simulator {
	cp := *s
	cp.FailureRate = failureRate
	return &cp
}

// ChooseExecFormat selects the best-fitting exec format from the stage's
// allowed formats for the given node (spec.md §4.4 operation 1). Prefers
// native when the node's arch is in the stage's allowed arch list; falls
// back to wasm when arch mismatches but wasm is allowed. Returns
// ErrNoFeasibleFormat if no allowed format is viable.
func (s *Simulator) ChooseExecFormat(stage twin.JobStage, node twin.Node) (twin.ExecFormat, error) {
	allowed := make(map[twin.ExecFormat]bool, len(stage.Constraints.Formats))
	for _, f := range stage.Constraints.Formats {
		allowed[f] = true
	}
	archMatches := archAllowed(stage.Constraints.Arch, node.Hardware.Arch)

	if archMatches && allowed[twin.FormatNative] {
		return twin.FormatNative, nil
	}
	if allowed[twin.FormatWasm] {
		return twin.FormatWasm, nil
	}
	if archMatches && len(allowed) > 0 {
		// Arch matches but native wasn't offered; take whatever lowest-overhead
		// format is allowed (native would have been returned above, so this is
		// any remaining format).
		for f := range allowed {
			return f, nil
		}
	}
	return "", fmt.Errorf("stage %q on node %q: %w", stage.ID, node.Name, twin.ErrNoFeasibleFormat)
}

func archAllowed(allowed []string, nodeArch string) bool {
	for _, a := range allowed {
		if a == nodeArch {
			return true
		}
	}
	return false
}

// ComputeStageLatencyMs estimates stage execution time on a node under a
// chosen exec format, as a closed-form, deterministic (absent chaos)
// function of stage duration, node capability, congestion, and format
// overhead (spec.md §4.4 operation 2).
func (s *Simulator) ComputeStageLatencyMs(stage twin.JobStage, node twin.Node, format twin.ExecFormat) float64 {
	base := stage.Compute.DurationMs * workloadCoefficient(stage, node)
	congested := base * congestionMultiplier(node)
	withFormat := congested * formatOverhead(format)

	if s.FailureRate > 0 {
		withFormat *= s.failurePenalty()
	}
	return withFormat
}

// workloadCoefficient scales base duration against node capability
// according to the stage's declared workload type.
func workloadCoefficient(stage twin.JobStage, node twin.Node) float64 {
	switch stage.Compute.WorkloadType {
	case twin.WorkloadGPUBound:
		if node.Hardware.GPUVRAMGB <= 0 {
			return 4.0 // no GPU: heavy penalty, but still a finite estimate
		}
		// Inversely scales with available GPU VRAM relative to requirement.
		ratio := node.Hardware.GPUVRAMGB / math.Max(stage.Compute.GPUVRAMGB, 1)
		return math.Max(0.25, 1.5/ratio)
	case twin.WorkloadCPUBound:
		headroom := math.Max(float64(node.K8s.AllocatableCPU-stage.Compute.CPU), 1)
		return math.Max(0.25, float64(stage.Compute.CPU)/headroom)
	case twin.WorkloadMemBound:
		headroom := math.Max(node.K8s.AllocatableMemGB-stage.Compute.MemGB, 1)
		return math.Max(0.25, stage.Compute.MemGB/headroom)
	case twin.WorkloadIOBound:
		return 1.0
	default:
		return 1.0
	}
}

// congestionMultiplier grows with current node utilisation.
func congestionMultiplier(node twin.Node) float64 {
	util := math.Max(node.Tel.CPUUtil, node.Tel.MemUtil) / 100.0
	return 1.0 + 0.5*util
}

func formatOverhead(format twin.ExecFormat) float64 {
	if format == twin.FormatWasm {
		return wasmOverhead
	}
	return 1.0
}

// failurePenalty draws a stochastic multiplicative penalty whose
// expectation grows with FailureRate, using the "failure" RNG subsystem so
// it never perturbs the CVaR policy's independent sampling stream.
func (s *Simulator) failurePenalty() float64 {
	rng := s.rngOrEntropy()
	draw := rng.ForSubsystem(twin.SubsystemFailure).Float64()
	// Expectation grows linearly with FailureRate: penalty in [1, 1+2*rate].
	return 1.0 + 2.0*s.FailureRate*draw
}

func (s *Simulator) rngOrEntropy() *twin.PartitionedRNG {
	if s.rng != nil {
		return s.rng
	}
	s.rng = twin.NewPartitionedRNG(twin.EntropySimulationKey())
	return s.rng
}

// ComputeNetworkDelayMs estimates inter-node delay: zero for the same node,
// a small floor within a cluster, and a cluster-manager lookup across
// clusters (spec.md §4.4 operation 3).
func (s *Simulator) ComputeNetworkDelayMs(nodeA, nodeB twin.Node) float64 {
	if nodeA.Name == nodeB.Name {
		return 0.0
	}
	clusterA, okA := s.state.GetCluster(nodeA.Name)
	clusterB, okB := s.state.GetCluster(nodeB.Name)
	if !okA || !okB {
		return intraClusterFloorMs
	}
	if clusterA == clusterB {
		return intraClusterFloorMs
	}
	if s.clusters == nil {
		return 0.0
	}
	return s.clusters.GetLatencyBetween(clusterA, clusterB, nodeA.Name, nodeB.Name)
}

// originLatencyMs computes the ingress delay from a job's origin to the
// first stage's chosen node, or 0 if the job declares no origin.
func (s *Simulator) originLatencyMs(job twin.Job, node twin.Node) float64 {
	if job.Origin == nil {
		return 0.0
	}
	nodeCluster, ok := s.state.GetCluster(node.Name)
	if !ok {
		return 0.0
	}
	if s.clusters == nil {
		if nodeCluster == job.Origin.Cluster {
			return 0.0
		}
		return 0.0
	}
	return s.clusters.GetLatencyBetween(job.Origin.Cluster, nodeCluster, job.Origin.Node, node.Name)
}

// energyKwh estimates energy as a linear function of stage duration and the
// node's power profile.
func energyKwh(durationMs float64, node twin.Node) float64 {
	hours := durationMs / 3_600_000.0
	util := math.Max(node.Tel.CPUUtil, node.Tel.MemUtil) / 100.0
	watts := node.Power.IdleWatts + node.Power.BusyWatts*util
	if watts <= 0 {
		watts = 150 // conservative default for unconfigured power profiles
	}
	return watts * hours / 1000.0
}

// ScorePlan sums per-stage latency along the predecessor DAG, adds network
// delay between dependent stages, adds origin-to-first-stage delay,
// estimates energy, and counts SLA violations (spec.md §4.4 operation 4).
// ScorePlan is a pure function of (job, placements, current state snapshot):
// repeated invocation with unchanged state is idempotent (spec.md §8
// invariant 2).
//
// When a stage's predecessor was dropped from placements (never placed),
// the network-delay term for that edge is silently omitted rather than
// failing the dependent stage, per the explicit leniency documented in
// spec.md §9's Open Questions.
func (s *Simulator) ScorePlan(job twin.Job, placements map[string]twin.PlacementDecision) twin.PlanMetrics {
	finishTime := make(map[string]float64, len(job.Stages))
	var totalEnergy float64
	violations := 0
	var maxFinish float64

	for _, stage := range job.Stages {
		dec, ok := placements[stage.ID]
		if !ok {
			continue
		}
		node, ok := s.state.GetNode(dec.NodeName)
		if !ok {
			continue
		}

		stageLatency := s.ComputeStageLatencyMs(stage, node, dec.ExecFormat)
		start := 0.0

		if stage.Predecessor != "" {
			if predFinish, ok := finishTime[stage.Predecessor]; ok {
				predDec := placements[stage.Predecessor]
				predNode, _ := s.state.GetNode(predDec.NodeName)
				start = predFinish + s.ComputeNetworkDelayMs(predNode, node)
			}
			// predecessor was dropped: leniently treat start as 0, per the
			// documented Open-Question leniency above.
		} else if job.Origin != nil {
			start = s.originLatencyMs(job, node)
		}

		finish := start + stageLatency
		finishTime[stage.ID] = finish
		if finish > maxFinish {
			maxFinish = finish
		}
		if finish > job.DeadlineMs {
			violations++
		}
		totalEnergy += energyKwh(stageLatency, node)
	}

	risk := riskScore(violations, len(job.Stages), s)

	return twin.PlanMetrics{
		LatencyMs:     maxFinish,
		EnergyKwh:     totalEnergy,
		RiskScore:     risk,
		SLAViolations: violations,
	}
}

// riskScore summarises violation probability and the configured failure
// rate into a single [0,1] figure.
func riskScore(violations, totalStages int, s *Simulator) float64 {
	if totalStages == 0 {
		return 0.0
	}
	violationFraction := float64(violations) / float64(totalStages)
	blended := 0.7*violationFraction + 0.3*s.FailureRate
	if blended < 0 {
		return 0
	}
	if blended > 1 {
		return 1
	}
	return blended
}
