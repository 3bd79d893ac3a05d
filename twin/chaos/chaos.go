// Package chaos ports the fault-injection scenarios from
// original_source/dt/chaos_runner.py into Go: node-failure trials and CPU
// saturation, both driven through the predictive simulator rather than a
// live cluster. It is an external test-and-demo driver, not load-bearing for
// the core planning invariants (spec.md §5.8).
package chaos

import (
	"math/rand"

	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/predict"
)

// Result summarises a chaos trial, mirroring chaos_runner.py's ChaosResult.
type Result struct {
	SuccessRate          float64 `json:"success_rate"`
	AvgCompletionTimeMs  float64 `json:"avg_completion_time_ms"`
	RecoveryTimeMs       float64 `json:"recovery_time_ms"`
	FailuresObserved     int     `json:"failures_observed"`
	TotalTrials          int     `json:"total_trials"`
}

// SaturationResult summarises a CPU-saturation trial.
type SaturationResult struct {
	BaselineCompletionMs  float64 `json:"baseline_completion_ms"`
	SaturatedCompletionMs float64 `json:"saturated_completion_ms"`
	DegradationFactor     float64 `json:"degradation_factor"`
	Success               bool    `json:"success"`
}

// Runner runs fault-injection scenarios against a predictive simulator.
type Runner struct {
	state *twin.StateStore
	sim   *predict.Simulator
	rng   *rand.Rand
}

// NewRunner creates a Runner bound to a state store and baseline simulator.
// rng may be nil, in which case trial-failure draws use a package-private
// entropy-seeded source (chaos trials are inherently non-reproducible
// demo/exploration tooling, unlike the CVaR policy's seeded sampling).
func NewRunner(state *twin.StateStore, sim *predict.Simulator, rng *rand.Rand) *Runner {
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(twin.EntropySimulationKey())))
	}
	return &Runner{state: state, sim: sim, rng: rng}
}

// RunWithNodeFailure runs numTrials independent trials, each either healthy
// or hit with failureProbability's chaos-adjusted simulator, and aggregates
// completion and recovery statistics (chaos_runner.py's
// run_with_node_failure).
func (r *Runner) RunWithNodeFailure(job twin.Job, placements map[string]twin.PlacementDecision, failureProbability float64, numTrials int) Result {
	if numTrials <= 0 {
		numTrials = 10
	}

	var completions []float64
	var recoveryTimes []float64
	failuresObserved := 0

	for i := 0; i < numTrials; i++ {
		failed := r.rng.Float64() < failureProbability
		rate := 0.0
		if failed {
			rate = failureProbability
		}
		trialSim := r.sim.WithFailureRate(rate)
		metrics := trialSim.ScorePlan(job, placements)
		completions = append(completions, metrics.LatencyMs)

		if failed {
			failuresObserved++
			recoveryTimes = append(recoveryTimes, metrics.LatencyMs)
		}
	}

	successCount := 0
	var completionSum float64
	for _, c := range completions {
		if c > 0 {
			successCount++
		}
		completionSum += c
	}
	var recoverySum float64
	for _, rt := range recoveryTimes {
		recoverySum += rt
	}

	result := Result{
		SuccessRate:         float64(successCount) / float64(numTrials),
		FailuresObserved:    failuresObserved,
		TotalTrials:         numTrials,
	}
	if len(completions) > 0 {
		result.AvgCompletionTimeMs = completionSum / float64(len(completions))
	}
	if len(recoveryTimes) > 0 {
		result.RecoveryTimeMs = recoverySum / float64(len(recoveryTimes))
	}
	return result
}

// RunCPUSaturation clones the live state, forces every node's CPU/mem
// utilisation up to at least saturationLevel, and compares the resulting
// latency against the unsaturated baseline (chaos_runner.py's
// run_cpu_saturation / _saturate_state).
func (r *Runner) RunCPUSaturation(job twin.Job, placements map[string]twin.PlacementDecision, saturationLevel float64) SaturationResult {
	saturated := r.saturateState(saturationLevel)
	saturatedSim := predict.NewSimulator(saturated, nil, nil).WithFailureRate(r.sim.FailureRate)
	saturatedMetrics := saturatedSim.ScorePlan(job, placements)
	baselineMetrics := r.sim.ScorePlan(job, placements)

	degradation := 0.0
	if baselineMetrics.LatencyMs > 0 {
		degradation = saturatedMetrics.LatencyMs / baselineMetrics.LatencyMs
	}

	return SaturationResult{
		BaselineCompletionMs:  baselineMetrics.LatencyMs,
		SaturatedCompletionMs: saturatedMetrics.LatencyMs,
		DegradationFactor:     degradation,
		Success:               saturatedMetrics.SLAViolations == 0,
	}
}

func (r *Runner) saturateState(saturationLevel float64) *twin.StateStore {
	clone := r.state.CloneForSimulation()
	for _, n := range clone.ListNodes() {
		cpu := n.Tel.CPUUtil
		mem := n.Tel.MemUtil
		floor := saturationLevel * 100.0
		if cpu < floor {
			cpu = floor
		}
		if cpu > 100 {
			cpu = 100
		}
		if mem < floor {
			mem = floor
		}
		if mem > 100 {
			mem = 100
		}
		n.Tel.CPUUtil = cpu
		n.Tel.MemUtil = mem
		clone.PutNode(n, mustCluster(clone, n.Name))
	}
	return clone
}

func mustCluster(state *twin.StateStore, nodeName string) string {
	c, _ := state.GetCluster(nodeName)
	return c
}
