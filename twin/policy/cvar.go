package policy

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/predict"
)

// defaultAlpha, defaultRiskWeight, defaultSamples are the CVaR policy's
// default parameters (spec.md §4.8).
const (
	defaultAlpha      = 0.95
	defaultRiskWeight = 0.6
	defaultSamples    = 16

	// lognormalSigma is the multiplicative noise's log-space standard
	// deviation (spec.md §4.8 step 1).
	lognormalSigma = 0.15
)

// RiskAwareCvarPolicy hedges tail latency via Conditional Value at Risk
// rather than mean latency, so it is not fooled by low-mean/high-variance
// nodes the way greedy and weighted-sum resilient can be (spec.md §4.8).
// CVaR does not hard-gate on allocatable CPU/mem; it relies on scoring
// (spec.md §4.5, and the per-policy-flag Open Question in spec.md §9).
type RiskAwareCvarPolicy struct {
	state      *twin.StateStore
	sim        *predict.Simulator
	clusters   LatencyLookup
	scorer     ResiliencyScorer
	alpha      float64
	riskWeight float64
	samples    int
	rng        *twin.PartitionedRNG
}

// NewRiskAwareCvarPolicy creates a RiskAwareCvarPolicy. rng must not be nil
// if reproducible placements are required (spec.md §8 invariant 3); pass a
// twin.PartitionedRNG built from a caller-supplied seed. samples <= 0 falls
// back to defaultSamples (16), matching the out-of-range fallback already
// applied to alpha and riskWeight.
func NewRiskAwareCvarPolicy(state *twin.StateStore, sim *predict.Simulator, clusters LatencyLookup, scorer ResiliencyScorer, alpha, riskWeight float64, samples int, rng *twin.PartitionedRNG) *RiskAwareCvarPolicy {
	if alpha <= 0 || alpha > 1 {
		alpha = defaultAlpha
	}
	if riskWeight < 0 {
		riskWeight = defaultRiskWeight
	}
	if samples <= 0 {
		samples = defaultSamples
	}
	if rng == nil {
		rng = twin.NewPartitionedRNG(twin.EntropySimulationKey())
	}
	return &RiskAwareCvarPolicy{
		state: state, sim: sim, clusters: clusters, scorer: scorer,
		alpha: alpha, riskWeight: riskWeight, samples: samples, rng: rng,
	}
}

// NewDefaultRiskAwareCvarPolicy creates a RiskAwareCvarPolicy with default
// alpha (0.95), risk_weight (0.6), and sample count (16).
func NewDefaultRiskAwareCvarPolicy(state *twin.StateStore, sim *predict.Simulator, clusters LatencyLookup, scorer ResiliencyScorer, rng *twin.PartitionedRNG) *RiskAwareCvarPolicy {
	return NewRiskAwareCvarPolicy(state, sim, clusters, scorer, defaultAlpha, defaultRiskWeight, defaultSamples, rng)
}

// Place implements Policy.
func (p *RiskAwareCvarPolicy) Place(job twin.Job) map[string]twin.PlacementDecision {
	placements := make(map[string]twin.PlacementDecision, len(job.Stages))
	// Each invocation draws from its own PartitionedRNG rebuilt from the
	// policy's key, so repeated or concurrent calls never share streams.
	rng := twin.NewPartitionedRNG(p.rng.Key())

	for _, stage := range job.Stages {
		cands := candidateNodes(p.state, stage)
		if len(cands) == 0 {
			logrus.WithField("stage", stage.ID).Warn("cvar: no candidate nodes for stage")
			continue
		}

		var best *twin.Node
		var bestFormat twin.ExecFormat
		bestAdjusted := math.Inf(1)

		for i := range cands {
			node := cands[i]
			format, err := p.sim.ChooseExecFormat(stage, node)
			if err != nil {
				continue
			}

			tentative := make(map[string]twin.PlacementDecision, len(placements)+1)
			for id, dec := range placements {
				tentative[id] = dec
			}
			tentative[stage.ID] = twin.PlacementDecision{StageID: stage.ID, NodeName: node.Name, ExecFormat: format}

			baseCost := p.sim.ScorePlan(job, tentative).LatencyMs
			cvar := p.tailCost(rng, stage.ID, node.Name, baseCost)
			resiliencyScore := p.scorer.ComputeNodeScore(node.Name)
			adjusted := cvar * (1.0 + p.riskWeight*(1.0-resiliencyScore))

			if adjusted < bestAdjusted {
				bestAdjusted = adjusted
				best = &cands[i]
				bestFormat = format
			}
		}

		if best == nil {
			logrus.WithField("stage", stage.ID).Warn("cvar: no feasible exec format for any candidate")
			continue
		}

		placements[stage.ID] = twin.PlacementDecision{
			StageID:    stage.ID,
			NodeName:   best.Name,
			ExecFormat: bestFormat,
		}
	}

	return placements
}

// tailCost draws p.samples independent log-normal noise samples, forms
// per-sample costs around baseCost — the tentative plan's cumulative
// ScorePlan latency through this stage, origin latency included (spec.md
// §4.8 step 2) — and returns the alpha-quantile tail mean (spec.md §4.8
// steps 1-3).
//
// A distinct RNG subsystem per (stage,node) pair keeps draws reproducible
// under a fixed seed regardless of map/candidate iteration order, since
// ForSubsystem derives the stream deterministically from the subsystem name
// rather than from call order.
func (p *RiskAwareCvarPolicy) tailCost(rng *twin.PartitionedRNG, stageID, nodeName string, baseCost float64) float64 {
	stream := rng.ForSubsystem(twin.SubsystemCVaR + ":" + stageID + ":" + nodeName)
	dist := distuv.LogNormal{Mu: 0, Sigma: lognormalSigma, Src: stream}

	samples := make([]float64, p.samples)
	for i := range samples {
		samples[i] = baseCost * dist.Rand()
	}
	sort.Float64s(samples)

	q := quantile(samples, p.alpha)
	var tail []float64
	for _, s := range samples {
		if s >= q {
			tail = append(tail, s)
		}
	}
	if len(tail) == 0 {
		return q
	}
	sum := 0.0
	for _, s := range tail {
		sum += s
	}
	return sum / float64(len(tail))
}

// quantile returns the alpha-quantile of a sorted sample set using linear
// interpolation between closest ranks, matching numpy.quantile's default
// behaviour (the source's formula, per original_source/dt/policy/cvar.py).
func quantile(sorted []float64, alpha float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := alpha * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
