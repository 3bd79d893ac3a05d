// Package engine wires the state store, cluster manager, resiliency scorer,
// predictive simulator, and placement policies into the five inbound
// operations of spec.md §6 (plan, observe_availability, snapshot,
// record_observed, get_observed). It is the orchestration layer the HTTP
// adaptor and the experiment/chaos drivers sit on top of, grounded on
// original_source/dt/api.py's endpoint bodies.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/actuator"
	"github.com/dtwin/dtwin/twin/config"
	"github.com/dtwin/dtwin/twin/policy"
	"github.com/dtwin/dtwin/twin/predict"
	"github.com/dtwin/dtwin/twin/resiliency"
)

// Engine is the planning pipeline's entry point.
type Engine struct {
	state    *twin.StateStore
	clusters policy.LatencyLookup
	scorer   *resiliency.Scorer
	sim      *predict.Simulator
	act      actuator.Actuator

	greedy    policy.Policy
	resilient policy.Policy
	cvar      policy.Policy
	selector  *policy.Selector
}

// New builds an Engine from its component collaborators. clusters and act
// may be nil: nil clusters means degraded single-cluster mode (spec.md's
// "latency matrix missing" boundary behaviour); nil act defaults to a
// LoggingActuator. cvarParams supplies the CVaR policy's alpha, risk_weight,
// and sample count (SPEC_FULL.md §6's "default CVaR parameters" loaded by
// config.Config); the zero value is not valid on its own since a zero
// risk_weight is a legitimate override — callers should pass
// config.Default().CVaR or a config.Load result.
func New(state *twin.StateStore, clusters policy.LatencyLookup, act actuator.Actuator, cvarSeed twin.SimulationKey, cvarParams config.CVaRDefaults) *Engine {
	if act == nil {
		act = actuator.NewLoggingActuator()
	}
	scorer := resiliency.NewScorer(state)
	sim := predict.NewSimulator(state, clusters, nil)

	greedy := policy.NewGreedyLatencyPolicy(state, sim, clusters)
	resilient := policy.NewDefaultResilientPolicy(state, sim, clusters, scorer)
	cvarRNG := twin.NewPartitionedRNG(cvarSeed)
	cvar := policy.NewRiskAwareCvarPolicy(state, sim, clusters, scorer, cvarParams.Alpha, cvarParams.RiskWeight, cvarParams.Samples, cvarRNG)
	selector := policy.NewSelector(state, greedy, resilient, cvar)

	return &Engine{
		state: state, clusters: clusters, scorer: scorer, sim: sim, act: act,
		greedy: greedy, resilient: resilient, cvar: cvar, selector: selector,
	}
}

// selectPolicy maps a strategy name to a concrete Policy. "auto" defers to
// the Selector's heuristic (spec.md §5.5's optional meta-policy); an
// unrecognised name falls back to greedy, matching
// original_source/dt/api.py's select_policy default.
func (e *Engine) selectPolicy(job twin.Job, strategy string) policy.Policy {
	switch strategy {
	case "resilient":
		return e.resilient
	case "cvar":
		return e.cvar
	case "auto":
		return e.selector.SelectForJob(job, "")
	case "greedy", "":
		return e.greedy
	default:
		logrus.WithField("strategy", strategy).Warn("engine: unknown strategy, defaulting to greedy")
		return e.greedy
	}
}

// Plan implements spec.md §6's plan(job, strategy, dry_run) -> Plan. ctx
// carries the caller-supplied deadline (spec.md §5 "Cancellation /
// timeouts"): expiry before placement starts, or by the time the policy's
// Place call returns, surfaces ErrTimeout with no partial placements
// returned. Place takes no context and the deadline is not checked between
// stages, so expiry while Place is running is noticed only after it returns.
func (e *Engine) Plan(ctx context.Context, job twin.Job, strategy string, dryRun bool) (twin.Plan, error) {
	if err := ctx.Err(); err != nil {
		return twin.Plan{}, fmt.Errorf("plan %q: %w", job.Name, twin.ErrTimeout)
	}
	if len(job.Stages) == 0 {
		return twin.Plan{}, fmt.Errorf("job %q: %w", job.Name, twin.ErrBadJobSpec)
	}

	chosen := e.selectPolicy(job, strategy)
	placements := chosen.Place(job)

	if err := ctx.Err(); err != nil {
		return twin.Plan{}, fmt.Errorf("plan %q: %w", job.Name, twin.ErrTimeout)
	}

	if len(placements) < len(job.Stages) {
		var missing []string
		for _, s := range job.Stages {
			if _, ok := placements[s.ID]; !ok {
				missing = append(missing, s.ID)
			}
		}
		return twin.Plan{}, &twin.NoFeasiblePlacementError{StageIDs: missing}
	}

	metrics := e.sim.ScorePlan(job, placements)
	planID := fmt.Sprintf("plan-%s", uuid.New().String()[:8])
	shadow := e.buildShadowPlan(job, placements)

	plan := twin.Plan{
		PlanID:      planID,
		JobName:     job.Name,
		Placements:  placements,
		LatencyMs:   metrics.LatencyMs,
		EnergyKwh:   metrics.EnergyKwh,
		RiskScore:   metrics.RiskScore,
		ShadowPlan:  shadow,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	e.state.AddPlan(plan)

	if !dryRun {
		if err := e.act.Submit(job, placements, planID); err != nil {
			logrus.WithError(err).WithField("plan_id", planID).Error("engine: failed to submit plan")
		}
	}

	return plan, nil
}

// buildShadowPlan picks, per stage, the first available candidate distinct
// from the primary placement (falling back to the primary itself if no
// other candidate exists), mirroring
// original_source/dt/api.py's `{sid}_backup -> node_name` shape but with an
// actual distinct-node preference rather than always echoing the primary.
func (e *Engine) buildShadowPlan(job twin.Job, placements map[string]twin.PlacementDecision) map[string]string {
	shadow := make(map[string]string, len(placements))
	for _, stage := range job.Stages {
		dec, ok := placements[stage.ID]
		if !ok {
			continue
		}
		backup := dec.NodeName
		for _, cand := range policy.CandidateNodes(e.state, stage) {
			if cand.Name != dec.NodeName {
				backup = cand.Name
				break
			}
		}
		shadow[dec.StageID+"_backup"] = backup
	}
	return shadow
}

// ObserveAvailability implements spec.md §6's observe_availability(node, up|down).
func (e *Engine) ObserveAvailability(node string, up bool) error {
	if err := e.state.MarkNodeAvailability(node, up); err != nil {
		return err
	}
	e.scorer.RecordToggle(node, up)
	if !up {
		e.selector.RecordFailure(node)
	}
	return nil
}

// Snapshot implements spec.md §6's snapshot() -> [node_name].
func (e *Engine) Snapshot() []string {
	nodes := e.state.ListNodes()
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}

// RecordObserved implements spec.md §6's record_observed(plan_id, metrics).
func (e *Engine) RecordObserved(planID string, metrics twin.ObservedMetrics) error {
	return e.state.RecordObserved(planID, metrics)
}

// GetObserved implements spec.md §6's get_observed(plan_id) -> metrics?.
func (e *Engine) GetObserved(planID string) (twin.ObservedMetrics, bool) {
	return e.state.GetObserved(planID)
}

// VirtualTopology exposes the state store's opaque diagnostic view
// (spec.md §9 Open Question: no documented schema).
func (e *Engine) VirtualTopology() map[string]any {
	return e.state.DescribeVirtualTopology()
}

// State returns the underlying state store, for callers (seeding, the HTTP
// adaptor's safety-net re-seed) that need direct access.
func (e *Engine) State() *twin.StateStore {
	return e.state
}
