// Package resiliency implements the resiliency scorer: a pure function of
// current node telemetry and recent availability history producing a
// reliability estimate in [0,1] (spec.md §4.3).
package resiliency

import (
	"github.com/dtwin/dtwin/twin"
)

// historyWindow bounds how many recent availability toggles influence the
// score, following the teacher's bounded-aggregation idiom (no unbounded
// per-node history growth).
const historyWindow = 8

// Scorer computes node resiliency scores from a StateStore snapshot plus an
// optional toggle-history ring buffer. It holds no other state and performs
// no I/O: compute_node_score is a pure function of current state
// (spec.md §4.3).
type Scorer struct {
	state   *twin.StateStore
	history map[string][]bool // node -> recent availability toggles, oldest first
}

// NewScorer creates a Scorer bound to a StateStore.
func NewScorer(state *twin.StateStore) *Scorer {
	return &Scorer{
		state:   state,
		history: make(map[string][]bool),
	}
}

// RecordToggle appends an availability toggle to a node's bounded history.
// Called by whatever observes MarkNodeAvailability events; the core state
// store itself does not track history (spec.md §4.1 does not list it as a
// StateStore responsibility).
func (s *Scorer) RecordToggle(nodeName string, available bool) {
	h := append(s.history[nodeName], available)
	if len(h) > historyWindow {
		h = h[len(h)-historyWindow:]
	}
	s.history[nodeName] = h
}

// ComputeNodeScore returns a reliability estimate in [0,1] for the named
// node, combining telemetry headroom and recent toggle history. GPU-bearing
// nodes get no intrinsic bonus (spec.md §4.3, explicit invariant). Unknown
// node scores 0.0.
func (s *Scorer) ComputeNodeScore(name string) float64 {
	node, ok := s.state.GetNode(name)
	if !ok {
		return 0.0
	}

	headroom := telemetryHeadroom(node)
	stability := availabilityStability(s.history[name])

	// Weighted blend: headroom dominates (it reflects current conditions),
	// stability damps nodes that have recently flapped.
	score := 0.7*headroom + 0.3*stability
	if !node.Available {
		score *= 0.5
	}
	return clamp01(score)
}

// telemetryHeadroom converts utilisation into a [0,1] headroom score: lower
// utilisation means higher score.
func telemetryHeadroom(n twin.Node) float64 {
	worst := n.Tel.CPUUtil
	if n.Tel.MemUtil > worst {
		worst = n.Tel.MemUtil
	}
	return clamp01(1.0 - worst/100.0)
}

// availabilityStability penalises nodes whose recent history shows toggles
// (flapping) relative to a steady record of availability.
func availabilityStability(history []bool) float64 {
	if len(history) == 0 {
		return 1.0
	}
	toggles := 0
	for i := 1; i < len(history); i++ {
		if history[i] != history[i-1] {
			toggles++
		}
	}
	maxToggles := len(history) - 1
	if maxToggles <= 0 {
		if history[len(history)-1] {
			return 1.0
		}
		return 0.0
	}
	penalty := float64(toggles) / float64(maxToggles)
	return clamp01(1.0 - penalty)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
