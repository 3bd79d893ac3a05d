package policy

import (
	"time"

	"github.com/dtwin/dtwin/twin"
)

// failureWindow bounds how long a recorded node failure influences policy
// selection (ported in semantics from
// original_source/dt/policy/selector.py's failure_window_seconds).
const failureWindow = 300 * time.Second

// highUtilizationThreshold routes to the CVaR policy once average cluster
// utilisation crosses this fraction.
const highUtilizationThreshold = 0.75

// tightDeadlineMs routes to the Resilient policy for jobs with a deadline
// under this threshold.
const tightDeadlineMs = 5000

// Selector is an optional meta-policy that picks among Greedy, Resilient,
// and CVaR based on recent failure history, job urgency, and cluster
// utilisation, ported in semantics from
// original_source/dt/policy/selector.py.
type Selector struct {
	state    *twin.StateStore
	greedy   Policy
	resilient Policy
	cvar     Policy

	recentFailures []time.Time
}

// NewSelector creates a Selector wrapping the three concrete policies.
func NewSelector(state *twin.StateStore, greedy, resilient, cvar Policy) *Selector {
	return &Selector{state: state, greedy: greedy, resilient: resilient, cvar: cvar}
}

// RecordFailure notes a node failure, used by SelectForJob's recent-failure
// check.
func (s *Selector) RecordFailure(nodeName string) {
	s.recentFailures = append(s.recentFailures, time.Now())
	s.pruneOldFailures()
}

func (s *Selector) pruneOldFailures() {
	cutoff := time.Now().Add(-failureWindow)
	kept := s.recentFailures[:0]
	for _, t := range s.recentFailures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.recentFailures = kept
}

func (s *Selector) hasRecentFailures() bool {
	s.pruneOldFailures()
	return len(s.recentFailures) > 0
}

// SelectForJob picks a policy for the given job. forcePolicy, if non-empty
// and one of "greedy"/"resilient"/"cvar", overrides the heuristic entirely.
func (s *Selector) SelectForJob(job twin.Job, forcePolicy string) Policy {
	switch forcePolicy {
	case "greedy":
		return s.greedy
	case "resilient":
		return s.resilient
	case "cvar":
		return s.cvar
	}

	if s.hasRecentFailures() {
		return s.resilient
	}
	if job.DeadlineMs < tightDeadlineMs || job.Origin != nil {
		return s.resilient
	}
	if s.averageUtilization() > highUtilizationThreshold {
		return s.cvar
	}
	return s.greedy
}

func (s *Selector) averageUtilization() float64 {
	nodes := s.state.ListNodes()
	if len(nodes) == 0 {
		return 0.0
	}
	var total float64
	for _, n := range nodes {
		util := n.Tel.CPUUtil
		if n.Tel.MemUtil > util {
			util = n.Tel.MemUtil
		}
		total += util / 100.0
	}
	return total / float64(len(nodes))
}
