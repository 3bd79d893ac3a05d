package twin

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// StateStore exclusively owns nodes, clusters, jobs, plans, and observed
// metrics (spec.md §3 "Ownership"). Policies and the simulator hold
// read-only references obtained through this type and must never mutate
// state through them.
//
// Concurrency: each entity kind (nodes, cluster membership, jobs, plans,
// observed metrics) is guarded by its own RWMutex, so a write of one kind
// never blocks a read of another kind. Locking is per kind, not per entity:
// a write to one node blocks reads of every node while it holds the lock
// (spec.md §5). ListNodes
// returns a point-in-time copy so a single policy invocation sees a
// consistent view for its whole run even while writers are active.
type StateStore struct {
	autoStartWatchers bool

	nodesMu sync.RWMutex
	nodes   map[string]*Node

	clustersMu  sync.RWMutex
	nodeCluster map[string]string // node name -> cluster id, set by PutNode

	jobsMu sync.RWMutex
	jobs   map[string]Job

	plansMu sync.RWMutex
	plans   map[string]Plan

	observedMu sync.RWMutex
	observed   map[string]ObservedMetrics
}

// NewStateStore creates an empty StateStore. autoStartWatchers mirrors
// spec.md §6's configuration flag; the core never reads it itself, it is
// plumbed through for the out-of-core background-refresh hooks.
func NewStateStore(autoStartWatchers bool) *StateStore {
	return &StateStore{
		autoStartWatchers: autoStartWatchers,
		nodes:             make(map[string]*Node),
		nodeCluster:       make(map[string]string),
		jobs:              make(map[string]Job),
		plans:             make(map[string]Plan),
		observed:          make(map[string]ObservedMetrics),
	}
}

// AutoStartWatchers reports the configured watcher flag (diagnostic only).
func (s *StateStore) AutoStartWatchers() bool { return s.autoStartWatchers }

// PutNode inserts or replaces a node and its cluster membership. Used by the
// seeding module and by tests; not part of the spec's inbound operation
// table because seeding is out-of-core.
func (s *StateStore) PutNode(n Node, clusterID string) {
	s.nodesMu.Lock()
	cp := n
	s.nodes[n.Name] = &cp
	s.nodesMu.Unlock()

	s.clustersMu.Lock()
	s.nodeCluster[n.Name] = clusterID
	s.clustersMu.Unlock()
}

// ListNodes returns a point-in-time snapshot of all nodes; order is
// unspecified.
func (s *StateStore) ListNodes() []Node {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	return out
}

// GetNode returns a copy of the named node, or (Node{}, false) if unknown.
func (s *StateStore) GetNode(name string) (Node, bool) {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	n, ok := s.nodes[name]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// GetCluster returns the cluster id a node belongs to, or "" if unknown.
func (s *StateStore) GetCluster(nodeName string) (string, bool) {
	s.clustersMu.RLock()
	defer s.clustersMu.RUnlock()
	c, ok := s.nodeCluster[nodeName]
	return c, ok
}

// MarkNodeAvailability atomically flips a node's availability. Returns
// ErrNotFound if the node is unknown.
func (s *StateStore) MarkNodeAvailability(name string, available bool) error {
	s.nodesMu.Lock()
	defer s.nodesMu.Unlock()
	n, ok := s.nodes[name]
	if !ok {
		return fmt.Errorf("node %q: %w", name, ErrNotFound)
	}
	n.Available = available
	logrus.WithFields(logrus.Fields{"node": name, "available": available}).Info("node availability changed")
	return nil
}

// AddJob stores a parsed job, keyed by name. Jobs are never mutated once
// added.
func (s *StateStore) AddJob(job Job) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	s.jobs[job.Name] = job
}

// GetJob returns the named job, or (Job{}, false) if unknown.
func (s *StateStore) GetJob(name string) (Job, bool) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	j, ok := s.jobs[name]
	return j, ok
}

// AddPlan stores a computed plan, keyed by plan id.
func (s *StateStore) AddPlan(plan Plan) {
	s.plansMu.Lock()
	defer s.plansMu.Unlock()
	s.plans[plan.PlanID] = plan
}

// GetPlan returns the named plan, or (Plan{}, false) if unknown.
func (s *StateStore) GetPlan(planID string) (Plan, bool) {
	s.plansMu.RLock()
	defer s.plansMu.RUnlock()
	p, ok := s.plans[planID]
	return p, ok
}

// RecordObserved records observed metrics for a plan, at most once. A
// second call for the same plan id returns ErrAlreadyExists.
func (s *StateStore) RecordObserved(planID string, metrics ObservedMetrics) error {
	s.observedMu.Lock()
	defer s.observedMu.Unlock()
	if _, ok := s.observed[planID]; ok {
		return fmt.Errorf("observed metrics for plan %q: %w", planID, ErrAlreadyExists)
	}
	metrics.PlanID = planID
	s.observed[planID] = metrics
	return nil
}

// GetObserved returns observed metrics for a plan, or (ObservedMetrics{}, false)
// if none have been recorded yet.
func (s *StateStore) GetObserved(planID string) (ObservedMetrics, bool) {
	s.observedMu.RLock()
	defer s.observedMu.RUnlock()
	m, ok := s.observed[planID]
	return m, ok
}

// DescribeVirtualTopology returns an opaque diagnostic view of the current
// node/cluster membership. No schema is guaranteed (spec.md §9 Open
// Question): callers must treat the result as opaque JSON.
func (s *StateStore) DescribeVirtualTopology() map[string]any {
	s.nodesMu.RLock()
	s.clustersMu.RLock()
	defer s.nodesMu.RUnlock()
	defer s.clustersMu.RUnlock()

	byCluster := make(map[string][]string)
	for node, cluster := range s.nodeCluster {
		byCluster[cluster] = append(byCluster[cluster], node)
	}
	nodeCount := len(s.nodes)
	available := 0
	for _, n := range s.nodes {
		if n.Available {
			available++
		}
	}
	return map[string]any{
		"clusters":        byCluster,
		"total_nodes":      nodeCount,
		"available_nodes":  available,
	}
}

// CloneForSimulation produces an independent deep copy of the node and
// cluster state, suitable for chaos experiments that mutate telemetry
// without disturbing the live store (spec.md §9 design note: "expose an
// explicit clone_for_simulation... do not rely on implicit object copying").
// Jobs, plans, and observed metrics are not cloned: chaos scenarios only
// ever mutate node telemetry/availability.
func (s *StateStore) CloneForSimulation() *StateStore {
	clone := NewStateStore(s.autoStartWatchers)

	s.nodesMu.RLock()
	s.clustersMu.RLock()
	for name, n := range s.nodes {
		cp := *n
		clone.nodes[name] = &cp
	}
	for name, cluster := range s.nodeCluster {
		clone.nodeCluster[name] = cluster
	}
	s.clustersMu.RUnlock()
	s.nodesMu.RUnlock()

	return clone
}
