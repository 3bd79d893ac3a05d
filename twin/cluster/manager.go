// Package cluster implements the cluster manager: the latency/topology
// model consumed by the predictive simulator and all three placement
// policies (spec.md §4.2).
package cluster

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dtwin/dtwin/twin"
)

// PairEntry is one row of the external latency-matrix descriptor: an
// unordered cluster pair and the latency between them, in milliseconds.
type PairEntry struct {
	ClusterA  string  `yaml:"cluster_a"`
	ClusterB  string  `yaml:"cluster_b"`
	LatencyMs float64 `yaml:"latency_ms"`
}

// Descriptor is the top-level shape of the latency-matrix YAML file.
type Descriptor struct {
	Clusters []PairEntry `yaml:"pairs"`
}

type pairKey struct {
	a, b string
}

func makeKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Manager loads a latency matrix once at construction and serves read-only
// lookups thereafter; the matrix is immutable for the lifetime of the
// Manager (spec.md §3).
type Manager struct {
	latencies map[pairKey]float64
	clusterSet map[string]bool
	degraded  bool // true when constructed in single-cluster degraded mode
}

// NewManager loads a latency matrix descriptor from a YAML file. It returns
// a twin.ErrConfigError-wrapped error if the file is missing or malformed,
// per spec.md §4.2 and §7.
func NewManager(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading latency matrix %q: %w: %w", path, err, twin.ErrConfigError)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var desc Descriptor
	if err := decoder.Decode(&desc); err != nil {
		return nil, fmt.Errorf("parsing latency matrix %q: %w: %w", path, err, twin.ErrConfigError)
	}

	m := &Manager{
		latencies:  make(map[pairKey]float64, len(desc.Clusters)),
		clusterSet: make(map[string]bool),
	}
	for _, e := range desc.Clusters {
		if e.ClusterA == "" || e.ClusterB == "" {
			return nil, fmt.Errorf("latency matrix %q: empty cluster id in pair entry: %w", path, twin.ErrConfigError)
		}
		if e.LatencyMs < 0 {
			return nil, fmt.Errorf("latency matrix %q: negative latency for (%s,%s): %w", path, e.ClusterA, e.ClusterB, twin.ErrConfigError)
		}
		m.latencies[makeKey(e.ClusterA, e.ClusterB)] = e.LatencyMs
		m.clusterSet[e.ClusterA] = true
		m.clusterSet[e.ClusterB] = true
	}
	return m, nil
}

// NewDegradedManager returns a Manager in single-cluster degraded mode: all
// cross-cluster latencies resolve to zero. Used when the latency matrix
// descriptor is absent entirely (spec.md §7: "core may degrade to
// single-cluster mode").
func NewDegradedManager() *Manager {
	return &Manager{
		latencies:  make(map[pairKey]float64),
		clusterSet: make(map[string]bool),
		degraded:   true,
	}
}

// GetLatencyBetween returns the latency in milliseconds between two
// clusters. node_a/node_b are informational only. If either cluster is
// unknown this degrades to 0.0 and logs a warning rather than failing
// (spec.md §4.2: "Never fails").
func (m *Manager) GetLatencyBetween(clusterA, clusterB, nodeA, nodeB string) float64 {
	if clusterA == clusterB {
		if lat, ok := m.latencies[makeKey(clusterA, clusterB)]; ok {
			return lat
		}
		return 0.0
	}
	if !m.degraded && (!m.clusterSet[clusterA] || !m.clusterSet[clusterB]) {
		logrus.WithFields(logrus.Fields{
			"cluster_a": clusterA, "cluster_b": clusterB,
			"node_a": nodeA, "node_b": nodeB,
		}).Warn("unknown cluster in latency lookup, degrading to 0ms")
		return 0.0
	}
	lat, ok := m.latencies[makeKey(clusterA, clusterB)]
	if !ok {
		return 0.0
	}
	return lat
}

// Clusters returns the set of cluster ids known to the latency matrix.
func (m *Manager) Clusters() map[string]bool {
	out := make(map[string]bool, len(m.clusterSet))
	for k := range m.clusterSet {
		out[k] = true
	}
	return out
}

// Degraded reports whether this Manager is operating in single-cluster
// degraded mode (no latency matrix was available).
func (m *Manager) Degraded() bool { return m.degraded }
