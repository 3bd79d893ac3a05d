package resiliency

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtwin/dtwin/twin"
)

func newTestStore() *twin.StateStore {
	store := twin.NewStateStore(false)
	store.PutNode(twin.Node{
		Name:      "idle-node",
		Available: true,
		Tel:       twin.Telemetry{CPUUtil: 5, MemUtil: 5},
	}, "dc-core")
	store.PutNode(twin.Node{
		Name:      "busy-node",
		Available: true,
		Tel:       twin.Telemetry{CPUUtil: 95, MemUtil: 80},
	}, "dc-core")
	store.PutNode(twin.Node{
		Name:      "gpu-node",
		Available: true,
		Hardware:  twin.Hardware{GPUVRAMGB: 40},
		Tel:       twin.Telemetry{CPUUtil: 5, MemUtil: 5},
	}, "dc-core")
	store.PutNode(twin.Node{
		Name:      "down-node",
		Available: false,
		Tel:       twin.Telemetry{CPUUtil: 5, MemUtil: 5},
	}, "dc-core")
	return store
}

func TestComputeNodeScore_UnknownNodeIsZero(t *testing.T) {
	s := NewScorer(newTestStore())
	assert.Equal(t, 0.0, s.ComputeNodeScore("nonexistent"))
}

func TestComputeNodeScore_PrefersLowerUtilisation(t *testing.T) {
	s := NewScorer(newTestStore())
	idle := s.ComputeNodeScore("idle-node")
	busy := s.ComputeNodeScore("busy-node")
	assert.Greater(t, idle, busy)
}

func TestComputeNodeScore_NoIntrinsicGPUBonus(t *testing.T) {
	s := NewScorer(newTestStore())
	gpu := s.ComputeNodeScore("gpu-node")
	idle := s.ComputeNodeScore("idle-node")
	assert.InDelta(t, idle, gpu, 1e-9)
}

func TestComputeNodeScore_UnavailableNodePenalized(t *testing.T) {
	s := NewScorer(newTestStore())
	down := s.ComputeNodeScore("down-node")
	idle := s.ComputeNodeScore("idle-node")
	assert.Less(t, down, idle)
}

func TestComputeNodeScore_FlappingDegradesScore(t *testing.T) {
	s := NewScorer(newTestStore())
	stable := s.ComputeNodeScore("idle-node")

	for i := 0; i < 6; i++ {
		s.RecordToggle("idle-node", i%2 == 0)
	}
	flapped := s.ComputeNodeScore("idle-node")
	assert.Less(t, flapped, stable)
}

func TestComputeNodeScore_AlwaysInUnitRange(t *testing.T) {
	store := newTestStore()
	s := NewScorer(store)
	for _, n := range store.ListNodes() {
		score := s.ComputeNodeScore(n.Name)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}
