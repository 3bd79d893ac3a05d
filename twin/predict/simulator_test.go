package predict

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtwin/dtwin/twin"
)

type fakeLatency struct {
	latencies map[[2]string]float64
}

func (f fakeLatency) GetLatencyBetween(clusterA, clusterB, _, _ string) float64 {
	if clusterA == clusterB {
		return 0
	}
	if v, ok := f.latencies[[2]string{clusterA, clusterB}]; ok {
		return v
	}
	if v, ok := f.latencies[[2]string{clusterB, clusterA}]; ok {
		return v
	}
	return 0
}

func newStoreWithTwoClusters() *twin.StateStore {
	store := twin.NewStateStore(false)
	store.PutNode(twin.Node{
		Name: "a1", Available: true,
		Hardware: twin.Hardware{CPU: 8, Arch: "amd64"},
		K8s:      twin.K8sAllocatable{AllocatableCPU: 8, AllocatableMemGB: 16},
		Tel:      twin.Telemetry{CPUUtil: 10, MemUtil: 10},
	}, "dc-core")
	store.PutNode(twin.Node{
		Name: "b1", Available: true,
		Hardware: twin.Hardware{CPU: 8, Arch: "amd64"},
		K8s:      twin.K8sAllocatable{AllocatableCPU: 8, AllocatableMemGB: 16},
		Tel:      twin.Telemetry{CPUUtil: 10, MemUtil: 10},
	}, "edge-microdc")
	return store
}

func TestChooseExecFormat_PrefersNativeOnArchMatch(t *testing.T) {
	store := newStoreWithTwoClusters()
	sim := NewSimulator(store, fakeLatency{}, nil)
	node, _ := store.GetNode("a1")

	stage := twin.JobStage{
		ID: "s1",
		Constraints: twin.StageConstraints{
			Arch:    []string{"amd64"},
			Formats: []twin.ExecFormat{twin.FormatNative, twin.FormatWasm},
		},
	}
	format, err := sim.ChooseExecFormat(stage, node)
	require.NoError(t, err)
	assert.Equal(t, twin.FormatNative, format)
}

func TestChooseExecFormat_FallsBackToWasmOnArchMismatch(t *testing.T) {
	store := newStoreWithTwoClusters()
	sim := NewSimulator(store, fakeLatency{}, nil)
	node, _ := store.GetNode("a1")

	stage := twin.JobStage{
		ID: "s1",
		Constraints: twin.StageConstraints{
			Arch:    []string{"arm64"},
			Formats: []twin.ExecFormat{twin.FormatNative, twin.FormatWasm},
		},
	}
	format, err := sim.ChooseExecFormat(stage, node)
	require.NoError(t, err)
	assert.Equal(t, twin.FormatWasm, format)
}

func TestChooseExecFormat_NoFeasibleFormat(t *testing.T) {
	store := newStoreWithTwoClusters()
	sim := NewSimulator(store, fakeLatency{}, nil)
	node, _ := store.GetNode("a1")

	stage := twin.JobStage{
		ID: "s1",
		Constraints: twin.StageConstraints{
			Arch:    []string{"arm64"},
			Formats: []twin.ExecFormat{twin.FormatNative},
		},
	}
	_, err := sim.ChooseExecFormat(stage, node)
	require.Error(t, err)
	assert.True(t, errors.Is(err, twin.ErrNoFeasibleFormat))
}

func TestComputeNetworkDelayMs_SameNodeIsZero(t *testing.T) {
	store := newStoreWithTwoClusters()
	sim := NewSimulator(store, fakeLatency{}, nil)
	node, _ := store.GetNode("a1")
	assert.Equal(t, 0.0, sim.ComputeNetworkDelayMs(node, node))
}

func TestComputeNetworkDelayMs_CrossClusterUsesManager(t *testing.T) {
	store := newStoreWithTwoClusters()
	lat := fakeLatency{latencies: map[[2]string]float64{{"dc-core", "edge-microdc"}: 50}}
	sim := NewSimulator(store, lat, nil)
	a, _ := store.GetNode("a1")
	b, _ := store.GetNode("b1")
	assert.Equal(t, 50.0, sim.ComputeNetworkDelayMs(a, b))
	assert.Equal(t, 50.0, sim.ComputeNetworkDelayMs(b, a))
}

func TestScorePlan_DeterministicWithoutChaos(t *testing.T) {
	store := newStoreWithTwoClusters()
	sim := NewSimulator(store, fakeLatency{}, nil)

	job := twin.Job{
		Name:       "j1",
		DeadlineMs: 10000,
		Stages: []twin.JobStage{
			{ID: "s1", Compute: twin.StageCompute{CPU: 1, MemGB: 1, DurationMs: 1000, WorkloadType: twin.WorkloadCPUBound}},
		},
	}
	placements := map[string]twin.PlacementDecision{
		"s1": {StageID: "s1", NodeName: "a1", ExecFormat: twin.FormatNative},
	}

	m1 := sim.ScorePlan(job, placements)
	m2 := sim.ScorePlan(job, placements)
	assert.Equal(t, m1, m2)
	assert.Greater(t, m1.LatencyMs, 0.0)
}

func TestScorePlan_DroppedPredecessorOmitsNetworkDelay(t *testing.T) {
	store := newStoreWithTwoClusters()
	lat := fakeLatency{latencies: map[[2]string]float64{{"dc-core", "edge-microdc"}: 500}}
	sim := NewSimulator(store, lat, nil)

	job := twin.Job{
		Name:       "j1",
		DeadlineMs: 10000,
		Stages: []twin.JobStage{
			{ID: "s1", Compute: twin.StageCompute{CPU: 1, DurationMs: 100}},
			{ID: "s2", Compute: twin.StageCompute{CPU: 1, DurationMs: 100}, Predecessor: "s1"},
		},
	}
	// s1 was dropped (not in placements): s2's network delay term must be
	// omitted rather than referencing a nonexistent predecessor placement.
	placements := map[string]twin.PlacementDecision{
		"s2": {StageID: "s2", NodeName: "b1", ExecFormat: twin.FormatNative},
	}

	metrics := sim.ScorePlan(job, placements)
	assert.Less(t, metrics.LatencyMs, 500.0)
}

func TestScorePlan_SLAViolationCounted(t *testing.T) {
	store := newStoreWithTwoClusters()
	sim := NewSimulator(store, fakeLatency{}, nil)

	job := twin.Job{
		Name:       "j1",
		DeadlineMs: 1, // impossible deadline
		Stages: []twin.JobStage{
			{ID: "s1", Compute: twin.StageCompute{CPU: 1, DurationMs: 1000}},
		},
	}
	placements := map[string]twin.PlacementDecision{
		"s1": {StageID: "s1", NodeName: "a1", ExecFormat: twin.FormatNative},
	}

	metrics := sim.ScorePlan(job, placements)
	assert.Equal(t, 1, metrics.SLAViolations)
}

func TestComputeStageLatencyMs_FailureRateZeroIsDeterministic(t *testing.T) {
	store := newStoreWithTwoClusters()
	sim := NewSimulator(store, fakeLatency{}, nil)
	node, _ := store.GetNode("a1")
	stage := twin.JobStage{ID: "s1", Compute: twin.StageCompute{CPU: 1, DurationMs: 1000}}

	l1 := sim.ComputeStageLatencyMs(stage, node, twin.FormatNative)
	l2 := sim.ComputeStageLatencyMs(stage, node, twin.FormatNative)
	assert.Equal(t, l1, l2)
}

func TestComputeStageLatencyMs_WasmHasOverheadVsNative(t *testing.T) {
	store := newStoreWithTwoClusters()
	sim := NewSimulator(store, fakeLatency{}, nil)
	node, _ := store.GetNode("a1")
	stage := twin.JobStage{ID: "s1", Compute: twin.StageCompute{CPU: 1, DurationMs: 1000}}

	native := sim.ComputeStageLatencyMs(stage, node, twin.FormatNative)
	wasm := sim.ComputeStageLatencyMs(stage, node, twin.FormatWasm)
	assert.Greater(t, wasm, native)
}

func TestWithFailureRate_LatencyAtLeastNinetyPercentOfBase(t *testing.T) {
	store := newStoreWithTwoClusters()
	rng := twin.NewPartitionedRNG(twin.NewSimulationKey(42))
	sim := NewSimulator(store, fakeLatency{}, rng).WithFailureRate(0.5)
	node, _ := store.GetNode("a1")
	stage := twin.JobStage{ID: "s1", Compute: twin.StageCompute{CPU: 1, DurationMs: 1000}}

	base := stage.Compute.DurationMs
	latency := sim.ComputeStageLatencyMs(stage, node, twin.FormatNative)
	assert.GreaterOrEqual(t, latency, base*0.9) // congestion alone would already exceed base
}
