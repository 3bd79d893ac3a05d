package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/config"
)

func newTestEngine() (*Engine, *twin.StateStore) {
	state := twin.NewStateStore(false)
	state.PutNode(twin.Node{
		Name:      "n1",
		Available: true,
		Hardware:  twin.Hardware{CPU: 4, MemoryGB: 8, Arch: "amd64"},
		K8s:       twin.K8sAllocatable{AllocatableCPU: 4, AllocatableMemGB: 8},
		Tel:       twin.Telemetry{CPUUtil: 10, MemUtil: 10},
	}, "dc-core")
	state.PutNode(twin.Node{
		Name:      "n2",
		Available: true,
		Hardware:  twin.Hardware{CPU: 4, MemoryGB: 8, Arch: "amd64"},
		K8s:       twin.K8sAllocatable{AllocatableCPU: 4, AllocatableMemGB: 8},
		Tel:       twin.Telemetry{CPUUtil: 50, MemUtil: 50},
	}, "dc-core")

	e := New(state, nil, nil, twin.NewSimulationKey(1), config.Default().CVaR)
	return e, state
}

func simpleJob() twin.Job {
	return twin.Job{
		Name:       "job-1",
		DeadlineMs: 10000,
		Stages: []twin.JobStage{{
			ID:          "s1",
			Compute:     twin.StageCompute{CPU: 1, MemGB: 1, DurationMs: 500, WorkloadType: twin.WorkloadCPUBound},
			Constraints: twin.StageConstraints{Arch: []string{"amd64"}, Formats: []twin.ExecFormat{twin.FormatNative}},
		}},
	}
}

func TestPlan_ReturnsPopulatedPlan(t *testing.T) {
	e, _ := newTestEngine()
	plan, err := e.Plan(context.Background(), simpleJob(), "greedy", true)
	require.NoError(t, err)

	assert.NotEmpty(t, plan.PlanID)
	assert.Equal(t, "job-1", plan.JobName)
	require.Len(t, plan.Placements, 1)
	assert.Equal(t, "n1", plan.Placements["s1"].NodeName)
	assert.NotEmpty(t, plan.ShadowPlan)
	assert.Greater(t, plan.CreatedAtMs, int64(0))
}

func TestPlan_EmptyStagesIsBadJobSpec(t *testing.T) {
	e, _ := newTestEngine()
	job := twin.Job{Name: "empty"}
	_, err := e.Plan(context.Background(), job, "greedy", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, twin.ErrBadJobSpec)
}

func TestPlan_NoFeasiblePlacementListsStageID(t *testing.T) {
	e, _ := newTestEngine()
	job := simpleJob()
	job.Stages[0].Compute.GPUVRAMGB = 999
	_, err := e.Plan(context.Background(), job, "greedy", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, twin.ErrNoFeasiblePlacement)
	assert.Contains(t, err.Error(), "s1")
}

func TestPlan_ShadowPlanPrefersDistinctNode(t *testing.T) {
	e, _ := newTestEngine()
	plan, err := e.Plan(context.Background(), simpleJob(), "greedy", true)
	require.NoError(t, err)
	assert.Equal(t, "n2", plan.ShadowPlan["s1_backup"])
}

func TestPlan_StoresPlanInState(t *testing.T) {
	e, state := newTestEngine()
	plan, err := e.Plan(context.Background(), simpleJob(), "greedy", true)
	require.NoError(t, err)

	stored, ok := state.GetPlan(plan.PlanID)
	require.True(t, ok)
	assert.Equal(t, plan.PlanID, stored.PlanID)
}

func TestPlan_AutoStrategyDoesNotError(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.Plan(context.Background(), simpleJob(), "auto", true)
	require.NoError(t, err)
}

func TestPlan_ExpiredContextIsTimeout(t *testing.T) {
	e, _ := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Plan(ctx, simpleJob(), "greedy", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, twin.ErrTimeout)
}

func TestObserveAvailability_MarksNodeDownThenUp(t *testing.T) {
	e, state := newTestEngine()
	require.NoError(t, e.ObserveAvailability("n1", false))
	n, _ := state.GetNode("n1")
	assert.False(t, n.Available)

	require.NoError(t, e.ObserveAvailability("n1", true))
	n, _ = state.GetNode("n1")
	assert.True(t, n.Available)
}

func TestObserveAvailability_UnknownNodeIsNotFound(t *testing.T) {
	e, _ := newTestEngine()
	err := e.ObserveAvailability("ghost", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, twin.ErrNotFound)
}

func TestSnapshot_ListsAllNodeNames(t *testing.T) {
	e, _ := newTestEngine()
	names := e.Snapshot()
	assert.ElementsMatch(t, []string{"n1", "n2"}, names)
}

func TestRecordObservedAndGetObserved_RoundTrip(t *testing.T) {
	e, _ := newTestEngine()
	plan, err := e.Plan(context.Background(), simpleJob(), "greedy", true)
	require.NoError(t, err)

	metrics := twin.ObservedMetrics{LatencyMs: 123.4, CPUUtil: 50, MemPeakGB: 2, EnergyKwh: 0.01, CompletedAt: 1000}
	require.NoError(t, e.RecordObserved(plan.PlanID, metrics))

	got, ok := e.GetObserved(plan.PlanID)
	require.True(t, ok)
	assert.Equal(t, metrics.LatencyMs, got.LatencyMs)
	assert.Equal(t, plan.PlanID, got.PlanID)
}

func TestRecordObserved_SecondCallIsAlreadyExists(t *testing.T) {
	e, _ := newTestEngine()
	plan, err := e.Plan(context.Background(), simpleJob(), "greedy", true)
	require.NoError(t, err)

	require.NoError(t, e.RecordObserved(plan.PlanID, twin.ObservedMetrics{}))
	err = e.RecordObserved(plan.PlanID, twin.ObservedMetrics{})
	require.Error(t, err)
	assert.ErrorIs(t, err, twin.ErrAlreadyExists)
}

func TestVirtualTopology_ReturnsOpaqueMap(t *testing.T) {
	e, _ := newTestEngine()
	topo := e.VirtualTopology()
	assert.Contains(t, topo, "total_nodes")
}
