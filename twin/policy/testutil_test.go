package policy

import (
	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/predict"
	"github.com/dtwin/dtwin/twin/resiliency"
)

// fakeLatency is a minimal LatencyLookup for tests that need cross-cluster
// behaviour without constructing a full cluster.Manager (avoiding an import
// cycle back into the cluster package from policy's test files).
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

func newNode(name, cluster string, cpu int, memGB, cpuUtil, memUtil float64) (twin.Node, string) {
	return twin.Node{
		Name:      name,
		Available: true,
		Hardware:  twin.Hardware{CPU: cpu, MemoryGB: memGB, Arch: "amd64"},
		K8s:       twin.K8sAllocatable{AllocatableCPU: cpu, AllocatableMemGB: memGB},
		Tel:       twin.Telemetry{CPUUtil: cpuUtil, MemUtil: memUtil},
	}, cluster
}

func simpleStage(id string, cpu int, memGB, durationMs float64) twin.JobStage {
	return twin.JobStage{
		ID: id,
		Compute: twin.StageCompute{
			CPU: cpu, MemGB: memGB, DurationMs: durationMs,
			WorkloadType: twin.WorkloadCPUBound,
		},
		Constraints: twin.StageConstraints{
			Arch:    []string{"amd64"},
			Formats: []twin.ExecFormat{twin.FormatNative, twin.FormatWasm},
		},
	}
}

func newHarness(lat LatencyLookup) (*twin.StateStore, *predict.Simulator, *resiliency.Scorer) {
	state := twin.NewStateStore(false)
	sim := predict.NewSimulator(state, lat, nil)
	scorer := resiliency.NewScorer(state)
	return state, sim, scorer
}
