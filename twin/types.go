package twin

// WorkloadType classifies the resource profile a stage is expected to stress.
type WorkloadType string

const (
	WorkloadCPUBound WorkloadType = "cpu_bound"
	WorkloadMemBound WorkloadType = "mem_bound"
	WorkloadGPUBound WorkloadType = "gpu_bound"
	WorkloadIOBound  WorkloadType = "io_bound"
)

// ExecFormat is the binary form a stage runs in.
type ExecFormat string

const (
	FormatNative ExecFormat = "native"
	FormatWasm   ExecFormat = "wasm"
)

// Hardware describes a node's physical capability.
type Hardware struct {
	CPU        int     `json:"cpu" yaml:"cpu"`
	MemoryGB   float64 `json:"memory_gb" yaml:"memory_gb"`
	GPUVRAMGB  float64 `json:"gpu_vram_gb" yaml:"gpu_vram_gb"`
	Arch       string  `json:"arch" yaml:"arch"`
}

// K8sAllocatable describes the scheduler-visible allocatable slice of a node.
type K8sAllocatable struct {
	AllocatableCPU    int     `json:"allocatable_cpu" yaml:"allocatable_cpu"`
	AllocatableMemGB  float64 `json:"allocatable_mem_gb" yaml:"allocatable_mem_gb"`
}

// Telemetry holds a node's live utilisation snapshot, both in [0,100].
type Telemetry struct {
	CPUUtil float64 `json:"cpu_util" yaml:"cpu_util"`
	MemUtil float64 `json:"mem_util" yaml:"mem_util"`
}

// PowerProfile gives the linear coefficients used for the simulator's energy
// estimate: energy_kwh ≈ (IdleWatts + BusyWatts*utilisation) * duration.
type PowerProfile struct {
	IdleWatts float64 `json:"idle_watts" yaml:"idle_watts"`
	BusyWatts float64 `json:"busy_watts" yaml:"busy_watts"`
}

// Node is a single machine in the fabric. Cluster membership is kept by the
// StateStore (see StateStore.GetCluster), not stored on the node itself.
type Node struct {
	Name         string         `json:"name" yaml:"name"`
	Hardware     Hardware       `json:"hardware" yaml:"hardware"`
	K8s          K8sAllocatable `json:"k8s" yaml:"k8s"`
	Tel          Telemetry      `json:"tel" yaml:"tel"`
	Power        PowerProfile   `json:"power" yaml:"power"`
	Available    bool           `json:"available" yaml:"available"`
}

// Cluster is an administrative grouping of nodes sharing an intra-cluster
// latency floor. Node membership is tracked by the StateStore rather than
// through this type.
type Cluster struct {
	ID    string   `json:"id" yaml:"id"`
	Nodes []string `json:"nodes" yaml:"nodes"`
}

// StageCompute describes a stage's resource demand.
type StageCompute struct {
	CPU          int          `json:"cpu"`
	MemGB        float64      `json:"mem_gb"`
	DurationMs   float64      `json:"duration_ms"`
	GPUVRAMGB    float64      `json:"gpu_vram_gb"`
	WorkloadType WorkloadType `json:"workload_type"`
}

// StageConstraints describes a stage's placement constraints.
type StageConstraints struct {
	Arch                      []string     `json:"arch"`
	Formats                   []ExecFormat `json:"formats"`
	DataLocality              string       `json:"data_locality,omitempty"`
	MaxLatencyToPredecessorMs *float64     `json:"max_latency_to_predecessor_ms,omitempty"`
}

// JobStage is one node in a job's predecessor DAG.
type JobStage struct {
	ID          string           `json:"id"`
	Compute     StageCompute     `json:"compute"`
	Constraints StageConstraints `json:"constraints"`
	Predecessor string           `json:"predecessor,omitempty"`
}

// JobOrigin identifies where a job's input data lives.
type JobOrigin struct {
	Cluster string `json:"cluster"`
	Node    string `json:"node,omitempty"`
}

// Job is a parsed, typed job specification. Once constructed a Job is never
// mutated — parsing is the single trust boundary (spec.md §9).
type Job struct {
	Name       string     `json:"name"`
	DeadlineMs float64    `json:"deadline_ms"`
	Stages     []JobStage `json:"stages"`
	Origin     *JobOrigin `json:"origin,omitempty"`
}

// StageByID returns the stage with the given id, or nil if absent.
func (j Job) StageByID(id string) *JobStage {
	for i := range j.Stages {
		if j.Stages[i].ID == id {
			return &j.Stages[i]
		}
	}
	return nil
}

// PlacementDecision is one stage-to-node-and-format assignment.
type PlacementDecision struct {
	StageID    string     `json:"stage_id"`
	NodeName   string     `json:"node_name"`
	ExecFormat ExecFormat `json:"exec_format"`
}

// PlanMetrics are the scored outcome of a complete plan.
type PlanMetrics struct {
	LatencyMs     float64 `json:"latency_ms"`
	EnergyKwh     float64 `json:"energy_kwh"`
	RiskScore     float64 `json:"risk_score"`
	SLAViolations int     `json:"sla_violations"`
}

// Plan is the full, immutable set of placements for a job plus scored
// metrics and a shadow (backup) assignment per stage.
type Plan struct {
	PlanID        string                       `json:"plan_id"`
	JobName       string                       `json:"job_name"`
	Placements    map[string]PlacementDecision `json:"placements"`
	LatencyMs     float64                      `json:"predicted_latency_ms"`
	EnergyKwh     float64                      `json:"predicted_energy_kwh"`
	RiskScore     float64                      `json:"risk_score"`
	ShadowPlan    map[string]string            `json:"shadow_plan"`
	CreatedAtMs   int64                        `json:"created_at_ms"`
}

// ObservedMetrics is the actuator/verification-path record of what actually
// happened when a plan ran, written at most once per plan id.
type ObservedMetrics struct {
	PlanID      string  `json:"plan_id" yaml:"plan_id"`
	LatencyMs   float64 `json:"latency_ms" yaml:"latency_ms"`
	CPUUtil     float64 `json:"cpu_util" yaml:"cpu_util"`
	MemPeakGB   float64 `json:"mem_peak_gb" yaml:"mem_peak_gb"`
	EnergyKwh   float64 `json:"energy_kwh" yaml:"energy_kwh"`
	CompletedAt int64   `json:"completed_at" yaml:"completed_at"`
}
