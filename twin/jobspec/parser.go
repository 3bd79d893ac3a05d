// Package jobspec parses the API-facing, language-neutral job spec (spec.md
// §6) into a typed twin.Job, the single trust boundary downstream code
// relies on (spec.md §9's "dynamically typed job dicts" re-architecture
// guidance). Ported in semantics from original_source/dt/jobs.py.
package jobspec

import (
	"fmt"

	"github.com/dtwin/dtwin/twin"
)

// defaultDeadlineMs mirrors original_source/dt/jobs.py's
// metadata.get("deadline_ms", 60_000) default.
const defaultDeadlineMs = 60_000

// defaultOriginCluster mirrors jobs.py's origin_data.get("cluster", "dc-core")
// default.
const defaultOriginCluster = "dc-core"

// Spec is the decoded shape of the inbound job spec JSON (spec.md §6):
//
//	{ apiVersion, kind,
//	  metadata: { name, deadline_ms, origin?: { cluster, node? } },
//	  spec: { stages: [ { id, compute:{...}, constraints:{...}, predecessor? } ] } }
type Spec struct {
	APIVersion string       `json:"apiVersion"`
	Kind       string       `json:"kind"`
	Metadata   SpecMetadata `json:"metadata"`
	Spec       SpecBody     `json:"spec"`
}

type SpecMetadata struct {
	Name       string      `json:"name"`
	DeadlineMs *float64    `json:"deadline_ms,omitempty"`
	Origin     *SpecOrigin `json:"origin,omitempty"`
}

type SpecOrigin struct {
	Cluster string `json:"cluster"`
	Node    string `json:"node,omitempty"`
}

type SpecBody struct {
	Stages []SpecStage `json:"stages"`
}

type SpecStage struct {
	ID          string           `json:"id"`
	Compute     SpecCompute      `json:"compute"`
	Constraints SpecConstraints  `json:"constraints"`
	Predecessor string           `json:"predecessor,omitempty"`
}

type SpecCompute struct {
	CPU          int    `json:"cpu"`
	MemGB        float64 `json:"mem_gb"`
	DurationMs   float64 `json:"duration_ms"`
	GPUVRAMGB    float64 `json:"gpu_vram_gb"`
	WorkloadType string `json:"workload_type"`
}

type SpecConstraints struct {
	Arch                      []string `json:"arch"`
	Formats                   []string `json:"formats"`
	DataLocality              string   `json:"data_locality,omitempty"`
	MaxLatencyToPredecessorMs *float64 `json:"max_latency_to_predecessor_ms,omitempty"`
}

// Error reports a malformed job spec. It unwraps to twin.ErrBadJobSpec.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return twin.ErrBadJobSpec }

func badSpec(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Parse converts a decoded Spec into a twin.Job, applying the same defaults
// and required-field checks as original_source/dt/jobs.py's
// parse_job_spec.
func Parse(spec Spec) (twin.Job, error) {
	if spec.Metadata.Name == "" {
		return twin.Job{}, badSpec("missing required field: metadata.name")
	}
	if len(spec.Spec.Stages) == 0 {
		return twin.Job{}, badSpec("job spec must include at least one stage")
	}

	deadline := float64(defaultDeadlineMs)
	if spec.Metadata.DeadlineMs != nil {
		deadline = *spec.Metadata.DeadlineMs
	}

	var origin *twin.JobOrigin
	if spec.Metadata.Origin != nil {
		cluster := spec.Metadata.Origin.Cluster
		if cluster == "" {
			cluster = defaultOriginCluster
		}
		origin = &twin.JobOrigin{Cluster: cluster, Node: spec.Metadata.Origin.Node}
	}

	stages := make([]twin.JobStage, 0, len(spec.Spec.Stages))
	for _, s := range spec.Spec.Stages {
		if s.ID == "" {
			return twin.Job{}, badSpec("missing required field: stage id")
		}

		workloadType := twin.WorkloadType(s.Compute.WorkloadType)
		if workloadType == "" {
			workloadType = twin.WorkloadCPUBound
		}

		arch := s.Constraints.Arch
		if len(arch) == 0 {
			arch = []string{"amd64"}
		}
		formatsIn := s.Constraints.Formats
		if len(formatsIn) == 0 {
			formatsIn = []string{string(twin.FormatNative)}
		}
		formats := make([]twin.ExecFormat, 0, len(formatsIn))
		for _, f := range formatsIn {
			formats = append(formats, twin.ExecFormat(f))
		}

		stages = append(stages, twin.JobStage{
			ID: s.ID,
			Compute: twin.StageCompute{
				CPU:          s.Compute.CPU,
				MemGB:        s.Compute.MemGB,
				DurationMs:   s.Compute.DurationMs,
				GPUVRAMGB:    s.Compute.GPUVRAMGB,
				WorkloadType: workloadType,
			},
			Constraints: twin.StageConstraints{
				Arch:                      arch,
				Formats:                   formats,
				DataLocality:              s.Constraints.DataLocality,
				MaxLatencyToPredecessorMs: s.Constraints.MaxLatencyToPredecessorMs,
			},
			Predecessor: s.Predecessor,
		})
	}

	return twin.Job{
		Name:       spec.Metadata.Name,
		DeadlineMs: deadline,
		Stages:     stages,
		Origin:     origin,
	}, nil
}
