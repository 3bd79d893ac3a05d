package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtwin/dtwin/twin"
)

type stubPolicy struct{ name string }

func (s stubPolicy) Place(job twin.Job) map[string]twin.PlacementDecision {
	return map[string]twin.PlacementDecision{"via": {StageID: "via", NodeName: s.name}}
}

func TestSelector_ForcePolicyOverridesHeuristics(t *testing.T) {
	state, _, _ := newHarness(fakeLatency{})
	sel := NewSelector(state, stubPolicy{"greedy"}, stubPolicy{"resilient"}, stubPolicy{"cvar"})

	job := twin.Job{Name: "j", DeadlineMs: 10000}
	assert.Equal(t, stubPolicy{"cvar"}, sel.SelectForJob(job, "cvar"))
	assert.Equal(t, stubPolicy{"resilient"}, sel.SelectForJob(job, "resilient"))
	assert.Equal(t, stubPolicy{"greedy"}, sel.SelectForJob(job, "greedy"))
}

func TestSelector_RecentFailureRoutesToResilient(t *testing.T) {
	state, _, _ := newHarness(fakeLatency{})
	sel := NewSelector(state, stubPolicy{"greedy"}, stubPolicy{"resilient"}, stubPolicy{"cvar"})

	sel.RecordFailure("some-node")
	job := twin.Job{Name: "j", DeadlineMs: 10000}
	assert.Equal(t, stubPolicy{"resilient"}, sel.SelectForJob(job, ""))
}

func TestSelector_TightDeadlineRoutesToResilient(t *testing.T) {
	state, _, _ := newHarness(fakeLatency{})
	sel := NewSelector(state, stubPolicy{"greedy"}, stubPolicy{"resilient"}, stubPolicy{"cvar"})

	job := twin.Job{Name: "j", DeadlineMs: 1000}
	assert.Equal(t, stubPolicy{"resilient"}, sel.SelectForJob(job, ""))
}

func TestSelector_OriginJobRoutesToResilient(t *testing.T) {
	state, _, _ := newHarness(fakeLatency{})
	sel := NewSelector(state, stubPolicy{"greedy"}, stubPolicy{"resilient"}, stubPolicy{"cvar"})

	job := twin.Job{Name: "j", DeadlineMs: 10000, Origin: &twin.JobOrigin{Cluster: "edge"}}
	assert.Equal(t, stubPolicy{"resilient"}, sel.SelectForJob(job, ""))
}

func TestSelector_HighUtilizationRoutesToCVaR(t *testing.T) {
	state, _, _ := newHarness(fakeLatency{})
	n, c := newNode("n1", "dc-core", 4, 8, 90, 90)
	state.PutNode(n, c)
	sel := NewSelector(state, stubPolicy{"greedy"}, stubPolicy{"resilient"}, stubPolicy{"cvar"})

	job := twin.Job{Name: "j", DeadlineMs: 10000}
	assert.Equal(t, stubPolicy{"cvar"}, sel.SelectForJob(job, ""))
}

func TestSelector_DefaultsToGreedy(t *testing.T) {
	state, _, _ := newHarness(fakeLatency{})
	n, c := newNode("n1", "dc-core", 4, 8, 10, 10)
	state.PutNode(n, c)
	sel := NewSelector(state, stubPolicy{"greedy"}, stubPolicy{"resilient"}, stubPolicy{"cvar"})

	job := twin.Job{Name: "j", DeadlineMs: 10000}
	assert.Equal(t, stubPolicy{"greedy"}, sel.SelectForJob(job, ""))
}

func TestSelector_EmptyFleetAveragesToZeroUtilization(t *testing.T) {
	state, _, _ := newHarness(fakeLatency{})
	sel := NewSelector(state, stubPolicy{"greedy"}, stubPolicy{"resilient"}, stubPolicy{"cvar"})
	job := twin.Job{Name: "j", DeadlineMs: 10000}
	assert.Equal(t, stubPolicy{"greedy"}, sel.SelectForJob(job, ""))
}
