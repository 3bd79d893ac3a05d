// Package actuator defines the boundary between a computed plan and whatever
// runtime would actually carry it out. Real cluster-runtime submission is
// out of scope (spec.md §1); LoggingActuator is the only implementation
// shipped here, grounded on original_source/dt/api.py's submit_plan call
// site, which already treats actuation failure as non-fatal to the API
// response.
package actuator

import (
	"github.com/sirupsen/logrus"

	"github.com/dtwin/dtwin/twin"
)

// Actuator submits a computed plan for execution. Implementations must not
// block the caller on a failed submission; per spec.md §7, a submission
// error is logged and never invalidates the plan already handed back to the
// caller.
type Actuator interface {
	Submit(job twin.Job, placements map[string]twin.PlacementDecision, planID string) error
}

// LoggingActuator logs the would-be submission instead of talking to a real
// cluster runtime.
type LoggingActuator struct{}

// NewLoggingActuator creates a LoggingActuator.
func NewLoggingActuator() *LoggingActuator {
	return &LoggingActuator{}
}

// Submit implements Actuator.
func (a *LoggingActuator) Submit(job twin.Job, placements map[string]twin.PlacementDecision, planID string) error {
	logrus.WithFields(logrus.Fields{
		"plan_id": planID,
		"job":     job.Name,
		"stages":  len(placements),
	}).Info("actuator: submitting plan")
	return nil
}
