package twin

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy, per spec.md §7. Callers use errors.Is against these
// sentinels; NoFeasiblePlacementError additionally carries the list of
// stage ids that could not be placed.
var (
	ErrBadJobSpec          = errors.New("bad job spec")
	ErrNoFeasiblePlacement = errors.New("no feasible placement")
	ErrNoFeasibleFormat    = errors.New("no feasible exec format")
	ErrNotFound            = errors.New("not found")
	ErrConfigError         = errors.New("config error")
	ErrAlreadyExists       = errors.New("already exists")
	ErrTimeout             = errors.New("timeout")
	ErrInternal            = errors.New("internal error")
)

// NoFeasiblePlacementError reports which stages a policy could not place.
// It unwraps to ErrNoFeasiblePlacement so callers can still use errors.Is.
type NoFeasiblePlacementError struct {
	StageIDs []string
}

func (e *NoFeasiblePlacementError) Error() string {
	return fmt.Sprintf("no feasible placement for stage(s): %s", strings.Join(e.StageIDs, ", "))
}

func (e *NoFeasiblePlacementError) Unwrap() error {
	return ErrNoFeasiblePlacement
}
