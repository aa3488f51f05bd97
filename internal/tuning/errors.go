package tuning

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is returned by SubmitCollectionRequest when neither a
	// description nor a complete seed triple is present.
	ErrMissingInput = errors.New("describe the system or provide the gains in use")

	// ErrMissingSnapshot is returned by RequestRefinement without a chart image.
	ErrMissingSnapshot = errors.New("a snapshot of the response chart is required")

	// ErrNoTelemetry is returned by RequestRefinement before any telemetry
	// has been ingested.
	ErrNoTelemetry = errors.New("no telemetry ingested")

	// ErrOperationInProgress is returned when another state-changing
	// operation is still running on the session.
	ErrOperationInProgress = errors.New("operation already in progress")

	// ErrInvalidStage is matched by every *StageError.
	ErrInvalidStage = errors.New("operation not allowed in current stage")
)

// StageError reports an operation attempted outside the stage it belongs to.
type StageError struct {
	Op    string
	Stage Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s not allowed in stage %s", e.Op, e.Stage)
}

func (e *StageError) Is(target error) bool {
	return target == ErrInvalidStage
}
