package training

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckpointFailures is returned when too many consecutive checkpoints fail
	ErrCheckpointFailures = errors.New("too many consecutive checkpoint failures")

	// ErrBusy is returned when an operation needs an idle orchestrator
	ErrBusy = errors.New("training is in progress")
)

// CorruptCheckpointError reports a progress file that exists but cannot be
// resumed from. Nothing is restored when it is returned.
type CorruptCheckpointError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptCheckpointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt checkpoint %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt checkpoint %s: %s", e.Path, e.Reason)
}

func (e *CorruptCheckpointError) Unwrap() error {
	return e.Err
}
