package supervisor

import (
	"errors"
	"fmt"
)

// ErrNotReady reports that the container or its supervisor cannot be reached
// yet. It is expected while the workload container is still starting.
var ErrNotReady = errors.New("supervisor not ready")

// NotReadyError wraps the cause of an ErrNotReady condition.
type NotReadyError struct {
	Container string
	Err       error
}

func (e *NotReadyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("container %s not available", e.Container)
	}
	return fmt.Sprintf("container %s not available: %v", e.Container, e.Err)
}

func (e *NotReadyError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNotReady) hold for every NotReadyError.
func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

// IsNotReady reports whether err means the supervisor cannot be reached yet.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}
