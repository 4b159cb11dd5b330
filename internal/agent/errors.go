package agent

import (
	"errors"
	"fmt"
)

// ErrMaxIterations is returned when the model keeps requesting tools after
// the configured number of tool rounds.
var ErrMaxIterations = errors.New("tool iteration limit reached")

// ModelInvocationError is a failed model call. It fails the turn.
type ModelInvocationError struct {
	ThreadID string
	Err      error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed (thread %s): %v", e.ThreadID, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// PersistenceError is a failed checkpoint load or save. It fails the turn.
type PersistenceError struct {
	ThreadID string
	Op       string // "load" or "save"
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s failed (thread %s): %v", e.Op, e.ThreadID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
