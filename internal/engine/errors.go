package engine

import (
	"errors"
	"fmt"
)

// ErrNoStore is returned by Submit when the engine has no run store to
// record asynchronous runs in.
var ErrNoStore = errors.New("engine has no run store")

// MissingExecutionContextError reports a quantum algorithm asked to run
// without a backend.
type MissingExecutionContextError struct {
	Algorithm string
}

func (e *MissingExecutionContextError) Error() string {
	return fmt.Sprintf("algorithm %q requires a backend and none was configured", e.Algorithm)
}

// AlgorithmExecutionError wraps a failure inside an algorithm's run.
// Partial holds whatever result the algorithm produced before failing.
type AlgorithmExecutionError struct {
	Algorithm string
	Partial   map[string]any
	Err       error
}

func (e *AlgorithmExecutionError) Error() string {
	return fmt.Sprintf("algorithm %q failed: %v", e.Algorithm, e.Err)
}

func (e *AlgorithmExecutionError) Unwrap() error { return e.Err }
