package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when a subagent cannot be admitted.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrSessionExpired means the session outlived SessionTimeoutMinutes.
	ErrSessionExpired = fmt.Errorf("%w: session timeout reached", ErrCapacityExceeded)
	// ErrDraining means the supervisor is shutting down.
	ErrDraining = fmt.Errorf("%w: supervisor is draining", ErrCapacityExceeded)

	ErrUnknownSubagent   = errors.New("unknown subagent")
	ErrDuplicateSubagent = errors.New("subagent already registered")
	ErrInvalidLimits     = errors.New("invalid resource limits")
)

// ErrAlreadyTerminated is returned by AttachHandle for a record that is
// already terminating; the handle has been killed.
var ErrAlreadyTerminated = errors.New("subagent already terminated")
