package supervisor

import "fmt"

// Status is the lifecycle state of a subagent.
type Status int

const (
	// StatusActive is a running subagent within its limits.
	StatusActive Status = iota
	// StatusWarning is a running subagent that exceeded a soft limit.
	StatusWarning
	// StatusCritical is a subagent whose termination is in progress.
	StatusCritical
	// StatusTerminated is absorbing: no transition leaves it.
	StatusTerminated
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	case StatusTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Running reports whether the status counts against MaxConcurrentSubagents.
func (s Status) Running() bool {
	return s == StatusActive || s == StatusWarning
}

// next is the single transition rule for record status.
func (s Status) next(to Status) Status {
	switch s {
	case StatusTerminated:
		return StatusTerminated
	case StatusCritical:
		// Only termination completes a pending termination.
		if to == StatusTerminated {
			return to
		}
		return s
	default:
		return to
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ACTIVE":
		*s = StatusActive
	case "WARNING":
		*s = StatusWarning
	case "CRITICAL":
		*s = StatusCritical
	case "TERMINATED":
		*s = StatusTerminated
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}
