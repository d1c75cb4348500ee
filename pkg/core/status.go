package core

// RunStatus represents the lifecycle status of one automation run
type RunStatus int

const (
	StatusIdle      RunStatus = iota // Not started or reset after stop
	StatusRunning                    // Heartbeat active
	StatusCompleted                  // Stopped on a terminal business state
	StatusFailed                     // Stopped with a failure reason (dump written)
	StatusStopped                    // Stopped by the operator
)

// String returns the string representation of RunStatus
func (s RunStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the run ended on a terminal business state
func (s RunStatus) IsSuccess() bool {
	return s == StatusCompleted
}

// ErrorCategory classifies automation errors
type ErrorCategory int

const (
	ErrCategoryNone        ErrorCategory = iota // No error
	ErrCategoryNotFound                         // Transient: element absent, next heartbeat retries
	ErrCategoryTerminal                         // Business terminal state (quota exhausted, already done)
	ErrCategoryUnavailable                      // Accessibility service or shell bridge not connected
	ErrCategoryUnexpected                       // Exception during a background search
	ErrCategoryStuck                            // Executor wedged with an operation that never completed
	ErrCategoryConfig                           // Invalid configuration
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryNotFound:
		return "not_found"
	case ErrCategoryTerminal:
		return "terminal"
	case ErrCategoryUnavailable:
		return "unavailable"
	case ErrCategoryUnexpected:
		return "unexpected"
	case ErrCategoryStuck:
		return "stuck"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// IsTransient returns true if the next heartbeat is expected to resolve the error
func (c ErrorCategory) IsTransient() bool {
	return c == ErrCategoryNotFound || c == ErrCategoryUnavailable
}
