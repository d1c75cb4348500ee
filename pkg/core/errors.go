package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: node_not_found, tree_unavailable, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	ErrNodeNotFound = &ExecutionError{
		Category: ErrCategoryNotFound,
		Code:     "node_not_found",
		Message:  "node not found",
	}

	ErrAlreadyCompleted = &ExecutionError{
		Category: ErrCategoryTerminal,
		Code:     "already_completed",
		Message:  "task already completed today",
	}
	ErrQuotaExhausted = &ExecutionError{
		Category: ErrCategoryTerminal,
		Code:     "quota_exhausted",
		Message:  "daily quota exhausted",
	}

	ErrTreeUnavailable = &ExecutionError{
		Category: ErrCategoryUnavailable,
		Code:     "tree_unavailable",
		Message:  "accessibility service not connected",
	}
	ErrShellUnavailable = &ExecutionError{
		Category: ErrCategoryUnavailable,
		Code:     "shell_unavailable",
		Message:  "shell bridge not bound",
	}

	ErrSearchPanicked = &ExecutionError{
		Category: ErrCategoryUnexpected,
		Code:     "search_panicked",
		Message:  "node search panicked",
	}

	ErrOperationStuck = &ExecutionError{
		Category: ErrCategoryStuck,
		Code:     "operation_stuck",
		Message:  "in-flight operation never completed",
	}

	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)

// CategoryOf returns the category of err, or ErrCategoryUnexpected for
// errors that are not ExecutionErrors.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryUnexpected
}

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
