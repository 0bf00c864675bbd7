package service

import (
	"errors"
	"fmt"
)

// Common errors returned by the service layer.
var (
	// ErrNoValidDomains is returned when a submission normalizes to an
	// empty key set.
	ErrNoValidDomains = errors.New("submission contains no valid domains")
)

// JobServiceError is a custom error type for job service errors.
type JobServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for JobServiceError.
func (e *JobServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("job service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *JobServiceError) Unwrap() error {
	return e.Err
}

// NewJobServiceError creates a new JobServiceError.
func NewJobServiceError(operation, message string, err error) *JobServiceError {
	return &JobServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// ApprovalServiceError is a custom error type for approval service
// errors.
type ApprovalServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ApprovalServiceError.
func (e *ApprovalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("approval service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("approval service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ApprovalServiceError) Unwrap() error {
	return e.Err
}

// NewApprovalServiceError creates a new ApprovalServiceError.
func NewApprovalServiceError(operation, message string, err error) *ApprovalServiceError {
	return &ApprovalServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
