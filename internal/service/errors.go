package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/tasker-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check them with errors.Is; the API layer maps them to status codes.
var (
	// ErrTaskNotDeleted is returned when restoring a task that is active.
	// API layer should map this to HTTP 409 Conflict.
	ErrTaskNotDeleted = errors.New("task is not deleted")

	// ErrPredefinedTag is returned when modifying or deleting a shared tag.
	// API layer should map this to HTTP 403 Forbidden.
	ErrPredefinedTag = errors.New("predefined tags cannot be modified")

	// ErrConcurrentUpdate is returned when the task's stored status changed
	// between the read and the write of a status update.
	// API layer should map this to HTTP 409 Conflict.
	ErrConcurrentUpdate = errors.New("task was modified by another request")

	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrPageNotFound is returned when a listing page lies past the last result.
	ErrPageNotFound = fmt.Errorf("%w: invalid page", store.ErrNotFound)
)

// ServiceError wraps an unexpected failure with the operation that hit it.
type ServiceError struct {
	Service   string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a ServiceError for the task service.
func NewTaskServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "task", Operation: operation, Message: message, Err: err}
}

// NewTagServiceError creates a ServiceError for the tag service.
func NewTagServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "tag", Operation: operation, Message: message, Err: err}
}

// NewAuthServiceError creates a ServiceError for the auth service.
func NewAuthServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "auth", Operation: operation, Message: message, Err: err}
}
