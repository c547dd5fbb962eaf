package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewInvalidTransitionError reports an illegal state machine transition.
func NewInvalidTransitionError(from, action string) error {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s a campaign in status %q", action, from),
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(msg string) error {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: msg,
	}
}

// NewInternalError creates a new internal error.
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "an internal error occurred",
		Err:     err,
	}
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return GetErrorCode(err) == ErrCodeNotFound
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return GetErrorCode(err) == ErrCodeValidation
}

// IsInvalidTransition checks if the error is an illegal transition error.
func IsInvalidTransition(err error) bool {
	return GetErrorCode(err) == ErrCodeInvalidTransition
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return GetErrorCode(err) == ErrCodeConflict
}

// GetErrorCode extracts the error code from a domain error.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}
