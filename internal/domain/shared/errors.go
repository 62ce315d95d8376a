package shared

import "errors"

// Error codes shared by every bounded context. The HTTP layer maps them to
// status codes, so they are part of the public API contract.
const (
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeGuardFailed            = "GUARD_FAILED"
	CodeDuplicateOpenRound     = "DUPLICATE_OPEN_ROUND"
	CodeAlreadyDecided         = "ALREADY_DECIDED"
	CodeInvalidDefectData      = "INVALID_DEFECT_DATA"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeValidation             = "VALIDATION_ERROR"
	CodeAlreadyExists          = "ALREADY_EXISTS"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so a specific error
// matches its sentinel through errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput           = NewDomainError(CodeValidation, "Invalid input provided")
	ErrUnauthorized           = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrInvalidTransition      = NewDomainError(CodeInvalidTransition, "Transition not allowed from current state")
	ErrGuardFailed            = NewDomainError(CodeGuardFailed, "Transition precondition not met")
	ErrDuplicateOpenRound     = NewDomainError(CodeDuplicateOpenRound, "An unresolved QC round already exists")
	ErrAlreadyDecided         = NewDomainError(CodeAlreadyDecided, "QC record has already been decided")
	ErrInvalidDefectData      = NewDomainError(CodeInvalidDefectData, "Invalid defect classification")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
)

// ErrorCode extracts the domain error code from err, or "" if err is not a
// domain error.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether the caller may transparently retry the
// operation that produced err.
func IsRetryable(err error) bool {
	return ErrorCode(err) == CodeConcurrentModification
}
