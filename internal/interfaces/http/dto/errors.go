package dto

import (
	"net/http"
	"time"

	"github.com/leorit/backend/internal/application/event"
	"github.com/leorit/backend/internal/domain/shared"
)

// Transport error codes. These are produced by the HTTP layer itself
// (binding, authentication, rate limiting) and never by the domain.
// Format: ERR_<DESCRIPTION>
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeUnauthorized    = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired    = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid    = "ERR_TOKEN_INVALID"
	ErrCodeForbidden       = "ERR_FORBIDDEN"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeUnavailable     = "ERR_SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Domain codes
// are sent to clients verbatim.
var ErrorCodeHTTPStatus = map[string]int{
	// Transport
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,

	// Lifecycle
	shared.CodeInvalidTransition:      http.StatusUnprocessableEntity,
	shared.CodeGuardFailed:            http.StatusUnprocessableEntity,
	shared.CodeDuplicateOpenRound:     http.StatusConflict,
	shared.CodeAlreadyDecided:         http.StatusConflict,
	shared.CodeInvalidDefectData:      http.StatusBadRequest,
	shared.CodeNotFound:               http.StatusNotFound,
	shared.CodeUnauthorized:           http.StatusForbidden,
	shared.CodeConcurrentModification: http.StatusConflict,
	shared.CodeValidation:             http.StatusBadRequest,
	shared.CodeAlreadyExists:          http.StatusConflict,

	// Outbox
	event.CodeOutboxInvalidStatus: http.StatusUnprocessableEntity,
	event.CodeOutboxInternal:      http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// legacyErrorCodes maps codes emitted by older middleware to their
// current form
var legacyErrorCodes = map[string]string{
	"INTERNAL_ERROR":      ErrCodeInternal,
	"BAD_REQUEST":         ErrCodeBadRequest,
	"RATE_LIMIT_EXCEEDED": ErrCodeRateLimited,
	"REQUEST_TOO_LARGE":   ErrCodeRequestTooLarge,
	"TOKEN_EXPIRED":       ErrCodeTokenExpired,
	"INVALID_TOKEN":       ErrCodeTokenInvalid,
}

// NormalizeErrorCode converts a legacy error code to its current form.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := legacyErrorCodes[code]; ok {
		return newCode
	}
	return code
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewErrorResponseWithRequestID creates an error response carrying the
// request ID so that clients can quote it in support requests
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      NormalizeErrorCode(code),
			Message:   message,
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	}
}

// NewValidationErrorResponse creates a 400 response listing field errors
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}
