package handler

import "github.com/leorit/backend/internal/interfaces/http/dto"

// APIResponse is the success envelope with a typed payload. Handlers write
// dto.Response; this type names the payload in route annotations and lets
// callers decode data without a second pass.
type APIResponse[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitempty"`
	Meta    *dto.Meta `json:"meta,omitempty"`
}

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}
