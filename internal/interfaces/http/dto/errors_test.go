package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/leorit/backend/internal/application/event"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{shared.CodeInvalidTransition, http.StatusUnprocessableEntity},
		{shared.CodeGuardFailed, http.StatusUnprocessableEntity},
		{shared.CodeDuplicateOpenRound, http.StatusConflict},
		{shared.CodeAlreadyDecided, http.StatusConflict},
		{shared.CodeInvalidDefectData, http.StatusBadRequest},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeUnauthorized, http.StatusForbidden},
		{shared.CodeConcurrentModification, http.StatusConflict},
		{shared.CodeValidation, http.StatusBadRequest},
		{shared.CodeAlreadyExists, http.StatusConflict},
		{event.CodeOutboxInvalidStatus, http.StatusUnprocessableEntity},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, NormalizeErrorCode("INTERNAL_ERROR"))
	assert.Equal(t, ErrCodeRateLimited, NormalizeErrorCode("RATE_LIMIT_EXCEEDED"))
	// domain codes are part of the public contract and pass through
	assert.Equal(t, shared.CodeInvalidTransition, NormalizeErrorCode(shared.CodeInvalidTransition))
	assert.Equal(t, shared.CodeUnauthorized, NormalizeErrorCode(shared.CodeUnauthorized))
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(shared.CodeAlreadyDecided, "QC record already decided", "req-123")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, shared.CodeAlreadyDecided, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Error.RequestID)
	assert.NotZero(t, resp.Error.Timestamp)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"req-123"`)
	assert.NotContains(t, string(data), `"data"`)
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-9", []ValidationDetail{
		{Field: "intent", Message: "Must be one of: sample_only sample_then_bulk direct_bulk"},
	})

	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "intent", resp.Error.Details[0].Field)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]string{"a", "b"}, 41, 2, 20)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	resp = NewSuccessResponseWithMeta(nil, 0, 1, 0)
	assert.Equal(t, 0, resp.Meta.TotalPages)
}
