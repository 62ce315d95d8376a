package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, h gin.HandlerFunc) (int, HealthResponse) {
	t.Helper()
	r := gin.New()
	r.GET("/", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHealthHandler(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler("orders", "1.0.0", HealthCheck{Name: "database", Critical: true, Check: up})
		code, resp := probe(t, h.Health)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "healthy", resp.Checks["database"])
	})

	t.Run("liveness ignores optional dependencies", func(t *testing.T) {
		h := NewHealthHandler("orders", "1.0.0",
			HealthCheck{Name: "database", Critical: true, Check: up},
			HealthCheck{Name: "redis", Check: down},
		)
		code, resp := probe(t, h.Health)
		assert.Equal(t, http.StatusOK, code)
		assert.NotContains(t, resp.Checks, "redis")

		code, resp = probe(t, h.Ready)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy: connection refused", resp.Checks["redis"])
	})

	t.Run("critical failure", func(t *testing.T) {
		h := NewHealthHandler("orders", "1.0.0", HealthCheck{Name: "database", Critical: true, Check: down})
		code, resp := probe(t, h.Health)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", resp.Status)
	})
}

func TestHealthHandler_GetSystemInfo(t *testing.T) {
	h := NewHealthHandler("orders", "2.3.1")
	r := gin.New()
	r.GET("/", h.GetSystemInfo)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data SystemInfoResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "orders", resp.Data.Name)
	assert.Equal(t, "2.3.1", resp.Data.Version)
	assert.NotEmpty(t, resp.Data.GoVersion)
}
