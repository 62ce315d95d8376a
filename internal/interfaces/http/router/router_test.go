package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/auth"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/leorit/backend/internal/infrastructure/policy"
	"github.com/leorit/backend/internal/interfaces/http/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func pong(c *gin.Context) { c.String(http.StatusOK, "pong") }

func serve(engine *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestMount(t *testing.T) {
	engine := gin.New()
	var seen []string
	mw := []gin.HandlerFunc{func(c *gin.Context) {
		seen = append(seen, c.FullPath())
		c.Next()
	}}
	Mount(engine, "v2", mw, NewDomainGroup("test", "/test").GET("/ping", pong))

	w := serve(engine, http.MethodGet, "/api/v2/test/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, []string{"/api/v2/test/ping"}, seen)

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/test/ping", "").Code)
}

func TestDomainGroup(t *testing.T) {
	dg := NewDomainGroup("orders", "/orders")
	blocked := func(c *gin.Context) { c.AbortWithStatus(http.StatusTeapot) }
	dg.GET("", pong).POST("", pong)
	qc := dg.Group("qc", "/:id/qc")
	qc.Use(blocked)
	qc.PUT("", pong).POST("/decision", pong)

	assert.Equal(t, []string{
		"GET /orders",
		"POST /orders",
		"PUT /orders/:id/qc",
		"POST /orders/:id/qc/decision",
	}, dg.Routes())

	engine := gin.New()
	Mount(engine, "v1", nil, dg)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, "/api/v1/orders", "").Code)
	assert.Equal(t, http.StatusTeapot, serve(engine, http.MethodPut, "/api/v1/orders/1/qc", "").Code)
	assert.Equal(t, http.StatusTeapot, serve(engine, http.MethodPost, "/api/v1/orders/1/qc/decision", "").Code)
}

func TestRouteGroups(t *testing.T) {
	pol, err := policy.NewConfigPolicy(config.PolicyConfig{})
	require.NoError(t, err)

	assert.Len(t, OrderRoutes(&handler.OrderHandler{}).Routes(), 25)
	assert.Len(t, ManufacturerRoutes(&handler.ManufacturerHandler{}, pol).Routes(), 7)
	assert.Len(t, AdminRoutes(&handler.OutboxHandler{}, pol).Routes(), 5)
	assert.Len(t, SystemRoutes(&handler.HealthHandler{}).Routes(), 2)
	assert.Contains(t, AdminRoutes(&handler.OutboxHandler{}, pol).Routes(), "POST /admin/outbox/dead/retry-all")
}

func newTestEngine(t *testing.T) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	pol, err := policy.NewConfigPolicy(config.PolicyConfig{})
	require.NoError(t, err)
	tokens := auth.NewJWTService(config.JWTConfig{Secret: "router-test-secret", Issuer: "orders"})

	engine, err := New(Options{
		HTTP:   config.HTTPConfig{MaxBodySize: 1 << 20},
		Tokens: tokens,
		Policy: pol,
		Handlers: Handlers{
			Order:        &handler.OrderHandler{},
			Manufacturer: &handler.ManufacturerHandler{},
			Outbox:       &handler.OutboxHandler{},
			Health:       handler.NewHealthHandler("orders", "test"),
		},
	})
	require.NoError(t, err)
	return engine, tokens
}

func TestNew(t *testing.T) {
	engine, tokens := newTestEngine(t)
	issue := func(role shared.Role) string {
		token, _, err := tokens.Issue(shared.NewActor(uuid.New(), role), time.Hour)
		require.NoError(t, err)
		return token
	}

	assert.Len(t, engine.Routes(), 41)

	t.Run("probes are public", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", "").Code)
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/ready", "").Code)
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/health", "").Code)
	})

	t.Run("api requires a token", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/system/info", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_UNAUTHORIZED")
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

		w = serve(engine, http.MethodGet, "/api/v1/system/info", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_TOKEN_INVALID")
	})

	t.Run("valid token", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/system/info", issue(shared.RoleBuyer))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"version":"test"`)
	})

	t.Run("permission guards", func(t *testing.T) {
		buyer := issue(shared.RoleBuyer)
		for _, path := range []string{"/api/v1/manufacturers", "/api/v1/admin/outbox/stats"} {
			w := serve(engine, http.MethodGet, path, buyer)
			assert.Equal(t, http.StatusForbidden, w.Code, path)
			assert.Contains(t, w.Body.String(), shared.CodeUnauthorized)
		}

		w := serve(engine, http.MethodPost, "/api/v1/manufacturers", issue(shared.RoleManufacturer))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
