package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/auth"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/leorit/backend/internal/infrastructure/policy"
	"github.com/leorit/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{Secret: testSecret, Issuer: "leorit-identity"})
}

func authRouter(t *testing.T, mw ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Use(RequestID(), JWTAuthMiddleware(newJWTService()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	handlers := append(mw, func(c *gin.Context) {
		actor, ok := GetActor(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role})
	})
	r.GET("/api/v1/orders", handlers...)
	return r
}

func bearer(t *testing.T, actor shared.Actor, ttl time.Duration) string {
	t.Helper()
	token, _, err := newJWTService().Issue(actor, ttl)
	require.NoError(t, err)
	return BearerPrefix + token
}

func expiredBearer(t *testing.T) string {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "leorit-identity",
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
		Role: "admin",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return BearerPrefix + token
}

func decodeError(t *testing.T, body []byte) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	actor := shared.NewActor(uuid.New(), shared.RoleBuyer)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(AuthHeaderKey, bearer(t, actor, time.Hour))
	w := httptest.NewRecorder()

	authRouter(t).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+actor.ID.String()+`","role":"buyer"}`, w.Body.String())
}

func TestJWTAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", dto.ErrCodeUnauthorized},
		{"empty token", "Bearer ", dto.ErrCodeUnauthorized},
		{"garbage", "Bearer not.a.jwt", dto.ErrCodeTokenInvalid},
		{"expired", expiredBearer(t), dto.ErrCodeTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			authRouter(t).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			info := decodeError(t, w.Body.Bytes())
			assert.Equal(t, tt.wantCode, info.Code)
			assert.NotEmpty(t, info.RequestID)
		})
	}
}

func TestJWTAuthMiddleware_SkipsHealth(t *testing.T) {
	w := httptest.NewRecorder()
	authRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequirePermission(t *testing.T) {
	p, err := policy.NewConfigPolicy(config.PolicyConfig{})
	require.NoError(t, err)
	router := authRouter(t, RequirePermission(p, shared.ActionManageManufacturers))

	t.Run("admin allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.Header.Set(AuthHeaderKey, bearer(t, shared.NewActor(uuid.New(), shared.RoleAdmin), time.Hour))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("manufacturer forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.Header.Set(AuthHeaderKey, bearer(t, shared.NewActor(uuid.New(), shared.RoleManufacturer), time.Hour))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, shared.CodeUnauthorized, decodeError(t, w.Body.Bytes()).Code)
	})
}
