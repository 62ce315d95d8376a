package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/leorit/backend/internal/infrastructure/logger"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"github.com/leorit/backend/internal/interfaces/http/handler"
	"github.com/leorit/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers mounted by New. Outbox is optional.
type Handlers struct {
	Order        *handler.OrderHandler
	Manufacturer *handler.ManufacturerHandler
	Outbox       *handler.OutboxHandler
	Health       *handler.HealthHandler
}

// Options configure the engine built by New
type Options struct {
	Logger        *zap.Logger
	HTTP          config.HTTPConfig
	Telemetry     config.TelemetryConfig
	MeterProvider *telemetry.MeterProvider
	Tokens        middleware.TokenValidator
	Policy        shared.PolicyProvider
	// RateLimiter is used when HTTP.RateLimitEnabled is set. When nil one is
	// created from the HTTP config.
	RateLimiter *middleware.RateLimiter
	Handlers    Handlers
}

// New builds the gin engine with the global middleware chain, the
// unauthenticated probes and the authenticated /api/v1 routes.
func New(opts Options) (*gin.Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(opts.HTTP)),
		middleware.BodyLimit(opts.HTTP.MaxBodySize),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: opts.Telemetry.ServiceName,
			Enabled:     opts.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(opts.MeterProvider),
	)

	h := opts.Handlers
	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
		engine.GET("/ready", h.Health.Ready)
	}

	apiMiddleware := []gin.HandlerFunc{
		middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			Validator: opts.Tokens,
			SkipPaths: []string{"/api/v1/health"},
			Logger:    log,
		}),
		middleware.TracingAttributeInjector(),
		middleware.Profiling(opts.Telemetry.ProfilingEnabled),
	}
	if opts.HTTP.RateLimitEnabled {
		limiter := opts.RateLimiter
		if limiter == nil {
			limiter = middleware.NewRateLimiter(opts.HTTP.RateLimitRequests, opts.HTTP.RateLimitWindow)
		}
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}

	var groups []*DomainGroup
	if h.Health != nil {
		groups = append(groups, SystemRoutes(h.Health))
	}
	if h.Order != nil {
		groups = append(groups, OrderRoutes(h.Order))
	}
	if h.Manufacturer != nil {
		groups = append(groups, ManufacturerRoutes(h.Manufacturer, opts.Policy))
	}
	if h.Outbox != nil {
		groups = append(groups, AdminRoutes(h.Outbox, opts.Policy))
	}
	Mount(engine, "v1", apiMiddleware, groups...)

	log.Info("HTTP routes registered", zap.Int("routes", len(engine.Routes())))
	return engine, nil
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.CORSAllowOrigins
	}
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}
