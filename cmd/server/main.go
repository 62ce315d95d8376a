package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	eventapp "github.com/leorit/backend/internal/application/event"
	orderapp "github.com/leorit/backend/internal/application/order"
	partnerapp "github.com/leorit/backend/internal/application/partner"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/auth"
	"github.com/leorit/backend/internal/infrastructure/cache"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/leorit/backend/internal/infrastructure/event"
	"github.com/leorit/backend/internal/infrastructure/logger"
	"github.com/leorit/backend/internal/infrastructure/notification"
	"github.com/leorit/backend/internal/infrastructure/persistence"
	"github.com/leorit/backend/internal/infrastructure/policy"
	"github.com/leorit/backend/internal/infrastructure/storage"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"github.com/leorit/backend/internal/interfaces/http/handler"
	"github.com/leorit/backend/internal/interfaces/http/middleware"
	"github.com/leorit/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			Leorit Order Lifecycle API
//	@version		1.0
//	@description	Custom apparel orders from draft to delivery: sample and bulk QC, escrowed payment and manufacturer assignment.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "config file; defaults to config.toml in . , ./config or /etc/leorit")
	issueToken := flag.String("issue-token", "", "print a development token for role:uuid and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load configuration:", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if err := printDevToken(cfg, *issueToken); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// printDevToken signs a token for local testing, e.g. -issue-token buyer:<uuid>
func printDevToken(cfg *config.Config, spec string) error {
	if cfg.IsProduction() {
		return errors.New("issue-token is disabled in production")
	}
	roleName, rawID, ok := strings.Cut(spec, ":")
	if !ok {
		return fmt.Errorf("issue-token: want role:uuid, got %q", spec)
	}
	role := shared.Role(roleName)
	if !role.IsValid() {
		return fmt.Errorf("issue-token: unknown role %q", roleName)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("issue-token: %w", err)
	}
	token, exp, err := auth.NewJWTService(cfg.JWT).Issue(shared.NewActor(id, role), cfg.JWT.DevTokenTTL)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n# expires %s\n", token, exp.Format(time.RFC3339))
	return nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := logger.ConfigForEnvironment(cfg.App.Env, cfg.Log.Level)
	if cfg.Log.Format != "" {
		logCfg.Format = cfg.Log.Format
	}
	if cfg.Log.Output != "" {
		logCfg.Output = cfg.Log.Output
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	obs, err := startTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer obs.shutdown(log)
	log = obs.logs.Bridge(log, cfg.Telemetry.ServiceName, zapcore.InfoLevel)

	log.Info("Starting order service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	db, err := persistence.Connect(connectCtx, cfg.Database, log, cfg.Log.Level)
	cancelConnect()
	if err != nil {
		return err
	}
	defer func() {
		if err := persistence.Close(db); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbInstr, err := telemetry.InstrumentDB(db, telemetry.DBConfig{
		TracingEnabled:     cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, obs.meters, log)
	if err != nil {
		return fmt.Errorf("instrument database: %w", err)
	}
	defer func() { _ = dbInstr.Close() }()

	redisClient := connectRedis(ctx, cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Outbox: repositories write events in the same transaction as the order
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer)
	if cfg.Event.MaxRetries > 0 {
		outboxPublisher = outboxPublisher.WithMaxRetries(cfg.Event.MaxRetries)
	}
	outboxRepo := event.NewGormOutboxRepository(db)

	manufacturerRepo := persistence.NewGormManufacturerRepository(db, outboxPublisher)
	orderRepo := persistence.NewGormOrderRepository(db, outboxPublisher)

	pol, err := policy.NewConfigPolicy(cfg.Policy)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	notifier, err := notification.New(cfg.Notification, redisClient, log)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	defer func() { _ = notifier.Close() }()

	lifecycleMetrics, err := telemetry.NewLifecycleMetrics(telemetry.LifecycleMetricsConfig{
		Meter:         obs.meters.Meter("leorit-backend/orders"),
		Logger:        log,
		StateProvider: telemetry.NewGormOrderStateProvider(db),
	})
	if err != nil {
		return fmt.Errorf("init lifecycle metrics: %w", err)
	}
	if obs.meters.IsEnabled() {
		lifecycleMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.StateGaugeInterval)
		defer lifecycleMetrics.Stop()
	}

	bus := event.NewInMemoryEventBus(log).Strict()
	bus.Subscribe(event.NewIdempotentHandler(
		notification.NewLifecycleHandler(notifier, log),
		cache.NewIdempotencyStore(redisClient, log),
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: cfg.Event.IdempotencyTTL}),
		event.WithDeliveryRecorder(lifecycleMetrics),
	))

	if cfg.Event.ProcessorEnabled {
		relay := event.NewOutboxRelay(outboxRepo, bus, serializer, cfg.Event, log)
		relayCtx, stopRelay := context.WithCancel(ctx)
		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			runRelay(relayCtx, relay, log)
		}()
		defer func() {
			stopRelay()
			<-relayDone
		}()
	}

	media, err := mediaStorage(ctx, cfg, log)
	if err != nil {
		return err
	}

	orderService := orderapp.NewOrderService(orderRepo, orderapp.NewPartnerDirectory(manufacturerRepo), pol, log)
	orderService.SetMediaStorage(media)
	orderService.SetLifecycleMetrics(lifecycleMetrics)
	retry := orderapp.DefaultRetryPolicy()
	if cfg.Lifecycle.MaxRetries > 0 {
		retry.MaxRetries = cfg.Lifecycle.MaxRetries
	}
	if cfg.Lifecycle.RetryBaseDelay > 0 {
		retry.BaseDelay = cfg.Lifecycle.RetryBaseDelay
	}
	if cfg.Lifecycle.RetryMaxDelay > 0 {
		retry.MaxDelay = cfg.Lifecycle.RetryMaxDelay
	}
	orderService.SetRetryPolicy(retry)

	checks := []handler.HealthCheck{{
		Name:     "database",
		Critical: true,
		Check:    func(ctx context.Context) error { return persistence.Ping(ctx, db) },
	}}
	if redisClient != nil {
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	if cfg.HTTP.RateLimitEnabled {
		go limiter.Run(ctx)
	}

	engine, err := router.New(router.Options{
		Logger:        log,
		HTTP:          cfg.HTTP,
		Telemetry:     cfg.Telemetry,
		MeterProvider: obs.meters,
		Tokens:        auth.NewJWTService(cfg.JWT),
		Policy:        pol,
		RateLimiter:   limiter,
		Handlers: router.Handlers{
			Order:        handler.NewOrderHandler(orderService),
			Manufacturer: handler.NewManufacturerHandler(partnerapp.NewManufacturerService(manufacturerRepo, log)),
			Outbox:       handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log)),
			Health:       handler.NewHealthHandler(cfg.App.Name, version, checks...),
		},
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

// connectRedis returns nil when Redis is unreachable; idempotency then
// falls back to memory and the redis notifier is unavailable
func connectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		return nil
	}
	log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	return client
}

func mediaStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (order.MediaStorage, error) {
	if !cfg.Storage.Enabled {
		log.Info("Object storage disabled, QC upload URLs are unsigned")
		return storage.NewLocalMediaStorage(""), nil
	}
	s3, err := storage.NewS3MediaStorage(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		log.Warn("QC media bucket check failed", zap.String("bucket", s3.Bucket()), zap.Error(err))
	}
	return s3, nil
}
