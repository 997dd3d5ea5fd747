package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quizroom/quizroom/internal/access"
	accesshttp "github.com/quizroom/quizroom/internal/access/http"
	"github.com/quizroom/quizroom/internal/access/remote"
	"github.com/quizroom/quizroom/internal/app"
	"github.com/quizroom/quizroom/internal/audit"
	audithttp "github.com/quizroom/quizroom/internal/audit/http"
	"github.com/quizroom/quizroom/internal/checks"
	checkshttp "github.com/quizroom/quizroom/internal/checks/http"
	"github.com/quizroom/quizroom/internal/featuregate"
	"github.com/quizroom/quizroom/internal/navigation"
	"github.com/quizroom/quizroom/internal/observability"
	"github.com/quizroom/quizroom/internal/platform/cache"
	"github.com/quizroom/quizroom/internal/platform/db"
	"github.com/quizroom/quizroom/internal/shared"
	"github.com/quizroom/quizroom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	serviceToken, err := shared.NewServiceToken(cfg.AccessAPIToken)
	if err != nil {
		logger.Error("hash service token", slog.Any("error", err))
		os.Exit(1)
	}
	if !serviceToken.Enabled() {
		logger.Warn("ACCESS_API_TOKEN not set, service endpoints are unauthenticated")
	}
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	checksRepo := checks.NewRepository(dbpool)
	bus := checks.NewBus(redisClient, logger)
	checksService := checks.NewService(checksRepo, bus, logger)

	var checker access.Checker = checksService.Checker()
	if cfg.AccessCheckURL != "" {
		checker = remote.NewChecker(cfg.AccessCheckURL, cfg.AccessAPIToken)
		logger.Info("using remote access checks", slog.String("url", cfg.AccessCheckURL))
	}

	auditService := audit.NewService(audit.NewPGRepository(dbpool))
	jobClient, err := jobs.NewClient(redisOpts.AsynqOpt())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	sink, closeSink := buildAuditSink(cfg, logger, auditService, jobClient)
	defer closeSink()

	controlCfg := access.ControlConfig{
		Policy:  access.DefaultPolicy(),
		Checker: checker,
		Sink:    sink,
		Metrics: access.NewMetrics(metrics.Registerer()),
		Logger:  logger,
		Verifier: access.VerifierConfig{
			Size:    cfg.AccessCacheSize,
			TTL:     cfg.AccessCacheTTL,
			Timeout: cfg.AccessVerifyTimeout,
		},
	}
	var entitlements accesshttp.EntitlementStore
	if cfg.FeatureGateEnabled {
		gate := featuregate.New(redisClient)
		controlCfg.Gate = gate
		entitlements = gate
	}
	control := access.NewControl(controlCfg)
	registry := access.NewRegistry(control, cfg.AccessSessions, cfg.SessionTTL)

	go subscribeInvalidations(ctx, bus, registry, logger)

	nav := navigation.NewRouter(control.Features(), logger)
	navigation.DefaultRoutes(nav)
	navigation.DefaultGuards(nav)

	accessMiddleware := accesshttp.Middleware{Registry: registry, Features: control.Features(), Logger: logger}
	accessHandler := accesshttp.NewHandler(accesshttp.HandlerConfig{
		Control:      control,
		Registry:     registry,
		Router:       nav,
		Catalog:      checksRepo,
		Entitlements: entitlements,
		Sessions:     sessionManager,
		Logger:       logger,
	})
	checksHandler := checkshttp.NewHandler(checksService, logger)
	auditHandler := audithttp.NewHandler(logger, auditService, audit.CSVExporter{})

	inspector := asynq.NewInspector(redisOpts.AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		ServiceToken:     serviceToken,
		AccessMiddleware: accessMiddleware,
		AccessHandler:    accessHandler,
		ChecksHandler:    checksHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
		Readiness: map[string]app.ReadinessCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// buildAuditSink picks the sink for AUDIT_MODE. The returned func flushes it.
func buildAuditSink(cfg *app.Config, logger *slog.Logger, store *audit.Service, queue *jobs.Client) (access.AuditSink, func()) {
	logSink := access.LogSink{Logger: logger}
	switch cfg.AuditMode {
	case app.AuditModeRemote:
		sink := remote.NewAuditSink(remote.AuditSinkConfig{
			URL:     cfg.AuditSinkURL,
			Token:   cfg.AuditSinkToken,
			Buffer:  cfg.AuditBuffer,
			Workers: cfg.AuditWorkers,
			Logger:  logger,
		})
		return sink, sink.Close
	case app.AuditModeStore:
		return audit.NewStoreSink(store, logger), func() {}
	case app.AuditModeQueue:
		sink := jobs.NewQueueSink(jobs.QueueSinkConfig{
			Queue:    queue,
			Fallback: logSink,
			Buffer:   cfg.AuditBuffer,
			Workers:  cfg.AuditWorkers,
			Logger:   logger,
		})
		return sink, sink.Close
	default:
		return logSink, func() {}
	}
}

func subscribeInvalidations(ctx context.Context, bus *checks.Bus, registry *access.Registry, logger *slog.Logger) {
	backoff := time.Second
	for {
		err := bus.Subscribe(ctx, func(inv checks.Invalidation) {
			registry.Invalidate(inv.Kinds...)
			logger.Debug("invalidated access caches", slog.Any("kinds", inv.Kinds), slog.String("tenant_id", inv.TenantID))
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("invalidation subscription", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
