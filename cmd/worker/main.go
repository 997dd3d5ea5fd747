package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quizroom/quizroom/internal/access/remote"
	"github.com/quizroom/quizroom/internal/app"
	"github.com/quizroom/quizroom/internal/audit"
	jobmetrics "github.com/quizroom/quizroom/internal/jobs"
	"github.com/quizroom/quizroom/internal/platform/cache"
	"github.com/quizroom/quizroom/internal/platform/db"
	"github.com/quizroom/quizroom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	metrics := jobmetrics.NewMetrics(nil)

	auditService := audit.NewService(audit.NewPGRepository(pool))
	writers := []jobs.AuditWriter{auditService}
	if cfg.AuditSinkURL != "" {
		forward := remote.NewAuditSink(remote.AuditSinkConfig{
			URL:    cfg.AuditSinkURL,
			Token:  cfg.AuditSinkToken,
			Logger: logger,
		})
		defer forward.Close()
		writers = append(writers, jobs.AuditWriterFunc(forward.Post))
	}
	deliverJob := jobs.NewAuditDeliverJob(logger, metrics, writers...)
	pruneJob := jobs.NewAuditPruneJob(auditService, logger, metrics)

	pruneTask, err := jobs.NewAuditPruneTask(cfg.AuditRetention)
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts.AsynqOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditDeliver, Handler: deliverJob.Handle},
			{Type: jobs.TaskAuditPrune, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AuditPruneCron, Task: pruneTask, Options: []asynq.Option{asynq.Unique(time.Hour)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
