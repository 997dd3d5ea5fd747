package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/quizroom/quizroom/internal/jobs"
)

// DefaultAuditRetention applies when the task payload carries none.
const DefaultAuditRetention = 90 * 24 * time.Hour

// AuditPruner deletes entries older than retention.
type AuditPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// AuditPruneJob trims the audit table on a schedule.
type AuditPruneJob struct {
	Pruner  AuditPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditPruneJob initialises the prune handler.
func NewAuditPruneJob(pruner AuditPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPruneJob {
	return &AuditPruneJob{Pruner: pruner, Logger: logger, Metrics: metrics}
}

// Handle executes one prune run.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Pruner == nil {
		return errors.New("audit prune: handler not configured")
	}
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("audit prune: decode: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		payload.Retention = DefaultAuditRetention
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskAuditPrune)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.Duration("retention", payload.Retention))

	removed, err := j.Pruner.Prune(ctx, payload.Retention)
	if err != nil {
		logger.Error("audit prune failed", slog.Any("error", err))
		return err
	}
	metrics.AddPruned(removed)
	logger.Info("audit prune complete", slog.Int64("removed", removed))
	return nil
}
