package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/quizroom/quizroom/internal/access"
	jobmetrics "github.com/quizroom/quizroom/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuditWriter persists or forwards one audit entry.
type AuditWriter interface {
	Write(ctx context.Context, entry access.AuditEntry) error
}

// AuditWriterFunc adapts a function to AuditWriter.
type AuditWriterFunc func(ctx context.Context, entry access.AuditEntry) error

// Write calls f.
func (f AuditWriterFunc) Write(ctx context.Context, entry access.AuditEntry) error {
	return f(ctx, entry)
}

// AuditDeliverJob hands queued entries to every configured writer. A retry
// re-runs all writers, so delivery is at least once.
type AuditDeliverJob struct {
	Writers []AuditWriter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditDeliverJob initialises the delivery handler.
func NewAuditDeliverJob(logger *slog.Logger, metrics *jobmetrics.Metrics, writers ...AuditWriter) *AuditDeliverJob {
	return &AuditDeliverJob{Writers: writers, Logger: logger, Metrics: metrics}
}

// Handle executes one delivery.
func (j *AuditDeliverJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("audit deliver: handler not configured")
	}
	var entry access.AuditEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("audit deliver: decode: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics().Track(TaskAuditDeliver)
	defer func() {
		err = tracker.End(err)
	}()

	var errs []error
	for _, w := range j.Writers {
		if w == nil {
			continue
		}
		if werr := w.Write(ctx, entry); werr != nil {
			errs = append(errs, werr)
		}
	}
	if err := errors.Join(errs...); err != nil {
		j.logger().Warn("audit delivery failed",
			slog.String("user_id", entry.UserID),
			slog.String("resource_type", entry.ResourceType),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (j *AuditDeliverJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuditDeliverJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
