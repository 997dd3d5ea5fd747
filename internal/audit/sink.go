package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/quizroom/quizroom/internal/access"
)

// Writer persists one entry.
type Writer interface {
	Write(ctx context.Context, entry access.AuditEntry) error
}

// StoreSink adapts a Writer to access.AuditSink. Each entry is written in
// the background so the decision path never waits on the database.
type StoreSink struct {
	writer  Writer
	timeout time.Duration
	logger  *slog.Logger
}

// NewStoreSink constructs a StoreSink.
func NewStoreSink(writer Writer, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{writer: writer, timeout: 5 * time.Second, logger: logger}
}

// Record implements access.AuditSink.
func (s *StoreSink) Record(ctx context.Context, entry access.AuditEntry) {
	go func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.writer.Write(wctx, entry); err != nil {
			s.logger.Warn("audit store write failed", slog.String("user_id", entry.UserID), slog.Any("error", err))
		}
	}()
}
