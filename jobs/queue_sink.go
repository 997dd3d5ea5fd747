package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quizroom/quizroom/internal/access"
)

// Enqueuer is the subset of Client used by QueueSink.
type Enqueuer interface {
	EnqueueAuditDelivery(ctx context.Context, entry access.AuditEntry) (*asynq.TaskInfo, error)
}

// QueueSinkConfig tunes QueueSink.
type QueueSinkConfig struct {
	Queue    Enqueuer
	Fallback access.AuditSink
	Buffer   int
	Workers  int
	Timeout  time.Duration
	Logger   *slog.Logger
}

// QueueSink implements access.AuditSink by enqueueing audit:deliver tasks
// from background workers. Record only hands the entry to a bounded buffer;
// a full buffer or a failed enqueue sends the entry to Fallback, if set.
type QueueSink struct {
	queue     Enqueuer
	fallback  access.AuditSink
	timeout   time.Duration
	logger    *slog.Logger
	entries   chan access.AuditEntry
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewQueueSink starts the enqueue workers. Close drains the buffer.
func NewQueueSink(cfg QueueSinkConfig) *QueueSink {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &QueueSink{
		queue:    cfg.Queue,
		fallback: cfg.Fallback,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		entries:  make(chan access.AuditEntry, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.run()
	}
	return s
}

// Record queues entry without waiting on Redis.
func (s *QueueSink) Record(ctx context.Context, entry access.AuditEntry) {
	defer func() {
		// Record after Close lands on a closed channel.
		if r := recover(); r != nil {
			s.fallbackRecord(ctx, entry)
		}
	}()
	select {
	case s.entries <- entry:
	default:
		s.logger.Warn("audit enqueue buffer full", slog.String("user_id", entry.UserID))
		s.fallbackRecord(ctx, entry)
	}
}

// Close stops accepting entries and waits for buffered ones to be enqueued.
func (s *QueueSink) Close() {
	s.closeOnce.Do(func() {
		close(s.entries)
	})
	s.wg.Wait()
}

func (s *QueueSink) run() {
	defer s.wg.Done()
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if _, err := s.queue.EnqueueAuditDelivery(ctx, entry); err != nil {
			s.logger.Warn("enqueue audit entry", slog.String("user_id", entry.UserID), slog.Any("error", err))
			s.fallbackRecord(ctx, entry)
		}
		cancel()
	}
}

func (s *QueueSink) fallbackRecord(ctx context.Context, entry access.AuditEntry) {
	if s.fallback != nil {
		s.fallback.Record(context.WithoutCancel(ctx), entry)
	}
}
