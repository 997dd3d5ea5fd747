package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/quizroom/quizroom/internal/access"
)

// AuditSink posts audit entries to a remote collector in the background.
// Record never blocks on the network: entries are queued and dropped with a
// warning when the queue is full.
type AuditSink struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	queue      chan access.AuditEntry
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// AuditSinkConfig tunes AuditSink.
type AuditSinkConfig struct {
	URL        string
	Token      string
	Buffer     int
	Workers    int
	Timeout    time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// NewAuditSink starts the delivery workers. Close drains the queue.
func NewAuditSink(cfg AuditSinkConfig) *AuditSink {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	s := &AuditSink{
		url:        cfg.URL,
		token:      cfg.Token,
		httpClient: client,
		logger:     cfg.Logger,
		queue:      make(chan access.AuditEntry, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.run(cfg.Timeout)
	}
	return s
}

// Record implements access.AuditSink.
func (s *AuditSink) Record(_ context.Context, entry access.AuditEntry) {
	defer func() {
		// Record after Close lands on a closed channel.
		if r := recover(); r != nil {
			s.logger.Warn("audit entry dropped after shutdown", slog.String("user_id", entry.UserID))
		}
	}()
	select {
	case s.queue <- entry:
	default:
		s.logger.Warn("audit queue full, entry dropped",
			slog.String("user_id", entry.UserID),
			slog.String("resource_type", entry.ResourceType))
	}
}

// Close stops accepting entries and waits for queued ones to be delivered.
func (s *AuditSink) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}

func (s *AuditSink) run(timeout time.Duration) {
	defer s.wg.Done()
	for entry := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := s.Post(ctx, entry); err != nil {
			s.logger.Warn("audit delivery failed", slog.Any("error", err))
		}
		cancel()
	}
}

// Post delivers one entry synchronously.
func (s *AuditSink) Post(ctx context.Context, entry access.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit sink returned status %d", resp.StatusCode)
	}
	return nil
}
