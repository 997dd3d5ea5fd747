package access

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// AuditResult is the outcome column of an audit entry.
type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditDenied  AuditResult = "denied"
)

// AuditEntry is one access decision as sent to the audit sink.
type AuditEntry struct {
	UserID       string      `json:"user_id"`
	TenantID     string      `json:"tenant_id"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id"`
	Action       string      `json:"action"`
	Result       AuditResult `json:"result"`
	Timestamp    time.Time   `json:"timestamp"`
	UserAgent    string      `json:"user_agent"`
	Reason       string      `json:"reason,omitempty"`
}

// Column limits of an audit entry. Entries built by the engine are clipped to
// them so that every sink, including the ingestion endpoint, accepts them.
const (
	MaxAuditIDLen        = 128
	MaxAuditActionLen    = 32
	MaxAuditUserAgentLen = 512
	MaxAuditReasonLen    = 256
)

// Clip truncates the entry's free-form fields to the audit column limits.
func (e AuditEntry) Clip() AuditEntry {
	e.UserID = clip(e.UserID, MaxAuditIDLen)
	e.TenantID = clip(e.TenantID, MaxAuditIDLen)
	e.ResourceType = clip(e.ResourceType, MaxAuditIDLen)
	e.ResourceID = clip(e.ResourceID, MaxAuditIDLen)
	e.Action = clip(e.Action, MaxAuditActionLen)
	e.UserAgent = clip(e.UserAgent, MaxAuditUserAgentLen)
	e.Reason = clip(e.Reason, MaxAuditReasonLen)
	return e
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

// AuditSink receives access decisions. Record must not block the caller on
// network I/O and has no error to return: delivery problems are the sink's
// own concern.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// NopSink discards entries.
type NopSink struct{}

// Record discards entry.
func (NopSink) Record(context.Context, AuditEntry) {}

// MultiSink fans entries out to several sinks.
type MultiSink []AuditSink

// Record forwards entry to every sink.
func (m MultiSink) Record(ctx context.Context, entry AuditEntry) {
	for _, sink := range m {
		safeRecord(ctx, sink, entry, nil)
	}
}

// LogSink writes entries to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Record logs entry at info level.
func (s LogSink) Record(ctx context.Context, entry AuditEntry) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "access decision",
		slog.String("user_id", entry.UserID),
		slog.String("tenant_id", entry.TenantID),
		slog.String("resource_type", entry.ResourceType),
		slog.String("resource_id", entry.ResourceID),
		slog.String("action", entry.Action),
		slog.String("result", string(entry.Result)),
		slog.String("reason", entry.Reason))
}

func safeRecord(ctx context.Context, sink AuditSink, entry AuditEntry, logger *slog.Logger) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("audit sink panicked", slog.Any("panic", r))
		}
	}()
	sink.Record(ctx, entry)
}
