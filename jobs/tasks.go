package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quizroom/quizroom/internal/access"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries audit deliveries so a backlog never delays maintenance.
	QueueAudit = "audit"
	// TaskAuditDeliver persists one access decision.
	TaskAuditDeliver = "audit:deliver"
	// TaskAuditPrune removes audit entries past retention.
	TaskAuditPrune = "audit:prune"
)

// AuditPrunePayload carries the retention window for a prune run.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditDeliverTask constructs an Asynq task for one audit entry.
func NewAuditDeliverTask(entry access.AuditEntry) (*asynq.Task, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditDeliver, body, asynq.Queue(QueueAudit), asynq.MaxRetry(5)), nil
}

// NewAuditPruneTask constructs the periodic prune task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(AuditPrunePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
