// Package checks answers the ownership and membership questions behind the
// remote verification cache, and owns classroom membership writes.
package checks

import (
	"errors"
	"time"

	"github.com/quizroom/quizroom/internal/access"
)

var (
	// ErrUnknownKind indicates a check kind without a rule.
	ErrUnknownKind = errors.New("checks: unknown kind")
	// ErrNotFound indicates the classroom does not exist in the tenant.
	ErrNotFound = errors.New("checks: not found")
	// ErrForbidden indicates the caller may not change the classroom.
	ErrForbidden = errors.New("checks: forbidden")
)

// Request is the body of an access-check call.
type Request struct {
	TenantID   string `json:"tenantId" validate:"required,max=64"`
	UserID     string `json:"userId" validate:"required,max=64"`
	ResourceID string `json:"resourceId" validate:"required,max=64"`
	Action     string `json:"action" validate:"omitempty,max=32"`
}

// Response is the answer of an access-check call.
type Response struct {
	HasAccess bool `json:"hasAccess"`
}

// MembershipChange describes one classroom membership write.
type MembershipChange struct {
	TenantID    string
	ClassroomID string
	StudentID   string
	ChangedBy   string
}

// Member is one row of classroom_members.
type Member struct {
	TenantID    string    `json:"tenant_id"`
	ClassroomID string    `json:"classroom_id"`
	UserID      string    `json:"user_id"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Invalidation is published after a write that changes cached answers.
type Invalidation struct {
	Kinds       []access.Kind `json:"kinds"`
	TenantID    string        `json:"tenantId"`
	ClassroomID string        `json:"classroomId,omitempty"`
	UserID      string        `json:"userId,omitempty"`
	At          time.Time     `json:"at"`
}

// Filter is a rendered WHERE clause for list queries. Member switches the
// classroom listing to the membership join so rows carry user_id.
type Filter struct {
	Where  string
	Args   []any
	Limit  int
	Member bool
}
