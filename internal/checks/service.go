package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizroom/quizroom/internal/access"
)

// Store is the persistence contract of the service.
type Store interface {
	QuizOwned(ctx context.Context, tenantID, quizID, userID string) (bool, error)
	ClassroomOwned(ctx context.Context, tenantID, classroomID, userID string) (bool, error)
	StudentTaught(ctx context.Context, tenantID, studentID, instructorID string) (bool, error)
	IsMember(ctx context.Context, tenantID, classroomID, userID string) (bool, error)
	AddMember(ctx context.Context, change MembershipChange) (bool, error)
	RemoveMember(ctx context.Context, change MembershipChange) (bool, error)
	Members(ctx context.Context, tenantID, classroomID string) ([]Member, error)
}

// Publisher broadcasts invalidations to every process holding sessions.
type Publisher interface {
	Publish(ctx context.Context, inv Invalidation) error
}

// Service answers access checks and applies membership changes.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service. publisher may be nil.
func NewService(store Store, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// Check answers one access question.
func (s *Service) Check(ctx context.Context, kind access.Kind, req Request) (bool, error) {
	var (
		ok  bool
		err error
	)
	switch kind {
	case access.KindQuiz:
		ok, err = s.store.QuizOwned(ctx, req.TenantID, req.ResourceID, req.UserID)
	case access.KindClassroom:
		ok, err = s.store.ClassroomOwned(ctx, req.TenantID, req.ResourceID, req.UserID)
	case access.KindStudent:
		ok, err = s.store.StudentTaught(ctx, req.TenantID, req.ResourceID, req.UserID)
	case access.KindMembership:
		ok, err = s.store.IsMember(ctx, req.TenantID, req.ResourceID, req.UserID)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return false, fmt.Errorf("checks: %s: %w", kind, err)
	}
	return ok, nil
}

// Checker adapts s to access.Checker so sessions can verify in-process
// when no remote integration API is configured.
func (s *Service) Checker() access.Checker {
	return access.CheckerFunc(func(ctx context.Context, req access.CheckRequest) (bool, error) {
		return s.Check(ctx, req.Kind, Request{
			TenantID:   req.TenantID,
			UserID:     req.ActorID,
			ResourceID: req.ResourceID,
			Action:     string(req.Action),
		})
	})
}

// AddMember enrols a student and invalidates cached membership answers.
func (s *Service) AddMember(ctx context.Context, change MembershipChange) (bool, error) {
	changed, err := s.store.AddMember(ctx, change)
	if err != nil {
		return false, err
	}
	if changed {
		s.invalidate(ctx, change)
	}
	return changed, nil
}

// RemoveMember removes a student and invalidates cached membership answers.
func (s *Service) RemoveMember(ctx context.Context, change MembershipChange) (bool, error) {
	changed, err := s.store.RemoveMember(ctx, change)
	if err != nil {
		return false, err
	}
	if changed {
		s.invalidate(ctx, change)
	}
	return changed, nil
}

// Members lists a classroom's members.
func (s *Service) Members(ctx context.Context, tenantID, classroomID string) ([]Member, error) {
	return s.store.Members(ctx, tenantID, classroomID)
}

// A failed publish is logged only: the write stands and cached answers age
// out with the cache TTL.
func (s *Service) invalidate(ctx context.Context, change MembershipChange) {
	if s.publisher == nil {
		return
	}
	inv := Invalidation{
		Kinds:       []access.Kind{access.KindMembership, access.KindStudent},
		TenantID:    change.TenantID,
		ClassroomID: change.ClassroomID,
		UserID:      change.StudentID,
		At:          s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, inv); err != nil {
		s.logger.Warn("publish access invalidation",
			slog.String("classroom_id", change.ClassroomID),
			slog.Any("error", err))
	}
}
