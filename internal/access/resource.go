package access

import (
	"context"
	"fmt"
	"strings"
)

// ResourceType names a kind of entity subject to access decisions.
type ResourceType string

const (
	ResourceQuiz          ResourceType = "quiz"
	ResourceQuizBlueprint ResourceType = "quiz_blueprint"
	ResourceQuizAttempt   ResourceType = "quiz_attempt"
	ResourceClassroom     ResourceType = "classroom"
	ResourceStudent       ResourceType = "student"
	ResourceAnalytics     ResourceType = "analytics"
	ResourceResult        ResourceType = "result"
)

// Known reports whether t is one of the supported resource types.
func (t ResourceType) Known() bool {
	switch t {
	case ResourceQuiz, ResourceQuizBlueprint, ResourceQuizAttempt, ResourceClassroom,
		ResourceStudent, ResourceAnalytics, ResourceResult:
		return true
	}
	return false
}

// Ref identifies a resource. TenantID is optional; when present it is
// checked against the actor's tenant before any ownership rule runs.
type Ref struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId,omitempty"`
}

// Target returns the reference itself.
func (r Ref) Target() Ref {
	return r
}

// Resource is the closed set of resource types. Every concrete type carries
// one rule per non-admin role, so a new type does not compile until both
// rules are written.
type Resource interface {
	Type() ResourceType
	Target() Ref
	instructorRule(ctx context.Context, e *Engine, actor Actor, action Action) (Decision, error)
	studentRule(ctx context.Context, e *Engine, actor Actor, action Action) (Decision, error)
}

// Quiz is a published quiz.
type Quiz struct{ Ref }

// QuizBlueprint is an unpublished quiz template.
type QuizBlueprint struct{ Ref }

// QuizAttempt is a student's attempt at a quiz, keyed by the student's id.
type QuizAttempt struct{ Ref }

// Classroom groups students under an instructor.
type Classroom struct{ Ref }

// Student is a student record seen from the instructor side.
type Student struct{ Ref }

// Analytics is a tenant-wide analytics view; its ID is the tenant id.
type Analytics struct{ Ref }

// Result is a student's graded result, keyed by the student's id.
type Result struct{ Ref }

func (Quiz) Type() ResourceType          { return ResourceQuiz }
func (QuizBlueprint) Type() ResourceType { return ResourceQuizBlueprint }
func (QuizAttempt) Type() ResourceType   { return ResourceQuizAttempt }
func (Classroom) Type() ResourceType     { return ResourceClassroom }
func (Student) Type() ResourceType       { return ResourceStudent }
func (Analytics) Type() ResourceType     { return ResourceAnalytics }
func (Result) Type() ResourceType        { return ResourceResult }

func (q Quiz) instructorRule(ctx context.Context, e *Engine, actor Actor, action Action) (Decision, error) {
	return e.verify(ctx, KindQuiz, actor, q.Ref, action)
}

func (q Quiz) studentRule(_ context.Context, _ *Engine, actor Actor, action Action) (Decision, error) {
	return ownOrRead(actor, q.Ref, action), nil
}

func (b QuizBlueprint) instructorRule(ctx context.Context, e *Engine, actor Actor, action Action) (Decision, error) {
	return e.verify(ctx, KindQuiz, actor, b.Ref, action)
}

func (b QuizBlueprint) studentRule(context.Context, *Engine, Actor, Action) (Decision, error) {
	return notForStudents(ResourceQuizBlueprint)
}

func (QuizAttempt) instructorRule(context.Context, *Engine, Actor, Action) (Decision, error) {
	return noInstructorRule(ResourceQuizAttempt)
}

func (a QuizAttempt) studentRule(_ context.Context, _ *Engine, actor Actor, action Action) (Decision, error) {
	return ownOrRead(actor, a.Ref, action), nil
}

func (c Classroom) instructorRule(ctx context.Context, e *Engine, actor Actor, action Action) (Decision, error) {
	return e.verify(ctx, KindClassroom, actor, c.Ref, action)
}

func (c Classroom) studentRule(ctx context.Context, e *Engine, actor Actor, action Action) (Decision, error) {
	return e.verify(ctx, KindMembership, actor, c.Ref, action)
}

func (s Student) instructorRule(ctx context.Context, e *Engine, actor Actor, action Action) (Decision, error) {
	return e.verify(ctx, KindStudent, actor, s.Ref, action)
}

func (Student) studentRule(context.Context, *Engine, Actor, Action) (Decision, error) {
	return notForStudents(ResourceStudent)
}

// Analytics is resolved locally: the requested tenant is already known.
// Subscription tier is deliberately not consulted here; tier gating of the
// analytics pages happens through route features.
func (a Analytics) instructorRule(_ context.Context, _ *Engine, actor Actor, action Action) (Decision, error) {
	tenant := a.TenantID
	if tenant == "" {
		tenant = a.ID
	}
	if action != ActionRead {
		return deny("analytics is read-only"), nil
	}
	if tenant != actor.TenantID {
		return deny("analytics requested for another tenant"), nil
	}
	return allow("own tenant analytics"), nil
}

func (Analytics) studentRule(context.Context, *Engine, Actor, Action) (Decision, error) {
	return notForStudents(ResourceAnalytics)
}

func (Result) instructorRule(context.Context, *Engine, Actor, Action) (Decision, error) {
	return noInstructorRule(ResourceResult)
}

func (r Result) studentRule(_ context.Context, _ *Engine, actor Actor, _ Action) (Decision, error) {
	if r.ID == actor.ID {
		return allow("own result"), nil
	}
	return deny("result belongs to another student"), nil
}

func ownOrRead(actor Actor, ref Ref, action Action) Decision {
	if ref.ID == actor.ID {
		return allow("own record")
	}
	if action == ActionRead {
		return allow("read access")
	}
	return deny("students may only modify their own attempt")
}

func notForStudents(t ResourceType) (Decision, error) {
	return deny(fmt.Sprintf("students cannot access %s", t)), fmt.Errorf("%w: %s", ErrAccessDenied, t)
}

func noInstructorRule(t ResourceType) (Decision, error) {
	return deny(fmt.Sprintf("no instructor rule for %s", t)), fmt.Errorf("%w: %s", ErrUnknownResource, t)
}

// ParseResource maps a wire resource type onto the closed set.
func ParseResource(resourceType, id, tenantID string) (Resource, error) {
	ref := Ref{ID: strings.TrimSpace(id), TenantID: strings.TrimSpace(tenantID)}
	switch ResourceType(strings.TrimSpace(resourceType)) {
	case ResourceQuiz:
		return Quiz{ref}, nil
	case ResourceQuizBlueprint:
		return QuizBlueprint{ref}, nil
	case ResourceQuizAttempt:
		return QuizAttempt{ref}, nil
	case ResourceClassroom:
		return Classroom{ref}, nil
	case ResourceStudent:
		return Student{ref}, nil
	case ResourceAnalytics:
		return Analytics{ref}, nil
	case ResourceResult:
		return Result{ref}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resourceType)
}
