package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Decision is the outcome of one access evaluation. It is never persisted
// except through the audit sink.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

func allow(reason string) Decision { return Decision{Allow: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allow: false, Reason: reason} }

// Verification answers ownership and membership questions that need the
// remote store. *Verifier is the production implementation.
type Verification interface {
	Verify(ctx context.Context, kind Kind, tenantID, resourceID, actorID string, action Action) (bool, error)
}

// EngineConfig groups Engine dependencies.
type EngineConfig struct {
	Verifier Verification
	Sink     AuditSink
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Engine evaluates (actor, resource, action) triples.
type Engine struct {
	verifier Verification
	sink     AuditSink
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		verifier: cfg.Verifier,
		sink:     sink,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Decide evaluates whether actor may perform action on res.
//
// NoContext, InvalidRole and UnknownResource come back as errors alongside
// a deny so that wiring mistakes stay visible. A failed remote check yields
// a deny plus a *VerificationError. Every call is forwarded to the audit sink.
func (e *Engine) Decide(ctx context.Context, actor *Actor, res Resource, action Action) (Decision, error) {
	d, err := e.decide(ctx, actor, res, action)
	var (
		rtype string
		rid   string
	)
	if res != nil {
		rtype = string(res.Type())
		rid = res.Target().ID
	}
	e.record(ctx, actor, rtype, rid, action, d, err)
	return d, err
}

// DecideRaw parses a wire resource type before deciding. An unparseable type
// is allowed for super_admin, an explicit deny for students and an
// UnknownResource error for instructors.
func (e *Engine) DecideRaw(ctx context.Context, actor *Actor, resourceType, resourceID, tenantID string, action Action) (Decision, error) {
	res, perr := ParseResource(resourceType, resourceID, tenantID)
	if perr == nil {
		return e.Decide(ctx, actor, res, action)
	}
	var (
		d   Decision
		err error
	)
	if verr := actor.Validate(); verr != nil {
		d, err = deny("no actor context"), verr
	} else {
		switch actor.Role {
		case RoleSuperAdmin:
			d = allow("super_admin bypass")
		case RoleStudent:
			d, err = deny(fmt.Sprintf("students cannot access %s", resourceType)), fmt.Errorf("%w: %s", ErrAccessDenied, resourceType)
		default:
			d, err = deny("unknown resource type"), perr
		}
	}
	e.record(ctx, actor, resourceType, resourceID, action, d, err)
	return d, err
}

// Authorize is Decide collapsed to a single error: nil on allow, an
// ErrAccessDenied wrap on deny, or the underlying failure.
func (e *Engine) Authorize(ctx context.Context, actor *Actor, res Resource, action Action) error {
	d, err := e.Decide(ctx, actor, res, action)
	if err != nil {
		return err
	}
	if !d.Allow {
		return fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}
	return nil
}

func (e *Engine) decide(ctx context.Context, actor *Actor, res Resource, action Action) (Decision, error) {
	if err := actor.Validate(); err != nil {
		if errors.Is(err, ErrInvalidRole) {
			return deny("invalid role"), err
		}
		return deny("no actor context"), err
	}
	if actor.Role == RoleSuperAdmin {
		return allow("super_admin bypass"), nil
	}
	if res == nil {
		return deny("no resource"), ErrUnknownResource
	}
	// Tenant membership is settled before any ownership rule.
	if ref := res.Target(); ref.TenantID != "" && ref.TenantID != actor.TenantID {
		return deny("resource belongs to another tenant"), nil
	}
	switch actor.Role {
	case RoleInstructor:
		return res.instructorRule(ctx, e, *actor, action)
	case RoleStudent:
		return res.studentRule(ctx, e, *actor, action)
	}
	return deny("invalid role"), fmt.Errorf("%w: %q", ErrInvalidRole, actor.Role)
}

func (e *Engine) verify(ctx context.Context, kind Kind, actor Actor, ref Ref, action Action) (Decision, error) {
	if e.verifier == nil {
		return deny("verification unavailable"), &VerificationError{Kind: kind, Err: errors.New("no verifier configured")}
	}
	ok, err := e.verifier.Verify(ctx, kind, actor.TenantID, ref.ID, actor.ID, action)
	if err != nil {
		e.logger.Warn("access verification failed",
			slog.String("kind", string(kind)),
			slog.String("resource_id", ref.ID),
			slog.String("actor_id", actor.ID),
			slog.Any("error", err))
		return deny("verification failed"), err
	}
	if !ok {
		return deny(fmt.Sprintf("%s check denied", kind)), nil
	}
	return allow(fmt.Sprintf("%s check passed", kind)), nil
}

func (e *Engine) record(ctx context.Context, actor *Actor, rtype, rid string, action Action, d Decision, err error) {
	entry := AuditEntry{
		ResourceType: rtype,
		ResourceID:   rid,
		Action:       string(action),
		Result:       AuditDenied,
		Timestamp:    e.now().UTC(),
		UserAgent:    UserAgentFromContext(ctx),
		Reason:       d.Reason,
	}
	var role Role
	if actor != nil {
		entry.UserID = actor.ID
		entry.TenantID = actor.TenantID
		role = actor.Role
	}
	if d.Allow && err == nil {
		entry.Result = AuditSuccess
	}
	if err != nil && entry.Reason == "" {
		entry.Reason = err.Error()
	}
	// Wire input never becomes a metric label; the raw type stays in the
	// audit entry.
	label := rtype
	if label != "" && !ResourceType(label).Known() {
		label = "unknown"
	}
	e.metrics.observeDecision(role, label, entry.Result)
	safeRecord(ctx, e.sink, entry.Clip(), e.logger)
}
