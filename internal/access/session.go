package access

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ControlConfig groups the collaborators shared by every session.
type ControlConfig struct {
	Policy   *Policy
	Checker  Checker
	Sink     AuditSink
	Gate     FeatureGate
	Metrics  *Metrics
	Logger   *slog.Logger
	Verifier VerifierConfig
}

// Control is the application's access-control value. It is constructed once
// at startup and hands out per-session state.
type Control struct {
	policy   *Policy
	checker  Checker
	sink     AuditSink
	features FeatureChecker
	metrics  *Metrics
	logger   *slog.Logger
	verifier VerifierConfig
}

// NewControl constructs a Control.
func NewControl(cfg ControlConfig) *Control {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}
	vcfg := cfg.Verifier
	if vcfg.Metrics == nil {
		vcfg.Metrics = cfg.Metrics
	}
	return &Control{
		policy:   policy,
		checker:  cfg.Checker,
		sink:     sink,
		features: GatedFeatures{Gate: cfg.Gate, Policy: policy, Logger: logger},
		metrics:  cfg.Metrics,
		logger:   logger,
		verifier: vcfg,
	}
}

// Policy returns the authoritative policy table.
func (c *Control) Policy() *Policy {
	return c.policy
}

// Features returns the feature checker used by the navigation gate.
func (c *Control) Features() FeatureChecker {
	return c.features
}

// NewSession builds session state for actor.
func (c *Control) NewSession(actor Actor) *Session {
	verifier := NewVerifier(c.checker, c.verifier)
	return &Session{
		actor:    actor,
		verifier: verifier,
		engine: NewEngine(EngineConfig{
			Verifier: verifier,
			Sink:     c.sink,
			Metrics:  c.metrics,
			Logger:   c.logger,
		}),
		logger: c.logger,
	}
}

// Session is the access state of one signed-in user: the actor, its
// verification cache and the engine bound to that cache.
type Session struct {
	mu       sync.RWMutex
	actor    Actor
	verifier *Verifier
	engine   *Engine
	logger   *slog.Logger
}

// Actor returns the current actor.
func (s *Session) Actor() Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actor
}

// Engine returns the decision engine bound to this session's cache.
func (s *Session) Engine() *Engine {
	return s.engine
}

// Verifier returns the session's verification cache.
func (s *Session) Verifier() *Verifier {
	return s.verifier
}

// Scope returns the query scope of the current actor.
func (s *Session) Scope() Scope {
	return NewScope(s.Actor(), s.logger)
}

// Decide evaluates res/action for the current actor.
func (s *Session) Decide(ctx context.Context, res Resource, action Action) (Decision, error) {
	actor := s.Actor()
	return s.engine.Decide(ctx, &actor, res, action)
}

// Reinitialize installs actor. When the user, role or tenant changed the
// verification cache is cleared; it reports whether that happened.
func (s *Session) Reinitialize(actor Actor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actor.SameContext(actor) {
		s.actor = actor
		return false
	}
	s.actor = actor
	s.verifier.Reset()
	return true
}

// Invalidate drops cached answers of the given kinds.
func (s *Session) Invalidate(kinds ...Kind) {
	s.verifier.Invalidate(kinds...)
}

// Registry keeps live sessions keyed by session id.
type Registry struct {
	control  *Control
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
}

// NewRegistry constructs a Registry holding at most size sessions, each
// evicted after idle ttl.
func NewRegistry(control *Control, size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 10000
	}
	return &Registry{
		control:  control,
		sessions: expirable.NewLRU[string, *Session](size, nil, ttl),
	}
}

// Session returns the session for id, creating it or re-initialising it
// for actor as needed.
func (r *Registry) Session(id string, actor Actor) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions.Get(id); ok {
		if sess.Reinitialize(actor) {
			r.control.logger.Debug("access session context switched", slog.String("session_id", id), slog.String("actor_id", actor.ID))
		}
		return sess
	}
	sess := r.control.NewSession(actor)
	r.sessions.Add(id, sess)
	return sess
}

// Drop forgets the session for id, e.g. on logout.
func (r *Registry) Drop(id string) {
	r.sessions.Remove(id)
}

// Invalidate drops cached answers of the given kinds in every live session.
func (r *Registry) Invalidate(kinds ...Kind) {
	for _, id := range r.sessions.Keys() {
		if sess, ok := r.sessions.Peek(id); ok {
			sess.Invalidate(kinds...)
		}
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}
