package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Kind selects the remote access-check endpoint.
type Kind string

const (
	KindQuiz       Kind = "quiz"
	KindClassroom  Kind = "classroom"
	KindStudent    Kind = "student"
	KindMembership Kind = "membership"
)

// Kinds lists every remote check kind.
func Kinds() []Kind {
	return []Kind{KindQuiz, KindClassroom, KindStudent, KindMembership}
}

// CheckRequest is one remote ownership or membership question.
type CheckRequest struct {
	Kind       Kind
	TenantID   string
	ResourceID string
	ActorID    string
	Action     Action
}

// Checker performs the remote round trip. Implementations return a
// *VerificationError for non-2xx answers.
type Checker interface {
	Check(ctx context.Context, req CheckRequest) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, req CheckRequest) (bool, error)

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, req CheckRequest) (bool, error) {
	return f(ctx, req)
}

const (
	defaultCacheSize     = 1024
	defaultCacheTTL      = 2 * time.Minute
	defaultVerifyTimeout = 5 * time.Second
)

// VerifierConfig tunes the verification cache.
type VerifierConfig struct {
	Size    int
	TTL     time.Duration
	Timeout time.Duration
	Metrics *Metrics
}

type cacheKey struct {
	kind       Kind
	tenantID   string
	resourceID string
	actorID    string
}

// Verifier memoises remote checks for one session. The action is not part
// of the cache key. Entries expire after the configured TTL and can be
// dropped per kind when a mutation elsewhere changes ownership facts.
type Verifier struct {
	checker    Checker
	cache      *expirable.LRU[cacheKey, bool]
	group      singleflight.Group
	mu         sync.Mutex // orders cache writes against Reset and Invalidate
	generation uint64
	timeout    time.Duration
	metrics    *Metrics
}

// NewVerifier constructs a Verifier around checker.
func NewVerifier(checker Checker, cfg VerifierConfig) *Verifier {
	size := cfg.Size
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	return &Verifier{
		checker: checker,
		cache:   expirable.NewLRU[cacheKey, bool](size, nil, ttl),
		timeout: timeout,
		metrics: cfg.Metrics,
	}
}

// Verify answers a remote check, consulting the cache first. Failures are
// returned as *VerificationError and never cached.
func (v *Verifier) Verify(ctx context.Context, kind Kind, tenantID, resourceID, actorID string, action Action) (bool, error) {
	key := cacheKey{kind: kind, tenantID: tenantID, resourceID: resourceID, actorID: actorID}
	if allowed, ok := v.cache.Get(key); ok {
		v.metrics.observeVerify(kind, "hit")
		return allowed, nil
	}
	if v.checker == nil {
		return false, &VerificationError{Kind: kind, Err: errors.New("no checker configured")}
	}

	v.mu.Lock()
	gen := v.generation
	v.mu.Unlock()
	flightKey := fmt.Sprintf("%d|%s|%s|%s|%s", gen, kind, tenantID, resourceID, actorID)
	// The flight outlives any single caller so that a cancelled first caller
	// does not fail the others sharing it.
	flightCtx := context.WithoutCancel(ctx)
	resultCh := v.group.DoChan(flightKey, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(flightCtx, v.timeout)
		defer cancel()
		start := time.Now()
		allowed, err := v.checker.Check(callCtx, CheckRequest{
			Kind:       kind,
			TenantID:   tenantID,
			ResourceID: resourceID,
			ActorID:    actorID,
			Action:     action,
		})
		v.metrics.observeVerifyDuration(kind, time.Since(start))
		if err != nil {
			var verr *VerificationError
			if !errors.As(err, &verr) {
				err = &VerificationError{Kind: kind, Err: err}
			}
			v.metrics.observeVerify(kind, "error")
			return false, err
		}
		v.metrics.observeVerify(kind, "miss")
		// A Reset while the call was in flight means the answer belongs to
		// a context that no longer exists.
		v.mu.Lock()
		if v.generation == gen {
			v.cache.Add(key, allowed)
		}
		v.mu.Unlock()
		return allowed, nil
	})

	select {
	case <-ctx.Done():
		return false, &VerificationError{Kind: kind, Err: ctx.Err()}
	case res := <-resultCh:
		if res.Err != nil {
			return false, res.Err
		}
		allowed, _ := res.Val.(bool)
		return allowed, nil
	}
}

// Reset drops every cached answer. In-flight calls are not cancelled; their
// answers are discarded when they land.
func (v *Verifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++
	v.cache.Purge()
}

// Invalidate drops cached answers for the given kinds. Answers still in
// flight are discarded as with Reset.
func (v *Verifier) Invalidate(kinds ...Kind) {
	if len(kinds) == 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++
	drop := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		drop[k] = struct{}{}
	}
	for _, key := range v.cache.Keys() {
		if _, ok := drop[key.kind]; ok {
			v.cache.Remove(key)
		}
	}
}

// Len returns the number of live cache entries.
func (v *Verifier) Len() int {
	return v.cache.Len()
}
