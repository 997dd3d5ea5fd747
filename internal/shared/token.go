package shared

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrServiceTokenMissing indicates a request without a bearer token.
var ErrServiceTokenMissing = errors.New("service token missing")

// ServiceToken authenticates service-to-service calls with a shared bearer
// token. Only the bcrypt hash is kept; the last accepted token is memoised
// so steady traffic skips the bcrypt cost.
type ServiceToken struct {
	hash []byte

	mu       sync.RWMutex
	accepted []byte
}

// NewServiceToken hashes token. An empty token disables the check.
func NewServiceToken(token string) (*ServiceToken, error) {
	if token == "" {
		return &ServiceToken{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &ServiceToken{hash: hash}, nil
}

// Enabled reports whether a token is configured.
func (t *ServiceToken) Enabled() bool {
	return t != nil && len(t.hash) > 0
}

// Verify checks the request's bearer token.
func (t *ServiceToken) Verify(r *http.Request) error {
	if !t.Enabled() {
		return nil
	}
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return ErrServiceTokenMissing
	}
	candidate := []byte(raw)

	t.mu.RLock()
	accepted := t.accepted
	t.mu.RUnlock()
	if accepted != nil && subtle.ConstantTimeCompare(accepted, candidate) == 1 {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(t.hash, candidate); err != nil {
		return err
	}
	t.mu.Lock()
	t.accepted = candidate
	t.mu.Unlock()
	return nil
}

// Middleware rejects requests without the service token.
func (t *ServiceToken) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := t.Verify(r); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="quizroom"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
