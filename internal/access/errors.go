package access

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContext indicates the actor or its tenant is missing.
	ErrNoContext = errors.New("access: actor context missing")
	// ErrInvalidRole indicates an actor role outside the supported set.
	ErrInvalidRole = errors.New("access: invalid role")
	// ErrUnknownResource indicates a resource type the actor's role has no rule for.
	ErrUnknownResource = errors.New("access: unknown resource type")
	// ErrAccessDenied is an explicit business-rule deny.
	ErrAccessDenied = errors.New("access: denied")
	// ErrUnknownTier indicates a subscription tier missing from the policy table.
	ErrUnknownTier = errors.New("access: unknown subscription tier")
)

// VerificationError reports a remote access check that failed or was unreachable.
// It is distinct from an explicit deny returned by the remote store.
type VerificationError struct {
	Kind   Kind
	Status int
	Body   string
	Err    error
}

func (e *VerificationError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("access: verify %s: status %d: %s", e.Kind, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("access: verify %s: status %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("access: verify %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("access: verify %s failed", e.Kind)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// IsVerificationError reports whether err carries a VerificationError.
func IsVerificationError(err error) bool {
	var verr *VerificationError
	return errors.As(err, &verr)
}

// IsIntegrationError reports whether err is a programmer or wiring error
// (missing context, bad role, unknown resource) that callers should surface
// instead of folding into a plain deny.
func IsIntegrationError(err error) bool {
	return errors.Is(err, ErrNoContext) || errors.Is(err, ErrInvalidRole) || errors.Is(err, ErrUnknownResource)
}
