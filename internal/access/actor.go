package access

import (
	"fmt"
	"strings"
)

// Role is the coarse permission grouping of an actor.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// Action is the operation requested on a resource. Only ActionRead carries
// special meaning in the rules; other values are passed through to the
// remote checks untouched.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionSubmit Action = "submit"
)

// Actor is the authenticated principal. It is immutable for the lifetime of
// a request; a new value is installed when the session provider reports a
// different user or tenant.
type Actor struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenantId"`
	Tier     Tier   `json:"subscriptionTier"`
}

// Validate checks that the actor is fully initialised. super_admin actors may
// omit the tenant because they act in global scope.
func (a *Actor) Validate() error {
	if a == nil || strings.TrimSpace(a.ID) == "" {
		return ErrNoContext
	}
	switch a.Role {
	case RoleSuperAdmin:
		return nil
	case RoleInstructor, RoleStudent:
		if strings.TrimSpace(a.TenantID) == "" {
			return ErrNoContext
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRole, a.Role)
}

// SameContext reports whether b carries the same user, role and tenant as a.
func (a Actor) SameContext(b Actor) bool {
	return a.ID == b.ID && a.Role == b.Role && a.TenantID == b.TenantID
}

// Tenant is an organisational boundary.
type Tenant struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}
