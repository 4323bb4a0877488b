package auth

// Package auth contains domain-level types for identities, sessions and roles.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Role represents the authorization level of an authenticated identity.
// Keep string form for easy persistence and JSON payloads.
type Role string

const (
	RoleGuest        Role = "guest"
	RoleStaff        Role = "staff"
	RoleAdmin        Role = "admin"
	RoleSuperadmin   Role = "superadmin"
	RoleUnauthorized Role = "unauthorized"
)

// ParseRole converts a directory value into a Role.
// Unknown values map to RoleUnauthorized so a typo in the directory never grants access.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleGuest, RoleStaff, RoleAdmin, RoleSuperadmin:
		return r
	default:
		return RoleUnauthorized
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleStaff, RoleAdmin, RoleSuperadmin, RoleUnauthorized:
		return true
	default:
		return false
	}
}

// rank orders roles for "at least" checks.
func (r Role) rank() int {
	switch r {
	case RoleSuperadmin:
		return 4
	case RoleAdmin:
		return 3
	case RoleStaff:
		return 2
	case RoleGuest:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(minRole Role) bool {
	if minRole.rank() == 0 {
		return r.rank() > 0
	}
	return r.rank() >= minRole.rank()
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown roles.
func (r *Role) UnmarshalText(text []byte) error {
	v := Role(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid role: %q", string(text))
	}
	*r = v
	return nil
}

// Status is the directory account status.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// DirectoryRecord is what the role directory knows about an identity.
type DirectoryRecord struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Status Status `json:"status"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Suspended reports whether the record marks the identity as suspended.
func (d DirectoryRecord) Suspended() bool { return d.Status == StatusSuspended }

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// Session is evidence of a successful authentication held by the identity service.
// The arbitrator only observes it.
type Session struct {
	ID        string    `json:"id"`
	Identity  Identity  `json:"identity"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
// A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ChangeKind identifies an identity-provider session change.
type ChangeKind string

const (
	SignedIn  ChangeKind = "SIGNED_IN"
	SignedOut ChangeKind = "SIGNED_OUT"
)

// Change is delivered to identity change subscribers.
// Session is nil for SignedOut.
type Change struct {
	Kind    ChangeKind
	Session *Session
}

// LocalIdentity is the lower-trust, locally cached identity used as a fallback
// when the identity service reports no session.
type LocalIdentity struct {
	UserID  string    `json:"user_id"`
	Email   string    `json:"email"`
	Name    string    `json:"name,omitempty"`
	Role    Role      `json:"role,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// Credentials carries a password login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
