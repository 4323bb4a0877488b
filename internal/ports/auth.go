package ports

// Package ports defines interfaces (hexagonal ports) for identity, directory and event behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
)

var (
	// ErrSessionNotFound is returned by a SessionStore when no session exists for the key.
	ErrSessionNotFound = errors.New("session not found")
	// ErrIdentityUnavailable marks a transient failure reaching the identity provider.
	ErrIdentityUnavailable = errors.New("identity service unavailable")
	// ErrInvalidCredentials is returned when a password login is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)

	// PasswordLogin authenticates with an email and password.
	// Rejected credentials return ErrInvalidCredentials; transport failures wrap ErrIdentityUnavailable.
	PasswordLogin(ctx context.Context, email, password string) (domainauth.Identity, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// SessionStore persists and retrieves remote sessions keyed by portal.
type SessionStore interface {
	Save(ctx context.Context, key string, sess domainauth.Session) error
	Get(ctx context.Context, key string) (domainauth.Session, error)
	Delete(ctx context.Context, key string) error
}

// ChangeHandler receives identity session changes in provider order.
type ChangeHandler func(domainauth.Change)

// OAuthStart is returned when a redirect-based sign-in begins.
type OAuthStart struct {
	URL   string
	State string
	Nonce string
}

// IdentityService is the narrow facade over the external authentication provider.
type IdentityService interface {
	// GetCurrentSession returns the live session or ErrSessionNotFound.
	GetCurrentSession(ctx context.Context) (domainauth.Session, error)
	// SubscribeToChanges registers h for the life of the service and returns an idempotent unsubscribe.
	SubscribeToChanges(h ChangeHandler) (unsubscribe func())
	SignOut(ctx context.Context) error
	SignInWithPassword(ctx context.Context, email, password string) (domainauth.Session, error)
	SignInWithOAuth(ctx context.Context, provider, redirectURL string) (OAuthStart, error)
	// CompleteOAuth finishes a redirect flow started in another browsing context.
	CompleteOAuth(ctx context.Context, in ExchangeInput) (domainauth.Session, error)
}
