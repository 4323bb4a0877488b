package devauth

// Package devauth provides a simple, config-driven AuthProvider for local development.

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

var _ ports.AuthProvider = (*Provider)(nil)

// Config controls the dev auth provider behavior.
// UserID and Email are required; Accounts adds further identities usable with PasswordLogin.
type Config struct {
	UserID   string
	Email    string
	Name     string
	Password string // empty accepts any password
	Accounts []domainauth.Identity
}

// Provider implements ports.AuthProvider for local development.
// It short-circuits the OAuth flow by redirecting back to our own callback
// with locally generated state and nonce.
// Exchange ignores the code and returns the configured identity.
type Provider struct {
	identity domainauth.Identity
	password string
	byEmail  map[string]domainauth.Identity
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}

	primary := domainauth.Identity{UserID: cfg.UserID, Email: cfg.Email, Name: cfg.Name}
	p := &Provider{
		identity: primary,
		password: cfg.Password,
		byEmail:  map[string]domainauth.Identity{normalizeEmail(primary.Email): primary},
	}
	for _, acct := range cfg.Accounts {
		if acct.UserID == "" || acct.Email == "" {
			return nil, fmt.Errorf("dev auth: account %q requires user id and email", acct.UserID)
		}
		p.byEmail[normalizeEmail(acct.Email)] = acct
	}
	return p, nil
}

// ParseAccounts parses "user_id:email[:name]" entries.
func ParseAccounts(entries []string) ([]domainauth.Identity, error) {
	out := make([]domainauth.Identity, 0, len(entries))
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("dev auth: invalid account entry %q (want user_id:email[:name])", raw)
		}
		id := domainauth.Identity{
			UserID: strings.TrimSpace(parts[0]),
			Email:  strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			id.Name = strings.TrimSpace(parts[2])
		}
		out = append(out, id)
	}
	return out, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	// The callback handler expects GET /auth/callback?code=...&state=...
	authURL := "/auth/callback?code=dev&state=" + state
	return authURL, state, nonce, nil
}

// Exchange ignores the provided code/state/nonce (validation handled by handler) and returns the dev identity.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
	return p.identity, nil
}

// PasswordLogin accepts any configured account whose password matches the shared dev password.
func (p *Provider) PasswordLogin(_ context.Context, email, password string) (domainauth.Identity, error) {
	id, ok := p.byEmail[normalizeEmail(email)]
	if !ok {
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}
	if p.password != "" && subtle.ConstantTimeCompare([]byte(p.password), []byte(password)) != 1 {
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}
	return id, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
