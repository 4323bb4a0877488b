package oidc

// Package oidc provides OIDC/OAuth authentication adapters for the portal broker.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

var _ ports.AuthProvider = (*Provider)(nil)

// DefaultUserIDClaim selects the standard subject claim.
const DefaultUserIDClaim = "sub"

// Provider implements the AuthProvider interface using OIDC/OAuth2.
type Provider struct {
	config        *oauth2.Config
	logoutURL     string
	httpClient    *http.Client
	userIDClaim   string
	passwordGrant bool

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	LogoutURL    string
	// UserIDClaim is a JMESPath expression evaluated against the token claims to
	// produce the directory user id. Defaults to "sub".
	UserIDClaim string
	// PasswordGrant enables PasswordLogin through the resource-owner password grant.
	PasswordGrant bool
	HTTPClient    *http.Client // Optional, defaults to a client with a 30s timeout
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	claimExpr := strings.TrimSpace(config.UserIDClaim)
	if claimExpr == "" {
		claimExpr = DefaultUserIDClaim
	}
	if _, err := jmespath.Compile(claimExpr); err != nil {
		return nil, fmt.Errorf("invalid user id claim expression %q: %w", claimExpr, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		logoutURL:     config.LogoutURL,
		httpClient:    httpClient,
		userIDClaim:   claimExpr,
		passwordGrant: config.PasswordGrant,
	}

	// Initialize go-oidc provider and verifier (single discovery fetch)
	ctx := p.clientContext(context.Background())
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	// Configure OAuth2 using discovered endpoints
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// LogoutURL returns the configured IdP logout URL, if any.
func (p *Provider) LogoutURL() string { return p.logoutURL }

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri must match the configured RedirectURL exactly, so it is not overridden here.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	ctx = p.clientContext(ctx)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	return p.identityFromToken(ctx, token, in.Nonce)
}

// PasswordLogin authenticates with the resource-owner password grant.
func (p *Provider) PasswordLogin(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if !p.passwordGrant {
		return domainauth.Identity{}, fmt.Errorf("%w: password grant disabled", ports.ErrInvalidCredentials)
	}
	if email == "" || password == "" {
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}

	ctx = p.clientContext(ctx)
	token, err := p.config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return domainauth.Identity{}, classifyTokenError(err)
	}

	id, err := p.identityFromToken(ctx, token, "")
	if err != nil {
		return domainauth.Identity{}, err
	}
	if id.Email == "" {
		id.Email = email
	}
	return id, nil
}

// classifyTokenError separates rejected credentials from an unreachable token endpoint.
func classifyTokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" || rerr.ErrorCode == "invalid_client" {
			return fmt.Errorf("%w: %s", ports.ErrInvalidCredentials, rerr.ErrorCode)
		}
		if rerr.Response != nil && rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
			return fmt.Errorf("%w: token endpoint returned %d", ports.ErrInvalidCredentials, rerr.Response.StatusCode)
		}
	}
	return fmt.Errorf("%w: %w", ports.ErrIdentityUnavailable, err)
}

func (p *Provider) identityFromToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (domainauth.Identity, error) {
	claims, err := p.idTokenClaims(ctx, tok, expectedNonce)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}

	id := mapClaims(claims, p.userIDClaim)
	if id.UserID == "" || id.Email == "" {
		uiClaims, uiErr := p.userInfoClaims(ctx, tok.AccessToken)
		if uiErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", uiErr)
		}
		fillIdentity(&id, mapClaims(uiClaims, p.userIDClaim))
	}
	if id.UserID == "" {
		return domainauth.Identity{}, fmt.Errorf("claim %q produced no user id", p.userIDClaim)
	}
	return id, nil
}

func (p *Provider) idTokenClaims(ctx context.Context, tok *oauth2.Token, expectedNonce string) (map[string]any, error) {
	if !p.hasOpenIDScope() {
		return nil, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return nil, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if expectedNonce != "" && idTok.Nonce != expectedNonce {
		return nil, errors.New("invalid nonce")
	}
	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	return claims, nil
}

func (p *Provider) userInfoClaims(ctx context.Context, accessToken string) (map[string]any, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	var claims map[string]any
	if claimsErr := ui.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("decode user info: %w", claimsErr)
	}
	return claims, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// mapClaims maps raw claims into an Identity. The user id comes from userIDExpr;
// email and name accept both OIDC and AD/ADFS claim shapes.
func mapClaims(claims map[string]any, userIDExpr string) domainauth.Identity {
	if len(claims) == 0 {
		return domainauth.Identity{}
	}
	var id domainauth.Identity
	if v, err := jmespath.Search(userIDExpr, claims); err == nil {
		id.UserID = claimString(v)
	}
	id.Email = firstNonEmpty(claimString(claims["email"]), claimString(claims["mail"]))
	id.Name = firstNonEmpty(
		claimString(claims["name"]),
		joinName(claimString(claims["given_name"]), claimString(claims["family_name"])),
		joinName(claimString(claims["firstname"]), claimString(claims["lastname"])),
	)
	return id
}

// fillIdentity fills empty fields of dst from src.
func fillIdentity(dst *domainauth.Identity, src domainauth.Identity) {
	if dst.UserID == "" {
		dst.UserID = src.UserID
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Name == "" {
		dst.Name = src.Name
	}
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case []any:
		if len(t) > 0 {
			return claimString(t[0])
		}
	}
	return ""
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
