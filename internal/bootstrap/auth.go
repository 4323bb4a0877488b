package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/hotelease-portal/config"
	"github.com/target/hotelease-portal/internal/adapters/devauth"
	"github.com/target/hotelease-portal/internal/adapters/oidc"
	"github.com/target/hotelease-portal/internal/ports"
)

// AuthConfig contains configuration for the identity provider.
type AuthConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// BuildAuthProvider creates the identity provider for the configured auth mode.
//
//nolint:ireturn // callers only need the port; the concrete provider depends on AUTH_MODE.
func BuildAuthProvider(cfg AuthConfig) (ports.AuthProvider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevAuthProvider(cfg.Auth.DevAuth, logger)
	case config.AuthModeOAuth:
		return buildOAuthProvider(cfg.Auth.OAuth, logger)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func buildDevAuthProvider(dev config.DevAuthConfig, logger *slog.Logger) (*devauth.Provider, error) {
	accounts, err := devauth.ParseAccounts(dev.Accounts)
	if err != nil {
		return nil, fmt.Errorf("dev auth accounts: %w", err)
	}
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:   dev.UserID,
		Email:    dev.Email,
		Name:     dev.Name,
		Password: dev.Password,
		Accounts: accounts,
	})
	if err != nil {
		return nil, err
	}
	logger.Warn("dev auth provider enabled; do not use in production",
		"user_id", dev.UserID, "extra_accounts", len(accounts))
	return prov, nil
}

func buildOAuthProvider(oauth config.OAuthConfig, logger *slog.Logger) (*oidc.Provider, error) {
	if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		return nil, errors.New("AUTH_MODE=oauth requires OAUTH_DISCOVERY_URL, OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET")
	}

	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:      oauth.ClientID,
		ClientSecret:  oauth.ClientSecret,
		RedirectURL:   oauth.RedirectURL,
		Scope:         oauth.Scope,
		DiscoveryURL:  oauth.DiscoveryURL,
		LogoutURL:     oauth.LogoutURL,
		UserIDClaim:   oauth.UserIDClaim,
		PasswordGrant: oauth.PasswordGrant,
	})
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	logger.Info("oidc provider configured", "discovery_url", oauth.DiscoveryURL, "password_grant", oauth.PasswordGrant)
	return prov, nil
}
