package bootstrap

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/hotelease-portal/config"
	"github.com/target/hotelease-portal/internal/adapters/devauth"
	"github.com/target/hotelease-portal/internal/adapters/oidc"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(oidc.DiscoveryDocument{
			Issuer:                srv.URL,
			AuthorizationEndpoint: srv.URL + "/auth",
			TokenEndpoint:         srv.URL + "/token",
			UserinfoEndpoint:      srv.URL + "/userinfo",
			JwksURI:               srv.URL + "/jwks",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildAuthProvider(t *testing.T) {
	discovery := newDiscoveryServer(t)

	tests := []struct {
		name    string
		auth    config.AuthConfig
		wantErr string
		check   func(t *testing.T, got any)
	}{
		{
			name: "dev auth mode",
			auth: config.AuthConfig{
				Mode: config.AuthModeMock,
				DevAuth: config.DevAuthConfig{
					UserID:   "dev",
					Email:    "dev@example.com",
					Accounts: []string{"desk:desk@example.com:Front Desk"},
				},
			},
			check: func(t *testing.T, got any) {
				assert.IsType(t, &devauth.Provider{}, got)
			},
		},
		{
			name: "dev auth bad account entry",
			auth: config.AuthConfig{
				Mode:    config.AuthModeMock,
				DevAuth: config.DevAuthConfig{UserID: "dev", Email: "dev@example.com", Accounts: []string{"nobody"}},
			},
			wantErr: "dev auth accounts",
		},
		{
			name: "oauth mode",
			auth: config.AuthConfig{
				Mode: config.AuthModeOAuth,
				OAuth: config.OAuthConfig{
					ClientID:     "client-id",
					ClientSecret: "client-secret",
					DiscoveryURL: discovery.URL,
					RedirectURL:  "https://portal.example.com/auth/callback",
					Scope:        "openid",
					UserIDClaim:  "sub",
				},
			},
			check: func(t *testing.T, got any) {
				assert.IsType(t, &oidc.Provider{}, got)
			},
		},
		{
			name:    "oauth without discovery",
			auth:    config.AuthConfig{Mode: config.AuthModeOAuth, OAuth: config.OAuthConfig{ClientID: "id", ClientSecret: "secret"}},
			wantErr: "OAUTH_DISCOVERY_URL",
		},
		{
			name:    "unknown mode",
			auth:    config.AuthConfig{Mode: "saml"},
			wantErr: "unsupported auth mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildAuthProvider(AuthConfig{Auth: tt.auth, Logger: discardLogger()})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}
