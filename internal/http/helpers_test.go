package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/eventbus"
	authmocks "github.com/target/hotelease-portal/internal/mocks/auth"
	"github.com/target/hotelease-portal/internal/service"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fixture is a router backed by a real portal registry and in-memory adapters.
type fixture struct {
	registry *service.PortalRegistry
	provider *authmocks.MockAuthProvider
	dir      *authmocks.MemoryDirectory
	handler  http.Handler
}

type fixtureOptions struct {
	Records   []domainauth.DirectoryRecord
	LoginRate int
	Burst     int
	Heartbeat time.Duration
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	provider := authmocks.NewMockAuthProvider()
	// The directory is keyed by email so tests can pick a role by address.
	provider.PasswordLoginFunc = func(_ context.Context, email, _ string) (domainauth.Identity, error) {
		return domainauth.Identity{UserID: email, Email: email}, nil
	}
	kv := authmocks.NewMemoryKV()
	accounts, err := service.NewLocalAccounts(service.LocalAccountsOptions{KV: kv, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	dir := authmocks.NewMemoryDirectory(opts.Records...)
	domainBus := eventbus.New(eventbus.Options{Name: "domain", Logger: discardLogger()})
	t.Cleanup(domainBus.Close)

	registry, err := service.NewPortalRegistry(service.PortalRegistryOptions{
		Provider:  provider,
		Sessions:  authmocks.NewMemorySessionStore(),
		KV:        kv,
		Directory: dir,
		DomainBus: domainBus,
		Accounts:  accounts,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	rate := opts.LoginRate
	if rate == 0 {
		rate = 600
	}
	burst := opts.Burst
	if burst == 0 {
		burst = 100
	}
	return &fixture{
		registry: registry,
		provider: provider,
		dir:      dir,
		handler: NewHandler(RouterServices{
			Registry:           registry,
			LoginRatePerMinute: rate,
			LoginBurst:         burst,
			StreamHeartbeat:    opts.Heartbeat,
			Logger:             discardLogger(),
		}),
	}
}

// client replays the portal cookie the way a browser would.
type client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (f *fixture) client(t *testing.T) *client {
	return &client{t: t, h: f.handler}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == PortalCookieName {
			c.cookie = ck
		}
	}
	return rec
}

// ready waits for the portal's startup decision and returns its state.
func (c *client) ready() service.Snapshot {
	c.t.Helper()
	rec := c.do(http.MethodGet, "/api/view?wait=true", nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[service.Snapshot](c.t, rec)
}

func (c *client) login(email, password string) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.do(http.MethodPost, "/auth/login", domainauth.Credentials{Email: email, Password: password})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func active(userID string, role domainauth.Role) domainauth.DirectoryRecord {
	return domainauth.DirectoryRecord{UserID: userID, Role: role, Status: domainauth.StatusActive}
}
