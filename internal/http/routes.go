package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Registry     *service.PortalRegistry // Required
	CookieDomain string
	// CallbackURL overrides the OAuth redirect target derived from the request.
	CallbackURL string
	// LoginRatePerMinute and LoginBurst bound password logins per client address.
	LoginRatePerMinute int
	LoginBurst         int
	// StreamHeartbeat is the keep-alive interval for /api/events/stream.
	StreamHeartbeat time.Duration
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter creates the HTTP router. Portal-scoped routes resolve the
// portal_id cookie before the handler runs.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	portal := func(h http.HandlerFunc) http.Handler {
		return RequirePortal(services.Registry, services.CookieDomain)(h)
	}
	limiter := NewClientLimiter(services.LoginRatePerMinute, services.LoginBurst)

	viewHandlers := &ViewHandlers{Logger: logger}
	authHandlers := &AuthHandlers{
		Accounts:     services.Registry.Accounts(),
		CookieDomain: services.CookieDomain,
		CallbackURL:  services.CallbackURL,
		Logger:       logger,
	}
	eventHandlers := &EventHandlers{
		Registry:  services.Registry,
		Heartbeat: services.StreamHeartbeat,
		Logger:    logger,
	}
	health := &HealthHandlers{Registry: services.Registry}

	registerViewRoutes(mux, viewHandlers, portal)
	registerAuthRoutes(mux, authHandlers, limiter, portal)
	registerEventRoutes(mux, eventHandlers, portal)

	mux.HandleFunc("GET /healthz", health.Check)
	mux.HandleFunc("HEAD /healthz", health.Check)
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}
	return mux
}

type portalWrap func(http.HandlerFunc) http.Handler

func registerViewRoutes(mux *http.ServeMux, h *ViewHandlers, portal portalWrap) {
	mux.Handle("GET /api/view", portal(h.Get))
	mux.Handle("POST /api/navigate", portal(h.Navigate))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, limiter *ClientLimiter, portal portalWrap) {
	mux.Handle("POST /auth/login", portal(limiter.Middleware(h.Login)))
	mux.Handle("POST /auth/signup", portal(h.SignUp))
	mux.Handle("GET /auth/oauth/{provider}", portal(h.OAuthStart))
	mux.Handle("GET /auth/callback", portal(h.Callback))
	mux.Handle("POST /auth/logout", portal(h.Logout))
}

func registerEventRoutes(mux *http.ServeMux, h *EventHandlers, portal portalWrap) {
	mux.Handle("GET /api/events", portal(requireRole(domainauth.RoleStaff, h.List)))
	mux.Handle("POST /api/events", portal(h.Emit))
	mux.Handle("GET /api/events/stream", portal(h.Stream))
}

// NewHandler wraps the router with the standard middleware chain:
// Recover -> Logging -> Router.
func NewHandler(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return chain(NewRouter(services), Recover(logger), Logging(logger))
}
