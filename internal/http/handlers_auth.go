package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/ports"
	"github.com/target/hotelease-portal/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthNonceCookie = "oauth_nonce"
	oauthCookieTTL   = 10 * time.Minute
)

// AuthHandlers provides HTTP handlers for sign-in, sign-up and sign-out.
type AuthHandlers struct {
	Accounts     *service.LocalAccounts
	CookieDomain string
	// CallbackURL is handed to the provider for redirect flows; derived from the request when empty.
	CallbackURL string
	Logger      *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login signs in with email and password and applies the resulting role.
// POST /auth/login {"email": "...", "password": "..."}.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	p, ok := PortalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
		return
	}

	var creds domainauth.Credentials
	if !DecodeJSON(w, r, &creds) {
		return
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_credentials", Err: errors.New("email and password are required")})
		return
	}

	snap, err := p.Arbitrator.RequestLogin(r.Context(), creds)
	if err != nil {
		h.logger().InfoContext(r.Context(), "login rejected", "portal_id", p.ID, "error", err)
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

type signUpRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domainauth.Role `json:"role,omitempty"`
}

type signUpResponse struct {
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      domainauth.Role `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

// SignUp creates a local account. Guests may register themselves; any other
// role can only be granted from a superadmin portal.
// POST /auth/signup {"name": "...", "email": "...", "password": "...", "role": "..."}.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	p, ok := PortalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
		return
	}

	var req signUpRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Role != "" && req.Role != domainauth.RoleGuest {
		snap := p.Arbitrator.Snapshot()
		if !snap.Authenticated || snap.Role != domainauth.RoleSuperadmin {
			WriteError(w, ErrorParams{
				Code:    http.StatusForbidden,
				ErrCode: "forbidden",
				Err:     errors.New("only a superadmin may create " + string(req.Role) + " accounts"),
			})
			return
		}
	}

	acct, err := h.Accounts.SignUp(r.Context(), service.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger().InfoContext(r.Context(), "local account created", "user_id", acct.UserID, "role", acct.Role)
	WriteJSON(w, http.StatusCreated, signUpResponse{
		UserID:    acct.UserID,
		Name:      acct.Name,
		Email:     acct.Email,
		Role:      acct.Role,
		CreatedAt: acct.CreatedAt,
	})
}

// OAuthStart begins a redirect sign-in with the named provider.
// GET /auth/oauth/{provider}.
func (h *AuthHandlers) OAuthStart(w http.ResponseWriter, r *http.Request) {
	p, ok := PortalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
		return
	}

	start, err := p.Identity.SignInWithOAuth(r.Context(), r.PathValue("provider"), h.callbackURL(r))
	if err != nil {
		h.logger().ErrorContext(r.Context(), "oauth start failed", "portal_id", p.ID, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "login_failed", Err: err})
		return
	}

	setCookie(w, r, cookieParams{Name: oauthStateCookie, Value: start.State, Domain: h.CookieDomain, MaxAge: oauthCookieTTL})
	setCookie(w, r, cookieParams{Name: oauthNonceCookie, Value: start.Nonce, Domain: h.CookieDomain, MaxAge: oauthCookieTTL})
	http.Redirect(w, r, start.URL, http.StatusFound)
}

// Callback completes a redirect sign-in. The resulting SIGNED_IN change reaches
// the portal's arbitrator through its identity subscription.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	p, ok := PortalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_code", Err: errors.New("authorization code is required")})
		return
	}
	stateCookie, err := r.Cookie(oauthStateCookie)
	if state == "" || err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_state", Err: errors.New("invalid or missing state parameter")})
		return
	}
	nonceCookie, err := r.Cookie(oauthNonceCookie)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_nonce", Err: errors.New("missing nonce parameter")})
		return
	}

	if _, err := p.Identity.CompleteOAuth(r.Context(), ports.ExchangeInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	}); err != nil {
		h.logger().WarnContext(r.Context(), "oauth completion failed", "portal_id", p.ID, "error", err)
		params := classifyError(err)
		if params.Code == http.StatusInternalServerError {
			params = ErrorParams{Code: http.StatusBadGateway, ErrCode: "login_completion_failed", Err: err}
		}
		WriteError(w, params)
		return
	}

	setCookie(w, r, cookieParams{Name: oauthStateCookie, Domain: h.CookieDomain})
	setCookie(w, r, cookieParams{Name: oauthNonceCookie, Domain: h.CookieDomain})
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout signs out and routes per the logout policy. The transition happens even
// when the identity service cannot be reached.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := PortalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
		return
	}

	snap, err := p.Arbitrator.RequestLogout(r.Context())
	if err != nil {
		h.logger().WarnContext(r.Context(), "logout completed locally; identity sign-out failed", "portal_id", p.ID, "error", err)
	}
	WriteJSON(w, http.StatusOK, snap)
}

func (h *AuthHandlers) callbackURL(r *http.Request) string {
	if h.CallbackURL != "" {
		return h.CallbackURL
	}
	scheme := "http"
	if isSecureRequest(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/auth/callback"
}
