package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/service"
)

// PortalCookieName identifies the browser client across requests.
const PortalCookieName = "portal_id"

const portalCookieMaxAge = 30 * 24 * time.Hour

type portalCtxKey struct{}

// WithPortal returns a context carrying p.
func WithPortal(ctx context.Context, p *service.Portal) context.Context {
	return context.WithValue(ctx, portalCtxKey{}, p)
}

// PortalFromContext returns the portal attached by RequirePortal.
func PortalFromContext(ctx context.Context) (*service.Portal, bool) {
	p, ok := ctx.Value(portalCtxKey{}).(*service.Portal)
	return p, ok && p != nil
}

// RequirePortal resolves the portal_id cookie to a live portal, creating one
// for new or evicted clients, and attaches it to the request context.
func RequirePortal(registry *service.PortalRegistry, cookieDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(PortalCookieName); err == nil {
				id = c.Value
			}
			p, _, err := registry.GetOrCreate(id)
			if err != nil {
				code := http.StatusInternalServerError
				if errors.Is(err, service.ErrRegistryClosed) {
					code = http.StatusServiceUnavailable
				}
				WriteError(w, ErrorParams{Code: code, ErrCode: "portal_unavailable", Err: err})
				return
			}
			if p.ID != id {
				setCookie(w, r, cookieParams{
					Name:   PortalCookieName,
					Value:  p.ID,
					Domain: cookieDomain,
					MaxAge: portalCookieMaxAge,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithPortal(r.Context(), p)))
		})
	}
}

// requireRole rejects requests whose portal is not authenticated at minRole or above.
func requireRole(minRole domainauth.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PortalFromContext(r.Context())
		if !ok {
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
			return
		}
		snap := p.Arbitrator.Snapshot()
		if !snap.Authenticated {
			WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "unauthenticated", Err: errors.New("sign in required")})
			return
		}
		if !snap.Role.AtLeast(minRole) {
			WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "forbidden", Err: errors.New("role " + string(snap.Role) + " may not access this resource")})
			return
		}
		next(w, r)
	}
}

var errPortalMissing = errors.New("portal not resolved for request")

// cookieParams groups cookie attributes for setCookie.
type cookieParams struct {
	Name   string
	Value  string
	Domain string
	MaxAge time.Duration
}

// setCookie writes an HttpOnly Lax cookie; a non-positive MaxAge deletes it.
func setCookie(w http.ResponseWriter, r *http.Request, p cookieParams) {
	c := &http.Cookie{
		Name:     p.Name,
		Value:    p.Value,
		Path:     "/",
		Domain:   p.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
	if p.MaxAge > 0 {
		c.MaxAge = int(p.MaxAge / time.Second)
	} else {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0).UTC()
	}
	http.SetCookie(w, c)
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
