package config

import (
	"fmt"
	"strings"
	"time"
)

// LogoutRedirect selects where a portal lands after signing out.
type LogoutRedirect string

const (
	// LogoutRedirectAuto sends admin surfaces to the admin login and public pages home.
	LogoutRedirectAuto LogoutRedirect = "auto"
	// LogoutRedirectHome always lands on the public home view.
	LogoutRedirectHome LogoutRedirect = "home"
	// LogoutRedirectAdminLogin always lands on the admin login view.
	LogoutRedirectAdminLogin LogoutRedirect = "admin-login"
)

// UnmarshalText implements encoding.TextUnmarshaler for LogoutRedirect.
func (l *LogoutRedirect) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "auto", "home", "admin-login":
		*l = LogoutRedirect(v)
		return nil
	default:
		return fmt.Errorf("invalid LogoutRedirect: %q (valid options: auto, home, admin-login)", v)
	}
}

// SuspensionCheck selects when directory suspension is enforced.
type SuspensionCheck string

const (
	// SuspensionCheckAlways enforces suspension on every role resolution.
	SuspensionCheckAlways SuspensionCheck = "always"
	// SuspensionCheckLogin enforces suspension only during an explicit login.
	SuspensionCheckLogin SuspensionCheck = "login"
)

// UnmarshalText implements encoding.TextUnmarshaler for SuspensionCheck.
func (s *SuspensionCheck) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "always", "login":
		*s = SuspensionCheck(v)
		return nil
	default:
		return fmt.Errorf("invalid SuspensionCheck: %q (valid options: always, login)", v)
	}
}

// ArbitrationConfig controls the per-portal session arbitrator and the portal registry.
type ArbitrationConfig struct {
	// StartupTimeout bounds the initial local and remote session lookups.
	StartupTimeout time.Duration `env:"ARBITRATION_STARTUP_TIMEOUT" envDefault:"5s"`

	// LogoutRedirect picks the landing view after sign-out.
	LogoutRedirect LogoutRedirect `env:"ARBITRATION_LOGOUT_REDIRECT" envDefault:"auto"`

	// SuspensionCheck picks when suspended directory records force a sign-out.
	SuspensionCheck SuspensionCheck `env:"ARBITRATION_SUSPENSION_CHECK" envDefault:"always"`

	// LocalFallback enables local accounts when the identity provider is unreachable.
	LocalFallback bool `env:"ARBITRATION_LOCAL_FALLBACK" envDefault:"true"`

	// LocalSessionTTL bounds how long a cached local identity stays usable.
	LocalSessionTTL time.Duration `env:"ARBITRATION_LOCAL_SESSION_TTL" envDefault:"168h"`

	// RemoteSessionTTL is the lifetime of sessions issued by the identity client.
	RemoteSessionTTL time.Duration `env:"ARBITRATION_REMOTE_SESSION_TTL" envDefault:"8h"`

	// PortalIdleTTL evicts portals that have not been touched for this long.
	PortalIdleTTL time.Duration `env:"ARBITRATION_PORTAL_IDLE_TTL" envDefault:"30m"`

	// ReapInterval is how often idle portals are evicted.
	ReapInterval time.Duration `env:"ARBITRATION_REAP_INTERVAL" envDefault:"1m"`
}

// Sanitize applies guardrails to arbitration configuration values.
func (a *ArbitrationConfig) Sanitize() {
	if a.StartupTimeout <= 0 {
		a.StartupTimeout = 5 * time.Second
	}
	if a.LogoutRedirect == "" {
		a.LogoutRedirect = LogoutRedirectAuto
	}
	if a.SuspensionCheck == "" {
		a.SuspensionCheck = SuspensionCheckAlways
	}
	if a.LocalSessionTTL <= 0 {
		a.LocalSessionTTL = 168 * time.Hour
	}
	if a.RemoteSessionTTL <= 0 {
		a.RemoteSessionTTL = 8 * time.Hour
	}
	if a.PortalIdleTTL <= 0 {
		a.PortalIdleTTL = 30 * time.Minute
	}
	if a.ReapInterval <= 0 {
		a.ReapInterval = time.Minute
	}
	if a.ReapInterval > a.PortalIdleTTL {
		a.ReapInterval = a.PortalIdleTTL
	}
}
