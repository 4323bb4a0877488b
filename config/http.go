package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for portal and OAuth cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// LoginRatePerMinute limits password login attempts per client address.
	LoginRatePerMinute int `env:"HTTP_LOGIN_RATE_PER_MINUTE" envDefault:"10"`

	// LoginBurst is the number of login attempts allowed in a burst.
	LoginBurst int `env:"HTTP_LOGIN_BURST" envDefault:"5"`
	// StreamHeartbeat is the keep-alive comment interval on the event stream.
	StreamHeartbeat time.Duration `env:"HTTP_STREAM_HEARTBEAT" envDefault:"25s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.LoginRatePerMinute <= 0 {
		h.LoginRatePerMinute = 10
	}
	if h.LoginBurst <= 0 {
		h.LoginBurst = 1
	}
	if h.StreamHeartbeat <= 0 {
		h.StreamHeartbeat = 25 * time.Second
	}
}
