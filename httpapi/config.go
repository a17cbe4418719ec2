package httpapi

import (
	"net/http"
	"strings"
	"time"
)

// Config controls cookies, CORS and debug behavior of the HTTP surface.
type Config struct {
	CookieSecure bool
	// CookieSameSite is lax, strict or none.
	CookieSameSite      string
	CookieDomain        string
	AccessCookieMaxAge  time.Duration
	RefreshCookieMaxAge time.Duration

	// DebugEchoToken returns raw reset and 2FA-disable tokens in responses.
	// Local development only.
	DebugEchoToken bool

	// AllowOrigins feeds CORS and the websocket origin check. Empty allows
	// same-origin requests only.
	AllowOrigins []string

	WSWriteTimeout time.Duration
}

// DefaultConfig returns cookie lifetimes matching the default token TTLs.
func DefaultConfig() Config {
	return Config{
		CookieSameSite:      "lax",
		AccessCookieMaxAge:  15 * time.Minute,
		RefreshCookieMaxAge: 30 * 24 * time.Hour,
		WSWriteTimeout:      5 * time.Second,
	}
}

func (c Config) sameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (c Config) originAllowed(origin string) bool {
	for _, o := range c.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
