package session

import "time"

// Config holds session manager configuration. It is passed explicitly at
// construction; nothing in this package reads process-wide state.
type Config struct {
	// CookieName is the name of the session cookie.
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`

	// TTL is the sliding idle window: every successful load pushes the
	// record's expiry this far into the future.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// SecureCookies enables the Secure flag on the session cookie.
	// Required in production.
	SecureCookies bool `env:"SESSION_SECURE_COOKIES" envDefault:"false"`

	// LoginPath is where requests failing authentication or fingerprint
	// checks are redirected.
	LoginPath string `env:"SESSION_LOGIN_PATH" envDefault:"/login"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		CookieName:    "sid",
		TTL:           24 * time.Hour,
		SecureCookies: false,
		LoginPath:     "/login",
	}
}
