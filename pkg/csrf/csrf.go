// Package csrf issues and verifies per-session anti-forgery tokens.
//
// Each session carries exactly one active token, stored on the session record
// and rotated every time a protected form is rendered; issuing a new token
// invalidates the previous one. State-changing requests must present the
// current token (hidden form field or header); the comparison is constant
// time and a mismatch rejects the request before any side effect runs.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/sessionforge/authgate/pkg/cookie"
	"github.com/sessionforge/authgate/pkg/session"
)

// tokenBytes is the entropy of each token: 32 bytes = 256 bits.
const tokenBytes = 32

// Config holds CSRF guard configuration.
type Config struct {
	// FieldName is the form field the token is read from.
	FieldName string `env:"CSRF_FIELD_NAME" envDefault:"csrf_token"`

	// HeaderName is checked when the form field is absent.
	HeaderName string `env:"CSRF_HEADER_NAME" envDefault:"X-CSRF-Token"`

	// CookieName is the double-submit cookie the token is mirrored into.
	// The cookie is readable by the page's scripts and SameSite=Lax so the
	// double-submit comparison works across the redirect flows.
	CookieName string `env:"CSRF_COOKIE_NAME" envDefault:"csrf_token"`

	// SecureCookies enables the Secure flag on the token cookie.
	SecureCookies bool `env:"CSRF_SECURE_COOKIES" envDefault:"false"`
}

// DefaultConfig returns the default CSRF configuration.
func DefaultConfig() Config {
	return Config{
		FieldName:  "csrf_token",
		HeaderName: "X-CSRF-Token",
		CookieName: "csrf_token",
	}
}

// Guard issues tokens onto session records and verifies submissions.
type Guard struct {
	sessions *session.Manager
	cookies  *cookie.Manager
	config   Config
}

// New creates a CSRF guard backed by the session manager.
func New(sessions *session.Manager, cookies *cookie.Manager, cfg Config) *Guard {
	return &Guard{
		sessions: sessions,
		cookies:  cookies,
		config:   cfg,
	}
}

// Issue rotates the session's token and persists it, then mirrors it into
// the double-submit cookie. The returned token is embedded in the rendered
// form; the previous token stops verifying the moment this returns.
func (g *Guard) Issue(ctx context.Context, w http.ResponseWriter, sess *session.Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := g.sessions.Mutate(ctx, sess, func(s *session.Session) {
		s.CSRFToken = token
	}); err != nil {
		return "", err
	}

	opts := []cookie.Option{
		cookie.WithPath("/"),
		cookie.WithHTTPOnly(false),
		cookie.WithSameSite(http.SameSiteLaxMode),
	}
	if g.config.SecureCookies {
		opts = append(opts, cookie.WithSecure(true))
	}
	if err := g.cookies.Set(w, g.config.CookieName, token, opts...); err != nil {
		return "", err
	}

	return token, nil
}

// Verify compares the submitted token against the session's current one.
// A missing or mismatched token yields ErrTokenMismatch.
func (g *Guard) Verify(r *http.Request, sess *session.Session) error {
	submitted := g.submittedToken(r)
	if submitted == "" || sess == nil || sess.CSRFToken == "" {
		return ErrTokenMismatch
	}

	if subtle.ConstantTimeCompare([]byte(submitted), []byte(sess.CSRFToken)) != 1 {
		return ErrTokenMismatch
	}

	return nil
}

func (g *Guard) submittedToken(r *http.Request) string {
	if token := r.PostFormValue(g.config.FieldName); token != "" {
		return token
	}
	return r.Header.Get(g.config.HeaderName)
}

// generateToken creates a 256-bit random token in printable encoding.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
