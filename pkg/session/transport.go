package session

import (
	"net/http"
	"time"

	"github.com/sessionforge/authgate/pkg/cookie"
)

// Transport moves the session identifier between client and server.
type Transport interface {
	// GetID extracts the session identifier from the request.
	GetID(r *http.Request) (string, error)

	// SetID sends the identifier in the response.
	SetID(w http.ResponseWriter, id string, ttl time.Duration) error

	// ClearID removes the identifier from the response.
	ClearID(w http.ResponseWriter) error
}

// CookieTransport carries the identifier in an encrypted cookie. The cookie
// value is opaque: it holds the identifier only, never session data.
type CookieTransport struct {
	cookies    *cookie.Manager
	cookieName string
	secure     bool
}

// NewCookieTransport creates a cookie-based transport.
func NewCookieTransport(cookies *cookie.Manager, cookieName string, secure bool) *CookieTransport {
	return &CookieTransport{
		cookies:    cookies,
		cookieName: cookieName,
		secure:     secure,
	}
}

func (t *CookieTransport) GetID(r *http.Request) (string, error) {
	id, err := t.cookies.GetEncrypted(r, t.cookieName)
	if err != nil {
		// Missing, tampered and undecryptable all collapse to "no session"
		return "", ErrNotFound
	}
	return id, nil
}

func (t *CookieTransport) SetID(w http.ResponseWriter, id string, ttl time.Duration) error {
	opts := []cookie.Option{
		cookie.WithPath("/"),
		cookie.WithMaxAge(int(ttl.Seconds())),
		cookie.WithHTTPOnly(true),
		cookie.WithSameSite(http.SameSiteStrictMode),
	}
	if t.secure {
		opts = append(opts, cookie.WithSecure(true))
	}

	return t.cookies.SetEncrypted(w, t.cookieName, id, opts...)
}

func (t *CookieTransport) ClearID(w http.ResponseWriter) error {
	t.cookies.Delete(w, t.cookieName)
	return nil
}
