// Package fingerprint binds a session to the client that created it.
//
// A fingerprint is the tuple of the client's network origin and its declared
// User-Agent string, captured once when a session is first touched. Any later
// request presenting the same session identifier from a different tuple is
// treated as a possible hijack and denied access; the comparison is exact,
// field by field, with no fuzzy matching.
package fingerprint

import (
	"errors"
	"net/http"

	"github.com/sessionforge/authgate/pkg/clientip"
)

// ErrMismatch indicates the current request does not match the fingerprint
// bound to the session.
var ErrMismatch = errors.New("fingerprint.mismatch")

// Fingerprint identifies the client a session was issued to.
type Fingerprint struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// Capture builds a fingerprint from the current request. The IP is resolved
// through proxy headers the same way the rest of the application sees it.
func Capture(r *http.Request) Fingerprint {
	return Fingerprint{
		IP:        clientip.GetIP(r),
		UserAgent: r.UserAgent(),
	}
}

// Match reports whether both tuple fields are identical.
func (f Fingerprint) Match(other Fingerprint) bool {
	return f.IP == other.IP && f.UserAgent == other.UserAgent
}

// IsZero reports whether the fingerprint has not been captured yet.
func (f Fingerprint) IsZero() bool {
	return f.IP == "" && f.UserAgent == ""
}

// Verify compares the stored fingerprint against the current request.
func Verify(r *http.Request, stored Fingerprint) error {
	if !stored.Match(Capture(r)) {
		return ErrMismatch
	}
	return nil
}
