package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sessionforge/authgate/pkg/fingerprint"
)

// Middleware resolves or creates the request's session and stores it in the
// request context. When the store is unreachable the request proceeds with no
// session at all, so downstream auth checks see an anonymous request,
// never a falsely authenticated one.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Resolve(r.Context(), w, r)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				m.log.ErrorContext(r.Context(), "session store unavailable, degrading to anonymous", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			m.log.ErrorContext(r.Context(), "session resolution failed", slog.Any("error", err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireAuth guards protected resources: the session must carry a verified
// identity and the request must match the bound fingerprint. Either failure
// redirects to the login page. A fingerprint mismatch denies access but does
// not destroy the session; the change may be a benign client update.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext(r.Context())
		if !ok || !sess.IsAuthenticated() {
			http.Redirect(w, r, m.config.LoginPath, http.StatusSeeOther)
			return
		}

		if err := fingerprint.Verify(r, sess.Fingerprint); err != nil {
			m.log.WarnContext(r.Context(), "fingerprint mismatch on protected resource",
				slog.String("identity", sess.Identity))
			http.Redirect(w, r, m.config.LoginPath, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}
