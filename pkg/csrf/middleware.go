package csrf

import (
	"net/http"

	"github.com/sessionforge/authgate/pkg/session"
)

// safeMethods are retrieval-only and exempt from verification.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Middleware verifies the token on every state-changing request before the
// handler runs, so no side effect happens on a forged request.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		sess, _ := session.FromContext(r.Context())
		if err := g.Verify(r, sess); err != nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
