package ratelimiter

import (
	"net/http"
	"strconv"

	"github.com/sessionforge/authgate/pkg/clientip"
)

// KeyFunc extracts a rate limit key from the request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys rate limits on the resolved client IP.
func ByClientIP(r *http.Request) string {
	return clientip.GetIP(r)
}

// Middleware rejects requests with 429 once the caller's bucket is drained.
func Middleware(l *Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := l.Allow(keyFunc(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed() {
				if retryAfter := int(result.RetryAfter().Seconds()); retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
