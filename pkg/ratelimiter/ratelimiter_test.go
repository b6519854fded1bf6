package ratelimiter_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/authgate/pkg/ratelimiter"
)

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config ratelimiter.Config
	}{
		{"zero capacity", ratelimiter.Config{Capacity: 0, RefillRate: 1, RefillInterval: time.Second}},
		{"zero refill rate", ratelimiter.Config{Capacity: 10, RefillRate: 0, RefillInterval: time.Second}},
		{"zero interval", ratelimiter.Config{Capacity: 10, RefillRate: 1, RefillInterval: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ratelimiter.New(tt.config)
			require.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
		})
	}
}

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()

	l, err := ratelimiter.New(ratelimiter.Config{
		Capacity:       3,
		RefillRate:     1,
		RefillInterval: time.Hour,
	}, ratelimiter.WithCleanupInterval(0))
	require.NoError(t, err)

	for i := range 3 {
		result := l.Allow("10.0.0.1")
		assert.True(t, result.Allowed(), "request %d should be allowed", i+1)
	}

	result := l.Allow("10.0.0.1")
	assert.False(t, result.Allowed())
	assert.Positive(t, result.RetryAfter())

	// Other keys are independent buckets.
	assert.True(t, l.Allow("10.0.0.2").Allowed())
}

func TestLimiter_Refill(t *testing.T) {
	t.Parallel()

	l, err := ratelimiter.New(ratelimiter.Config{
		Capacity:       2,
		RefillRate:     2,
		RefillInterval: 20 * time.Millisecond,
	}, ratelimiter.WithCleanupInterval(0))
	require.NoError(t, err)

	l.Allow("k")
	l.Allow("k")
	require.False(t, l.Allow("k").Allowed())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("k").Allowed())
}

func TestLimiter_Reset(t *testing.T) {
	t.Parallel()

	l, err := ratelimiter.New(ratelimiter.Config{
		Capacity:       1,
		RefillRate:     1,
		RefillInterval: time.Hour,
	}, ratelimiter.WithCleanupInterval(0))
	require.NoError(t, err)

	require.True(t, l.Allow("k").Allowed())
	require.False(t, l.Allow("k").Allowed())

	l.Reset("k")
	assert.True(t, l.Allow("k").Allowed())
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	l, err := ratelimiter.New(ratelimiter.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: time.Hour,
	}, ratelimiter.WithCleanupInterval(0))
	require.NoError(t, err)

	handler := ratelimiter.Middleware(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do("192.168.1.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	do("192.168.1.1")
	rec = do("192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// A different client IP still has a full bucket.
	assert.Equal(t, http.StatusOK, do("192.168.1.2").Code)
}
