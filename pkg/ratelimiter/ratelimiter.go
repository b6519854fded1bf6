package ratelimiter

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrInvalidConfig = errors.New("ratelimiter.invalid_config")

// Config defines the token bucket parameters applied per key.
type Config struct {
	Capacity       int           `env:"RATELIMIT_CAPACITY" envDefault:"60"`
	RefillRate     int           `env:"RATELIMIT_REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"RATELIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// Result describes the bucket state after a check.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allowed reports whether the request that produced this result may proceed.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long the caller should wait before retrying.
// Returns 0 if the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return time.Until(r.ResetAt)
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

// Limiter is an in-memory token bucket rate limiter keyed by an
// arbitrary string, typically the client IP.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  Config

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCleanupInterval sets how often stale buckets are evicted.
// Set to 0 to disable background cleanup.
func WithCleanupInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		l.cleanupInterval = interval
	}
}

// New creates a token bucket limiter with the given per-key configuration.
func New(config Config, opts ...Option) (*Limiter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		buckets:         make(map[string]*bucket),
		config:          config,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.cleanupInterval > 0 {
		go l.cleanup()
	}

	return l, nil
}

// Allow consumes one token for key and reports the resulting bucket state.
func (l *Limiter) Allow(key string) *Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     l.config.Capacity,
			lastRefill: now,
		}
		l.buckets[key] = b
	}

	// Refill in whole intervals, capped so a long-idle bucket cannot
	// overflow the token count.
	elapsed := now.Sub(b.lastRefill)
	maxIntervals := int64(l.config.Capacity/l.config.RefillRate + 1)
	intervals := int(min(int64(elapsed/l.config.RefillInterval), maxIntervals))
	if intervals > 0 {
		b.tokens = min(b.tokens+intervals*l.config.RefillRate, l.config.Capacity)
		b.lastRefill = now
	}

	b.tokens--
	b.lastAccess = now

	return &Result{
		Limit:     l.config.Capacity,
		Remaining: b.tokens,
		ResetAt:   b.lastRefill.Add(l.config.RefillInterval),
	}
}

// Reset removes the bucket for key, restoring it to full capacity.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Stop terminates the background cleanup goroutine.
func (l *Limiter) Stop() {
	if l.cleanupInterval > 0 {
		close(l.stopCleanup)
	}
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeStale()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) removeStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * l.cleanupInterval)
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
