package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reaper listens for Redis keyspace expiry notifications and runs side-effect
// cleanup when a session record naturally disappears. Expiry of a key the
// reaper has no further action for is a no-op, not an error.
//
// The notification channel is best-effort: on disconnect the reaper
// resubscribes with exponential backoff rather than silently stopping.
type Reaper struct {
	client   *redis.Client
	store    *RedisStore
	log      *slog.Logger
	onExpire func(ctx context.Context, id string)

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// ReaperOption configures the Reaper.
type ReaperOption func(*Reaper)

// WithReaperLogger sets the logger.
func WithReaperLogger(log *slog.Logger) ReaperOption {
	return func(r *Reaper) { r.log = log }
}

// WithOnExpire registers the cleanup callback invoked with the expired
// session identifier.
func WithOnExpire(fn func(ctx context.Context, id string)) ReaperOption {
	return func(r *Reaper) { r.onExpire = fn }
}

// WithBackoff overrides the resubscribe backoff bounds.
func WithBackoff(initial, max time.Duration) ReaperOption {
	return func(r *Reaper) {
		if initial > 0 {
			r.initialBackoff = initial
		}
		if max > 0 {
			r.maxBackoff = max
		}
	}
}

// NewReaper creates an expiry reaper bound to the store's key prefix.
func NewReaper(client *redis.Client, store *RedisStore, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		client:         client,
		store:          store,
		log:            slog.New(slog.DiscardHandler),
		initialBackoff: time.Second,
		maxBackoff:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run subscribes to the expired-key event channel for the client's database
// and blocks until ctx is cancelled. It is intended to run on its own
// goroutine, decoupled from request handling.
func (r *Reaper) Run(ctx context.Context) error {
	// Keyspace notifications are off by default; enabling them is best
	// effort; managed Redis deployments often disallow CONFIG SET and
	// require the flag to be set out of band.
	if err := r.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		r.log.WarnContext(ctx, "could not enable keyspace notifications", slog.Any("error", err))
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", r.client.Options().DB)
	backoff := r.initialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.consume(ctx, channel)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.log.WarnContext(ctx, "expiry subscription lost, resubscribing",
			slog.Any("error", err),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, r.maxBackoff)
	}
}

// consume holds one subscription until it fails or ctx is cancelled.
func (r *Reaper) consume(ctx context.Context, channel string) error {
	pubsub := r.client.Subscribe(ctx, channel)
	defer func() { _ = pubsub.Close() }()

	// Confirm the subscription before reading messages
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	r.log.InfoContext(ctx, "subscribed to session expiry events", slog.String("channel", channel))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}

		id, ok := r.store.StripKeyPrefix(msg.Payload)
		if !ok {
			// Some other key class expired; nothing to do
			continue
		}

		r.log.DebugContext(ctx, "session expired", slog.String("session_id", id))
		if r.onExpire != nil {
			r.onExpire(ctx, id)
		}
	}
}
