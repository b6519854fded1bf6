package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "session:"

// RedisStore persists sessions as JSON blobs under prefixed keys, relying on
// Redis key TTLs for expiry. Redis serializes writes per key, which gives the
// last-write-wins semantics the session model requires.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithOpTimeout bounds each store operation independently of the caller's
// context deadline.
func WithOpTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		prefix:  DefaultKeyPrefix,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeyPrefix returns the prefix session keys are stored under, so the expiry
// reaper can filter keyspace notifications down to session keys.
func (s *RedisStore) KeyPrefix() string {
	return s.prefix
}

// StripKeyPrefix returns the session identifier for a raw Redis key, and
// whether the key belongs to this store.
func (s *RedisStore) StripKeyPrefix(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, s.prefix)
	return id, ok && id != ""
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// A corrupt blob is unusable; treat it the same as absent so the
		// caller re-provisions instead of failing the request.
		return nil, ErrNotFound
	}

	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.client.Expire(ctx, s.prefix+id, ttl).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
