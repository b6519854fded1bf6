package session

import (
	"context"
	"time"
)

// Store persists session records keyed by identifier, each with an
// independent TTL. Absence from the store is equivalent to "session never
// existed". Implementations must be safe for concurrent use; last-write-wins
// on concurrent saves of the same key is acceptable.
type Store interface {
	// Get loads a record. Returns ErrNotFound for absent or expired records
	// and ErrStoreUnavailable when the backend cannot be reached.
	Get(ctx context.Context, id string) (*Session, error)

	// Save writes a record with the given TTL, overwriting any previous
	// version.
	Save(ctx context.Context, sess *Session, ttl time.Duration) error

	// Touch resets the record's TTL without rewriting it (sliding
	// expiration). Returns ErrNotFound if the record no longer exists.
	Touch(ctx context.Context, id string, ttl time.Duration) error

	// Delete removes a record immediately. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context, id string) error
}
