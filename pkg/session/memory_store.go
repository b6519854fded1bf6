package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Used in tests and as a
// fallback when no Redis is configured in development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	sess      Session
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	rec, exists := m.records[id]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}

	if time.Now().After(rec.expiresAt) {
		m.mu.Lock()
		delete(m.records, id)
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	sessCopy := rec.sess
	return &sessCopy, nil
}

func (m *MemoryStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[sess.ID] = memoryRecord{sess: *sess, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[id]
	if !exists || time.Now().After(rec.expiresAt) {
		return ErrNotFound
	}

	rec.expiresAt = time.Now().Add(ttl)
	m.records[id] = rec
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, id)
	return nil
}

// Len returns the number of live records. Test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
