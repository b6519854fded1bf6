package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryProvider implements Provider in process memory. Used in tests and
// when running without a database.
type MemoryProvider struct {
	mu       sync.RWMutex
	accounts map[string]memoryAccount

	// ResetRequests records emails SendPasswordReset was called for.
	ResetRequests []string
}

type memoryAccount struct {
	id   uuid.UUID
	hash []byte
}

// NewMemoryProvider creates an empty in-memory identity provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{accounts: make(map[string]memoryAccount)}
}

func (p *MemoryProvider) CreateAccount(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[email]; exists {
		return nil, ErrEmailAlreadyInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	acct := memoryAccount{id: uuid.New(), hash: hash}
	p.accounts[email] = acct

	return &User{ID: acct.id, Email: email}, nil
}

func (p *MemoryProvider) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	p.mu.RLock()
	acct, exists := p.accounts[email]
	p.mu.RUnlock()

	if !exists {
		return nil, ErrUserNotFound
	}

	if bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return nil, ErrWrongPassword
	}

	return &User{ID: acct.id, Email: email}, nil
}

func (p *MemoryProvider) SendPasswordReset(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[email]; !exists {
		return ErrUserNotFound
	}

	p.ResetRequests = append(p.ResetRequests, email)
	return nil
}

// Count returns the number of registered accounts. Test helper.
func (p *MemoryProvider) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.accounts)
}
