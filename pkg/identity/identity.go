// Package identity defines the identity-provider collaborator: credential
// verification and account existence. The session layer wraps a Provider but
// never sees its internals. Every failure is one of the categorized errors
// below, and nothing richer crosses the boundary.
package identity

import (
	"context"
	"errors"
	"regexp"

	"github.com/google/uuid"
)

// Categorized provider failures. Each maps 1:1 to a user-facing flag; no
// provider-internal detail is ever exposed beyond the kind.
var (
	ErrInvalidEmail      = errors.New("identity.invalid_email")
	ErrUserNotFound      = errors.New("identity.user_not_found")
	ErrWrongPassword     = errors.New("identity.wrong_password")
	ErrWeakPassword      = errors.New("identity.weak_password")
	ErrEmailAlreadyInUse = errors.New("identity.email_already_in_use")
	ErrUnavailable       = errors.New("identity.unavailable")
)

// User is a verified identity.
type User struct {
	ID    uuid.UUID
	Email string
}

// Provider verifies credentials and manages account existence.
type Provider interface {
	// CreateAccount registers a new account. Fails with ErrInvalidEmail,
	// ErrWeakPassword or ErrEmailAlreadyInUse.
	CreateAccount(ctx context.Context, email, password string) (*User, error)

	// VerifyCredentials checks an email/password pair. Fails with
	// ErrInvalidEmail, ErrUserNotFound or ErrWrongPassword.
	VerifyCredentials(ctx context.Context, email, password string) (*User, error)

	// SendPasswordReset dispatches a reset message to the account's email.
	// Fails with ErrUserNotFound when no such account exists.
	SendPasswordReset(ctx context.Context, email string) error
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const minPasswordLength = 8

// ValidateEmail reports whether the address has a plausible shape.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
