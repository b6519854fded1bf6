package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/sessionforge/authgate/pkg/fingerprint"
)

// Session is the server-side record a session identifier points at.
//
// The identifier itself is opaque and carries no data; everything lives here,
// serialized into the store. Handlers never write fields directly; all
// mutation goes through Manager.Mutate so every change is persisted or fails
// loudly.
type Session struct {
	// ID is the opaque session identifier (32 bytes crypto/rand, base64url).
	// Never derived from user-controlled input.
	ID string `json:"id"`

	// Identity holds the verified account identifier (email) once
	// authenticated. Empty means anonymous. Only the auth flow controller
	// sets or clears it.
	Identity string `json:"identity,omitempty"`

	// Fingerprint is bound at first touch and immutable afterwards.
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`

	// CSRFToken is the single active anti-forgery token for this session,
	// rotated each time a protected form is rendered.
	CSRFToken string `json:"csrf_token,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// One-shot flags carried across a redirect and cleared on read.
	UserNotFound bool   `json:"user_not_found,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// New creates an anonymous session with a freshly generated identifier.
func New() (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		ID:             id,
		CreatedAt:      now,
		LastAccessedAt: now,
	}, nil
}

// IsAuthenticated reports whether the session carries a verified identity.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Identity != ""
}

// BindFingerprint sets the fingerprint if it has not been set yet.
// A second call is a no-op; the binding is immutable for the record's life.
func (s *Session) BindFingerprint(fp fingerprint.Fingerprint) bool {
	if !s.Fingerprint.IsZero() {
		return false
	}
	s.Fingerprint = fp
	return true
}

// Touch updates the last-access timestamp.
func (s *Session) Touch() {
	s.LastAccessedAt = time.Now()
}

// ConsumeFlags returns the transient flags and clears them, so each flag is
// rendered at most once after the redirect that set it.
func (s *Session) ConsumeFlags() (userNotFound bool, errorMessage string) {
	userNotFound, errorMessage = s.UserNotFound, s.ErrorMessage
	s.UserNotFound = false
	s.ErrorMessage = ""
	return userNotFound, errorMessage
}

// generateID creates a cryptographically secure session identifier:
// 32 random bytes (256 bits) encoded as URL-safe base64 without padding.
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrIDGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
