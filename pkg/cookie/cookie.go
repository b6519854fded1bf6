// Package cookie manages HTTP cookies with optional HMAC signing and AES-GCM
// encryption. Multiple secrets are supported so keys can be rotated without
// invalidating cookies issued under the previous secret.
package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

const minSecretLength = 32

// Manager signs, encrypts and writes cookies using a fixed set of secrets.
// The first secret is used for writing; all secrets are tried when reading.
type Manager struct {
	secrets  []string
	defaults Options
}

// New creates a Manager. At least one secret of minSecretLength characters
// is required; shorter secrets cannot key AES-256.
func New(secrets []string, opts ...Option) (*Manager, error) {
	secrets = slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}

	for i, s := range secrets {
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need at least %d", ErrSecretTooShort, i, len(s), minSecretLength)
		}
	}

	defaults := Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	defaults = applyOptions(defaults, opts)

	return &Manager{secrets: secrets, defaults: defaults}, nil
}

// Set writes a plain cookie with the manager defaults applied.
func (m *Manager) Set(w http.ResponseWriter, name, value string, opts ...Option) error {
	options := applyOptions(m.defaults, opts)

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   options.MaxAge,
		Secure:   options.Secure,
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
	})
	return nil
}

// Get returns the raw cookie value.
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	return c.Value, nil
}

// Delete expires the named cookie on the client.
func (m *Manager) Delete(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     m.defaults.Path,
		Domain:   m.defaults.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: m.defaults.HttpOnly,
		SameSite: m.defaults.SameSite,
		Secure:   m.defaults.Secure,
	})
}

// SetSigned writes a cookie whose value carries an HMAC-SHA256 signature.
func (m *Manager) SetSigned(w http.ResponseWriter, name, value string, opts ...Option) error {
	return m.Set(w, name, m.sign(value), opts...)
}

// GetSigned reads a signed cookie and verifies its signature.
func (m *Manager) GetSigned(r *http.Request, name string) (string, error) {
	signed, err := m.Get(r, name)
	if err != nil {
		return "", err
	}
	return m.verify(signed)
}

// SetEncrypted writes a cookie whose value is AES-GCM encrypted.
func (m *Manager) SetEncrypted(w http.ResponseWriter, name, value string, opts ...Option) error {
	encrypted, err := m.encrypt(value)
	if err != nil {
		return err
	}
	return m.Set(w, name, encrypted, opts...)
}

// GetEncrypted reads and decrypts an encrypted cookie.
func (m *Manager) GetEncrypted(r *http.Request, name string) (string, error) {
	encrypted, err := m.Get(r, name)
	if err != nil {
		return "", err
	}
	return m.decrypt(encrypted)
}

func (m *Manager) sign(value string) string {
	mac := hmac.New(sha256.New, []byte(m.secrets[0]))
	mac.Write([]byte(value))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return base64.URLEncoding.EncodeToString([]byte(value)) + "|" + signature
}

func (m *Manager) verify(signed string) (string, error) {
	parts := strings.SplitN(signed, "|", 2)
	if len(parts) != 2 {
		return "", ErrInvalidFormat
	}

	value, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidFormat
	}

	// Try all secrets so old cookies remain valid during key rotation
	for _, secret := range m.secrets {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(value)
		expected := base64.URLEncoding.EncodeToString(mac.Sum(nil))

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) == 1 {
			return string(value), nil
		}
	}

	return "", ErrInvalidSignature
}

func (m *Manager) encrypt(value string) (string, error) {
	// AES-256 requires exactly 32 bytes for the key
	block, err := aes.NewCipher([]byte(m.secrets[0][:32]))
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Nonce is prepended so the cookie is self-contained
	ciphertext := gcm.Seal(nonce, nonce, []byte(value), nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func (m *Manager) decrypt(encrypted string) (string, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrInvalidFormat
	}

	for _, secret := range m.secrets {
		block, err := aes.NewCipher([]byte(secret[:32]))
		if err != nil {
			continue
		}

		gcm, err := cipher.NewGCM(block)
		if err != nil {
			continue
		}

		if len(ciphertext) < gcm.NonceSize() {
			continue
		}

		nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
		if plaintext, err := gcm.Open(nil, nonce, sealed, nil); err == nil {
			return string(plaintext), nil
		}
	}

	return "", ErrDecryptionFailed
}
