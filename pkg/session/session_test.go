package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/authgate/pkg/fingerprint"
	"github.com/sessionforge/authgate/pkg/session"
)

func TestNew(t *testing.T) {
	t.Parallel()

	sess, err := session.New()
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.GreaterOrEqual(t, len(sess.ID), 43) // 32 bytes base64url, no padding
	assert.False(t, sess.IsAuthenticated())
	assert.True(t, sess.Fingerprint.IsZero())
	assert.False(t, sess.CreatedAt.IsZero())

	// Identifiers must be unique per session
	other, err := session.New()
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, other.ID)
}

func TestBindFingerprint(t *testing.T) {
	t.Parallel()

	sess, err := session.New()
	require.NoError(t, err)

	first := fingerprint.Fingerprint{IP: "203.0.113.7", UserAgent: "agent-a"}
	assert.True(t, sess.BindFingerprint(first))
	assert.Equal(t, first, sess.Fingerprint)

	// Second write attempt is a no-op: the binding is immutable
	second := fingerprint.Fingerprint{IP: "198.51.100.1", UserAgent: "agent-b"}
	assert.False(t, sess.BindFingerprint(second))
	assert.Equal(t, first, sess.Fingerprint)
}

func TestIsAuthenticated(t *testing.T) {
	t.Parallel()

	sess, err := session.New()
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated())

	sess.Identity = "user@example.com"
	assert.True(t, sess.IsAuthenticated())
}

func TestConsumeFlags(t *testing.T) {
	t.Parallel()

	sess, err := session.New()
	require.NoError(t, err)

	sess.UserNotFound = true
	sess.ErrorMessage = "Error"

	userNotFound, errorMessage := sess.ConsumeFlags()
	assert.True(t, userNotFound)
	assert.Equal(t, "Error", errorMessage)

	// Flags are one-shot: cleared by the read
	userNotFound, errorMessage = sess.ConsumeFlags()
	assert.False(t, userNotFound)
	assert.Empty(t, errorMessage)
}
