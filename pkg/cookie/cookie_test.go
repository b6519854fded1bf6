package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/authgate/pkg/cookie"
)

const testSecret = "test-secret-key-that-is-long-enough"

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires a secret", func(t *testing.T) {
		t.Parallel()
		_, err := cookie.New(nil)
		assert.ErrorIs(t, err, cookie.ErrNoSecret)

		_, err = cookie.New([]string{""})
		assert.ErrorIs(t, err, cookie.ErrNoSecret)
	})

	t.Run("rejects short secrets", func(t *testing.T) {
		t.Parallel()
		_, err := cookie.New([]string{"too-short"})
		assert.ErrorIs(t, err, cookie.ErrSecretTooShort)
	})
}

func TestSignedRoundTrip(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{testSecret})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, m.SetSigned(w, "sid", "some-value"))

	r := httptest.NewRequest("GET", "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	got, err := m.GetSigned(r, "sid")
	require.NoError(t, err)
	assert.Equal(t, "some-value", got)
}

func TestSignedTamperDetection(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{testSecret})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: "sid", Value: "dGFtcGVyZWQ=|bogus-signature"})

	_, err = m.GetSigned(r, "sid")
	assert.ErrorIs(t, err, cookie.ErrInvalidSignature)
}

func TestEncryptedRoundTrip(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{testSecret})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, m.SetEncrypted(w, "sid", "opaque-token"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotContains(t, cookies[0].Value, "opaque-token")

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(cookies[0])

	got, err := m.GetEncrypted(r, "sid")
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", got)
}

func TestKeyRotation(t *testing.T) {
	t.Parallel()

	oldSecret := "old-secret-key-that-is-long-enough-1"
	newSecret := "new-secret-key-that-is-long-enough-2"

	oldMgr, err := cookie.New([]string{oldSecret})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, oldMgr.SetEncrypted(w, "sid", "survives-rotation"))

	// New manager lists the new secret first but still knows the old one
	rotated, err := cookie.New([]string{newSecret, oldSecret})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	got, err := rotated.GetEncrypted(r, "sid")
	require.NoError(t, err)
	assert.Equal(t, "survives-rotation", got)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{testSecret})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.Delete(w, "sid")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestDefaultAttributes(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{testSecret})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, m.Set(w, "sid", "v"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, "/", cookies[0].Path)
}
