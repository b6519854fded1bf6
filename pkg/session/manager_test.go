package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/authgate/pkg/cookie"
	"github.com/sessionforge/authgate/pkg/session"
)

func setupManager(t *testing.T) (*session.Manager, *session.MemoryStore) {
	t.Helper()

	cookieMgr, err := cookie.New([]string{"test-secret-key-that-is-long-enough"})
	require.NoError(t, err)

	store := session.NewMemoryStore()
	mgr, err := session.NewManager(store,
		session.WithTransport(session.NewCookieTransport(cookieMgr, "test-sid", false)),
		session.WithConfig(session.Config{
			CookieName: "test-sid",
			TTL:        24 * time.Hour,
			LoginPath:  "/login",
		}),
	)
	require.NoError(t, err)

	return mgr, store
}

func withCookies(t *testing.T, w *httptest.ResponseRecorder, r *http.Request) *http.Request {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestManager_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("creates session for fresh request", func(t *testing.T) {
		t.Parallel()
		mgr, _ := setupManager(t)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.7:1000"
		r.Header.Set("User-Agent", "agent-a")

		sess, err := mgr.Resolve(context.Background(), w, r)
		require.NoError(t, err)
		assert.False(t, sess.IsAuthenticated())
		assert.NotEmpty(t, sess.ID)

		// Fingerprint is bound at first touch
		assert.Equal(t, "203.0.113.7", sess.Fingerprint.IP)
		assert.Equal(t, "agent-a", sess.Fingerprint.UserAgent)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "test-sid", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
		// Cookie value is opaque, never the raw identifier
		assert.NotEqual(t, sess.ID, cookies[0].Value)
	})

	t.Run("returns existing session on follow-up", func(t *testing.T) {
		t.Parallel()
		mgr, _ := setupManager(t)

		w1 := httptest.NewRecorder()
		r1 := httptest.NewRequest("GET", "/", nil)
		sess1, err := mgr.Resolve(context.Background(), w1, r1)
		require.NoError(t, err)

		w2 := httptest.NewRecorder()
		r2 := withCookies(t, w1, httptest.NewRequest("GET", "/", nil))

		sess2, err := mgr.Resolve(context.Background(), w2, r2)
		require.NoError(t, err)
		assert.Equal(t, sess1.ID, sess2.ID)
		assert.Empty(t, w2.Result().Cookies())
	})

	t.Run("re-provisions on unknown cookie", func(t *testing.T) {
		t.Parallel()
		mgr, _ := setupManager(t)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "test-sid", Value: "garbage"})

		sess, err := mgr.Resolve(context.Background(), w, r)
		require.NoError(t, err)
		assert.NotEmpty(t, sess.ID)
		assert.Len(t, w.Result().Cookies(), 1)
	})

	t.Run("fingerprint survives subsequent requests unchanged", func(t *testing.T) {
		t.Parallel()
		mgr, store := setupManager(t)

		w1 := httptest.NewRecorder()
		r1 := httptest.NewRequest("GET", "/", nil)
		r1.RemoteAddr = "203.0.113.7:1000"
		r1.Header.Set("User-Agent", "agent-a")
		sess1, err := mgr.Resolve(context.Background(), w1, r1)
		require.NoError(t, err)

		// Same cookie from a different client tuple: binding must not move
		w2 := httptest.NewRecorder()
		r2 := withCookies(t, w1, httptest.NewRequest("GET", "/", nil))
		r2.RemoteAddr = "198.51.100.1:2000"
		r2.Header.Set("User-Agent", "agent-b")
		sess2, err := mgr.Resolve(context.Background(), w2, r2)
		require.NoError(t, err)
		assert.Equal(t, sess1.Fingerprint, sess2.Fingerprint)

		stored, err := store.Get(context.Background(), sess1.ID)
		require.NoError(t, err)
		assert.Equal(t, sess1.Fingerprint, stored.Fingerprint)
	})
}

func TestManager_Mutate(t *testing.T) {
	t.Parallel()

	mgr, store := setupManager(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	sess, err := mgr.Resolve(context.Background(), w, r)
	require.NoError(t, err)

	err = mgr.Mutate(context.Background(), sess, func(s *session.Session) {
		s.ErrorMessage = "Invalid email or password"
	})
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Invalid email or password", stored.ErrorMessage)
}

func TestManager_Authenticate(t *testing.T) {
	t.Parallel()

	mgr, store := setupManager(t)
	ctx := context.Background()

	w1 := httptest.NewRecorder()
	r1 := httptest.NewRequest("GET", "/", nil)
	sess, err := mgr.Resolve(ctx, w1, r1)
	require.NoError(t, err)

	oldID := sess.ID
	sess.ErrorMessage = "stale"

	w2 := httptest.NewRecorder()
	require.NoError(t, mgr.Authenticate(ctx, w2, sess, "user@example.com"))

	assert.NotEqual(t, oldID, sess.ID)
	assert.True(t, sess.IsAuthenticated())
	assert.Empty(t, sess.ErrorMessage)

	// Old identifier no longer references any record (anti-fixation)
	_, err = store.Get(ctx, oldID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	stored, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", stored.Identity)

	// New cookie was issued
	assert.Len(t, w2.Result().Cookies(), 1)
}

func TestManager_Destroy(t *testing.T) {
	t.Parallel()

	mgr, store := setupManager(t)
	ctx := context.Background()

	w1 := httptest.NewRecorder()
	r1 := httptest.NewRequest("GET", "/", nil)
	sess, err := mgr.Resolve(ctx, w1, r1)
	require.NoError(t, err)

	w2 := httptest.NewRecorder()
	r2 := withCookies(t, w1, httptest.NewRequest("POST", "/logout", nil))
	require.NoError(t, mgr.Destroy(ctx, w2, r2))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Reusing the pre-logout cookie starts a brand-new anonymous session
	w3 := httptest.NewRecorder()
	r3 := withCookies(t, w1, httptest.NewRequest("GET", "/", nil))
	fresh, err := mgr.Resolve(ctx, w3, r3)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, fresh.ID)
	assert.False(t, fresh.IsAuthenticated())
}

// unavailableStore fails every operation like an unreachable Redis.
type unavailableStore struct{}

func (unavailableStore) Get(context.Context, string) (*session.Session, error) {
	return nil, errors.Join(session.ErrStoreUnavailable, errors.New("dial tcp: connection refused"))
}

func (unavailableStore) Save(context.Context, *session.Session, time.Duration) error {
	return session.ErrStoreUnavailable
}

func (unavailableStore) Touch(context.Context, string, time.Duration) error {
	return session.ErrStoreUnavailable
}

func (unavailableStore) Delete(context.Context, string) error {
	return session.ErrStoreUnavailable
}

func TestManager_StoreUnavailable(t *testing.T) {
	t.Parallel()

	cookieMgr, err := cookie.New([]string{"test-secret-key-that-is-long-enough"})
	require.NoError(t, err)

	mgr, err := session.NewManager(unavailableStore{},
		session.WithTransport(session.NewCookieTransport(cookieMgr, "test-sid", false)),
	)
	require.NoError(t, err)

	t.Run("resolve surfaces the failure", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)

		_, err := mgr.Resolve(context.Background(), w, r)
		assert.ErrorIs(t, err, session.ErrStoreUnavailable)
	})

	t.Run("middleware degrades to anonymous", func(t *testing.T) {
		t.Parallel()
		var sawSession bool
		handler := mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, sawSession = session.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, sawSession)
	})

	t.Run("protected resource redirects instead of crashing", func(t *testing.T) {
		t.Parallel()
		handler := mgr.Middleware(mgr.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("protected handler must not run")
		})))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Result().Header.Get("Location"))
	})
}

func TestManager_RequireAuth(t *testing.T) {
	t.Parallel()

	mgr, _ := setupManager(t)
	ctx := context.Background()

	protected := mgr.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	newAuthedSession := func(t *testing.T, ip, agent string) (*session.Session, *httptest.ResponseRecorder) {
		t.Helper()
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = ip + ":1000"
		r.Header.Set("User-Agent", agent)
		sess, err := mgr.Resolve(ctx, w, r)
		require.NoError(t, err)
		require.NoError(t, mgr.Authenticate(ctx, w, sess, "user@example.com"))
		return sess, w
	}

	t.Run("authenticated with matching fingerprint passes", func(t *testing.T) {
		t.Parallel()
		sess, _ := newAuthedSession(t, "203.0.113.7", "agent-a")

		r := httptest.NewRequest("GET", "/protected", nil)
		r.RemoteAddr = "203.0.113.7:9999"
		r.Header.Set("User-Agent", "agent-a")
		r = r.WithContext(session.WithSession(r.Context(), sess))

		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("fingerprint mismatch redirects regardless of identity", func(t *testing.T) {
		t.Parallel()
		sess, _ := newAuthedSession(t, "203.0.113.7", "agent-a")

		r := httptest.NewRequest("GET", "/protected", nil)
		r.RemoteAddr = "198.51.100.1:9999"
		r.Header.Set("User-Agent", "agent-a")
		r = r.WithContext(session.WithSession(r.Context(), sess))

		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Result().Header.Get("Location"))

		// Session survives the denial; only access is refused
		assert.True(t, sess.IsAuthenticated())
	})

	t.Run("anonymous session redirects", func(t *testing.T) {
		t.Parallel()
		sess, err := session.New()
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/protected", nil)
		r = r.WithContext(session.WithSession(r.Context(), sess))

		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusSeeOther, w.Code)
	})
}
