package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sessionforge/authgate/pkg/fingerprint"
)

// Manager owns the session lifecycle: it mints identifiers, loads and saves
// records through the Store, enforces the sliding idle timeout, and is the
// only write path to a session record.
type Manager struct {
	store     Store
	transport Transport
	config    Config
	log       *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithTransport sets a custom transport.
func WithTransport(t Transport) Option {
	return func(m *Manager) { m.transport = t }
}

// WithConfig sets custom configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a session manager. A transport is required; the default
// cookie transport is wired by the caller so cookie secrets never live here.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:  store,
		config: DefaultConfig(),
		log:    slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.transport == nil {
		return nil, ErrNoTransport
	}

	return m, nil
}

// Resolve looks up the session referenced by the request's cookie. If the
// identifier is absent, unknown or expired, a fresh anonymous session is
// minted, its fingerprint bound from the current request, and the cookie
// scheduled on the response. A reachable-store failure is returned as
// ErrStoreUnavailable: the caller must treat the request as unauthenticated.
func (m *Manager) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	id, err := m.transport.GetID(r)
	if err == nil {
		sess, err := m.store.Get(ctx, id)
		switch {
		case err == nil:
			return m.touch(ctx, sess, r)
		case errors.Is(err, ErrNotFound):
			// Expired or never existed: fall through and re-provision
		default:
			return nil, err
		}
	}

	return m.create(ctx, w, r)
}

// touch refreshes the sliding TTL and performs first-touch fingerprint
// binding for records created before the binder ran.
func (m *Manager) touch(ctx context.Context, sess *Session, r *http.Request) (*Session, error) {
	sess.Touch()

	if sess.BindFingerprint(fingerprint.Capture(r)) {
		// First touch: persist the binding together with the refreshed TTL
		if err := m.store.Save(ctx, sess, m.config.TTL); err != nil {
			return nil, err
		}
		return sess, nil
	}

	if err := m.store.Touch(ctx, sess.ID, m.config.TTL); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Record expired between Get and Touch; extremely rare, treat
			// as absent
			return nil, ErrNotFound
		}
		return nil, err
	}

	return sess, nil
}

func (m *Manager) create(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	sess, err := New()
	if err != nil {
		return nil, err
	}

	sess.BindFingerprint(fingerprint.Capture(r))

	if err := m.store.Save(ctx, sess, m.config.TTL); err != nil {
		return nil, err
	}

	if err := m.transport.SetID(w, sess.ID, m.config.TTL); err != nil {
		_ = m.store.Delete(ctx, sess.ID)
		return nil, err
	}

	m.log.DebugContext(ctx, "session created", slog.String("session_id", sess.ID))
	return sess, nil
}

// Mutate applies fn to the record and persists the result. Persistence
// failure surfaces as ErrStoreUnavailable; the triggering request must fail
// rather than proceed believing state was saved.
func (m *Manager) Mutate(ctx context.Context, sess *Session, fn func(*Session)) error {
	fn(sess)
	sess.Touch()
	return m.store.Save(ctx, sess, m.config.TTL)
}

// Authenticate upgrades the session to the given identity. The identifier is
// rotated and the old record deleted, so a pre-login cookie value never
// references an authenticated record (anti-fixation).
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, sess *Session, identity string) error {
	newID, err := generateID()
	if err != nil {
		return err
	}

	oldID := sess.ID
	sess.ID = newID
	sess.Identity = identity
	sess.UserNotFound = false
	sess.ErrorMessage = ""
	sess.Touch()

	if err := m.store.Save(ctx, sess, m.config.TTL); err != nil {
		sess.ID = oldID
		sess.Identity = ""
		return err
	}

	_ = m.store.Delete(ctx, oldID)

	if err := m.transport.SetID(w, sess.ID, m.config.TTL); err != nil {
		return err
	}

	m.log.InfoContext(ctx, "session authenticated", slog.String("identity", identity))
	return nil
}

// Destroy deletes the record from the store immediately and clears the
// cookie. A request reusing the old cookie value afterwards starts over as a
// brand-new anonymous session.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if id, err := m.transport.GetID(r); err == nil && id != "" {
		if err := m.store.Delete(ctx, id); err != nil {
			return err
		}
	}

	return m.transport.ClearID(w)
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.config
}
