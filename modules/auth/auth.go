// Package auth is the flow controller driving login, signup, logout and
// password-reset transitions. It consumes the identity provider and mutates
// session state only through the session manager; provider failures are
// mapped to user-facing flags and never reach the rendering layer raw.
package auth

import (
	"errors"
	"html/template"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/sessionforge/authgate/pkg/csrf"
	"github.com/sessionforge/authgate/pkg/identity"
	"github.com/sessionforge/authgate/pkg/session"
)

// Service wires the auth flow handlers to their collaborators.
type Service struct {
	sessions *session.Manager
	guard    *csrf.Guard
	provider identity.Provider
	log      *slog.Logger
	tmpl     *template.Template
}

// NewService creates the auth flow controller.
func NewService(sessions *session.Manager, guard *csrf.Guard, provider identity.Provider, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		sessions: sessions,
		guard:    guard,
		provider: provider,
		log:      log,
		tmpl:     parseTemplates(),
	}
}

// Router returns the full HTTP surface. Every request passes through the
// session middleware; every state-changing request additionally passes the
// anti-forgery check before its handler runs.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(s.sessions.Middleware)
	r.Use(s.guard.Middleware)

	r.Get("/", s.handleHome)
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Get("/signup", s.handleSignupPage)
	r.Post("/signup", s.handleSignup)
	r.Get("/forgot-password", s.handleForgotPasswordPage)
	r.Post("/forgot-password", s.handleForgotPassword)
	r.Get("/forgot-password-success", s.handleForgotPasswordSuccess)
	r.Post("/logout", s.handleLogout)

	r.Group(func(protected chi.Router) {
		protected.Use(s.sessions.RequireAuth)
		protected.Get("/protected", s.handleProtected)
		protected.Post("/update/toggle-checkbox", s.handleToggleCheckbox)
	})

	return r
}

// flagMessage maps categorized provider failures to the short messages the
// forms display. Anything uncategorized collapses to a generic "Error".
func flagMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidEmail):
		return "Invalid email"
	case errors.Is(err, identity.ErrUserNotFound), errors.Is(err, identity.ErrWrongPassword):
		return "Invalid email or password"
	case errors.Is(err, identity.ErrWeakPassword):
		return "Password is too weak"
	case errors.Is(err, identity.ErrEmailAlreadyInUse):
		return "Email already in use"
	default:
		return "Error"
	}
}
