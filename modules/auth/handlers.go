package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sessionforge/authgate/pkg/identity"
	"github.com/sessionforge/authgate/pkg/session"
)

func (s *Service) handleHome(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	data := viewData{}
	if sess.IsAuthenticated() {
		data.LoggedIn = true
		data.User = sess.Identity
	}
	s.render(w, "index", data)
}

func (s *Service) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		// Store is unavailable; render the form without a token so the
		// page still loads. Submissions will fail until the store is back.
		s.render(w, "login", viewData{})
		return
	}

	if sess.IsAuthenticated() {
		http.Redirect(w, r, "/protected", http.StatusSeeOther)
		return
	}

	var errorMessage string
	if err := s.sessions.Mutate(r.Context(), sess, func(s *session.Session) {
		_, errorMessage = s.ConsumeFlags()
	}); err != nil {
		s.log.Error("failed to consume session flags", slog.Any("error", err))
	}

	token, err := s.guard.Issue(r.Context(), w, sess)
	if err != nil {
		s.log.Error("failed to issue csrf token", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.render(w, "login", viewData{Error: errorMessage, CSRFToken: token})
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	user, err := s.provider.VerifyCredentials(r.Context(), email, password)
	if err != nil {
		s.log.Info("login rejected", slog.String("email", email), slog.Any("error", err))
		s.redirectWithError(w, r, sess, "/login", flagMessage(err))
		return
	}

	if err := s.sessions.Authenticate(r.Context(), w, sess, user.Email); err != nil {
		s.log.Error("failed to authenticate session", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/protected", http.StatusSeeOther)
}

func (s *Service) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		s.render(w, "signup", viewData{})
		return
	}

	if sess.IsAuthenticated() {
		http.Redirect(w, r, "/protected", http.StatusSeeOther)
		return
	}

	var errorMessage string
	if err := s.sessions.Mutate(r.Context(), sess, func(s *session.Session) {
		_, errorMessage = s.ConsumeFlags()
	}); err != nil {
		s.log.Error("failed to consume session flags", slog.Any("error", err))
	}

	token, err := s.guard.Issue(r.Context(), w, sess)
	if err != nil {
		s.log.Error("failed to issue csrf token", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.render(w, "signup", viewData{Error: errorMessage, CSRFToken: token})
}

func (s *Service) handleSignup(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/signup", http.StatusSeeOther)
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	user, err := s.provider.CreateAccount(r.Context(), email, password)
	if err != nil {
		s.log.Info("signup rejected", slog.String("email", email), slog.Any("error", err))
		s.redirectWithError(w, r, sess, "/signup", flagMessage(err))
		return
	}

	if err := s.sessions.Authenticate(r.Context(), w, sess, user.Email); err != nil {
		s.log.Error("failed to authenticate session", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/protected", http.StatusSeeOther)
}

func (s *Service) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		s.render(w, "forgot-password", viewData{})
		return
	}

	var userNotFound bool
	var errorMessage string
	if err := s.sessions.Mutate(r.Context(), sess, func(s *session.Session) {
		userNotFound, errorMessage = s.ConsumeFlags()
	}); err != nil {
		s.log.Error("failed to consume session flags", slog.Any("error", err))
	}

	token, err := s.guard.Issue(r.Context(), w, sess)
	if err != nil {
		s.log.Error("failed to issue csrf token", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.render(w, "forgot-password", viewData{
		UserNotFound: userNotFound,
		ErrorMessage: errorMessage,
		CSRFToken:    token,
	})
}

func (s *Service) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	email := r.PostFormValue("email")
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	if err := s.provider.SendPasswordReset(r.Context(), email); err != nil {
		s.log.Info("password reset failed", slog.String("email", email), slog.Any("error", err))
		if mutErr := s.sessions.Mutate(r.Context(), sess, func(sess *session.Session) {
			if errors.Is(err, identity.ErrUserNotFound) {
				sess.UserNotFound = true
			} else {
				sess.ErrorMessage = "Error"
			}
		}); mutErr != nil {
			s.log.Error("failed to set session flags", slog.Any("error", mutErr))
		}
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/forgot-password-success", http.StatusSeeOther)
}

func (s *Service) handleForgotPasswordSuccess(w http.ResponseWriter, r *http.Request) {
	s.render(w, "forgot-password-success", viewData{})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context(), w, r); err != nil {
		s.log.Error("failed to destroy session", slog.Any("error", err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Service) handleProtected(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	token, err := s.guard.Issue(r.Context(), w, sess)
	if err != nil {
		s.log.Error("failed to issue csrf token", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.render(w, "protected", viewData{User: sess.Identity, CSRFToken: token})
}

func (s *Service) handleToggleCheckbox(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	if r.PostFormValue("checkboxState") == "" {
		token, err := s.guard.Issue(r.Context(), w, sess)
		if err != nil {
			s.log.Error("failed to issue csrf token", slog.Any("error", err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.render(w, "protected", viewData{
			User:      sess.Identity,
			CSRFToken: token,
			Message:   "Please accept the terms and conditions.",
		})
		return
	}

	http.Redirect(w, r, "/protected", http.StatusSeeOther)
}

// redirectWithError stores the one-shot message and sends the client back to
// the originating form. No state transition happens on the failure path.
func (s *Service) redirectWithError(w http.ResponseWriter, r *http.Request, sess *session.Session, target, message string) {
	if err := s.sessions.Mutate(r.Context(), sess, func(sess *session.Session) {
		sess.ErrorMessage = message
	}); err != nil {
		s.log.Error("failed to set session flags", slog.Any("error", err))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
