package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"kwitansi/internal/auth"
	applog "kwitansi/internal/log"
	"kwitansi/internal/middleware/trace"
	"kwitansi/internal/ports"
	"kwitansi/internal/session"
)

type sessionContextKey struct{}

func sessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(session.Session)
	return sess, ok
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// withSession resolves the session cookie and attaches the backend token
// to the request. Requests without a valid session pass through.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(session.CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := s.sessions.Get(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				s.logger.WithComponent(applog.ComponentSession).WarnContext(r.Context(), "Session lookup failed",
					applog.FieldError, err)
			}
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.WithCredentials(r.Context(), auth.Credentials{Bearer: sess.Token})
		ctx = context.WithValue(ctx, sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loginURL(r *http.Request) string {
	if r.Method != http.MethodGet || isHTMX(r) {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(r.URL.RequestURI())
}

// requireLogin sends visitors without a session to the login page.
func (s *Server) requireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFromContext(r.Context()); !ok {
			redirect(w, r, loginURL(r))
			return
		}
		next(w, r)
	}
}

// requireLoginOrToken also admits requests carrying a receipt share token
// in ?token=. The backend checks the token against the receipt.
func (s *Server) requireLoginOrToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := r.URL.Query().Get("token"); token != "" {
			next(w, r.WithContext(auth.WithCapability(r.Context(), token)))
			return
		}
		s.requireLogin(next)(w, r)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// expireSession forgets the session after the backend rejected its token.
func (s *Server) expireSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), sess.ID); err != nil {
		s.logger.WithComponent(applog.ComponentSession).WarnContext(r.Context(), "Failed to delete session",
			applog.FieldError, err)
	}
	s.clearSessionCookie(w)
}

type loginView struct {
	Username string
	Next     string
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login_page", s.page(r, "Masuk", "", loginView{
		Next: safeNext(r.URL.Query().Get("next")),
	}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	next := safeNext(r.PostForm.Get("next"))
	logger := s.logger.WithComponent(applog.ComponentAuth)

	form := loginView{Username: username, Next: next}
	if username == "" || password == "" {
		form.Error = "Username dan password wajib diisi."
		s.render(w, r, http.StatusUnprocessableEntity, "login_page", s.page(r, "Masuk", "", form))
		return
	}

	sess, err := s.backend.Login(r.Context(), username, password)
	if err != nil {
		s.appMetrics.failedLogins.Add(1)
		status := http.StatusBadGateway
		form.Error = "Tidak dapat terhubung ke server. Silakan coba lagi."
		if errors.Is(err, ports.ErrInvalidCredentials) || errors.Is(err, ports.ErrUnauthorized) {
			status = http.StatusUnauthorized
			form.Error = "Username atau password salah."
			logger.WarnContext(r.Context(), "Login rejected",
				applog.FieldUsername, username,
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		} else {
			logger.ErrorContext(r.Context(), "Login failed", applog.FieldUsername, username, applog.FieldError, err)
		}
		s.render(w, r, status, "login_page", s.page(r, "Masuk", "", form))
		return
	}

	stored, err := s.sessions.Create(r.Context(), sess.Token, sess.User)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to create session", applog.FieldError, err)
		form.Error = "Sesi tidak dapat dibuat. Silakan coba lagi."
		s.render(w, r, http.StatusInternalServerError, "login_page", s.page(r, "Masuk", "", form))
		return
	}
	s.appMetrics.logins.Add(1)
	s.setSessionCookie(w, stored)
	logger.InfoContext(r.Context(), "User logged in", applog.FieldUsername, sess.User.Username)
	redirect(w, r, next)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := sessionFromContext(r.Context()); ok {
		if err := s.sessions.Delete(r.Context(), sess.ID); err != nil {
			s.logger.WithComponent(applog.ComponentSession).WarnContext(r.Context(), "Failed to delete session",
				applog.FieldError, err)
		}
		s.logger.WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "User logged out",
			applog.FieldUsername, sess.User.Username)
	}
	s.clearSessionCookie(w)
	redirect(w, r, "/login")
}
