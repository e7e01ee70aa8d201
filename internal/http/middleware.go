package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// responseWriter captures the status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "req_" + hex.EncodeToString([]byte(time.Now().Format("150405.000")))
	}
	return "req_" + hex.EncodeToString(bytes)
}

// withRequestLog logs one line per request with method, path, status and
// duration.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()

		logger := s.logger.With(
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
		)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.InfoContext(r.Context(), "Request handled",
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).String(),
			applog.FieldClientIP, r.RemoteAddr,
		)
	})
}

// withRecovery converts a handler panic into a 500 error page instead of a
// dropped connection.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.ErrorContext(r.Context(), "Handler panicked",
					applog.FieldPath, r.URL.Path,
					applog.FieldError, rec,
				)
				s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the session cookie to a user and stores it in the
// request context. Anonymous or stale sessions are bounced to the login page.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		user, err := s.auth.UserFromSession(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, core.ErrSessionNotFound) {
				s.logger.ErrorContext(r.Context(), "Session lookup failed", applog.FieldError, err)
			}
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// redirectIfAuthed sends clients that already hold a valid session to the
// index instead of showing the login or register page again.
func (s *Server) redirectIfAuthed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			if _, err := s.auth.UserFromSession(r.Context(), cookie.Value); err == nil {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
		}
		next(w, r)
	}
}

// currentUser returns the authenticated user placed in the context by
// requireAuth.
func currentUser(r *http.Request) core.User {
	user, _ := r.Context().Value(userContextKey).(core.User)
	return user
}
