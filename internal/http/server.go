// Package http wires the expense and auth services to the route table and
// renders the HTML views.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expenses/internal/auth"
	"expenses/internal/core"
	"expenses/internal/expense"
	applog "expenses/internal/log"
	"expenses/internal/middleware/security"
	appweb "expenses/web"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "session"

type Server struct {
	http.Server
	templates  *template.Template
	auth       *auth.Service
	expenses   *expense.Service
	logger     *applog.Logger
	secHeaders *security.HeadersMiddleware

	secureCookies bool
	started       time.Time
	shutdownOnce  sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. The logger carries the configured level; nil falls back to
// the default info-level logger.
func NewServer(addr string, authSvc *auth.Service, expSvc *expense.Service, secureCookies bool, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:          authSvc,
		expenses:      expSvc,
		logger:        logger.WithComponent(applog.ComponentHTTP),
		secHeaders:    security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		secureCookies: secureCookies,
		started:       time.Now(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	// Expense routes, all behind authentication
	mux.Handle("GET /{$}", s.chain(s.requireAuth(s.handleIndex)))
	mux.Handle("GET /add_expense", s.chain(s.requireAuth(s.handleAddExpenseForm)))
	mux.Handle("POST /add_expense", s.chain(s.requireAuth(s.handleAddExpense)))
	mux.Handle("POST /delete_expense/{id}", s.chain(s.requireAuth(s.handleDeleteExpense)))
	mux.Handle("GET /edit_expense/{id}", s.chain(s.requireAuth(s.handleEditExpenseForm)))
	mux.Handle("POST /edit_expense/{id}", s.chain(s.requireAuth(s.handleEditExpense)))
	mux.Handle("GET /summary", s.chain(s.requireAuth(s.handleSummary)))

	// Auth routes; login and register bounce already-authenticated clients
	mux.Handle("GET /register", s.chain(s.redirectIfAuthed(s.handleRegisterForm)))
	mux.Handle("POST /register", s.chain(s.redirectIfAuthed(s.handleRegister)))
	mux.Handle("GET /login", s.chain(s.redirectIfAuthed(s.handleLoginForm)))
	mux.Handle("POST /login", s.chain(s.redirectIfAuthed(s.handleLogin)))
	mux.Handle("GET /logout", s.chain(s.handleLogout))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	return s
}

// chain applies the shared middleware stack: security headers outermost,
// then request logging, then panic recovery closest to the handler.
func (s *Server) chain(h http.HandlerFunc) http.Handler {
	return s.secHeaders.Middleware(s.withRequestLog(s.withRecovery(h)))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	// A session lookup exercises the database path end to end.
	if _, err := s.auth.UserFromSession(r.Context(), "readiness-probe"); err == nil || errors.Is(err, core.ErrSessionNotFound) {
		checks["database"] = "ok"
	} else {
		checks["database"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
