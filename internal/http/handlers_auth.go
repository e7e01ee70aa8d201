package http

import (
	"errors"
	"net/http"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

type loginView struct {
	Error  string
	Notice string
}

type registerView struct {
	Error    string
	Username string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	view := loginView{}
	if r.URL.Query().Get("out") != "" {
		view.Notice = "You have been logged out."
	}
	s.render(w, http.StatusOK, "login.html", view)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login.html", loginView{Error: "Invalid form submission."})
		return
	}

	username := sanitizeInput(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	session, err := s.auth.Login(r.Context(), username, password)
	if err != nil {
		// Unknown username and wrong password produce the exact same
		// response.
		if errors.Is(err, core.ErrInvalidCredentials) {
			s.render(w, http.StatusUnauthorized, "login.html", loginView{Error: "Invalid credentials."})
			return
		}
		s.logger.ErrorContext(r.Context(), "Login failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	s.setSessionCookie(w, session.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "register.html", registerView{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "register.html", registerView{Error: "Invalid form submission."})
		return
	}

	username := sanitizeInput(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	if username == "" || password == "" {
		s.render(w, http.StatusUnprocessableEntity, "register.html", registerView{
			Error:    "Username and password are required.",
			Username: username,
		})
		return
	}

	_, session, err := s.auth.Register(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateUsername) {
			s.render(w, http.StatusConflict, "register.html", registerView{
				Error:    "Username already taken.",
				Username: username,
			})
			return
		}
		s.logger.ErrorContext(r.Context(), "Registration failed", applog.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	// Registration logs the new account straight in.
	s.setSessionCookie(w, session.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			s.logger.ErrorContext(r.Context(), "Logout failed", applog.FieldError, err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login?out=1", http.StatusFound)
}
