package http

import (
	"bytes"
	"errors"
	"net/http"

	"habitual/internal/auth"
	"habitual/internal/core"
	applog "habitual/internal/log"
)

const loginFailedMessage = "Invalid email or password. Try again."

// pageData is passed to every page template.
type pageData struct {
	Title   string
	User    *core.User
	Message string
	Email   string
	Habits  []core.Habit
	Today   string
	Year    int
	Month   int
	Value   string
}

// currentUser resolves the session cookie to a user.
func (s *Server) currentUser(r *http.Request) (core.User, bool) {
	id, ok := s.sessions.Lookup(r)
	if !ok {
		return core.User{}, false
	}
	user, err := s.accounts.User(r.Context(), id)
	if err != nil {
		return core.User{}, false
	}
	return user, true
}

// requirePage redirects anonymous visitors to the login page.
func (s *Server) requirePage(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			http.Redirect(w, r, "/login/", http.StatusSeeOther)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

// requireAPI answers 401 JSON to anonymous callers.
func (s *Server) requireAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			ErrorResponse(http.StatusUnauthorized, "authentication required").Write(w)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.currentUser(r); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "login.html", pageData{Title: "Log in"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.render(w, r, http.StatusBadRequest, "login.html", pageData{Title: "Log in", Message: "Invalid request."})
			return
		}
		email := sanitizeInput(r.PostForm.Get("email"))
		user, err := s.accounts.Login(r.Context(), email, r.PostForm.Get("password"))
		if err != nil {
			status := StatusFor(err)
			if status != http.StatusInternalServerError {
				status = http.StatusUnauthorized
			}
			s.render(w, r, status, "login.html", pageData{Title: "Log in", Message: loginFailedMessage, Email: email})
			return
		}
		s.sessions.Create(w, user.ID)
		applog.FromContext(r.Context()).InfoContext(r.Context(), "User logged in", applog.FieldUserID, user.ID)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "signup.html", pageData{Title: "Sign up"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.render(w, r, http.StatusBadRequest, "signup.html", pageData{Title: "Sign up", Message: "Invalid request."})
			return
		}
		email := sanitizeInput(r.PostForm.Get("email"))
		user, err := s.accounts.Signup(r.Context(), email, r.PostForm.Get("password"))
		if err != nil {
			msg, _ := core.MessageOf(err)
			if errors.Is(err, core.ErrInternal) {
				msg = "Could not create the account, try again later."
			}
			s.render(w, r, StatusFor(err), "signup.html", pageData{Title: "Sign up", Message: msg, Email: email})
			return
		}
		applog.FromContext(r.Context()).InfoContext(r.Context(), "User signed up", applog.FieldUserID, user.ID)
		http.Redirect(w, r, "/login/", http.StatusSeeOther)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Destroy(w, r)
	http.Redirect(w, r, "/login/", http.StatusSeeOther)
}

// render executes a page template into a buffer so failures never leave a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.NewStructuredLogger(s.logger).LogError(r.Context(), "Template execution failed", err,
			applog.ComponentTemplate, applog.OpRender, applog.LogFields{"template": name})
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
