package http

import (
	"errors"
	"log/slog"
	"net/http"

	"meterlog/internal/auth"
	"meterlog/internal/bills"
)

type authPageData struct {
	Error    string
	Email    string
	FullName string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", authPageData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := sanitizeInput(r.Form.Get("email"))
	password := r.Form.Get("password")

	session, err := s.sessions.SignIn(r.Context(), email, password)
	if err != nil {
		msg := "Invalid email or password."
		if errors.Is(err, auth.ErrEmailNotConfirmed) {
			msg = "Please confirm your email address before signing in."
		}
		slog.WarnContext(r.Context(), "Sign-in rejected", "email", email, "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, r, "login.html", authPageData{Error: msg, Email: email})
		return
	}

	s.setSessionCookie(w, session.Token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", authPageData{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := sanitizeInput(r.Form.Get("email"))
	fullName := sanitizeInput(r.Form.Get("full_name"))
	password := r.Form.Get("password")

	session, err := s.sessions.SignUp(r.Context(), email, password, fullName)
	if err != nil {
		msg := "Could not create the account."
		switch {
		case errors.Is(err, auth.ErrMissingField):
			msg = "Email and password are required."
		case errors.Is(err, auth.ErrWeakPassword):
			msg = "Password must be at least 8 characters."
		case errors.Is(err, bills.ErrEmailTaken):
			msg = "An account with this email already exists."
		}
		slog.WarnContext(r.Context(), "Sign-up rejected", "email", email, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "register.html", authPageData{Error: msg, Email: email, FullName: fullName})
		return
	}

	s.setSessionCookie(w, session.Token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	s.sessions.SignOut(r.Context())
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
