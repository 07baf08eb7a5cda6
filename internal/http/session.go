package http

import (
	"context"
	"net/http"

	"meterlog/internal/auth"
)

const sessionCookieName = "meterlog_session"

type contextKey string

const sessionContextKey contextKey = "session"

func (s *Server) sessionFromRequest(r *http.Request) (auth.Session, auth.SessionState) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return auth.Session{}, auth.Anonymous
	}
	return s.sessions.SessionFromToken(r.Context(), c.Value)
}

// requireSession guards record views: anonymous visitors are sent to the
// login page, authenticated ones get their session in the request context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, state := s.sessionFromRequest(r)
		if state != auth.Authenticated {
			// htmx swaps cannot follow a normal redirect to a full page.
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", "/login")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next(w, r.WithContext(ctx))
	}
}

// redirectIfAuthed keeps signed-in users away from the auth forms.
func (s *Server) redirectIfAuthed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, state := s.sessionFromRequest(r); state == auth.Authenticated {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func sessionFromContext(ctx context.Context) auth.Session {
	if session, ok := ctx.Value(sessionContextKey).(auth.Session); ok {
		return session
	}
	return auth.Session{}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
