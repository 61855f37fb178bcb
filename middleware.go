package pcgcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

type emailContextKey struct{}

// Middleware exposes the signed in user recorded in the server session
type Middleware struct {
	Session *scs.SessionManager
	Logger  *slog.Logger
}

func (m *Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// RequireXHR rejects requests that were not sent as XMLHttpRequests. Browsers
// do not add the header to cross-site form posts.
func RequireXHR(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			errorResponse(w, "untrusted_request", "Untrusted request", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractUser stores the session's email, if any, in the request context
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := m.Session.GetString(r.Context(), SessionEmailKey)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), emailContextKey{}, email)))
	})
}

// EnsureUser responds 401 unless the session holds a verified email
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	return m.ExtractUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSignedInEmail(r) == "" {
			errorResponse(w, "not_signed_in", "Sign in required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// GetSignedInEmail returns the email set by ExtractUser
func GetSignedInEmail(r *http.Request) string {
	email, _ := r.Context().Value(emailContextKey{}).(string)
	return email
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LogRequests logs one line per request
func (m *Middleware) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.logger().Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", getClientIP(r),
			"duration", time.Since(start))
	})
}
