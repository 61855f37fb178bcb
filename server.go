package pcgcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

const DefaultShutdownTimeout = 10 * time.Second

// Server is the verification backend
type Server struct {
	Session       *scs.SessionManager
	Middleware    Middleware
	Authorization *AuthorizationHandler

	// StaticDir, when set, is served at the root
	StaticDir string

	// How long is a session cookie valid for.  Defaults to 1 day
	SessionTimeout time.Duration

	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

func NewServer(auth *AuthorizationHandler) *Server {
	return (&Server{Authorization: auth}).EnsureDefaults()
}

func (s *Server) EnsureDefaults() *Server {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.SessionTimeout <= 0 {
		s.SessionTimeout = 24 * time.Hour
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.Session == nil {
		s.Session = scs.New()
		s.Session.Lifetime = s.SessionTimeout
		s.Session.Cookie.Name = "pcgcp_session"
		s.Session.Cookie.HttpOnly = true
		s.Session.Cookie.SameSite = http.SameSiteLaxMode
	}
	if s.Middleware.Session == nil {
		s.Middleware.Session = s.Session
	}
	if s.Middleware.Logger == nil {
		s.Middleware.Logger = s.Logger
	}
	if s.Authorization != nil {
		if s.Authorization.Session == nil {
			s.Authorization.Session = s.Session
		}
		if s.Authorization.Logger == nil {
			s.Authorization.Logger = s.Logger
		}
	}
	return s
}

// Handler returns the routes wrapped with session loading and request logging
func (s *Server) Handler() http.Handler {
	s.EnsureDefaults()
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.onHealth).Methods(http.MethodGet)
	if s.Authorization != nil {
		api.Handle("/authorization", RequireXHR(s.Authorization)).Methods(http.MethodPost)
	}
	api.Handle("/session", s.Middleware.EnsureUser(http.HandlerFunc(s.onSession))).Methods(http.MethodGet)
	api.Handle("/session", RequireXHR(http.HandlerFunc(s.onLogout))).Methods(http.MethodDelete)

	// Method routes above fail with ErrMethodMismatch, which the subrouter
	// loses once later routes are tried, so each path ends with its own 405.
	api.Handle("/health", methodNotAllowed(http.MethodGet))
	if s.Authorization != nil {
		api.Handle("/authorization", methodNotAllowed(http.MethodPost))
	}
	api.Handle("/session", methodNotAllowed(http.MethodGet, http.MethodDelete))

	if s.StaticDir != "" {
		s.Logger.Info("Serving static files", "dir", s.StaticDir)
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return s.Middleware.LogRequests(s.Session.LoadAndSave(router))
}

func methodNotAllowed(allowed ...string) http.Handler {
	allow := strings.Join(allowed, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		errorResponse(w, "method_not_allowed", r.Method+" is not supported here", http.StatusMethodNotAllowed)
	})
}

func (s *Server) onHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, struct{}{})
}

func (s *Server) onSession(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"email": GetSignedInEmail(r)})
}

func (s *Server) onLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.Destroy(r.Context()); err != nil {
		s.Logger.Warn("error clearing session", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Running", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Logger.Error("Error shutting down", "error", err)
			return err
		}
		s.Logger.Info("Graceful shutdown")
		return nil
	})
	return g.Wait()
}
