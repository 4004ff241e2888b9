// Package api serves the retrieval engine over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Aman-CERP/leaselens/internal/session"
	"github.com/Aman-CERP/leaselens/internal/telemetry"
	"github.com/Aman-CERP/leaselens/pkg/version"
)

const (
	// formOverhead is allowed on top of the upload cap for multipart framing.
	formOverhead = 1 << 20

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 10 * time.Second
)

// Config configures the HTTP server.
type Config struct {
	// APIKey, when set, is required as a bearer token on /api routes.
	APIKey string

	// MaxUploadBytes caps uploaded documents.
	MaxUploadBytes int64

	// Debug includes error causes in responses.
	Debug bool
}

// Server is the HTTP API server for leaselens.
type Server struct {
	router   chi.Router
	sessions *session.Manager
	metrics  *telemetry.AskMetrics
	log      *slog.Logger
	cfg      Config
}

// NewServer creates and configures the HTTP server. metrics may be nil.
func NewServer(sessions *session.Manager, metrics *telemetry.AskMetrics, log *slog.Logger, cfg Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = session.DefaultMaxDocumentBytes
	}
	s := &Server{
		sessions: sessions,
		metrics:  metrics,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Get("/sample-questions", s.handleSampleQuestions)
		r.Get("/metrics", s.handleMetrics)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/document", s.handleUploadDocument)
			r.Post("/ask", s.handleAsk)
			r.Get("/history", s.handleHistory)
			r.Get("/stats", s.handleStats)
		})
	})

	s.router = r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http_server_started", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("http_server_stopping")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  version.Version,
		"sessions": s.sessions.Len(),
	})
}
