package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// EngineController is the interface the API uses to drive the engine.
type EngineController interface {
	Run(ctx context.Context) (*types.TrendSnapshot, error)
	GetStats() map[string]any
}

// LatestReader returns the newest stored snapshot.
type LatestReader interface {
	Latest(ctx context.Context) (*types.TrendSnapshot, error)
}

// Server exposes the scraper over HTTP.
type Server struct {
	mux    *http.ServeMux
	cfg    config.ServerConfig
	logger *slog.Logger

	engineCtrl EngineController
	latest     LatestReader
}

// Option configures optional routes.
type Option func(*Server)

// WithIndex serves h at "/".
func WithIndex(h http.Handler) Option {
	return func(s *Server) { s.mux.Handle("GET /{$}", h) }
}

// WithMetrics serves h at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) { s.mux.Handle("GET "+path, h) }
}

// NewServer creates a new API server.
func NewServer(cfg config.ServerConfig, engine EngineController, latest LatestReader, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		cfg:        cfg,
		logger:     logger.With("component", "api_server"),
		engineCtrl: engine,
		latest:     latest,
	}

	s.registerRoutes()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("API server shutting down", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	// Scraper
	s.mux.HandleFunc("GET /run-scraper", s.recoverJSON(s.handleRun))

	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Read-only
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/latest", s.recoverJSON(s.handleLatest))
}

// recoverJSON turns a panic below h into a 500 JSON error.
func (s *Server) recoverJSON(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				s.errorResponse(w, fmt.Errorf("panic: %v", rec))
			}
		}()
		h(w, r)
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engineCtrl.Run(r.Context())
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap.View())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.engineCtrl.GetStats())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.latest.Latest(r.Context())
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap.View())
}

// errorResponse maps err to 404 for an empty read-back and 500 otherwise.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	msg := err.Error()
	if msg == "" {
		msg = "internal error"
	}

	if errors.Is(err, types.ErrNoSnapshot) {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": msg})
		return
	}

	kind := types.KindOf(err)
	s.logger.Error("request failed", "kind", kind, "error", err)
	s.jsonResponse(w, http.StatusInternalServerError, map[string]string{
		"error": msg,
		"kind":  kind.String(),
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response failed", "status", status, "error", err)
	}
}
