// Package server exposes stored game results over a read-only JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/andywolf/twentyq/internal/metrics"
	"github.com/andywolf/twentyq/internal/store"
)

// MaxListLimit caps the limit query parameter of /games.
const MaxListLimit = 500

// Results is the read side of the results store.
type Results interface {
	ListGames(ctx context.Context, f store.ListFilter) ([]store.GameRow, error)
	GetGame(ctx context.Context, id string) (*store.GameDetail, error)
	Summary(ctx context.Context, topic string) (metrics.Summary, error)
	Topics(ctx context.Context) ([]string, error)
}

// Config configures the API.
type Config struct {
	Addr            string
	RequestTimeout  time.Duration
	RateLimit       int
	RateInterval    time.Duration
	ShutdownTimeout time.Duration
}

// Server bundles the router and the results it serves.
type Server struct {
	r       *chi.Mux
	cfg     Config
	results Results
	logger  *zap.SugaredLogger
}

// New constructs a Server, installs middleware, and registers routes.
func New(results Results, cfg Config, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RateInterval <= 0 {
		cfg.RateInterval = time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{r: chi.NewRouter(), cfg: cfg, results: results, logger: logger.Sugar()}

	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateInterval)

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(cfg.RequestTimeout))
	s.r.Use(jsonContentType)
	s.r.Use(limiter.Middleware(IPKeyFunc))

	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/games", s.handleListGames)
	s.r.Get("/games/{id}", s.handleGetGame)
	s.r.Get("/summary", s.handleSummary)

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})
	return s
}

// Router exposes the router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Results API listening on %s", s.cfg.Addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Infof("Shutting down results API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ----------------------------- middleware ----------------------------------

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ handlers -----------------------------------

type listResponse struct {
	Games []store.GameRow `json:"games"`
	Count int             `json:"count"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	f := store.ListFilter{Topic: r.URL.Query().Get("topic")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		if n > MaxListLimit {
			n = MaxListLimit
		}
		f.Limit = n
	}

	games, err := s.results.ListGames(r.Context(), f)
	if err != nil {
		s.internalError(w, "list games", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Games: games, Count: len(games)})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.results.GetGame(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game_not_found")
		return
	}
	if err != nil {
		s.internalError(w, "get game", err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

type summaryResponse struct {
	metrics.Summary
	Topics map[string]metrics.Summary `json:"topics"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overall, err := s.results.Summary(ctx, "")
	if err != nil {
		s.internalError(w, "summary", err)
		return
	}
	topics, err := s.results.Topics(ctx)
	if err != nil {
		s.internalError(w, "topics", err)
		return
	}
	resp := summaryResponse{Summary: overall, Topics: make(map[string]metrics.Summary, len(topics))}
	for _, t := range topics {
		sum, err := s.results.Summary(ctx, t)
		if err != nil {
			s.internalError(w, "topic summary", err)
			return
		}
		resp.Topics[t] = sum
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Errorf("Results API %s failed: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal_error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	writeJSON(w, status, map[string]string{"error": code})
}
