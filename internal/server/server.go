package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FranksOps/powder/internal/cache"
	"github.com/FranksOps/powder/internal/forecast"
	"github.com/FranksOps/powder/internal/metrics"
	"github.com/FranksOps/powder/internal/scraper"
)

// Forecasts answers scrape requests, normally from a *cache.Cache.
type Forecasts interface {
	Get(ctx context.Context, url string) (cache.Lookup, error)
}

type scrapeResponse struct {
	Success bool             `json:"success"`
	Cached  bool             `json:"cached"`
	Data    *forecast.Result `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Server exposes the scrape API plus health and metrics endpoints.
type Server struct {
	httpServer *http.Server
	forecasts  Forecasts
	scope      *scraper.Scope
	logger     *slog.Logger
}

// New creates a server listening on addr. scope may be nil to allow any host.
func New(addr string, forecasts Forecasts, scope *scraper.Scope, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		forecasts: forecasts,
		scope:     scope,
		logger:    logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// A miss scrapes upstream synchronously.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/scrape", s.handleScrape)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}

	target, err := s.scope.Check(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lookup, err := s.forecasts.Get(r.Context(), target.String())
	if err != nil {
		s.logger.Warn("scrape failed",
			"url", target.String(),
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
		writeError(w, statusFor(err), err.Error())
		return
	}

	if lookup.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, scrapeResponse{Success: true, Cached: lookup.Cached, Data: lookup.Result})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scraper.ErrInvalidURL), errors.Is(err, scraper.ErrHostNotAllowed):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		data, _ = json.Marshal(errorResponse{Success: false, Error: "response encoding failed"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Success: false, Error: msg})
}
