package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"xrecap/pkg/cache"
	"xrecap/pkg/config"
	"xrecap/pkg/fetcher"
	"xrecap/pkg/logger"
	"xrecap/pkg/socialdata"
)

// Server exposes posting history and statistics over HTTP.
type Server struct {
	cfg     *config.Config
	client  *socialdata.Client
	fetcher *fetcher.Fetcher
	cache   *cache.Cache
	logger  logger.Logger
	router  chi.Router
	http    *http.Server
}

// New assembles the server around a shared API client and fetcher.
func New(cfg *config.Config, client *socialdata.Client, f *fetcher.Fetcher, c *cache.Cache, log logger.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		client:  client,
		fetcher: f,
		cache:   c,
		logger:  log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
		r.Get("/years", s.handleYears)
	})
	s.router = r

	s.http = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving and blocks until the listener fails or closes.
func (s *Server) Start() error {
	s.logger.InfoWithFields("server listening", map[string]interface{}{
		"addr": s.cfg.Server.Addr,
	})
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.InfoWithFields("request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		})
	})
}
