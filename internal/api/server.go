// Package api provides the local HTTP API over the sync engine.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// ServerOption configures the API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	logger      *slog.Logger
	middlewares []func(http.Handler) http.Handler
}

// WithLogger sets the logger used by handlers and the logging middleware
func WithLogger(logger *slog.Logger) ServerOption {
	return func(cfg *serverConfig) {
		cfg.logger = logger
	}
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer creates the router serving svc and the cached content in cache
func NewServer(svc Service, cache CacheReader, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{svc: svc, cache: cache, logger: cfg.logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.logger))
	r.Use(middleware.Recoverer)
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", h.health)
	r.Get("/status", h.status)
	r.Get("/jobs", h.jobs)
	r.Get("/metrics/performance", h.performance)

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", h.cacheStats)
		r.Get("/days/{date}", h.cacheDay)
	})

	r.Post("/sync", h.sync)
	r.Post("/background", h.background)
	r.Get("/events", h.events)

	return r
}

// RequestIDMiddleware tags each request with the caller's X-Request-ID or a
// fresh UUID and echoes it on the response
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
