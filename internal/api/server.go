// Package api exposes the router over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/internal/router"
	"github.com/sells-group/docrouter/internal/store"
)

// Router is the subset of *router.Router the handlers use.
type Router interface {
	Route(ctx context.Context, req router.RouteRequest) (*model.RoutingOutcome, error)
	Analyze(snap *model.ExtractionSnapshot, meta model.DocumentMetadata) *model.ComplexityAssessment
	Statistics() model.StatisticsSnapshot
}

// Server holds handler dependencies. Store and breakers are optional.
type Server struct {
	router      Router
	store       store.Store
	breakers    *resilience.Breakers
	corsOrigins []string
	maxBody     int64
}

// Option configures a Server.
type Option func(*Server)

// WithStore persists every routed outcome and enables the outcome endpoints.
func WithStore(s store.Store) Option {
	return func(srv *Server) {
		srv.store = s
	}
}

// WithBreakers reports circuit breaker states on /health.
func WithBreakers(b *resilience.Breakers) Option {
	return func(srv *Server) {
		srv.breakers = b
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(srv *Server) {
		srv.corsOrigins = origins
	}
}

// NewServer creates a Server.
func NewServer(r Router, opts ...Option) *Server {
	s := &Server{
		router:      r,
		corsOrigins: []string{"*"},
		maxBody:     32 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents/{documentID}/route", s.handleRoute)
		r.Post("/documents/{documentID}/analyze", s.handleAnalyze)
		r.Get("/routing/statistics", s.handleStatistics)

		r.Get("/outcomes", s.handleListOutcomes)
		r.Get("/outcomes/export", s.handleExportOutcomes)
		r.Get("/outcomes/{id}", s.handleGetOutcome)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
