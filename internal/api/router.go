// Package api provides the HTTP API for the disruption service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api/handler"
	"github.com/gtfsdisrupt/gtfsdisrupt/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	// Analyzer serves the analysis endpoint.
	Analyzer handler.Analyzer

	// Operators lists operators with loaded GTFS data.
	Operators func() []string

	// Ready reports readiness for the ops endpoint. May be nil.
	Ready func() error
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware, order matters.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing("gtfsdisrupt-api"))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireJSON)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Ready)
	disruptionHandler := handler.NewDisruptionHandler(cfg.Analyzer, cfg.Operators)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Analysis fans out to the language model; keep it on the
		// strict tier.
		r.With(expensiveRateLimit).Post("/disruptions:analyze", disruptionHandler.AnalyzeDisruption)
	})

	return r
}
