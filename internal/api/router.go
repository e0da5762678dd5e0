// Package api provides the HTTP API layer for the insights engine.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/brianlane/bizblasts-insights/internal/api/handlers"
	"github.com/brianlane/bizblasts-insights/internal/api/middleware"
	"github.com/brianlane/bizblasts-insights/internal/api/response"
	"github.com/brianlane/bizblasts-insights/internal/logging"
)

const version = "1.0.0"

// Router wires the middleware chain and analytics routes.
type Router struct {
	mux     *chi.Mux
	logger  logging.Logger
	started time.Time
}

// NewRouter creates the API router over an analytics engine.
func NewRouter(engine handlers.Engine, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNoop()
	}
	r := &Router{
		mux:     chi.NewRouter(),
		logger:  logger.WithComponent("api"),
		started: time.Now(),
	}

	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.Recovery(r.logger))
	r.mux.Use(middleware.Logging(r.logger))
	r.mux.Use(chimiddleware.StripSlashes)

	analyticsHandler := handlers.NewAnalyticsHandler(engine)

	r.mux.Get("/healthz", r.health)
	r.mux.Route("/api/v1/tenants/{tenantID}", func(router chi.Router) {
		router.Get("/segments", analyticsHandler.Segments)
		router.Get("/clv", analyticsHandler.CLV)
		router.Get("/churn", analyticsHandler.Churn)
		router.Get("/churn/actions", analyticsHandler.ChurnActions)
		router.Get("/forecast", analyticsHandler.Forecast)
		router.Get("/anomalies", analyticsHandler.Anomalies)
		router.Get("/mrr", analyticsHandler.MRR)
		router.Get("/mrr/growth", analyticsHandler.MRRGrowth)
		router.Get("/mrr/churned", analyticsHandler.ChurnedMRR)
		router.Get("/subscriptions/health", analyticsHandler.SubscriptionHealth)
		router.Get("/operations", analyticsHandler.Operations)
	})

	r.mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.WriteNotFound(w, "route not found", req.URL.Path)
	})

	return r
}

// Handler returns the router as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) health(w http.ResponseWriter, _ *http.Request) {
	response.WriteSuccess(w, map[string]interface{}{
		"status":         "healthy",
		"version":        version,
		"uptime_seconds": int(time.Since(r.started).Seconds()),
	})
}
