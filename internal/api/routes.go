// Package api exposes the monitoring service over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/skywatch/internal/config"
	"github.com/yegors/skywatch/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(handler *Handler, config *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(logger),
		config:     config,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Context routes
		router.Get("/callsigns", r.handler.GetTrackedCallsigns)
		router.Get("/context/{callsign}", r.handler.GetConsolidatedContext)
		router.Get("/candidates", r.handler.GetCandidates)

		// Incident routes
		router.Get("/incidents", r.handler.GetIncidents)
		router.Get("/incidents/history", r.handler.GetIncidentHistory)
		router.Get("/incidents/callsign/{callsign}", r.handler.GetIncidentsByCallsign)
		router.Post("/incidents/evaluate", r.handler.EvaluateIncidents)

		// Transcript routes
		router.Get("/transcripts", r.handler.GetTranscripts)
		router.Get("/transcripts/callsign/{callsign}", r.handler.GetTranscriptsByCallsign)

		// Bus and feed routes
		router.Get("/bus/history", r.handler.GetBusHistory)
		router.Get("/messages", r.handler.GetMessages)

		// Audio stream route
		router.Get("/stream", r.handler.StreamAudio)
		router.Head("/stream", r.handler.StreamAudio)

		// Health check and stats
		router.Get("/health", r.handler.GetHealth)
		router.Get("/stats", r.handler.GetStats)
	})

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler())

	return router
}
