package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Prometheus exposition sits outside /api, where scrapers expect it.
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/mqtt/status", s.handleBusStatus)

		r.Get("/status", s.handleStatus)
		r.Get("/statistics", s.handleStatistics)

		r.Route("/sensor-data", func(r chi.Router) {
			r.Get("/", s.handleSensorWindow)
			r.Delete("/", s.handleClearSensorData)
			r.Get("/latest", s.handleLatestReading)
			r.Get("/range", s.handleSensorRange)
		})

		r.Post("/control/{actuator}", s.handleControl)
		r.Post("/config", s.handleConfig)
		r.Get("/commands", s.handleRecentCommands)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}
