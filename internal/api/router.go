package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check made by /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Monitoring (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Read-only event stream (no auth required)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/gamepads", func(r chi.Router) {
				r.Get("/", s.handleListGamepads)
				r.Get("/stats", s.handleGamepadStats)
				r.Get("/history", s.handleRecentHistory)

				r.Route("/{device}", func(r chi.Router) {
					r.Get("/", s.handleGetGamepad)
					r.Get("/hardware", s.handleGetHardware)
					r.Get("/history", s.handleGamepadHistory)
					r.With(s.requireRemap).Put("/user", s.handleRemapGamepad)
				})
			})

			r.Route("/users/{user}", func(r chi.Router) {
				r.Get("/gamepads", s.handleUserGamepads)
				r.Get("/primary", s.handleUserPrimary)
			})
		})
	})

	return r
}

// componentHealth is one entry of the /health response.
type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealth returns the server health status. Any failing component
// turns the response into a 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	components := make(map[string]componentHealth, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			components[name] = componentHealth{Status: "error", Error: err.Error()}
			continue
		}
		components[name] = componentHealth{Status: "ok"}
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"gamepads":   s.registry.Count(),
		"components": components,
	})
}
