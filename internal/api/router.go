package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-aquos/internal/bridges/aquos"
)

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
		r.Get("/health", s.handleHealth)

		r.Route("/tv", func(r chi.Router) {
			r.Get("/state", s.handleGetState)
			r.Get("/info", s.handleGetInfo)
			r.Get("/sources", s.handleListSources)
			r.Get("/remote", s.handleListRemoteButtons)
			r.Post("/commands", s.handleCommand)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	return r
}

// handleHealth reports bridge health and TV link statistics.
// The HTTP status is 503 when the bridge is unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, reason := s.controller.HealthStatus()
	stats := s.controller.TransportStats()

	code := http.StatusOK
	if status == aquos.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":  status,
		"version": s.version,
		"device":  s.controller.DeviceID(),
		"transport": map[string]any{
			"connected":     stats.Connected,
			"frames_sent":   stats.FramesTx,
			"replies":       stats.RepliesRx,
			"timeouts":      stats.TimeoutsTotal,
			"errors":        stats.ErrorsTotal,
			"reconnects":    stats.ReconnectsTotal,
			"last_activity": stats.LastActivity,
		},
		"websocket_clients": s.hub.ClientCount(),
	}
	if reason != "" {
		body["reason"] = reason
	}
	writeJSON(w, code, body)
}
