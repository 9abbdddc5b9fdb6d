package api

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Health status values.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status        string `json:"status"`
	MQTT          bool   `json:"mqtt"`
	Breaker       string `json:"breaker"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version"`
	DataPoints    int    `json:"data_points"`
	WSClients     int    `json:"websocket_clients"`
}

// handleHealth reports liveness. It always answers 200; a disconnected bus
// or an open publish breaker only degrades the status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := s.bus.IsConnected()
	breaker := s.relay.BreakerState()
	status := healthOK
	if !connected || breaker == gobreaker.StateOpen.String() {
		status = healthDegraded
	}

	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		MQTT:          connected,
		Breaker:       breaker,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Version:       s.version,
		DataPoints:    s.store.Len(),
		WSClients:     clients,
	})
}

// handleBusStatus reports the broker connection and subscribed topics.
func (s *Server) handleBusStatus(w http.ResponseWriter, _ *http.Request) {
	topics := s.bus.SubscribedTopics()
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"connected": s.bus.IsConnected(),
		"broker":    s.bus.Broker(),
		"topics":    topics,
	})
}
