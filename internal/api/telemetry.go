package api

import (
	"fmt"
	"net/http"

	"github.com/nerrad567/agri-gateway/internal/telemetry"
)

// handleStatus returns the current status snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Status())
}

// handleSensorWindow returns the most recent readings.
//
// Query parameters:
//   - limit: number of readings (default window when absent or <= 0)
func (s *Server) handleSensorWindow(w http.ResponseWriter, r *http.Request) {
	limit, err := telemetry.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	readings, total := s.store.Window(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(readings),
		"total":   total,
		"data":    readings,
	})
}

func (s *Server) handleLatestReading(w http.ResponseWriter, _ *http.Request) {
	latest, err := s.store.Latest()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// handleSensorRange returns readings between start and end, both inclusive.
func (s *Server) handleSensorRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := telemetry.ParseRangeBounds(q.Get("start"), q.Get("end"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	readings, err := s.store.Range(start, end)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(readings),
		"data":    readings,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.store.Statistics()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleClearSensorData drops the reading history. Status is kept.
func (s *Server) handleClearSensorData(w http.ResponseWriter, _ *http.Request) {
	cleared := s.store.Clear()
	s.logger.Info("sensor history cleared", "cleared", cleared)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cleared": cleared,
		"message": fmt.Sprintf("Cleared %d data points", cleared),
	})
}
