package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/agri-gateway/internal/audit"
	"github.com/nerrad567/agri-gateway/internal/relay"
	"github.com/nerrad567/agri-gateway/internal/telemetry"
)

// readBody reads the request body, answering 413 or 400 itself on failure.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return nil, false
		}
		writeBadRequest(w, "failed to read request body")
		return nil, false
	}
	return body, true
}

// handleControl switches the pump or the light.
//
// Body: {"state": bool, "mode": "manual"|"auto"}
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	actuator := chi.URLParam(r, "actuator")
	if actuator != relay.ActuatorPump && actuator != relay.ActuatorLight {
		writeNotFound(w, "unknown actuator: "+actuator)
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	cmd, err := relay.ParseControl(body)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	sent, err := s.relay.Control(r.Context(), actuator, cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"state":   sent.State,
		"mode":    sent.Mode,
	})
}

// handleConfig forwards a device configuration update.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	update, err := relay.ParseConfig(body)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	applied, err := s.relay.UpdateConfig(r.Context(), update)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"config":  applied,
	})
}

// handleRecentCommands lists audited command attempts, newest first.
//
// Query parameters:
//   - limit: page size (default 50, max 200)
func (s *Server) handleRecentCommands(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command audit is disabled")
		return
	}

	limit, err := telemetry.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	commands, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list audited commands", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(commands),
		"limit":    audit.ClampLimit(limit),
		"commands": commands,
	})
}
