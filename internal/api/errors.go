package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/agri-gateway/internal/relay"
	"github.com/nerrad567/agri-gateway/internal/telemetry"
)

// Error is the body of every error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInvalidRange   = "invalid_range"
	ErrCodeValidation     = "validation_error"
	ErrCodePublishFailed  = "publish_failed"
	ErrCodeUnavailable    = "service_unavailable"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps sentinel errors from the telemetry and relay
// packages onto HTTP responses. Anything unrecognised is a 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relay.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, relay.ErrPublishFailed):
		writeError(w, http.StatusBadGateway, ErrCodePublishFailed, err.Error())
	case errors.Is(err, telemetry.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRange, err.Error())
	case errors.Is(err, telemetry.ErrNotFound):
		writeNotFound(w, err.Error())
	default:
		s.logger.Error("unhandled API error", "error", err)
		writeInternalError(w, "internal server error")
	}
}
