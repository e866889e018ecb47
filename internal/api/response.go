package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/koopa0/llamagate/internal/engine"
	"github.com/koopa0/llamagate/internal/model"
)

// writeJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after successful
// encoding. This allows returning a proper 500 error if JSON encoding fails.
func writeJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("failed to write response body", "error", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message}, logger)
}

// writeDomainError maps domain errors to HTTP status codes: a model that
// is not loaded is a temporary service condition (503), malformed input
// and unknown names are client errors (400), and everything else is an
// internal failure (500).
func writeDomainError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, engine.ErrModelNotLoaded):
		WriteError(w, http.StatusServiceUnavailable, "model_not_loaded", err.Error(), logger)
	case errors.Is(err, engine.ErrTokenization):
		WriteError(w, http.StatusBadRequest, "tokenization_failed", err.Error(), logger)
	case errors.Is(err, model.ErrUnknownModel):
		WriteError(w, http.StatusBadRequest, "unknown_model", err.Error(), logger)
	default:
		WriteError(w, http.StatusInternalServerError, "generation_failed", err.Error(), logger)
	}
}
