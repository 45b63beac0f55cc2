package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"llamad/internal/model"
	"llamad/internal/session"
	"llamad/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

// mapError translates a completion failure into a status code and a message
// safe to show clients. Inference failures never leak engine detail.
func mapError(err error) (int, string) {
	var be *session.BusyError
	switch {
	case errors.As(err, &be):
		IncrementBackpressure(be.Reason)
		return http.StatusTooManyRequests, be.Error()
	case errors.Is(err, session.ErrClosed), errors.Is(err, model.ErrReleased):
		return http.StatusServiceUnavailable, "model not available"
	case shuttingDown():
		return http.StatusServiceUnavailable, "server shutting down"
	case errors.Is(err, model.ErrContextExceeded):
		return http.StatusRequestEntityTooLarge, "prompt exceeds the context window"
	case session.IsInferenceError(err):
		return http.StatusInternalServerError, "inference failed"
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode(), he.Error()
	}
	return http.StatusInternalServerError, "internal error"
}
