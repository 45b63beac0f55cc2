package session

import (
	"net/http"

	"github.com/pkg/errors"
)

// ErrClosed is returned by calls on a closed Session.
var ErrClosed = errors.New("session closed")

// BusyError signals that a call could not be admitted because another
// generation holds the context. Callers may retry with backoff.
type BusyError struct {
	SessionID string
	Reason    string
}

func (e *BusyError) Error() string { return "session busy: " + e.Reason }

// StatusCode maps to 429 Too Many Requests.
func (e *BusyError) StatusCode() int { return http.StatusTooManyRequests }

// IsBusy reports whether err indicates backpressure.
func IsBusy(err error) bool {
	var be *BusyError
	return errors.As(err, &be)
}

// InferenceError wraps any failure during generation, including
// cancellation. The user turn stays in history; Partial is the text produced
// before the failure and is not recorded.
type InferenceError struct {
	SessionID string
	Err       error
	Partial   string
}

func (e *InferenceError) Error() string { return "inference failed: " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

// StatusCode maps to 500 Internal Server Error.
func (e *InferenceError) StatusCode() int { return http.StatusInternalServerError }

// IsInferenceError reports whether err is (or wraps) an InferenceError.
func IsInferenceError(err error) bool {
	var ie *InferenceError
	return errors.As(err, &ie)
}
