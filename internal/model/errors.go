package model

import (
	"github.com/pkg/errors"
)

// Load failure reasons carried on LoadError.
const (
	ReasonUnreadable  = "unreadable"
	ReasonInvalid     = "not a GGUF model"
	ReasonLimits      = "resource limits"
	ReasonEngine      = "engine refused model"
	ReasonUnavailable = "engine unavailable"
)

// LoadError reports why a model could not be loaded. It is fatal at startup.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "load model " + e.Path + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is (or wraps) a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

var (
	// ErrReleased is returned by a generation started after Release.
	ErrReleased = errors.New("model resource released")
	// ErrSequenceConsumed is yielded when a Generation is iterated twice.
	ErrSequenceConsumed = errors.New("generation already consumed")
	// ErrContextExceeded means the newest turn plus the reply budget does not
	// fit in the context window even with all older turns left out.
	ErrContextExceeded = errors.New("prompt does not fit the context window")
)

// errStopMatched and errHalted stop the engine from inside the token callback.
var (
	errStopMatched = errors.New("stop sequence matched")
	errHalted      = errors.New("consumer stopped iteration")
)
