// Package llm is the boundary to the native inference engine. The engine owns
// the model weights and the execution context; everything above this package
// treats token generation and sampling as an opaque capability.
package llm

import (
	"context"

	"github.com/pkg/errors"
)

// Adapter loads model weights and creates an execution context for them.
type Adapter interface {
	// Load reads the model at path and allocates a context sized by params.
	// On error nothing stays allocated.
	Load(path string, params LoadParams) (Engine, error)
}

// Engine is a loaded model plus its execution context. It is stateful and
// single-writer: callers must not run Predict concurrently.
type Engine interface {
	// Predict runs one generation pass over prompt. onToken is invoked for
	// every generated piece of text; returning an error from it stops
	// generation and Predict returns that error. Implementations must stop at
	// the next token once ctx is done.
	Predict(ctx context.Context, prompt string, opts PredictOptions, onToken func(string) error) (Finish, error)
	// Close frees the context and the weights.
	Close() error
}

// LoadParams are fixed for the lifetime of an Engine.
type LoadParams struct {
	ContextSize int
	GPULayers   int
	Threads     int
}

// Sampling tunes token selection. Zero values mean "engine default".
type Sampling struct {
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	Seed          int
}

// PredictOptions bound a single generation pass. Stop sequences are not
// passed down; callers match them on the streamed text and stop the pass from
// onToken.
type PredictOptions struct {
	MaxTokens int
	Sampling  Sampling
}

// Finish reasons reported by Predict.
const (
	FinishStop   = "stop"   // end-of-turn
	FinishLength = "length" // MaxTokens reached
)

// Finish summarizes a completed pass.
type Finish struct {
	Reason string
	Tokens int
}

// ErrDependencyUnavailable is returned when the binary was built without a
// working engine.
var ErrDependencyUnavailable = errors.New("llama support not built (missing 'llama' build tag)")
