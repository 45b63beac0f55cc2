//go:build !llama

package llm

// Built reports whether this binary carries the in-process llama.cpp engine.
const Built = false

// llamaAdapter refuses to load anything so a default (CGO-free) build fails
// fast at startup instead of serving mocked output.
type llamaAdapter struct{}

// NewLlamaAdapter returns the adapter compiled into this binary.
func NewLlamaAdapter() Adapter { return llamaAdapter{} }

func (llamaAdapter) Load(path string, params LoadParams) (Engine, error) {
	return nil, ErrDependencyUnavailable
}
