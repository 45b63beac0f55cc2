//go:build llama

package llm

import (
	"context"
	"runtime"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/pkg/errors"
)

// Built reports whether this binary carries the in-process llama.cpp engine.
const Built = true

type llamaAdapter struct{}

// NewLlamaAdapter returns the go-llama.cpp backed adapter.
func NewLlamaAdapter() Adapter { return llamaAdapter{} }

// llamaEngine owns the loaded model; go-llama.cpp keeps weights and context
// behind the same handle.
type llamaEngine struct {
	model   *llama.LLama
	threads int
}

func (llamaAdapter) Load(path string, params LoadParams) (Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(params.ContextSize),
	}
	if params.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(params.GPULayers))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	threads := params.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &llamaEngine{model: m, threads: threads}, nil
}

func (e *llamaEngine) Predict(ctx context.Context, prompt string, opts PredictOptions, onToken func(string) error) (Finish, error) {
	if e.model == nil {
		return Finish{}, errors.New("llama model not initialized")
	}
	var (
		tokens  int
		stopErr error
	)
	e.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		tokens++
		if err := onToken(tok); err != nil {
			stopErr = err
			return false
		}
		return true
	})
	defer e.model.SetTokenCallback(nil)

	_, err := e.model.Predict(prompt, predictOptions(opts, e.threads)...)
	switch {
	case stopErr != nil:
		return Finish{Tokens: tokens}, stopErr
	case ctx.Err() != nil:
		return Finish{Tokens: tokens}, ctx.Err()
	case err != nil:
		return Finish{Tokens: tokens}, err
	}
	reason := FinishStop
	if opts.MaxTokens > 0 && tokens >= opts.MaxTokens {
		reason = FinishLength
	}
	return Finish{Reason: reason, Tokens: tokens}, nil
}

func (e *llamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts our options into go-llama.cpp options.
func predictOptions(opts PredictOptions, threads int) []llama.PredictOption {
	s := opts.Sampling
	po := []llama.PredictOption{
		llama.SetTokens(max(1, opts.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(s.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(s.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(s.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(s.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if s.Seed != 0 {
		po = append(po, llama.SetSeed(s.Seed))
	}
	return po
}
