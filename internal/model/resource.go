// Package model owns a loaded language model and its execution context.
//
// A Resource is created once with Open, drives one generation pass at a time
// through Generate, and is torn down exactly once with Release. The execution
// context is single-writer: the Resource lock is held for the whole pass, so a
// second pass (or Release) waits for the first to finish.
package model

import (
	"context"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"llamad/internal/conversation"
	"llamad/internal/llm"
)

// Defaults and limits for Config.
const (
	DefaultContextSize = 2048
	MaxContextSize     = 1 << 17
	MaxGPULayers       = 1024
	DefaultMaxTokens   = 256
)

// DefaultStop ends the assistant turn when the model starts a user line.
var DefaultStop = []string{userLabel}

// Config is fixed at Open.
type Config struct {
	ModelPath   string
	ContextSize int
	GPULayers   int
	Threads     int
}

func (c Config) withDefaults() Config {
	if c.ContextSize == 0 {
		c.ContextSize = DefaultContextSize
	}
	return c
}

// Request bounds one generation pass. Prompt is the new user turn; the
// history passed to Generate holds the turns before it.
type Request struct {
	Prompt    string
	MaxTokens int
	Stop      []string
	Sampling  llm.Sampling
}

func (r Request) withDefaults() Request {
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Stop == nil {
		r.Stop = DefaultStop
	}
	return r
}

// Resource owns an llm.Engine.
type Resource struct {
	cfg     Config
	log     zerolog.Logger
	counter TokenCounter

	mu     sync.Mutex
	engine llm.Engine
	// released is readable without mu, which a generation pass holds.
	released atomic.Bool
}

// Option customizes a Resource.
type Option func(*Resource)

// WithLogger sets the logger used for load, release and window trimming.
func WithLogger(l zerolog.Logger) Option { return func(r *Resource) { r.log = l } }

// WithTokenCounter replaces the tiktoken based estimate used for windowing.
func WithTokenCounter(c TokenCounter) Option { return func(r *Resource) { r.counter = c } }

// Open validates cfg, checks the model artifact and loads it through adapter.
// Loading is synchronous and may take seconds. Any failure is a *LoadError
// and leaves nothing allocated.
func Open(cfg Config, adapter llm.Adapter, opts ...Option) (*Resource, error) {
	cfg = cfg.withDefaults()
	r := &Resource{cfg: cfg, log: zerolog.Nop()}
	for _, o := range opts {
		o(r)
	}
	if r.counter == nil {
		r.counter = &tiktokenCounter{}
	}

	if cfg.ContextSize < 0 || cfg.ContextSize > MaxContextSize {
		return nil, &LoadError{Path: cfg.ModelPath, Reason: ReasonLimits, Err: errors.Errorf("context size %d not in [1,%d]", cfg.ContextSize, MaxContextSize)}
	}
	if cfg.GPULayers < 0 || cfg.GPULayers > MaxGPULayers {
		return nil, &LoadError{Path: cfg.ModelPath, Reason: ReasonLimits, Err: errors.Errorf("gpu layers %d not in [0,%d]", cfg.GPULayers, MaxGPULayers)}
	}
	if err := checkArtifact(cfg.ModelPath); err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, &LoadError{Path: cfg.ModelPath, Reason: ReasonUnavailable, Err: errors.New("no adapter")}
	}

	eng, err := adapter.Load(cfg.ModelPath, llm.LoadParams{
		ContextSize: cfg.ContextSize,
		GPULayers:   cfg.GPULayers,
		Threads:     cfg.Threads,
	})
	if err != nil {
		reason := ReasonEngine
		if errors.Is(err, llm.ErrDependencyUnavailable) {
			reason = ReasonUnavailable
		}
		return nil, &LoadError{Path: cfg.ModelPath, Reason: reason, Err: err}
	}
	if eng == nil {
		return nil, &LoadError{Path: cfg.ModelPath, Reason: ReasonEngine, Err: errors.New("adapter returned no engine")}
	}
	r.engine = eng
	r.log.Info().
		Str("model", cfg.ModelPath).
		Int("context_size", cfg.ContextSize).
		Int("gpu_layers", cfg.GPULayers).
		Msg("model loaded")
	return r, nil
}

// Config returns the configuration the model was loaded with.
func (r *Resource) Config() Config { return r.cfg }

// Released reports whether Release has run. It does not wait for an
// in-flight pass.
func (r *Resource) Released() bool { return r.released.Load() }

// Release frees the context and weights. It waits for an in-flight pass to
// end and is idempotent: later calls return nil and do nothing. It must not be
// called from inside a Fragments loop on the same Resource.
func (r *Resource) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return nil
	}
	err := r.engine.Close()
	r.engine = nil
	r.released.Store(true)
	r.log.Info().Str("model", r.cfg.ModelPath).Err(err).Msg("model released")
	return errors.Wrap(err, "close engine")
}

// Summary describes a finished pass.
type Summary struct {
	Reason    string // llm.FinishStop, llm.FinishLength, or "" if the pass did not complete
	Tokens    int    // engine tokens consumed
	Fragments int    // fragments yielded
	Dropped   int    // history turns left out of the prompt to fit the window
}

// Generation is a single, non-restartable generation pass.
type Generation struct {
	r       *Resource
	ctx     context.Context
	history []conversation.Message
	req     Request

	used    atomic.Bool
	summary Summary
}

// Generate prepares a pass over history plus req.Prompt. Nothing runs until
// Fragments is iterated.
func (r *Resource) Generate(ctx context.Context, history []conversation.Message, req Request) *Generation {
	return &Generation{r: r, ctx: ctx, history: history, req: req.withDefaults()}
}

// Summary is valid once Fragments has been drained.
func (g *Generation) Summary() Summary { return g.summary }

// Fragments yields generated text in order. The engine runs inside the
// iteration, one token per step, so nothing is produced ahead of the
// consumer. Breaking out of the loop stops the engine. A failure is yielded as
// the final element with an empty fragment. Iterating a second time yields
// ErrSequenceConsumed.
func (g *Generation) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if g.used.Swap(true) {
			yield("", ErrSequenceConsumed)
			return
		}
		r := g.r
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.engine == nil {
			yield("", ErrReleased)
			return
		}
		if err := g.ctx.Err(); err != nil {
			yield("", err)
			return
		}

		prompt, dropped, err := r.fit(g.history, g.req)
		if err != nil {
			yield("", err)
			return
		}
		g.summary.Dropped = dropped
		if dropped > 0 {
			r.log.Warn().
				Int("dropped_turns", dropped).
				Int("context_size", r.cfg.ContextSize).
				Msg("context window reached, oldest turns left out of prompt")
		}

		m := newStopMatcher(g.req.Stop)
		halted := false
		onToken := func(tok string) error {
			out, hit := m.Write(tok)
			if out != "" {
				g.summary.Fragments++
				if !yield(out, nil) {
					halted = true
					return errHalted
				}
			}
			if hit {
				return errStopMatched
			}
			return nil
		}
		fin, err := r.engine.Predict(g.ctx, prompt, llm.PredictOptions{
			MaxTokens: g.req.MaxTokens,
			Sampling:  g.req.Sampling,
		}, onToken)
		g.summary.Tokens = fin.Tokens
		switch {
		case halted:
			return
		case errors.Is(err, errStopMatched):
			g.summary.Reason = llm.FinishStop
			return
		case err != nil:
			yield("", errors.Wrap(err, "generate"))
			return
		}
		if tail := m.Flush(); tail != "" {
			g.summary.Fragments++
			if !yield(tail, nil) {
				return
			}
		}
		g.summary.Reason = fin.Reason
	}
}

// Text drains g and returns the concatenated fragments.
func (g *Generation) Text() (string, error) {
	var b strings.Builder
	for frag, err := range g.Fragments() {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}
