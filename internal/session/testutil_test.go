package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"llamad/internal/llm"
	"llamad/internal/model"
)

// scriptAdapter loads a single scriptEngine whose replies are scripted per call.
type scriptAdapter struct {
	mu      sync.Mutex
	replies [][]string // tokens per call; the last entry repeats
	prompts []string
	opts    []llm.PredictOptions
	onToken func(call, i int) // called before token i of a call is emitted
	gate    chan struct{}     // when set, Predict blocks on it before emitting
	started chan struct{}     // when set, receives one value per Predict
	active  int
	maxSeen int
	closed  int
}

func (a *scriptAdapter) Load(string, llm.LoadParams) (llm.Engine, error) {
	return &scriptEngine{a: a}, nil
}

func (a *scriptAdapter) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

type scriptEngine struct{ a *scriptAdapter }

func (e *scriptEngine) Predict(ctx context.Context, prompt string, opts llm.PredictOptions, onToken func(string) error) (llm.Finish, error) {
	a := e.a
	a.mu.Lock()
	call := len(a.prompts)
	a.prompts = append(a.prompts, prompt)
	a.opts = append(a.opts, opts)
	a.active++
	if a.active > a.maxSeen {
		a.maxSeen = a.active
	}
	var toks []string
	if len(a.replies) > 0 {
		toks = a.replies[min(call, len(a.replies)-1)]
	}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.active--
		a.mu.Unlock()
	}()

	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return llm.Finish{}, ctx.Err()
		}
	}
	n := 0
	for i, tok := range toks {
		if a.onToken != nil {
			a.onToken(call, i)
		}
		if err := ctx.Err(); err != nil {
			return llm.Finish{Tokens: n}, err
		}
		if opts.MaxTokens > 0 && n >= opts.MaxTokens {
			return llm.Finish{Reason: llm.FinishLength, Tokens: n}, nil
		}
		n++
		if err := onToken(tok); err != nil {
			return llm.Finish{Tokens: n}, err
		}
	}
	return llm.Finish{Reason: llm.FinishStop, Tokens: n}, nil
}

func (e *scriptEngine) Close() error {
	e.a.mu.Lock()
	e.a.closed++
	e.a.mu.Unlock()
	return nil
}

// wordCounter counts whitespace-separated words.
type wordCounter struct{}

func (wordCounter) CountTokens(s string) int {
	n, in := 0, false
	for _, r := range s {
		if r == ' ' || r == '\n' {
			in = false
			continue
		}
		if !in {
			n++
			in = true
		}
	}
	return n
}

// newTestSession opens a Resource over a fake GGUF file and wraps it.
func newTestSession(t *testing.T, a *scriptAdapter, cfg Config, mcfg model.Config) *Session {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tiny.gguf")
	require.NoError(t, os.WriteFile(p, append([]byte("GGUF"), make([]byte, 64)...), 0o644))
	mcfg.ModelPath = p
	res, err := model.Open(mcfg, a, model.WithTokenCounter(wordCounter{}))
	require.NoError(t, err)
	s := New(res, cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// recorder is an EventPublisher that keeps everything it is given.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Names lists recorded event names in publish order.
func (r *recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name)
	}
	return names
}

// Last returns the most recent event with the given name.
func (r *recorder) Last(name string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return Event{}, false
}
