package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"llamad/internal/llm"
)

// writeModelFile creates a file starting with the GGUF magic and returns its path.
func writeModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, append([]byte("GGUF"), make([]byte, 64)...), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

// fakeAdapter records loads and hands out fakeEngines.
type fakeAdapter struct {
	mu      sync.Mutex
	loadErr error
	tokens  []string
	genErr  error
	onToken func(i int) // called before token i is emitted
	loads   int
	live    int
	params  llm.LoadParams
	engines []*fakeEngine
}

func (a *fakeAdapter) Load(path string, params llm.LoadParams) (llm.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loads++
	a.params = params
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	a.live++
	e := &fakeEngine{a: a}
	a.engines = append(a.engines, e)
	return e, nil
}

func (a *fakeAdapter) liveEngines() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

type fakeEngine struct {
	a       *fakeAdapter
	closed  int
	prompts []string
	opts    []llm.PredictOptions
	active  int
	maxSeen int
}

func (e *fakeEngine) Predict(ctx context.Context, prompt string, opts llm.PredictOptions, onToken func(string) error) (llm.Finish, error) {
	e.active++
	if e.active > e.maxSeen {
		e.maxSeen = e.active
	}
	defer func() { e.active-- }()
	e.prompts = append(e.prompts, prompt)
	e.opts = append(e.opts, opts)
	n := 0
	for i, tok := range e.a.tokens {
		if e.a.onToken != nil {
			e.a.onToken(i)
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
	if e.a.genErr != nil {
		return llm.Finish{Tokens: n}, e.a.genErr
	}
	return llm.Finish{Reason: llm.FinishStop, Tokens: n}, nil
}

func (e *fakeEngine) Close() error {
	e.closed++
	e.a.mu.Lock()
	e.a.live--
	e.a.mu.Unlock()
	return nil
}

// wordCounter counts whitespace-separated words so window tests are exact.
type wordCounter struct{}

func (wordCounter) CountTokens(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\n' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

var errBoom = errors.New("boom")
