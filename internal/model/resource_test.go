package model

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"llamad/internal/conversation"
	"llamad/internal/llm"
)

func openTest(t *testing.T, a *fakeAdapter, cfg Config) *Resource {
	t.Helper()
	if cfg.ModelPath == "" {
		cfg.ModelPath = writeModelFile(t, t.TempDir(), "valid.bin")
	}
	r, err := Open(cfg, a, WithTokenCounter(wordCounter{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Release() })
	return r
}

func TestOpen_UsesConfiguredParams(t *testing.T) {
	a := &fakeAdapter{}
	r := openTest(t, a, Config{ContextSize: 4096, GPULayers: 12, Threads: 3})
	require.Equal(t, llm.LoadParams{ContextSize: 4096, GPULayers: 12, Threads: 3}, a.params)
	require.Equal(t, 4096, r.Config().ContextSize)
	require.Equal(t, 12, r.Config().GPULayers)
}

func TestOpen_DefaultsContextSize(t *testing.T) {
	a := &fakeAdapter{}
	r := openTest(t, a, Config{})
	require.Equal(t, DefaultContextSize, a.params.ContextSize)
	require.Equal(t, 0, a.params.GPULayers)
	require.Equal(t, DefaultContextSize, r.Config().ContextSize)
}

func TestOpen_MissingPathIsLoadError(t *testing.T) {
	a := &fakeAdapter{}
	_, err := Open(Config{ModelPath: filepath.Join(t.TempDir(), "nope.gguf")}, a)
	require.Error(t, err)
	require.True(t, IsLoadError(err))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, ReasonUnreadable, le.Reason)
	require.Equal(t, 0, a.loads, "engine must not be touched")
	require.Equal(t, 0, a.liveEngines())

	// A fresh resource with a valid path succeeds afterwards.
	r, err := Open(Config{ModelPath: writeModelFile(t, t.TempDir(), "valid.bin")}, a)
	require.NoError(t, err)
	require.NoError(t, r.Release())
}

func TestOpen_RejectsNonGGUF(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "weights.bin")
	require.NoError(t, writeFile(p, "not a model at all"))
	a := &fakeAdapter{}
	_, err := Open(Config{ModelPath: p}, a)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, ReasonInvalid, le.Reason)
	require.Equal(t, 0, a.loads)
}

func TestOpen_RejectsDirectoryAndShortFile(t *testing.T) {
	a := &fakeAdapter{}
	_, err := Open(Config{ModelPath: t.TempDir()}, a)
	require.True(t, IsLoadError(err))

	p := filepath.Join(t.TempDir(), "short.gguf")
	require.NoError(t, writeFile(p, "GG"))
	_, err = Open(Config{ModelPath: p}, a)
	require.True(t, IsLoadError(err))
	require.Equal(t, 0, a.loads)
}

func TestOpen_LimitsAreLoadErrors(t *testing.T) {
	p := writeModelFile(t, t.TempDir(), "m.gguf")
	cases := []Config{
		{ModelPath: p, ContextSize: -1},
		{ModelPath: p, ContextSize: MaxContextSize + 1},
		{ModelPath: p, GPULayers: -2},
		{ModelPath: p, GPULayers: MaxGPULayers + 1},
	}
	for _, c := range cases {
		a := &fakeAdapter{}
		_, err := Open(c, a)
		var le *LoadError
		require.True(t, errors.As(err, &le), "%+v", c)
		require.Equal(t, ReasonLimits, le.Reason)
		require.Equal(t, 0, a.loads)
	}
}

func TestOpen_EngineFailureLeavesNothingAllocated(t *testing.T) {
	a := &fakeAdapter{loadErr: errBoom}
	_, err := Open(Config{ModelPath: writeModelFile(t, t.TempDir(), "m.gguf")}, a)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, ReasonEngine, le.Reason)
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 0, a.liveEngines())
}

func TestOpen_DependencyUnavailable(t *testing.T) {
	a := &fakeAdapter{loadErr: llm.ErrDependencyUnavailable}
	_, err := Open(Config{ModelPath: writeModelFile(t, t.TempDir(), "m.gguf")}, a)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, ReasonUnavailable, le.Reason)
}

func TestRelease_Idempotent(t *testing.T) {
	a := &fakeAdapter{}
	r := openTest(t, a, Config{})
	require.NoError(t, r.Release())
	require.NoError(t, r.Release())
	require.True(t, r.Released())
	require.Equal(t, 1, a.engines[0].closed)
	require.Equal(t, 0, a.liveEngines())
}

func TestGenerate_AfterReleaseFails(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"x"}}
	r := openTest(t, a, Config{})
	require.NoError(t, r.Release())
	_, err := r.Generate(context.Background(), nil, Request{Prompt: "hi"}).Text()
	require.ErrorIs(t, err, ErrReleased)
}

func TestGenerate_AccumulatesFragmentsInOrder(t *testing.T) {
	a := &fakeAdapter{tokens: []string{" Hel", "lo", " there"}}
	r := openTest(t, a, Config{})
	g := r.Generate(context.Background(), nil, Request{Prompt: "Hello"})
	var got []string
	for frag, err := range g.Fragments() {
		require.NoError(t, err)
		got = append(got, frag)
	}
	require.Equal(t, []string{" Hel", "lo", " there"}, got)
	require.Equal(t, llm.FinishStop, g.Summary().Reason)
	require.Equal(t, 3, g.Summary().Fragments)
	require.Equal(t, "User: Hello\nAssistant:", a.engines[0].prompts[0])
	require.Equal(t, DefaultMaxTokens, a.engines[0].opts[0].MaxTokens)
}

func TestGenerate_StopsAtStopSequenceSplitAcrossTokens(t *testing.T) {
	a := &fakeAdapter{tokens: []string{" Sure", ".\nUs", "er: more", " never"}}
	r := openTest(t, a, Config{})
	g := r.Generate(context.Background(), nil, Request{Prompt: "q"})
	text, err := g.Text()
	require.NoError(t, err)
	require.Equal(t, " Sure.\n", text)
	require.Equal(t, llm.FinishStop, g.Summary().Reason)
	require.Equal(t, 3, g.Summary().Tokens, "engine stops at the matching token")
}

func TestGenerate_MaxTokens(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"a", "b", "c", "d"}}
	r := openTest(t, a, Config{})
	g := r.Generate(context.Background(), nil, Request{Prompt: "q", MaxTokens: 2})
	text, err := g.Text()
	require.NoError(t, err)
	require.Equal(t, "ab", text)
	require.Equal(t, llm.FinishLength, g.Summary().Reason)
}

func TestGenerate_EmptyOutput(t *testing.T) {
	a := &fakeAdapter{}
	r := openTest(t, a, Config{})
	text, err := r.Generate(context.Background(), nil, Request{Prompt: "q"}).Text()
	require.NoError(t, err)
	require.Equal(t, "", text)
}

func TestGenerate_NotRestartable(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"a"}}
	r := openTest(t, a, Config{})
	g := r.Generate(context.Background(), nil, Request{Prompt: "q"})
	_, err := g.Text()
	require.NoError(t, err)
	_, err = g.Text()
	require.ErrorIs(t, err, ErrSequenceConsumed)
	require.Len(t, a.engines[0].prompts, 1)
}

func TestGenerate_EngineErrorIsYieldedLast(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"a", "b"}, genErr: errBoom}
	r := openTest(t, a, Config{})
	text, err := r.Generate(context.Background(), nil, Request{Prompt: "q"}).Text()
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, "ab", text)
}

func TestGenerate_CancelAfterFirstFragment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &fakeAdapter{tokens: []string{"one", "two", "three"}}
	a.onToken = func(i int) {
		if i == 1 {
			cancel()
		}
	}
	r := openTest(t, a, Config{})
	text, err := r.Generate(ctx, nil, Request{Prompt: "q"}).Text()
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "one", text)
}

func TestGenerate_BreakStopsEngine(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"a", "b", "c"}}
	r := openTest(t, a, Config{})
	g := r.Generate(context.Background(), nil, Request{Prompt: "q"})
	for frag := range g.Fragments() {
		require.Equal(t, "a", frag)
		break
	}
	require.Equal(t, 1, g.Summary().Tokens)
	require.Equal(t, "", g.Summary().Reason)
}

func TestGenerate_RendersHistory(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"ok"}}
	r := openTest(t, a, Config{})
	hist := []conversation.Message{conversation.User("Hi"), conversation.Assistant("Hello!")}
	_, err := r.Generate(context.Background(), hist, Request{Prompt: "How are you?"}).Text()
	require.NoError(t, err)
	require.Equal(t, "User: Hi\nAssistant: Hello!\nUser: How are you?\nAssistant:", a.engines[0].prompts[0])
}

func TestGenerate_WindowLeavesOutOldestTurns(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"ok"}}
	// budget = 20 - 10 = 10 words
	r := openTest(t, a, Config{ContextSize: 20})
	hist := []conversation.Message{
		conversation.User("one two three"),
		conversation.Assistant("four five"),
		conversation.User("six"),
		conversation.Assistant("seven"),
	}
	g := r.Generate(context.Background(), hist, Request{Prompt: "eight", MaxTokens: 10})
	_, err := g.Text()
	require.NoError(t, err)
	require.Equal(t, 2, g.Summary().Dropped)
	require.Equal(t, "User: six\nAssistant: seven\nUser: eight\nAssistant:", a.engines[0].prompts[0])
}

func TestGenerate_ContextExceeded(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"ok"}}
	r := openTest(t, a, Config{ContextSize: 8})
	_, err := r.Generate(context.Background(), nil, Request{Prompt: "a b c d e f g h", MaxTokens: 2}).Text()
	require.ErrorIs(t, err, ErrContextExceeded)

	_, err = r.Generate(context.Background(), nil, Request{Prompt: "a", MaxTokens: 8}).Text()
	require.ErrorIs(t, err, ErrContextExceeded)
	require.Empty(t, a.engines[0].prompts)
}

func TestGenerate_SerializesPasses(t *testing.T) {
	a := &fakeAdapter{tokens: []string{"a", "b", "c"}}
	a.onToken = func(int) { time.Sleep(time.Millisecond) }
	r := openTest(t, a, Config{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Generate(context.Background(), nil, Request{Prompt: "q"}).Text()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, a.engines[0].maxSeen)
	require.Len(t, a.engines[0].prompts, 4)
}

func TestRelease_WaitsForInFlightPass(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})
	a := &fakeAdapter{tokens: []string{"a", "b"}}
	a.onToken = func(i int) {
		if i == 0 {
			close(started)
			<-proceed
		}
	}
	r := openTest(t, a, Config{})
	done := make(chan error, 1)
	go func() {
		_, err := r.Generate(context.Background(), nil, Request{Prompt: "q"}).Text()
		done <- err
	}()
	<-started
	require.False(t, r.Released())
	released := make(chan struct{})
	go func() {
		_ = r.Release()
		close(released)
	}()
	select {
	case <-released:
		t.Fatal("release ran while a pass was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	require.False(t, r.Released())
	close(proceed)
	require.NoError(t, <-done)
	<-released
	require.True(t, r.Released())
	require.Equal(t, 1, a.engines[0].closed)
}
