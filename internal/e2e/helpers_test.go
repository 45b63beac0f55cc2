package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"llamad/internal/httpapi"
	"llamad/internal/llm"
	"llamad/internal/model"
	"llamad/internal/registry"
	"llamad/internal/session"
)

// replyAdapter answers every prompt with the same tokens. When gate is set,
// each pass blocks on it before emitting.
type replyAdapter struct {
	tokens  []string
	gate    chan struct{}
	started chan struct{}

	mu      sync.Mutex
	prompts []string
}

func (a *replyAdapter) Load(string, llm.LoadParams) (llm.Engine, error) { return a, nil }

func (a *replyAdapter) Predict(ctx context.Context, prompt string, opts llm.PredictOptions, onToken func(string) error) (llm.Finish, error) {
	a.mu.Lock()
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()
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
	for i, tok := range a.tokens {
		if opts.MaxTokens > 0 && i >= opts.MaxTokens {
			return llm.Finish{Reason: llm.FinishLength, Tokens: i}, nil
		}
		if err := onToken(tok); err != nil {
			return llm.Finish{Tokens: i}, err
		}
	}
	return llm.Finish{Reason: llm.FinishStop, Tokens: len(a.tokens)}, nil
}

func (a *replyAdapter) Close() error { return nil }

func (a *replyAdapter) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

// createTempModelsDir creates a directory holding one GGUF-looking file.
func createTempModelsDir(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), append([]byte("GGUF"), make([]byte, 64)...), 0o644))
	return dir
}

// newServer loads a model from a temp dir through adapter and serves the
// session over httptest.
func newServer(t *testing.T, adapter llm.Adapter, cfg session.Config) (*httptest.Server, *session.Session) {
	t.Helper()
	path, err := registry.Resolve(createTempModelsDir(t, "alpha.gguf"))
	require.NoError(t, err)
	res, err := model.Open(model.Config{ModelPath: path}, adapter, model.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	sess := session.New(res, cfg)
	srv := httptest.NewServer(httpapi.NewMux(sess))
	t.Cleanup(func() {
		srv.Close()
		_ = sess.Close()
	})
	return srv, sess
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
