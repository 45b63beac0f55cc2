package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"llamad/internal/config"
	"llamad/internal/llm"
)

type echoAdapter struct{ prompts []string }

func (a *echoAdapter) Load(string, llm.LoadParams) (llm.Engine, error) { return a, nil }

func (a *echoAdapter) Predict(ctx context.Context, prompt string, _ llm.PredictOptions, onToken func(string) error) (llm.Finish, error) {
	a.prompts = append(a.prompts, prompt)
	for i, tok := range []string{" hello", " world"} {
		if err := ctx.Err(); err != nil {
			return llm.Finish{Tokens: i}, err
		}
		if err := onToken(tok); err != nil {
			return llm.Finish{Tokens: i}, err
		}
	}
	return llm.Finish{Reason: llm.FinishStop, Tokens: 2}, nil
}

func (a *echoAdapter) Close() error { return nil }

func writeModel(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.gguf"), append([]byte("GGUF"), make([]byte, 64)...), 0o644))
	return dir
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Config{ModelPath: writeModel(t), LogLevel: "error", LogFormat: "json"}.WithDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func parseFlags(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("llamad", pflag.ContinueOnError)
	addConfigFlags(fs)
	require.NoError(t, fs.Parse(args))
	v := config.NewViper()
	require.NoError(t, v.BindPFlags(fs))
	return loadConfig(v)
}

func TestLoadConfig_FlagsOverFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "llamad.toml")
	require.NoError(t, os.WriteFile(p, []byte("model_path = \"/m/a.gguf\"\nmax_tokens = 64\nqueue_depth = 2\n"), 0o644))

	cfg, err := parseFlags(t, "--config", p, "--max-tokens", "32", "--single-shot")
	require.NoError(t, err)
	require.Equal(t, "/m/a.gguf", cfg.ModelPath)
	require.Equal(t, 32, cfg.MaxTokens)
	require.Equal(t, 2, cfg.QueueDepth)
	require.True(t, cfg.SingleShot)
	require.Equal(t, config.DefaultAddr, cfg.Addr)
}

func TestLoadConfig_EnvOverlay(t *testing.T) {
	t.Setenv("LLAMAD_MODEL_PATH", "/m/b.gguf")
	t.Setenv("LLAMAD_CONTEXT_SIZE", "4096")
	cfg, err := parseFlags(t)
	require.NoError(t, err)
	require.Equal(t, "/m/b.gguf", cfg.ModelPath)
	require.Equal(t, 4096, cfg.ContextSize)
}

func TestLoadConfig_ExplicitZeroTurnsSMSLimitsOff(t *testing.T) {
	p := filepath.Join(t.TempDir(), "llamad.yaml")
	body := "model_path: /m/a.gguf\nsms_rate_per_second: 0\nsms_dedupe_ttl_seconds: 0\nreject_when_busy: true\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	cfg, err := parseFlags(t, "--config", p)
	require.NoError(t, err)
	require.Zero(t, cfg.SMSRate())
	require.Zero(t, cfg.SMSDedupeTTL())
	require.True(t, cfg.RejectWhenBusy)

	cfg, err = parseFlags(t, "--model-path", "/m/a.gguf", "--sms-dedupe-ttl-seconds", "0")
	require.NoError(t, err)
	require.Zero(t, cfg.SMSDedupeTTL())
	require.Equal(t, float64(config.DefaultSMSRate), cfg.SMSRate())
	require.False(t, cfg.RejectWhenBusy)

	cfg, err = parseFlags(t, "--model-path", "/m/a.gguf")
	require.NoError(t, err)
	require.Equal(t, time.Duration(config.DefaultSMSDedupeTTL)*time.Second, cfg.SMSDedupeTTL())
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := parseFlags(t)
	require.ErrorContains(t, err, "model_path is required")

	_, err = parseFlags(t, "--model-path", "/m/a.gguf", "--log-format", "xml")
	require.ErrorContains(t, err, "invalid config")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger("warn", "json", &buf)
	require.NoError(t, err)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"message":"shown"`)
	require.Contains(t, buf.String(), `"service":"llamad"`)

	_, err = newLogger("loud", "json", &buf)
	require.Error(t, err)
}

func TestComplete_WritesFragments(t *testing.T) {
	a := &echoAdapter{}
	var out bytes.Buffer
	require.NoError(t, complete(context.Background(), testConfig(t), a, "hi", &out))
	require.Equal(t, " hello world\n", out.String())
	require.Equal(t, []string{"User: hi\nAssistant:"}, a.prompts)
}

func TestComplete_MissingModelFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.gguf")
	err := complete(context.Background(), cfg, &echoAdapter{}, "hi", io.Discard)
	require.ErrorContains(t, err, "open session")
}

type scriptedPrompter struct {
	lines   []string
	history []string
}

func (p *scriptedPrompter) Prompt(string) (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	l := p.lines[0]
	p.lines = p.lines[1:]
	return l, nil
}

func (p *scriptedPrompter) AppendHistory(s string) { p.history = append(p.history, s) }

func TestChatLoop_Conversation(t *testing.T) {
	a := &echoAdapter{}
	sess, err := openSession(testConfig(t), a, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer sess.Close()

	in := &scriptedPrompter{lines: []string{"first", "  ", "/status", "second"}}
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), sess, in, &out))

	require.Equal(t, []string{"first", "second"}, in.history)
	require.Len(t, a.prompts, 2)
	require.Equal(t, "User: first\nAssistant: hello world\nUser: second\nAssistant:", a.prompts[1])
	require.Contains(t, out.String(), "idle, 2 messages, 1 completions")
	require.Equal(t, 4, len(sess.History()))
}

func TestChatLoop_Quit(t *testing.T) {
	a := &echoAdapter{}
	sess, err := openSession(testConfig(t), a, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer sess.Close()

	in := &scriptedPrompter{lines: []string{"/quit", "never"}}
	require.NoError(t, chatLoop(context.Background(), sess, in, io.Discard))
	require.Empty(t, a.prompts)
	require.Equal(t, []string{"never"}, in.lines)
}

func TestNewAdapter_ServerEngine(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = io.WriteString(w, `{"status":"ok"}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	cfg := testConfig(t)
	cfg.Engine = config.EngineServer
	cfg.LlamaServerURL = ts.URL
	require.NoError(t, cfg.Validate())

	sess, err := openSession(cfg, newAdapter(cfg, zerolog.Nop()), zerolog.Nop(), nil)
	require.NoError(t, err)
	require.True(t, sess.Ready())
	require.NoError(t, sess.Close())
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, &echoAdapter{}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
