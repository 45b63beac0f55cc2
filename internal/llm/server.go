package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ServerOptions configure an adapter that drives a running llama.cpp server
// (llama-server) over its OpenAI-compatible HTTP API.
type ServerOptions struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration // per Predict; 0 means only ctx bounds it
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

type serverAdapter struct {
	opts   ServerOptions
	client *http.Client
}

// NewServerAdapter returns an Adapter backed by llama-server. The server is
// expected to have the same model loaded; Load only verifies it is healthy.
func NewServerAdapter(opts ServerOptions) Adapter {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	// Requests carry their deadlines on the context.
	return &serverAdapter{opts: opts, client: &http.Client{Transport: tr}}
}

func (a *serverAdapter) Load(path string, _ LoadParams) (Engine, error) {
	if a.opts.BaseURL == "" {
		return nil, errors.New("llama server url is empty")
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.ConnectTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.opts.BaseURL+"/health", nil)
	if err != nil {
		return nil, errors.Wrap(err, "llama server health request")
	}
	a.authorize(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "llama server unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("llama server not ready: %s", resp.Status)
	}
	return &serverEngine{a: a, model: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}, nil
}

func (a *serverAdapter) authorize(req *http.Request) {
	if a.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.opts.APIKey)
	}
}

type serverEngine struct {
	a     *serverAdapter
	model string
}

// completionRequest is the body of POST /v1/completions.
type completionRequest struct {
	Model         string  `json:"model,omitempty"`
	Prompt        string  `json:"prompt"`
	MaxTokens     int     `json:"max_tokens,omitempty"`
	Temperature   float32 `json:"temperature,omitempty"`
	TopP          float32 `json:"top_p,omitempty"`
	TopK          int     `json:"top_k,omitempty"`
	Seed          int     `json:"seed,omitempty"`
	RepeatPenalty float32 `json:"repeat_penalty,omitempty"`
	Stream        bool    `json:"stream"`
}

// streamChunk covers both the OpenAI completion ("text") and chat
// ("delta.content") chunk shapes, plus the native "content" field.
type streamChunk struct {
	Content string `json:"content"`
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c streamChunk) fragment() (string, string) {
	if len(c.Choices) == 0 {
		return c.Content, ""
	}
	ch := c.Choices[0]
	if ch.Text != "" {
		return ch.Text, ch.FinishReason
	}
	return ch.Delta.Content, ch.FinishReason
}

func (e *serverEngine) Predict(ctx context.Context, prompt string, opts PredictOptions, onToken func(string) error) (Finish, error) {
	if d := e.a.opts.RequestTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	s := opts.Sampling
	body, err := json.Marshal(completionRequest{
		Model:         e.model,
		Prompt:        prompt,
		MaxTokens:     opts.MaxTokens,
		Temperature:   s.Temperature,
		TopP:          s.TopP,
		TopK:          s.TopK,
		Seed:          s.Seed,
		RepeatPenalty: s.RepeatPenalty,
		Stream:        true,
	})
	if err != nil {
		return Finish{}, errors.Wrap(err, "encode completion request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.a.opts.BaseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return Finish{}, errors.Wrap(err, "completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	e.a.authorize(req)
	resp, err := e.a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Finish{}, ctx.Err()
		}
		return Finish{}, errors.Wrap(err, "llama server request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Finish{}, errors.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var (
		fin    Finish
		reason string
	)
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			e.a.opts.Logger.Debug().Str("line", line).Msg("llama server: unknown stream line")
			continue
		}
		frag, fr := chunk.fragment()
		if fr != "" {
			reason = fr
		}
		if frag == "" {
			continue
		}
		fin.Tokens++
		if err := onToken(frag); err != nil {
			return fin, err
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return fin, ctx.Err()
		}
		return fin, errors.Wrap(err, "read llama server stream")
	}
	if ctx.Err() != nil {
		return fin, ctx.Err()
	}
	fin.Reason = FinishStop
	if reason == "length" {
		fin.Reason = FinishLength
	}
	return fin, nil
}

// Close is a no-op; the server owns the model.
func (e *serverEngine) Close() error { return nil }
