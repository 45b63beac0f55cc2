package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"llamad/internal/conversation"
	"llamad/internal/llm"
	"llamad/internal/model"
)

// State is the coarse session state reported by Status.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateClosed     State = "closed"
)

// Prompt is a single call's input. Zero fields inherit the session defaults.
type Prompt struct {
	Text      string
	MaxTokens int
	Stop      []string
	Sampling  *llm.Sampling
}

// Result summarizes a completed call.
type Result struct {
	// Text is the whitespace-trimmed reply, as recorded in history.
	Text         string
	FinishReason string
	Fragments    int
	// Dropped counts old messages left out of the prompt to fit the context.
	Dropped   int
	Synthetic bool
	Duration  time.Duration
}

// Session is a conversational inference session over one model.
type Session struct {
	id      string
	cfg     Config
	res     *model.Resource
	history *conversation.History
	log     zerolog.Logger
	pub     EventPublisher

	gate *admission

	mu      sync.RWMutex
	state   State
	closed  bool
	lastErr string

	completions atomic.Uint64
	failures    atomic.Uint64
	busy        atomic.Uint64
	started     time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// History returns a copy of the conversation so far.
func (s *Session) History() []conversation.Message { return s.history.Messages() }

// Complete appends prompt to the conversation, generates a reply, records it
// and returns it.
func (s *Session) Complete(ctx context.Context, prompt string) (string, error) {
	res, err := s.Stream(ctx, Prompt{Text: prompt}, nil)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Stream is Complete with per-call overrides. onFragment, when non-nil,
// receives each fragment as it is produced (untrimmed); returning an error
// aborts the call with an InferenceError.
func (s *Session) Stream(ctx context.Context, p Prompt, onFragment func(string) error) (Result, error) {
	if s.isClosed() {
		return Result{}, ErrClosed
	}
	release, err := s.beginGeneration(ctx)
	if err != nil {
		var be *BusyError
		if errors.As(err, &be) {
			s.busy.Add(1)
			busyTotal.WithLabelValues(be.Reason).Inc()
			completionsTotal.WithLabelValues("busy").Inc()
			s.log.Warn().Str("reason", be.Reason).Msg("session busy")
			s.publish(EventBusy, map[string]any{"reason": be.Reason})
			return Result{}, err
		}
		return Result{}, &InferenceError{SessionID: s.id, Err: err}
	}
	defer release()
	if s.isClosed() {
		return Result{}, ErrClosed
	}

	s.setState(StateGenerating)
	defer s.setState(StateIdle)
	start := time.Now()
	var out Result

	if s.cfg.ConversationMode {
		if last, ok := s.history.Last(); ok && last.Role == conversation.RoleUser {
			s.history.Append(conversation.Assistant(s.cfg.Acknowledgement))
			out.Synthetic = true
			s.log.Debug().Msg("unanswered user turn acknowledged")
			s.publish(EventSyntheticAck, nil)
		}
	}
	var prior []conversation.Message
	if s.cfg.ConversationMode {
		prior = s.history.Messages()
	}
	s.history.Append(conversation.User(p.Text))
	historyMessages.Set(float64(s.history.Len()))
	s.publish(EventCompletionStart, map[string]any{"prompt_chars": len(p.Text)})
	s.log.Debug().Int("prompt_chars", len(p.Text)).Int("history", len(prior)).Msg("completion start")

	gen := s.res.Generate(ctx, prior, s.request(p))
	var b strings.Builder
	for frag, err := range gen.Fragments() {
		if err != nil {
			return out, s.fail(b.String(), err, start)
		}
		b.WriteString(frag)
		fragmentsTotal.Inc()
		if onFragment != nil {
			if err := onFragment(frag); err != nil {
				return out, s.fail(b.String(), err, start)
			}
		}
	}

	sum := gen.Summary()
	out.Text = replyText(b.String())
	out.FinishReason = sum.Reason
	out.Fragments = sum.Fragments
	out.Dropped = sum.Dropped
	out.Duration = time.Since(start)
	s.history.Append(conversation.Assistant(out.Text))
	historyMessages.Set(float64(s.history.Len()))

	if sum.Dropped > 0 {
		s.publish(EventWindowTrimmed, map[string]any{"dropped": sum.Dropped})
	}
	s.completions.Add(1)
	completionsTotal.WithLabelValues("ok").Inc()
	generationSeconds.Observe(out.Duration.Seconds())
	s.log.Info().
		Str("finish_reason", out.FinishReason).
		Int("fragments", out.Fragments).
		Int("chars", len(out.Text)).
		Dur("duration", out.Duration).
		Msg("completion done")
	s.publish(EventCompletionDone, map[string]any{
		"finish_reason": out.FinishReason,
		"fragments":     out.Fragments,
		"duration_ms":   out.Duration.Milliseconds(),
	})
	return out, nil
}

// replyText strips the transcript framing from a reply: the space the model
// writes after "Assistant:" and the line break ahead of the next "User:".
// Everything in between is kept as generated.
func replyText(s string) string {
	s = strings.TrimPrefix(s, " ")
	return strings.TrimRight(s, "\r\n")
}

// fail records a failed generation. The user turn stays; partial text is
// returned on the error only.
func (s *Session) fail(partial string, err error, start time.Time) error {
	s.failures.Add(1)
	completionsTotal.WithLabelValues("error").Inc()
	generationSeconds.Observe(time.Since(start).Seconds())
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.log.Error().Err(err).Int("partial_chars", len(partial)).Msg("completion failed")
	s.publish(EventCompletionFailed, map[string]any{"error": err.Error()})
	return &InferenceError{SessionID: s.id, Err: err, Partial: partial}
}

func (s *Session) request(p Prompt) model.Request {
	req := model.Request{
		Prompt:    p.Text,
		MaxTokens: s.cfg.MaxTokens,
		Stop:      s.cfg.Stop,
		Sampling:  s.cfg.Sampling,
	}
	if p.MaxTokens > 0 {
		req.MaxTokens = p.MaxTokens
	}
	if p.Stop != nil {
		req.Stop = p.Stop
	}
	if p.Sampling != nil {
		req.Sampling = *p.Sampling
	}
	return req
}

// Close releases the model. It waits for an in-flight generation and is
// safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = StateClosed
	s.mu.Unlock()

	err := s.res.Release()
	if err != nil {
		s.log.Error().Err(err).Msg("release model")
	} else {
		s.log.Info().Msg("session closed")
	}
	s.publish(EventRelease, nil)
	return err
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if !s.closed {
		s.state = st
	}
	s.mu.Unlock()
}
