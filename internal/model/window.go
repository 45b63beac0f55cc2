package model

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"

	"llamad/internal/conversation"
)

// TokenCounter estimates how many context slots a text occupies.
type TokenCounter interface {
	CountTokens(text string) int
}

// tiktokenCounter estimates with cl100k_base. It is not the model's own
// vocabulary, so budgets are approximate; it falls back to 4 bytes per token
// if the codec cannot be built.
type tiktokenCounter struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

func (c *tiktokenCounter) CountTokens(text string) int {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if c.err != nil {
		return approxTokens(text)
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return approxTokens(text)
	}
	return len(ids)
}

func approxTokens(text string) int { return (len(text) + 3) / 4 }

// fit renders the transcript, leaving out the oldest turns until it and the
// reply budget fit the context window. It returns the number of turns left
// out. The window always starts on a user turn when any history is kept.
func (r *Resource) fit(history []conversation.Message, req Request) (string, int, error) {
	budget := r.cfg.ContextSize - req.MaxTokens
	if budget <= 0 {
		return "", 0, errors.Wrapf(ErrContextExceeded, "max tokens %d leaves no room in context of %d", req.MaxTokens, r.cfg.ContextSize)
	}
	for start := 0; start <= len(history); start++ {
		if start > 0 && start < len(history) && history[start].Role != conversation.RoleUser {
			continue
		}
		p := renderTranscript(history[start:], req.Prompt)
		if r.counter.CountTokens(p) <= budget {
			return p, start, nil
		}
	}
	return "", len(history), errors.Wrapf(ErrContextExceeded, "prompt needs more than %d tokens", budget)
}
