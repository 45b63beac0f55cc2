package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llamad/internal/conversation"
	"llamad/internal/llm"
	"llamad/internal/model"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultQueueDepth      = 8
	defaultMaxWait         = 30 * time.Second
	defaultAcknowledgement = "Acknowledged."
)

// Config encapsulates all tunables for a Session.
type Config struct {
	// ID identifies the session in logs, events and status. Generated if empty.
	ID string
	// ConversationMode feeds prior turns into every prompt and repairs
	// unanswered user turns with Acknowledgement.
	ConversationMode bool
	Acknowledgement  string
	// Per-call generation defaults; zero means model defaults (256 tokens,
	// stop at "User:").
	MaxTokens int
	Stop      []string
	Sampling  llm.Sampling
	// Admission: QueueDepth calls may wait up to MaxWait behind the one in
	// flight. RejectWhenBusy disables waiting entirely.
	QueueDepth     int
	MaxWait        time.Duration
	RejectWhenBusy bool

	Logger    zerolog.Logger
	Publisher EventPublisher
}

// New constructs a Session that takes ownership of res.
func New(res *model.Resource, cfg Config) *Session {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Acknowledgement == "" {
		cfg.Acknowledgement = defaultAcknowledgement
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.RejectWhenBusy {
		cfg.QueueDepth = 0
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	s := &Session{
		id:      cfg.ID,
		cfg:     cfg,
		res:     res,
		history: conversation.NewHistory(),
		log:     cfg.Logger.With().Str("session_id", cfg.ID).Logger(),
		pub:     cfg.Publisher,
		state:   StateIdle,
		gate:    newAdmission(cfg.QueueDepth, cfg.MaxWait),
		started: time.Now(),
	}
	mc := res.Config()
	s.publish(EventLoad, map[string]any{
		"model":        mc.ModelPath,
		"context_size": mc.ContextSize,
		"gpu_layers":   mc.GPULayers,
	})
	return s
}
