package main

import (
	"time"

	"github.com/rs/zerolog"

	"llamad/internal/config"
	"llamad/internal/llm"
	"llamad/internal/model"
	"llamad/internal/registry"
	"llamad/internal/session"
)

// newAdapter returns the engine backend selected by cfg.Engine.
func newAdapter(cfg config.Config, log zerolog.Logger) llm.Adapter {
	if cfg.Engine == config.EngineServer {
		return llm.NewServerAdapter(llm.ServerOptions{
			BaseURL:        cfg.LlamaServerURL,
			APIKey:         cfg.LlamaServerAPIKey,
			RequestTimeout: time.Duration(cfg.LlamaServerTimeoutSeconds) * time.Second,
			Logger:         log,
		})
	}
	return llm.NewLlamaAdapter()
}

// openSession resolves the model path, loads the model and wraps it in a
// session. Any failure here is fatal for the process.
func openSession(cfg config.Config, adapter llm.Adapter, log zerolog.Logger, pub session.EventPublisher) (*session.Session, error) {
	path, err := registry.Resolve(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("model", path).Str("engine", cfg.Engine).Int("context_size", cfg.ContextSize).Int("gpu_layers", cfg.GPULayers).Msg("loading model")
	start := time.Now()
	res, err := model.Open(model.Config{
		ModelPath:   path,
		ContextSize: cfg.ContextSize,
		GPULayers:   cfg.GPULayers,
		Threads:     cfg.Threads,
	}, adapter, model.WithLogger(log))
	if err != nil {
		return nil, err
	}
	log.Info().Dur("took", time.Since(start)).Msg("model loaded")
	return session.New(res, session.Config{
		ConversationMode: !cfg.SingleShot,
		MaxTokens:        cfg.MaxTokens,
		Stop:             cfg.Stop,
		QueueDepth:       cfg.QueueDepth,
		RejectWhenBusy:   cfg.RejectWhenBusy,
		MaxWait:          time.Duration(cfg.MaxWaitSeconds) * time.Second,
		Logger:           log,
		Publisher:        pub,
	}), nil
}
