package session

import (
	"path/filepath"
	"strings"
	"time"

	"llamad/pkg/types"
)

// Status returns a snapshot for GET /status.
func (s *Session) Status() types.StatusResponse {
	s.mu.RLock()
	state, lastErr := s.state, s.lastErr
	s.mu.RUnlock()

	mc := s.res.Config()
	now := time.Now()
	return types.StatusResponse{
		SessionID: s.id,
		State:     string(state),
		Model: types.ModelInfo{
			Path:        mc.ModelPath,
			Name:        strings.TrimSuffix(filepath.Base(mc.ModelPath), filepath.Ext(mc.ModelPath)),
			ContextSize: mc.ContextSize,
			GPULayers:   mc.GPULayers,
			Loaded:      !s.res.Released(),
		},
		ConversationMode: s.cfg.ConversationMode,
		HistoryLen:       s.history.Len(),
		QueueLen:         s.gate.queued(),
		Inflight:         s.gate.inflight(),
		MaxQueueDepth:    s.cfg.QueueDepth,
		CompletionsTotal: s.completions.Load(),
		FailuresTotal:    s.failures.Load(),
		BusyTotal:        s.busy.Load(),
		LastError:        lastErr,
		UptimeSeconds:    int64(now.Sub(s.started).Seconds()),
		ServerTimeUnix:   now.Unix(),
	}
}

// Ready reports whether the session can accept calls.
func (s *Session) Ready() bool {
	return !s.isClosed() && !s.res.Released()
}
