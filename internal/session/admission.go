package session

import (
	"context"
	"time"
)

// admission lets one generation run at a time with a bounded number of
// callers lined up behind it. A slot in waiting is held for the whole call,
// so len(waiting) counts queued plus running callers.
type admission struct {
	waiting chan struct{}
	running chan struct{}
	maxWait time.Duration
}

func newAdmission(queueDepth int, maxWait time.Duration) *admission {
	return &admission{
		waiting: make(chan struct{}, queueDepth+1),
		running: make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

func (a *admission) queued() int   { return len(a.waiting) }
func (a *admission) inflight() int { return len(a.running) }

// enter blocks until the caller owns the generation slot. A full line is
// refused immediately with reason "queue full"; waiting longer than maxWait
// gives "wait timeout". The returned func frees both slots.
func (a *admission) enter(ctx context.Context) (func(), string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	select {
	case a.waiting <- struct{}{}:
	default:
		return nil, "queue full", nil
	}

	timer := time.NewTimer(a.maxWait)
	defer timer.Stop()
	select {
	case a.running <- struct{}{}:
		return func() {
			<-a.running
			<-a.waiting
		}, "", nil
	case <-ctx.Done():
		<-a.waiting
		return nil, "", ctx.Err()
	case <-timer.C:
		<-a.waiting
		return nil, "wait timeout", nil
	}
}

// beginGeneration admits the caller or returns a BusyError.
func (s *Session) beginGeneration(ctx context.Context) (func(), error) {
	release, reason, err := s.gate.enter(ctx)
	switch {
	case err != nil:
		return nil, err
	case reason != "":
		return nil, &BusyError{SessionID: s.id, Reason: reason}
	}
	return release, nil
}
