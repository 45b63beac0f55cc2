package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdmission_QueueFullIsImmediate(t *testing.T) {
	a := newAdmission(0, time.Minute)
	release, reason, err := a.enter(context.Background())
	require.NoError(t, err)
	require.Empty(t, reason)
	require.Equal(t, 1, a.inflight())

	start := time.Now()
	_, reason, err = a.enter(context.Background())
	require.NoError(t, err)
	require.Equal(t, "queue full", reason)
	require.Less(t, time.Since(start), time.Second)

	release()
	require.Zero(t, a.queued())
	require.Zero(t, a.inflight())
}

func TestAdmission_WaitTimeoutFreesSlot(t *testing.T) {
	a := newAdmission(1, 20*time.Millisecond)
	release, _, err := a.enter(context.Background())
	require.NoError(t, err)
	defer release()

	_, reason, err := a.enter(context.Background())
	require.NoError(t, err)
	require.Equal(t, "wait timeout", reason)
	require.Equal(t, 1, a.queued())
}

func TestAdmission_CanceledWhileWaiting(t *testing.T) {
	a := newAdmission(1, time.Minute)
	release, _, err := a.enter(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := a.enter(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return a.queued() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, 1, a.queued())

	release()
	next, _, err := a.enter(context.Background())
	require.NoError(t, err)
	next()
}

func TestAdmission_PreCanceledContext(t *testing.T) {
	a := newAdmission(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := a.enter(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, a.queued())
}
