package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingReconciler counts sweeps and can hold one open to observe
// coalescing behavior.
type blockingReconciler struct {
	calls   atomic.Int64
	release chan struct{}
}

func (b *blockingReconciler) ReconcileAll(ctx context.Context) error {
	b.calls.Add(1)
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
		}
	}
	return nil
}

func TestSweeperRunsOnTrigger(t *testing.T) {
	rec := &blockingReconciler{}
	sw := NewSweeper(rec, "", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sw.Start(ctx))
	defer sw.Stop()

	sw.Trigger()
	require.Eventually(t, func() bool { return rec.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSweeperCoalescesTriggerBursts(t *testing.T) {
	rec := &blockingReconciler{release: make(chan struct{})}
	sw := NewSweeper(rec, "", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sw.Start(ctx))
	defer sw.Stop()

	sw.Trigger()
	require.Eventually(t, func() bool { return rec.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// While the first sweep is held open, a burst of triggers collapses
	// into one pending sweep.
	sw.Trigger()
	sw.Trigger()
	sw.Trigger()
	close(rec.release)

	require.Eventually(t, func() bool { return rec.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(2), rec.calls.Load())
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	sw := NewSweeper(&blockingReconciler{}, "not a cron expression", zerolog.Nop())
	err := sw.Start(context.Background())
	require.Error(t, err)
}
