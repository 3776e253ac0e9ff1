package worker

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, "error")
}

func TestPool_ProcessesAndDrainsOnStop(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(3, 50, func(ctx context.Context, task models.DispatchTask) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
	}, quietLogger())

	pool.Start(context.Background())
	for i := 0; i < 30; i++ {
		require.True(t, pool.TrySubmit(models.DispatchTask{AlertID: int64(i)}))
	}
	pool.Stop()

	assert.Equal(t, int64(30), processed.Load())
}

func TestPool_TrySubmitDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pool := NewPool(1, 1, func(ctx context.Context, task models.DispatchTask) {
		started <- struct{}{}
		<-release
	}, quietLogger())
	pool.Start(context.Background())

	require.True(t, pool.TrySubmit(models.DispatchTask{AlertID: 1}))
	<-started
	require.True(t, pool.TrySubmit(models.DispatchTask{AlertID: 2}))
	assert.False(t, pool.TrySubmit(models.DispatchTask{AlertID: 3}))

	close(release)
	pool.Stop()
}

func TestPool_SubmitBlocksUntilContextDone(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool(1, 0, func(ctx context.Context, task models.DispatchTask) {
		<-release
	}, quietLogger())
	pool.Start(context.Background())

	require.NoError(t, pool.Submit(context.Background(), models.DispatchTask{AlertID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, models.DispatchTask{AlertID: 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	pool.Stop()
}

func TestPool_RecoversFromPanics(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(1, 10, func(ctx context.Context, task models.DispatchTask) {
		if task.AlertID == 1 {
			panic("bad task")
		}
		processed.Add(1)
	}, quietLogger())
	pool.Start(context.Background())

	pool.TrySubmit(models.DispatchTask{AlertID: 1})
	pool.TrySubmit(models.DispatchTask{AlertID: 2})
	pool.Stop()

	assert.Equal(t, int64(1), processed.Load())
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, models.DispatchTask) {}, quietLogger())
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()

	assert.ErrorIs(t, pool.Submit(context.Background(), models.DispatchTask{}), ErrStopped)
	assert.False(t, pool.TrySubmit(models.DispatchTask{}))
}

func TestPool_ContextCancellationStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(2, 10, func(ctx context.Context, task models.DispatchTask) {}, quietLogger())
	pool.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}
}
