package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubLister struct {
	assignments []models.Assignment
	err         error
}

func (s stubLister) ListAssignmentsByAlert(context.Context, int64) ([]models.Assignment, error) {
	return s.assignments, s.err
}

type recordingDispatcher struct {
	mu      sync.Mutex
	seen    []int64
	panicOn int64
}

func (r *recordingDispatcher) Dispatch(_ context.Context, asg models.Assignment) {
	r.mu.Lock()
	r.seen = append(r.seen, asg.ID)
	r.mu.Unlock()
	if asg.ID == r.panicOn {
		panic("boom")
	}
}

func (r *recordingDispatcher) ids() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.seen...)
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, "error")
}

func TestProcess_DispatchesInOrderAndContinuesAfterFailure(t *testing.T) {
	lister := stubLister{assignments: []models.Assignment{{ID: 10, Priority: 1}, {ID: 11, Priority: 2}, {ID: 12, Priority: 3}}}
	d := &recordingDispatcher{panicOn: 11}
	p := NewProcessor(lister, d, quietLogger())

	assert.NotPanics(t, func() {
		p.Process(context.Background(), models.DispatchTask{RequestID: "r", AlertID: 1})
	})
	assert.Equal(t, []int64{10, 11, 12}, d.ids())
}

func TestProcess_ListFailure(t *testing.T) {
	d := &recordingDispatcher{}
	p := NewProcessor(stubLister{err: errors.New("db down")}, d, quietLogger())

	p.Process(context.Background(), models.DispatchTask{AlertID: 1})
	assert.Empty(t, d.ids())
}

func TestMemoryQueue_EndToEnd(t *testing.T) {
	lister := stubLister{assignments: []models.Assignment{{ID: 1}, {ID: 2}}}
	d := &recordingDispatcher{}
	proc := NewProcessor(lister, d, quietLogger())
	pool := worker.NewPool(1, 4, proc.Process, quietLogger())
	pool.Start(context.Background())

	q := NewMemoryQueue(pool)
	require.NoError(t, q.Enqueue(context.Background(), 5))
	pool.Stop()

	assert.Equal(t, []int64{1, 2}, d.ids())
}

func TestMemoryQueue_FullQueueErrors(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pool := worker.NewPool(1, 0, func(context.Context, models.DispatchTask) {
		started <- struct{}{}
		<-release
	}, quietLogger())
	pool.Start(context.Background())

	q := NewMemoryQueue(pool)
	require.Eventually(t, func() bool { return q.Enqueue(context.Background(), 1) == nil }, time.Second, time.Millisecond)
	<-started
	assert.Error(t, q.Enqueue(context.Background(), 2))

	close(release)
	pool.Stop()
}

func TestNewTask(t *testing.T) {
	task := NewTask(77)
	assert.Equal(t, int64(77), task.AlertID)
	_, err := uuid.Parse(task.RequestID)
	assert.NoError(t, err)
	assert.False(t, task.EnqueuedAt.IsZero())
}
