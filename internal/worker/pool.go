package worker

import (
	"context"
	"errors"
	"sync"

	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
)

// ErrStopped is returned by Submit once the pool has been stopped.
var ErrStopped = errors.New("worker pool stopped")

type ProcessFunc func(ctx context.Context, task models.DispatchTask)

// Pool runs dispatch tasks on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	numWorkers int
	tasks      chan models.DispatchTask
	process    ProcessFunc
	logger     *logging.Logger
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(numWorkers, queueSize int, process ProcessFunc, logger *logging.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		numWorkers: numWorkers,
		tasks:      make(chan models.DispatchTask, queueSize),
		process:    process,
		logger:     logger,
	}
}

// Start launches the workers. They exit when ctx is cancelled or the queue
// is closed and drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.logger.Debugf("Worker %d stopped", id)
			return
		case task, ok := <-p.tasks:
			if !ok {
				p.logger.Debugf("Worker %d drained", id)
				return
			}
			p.run(ctx, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, task models.DispatchTask) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("Task panicked: request_id=%s alert_id=%d: %v", task.RequestID, task.AlertID, r)
		}
	}()
	p.process(ctx, task)
}

// TrySubmit queues task without blocking. A full or stopped queue drops it.
func (p *Pool) TrySubmit(task models.DispatchTask) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.logger.Errorf("Pool stopped, dropping task: request_id=%s", task.RequestID)
		return false
	}
	select {
	case p.tasks <- task:
		p.logger.Infof("Queued task: request_id=%s alert_id=%d", task.RequestID, task.AlertID)
		return true
	default:
		p.logger.Errorf("Queue full, dropping task: request_id=%s alert_id=%d", task.RequestID, task.AlertID)
		return false
	}
}

// Submit queues task, waiting for room until ctx is done.
func (p *Pool) Submit(ctx context.Context, task models.DispatchTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue and waits for the workers to finish what is queued.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
