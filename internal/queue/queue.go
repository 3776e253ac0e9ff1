// Package queue is the asynchronous dispatch path: one task per alert,
// executed on the worker pool after the creating transaction commits.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/worker"
)

// Enqueuer schedules delivery of every assignment of an alert.
type Enqueuer interface {
	Enqueue(ctx context.Context, alertID int64) error
}

// AssignmentLister is the read the processor needs from the store.
type AssignmentLister interface {
	ListAssignmentsByAlert(ctx context.Context, alertID int64) ([]models.Assignment, error)
}

// AssignmentDispatcher is satisfied by *dispatch.Dispatcher.
type AssignmentDispatcher interface {
	Dispatch(ctx context.Context, asg models.Assignment)
}

// Processor turns a DispatchTask into dispatch calls. Its store must be the
// process-wide one, never a request-scoped transaction.
type Processor struct {
	store      AssignmentLister
	dispatcher AssignmentDispatcher
	logger     *logging.Logger
}

func NewProcessor(store AssignmentLister, dispatcher AssignmentDispatcher, logger *logging.Logger) *Processor {
	return &Processor{store: store, dispatcher: dispatcher, logger: logger}
}

// Process dispatches the alert's assignments in priority order. A failing
// assignment is logged and the rest still go out.
func (p *Processor) Process(ctx context.Context, task models.DispatchTask) {
	log := p.logger.WithField("request_id", task.RequestID).WithField("alert_id", task.AlertID)
	log.Info("Async dispatch worker started")

	assignments, err := p.store.ListAssignmentsByAlert(ctx, task.AlertID)
	if err != nil {
		log.Errorf("Async dispatch worker crashed: failed to list assignments: %v", err)
		return
	}

	failed := 0
	for _, asg := range assignments {
		if err := p.dispatchOne(ctx, asg); err != nil {
			failed++
			log.Errorf("Async dispatch failed for assignment %d: %v", asg.ID, err)
		}
	}
	log.Infof("Async dispatch worker completed: assignments=%d, failed=%d", len(assignments), failed)
}

func (p *Processor) dispatchOne(ctx context.Context, asg models.Assignment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	p.dispatcher.Dispatch(ctx, asg)
	return nil
}

// MemoryQueue feeds the in-process worker pool.
type MemoryQueue struct {
	pool *worker.Pool
}

func NewMemoryQueue(pool *worker.Pool) *MemoryQueue {
	return &MemoryQueue{pool: pool}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, alertID int64) error {
	task := NewTask(alertID)
	if !q.pool.TrySubmit(task) {
		return fmt.Errorf("failed to enqueue dispatch for alert %d: queue full", alertID)
	}
	return nil
}

// NewTask stamps a dispatch task with a fresh request id.
func NewTask(alertID int64) models.DispatchTask {
	return models.DispatchTask{
		RequestID:  uuid.NewString(),
		AlertID:    alertID,
		EnqueuedAt: time.Now().UTC(),
	}
}
