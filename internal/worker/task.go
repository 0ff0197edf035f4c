package worker

import (
	"context"
	"sync"
	"time"
)

// Task is a cancellable scheduled job with an overall deadline.
//
// It owns two things: the goroutine running the job (which keeps its own
// interval timers bound to the task context) and the deadline timer. Cancel
// releases both; no caller ever stops them separately.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartTask runs run(ctx) in the background until it returns, the task is
// cancelled, or the deadline passes. When the deadline wins, run is stopped and
// waited for before onDeadline is called, so onDeadline never overlaps a poll.
// onDeadline is not called after Cancel.
func StartTask(parent context.Context, deadline time.Time, run func(ctx context.Context), onDeadline func()) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	timer := time.NewTimer(time.Until(deadline))
	runCtx, stopRun := context.WithCancel(ctx)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		run(runCtx)
	}()

	go func() {
		defer close(t.done)
		defer cancel()
		defer timer.Stop()
		defer stopRun()

		select {
		case <-runDone:
		case <-ctx.Done():
			stopRun()
			<-runDone
		case <-timer.C:
			stopRun()
			<-runDone
			if ctx.Err() == nil && onDeadline != nil {
				onDeadline()
			}
		}
	}()

	return t
}

// Cancel stops the job and the deadline timer. Safe to call more than once
// and from inside the job itself.
func (t *Task) Cancel() {
	t.once.Do(t.cancel)
}

// Wait blocks until the job goroutine and the deadline timer are gone
func (t *Task) Wait() {
	<-t.done
}

// Done is closed once the task has fully stopped
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// sleep waits for d or until ctx is done; false means ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
