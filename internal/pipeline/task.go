package pipeline

import (
	"context"
	"fmt"

	"call-insights-go/internal/store"
)

// Task is a handle on one background pipeline run: completion is observable
// through Done and Err, and Cancel aborts in-flight external calls. This is
// the unit the API surface hands out instead of a detached goroutine.
type Task struct {
	CallID string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the run terminates, successfully or not.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the run's outcome. Only valid after Done is closed.
func (t *Task) Err() error { return t.err }

// Cancel aborts the run. The orchestrator still commits a failed checkpoint
// before the task completes.
func (t *Task) Cancel() { t.cancel() }

// Start launches the full pipeline for a call in the background. The status
// precondition is checked up front so callers get an immediate error instead
// of a failed task; the run itself detaches from the caller's context.
func (o *Orchestrator) Start(ctx context.Context, callID string) (*Task, error) {
	call, err := o.store.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.Status != store.StatusPending && call.Status != store.StatusFailed {
		return nil, fmt.Errorf("%w: cannot process call in status %q", ErrInvalidStatus, call.Status)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t := &Task{CallID: callID, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()
		t.err = o.Process(runCtx, callID)
	}()
	return t, nil
}
