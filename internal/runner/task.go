package runner

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/chazuruo/clickflow/internal/workflows"
)

// Event reports a step transition of a background run.
type Event struct {
	Position int // position in the workflow's step list
	Step     int // recorded step index
	Kind     workflows.Kind
	Status   Status
	Err      error
}

// Task is a workflow run executing in the background.
type Task struct {
	ID       string
	Workflow string

	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	result RunResult
}

// Start runs wf in a new goroutine and returns at once. Only one run per
// Runner may be in progress; a second Start fails with ErrBusy until the
// first task is done.
func (r *Runner) Start(ctx context.Context, wf *workflows.Workflow, sink OutputSink) (*Task, error) {
	if err := r.acquire(wf); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		ID:       uuid.NewString(),
		Workflow: wf.Name,
		cancel:   cancel,
		// two events per step, so sends never block
		events: make(chan Event, 2*len(wf.Steps)),
		done:   make(chan struct{}),
	}
	wf = wf.Clone()

	go func() {
		defer close(t.done)
		defer close(t.events)
		defer cancel()

		res := r.execute(ctx, t.ID, wf, sink, func(e Event) { t.events <- e })

		t.mu.Lock()
		t.result = res
		t.mu.Unlock()
		r.release()
	}()
	return t, nil
}

// Events returns the step events channel. It is closed when the run ends.
func (t *Task) Events() <-chan Event { return t.events }

// Done is closed when the run has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the run. It is safe to call more than once.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the run finishes and returns its result.
func (t *Task) Wait() RunResult {
	<-t.done
	res, _ := t.Result()
	return res
}

// Result returns the run result and whether the run has finished.
func (t *Task) Result() (RunResult, bool) {
	select {
	case <-t.done:
	default:
		return RunResult{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, true
}
