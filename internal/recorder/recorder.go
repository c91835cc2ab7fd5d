// Package recorder records workflows step by step.
//
// A Recorder is a two-state machine: Idle and Recording. Steps can only be
// appended while Recording; Stop returns to Idle and saves a non-empty
// workflow.
package recorder

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/workflows"
	"github.com/chazuruo/clickflow/internal/workflows/store"
)

// State is the recorder state.
type State int

// Recorder states.
const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Saver persists finished workflows.
type Saver interface {
	Save(ctx context.Context, wf *workflows.Workflow, opts store.SaveOptions) (store.WorkflowRef, error)
}

// Recorder owns the in-progress workflow.
type Recorder struct {
	mu    sync.Mutex
	state State
	wf    *workflows.Workflow
	step  int

	saver  Saver
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the time source for step timestamps and default names.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// New returns an idle recorder that saves through saver.
func New(saver Saver, opts ...Option) *Recorder {
	r := &Recorder{saver: saver, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins a new recording, discarding any in-memory workflow. An
// empty name gets a timestamp-based default.
func (r *Recorder) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		return &cferrors.WorkflowError{Op: "record", ID: r.wf.Name, Err: cferrors.ErrBusy}
	}

	now := r.now()
	if name == "" {
		name = workflows.DefaultName(now)
	}
	r.wf = &workflows.Workflow{
		SchemaVersion: workflows.SchemaVersion,
		Name:          name,
		Created:       workflows.FormatTimestamp(now),
	}
	r.step = 0
	r.state = Recording
	r.logger.Info("recording started", "workflow", name)
	return nil
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Step returns the index the next step will get.
func (r *Recorder) Step() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.step
}

// Workflow returns a copy of the in-memory workflow, or nil.
func (r *Recorder) Workflow() *workflows.Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wf == nil {
		return nil
	}
	return r.wf.Clone()
}

// AddCapture appends a capture step.
func (r *Recorder) AddCapture(filename string, rect image.Rectangle) (workflows.Step, error) {
	return r.addOne(func(i int, at time.Time) workflows.Step {
		return workflows.NewCaptureStep(i, at, filename, rect)
	})
}

// AddClick appends a click step.
func (r *Recorder) AddClick(image string, confidence float64) (workflows.Step, error) {
	return r.addOne(func(i int, at time.Time) workflows.Step {
		return workflows.NewClickStep(i, at, image, confidence)
	})
}

// AddWait appends a wait step of seconds.
func (r *Recorder) AddWait(seconds float64) (workflows.Step, error) {
	return r.addOne(func(i int, at time.Time) workflows.Step {
		return workflows.NewWaitStep(i, at, seconds)
	})
}

func (r *Recorder) addOne(build func(int, time.Time) workflows.Step) (workflows.Step, error) {
	steps, err := r.add(build)
	if err != nil {
		return workflows.Step{}, err
	}
	return steps[0], nil
}

// add appends all built steps or none.
func (r *Recorder) add(build ...func(int, time.Time) workflows.Step) ([]workflows.Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return nil, cferrors.ErrNotRecording
	}

	at := r.now()
	steps := make([]workflows.Step, len(build))
	for i, b := range build {
		steps[i] = b(r.step+i, at)
		if err := steps[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", cferrors.ErrInvalid, err)
		}
	}

	r.wf.Steps = append(r.wf.Steps, steps...)
	r.wf.StepsCount = len(r.wf.Steps)
	r.step += len(steps)
	for _, s := range steps {
		r.logger.Debug("step recorded", "workflow", r.wf.Name, "step", s.Index, "kind", s.Kind)
	}
	return steps, nil
}

// Stop ends the recording. A non-empty workflow is saved, overwriting any
// workflow of the same name; an empty one is not written and a zero ref is
// returned. The workflow stays in memory if saving fails.
func (r *Recorder) Stop(ctx context.Context) (store.WorkflowRef, error) {
	r.mu.Lock()
	if r.state != Recording {
		r.mu.Unlock()
		return store.WorkflowRef{}, cferrors.ErrNotRecording
	}
	r.state = Idle
	wf := r.wf.Clone()
	r.mu.Unlock()

	r.logger.Info("recording stopped", "workflow", wf.Name, "steps", len(wf.Steps))
	if len(wf.Steps) == 0 {
		return store.WorkflowRef{}, nil
	}
	return r.save(ctx, wf)
}

// Save persists the in-memory workflow (e.g. after a failed auto-save).
func (r *Recorder) Save(ctx context.Context) (store.WorkflowRef, error) {
	r.mu.Lock()
	if r.state == Recording {
		r.mu.Unlock()
		return store.WorkflowRef{}, cferrors.ErrBusy
	}
	if r.wf == nil || len(r.wf.Steps) == 0 {
		r.mu.Unlock()
		return store.WorkflowRef{}, cferrors.Invalidf("no workflow to save")
	}
	wf := r.wf.Clone()
	r.mu.Unlock()
	return r.save(ctx, wf)
}

func (r *Recorder) save(ctx context.Context, wf *workflows.Workflow) (store.WorkflowRef, error) {
	ref, err := r.saver.Save(ctx, wf, store.SaveOptions{Force: true})
	if err != nil {
		return store.WorkflowRef{}, fmt.Errorf("failed to save workflow: %w", err)
	}
	r.logger.Info("workflow saved", "workflow", wf.Name, "path", ref.Path)
	return ref, nil
}

// Load replaces the in-memory workflow. It fails with ErrBusy while
// recording.
func (r *Recorder) Load(wf *workflows.Workflow) error {
	if wf == nil {
		return cferrors.Invalidf("nil workflow")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		return &cferrors.WorkflowError{Op: "load", ID: wf.Name, Err: cferrors.ErrBusy}
	}
	r.wf = wf.Clone()
	r.step = 0
	if n := len(r.wf.Steps); n > 0 {
		r.step = r.wf.Steps[n-1].Index + 1
	}
	return nil
}
