// Package runner replays recorded workflows.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/failsafe"
	"github.com/chazuruo/clickflow/internal/history"
	"github.com/chazuruo/clickflow/internal/locator"
	"github.com/chazuruo/clickflow/internal/workflows"
)

// DefaultStepTimeout bounds each click step.
const DefaultStepTimeout = 10 * time.Second

// Locator finds a template on screen and clicks it.
type Locator interface {
	LocateAndClick(ctx context.Context, name string, confidence float64, timeout time.Duration) (locator.Result, error)
}

// Status is the outcome of a step.
type Status string

// Step statuses.
const (
	StatusRunning  Status = "running"
	StatusClicked  Status = "clicked"
	StatusMissed   Status = "missed"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
	StatusWaited   Status = "waited"
	StatusCanceled Status = "canceled"
)

// RunResult contains the result of a workflow run.
type RunResult struct {
	ID          string
	Workflow    string
	Success     bool
	Clicked     int
	Failed      int
	Skipped     int
	Canceled    bool
	Reason      string
	StepResults []StepResult
	Started     time.Time
	Duration    time.Duration
}

// Entry converts the result to a history entry.
func (r RunResult) Entry() history.Entry {
	return history.Entry{
		ID:       r.ID,
		Workflow: r.Workflow,
		Started:  r.Started,
		Duration: r.Duration,
		Clicked:  r.Clicked,
		Failed:   r.Failed,
		Skipped:  r.Skipped,
		Canceled: r.Canceled,
	}
}

// StepResult contains the result of a single step.
type StepResult struct {
	Step     int // recorded step index
	Kind     workflows.Kind
	Status   Status
	Score    float64
	Attempts int
	Duration time.Duration
	Error    error
}

// Runner executes workflows one at a time.
type Runner struct {
	locator     Locator
	stepTimeout time.Duration
	abort       *failsafe.Switch
	journal     history.Journal
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

// Option configures a runner.
type Option func(*Runner)

// WithStepTimeout sets the locate timeout for click steps.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.stepTimeout = d
		}
	}
}

// WithAbort stops runs when sw trips.
func WithAbort(sw *failsafe.Switch) Option {
	return func(r *Runner) { r.abort = sw }
}

// WithJournal records every finished run in j.
func WithJournal(j history.Journal) Option {
	return func(r *Runner) { r.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a new runner.
func NewRunner(loc Locator, opts ...Option) *Runner {
	r := &Runner{
		locator:     loc,
		stepTimeout: DefaultStepTimeout,
		journal:     history.Nop{},
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Execute runs wf in the calling goroutine. Steps run in recorded order.
// Capture steps are skipped since their templates already exist. A click
// that fails or finds nothing is reported and the run moves on. A tripped
// fail-safe or canceled ctx stops the run with Canceled set; the error is
// reserved for workflows that cannot run at all.
func (r *Runner) Execute(ctx context.Context, wf *workflows.Workflow, sink OutputSink) (RunResult, error) {
	if err := r.acquire(wf); err != nil {
		return RunResult{}, err
	}
	defer r.release()
	return r.execute(ctx, uuid.NewString(), wf, sink, nil), nil
}

func (r *Runner) acquire(wf *workflows.Workflow) error {
	if wf == nil {
		return cferrors.Invalidf("nil workflow")
	}
	if err := wf.Validate(); err != nil {
		return &cferrors.WorkflowError{Op: "run", ID: wf.Name, Err: fmt.Errorf("%w: %w", cferrors.ErrInvalid, err)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return &cferrors.WorkflowError{Op: "run", ID: wf.Name, Err: cferrors.ErrBusy}
	}
	r.running = true
	return nil
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

func (r *Runner) execute(ctx context.Context, id string, wf *workflows.Workflow, sink OutputSink, emit func(Event)) RunResult {
	if sink == nil {
		sink = DiscardSink{}
	}
	if emit == nil {
		emit = func(Event) {}
	}
	if r.abort != nil {
		var cancel context.CancelFunc
		ctx, cancel = r.abort.Context(ctx)
		defer cancel()
	}

	logger := r.logger.With("workflow", wf.Name, "run", id)
	result := RunResult{
		ID:          id,
		Workflow:    wf.Name,
		Started:     r.now(),
		StepResults: make([]StepResult, 0, len(wf.Steps)),
	}
	logger.Info("run started", "steps", len(wf.Steps))
	_ = sink.Write(fmt.Sprintf("Running %s (%d steps)", wf.Name, len(wf.Steps)))

	for i, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			result.cancel(ctx, err)
			break
		}

		emit(Event{Position: i, Step: step.Index, Kind: step.Kind, Status: StatusRunning})
		sr := r.runStep(ctx, step, logger)
		result.StepResults = append(result.StepResults, sr)
		emit(Event{Position: i, Step: step.Index, Kind: step.Kind, Status: sr.Status, Err: sr.Error})
		_ = sink.Write(formatStep(i, len(wf.Steps), step, sr))

		switch sr.Status {
		case StatusClicked:
			result.Clicked++
		case StatusMissed, StatusFailed:
			result.Failed++
		case StatusSkipped:
			result.Skipped++
		case StatusCanceled:
			result.cancel(ctx, sr.Error)
		}
		if result.Canceled {
			break
		}
	}

	result.Duration = r.now().Sub(result.Started)
	result.Success = !result.Canceled && result.Failed == 0
	logger.Info("run finished",
		"clicked", result.Clicked, "failed", result.Failed, "skipped", result.Skipped,
		"canceled", result.Canceled, "duration", result.Duration)
	_ = sink.Write(summary(result))

	// a canceled run is still journaled
	if err := r.journal.Append(context.WithoutCancel(ctx), result.Entry()); err != nil {
		logger.Warn("failed to record run history", "error", err)
	}
	return result
}

func (res *RunResult) cancel(ctx context.Context, err error) {
	res.Canceled = true
	if cause := context.Cause(ctx); cause != nil {
		err = cause
	}
	if err != nil {
		res.Reason = err.Error()
	}
}

func (r *Runner) runStep(ctx context.Context, step workflows.Step, logger *slog.Logger) (sr StepResult) {
	start := r.now()
	sr = StepResult{Step: step.Index, Kind: step.Kind}
	defer func() { sr.Duration = r.now().Sub(start) }()

	switch step.Kind {
	case workflows.KindCapture:
		sr.Status = StatusSkipped

	case workflows.KindClick:
		res, err := r.locator.LocateAndClick(ctx, step.Click.Image, step.Click.Confidence, r.stepTimeout)
		sr.Score, sr.Attempts = res.Score, res.Attempts
		switch {
		case err != nil && (ctx.Err() != nil || cferrors.IsAborted(err)):
			sr.Status, sr.Error = StatusCanceled, err
		case err != nil:
			sr.Status, sr.Error = StatusFailed, err
			logger.Warn("click step failed", "step", step.Index, "image", step.Click.Image, "error", err)
		case !res.Clicked:
			sr.Status = StatusMissed
			logger.Warn("click target not found", "step", step.Index, "image", step.Click.Image,
				"best_score", res.Score, "attempts", res.Attempts)
		default:
			sr.Status = StatusClicked
		}

	case workflows.KindWait:
		t := time.NewTimer(step.Wait.Interval())
		defer t.Stop()
		select {
		case <-t.C:
			sr.Status = StatusWaited
		case <-ctx.Done():
			sr.Status, sr.Error = StatusCanceled, context.Cause(ctx)
		}

	default:
		sr.Status = StatusFailed
		sr.Error = cferrors.Invalidf("unknown step kind %q", step.Kind)
	}
	return sr
}

func formatStep(i, n int, step workflows.Step, sr StepResult) string {
	line := fmt.Sprintf("[%d/%d] %s: %s", i+1, n, step.Describe(), sr.Status)
	if sr.Status == StatusMissed {
		line += fmt.Sprintf(" (best %.2f after %d attempts)", sr.Score, sr.Attempts)
	}
	if sr.Error != nil && sr.Status != StatusCanceled {
		line += ": " + sr.Error.Error()
	}
	return line
}

func summary(res RunResult) string {
	if res.Canceled {
		return fmt.Sprintf("Canceled after %d steps: %s", len(res.StepResults), res.Reason)
	}
	return fmt.Sprintf("Done in %s: %d clicked, %d failed, %d skipped",
		res.Duration.Round(time.Millisecond), res.Clicked, res.Failed, res.Skipped)
}
