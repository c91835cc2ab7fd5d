// Package locator finds templates on the live screen and clicks them.
//
// LocateAndClick is the retry loop everything else is built on: probe the
// screen, match one template, click the center of the first match. Running
// out of time is a normal outcome reported as Result.Clicked == false with
// a nil error.
package locator

import (
	"context"
	"image"
	"log/slog"
	"math"
	"time"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/failsafe"
	"github.com/chazuruo/clickflow/internal/input"
	"github.com/chazuruo/clickflow/internal/match"
	"github.com/chazuruo/clickflow/internal/screen"
)

// Defaults for the timing options.
const (
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultPreClickDelay    = time.Second
	DefaultSequenceDelay    = time.Second
	DefaultWaitInnerTimeout = time.Second
)

// TemplateSource loads template images by name.
type TemplateSource interface {
	Load(name string) (image.Image, error)
}

// Result describes one locate-and-click call.
type Result struct {
	Clicked bool
	// Point is the clicked screen coordinate.
	Point image.Point
	// Score is the score of the clicked match, or the best score seen.
	Score    float64
	Attempts int
	Elapsed  time.Duration
}

// Progress is reported by WaitAndClick between checks.
type Progress struct {
	Elapsed   time.Duration
	Remaining time.Duration
	Attempts  int
}

// Locator ties a template source, screen probe, matcher, and clicker together.
type Locator struct {
	templates TemplateSource
	probe     screen.Probe
	matcher   match.Matcher
	clicker   input.Clicker

	pollInterval     time.Duration
	preClickDelay    time.Duration
	sequenceDelay    time.Duration
	waitInnerTimeout time.Duration
	abort            *failsafe.Switch
	logger           *slog.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithPollInterval sets the sleep between attempts.
func WithPollInterval(d time.Duration) Option {
	return func(l *Locator) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithPreClickDelay sets the pause between finding a match and clicking.
func WithPreClickDelay(d time.Duration) Option {
	return func(l *Locator) {
		if d >= 0 {
			l.preClickDelay = d
		}
	}
}

// WithSequenceDelay sets the pause between items of ClickSequence.
func WithSequenceDelay(d time.Duration) Option {
	return func(l *Locator) {
		if d >= 0 {
			l.sequenceDelay = d
		}
	}
}

// WithWaitInnerTimeout sets the per-check timeout used by WaitAndClick.
func WithWaitInnerTimeout(d time.Duration) Option {
	return func(l *Locator) {
		if d > 0 {
			l.waitInnerTimeout = d
		}
	}
}

// WithAbort makes every call stop as soon as sw trips.
func WithAbort(sw *failsafe.Switch) Option {
	return func(l *Locator) { l.abort = sw }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Locator.
func New(templates TemplateSource, probe screen.Probe, matcher match.Matcher, clicker input.Clicker, opts ...Option) *Locator {
	l := &Locator{
		templates:        templates,
		probe:            probe,
		matcher:          matcher,
		clicker:          clicker,
		pollInterval:     DefaultPollInterval,
		preClickDelay:    DefaultPreClickDelay,
		sequenceDelay:    DefaultSequenceDelay,
		waitInnerTimeout: DefaultWaitInnerTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func validate(confidence float64, timeout time.Duration) error {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return cferrors.Invalidf("confidence must be within [0, 1]; got %v", confidence)
	}
	if timeout <= 0 {
		return cferrors.Invalidf("timeout must be > 0; got %s", timeout)
	}
	return nil
}

// withAbort derives a context that ends when the fail-safe trips.
func (l *Locator) withAbort(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.abort == nil {
		return context.WithCancel(ctx)
	}
	return l.abort.Context(ctx)
}

// stopErr returns why ctx ended: the fail-safe error or the context error.
func stopErr(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return ctx.Err()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if ctx.Err() != nil {
			return stopErr(ctx)
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return stopErr(ctx)
	case <-t.C:
		return nil
	}
}

// LocateAndClick polls the screen for the named template until it matches
// with at least confidence or timeout elapses, then clicks its center once.
//
// A missing template fails immediately. Capture, match, and click failures
// stop the loop and are returned as *errors.MatchError. At least one attempt
// is always made and the loop never sleeps past the deadline.
func (l *Locator) LocateAndClick(ctx context.Context, name string, confidence float64, timeout time.Duration) (res Result, err error) {
	if err := validate(confidence, timeout); err != nil {
		return res, err
	}

	start := time.Now()
	deadline := start.Add(timeout)
	defer func() { res.Elapsed = time.Since(start) }()

	ctx, cancel := l.withAbort(ctx)
	defer cancel()

	tmpl, err := l.templates.Load(name)
	if err != nil {
		return res, err
	}

	for {
		if ctx.Err() != nil {
			return res, stopErr(ctx)
		}
		res.Attempts++

		frame, err := l.probe.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return res, stopErr(ctx)
			}
			return res, &cferrors.MatchError{Op: "capture", Err: err}
		}

		m, found, err := l.matcher.Match(ctx, frame, tmpl, confidence)
		if err != nil {
			if ctx.Err() != nil {
				return res, stopErr(ctx)
			}
			return res, &cferrors.MatchError{Op: "match", Err: err}
		}

		if found && m.Score >= confidence {
			res.Point = m.Center()
			res.Score = m.Score
			l.logger.Debug("template matched", "template", name, "score", m.Score, "x", res.Point.X, "y", res.Point.Y)

			if err := sleep(ctx, l.preClickDelay); err != nil {
				return res, err
			}
			if err := l.clicker.Click(ctx, res.Point); err != nil {
				if cferrors.IsAborted(err) || ctx.Err() != nil {
					return res, stopErrOr(ctx, err)
				}
				return res, &cferrors.MatchError{Op: "click", Err: err}
			}
			res.Clicked = true
			l.logger.Info("clicked template", "template", name, "x", res.Point.X, "y", res.Point.Y,
				"score", m.Score, "attempts", res.Attempts)
			return res, nil
		}
		if m.Score > res.Score {
			res.Score = m.Score
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := sleep(ctx, min(l.pollInterval, remaining)); err != nil {
			return res, err
		}
	}

	l.logger.Info("template not found before timeout", "template", name, "timeout", timeout,
		"attempts", res.Attempts, "best_score", res.Score)
	return res, nil
}

func stopErrOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return stopErr(ctx)
	}
	return err
}

// WaitAndClick repeatedly runs LocateAndClick with a short inner timeout
// until it clicks or maxWait elapses, sleeping checkInterval between checks
// and reporting progress after each unsuccessful check.
func (l *Locator) WaitAndClick(ctx context.Context, name string, confidence float64, maxWait, checkInterval time.Duration, progress func(Progress)) (total Result, err error) {
	if err := validate(confidence, maxWait); err != nil {
		return total, err
	}
	if checkInterval <= 0 {
		return total, cferrors.Invalidf("check interval must be > 0; got %s", checkInterval)
	}

	start := time.Now()
	deadline := start.Add(maxWait)
	defer func() { total.Elapsed = time.Since(start) }()

	ctx, cancel := l.withAbort(ctx)
	defer cancel()

	for {
		inner := min(l.waitInnerTimeout, max(time.Until(deadline), time.Millisecond))
		res, err := l.LocateAndClick(ctx, name, confidence, inner)
		total.Attempts += res.Attempts
		if res.Score > total.Score || res.Clicked {
			total.Score = res.Score
		}
		if err != nil {
			return total, err
		}
		if res.Clicked {
			total.Clicked = true
			total.Point = res.Point
			return total, nil
		}

		remaining := time.Until(deadline)
		if progress != nil {
			progress(Progress{Elapsed: time.Since(start), Remaining: max(remaining, 0), Attempts: total.Attempts})
		}
		if remaining <= 0 {
			return total, nil
		}
		if err := sleep(ctx, min(checkInterval, remaining)); err != nil {
			return total, err
		}
	}
}

// ClickSequence runs LocateAndClick for each name in order and returns one
// outcome per name. A failed item does not stop the sequence; an item
// error other than an abort is logged and counted as false. On abort the
// outcomes collected so far are returned with the error.
func (l *Locator) ClickSequence(ctx context.Context, names []string, confidence float64, timeout time.Duration) ([]bool, error) {
	if err := validate(confidence, timeout); err != nil {
		return nil, err
	}

	ctx, cancel := l.withAbort(ctx)
	defer cancel()

	results := make([]bool, 0, len(names))
	for i, name := range names {
		if i > 0 {
			if err := sleep(ctx, l.sequenceDelay); err != nil {
				return results, err
			}
		}

		res, err := l.LocateAndClick(ctx, name, confidence, timeout)
		if err != nil {
			if ctx.Err() != nil || cferrors.IsAborted(err) {
				return results, stopErrOr(ctx, err)
			}
			l.logger.Warn("sequence item failed", "index", i+1, "template", name, "error", err)
		}
		results = append(results, res.Clicked)
	}
	return results, nil
}
