package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chazuruo/clickflow/internal/config"
	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/failsafe"
	"github.com/chazuruo/clickflow/internal/history"
	"github.com/chazuruo/clickflow/internal/input"
	"github.com/chazuruo/clickflow/internal/locator"
	"github.com/chazuruo/clickflow/internal/logging"
	"github.com/chazuruo/clickflow/internal/match"
	"github.com/chazuruo/clickflow/internal/runner"
	"github.com/chazuruo/clickflow/internal/screen"
	"github.com/chazuruo/clickflow/internal/templates"
	"github.com/chazuruo/clickflow/internal/workflows/store"
)

// Desktop holds the native input backend. cmd/clickflow sets it; builds
// without a desktop session leave it empty.
var Desktop struct {
	Clicker input.Clicker
	Pointer input.PointerSource
}

// SetDesktop registers the native clicker and pointer.
func SetDesktop(c input.Clicker, p input.PointerSource) {
	Desktop.Clicker = c
	Desktop.Pointer = p
}

// env is what the commands work with, built from config.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	templates *templates.Store
	workflows *store.FileSystemStore

	// set by withScreen
	probe   screen.Probe
	locator *locator.Locator
	abort   *failsafe.Switch
	journal history.Journal

	closers []io.Closer
	stop    context.CancelFunc
}

// newEnv builds the storage side of the environment.
func newEnv(cfg *config.Config) (*env, error) {
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	ws, err := store.New(cfg.Workflows.Dir, cfg.Workflows.Format, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow store: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		templates: templates.New(cfg.Templates.Dir,
			templates.WithExtensions(cfg.Templates.Extensions),
			templates.WithDuplicateDistance(cfg.Templates.DuplicateDistance),
			templates.WithMinSelection(cfg.Capture.MinSelection),
			templates.WithLogger(logger)),
		workflows: ws,
		journal:   history.Nop{},
	}, nil
}

// screenOptions selects the screen source.
type screenOptions struct {
	// ScreenFile replaces the live display with an image file.
	ScreenFile string
}

// withScreen adds the probe, matcher, clicker, fail-safe and locator. The
// fail-safe watchers run until Close.
func (e *env) withScreen(ctx context.Context, opts screenOptions) error {
	cfg := e.cfg

	var err error
	e.probe, err = openProbe(cfg.Capture.Display, opts.ScreenFile)
	if err != nil {
		return err
	}

	matcher, err := match.New(cfg.Locator.Matcher, cfg.Locator.Stride)
	if err != nil {
		return err
	}

	clicker, err := e.clicker()
	if err != nil {
		return err
	}

	e.abort = failsafe.New()
	ctx, e.stop = context.WithCancel(ctx)
	if cfg.FailSafe.Enabled {
		guard := &failsafe.GuardClicker{Next: clicker, Switch: e.abort}
		if Desktop.Pointer != nil {
			guard.Watcher = &failsafe.CornerWatcher{
				Pointer:  Desktop.Pointer,
				Switch:   e.abort,
				Margin:   cfg.FailSafe.CornerMargin,
				Interval: cfg.FailSafe.PollInterval.Duration,
				Logger:   e.logger,
			}
			go guard.Watcher.Run(ctx)
		}
		if cfg.FailSafe.Hotkey {
			go func() {
				if err := failsafe.WatchHotkey(ctx, e.abort); err != nil && !errors.Is(err, context.Canceled) {
					e.logger.Debug("abort hotkey unavailable", "error", err)
				}
			}()
		}
		clicker = guard
	}

	e.locator = locator.New(e.templates, e.probe, matcher, clicker,
		locator.WithPollInterval(cfg.Locator.PollInterval.Duration),
		locator.WithPreClickDelay(cfg.Locator.PreClickDelay.Duration),
		locator.WithSequenceDelay(cfg.Locator.SequenceDelay.Duration),
		locator.WithWaitInnerTimeout(cfg.Locator.WaitInnerTimeout.Duration),
		locator.WithAbort(e.abort),
		locator.WithLogger(e.logger))
	return nil
}

// openProbe returns the live display probe, or an image file probe when
// file is set.
func openProbe(display int, file string) (screen.Probe, error) {
	if file != "" {
		p, err := screen.LoadImageProbe(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open screen image: %w", err)
		}
		return p, nil
	}
	p, err := screen.NewDisplayProbe(display)
	if err != nil {
		return nil, fmt.Errorf("failed to open display: %w", err)
	}
	return p, nil
}

func (e *env) clicker() (input.Clicker, error) {
	cfg := e.cfg.Clicker
	switch cfg.Backend {
	case "desktop":
		if Desktop.Clicker == nil {
			return nil, cferrors.Invalidf("desktop click backend is not available in this build; use --clicker log or serial")
		}
		return Desktop.Clicker, nil
	case "serial":
		c, closer, err := input.OpenSerialClicker(cfg.Port, cfg.Baud, cfg.Ack, cfg.AckTimeout.Duration)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, closer)
		e.logger.Info("using serial click device", "port", cfg.Port, "baud", cfg.Baud)
		return c, nil
	case "log":
		return &input.LogClicker{Logger: e.logger}, nil
	default:
		return nil, cferrors.Invalidf("unknown click backend %q", cfg.Backend)
	}
}

// withJournal opens the run history backend.
func (e *env) withJournal(ctx context.Context) error {
	j, err := openJournal(ctx, e.cfg.History, e.logger)
	if err != nil {
		return err
	}
	e.journal = j
	if c, ok := j.(io.Closer); ok {
		e.closers = append(e.closers, c)
	}
	return nil
}

func openJournal(ctx context.Context, cfg config.HistoryConfig, logger *slog.Logger) (history.Journal, error) {
	switch cfg.Backend {
	case "file":
		return history.NewFileJournal(cfg.Path, logger), nil
	case "mysql":
		j, err := history.OpenMySQL(ctx, cfg.DSN, "")
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		return j, nil
	default:
		return history.Nop{}, nil
	}
}

// runner returns a workflow runner on the environment's locator.
func (e *env) runner() *runner.Runner {
	return runner.NewRunner(e.locator,
		runner.WithStepTimeout(e.cfg.Locator.StepTimeout.Duration),
		runner.WithAbort(e.abort),
		runner.WithJournal(e.journal),
		runner.WithLogger(e.logger))
}

// Close stops the watchers and releases devices.
func (e *env) Close() {
	if e.stop != nil {
		e.stop()
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			e.logger.Debug("close failed", "error", err)
		}
	}
}
