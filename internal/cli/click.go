package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/locator"
)

// ErrClickFailed is returned when a template was not clicked. main exits
// with status 1 on it.
var ErrClickFailed = errors.New("template not clicked")

// ClickOptions contains the options for the click command.
type ClickOptions struct {
	Template   string
	Confidence float64
	Timeout    time.Duration
	Countdown  time.Duration
	ScreenFile string
}

// NewClickCommand creates the click command.
func NewClickCommand() *cobra.Command {
	opts := &ClickOptions{}

	cmd := &cobra.Command{
		Use:   "click <template> [confidence]",
		Short: "Find a template on screen and click it",
		Long: `Find a stored template on the screen and click its center.

The screen is polled until the template matches with at least the given
confidence or the timeout expires. Exits with status 1 if nothing was
clicked.

Examples:
  clickflow click submit.png
  clickflow click submit.png 0.9 --timeout 30s`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Template = args[0]
			if len(args) == 2 {
				c, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid confidence %q: %w", args[1], err)
				}
				if err := cmd.Flags().Set("confidence", strconv.FormatFloat(c, 'f', -1, 64)); err != nil {
					return err
				}
			}
			return runClick(cmd, opts)
		},
	}

	addLocateFlags(cmd, &opts.Confidence, &opts.Timeout, &opts.Countdown, &opts.ScreenFile)
	return cmd
}

// addLocateFlags adds the flags shared by click, wait and sequence. A nil
// timeout leaves out --timeout.
func addLocateFlags(cmd *cobra.Command, confidence *float64, timeout, countdown *time.Duration, screenFile *string) {
	cmd.Flags().Float64Var(confidence, "confidence", 0.8, "minimum match confidence (0-1)")
	if timeout != nil {
		cmd.Flags().DurationVar(timeout, "timeout", 10*time.Second, "how long to look for each template")
	}
	cmd.Flags().DurationVar(countdown, "countdown", 3*time.Second, "delay before starting, to switch windows")
	cmd.Flags().StringVar(screenFile, "screen", "", "match against an image file instead of the live screen")
}

var locateBinds = map[string]string{
	"locator.confidence": "confidence",
	"locator.timeout":    "timeout",
	"locator.countdown":  "countdown",
}

func runClick(cmd *cobra.Command, opts *ClickOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, locateBinds)
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.withScreen(ctx, screenOptions{ScreenFile: opts.ScreenFile}); err != nil {
		return err
	}

	if err := countdown(ctx, out, cfg.Locator.Countdown.Duration); err != nil {
		return err
	}

	res, err := e.locator.LocateAndClick(ctx, opts.Template, cfg.Locator.Confidence, cfg.Locator.Timeout.Duration)
	if err != nil {
		return err
	}
	return reportClick(out, opts.Template, cfg.Locator.Timeout.Duration, res)
}

func reportClick(out io.Writer, name string, timeout time.Duration, res locator.Result) error {
	if !res.Clicked {
		fmt.Fprintf(out, "✗ %s not found within %s (best score %.2f after %d attempts)\n",
			name, timeout, res.Score, res.Attempts)
		return ErrClickFailed
	}
	fmt.Fprintf(out, "✓ Clicked %s at (%d, %d), score %.2f\n", name, res.Point.X, res.Point.Y, res.Score)
	return nil
}

// countdown prints a per-second countdown, giving the user time to bring
// the target window forward.
func countdown(ctx context.Context, out io.Writer, d time.Duration) error {
	for left := d; left > 0; left -= time.Second {
		fmt.Fprintf(out, "Starting in %d...\n", int((left+time.Second-1)/time.Second))
		step := min(left, time.Second)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
	}
	return nil
}

// WaitOptions contains the options for the wait command.
type WaitOptions struct {
	Template   string
	Confidence float64
	MaxWait    time.Duration
	Interval   time.Duration
	Countdown  time.Duration
	ScreenFile string
}

// NewWaitCommand creates the wait command.
func NewWaitCommand() *cobra.Command {
	opts := &WaitOptions{}

	cmd := &cobra.Command{
		Use:   "wait <template>",
		Short: "Wait for a template to appear, then click it",
		Long: `Check the screen every --interval until the template appears, then click it.

Gives up after --max-wait and exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Template = args[0]
			return runWait(cmd, opts)
		},
	}

	addLocateFlags(cmd, &opts.Confidence, nil, &opts.Countdown, &opts.ScreenFile)
	cmd.Flags().DurationVar(&opts.MaxWait, "max-wait", 30*time.Second, "give up after this long")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 2*time.Second, "pause between checks")
	return cmd
}

func runWait(cmd *cobra.Command, opts *WaitOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, map[string]string{
		"locator.confidence":          "confidence",
		"locator.countdown":           "countdown",
		"locator.wait_check_interval": "interval",
	})
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.withScreen(ctx, screenOptions{ScreenFile: opts.ScreenFile}); err != nil {
		return err
	}
	if err := countdown(ctx, out, cfg.Locator.Countdown.Duration); err != nil {
		return err
	}

	fmt.Fprintf(out, "Waiting up to %s for %s...\n", opts.MaxWait, opts.Template)
	res, err := e.locator.WaitAndClick(ctx, opts.Template, cfg.Locator.Confidence, opts.MaxWait,
		cfg.Locator.WaitCheckInterval.Duration, func(p locator.Progress) {
			fmt.Fprintf(out, "  not yet (%s elapsed, %s left)\n",
				p.Elapsed.Round(time.Second), p.Remaining.Round(time.Second))
		})
	if err != nil {
		return err
	}
	return reportClick(out, opts.Template, opts.MaxWait, res)
}

// SequenceOptions contains the options for the sequence command.
type SequenceOptions struct {
	Templates  []string
	Confidence float64
	Timeout    time.Duration
	Countdown  time.Duration
	ScreenFile string
}

// NewSequenceCommand creates the sequence command.
func NewSequenceCommand() *cobra.Command {
	opts := &SequenceOptions{}

	cmd := &cobra.Command{
		Use:   "sequence <template>...",
		Short: "Click several templates in order",
		Long: `Click each template in order. A template that is not found does not stop
the sequence; the command exits with status 1 if any template was missed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Templates = args
			return runSequence(cmd, opts)
		},
	}

	addLocateFlags(cmd, &opts.Confidence, &opts.Timeout, &opts.Countdown, &opts.ScreenFile)
	return cmd
}

func runSequence(cmd *cobra.Command, opts *SequenceOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, locateBinds)
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.withScreen(ctx, screenOptions{ScreenFile: opts.ScreenFile}); err != nil {
		return err
	}
	if err := countdown(ctx, out, cfg.Locator.Countdown.Duration); err != nil {
		return err
	}

	results, err := e.locator.ClickSequence(ctx, opts.Templates, cfg.Locator.Confidence, cfg.Locator.Timeout.Duration)
	var missed []string
	for i, ok := range results {
		mark := "✓"
		if !ok {
			mark = "✗"
			missed = append(missed, opts.Templates[i])
		}
		fmt.Fprintf(out, "%s %s\n", mark, opts.Templates[i])
	}
	if err != nil {
		return err
	}
	if len(missed) > 0 {
		return fmt.Errorf("%w: %s", ErrClickFailed, strings.Join(missed, ", "))
	}
	return nil
}
