package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/config"
	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/runner"
	"github.com/chazuruo/clickflow/internal/tui"
	"github.com/chazuruo/clickflow/internal/workflows"
	"github.com/chazuruo/clickflow/internal/workflows/store"
)

// ErrRunFailed is returned when a run finished with failed or missed clicks.
var ErrRunFailed = errors.New("workflow finished with failed steps")

// RunOptions contains the options for the run command.
type RunOptions struct {
	WorkflowRef string
	Yes         bool
	ScreenFile  string
	StepTimeout string
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [workflow]",
		Short: "Replay a recorded workflow",
		Long: `Replay the steps of a workflow in order.

Click steps are located on screen and clicked; a click that fails or is not
found is reported and the run continues with the next step. Wait steps
pause. Capture steps are skipped.

Without an argument a workflow picker is shown. Moving the pointer into a
screen corner (or pressing the abort hotkey) stops the run.

Exits with status 1 if any step failed or the run was canceled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.WorkflowRef = args[0]
			}
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "start without asking for confirmation")
	cmd.Flags().StringVar(&opts.ScreenFile, "screen", "", "match against an image file instead of the live screen")
	cmd.Flags().StringVar(&opts.StepTimeout, "step-timeout", "", "how long to look for each click step's template")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, map[string]string{"locator.step_timeout": "step-timeout"})
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	wf, err := resolveWorkflow(ctx, e.workflows, opts.WorkflowRef, useTUI(cfg))
	if err != nil {
		return err
	}
	if wf == nil {
		fmt.Fprintln(out, "No workflow selected.")
		return nil
	}

	if !opts.Yes && useTUI(cfg) {
		confirmed := false
		if err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Run %s (%d steps)?", wf.Name, len(wf.Steps))).
				Description("Move the pointer into a screen corner to abort.").
				Value(&confirmed),
		)).Run(); err != nil {
			return fmt.Errorf("form error: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := e.withScreen(ctx, screenOptions{ScreenFile: opts.ScreenFile}); err != nil {
		return err
	}
	if err := e.withJournal(ctx); err != nil {
		return err
	}
	if err := countdown(ctx, out, cfg.Locator.Countdown.Duration); err != nil {
		return err
	}

	res, err := execute(ctx, cfg, e.runner(), wf, out)
	if err != nil {
		return err
	}
	return runOutcome(res)
}

// resolveWorkflow loads the named workflow, or lets the user pick one when
// name is empty and interactive mode is on. A nil workflow means the user
// quit the picker.
// loadWorkflow loads a workflow by name or slug. A missing workflow gets a
// hint pointing at the list command.
func loadWorkflow(ctx context.Context, ws store.Store, name string) (*workflows.Workflow, store.WorkflowRef, error) {
	wf, ref, err := ws.LoadByName(ctx, name)
	if err == nil {
		return wf, ref, nil
	}
	if we, ok := cferrors.AsWorkflowError(err); ok && cferrors.IsNotFound(we.Err) {
		return nil, ref, fmt.Errorf("workflow %q not found (see 'clickflow list'): %w", we.ID, err)
	}
	return nil, ref, fmt.Errorf("failed to load workflow: %w", err)
}

func resolveWorkflow(ctx context.Context, ws store.Store, name string, interactive bool) (*workflows.Workflow, error) {
	if name != "" {
		wf, _, err := loadWorkflow(ctx, ws, name)
		return wf, err
	}
	if !interactive {
		return nil, cferrors.Invalidf("workflow name required\nUsage: clickflow run <workflow>")
	}

	refs, err := ws.List(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no workflows found; record one with 'clickflow record'")
	}
	ref, err := tui.PickWorkflow(refs, "")
	if err != nil || ref == nil {
		return nil, err
	}
	return ws.Load(ctx, *ref)
}

// execute runs wf in the TUI when enabled, otherwise with plain output.
func execute(ctx context.Context, cfg *config.Config, r *runner.Runner, wf *workflows.Workflow, out io.Writer) (runner.RunResult, error) {
	if !useTUI(cfg) {
		return r.Execute(ctx, wf, &runner.StdioSink{Out: out})
	}
	task, err := r.Start(ctx, wf, runner.DiscardSink{})
	if err != nil {
		return runner.RunResult{}, err
	}
	return tui.RunTask(wf, task)
}

func runOutcome(res runner.RunResult) error {
	switch {
	case res.Canceled:
		return fmt.Errorf("%w: %s", cferrors.ErrCanceled, res.Reason)
	case !res.Success:
		return fmt.Errorf("%w: %d failed", ErrRunFailed, res.Failed)
	default:
		return nil
	}
}
