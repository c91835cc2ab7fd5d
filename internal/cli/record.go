package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/recorder"
	"github.com/chazuruo/clickflow/internal/screen"
	"github.com/chazuruo/clickflow/internal/selection"
	"github.com/chazuruo/clickflow/internal/templates"
)

// RecordOptions contains the options for the record command.
type RecordOptions struct {
	Name       string
	Confidence float64
	ScreenFile string
}

// NewRecordCommand creates the record command.
func NewRecordCommand() *cobra.Command {
	opts := &RecordOptions{}

	cmd := &cobra.Command{
		Use:   "record [name]",
		Short: "Record a workflow",
		Long: `Record a workflow from commands typed at the prompt.

Commands:
  capture x1,y1,x2,y2 [confidence]   save the region as a template and click it
  click <template> [confidence]      click an existing template
  wait <seconds>                     pause
  status                             show the recorded steps
  stop                               finish and save
  save                               retry saving after a failed stop

Without a name the workflow is called workflow_<date>_<time>. Recording
under an existing name replaces that workflow.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Name = args[0]
			}
			return runRecord(cmd, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.Confidence, "confidence", 0.8, "default confidence for recorded clicks")
	cmd.Flags().StringVar(&opts.ScreenFile, "screen", "", "capture from an image file instead of the live screen")

	return cmd
}

func runRecord(cmd *cobra.Command, opts *RecordOptions) error {
	cfg, err := loadConfig(cmd, map[string]string{"locator.confidence": "confidence"})
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	probe, err := openProbe(cfg.Capture.Display, opts.ScreenFile)
	if err != nil {
		return err
	}

	rec := recorder.New(e.workflows, recorder.WithLogger(e.logger))
	if err := rec.Start(opts.Name); err != nil {
		return err
	}

	s := &recordSession{
		rec:          rec,
		probe:        probe,
		templates:    e.templates,
		minSelection: cfg.Capture.MinSelection,
		confidence:   cfg.Locator.Confidence,
		out:          cmd.OutOrStdout(),
	}
	fmt.Fprintf(s.out, "Recording %s. Type 'stop' to finish, 'help' for commands.\n", rec.Workflow().Name)
	return s.run(cmd.Context(), cmd.InOrStdin())
}

// recordSession reads recording commands line by line.
type recordSession struct {
	rec          *recorder.Recorder
	probe        screen.Probe
	templates    *templates.Store
	minSelection int
	confidence   float64
	out          io.Writer
}

func (s *recordSession) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			break
		}
		done, err := s.handle(ctx, strings.Fields(scanner.Text()))
		if err != nil {
			if cferrors.IsCanceled(err) && ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
			continue
		}
		if done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	// end of input stops the recording
	fmt.Fprintln(s.out)
	if s.rec.State() == recorder.Recording {
		_, err := s.stop(ctx)
		return err
	}
	return nil
}

// handle runs one command and reports whether the session is over.
func (s *recordSession) handle(ctx context.Context, args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}

	switch args[0] {
	case "capture":
		if len(args) < 2 || len(args) > 3 {
			return false, cferrors.Invalidf("usage: capture x1,y1,x2,y2 [confidence]")
		}
		conf, err := s.confidenceArg(args[2:])
		if err != nil {
			return false, err
		}
		sel, err := selection.NewFixed(s.minSelection, args[1])
		if err != nil {
			return false, err
		}
		steps, err := s.rec.CaptureAndClick(ctx, s.probe, sel, s.templates, conf)
		if err != nil {
			return false, err
		}
		for _, step := range steps {
			fmt.Fprintf(s.out, "  %d: %s\n", step.Index, step.Describe())
		}

	case "click":
		if len(args) < 2 || len(args) > 3 {
			return false, cferrors.Invalidf("usage: click <template> [confidence]")
		}
		conf, err := s.confidenceArg(args[2:])
		if err != nil {
			return false, err
		}
		if !s.templates.Exists(args[1]) {
			fmt.Fprintf(s.out, "warning: template %s does not exist yet\n", args[1])
		}
		step, err := s.rec.AddClick(args[1], conf)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "  %d: %s\n", step.Index, step.Describe())

	case "wait":
		if len(args) != 2 {
			return false, cferrors.Invalidf("usage: wait <seconds>")
		}
		sec, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return false, cferrors.Invalidf("invalid seconds %q", args[1])
		}
		step, err := s.rec.AddWait(sec)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "  %d: %s\n", step.Index, step.Describe())

	case "status":
		wf := s.rec.Workflow()
		fmt.Fprintf(s.out, "%s: %s, %d step(s)\n", wf.Name, s.rec.State(), len(wf.Steps))
		for _, step := range wf.Steps {
			fmt.Fprintf(s.out, "  %d: %s\n", step.Index, step.Describe())
		}

	case "stop", "quit", "exit":
		return s.stop(ctx)

	case "save":
		ref, err := s.rec.Save(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Saved %s\n", ref.Path)
		return true, nil

	case "help":
		fmt.Fprintln(s.out, "commands: capture x1,y1,x2,y2 [confidence] | click <template> [confidence] | wait <seconds> | status | stop | save")

	default:
		return false, cferrors.Invalidf("unknown command %q (try 'help')", args[0])
	}
	return false, nil
}

func (s *recordSession) stop(ctx context.Context) (bool, error) {
	ref, err := s.rec.Stop(ctx)
	if err != nil {
		if cferrors.IsNotRecording(err) {
			return false, err
		}
		return false, fmt.Errorf("%w (type 'save' to retry)", err)
	}
	if ref.IsZero() {
		fmt.Fprintln(s.out, "No steps recorded; nothing saved.")
		return true, nil
	}
	fmt.Fprintf(s.out, "Saved %s\n", ref.Path)
	return true, nil
}

func (s *recordSession) confidenceArg(args []string) (float64, error) {
	if len(args) == 0 {
		return s.confidence, nil
	}
	c, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, cferrors.Invalidf("invalid confidence %q", args[0])
	}
	return c, nil
}
