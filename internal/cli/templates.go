package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/selection"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// newTable returns a table writing to out with the CLI's header style.
func newTable(out io.Writer, columns ...interface{}) table.Table {
	return table.New(columns...).
		WithWriter(out).
		WithHeaderFormatter(func(format string, vals ...interface{}) string {
			return headerStyle.Render(fmt.Sprintf(format, vals...))
		})
}

// NewTemplatesCommand creates the templates command group.
func NewTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"tpl"},
		Short:   "Manage template images",
	}
	cmd.AddCommand(newTemplatesListCommand(), newTemplatesDeleteCommand(), newTemplatesCaptureCommand())
	return cmd
}

func newTemplatesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesList(cmd)
		},
	}
}

func runTemplatesList(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	descs, err := e.templates.List()
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	if len(descs) == 0 {
		fmt.Fprintf(out, "No templates in %s.\n", e.templates.Dir())
		return nil
	}

	tbl := newTable(out, "NAME", "SIZE", "FORMAT", "UPDATED")
	for _, d := range descs {
		tbl.AddRow(d.Name, fmt.Sprintf("%dx%d", d.Width, d.Height), d.Format, formatTimeAgo(d.ModTime))
	}
	tbl.Print()
	fmt.Fprintf(out, "\nTotal: %d template(s)\n", len(descs))
	return nil
}

type templatesDeleteOptions struct {
	Yes bool
}

func newTemplatesDeleteCommand() *cobra.Command {
	opts := &templatesDeleteOptions{}
	cmd := &cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete templates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesDelete(cmd, opts, args)
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func runTemplatesDelete(cmd *cobra.Command, opts *templatesDeleteOptions, names []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	if !opts.Yes && useTUI(cfg) {
		confirmed := false
		if err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %d template(s)?", len(names))).
				Value(&confirmed),
		)).Run(); err != nil {
			return fmt.Errorf("form error: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	for _, name := range names {
		if err := e.templates.Delete(name); err != nil {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
		fmt.Fprintf(out, "Deleted %s\n", name)
	}
	return nil
}

type templatesCaptureOptions struct {
	ScreenFile string
}

func newTemplatesCaptureCommand() *cobra.Command {
	opts := &templatesCaptureOptions{}
	cmd := &cobra.Command{
		Use:   "capture <base> <x1,y1,x2,y2>...",
		Short: "Capture screen regions as templates",
		Long: `Capture the screen and save each region as <base>_<unix>_<NN>.png.

Regions are given as pixel corners in screen coordinates.

Examples:
  clickflow templates capture login 100,200,180,230
  clickflow templates capture toolbar 0,0,40,40 40,0,80,40`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesCapture(cmd, opts, args[0], args[1:])
		},
	}
	cmd.Flags().StringVar(&opts.ScreenFile, "screen", "", "capture from an image file instead of the live screen")
	return cmd
}

func runTemplatesCapture(cmd *cobra.Command, opts *templatesCaptureOptions, base string, regions []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	sel, err := selection.NewFixed(cfg.Capture.MinSelection, regions...)
	if err != nil {
		return err
	}
	probe, err := openProbe(cfg.Capture.Display, opts.ScreenFile)
	if err != nil {
		return err
	}

	frame, err := probe.Capture(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture screen: %w", err)
	}
	rects, err := sel.Select(ctx, frame, cfg.Capture.MaxSelections)
	if err != nil {
		return err
	}
	names, err := e.templates.SaveSelections(base, frame, rects)
	for _, name := range names {
		fmt.Fprintf(out, "Saved %s\n", name)
	}
	return err
}
