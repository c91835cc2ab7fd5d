package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/workflows"
)

// ViewOptions contains the options for the view command.
type ViewOptions struct {
	Raw bool
}

// NewViewCommand creates the view command.
func NewViewCommand() *cobra.Command {
	opts := &ViewOptions{}

	cmd := &cobra.Command{
		Use:   "view <workflow>",
		Short: "View workflow details",
		Long: `Display the steps of a workflow.

The workflow is named by its file name (without extension) or by the name
recorded in the file. --raw prints the stored document instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print raw YAML")

	return cmd
}

func runView(cmd *cobra.Command, opts *ViewOptions, name string) error {
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

	wf, ref, err := loadWorkflow(cmd.Context(), e.workflows, name)
	if err != nil {
		return err
	}

	if opts.Raw {
		data, err := workflows.MarshalWorkflow(wf)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	printWorkflow(out, wf, ref.Path)
	return nil
}

func printWorkflow(out io.Writer, wf *workflows.Workflow, path string) {
	fmt.Fprintf(out, "%s\n", headerStyle.Render(wf.Name))
	fmt.Fprintf(out, "Created: %s\n", wf.Created)
	if path != "" {
		fmt.Fprintf(out, "File: %s\n", path)
	}
	fmt.Fprintf(out, "Steps: %d\n\n", len(wf.Steps))

	tbl := newTable(out, "#", "TYPE", "DETAILS", "RECORDED")
	for i, s := range wf.Steps {
		tbl.AddRow(i+1, s.Kind, s.Describe(), s.Timestamp)
	}
	tbl.Print()
}
