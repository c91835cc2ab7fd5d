package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/export"
)

// ExportOptions contains the options for the export command.
type ExportOptions struct {
	Format         string
	Out            string
	CustomTemplate string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export <workflow>",
		Short: "Export a workflow to Markdown, YAML or JSON",
		Long: `Export a workflow to a different format.

Supported formats:
- md (default): Markdown step table with template image links
- yaml: the stored YAML document
- json: the JSON record format

Examples:
  clickflow export login                    # Markdown to stdout
  clickflow export login --format json      # Export as JSON
  clickflow export login --out login.md     # Export to file
  clickflow export login --template custom.tmpl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "md", "output format (md, yaml, json)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "-", "output path (default: stdout)")
	cmd.Flags().StringVarP(&opts.CustomTemplate, "template", "t", "", "custom Markdown template file")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions, name string) error {
	out := cmd.OutOrStdout()

	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	wf, _, err := loadWorkflow(cmd.Context(), e.workflows, name)
	if err != nil {
		return err
	}

	exporter, err := export.NewExporter(export.Options{
		Format:         format,
		Out:            opts.Out,
		CustomTemplate: opts.CustomTemplate,
		TemplateDir:    e.templates.Dir(),
	})
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	content, err := exporter.Export(wf)
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	if opts.Out == "" || opts.Out == "-" {
		fmt.Fprint(out, content)
		return nil
	}
	fmt.Fprintf(out, "Exported %s to %s\n", wf.Name, opts.Out)
	return nil
}
