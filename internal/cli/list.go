package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/workflows/store"
)

// OutputFormat defines the output format for the list command.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatPlain OutputFormat = "plain"
)

// ListOptions contains the options for the list command.
type ListOptions struct {
	Search string
	Format string
}

// NewListCommand creates the list command for listing workflows.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved workflows",
		Long: `List all saved workflows.

Examples:
  clickflow list                  # List all workflows in table format
  clickflow list --search login   # Only workflows whose name contains "login"
  clickflow list --format json    # List workflows in JSON format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "filter by name substring")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, plain)")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
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

	refs, err := e.workflows.List(ctx, store.Filter{Search: opts.Search})
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	switch OutputFormat(opts.Format) {
	case FormatTable:
		printTable(out, refs)
	case FormatJSON:
		return printJSON(out, refs)
	case FormatPlain:
		printPlain(out, refs)
	default:
		return fmt.Errorf("invalid format: %s (must be table, json, or plain)", opts.Format)
	}
	return nil
}

func printTable(out io.Writer, refs []store.WorkflowRef) {
	if len(refs) == 0 {
		fmt.Fprintln(out, "No workflows found.")
		return
	}

	tbl := newTable(out, "WORKFLOW", "FILE", "STEPS", "UPDATED")
	for _, ref := range refs {
		tbl.AddRow(ref.Name, ref.Slug, ref.Steps, formatTimeAgo(ref.UpdatedAt))
	}
	tbl.Print()
	fmt.Fprintf(out, "\nTotal: %d workflow(s)\n", len(refs))
}

func printJSON(out io.Writer, refs []store.WorkflowRef) error {
	type jsonWorkflow struct {
		Name      string    `json:"name"`
		Slug      string    `json:"slug"`
		Path      string    `json:"path"`
		Steps     int       `json:"steps"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	list := make([]jsonWorkflow, 0, len(refs))
	for _, ref := range refs {
		list = append(list, jsonWorkflow{
			Name:      ref.Name,
			Slug:      ref.Slug,
			Path:      ref.Path,
			Steps:     ref.Steps,
			UpdatedAt: ref.UpdatedAt,
		})
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(list)
}

func printPlain(out io.Writer, refs []store.WorkflowRef) {
	if len(refs) == 0 {
		fmt.Fprintln(out, "No workflows found.")
		return
	}

	for i, ref := range refs {
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, ref.Name, ref.Slug)
		fmt.Fprintf(out, "   Path: %s\n", ref.Path)
		fmt.Fprintf(out, "   Steps: %d\n", ref.Steps)
		fmt.Fprintf(out, "   Updated: %s\n", ref.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Total: %d workflow(s)\n", len(refs))
}

// formatTimeAgo formats a time as a relative "time ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	case diff < 365*24*time.Hour:
		return fmt.Sprintf("%dmo ago", int(diff.Hours()/24/30))
	default:
		return fmt.Sprintf("%dy ago", int(diff.Hours()/24/365))
	}
}
