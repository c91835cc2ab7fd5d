package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// HistoryOptions contains the options for the history command.
type HistoryOptions struct {
	Limit int
	JSON  bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent workflow runs",
		Long: `Show recent workflow runs from the run journal, newest first.

The journal backend is set by [history] in the config: a JSON lines file
(default) or a MySQL table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output in JSON format")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
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
	if err := e.withJournal(ctx); err != nil {
		return err
	}

	entries, err := e.journal.List(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if opts.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tbl := newTable(out, "STARTED", "WORKFLOW", "STATUS", "CLICKED", "FAILED", "SKIPPED", "DURATION")
	for _, en := range entries {
		tbl.AddRow(en.Started.Local().Format(time.DateTime), en.Workflow, en.Status(),
			en.Clicked, en.Failed, en.Skipped, en.Duration.Round(time.Millisecond))
	}
	tbl.Print()
	return nil
}
