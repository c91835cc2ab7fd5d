// Package cli provides Cobra command definitions for clickflow.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/match"
)

// VersionInfo contains version information for the binary.
type VersionInfo struct {
	Version  string   `json:"version"`
	Commit   string   `json:"commit"`
	Date     string   `json:"date"`
	BuiltBy  string   `json:"built_by"`
	Go       string   `json:"go_version"`
	Platform string   `json:"platform"`
	Matchers []string `json:"matchers"`
}

// VersionOptions contains the options for the version command.
type VersionOptions struct {
	Short bool
	JSON  bool
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date, builtBy string) *cobra.Command {
	opts := &VersionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long: `Display the clickflow version information.

Shows version, commit hash, build date, Go version, and the template
matchers compiled into this build.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout(), opts, version, commit, date, builtBy)
		},
	}

	cmd.Flags().BoolVar(&opts.Short, "short", false, "print only the version number")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output in JSON format")

	return cmd
}

func runVersion(out io.Writer, opts *VersionOptions, version, commit, date, builtBy string) error {
	info := VersionInfo{
		Version:  version,
		Commit:   commit,
		Date:     date,
		BuiltBy:  builtBy,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Matchers: match.Available(),
	}

	if opts.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(info); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}

	if opts.Short {
		fmt.Fprintln(out, info.Version)
		return nil
	}

	fmt.Fprintf(out, "clickflow version %s\n", info.Version)
	fmt.Fprintf(out, "commit: %s\n", info.Commit)
	fmt.Fprintf(out, "built at: %s\n", info.Date)
	if info.BuiltBy != "" && info.BuiltBy != "unknown" {
		fmt.Fprintf(out, "built by: %s\n", info.BuiltBy)
	}
	fmt.Fprintf(out, "go version: %s\n", info.Go)
	fmt.Fprintf(out, "platform: %s\n", info.Platform)
	fmt.Fprintf(out, "matchers: %s\n", strings.Join(info.Matchers, ", "))

	return nil
}
