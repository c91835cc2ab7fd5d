package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/config"
	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/screen"
)

// InitOptions contains the options for the init command.
type InitOptions struct {
	ConfigPath string
	Force      bool

	// Scriptable/flag options for --no-tui mode
	TemplatesDir string
	WorkflowsDir string
	Clicker      string
	SerialPort   string
	Confidence   float64
	History      string
	HistoryDSN   string
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize clickflow configuration",
		Long: `Initialize the clickflow configuration file.

The init command guides you through:
- Where templates and workflows are stored
- Which click backend to use (desktop, serial device, or log only)
- The default match confidence
- Where run history is kept

Use --no-tui with flags for scripted setup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ConfigPath == "" {
				opts.ConfigPath = ConfigPath
			}
			if f := cmd.Flags().Lookup("clicker"); f != nil && f.Changed {
				opts.Clicker = f.Value.String()
			}
			return runInit(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&opts.TemplatesDir, "templates-dir", "", "template image directory")
	cmd.Flags().StringVar(&opts.WorkflowsDir, "workflows-dir", "", "workflow directory")
	cmd.Flags().StringVar(&opts.SerialPort, "serial-port", "", "serial device for the serial click backend")
	cmd.Flags().Float64Var(&opts.Confidence, "default-confidence", 0, "default match confidence (0-1)")
	cmd.Flags().StringVar(&opts.History, "history", "", "run history backend: none, file or mysql")
	cmd.Flags().StringVar(&opts.HistoryDSN, "history-dsn", "", "MySQL DSN for the mysql history backend")

	return cmd
}

func runInit(out io.Writer, opts *InitOptions) error {
	path := getConfigPath(opts.ConfigPath)
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return fmt.Errorf("config %w at %s (use --force to overwrite)", cferrors.ErrAlreadyExists, path)
	}

	if IsNoTUI() {
		return runInitNonInteractive(out, opts)
	}
	return runInitInteractive(out, opts)
}

// runInitInteractive runs the init wizard with TUI.
func runInitInteractive(out io.Writer, opts *InitOptions) error {
	cfg := config.DefaultConfig()

	var (
		templatesDir = cfg.Templates.Dir
		workflowsDir = cfg.Workflows.Dir
		backend      = cfg.Clicker.Backend
		port         string
		confidence   = strconv.FormatFloat(cfg.Locator.Confidence, 'f', -1, 64)
		history      = cfg.History.Backend
		dsn          string
		display      = "0"
	)

	displays := []huh.Option[string]{}
	for i := 0; i < max(screen.NumDisplays(), 1); i++ {
		displays = append(displays, huh.NewOption(fmt.Sprintf("Display %d", i), strconv.Itoa(i)))
	}

	// Step 1: Storage
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Template directory").
				Description("Where captured template images are stored").
				Value(&templatesDir),
			huh.NewInput().
				Title("Workflow directory").
				Description("Where recorded workflows are stored").
				Value(&workflowsDir),
		),
	).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}

	// Step 2: Screen and clicks
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Display").
				Options(displays...).
				Value(&display),
			huh.NewSelect[string]().
				Title("Click backend").
				Options(
					huh.NewOption("Desktop - move the system pointer", "desktop"),
					huh.NewOption("Serial - send clicks to a USB HID device", "serial"),
					huh.NewOption("Log - only log clicks (dry run)", "log"),
				).
				Value(&backend),
			huh.NewInput().
				Title("Default confidence").
				Description("Minimum match score between 0 and 1").
				Value(&confidence).
				Validate(func(s string) error {
					c, err := strconv.ParseFloat(s, 64)
					if err != nil || c < 0 || c > 1 {
						return fmt.Errorf("enter a number between 0 and 1")
					}
					return nil
				}),
		),
	).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}

	if backend == "serial" {
		if err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Serial port").
					Placeholder("/dev/ttyACM0").
					Value(&port),
			),
		).Run(); err != nil {
			return fmt.Errorf("form error: %w", err)
		}
	}

	// Step 3: History
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Run history").
				Options(
					huh.NewOption("File - JSON lines next to the workflows", "file"),
					huh.NewOption("MySQL - shared table", "mysql"),
					huh.NewOption("None", "none"),
				).
				Value(&history),
		),
	).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}
	if history == "mysql" {
		if err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("MySQL DSN").
					Placeholder("user:pass@tcp(localhost:3306)/clickflow").
					Value(&dsn),
			),
		).Run(); err != nil {
			return fmt.Errorf("form error: %w", err)
		}
	}

	cfg.Templates.Dir = templatesDir
	cfg.Workflows.Dir = workflowsDir
	cfg.Clicker.Backend = backend
	cfg.Clicker.Port = port
	cfg.Locator.Confidence, _ = strconv.ParseFloat(confidence, 64)
	cfg.Capture.Display, _ = strconv.Atoi(display)
	cfg.History.Backend = history
	cfg.History.DSN = dsn

	path, err := writeConfig(opts.ConfigPath, cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\n✓ Configuration written successfully!")
	fmt.Fprintf(out, "  Config:    %s\n", path)
	fmt.Fprintf(out, "  Templates: %s\n", cfg.Templates.Dir)
	fmt.Fprintf(out, "  Workflows: %s\n", cfg.Workflows.Dir)
	fmt.Fprintf(out, "  Clicker:   %s\n", cfg.Clicker.Backend)
	fmt.Fprintln(out, "\nYou're ready to go! Try 'clickflow record' to record a workflow.")
	return nil
}

// runInitNonInteractive runs init in non-TUI mode using flags.
func runInitNonInteractive(out io.Writer, opts *InitOptions) error {
	cfg := config.DefaultConfig()

	if opts.TemplatesDir != "" {
		cfg.Templates.Dir = opts.TemplatesDir
	}
	if opts.WorkflowsDir != "" {
		cfg.Workflows.Dir = opts.WorkflowsDir
	}
	if opts.Clicker != "" {
		cfg.Clicker.Backend = opts.Clicker
	}
	if opts.SerialPort != "" {
		cfg.Clicker.Port = opts.SerialPort
		if opts.Clicker == "" {
			cfg.Clicker.Backend = "serial"
		}
	}
	if opts.Confidence != 0 {
		cfg.Locator.Confidence = opts.Confidence
	}
	if opts.History != "" {
		cfg.History.Backend = opts.History
	}
	if opts.HistoryDSN != "" {
		cfg.History.DSN = opts.HistoryDSN
	}

	path, err := writeConfig(opts.ConfigPath, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration written to: %s\n", path)
	return nil
}

// writeConfig validates cfg, creates its directories and writes it.
func writeConfig(configPath string, cfg *config.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("config validation failed: %w", err)
	}

	for _, dir := range []string{cfg.Templates.Dir, cfg.Workflows.Dir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	path := getConfigPath(configPath)
	if err := config.Write(path, cfg); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}

// getConfigPath returns path, or the default config location when empty.
func getConfigPath(path string) string {
	if path != "" {
		return path
	}
	return config.DefaultConfigPath()
}
