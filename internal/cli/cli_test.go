package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/config"
	"github.com/chazuruo/clickflow/internal/logging"
	"github.com/chazuruo/clickflow/internal/templates"
	"github.com/chazuruo/clickflow/internal/testutil"
	"github.com/chazuruo/clickflow/internal/workflows"
	"github.com/chazuruo/clickflow/internal/workflows/store"
)

var recordedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// testEnv is a config file with storage under a temp dir, the log click
// backend and no delays.
type testEnv struct {
	cfg        *config.Config
	configPath string
	dir        string
}

func setupConfig(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Templates.Dir = filepath.Join(dir, "images")
	cfg.Workflows.Dir = filepath.Join(dir, "workflows")
	cfg.History.Path = filepath.Join(dir, "history.jsonl")
	cfg.Clicker.Backend = "log"
	cfg.FailSafe.Enabled = false
	cfg.Locator.Countdown = config.D(0)
	cfg.Locator.PreClickDelay = config.D(0)
	cfg.Locator.SequenceDelay = config.D(0)
	cfg.Locator.PollInterval = config.D(20 * time.Millisecond)
	cfg.Locator.Timeout = config.D(time.Second)
	cfg.Log.Level = "error"
	cfg.TUI.Enabled = false

	path := filepath.Join(dir, "config.toml")
	if err := config.Write(path, cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	old := ConfigPath
	ConfigPath = path
	t.Cleanup(func() { ConfigPath = old })

	return &testEnv{cfg: cfg, configPath: path, dir: dir}
}

// screenWithButton writes a textured screen image and a template cropped
// from it at (40,30)-(70,50). It returns the screen image path.
func (e *testEnv) screenWithButton(t *testing.T) string {
	t.Helper()

	screen := testutil.PatternImage(200, 100, 1)
	testutil.WriteTemplate(t, e.cfg.Templates.Dir, "button.png",
		templates.Crop(screen, image.Rect(40, 30, 70, 50)))
	return testutil.WriteTemplate(t, e.dir, "screen.png", screen)
}

// writeFlatScreen writes a uniform gray screen where nothing matches.
func writeFlatScreen(t *testing.T, path string) {
	t.Helper()
	testutil.WriteTemplate(t, filepath.Dir(path), filepath.Base(path),
		testutil.SolidImage(200, 100, color.Gray{Y: 128}))
}

func (e *testEnv) saveWorkflow(t *testing.T, wf *workflows.Workflow) store.WorkflowRef {
	t.Helper()

	ws, err := store.New(e.cfg.Workflows.Dir, "yaml", logging.Discard())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	ref, err := ws.Save(context.Background(), wf, store.SaveOptions{})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return ref
}

func loginWorkflow() *workflows.Workflow {
	return &workflows.Workflow{
		SchemaVersion: workflows.SchemaVersion,
		Name:          "login",
		Created:       workflows.FormatTimestamp(recordedAt),
		Steps: []workflows.Step{
			workflows.NewClickStep(0, recordedAt, "button.png", 0.8),
			workflows.NewWaitStep(1, recordedAt, 0.01),
		},
	}
}

// runCmd runs cmd with args and returns its output.
func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
