// Package config provides configuration management for clickflow.
//
// The configuration is stored in TOML format and supports validation
// and default values for all fields.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the top-level configuration struct for clickflow.
type Config struct {
	Templates TemplatesConfig `toml:"templates"`
	Workflows WorkflowsConfig `toml:"workflows"`
	Locator   LocatorConfig   `toml:"locator"`
	Capture   CaptureConfig   `toml:"capture"`
	Clicker   ClickerConfig   `toml:"clicker"`
	FailSafe  FailSafeConfig  `toml:"failsafe"`
	Log       LogConfig       `toml:"log"`
	History   HistoryConfig   `toml:"history"`
	TUI       TUIConfig       `toml:"tui"`
}

// TemplatesConfig contains template store settings.
type TemplatesConfig struct {
	// Dir is the directory holding template images.
	Dir string `toml:"dir"`

	// Extensions lists the file extensions recognized as templates.
	Extensions []string `toml:"extensions"`

	// DuplicateDistance is the perceptual hash distance at or below which a
	// newly saved template is reported as a near duplicate. Negative disables.
	DuplicateDistance int `toml:"duplicate_distance"`
}

// WorkflowsConfig contains workflow storage settings.
type WorkflowsConfig struct {
	// Dir is the directory holding workflow files.
	Dir string `toml:"dir"`

	// Format is the on-disk format for new workflow files.
	// Valid values: "yaml", "json".
	Format string `toml:"format"`
}

// LocatorConfig contains the locate-and-click timing settings.
type LocatorConfig struct {
	Confidence        float64  `toml:"confidence"`
	Timeout           Duration `toml:"timeout"`
	PollInterval      Duration `toml:"poll_interval"`
	PreClickDelay     Duration `toml:"pre_click_delay"`
	SequenceDelay     Duration `toml:"sequence_delay"`
	StepTimeout       Duration `toml:"step_timeout"`
	WaitCheckInterval Duration `toml:"wait_check_interval"`
	WaitInnerTimeout  Duration `toml:"wait_inner_timeout"`

	// Countdown is shown before the first capture or click of a CLI command.
	Countdown Duration `toml:"countdown"`

	// Matcher selects the template matcher implementation.
	// Valid values: "ncc", "opencv" (requires a build with the gocv tag).
	Matcher string `toml:"matcher"`

	// Stride is the coarse scan step of the ncc matcher.
	Stride int `toml:"stride"`
}

// CaptureConfig contains screen capture settings.
type CaptureConfig struct {
	// Display is the index of the display to capture.
	Display int `toml:"display"`

	// MaxSelections bounds how many regions one capture may save.
	MaxSelections int `toml:"max_selections"`

	// MinSelection is the minimum width and height of a region in pixels.
	MinSelection int `toml:"min_selection"`
}

// ClickerConfig contains click backend settings.
type ClickerConfig struct {
	// Backend selects the click backend.
	// Valid values: "desktop", "serial", "log".
	Backend string `toml:"backend"`

	// Port is the serial device for the serial backend.
	Port string `toml:"port"`

	// Baud is the serial baud rate.
	Baud int `toml:"baud"`

	// Ack is the line the serial device answers after a click.
	Ack string `toml:"ack"`

	// AckTimeout bounds the wait for Ack.
	AckTimeout Duration `toml:"ack_timeout"`
}

// FailSafeConfig contains abort switch settings.
type FailSafeConfig struct {
	Enabled      bool     `toml:"enabled"`
	CornerMargin int      `toml:"corner_margin"`
	PollInterval Duration `toml:"poll_interval"`

	// Hotkey enables the keyboard abort hook where the platform supports it.
	Hotkey bool `toml:"hotkey"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is one of "text", "json".
	Format string `toml:"format"`
}

// HistoryConfig contains run journal settings.
type HistoryConfig struct {
	// Backend is one of "none", "file", "mysql".
	Backend string `toml:"backend"`

	// Path is the journal file for the file backend.
	Path string `toml:"path"`

	// DSN is the MySQL data source name for the mysql backend.
	DSN string `toml:"dsn"`
}

// TUIConfig contains terminal UI settings.
type TUIConfig struct {
	// Enabled controls whether to use the TUI (when false, falls back to plain output).
	Enabled bool `toml:"enabled"`
}

// Duration is a time.Duration stored as a string such as "500ms" or "10s".
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration { return Duration{Duration: d} }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a Config with all default values set.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()

	return &Config{
		Templates: TemplatesConfig{
			Dir:               filepath.Join(dataDir, "images"),
			Extensions:        []string{".png", ".jpg", ".jpeg", ".bmp"},
			DuplicateDistance: 4,
		},
		Workflows: WorkflowsConfig{
			Dir:    filepath.Join(dataDir, "workflows"),
			Format: "yaml",
		},
		Locator: LocatorConfig{
			Confidence:        0.8,
			Timeout:           D(10 * time.Second),
			PollInterval:      D(500 * time.Millisecond),
			PreClickDelay:     D(time.Second),
			SequenceDelay:     D(time.Second),
			StepTimeout:       D(10 * time.Second),
			WaitCheckInterval: D(2 * time.Second),
			WaitInnerTimeout:  D(time.Second),
			Countdown:         D(3 * time.Second),
			Matcher:           "ncc",
			Stride:            2,
		},
		Capture: CaptureConfig{
			Display:       0,
			MaxSelections: 4,
			MinSelection:  10,
		},
		Clicker: ClickerConfig{
			Backend:    "desktop",
			Port:       "",
			Baud:       9600,
			Ack:        "received",
			AckTimeout: D(2 * time.Second),
		},
		FailSafe: FailSafeConfig{
			Enabled:      true,
			CornerMargin: 0,
			PollInterval: D(50 * time.Millisecond),
			Hotkey:       true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		History: HistoryConfig{
			Backend: "file",
			Path:    filepath.Join(dataDir, "history.jsonl"),
		},
		TUI: TUIConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for valid values.
// Returns a nil error if the config is valid, or an error describing the problem.
func (c *Config) Validate() error {
	// Templates section
	if c.Templates.Dir == "" {
		return fmt.Errorf("templates.dir cannot be empty")
	}
	if len(c.Templates.Extensions) == 0 {
		return fmt.Errorf("templates.extensions cannot be empty")
	}
	validExtensions := map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".bmp": true}
	for _, ext := range c.Templates.Extensions {
		if !validExtensions[strings.ToLower(ext)] {
			return fmt.Errorf("templates.extensions: unsupported extension %q", ext)
		}
	}

	// Workflows section
	if c.Workflows.Dir == "" {
		return fmt.Errorf("workflows.dir cannot be empty")
	}
	if c.Workflows.Format != "yaml" && c.Workflows.Format != "json" {
		return fmt.Errorf("workflows.format must be one of: yaml, json; got %q", c.Workflows.Format)
	}

	// Locator section
	if math.IsNaN(c.Locator.Confidence) || c.Locator.Confidence < 0 || c.Locator.Confidence > 1 {
		return fmt.Errorf("locator.confidence must be within [0, 1]; got %v", c.Locator.Confidence)
	}
	positive := map[string]time.Duration{
		"locator.timeout":             c.Locator.Timeout.Duration,
		"locator.poll_interval":       c.Locator.PollInterval.Duration,
		"locator.step_timeout":        c.Locator.StepTimeout.Duration,
		"locator.wait_check_interval": c.Locator.WaitCheckInterval.Duration,
		"locator.wait_inner_timeout":  c.Locator.WaitInnerTimeout.Duration,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0; got %s", key, d)
		}
	}
	nonNegative := map[string]time.Duration{
		"locator.pre_click_delay": c.Locator.PreClickDelay.Duration,
		"locator.sequence_delay":  c.Locator.SequenceDelay.Duration,
		"locator.countdown":       c.Locator.Countdown.Duration,
	}
	for key, d := range nonNegative {
		if d < 0 {
			return fmt.Errorf("%s must be >= 0; got %s", key, d)
		}
	}
	if c.Locator.Matcher != "ncc" && c.Locator.Matcher != "opencv" {
		return fmt.Errorf("locator.matcher must be one of: ncc, opencv; got %q", c.Locator.Matcher)
	}
	if c.Locator.Stride < 1 {
		return fmt.Errorf("locator.stride must be >= 1; got %d", c.Locator.Stride)
	}

	// Capture section
	if c.Capture.Display < 0 {
		return fmt.Errorf("capture.display must be >= 0; got %d", c.Capture.Display)
	}
	if c.Capture.MaxSelections < 1 || c.Capture.MaxSelections > 8 {
		return fmt.Errorf("capture.max_selections must be between 1 and 8; got %d", c.Capture.MaxSelections)
	}
	if c.Capture.MinSelection < 1 {
		return fmt.Errorf("capture.min_selection must be >= 1; got %d", c.Capture.MinSelection)
	}

	// Clicker section
	switch c.Clicker.Backend {
	case "desktop", "log":
	case "serial":
		if c.Clicker.Port == "" {
			return fmt.Errorf("clicker.port cannot be empty when clicker.backend is serial")
		}
		if c.Clicker.Baud <= 0 {
			return fmt.Errorf("clicker.baud must be > 0; got %d", c.Clicker.Baud)
		}
		if c.Clicker.AckTimeout.Duration <= 0 {
			return fmt.Errorf("clicker.ack_timeout must be > 0; got %s", c.Clicker.AckTimeout)
		}
	default:
		return fmt.Errorf("clicker.backend must be one of: desktop, serial, log; got %q", c.Clicker.Backend)
	}

	// FailSafe section
	if c.FailSafe.CornerMargin < 0 {
		return fmt.Errorf("failsafe.corner_margin must be >= 0; got %d", c.FailSafe.CornerMargin)
	}
	if c.FailSafe.Enabled && c.FailSafe.PollInterval.Duration <= 0 {
		return fmt.Errorf("failsafe.poll_interval must be > 0; got %s", c.FailSafe.PollInterval)
	}

	// Log section
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be one of: text, json; got %q", c.Log.Format)
	}

	// History section
	switch c.History.Backend {
	case "none":
	case "file":
		if c.History.Path == "" {
			return fmt.Errorf("history.path cannot be empty when history.backend is file")
		}
	case "mysql":
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn cannot be empty when history.backend is mysql")
		}
	default:
		return fmt.Errorf("history.backend must be one of: none, file, mysql; got %q", c.History.Backend)
	}

	return nil
}

// defaultDataDir returns ~/.local/share/clickflow, or a relative directory
// when the home directory is unknown.
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "clickflow-data"
	}
	return filepath.Join(homeDir, ".local", "share", "clickflow")
}
