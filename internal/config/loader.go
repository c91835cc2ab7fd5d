package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "CLICKFLOW"

// DetectConfigPath searches for a config file using XDG standard paths.
// Returns the first config file found, or empty string if none exists.
//
// Search order:
// 1. $XDG_CONFIG_HOME/clickflow/config.toml
// 2. ~/.config/clickflow/config.toml
func DetectConfigPath() string {
	for _, path := range candidatePaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// DefaultConfigPath returns the path `init` writes to.
func DefaultConfigPath() string {
	candidates := candidatePaths()
	if len(candidates) == 0 {
		return "config.toml"
	}
	return candidates[0]
}

func candidatePaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "clickflow", "config.toml"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "clickflow", "config.toml"))
	}
	return paths
}

// NewViper returns a viper instance that resolves CLICKFLOW_<SECTION>_<KEY>
// environment variables. Callers bind command flags to it with BindPFlag
// using the dotted TOML key ("locator.confidence").
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads a config from the specified path.
// If the file doesn't exist, returns an error.
// After loading, applies environment variable overrides and validates.
func Load(path string) (*Config, error) {
	return LoadWith(path, NewViper())
}

// LoadWithDefaults attempts to load a config from XDG standard paths.
// If no config file is found, returns a config with all default values.
// If a config file is found but fails to load/validate, returns an error.
func LoadWithDefaults() (*Config, error) {
	return LoadWith("", NewViper())
}

// LoadWith loads the config at path, or the detected config when path is
// empty, and applies the overrides resolved by v. A missing detected file
// yields the defaults.
func LoadWith(path string, v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DetectConfigPath()
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &cferrors.ConfigError{Path: path, Err: cferrors.ErrNotFound}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &cferrors.ConfigError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, &cferrors.ConfigError{Path: path, Err: fmt.Errorf("failed to parse config file: %w", err)}
		}
	}

	if v != nil {
		if err := applyOverrides(v, cfg); err != nil {
			return nil, &cferrors.ConfigError{Path: path, Err: err}
		}
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, &cferrors.ConfigError{Path: path, Err: fmt.Errorf("%w: %s", cferrors.ErrInvalid, err)}
	}

	return cfg, nil
}

// applyOverrides applies environment and flag overrides to the config.
// Keys follow the TOML layout; CLICKFLOW_LOCATOR_CONFIDENCE overrides
// [locator].confidence.
func applyOverrides(v *viper.Viper, c *Config) error {
	var firstErr error
	record := func(key string, err error) {
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("override %s: %w", key, err)
		}
	}

	applyString := func(key string, target *string) {
		if v.IsSet(key) {
			*target = v.GetString(key)
		}
	}
	applyBool := func(key string, target *bool) {
		if v.IsSet(key) {
			*target = v.GetBool(key)
		}
	}
	applyInt := func(key string, target *int) {
		if v.IsSet(key) {
			*target = v.GetInt(key)
		}
	}
	applyFloat := func(key string, target *float64) {
		if v.IsSet(key) {
			*target = v.GetFloat64(key)
		}
	}
	applyDuration := func(key string, target *Duration) {
		if v.IsSet(key) {
			record(key, target.UnmarshalText([]byte(v.GetString(key))))
		}
	}

	// Templates section
	applyString("templates.dir", &c.Templates.Dir)
	if v.IsSet("templates.extensions") {
		c.Templates.Extensions = v.GetStringSlice("templates.extensions")
	}
	applyInt("templates.duplicate_distance", &c.Templates.DuplicateDistance)

	// Workflows section
	applyString("workflows.dir", &c.Workflows.Dir)
	applyString("workflows.format", &c.Workflows.Format)

	// Locator section
	applyFloat("locator.confidence", &c.Locator.Confidence)
	applyDuration("locator.timeout", &c.Locator.Timeout)
	applyDuration("locator.poll_interval", &c.Locator.PollInterval)
	applyDuration("locator.pre_click_delay", &c.Locator.PreClickDelay)
	applyDuration("locator.sequence_delay", &c.Locator.SequenceDelay)
	applyDuration("locator.step_timeout", &c.Locator.StepTimeout)
	applyDuration("locator.wait_check_interval", &c.Locator.WaitCheckInterval)
	applyDuration("locator.wait_inner_timeout", &c.Locator.WaitInnerTimeout)
	applyDuration("locator.countdown", &c.Locator.Countdown)
	applyString("locator.matcher", &c.Locator.Matcher)
	applyInt("locator.stride", &c.Locator.Stride)

	// Capture section
	applyInt("capture.display", &c.Capture.Display)
	applyInt("capture.max_selections", &c.Capture.MaxSelections)
	applyInt("capture.min_selection", &c.Capture.MinSelection)

	// Clicker section
	applyString("clicker.backend", &c.Clicker.Backend)
	applyString("clicker.port", &c.Clicker.Port)
	applyInt("clicker.baud", &c.Clicker.Baud)
	applyString("clicker.ack", &c.Clicker.Ack)
	applyDuration("clicker.ack_timeout", &c.Clicker.AckTimeout)

	// FailSafe section
	applyBool("failsafe.enabled", &c.FailSafe.Enabled)
	applyInt("failsafe.corner_margin", &c.FailSafe.CornerMargin)
	applyDuration("failsafe.poll_interval", &c.FailSafe.PollInterval)
	applyBool("failsafe.hotkey", &c.FailSafe.Hotkey)

	// Log section
	applyString("log.level", &c.Log.Level)
	applyString("log.format", &c.Log.Format)

	// History section
	applyString("history.backend", &c.History.Backend)
	applyString("history.path", &c.History.Path)
	applyString("history.dsn", &c.History.DSN)

	// TUI section
	applyBool("tui.enabled", &c.TUI.Enabled)

	return firstErr
}

// expandPaths expands ~ to the home directory in configured paths.
func expandPaths(c *Config) {
	for _, target := range []*string{&c.Templates.Dir, &c.Workflows.Dir, &c.History.Path} {
		*target = expandHome(*target)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
}
