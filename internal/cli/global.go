// Package cli provides global state and utilities for CLI commands.
package cli

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/chazuruo/clickflow/internal/config"
)

var (
	// NoTUI indicates that TUI/interactive mode should be disabled.
	// This is set by the global --no-tui flag.
	NoTUI bool

	// ConfigPath is the --config flag; empty means the detected default.
	ConfigPath string

	// noTUIMutex protects NoTUI for concurrent access.
	noTUIMutex sync.RWMutex
)

// globalBinds maps config keys to the global flags overriding them.
var globalBinds = map[string]string{
	"log.level":       "log-level",
	"clicker.backend": "clicker",
}

// AddGlobalFlags adds global flags to a command.
func AddGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&NoTUI, "no-tui", false,
		"disable TUI/interactive mode; use plain text output")
	flags.StringVar(&ConfigPath, "config", "", "config file path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("clicker", "", "click backend (desktop, serial, log)")
}

// IsNoTUI returns true if TUI mode is disabled.
func IsNoTUI() bool {
	noTUIMutex.RLock()
	defer noTUIMutex.RUnlock()
	return NoTUI
}

// loadConfig loads the config from --config (or the default location) with
// CLICKFLOW_* environment variables and flag overrides applied. binds maps
// config keys to flags of cmd; the global flags are always bound when cmd
// has them.
func loadConfig(cmd *cobra.Command, binds map[string]string) (*config.Config, error) {
	v := config.NewViper()
	if cmd != nil {
		for key, flag := range globalBinds {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind --%s: %w", flag, err)
				}
			}
		}
		for key, flag := range binds {
			f := cmd.Flags().Lookup(flag)
			if f == nil {
				return nil, fmt.Errorf("unknown flag %q for %s", flag, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind --%s: %w", flag, err)
			}
		}
	}

	cfg, err := config.LoadWith(ConfigPath, v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// useTUI reports whether interactive views should be shown.
func useTUI(cfg *config.Config) bool {
	return cfg.TUI.Enabled && !IsNoTUI()
}
