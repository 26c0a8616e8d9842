// Package infra implements infrastructure concerns.
package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// AppName names the config, runtime and unit locations.
	AppName = "hypnos"

	// UnitName is the systemd user unit file name.
	UnitName = AppName + ".service"
)

// Paths holds the per-user file locations.
type Paths struct {
	ConfigDir    string // $XDG_CONFIG_HOME/hypnos
	RulesFile    string // Rule file watched by the daemon
	SettingsFile string // Optional daemon settings
	RuntimeDir   string // $XDG_RUNTIME_DIR/hypnos
	InstanceFile string // Record of the running daemon
	UnitDir      string // systemd user unit directory
	UnitPath     string // Full path to the unit file
}

// DetectPaths resolves locations from the XDG environment.
func DetectPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(os.TempDir(), AppName+"-"+strconv.Itoa(os.Getuid()))
	} else {
		runtimeDir = filepath.Join(runtimeDir, AppName)
	}

	configDir := filepath.Join(configHome, AppName)
	unitDir := filepath.Join(configHome, "systemd", "user")

	return &Paths{
		ConfigDir:    configDir,
		RulesFile:    filepath.Join(configDir, "config.json"),
		SettingsFile: filepath.Join(configDir, "settings.toml"),
		RuntimeDir:   runtimeDir,
		InstanceFile: filepath.Join(runtimeDir, "instance.json"),
		UnitDir:      unitDir,
		UnitPath:     filepath.Join(unitDir, UnitName),
	}, nil
}
