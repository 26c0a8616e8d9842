package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileName is the rule file name inside the config directory.
const DefaultFileName = "config.json"

// DefaultContent is written when no rule file exists yet.
const DefaultContent = `[
  {
    "timeout": 300,
    "action": "brightnessctl -s set 10%",
    "restoreAction": "brightnessctl -r"
  },
  {
    "timeout": 600,
    "action": "loginctl lock-session"
  },
  {
    "timeout": 1800,
    "action": "systemctl suspend",
    "onBatteryOnly": true
  }
]
`

// EnsureFile creates path with DefaultContent if it does not exist.
// Returns true if the file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	// O_EXCL so a file created concurrently is never overwritten
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if _, err := f.WriteString(DefaultContent); err != nil {
		return false, err
	}
	return true, nil
}
