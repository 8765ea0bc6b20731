// Package dirs provides standard directory resolution for the launcher.
// It handles XDG base directories with fallbacks for platforms where XDG
// isn't fully supported.
package dirs

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the directory for the supervisor's own settings.
// Priority: $DRIFTMAIL_CONFIG_DIR > $XDG_CONFIG_HOME/driftmail > ~/.config/driftmail
func ConfigDir() string {
	if v := os.Getenv("DRIFTMAIL_CONFIG_DIR"); v != "" {
		return v
	}
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "driftmail")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", "driftmail")
	}
	return filepath.Join(os.TempDir(), "driftmail-config")
}

// StateDir returns the directory for persistent state (captured server
// logs).
// Priority: $DRIFTMAIL_STATE_DIR > $XDG_STATE_HOME/driftmail > ~/.local/state/driftmail
func StateDir() string {
	if v := os.Getenv("DRIFTMAIL_STATE_DIR"); v != "" {
		return v
	}
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, "driftmail")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "state", "driftmail")
	}
	return filepath.Join(os.TempDir(), "driftmail-state")
}
