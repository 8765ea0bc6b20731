// Package launch derives the launcher's configuration from its raw
// argument vector and locates the server binary it fronts.
package launch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// DefaultPort is used when --port is absent or is the last token.
const DefaultPort = "3004"

// ServerBinary is the name of the server executable that ships in the
// same directory as the launcher.
const ServerBinary = "driftmail-server"

// Config holds the settings derived from the argument vector. The fields
// are advisory: the server re-parses RawArgs on its own, so Port and
// UIEnabled feed only the startup banner and the child's PORT variable.
type Config struct {
	Port      string
	UIEnabled bool
	RawArgs   []string
}

// ParseArgs scans args for --port and --no-ui. Parsing is deliberately
// permissive: any value after --port is accepted verbatim, a trailing
// --port with no value falls back to DefaultPort, and unrecognized tokens
// are left for the server. ParseArgs never fails.
func ParseArgs(args []string) Config {
	cfg := Config{
		Port:      DefaultPort,
		UIEnabled: !slices.Contains(args, "--no-ui"),
		RawArgs:   args,
	}
	if i := slices.Index(args, "--port"); i >= 0 && i+1 < len(args) {
		cfg.Port = args[i+1]
	}
	return cfg
}

// ServerPath resolves the server binary next to the launcher's own
// executable, so the launcher works regardless of the caller's working
// directory.
func ServerPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating launcher executable: %w", err)
	}
	return filepath.Join(filepath.Dir(self), ServerBinary), nil
}

// Environ returns the child's environment: the launcher's own environment
// with PORT overridden.
func Environ(port string) []string {
	return append(os.Environ(), "PORT="+port)
}
