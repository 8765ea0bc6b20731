// Package config loads the supervisor's operational settings. These tune
// how the launcher runs the server (shutdown bounds, restart policy,
// stdio wiring); the server's own flags still travel in the raw argument
// vector untouched.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftmail/driftmail/internal/dirs"
)

// FileName is the config file looked up next to the launcher binary and
// in the user config directory.
const FileName = "driftmail.yaml"

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Settings are the supervisor's tunables. Restart and Stdio stay strings
// here; the CLI layer validates them against the supervisor's vocabulary.
type Settings struct {
	KillTimeout  Duration `yaml:"kill_timeout"`
	Restart      string   `yaml:"restart"`
	BackoffMin   Duration `yaml:"backoff_min"`
	BackoffMax   Duration `yaml:"backoff_max"`
	BackoffReset Duration `yaml:"backoff_reset"`
	Stdio        string   `yaml:"stdio"`
	Watch        bool     `yaml:"watch"`
}

// Default returns the built-in settings: inherit stdio, wait forever on
// shutdown, never restart.
func Default() Settings {
	return Settings{
		Restart:      "never",
		BackoffMin:   Duration(time.Second),
		BackoffMax:   Duration(30 * time.Second),
		BackoffReset: Duration(time.Minute),
		Stdio:        "inherit",
	}
}

// Load reads path if non-empty, otherwise the first config file found
// next to the launcher binary or in the user config directory. A missing
// file is not an error; DRIFTMAIL_* environment variables are layered on
// top either way. The returned path is the file actually read, or ""
// when the settings came from defaults and environment alone.
func Load(path string) (Settings, string, error) {
	s := Default()

	if path == "" {
		path = findFile()
	}
	loaded := ""
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return s, "", fmt.Errorf("reading %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return s, "", fmt.Errorf("parsing %s: %w", path, err)
			}
			loaded = path
		}
	}

	if err := s.applyEnv(os.LookupEnv); err != nil {
		return s, loaded, err
	}
	return s, loaded, nil
}

// findFile returns the first existing config file candidate, or "".
func findFile() string {
	var candidates []string
	if self, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), FileName))
	}
	candidates = append(candidates, filepath.Join(dirs.ConfigDir(), FileName))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// applyEnv layers DRIFTMAIL_* variables over s. The lookup function is
// injected so tests don't mutate the process environment.
func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DRIFTMAIL_KILL_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DRIFTMAIL_KILL_TIMEOUT: %w", err)
		}
		s.KillTimeout = Duration(d)
	}
	if v, ok := lookup("DRIFTMAIL_RESTART"); ok {
		s.Restart = v
	}
	if v, ok := lookup("DRIFTMAIL_STDIO"); ok {
		s.Stdio = v
	}
	if v, ok := lookup("DRIFTMAIL_WATCH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DRIFTMAIL_WATCH: %w", err)
		}
		s.Watch = b
	}
	return nil
}
