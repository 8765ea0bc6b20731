package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/driftmail/driftmail/internal/config"
	"github.com/driftmail/driftmail/internal/dirs"
	"github.com/driftmail/driftmail/internal/executor"
	"github.com/driftmail/driftmail/internal/supervisor"
	"github.com/driftmail/driftmail/internal/watch"
)

// applySettings folds the loaded supervisor settings into cfg. The
// returned cleanup releases anything the stdio mode opened.
func applySettings(cfg *supervisor.Config, settings config.Settings, commandName string) (cleanup func(), err error) {
	cleanup = func() {}

	mode, err := supervisor.ParseRestartMode(settings.Restart)
	if err != nil {
		return cleanup, err
	}
	cfg.KillTimeout = time.Duration(settings.KillTimeout)
	cfg.Restart = supervisor.RestartPolicy{
		Mode:         mode,
		BackoffMin:   time.Duration(settings.BackoffMin),
		BackoffMax:   time.Duration(settings.BackoffMax),
		BackoffReset: time.Duration(settings.BackoffReset),
	}

	switch settings.Stdio {
	case "", "inherit":
		cfg.Stdio = executor.StdioConfig{Mode: executor.StdioInherit}
	case "captured":
		f, err := openLogFile(commandName)
		if err != nil {
			return cleanup, err
		}
		fmt.Fprintf(os.Stderr, "driftmail: server output captured to %s\n", f.Name())
		cfg.Stdio = executor.StdioConfig{Mode: executor.StdioPipe, Out: f, Err: f}
		cleanup = func() { f.Close() }
	case "pty":
		cfg.Stdio = executor.StdioConfig{Mode: executor.StdioPTY}
		cfg.OnStart = attachPTY
	default:
		return cleanup, fmt.Errorf("unknown stdio mode %q (want inherit, captured or pty)", settings.Stdio)
	}
	return cleanup, nil
}

// openLogFile creates a timestamped log file for captured stdio mode.
func openLogFile(commandName string) (*os.File, error) {
	dir := filepath.Join(dirs.StateDir(), "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.log", filepath.Base(commandName), time.Now().Format("20060102-150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	return f, nil
}

// runSupervised wires OS signal delivery and the optional binary watcher
// into sup, then blocks until the supervisor decides its exit code.
func runSupervised(sup *supervisor.Supervisor, settings config.Settings, watchPaths []string) int {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, supervisor.RelaySignals()...)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			sup.Deliver(sig)
		}
	}()

	if settings.Watch && len(watchPaths) > 0 {
		w, err := watch.New(watchPaths, sup.RequestRestart, slog.Default())
		if err != nil {
			fatal("watching server binary: %v", err)
		}
		defer w.Close()
		slog.Info("watching for changes", "paths", watchPaths)
	}

	code, err := sup.Run(context.Background())
	if restoreTerminal != nil {
		restoreTerminal()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "driftmail: %v\n", err)
	}
	return code
}
