// driftmail - launcher for the driftmail automation server
//
// Usage:
//
//	driftmail [--port <value>] [--no-ui] [args...]   Launch driftmail-server
//	driftmail run [flags] -- <command...>            Supervise an arbitrary command
//
// The first form forwards every argument verbatim to the driftmail-server
// binary installed next to the launcher; --port and --no-ui are only
// peeked at for the startup banner and the child's PORT variable, and the
// server re-parses them on its own. The launcher relays interrupt and
// termination signals to the server and exits with the server's own exit
// code.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/driftmail/driftmail/internal/config"
	"github.com/driftmail/driftmail/internal/launch"
	"github.com/driftmail/driftmail/internal/supervisor"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))

	// "run" has its own flags; handle it before anything else so the
	// default form never interprets server arguments.
	if len(os.Args) >= 2 && os.Args[1] == "run" {
		os.Exit(cmdRun(os.Args[2:]))
	}
	os.Exit(cmdLaunch(os.Args[1:]))
}

func logLevel() slog.Level {
	if os.Getenv("DRIFTMAIL_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "driftmail: "+format+"\n", args...)
	os.Exit(1)
}

func cmdLaunch(args []string) int {
	cfg := launch.ParseArgs(args)

	serverPath, err := launch.ServerPath()
	if err != nil {
		fatal("%v", err)
	}

	settings, configFile, err := config.Load("")
	if err != nil {
		fatal("%v", err)
	}

	printBanner(cfg, serverPath)

	supCfg := supervisor.Config{
		Command:  append([]string{serverPath}, cfg.RawArgs...),
		Env:      launch.Environ(cfg.Port),
		Notifier: supervisor.SdNotifier{},
	}
	cleanup, err := applySettings(&supCfg, settings, serverPath)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	var watchPaths []string
	if settings.Watch {
		watchPaths = []string{serverPath}
		if configFile != "" {
			watchPaths = append(watchPaths, configFile)
		}
	}

	return runSupervised(supervisor.New(supCfg), settings, watchPaths)
}

// printBanner emits the human-readable startup lines. Informational only;
// the server derives its own settings from the forwarded arguments.
func printBanner(cfg launch.Config, serverPath string) {
	ui := "enabled"
	if !cfg.UIEnabled {
		ui = "disabled"
	}
	fmt.Printf("driftmail %s\n", version)
	fmt.Printf("port %s, web ui %s\n", cfg.Port, ui)
	fmt.Printf("server: %s\n", serverPath)
}
