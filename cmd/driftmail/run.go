package main

import (
	"fmt"
	"os"
	osexec "os/exec"

	flag "github.com/spf13/pflag"

	"github.com/driftmail/driftmail/internal/config"
	"github.com/driftmail/driftmail/internal/launch"
	"github.com/driftmail/driftmail/internal/supervisor"
)

// cmdRun supervises an arbitrary command instead of the bundled server.
// Unlike the default form, supervisor knobs are taken as explicit flags
// here; the supervised command comes after --.
func cmdRun(args []string) int {
	flags := flag.NewFlagSet("driftmail run", flag.ExitOnError)
	flags.SortFlags = false
	port := flags.String("port", launch.DefaultPort, "Value for the child's PORT variable")
	noUI := flags.Bool("no-ui", false, "Note the web ui as disabled (informational; the child decides)")
	killTimeout := flags.Duration("kill-timeout", 0, "SIGKILL the child this long after a termination signal (0 = wait forever)")
	restart := flags.String("restart", "", "Restart policy: never, on-failure, always")
	stdio := flags.String("stdio", "", "Stdio mode: inherit, captured, pty")
	watchFlag := flags.Bool("watch", false, "Restart the child when its binary changes")
	configPath := flags.String("config", "", "Supervisor config file")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: driftmail run [flags] -- <command...>

Run a command under the driftmail process supervisor: signal relay, exit
code mirroring, optional kill timeout and restart policy.

Flags:
`)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}

	command := flags.Args()
	if len(command) == 0 {
		flags.Usage()
		return 1
	}

	if *noUI {
		fmt.Fprintln(os.Stderr, "driftmail: web ui disabled")
	}

	settings, configFile, err := config.Load(*configPath)
	if err != nil {
		fatal("%v", err)
	}
	// Explicit flags win over the config file and environment.
	if flags.Changed("kill-timeout") {
		settings.KillTimeout = config.Duration(*killTimeout)
	}
	if flags.Changed("restart") {
		settings.Restart = *restart
	}
	if flags.Changed("stdio") {
		settings.Stdio = *stdio
	}
	if flags.Changed("watch") {
		settings.Watch = *watchFlag
	}

	supCfg := supervisor.Config{
		Command:  command,
		Env:      append(os.Environ(), "PORT="+*port),
		Notifier: supervisor.SdNotifier{},
	}
	cleanup, err := applySettings(&supCfg, settings, command[0])
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	var watchPaths []string
	if settings.Watch {
		resolved, err := osexec.LookPath(command[0])
		if err != nil {
			resolved = command[0]
		}
		watchPaths = []string{resolved}
		if configFile != "" {
			watchPaths = append(watchPaths, configFile)
		}
	}

	return runSupervised(supervisor.New(supCfg), settings, watchPaths)
}
