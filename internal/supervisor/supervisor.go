// Package supervisor owns the lifecycle of one child server process per
// invocation: it spawns the child, relays termination signals to it, and
// mirrors the child's exit status as its own.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/driftmail/driftmail/internal/executor"
)

// State is the supervisor's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Config describes the child to supervise and how to run it.
type Config struct {
	Command []string
	Env     []string
	Dir     string
	Stdio   executor.StdioConfig

	// KillTimeout bounds how long the child may outlive a relayed
	// termination signal before its process group is SIGKILLed.
	// Zero means wait forever, matching the launcher's original
	// fire-and-forget behavior.
	KillTimeout time.Duration

	// Restart decides whether an exited child is respawned. The zero
	// value means never.
	Restart RestartPolicy

	// OnStart is invoked after every successful spawn, before the
	// supervisor starts waiting on the child.
	OnStart func(executor.Process)

	Executor executor.Executor
	Notifier ReadyNotifier
	Logger   *slog.Logger
}

// Supervisor runs one child at a time. Create with New, drive with Run,
// and feed OS signals in through Deliver.
type Supervisor struct {
	cfg    Config
	exec   executor.Executor
	notify ReadyNotifier
	log    *slog.Logger

	signals  chan os.Signal
	restarts chan struct{}
	backoff  backoff

	mu    sync.Mutex
	state State
}

// New creates a Supervisor. Missing Config fields get working defaults:
// the real executor, a no-op notifier, and the process-wide slog logger.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		exec:     cfg.Executor,
		notify:   cfg.Notifier,
		log:      cfg.Logger,
		signals:  make(chan os.Signal, 8),
		restarts: make(chan struct{}, 1),
		backoff:  backoff{policy: cfg.Restart},
	}
	if s.exec == nil {
		s.exec = executor.Default()
	}
	if s.notify == nil {
		s.notify = nopNotifier{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Deliver injects an OS signal event. It never blocks; when the buffer is
// full the signal is dropped, mirroring kernel signal coalescing. Exported
// so signal handling can be driven by tests without real delivery.
func (s *Supervisor) Deliver(sig os.Signal) {
	select {
	case s.signals <- sig:
	default:
	}
}

// RequestRestart asks the supervisor to recycle the child: stop it
// politely, then respawn it regardless of the restart policy. Used by the
// binary watcher.
func (s *Supervisor) RequestRestart() {
	select {
	case s.restarts <- struct{}{}:
	default:
	}
}

// Run spawns the child and blocks until the supervisor's exit code is
// decided. The code mirrors the child's termination: the child's own exit
// code, 0 for a signal death, 1 when the spawn itself fails (in which
// case the error explains why). Run's return is the only way the
// supervisor ends; incoming signals are only ever forwarded.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	for {
		code, again, err := s.runOnce(ctx)
		if !again {
			return code, err
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (code int, again bool, err error) {
	s.setState(StateStarting)

	proc, err := s.exec.Start(executor.Spec{
		Command: s.cfg.Command,
		Env:     s.cfg.Env,
		Dir:     s.cfg.Dir,
		Stdio:   s.cfg.Stdio,
	})
	if err != nil {
		s.setState(StateTerminated)
		return 1, false, fmt.Errorf("starting %s: %w", s.commandName(), err)
	}

	s.setState(StateRunning)
	s.notify.Ready()
	s.log.Info("server started", "pid", proc.PID())
	if s.cfg.OnStart != nil {
		s.cfg.OnStart(proc)
	}
	started := time.Now()

	done := make(chan executor.Result, 1)
	go func() { done <- proc.Wait() }()

	ctxDone := ctx.Done()
	var killAt <-chan time.Time
	shuttingDown := false
	restartPending := false

	for {
		select {
		case <-ctxDone:
			ctxDone = nil
			shuttingDown = true
			s.setState(StateShuttingDown)
			s.notify.Stopping()
			_ = proc.Signal(syscall.SIGTERM)
			killAt = s.armKillTimer(killAt)

		case sig := <-s.signals:
			class := classOf(sig)
			if class == ClassUnknown {
				continue
			}
			if class == ClassInterrupt {
				s.log.Info("interrupt received, shutting down server")
			}
			shuttingDown = true
			s.setState(StateShuttingDown)
			s.notify.Stopping()
			_ = proc.Signal(sig)
			killAt = s.armKillTimer(killAt)

		case <-s.restarts:
			if shuttingDown {
				continue
			}
			restartPending = true
			s.log.Info("restart requested, stopping server")
			_ = proc.Signal(syscall.SIGTERM)
			killAt = s.armKillTimer(killAt)

		case <-killAt:
			killAt = nil
			s.log.Warn("server still running after kill timeout, sending SIGKILL",
				"timeout", s.cfg.KillTimeout)
			_ = proc.Signal(syscall.SIGKILL)

		case res := <-done:
			s.setState(StateTerminated)
			return s.concludeRun(ctx, res, started, shuttingDown, restartPending)
		}
	}
}

// concludeRun turns the child's termination result into the supervisor's
// exit code, or schedules a respawn. Exactly one conclusion happens per
// child.
func (s *Supervisor) concludeRun(ctx context.Context, res executor.Result, started time.Time, shuttingDown, restartPending bool) (int, bool, error) {
	switch {
	case res.Signal != "":
		s.log.Info("server killed by signal", "signal", res.Signal)
	case res.Code() != 0:
		s.log.Warn("server exited with non-zero status", "code", res.Code())
	}

	if shuttingDown {
		return res.Code(), false, nil
	}
	if restartPending {
		return 0, true, nil
	}
	if !s.cfg.Restart.shouldRestart(res) {
		return res.Code(), false, nil
	}

	delay := s.backoff.next(time.Since(started))
	s.log.Info("restarting server", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return 0, true, nil
		case sig := <-s.signals:
			// A shutdown request during backoff cancels the respawn.
			if classOf(sig) == ClassUnknown {
				continue
			}
			return res.Code(), false, nil
		case <-ctx.Done():
			return res.Code(), false, nil
		}
	}
}

// commandName names the child for error messages. An empty Command still
// reaches the executor, which rejects it; the error must not panic here.
func (s *Supervisor) commandName() string {
	if len(s.cfg.Command) == 0 {
		return "server"
	}
	return s.cfg.Command[0]
}

func (s *Supervisor) armKillTimer(current <-chan time.Time) <-chan time.Time {
	if current != nil || s.cfg.KillTimeout <= 0 {
		return current
	}
	return time.After(s.cfg.KillTimeout)
}
