package supervisor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/driftmail/driftmail/internal/executor"
)

// startTestRun builds a supervisor around a fake executor and runs it in
// the background. The started channel yields each spawned process so
// tests can deliver signals only once the child exists.
func startTestRun(t *testing.T, exec *executor.FakeExecutor, mutate func(*Config)) (*Supervisor, <-chan executor.Process, <-chan runResult) {
	t.Helper()

	started := make(chan executor.Process, 4)
	cfg := Config{
		Command:  []string{"test-server", "--port", "8080"},
		Executor: exec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnStart:  func(p executor.Process) { started <- p },
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s := New(cfg)
	done := make(chan runResult, 1)
	go func() {
		code, err := s.Run(context.Background())
		done <- runResult{code, err}
	}()
	return s, started, done
}

type runResult struct {
	code int
	err  error
}

func waitRun(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not terminate")
		return runResult{}
	}
}

func waitStarted(t *testing.T, started <-chan executor.Process) executor.Process {
	t.Helper()
	select {
	case p := <-started:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("child was never spawned")
		return nil
	}
}

func TestRun_MirrorsChildExitCode(t *testing.T) {
	for _, code := range []int{0, 1, 42, 255} {
		exec := executor.NewFakeExecutor()
		exec.RegisterCommand("test-server", executor.ExitWith(code))

		s, _, done := startTestRun(t, exec, nil)

		r := waitRun(t, done)
		if r.err != nil {
			t.Fatalf("Run(exit %d) error: %v", code, r.err)
		}
		if r.code != code {
			t.Errorf("Run(exit %d) = %d, want %d", code, r.code, code)
		}
		if st := s.State(); st != StateTerminated {
			t.Errorf("State after Run = %v, want terminated", st)
		}
	}
}

func TestRun_SpawnFailure(t *testing.T) {
	exec := executor.NewFakeExecutor() // nothing registered

	_, _, done := startTestRun(t, exec, nil)

	r := waitRun(t, done)
	if r.err == nil {
		t.Error("expected spawn error")
	}
	if r.code != 1 {
		t.Errorf("Run = %d, want 1 on spawn failure", r.code)
	}
	if n := len(exec.Processes()); n != 0 {
		t.Errorf("expected no child handle on spawn failure, got %d", n)
	}
}

func TestRun_EmptyCommandFailsWithoutPanic(t *testing.T) {
	exec := executor.NewFakeExecutor()

	_, _, done := startTestRun(t, exec, func(cfg *Config) {
		cfg.Command = nil
	})

	r := waitRun(t, done)
	if r.err == nil {
		t.Error("expected spawn error for empty command")
	}
	if r.code != 1 {
		t.Errorf("Run = %d, want 1 on spawn failure", r.code)
	}
}

func TestRun_ForwardsSpecToExecutor(t *testing.T) {
	exec := executor.NewFakeExecutor()
	exec.RegisterCommand("test-server", executor.ExitWith(0))

	_, _, done := startTestRun(t, exec, func(cfg *Config) {
		cfg.Env = []string{"PORT=8080"}
	})
	waitRun(t, done)

	starts := exec.Starts()
	if len(starts) != 1 {
		t.Fatalf("expected 1 start, got %d", len(starts))
	}
	wantCmd := []string{"test-server", "--port", "8080"}
	if !slices.Equal(starts[0].Command, wantCmd) {
		t.Errorf("Command = %v, want %v", starts[0].Command, wantCmd)
	}
	if !slices.Contains(starts[0].Env, "PORT=8080") {
		t.Errorf("Env = %v, want PORT=8080 present", starts[0].Env)
	}
}

func TestRun_InterruptRelayedToChild(t *testing.T) {
	exec := executor.NewFakeExecutor()
	exec.RegisterCommand("test-server", executor.ExitOnSignal(3))

	s, started, done := startTestRun(t, exec, nil)
	waitStarted(t, started)

	s.Deliver(syscall.SIGINT)

	r := waitRun(t, done)
	if r.code != 3 {
		t.Errorf("Run = %d, want the child's exit code 3", r.code)
	}

	received := exec.Processes()[0].Received()
	if !slices.Contains(received, os.Signal(syscall.SIGINT)) {
		t.Errorf("child received %v, want SIGINT relayed", received)
	}
}

func TestRun_TerminationSignalDeath(t *testing.T) {
	exec := executor.NewFakeExecutor()
	exec.RegisterCommand("test-server", func(ctx context.Context, signals <-chan os.Signal, args []string) executor.Result {
		select {
		case sig := <-signals:
			if s, ok := sig.(syscall.Signal); ok {
				return executor.Signaled(s.String())
			}
			return executor.Signaled("SIGTERM")
		case <-ctx.Done():
			return executor.Signaled("SIGKILL")
		}
	})

	s, started, done := startTestRun(t, exec, nil)
	waitStarted(t, started)

	s.Deliver(syscall.SIGTERM)

	r := waitRun(t, done)
	if r.code != 0 {
		t.Errorf("Run = %d, want 0 for a signal death", r.code)
	}
}

func TestRun_UnknownSignalsNotRelayed(t *testing.T) {
	exec := executor.NewFakeExecutor()
	exec.RegisterCommand("test-server", executor.ExitOnSignal(0))

	s, started, done := startTestRun(t, exec, nil)
	waitStarted(t, started)

	s.Deliver(syscall.SIGUSR1)
	s.Deliver(syscall.SIGTERM)

	waitRun(t, done)

	received := exec.Processes()[0].Received()
	want := []os.Signal{syscall.SIGTERM}
	if !slices.Equal(received, want) {
		t.Errorf("child received %v, want %v", received, want)
	}
}

func TestRun_KillTimeoutEscalates(t *testing.T) {
	exec := executor.NewFakeExecutor()
	exec.RegisterCommand("test-server", executor.IgnoreSignals())

	s, started, done := startTestRun(t, exec, func(cfg *Config) {
		cfg.KillTimeout = 50 * time.Millisecond
	})
	waitStarted(t, started)

	s.Deliver(syscall.SIGTERM)

	r := waitRun(t, done)
	if r.code != 0 {
		t.Errorf("Run = %d, want 0 for a SIGKILL death", r.code)
	}

	received := exec.Processes()[0].Received()
	if !slices.Contains(received, os.Signal(syscall.SIGKILL)) {
		t.Errorf("child received %v, want SIGKILL escalation", received)
	}
}

func TestRun_RestartOnFailure(t *testing.T) {
	exec := executor.NewFakeExecutor()
	runs := 0
	exec.RegisterCommand("test-server", func(ctx context.Context, signals <-chan os.Signal, args []string) executor.Result {
		runs++
		if runs == 1 {
			return executor.Exited(1)
		}
		return executor.Exited(0)
	})

	_, _, done := startTestRun(t, exec, func(cfg *Config) {
		cfg.Restart = RestartPolicy{
			Mode:       RestartOnFailure,
			BackoffMin: time.Millisecond,
			BackoffMax: 5 * time.Millisecond,
		}
	})

	r := waitRun(t, done)
	if r.code != 0 {
		t.Errorf("Run = %d, want 0 after successful respawn", r.code)
	}
	if n := len(exec.Starts()); n != 2 {
		t.Errorf("expected 2 spawns, got %d", n)
	}
}

func TestRun_ShutdownSuppressesRestart(t *testing.T) {
	exec := executor.NewFakeExecutor()
	exec.RegisterCommand("test-server", executor.ExitOnSignal(0))

	s, started, done := startTestRun(t, exec, func(cfg *Config) {
		cfg.Restart = RestartPolicy{Mode: RestartAlways, BackoffMin: time.Millisecond}
	})
	waitStarted(t, started)

	s.Deliver(syscall.SIGTERM)

	waitRun(t, done)
	if n := len(exec.Starts()); n != 1 {
		t.Errorf("expected no respawn after shutdown signal, got %d spawns", n)
	}
}

func TestRun_RequestRestartRecycles(t *testing.T) {
	exec := executor.NewFakeExecutor()
	runs := 0
	exec.RegisterCommand("test-server", func(ctx context.Context, signals <-chan os.Signal, args []string) executor.Result {
		runs++
		if runs == 1 {
			// First child waits for the recycle SIGTERM.
			select {
			case <-signals:
			case <-ctx.Done():
			}
			return executor.Exited(0)
		}
		return executor.Exited(5)
	})

	s, started, done := startTestRun(t, exec, nil)
	waitStarted(t, started)

	s.RequestRestart()

	r := waitRun(t, done)
	if r.code != 5 {
		t.Errorf("Run = %d, want the respawned child's exit code 5", r.code)
	}
	if n := len(exec.Starts()); n != 2 {
		t.Errorf("expected 2 spawns, got %d", n)
	}
}

func TestRun_ContextCancelStopsChild(t *testing.T) {
	exec := executor.NewFakeExecutor()
	exec.RegisterCommand("test-server", executor.ExitOnSignal(0))

	started := make(chan executor.Process, 1)
	s := New(Config{
		Command:  []string{"test-server"},
		Executor: exec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnStart:  func(p executor.Process) { started <- p },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan runResult, 1)
	go func() {
		code, err := s.Run(ctx)
		done <- runResult{code, err}
	}()
	waitStarted(t, started)

	cancel()

	r := waitRun(t, done)
	if r.code != 0 {
		t.Errorf("Run = %d, want 0", r.code)
	}
	received := exec.Processes()[0].Received()
	if !slices.Contains(received, os.Signal(syscall.SIGTERM)) {
		t.Errorf("child received %v, want SIGTERM on context cancellation", received)
	}
}
