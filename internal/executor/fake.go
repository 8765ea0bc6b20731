package executor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
)

// FakeCommand simulates a child process. The context is cancelled when
// the process is SIGKILLed; every other delivered signal arrives on the
// signals channel. The returned Result is the child's termination result.
type FakeCommand func(ctx context.Context, signals <-chan os.Signal, args []string) Result

// ExitWith returns a FakeCommand that exits immediately with code.
func ExitWith(code int) FakeCommand {
	return func(ctx context.Context, signals <-chan os.Signal, args []string) Result {
		return Exited(code)
	}
}

// ExitOnSignal returns a FakeCommand that waits for any relayed signal,
// then exits with code.
func ExitOnSignal(code int) FakeCommand {
	return func(ctx context.Context, signals <-chan os.Signal, args []string) Result {
		select {
		case <-signals:
			return Exited(code)
		case <-ctx.Done():
			return Signaled("SIGKILL")
		}
	}
}

// IgnoreSignals returns a FakeCommand that ignores every polite signal
// and dies only to SIGKILL.
func IgnoreSignals() FakeCommand {
	return func(ctx context.Context, signals <-chan os.Signal, args []string) Result {
		for {
			select {
			case <-signals:
			case <-ctx.Done():
				return Signaled("SIGKILL")
			}
		}
	}
}

// FakeExecutor is a test implementation of Executor that runs registered
// fake commands instead of real processes.
type FakeExecutor struct {
	mu       sync.Mutex
	commands map[string]FakeCommand
	starts   []Spec
	procs    []*FakeProcess
}

var _ Executor = (*FakeExecutor)(nil)

// NewFakeExecutor creates a new FakeExecutor.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		commands: make(map[string]FakeCommand),
	}
}

// RegisterCommand registers a fake command implementation. The name must
// match the first element of the started Spec's Command.
func (e *FakeExecutor) RegisterCommand(name string, handler FakeCommand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[name] = handler
}

// Starts returns the specs of every Start call, in order.
func (e *FakeExecutor) Starts() []Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Spec(nil), e.starts...)
}

// Processes returns every fake process produced so far, in start order.
func (e *FakeExecutor) Processes() []*FakeProcess {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*FakeProcess(nil), e.procs...)
}

// Start implements Executor.Start for FakeExecutor.
func (e *FakeExecutor) Start(spec Spec) (Process, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	e.mu.Lock()
	e.starts = append(e.starts, spec)
	handler, ok := e.commands[spec.Command[0]]
	e.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("executable %q not found", spec.Command[0])
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc := &FakeProcess{
		cancel:  cancel,
		signals: make(chan os.Signal, 16),
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	e.procs = append(e.procs, proc)
	e.mu.Unlock()

	go func() {
		res := handler(ctx, proc.signals, spec.Command)
		proc.mu.Lock()
		proc.result = res
		proc.mu.Unlock()
		close(proc.done)
	}()

	return proc, nil
}

// FakeProcess implements Process for FakeExecutor. It records every
// delivered signal for assertions.
type FakeProcess struct {
	cancel  context.CancelFunc
	signals chan os.Signal
	done    chan struct{}

	mu       sync.Mutex
	result   Result
	received []os.Signal
}

var _ Process = (*FakeProcess)(nil)

func (p *FakeProcess) PID() int {
	return 0
}

func (p *FakeProcess) PTY() *os.File {
	return nil
}

func (p *FakeProcess) Wait() Result {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *FakeProcess) Signal(sig os.Signal) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	p.mu.Lock()
	p.received = append(p.received, sig)
	p.mu.Unlock()

	if sig == syscall.SIGKILL {
		p.cancel()
		return nil
	}
	select {
	case p.signals <- sig:
	default:
	}
	return nil
}

// Received returns every signal delivered to the process, in order.
func (p *FakeProcess) Received() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.received...)
}
