package executor

import (
	"errors"
	"os"
	osexec "os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExecExecutor is the default Executor backed by os/exec.
type ExecExecutor struct{}

var _ Executor = (*ExecExecutor)(nil)

// Default returns the default ExecExecutor.
func Default() Executor {
	return &ExecExecutor{}
}

// Start implements Executor.Start using os/exec.
func (e *ExecExecutor) Start(spec Spec) (Process, error) {
	if len(spec.Command) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := osexec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	if spec.Stdio.Mode == StdioPTY {
		return startPTY(cmd)
	}

	switch spec.Stdio.Mode {
	case StdioPipe:
		cmd.Stdin = spec.Stdio.In
		cmd.Stdout = spec.Stdio.Out
		cmd.Stderr = spec.Stdio.Err
	default:
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	// Give the child its own process group so signals can reach the
	// whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

// execProcess wraps exec.Cmd to implement Process.
type execProcess struct {
	cmd  *osexec.Cmd
	ptmx *os.File

	mu     sync.Mutex
	result Result
	done   chan struct{}
}

func (p *execProcess) wait() {
	err := p.cmd.Wait()

	var res Result
	switch {
	case err == nil:
		res = Exited(0)
	default:
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				res = Signaled(unix.SignalName(ws.Signal()))
			} else {
				res = Exited(exitErr.ExitCode())
			}
		} else {
			// Wait itself failed; treat as a generic failure.
			res = Exited(1)
		}
	}

	p.mu.Lock()
	p.result = res
	p.mu.Unlock()

	if p.ptmx != nil {
		p.ptmx.Close()
	}
	close(p.done)
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) PTY() *os.File {
	return p.ptmx
}

func (p *execProcess) Wait() Result {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Signal delivers sig to the child's process group first, then to the
// process itself. Delivery to an exited child is a no-op.
func (p *execProcess) Signal(sig os.Signal) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	proc := p.cmd.Process
	if proc == nil {
		return nil
	}
	if s, ok := sig.(syscall.Signal); ok && proc.Pid > 0 {
		_ = unix.Kill(-proc.Pid, s)
	}
	if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
