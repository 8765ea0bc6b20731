package executor

import (
	"os"
	osexec "os/exec"
	"syscall"

	"github.com/creack/pty"
)

// startPTY starts cmd as the session leader of a fresh pseudo-terminal.
// The slave side becomes the child's stdin/stdout/stderr and controlling
// terminal; the returned process exposes the master via PTY().
func startPTY(cmd *osexec.Cmd) (Process, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, err
	}

	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")

	if err := cmd.Start(); err != nil {
		tty.Close()
		ptmx.Close()
		return nil, err
	}

	// The master won't get EOF until every copy of the slave fd is
	// closed, so drop ours now that the child has inherited it.
	tty.Close()

	p := &execProcess{cmd: cmd, ptmx: ptmx, done: make(chan struct{})}
	go p.wait()
	return p, nil
}
