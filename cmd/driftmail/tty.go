package main

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/driftmail/driftmail/internal/executor"
)

// restoreTerminal undoes raw mode on the launcher's terminal. Set on the
// first PTY attach, called after the supervisor finishes.
var restoreTerminal func()

// stdinFan forwards one input stream to whichever pty master is current.
// Stdin is read in exactly one goroutine; a respawned child takes over
// via redirect instead of racing the previous child's reader for bytes.
type stdinFan struct {
	mu  sync.Mutex
	dst io.Writer
}

func (f *stdinFan) redirect(w io.Writer) {
	f.mu.Lock()
	f.dst = w
	f.mu.Unlock()
}

func (f *stdinFan) run(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			f.mu.Lock()
			dst := f.dst
			f.mu.Unlock()
			if dst != nil {
				// A write to an exited child's closed master just
				// fails; the bytes are lost either way.
				_, _ = dst.Write(buf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

var (
	stdinCopy stdinFan
	stdinOnce sync.Once
)

// attachPTY mirrors the local terminal into the child's pseudo-terminal:
// raw mode locally, size propagation on SIGWINCH, and byte copying in
// both directions. The output copier ends when the child's master side
// closes on exit; stdin is routed through the shared stdinFan so each
// respawn takes it over in place.
func attachPTY(p executor.Process) {
	ptmx := p.PTY()
	if ptmx == nil {
		return
	}

	_ = pty.InheritSize(os.Stdin, ptmx)
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()

	fd := int(os.Stdin.Fd())
	if restoreTerminal == nil && term.IsTerminal(fd) {
		if oldState, err := term.MakeRaw(fd); err == nil {
			restoreTerminal = func() { _ = term.Restore(fd, oldState) }
		}
	}

	stdinCopy.redirect(ptmx)
	stdinOnce.Do(func() {
		go stdinCopy.run(os.Stdin)
	})
	go func() {
		_, _ = io.Copy(os.Stdout, ptmx)
		signal.Stop(winch)
	}()
}
