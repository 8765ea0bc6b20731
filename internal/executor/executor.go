// Package executor provides an abstraction for starting child processes.
package executor

import (
	"io"
	"os"
)

// StdioMode controls how a child's standard streams are wired.
type StdioMode string

const (
	// StdioInherit passes the launcher's stdin/stdout/stderr to the
	// child unmodified. This is the default.
	StdioInherit StdioMode = "inherit"
	// StdioPipe connects the child's streams to the readers and writers
	// in StdioConfig.
	StdioPipe StdioMode = "pipe"
	// StdioPTY runs the child as the session leader of a fresh
	// pseudo-terminal.
	StdioPTY StdioMode = "pty"
)

// StdioConfig selects a stdio mode. In, Out and Err are only consulted in
// StdioPipe mode.
type StdioConfig struct {
	Mode StdioMode
	In   io.Reader
	Out  io.Writer
	Err  io.Writer
}

// Spec describes one child process to start.
type Spec struct {
	Command []string
	Env     []string // nil means inherit the launcher's environment
	Dir     string
	Stdio   StdioConfig
}

// Result reports how a child ended. Exactly one field is meaningful:
// ExitCode for a normal exit, Signal when the child died to a signal.
type Result struct {
	ExitCode *int
	Signal   string
}

// Exited returns the Result for a normal exit with the given code.
func Exited(code int) Result {
	return Result{ExitCode: &code}
}

// Signaled returns the Result for a death by the named signal.
func Signaled(name string) Result {
	return Result{Signal: name}
}

// Code returns the exit code a supervisor should mirror: the child's own
// code when it exited, 0 when it was killed by a signal.
func (r Result) Code() int {
	if r.ExitCode != nil {
		return *r.ExitCode
	}
	return 0
}

// Process is a started child.
type Process interface {
	// PID returns the OS process id, or 0 for fakes.
	PID() int
	// Signal delivers sig to the process. Signalling an already-exited
	// process is a no-op, not an error.
	Signal(sig os.Signal) error
	// Wait blocks until the process exits.
	Wait() Result
	// PTY returns the master side of the child's pseudo-terminal. It is
	// nil unless the process was started in StdioPTY mode.
	PTY() *os.File
}

// Executor starts processes.
type Executor interface {
	Start(spec Spec) (Process, error)
}
