// Package remote abstracts command execution on the machine a test node runs
// on. The orchestrator drives containers and VMs of mixed operating systems,
// so a Connection is bound to one target and knows what it is talking to.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout marks an operation abandoned because the caller's deadline
// expired before the command finished.
var ErrTimeout = errors.New("timed out waiting for command")

// TargetOS identifies the operating system family a connection executes on.
type TargetOS int

const (
	Linux TargetOS = iota
	Darwin
	Windows
)

func (t TargetOS) String() string {
	switch t {
	case Linux:
		return "linux"
	case Darwin:
		return "darwin"
	case Windows:
		return "windows"
	}
	return fmt.Sprintf("unknown os (%d)", int(t))
}

// Output is the collected result of a finished command.
type Output struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// ExecError reports a command that ran and exited non zero. Callers match on
// the captured output to recognize idempotent conditions like an already
// existing route.
type ExecError struct {
	Cmd        []string
	ExitStatus int
	Stdout     string
	Stderr     string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("command %q exited with status %d: %s",
		strings.Join(e.Cmd, " "), e.ExitStatus, strings.TrimSpace(e.Stderr+e.Stdout))
}

// OutputContains reports whether the substring occurs in either output
// stream.
func (e *ExecError) OutputContains(sub string) bool {
	return strings.Contains(e.Stdout, sub) || strings.Contains(e.Stderr, sub)
}

// Process is a handle on a command started with Run.
type Process interface {
	// Wait blocks until the process exits or ctx is done. A non zero exit
	// is reported as *ExecError, a deadline as ErrTimeout.
	Wait(ctx context.Context) (Output, error)
	WriteStdin(p []byte) error
	Done() bool
}

// Connection executes commands on one target machine. Implementations for
// containers and VMs live outside this repository, LocalConnection covers the
// local host.
type Connection interface {
	// Execute runs argv to completion. A non zero exit is reported as
	// *ExecError carrying the captured output.
	Execute(ctx context.Context, argv []string) (Output, error)

	// Run starts argv and streams output lines to the optional callbacks.
	Run(ctx context.Context, argv []string, onStdout, onStderr func(line string)) (Process, error)

	TargetOS() TargetOS
}
