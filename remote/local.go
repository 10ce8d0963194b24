package remote

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LocalConnection executes commands on the host the orchestrator itself runs
// on, used when a test node is the local machine rather than a container.
type LocalConnection struct {
	os TargetOS
	l  *logrus.Logger
}

func NewLocalConnection(l *logrus.Logger) *LocalConnection {
	os := Linux
	switch runtime.GOOS {
	case "darwin":
		os = Darwin
	case "windows":
		os = Windows
	}
	return &LocalConnection{os: os, l: l}
}

func (c *LocalConnection) TargetOS() TargetOS {
	return c.os
}

func (c *LocalConnection) Execute(ctx context.Context, argv []string) (Output, error) {
	if len(argv) == 0 {
		return Output{}, fmt.Errorf("empty command")
	}

	c.l.WithField("cmd", argv).Trace("Executing command")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ExitStatus: exitCode(cmd),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("%q: %w", argv[0], ErrTimeout)
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return out, &ExecError{
				Cmd:        argv,
				ExitStatus: out.ExitStatus,
				Stdout:     out.Stdout,
				Stderr:     out.Stderr,
			}
		}
		return out, fmt.Errorf("starting %q: %w", argv[0], err)
	}

	return out, nil
}

func (c *LocalConnection) Run(ctx context.Context, argv []string, onStdout, onStderr func(string)) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	c.l.WithField("cmd", argv).Trace("Starting command")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	p := &localProcess{
		argv:  argv,
		cmd:   cmd,
		stdin: stdin,
		exit:  make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", argv[0], err)
	}

	p.readers.Add(2)
	go p.stream(stdoutPipe, &p.stdout, onStdout)
	go p.stream(stderrPipe, &p.stderr, onStderr)

	go func() {
		p.readers.Wait()
		p.err = cmd.Wait()
		p.done.Store(true)
		close(p.exit)
	}()

	return p, nil
}

type localProcess struct {
	argv  []string
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu      sync.Mutex
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	readers sync.WaitGroup

	exit chan struct{}
	err  error
	done atomic.Bool
}

func (p *localProcess) stream(r io.Reader, buf *bytes.Buffer, cb func(string)) {
	defer p.readers.Done()
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		p.mu.Lock()
		buf.WriteString(line)
		buf.WriteByte('\n')
		p.mu.Unlock()
		if cb != nil {
			cb(line)
		}
	}
}

func (p *localProcess) Wait(ctx context.Context) (Output, error) {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return p.output(), fmt.Errorf("%q: %w", p.argv[0], ErrTimeout)
		}
		return p.output(), ctx.Err()
	case <-p.exit:
	}

	out := p.output()
	if p.err != nil {
		if _, ok := p.err.(*exec.ExitError); ok {
			return out, &ExecError{
				Cmd:        p.argv,
				ExitStatus: out.ExitStatus,
				Stdout:     out.Stdout,
				Stderr:     out.Stderr,
			}
		}
		return out, p.err
	}
	return out, nil
}

func (p *localProcess) output() Output {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Output{
		Stdout:     p.stdout.String(),
		Stderr:     p.stderr.String(),
		ExitStatus: exitCode(p.cmd),
	}
}

// exitCode is safe to call whether or not the process ran to completion.
func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

func (p *localProcess) WriteStdin(b []byte) error {
	_, err := p.stdin.Write(b)
	return err
}

func (p *localProcess) Done() bool {
	return p.done.Load()
}
