package remote

import (
	"context"
	"strings"
	"sync"
)

// FakeConnection is a scriptable Connection for tests. Commands succeed with
// empty output unless a response was scripted for their exact argv. Every
// executed command is recorded for assertions.
type FakeConnection struct {
	os TargetOS

	mu        sync.Mutex
	history   [][]string
	responses map[string]fakeResponse
}

type fakeResponse struct {
	out Output
	err error
}

func NewFakeConnection(os TargetOS) *FakeConnection {
	return &FakeConnection{
		os:        os,
		responses: map[string]fakeResponse{},
	}
}

func key(argv []string) string {
	return strings.Join(argv, " ")
}

// Respond scripts the result for an exact argv.
func (c *FakeConnection) Respond(argv []string, out Output, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[key(argv)] = fakeResponse{out: out, err: err}
}

// FailWith scripts argv to exit non zero with the given output, wrapped in
// the same *ExecError a real connection would produce.
func (c *FakeConnection) FailWith(argv []string, stdout, stderr string, status int) {
	c.Respond(argv, Output{Stdout: stdout, Stderr: stderr, ExitStatus: status}, &ExecError{
		Cmd:        argv,
		ExitStatus: status,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}

func (c *FakeConnection) TargetOS() TargetOS {
	return c.os
}

func (c *FakeConnection) Execute(ctx context.Context, argv []string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, argv)
	if r, ok := c.responses[key(argv)]; ok {
		return r.out, r.err
	}
	return Output{}, nil
}

func (c *FakeConnection) Run(ctx context.Context, argv []string, onStdout, onStderr func(string)) (Process, error) {
	out, err := c.Execute(ctx, argv)
	if err != nil {
		return nil, err
	}
	if onStdout != nil && out.Stdout != "" {
		for _, line := range strings.Split(strings.TrimRight(out.Stdout, "\n"), "\n") {
			onStdout(line)
		}
	}
	return &fakeProcess{out: out}, nil
}

// Commands returns the executed argv history.
func (c *FakeConnection) Commands() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]string, len(c.history))
	copy(out, c.history)
	return out
}

// CommandStrings returns the history joined for easy assertions.
func (c *FakeConnection) CommandStrings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.history))
	for i, argv := range c.history {
		out[i] = key(argv)
	}
	return out
}

// Reset clears the recorded history, scripted responses stay.
func (c *FakeConnection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

type fakeProcess struct {
	out Output
}

func (p *fakeProcess) Wait(ctx context.Context) (Output, error) {
	if err := ctx.Err(); err != nil {
		return p.out, err
	}
	return p.out, nil
}

func (p *fakeProcess) WriteStdin([]byte) error { return nil }
func (p *fakeProcess) Done() bool              { return true }
