package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Result captures the outcome of a single command invocation.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes shell command lines on a target system.
type Runner interface {
	Run(ctx context.Context, cmd string, stdin string) (Result, error)
}

// RunnerFunc adapts a function into a Runner.
type RunnerFunc func(ctx context.Context, cmd string, stdin string) (Result, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, cmd string, stdin string) (Result, error) {
	return f(ctx, cmd, stdin)
}

// Local runs commands on the current host through bash.
type Local struct {
	// Shell overrides the interpreter (default "bash").
	Shell string
}

// NewLocal returns a Runner for the local host.
func NewLocal() *Local {
	return &Local{Shell: "bash"}
}

// Run implements Runner.
func (l *Local) Run(ctx context.Context, cmd string, stdin string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	interpreter := l.Shell
	if interpreter == "" {
		interpreter = "bash"
	}

	res := Result{Command: cmd}
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, interpreter, "-c", cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if stdin != "" {
		c.Stdin = strings.NewReader(stdin)
	}

	err := c.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
	}
	return res, &CommandError{Result: res, Err: err}
}

// SSH runs commands on a remote host over an established client.
type SSH struct {
	client *ssh.Client
}

// NewSSH wraps an SSH client as a Runner.
func NewSSH(client *ssh.Client) *SSH {
	return &SSH{client: client}
}

// Client exposes the underlying SSH client.
func (s *SSH) Client() *ssh.Client {
	return s.client
}

// Run implements Runner. Context cancellation closes the session.
func (s *SSH) Run(ctx context.Context, cmd string, stdin string) (Result, error) {
	res := Result{Command: cmd}
	if s == nil || s.client == nil {
		return res, NilClientError{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := s.client.NewSession()
	if err != nil {
		res.ExitCode = -1
		return res, &CommandError{Result: res, Err: err}
	}
	defer func() {
		_ = session.Close()
	}()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != "" {
		session.Stdin = strings.NewReader(stdin)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		_ = session.Close()
		res.ExitCode = -1
		return res, &CommandError{Result: res, Err: ctx.Err()}
	case err = <-done:
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if err == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
	} else {
		res.ExitCode = -1
	}
	return res, &CommandError{Result: res, Err: err}
}

// Quote wraps value in single quotes for safe interpolation into a shell line.
func Quote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// QuoteAll quotes each value and joins them with spaces.
func QuoteAll(values ...string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, Quote(v))
	}
	return strings.Join(quoted, " ")
}
