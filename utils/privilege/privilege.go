package privilege

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

// Mode describes how privileged commands are executed.
type Mode string

const (
	ModeUnknown        Mode = ""
	ModeRoot           Mode = "root"
	ModeSudoNoPassword Mode = "sudo-nopasswd"
	ModeSudoPassword   Mode = "sudo"
)

const sudoPasswordPromptFlag = "-S -p ''"

// Credentials holds the sudo password for a single run.
type Credentials struct {
	mu       sync.RWMutex
	password string
}

// NewCredentials returns an empty holder.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// Set stores the password.
func (c *Credentials) Set(password string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.password = password
}

// Password returns the stored password, or "" when none is held.
func (c *Credentials) Password() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.password
}

// Has reports whether a password is held.
func (c *Credentials) Has() bool {
	return c.Password() != ""
}

// Clear forgets the password.
func (c *Credentials) Clear() {
	c.Set("")
}

// Elevator runs commands as root on the target behind a shell.Runner.
type Elevator struct {
	runner shell.Runner
	creds  *Credentials

	mu   sync.Mutex
	mode Mode
}

// NewElevator wraps runner. creds may be nil when no password is needed.
func NewElevator(runner shell.Runner, creds *Credentials) *Elevator {
	if creds == nil {
		creds = NewCredentials()
	}
	return &Elevator{runner: runner, creds: creds}
}

// Runner exposes the unprivileged runner.
func (e *Elevator) Runner() shell.Runner {
	return e.runner
}

// Credentials exposes the password holder.
func (e *Elevator) Credentials() *Credentials {
	return e.creds
}

// Mode returns the detected mode, or ModeUnknown before Detect.
func (e *Elevator) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Detect determines how to elevate: already root, passwordless sudo, or sudo
// with a password. It does not validate the password.
func (e *Elevator) Detect(ctx context.Context) (Mode, error) {
	if e == nil || e.runner == nil {
		return ModeUnknown, RunnerError{}
	}
	if mode := e.Mode(); mode != ModeUnknown {
		return mode, nil
	}

	res, err := e.runner.Run(ctx, "id -u", "")
	if err == nil && strings.TrimSpace(res.Stdout) == "0" {
		return e.setMode(ModeRoot), nil
	}

	res, err = e.runner.Run(ctx, "sudo -n true", "")
	if err == nil {
		return e.setMode(ModeSudoNoPassword), nil
	}
	if classified := classifySudoError(res.Stderr, err); !isAuthError(classified) && !needsPassword(res.Stderr) {
		return ModeUnknown, classified
	}
	return e.setMode(ModeSudoPassword), nil
}

// NeedsPassword reports whether elevation requires a password that is not
// yet held.
func (e *Elevator) NeedsPassword(ctx context.Context) (bool, error) {
	mode, err := e.Detect(ctx)
	if err != nil {
		return false, err
	}
	return mode == ModeSudoPassword && !e.creds.Has(), nil
}

// Validate confirms privileged commands will succeed with the current
// credentials.
func (e *Elevator) Validate(ctx context.Context) error {
	mode, err := e.Detect(ctx)
	if err != nil {
		return err
	}
	switch mode {
	case ModeRoot, ModeSudoNoPassword:
		return nil
	}

	password := e.creds.Password()
	if password == "" {
		return PasswordError{Reason: "sudo password required"}
	}
	res, err := e.runner.Run(ctx, "sudo "+sudoPasswordPromptFlag+" -k true", password+"\n")
	if err != nil {
		return classifySudoError(res.Stderr, err)
	}
	return nil
}

// Run executes cmd with root privileges.
func (e *Elevator) Run(ctx context.Context, cmd string) (shell.Result, error) {
	if e == nil || e.runner == nil {
		return shell.Result{Command: cmd}, RunnerError{}
	}
	mode, err := e.Detect(ctx)
	if err != nil {
		return shell.Result{Command: cmd}, err
	}

	wrapped, stdin, err := e.wrap(mode, "bash -c "+shell.Quote(cmd))
	if err != nil {
		return shell.Result{Command: cmd}, err
	}
	res, err := e.runner.Run(ctx, wrapped, stdin)
	res.Command = cmd
	if err != nil {
		var cmdErr *shell.CommandError
		if errors.As(err, &cmdErr) {
			cmdErr.Result.Command = cmd
		}
		if mode == ModeSudoPassword && isAuthFailure(res.Stderr) {
			return res, SudoAuthenticationError{Err: err}
		}
	}
	return res, err
}

// Refresh extends the sudo timestamp without running a command.
func (e *Elevator) Refresh(ctx context.Context) error {
	mode, err := e.Detect(ctx)
	if err != nil {
		return err
	}
	if mode == ModeRoot {
		return nil
	}
	cmd, stdin, err := e.wrap(mode, "-v")
	if err != nil {
		return err
	}
	res, err := e.runner.Run(ctx, cmd, stdin)
	if err != nil {
		return classifySudoError(res.Stderr, err)
	}
	return nil
}

func (e *Elevator) wrap(mode Mode, args string) (string, string, error) {
	switch mode {
	case ModeRoot:
		if args == "-v" {
			return "true", "", nil
		}
		return args, "", nil
	case ModeSudoNoPassword:
		return "sudo -n " + args, "", nil
	case ModeSudoPassword:
		password := e.creds.Password()
		if password == "" {
			return "", "", PasswordError{Reason: "sudo password required"}
		}
		return fmt.Sprintf("sudo %s %s", sudoPasswordPromptFlag, args), password + "\n", nil
	default:
		return "", "", fmt.Errorf("unsupported elevation mode %q", mode)
	}
}

func (e *Elevator) setMode(mode Mode) Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
	return mode
}

func classifySudoError(stderr string, err error) error {
	if err == nil {
		return nil
	}

	if strings.Contains(stderr, "sudo: command not found") || strings.Contains(stderr, "sudo: not found") {
		return SudoNotInstalledError{Stderr: stderr}
	}
	var cmdErr *shell.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Result.ExitCode == 127 {
		return SudoNotInstalledError{Stderr: stderr}
	}

	if strings.Contains(stderr, "is not in the sudoers file") || strings.Contains(stderr, "may not run sudo") {
		return SudoPermissionError{Stderr: stderr}
	}

	if isAuthFailure(stderr) || strings.Contains(stderr, "Sorry, try again.") {
		return SudoAuthenticationError{Err: err}
	}

	return SudoUnknownError{Err: err, Stderr: stderr}
}

func needsPassword(stderr string) bool {
	return strings.Contains(stderr, "a password is required") ||
		strings.Contains(stderr, "a terminal is required")
}

func isAuthError(err error) bool {
	var authErr SudoAuthenticationError
	return errors.As(err, &authErr)
}

func isAuthFailure(stderr string) bool {
	return strings.Contains(stderr, "Authentication failure") ||
		strings.Contains(stderr, "authentication failure") ||
		strings.Contains(stderr, "incorrect password")
}
