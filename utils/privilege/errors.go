package privilege

import (
	"fmt"
	"strings"
)

// RunnerError indicates the elevator was built without a shell runner.
type RunnerError struct{}

func (RunnerError) Error() string {
	return "shell runner is required"
}

// PasswordError reports a missing or unusable password.
type PasswordError struct {
	Reason string
}

func (e PasswordError) Error() string {
	return fmt.Sprintf("password error: %s", e.Reason)
}

// SudoPermissionError indicates the current user is not allowed to use sudo.
type SudoPermissionError struct {
	Stderr string
}

func (e SudoPermissionError) Error() string {
	return fmt.Sprintf("sudo permission denied: %s", strings.TrimSpace(e.Stderr))
}

// SudoNotInstalledError indicates the sudo binary is missing on the target.
type SudoNotInstalledError struct {
	Stderr string
}

func (e SudoNotInstalledError) Error() string {
	return fmt.Sprintf("sudo not installed: %s", strings.TrimSpace(e.Stderr))
}

// SudoAuthenticationError wraps rejected sudo passwords.
type SudoAuthenticationError struct {
	Err error
}

func (e SudoAuthenticationError) Error() string {
	return fmt.Sprintf("sudo authentication failed: %v", e.Err)
}

func (e SudoAuthenticationError) Unwrap() error {
	return e.Err
}

// SudoUnknownError surfaces unclassified sudo failures.
type SudoUnknownError struct {
	Err    error
	Stderr string
}

func (e SudoUnknownError) Error() string {
	return fmt.Sprintf("sudo failed: %v (%s)", e.Err, strings.TrimSpace(e.Stderr))
}

func (e SudoUnknownError) Unwrap() error {
	return e.Err
}
