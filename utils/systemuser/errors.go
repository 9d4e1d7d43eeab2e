package systemuser

import (
	"fmt"
	"strings"
)

// RunnerError indicates a nil command runner.
type RunnerError struct{}

func (RunnerError) Error() string {
	return "systemuser: runner is required"
}

// ValidationError reports a bad username or public key.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("user validation failed: %s", e.Reason)
}

// OptionError reports an invalid option value.
type OptionError struct {
	Reason string
}

func (e OptionError) Error() string {
	return fmt.Sprintf("systemuser option: %s", e.Reason)
}

// CommandError wraps a failed provisioning step.
type CommandError struct {
	Step   string
	Err    error
	Stderr string
}

func (e CommandError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed: %v (%s)", e.Step, e.Err, stderr)
}

func (e CommandError) Unwrap() error {
	return e.Err
}
