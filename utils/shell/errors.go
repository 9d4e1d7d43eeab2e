package shell

import (
	"fmt"
	"strings"
)

// NilClientError indicates an SSH runner was used without a client.
type NilClientError struct{}

func (NilClientError) Error() string {
	return "ssh client is required"
}

// CommandError wraps a command that could not be started or exited non-zero.
type CommandError struct {
	Result Result
	Err    error
}

func (e *CommandError) Error() string {
	stderr := strings.TrimSpace(e.Result.Stderr)
	if stderr == "" {
		return fmt.Sprintf("command %q failed: %v", e.Result.Command, e.Err)
	}
	return fmt.Sprintf("command %q failed: %v (%s)", e.Result.Command, e.Err, stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
