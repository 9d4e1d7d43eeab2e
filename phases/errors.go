package phases

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

// DuplicatePhaseError occurs when a phase with an existing ID is registered.
type DuplicatePhaseError struct {
	ID string
}

func (e DuplicatePhaseError) Error() string {
	return fmt.Sprintf("phase with id %q already registered", e.ID)
}

// ValidationError represents invalid runner/phase configuration.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("phase validation failed: %s", e.Reason)
}

// InterruptedError reports a run stopped between phases by a signal or a
// cancelled context.
type InterruptedError struct {
	Next string
	Err  error
}

func (e InterruptedError) Error() string {
	return fmt.Sprintf("run interrupted before phase %s: %v", e.Next, e.Err)
}

func (e InterruptedError) Unwrap() error {
	return e.Err
}

// ErrInterrupted is the cause recorded when the interrupt probe fires.
var ErrInterrupted = errors.New("interrupt signal received")

// AdviceError attaches operator guidance to an error.
type AdviceError struct {
	Err    error
	Advice string
}

func (e AdviceError) Error() string {
	return e.Err.Error()
}

func (e AdviceError) Unwrap() error {
	return e.Err
}

// WithAdvice attaches advice shown next to the failure. A nil err stays nil.
func WithAdvice(err error, advice string) error {
	if err == nil {
		return nil
	}
	return AdviceError{Err: err, Advice: advice}
}

// CommandOutput is the captured invocation behind a failure.
type CommandOutput struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// InstallerError is the runner's view of a phase failure. It is built once
// and not modified afterwards.
type InstallerError struct {
	Phase       string
	Description string
	Severity    Severity
	// Message is the failure chain rendered on one line; its tail is the
	// root cause.
	Message  string
	Detail   string
	Advice   string
	Command  *CommandOutput
	Snapshot RunOptions
	Err      error
}

// NewInstallerError captures err for the phase described by meta.
func NewInstallerError(meta PhaseMetadata, err error, opts RunOptions) *InstallerError {
	if err == nil {
		err = errors.New("unknown failure")
	}
	ie := &InstallerError{
		Phase:       meta.ID,
		Description: meta.Title,
		Severity:    meta.Severity,
		Message:     err.Error(),
		Snapshot:    opts.Clone(),
		Err:         err,
	}
	if ie.Description == "" {
		ie.Description = meta.Description
	}

	var advice AdviceError
	if errors.As(err, &advice) {
		ie.Advice = advice.Advice
	}

	var cmdErr *shell.CommandError
	if errors.As(err, &cmdErr) {
		ie.Command = &CommandOutput{
			Command:  cmdErr.Result.Command,
			ExitCode: cmdErr.Result.ExitCode,
			Stdout:   cmdErr.Result.Stdout,
			Stderr:   cmdErr.Result.Stderr,
		}
	}

	ie.Detail = renderDetail(ie)
	return ie
}

func renderDetail(ie *InstallerError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "phase %s (%s) failed [%s]\n", ie.Phase, ie.Description, ie.Severity)
	fmt.Fprintf(&b, "error: %s\n", ie.Message)
	if ie.Advice != "" {
		fmt.Fprintf(&b, "advice: %s\n", ie.Advice)
	}
	if ie.Command != nil {
		fmt.Fprintf(&b, "command: %s\n", ie.Command.Command)
		fmt.Fprintf(&b, "exit status: %d\n", ie.Command.ExitCode)
		if out := strings.TrimSpace(ie.Command.Stdout); out != "" {
			fmt.Fprintf(&b, "stdout:\n%s\n", out)
		}
		if out := strings.TrimSpace(ie.Command.Stderr); out != "" {
			fmt.Fprintf(&b, "stderr:\n%s\n", out)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *InstallerError) Error() string {
	return fmt.Sprintf("phase %s failed: %s", e.Phase, e.Message)
}

func (e *InstallerError) Unwrap() error {
	return e.Err
}

// MarshalJSON flattens the wrapped error to its message.
func (e *InstallerError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Phase       string         `json:"phase"`
		Description string         `json:"description"`
		Severity    Severity       `json:"severity"`
		Message     string         `json:"message"`
		Detail      string         `json:"detail"`
		Advice      string         `json:"advice,omitempty"`
		Command     *CommandOutput `json:"command,omitempty"`
		Snapshot    RunOptions     `json:"snapshot"`
	}{
		Phase:       e.Phase,
		Description: e.Description,
		Severity:    e.Severity,
		Message:     e.Message,
		Detail:      e.Detail,
		Advice:      e.Advice,
		Command:     e.Command,
		Snapshot:    e.Snapshot,
	})
}

// AbortError is returned when the runner stops early. Result holds the partial
// run and Rollback any rollback failure.
type AbortError struct {
	Cause    *InstallerError
	Result   *RunResult
	Rollback error
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("installation aborted: %v", e.Cause)
	if e.Rollback != nil {
		msg += fmt.Sprintf("; %v", e.Rollback)
	}
	return msg
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}
