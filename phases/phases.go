package phases

import (
	"context"
	"fmt"
	"strings"
)

// Phase represents a single unit of work in the provisioning pipeline.
type Phase interface {
	Metadata() PhaseMetadata
	// ShouldRun lets a phase skip itself at run time. Skipping is not a failure.
	ShouldRun(phaseCtx *Context) bool
	Run(ctx context.Context, phaseCtx *Context) error
}

// PhaseMetadata contains descriptive information used by presentation layers (e.g., TUI).
type PhaseMetadata struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Severity    Severity `json:"severity"`
	Tags        []string `json:"tags,omitempty"`
}

// Severity declares how a phase failure affects the rest of the run.
type Severity int

const (
	// Recoverable failures may be skipped past under ContinueOnError.
	Recoverable Severity = iota
	// Fatal failures always abort the run and trigger rollback.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "recoverable":
		*s = Recoverable
	case "fatal":
		*s = Fatal
	default:
		return ValidationError{Reason: fmt.Sprintf("unknown severity %q", text)}
	}
	return nil
}
