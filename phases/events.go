package phases

import (
	"context"
	"fmt"
	"time"

	"github.com/BrianJOC/distro-bootstrap/interaction"
)

// EventKind identifies a runner lifecycle event.
type EventKind int

const (
	EventTotalCount EventKind = iota
	EventPhaseStarted
	EventPhaseCompleted
	EventPhaseFailed
	EventPhaseSkipped
	EventWarning
)

func (k EventKind) String() string {
	switch k {
	case EventTotalCount:
		return "total"
	case EventPhaseStarted:
		return "started"
	case EventPhaseCompleted:
		return "completed"
	case EventPhaseFailed:
		return "failed"
	case EventPhaseSkipped:
		return "skipped"
	case EventWarning:
		return "warning"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	for kind := EventTotalCount; kind <= EventWarning; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return ValidationError{Reason: fmt.Sprintf("unknown event kind %q", text)}
}

// Event is one entry of the runner's event stream. Index is zero-based.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Index    int             `json:"index"`
	Total    int             `json:"total"`
	Phase    PhaseMetadata   `json:"phase"`
	Message  string          `json:"message,omitempty"`
	Err      *InstallerError `json:"error,omitempty"`
	Duration time.Duration   `json:"duration,omitempty"`
}

// Observer receives runner events synchronously and answers blocking
// confirmations.
type Observer interface {
	OnEvent(ev Event)
	Confirm(prompt string) bool
}

// ObserverFunc adapts a closure into an Observer that always confirms.
type ObserverFunc func(ev Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(ev Event) {
	f(ev)
}

// Confirm implements Observer.
func (f ObserverFunc) Confirm(string) bool {
	return true
}

// NoopObserver ignores events and always proceeds.
type NoopObserver struct{}

// OnEvent implements Observer.
func (NoopObserver) OnEvent(Event) {}

// Confirm implements Observer.
func (NoopObserver) Confirm(string) bool {
	return true
}

// ObserverPrompter routes confirm inputs to obs.Confirm and everything else to
// next. A nil next rejects non-confirm inputs.
func ObserverPrompter(obs Observer, next interaction.Prompter) interaction.Prompter {
	return interaction.PrompterFunc(func(ctx context.Context, in interaction.Input) (any, error) {
		if in.Kind == interaction.KindConfirm && obs != nil {
			label := in.Label
			if in.Description != "" {
				label = fmt.Sprintf("%s (%s)", label, in.Description)
			}
			return obs.Confirm(label), nil
		}
		if next == nil {
			return nil, fmt.Errorf("no prompter available for %s input %q", in.Kind, in.ID)
		}
		return next.Prompt(ctx, in)
	})
}
