package interaction

import (
	"context"
	"fmt"
	"strings"
)

// Prompter asks the operator for a value. Confirm inputs answer with a bool;
// every other kind answers with a string.
type Prompter interface {
	Prompt(ctx context.Context, in Input) (any, error)
}

// PrompterFunc adapts a function into a Prompter.
type PrompterFunc func(ctx context.Context, in Input) (any, error)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context, in Input) (any, error) {
	return f(ctx, in)
}

// Service resolves decision points.
type Service struct {
	overrides   map[string]any
	interactive bool
	prompter    Prompter
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithOverrides sets config-supplied answers keyed by Input.ID.
func WithOverrides(overrides map[string]any) ServiceOption {
	return func(s *Service) {
		for k, v := range overrides {
			s.overrides[k] = v
		}
	}
}

// WithInteractive toggles live prompting.
func WithInteractive(interactive bool) ServiceOption {
	return func(s *Service) {
		s.interactive = interactive
	}
}

// WithPrompter sets the live prompter.
func WithPrompter(p Prompter) ServiceOption {
	return func(s *Service) {
		s.prompter = p
	}
}

// NewService constructs a Service. Without options it is non-interactive
// and has no overrides.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{overrides: make(map[string]any)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Interactive reports whether a prompter will be consulted.
func (s *Service) Interactive() bool {
	return s != nil && s.interactive && s.prompter != nil
}

// Override returns the configured override for id.
func (s *Service) Override(id string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.overrides[id]
	return v, ok
}

// Confirm resolves a yes/no decision. A missing default means no.
func (s *Service) Confirm(ctx context.Context, in Input) (bool, error) {
	if v, ok := s.Override(in.ID); ok {
		b, ok := parseBool(v)
		if !ok {
			return false, OverrideError{ID: in.ID, Value: v, Reason: "expected a boolean"}
		}
		return b, nil
	}

	if !s.Interactive() {
		b, _ := parseBool(in.Default)
		return b, nil
	}

	in.Kind = KindConfirm
	answer, err := s.prompter.Prompt(ctx, in)
	if err != nil {
		return false, PromptError{ID: in.ID, Err: err}
	}
	b, ok := parseBool(answer)
	if !ok {
		return false, AnswerError{ID: in.ID, Reason: "expected a boolean"}
	}
	return b, nil
}

// Choose resolves a single choice among in.Options. Without a default the
// first option is chosen when unattended.
func (s *Service) Choose(ctx context.Context, in Input) (string, error) {
	if v, ok := s.Override(in.ID); ok {
		str, ok := v.(string)
		if !ok || !in.hasOption(str) {
			return "", OverrideError{ID: in.ID, Value: v, Reason: "not one of the available options"}
		}
		return str, nil
	}

	if !s.Interactive() {
		if def, ok := in.Default.(string); ok && in.hasOption(def) {
			return def, nil
		}
		if len(in.Options) == 0 {
			return "", MissingInputError{ID: in.ID}
		}
		return in.Options[0].Value, nil
	}

	in.Kind = KindSelect
	answer, err := s.prompter.Prompt(ctx, in)
	if err != nil {
		return "", PromptError{ID: in.ID, Err: err}
	}
	str, ok := answer.(string)
	if !ok || !in.hasOption(str) {
		return "", AnswerError{ID: in.ID, Reason: "not one of the available options"}
	}
	return str, nil
}

// Text resolves a free-text or secret value.
func (s *Service) Text(ctx context.Context, in Input) (string, error) {
	if v, ok := s.Override(in.ID); ok {
		str, ok := scalarString(v)
		if !ok {
			return "", OverrideError{ID: in.ID, Value: v, Reason: "expected a scalar value"}
		}
		if in.Required && str == "" {
			return "", OverrideError{ID: in.ID, Value: v, Reason: "value must not be empty"}
		}
		return str, nil
	}

	if !s.Interactive() {
		if def, ok := scalarString(in.Default); ok && def != "" {
			return def, nil
		}
		if in.Required {
			return "", MissingInputError{ID: in.ID}
		}
		return "", nil
	}

	if in.Kind != KindSecret {
		in.Kind = KindText
	}
	answer, err := s.prompter.Prompt(ctx, in)
	if err != nil {
		return "", PromptError{ID: in.ID, Err: err}
	}
	str, ok := answer.(string)
	if !ok {
		return "", AnswerError{ID: in.ID, Reason: "expected text"}
	}
	if in.Required && str == "" {
		return "", AnswerError{ID: in.ID, Reason: "value must not be empty"}
	}
	return str, nil
}

func parseBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "y", "yes", "true", "1", "on":
			return true, true
		case "n", "no", "false", "0", "off":
			return false, true
		}
	case int:
		return val != 0, true
	}
	return false, false
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool, int, int64, float64:
		return fmt.Sprint(val), true
	}
	return "", false
}
