package interaction

import "fmt"

// MissingInputError reports a required input with no override, no default
// and no way to prompt.
type MissingInputError struct {
	ID string
}

func (e MissingInputError) Error() string {
	return fmt.Sprintf("input %q is required in non-interactive mode", e.ID)
}

// OverrideError reports a configured override that does not fit the input.
type OverrideError struct {
	ID     string
	Value  any
	Reason string
}

func (e OverrideError) Error() string {
	return fmt.Sprintf("override for %q (%v) is invalid: %s", e.ID, e.Value, e.Reason)
}

// AnswerError reports a prompter answer of the wrong shape.
type AnswerError struct {
	ID     string
	Reason string
}

func (e AnswerError) Error() string {
	return fmt.Sprintf("answer for %q is invalid: %s", e.ID, e.Reason)
}

// PromptError wraps failures from the prompter itself.
type PromptError struct {
	ID  string
	Err error
}

func (e PromptError) Error() string {
	return fmt.Sprintf("prompt %q failed: %v", e.ID, e.Err)
}

func (e PromptError) Unwrap() error {
	return e.Err
}
