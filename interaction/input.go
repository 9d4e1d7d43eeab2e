// Package interaction resolves every operator decision the same way in
// interactive and unattended runs: a config override wins, then the default
// when unattended, then a live prompt.
package interaction

// Kind identifies how an input should be rendered.
type Kind string

const (
	KindText    Kind = "text"
	KindSecret  Kind = "secret"
	KindSelect  Kind = "select"
	KindConfirm Kind = "confirm"
)

// Option represents a selectable value.
type Option struct {
	Value       string
	Label       string
	Description string
}

// Input describes one decision point. ID doubles as the override key.
type Input struct {
	ID          string
	Label       string
	Description string
	Kind        Kind
	Required    bool
	Secret      bool
	Options     []Option
	Default     any
}

// InputOpt customizes inputs produced by the helper constructors.
type InputOpt func(*Input)

// WithDescription sets the operator-facing description.
func WithDescription(desc string) InputOpt {
	return func(in *Input) {
		if in != nil {
			in.Description = desc
		}
	}
}

// WithDefault sets the value used when unattended.
func WithDefault(value any) InputOpt {
	return func(in *Input) {
		if in != nil {
			in.Default = value
		}
	}
}

// Required marks the input as mandatory.
func Required() InputOpt {
	return func(in *Input) {
		if in != nil {
			in.Required = true
		}
	}
}

// Optional clears the required flag for clarity at call sites.
func Optional() InputOpt {
	return func(in *Input) {
		if in != nil {
			in.Required = false
		}
	}
}

// TextInput builds a free-text input.
func TextInput(id, label string, opts ...InputOpt) Input {
	in := Input{ID: id, Label: label, Kind: KindText}
	applyInputOpts(&in, opts...)
	return in
}

// SecretInput builds a password input.
func SecretInput(id, label string, opts ...InputOpt) Input {
	in := Input{ID: id, Label: label, Kind: KindSecret, Secret: true}
	applyInputOpts(&in, opts...)
	return in
}

// SelectInput builds a single-choice input.
func SelectInput(id, label string, options []Option, opts ...InputOpt) Input {
	in := Input{
		ID:      id,
		Label:   label,
		Kind:    KindSelect,
		Options: append([]Option{}, options...),
	}
	applyInputOpts(&in, opts...)
	return in
}

// ConfirmInput builds a yes/no input.
func ConfirmInput(id, label string, opts ...InputOpt) Input {
	in := Input{ID: id, Label: label, Kind: KindConfirm}
	applyInputOpts(&in, opts...)
	return in
}

func applyInputOpts(in *Input, opts ...InputOpt) {
	for _, opt := range opts {
		if opt != nil {
			opt(in)
		}
	}
}

// OptionLabel returns the display label of the option with value, or value itself.
func (in Input) OptionLabel(value string) string {
	for _, o := range in.Options {
		if o.Value == value {
			if o.Label != "" {
				return o.Label
			}
			return o.Value
		}
	}
	return value
}

func (in Input) hasOption(value string) bool {
	for _, o := range in.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
