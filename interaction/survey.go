package interaction

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

// SurveyPrompter asks questions on the controlling terminal.
type SurveyPrompter struct {
	in  *os.File
	out *os.File
	err io.Writer
}

// NewSurveyPrompter prompts on stdin/stdout.
func NewSurveyPrompter() *SurveyPrompter {
	return &SurveyPrompter{in: os.Stdin, out: os.Stdout, err: os.Stderr}
}

// IsTerminal reports whether stdin is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Prompt implements Prompter.
func (p *SurveyPrompter) Prompt(ctx context.Context, in Input) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !term.IsTerminal(int(p.in.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}

	message := in.Label
	if message == "" {
		message = in.ID
	}
	stdio := survey.WithStdio(p.in, p.out, p.err)

	switch in.Kind {
	case KindConfirm:
		def, _ := parseBool(in.Default)
		answer := def
		prompt := &survey.Confirm{Message: message, Default: def, Help: in.Description}
		if err := survey.AskOne(prompt, &answer, stdio); err != nil {
			return nil, err
		}
		return answer, nil

	case KindSelect:
		labels := make([]string, 0, len(in.Options))
		for _, o := range in.Options {
			labels = append(labels, in.OptionLabel(o.Value))
		}
		prompt := &survey.Select{Message: message, Options: labels, Help: in.Description}
		if def, ok := in.Default.(string); ok && in.hasOption(def) {
			prompt.Default = in.OptionLabel(def)
		}
		var index int
		if err := survey.AskOne(prompt, &index, stdio); err != nil {
			return nil, err
		}
		if index < 0 || index >= len(in.Options) {
			return nil, fmt.Errorf("selection out of range")
		}
		return in.Options[index].Value, nil

	case KindSecret:
		var answer string
		prompt := &survey.Password{Message: message, Help: in.Description}
		if err := survey.AskOne(prompt, &answer, stdio, requiredOpt(in)); err != nil {
			return nil, err
		}
		return answer, nil

	default:
		var answer string
		prompt := &survey.Input{Message: message, Help: in.Description}
		if def, ok := scalarString(in.Default); ok {
			prompt.Default = def
		}
		if err := survey.AskOne(prompt, &answer, stdio, requiredOpt(in)); err != nil {
			return nil, err
		}
		return answer, nil
	}
}

func requiredOpt(in Input) survey.AskOpt {
	if in.Required {
		return survey.WithValidator(survey.Required)
	}
	return func(*survey.AskOptions) error { return nil }
}
