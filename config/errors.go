package config

import "fmt"

// ParseError reports an unreadable or malformed configuration file.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("config %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a configuration value that breaks a rule.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}
