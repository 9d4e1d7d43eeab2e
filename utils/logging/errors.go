package logging

import "fmt"

// LevelError reports an unparseable log level.
type LevelError struct {
	Level string
	Err   error
}

func (e LevelError) Error() string {
	return fmt.Sprintf("invalid log level %q: %v", e.Level, e.Err)
}

func (e LevelError) Unwrap() error {
	return e.Err
}
