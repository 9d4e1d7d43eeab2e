package instlock

import "fmt"

// AlreadyRunningError reports that another run holds the lock.
type AlreadyRunningError struct {
	Path string
}

func (e AlreadyRunningError) Error() string {
	return fmt.Sprintf("another installation is already running (lock %s)", e.Path)
}

// LockError wraps failures opening or locking the lock file.
type LockError struct {
	Path string
	Err  error
}

func (e LockError) Error() string {
	return fmt.Sprintf("lock %s: %v", e.Path, e.Err)
}

func (e LockError) Unwrap() error {
	return e.Err
}
