//go:build !windows

// Package instlock serializes provisioning runs on a host with an advisory
// flock(2) on a well-known file.
package instlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const fileName = "distro-bootstrap.lock"

// DefaultPath picks the lock location for the current user.
func DefaultPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, fileName)
	}
	if os.Geteuid() == 0 {
		return filepath.Join("/run", fileName)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("distro-bootstrap-%d.lock", os.Geteuid()))
}

// With holds an exclusive lock on path while fn runs. A second holder, in this
// process or another, gets AlreadyRunningError without blocking. The kernel
// releases the lock if the process dies.
func With(path string, fn func() error) error {
	if path == "" {
		path = DefaultPath()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return LockError{Path: path, Err: err}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return LockError{Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return AlreadyRunningError{Path: path}
		}
		return LockError{Path: path, Err: err}
	}
	defer func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}()

	if fn == nil {
		return nil
	}
	return fn()
}
