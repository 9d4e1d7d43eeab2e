package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BrianJOC/distro-bootstrap/phases"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var abort *phases.AbortError
		if !errors.As(err, &abort) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps run failures to process status: 2 for a stopped run, 3 when
// another run holds the lock, 1 otherwise.
func exitCode(err error) int {
	var ierr *phases.InstallerError
	switch {
	case err == nil:
		return 0
	case errors.As(err, new(*phases.AbortError)):
		return 2
	case errors.As(err, &ierr) && ierr.Phase == "installer-lock":
		return 3
	default:
		return 1
	}
}
