package rollback

import (
	"fmt"
	"strings"
)

// Failure pairs a rollback label with the error its action returned.
type Failure struct {
	Label string
	Err   error
}

// RollbackError aggregates every compensating action that failed.
type RollbackError struct {
	Failures []Failure
}

func (e *RollbackError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Label, f.Err))
	}
	return fmt.Sprintf("rollback incomplete (%d failed): %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual failures to errors.Is/As.
func (e *RollbackError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// FailedLabels lists the labels whose actions failed, in execution order.
func (e *RollbackError) FailedLabels() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Label)
	}
	return out
}
