package phases

import "time"

// PhaseStatus is the terminal state of an attempted phase.
type PhaseStatus string

const (
	StatusCompleted PhaseStatus = "completed"
	StatusFailed    PhaseStatus = "failed"
	StatusSkipped   PhaseStatus = "skipped"
)

// PhaseOutput is what one attempted phase did.
type PhaseOutput struct {
	Phase    string        `json:"phase"`
	Status   PhaseStatus   `json:"status"`
	Actions  []string      `json:"actions,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	DryRun   bool          `json:"dry_run"`
	Duration time.Duration `json:"duration"`
}

// RunResult is the accumulated outcome of a run, complete or partial.
// Outputs holds one entry per attempted phase, so len(Completed) plus the
// failed and skipped outputs equals Attempted(). Errors may hold one more
// entry than the failed outputs: an interrupt is recorded against the next
// pending phase, which was never started and has no output.
type RunResult struct {
	Completed   []string          `json:"completed"`
	Errors      []*InstallerError `json:"errors,omitempty"`
	Events      []Event           `json:"events"`
	Outputs     []PhaseOutput     `json:"outputs"`
	RolledBack  bool              `json:"rolled_back"`
	RollbackErr error             `json:"-"`
}

// Attempted counts phases that reached a terminal event.
func (r *RunResult) Attempted() int {
	if r == nil {
		return 0
	}
	return len(r.Outputs)
}

// Count returns the number of outputs with status.
func (r *RunResult) Count(status PhaseStatus) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outputs {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Succeeded reports whether the run finished without any recorded error.
func (r *RunResult) Succeeded() bool {
	return r != nil && len(r.Errors) == 0
}
