// Package reporefresh refreshes the package manager's metadata.
package reporefresh

import (
	"context"
	"fmt"

	"github.com/BrianJOC/distro-bootstrap/phases"
)

const phaseID = "repo-refresh"

// Phase refreshes package metadata. Later phases install against stale
// indexes without it, so it is Fatal.
type Phase struct{}

// New creates a repository refresh phase.
func New() *Phase {
	return &Phase{}
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	return phases.PhaseMetadata{
		ID:          phaseID,
		Title:       "Refresh package metadata",
		Description: "Update the package manager's repository indexes.",
		Severity:    phases.Fatal,
		Tags:        []string{"core", "packages"},
	}
}

// ShouldRun skips drivers without a refresh step.
func (p *Phase) ShouldRun(phaseCtx *phases.Context) bool {
	d := phaseCtx.Driver()
	return d == nil || d.Backend().RefreshCommand() != ""
}

func (p *Phase) Run(ctx context.Context, phaseCtx *phases.Context) error {
	driver := phaseCtx.Driver()
	if driver == nil {
		return phases.ValidationError{Reason: "no package driver selected"}
	}
	if _, err := phaseCtx.Exec(ctx, "refresh "+driver.Name()+" metadata", driver.Backend().RefreshCommand()); err != nil {
		return phases.WithAdvice(fmt.Errorf("refresh package metadata: %w", err),
			"check network access and the configured mirrors")
	}
	return nil
}
