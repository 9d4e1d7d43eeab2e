// Package preflight verifies the target is usable before anything changes:
// the driver's package manager exists, commands really run as root, and the
// staging directory is in place.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/phases"
)

const (
	phaseID = "preflight"

	// ContextKeyStagingDir holds the absolute staging directory path.
	ContextKeyStagingDir = "preflight:staging_dir"
)

// Phase checks prerequisites. It is Fatal: nothing else can run without it.
type Phase struct{}

// New creates a preflight phase.
func New() *Phase {
	return &Phase{}
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	return phases.PhaseMetadata{
		ID:          phaseID,
		Title:       "Preflight checks",
		Description: "Verify the package manager, root access and the staging directory.",
		Severity:    phases.Fatal,
		Tags:        []string{"core"},
	}
}

func (p *Phase) ShouldRun(*phases.Context) bool {
	return true
}

func (p *Phase) Run(ctx context.Context, phaseCtx *phases.Context) error {
	driver := phaseCtx.Driver()
	if driver == nil {
		return phases.ValidationError{Reason: "no package driver selected"}
	}

	binary := driver.Backend().Binary
	if _, err := phaseCtx.Probe(ctx, driver.Backend().PresenceCommand()); err != nil {
		return phases.WithAdvice(
			fmt.Errorf("%s not found on %s: %w", binary, phaseCtx.Platform(), err),
			fmt.Sprintf("the %s driver needs %s; pick another driver with --driver", driver.Name(), binary),
		)
	}
	phaseCtx.Action("found %s for driver %s", binary, driver.Name())

	res, err := phaseCtx.Probe(ctx, "id -u")
	if err != nil {
		return phases.WithAdvice(fmt.Errorf("privileged command failed: %w", err),
			"check that this account may use sudo")
	}
	if uid := strings.TrimSpace(res.Stdout); uid != "0" {
		return phases.WithAdvice(fmt.Errorf("privileged commands run as uid %q, not root", uid),
			"check the sudo configuration for this account")
	}
	phaseCtx.Action("root access confirmed")

	return p.ensureStaging(phaseCtx)
}

func (p *Phase) ensureStaging(phaseCtx *phases.Context) error {
	dir := phaseCtx.Options().StagingDir
	if dir == "" {
		return phases.ValidationError{Reason: "staging directory is not set"}
	}
	if !filepath.IsAbs(dir) {
		return phases.ValidationError{Reason: fmt.Sprintf("staging directory %q must be absolute", dir)}
	}
	phaseCtx.Set(ContextKeyStagingDir, dir)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		phaseCtx.Action("staging directory %s ready", dir)
		return nil
	case err == nil:
		return fmt.Errorf("staging path %s exists and is not a directory", dir)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat staging directory: %w", err)
	}

	if phaseCtx.DryRun() {
		phaseCtx.RecordDryRun("create staging directory", dir)
		phaseCtx.Action("[dry-run] create staging directory %s", dir)
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	phaseCtx.Action("created staging directory %s", dir)
	phaseCtx.AddRollback("remove staging directory "+dir, func() error {
		return os.RemoveAll(dir)
	})
	return nil
}
