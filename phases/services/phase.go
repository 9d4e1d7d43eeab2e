// Package services enables the systemd units the operator asked for.
package services

import (
	"context"
	"fmt"

	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

const (
	phaseID = "services"

	// ContextKeyEnabled holds the unit names this phase enabled.
	ContextKeyEnabled = "services:enabled"
)

// Phase enables and starts service units.
type Phase struct{}

// New creates a services phase.
func New() *Phase {
	return &Phase{}
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	return phases.PhaseMetadata{
		ID:          phaseID,
		Title:       "Enable services",
		Description: "Enable and start the requested systemd units.",
		Severity:    phases.Recoverable,
		Tags:        []string{"services"},
	}
}

// ShouldRun skips the phase when no services were requested.
func (p *Phase) ShouldRun(phaseCtx *phases.Context) bool {
	return len(phaseCtx.Options().Services) > 0
}

func (p *Phase) Run(ctx context.Context, phaseCtx *phases.Context) error {
	driver := phaseCtx.Driver()
	if driver == nil {
		return phases.ValidationError{Reason: "no package driver selected"}
	}
	if _, err := phaseCtx.Probe(ctx, "command -v systemctl >/dev/null 2>&1"); err != nil {
		phaseCtx.Warn("systemctl not available; services left unchanged")
		return nil
	}

	rollbackCtx := context.WithoutCancel(ctx)
	var enabled []string
	for _, name := range phaseCtx.Options().Services {
		unit := driver.ServiceUnit(name)
		if _, err := phaseCtx.Probe(ctx, "systemctl is-enabled --quiet "+shell.Quote(unit)); err == nil {
			phaseCtx.Action("%s already enabled", unit)
			continue
		}
		if _, err := phaseCtx.Exec(ctx, "enable "+unit, "systemctl enable --now "+shell.Quote(unit)); err != nil {
			return phases.WithAdvice(fmt.Errorf("enable %s: %w", unit, err),
				fmt.Sprintf("inspect the unit with: journalctl -u %s", unit))
		}
		enabled = append(enabled, unit)
		phaseCtx.AddRollback("disable "+unit, func() error {
			_, err := phaseCtx.Exec(rollbackCtx, "disable "+unit, "systemctl disable --now "+shell.Quote(unit))
			return err
		})
	}
	phaseCtx.Set(ContextKeyEnabled, enabled)
	return nil
}
