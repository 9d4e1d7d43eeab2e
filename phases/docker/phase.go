// Package docker installs Docker Engine, configuring the upstream repository
// when the driver has one.
package docker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/utils/pkginstaller"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

const (
	phaseID = "docker"

	// InputConfirm gates the installation; override it with docker.confirm.
	InputConfirm = "docker.confirm"

	// ContextKeyInstalled holds the native package names installed.
	ContextKeyInstalled = "docker:installed"
)

var packages = []string{"docker-ce", "docker-ce-cli", "containerd.io"}

// Phase installs Docker Engine.
type Phase struct{}

// New creates a Docker phase.
func New() *Phase {
	return &Phase{}
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	return phases.PhaseMetadata{
		ID:          phaseID,
		Title:       "Docker Engine",
		Description: "Add the Docker repository and install the engine, CLI and containerd.",
		Severity:    phases.Recoverable,
		Tags:        []string{"packages", "containers"},
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

	ok, err := phaseCtx.Interaction().Confirm(ctx, interaction.ConfirmInput(
		InputConfirm,
		"Install Docker Engine?",
		interaction.WithDescription("Adds the upstream Docker repository where the distribution needs one."),
		interaction.WithDefault(true),
	))
	if err != nil {
		return err
	}
	if !ok {
		phaseCtx.Warn("docker installation declined")
		return nil
	}

	rollbackCtx := context.WithoutCancel(ctx)

	if repo, found := driver.RepoConfig(drivers.RepoDocker); found {
		if err := configureRepo(ctx, phaseCtx, driver, repo.Render(phaseCtx.Platform())); err != nil {
			return err
		}
		created := []string{repo.Path}
		if repo.KeyPath != "" {
			created = append(created, repo.KeyPath)
		}
		phaseCtx.AddRollback("remove docker repository", func() error {
			_, err := phaseCtx.Exec(rollbackCtx, "remove docker repository", "rm -f "+shell.QuoteAll(created...))
			return err
		})
	}

	res, err := pkginstaller.Ensure(ctx, phaseCtx, driver, packages)
	if res != nil {
		for _, name := range res.Skipped {
			phaseCtx.Warn("%s has no %s equivalent, skipped", name, driver.Name())
		}
	}
	if err != nil {
		return phases.WithAdvice(err, "check that the Docker repository supports "+phaseCtx.Platform().String())
	}

	installed := res.InstalledNames()
	phaseCtx.Set(ContextKeyInstalled, installed)
	if len(installed) > 0 {
		phaseCtx.AddRollback("remove "+strings.Join(installed, ", "), func() error {
			return pkginstaller.Remove(rollbackCtx, phaseCtx, driver, installed...)
		})
	}
	return nil
}

func configureRepo(ctx context.Context, phaseCtx *phases.Context, driver drivers.Driver, repo drivers.RepoConfig) error {
	if repo.KeyURL != "" && repo.KeyPath != "" {
		cmd := fmt.Sprintf("install -m 0755 -d %s && curl -fsSL %s -o %s && chmod a+r %s",
			shell.Quote(filepath.Dir(repo.KeyPath)), shell.Quote(repo.KeyURL),
			shell.Quote(repo.KeyPath), shell.Quote(repo.KeyPath))
		if _, err := phaseCtx.Exec(ctx, "fetch docker signing key", cmd); err != nil {
			return phases.WithAdvice(fmt.Errorf("fetch docker signing key: %w", err),
				"check that "+repo.KeyURL+" is reachable")
		}
	}

	write := fmt.Sprintf("install -m 0755 -d %s && printf '%%s' %s > %s",
		shell.Quote(filepath.Dir(repo.Path)), shell.Quote(repo.Content), shell.Quote(repo.Path))
	if _, err := phaseCtx.Exec(ctx, "write docker repository "+repo.Path, write); err != nil {
		return fmt.Errorf("write docker repository: %w", err)
	}

	if _, err := phaseCtx.Exec(ctx, "refresh "+driver.Name()+" metadata", driver.Backend().RefreshCommand()); err != nil {
		return fmt.Errorf("refresh after adding docker repository: %w", err)
	}
	return nil
}
