// Package pkgensure installs a list of canonical packages through the
// selected driver. One Phase type backs the base package set, the developer
// toolchain and the operator's software selections.
package pkgensure

import (
	"context"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/utils/pkginstaller"
)

// Phase IDs of the stock package sets.
const (
	BasePackagesID = "base-packages"
	DevToolchainID = "dev-toolchain"
	SoftwareID     = "software"
	PythonID       = "python-runtime"
)

var (
	basePackages = []string{"curl", "git", "ca-certificates", "unzip"}
	devToolchain = []string{"build-essential", "python3", "python3-pip", "ripgrep", "fd-find"}
)

// InstallerFunc wraps pkginstaller.Ensure for dependency injection.
type InstallerFunc func(ctx context.Context, r pkginstaller.Runner, d drivers.Driver, canonical []string, opts ...pkginstaller.Option) (*pkginstaller.Result, error)

// RemoverFunc wraps pkginstaller.Remove for dependency injection.
type RemoverFunc func(ctx context.Context, r pkginstaller.Runner, d drivers.Driver, natives ...string) error

// Config describes one package set.
type Config struct {
	ID          string
	Title       string
	Description string
	Severity    phases.Severity
	Tags        []string
	// Packages is a fixed list of canonical names.
	Packages []string
	// Selection names a RunOptions selection key whose packages are added.
	// "*" adds every selection.
	Selection string
}

// Phase ensures a package set is installed.
type Phase struct {
	cfg     Config
	install InstallerFunc
	remove  RemoverFunc
}

// New creates a package phase from cfg.
func New(cfg Config) *Phase {
	return &Phase{cfg: cfg, install: pkginstaller.Ensure, remove: pkginstaller.Remove}
}

// BasePackages installs the tools every machine gets.
func BasePackages() *Phase {
	return New(Config{
		ID:          BasePackagesID,
		Title:       "Base packages",
		Description: "Install curl, git, CA certificates and unzip.",
		Severity:    phases.Recoverable,
		Tags:        []string{"packages"},
		Packages:    basePackages,
	})
}

// DevToolchain installs compilers and developer utilities.
func DevToolchain() *Phase {
	return New(Config{
		ID:          DevToolchainID,
		Title:       "Developer toolchain",
		Description: "Install the build toolchain, Python and search tools.",
		Severity:    phases.Recoverable,
		Tags:        []string{"packages", "dev"},
		Packages:    devToolchain,
	})
}

// PythonRuntime installs the interpreter Ansible modules need on the target.
func PythonRuntime() *Phase {
	return New(Config{
		ID:          PythonID,
		Title:       "Python runtime",
		Description: "Install python3 so Ansible modules can run on the target.",
		Severity:    phases.Recoverable,
		Tags:        []string{"packages", "ansible"},
		Packages:    []string{"python3"},
	})
}

// Software installs every package the operator selected.
func Software() *Phase {
	return New(Config{
		ID:          SoftwareID,
		Title:       "Selected software",
		Description: "Install the packages chosen per software category.",
		Severity:    phases.Recoverable,
		Tags:        []string{"packages", "selection"},
		Selection:   "*",
	})
}

// WithInstaller allows providing a custom installer (for tests).
func (p *Phase) WithInstaller(fn InstallerFunc) *Phase {
	if fn != nil {
		p.install = fn
	}
	return p
}

// WithRemover allows providing a custom remover (for tests).
func (p *Phase) WithRemover(fn RemoverFunc) *Phase {
	if fn != nil {
		p.remove = fn
	}
	return p
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	return phases.PhaseMetadata{
		ID:          p.cfg.ID,
		Title:       p.cfg.Title,
		Description: p.cfg.Description,
		Severity:    p.cfg.Severity,
		Tags:        append([]string(nil), p.cfg.Tags...),
	}
}

// ShouldRun skips the phase when the package list resolves empty.
func (p *Phase) ShouldRun(phaseCtx *phases.Context) bool {
	return len(p.packages(phaseCtx.Options())) > 0
}

// ContextKeyInstalled returns the key under which the phase stores the native
// names it installed.
func ContextKeyInstalled(id string) string {
	return id + ":installed"
}

func (p *Phase) Run(ctx context.Context, phaseCtx *phases.Context) error {
	driver := phaseCtx.Driver()
	if driver == nil {
		return phases.ValidationError{Reason: "no package driver selected"}
	}

	pkgs := p.packages(phaseCtx.Options())
	res, err := p.install(ctx, phaseCtx, driver, pkgs)
	if res != nil {
		for _, name := range res.Skipped {
			phaseCtx.Warn("%s has no %s equivalent, skipped", name, driver.Name())
		}
		if len(res.Present) > 0 {
			names := make([]string, 0, len(res.Present))
			for _, pkg := range res.Present {
				names = append(names, pkg.Native)
			}
			phaseCtx.Action("already installed: %s", strings.Join(names, ", "))
		}
	}
	if err != nil {
		return phases.WithAdvice(err, "check the package names and that the "+driver.Name()+" repositories are reachable")
	}

	installed := res.InstalledNames()
	phaseCtx.Set(ContextKeyInstalled(p.cfg.ID), installed)
	if len(installed) > 0 {
		rollbackCtx := context.WithoutCancel(ctx)
		phaseCtx.AddRollback("remove "+strings.Join(installed, ", "), func() error {
			return p.remove(rollbackCtx, phaseCtx, driver, installed...)
		})
	}
	return nil
}

func (p *Phase) packages(opts phases.RunOptions) []string {
	out := append([]string(nil), p.cfg.Packages...)
	switch p.cfg.Selection {
	case "":
	case "*":
		out = append(out, opts.Selected("")...)
	default:
		out = append(out, opts.Selected(p.cfg.Selection)...)
	}
	return out
}
