package pkginstaller

import (
	"context"
	"fmt"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

// Runner executes commands on the target system with elevated privileges.
type Runner interface {
	// Probe runs a read-only command. It always executes.
	Probe(ctx context.Context, cmd string) (shell.Result, error)
	// Exec runs a mutating command described by action. In dry-run mode the
	// implementation may record it instead.
	Exec(ctx context.Context, action, cmd string) (shell.Result, error)
}

// Package pairs a canonical name with the driver's native name.
type Package struct {
	Canonical string
	Native    string
}

// Result reports actions taken by Ensure.
type Result struct {
	Installed []Package
	Present   []Package
	// Skipped lists canonical names the driver has no equivalent for.
	Skipped []string
}

// InstalledNames returns the native names of newly installed packages.
func (r *Result) InstalledNames() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Installed))
	for _, p := range r.Installed {
		out = append(out, p.Native)
	}
	return out
}

// Option configures Ensure behavior.
type Option func(*options) error

type options struct {
	force bool
}

// WithForce installs every package even if the query reports it present.
func WithForce() Option {
	return func(opts *options) error {
		opts.force = true
		return nil
	}
}

// Ensure installs the canonical packages that are missing, translating each
// through driver. Names without an equivalent are skipped, not failed.
func Ensure(ctx context.Context, r Runner, driver drivers.Driver, canonical []string, opts ...Option) (*Result, error) {
	if r == nil {
		return nil, RunnerError{}
	}
	if driver == nil {
		return nil, ValidationError{Reason: "driver is required"}
	}

	config := options{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	result := &Result{}
	backend := driver.Backend()
	seen := make(map[string]struct{})
	var missing []Package
	for _, name := range canonical {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ValidationError{Reason: "package name is required"}
		}
		native, ok := driver.TranslatePackage(name)
		if !ok {
			result.Skipped = append(result.Skipped, name)
			continue
		}
		if _, dup := seen[native]; dup {
			continue
		}
		seen[native] = struct{}{}

		pkg := Package{Canonical: name, Native: native}
		if !config.force {
			if _, err := r.Probe(ctx, backend.QueryCommand(native)); err == nil {
				result.Present = append(result.Present, pkg)
				continue
			}
		}
		missing = append(missing, pkg)
	}

	if len(missing) == 0 {
		return result, nil
	}

	natives := make([]string, 0, len(missing))
	for _, p := range missing {
		natives = append(natives, p.Native)
	}
	action := fmt.Sprintf("install %s", strings.Join(natives, ", "))
	if res, err := r.Exec(ctx, action, backend.InstallCommand(natives...)); err != nil {
		return result, CommandError{Step: "install", Err: err, Stderr: res.Stderr}
	}

	result.Installed = missing
	return result, nil
}

// Remove uninstalls native package names. It is used for rollback.
func Remove(ctx context.Context, r Runner, driver drivers.Driver, natives ...string) error {
	if r == nil {
		return RunnerError{}
	}
	if driver == nil {
		return ValidationError{Reason: "driver is required"}
	}
	if len(natives) == 0 {
		return nil
	}
	action := fmt.Sprintf("remove %s", strings.Join(natives, ", "))
	if res, err := r.Exec(ctx, action, driver.Backend().RemoveCommand(natives...)); err != nil {
		return CommandError{Step: "remove", Err: err, Stderr: res.Stderr}
	}
	return nil
}
