package pkginstaller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

func TestEnsureSkipsPresentPackages(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{installed: map[string]bool{"curl": true, "git": true}}
	result, err := Ensure(context.Background(), r, drivers.NewApt(), []string{"curl", "git"})
	require.NoError(t, err)
	require.Len(t, result.Present, 2)
	require.Empty(t, result.Installed)
	require.Empty(t, r.execs)
}

func TestEnsureInstallsMissingInOneCommand(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{installed: map[string]bool{"curl": true}}
	result, err := Ensure(context.Background(), r, drivers.NewPacman(), []string{"curl", "build-essential", "fd-find"})
	require.NoError(t, err)
	require.Equal(t, []string{"base-devel", "fd"}, result.InstalledNames())
	require.Len(t, r.execs, 1)
	require.Equal(t, "pacman -S --needed --noconfirm base-devel fd", r.execs[0])
}

func TestEnsureSkipsUntranslatable(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{}
	result, err := Ensure(context.Background(), r, drivers.NewPacman(), []string{"docker-ce", "docker-ce-cli"})
	require.NoError(t, err)
	require.Equal(t, []string{"docker-ce-cli"}, result.Skipped)
	require.Equal(t, []string{"docker"}, result.InstalledNames())
}

func TestEnsureWrapsInstallFailure(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{execErr: errors.New("exit status 100"), execStderr: "E: Unable to locate package nope"}
	_, err := Ensure(context.Background(), r, drivers.NewApt(), []string{"nope"})
	var cmdErr CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, "install", cmdErr.Step)
	require.Contains(t, err.Error(), "Unable to locate package")
}

func TestEnsureForce(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{installed: map[string]bool{"curl": true}}
	result, err := Ensure(context.Background(), r, drivers.NewApt(), []string{"curl", "curl"}, WithForce())
	require.NoError(t, err)
	require.Equal(t, []string{"curl"}, result.InstalledNames())
	require.Empty(t, r.probes)
}

func TestEnsureValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := Ensure(context.Background(), nil, drivers.NewApt(), []string{"curl"})
	require.IsType(t, RunnerError{}, err)

	_, err = Ensure(context.Background(), &fakeRunner{}, nil, []string{"curl"})
	require.IsType(t, ValidationError{}, err)

	_, err = Ensure(context.Background(), &fakeRunner{}, drivers.NewApt(), []string{" "})
	require.IsType(t, ValidationError{}, err)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{}
	require.NoError(t, Remove(context.Background(), r, drivers.NewDnf(), "docker-ce", "containerd.io"))
	require.Equal(t, []string{"dnf remove -y docker-ce containerd.io"}, r.execs)
	require.NoError(t, Remove(context.Background(), r, drivers.NewDnf()))
	require.Len(t, r.execs, 1)
}

type fakeRunner struct {
	installed  map[string]bool
	probes     []string
	execs      []string
	execErr    error
	execStderr string
}

func (f *fakeRunner) Probe(_ context.Context, cmd string) (shell.Result, error) {
	f.probes = append(f.probes, cmd)
	for name, ok := range f.installed {
		if ok && strings.Contains(cmd, " "+name+" ") {
			return shell.Result{Command: cmd}, nil
		}
	}
	return shell.Result{Command: cmd, ExitCode: 1}, fmt.Errorf("not installed")
}

func (f *fakeRunner) Exec(_ context.Context, _ string, cmd string) (shell.Result, error) {
	f.execs = append(f.execs, cmd)
	return shell.Result{Command: cmd, Stderr: f.execStderr}, f.execErr
}
