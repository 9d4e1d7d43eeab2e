package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrianJOC/distro-bootstrap/orchestrator"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

const ubuntuRelease = `ID=ubuntu
ID_LIKE=debian
VERSION_ID="24.04"
PRETTY_NAME="Ubuntu 24.04 LTS"
`

// fakeHost answers like an Ubuntu machine where we are root and no package
// is installed.
func fakeHost() shell.Runner {
	return shell.RunnerFunc(func(_ context.Context, cmd, _ string) (shell.Result, error) {
		res := shell.Result{Command: cmd}
		switch {
		case strings.Contains(cmd, "cat /etc/os-release"):
			res.Stdout = ubuntuRelease
		case strings.Contains(cmd, "id -u"):
			res.Stdout = "0\n"
		case strings.Contains(cmd, "dpkg-query"):
			res.ExitCode = 1
			return res, &shell.CommandError{Result: res, Err: errors.New("exit status 1")}
		}
		return res, nil
	})
}

func useFakeHost(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	hooks.shell = fakeHost()
	hooks.lockPath = filepath.Join(dir, "run.lock")
	t.Cleanup(func() {
		hooks.shell = nil
		hooks.lockPath = ""
	})
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("profile: minimal\n"), 0o644))
	return cfg
}

func executeCommand(args ...string) (string, string, error) {
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand("version")
	require.NoError(t, err)
	require.Contains(t, out, "distro-bootstrap dev")
}

func TestPlanCommandAppliesFlags(t *testing.T) {
	cfg := useFakeHost(t)

	out, _, err := executeCommand("plan", "--json", "--config", cfg, "--profile", "dev",
		"--feature", "docker", "--select", "editors=neovim,helix")
	require.NoError(t, err)

	var plan orchestrator.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Equal(t, "apt", plan.Driver)
	require.Equal(t, phases.ProfileDev, plan.Options.Profile)

	included := map[string]bool{}
	for _, ph := range plan.Phases {
		included[ph.Meta.ID] = ph.Included
	}
	require.True(t, included["dev-toolchain"])
	require.True(t, included["docker"])
	require.True(t, included["software"])
	require.False(t, included["services"])
	require.False(t, included["dotfiles"])
}

func TestPlanCommandText(t *testing.T) {
	cfg := useFakeHost(t)

	out, _, err := executeCommand("plan", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "Driver:   apt")
	require.Contains(t, out, " 1. preflight")
	require.Contains(t, out, "not selected (profile>=dev)")
}

func TestRunDryRunWritesReport(t *testing.T) {
	cfg := useFakeHost(t)
	staging := filepath.Join(t.TempDir(), "staging")

	out, _, err := executeCommand("run", "--config", cfg, "--yes", "--dry-run", "--staging-dir", staging)
	require.NoError(t, err)
	require.Contains(t, out, "Outcome: succeeded")
	require.Contains(t, out, "Would have run")

	report, err := orchestrator.ReadReport(filepath.Join(staging, "report.json"))
	require.NoError(t, err)
	require.True(t, report.DryRun)
	require.Equal(t, []string{"preflight", "repo-refresh", "base-packages"}, report.Completed)
	require.NotEmpty(t, report.Ledger)

	shown, _, err := executeCommand("report", filepath.Join(staging, "report.json"))
	require.NoError(t, err)
	require.Contains(t, shown, report.RunID)
}

func TestRunRejectsBadFlags(t *testing.T) {
	cfg := useFakeHost(t)

	_, _, err := executeCommand("run", "--config", cfg, "--yes", "--select", "editors=")
	require.Error(t, err)

	_, _, err = executeCommand("run", "--config", cfg, "--yes", "--profile", "huge")
	require.Error(t, err)
}

func TestRunRejectsDashboardWithYes(t *testing.T) {
	cfg := useFakeHost(t)

	_, _, err := executeCommand("run", "--config", cfg, "--tui", "--yes")
	require.ErrorIs(t, err, errDashboardUnattended)
	require.Equal(t, 1, exitCode(err))
}

func TestDriversCommandMarksMatch(t *testing.T) {
	useFakeHost(t)

	out, _, err := executeCommand("drivers")
	require.NoError(t, err)
	require.Contains(t, out, "Platform: Ubuntu 24.04 LTS")
	require.Contains(t, out, "* apt")
	require.Contains(t, out, "  pacman")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	lock := &phases.InstallerError{Phase: orchestrator.PhaseLock}
	require.Equal(t, 0, exitCode(nil))
	require.Equal(t, 3, exitCode(lock))
	require.Equal(t, 2, exitCode(&phases.AbortError{Cause: &phases.InstallerError{Phase: "docker"}}))
	require.Equal(t, 1, exitCode(errors.New("boom")))
}
