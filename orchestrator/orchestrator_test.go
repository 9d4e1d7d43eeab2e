package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/utils/instlock"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

const ubuntuRelease = `NAME="Ubuntu"
ID=ubuntu
ID_LIKE=debian
VERSION_ID="24.04"
VERSION_CODENAME=noble
PRETTY_NAME="Ubuntu 24.04 LTS"
`

const gentooRelease = `ID=gentoo
PRETTY_NAME="Gentoo Linux"
`

type response struct {
	match  string
	stdout string
	stderr string
	fail   bool
}

type scriptedShell struct {
	mu        sync.Mutex
	responses []response
	commands  []string
	stdins    []string
}

func newShell(responses ...response) *scriptedShell {
	return &scriptedShell{responses: responses}
}

func rootShell(release string, extra ...response) *scriptedShell {
	base := []response{
		{match: "cat /etc/os-release", stdout: release},
		{match: "id -u", stdout: "0\n"},
	}
	return newShell(append(extra, base...)...)
}

func (s *scriptedShell) Run(_ context.Context, cmd string, stdin string) (shell.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
	s.stdins = append(s.stdins, stdin)
	res := shell.Result{Command: cmd}
	for _, r := range s.responses {
		if !strings.Contains(cmd, r.match) {
			continue
		}
		res.Stdout, res.Stderr = r.stdout, r.stderr
		if r.fail {
			res.ExitCode = 1
			return res, &shell.CommandError{Result: res, Err: errors.New("exit status 1")}
		}
		return res, nil
	}
	return res, nil
}

func (s *scriptedShell) ran(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cmd := range s.commands {
		if strings.Contains(cmd, substr) {
			return true
		}
	}
	return false
}

type stubPhase struct {
	meta phases.PhaseMetadata
	run  func(ctx context.Context, pc *phases.Context) error
}

func (p stubPhase) Metadata() phases.PhaseMetadata { return p.meta }
func (p stubPhase) ShouldRun(*phases.Context) bool { return true }
func (p stubPhase) Run(ctx context.Context, pc *phases.Context) error {
	if p.run == nil {
		return nil
	}
	return p.run(ctx, pc)
}

func stub(id string, severity phases.Severity, run func(context.Context, *phases.Context) error) func() phases.Phase {
	return func() phases.Phase {
		return stubPhase{meta: phases.PhaseMetadata{ID: id, Title: id, Severity: severity}, run: run}
	}
}

func newTestOrchestrator(t *testing.T, sh shell.Runner, registry *phases.Registry, opts ...Option) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	base := []Option{
		WithShellRunner(sh),
		WithRegistry(registry),
		WithLockPath(filepath.Join(dir, "run.lock")),
		WithRunOptions(phases.RunOptions{StagingDir: staging}),
	}
	return New(append(base, opts...)...), dir
}

func TestRunWritesReport(t *testing.T) {
	t.Parallel()

	registry := phases.NewRegistry().
		Add(phases.Always(), stub("first", phases.Fatal, func(ctx context.Context, pc *phases.Context) error {
			_, err := pc.Exec(ctx, "install", "echo first")
			return err
		})).
		Add(phases.Always(), stub("second", phases.Recoverable, nil))
	sh := rootShell(ubuntuRelease)
	orch, _ := newTestOrchestrator(t, sh, registry)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, report.Outcome)
	require.Equal(t, []string{"first", "second"}, report.Completed)
	require.Equal(t, "apt", report.Driver)
	require.Equal(t, "ubuntu", report.Platform.ID)
	require.NotEmpty(t, report.RunID)
	require.True(t, sh.ran("echo first"))

	require.Equal(t, orch.ReportPath(), report.Path)
	loaded, err := ReadReport(report.Path)
	require.NoError(t, err)
	require.Equal(t, report.RunID, loaded.RunID)
	require.Equal(t, report.Completed, loaded.Completed)
	require.Len(t, loaded.Events, len(report.Events))
}

func TestRunAbortRollsBackAndReturnsReport(t *testing.T) {
	t.Parallel()

	var undone []string
	registry := phases.NewRegistry().
		Add(phases.Always(), stub("a", phases.Recoverable, func(_ context.Context, pc *phases.Context) error {
			pc.AddRollback("undo a", func() error {
				undone = append(undone, "a")
				return nil
			})
			return nil
		})).
		Add(phases.Always(), stub("b", phases.Fatal, func(context.Context, *phases.Context) error {
			return phases.WithAdvice(errors.New("disk full"), "free some space")
		})).
		Add(phases.Always(), stub("c", phases.Recoverable, nil))
	orch, _ := newTestOrchestrator(t, rootShell(ubuntuRelease), registry)

	report, err := orch.Run(context.Background())
	var abort *phases.AbortError
	require.ErrorAs(t, err, &abort)
	require.Equal(t, "b", abort.Cause.Phase)

	require.NotNil(t, report)
	require.Equal(t, OutcomeAborted, report.Outcome)
	require.Equal(t, []string{"a"}, report.Completed)
	require.True(t, report.RolledBack)
	require.Equal(t, []string{"a"}, undone)
	require.Len(t, report.Errors, 1)
	require.Equal(t, "free some space", report.Errors[0].Advice)
	require.FileExists(t, report.Path)
}

func TestRunContinueOnErrorCompletesWithErrors(t *testing.T) {
	t.Parallel()

	registry := phases.NewRegistry().
		Add(phases.Always(), stub("a", phases.Recoverable, nil)).
		Add(phases.Always(), stub("b", phases.Recoverable, func(context.Context, *phases.Context) error {
			return errors.New("mirror unreachable")
		})).
		Add(phases.Always(), stub("c", phases.Recoverable, nil))
	dir := t.TempDir()
	orch := New(
		WithShellRunner(rootShell(ubuntuRelease)),
		WithRegistry(registry),
		WithLockPath(filepath.Join(dir, "run.lock")),
		WithReportPath(filepath.Join(dir, "out", "custom.json")),
		WithRunOptions(phases.RunOptions{StagingDir: filepath.Join(dir, "staging"), ContinueOnError: true}),
	)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompletedWithError, report.Outcome)
	require.Equal(t, []string{"a", "c"}, report.Completed)
	require.Len(t, report.Errors, 1)
	require.Equal(t, "b", report.Errors[0].Phase)
	require.False(t, report.RolledBack)
	require.Equal(t, filepath.Join(dir, "out", "custom.json"), report.Path)
}

func TestRunRefusesWhenLockHeld(t *testing.T) {
	t.Parallel()

	ran := false
	registry := phases.NewRegistry().Add(phases.Always(), stub("a", phases.Fatal, func(context.Context, *phases.Context) error {
		ran = true
		return nil
	}))
	orch, dir := newTestOrchestrator(t, rootShell(ubuntuRelease), registry)

	var report *Report
	var runErr error
	err := instlock.With(filepath.Join(dir, "run.lock"), func() error {
		report, runErr = orch.Run(context.Background())
		return nil
	})
	require.NoError(t, err)

	var ierr *phases.InstallerError
	require.ErrorAs(t, runErr, &ierr)
	require.Equal(t, PhaseLock, ierr.Phase)
	require.Equal(t, phases.Fatal, ierr.Severity)
	require.Contains(t, ierr.Advice, "wait for the other run")
	require.ErrorAs(t, runErr, new(instlock.AlreadyRunningError))

	require.False(t, ran)
	require.Equal(t, OutcomeAborted, report.Outcome)
	require.Empty(t, report.Path)
	require.NoFileExists(t, orch.ReportPath())
}

func TestRunPromptsForSudoPassword(t *testing.T) {
	t.Parallel()

	sh := newShell(
		response{match: "cat /etc/os-release", stdout: ubuntuRelease},
		response{match: "sudo -n true", stderr: "sudo: a password is required", fail: true},
		response{match: "id -u", stdout: "1000\n"},
	)
	registry := phases.NewRegistry().Add(phases.Always(), stub("a", phases.Fatal, func(ctx context.Context, pc *phases.Context) error {
		_, err := pc.Exec(ctx, "touch", "touch /etc/marker")
		return err
	}))
	asked := 0
	svc := interaction.NewService(
		interaction.WithInteractive(true),
		interaction.WithPrompter(interaction.PrompterFunc(func(_ context.Context, in interaction.Input) (any, error) {
			asked++
			require.Equal(t, InputSudoPassword, in.ID)
			require.Equal(t, interaction.KindSecret, in.Kind)
			return "hunter2", nil
		})),
	)
	orch, _ := newTestOrchestrator(t, sh, registry, WithInteraction(svc))

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, asked)
	require.Equal(t, []string{"a"}, report.Completed)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	found := false
	for i, cmd := range sh.commands {
		if strings.Contains(cmd, "touch /etc/marker") {
			found = true
			require.True(t, strings.HasPrefix(cmd, "sudo -S"))
			require.Equal(t, "hunter2\n", sh.stdins[i])
		}
	}
	require.True(t, found)
}

func TestRunWithoutPasswordNonInteractive(t *testing.T) {
	t.Parallel()

	sh := newShell(
		response{match: "cat /etc/os-release", stdout: ubuntuRelease},
		response{match: "sudo -n true", stderr: "sudo: a password is required", fail: true},
		response{match: "id -u", stdout: "1000\n"},
	)
	registry := phases.NewRegistry().Add(phases.Always(), stub("a", phases.Fatal, nil))
	orch, _ := newTestOrchestrator(t, sh, registry)

	report, err := orch.Run(context.Background())
	var ierr *phases.InstallerError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, PhasePrivileges, ierr.Phase)
	require.Empty(t, report.Completed)
	require.Equal(t, OutcomeAborted, report.Outcome)
	require.FileExists(t, report.Path)
}

func TestRunDriverSelection(t *testing.T) {
	t.Parallel()

	registry := func() *phases.Registry {
		return phases.NewRegistry().Add(phases.Always(), stub("a", phases.Fatal, nil))
	}

	t.Run("override wins over detection", func(t *testing.T) {
		t.Parallel()
		svc := interaction.NewService(interaction.WithOverrides(map[string]any{InputDriver: "pacman"}))
		orch, _ := newTestOrchestrator(t, rootShell(ubuntuRelease), registry(), WithInteraction(svc))
		report, err := orch.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, "pacman", report.Driver)
	})

	t.Run("unknown override", func(t *testing.T) {
		t.Parallel()
		svc := interaction.NewService(interaction.WithOverrides(map[string]any{InputDriver: "zypper"}))
		orch, _ := newTestOrchestrator(t, rootShell(ubuntuRelease), registry(), WithInteraction(svc))
		_, err := orch.Run(context.Background())
		var ierr *phases.InstallerError
		require.ErrorAs(t, err, &ierr)
		require.Equal(t, PhaseDriver, ierr.Phase)
		require.Contains(t, ierr.Advice, "--driver")
	})

	t.Run("unsupported platform unattended", func(t *testing.T) {
		t.Parallel()
		orch, _ := newTestOrchestrator(t, rootShell(gentooRelease), registry())
		_, err := orch.Run(context.Background())
		var ierr *phases.InstallerError
		require.ErrorAs(t, err, &ierr)
		require.Equal(t, PhaseDriver, ierr.Phase)
	})

	t.Run("unsupported platform asks", func(t *testing.T) {
		t.Parallel()
		svc := interaction.NewService(
			interaction.WithInteractive(true),
			interaction.WithPrompter(interaction.PrompterFunc(func(_ context.Context, in interaction.Input) (any, error) {
				require.Equal(t, InputDriver, in.ID)
				require.Len(t, in.Options, 3)
				return "dnf", nil
			})),
		)
		orch, _ := newTestOrchestrator(t, rootShell(gentooRelease), registry(), WithInteraction(svc))
		report, err := orch.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, "dnf", report.Driver)
	})
}

func TestRunStopsOnInterrupt(t *testing.T) {
	t.Parallel()

	ran := false
	registry := phases.NewRegistry().Add(phases.Always(), stub("a", phases.Recoverable, func(context.Context, *phases.Context) error {
		ran = true
		return nil
	}))
	orch, _ := newTestOrchestrator(t, rootShell(ubuntuRelease), registry, WithInterruptCheck(func() bool { return true }))

	report, err := orch.Run(context.Background())
	require.ErrorIs(t, err, phases.ErrInterrupted)
	require.False(t, ran)
	require.Equal(t, OutcomeAborted, report.Outcome)
}

func TestRunDryRunRecordsLedger(t *testing.T) {
	t.Parallel()

	registry := phases.NewRegistry().Add(phases.Always(), stub("a", phases.Fatal, func(ctx context.Context, pc *phases.Context) error {
		_, err := pc.Exec(ctx, "install", "apt-get install -y curl")
		return err
	}))
	sh := rootShell(ubuntuRelease)
	dir := t.TempDir()
	orch := New(
		WithShellRunner(sh),
		WithRegistry(registry),
		WithLockPath(filepath.Join(dir, "run.lock")),
		WithRunOptions(phases.RunOptions{StagingDir: filepath.Join(dir, "staging"), DryRun: true}),
	)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.DryRun)
	require.False(t, sh.ran("apt-get install"))
	require.Len(t, report.Ledger, 1)
	require.Equal(t, "a", report.Ledger[0].Phase)
}

func TestRunNotifiesObservers(t *testing.T) {
	t.Parallel()

	var kinds []phases.EventKind
	registry := phases.NewRegistry().Add(phases.Always(), stub("a", phases.Fatal, nil))
	orch, _ := newTestOrchestrator(t, rootShell(ubuntuRelease), registry,
		WithObserver(phases.ObserverFunc(func(ev phases.Event) { kinds = append(kinds, ev.Kind) })))

	_, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []phases.EventKind{phases.EventTotalCount, phases.EventPhaseStarted, phases.EventPhaseCompleted}, kinds)
}

func TestPlanEvaluatesGates(t *testing.T) {
	t.Parallel()

	registry := phases.NewRegistry().
		Add(phases.Always(), stub("base", phases.Fatal, nil)).
		Add(phases.ProfileAtLeast(phases.ProfileDev), stub("dev", phases.Recoverable, nil)).
		Add(phases.FeatureEnabled("docker"), stub("docker", phases.Recoverable, nil))
	sh := rootShell(ubuntuRelease)
	orch := New(
		WithShellRunner(sh),
		WithRegistry(registry),
		WithRunOptions(phases.RunOptions{Profile: phases.ProfileDev}),
	)

	plan, err := orch.Plan(context.Background())
	require.NoError(t, err)
	require.Equal(t, "apt", plan.Driver)
	require.Len(t, plan.Phases, 3)
	require.Equal(t, "feature:docker", plan.Phases[2].Gate)
	require.False(t, plan.Phases[2].Included)

	var ids []string
	for _, meta := range plan.Included() {
		ids = append(ids, meta.ID)
	}
	require.Equal(t, []string{"base", "dev"}, ids)
	require.False(t, sh.ran("sudo"))
}

func TestReportRender(t *testing.T) {
	t.Parallel()

	registry := phases.NewRegistry().
		Add(phases.Always(), stub("a", phases.Recoverable, func(_ context.Context, pc *phases.Context) error {
			pc.Warn("systemctl missing")
			return nil
		})).
		Add(phases.Always(), stub("b", phases.Fatal, func(ctx context.Context, pc *phases.Context) error {
			_, err := pc.Exec(ctx, "install", "apt-get install -y nope")
			return phases.WithAdvice(err, "check the package name")
		}))
	sh := rootShell(ubuntuRelease, response{match: "apt-get install -y nope", stderr: "E: Unable to locate package nope", fail: true})
	orch, _ := newTestOrchestrator(t, sh, registry)

	report, err := orch.Run(context.Background())
	require.Error(t, err)

	var buf bytes.Buffer
	report.Render(&buf, false)
	out := buf.String()
	require.Contains(t, out, "✓ a")
	require.Contains(t, out, "warning: systemctl missing")
	require.Contains(t, out, "✗ b")
	require.Contains(t, out, "advice: check the package name")
	require.Contains(t, out, "stderr: E: Unable to locate package nope")
	require.Contains(t, out, "Outcome: aborted")
	require.NotContains(t, out, "\x1b[")
}

func TestWriteJSONReplacesAtomically(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "report.json")
	first := newReport(phases.RunOptions{}, time.Now())
	require.NoError(t, first.WriteJSON(path))
	second := newReport(phases.RunOptions{}, time.Now())
	require.NoError(t, second.WriteJSON(path))

	loaded, err := ReadReport(path)
	require.NoError(t, err)
	require.Equal(t, second.RunID, loaded.RunID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
