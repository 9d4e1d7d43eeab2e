package playbook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/phases/automationuser"
	"github.com/BrianJOC/distro-bootstrap/phases/phasetest"
	"github.com/BrianJOC/distro-bootstrap/phases/sshkeys"
	ansiblepb "github.com/BrianJOC/distro-bootstrap/utils/ansibleplaybook"
	"github.com/BrianJOC/distro-bootstrap/utils/privilege"
	"github.com/BrianJOC/distro-bootstrap/utils/sshkeypair"
	"github.com/BrianJOC/distro-bootstrap/utils/systemuser"
)

func writePlaybook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yml")
	require.NoError(t, os.WriteFile(path, []byte("- hosts: all\n  tasks: []\n"), 0o600))
	return path
}

func TestPlaybookRunsLocallyWithBecome(t *testing.T) {
	t.Parallel()

	path := writePlaybook(t)
	creds := privilege.NewCredentials()
	creds.Set("hunter2")

	var got ansiblepb.RunRequest
	var gotOpts int
	phase := New(Config{PlaybookPath: path, Tags: []string{"base"}}).
		WithEUID(func() int { return 1000 }).
		WithRunner(func(_ context.Context, req ansiblepb.RunRequest, opts ...ansiblepb.Option) error {
			got = req
			gotOpts = len(opts)
			return nil
		})
	runner := phasetest.NewRunner()
	pc := phasetest.NewContext(runner, phases.WithCredentials(creds))

	result, err := phasetest.Run(context.Background(), pc, phase)
	require.NoError(t, err)
	require.Equal(t, []string{phaseID}, result.Completed)
	require.True(t, runner.Ran("command -v ansible-playbook"))

	require.Equal(t, path, got.PlaybookPath)
	require.True(t, got.Local())
	require.True(t, got.Become)
	require.Equal(t, "hunter2", got.BecomePassword)
	require.Equal(t, []string{"base"}, got.Tags)
	require.Equal(t, 3, gotOpts)
}

func TestPlaybookAsRootSkipsBecome(t *testing.T) {
	t.Parallel()

	var got ansiblepb.RunRequest
	phase := New(Config{PlaybookPath: writePlaybook(t)}).
		WithEUID(func() int { return 0 }).
		WithRunner(func(_ context.Context, req ansiblepb.RunRequest, _ ...ansiblepb.Option) error {
			got = req
			return nil
		})
	pc := phasetest.NewContext(phasetest.NewRunner())

	_, err := phasetest.Run(context.Background(), pc, phase)
	require.NoError(t, err)
	require.False(t, got.Become)
	require.Empty(t, got.BecomePassword)
}

func TestPlaybookRemoteUsesProvisionedIdentity(t *testing.T) {
	t.Parallel()

	var got ansiblepb.RunRequest
	phase := New(Config{PlaybookPath: writePlaybook(t), Target: "10.0.0.5", User: "ubuntu", KeyPath: "/keys/default"}).
		WithRunner(func(_ context.Context, req ansiblepb.RunRequest, _ ...ansiblepb.Option) error {
			got = req
			return nil
		})
	runner := phasetest.NewRunner()
	pc := phasetest.NewContext(runner)
	pc.Set(automationuser.ContextKeyUserResult, &systemuser.Result{Username: "automation"})
	pc.Set(sshkeys.ContextKeyKeyInfo, &sshkeypair.KeyPairInfo{PrivatePath: "/keys/id_ed25519"})

	_, err := phasetest.Run(context.Background(), pc, phase)
	require.NoError(t, err)
	require.Equal(t, "automation", got.User)
	require.Equal(t, "/keys/id_ed25519", got.PrivateKeyPath)
	require.True(t, got.Become)
	require.False(t, runner.Ran("ansible-playbook"))
}

func TestPlaybookPathFromOverride(t *testing.T) {
	t.Parallel()

	path := writePlaybook(t)
	svc := interaction.NewService(interaction.WithOverrides(map[string]any{InputPlaybookPath: path}))
	var got string
	phase := New(Config{}).WithEUID(func() int { return 0 }).
		WithRunner(func(_ context.Context, req ansiblepb.RunRequest, _ ...ansiblepb.Option) error {
			got = req.PlaybookPath
			return nil
		})
	pc := phasetest.NewContext(phasetest.NewRunner(), phases.WithInteraction(svc))

	_, err := phasetest.Run(context.Background(), pc, phase)
	require.NoError(t, err)
	require.Equal(t, path, got)
}

func TestPlaybookFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    Config
		runner *phasetest.Runner
		run    Runner
		advice string
	}{
		{
			name:   "missing path",
			cfg:    Config{},
			runner: phasetest.NewRunner(),
			advice: "set playbook",
		},
		{
			name:   "playbook not on disk",
			cfg:    Config{PlaybookPath: "/nonexistent/site.yml"},
			runner: phasetest.NewRunner(),
			advice: "playbook path",
		},
		{
			name:   "ansible missing",
			cfg:    Config{PlaybookPath: writePlaybook(t)},
			runner: phasetest.NewRunner(phasetest.Fail("command -v ansible-playbook", "")),
			advice: "install ansible",
		},
		{
			name:   "run fails",
			cfg:    Config{PlaybookPath: writePlaybook(t)},
			runner: phasetest.NewRunner(),
			run: func(context.Context, ansiblepb.RunRequest, ...ansiblepb.Option) error {
				return errors.New("exit status 2")
			},
			advice: "--log-level debug",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			phase := New(tc.cfg).WithEUID(func() int { return 0 }).WithRunner(tc.run)
			pc := phasetest.NewContext(tc.runner, phases.WithOptions(phases.RunOptions{ContinueOnError: true}))

			result, err := phasetest.Run(context.Background(), pc, phase)
			require.NoError(t, err)
			require.Len(t, result.Errors, 1)
			require.Contains(t, result.Errors[0].Advice, tc.advice)
		})
	}
}

func TestPlaybookDryRun(t *testing.T) {
	t.Parallel()

	called := false
	phase := New(Config{PlaybookPath: writePlaybook(t), Tags: []string{"web"}}).
		WithEUID(func() int { return 1000 }).
		WithRunner(func(context.Context, ansiblepb.RunRequest, ...ansiblepb.Option) error {
			called = true
			return nil
		})
	pc := phasetest.NewContext(phasetest.NewRunner(), phases.WithOptions(phases.RunOptions{DryRun: true}))

	_, err := phasetest.Run(context.Background(), pc, phase)
	require.NoError(t, err)
	require.False(t, called)
	entries := pc.Ledger().Entries()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Detail, "tags=web")
	require.Contains(t, entries[0].Detail, "become=true")
}
