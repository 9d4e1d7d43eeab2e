package dotfiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/phases/phasetest"
)

func TestDotfilesClonesIntoStaging(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	var gotDir, gotURL string
	phase := New("https://example.com/me/dotfiles.git").WithCloner(func(_ context.Context, dir, url string) error {
		gotDir, gotURL = dir, url
		return os.MkdirAll(filepath.Join(dir, ".git"), 0o755)
	})
	pc := phasetest.NewContext(phasetest.NewRunner(), phases.WithOptions(phases.RunOptions{StagingDir: staging}))

	result, err := phasetest.Run(context.Background(), pc, phase)
	require.NoError(t, err)
	require.Equal(t, []string{phaseID}, result.Completed)
	require.Equal(t, filepath.Join(staging, "dotfiles"), gotDir)
	require.Equal(t, "https://example.com/me/dotfiles.git", gotURL)

	require.Equal(t, []string{"remove dotfiles checkout"}, pc.Rollback().Labels())
	require.NoError(t, pc.Rollback().RollbackAll())
	require.NoDirExists(t, gotDir)
}

func TestDotfilesUpdatesExistingCheckout(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	_, err := git.PlainInit(filepath.Join(staging, "dotfiles"), false)
	require.NoError(t, err)

	var updated bool
	phase := New("https://example.com/me/dotfiles.git").
		WithCloner(func(context.Context, string, string) error {
			return errors.New("should not clone")
		}).
		WithUpdater(func(context.Context, string) error {
			updated = true
			return nil
		})
	pc := phasetest.NewContext(phasetest.NewRunner(), phases.WithOptions(phases.RunOptions{StagingDir: staging}))

	_, err = phasetest.Run(context.Background(), pc, phase)
	require.NoError(t, err)
	require.True(t, updated)
	require.Zero(t, pc.Rollback().Len())
}

func TestDotfilesRefusesForeignDirectory(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "dotfiles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "dotfiles", "notes.txt"), []byte("x"), 0o600))

	pc := phasetest.NewContext(phasetest.NewRunner(), phases.WithOptions(phases.RunOptions{StagingDir: staging}))
	_, err := phasetest.Run(context.Background(), pc, New("https://example.com/me/dotfiles.git"))
	require.ErrorContains(t, err, "is not a git repository")
}

func TestDotfilesCloneFailureCleansUp(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	phase := New("https://example.com/missing.git").WithCloner(func(_ context.Context, dir, _ string) error {
		require.NoError(t, os.MkdirAll(dir, 0o755))
		return errors.New("repository not found")
	})
	pc := phasetest.NewContext(phasetest.NewRunner(), phases.WithOptions(phases.RunOptions{StagingDir: staging, ContinueOnError: true}))

	result, err := phasetest.Run(context.Background(), pc, phase)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0].Advice, "repository URL")
	require.NoDirExists(t, filepath.Join(staging, "dotfiles"))
}

func TestDotfilesDryRunAndSkip(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	pc := phasetest.NewContext(phasetest.NewRunner(), phases.WithOptions(phases.RunOptions{StagingDir: staging, DryRun: true}))
	_, err := phasetest.Run(context.Background(), pc, New("https://example.com/me/dotfiles.git"))
	require.NoError(t, err)
	require.Equal(t, 1, pc.Ledger().Len())
	require.NoDirExists(t, filepath.Join(staging, "dotfiles"))

	result, err := phasetest.Run(context.Background(), pc, New(""))
	require.NoError(t, err)
	require.Equal(t, 1, result.Count(phases.StatusSkipped))
}
