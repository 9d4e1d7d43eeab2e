// Package dotfiles clones the operator's dotfiles repository into the
// staging directory.
package dotfiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/BrianJOC/distro-bootstrap/phases"
)

const (
	phaseID = "dotfiles"

	// ContextKeyCheckout holds the local checkout path.
	ContextKeyCheckout = "dotfiles:checkout"

	checkoutDir = "dotfiles"
)

// CloneFunc clones url into dir.
type CloneFunc func(ctx context.Context, dir, url string) error

// UpdateFunc fast-forwards an existing checkout.
type UpdateFunc func(ctx context.Context, dir string) error

// Phase keeps a checkout of the dotfiles repository.
type Phase struct {
	repo   string
	clone  CloneFunc
	update UpdateFunc
}

// New creates a dotfiles phase for repo.
func New(repo string) *Phase {
	return &Phase{repo: strings.TrimSpace(repo), clone: cloneRepo, update: pullRepo}
}

// WithCloner overrides the clone function.
func (p *Phase) WithCloner(fn CloneFunc) *Phase {
	if fn != nil {
		p.clone = fn
	}
	return p
}

// WithUpdater overrides the update function.
func (p *Phase) WithUpdater(fn UpdateFunc) *Phase {
	if fn != nil {
		p.update = fn
	}
	return p
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	desc := "Clone the dotfiles repository into the staging directory."
	if p.repo != "" {
		desc = fmt.Sprintf("Clone %s into the staging directory.", p.repo)
	}
	return phases.PhaseMetadata{
		ID:          phaseID,
		Title:       "Dotfiles",
		Description: desc,
		Severity:    phases.Recoverable,
		Tags:        []string{"user"},
	}
}

// ShouldRun skips the phase when no repository is configured.
func (p *Phase) ShouldRun(*phases.Context) bool {
	return p.repo != ""
}

func (p *Phase) Run(ctx context.Context, phaseCtx *phases.Context) error {
	staging := phaseCtx.Options().StagingDir
	if staging == "" {
		return phases.ValidationError{Reason: "staging directory is not set"}
	}
	dir := filepath.Join(staging, checkoutDir)
	phaseCtx.Set(ContextKeyCheckout, dir)

	existing, err := isRepo(dir)
	if err != nil {
		return err
	}

	if phaseCtx.DryRun() {
		action := "clone " + p.repo
		if existing {
			action = "update " + dir
		}
		phaseCtx.RecordDryRun(action, dir)
		phaseCtx.Action("[dry-run] %s", action)
		return nil
	}

	if existing {
		if err := p.update(ctx, dir); err != nil {
			return phases.WithAdvice(fmt.Errorf("update dotfiles: %w", err),
				"resolve local changes in "+dir+" or remove it")
		}
		phaseCtx.Action("updated %s", dir)
		return nil
	}

	if err := p.clone(ctx, dir, p.repo); err != nil {
		_ = os.RemoveAll(dir)
		return phases.WithAdvice(fmt.Errorf("clone dotfiles: %w", err),
			"check the repository URL and your git credentials")
	}
	phaseCtx.Action("cloned %s into %s", p.repo, dir)
	phaseCtx.AddRollback("remove dotfiles checkout", func() error {
		return os.RemoveAll(dir)
	})
	return nil
}

func isRepo(dir string) (bool, error) {
	_, err := git.PlainOpen(dir)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, git.ErrRepositoryNotExists):
		if entries, readErr := os.ReadDir(dir); readErr == nil && len(entries) > 0 {
			return false, fmt.Errorf("%s exists and is not a git repository", dir)
		}
		return false, nil
	default:
		return false, fmt.Errorf("open %s: %w", dir, err)
	}
}

func cloneRepo(ctx context.Context, dir, url string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	return err
}

func pullRepo(ctx context.Context, dir string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: git.DefaultRemoteName, SingleBranch: true})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}
