// Package sshkeys ensures the operator has a local SSH key pair and publishes
// its public half to later phases.
package sshkeys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/utils/sshkeypair"
)

const (
	phaseID = "ssh-keys"

	// InputKeyPath selects the private key location.
	InputKeyPath = "ssh_keys.path"

	// ContextKeyPublicKey holds the authorized_keys line.
	ContextKeyPublicKey = "sshkeys:public"
	// ContextKeyKeyInfo holds the *sshkeypair.KeyPairInfo.
	ContextKeyKeyInfo = "sshkeys:info"

	// DryRunPublicKey stands in for a key a dry run did not generate.
	DryRunPublicKey = "ssh-ed25519 <generated-on-apply> distro-bootstrap"
)

// KeyPairEnsurer wraps sshkeypair.EnsureKeyPair.
type KeyPairEnsurer func(privatePath string, opts ...sshkeypair.Option) (*sshkeypair.KeyPairInfo, error)

// Phase ensures a key pair exists.
type Phase struct {
	ensureKeyPair KeyPairEnsurer
	defaultPath   string
}

// New constructs the phase. defaultPath may be empty for ~/.ssh/id_ed25519.
func New(defaultPath string) *Phase {
	return &Phase{ensureKeyPair: sshkeypair.EnsureKeyPair, defaultPath: strings.TrimSpace(defaultPath)}
}

// WithKeyPairEnsurer overrides the key pair function.
func (p *Phase) WithKeyPairEnsurer(fn KeyPairEnsurer) *Phase {
	if fn != nil {
		p.ensureKeyPair = fn
	}
	return p
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	return phases.PhaseMetadata{
		ID:          phaseID,
		Title:       "SSH key pair",
		Description: "Create a local ed25519 key pair when none exists.",
		Severity:    phases.Recoverable,
		Tags:        []string{"ssh"},
	}
}

func (p *Phase) ShouldRun(*phases.Context) bool {
	return true
}

func (p *Phase) Run(ctx context.Context, phaseCtx *phases.Context) error {
	def := p.defaultPath
	if def == "" {
		path, err := sshkeypair.DefaultPath(sshkeypair.KeyTypeEd25519)
		if err != nil {
			return err
		}
		def = path
	}

	path, err := phaseCtx.Interaction().Text(ctx, interaction.TextInput(
		InputKeyPath,
		"SSH private key path",
		interaction.WithDefault(def),
		interaction.Required(),
	))
	if err != nil {
		return err
	}
	path = expandHome(path)

	if phaseCtx.DryRun() {
		return p.dryRun(phaseCtx, path)
	}

	info, err := p.ensureKeyPair(path)
	if err != nil {
		return phases.WithAdvice(err, "remove or fix the key at "+path)
	}
	if info.KeyGenerated {
		phaseCtx.Action("generated key pair %s", info.PrivatePath)
	} else {
		phaseCtx.Action("reusing key pair %s", info.PrivatePath)
	}

	if created := info.Created(); len(created) > 0 {
		phaseCtx.AddRollback("delete generated key files", func() error {
			var errs []error
			for _, f := range created {
				if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		})
	}

	phaseCtx.Set(ContextKeyKeyInfo, info)
	phaseCtx.Set(ContextKeyPublicKey, info.PublicKey)
	return nil
}

func (p *Phase) dryRun(phaseCtx *phases.Context, path string) error {
	pub, err := os.ReadFile(path + ".pub")
	if err == nil {
		phaseCtx.Action("reusing key pair %s", path)
		phaseCtx.Set(ContextKeyPublicKey, strings.TrimSpace(string(pub)))
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read public key: %w", err)
	}
	phaseCtx.RecordDryRun("generate ssh key pair", path)
	phaseCtx.Action("[dry-run] generate ssh key pair %s", path)
	phaseCtx.Set(ContextKeyPublicKey, DryRunPublicKey)
	return nil
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + strings.TrimPrefix(path, "~")
		}
	}
	return path
}
