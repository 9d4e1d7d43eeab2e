// Package automationuser provisions a service account for configuration
// management tools: SSH key login plus passwordless sudo.
package automationuser

import (
	"context"
	"fmt"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/phases/sshkeys"
	"github.com/BrianJOC/distro-bootstrap/utils/systemuser"
)

const (
	phaseID = "automation-user"

	// Input identifiers.
	InputUsername  = "automation_user.name"
	InputPublicKey = "automation_user.public_key"

	// ContextKeyUserResult holds the *systemuser.Result.
	ContextKeyUserResult = "automationuser:result"

	defaultUsername = "automation"
)

// UserEnsurer wraps systemuser.EnsureUser.
type UserEnsurer func(ctx context.Context, r systemuser.Runner, username, publicKey string, opts ...systemuser.Option) (*systemuser.Result, error)

// UserRemover wraps systemuser.RemoveUser.
type UserRemover func(ctx context.Context, r systemuser.Runner, username, sudoersFile string) error

// Phase creates the automation account.
type Phase struct {
	ensureUser UserEnsurer
	removeUser UserRemover
}

// New constructs the automation user phase.
func New() *Phase {
	return &Phase{ensureUser: systemuser.EnsureUser, removeUser: systemuser.RemoveUser}
}

// WithUserEnsurer overrides the user ensure function.
func (p *Phase) WithUserEnsurer(fn UserEnsurer) *Phase {
	if fn != nil {
		p.ensureUser = fn
	}
	return p
}

// WithUserRemover overrides the rollback function.
func (p *Phase) WithUserRemover(fn UserRemover) *Phase {
	if fn != nil {
		p.removeUser = fn
	}
	return p
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	return phases.PhaseMetadata{
		ID:          phaseID,
		Title:       "Automation user",
		Description: "Create a user with an authorized SSH key and passwordless sudo.",
		Severity:    phases.Fatal,
		Tags:        []string{"ssh", "users"},
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

	svc := phaseCtx.Interaction()
	username, err := svc.Text(ctx, interaction.TextInput(InputUsername, "Automation username",
		interaction.WithDefault(defaultUsername), interaction.Required()))
	if err != nil {
		return err
	}

	publicKey, err := p.resolvePublicKey(ctx, phaseCtx)
	if err != nil {
		return err
	}

	group := systemuser.SudoGroupFor(driver.Name())
	result, err := p.ensureUser(ctx, phaseCtx, username, publicKey,
		systemuser.WithSudoGroup(group),
		systemuser.WithPasswordlessSudo(),
	)
	if result != nil && result.UserCreated {
		rollbackCtx := context.WithoutCancel(ctx)
		sudoers := result.SudoersFile
		if sudoers == "" {
			sudoers = "/etc/sudoers.d/" + result.Username
		}
		phaseCtx.AddRollback("delete user "+result.Username, func() error {
			return p.removeUser(rollbackCtx, phaseCtx, result.Username, sudoers)
		})
	}
	if err != nil {
		return phases.WithAdvice(err, fmt.Sprintf("check that useradd works and the %s group exists", group))
	}

	phaseCtx.Set(ContextKeyUserResult, result)
	return nil
}

func (p *Phase) resolvePublicKey(ctx context.Context, phaseCtx *phases.Context) (string, error) {
	if key, ok := phases.Value[string](phaseCtx, sshkeys.ContextKeyPublicKey); ok && key != "" {
		return key, nil
	}
	key, err := phaseCtx.Interaction().Text(ctx, interaction.TextInput(InputPublicKey, "Public key to authorize",
		interaction.WithDescription("One authorized_keys line, e.g. ssh-ed25519 AAAA... user@host"),
		interaction.Required()))
	if err != nil {
		return "", phases.WithAdvice(err, "enable the ssh_keys feature or set "+InputPublicKey+" under interaction in the config")
	}
	return key, nil
}
