// Package playbook runs an operator-supplied Ansible playbook once the base
// system is in place.
package playbook

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/phases/automationuser"
	"github.com/BrianJOC/distro-bootstrap/phases/sshkeys"
	ansiblepb "github.com/BrianJOC/distro-bootstrap/utils/ansibleplaybook"
	"github.com/BrianJOC/distro-bootstrap/utils/sshkeypair"
	"github.com/BrianJOC/distro-bootstrap/utils/systemuser"
)

const (
	phaseID = "playbook"

	// InputPlaybookPath is prompted for when no path is configured.
	InputPlaybookPath = "playbook.path"

	// ContextKeyRequest holds the ansiblepb.RunRequest that was executed.
	ContextKeyRequest = "playbook:request"

	binaryName = "ansible-playbook"
)

// Runner executes the ansible playbook.
type Runner func(context.Context, ansiblepb.RunRequest, ...ansiblepb.Option) error

// Config describes the playbook run. An empty Target runs against this
// machine.
type Config struct {
	PlaybookPath string
	Target       string
	User         string
	KeyPath      string
	Tags         []string
	ExtraVars    map[string]any
	Options      []ansiblepb.Option
}

// Phase runs the playbook.
type Phase struct {
	cfg  Config
	run  Runner
	euid func() int
}

// New constructs the playbook phase.
func New(cfg Config) *Phase {
	cfg.PlaybookPath = strings.TrimSpace(cfg.PlaybookPath)
	cfg.Target = strings.TrimSpace(cfg.Target)
	return &Phase{cfg: cfg, run: ansiblepb.Run, euid: os.Geteuid}
}

// WithRunner overrides the ansible playbook executor.
func (p *Phase) WithRunner(r Runner) *Phase {
	if r != nil {
		p.run = r
	}
	return p
}

// WithEUID overrides how the effective user id is read.
func (p *Phase) WithEUID(fn func() int) *Phase {
	if fn != nil {
		p.euid = fn
	}
	return p
}

func (p *Phase) Metadata() phases.PhaseMetadata {
	desc := "Run an Ansible playbook against this machine."
	if p.cfg.PlaybookPath != "" {
		desc = fmt.Sprintf("Run %s with ansible-playbook.", p.cfg.PlaybookPath)
	}
	return phases.PhaseMetadata{
		ID:          phaseID,
		Title:       "Ansible playbook",
		Description: desc,
		Severity:    phases.Recoverable,
		Tags:        []string{"ansible"},
	}
}

func (p *Phase) ShouldRun(*phases.Context) bool {
	return true
}

func (p *Phase) Run(ctx context.Context, phaseCtx *phases.Context) error {
	path, err := p.resolvePlaybook(ctx, phaseCtx)
	if err != nil {
		return err
	}

	req := ansiblepb.RunRequest{
		PlaybookPath: path,
		Target:       p.cfg.Target,
		Tags:         p.cfg.Tags,
		ExtraVars:    p.cfg.ExtraVars,
	}
	if req.Local() {
		req.Become = p.euid() != 0
		if req.Become {
			req.BecomePassword = phaseCtx.Credentials().Password()
		}
	} else {
		req.User, req.PrivateKeyPath = p.remoteIdentity(phaseCtx)
		req.Become = true
	}
	phaseCtx.Set(ContextKeyRequest, req)

	if phaseCtx.DryRun() {
		phaseCtx.RecordDryRun("run playbook "+path, describe(req))
		phaseCtx.Action("[dry-run] run playbook %s", path)
		return nil
	}

	if req.Local() {
		if _, err := phaseCtx.Probe(ctx, "command -v "+binaryName+" >/dev/null 2>&1"); err != nil {
			return phases.WithAdvice(fmt.Errorf("%s not found", binaryName),
				"install ansible (for example with --select tools=ansible) and re-run")
		}
	}

	logWriter := phaseCtx.Logger()
	opts := append([]ansiblepb.Option{
		ansiblepb.WithStdout(logWriter),
		ansiblepb.WithStderr(logWriter),
		ansiblepb.WithVarsDir(phaseCtx.Options().StagingDir),
	}, p.cfg.Options...)

	if err := p.run(ctx, req, opts...); err != nil {
		return phases.WithAdvice(fmt.Errorf("run playbook: %w", err),
			"re-run with --log-level debug to see the ansible output")
	}
	phaseCtx.Action("ran playbook %s against %s", path, describeTarget(req))
	return nil
}

func (p *Phase) resolvePlaybook(ctx context.Context, phaseCtx *phases.Context) (string, error) {
	opts := []interaction.InputOpt{interaction.Required(),
		interaction.WithDescription("Filesystem path to the playbook to execute.")}
	if p.cfg.PlaybookPath != "" {
		opts = append(opts, interaction.WithDefault(p.cfg.PlaybookPath))
	}
	path, err := phaseCtx.Interaction().Text(ctx, interaction.TextInput(InputPlaybookPath, "Playbook path", opts...))
	if err != nil {
		return "", phases.WithAdvice(err, "set playbook in the config file")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return "", phases.WithAdvice(fmt.Errorf("playbook %s: %w", path, statErr),
			"check the playbook path")
	}
	return path, nil
}

func (p *Phase) remoteIdentity(phaseCtx *phases.Context) (user, key string) {
	user, key = p.cfg.User, p.cfg.KeyPath
	if res, ok := phases.Value[*systemuser.Result](phaseCtx, automationuser.ContextKeyUserResult); ok && res != nil && res.Username != "" {
		user = res.Username
	}
	if info, ok := phases.Value[*sshkeypair.KeyPairInfo](phaseCtx, sshkeys.ContextKeyKeyInfo); ok && info != nil && info.PrivatePath != "" {
		key = info.PrivatePath
	}
	return user, key
}

func describe(req ansiblepb.RunRequest) string {
	parts := []string{"target=" + describeTarget(req)}
	if len(req.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(req.Tags, ","))
	}
	if req.Become {
		parts = append(parts, "become=true")
	}
	return strings.Join(parts, " ")
}

func describeTarget(req ansiblepb.RunRequest) string {
	if req.Local() {
		return "localhost"
	}
	if req.User != "" {
		return req.User + "@" + req.Target
	}
	return req.Target
}
