package phases

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

type recordingRunner struct {
	commands []string
}

func (r *recordingRunner) Run(_ context.Context, cmd string) (shell.Result, error) {
	r.commands = append(r.commands, cmd)
	return shell.Result{Command: cmd, Stdout: "ok"}, nil
}

func TestContextExecRecordsInDryRun(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	pc := NewContext(WithOptions(RunOptions{DryRun: true}), WithCommandRunner(runner))
	pc.beginPhase(PhaseMetadata{ID: "base-packages"}, nil)

	res, err := pc.Exec(context.Background(), "install curl", "apt-get install -y curl")
	require.NoError(t, err)
	require.Equal(t, "apt-get install -y curl", res.Command)
	require.Empty(t, runner.commands)

	_, err = pc.Probe(context.Background(), "dpkg-query -W curl")
	require.NoError(t, err)
	require.Equal(t, []string{"dpkg-query -W curl"}, runner.commands)

	pc.AddRollback("remove curl", func() error { return nil })
	require.Zero(t, pc.Rollback().Len())

	entries := pc.Ledger().Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "base-packages", entries[0].Phase)
	require.Equal(t, "install curl", entries[0].Action)
	require.Equal(t, "apt-get install -y curl", entries[0].Detail)

	actions, _ := pc.endPhase()
	require.Equal(t, []string{"[dry-run] install curl"}, actions)
}

func TestContextExecRunsWhenLive(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	pc := NewContext(WithCommandRunner(runner))
	res, err := pc.Exec(context.Background(), "refresh", "apt-get update")
	require.NoError(t, err)
	require.Equal(t, "ok", res.Stdout)
	require.Equal(t, []string{"apt-get update"}, runner.commands)
	require.Zero(t, pc.Ledger().Len())

	pc.AddRollback("undo", func() error { return nil })
	require.Equal(t, 1, pc.Rollback().Len())
}

func TestContextWithoutRunner(t *testing.T) {
	t.Parallel()

	pc := NewContext()
	_, err := pc.Probe(context.Background(), "true")
	require.IsType(t, ValidationError{}, err)
	require.False(t, pc.Interaction().Interactive())
}

func TestContextStore(t *testing.T) {
	t.Parallel()

	pc := NewContext()
	pc.Set("sshkeys:public", "ssh-rsa AAA")
	val, ok := pc.Get("sshkeys:public")
	require.True(t, ok)
	require.Equal(t, "ssh-rsa AAA", val)
	require.Panics(t, func() { pc.MustGet("missing") })

	typed, ok := Value[string](pc, "sshkeys:public")
	require.True(t, ok)
	require.Equal(t, "ssh-rsa AAA", typed)
	_, ok = Value[int](pc, "sshkeys:public")
	require.False(t, ok)
	_, ok = Value[string](pc, "missing")
	require.False(t, ok)
}

func TestContextOptionsAreCopied(t *testing.T) {
	t.Parallel()

	opts := RunOptions{Features: map[string]bool{"docker": true}}
	pc := NewContext(WithOptions(opts))
	opts.Features["docker"] = false

	got := pc.Options()
	require.True(t, got.Features["docker"])
	got.Features["docker"] = false
	require.True(t, pc.Options().Features["docker"])
}

func TestObserverPrompterRoutesConfirm(t *testing.T) {
	t.Parallel()

	obs := &confirmObserver{answer: false}
	next := interaction.PrompterFunc(func(context.Context, interaction.Input) (any, error) {
		return "typed", nil
	})
	p := ObserverPrompter(obs, next)

	ans, err := p.Prompt(context.Background(), interaction.ConfirmInput("docker.confirm", "Install Docker?"))
	require.NoError(t, err)
	require.Equal(t, false, ans)
	require.Equal(t, []string{"Install Docker?"}, obs.prompts)

	ans, err = p.Prompt(context.Background(), interaction.TextInput("name", "Name"))
	require.NoError(t, err)
	require.Equal(t, "typed", ans)

	_, err = ObserverPrompter(obs, nil).Prompt(context.Background(), interaction.TextInput("name", "Name"))
	require.Error(t, err)
}

type confirmObserver struct {
	NoopObserver
	answer  bool
	prompts []string
}

func (o *confirmObserver) Confirm(prompt string) bool {
	o.prompts = append(o.prompts, prompt)
	return o.answer
}

func TestContextLogsActionsWarningsAndCommands(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	runner := &recordingRunner{}
	pc := NewContext(
		WithCommandRunner(runner),
		WithContextLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)),
	)
	pc.beginPhase(PhaseMetadata{ID: "docker"}, nil)

	pc.Action("added %s repository", "docker")
	pc.Warn("mirror slow")
	_, err := pc.Probe(context.Background(), "command -v docker")
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, `"level":"info"`)
	require.Contains(t, out, "added docker repository")
	require.Contains(t, out, `"level":"warn"`)
	require.Contains(t, out, "mirror slow")
	require.Contains(t, out, `"command":"command -v docker"`)
	require.Contains(t, out, `"phase":"docker"`)
}
