package docker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/phases/phasetest"
)

func TestDockerOnAptConfiguresRepository(t *testing.T) {
	t.Parallel()

	runner := phasetest.NewRunner(phasetest.Fail("dpkg-query", ""))
	pc := phasetest.NewContext(runner)

	result, err := phasetest.Run(context.Background(), pc, New())
	require.NoError(t, err)
	require.Equal(t, []string{phaseID}, result.Completed)

	cmds := runner.Commands()
	require.True(t, runner.Ran("curl -fsSL 'https://download.docker.com/linux/ubuntu/gpg'"))
	require.True(t, runner.Ran("linux/ubuntu noble stable"))
	require.True(t, runner.Ran("> '/etc/apt/sources.list.d/docker.list'"))
	require.Contains(t, cmds[len(cmds)-1], "apt-get install -y --no-install-recommends docker-ce docker-ce-cli containerd.io")

	require.Equal(t, []string{"remove docker repository", "remove docker-ce, docker-ce-cli, containerd.io"}, pc.Rollback().Labels())
	require.NoError(t, pc.Rollback().RollbackAll())
	require.True(t, runner.Ran("apt-get remove -y docker-ce docker-ce-cli containerd.io"))
	require.True(t, runner.Ran("rm -f '/etc/apt/sources.list.d/docker.list' '/etc/apt/keyrings/docker.asc'"))
}

func TestDockerOnPacmanSkipsRepoAndCLI(t *testing.T) {
	t.Parallel()

	runner := phasetest.NewRunner(phasetest.Fail("pacman -Qi", ""))
	pc := phasetest.NewContext(runner, phases.WithDriver(drivers.NewPacman(), drivers.Platform{ID: "arch"}))

	result, err := phasetest.Run(context.Background(), pc, New())
	require.NoError(t, err)
	require.False(t, runner.Ran("curl"))
	require.True(t, runner.Ran("pacman -S --needed --noconfirm docker containerd"))
	require.Equal(t, []string{"docker-ce-cli has no pacman equivalent, skipped"}, result.Outputs[0].Warnings)
}

func TestDockerDeclinedByOverride(t *testing.T) {
	t.Parallel()

	runner := phasetest.NewRunner()
	svc := interaction.NewService(interaction.WithOverrides(map[string]any{InputConfirm: "no"}))
	pc := phasetest.NewContext(runner, phases.WithInteraction(svc))

	result, err := phasetest.Run(context.Background(), pc, New())
	require.NoError(t, err)
	require.Empty(t, runner.Commands())
	require.Equal(t, []string{"docker installation declined"}, result.Outputs[0].Warnings)
}

func TestDockerConfirmRoutedThroughObserver(t *testing.T) {
	t.Parallel()

	obs := &decliningObserver{}
	svc := interaction.NewService(
		interaction.WithInteractive(true),
		interaction.WithPrompter(phases.ObserverPrompter(obs, nil)),
	)
	pc := phasetest.NewContext(phasetest.NewRunner(), phases.WithInteraction(svc))

	_, err := phasetest.Run(context.Background(), pc, New())
	require.NoError(t, err)
	require.Len(t, obs.prompts, 1)
	require.Contains(t, obs.prompts[0], "Install Docker Engine?")
}

type decliningObserver struct {
	phases.NoopObserver
	prompts []string
}

func (o *decliningObserver) Confirm(prompt string) bool {
	o.prompts = append(o.prompts, prompt)
	return false
}
