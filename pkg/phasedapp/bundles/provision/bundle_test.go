package provision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BrianJOC/distro-bootstrap/phases"
)

func ids(t *testing.T, opts phases.RunOptions) []string {
	t.Helper()
	list, err := Registry(Settings{}).Build(opts)
	require.NoError(t, err)
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Metadata().ID)
	}
	return out
}

func TestRegistryGates(t *testing.T) {
	t.Parallel()

	allFeatures := map[string]bool{}
	for _, f := range Features() {
		allFeatures[f] = true
	}

	tests := []struct {
		name string
		opts phases.RunOptions
		want []string
	}{
		{
			name: "minimal",
			opts: phases.RunOptions{Profile: phases.ProfileMinimal},
			want: []string{"preflight", "repo-refresh", "base-packages"},
		},
		{
			name: "dev",
			opts: phases.RunOptions{Profile: phases.ProfileDev},
			want: []string{"preflight", "repo-refresh", "base-packages", "dev-toolchain"},
		},
		{
			name: "selection only",
			opts: phases.RunOptions{Selections: map[string][]string{"editors": {"neovim"}}},
			want: []string{"preflight", "repo-refresh", "base-packages", "software"},
		},
		{
			name: "disabled feature",
			opts: phases.RunOptions{Features: map[string]bool{FeatureDocker: false}},
			want: []string{"preflight", "repo-refresh", "base-packages"},
		},
		{
			name: "everything",
			opts: phases.RunOptions{
				Profile:    phases.ProfileFull,
				Features:   allFeatures,
				Selections: map[string][]string{"editors": {"neovim"}},
			},
			want: []string{
				"preflight", "repo-refresh", "base-packages", "dev-toolchain", "docker", "software",
				"ssh-keys", "automation-user", "dotfiles", "python-runtime", "playbook", "services",
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ids(t, tc.opts))
		})
	}
}

func TestRegistryIsDeterministic(t *testing.T) {
	t.Parallel()

	opts := phases.RunOptions{Profile: phases.ProfileFull, Features: map[string]bool{FeatureDocker: true}}
	require.Equal(t, ids(t, opts), ids(t, opts))
}
