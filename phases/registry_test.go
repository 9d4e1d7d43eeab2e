package phases

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	ctor := func(id string) func() Phase {
		return func() Phase { return &fakePhase{meta: PhaseMetadata{ID: id}} }
	}
	return NewRegistry(
		Entry{Gate: Always(), New: ctor("preflight")},
		Entry{Gate: ProfileAtLeast(ProfileDev), New: ctor("dev-toolchain")},
		Entry{Gate: FeatureEnabled("docker"), New: ctor("docker")},
		Entry{Gate: SelectionNonEmpty(""), New: ctor("software")},
		Entry{Gate: SelectionNonEmpty("editors"), New: ctor("editors")},
		Entry{Gate: ProfileAtLeast(ProfileFull), New: ctor("services")},
	)
}

func ids(list []Phase) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Metadata().ID)
	}
	return out
}

func TestRegistryBuildFiltersInDeclarationOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts RunOptions
		want []string
	}{
		{
			name: "minimal",
			opts: RunOptions{Profile: ProfileMinimal},
			want: []string{"preflight"},
		},
		{
			name: "dev with docker",
			opts: RunOptions{Profile: ProfileDev, Features: map[string]bool{"docker": true}},
			want: []string{"preflight", "dev-toolchain", "docker"},
		},
		{
			name: "full with selection",
			opts: RunOptions{Profile: ProfileFull, Selections: map[string][]string{"browsers": {"firefox"}}},
			want: []string{"preflight", "dev-toolchain", "software", "services"},
		},
		{
			name: "named selection",
			opts: RunOptions{Selections: map[string][]string{"editors": {"neovim"}}},
			want: []string{"preflight", "software", "editors"},
		},
		{
			name: "empty selection list",
			opts: RunOptions{Selections: map[string][]string{"editors": {}}},
			want: []string{"preflight"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := testRegistry()
			first, err := reg.Build(tt.opts)
			require.NoError(t, err)
			second, err := reg.Build(tt.opts)
			require.NoError(t, err)
			require.Equal(t, tt.want, ids(first))
			require.Equal(t, ids(first), ids(second))
		})
	}
}

func TestRegistryBuildEmptyIsValid(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Entry{Gate: FeatureEnabled("nothing"), New: func() Phase { return &fakePhase{meta: PhaseMetadata{ID: "x"}} }})
	list, err := reg.Build(RunOptions{})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRegistryBuildErrors(t *testing.T) {
	t.Parallel()

	dup := NewRegistry().
		Add(Always(), func() Phase { return &fakePhase{meta: PhaseMetadata{ID: "a"}} }).
		Add(Always(), func() Phase { return &fakePhase{meta: PhaseMetadata{ID: "a"}} })
	_, err := dup.Build(RunOptions{})
	require.Equal(t, DuplicatePhaseError{ID: "a"}, err)

	empty := NewRegistry().Add(Always(), func() Phase { return &fakePhase{} })
	_, err = empty.Build(RunOptions{})
	require.IsType(t, ValidationError{}, err)

	gatedDup := NewRegistry().
		Add(Always(), func() Phase { return &fakePhase{meta: PhaseMetadata{ID: "a"}} }).
		Add(FeatureEnabled("off"), func() Phase { return &fakePhase{meta: PhaseMetadata{ID: "a"}} })
	_, err = gatedDup.Build(RunOptions{})
	require.NoError(t, err)
}

func TestProfileGate(t *testing.T) {
	t.Parallel()

	gate := ProfileAtLeast(ProfileDev)
	require.True(t, gate.Allows(RunOptions{Profile: ProfileFull}))
	require.True(t, gate.Allows(RunOptions{Profile: ProfileDev}))
	require.False(t, gate.Allows(RunOptions{Profile: ProfileMinimal}))
	require.Equal(t, "profile>=dev", gate.String())
}

func TestSeverityUnmarshal(t *testing.T) {
	t.Parallel()

	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("fatal")))
	require.Equal(t, Fatal, s)
}
