package sigguard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardTrip(t *testing.T) {
	t.Parallel()

	g := Install()
	defer g.Stop()

	require.False(t, g.Interrupted())
	g.Trip()
	require.True(t, g.Interrupted())
}

func TestGuardStopIsIdempotent(t *testing.T) {
	t.Parallel()

	g := Install()
	g.Stop()
	g.Stop()

	var nilGuard *Guard
	require.False(t, nilGuard.Interrupted())
	nilGuard.Stop()
}
