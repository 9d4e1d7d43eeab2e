package rollback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollbackAllRunsInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []string
	m := New()
	for _, label := range []string{"first", "second", "third"} {
		label := label
		m.Register(label, func() error {
			order = append(order, label)
			return nil
		})
	}

	require.Equal(t, 3, m.Len())
	require.NoError(t, m.RollbackAll())
	require.Equal(t, []string{"third", "second", "first"}, order)
	require.Zero(t, m.Len())
}

func TestRollbackAllContinuesPastFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := map[string]int{}
	m := New()
	m.Register("a", func() error { calls["a"]++; return nil })
	m.Register("b", func() error { calls["b"]++; return boom })
	m.Register("c", func() error { calls["c"]++; panic("kaboom") })
	m.Register("d", func() error { calls["d"]++; return nil })

	err := m.RollbackAll()
	require.Error(t, err)

	var rbErr *RollbackError
	require.ErrorAs(t, err, &rbErr)
	require.Equal(t, []string{"c", "b"}, rbErr.FailedLabels())
	require.ErrorIs(t, err, boom)
	require.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, calls)
}

func TestRollbackAllDiscardsEntries(t *testing.T) {
	t.Parallel()

	count := 0
	m := New()
	m.Register("once", func() error { count++; return errors.New("fail") })

	require.Error(t, m.RollbackAll())
	require.NoError(t, m.RollbackAll())
	require.Equal(t, 1, count)
}

func TestRegisterIgnoresNilAction(t *testing.T) {
	t.Parallel()

	m := New()
	m.Register("nil", nil)
	require.Zero(t, m.Len())
	require.Empty(t, m.Labels())

	var nilManager *Manager
	nilManager.Register("x", func() error { return nil })
	require.NoError(t, nilManager.RollbackAll())
}
