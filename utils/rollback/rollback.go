// Package rollback keeps a LIFO stack of compensating actions registered while
// a provisioning run mutates the system.
package rollback

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Action undoes a single change.
type Action func() error

type entry struct {
	label  string
	action Action
}

// Manager records compensating actions and replays them in reverse order.
type Manager struct {
	mu      sync.Mutex
	entries []entry
	logger  zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used while unwinding.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New constructs an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Register pushes a compensating action. Nil actions are ignored.
func (m *Manager) Register(label string, action Action) {
	if m == nil || action == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{label: label, action: action})
}

// Len reports how many actions are pending.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Labels returns pending labels in registration order.
func (m *Manager) Labels() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.label)
	}
	return out
}

// RollbackAll pops and invokes every pending action, newest first. Every
// action is attempted exactly once even when earlier ones fail or panic; the
// returned *RollbackError lists each failure.
func (m *Manager) RollbackAll() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	pending := m.entries
	m.entries = nil
	m.mu.Unlock()

	var failures []Failure
	for i := len(pending) - 1; i >= 0; i-- {
		e := pending[i]
		m.logger.Info().Str("action", e.label).Msg("rolling back")
		if err := invoke(e.action); err != nil {
			m.logger.Error().Err(err).Str("action", e.label).Msg("rollback action failed")
			failures = append(failures, Failure{Label: e.label, Err: err})
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return &RollbackError{Failures: failures}
}

func invoke(action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return action()
}
