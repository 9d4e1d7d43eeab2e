package phases

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/utils/dryrun"
	"github.com/BrianJOC/distro-bootstrap/utils/privilege"
	"github.com/BrianJOC/distro-bootstrap/utils/rollback"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

// CommandRunner executes commands as root on the target.
// *privilege.Elevator satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, cmd string) (shell.Result, error)
}

// Context is the per-run state shared by every phase: options, driver,
// rollback stack, dry-run ledger, privileged runner, interaction service and
// a key/value store for values phases hand to each other.
type Context struct {
	mu    sync.RWMutex
	store map[string]any

	options     RunOptions
	driver      drivers.Driver
	platform    drivers.Platform
	rollback    *rollback.Manager
	ledger      *dryrun.Ledger
	runner      CommandRunner
	interaction *interaction.Service
	credentials *privilege.Credentials
	logger      zerolog.Logger

	current  PhaseMetadata
	actions  []string
	warnings []string
	emit     func(Event)
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithOptions sets the run options. They are cloned.
func WithOptions(opts RunOptions) ContextOption {
	return func(c *Context) { c.options = opts.Clone() }
}

// WithDriver sets the package driver and the platform it was selected for.
func WithDriver(d drivers.Driver, p drivers.Platform) ContextOption {
	return func(c *Context) {
		c.driver = d
		c.platform = p
	}
}

// WithRollback sets the rollback manager.
func WithRollback(m *rollback.Manager) ContextOption {
	return func(c *Context) {
		if m != nil {
			c.rollback = m
		}
	}
}

// WithLedger sets the dry-run ledger.
func WithLedger(l *dryrun.Ledger) ContextOption {
	return func(c *Context) {
		if l != nil {
			c.ledger = l
		}
	}
}

// WithCommandRunner sets the privileged command runner.
func WithCommandRunner(r CommandRunner) ContextOption {
	return func(c *Context) { c.runner = r }
}

// WithInteraction sets the interaction service.
func WithInteraction(s *interaction.Service) ContextOption {
	return func(c *Context) {
		if s != nil {
			c.interaction = s
		}
	}
}

// WithCredentials sets the credential holder.
func WithCredentials(creds *privilege.Credentials) ContextOption {
	return func(c *Context) {
		if creds != nil {
			c.credentials = creds
		}
	}
}

// WithContextLogger sets the logger phases write to.
func WithContextLogger(logger zerolog.Logger) ContextOption {
	return func(c *Context) { c.logger = logger }
}

// NewContext creates a context. Unset collaborators get empty defaults: a
// fresh rollback manager and ledger, a non-interactive interaction service,
// no command runner.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		store:       make(map[string]any),
		rollback:    rollback.New(),
		ledger:      dryrun.New(),
		interaction: interaction.NewService(),
		credentials: privilege.NewCredentials(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Set assigns a value under the provided key.
func (c *Context) Set(key string, value any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}

// Get retrieves a value, returning false when the key is not present.
func (c *Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.store[key]
	return val, ok
}

// Value retrieves a typed value. A missing key or a value of another type
// reports false.
func Value[T any](c *Context, key string) (T, bool) {
	var zero T
	val, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// MustGet returns the value or panics if the key is missing.
func (c *Context) MustGet(key string) any {
	val, ok := c.Get(key)
	if !ok {
		panic("phases: missing context key " + key)
	}
	return val
}

// Options returns a copy of the run options.
func (c *Context) Options() RunOptions {
	return c.options.Clone()
}

// DryRun reports whether mutating commands are recorded instead of run.
func (c *Context) DryRun() bool {
	return c.options.DryRun
}

// Driver returns the selected package driver.
func (c *Context) Driver() drivers.Driver {
	return c.driver
}

// Platform returns the detected target platform.
func (c *Context) Platform() drivers.Platform {
	return c.platform
}

// Rollback returns the run's rollback manager.
func (c *Context) Rollback() *rollback.Manager {
	return c.rollback
}

// Ledger returns the run's dry-run ledger.
func (c *Context) Ledger() *dryrun.Ledger {
	return c.ledger
}

// Interaction returns the decision resolver.
func (c *Context) Interaction() *interaction.Service {
	return c.interaction
}

// Credentials returns the run's credential holder.
func (c *Context) Credentials() *privilege.Credentials {
	return c.credentials
}

// Logger returns a logger tagged with the current phase.
func (c *Context) Logger() zerolog.Logger {
	c.mu.RLock()
	id := c.current.ID
	c.mu.RUnlock()
	if id == "" {
		return c.logger
	}
	return c.logger.With().Str("phase", id).Logger()
}

// CurrentPhase returns the metadata of the phase being executed.
func (c *Context) CurrentPhase() PhaseMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// AddRollback registers a compensating action, skipped in dry-run since
// nothing was changed.
func (c *Context) AddRollback(label string, action rollback.Action) {
	if c.DryRun() {
		return
	}
	c.rollback.Register(label, action)
}

// Action records a human-readable step taken by the current phase.
func (c *Context) Action(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.mu.Lock()
	c.actions = append(c.actions, msg)
	c.mu.Unlock()
	log := c.Logger()
	log.Info().Msg(msg)
}

// Warn records a warning and forwards it to observers as a Warning event.
func (c *Context) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	emit := c.emit
	c.mu.Unlock()
	log := c.Logger()
	log.Warn().Msg(msg)
	if emit != nil {
		emit(Event{Kind: EventWarning, Message: msg})
	}
}

// RecordDryRun appends an entry for the current phase to the ledger.
func (c *Context) RecordDryRun(action, detail string) {
	c.ledger.Record(c.CurrentPhase().ID, action, detail)
}

// Exec runs a mutating command as root, or records it when in dry-run.
func (c *Context) Exec(ctx context.Context, action, cmd string) (shell.Result, error) {
	if c.DryRun() {
		c.RecordDryRun(action, cmd)
		c.Action("[dry-run] %s", action)
		return shell.Result{Command: cmd}, nil
	}
	c.Action("%s", action)
	return c.Probe(ctx, cmd)
}

// Probe runs a read-only command as root. It executes even in dry-run.
func (c *Context) Probe(ctx context.Context, cmd string) (shell.Result, error) {
	if c.runner == nil {
		return shell.Result{Command: cmd}, ValidationError{Reason: "no command runner configured"}
	}
	log := c.Logger()
	log.Debug().Str("command", cmd).Msg("exec")
	return c.runner.Run(ctx, cmd)
}

func (c *Context) beginPhase(meta PhaseMetadata, emit func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = meta
	c.actions = nil
	c.warnings = nil
	c.emit = emit
}

func (c *Context) endPhase() (actions, warnings []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	actions, warnings = c.actions, c.warnings
	c.current = PhaseMetadata{}
	c.actions = nil
	c.warnings = nil
	c.emit = nil
	return actions, warnings
}
