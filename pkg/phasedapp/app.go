// Package phasedapp hosts a provisioning run inside a Bubble Tea dashboard.
// The run executes on its own goroutine; runner events and operator prompts
// cross into the UI loop over channels, and only prompt round trips block the
// run.
package phasedapp

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
)

var (
	// ErrNoRunFunc indicates New was called without WithRun.
	ErrNoRunFunc = errors.New("phasedapp: a run function is required")
	// ErrProgramRunning reports that Start was invoked while the program is already running.
	ErrProgramRunning = errors.New("phasedapp: program already running")
	// ErrClosed is returned to prompts still pending when the UI exits.
	ErrClosed = errors.New("phasedapp: ui closed")
	// ErrPromptCancelled is returned when the operator dismisses a prompt.
	ErrPromptCancelled = errors.New("phasedapp: input cancelled")
)

// RunFunc performs the installation. obs receives runner events and prompter
// answers interaction inputs; both are backed by the dashboard.
type RunFunc func(ctx context.Context, obs phases.Observer, prompter interaction.Prompter) error

// Config controls how an App should be assembled.
type Config struct {
	Title          string
	Plan           []phases.PhaseMetadata
	Run            RunFunc
	ProgramOptions []tea.ProgramOption
}

// Option mutates Config during construction.
type Option func(*Config)

// WithTitle sets the dashboard heading.
func WithTitle(title string) Option {
	return func(cfg *Config) {
		if cfg == nil {
			return
		}
		cfg.Title = title
	}
}

// WithPlan pre-populates the phase list so pending phases are visible before
// the runner reaches them.
func WithPlan(metas ...phases.PhaseMetadata) Option {
	return func(cfg *Config) {
		if cfg == nil {
			return
		}
		cfg.Plan = append(cfg.Plan, metas...)
	}
}

// WithRun sets the function the dashboard drives.
func WithRun(fn RunFunc) Option {
	return func(cfg *Config) {
		if cfg == nil {
			return
		}
		cfg.Run = fn
	}
}

// WithProgramOptions appends tea.Program options.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(cfg *Config) {
		if cfg == nil {
			return
		}
		cfg.ProgramOptions = append(cfg.ProgramOptions, opts...)
	}
}

// App hosts the Bubble Tea dashboard around one run.
type App struct {
	cfg      Config
	mu       sync.Mutex
	program  *tea.Program
	inFlight bool
}

// New constructs an App from the provided options.
func New(opts ...Option) (*App, error) {
	cfg := Config{Title: "distro-bootstrap"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Run == nil {
		return nil, ErrNoRunFunc
	}
	return &App{cfg: cfg}, nil
}

// Start runs the dashboard until the operator quits or ctx is cancelled.
// The run is cancelled when the dashboard exits and Start waits for it to
// return, so rollback has finished by the time Start does. The run's error
// takes precedence over the program's.
func (a *App) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	if a.inFlight {
		a.mu.Unlock()
		return ErrProgramRunning
	}
	br := newBridge()
	program := tea.NewProgram(newModel(a.cfg, br), a.cfg.ProgramOptions...)
	a.program = program
	a.inFlight = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.program = nil
		a.inFlight = false
		a.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		err := a.cfg.Run(runCtx, br, br)
		runDone <- err
		br.finish(err)
	}()

	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			program.Quit()
		case <-stopWatch:
		}
	}()

	_, progErr := program.Run()
	close(stopWatch)
	br.close()
	cancel()

	if runErr := <-runDone; runErr != nil {
		return runErr
	}
	return progErr
}

// Stop signals the running program (if any) to exit.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.program == nil {
		return nil
	}
	a.program.Quit()
	return nil
}
