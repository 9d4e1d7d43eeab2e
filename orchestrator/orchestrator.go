// Package orchestrator drives a complete provisioning run: it takes the
// installer lock, detects the target platform, selects a package driver,
// acquires privileges, builds the gated phase list and runs it, then writes
// the run report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/pkg/phasedapp/bundles/provision"
	"github.com/BrianJOC/distro-bootstrap/utils/dryrun"
	"github.com/BrianJOC/distro-bootstrap/utils/instlock"
	"github.com/BrianJOC/distro-bootstrap/utils/privilege"
	"github.com/BrianJOC/distro-bootstrap/utils/rollback"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
	"github.com/BrianJOC/distro-bootstrap/utils/sshconnection"
)

// Pseudo phase IDs for failures that happen before the runner starts.
const (
	PhaseLock       = "installer-lock"
	PhaseConnect    = "connect"
	PhasePlatform   = "platform-detect"
	PhaseDriver     = "driver-select"
	PhasePrivileges = "privileges"
	PhaseRegistry   = "phase-table"

	// InputDriver is the decision point for the package driver.
	InputDriver = "driver"
	// InputSudoPassword is the decision point for the sudo password.
	InputSudoPassword = "sudo.password"

	reportFile = "report.json"
)

// Orchestrator runs the provisioning pipeline against one target.
type Orchestrator struct {
	opts        phases.RunOptions
	registry    *phases.Registry
	drivers     []drivers.Driver
	shell       shell.Runner
	remote      *sshconnection.Target
	dialOpts    []sshconnection.Option
	interaction *interaction.Service
	credentials *privilege.Credentials
	observers   []phases.Observer
	logger      zerolog.Logger
	lockPath    string
	reportPath  string
	interrupted func() bool
	keepAlive   time.Duration
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunOptions sets the run options snapshot.
func WithRunOptions(opts phases.RunOptions) Option {
	return func(o *Orchestrator) { o.opts = opts.Clone() }
}

// WithRegistry replaces the default phase table.
func WithRegistry(r *phases.Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithDrivers replaces the compiled-in driver list.
func WithDrivers(list ...drivers.Driver) Option {
	return func(o *Orchestrator) {
		if len(list) > 0 {
			o.drivers = list
		}
	}
}

// WithShellRunner sets the unprivileged runner for the target. It takes
// precedence over WithRemote.
func WithShellRunner(r shell.Runner) Option {
	return func(o *Orchestrator) { o.shell = r }
}

// WithRemote provisions target over SSH instead of the local machine.
func WithRemote(target sshconnection.Target, opts ...sshconnection.Option) Option {
	return func(o *Orchestrator) {
		t := target
		o.remote = &t
		o.dialOpts = opts
	}
}

// WithInteraction sets the service that resolves decision points.
func WithInteraction(s *interaction.Service) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.interaction = s
		}
	}
}

// WithCredentials shares a password holder, for example one pre-filled from
// the environment.
func WithCredentials(c *privilege.Credentials) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.credentials = c
		}
	}
}

// WithObserver adds a runner observer. Nil observers are ignored.
func WithObserver(obs phases.Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger for the orchestrator and everything it builds.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithLockPath overrides the installer lock location.
func WithLockPath(path string) Option {
	return func(o *Orchestrator) { o.lockPath = path }
}

// WithReportPath overrides <staging>/report.json.
func WithReportPath(path string) Option {
	return func(o *Orchestrator) { o.reportPath = path }
}

// WithInterruptCheck is polled by the runner between phases.
func WithInterruptCheck(check func() bool) Option {
	return func(o *Orchestrator) { o.interrupted = check }
}

// WithKeepAliveInterval sets how often sudo credentials are refreshed.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.keepAlive = d }
}

// New builds an Orchestrator. Without options it provisions the local
// machine with the default phase table, non-interactively.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:    provision.Registry(provision.Settings{}),
		drivers:     drivers.All(),
		interaction: interaction.NewService(),
		credentials: privilege.NewCredentials(),
		logger:      zerolog.Nop(),
		keepAlive:   privilege.DefaultKeepAliveInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// ReportPath returns where Run writes the report.
func (o *Orchestrator) ReportPath() string {
	if o.reportPath != "" {
		return o.reportPath
	}
	if o.opts.StagingDir == "" {
		return ""
	}
	return filepath.Join(o.opts.StagingDir, reportFile)
}

// PlannedPhase is one registry entry and whether its gate admits the run.
type PlannedPhase struct {
	Meta     phases.PhaseMetadata `json:"phase"`
	Gate     string               `json:"gate"`
	Included bool                 `json:"included"`
}

// Plan describes what Run would execute.
type Plan struct {
	Platform drivers.Platform  `json:"platform"`
	Driver   string            `json:"driver"`
	Options  phases.RunOptions `json:"options"`
	Phases   []PlannedPhase    `json:"phases"`
}

// Included returns the metadata of admitted phases in execution order.
func (p *Plan) Included() []phases.PhaseMetadata {
	var out []phases.PhaseMetadata
	for _, ph := range p.Phases {
		if ph.Included {
			out = append(out, ph.Meta)
		}
	}
	return out
}

// Plan detects the platform, selects the driver and evaluates every gate
// without taking the lock, acquiring privileges or running anything.
func (o *Orchestrator) Plan(ctx context.Context) (*Plan, error) {
	runner, closeFn, ierr := o.connect(ctx)
	if ierr != nil {
		return nil, ierr
	}
	defer closeFn()

	platform, driver, ierr := o.resolveDriver(ctx, runner)
	if ierr != nil {
		return nil, ierr
	}
	if _, err := o.registry.Build(o.opts); err != nil {
		return nil, o.setupError(PhaseRegistry, "Build phase table", err)
	}

	plan := &Plan{Platform: platform, Driver: driver.Name(), Options: o.opts.Clone()}
	for _, entry := range o.registry.Entries() {
		if entry.New == nil {
			continue
		}
		phase := entry.New()
		if phase == nil {
			continue
		}
		plan.Phases = append(plan.Phases, PlannedPhase{
			Meta:     phase.Metadata(),
			Gate:     entry.Gate.String(),
			Included: entry.Gate.Allows(o.opts),
		})
	}
	return plan, nil
}

// Run executes the pipeline under the installer lock and always returns the
// report, alongside any error. A phase failure that stopped the run yields a
// *phases.AbortError; failures before the first phase yield a Fatal
// *phases.InstallerError. The report file is not written when the lock is
// held by another run.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report := newReport(o.opts, o.now())
	log := o.logger.With().Str("run_id", report.RunID).Logger()

	entered := false
	var runErr error
	lockErr := instlock.With(o.lockPath, func() error {
		entered = true
		runErr = o.run(ctx, report, log)
		return runErr
	})
	if !entered {
		ierr := o.setupError(PhaseLock, "Acquire installer lock", lockAdvice(lockErr))
		log.Error().Err(lockErr).Msg("installer lock unavailable")
		report.fail(ierr)
		report.finish(o.now())
		return report, ierr
	}

	report.finish(o.now())
	if path := o.ReportPath(); path != "" {
		if err := report.WriteJSON(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to write report")
			if runErr == nil {
				runErr = fmt.Errorf("write report: %w", err)
			}
		} else {
			report.Path = path
			log.Info().Str("path", path).Msg("report written")
		}
	}
	return report, runErr
}

func (o *Orchestrator) run(ctx context.Context, report *Report, log zerolog.Logger) error {
	runner, closeFn, ierr := o.connect(ctx)
	if ierr != nil {
		report.fail(ierr)
		return ierr
	}
	defer closeFn()

	platform, driver, ierr := o.resolveDriver(ctx, runner)
	if ierr != nil {
		report.fail(ierr)
		return ierr
	}
	report.Platform = platform
	report.Driver = driver.Name()
	log = log.With().Str("driver", driver.Name()).Logger()
	log.Info().Str("platform", platform.String()).Msg("driver selected")

	elevator := privilege.NewElevator(runner, o.credentials)
	if ierr := o.acquirePrivileges(ctx, elevator); ierr != nil {
		report.fail(ierr)
		return ierr
	}
	if elevator.Mode() == privilege.ModeSudoPassword {
		keepAlive := privilege.StartKeepAlive(ctx, elevator, o.keepAlive, log)
		defer keepAlive.Stop()
	}

	list, err := o.registry.Build(o.opts)
	if err != nil {
		ierr := o.setupError(PhaseRegistry, "Build phase table", err)
		report.fail(ierr)
		return ierr
	}

	runnerOpts := []phases.RunnerOption{phases.WithLogger(log), phases.WithInterruptCheck(o.interrupted)}
	for _, obs := range o.observers {
		runnerOpts = append(runnerOpts, phases.WithObserver(obs))
	}
	phaseRunner := phases.NewRunner(runnerOpts...)
	if err := phaseRunner.Register(list...); err != nil {
		ierr := o.setupError(PhaseRegistry, "Build phase table", err)
		report.fail(ierr)
		return ierr
	}

	ledger := dryrun.New()
	phaseCtx := phases.NewContext(
		phases.WithOptions(o.opts),
		phases.WithDriver(driver, platform),
		phases.WithCommandRunner(elevator),
		phases.WithInteraction(o.interaction),
		phases.WithCredentials(o.credentials),
		phases.WithRollback(rollback.New(rollback.WithLogger(log))),
		phases.WithLedger(ledger),
		phases.WithContextLogger(log),
	)

	result, err := phaseRunner.Run(ctx, phaseCtx)
	report.absorb(result, ledger.Entries())
	return err
}

// connect returns the runner for the target and a function releasing it.
func (o *Orchestrator) connect(ctx context.Context) (shell.Runner, func(), *phases.InstallerError) {
	if o.shell != nil {
		return o.shell, func() {}, nil
	}
	if o.remote == nil {
		return shell.NewLocal(), func() {}, nil
	}

	client, err := sshconnection.Dial(ctx, *o.remote, o.dialOpts...)
	if err != nil {
		advice := "check the host, user and key, and that the host key is in known_hosts"
		return nil, nil, o.setupError(PhaseConnect, "Connect to "+o.remote.Addr(), phases.WithAdvice(err, advice))
	}
	o.logger.Info().Str("addr", o.remote.Addr()).Msg("connected")
	return shell.NewSSH(client), func() { closeClient(client) }, nil
}

func closeClient(client *ssh.Client) {
	if client != nil {
		_ = client.Close()
	}
}

func (o *Orchestrator) resolveDriver(ctx context.Context, runner shell.Runner) (drivers.Platform, drivers.Driver, *phases.InstallerError) {
	platform, err := drivers.DetectPlatform(ctx, runner)
	if err != nil {
		return drivers.Platform{}, nil, o.setupError(PhasePlatform, "Detect platform",
			phases.WithAdvice(err, "the target must provide /etc/os-release"))
	}

	if v, ok := o.interaction.Override(InputDriver); ok {
		name := fmt.Sprint(v)
		driver, found := drivers.ByName(o.drivers, name)
		if !found {
			return platform, nil, o.setupError(PhaseDriver, "Select package driver",
				phases.WithAdvice(drivers.UnknownDriverError{Name: name}, o.driverAdvice()))
		}
		return platform, driver, nil
	}

	var choose drivers.ChooseFunc
	if o.interaction.Interactive() {
		choose = func(p drivers.Platform, all []drivers.Driver) (drivers.Driver, error) {
			return o.chooseDriver(ctx, p, all)
		}
	}
	driver, err := drivers.Select(platform, o.drivers, choose)
	if err != nil {
		return platform, nil, o.setupError(PhaseDriver, "Select package driver",
			phases.WithAdvice(err, o.driverAdvice()))
	}
	return platform, driver, nil
}

func (o *Orchestrator) chooseDriver(ctx context.Context, p drivers.Platform, all []drivers.Driver) (drivers.Driver, error) {
	options := make([]interaction.Option, 0, len(all))
	for _, d := range all {
		options = append(options, interaction.Option{Value: d.Name(), Label: d.Name(), Description: d.Description()})
	}
	in := interaction.SelectInput(InputDriver, "Package driver", options,
		interaction.WithDescription(fmt.Sprintf("no driver matches %s", p)))
	name, err := o.interaction.Choose(ctx, in)
	if err != nil {
		return nil, err
	}
	d, _ := drivers.ByName(all, name)
	return d, nil
}

func (o *Orchestrator) driverAdvice() string {
	names := ""
	for i, d := range o.drivers {
		if i > 0 {
			names += ", "
		}
		names += d.Name()
	}
	return "pick a driver with --driver (one of " + names + ")"
}

func (o *Orchestrator) acquirePrivileges(ctx context.Context, elevator *privilege.Elevator) *phases.InstallerError {
	meta := "Acquire root privileges"
	needs, err := elevator.NeedsPassword(ctx)
	if err != nil {
		return o.setupError(PhasePrivileges, meta, phases.WithAdvice(err, "install sudo or run as root"))
	}
	if needs {
		password, err := o.interaction.Text(ctx, interaction.SecretInput(InputSudoPassword, "Sudo password",
			interaction.Required(), interaction.WithDescription("needed to run package and user commands as root")))
		if err != nil {
			return o.setupError(PhasePrivileges, meta,
				phases.WithAdvice(err, "run interactively or set interaction.sudo.password in the config file"))
		}
		o.credentials.Set(password)
	}
	if err := elevator.Validate(ctx); err != nil {
		o.credentials.Clear()
		return o.setupError(PhasePrivileges, meta, phases.WithAdvice(err, "check the sudo password and sudoers entry"))
	}
	o.logger.Info().Str("mode", string(elevator.Mode())).Msg("privileges acquired")
	return nil
}

// setupError reports a failure outside any phase. Such failures always stop
// the run.
func (o *Orchestrator) setupError(id, title string, err error) *phases.InstallerError {
	meta := phases.PhaseMetadata{ID: id, Title: title, Severity: phases.Fatal}
	return phases.NewInstallerError(meta, err, o.opts)
}

func lockAdvice(err error) error {
	var running instlock.AlreadyRunningError
	if errors.As(err, &running) {
		return phases.WithAdvice(err, "wait for the other run to finish, or remove "+running.Path+" if no run is active")
	}
	var lockErr instlock.LockError
	if errors.As(err, &lockErr) && errors.Is(lockErr.Err, os.ErrPermission) {
		return phases.WithAdvice(err, "the lock directory is not writable; set XDG_RUNTIME_DIR")
	}
	return err
}
