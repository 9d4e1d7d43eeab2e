package phases

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Runner executes an ordered phase list under an error policy.
type Runner struct {
	phases      []Phase
	observers   []Observer
	logger      zerolog.Logger
	interrupted func() bool
	now         func() time.Time
}

// RunnerOption mutates runner configuration.
type RunnerOption func(*Runner)

// WithObserver registers an observer to receive lifecycle events.
func WithObserver(obs Observer) RunnerOption {
	return func(r *Runner) {
		if obs == nil {
			return
		}
		r.observers = append(r.observers, obs)
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithInterruptCheck installs a probe polled before each phase. When it
// returns true the run aborts.
func WithInterruptCheck(check func() bool) RunnerOption {
	return func(r *Runner) {
		r.interrupted = check
	}
}

// NewRunner constructs an empty Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Register appends phases, returning an error on duplicate or empty IDs.
func (r *Runner) Register(phases ...Phase) error {
	for _, p := range phases {
		if p == nil {
			continue
		}
		meta := p.Metadata()
		if meta.ID == "" {
			return ValidationError{Reason: "phase id must not be empty"}
		}
		if r.hasPhase(meta.ID) {
			return DuplicatePhaseError{ID: meta.ID}
		}
		r.phases = append(r.phases, p)
	}
	return nil
}

// Phases returns the registered phases in order.
func (r *Runner) Phases() []Phase {
	out := make([]Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

// Run executes every registered phase in order. Under ContinueOnError a
// recoverable failure is recorded and the run continues; any other failure,
// and every Fatal one, stops the run, unwinds the rollback stack and returns
// the partial result with an *AbortError.
func (r *Runner) Run(ctx context.Context, phaseCtx *Context) (*RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if phaseCtx == nil {
		phaseCtx = NewContext()
	}
	opts := phaseCtx.Options()
	policy := opts.Policy()
	total := len(r.phases)
	result := &RunResult{Completed: []string{}}

	r.logger.Info().Int("phases", total).Str("policy", policy.String()).Bool("dry_run", opts.DryRun).Msg("run starting")
	r.emit(result, Event{Kind: EventTotalCount, Total: total})

	for i, phase := range r.phases {
		i := i
		meta := phase.Metadata()
		log := r.logger.With().Str("phase", meta.ID).Logger()

		if reason := r.interruptReason(ctx); reason != nil {
			fatal := meta
			fatal.Severity = Fatal
			cause := NewInstallerError(fatal, InterruptedError{Next: meta.ID, Err: reason}, opts)
			result.Errors = append(result.Errors, cause)
			log.Warn().Err(reason).Msg("run interrupted")
			return r.abort(result, phaseCtx, cause)
		}

		r.emit(result, Event{Kind: EventPhaseStarted, Index: i, Total: total, Phase: meta})
		phaseCtx.beginPhase(meta, func(ev Event) {
			ev.Index, ev.Total, ev.Phase = i, total, meta
			r.emit(result, ev)
		})

		if !phase.ShouldRun(phaseCtx) {
			actions, warnings := phaseCtx.endPhase()
			result.Outputs = append(result.Outputs, PhaseOutput{
				Phase: meta.ID, Status: StatusSkipped, Actions: actions, Warnings: warnings, DryRun: opts.DryRun,
			})
			log.Info().Msg("phase skipped")
			r.emit(result, Event{Kind: EventPhaseSkipped, Index: i, Total: total, Phase: meta})
			continue
		}

		log.Info().Msg("phase starting")
		start := r.now()
		err := execute(ctx, phaseCtx, phase)
		duration := r.now().Sub(start)
		actions, warnings := phaseCtx.endPhase()
		output := PhaseOutput{
			Phase: meta.ID, Actions: actions, Warnings: warnings, DryRun: opts.DryRun, Duration: duration,
		}

		if err == nil {
			output.Status = StatusCompleted
			result.Outputs = append(result.Outputs, output)
			result.Completed = append(result.Completed, meta.ID)
			log.Info().Dur("duration", duration).Msg("phase completed")
			r.emit(result, Event{Kind: EventPhaseCompleted, Index: i, Total: total, Phase: meta, Duration: duration})
			continue
		}

		ierr := NewInstallerError(meta, err, opts)
		output.Status = StatusFailed
		result.Outputs = append(result.Outputs, output)
		result.Errors = append(result.Errors, ierr)
		log.Error().Err(err).Str("severity", meta.Severity.String()).Dur("duration", duration).Msg("phase failed")
		r.emit(result, Event{Kind: EventPhaseFailed, Index: i, Total: total, Phase: meta, Message: ierr.Message, Err: ierr, Duration: duration})

		if policy == ContinueOnError && meta.Severity == Recoverable {
			continue
		}
		return r.abort(result, phaseCtx, ierr)
	}

	r.logger.Info().Int("completed", len(result.Completed)).Int("errors", len(result.Errors)).Msg("run finished")
	return result, nil
}

func (r *Runner) abort(result *RunResult, phaseCtx *Context, cause *InstallerError) (*RunResult, error) {
	r.logger.Warn().Str("phase", cause.Phase).Int("actions", phaseCtx.Rollback().Len()).Msg("aborting run, rolling back")
	rbErr := phaseCtx.Rollback().RollbackAll()
	result.RolledBack = true
	result.RollbackErr = rbErr
	return result, &AbortError{Cause: cause, Result: result, Rollback: rbErr}
}

func (r *Runner) interruptReason(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.interrupted != nil && r.interrupted() {
		return ErrInterrupted
	}
	return nil
}

func execute(ctx context.Context, phaseCtx *Context, phase Phase) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("phase panicked: %v", rec)
		}
	}()
	return phase.Run(ctx, phaseCtx)
}

func (r *Runner) emit(result *RunResult, ev Event) {
	result.Events = append(result.Events, ev)
	for _, obs := range r.observers {
		obs.OnEvent(ev)
	}
}

func (r *Runner) hasPhase(id string) bool {
	for _, p := range r.phases {
		if p.Metadata().ID == id {
			return true
		}
	}
	return false
}
