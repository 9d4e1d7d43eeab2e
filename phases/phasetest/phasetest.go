// Package phasetest provides a scripted command runner and context builder
// for exercising phases without touching a real system.
package phasetest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

// Response scripts the outcome of every command containing Match.
type Response struct {
	Match    string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Runner answers commands from its responses, first match wins. Unmatched
// commands succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	responses []Response
	commands  []string
}

// NewRunner returns a Runner scripted with responses.
func NewRunner(responses ...Response) *Runner {
	return &Runner{responses: responses}
}

// Run implements phases.CommandRunner.
func (r *Runner) Run(_ context.Context, cmd string) (shell.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)

	res := shell.Result{Command: cmd}
	for _, resp := range r.responses {
		if !strings.Contains(cmd, resp.Match) {
			continue
		}
		res.Stdout, res.Stderr, res.ExitCode = resp.Stdout, resp.Stderr, resp.ExitCode
		if resp.Err != nil {
			if res.ExitCode == 0 {
				res.ExitCode = 1
			}
			return res, &shell.CommandError{Result: res, Err: resp.Err}
		}
		return res, nil
	}
	return res, nil
}

// Commands returns every command run so far.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commands))
	copy(out, r.commands)
	return out
}

// Count returns how many commands contained substr.
func (r *Runner) Count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, cmd := range r.commands {
		if strings.Contains(cmd, substr) {
			n++
		}
	}
	return n
}

// Ran reports whether any command contained substr.
func (r *Runner) Ran(substr string) bool {
	return r.Count(substr) > 0
}

// Fail is a convenience Response that exits 1 for commands containing match.
func Fail(match, stderr string) Response {
	return Response{Match: match, Stderr: stderr, Err: errors.New("exit status 1")}
}

// Ubuntu is the platform NewContext selects by default.
var Ubuntu = drivers.Platform{ID: "ubuntu", IDLike: []string{"debian"}, VersionID: "24.04", Codename: "noble", PrettyName: "Ubuntu 24.04 LTS"}

// NewContext returns a phase context wired to runner, the apt driver and the
// Ubuntu platform. opts are applied last.
func NewContext(runner phases.CommandRunner, opts ...phases.ContextOption) *phases.Context {
	base := []phases.ContextOption{
		phases.WithCommandRunner(runner),
		phases.WithDriver(drivers.NewApt(), Ubuntu),
	}
	return phases.NewContext(append(base, opts...)...)
}

// Run executes a single phase through a phases.Runner so metadata, events and
// rollback behave as in a real run.
func Run(ctx context.Context, pc *phases.Context, phase phases.Phase, extra ...phases.RunnerOption) (*phases.RunResult, error) {
	runner := phases.NewRunner(extra...)
	if err := runner.Register(phase); err != nil {
		return nil, err
	}
	return runner.Run(ctx, pc)
}
