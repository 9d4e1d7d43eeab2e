package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/utils/dryrun"
)

// Outcome summarises how a run ended.
type Outcome string

const (
	OutcomeSucceeded          Outcome = "succeeded"
	OutcomeCompletedWithError Outcome = "completed_with_errors"
	OutcomeAborted            Outcome = "aborted"
)

// Report is the durable record of one run.
type Report struct {
	RunID         string                   `json:"run_id"`
	StartedAt     time.Time                `json:"started_at"`
	FinishedAt    time.Time                `json:"finished_at"`
	Platform      drivers.Platform         `json:"platform"`
	Driver        string                   `json:"driver,omitempty"`
	Profile       phases.Profile           `json:"profile"`
	DryRun        bool                     `json:"dry_run"`
	StagingDir    string                   `json:"staging_dir"`
	Options       phases.RunOptions        `json:"options"`
	Completed     []string                 `json:"completed"`
	Errors        []*phases.InstallerError `json:"errors,omitempty"`
	Events        []phases.Event           `json:"events,omitempty"`
	Outputs       []phases.PhaseOutput     `json:"outputs,omitempty"`
	Ledger        []dryrun.Entry           `json:"dry_run_ledger,omitempty"`
	RolledBack    bool                     `json:"rolled_back"`
	RollbackError string                   `json:"rollback_error,omitempty"`
	Outcome       Outcome                  `json:"outcome"`

	// Path is where the report was written, if it was.
	Path string `json:"-"`
}

func newReport(opts phases.RunOptions, now time.Time) *Report {
	return &Report{
		RunID:      uuid.NewString(),
		StartedAt:  now,
		Profile:    opts.Profile,
		DryRun:     opts.DryRun,
		StagingDir: opts.StagingDir,
		Options:    opts.Clone(),
		Completed:  []string{},
		Outcome:    OutcomeSucceeded,
	}
}

// fail records an error raised outside the runner.
func (r *Report) fail(ierr *phases.InstallerError) {
	if ierr == nil {
		return
	}
	r.Errors = append(r.Errors, ierr)
	r.Outcome = OutcomeAborted
}

func (r *Report) absorb(result *phases.RunResult, ledger []dryrun.Entry) {
	r.Ledger = ledger
	if result == nil {
		return
	}
	r.Completed = append(r.Completed, result.Completed...)
	r.Errors = append(r.Errors, result.Errors...)
	r.Events = result.Events
	r.Outputs = result.Outputs
	r.RolledBack = result.RolledBack
	if result.RollbackErr != nil {
		r.RollbackError = result.RollbackErr.Error()
	}
	switch {
	case result.RolledBack:
		r.Outcome = OutcomeAborted
	case len(result.Errors) > 0:
		r.Outcome = OutcomeCompletedWithError
	}
}

func (r *Report) finish(now time.Time) {
	r.FinishedAt = now
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// WriteJSON writes the report to path atomically: a temp file in the same
// directory is synced and renamed over the target.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteJSON.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Report
		Errors []struct {
			Phase       string                `json:"phase"`
			Description string                `json:"description"`
			Severity    phases.Severity       `json:"severity"`
			Message     string                `json:"message"`
			Detail      string                `json:"detail"`
			Advice      string                `json:"advice"`
			Command     *phases.CommandOutput `json:"command"`
			Snapshot    phases.RunOptions     `json:"snapshot"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	out := raw.Report
	out.Errors = nil
	for _, e := range raw.Errors {
		out.Errors = append(out.Errors, &phases.InstallerError{
			Phase: e.Phase, Description: e.Description, Severity: e.Severity, Message: e.Message,
			Detail: e.Detail, Advice: e.Advice, Command: e.Command, Snapshot: e.Snapshot,
		})
	}
	out.Path = path
	return &out, nil
}

// Render writes a human summary of the report to w.
func (r *Report) Render(w io.Writer, colored bool) {
	bold := palette(colored, color.Bold)
	green := palette(colored, color.FgGreen)
	red := palette(colored, color.FgRed, color.Bold)
	yellow := palette(colored, color.FgYellow)
	faint := palette(colored, color.Faint)

	bold.Fprintf(w, "Run %s", r.RunID)
	if r.DryRun {
		yellow.Fprint(w, " (dry run)")
	}
	fmt.Fprintln(w)
	if r.Platform.ID != "" {
		fmt.Fprintf(w, "  platform: %s, driver: %s, profile: %s\n", r.Platform, r.Driver, r.Profile)
	}
	if d := r.Duration(); d > 0 {
		faint.Fprintf(w, "  took %s\n", d.Round(time.Millisecond))
	}

	for _, out := range r.Outputs {
		switch out.Status {
		case phases.StatusCompleted:
			green.Fprintf(w, "  ✓ %s", out.Phase)
		case phases.StatusFailed:
			red.Fprintf(w, "  ✗ %s", out.Phase)
		default:
			faint.Fprintf(w, "  - %s (skipped)", out.Phase)
		}
		fmt.Fprintln(w)
		for _, warning := range out.Warnings {
			yellow.Fprintf(w, "      warning: %s\n", warning)
		}
	}

	for _, ierr := range r.Errors {
		fmt.Fprintln(w)
		red.Fprintf(w, "%s [%s]: %s\n", ierr.Phase, ierr.Severity, ierr.Message)
		if ierr.Advice != "" {
			yellow.Fprintf(w, "  advice: %s\n", ierr.Advice)
		}
		if ierr.Command != nil {
			faint.Fprintf(w, "  command: %s (exit %d)\n", ierr.Command.Command, ierr.Command.ExitCode)
			if stderr := strings.TrimSpace(ierr.Command.Stderr); stderr != "" {
				faint.Fprintf(w, "  stderr: %s\n", lastLine(stderr))
			}
		}
	}

	if len(r.Ledger) > 0 {
		fmt.Fprintln(w)
		bold.Fprintf(w, "Would have run %d action(s):\n", len(r.Ledger))
		for _, e := range r.Ledger {
			fmt.Fprintf(w, "  [%s] %s", e.Phase, e.Action)
			if e.Detail != "" {
				faint.Fprintf(w, " %s", e.Detail)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w)
	switch r.Outcome {
	case OutcomeSucceeded:
		green.Fprintf(w, "Outcome: %s", r.Outcome)
	case OutcomeCompletedWithError:
		yellow.Fprintf(w, "Outcome: %s", r.Outcome)
	default:
		red.Fprintf(w, "Outcome: %s", r.Outcome)
	}
	if r.RolledBack {
		fmt.Fprint(w, ", changes rolled back")
		if r.RollbackError != "" {
			red.Fprintf(w, " with errors: %s", r.RollbackError)
		}
	}
	fmt.Fprintln(w)
	if r.Path != "" {
		faint.Fprintf(w, "Report: %s\n", r.Path)
	}
}

func palette(colored bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func lastLine(s string) string {
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
