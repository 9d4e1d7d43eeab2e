package main

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/orchestrator"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/pkg/phasedapp"
	"github.com/BrianJOC/distro-bootstrap/utils/sigguard"
)

var errDashboardUnattended = errors.New("--tui and --yes cannot be combined: the dashboard answers prompts, --yes disables them")

func runInstall(cmd *cobra.Command, flags *rootFlags) error {
	if flags.tui && flags.yes {
		return errDashboardUnattended
	}
	s, err := loadSetup(cmd, flags)
	if err != nil {
		return err
	}

	guard := sigguard.Install()
	defer guard.Stop()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var report *orchestrator.Report
	if flags.tui {
		report, err = runDashboard(ctx, s, guard)
	} else {
		report, err = runPlain(ctx, cmd, s, guard)
	}
	if report != nil {
		report.Render(cmd.OutOrStdout(), !color.NoColor)
	}
	return err
}

func runPlain(ctx context.Context, cmd *cobra.Command, s *setup, guard *sigguard.Guard) (*orchestrator.Report, error) {
	logger, err := s.logger(cmd.ErrOrStderr(), true, "warn")
	if err != nil {
		return nil, err
	}

	opts := s.orchestratorOptions(logger)
	opts = append(opts,
		orchestrator.WithInteraction(s.service(interaction.NewSurveyPrompter())),
		orchestrator.WithObserver(newProgressObserver(cmd.ErrOrStderr())),
		orchestrator.WithInterruptCheck(guard.Interrupted),
	)
	return orchestrator.New(opts...).Run(ctx)
}

// runDashboard runs under the Bubble Tea dashboard. Logs go to a file in the
// staging directory so they do not corrupt the screen.
func runDashboard(ctx context.Context, s *setup, guard *sigguard.Guard) (*orchestrator.Report, error) {
	logFile, err := s.openLogFile()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = logFile.Close()
	}()
	logger, err := s.logger(logFile, false, "info")
	if err != nil {
		return nil, err
	}
	base := s.orchestratorOptions(logger)

	var plan []phases.PhaseMetadata
	if p, err := orchestrator.New(base...).Plan(ctx); err == nil {
		plan = p.Included()
	} else {
		logger.Warn().Err(err).Msg("could not plan phases ahead of the run")
	}

	var report *orchestrator.Report
	app, err := phasedapp.New(
		phasedapp.WithTitle("distro-bootstrap "+s.options.Profile.String()),
		phasedapp.WithPlan(plan...),
		phasedapp.WithRun(func(ctx context.Context, obs phases.Observer, prompter interaction.Prompter) error {
			opts := append(append([]orchestrator.Option(nil), base...),
				orchestrator.WithInteraction(s.service(phases.ObserverPrompter(obs, prompter))),
				orchestrator.WithObserver(obs),
				orchestrator.WithInterruptCheck(guard.Interrupted),
			)
			var runErr error
			report, runErr = orchestrator.New(opts...).Run(ctx)
			return runErr
		}),
		phasedapp.WithProgramOptions(tea.WithAltScreen()),
	)
	if err != nil {
		return nil, err
	}
	err = app.Start(ctx)
	return report, err
}
