package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BrianJOC/distro-bootstrap/orchestrator"
	"github.com/BrianJOC/distro-bootstrap/utils/logging"
)

func newPlanCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which phases a run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSetup(cmd, flags)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Level: "error", Human: true, Writer: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			opts := append(s.orchestratorOptions(logger), orchestrator.WithInteraction(s.service(nil)))
			plan, err := orchestrator.New(opts...).Plan(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			renderPlan(cmd.OutOrStdout(), plan, !color.NoColor)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	return cmd
}

func renderPlan(w io.Writer, plan *orchestrator.Plan, colored bool) {
	included := color.New(color.FgGreen)
	excluded := color.New(color.Faint)
	if !colored {
		included.DisableColor()
		excluded.DisableColor()
	}

	fmt.Fprintf(w, "Platform: %s\nDriver:   %s\nProfile:  %s", plan.Platform, plan.Driver, plan.Options.Profile)
	if plan.Options.DryRun {
		fmt.Fprint(w, " (dry run)")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	n := 0
	for _, ph := range plan.Phases {
		if ph.Included {
			n++
			included.Fprintf(w, "%2d. %-18s %-12s %s\n", n, ph.Meta.ID, ph.Meta.Severity, ph.Meta.Title)
			continue
		}
		excluded.Fprintf(w, "    %-18s %-12s not selected (%s)\n", ph.Meta.ID, ph.Meta.Severity, ph.Gate)
	}
}
