package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BrianJOC/distro-bootstrap/orchestrator"
)

func newReportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report [path]",
		Short: "Show the report of the last run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				s, err := loadSetup(cmd, flags)
				if err != nil {
					return err
				}
				path = orchestrator.New(
					orchestrator.WithRunOptions(s.options),
					orchestrator.WithReportPath(s.file.ReportPath),
				).ReportPath()
			}
			report, err := orchestrator.ReadReport(path)
			if err != nil {
				return err
			}
			report.Render(cmd.OutOrStdout(), !color.NoColor)
			return nil
		},
	}
}
