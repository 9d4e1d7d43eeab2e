package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath      string
	profile         string
	driver          string
	dryRun          bool
	continueOnError bool
	features        []string
	selections      []string
	stagingDir      string
	reportPath      string
	tui             bool
	yes             bool
	logLevel        string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "distro-bootstrap",
		Short:         "Provision a Linux machine in ordered, reversible phases",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to the configuration file")
	pf.StringVarP(&flags.profile, "profile", "p", "", "Installation profile: minimal, dev or full")
	pf.StringVar(&flags.driver, "driver", "", "Package driver to use instead of detection (apt, pacman, dnf)")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "Record every change instead of making it")
	pf.BoolVar(&flags.continueOnError, "continue-on-error", false, "Keep going after recoverable phase failures")
	pf.StringArrayVar(&flags.features, "feature", nil, "Toggle a feature, name=bool (repeatable)")
	pf.StringArrayVar(&flags.selections, "select", nil, "Select software, category=pkg,pkg (repeatable)")
	pf.StringVar(&flags.stagingDir, "staging-dir", "", "Directory for downloads, clones and the run report")
	pf.StringVar(&flags.reportPath, "report", "", "Write the run report here instead of the staging directory")
	pf.BoolVar(&flags.tui, "tui", false, "Show the interactive dashboard")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "Never prompt; use configured answers and defaults")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: trace, debug, info, warn or error")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newDriversCmd())
	cmd.AddCommand(newReportCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the provisioning phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, flags)
		},
	}
}
