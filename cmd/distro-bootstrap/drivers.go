package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BrianJOC/distro-bootstrap/drivers"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

func newDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List package drivers and which one matches this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runner shell.Runner = shell.NewLocal()
			if hooks.shell != nil {
				runner = hooks.shell
			}

			out := cmd.OutOrStdout()
			match := color.New(color.FgGreen, color.Bold)
			if color.NoColor {
				match.DisableColor()
			}

			platform, err := drivers.DetectPlatform(cmd.Context(), runner)
			if err != nil {
				fmt.Fprintf(out, "Platform: unknown (%v)\n\n", err)
			} else {
				fmt.Fprintf(out, "Platform: %s\n\n", platform)
			}

			for _, d := range drivers.All() {
				if err == nil && d.Matches(platform) {
					match.Fprintf(out, "* %-8s %s (%s)\n", d.Name(), d.Description(), d.Backend().Binary)
					continue
				}
				fmt.Fprintf(out, "  %-8s %s (%s)\n", d.Name(), d.Description(), d.Backend().Binary)
			}
			return nil
		},
	}
}
