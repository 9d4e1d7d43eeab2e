package main

import (
	"github.com/spf13/cobra"

	"github.com/BrianJOC/distro-bootstrap/config"
)

// toConfigFlags converts the parsed command line into config overrides.
// Boolean flags only override the file when given explicitly.
func (f *rootFlags) toConfigFlags(cmd *cobra.Command) (config.Flags, error) {
	out := config.Flags{
		Profile:    f.profile,
		Driver:     f.driver,
		StagingDir: f.stagingDir,
		ReportPath: f.reportPath,
		LogLevel:   f.logLevel,
	}
	if changed(cmd, "dry-run") {
		out.DryRun = config.BoolPtr(f.dryRun)
	}
	if changed(cmd, "continue-on-error") {
		out.ContinueOnError = config.BoolPtr(f.continueOnError)
	}
	if f.yes {
		out.Interactive = config.BoolPtr(false)
	}

	for _, raw := range f.features {
		name, enabled, err := config.ParseFeature(raw)
		if err != nil {
			return config.Flags{}, err
		}
		if out.Features == nil {
			out.Features = map[string]bool{}
		}
		out.Features[name] = enabled
	}
	for _, raw := range f.selections {
		category, pkgs, err := config.ParseSelection(raw)
		if err != nil {
			return config.Flags{}, err
		}
		if out.Selections == nil {
			out.Selections = map[string][]string{}
		}
		out.Selections[category] = append(out.Selections[category], pkgs...)
	}
	return out, nil
}

func changed(cmd *cobra.Command, name string) bool {
	flag := cmd.Flag(name)
	return flag != nil && flag.Changed
}
