package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/BrianJOC/distro-bootstrap/config"
	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/orchestrator"
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/phases/playbook"
	"github.com/BrianJOC/distro-bootstrap/pkg/phasedapp/bundles/provision"
	"github.com/BrianJOC/distro-bootstrap/utils/logging"
	"github.com/BrianJOC/distro-bootstrap/utils/shell"
	"github.com/BrianJOC/distro-bootstrap/utils/sshconnection"
)

const logFileName = "distro-bootstrap.log"

// hooks lets tests replace the target and the lock location.
var hooks struct {
	shell    shell.Runner
	lockPath string
}

// setup is everything a command needs, resolved from the config file and
// command line.
type setup struct {
	file        *config.File
	options     phases.RunOptions
	interactive bool
}

func loadSetup(cmd *cobra.Command, flags *rootFlags) (*setup, error) {
	file, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	cliFlags, err := flags.toConfigFlags(cmd)
	if err != nil {
		return nil, err
	}
	file.Apply(cliFlags)
	if err := file.Validate(); err != nil {
		return nil, err
	}

	interactive := !flags.yes && interaction.IsTerminal()
	opts, err := file.RunOptions(interactive)
	if err != nil {
		return nil, err
	}
	if flags.yes {
		opts.Interactive = false
	}
	return &setup{file: file, options: opts, interactive: opts.Interactive}, nil
}

// logger builds the run logger. defaultLevel applies when neither the file
// nor --log-level names one.
func (s *setup) logger(w io.Writer, human bool, defaultLevel string) (zerolog.Logger, error) {
	level := s.file.LogLevel
	if level == "" {
		level = defaultLevel
	}
	return logging.New(logging.Options{Level: level, Human: human, Writer: w})
}

func (s *setup) settings() provision.Settings {
	return provision.Settings{
		DotfilesRepo: s.file.DotfilesRepo,
		Playbook: playbook.Config{
			PlaybookPath: s.file.Playbook,
			Target:       s.file.Target.Host,
		},
	}
}

// orchestratorOptions wires the configured target, phase table and policy.
// Callers add observers and the interaction service.
func (s *setup) orchestratorOptions(logger zerolog.Logger) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithRunOptions(s.options),
		orchestrator.WithRegistry(provision.Registry(s.settings())),
		orchestrator.WithLogger(logger),
		orchestrator.WithReportPath(s.file.ReportPath),
		orchestrator.WithLockPath(hooks.lockPath),
	}
	if s.file.KeepAliveInterval > 0 {
		opts = append(opts, orchestrator.WithKeepAliveInterval(s.file.KeepAliveInterval))
	}
	switch {
	case hooks.shell != nil:
		opts = append(opts, orchestrator.WithShellRunner(hooks.shell))
	case s.file.Target.Remote():
		opts = append(opts, orchestrator.WithRemote(s.remoteTarget(), s.dialOptions()...))
	}
	return opts
}

func (s *setup) service(prompter interaction.Prompter) *interaction.Service {
	return interaction.NewService(
		interaction.WithOverrides(s.file.Overrides()),
		interaction.WithInteractive(s.interactive),
		interaction.WithPrompter(prompter),
	)
}

func (s *setup) remoteTarget() sshconnection.Target {
	t := s.file.Target
	return sshconnection.Target{
		Host:       t.Host,
		Port:       t.Port,
		User:       t.User,
		Credential: sshconnection.Credential{KeyPath: t.KeyPath},
	}
}

func (s *setup) dialOptions() []sshconnection.Option {
	t := s.file.Target
	var opts []sshconnection.Option
	if t.KnownHosts != "" {
		opts = append(opts, sshconnection.WithKnownHosts(t.KnownHosts))
	}
	if t.InsecureIgnoreHostKey {
		opts = append(opts, sshconnection.WithInsecureHostKey())
	}
	return opts
}

// openLogFile returns the TUI log destination inside the staging directory.
func (s *setup) openLogFile() (*os.File, error) {
	return logging.OpenFile(s.options.StagingDir, logFileName)
}
