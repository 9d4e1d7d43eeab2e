// Package provision declares the default phase table for workstation and
// server provisioning.
package provision

import (
	"github.com/BrianJOC/distro-bootstrap/phases"
	"github.com/BrianJOC/distro-bootstrap/phases/automationuser"
	"github.com/BrianJOC/distro-bootstrap/phases/docker"
	"github.com/BrianJOC/distro-bootstrap/phases/dotfiles"
	"github.com/BrianJOC/distro-bootstrap/phases/pkgensure"
	"github.com/BrianJOC/distro-bootstrap/phases/playbook"
	"github.com/BrianJOC/distro-bootstrap/phases/preflight"
	"github.com/BrianJOC/distro-bootstrap/phases/reporefresh"
	"github.com/BrianJOC/distro-bootstrap/phases/services"
	"github.com/BrianJOC/distro-bootstrap/phases/sshkeys"
)

// Feature flags understood by the default table.
const (
	FeatureDocker         = "docker"
	FeatureSSHKeys        = "ssh_keys"
	FeatureAutomationUser = "automation_user"
	FeatureDotfiles       = "dotfiles"
	FeaturePlaybook       = "playbook"
)

// Features lists every feature flag in table order.
func Features() []string {
	return []string{FeatureDocker, FeatureSSHKeys, FeatureAutomationUser, FeatureDotfiles, FeaturePlaybook}
}

// Settings carries the configuration individual phases are built with.
type Settings struct {
	DotfilesRepo string
	KeyPath      string
	Playbook     playbook.Config
}

// Registry returns the default table. Order is execution order.
func Registry(s Settings) *phases.Registry {
	return phases.NewRegistry().
		Add(phases.Always(), func() phases.Phase { return preflight.New() }).
		Add(phases.Always(), func() phases.Phase { return reporefresh.New() }).
		Add(phases.Always(), func() phases.Phase { return pkgensure.BasePackages() }).
		Add(phases.ProfileAtLeast(phases.ProfileDev), func() phases.Phase { return pkgensure.DevToolchain() }).
		Add(phases.FeatureEnabled(FeatureDocker), func() phases.Phase { return docker.New() }).
		Add(phases.SelectionNonEmpty(""), func() phases.Phase { return pkgensure.Software() }).
		Add(phases.FeatureEnabled(FeatureSSHKeys), func() phases.Phase { return sshkeys.New(s.KeyPath) }).
		Add(phases.FeatureEnabled(FeatureAutomationUser), func() phases.Phase { return automationuser.New() }).
		Add(phases.FeatureEnabled(FeatureDotfiles), func() phases.Phase { return dotfiles.New(s.DotfilesRepo) }).
		Add(phases.FeatureEnabled(FeaturePlaybook), func() phases.Phase { return pkgensure.PythonRuntime() }).
		Add(phases.FeatureEnabled(FeaturePlaybook), func() phases.Phase { return playbook.New(s.Playbook) }).
		Add(phases.ProfileAtLeast(phases.ProfileFull), func() phases.Phase { return services.New() })
}
