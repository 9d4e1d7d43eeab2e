// Package config loads the installer's YAML configuration and merges command
// line overrides into run options.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BrianJOC/distro-bootstrap/phases"
)

const appName = "distro-bootstrap"

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// File mirrors the YAML configuration file.
type File struct {
	Profile           string              `yaml:"profile" validate:"omitempty,profile"`
	Driver            string              `yaml:"driver" validate:"omitempty,oneof=apt pacman dnf"`
	StagingDir        string              `yaml:"staging_dir" validate:"omitempty,abs_path"`
	DryRun            bool                `yaml:"dry_run"`
	Interactive       *bool               `yaml:"interactive"`
	ContinueOnError   bool                `yaml:"continue_on_error"`
	Features          map[string]bool     `yaml:"features" validate:"dive,keys,feature_name,endkeys"`
	Software          map[string][]string `yaml:"software" validate:"dive,keys,feature_name,endkeys,dive,required,package_name"`
	Services          []string            `yaml:"services" validate:"dive,required,package_name"`
	Interaction       map[string]any      `yaml:"interaction"`
	Target            Target              `yaml:"target"`
	KeepAliveInterval time.Duration       `yaml:"keepalive_interval" validate:"gte=0"`
	ReportPath        string              `yaml:"report_path"`
	LogLevel          string              `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	DotfilesRepo      string              `yaml:"dotfiles_repo" validate:"omitempty,git_url"`
	Playbook          string              `yaml:"playbook"`
}

// Target selects a remote host reached over SSH. An empty Host means the
// local machine.
type Target struct {
	Host    string `yaml:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port    int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	User    string `yaml:"user" validate:"required_with=Host"`
	KeyPath string `yaml:"key_path"`
	// KnownHosts defaults to ~/.ssh/known_hosts.
	KnownHosts            string `yaml:"known_hosts"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key"`
}

// Remote reports whether the target is a remote host.
func (t Target) Remote() bool {
	return strings.TrimSpace(t.Host) != ""
}

// DefaultPath returns $XDG_CONFIG_HOME/distro-bootstrap/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(dir, appName, "config.yaml")
}

// DefaultStagingDir returns $XDG_STATE_HOME/distro-bootstrap, falling back
// to ~/.local/state/distro-bootstrap.
func DefaultStagingDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", appName)
	}
	return filepath.Join(os.TempDir(), appName)
}

// Load reads and validates the configuration. An empty path loads the
// default location, where a missing file yields an empty configuration.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, ParseError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse decodes and validates configuration bytes. path is used for errors.
func Parse(path string, data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, ParseError{Path: path, Line: extractLine(err), Err: err}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks struct tags and custom rules.
func (f *File) Validate() error {
	if err := validatorInstance().Struct(f); err != nil {
		return convertValidationError(err)
	}
	return nil
}

// Apply merges command line flags over file values.
func (f *File) Apply(flags Flags) {
	if flags.Profile != "" {
		f.Profile = flags.Profile
	}
	if flags.Driver != "" {
		f.Driver = flags.Driver
	}
	if flags.StagingDir != "" {
		f.StagingDir = flags.StagingDir
	}
	if flags.ReportPath != "" {
		f.ReportPath = flags.ReportPath
	}
	if flags.LogLevel != "" {
		f.LogLevel = flags.LogLevel
	}
	if flags.DryRun != nil {
		f.DryRun = *flags.DryRun
	}
	if flags.ContinueOnError != nil {
		f.ContinueOnError = *flags.ContinueOnError
	}
	if flags.Interactive != nil {
		v := *flags.Interactive
		f.Interactive = &v
	}
	if len(flags.Features) > 0 && f.Features == nil {
		f.Features = make(map[string]bool, len(flags.Features))
	}
	for k, v := range flags.Features {
		f.Features[k] = v
	}
	if len(flags.Selections) > 0 && f.Software == nil {
		f.Software = make(map[string][]string, len(flags.Selections))
	}
	for k, v := range flags.Selections {
		f.Software[k] = append([]string(nil), v...)
	}
}

// RunOptions converts the file into the runner's option snapshot.
// interactiveDefault applies when the file leaves interactive unset.
func (f *File) RunOptions(interactiveDefault bool) (phases.RunOptions, error) {
	profile := phases.ProfileMinimal
	if f.Profile != "" {
		p, err := phases.ParseProfile(f.Profile)
		if err != nil {
			return phases.RunOptions{}, ValidationError{Field: "profile", Message: err.Error(), Err: err}
		}
		profile = p
	}
	interactive := interactiveDefault
	if f.Interactive != nil {
		interactive = *f.Interactive
	}
	staging := f.StagingDir
	if staging == "" {
		staging = DefaultStagingDir()
	}

	opts := phases.RunOptions{
		Profile:         profile,
		StagingDir:      staging,
		DryRun:          f.DryRun,
		Interactive:     interactive,
		ContinueOnError: f.ContinueOnError,
		Features:        map[string]bool{},
		Selections:      map[string][]string{},
		Services:        append([]string(nil), f.Services...),
	}
	for k, v := range f.Features {
		opts.Features[k] = v
	}
	for k, v := range f.Software {
		if len(v) > 0 {
			opts.Selections[k] = append([]string(nil), v...)
		}
	}
	return opts.Clone(), nil
}

// Overrides returns the interaction override map, including the driver
// choice under the "driver" key when one is configured.
func (f *File) Overrides() map[string]any {
	out := make(map[string]any, len(f.Interaction)+1)
	for k, v := range f.Interaction {
		out[k] = v
	}
	if f.Driver != "" {
		out["driver"] = f.Driver
	}
	return out
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
