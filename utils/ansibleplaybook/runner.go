// Package ansibleplaybook runs an operator-supplied Ansible playbook against
// the machine being provisioned.
package ansibleplaybook

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apenella/go-ansible/pkg/execute"
	"github.com/apenella/go-ansible/pkg/options"
	"github.com/apenella/go-ansible/pkg/playbook"
	"gopkg.in/yaml.v3"
)

const (
	becomeMethod    = "sudo"
	becomeUser      = "root"
	localTarget     = "localhost"
	localConnection = "local"
)

// RunRequest describes one playbook invocation. An empty Target runs the
// playbook against this machine over the local connection plugin.
type RunRequest struct {
	PlaybookPath   string
	Target         string
	User           string
	PrivateKeyPath string
	Tags           []string
	ExtraVars      map[string]any
	// BecomePassword is written to a private vars file, never the command line.
	BecomePassword string
	Become         bool
}

// Local reports whether the request uses the local connection.
func (r RunRequest) Local() bool {
	t := strings.TrimSpace(r.Target)
	return t == "" || t == localTarget || t == "127.0.0.1"
}

// Option configures how the playbook command is built or executed.
type Option func(*runConfig) error

type runConfig struct {
	stdout          io.Writer
	stderr          io.Writer
	env             map[string]string
	executorFactory func(...execute.ExecuteOptions) execute.Executor
	binary          string
	varsDir         string
}

// ValidationError indicates an invalid or missing request value.
type ValidationError struct {
	Field string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("ansibleplaybook: %s is required", e.Field)
}

// WithStdout overrides where ansible stdout is written (default io.Discard).
func WithStdout(w io.Writer) Option {
	return func(cfg *runConfig) error {
		cfg.stdout = w
		return nil
	}
}

// WithStderr overrides where ansible stderr is written (default io.Discard).
func WithStderr(w io.Writer) Option {
	return func(cfg *runConfig) error {
		cfg.stderr = w
		return nil
	}
}

// WithEnvVar adds a single environment variable to the ansible process.
func WithEnvVar(key, value string) Option {
	return func(cfg *runConfig) error {
		if cfg.env == nil {
			cfg.env = make(map[string]string, 1)
		}
		cfg.env[key] = value
		return nil
	}
}

// WithExecutorFactory swaps the execute.Executor constructor.
func WithExecutorFactory(factory func(...execute.ExecuteOptions) execute.Executor) Option {
	return func(cfg *runConfig) error {
		if factory == nil {
			return fmt.Errorf("executor factory must not be nil")
		}
		cfg.executorFactory = factory
		return nil
	}
}

// WithBinary overrides the ansible-playbook binary.
func WithBinary(path string) Option {
	return func(cfg *runConfig) error {
		cfg.binary = strings.TrimSpace(path)
		return nil
	}
}

// WithVarsDir sets where the become password vars file is written
// (default os.TempDir()).
func WithVarsDir(dir string) Option {
	return func(cfg *runConfig) error {
		cfg.varsDir = strings.TrimSpace(dir)
		return nil
	}
}

// Run builds and executes the playbook.
func Run(ctx context.Context, req RunRequest, opts ...Option) error {
	cmd, cleanup, err := BuildCommand(req, opts...)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmd.Run(ctx); err != nil {
		return fmt.Errorf("ansibleplaybook: run playbook: %w", err)
	}
	return nil
}

// BuildCommand constructs the ansible-playbook command without executing it.
// cleanup removes any vars file written for the become password and must be
// called once the command has run.
func BuildCommand(req RunRequest, opts ...Option) (*playbook.AnsiblePlaybookCmd, func(), error) {
	noop := func() {}

	cfg, err := buildConfig(opts...)
	if err != nil {
		return nil, noop, err
	}
	norm, err := normalizeRequest(req)
	if err != nil {
		return nil, noop, err
	}

	target := norm.Target
	conn := &options.AnsibleConnectionOptions{User: norm.User, PrivateKey: norm.PrivateKeyPath}
	if norm.Local() {
		target = localTarget
		conn = &options.AnsibleConnectionOptions{Connection: localConnection}
	}

	pbOpts := &playbook.AnsiblePlaybookOptions{
		Inventory: inlineInventory(target),
		Limit:     target,
		Tags:      strings.Join(norm.Tags, ","),
	}
	if len(norm.ExtraVars) > 0 {
		pbOpts.ExtraVars = norm.ExtraVars
	}

	cleanup := noop
	if norm.Become && norm.BecomePassword != "" {
		path, err := writeBecomeVars(cfg.varsDir, norm.BecomePassword)
		if err != nil {
			return nil, noop, err
		}
		pbOpts.ExtraVarsFile = []string{"@" + path}
		cleanup = func() { _ = os.Remove(path) }
	}

	cmd := &playbook.AnsiblePlaybookCmd{
		Playbooks:         []string{norm.PlaybookPath},
		Options:           pbOpts,
		ConnectionOptions: conn,
		Exec:              cfg.executorFactory(buildExecutorOptions(cfg)...),
	}
	if norm.Become {
		cmd.PrivilegeEscalationOptions = &options.AnsiblePrivilegeEscalationOptions{
			Become:       true,
			BecomeMethod: becomeMethod,
			BecomeUser:   becomeUser,
		}
	}
	if cfg.binary != "" {
		cmd.Binary = cfg.binary
	}

	return cmd, cleanup, nil
}

func normalizeRequest(req RunRequest) (RunRequest, error) {
	norm := req
	norm.PlaybookPath = strings.TrimSpace(req.PlaybookPath)
	norm.Target = strings.TrimSpace(req.Target)
	norm.User = strings.TrimSpace(req.User)
	norm.PrivateKeyPath = strings.TrimSpace(req.PrivateKeyPath)
	norm.Tags = nil
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			norm.Tags = append(norm.Tags, tag)
		}
	}

	if norm.PlaybookPath == "" {
		return RunRequest{}, ValidationError{Field: "playbook path"}
	}
	if !norm.Local() {
		switch {
		case norm.User == "":
			return RunRequest{}, ValidationError{Field: "user"}
		case norm.PrivateKeyPath == "":
			return RunRequest{}, ValidationError{Field: "private key path"}
		}
	}
	return norm, nil
}

func writeBecomeVars(dir, password string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ansibleplaybook: vars dir: %w", err)
	}
	data, err := yaml.Marshal(map[string]string{"ansible_become_password": password})
	if err != nil {
		return "", fmt.Errorf("ansibleplaybook: encode vars: %w", err)
	}
	f, err := os.CreateTemp(dir, "become-*.yml")
	if err != nil {
		return "", fmt.Errorf("ansibleplaybook: vars file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("ansibleplaybook: write vars: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("ansibleplaybook: close vars: %w", err)
	}
	return filepath.Clean(path), nil
}

func buildConfig(opts ...Option) (*runConfig, error) {
	cfg := &runConfig{
		stdout: io.Discard,
		stderr: io.Discard,
		env: map[string]string{
			options.AnsibleHostKeyCheckingEnv: "false",
		},
		executorFactory: func(options ...execute.ExecuteOptions) execute.Executor {
			return execute.NewDefaultExecute(options...)
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func inlineInventory(target string) string {
	if strings.HasSuffix(target, ",") {
		return target
	}
	return target + ","
}

func buildExecutorOptions(cfg *runConfig) []execute.ExecuteOptions {
	var execOpts []execute.ExecuteOptions
	if cfg.stdout != nil {
		execOpts = append(execOpts, execute.WithWrite(cfg.stdout))
	}
	if cfg.stderr != nil {
		execOpts = append(execOpts, execute.WithWriteError(cfg.stderr))
	}
	for key, value := range cfg.env {
		execOpts = append(execOpts, execute.WithEnvVar(key, value))
	}
	return execOpts
}
