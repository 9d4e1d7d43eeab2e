// Package systemuser provisions an automation account: a login user with an
// authorized SSH key and optional passwordless sudo.
package systemuser

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

var usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// Runner executes commands on the target with elevated privileges.
type Runner interface {
	Probe(ctx context.Context, cmd string) (shell.Result, error)
	Exec(ctx context.Context, action, cmd string) (shell.Result, error)
}

// Result reports what EnsureUser changed.
type Result struct {
	Username               string
	HomeDir                string
	SudoersFile            string
	UserCreated            bool
	AuthorizedKeyUpdated   bool
	AddedToGroup           bool
	PasswordlessConfigured bool
}

// Option configures EnsureUser behavior.
type Option func(*ensureUserOptions) error

type ensureUserOptions struct {
	shell            string
	homeDir          string
	addToSudo        bool
	passwordlessSudo bool
	sudoGroup        string
	sudoersDir       string
}

// WithShell overrides the login shell assigned to the user.
func WithShell(shell string) Option {
	return func(opts *ensureUserOptions) error {
		shell = strings.TrimSpace(shell)
		if shell == "" {
			return OptionError{Reason: "shell must not be empty"}
		}
		opts.shell = shell
		return nil
	}
}

// WithHomeDir overrides the home directory assigned to the user.
func WithHomeDir(dir string) Option {
	return func(opts *ensureUserOptions) error {
		dir = strings.TrimSpace(dir)
		if !filepath.IsAbs(dir) {
			return OptionError{Reason: "home directory must be absolute"}
		}
		opts.homeDir = dir
		return nil
	}
}

// WithSudoAccess adds the user to the sudo-capable group.
func WithSudoAccess() Option {
	return func(opts *ensureUserOptions) error {
		opts.addToSudo = true
		return nil
	}
}

// WithPasswordlessSudo writes a NOPASSWD drop-in for the user.
func WithPasswordlessSudo() Option {
	return func(opts *ensureUserOptions) error {
		opts.addToSudo = true
		opts.passwordlessSudo = true
		return nil
	}
}

// WithSudoGroup overrides the sudo-capable group. Debian family systems use
// "sudo"; Arch and Fedora use "wheel".
func WithSudoGroup(group string) Option {
	return func(opts *ensureUserOptions) error {
		group = strings.TrimSpace(group)
		if group == "" {
			return OptionError{Reason: "sudo group must not be empty"}
		}
		opts.sudoGroup = group
		return nil
	}
}

// WithSudoersDir overrides the location used for sudoers drop-ins.
func WithSudoersDir(dir string) Option {
	return func(opts *ensureUserOptions) error {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return OptionError{Reason: "sudoers dir must not be empty"}
		}
		opts.sudoersDir = dir
		return nil
	}
}

// SudoGroupFor returns the admin group conventionally used by a distro
// family name (apt, pacman, dnf).
func SudoGroupFor(driver string) string {
	switch driver {
	case "pacman", "dnf":
		return "wheel"
	default:
		return "sudo"
	}
}

// Exists reports whether username is a known account.
func Exists(ctx context.Context, r Runner, username string) bool {
	_, err := r.Probe(ctx, fmt.Sprintf("id -u %s >/dev/null 2>&1", shell.Quote(username)))
	return err == nil
}

// EnsureUser provisions username with publicKey authorized for SSH login.
func EnsureUser(ctx context.Context, r Runner, username, publicKey string, opts ...Option) (*Result, error) {
	if r == nil {
		return nil, RunnerError{}
	}
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return nil, ValidationError{Reason: "public key is required"}
	}
	if strings.Contains(publicKey, "\n") {
		return nil, ValidationError{Reason: "public key must be a single line"}
	}

	config := ensureUserOptions{
		shell:      "/bin/bash",
		sudoGroup:  "sudo",
		sudoersDir: "/etc/sudoers.d",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&config); err != nil {
			return nil, err
		}
	}
	if config.homeDir == "" {
		config.homeDir = filepath.Join("/home", username)
	}

	result := &Result{Username: username, HomeDir: config.homeDir}

	if !Exists(ctx, r, username) {
		cmd := fmt.Sprintf("useradd -m -d %s -s %s %s",
			shell.Quote(config.homeDir), shell.Quote(config.shell), shell.Quote(username))
		if err := runStep(ctx, r, "useradd", "create user "+username, cmd); err != nil {
			return result, err
		}
		result.UserCreated = true
	}

	if err := runStep(ctx, r, "authorized_keys", "authorize key for "+username,
		authorizedKeyScript(username, config.homeDir, publicKey)); err != nil {
		return result, err
	}
	result.AuthorizedKeyUpdated = true

	if config.addToSudo {
		cmd := fmt.Sprintf("usermod -aG %s %s", shell.Quote(config.sudoGroup), shell.Quote(username))
		if err := runStep(ctx, r, "add-to-group", fmt.Sprintf("add %s to %s", username, config.sudoGroup), cmd); err != nil {
			return result, err
		}
		result.AddedToGroup = true
	}

	if config.passwordlessSudo {
		file := filepath.Join(config.sudoersDir, username)
		if err := runStep(ctx, r, "passwordless-sudo", "grant passwordless sudo to "+username,
			sudoersScript(username, config.sudoersDir, file)); err != nil {
			return result, err
		}
		result.SudoersFile = file
		result.PasswordlessConfigured = true
	}

	return result, nil
}

// RemoveUser deletes the account, its home directory and an optional
// sudoers drop-in.
func RemoveUser(ctx context.Context, r Runner, username, sudoersFile string) error {
	if r == nil {
		return RunnerError{}
	}
	if err := validateUsername(username); err != nil {
		return err
	}
	if sudoersFile != "" {
		if err := runStep(ctx, r, "remove-sudoers", "remove "+sudoersFile,
			"rm -f "+shell.Quote(sudoersFile)); err != nil {
			return err
		}
	}
	return runStep(ctx, r, "userdel", "delete user "+username, "userdel -r "+shell.Quote(username))
}

func validateUsername(username string) error {
	if username == "" {
		return ValidationError{Reason: "username is required"}
	}
	if !usernamePattern.MatchString(username) {
		return ValidationError{Reason: fmt.Sprintf("invalid username %q", username)}
	}
	return nil
}

func authorizedKeyScript(username, homeDir, publicKey string) string {
	sshDir := filepath.Join(homeDir, ".ssh")
	authPath := filepath.Join(sshDir, "authorized_keys")
	owner := shell.Quote(username)
	return fmt.Sprintf(`
set -euo pipefail
install -o %[1]s -g %[1]s -m 700 -d %[2]s
touch %[3]s
grep -qxF %[4]s %[3]s || printf '%%s\n' %[4]s >> %[3]s
chown %[1]s:%[1]s %[3]s
chmod 600 %[3]s
`, owner, shell.Quote(sshDir), shell.Quote(authPath), shell.Quote(publicKey))
}

func sudoersScript(username, sudoersDir, file string) string {
	return fmt.Sprintf(`
set -euo pipefail
install -o root -g root -m 755 -d %s
cat <<'EOF' > %s
%s ALL=(ALL) NOPASSWD:ALL
EOF
chmod 440 %s
visudo -cf %s >/dev/null
`, shell.Quote(sudoersDir), shell.Quote(file), username, shell.Quote(file), shell.Quote(file))
}

func runStep(ctx context.Context, r Runner, step, action, cmd string) error {
	res, err := r.Exec(ctx, action, cmd)
	if err != nil {
		return CommandError{Step: step, Err: err, Stderr: res.Stderr}
	}
	return nil
}
