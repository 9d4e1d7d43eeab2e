// Package sshconnection dials the remote machine a run provisions when the
// target is not the local host.
package sshconnection

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
)

// Credential is either a password or a private key path.
type Credential struct {
	Password string
	KeyPath  string
}

// Target identifies the remote host.
type Target struct {
	Host       string
	Port       int
	User       string
	Credential Credential
}

// Addr returns host:port, applying the default port.
func (t Target) Addr() string {
	port := t.Port
	if port <= 0 {
		port = defaultPort
	}
	return net.JoinHostPort(strings.TrimSpace(t.Host), strconv.Itoa(port))
}

// Option configures Dial.
type Option func(*connectOptions) error

type connectOptions struct {
	timeout    time.Duration
	knownHosts string
	insecure   bool
}

// WithTimeout overrides the default dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(opts *connectOptions) error {
		if d <= 0 {
			return OptionError{Reason: "timeout must be greater than zero"}
		}
		opts.timeout = d
		return nil
	}
}

// WithKnownHosts verifies the host key against the given known_hosts file.
func WithKnownHosts(path string) Option {
	return func(opts *connectOptions) error {
		path = strings.TrimSpace(path)
		if path == "" {
			return OptionError{Reason: "known_hosts path must not be empty"}
		}
		opts.knownHosts = path
		return nil
	}
}

// WithInsecureHostKey disables host key verification.
func WithInsecureHostKey() Option {
	return func(opts *connectOptions) error {
		opts.insecure = true
		return nil
	}
}

// DefaultKnownHosts returns ~/.ssh/known_hosts.
func DefaultKnownHosts() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

// Dial opens an SSH client to target. Host keys are checked against
// ~/.ssh/known_hosts unless an option says otherwise.
func Dial(ctx context.Context, target Target, opts ...Option) (*ssh.Client, error) {
	if strings.TrimSpace(target.Host) == "" {
		return nil, InvalidTargetError{Field: "host"}
	}
	user := strings.TrimSpace(target.User)
	if user == "" {
		return nil, InvalidTargetError{Field: "user"}
	}

	cfg := connectOptions{timeout: defaultDialTimeout, knownHosts: DefaultKnownHosts()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	authMethod, err := target.Credential.authMethod()
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := cfg.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.timeout,
	}

	addr := target.Addr()
	dialer := net.Dialer{Timeout: cfg.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(addr, user, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(cfg.timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, classifyDialError(addr, user, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (o connectOptions) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if o.insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if o.knownHosts == "" {
		return nil, HostKeyError{Reason: "no known_hosts file configured"}
	}
	cb, err := knownhosts.New(o.knownHosts)
	if err != nil {
		return nil, HostKeyError{Reason: "load " + o.knownHosts, Err: err}
	}
	return cb, nil
}

func classifyDialError(addr, user string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return TimeoutError{Addr: addr, Err: err}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"):
		return AuthenticationError{Username: user, Err: err}
	case strings.Contains(msg, "knownhosts: key"):
		return HostKeyError{Reason: "host key for " + addr + " not trusted", Err: err}
	}
	return DialError{Addr: addr, Err: err}
}

func (c Credential) authMethod() (ssh.AuthMethod, error) {
	hasPassword := strings.TrimSpace(c.Password) != ""
	hasKey := strings.TrimSpace(c.KeyPath) != ""

	switch {
	case hasPassword && hasKey:
		return nil, CredentialError{Reason: "provide either password or key path, not both"}
	case !hasPassword && !hasKey:
		return nil, CredentialError{Reason: "password or key path required"}
	}

	if hasPassword {
		return ssh.Password(c.Password), nil
	}

	keyBytes, err := os.ReadFile(c.KeyPath)
	if err != nil {
		return nil, KeyLoadError{Path: c.KeyPath, Err: err}
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, KeyParseError{Path: c.KeyPath, Err: err}
	}
	return ssh.PublicKeys(signer), nil
}
