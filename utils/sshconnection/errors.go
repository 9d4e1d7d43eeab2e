package sshconnection

import "fmt"

// InvalidTargetError reports a missing target field.
type InvalidTargetError struct {
	Field string
}

func (e InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid SSH target: %s is required", e.Field)
}

// CredentialError reports an unusable credential.
type CredentialError struct {
	Reason string
}

func (e CredentialError) Error() string {
	return fmt.Sprintf("invalid credential: %s", e.Reason)
}

// KeyLoadError wraps a private key read failure.
type KeyLoadError struct {
	Path string
	Err  error
}

func (e KeyLoadError) Error() string {
	return fmt.Sprintf("failed to load private key from %s: %v", e.Path, e.Err)
}

func (e KeyLoadError) Unwrap() error {
	return e.Err
}

// KeyParseError wraps a private key parse failure.
type KeyParseError struct {
	Path string
	Err  error
}

func (e KeyParseError) Error() string {
	return fmt.Sprintf("failed to parse private key %s: %v", e.Path, e.Err)
}

func (e KeyParseError) Unwrap() error {
	return e.Err
}

// AuthenticationError reports rejected credentials.
type AuthenticationError struct {
	Username string
	Err      error
}

func (e AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e AuthenticationError) Unwrap() error {
	return e.Err
}

// DialError wraps network failures reaching the host.
type DialError struct {
	Addr string
	Err  error
}

func (e DialError) Error() string {
	return fmt.Sprintf("failed to dial %s: %v", e.Addr, e.Err)
}

func (e DialError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a dial that exceeded its timeout.
type TimeoutError struct {
	Addr string
	Err  error
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("timeout while connecting to %s: %v", e.Addr, e.Err)
}

func (e TimeoutError) Unwrap() error {
	return e.Err
}

// OptionError reports an invalid Dial option.
type OptionError struct {
	Reason string
}

func (e OptionError) Error() string {
	return fmt.Sprintf("invalid option: %s", e.Reason)
}

// HostKeyError reports a host key that could not be verified.
type HostKeyError struct {
	Reason string
	Err    error
}

func (e HostKeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("host key verification: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("host key verification: %s", e.Reason)
}

func (e HostKeyError) Unwrap() error {
	return e.Err
}
