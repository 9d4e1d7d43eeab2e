package sshkeypair

import "fmt"

// PathError reports a private key location that cannot be used or resolved.
type PathError struct {
	Path   string
	Reason string
}

func (e PathError) Error() string {
	if e.Path == "" {
		return "ssh key path: " + e.Reason
	}
	return fmt.Sprintf("ssh key path %s: %s", e.Path, e.Reason)
}

// FileOp names the filesystem step that failed on a key file.
type FileOp string

const (
	OpStat  FileOp = "stat"
	OpRead  FileOp = "read"
	OpWrite FileOp = "write"
	OpMkdir FileOp = "create directory for"
)

// KeyFileError wraps a filesystem failure on the private or public half.
type KeyFileError struct {
	Op   FileOp
	Path string
	Err  error
}

func (e KeyFileError) Error() string {
	return fmt.Sprintf("%s ssh key %s: %v", e.Op, e.Path, e.Err)
}

func (e KeyFileError) Unwrap() error {
	return e.Err
}

// KeyParseError means an existing private key is not in OpenSSH or PEM form,
// or is passphrase protected.
type KeyParseError struct {
	Path string
	Err  error
}

func (e KeyParseError) Error() string {
	return fmt.Sprintf("parse ssh key %s: %v", e.Path, e.Err)
}

func (e KeyParseError) Unwrap() error {
	return e.Err
}

// KeyGenerateError wraps a failure creating or encoding a new key of Type.
type KeyGenerateError struct {
	Type KeyType
	Err  error
}

func (e KeyGenerateError) Error() string {
	return fmt.Sprintf("generate %s key: %v", e.Type, e.Err)
}

func (e KeyGenerateError) Unwrap() error {
	return e.Err
}

// OptionError rejects an EnsureKeyPair option value.
type OptionError struct {
	Option string
	Value  any
	Reason string
}

func (e OptionError) Error() string {
	return fmt.Sprintf("ssh key option %s=%v: %s", e.Option, e.Value, e.Reason)
}
