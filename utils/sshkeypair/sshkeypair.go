// Package sshkeypair ensures an SSH key pair exists on the local machine and
// exposes its authorized_keys line.
package sshkeypair

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyType selects the generated key algorithm.
type KeyType string

const (
	KeyTypeEd25519 KeyType = "ed25519"
	KeyTypeRSA     KeyType = "rsa"
)

const (
	defaultBits    = 4096
	minKeyBits     = 2048
	defaultComment = "distro-bootstrap"
)

// KeyPairInfo describes the ensured key pair.
type KeyPairInfo struct {
	PrivatePath   string
	PublicPath    string
	PublicKey     string
	KeyGenerated  bool
	PublicCreated bool
}

// Created lists the files EnsureKeyPair wrote.
func (i *KeyPairInfo) Created() []string {
	if i == nil {
		return nil
	}
	var out []string
	if i.KeyGenerated {
		out = append(out, i.PrivatePath)
	}
	if i.PublicCreated {
		out = append(out, i.PublicPath)
	}
	return out
}

// Option configures EnsureKeyPair behavior.
type Option func(*ensureOptions) error

type ensureOptions struct {
	keyType KeyType
	bits    int
	comment string
}

// WithKeyType overrides the key algorithm (default ed25519).
func WithKeyType(kt KeyType) Option {
	return func(opts *ensureOptions) error {
		switch kt {
		case KeyTypeEd25519, KeyTypeRSA:
			opts.keyType = kt
			return nil
		}
		return OptionError{Option: "type", Value: kt, Reason: "want ed25519 or rsa"}
	}
}

// WithKeyBits overrides the RSA key size.
func WithKeyBits(bits int) Option {
	return func(opts *ensureOptions) error {
		if bits < minKeyBits {
			return OptionError{Option: "bits", Value: bits, Reason: fmt.Sprintf("must be at least %d", minKeyBits)}
		}
		opts.bits = bits
		return nil
	}
}

// WithComment overrides the comment appended to the public key line.
func WithComment(comment string) Option {
	return func(opts *ensureOptions) error {
		comment = strings.TrimSpace(comment)
		if comment == "" {
			return OptionError{Option: "comment", Value: comment, Reason: "must not be empty"}
		}
		opts.comment = comment
		return nil
	}
}

// DefaultPath returns ~/.ssh/id_<type>.
func DefaultPath(kt KeyType) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", PathError{Reason: "resolve home directory: " + err.Error()}
	}
	if kt == "" {
		kt = KeyTypeEd25519
	}
	return filepath.Join(home, ".ssh", "id_"+string(kt)), nil
}

// EnsureKeyPair loads the key at privatePath, creating the pair or the
// missing public half as needed.
func EnsureKeyPair(privatePath string, opts ...Option) (*KeyPairInfo, error) {
	privatePath = strings.TrimSpace(privatePath)
	if privatePath == "" {
		return nil, PathError{Reason: "private key path is required"}
	}

	cfg := ensureOptions{keyType: KeyTypeEd25519, bits: defaultBits, comment: defaultComment}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	info := &KeyPairInfo{PrivatePath: privatePath, PublicPath: privatePath + ".pub"}

	privExists, err := fileExists(info.PrivatePath)
	if err != nil {
		return nil, KeyFileError{Op: OpStat, Path: info.PrivatePath, Err: err}
	}
	pubExists, err := fileExists(info.PublicPath)
	if err != nil {
		return nil, KeyFileError{Op: OpStat, Path: info.PublicPath, Err: err}
	}

	var signer ssh.Signer
	if privExists {
		signer, err = readPrivateKey(info.PrivatePath)
		if err != nil {
			return nil, err
		}
	} else {
		key, err := generate(cfg)
		if err != nil {
			return nil, err
		}
		if err := writePrivateKey(info.PrivatePath, key, cfg.comment); err != nil {
			return nil, err
		}
		info.KeyGenerated = true
		signer, err = ssh.NewSignerFromKey(key)
		if err != nil {
			return nil, KeyGenerateError{Type: cfg.keyType, Err: err}
		}
	}

	line := authorizedLine(signer.PublicKey(), cfg.comment)
	if !privExists || !pubExists {
		if err := writeFile(info.PublicPath, []byte(line+"\n"), 0o644); err != nil {
			return nil, err
		}
		info.PublicCreated = true
		info.PublicKey = line
		return info, nil
	}

	existing, err := os.ReadFile(info.PublicPath)
	if err != nil {
		return nil, KeyFileError{Op: OpRead, Path: info.PublicPath, Err: err}
	}
	info.PublicKey = strings.TrimSpace(string(existing))
	return info, nil
}

func generate(cfg ensureOptions) (crypto.Signer, error) {
	switch cfg.keyType {
	case KeyTypeRSA:
		key, err := rsa.GenerateKey(rand.Reader, cfg.bits)
		if err != nil {
			return nil, KeyGenerateError{Type: KeyTypeRSA, Err: err}
		}
		return key, nil
	default:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, KeyGenerateError{Type: KeyTypeEd25519, Err: err}
		}
		return key, nil
	}
}

func writePrivateKey(path string, key crypto.Signer, comment string) error {
	block, err := ssh.MarshalPrivateKey(key, comment)
	if err != nil {
		return KeyFileError{Op: OpWrite, Path: path, Err: err}
	}
	return writeFile(path, pem.EncodeToMemory(block), 0o600)
}

func authorizedLine(pub ssh.PublicKey, comment string) string {
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if comment != "" {
		line = fmt.Sprintf("%s %s", line, comment)
	}
	return line
}

func readPrivateKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, KeyFileError{Op: OpRead, Path: path, Err: err}
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, KeyParseError{Path: path, Err: err}
	}
	return signer, nil
}

func writeFile(path string, data []byte, mode os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return KeyFileError{Op: OpMkdir, Path: path, Err: err}
		}
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return KeyFileError{Op: OpWrite, Path: path, Err: err}
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
