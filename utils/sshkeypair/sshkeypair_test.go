package sshkeypair

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestEnsureKeyPairCreatesEd25519Pair(t *testing.T) {
	t.Parallel()

	private := filepath.Join(t.TempDir(), "nested", "id_test")

	info, err := EnsureKeyPair(private, WithComment("test@example.com"))
	require.NoError(t, err)
	require.True(t, info.KeyGenerated)
	require.True(t, info.PublicCreated)
	require.Equal(t, []string{private, private + ".pub"}, info.Created())
	require.True(t, strings.HasPrefix(info.PublicKey, "ssh-ed25519 "))
	require.True(t, strings.HasSuffix(info.PublicKey, " test@example.com"))

	privBytes, err := os.ReadFile(info.PrivatePath)
	require.NoError(t, err)
	require.Contains(t, string(privBytes), "BEGIN OPENSSH PRIVATE KEY")
	stat, err := os.Stat(info.PrivatePath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())

	pubBytes, err := os.ReadFile(info.PublicPath)
	require.NoError(t, err)
	_, _, _, _, err = ssh.ParseAuthorizedKey(pubBytes)
	require.NoError(t, err)
}

func TestEnsureKeyPairCreatesRSAPair(t *testing.T) {
	t.Parallel()

	private := filepath.Join(t.TempDir(), "id_rsa")
	info, err := EnsureKeyPair(private, WithKeyType(KeyTypeRSA), WithKeyBits(2048))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(info.PublicKey, "ssh-rsa "))
}

func TestEnsureKeyPairReusesExisting(t *testing.T) {
	t.Parallel()

	private := filepath.Join(t.TempDir(), "id_reuse")

	first, err := EnsureKeyPair(private)
	require.NoError(t, err)
	info, err := EnsureKeyPair(private)
	require.NoError(t, err)
	require.False(t, info.KeyGenerated)
	require.False(t, info.PublicCreated)
	require.Empty(t, info.Created())
	require.Equal(t, first.PublicKey, info.PublicKey)
}

func TestEnsureKeyPairRegeneratesMissingPublic(t *testing.T) {
	t.Parallel()

	private := filepath.Join(t.TempDir(), "id_missing_pub")

	first, err := EnsureKeyPair(private)
	require.NoError(t, err)
	require.NoError(t, os.Remove(private+".pub"))

	info, err := EnsureKeyPair(private)
	require.NoError(t, err)
	require.False(t, info.KeyGenerated)
	require.True(t, info.PublicCreated)
	require.Equal(t, []string{private + ".pub"}, info.Created())
	require.Equal(t, first.PublicKey, info.PublicKey)
}

func TestEnsureKeyPairValidatesInput(t *testing.T) {
	t.Parallel()

	_, err := EnsureKeyPair("")
	require.IsType(t, PathError{}, err)

	_, err = EnsureKeyPair("some", WithKeyBits(1024))
	require.IsType(t, OptionError{}, err)

	_, err = EnsureKeyPair("some", WithKeyType("dsa"))
	require.IsType(t, OptionError{}, err)

	bad := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o600))
	_, err = EnsureKeyPair(bad)
	require.IsType(t, KeyParseError{}, err)
}

func TestEnsureKeyPairErrorDetails(t *testing.T) {
	t.Parallel()

	_, err := EnsureKeyPair("some", WithKeyBits(1024))
	var optErr OptionError
	require.ErrorAs(t, err, &optErr)
	require.Equal(t, "bits", optErr.Option)
	require.Equal(t, 1024, optErr.Value)
	require.Contains(t, err.Error(), "bits=1024")

	_, err = EnsureKeyPair("some", WithKeyType("dsa"))
	require.ErrorAs(t, err, &optErr)
	require.Equal(t, "type", optErr.Option)

	dir := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.Mkdir(dir, 0o700))
	_, err = EnsureKeyPair(dir)
	var fileErr KeyFileError
	require.ErrorAs(t, err, &fileErr)
	require.Equal(t, OpRead, fileErr.Op)
	require.Equal(t, dir, fileErr.Path)
	require.Contains(t, err.Error(), "read ssh key "+dir)

	gen := KeyGenerateError{Type: KeyTypeRSA, Err: errors.New("entropy")}
	require.Equal(t, "generate rsa key: entropy", gen.Error())
	require.ErrorIs(t, gen, gen.Err)
}
