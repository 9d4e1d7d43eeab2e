// Package drivers maps canonical package, service and repository names onto a
// host's package ecosystem.
package drivers

import (
	"fmt"
	"strings"
)

// RepoKind names a third-party repository a phase may configure.
type RepoKind string

const (
	RepoDocker RepoKind = "docker"
)

// RepoConfig describes an extra package repository. Content and KeyURL may
// contain {{ID}}, {{CODENAME}} and {{VERSION}} placeholders.
type RepoConfig struct {
	Name    string
	Path    string
	Content string
	KeyURL  string
	KeyPath string
}

// Render substitutes platform placeholders.
func (r RepoConfig) Render(p Platform) RepoConfig {
	replacer := strings.NewReplacer(
		"{{ID}}", p.ID,
		"{{CODENAME}}", p.Codename,
		"{{VERSION}}", p.VersionID,
	)
	out := r
	out.Content = replacer.Replace(r.Content)
	out.KeyURL = replacer.Replace(r.KeyURL)
	return out
}

// Driver adapts canonical names to one package ecosystem.
type Driver interface {
	Name() string
	Description() string
	Matches(p Platform) bool
	Backend() Backend
	// TranslatePackage returns false when the package has no equivalent and
	// should be skipped.
	TranslatePackage(canonical string) (string, bool)
	RepoConfig(kind RepoKind) (RepoConfig, bool)
	ServiceUnit(service string) string
}

// Backend renders package manager command lines.
type Backend struct {
	Binary  string
	Refresh string
	Install string
	Remove  string
	// Query is a format string taking one package name; it exits zero when
	// the package is installed.
	Query string
}

// RefreshCommand returns the metadata refresh command.
func (b Backend) RefreshCommand() string {
	return b.Refresh
}

// InstallCommand returns the command installing pkgs.
func (b Backend) InstallCommand(pkgs ...string) string {
	return joinCommand(b.Install, pkgs)
}

// RemoveCommand returns the command removing pkgs.
func (b Backend) RemoveCommand(pkgs ...string) string {
	return joinCommand(b.Remove, pkgs)
}

// QueryCommand returns the command testing whether pkg is installed.
func (b Backend) QueryCommand(pkg string) string {
	return fmt.Sprintf(b.Query, quote(pkg))
}

// PresenceCommand checks that the backend binary exists.
func (b Backend) PresenceCommand() string {
	return "command -v " + quote(b.Binary) + " >/dev/null 2>&1"
}

func joinCommand(base string, pkgs []string) string {
	if len(pkgs) == 0 {
		return base
	}
	quoted := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		quoted = append(quoted, quote(p))
	}
	return base + " " + strings.Join(quoted, " ")
}

func quote(value string) string {
	if value == "" {
		return "''"
	}
	if strings.IndexFunc(value, needsQuoting) < 0 {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_.+:/=@", r):
		return false
	}
	return true
}

// table implements Driver from static lookup tables.
type table struct {
	name        string
	description string
	ids         []string
	backend     Backend
	packages    map[string]string
	skipped     map[string]struct{}
	repos       map[RepoKind]RepoConfig
	services    map[string]string
}

func (t *table) Name() string { return t.name }
func (t *table) Description() string { return t.description }
func (t *table) Backend() Backend { return t.backend }

func (t *table) Matches(p Platform) bool {
	return p.Is(t.ids...)
}

func (t *table) TranslatePackage(canonical string) (string, bool) {
	canonical = strings.TrimSpace(canonical)
	if canonical == "" {
		return "", false
	}
	if _, skip := t.skipped[canonical]; skip {
		return "", false
	}
	if native, ok := t.packages[canonical]; ok {
		return native, true
	}
	return canonical, true
}

func (t *table) RepoConfig(kind RepoKind) (RepoConfig, bool) {
	cfg, ok := t.repos[kind]
	return cfg, ok
}

func (t *table) ServiceUnit(service string) string {
	if unit, ok := t.services[service]; ok {
		return unit
	}
	return service
}

func skipSet(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}
