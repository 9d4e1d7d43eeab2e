package drivers

import (
	"bufio"
	"context"
	"strings"

	"github.com/BrianJOC/distro-bootstrap/utils/shell"
)

const osReleasePath = "/etc/os-release"

// Platform identifies the target operating system.
type Platform struct {
	ID         string
	IDLike     []string
	VersionID  string
	Codename   string
	PrettyName string
}

// Is reports whether the platform ID or any ID_LIKE entry matches one of ids.
func (p Platform) Is(ids ...string) bool {
	for _, id := range ids {
		if strings.EqualFold(p.ID, id) {
			return true
		}
		for _, like := range p.IDLike {
			if strings.EqualFold(like, id) {
				return true
			}
		}
	}
	return false
}

func (p Platform) String() string {
	if p.PrettyName != "" {
		return p.PrettyName
	}
	if p.VersionID != "" {
		return p.ID + " " + p.VersionID
	}
	return p.ID
}

// ParseOSRelease decodes the os-release(5) format.
func ParseOSRelease(content string) (Platform, error) {
	var p Platform
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = unquote(strings.TrimSpace(value))
		switch strings.TrimSpace(key) {
		case "ID":
			p.ID = strings.ToLower(value)
		case "ID_LIKE":
			p.IDLike = strings.Fields(strings.ToLower(value))
		case "VERSION_ID":
			p.VersionID = value
		case "VERSION_CODENAME":
			p.Codename = value
		case "PRETTY_NAME":
			p.PrettyName = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Platform{}, err
	}
	if p.ID == "" {
		return Platform{}, PlatformError{Reason: "os-release has no ID field"}
	}
	return p, nil
}

// DetectPlatform reads /etc/os-release through runner, so it works for local
// and SSH targets alike.
func DetectPlatform(ctx context.Context, runner shell.Runner) (Platform, error) {
	if runner == nil {
		return Platform{}, PlatformError{Reason: "runner is required"}
	}
	res, err := runner.Run(ctx, "cat "+osReleasePath, "")
	if err != nil {
		return Platform{}, PlatformError{Reason: "read " + osReleasePath, Err: err}
	}
	return ParseOSRelease(res.Stdout)
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			value = value[1 : len(value)-1]
		}
	}
	return strings.ReplaceAll(value, `\"`, `"`)
}
