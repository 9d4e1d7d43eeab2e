package phases

import (
	"fmt"
	"sort"
	"strings"
)

// Profile orders installation breadth: Minimal < Dev < Full.
type Profile int

const (
	ProfileMinimal Profile = iota
	ProfileDev
	ProfileFull
)

// ParseProfile accepts "minimal", "dev" or "full" in any case.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal", "min":
		return ProfileMinimal, nil
	case "dev", "developer":
		return ProfileDev, nil
	case "full":
		return ProfileFull, nil
	default:
		return ProfileMinimal, ValidationError{Reason: fmt.Sprintf("unknown profile %q", s)}
	}
}

func (p Profile) String() string {
	switch p {
	case ProfileMinimal:
		return "minimal"
	case ProfileDev:
		return "dev"
	case ProfileFull:
		return "full"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Profile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Profile) UnmarshalText(text []byte) error {
	parsed, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ErrorPolicy decides whether recoverable failures stop the run.
type ErrorPolicy int

const (
	FailFast ErrorPolicy = iota
	ContinueOnError
)

func (p ErrorPolicy) String() string {
	if p == ContinueOnError {
		return "continue-on-error"
	}
	return "fail-fast"
}

// RunOptions is the snapshot of choices a run was started with. Treat it as
// immutable; use Clone before handing it out.
type RunOptions struct {
	Profile         Profile             `json:"profile"`
	StagingDir      string              `json:"staging_dir"`
	DryRun          bool                `json:"dry_run"`
	Interactive     bool                `json:"interactive"`
	Features        map[string]bool     `json:"features,omitempty"`
	ContinueOnError bool                `json:"continue_on_error"`
	Selections      map[string][]string `json:"selections,omitempty"`
	Services        []string            `json:"services,omitempty"`
}

// Clone deep-copies the options.
func (o RunOptions) Clone() RunOptions {
	out := o
	if o.Features != nil {
		out.Features = make(map[string]bool, len(o.Features))
		for k, v := range o.Features {
			out.Features[k] = v
		}
	}
	if o.Selections != nil {
		out.Selections = make(map[string][]string, len(o.Selections))
		for k, v := range o.Selections {
			out.Selections[k] = append([]string(nil), v...)
		}
	}
	if o.Services != nil {
		out.Services = append([]string(nil), o.Services...)
	}
	return out
}

// Policy derives the runner error policy.
func (o RunOptions) Policy() ErrorPolicy {
	if o.ContinueOnError {
		return ContinueOnError
	}
	return FailFast
}

// FeatureEnabled reports whether the named feature flag is on.
func (o RunOptions) FeatureEnabled(name string) bool {
	return o.Features[name]
}

// Selected returns the selection for key. An empty key returns every
// selection, ordered by category name.
func (o RunOptions) Selected(key string) []string {
	if key != "" {
		return append([]string(nil), o.Selections[key]...)
	}
	keys := make([]string, 0, len(o.Selections))
	for k := range o.Selections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, o.Selections[k]...)
	}
	return out
}
