package phases

import "fmt"

type gateKind int

const (
	gateAlways gateKind = iota
	gateProfile
	gateFeature
	gateSelection
)

// Gate decides whether a registry entry belongs in a run.
type Gate struct {
	kind    gateKind
	profile Profile
	name    string
}

// Always includes the entry unconditionally.
func Always() Gate {
	return Gate{kind: gateAlways}
}

// ProfileAtLeast includes the entry when the run profile is p or broader.
func ProfileAtLeast(p Profile) Gate {
	return Gate{kind: gateProfile, profile: p}
}

// FeatureEnabled includes the entry when the named feature flag is on.
func FeatureEnabled(name string) Gate {
	return Gate{kind: gateFeature, name: name}
}

// SelectionNonEmpty includes the entry when the selection under key has
// items. An empty key matches any non-empty selection.
func SelectionNonEmpty(key string) Gate {
	return Gate{kind: gateSelection, name: key}
}

// Allows evaluates the gate against opts.
func (g Gate) Allows(opts RunOptions) bool {
	switch g.kind {
	case gateAlways:
		return true
	case gateProfile:
		return opts.Profile >= g.profile
	case gateFeature:
		return opts.FeatureEnabled(g.name)
	case gateSelection:
		return len(opts.Selected(g.name)) > 0
	default:
		return false
	}
}

func (g Gate) String() string {
	switch g.kind {
	case gateAlways:
		return "always"
	case gateProfile:
		return fmt.Sprintf("profile>=%s", g.profile)
	case gateFeature:
		return fmt.Sprintf("feature:%s", g.name)
	case gateSelection:
		if g.name == "" {
			return "selection:any"
		}
		return fmt.Sprintf("selection:%s", g.name)
	default:
		return "unknown"
	}
}
