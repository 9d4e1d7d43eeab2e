package drivers

import "strings"

// All returns every compiled-in driver in preference order.
func All() []Driver {
	return []Driver{NewApt(), NewPacman(), NewDnf()}
}

// ByName finds a driver by name, case-insensitively.
func ByName(all []Driver, name string) (Driver, bool) {
	for _, d := range all {
		if d != nil && strings.EqualFold(d.Name(), name) {
			return d, true
		}
	}
	return nil, false
}

// ChooseFunc picks a driver when none matches the platform.
type ChooseFunc func(p Platform, all []Driver) (Driver, error)

// Select returns the first driver matching p. When none matches, choose is
// consulted; a nil choose yields UnsupportedPlatformError.
func Select(p Platform, all []Driver, choose ChooseFunc) (Driver, error) {
	for _, d := range all {
		if d != nil && d.Matches(p) {
			return d, nil
		}
	}
	if choose == nil {
		return nil, UnsupportedPlatformError{Platform: p}
	}
	d, err := choose(p, all)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, UnsupportedPlatformError{Platform: p}
	}
	return d, nil
}
