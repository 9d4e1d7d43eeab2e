package config

import (
	"strconv"
	"strings"
)

// Flags carries command line overrides. Pointer fields are nil when the flag
// was not given.
type Flags struct {
	Profile         string
	Driver          string
	StagingDir      string
	ReportPath      string
	LogLevel        string
	DryRun          *bool
	ContinueOnError *bool
	Interactive     *bool
	Features        map[string]bool
	Selections      map[string][]string
}

// ParseFeature parses "name=bool". A bare "name" means true.
func ParseFeature(raw string) (string, bool, error) {
	name, value, hasValue := strings.Cut(strings.TrimSpace(raw), "=")
	name = strings.TrimSpace(name)
	if !featureNamePattern.MatchString(name) {
		return "", false, ValidationError{Field: "feature", Message: "invalid feature name " + strconv.Quote(name)}
	}
	if !hasValue {
		return name, true, nil
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return "", false, ValidationError{Field: "feature", Message: "invalid value for " + name, Err: err}
	}
	return name, enabled, nil
}

// ParseSelection parses "category=pkg,pkg".
func ParseSelection(raw string) (string, []string, error) {
	category, list, ok := strings.Cut(strings.TrimSpace(raw), "=")
	category = strings.TrimSpace(category)
	if !ok || !featureNamePattern.MatchString(category) {
		return "", nil, ValidationError{Field: "select", Message: "expected category=pkg[,pkg...], got " + strconv.Quote(raw)}
	}
	var pkgs []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !packageNamePattern.MatchString(p) {
			return "", nil, ValidationError{Field: "select", Message: "invalid package name " + strconv.Quote(p)}
		}
		pkgs = append(pkgs, p)
	}
	if len(pkgs) == 0 {
		return "", nil, ValidationError{Field: "select", Message: "no packages given for " + category}
	}
	return category, pkgs, nil
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
