package drivers

import "fmt"

// PlatformError reports that the target platform could not be identified.
type PlatformError struct {
	Reason string
	Err    error
}

func (e PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("platform detection failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("platform detection failed: %s", e.Reason)
}

func (e PlatformError) Unwrap() error {
	return e.Err
}

// UnsupportedPlatformError indicates no driver matched and none was chosen.
type UnsupportedPlatformError struct {
	Platform Platform
}

func (e UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no package driver supports %s", e.Platform)
}

// UnknownDriverError reports a driver name that is not compiled in.
type UnknownDriverError struct {
	Name string
}

func (e UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown driver %q", e.Name)
}
