// Package layout contains the typed views of the foreign structures for one
// target build. Unidentified bytes are kept as blank padding fields so that
// every view has the exact foreign size.
package layout

import (
	"errors"
	"fmt"
	"slices"
)

// Build is the target build the views in this package describe.
const Build = "3.25.3"

// Supported lists the target builds with a layout catalogue.
var Supported = []string{Build}

// ErrUnknownBuild is returned for a target build without layout catalogue.
var ErrUnknownBuild = errors.New("unknown target build")

// ErrBuildMismatch is returned when the selected layout build differs from
// the build a signature catalogue was written for.
var ErrBuildMismatch = errors.New("target build mismatch")

// Check returns an error if no layout catalogue exists for the build.
// An empty build selects the default.
func Check(build string) error {
	if build == "" || slices.Contains(Supported, build) {
		return nil
	}
	return fmt.Errorf("%w '%s', supported: %v", ErrUnknownBuild, build, Supported)
}

// Match returns an error if both builds are set and differ. An empty build
// matches any other build.
func Match(selected, catalogue string) error {
	if selected == "" || catalogue == "" || selected == catalogue {
		return nil
	}
	return fmt.Errorf("%w: layout build '%s', signature catalogue build '%s'",
		ErrBuildMismatch, selected, catalogue)
}
