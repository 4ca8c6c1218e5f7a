// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"envforge-cli/internal/fetch"
	"envforge-cli/pkg/forgefile"
)

var (
	// ErrUnresolvable is the sentinel for packages the step's package manager
	// cannot resolve.
	ErrUnresolvable = errors.New("package unresolvable")

	// ErrBuildFailed is the sentinel for in-image command failures: a failed
	// build-install compilation, a missing build descriptor, a RUN that
	// exited non-zero.
	ErrBuildFailed = errors.New("build step failed")
)

type (
	// DependencyError reports a package that the configured manager could
	// not locate or install.
	DependencyError struct {
		StepName string
		Manager  forgefile.PackageManager
		Packages []string
		Cause    error
	}

	// BuildError reports a step whose in-image command failed.
	BuildError struct {
		StepName string
		Cause    error
	}
)

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %q: %s could not resolve packages %v", e.StepName, e.Manager, e.Packages)
}

// Unwrap returns the sentinel (and cause, when present) for errors.Is.
func (e *DependencyError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrUnresolvable, e.Cause}
	}
	return []error{ErrUnresolvable}
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("step %q failed: %v", e.StepName, e.Cause)
	}
	return fmt.Sprintf("step %q failed", e.StepName)
}

// Unwrap returns the sentinel (and cause, when present) for errors.Is.
func (e *BuildError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrBuildFailed, e.Cause}
	}
	return []error{ErrBuildFailed}
}

// dependencyFailurePatterns maps package-manager output fragments to the
// managers that emit them. The engine reports every failed RUN the same way,
// so the build log is the only signal distinguishing an unresolvable package
// from an ordinary command failure.
var dependencyFailurePatterns = []string{
	"Unable to locate package",           // apt
	"has no installation candidate",      // apt
	"ERROR: unable to select packages",   // apk
	"No match for argument",              // dnf
	"Unable to find a match",             // dnf
	"No matching distribution found for", // pip
	"Could not find a version that satisfies the requirement", // pip
}

// ClassifyBuildFailure inspects the engine build log for the step that failed
// and wraps cause in a DependencyError or BuildError accordingly. The step is
// identified by scanning the log for the last step marker the Dockerfile
// generator emitted.
func ClassifyBuildFailure(f *forgefile.Forgefile, buildLog string, cause error) error {
	step := lastAttemptedStep(f, buildLog)

	if step != nil && step.Kind == forgefile.StepPackageInstall && isDependencyFailure(buildLog) {
		return &DependencyError{
			StepName: step.DisplayName(),
			Manager:  step.EffectiveManager(),
			Packages: step.Packages,
			Cause:    cause,
		}
	}

	name := "unknown"
	if step != nil {
		name = step.DisplayName()
	}
	return &BuildError{StepName: name, Cause: cause}
}

// isDependencyFailure reports whether the build log contains a known
// package-resolution failure message.
func isDependencyFailure(buildLog string) bool {
	for _, pattern := range dependencyFailurePatterns {
		if strings.Contains(buildLog, pattern) {
			return true
		}
	}
	return false
}

// lastAttemptedStep returns the last step whose marker appears in the build
// log, or nil when no marker matched.
func lastAttemptedStep(f *forgefile.Forgefile, buildLog string) *forgefile.Step {
	var last *forgefile.Step
	for i := range f.Steps {
		if strings.Contains(buildLog, stepMarker(i, &f.Steps[i])) {
			last = &f.Steps[i]
		}
	}
	return last
}

// ClassifyFetchError maps a staging failure onto the step that caused it. The
// fetch package already produces the right error family; this adds the step
// name for display.
func ClassifyFetchError(step *forgefile.Step, err error) error {
	switch {
	case errors.Is(err, fetch.ErrUnreachable), errors.Is(err, fetch.ErrCorruptPayload):
		return fmt.Errorf("step %q: %w", step.DisplayName(), err)
	default:
		return fmt.Errorf("step %q: failed to stage payload: %w", step.DisplayName(), err)
	}
}
