// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	// StepPackageInstall installs packages via a package manager.
	StepPackageInstall StepKind = "package-install"
	// StepFetch downloads and extracts an archive.
	StepFetch StepKind = "fetch"
	// StepBuildInstall runs a build/install procedure in a source tree.
	StepBuildInstall StepKind = "build-install"
	// StepDownload places a single file at a fixed path.
	StepDownload StepKind = "download"

	// ManagerApt is the Debian/Ubuntu system package manager.
	ManagerApt PackageManager = "apt"
	// ManagerApk is the Alpine system package manager.
	ManagerApk PackageManager = "apk"
	// ManagerDnf is the Fedora/RHEL system package manager.
	ManagerDnf PackageManager = "dnf"
	// ManagerPip is the Python package installer.
	ManagerPip PackageManager = "pip"
)

var (
	// ErrUnknownStepKind is the sentinel error wrapped by UnknownStepKindError.
	ErrUnknownStepKind = errors.New("unknown step kind")

	// ErrUnknownPackageManager is the sentinel error wrapped by UnknownPackageManagerError.
	ErrUnknownPackageManager = errors.New("unknown package manager")

	// ErrInvalidStep is the sentinel error wrapped by InvalidStepError.
	ErrInvalidStep = errors.New("invalid step")
)

type (
	// StepKind identifies one of the four provisioning step variants.
	StepKind string

	// UnknownStepKindError is returned when a StepKind is not a recognized kind.
	UnknownStepKindError struct {
		Value StepKind
	}

	// PackageManager identifies the package manager a package-install step invokes.
	// The zero value ("") is valid and means "default to apt".
	PackageManager string

	// UnknownPackageManagerError is returned when a PackageManager is not recognized.
	UnknownPackageManagerError struct {
		Value PackageManager
	}

	// Step is one provisioning directive. The populated fields depend on Kind;
	// Validate enforces the per-kind argument shape, so a Step that validates
	// carries exactly the fields its kind defines.
	Step struct {
		// Kind selects the step variant.
		Kind StepKind `json:"kind"`
		// Name is an optional display name for progress output.
		Name string `json:"name,omitempty"`

		// Manager and Packages apply to package-install steps.
		Manager  PackageManager `json:"manager,omitempty"`
		Packages []string       `json:"packages,omitempty"`

		// URL applies to fetch and download steps.
		URL string `json:"url,omitempty"`
		// SHA256 optionally pins the payload of fetch and download steps.
		SHA256 string `json:"sha256,omitempty"`

		// Workdir is the extraction directory of a fetch step or the source
		// tree of a build-install step.
		Workdir string `json:"workdir,omitempty"`

		// Command overrides the build procedure of a build-install step.
		Command []string `json:"command,omitempty"`

		// Dest and Executable apply to download steps.
		Dest       string `json:"dest,omitempty"`
		Executable bool   `json:"executable,omitempty"`
	}

	// InvalidStepError is returned when a step's arguments do not match the
	// shape its kind requires. It wraps the individual field errors.
	InvalidStepError struct {
		Index     int
		Kind      StepKind
		FieldErrs []error
	}
)

// Error implements the error interface.
func (e *UnknownStepKindError) Error() string {
	return fmt.Sprintf("unknown step kind %q (valid: package-install, fetch, build-install, download)", e.Value)
}

// Unwrap returns ErrUnknownStepKind so callers can use errors.Is.
func (e *UnknownStepKindError) Unwrap() error { return ErrUnknownStepKind }

// Validate returns an error if the StepKind is not one of the defined kinds.
func (k StepKind) Validate() error {
	switch k {
	case StepPackageInstall, StepFetch, StepBuildInstall, StepDownload:
		return nil
	default:
		return &UnknownStepKindError{Value: k}
	}
}

// String returns the string representation of the StepKind.
func (k StepKind) String() string { return string(k) }

// Error implements the error interface.
func (e *UnknownPackageManagerError) Error() string {
	return fmt.Sprintf("unknown package manager %q (valid: apt, apk, dnf, pip)", e.Value)
}

// Unwrap returns ErrUnknownPackageManager so callers can use errors.Is.
func (e *UnknownPackageManagerError) Unwrap() error { return ErrUnknownPackageManager }

// Validate returns an error if the PackageManager is not one of the defined
// managers. The zero value ("") is valid and treated as apt.
func (m PackageManager) Validate() error {
	switch m {
	case ManagerApt, ManagerApk, ManagerDnf, ManagerPip, "":
		return nil
	default:
		return &UnknownPackageManagerError{Value: m}
	}
}

// String returns the string representation of the PackageManager.
func (m PackageManager) String() string { return string(m) }

// Error implements the error interface for InvalidStepError.
func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("step %d (%s): %d field error(s)", e.Index+1, e.Kind, len(e.FieldErrs))
}

// Unwrap returns ErrInvalidStep for errors.Is compatibility.
func (e *InvalidStepError) Unwrap() error { return ErrInvalidStep }

// DisplayName returns the step's name, or a synthesized "kind target" label
// when no explicit name is set.
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind {
	case StepPackageInstall:
		return fmt.Sprintf("%s install %s", s.EffectiveManager(), strings.Join(s.Packages, " "))
	case StepFetch:
		return "fetch " + s.URL
	case StepBuildInstall:
		return "build " + s.Workdir
	case StepDownload:
		return "download " + s.Dest
	default:
		return string(s.Kind)
	}
}

// EffectiveManager returns the package manager for a package-install step,
// defaulting to apt when unset.
func (s Step) EffectiveManager() PackageManager {
	if s.Manager == "" {
		return ManagerApt
	}
	return s.Manager
}

// ExtractDir returns the directory a fetch step's archive contents end up in.
// When Workdir is unset, the archive filename minus its extension is used,
// matching the top-level directory convention of release tarballs.
func (s Step) ExtractDir() string {
	if s.Workdir != "" {
		return s.Workdir
	}
	base := path.Base(s.URL)
	for _, ext := range []string{".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".tar", ".zip"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

// BuildCommand returns the command a build-install step runs inside its
// source tree, defaulting to the Python sdist procedure when the step does
// not override it.
func (s Step) BuildCommand() []string {
	if len(s.Command) > 0 {
		return s.Command
	}
	return []string{"python", "setup.py", "install"}
}

// Validate checks that the step's arguments match the shape its kind
// requires. The index is only used for error reporting.
func (s Step) Validate(index int) error {
	if err := s.Kind.Validate(); err != nil {
		return err
	}

	var errs []error

	switch s.Kind {
	case StepPackageInstall:
		if err := s.Manager.Validate(); err != nil {
			errs = append(errs, err)
		}
		if len(s.Packages) == 0 {
			errs = append(errs, errors.New("packages must not be empty"))
		}
		for _, p := range s.Packages {
			if strings.TrimSpace(p) == "" {
				errs = append(errs, errors.New("package names must be non-empty"))
				break
			}
		}
		errs = append(errs, s.rejectFields(index, "url", "dest", "command")...)

	case StepFetch:
		if err := validateURL(s.URL); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, s.rejectFields(index, "packages", "dest", "command")...)

	case StepBuildInstall:
		if strings.TrimSpace(s.Workdir) == "" {
			errs = append(errs, errors.New("workdir must be non-empty"))
		}
		errs = append(errs, s.rejectFields(index, "packages", "url", "dest")...)

	case StepDownload:
		if err := validateURL(s.URL); err != nil {
			errs = append(errs, err)
		}
		if !strings.HasPrefix(s.Dest, "/") {
			errs = append(errs, fmt.Errorf("dest %q must be an absolute path", s.Dest))
		}
		errs = append(errs, s.rejectFields(index, "packages", "workdir", "command")...)
	}

	if len(errs) > 0 {
		return &InvalidStepError{Index: index, Kind: s.Kind, FieldErrs: errs}
	}
	return nil
}

// rejectFields reports which of the named fields are set even though the
// step's kind does not define them. The CUE schema already rules these out
// for documents parsed from disk; this catches Steps constructed in Go.
func (s Step) rejectFields(_ int, fields ...string) []error {
	var errs []error
	for _, f := range fields {
		set := false
		switch f {
		case "packages":
			set = len(s.Packages) > 0
		case "url":
			set = s.URL != ""
		case "dest":
			set = s.Dest != ""
		case "workdir":
			set = s.Workdir != ""
		case "command":
			set = len(s.Command) > 0
		}
		if set {
			errs = append(errs, fmt.Errorf("field %q is not valid for kind %q", f, s.Kind))
		}
	}
	return errs
}

// validateURL checks that raw is an absolute http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}
