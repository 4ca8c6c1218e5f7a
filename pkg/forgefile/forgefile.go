// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	// DefaultName is the base name for forgefile manifests.
	DefaultName = "forgefile.cue"

	// DefaultWorkdir is the in-image working directory used when the
	// manifest does not set one. Fetched sources extract here.
	DefaultWorkdir = "/opt/envforge"
)

var (
	// ErrNoSteps is returned when a manifest declares no provisioning steps.
	ErrNoSteps = errors.New("manifest declares no steps")

	// ErrBackwardDependency is the sentinel error wrapped by BackwardDependencyError.
	ErrBackwardDependency = errors.New("backward step dependency")
)

type (
	// Forgefile represents a parsed build recipe manifest.
	Forgefile struct {
		// BaseImage is the image reference the recipe starts from.
		BaseImage string `json:"base"`
		// Tag is the output image tag. Empty means a content-addressed tag
		// is generated at build time.
		Tag string `json:"tag,omitempty"`
		// Workdir is the default working directory for in-image steps.
		Workdir string `json:"workdir,omitempty"`
		// Env holds environment variables baked into the final image.
		Env map[string]string `json:"env,omitempty"`
		// Steps are the ordered provisioning directives.
		Steps []Step `json:"steps"`

		// FilePath stores where this manifest was loaded from (not in CUE).
		FilePath string `json:"-"`
	}

	// BackwardDependencyError is returned when a build-install step references
	// a source tree that no earlier fetch step produced. Step preconditions
	// must be satisfied by the cumulative effect of the steps before it.
	BackwardDependencyError struct {
		Index   int
		Workdir string
	}
)

// Error implements the error interface.
func (e *BackwardDependencyError) Error() string {
	return fmt.Sprintf("step %d: workdir %q is not produced by any earlier fetch step", e.Index+1, e.Workdir)
}

// Unwrap returns ErrBackwardDependency for errors.Is compatibility.
func (e *BackwardDependencyError) Unwrap() error { return ErrBackwardDependency }

// validate checks the manifest beyond what the CUE schema expresses:
// per-step argument shapes and the forward-only dependency invariant.
func (f *Forgefile) validate() error {
	if strings.TrimSpace(f.BaseImage) == "" {
		return errors.New("base image must be non-empty")
	}
	if len(f.Steps) == 0 {
		return ErrNoSteps
	}

	for i, step := range f.Steps {
		if err := step.Validate(i); err != nil {
			return err
		}
	}

	return f.validateStepOrder()
}

// validateStepOrder enforces the ordering invariant: a build-install step
// with a relative workdir may only reference a directory introduced by an
// earlier fetch step. Absolute workdirs are assumed to exist in the base
// image and are not checked.
func (f *Forgefile) validateStepOrder() error {
	produced := make(map[string]bool)

	for i, step := range f.Steps {
		switch step.Kind {
		case StepFetch:
			produced[path.Clean(step.ExtractDir())] = true
		case StepBuildInstall:
			wd := path.Clean(step.Workdir)
			if path.IsAbs(wd) {
				continue
			}
			if !produced[wd] {
				return &BackwardDependencyError{Index: i, Workdir: step.Workdir}
			}
		}
	}

	return nil
}

// EffectiveWorkdir returns the manifest workdir, or DefaultWorkdir when the
// manifest does not set one.
func (f *Forgefile) EffectiveWorkdir() string {
	if strings.TrimSpace(f.Workdir) == "" {
		return DefaultWorkdir
	}
	return f.Workdir
}

// FetchSteps returns the indices of all steps that stage a payload from the
// network (fetch and download kinds), in declaration order.
func (f *Forgefile) FetchSteps() []int {
	var idx []int
	for i, s := range f.Steps {
		if s.Kind == StepFetch || s.Kind == StepDownload {
			idx = append(idx, i)
		}
	}
	return idx
}
