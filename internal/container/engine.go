// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoEngineAvailable is returned when neither Docker nor Podman can be used.
var ErrNoEngineAvailable = errors.New("no container engine available")

type (
	// Engine defines the image operations the build pipeline relies on.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available checks if the engine is usable on this system.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)

		// Build builds an image from a Dockerfile. The engine tags the image
		// only when the whole build succeeds; a failed build leaves no
		// partially-tagged artifact.
		Build(ctx context.Context, opts BuildOptions) error
		// Pull pulls an image from its registry.
		Pull(ctx context.Context, image string) error
		// ImageExists checks if an image is present locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// ImageDigest returns the content digest of a local image.
		ImageDigest(ctx context.Context, image string) (string, error)
		// RemoveImage removes a local image.
		RemoveImage(ctx context.Context, image string, force bool) error
	}

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the path to the Dockerfile, relative to ContextDir.
		Dockerfile string
		// Tag is the image tag applied on success.
		Tag string
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// NoCache disables the engine's layer cache.
		NoCache bool
		// Pull forces re-pulling the base image.
		Pull bool
		// Stdout is where build progress is written.
		Stdout io.Writer
		// Stderr is where build errors are written.
		Stderr io.Writer
	}

	// EngineType identifies the container engine type.
	EngineType string

	// ErrEngineNotAvailable is returned when a requested engine is unusable.
	ErrEngineNotAvailable struct {
		Engine string
		Reason string
	}
)

const (
	EngineTypeDocker EngineType = "docker"
	EngineTypePodman EngineType = "podman"
	// EngineTypeAuto selects whichever engine is available.
	EngineTypeAuto EngineType = "auto"
)

// Error implements the error interface.
func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable for errors.Is classification.
func (e *ErrEngineNotAvailable) Unwrap() error { return ErrNoEngineAvailable }

// Validate checks BuildOptions before execution so invalid fields surface
// with clear messages instead of engine CLI errors.
func (o BuildOptions) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ContextDir) == "" {
		errs = append(errs, errors.New("context directory must be non-empty"))
	}
	if strings.TrimSpace(o.Tag) == "" {
		errs = append(errs, errors.New("image tag must be non-empty"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// NewEngine creates a container engine based on preference, falling back to
// the other CLI engine when the preferred one is unavailable.
func NewEngine(preferred EngineType) (Engine, error) {
	switch preferred {
	case EngineTypeDocker:
		docker := NewDockerEngine()
		if docker.Available() {
			return docker, nil
		}
		podman := NewPodmanEngine()
		if podman.Available() {
			return podman, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	case EngineTypePodman:
		podman := NewPodmanEngine()
		if podman.Available() {
			return podman, nil
		}
		docker := NewDockerEngine()
		if docker.Available() {
			return docker, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	case EngineTypeAuto, "":
		return AutoDetectEngine()

	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferred)
	}
}

// AutoDetectEngine tries to find an available container engine, preferring
// Podman (more commonly available in rootless setups).
func AutoDetectEngine() (Engine, error) {
	podman := NewPodmanEngine()
	if podman.Available() {
		return podman, nil
	}

	docker := NewDockerEngine()
	if docker.Available() {
		return docker, nil
	}

	return nil, &ErrEngineNotAvailable{
		Engine: "any",
		Reason: "no container engine (podman or docker) is available on this system",
	}
}
