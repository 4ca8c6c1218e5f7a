// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"envforge-cli/pkg/forgefile"
)

const (
	// LockfileName is the base name of the lockfile written next to the
	// manifest.
	LockfileName = "forgefile.lock"

	// lockfileVersion is the current lockfile format version.
	lockfileVersion = 1
)

// ErrLockfileDrift is the sentinel for lockfile entries that no longer match
// the manifest or the staged payloads.
var ErrLockfileDrift = errors.New("lockfile drift")

type (
	// Lockfile records the resolved state of a build: which image a manifest
	// produced and the digest of every payload that went into it. A later
	// build with --locked fails when reality has drifted from this snapshot.
	Lockfile struct {
		// Version is the lockfile format version.
		Version int `toml:"version"`
		// GeneratedAt records when the snapshot was taken.
		GeneratedAt time.Time `toml:"generated_at"`
		// BaseImage is the base image reference the build used.
		BaseImage string `toml:"base_image"`
		// ImageTag is the tag the build produced.
		ImageTag string `toml:"image_tag"`
		// Payloads maps payload URLs to their sha256 digests.
		Payloads map[string]string `toml:"payloads,omitempty"`
	}

	// LockfileDriftError reports one URL whose payload digest diverged.
	LockfileDriftError struct {
		URL  string
		Want string
		Got  string
	}
)

// Error implements the error interface.
func (e *LockfileDriftError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("lockfile records payload %s but the manifest no longer uses it", e.URL)
	}
	if e.Want == "" {
		return fmt.Sprintf("payload %s is not recorded in the lockfile", e.URL)
	}
	return fmt.Sprintf("payload %s drifted: lockfile has %s, build produced %s", e.URL, e.Want, e.Got)
}

// Unwrap returns ErrLockfileDrift for errors.Is classification.
func (e *LockfileDriftError) Unwrap() error { return ErrLockfileDrift }

// LockfilePath returns the lockfile path for a manifest.
func LockfilePath(f *forgefile.Forgefile) string {
	dir := "."
	if f.FilePath != "" {
		dir = filepath.Dir(f.FilePath)
	}
	return filepath.Join(dir, LockfileName)
}

// WriteLockfile snapshots a build result next to the manifest.
func WriteLockfile(f *forgefile.Forgefile, result *Result) error {
	lock := Lockfile{
		Version:     lockfileVersion,
		GeneratedAt: time.Now().UTC(),
		BaseImage:   f.BaseImage,
		ImageTag:    result.ImageTag,
		Payloads:    result.Payloads,
	}

	data, err := toml.Marshal(lock)
	if err != nil {
		return fmt.Errorf("failed to encode lockfile: %w", err)
	}

	if err := os.WriteFile(LockfilePath(f), data, 0o644); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}

	return nil
}

// ReadLockfile loads the lockfile for a manifest. A missing lockfile returns
// os.ErrNotExist.
func ReadLockfile(f *forgefile.Forgefile) (*Lockfile, error) {
	data, err := os.ReadFile(LockfilePath(f))
	if err != nil {
		return nil, err
	}

	var lock Lockfile
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}

	if lock.Version != lockfileVersion {
		return nil, fmt.Errorf("unsupported lockfile version %d", lock.Version)
	}

	return &lock, nil
}

// VerifyImage checks the snapshot's identity fields against a build result.
// Cache hits stage no payloads, so this is the part of Verify that still
// applies when the image was served from cache.
func (l *Lockfile) VerifyImage(f *forgefile.Forgefile, result *Result) error {
	if l.BaseImage != f.BaseImage {
		return fmt.Errorf("%w: base image changed from %s to %s", ErrLockfileDrift, l.BaseImage, f.BaseImage)
	}
	if l.ImageTag != result.ImageTag {
		return fmt.Errorf("%w: image tag changed from %s to %s", ErrLockfileDrift, l.ImageTag, result.ImageTag)
	}
	return nil
}

// Verify checks a build result against the lockfile snapshot. Every recorded
// payload must still be used with the same digest, and no new payload may
// appear.
func (l *Lockfile) Verify(f *forgefile.Forgefile, result *Result) error {
	if err := l.VerifyImage(f, result); err != nil {
		return err
	}

	for url, want := range l.Payloads {
		got, ok := result.Payloads[url]
		if !ok {
			return &LockfileDriftError{URL: url, Want: want}
		}
		if got != want {
			return &LockfileDriftError{URL: url, Want: want, Got: got}
		}
	}

	for url, got := range result.Payloads {
		if _, ok := l.Payloads[url]; !ok {
			return &LockfileDriftError{URL: url, Got: got}
		}
	}

	return nil
}
