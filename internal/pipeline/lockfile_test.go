// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"envforge-cli/pkg/forgefile"
)

func lockfileForge(t *testing.T) *forgefile.Forgefile {
	t.Helper()
	f := notebookForge()
	f.FilePath = filepath.Join(t.TempDir(), forgefile.DefaultName)
	return f
}

func TestLockfileRoundTrip(t *testing.T) {
	f := lockfileForge(t)
	result := &Result{
		ImageTag: "envforge:abc123def456",
		Payloads: map[string]string{
			"https://example.com/packages/pcapy-0.11.1.tar.gz": "aaaa",
			"https://example.com/scripts/start-notebook.sh":    "bbbb",
		},
	}

	if err := WriteLockfile(f, result); err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}

	lock, err := ReadLockfile(f)
	if err != nil {
		t.Fatalf("ReadLockfile: %v", err)
	}

	if lock.BaseImage != f.BaseImage {
		t.Errorf("BaseImage = %q, want %q", lock.BaseImage, f.BaseImage)
	}
	if lock.ImageTag != result.ImageTag {
		t.Errorf("ImageTag = %q, want %q", lock.ImageTag, result.ImageTag)
	}
	if len(lock.Payloads) != 2 {
		t.Errorf("expected 2 payload entries, got %d", len(lock.Payloads))
	}
	if lock.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}
}

func TestReadLockfileMissing(t *testing.T) {
	f := lockfileForge(t)

	_, err := ReadLockfile(f)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

func TestLockfileVerify(t *testing.T) {
	base := func() (*forgefile.Forgefile, *Lockfile, *Result) {
		f := notebookForge()
		lock := &Lockfile{
			Version:   1,
			BaseImage: f.BaseImage,
			Payloads: map[string]string{
				"https://example.com/packages/pcapy-0.11.1.tar.gz": "aaaa",
			},
		}
		result := &Result{
			Payloads: map[string]string{
				"https://example.com/packages/pcapy-0.11.1.tar.gz": "aaaa",
			},
		}
		return f, lock, result
	}

	t.Run("matching state verifies", func(t *testing.T) {
		f, lock, result := base()
		if err := lock.Verify(f, result); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("changed payload digest is drift", func(t *testing.T) {
		f, lock, result := base()
		result.Payloads["https://example.com/packages/pcapy-0.11.1.tar.gz"] = "cccc"

		err := lock.Verify(f, result)
		if !errors.Is(err, ErrLockfileDrift) {
			t.Fatalf("expected ErrLockfileDrift, got: %v", err)
		}

		var driftErr *LockfileDriftError
		if !errors.As(err, &driftErr) {
			t.Fatalf("expected *LockfileDriftError, got %T", err)
		}
		if driftErr.Want != "aaaa" || driftErr.Got != "cccc" {
			t.Errorf("Want/Got = %s/%s, want aaaa/cccc", driftErr.Want, driftErr.Got)
		}
	})

	t.Run("removed payload is drift", func(t *testing.T) {
		f, lock, result := base()
		result.Payloads = map[string]string{}

		if err := lock.Verify(f, result); !errors.Is(err, ErrLockfileDrift) {
			t.Errorf("expected ErrLockfileDrift, got: %v", err)
		}
	})

	t.Run("new payload is drift", func(t *testing.T) {
		f, lock, result := base()
		result.Payloads["https://example.com/other.tar.gz"] = "dddd"

		if err := lock.Verify(f, result); !errors.Is(err, ErrLockfileDrift) {
			t.Errorf("expected ErrLockfileDrift, got: %v", err)
		}
	})

	t.Run("changed base image is drift", func(t *testing.T) {
		f, lock, result := base()
		f.BaseImage = "debian:stable-slim"

		if err := lock.Verify(f, result); !errors.Is(err, ErrLockfileDrift) {
			t.Errorf("expected ErrLockfileDrift, got: %v", err)
		}
	})
}

func TestLockfilePathDefaultsToCwd(t *testing.T) {
	f := notebookForge()
	f.FilePath = ""

	got := LockfilePath(f)
	if got != LockfileName {
		t.Errorf("LockfilePath = %q, want %q", got, LockfileName)
	}
}

func TestLockfileVerifyImage(t *testing.T) {
	base := func() (*forgefile.Forgefile, *Lockfile, *Result) {
		f := notebookForge()
		lock := &Lockfile{
			Version:   1,
			BaseImage: f.BaseImage,
			ImageTag:  "envforge:abc123def456",
		}
		result := &Result{ImageTag: "envforge:abc123def456", CacheHit: true}
		return f, lock, result
	}

	t.Run("matching identity verifies", func(t *testing.T) {
		f, lock, result := base()
		if err := lock.VerifyImage(f, result); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("changed base image is drift", func(t *testing.T) {
		f, lock, result := base()
		f.BaseImage = "debian:stable-slim"

		if err := lock.VerifyImage(f, result); !errors.Is(err, ErrLockfileDrift) {
			t.Errorf("expected ErrLockfileDrift, got: %v", err)
		}
	})

	t.Run("changed image tag is drift", func(t *testing.T) {
		f, lock, result := base()
		result.ImageTag = "notebook-env:v2"

		if err := lock.VerifyImage(f, result); !errors.Is(err, ErrLockfileDrift) {
			t.Errorf("expected ErrLockfileDrift, got: %v", err)
		}
	})

	t.Run("Verify covers identity before payloads", func(t *testing.T) {
		f, lock, result := base()
		result.ImageTag = "notebook-env:v2"

		if err := lock.Verify(f, result); !errors.Is(err, ErrLockfileDrift) {
			t.Errorf("expected ErrLockfileDrift, got: %v", err)
		}
	})
}
