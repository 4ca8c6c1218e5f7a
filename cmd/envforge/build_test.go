// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"envforge-cli/internal/config"
	"envforge-cli/internal/pipeline"
	"envforge-cli/pkg/forgefile"
)

// Not parallel: subtests mutate package-level build flag vars.
func TestBuildPipelineConfig(t *testing.T) {
	resetFlags := func(t *testing.T) {
		t.Helper()
		origForce, origPull, origNoCache := buildForceRebuild, buildPull, buildNoCache
		origVerbose := verbose
		t.Cleanup(func() {
			buildForceRebuild, buildPull, buildNoCache = origForce, origPull, origNoCache
			verbose = origVerbose
		})
		buildForceRebuild, buildPull, buildNoCache, verbose = false, false, false, false
	}

	t.Run("config file values carry over", func(t *testing.T) {
		resetFlags(t)

		cfg := config.DefaultConfig()
		cfg.CacheDir = "/tmp/forge-cache"
		cfg.Build.Pull = true

		pc := buildPipelineConfig(cfg, io.Discard)
		if pc.CacheDir != "/tmp/forge-cache" {
			t.Errorf("CacheDir = %q, want %q", pc.CacheDir, "/tmp/forge-cache")
		}
		if !pc.Pull {
			t.Error("Pull = false, want true from config")
		}
		if pc.NoCache {
			t.Error("NoCache = true, want false")
		}
	})

	t.Run("flags win over config", func(t *testing.T) {
		resetFlags(t)
		buildForceRebuild = true
		buildNoCache = true

		cfg := config.DefaultConfig()
		pc := buildPipelineConfig(cfg, io.Discard)
		if !pc.ForceRebuild {
			t.Error("ForceRebuild = false, want true from flag")
		}
		if !pc.NoCache {
			t.Error("NoCache = false, want true from flag")
		}
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		resetFlags(t)

		pc := buildPipelineConfig(nil, io.Discard)
		if pc.CacheDir == "" {
			t.Error("CacheDir is empty, want default")
		}
	})
}

// Not parallel: subtests mutate the package-level buildLocked flag.
func TestReconcileLockfile(t *testing.T) {
	resetLocked := func(t *testing.T, locked bool) {
		t.Helper()
		orig := buildLocked
		t.Cleanup(func() { buildLocked = orig })
		buildLocked = locked
	}

	newManifest := func(t *testing.T) *forgefile.Forgefile {
		t.Helper()
		return &forgefile.Forgefile{
			BaseImage: "debian:stable-slim",
			FilePath:  filepath.Join(t.TempDir(), "forgefile.cue"),
		}
	}

	t.Run("fresh build writes lockfile", func(t *testing.T) {
		resetLocked(t, false)
		f := newManifest(t)
		result := &pipeline.Result{
			ImageTag: "envforge:abc123",
			Payloads: map[string]string{"https://example.com/a.tar.gz": "aa"},
		}

		if err := reconcileLockfile(f, result); err != nil {
			t.Fatalf("reconcileLockfile() error = %v", err)
		}
		if _, err := os.Stat(pipeline.LockfilePath(f)); err != nil {
			t.Errorf("lockfile not written: %v", err)
		}
	})

	t.Run("cache hit leaves lockfile untouched", func(t *testing.T) {
		resetLocked(t, false)
		f := newManifest(t)

		if err := reconcileLockfile(f, &pipeline.Result{ImageTag: "envforge:abc123", CacheHit: true}); err != nil {
			t.Fatalf("reconcileLockfile() error = %v", err)
		}
		if _, err := os.Stat(pipeline.LockfilePath(f)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Stat() error = %v, want not exist", err)
		}
	})

	t.Run("locked without lockfile is drift", func(t *testing.T) {
		resetLocked(t, true)
		f := newManifest(t)

		err := reconcileLockfile(f, &pipeline.Result{ImageTag: "envforge:abc123"})
		if !errors.Is(err, pipeline.ErrLockfileDrift) {
			t.Errorf("reconcileLockfile() error = %v, want ErrLockfileDrift", err)
		}
	})

	t.Run("locked verifies matching payloads", func(t *testing.T) {
		resetLocked(t, false)
		f := newManifest(t)
		result := &pipeline.Result{
			ImageTag: "envforge:abc123",
			Payloads: map[string]string{"https://example.com/a.tar.gz": "aa"},
		}
		if err := reconcileLockfile(f, result); err != nil {
			t.Fatalf("write: reconcileLockfile() error = %v", err)
		}

		buildLocked = true
		if err := reconcileLockfile(f, result); err != nil {
			t.Errorf("verify: reconcileLockfile() error = %v", err)
		}
	})

	t.Run("locked rejects drifted payload", func(t *testing.T) {
		resetLocked(t, false)
		f := newManifest(t)
		if err := reconcileLockfile(f, &pipeline.Result{
			ImageTag: "envforge:abc123",
			Payloads: map[string]string{"https://example.com/a.tar.gz": "aa"},
		}); err != nil {
			t.Fatalf("write: reconcileLockfile() error = %v", err)
		}

		buildLocked = true
		err := reconcileLockfile(f, &pipeline.Result{
			ImageTag: "envforge:abc123",
			Payloads: map[string]string{"https://example.com/a.tar.gz": "bb"},
		})
		if !errors.Is(err, pipeline.ErrLockfileDrift) {
			t.Errorf("reconcileLockfile() error = %v, want ErrLockfileDrift", err)
		}
	})

	t.Run("locked cache hit verifies image identity", func(t *testing.T) {
		resetLocked(t, false)
		f := newManifest(t)
		if err := reconcileLockfile(f, &pipeline.Result{
			ImageTag: "envforge:abc123",
			Payloads: map[string]string{"https://example.com/a.tar.gz": "aa"},
		}); err != nil {
			t.Fatalf("write: reconcileLockfile() error = %v", err)
		}

		buildLocked = true
		if err := reconcileLockfile(f, &pipeline.Result{ImageTag: "envforge:abc123", CacheHit: true}); err != nil {
			t.Errorf("reconcileLockfile() error = %v, want nil on matching cache hit", err)
		}
	})

	t.Run("locked cache hit rejects changed base image", func(t *testing.T) {
		resetLocked(t, false)
		f := newManifest(t)
		if err := reconcileLockfile(f, &pipeline.Result{
			ImageTag: "envforge:abc123",
			Payloads: map[string]string{"https://example.com/a.tar.gz": "aa"},
		}); err != nil {
			t.Fatalf("write: reconcileLockfile() error = %v", err)
		}

		buildLocked = true
		f.BaseImage = "ubuntu:24.04"
		err := reconcileLockfile(f, &pipeline.Result{ImageTag: "envforge:abc123", CacheHit: true})
		if !errors.Is(err, pipeline.ErrLockfileDrift) {
			t.Errorf("reconcileLockfile() error = %v, want ErrLockfileDrift", err)
		}
	})

	t.Run("locked cache hit rejects changed image tag", func(t *testing.T) {
		resetLocked(t, false)
		f := newManifest(t)
		if err := reconcileLockfile(f, &pipeline.Result{
			ImageTag: "envforge:abc123",
			Payloads: map[string]string{"https://example.com/a.tar.gz": "aa"},
		}); err != nil {
			t.Fatalf("write: reconcileLockfile() error = %v", err)
		}

		buildLocked = true
		err := reconcileLockfile(f, &pipeline.Result{ImageTag: "envforge:def456", CacheHit: true})
		if !errors.Is(err, pipeline.ErrLockfileDrift) {
			t.Errorf("reconcileLockfile() error = %v, want ErrLockfileDrift", err)
		}
	})
}
