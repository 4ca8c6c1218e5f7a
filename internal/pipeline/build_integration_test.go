// SPDX-License-Identifier: MPL-2.0

// Integration tests for the build pipeline against a real container engine.
// These tests use testcontainers-go provider detection and skip when no
// engine is available.
package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"envforge-cli/internal/container"
	"envforge-cli/pkg/forgefile"
)

// checkTestcontainersAvailable safely checks if testcontainers can be used.
// Returns true if containers are available, false otherwise.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestImageBuilder_Integration builds real images. Requires Docker or Podman.
func TestImageBuilder_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	engine, err := container.AutoDetectEngine()
	if err != nil {
		t.Skipf("skipping build integration tests: no container engine available: %v", err)
	}
	if !engine.Available() {
		t.Skip("skipping build integration tests: container engine not available")
	}

	if !checkTestcontainersAvailable() {
		t.Skip("skipping build integration tests: testcontainers provider not available")
	}

	t.Run("PackageInstallAndDownload", func(t *testing.T) {
		testIntegrationPackageInstallAndDownload(t, engine)
	})
	t.Run("FailedStepLeavesNoImage", func(t *testing.T) {
		testIntegrationFailedStepLeavesNoImage(t, engine)
	})
	t.Run("SecondBuildHitsCache", func(t *testing.T) {
		testIntegrationSecondBuildHitsCache(t, engine)
	})
}

func integrationBuilder(t *testing.T, engine container.Engine) *ImageBuilder {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.BuildOutput = io.Discard
	cfg.TagSuffix = "it-" + t.Name()[len("TestImageBuilder_Integration/"):]
	return NewImageBuilder(engine, cfg, WithLogger(quietLogger()))
}

func testIntegrationPackageInstallAndDownload(t *testing.T, engine container.Engine) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("#!/bin/sh\necho ready\n"))
	}))
	defer server.Close()

	f := &forgefile.Forgefile{
		BaseImage: "alpine:latest",
		Steps: []forgefile.Step{
			{
				Kind:     forgefile.StepPackageInstall,
				Manager:  forgefile.ManagerApk,
				Packages: []string{"ca-certificates"},
			},
			{
				Kind:       forgefile.StepDownload,
				URL:        server.URL + "/launcher.sh",
				Dest:       "/usr/local/bin/launcher.sh",
				Executable: true,
			},
		},
	}

	builder := integrationBuilder(t, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := builder.Build(ctx, f)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}
	defer engine.RemoveImage(context.Background(), result.ImageTag, true) //nolint:errcheck // Best-effort test cleanup

	exists, err := engine.ImageExists(ctx, result.ImageTag)
	if err != nil {
		t.Fatalf("ImageExists() failed: %v", err)
	}
	if !exists {
		t.Errorf("built image %s not found", result.ImageTag)
	}
}

func testIntegrationFailedStepLeavesNoImage(t *testing.T, engine container.Engine) {
	f := &forgefile.Forgefile{
		BaseImage: "alpine:latest",
		Steps: []forgefile.Step{
			{
				Kind:     forgefile.StepPackageInstall,
				Manager:  forgefile.ManagerApk,
				Packages: []string{"definitely-not-a-real-package-envforge"},
			},
		},
	}

	builder := integrationBuilder(t, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tag, err := builder.ImageTag(ctx, f)
	if err != nil {
		t.Fatalf("ImageTag() failed: %v", err)
	}

	_, err = builder.Build(ctx, f)
	if err == nil {
		t.Fatal("expected build to fail for unresolvable package")
	}
	if !errors.Is(err, ErrUnresolvable) {
		t.Errorf("expected ErrUnresolvable, got: %v", err)
	}

	exists, err := engine.ImageExists(ctx, tag)
	if err != nil {
		t.Fatalf("ImageExists() failed: %v", err)
	}
	if exists {
		t.Errorf("failed build left image %s behind", tag)
	}
}

func testIntegrationSecondBuildHitsCache(t *testing.T, engine container.Engine) {
	f := &forgefile.Forgefile{
		BaseImage: "alpine:latest",
		Steps: []forgefile.Step{
			{
				Kind:     forgefile.StepPackageInstall,
				Manager:  forgefile.ManagerApk,
				Packages: []string{"ca-certificates"},
			},
		},
	}

	builder := integrationBuilder(t, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	first, err := builder.Build(ctx, f)
	if err != nil {
		t.Fatalf("first Build() failed: %v", err)
	}
	if first.Cleanup != nil {
		defer first.Cleanup()
	}
	defer engine.RemoveImage(context.Background(), first.ImageTag, true) //nolint:errcheck // Best-effort test cleanup

	if first.CacheHit {
		t.Fatal("first build should not be a cache hit")
	}

	second, err := builder.Build(ctx, f)
	if err != nil {
		t.Fatalf("second Build() failed: %v", err)
	}
	if !second.CacheHit {
		t.Error("second build should hit the cache")
	}
	if second.ImageTag != first.ImageTag {
		t.Errorf("tags differ across builds: %q vs %q", first.ImageTag, second.ImageTag)
	}
}
