// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	provider := NewProvider()

	cfg, err := provider.Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ContainerEngine != ContainerEngineAuto {
		t.Errorf("ContainerEngine = %q, want auto", cfg.ContainerEngine)
	}
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("ColorScheme = %q, want auto", cfg.UI.ColorScheme)
	}
	if cfg.UI.Verbose {
		t.Error("Verbose should default to false")
	}
	if cfg.Build.Pull || cfg.Build.NoCache {
		t.Error("build flags should default to false")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
container_engine: "podman"
cache_dir: "/var/cache/envforge"

ui: {
	color_scheme: "dark"
	verbose: true
}

build: {
	pull: true
}
`)

	provider := NewProvider()
	cfg, err := provider.Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ContainerEngine != ContainerEnginePodman {
		t.Errorf("ContainerEngine = %q, want podman", cfg.ContainerEngine)
	}
	if cfg.CacheDir != "/var/cache/envforge" {
		t.Errorf("CacheDir = %q, want /var/cache/envforge", cfg.CacheDir)
	}
	if cfg.UI.ColorScheme != ColorSchemeDark {
		t.Errorf("ColorScheme = %q, want dark", cfg.UI.ColorScheme)
	}
	if !cfg.UI.Verbose {
		t.Error("Verbose should be true")
	}
	if !cfg.Build.Pull {
		t.Error("Build.Pull should be true")
	}
	if cfg.Build.NoCache {
		t.Error("Build.NoCache should stay at its default")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(`container_engine: "docker"`), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	provider := NewProvider()
	cfg, err := provider.Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ContainerEngine != ContainerEngineDocker {
		t.Errorf("ContainerEngine = %q, want docker", cfg.ContainerEngine)
	}
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("ColorScheme = %q, want default auto", cfg.UI.ColorScheme)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown engine",
			content: `container_engine: "containerd"`,
		},
		{
			name:    "unknown color scheme",
			content: `ui: color_scheme: "sepia"`,
		},
		{
			name:    "empty cache dir",
			content: `cache_dir: ""`,
		},
		{
			name:    "unknown field",
			content: `registry_mirror: "https://mirror.example.com"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)

			provider := NewProvider()
			_, err := provider.Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("expected error for invalid config")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	provider := NewProvider()
	_, err := provider.Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should mention the missing file, got: %v", err)
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	want := &Config{
		ContainerEngine: ContainerEnginePodman,
		CacheDir:        "/var/cache/envforge",
		UI: UIConfig{
			ColorScheme: ColorSchemeLight,
			Verbose:     true,
		},
		Build: BuildConfig{
			Pull:    true,
			NoCache: true,
		},
	}

	path := writeConfigFile(t, GenerateCUE(want))

	provider := NewProvider()
	got, err := provider.Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *got != *want {
		t.Errorf("round trip mismatch:\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dir {
		t.Errorf("ConfigDir = %q, want %q", got, dir)
	}
}

func TestTypedValueValidation(t *testing.T) {
	if err := ContainerEngine("containerd").Validate(); !errors.Is(err, ErrInvalidContainerEngine) {
		t.Errorf("expected ErrInvalidContainerEngine, got: %v", err)
	}
	if err := ContainerEngine("").Validate(); err != nil {
		t.Errorf("zero engine should validate, got: %v", err)
	}
	if err := ColorScheme("sepia").Validate(); !errors.Is(err, ErrInvalidColorScheme) {
		t.Errorf("expected ErrInvalidColorScheme, got: %v", err)
	}
	if err := CacheDirPath("   ").Validate(); !errors.Is(err, ErrInvalidCacheDirPath) {
		t.Errorf("expected ErrInvalidCacheDirPath, got: %v", err)
	}
	if err := CacheDirPath("").Validate(); err != nil {
		t.Errorf("zero cache dir should validate, got: %v", err)
	}
}

func TestValidateCollectsFieldErrors(t *testing.T) {
	cfg := &Config{
		ContainerEngine: "containerd",
		CacheDir:        "  ",
		UI:              UIConfig{ColorScheme: "sepia"},
	}

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}

	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidConfigError, got %T", err)
	}
	if len(invalid.FieldErrors) != 3 {
		t.Errorf("expected 3 field errors, got %d", len(invalid.FieldErrors))
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	if err := CreateDefaultConfig(); err != nil {
		t.Fatalf("CreateDefaultConfig: %v", err)
	}

	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), `container_engine: "auto"`) {
		t.Errorf("default config missing engine line:\n%s", data)
	}

	// A second call must not overwrite an existing file.
	if err := os.WriteFile(path, []byte(`container_engine: "docker"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CreateDefaultConfig(); err != nil {
		t.Fatalf("CreateDefaultConfig (second call): %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "docker") {
		t.Error("CreateDefaultConfig overwrote an existing file")
	}
}
