// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"io"
	"os"
	"path/filepath"
)

type (
	// Config holds configuration for building environment images.
	Config struct {
		// ForceRebuild bypasses cached images and forces a rebuild
		ForceRebuild bool

		// Pull forces re-pulling the base image before building
		Pull bool

		// NoCache disables the engine's layer cache during the build
		NoCache bool

		// CacheDir is where staged payloads are kept between builds.
		// Default: ~/.cache/envforge
		CacheDir string

		// TagSuffix is an optional suffix appended to image tags.
		// This enables test isolation by making each test's images unique.
		// Can be set via ENVFORGE_TAG_SUFFIX environment variable.
		TagSuffix string

		// BuildOutput receives engine build progress. Default: os.Stderr
		BuildOutput io.Writer
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	cacheDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".cache", "envforge")
	}

	return &Config{
		ForceRebuild: false,
		CacheDir:     cacheDir,
		TagSuffix:    os.Getenv("ENVFORGE_TAG_SUFFIX"),
		BuildOutput:  os.Stderr,
	}
}

// WithForceRebuild returns an Option that sets ForceRebuild on the config.
func WithForceRebuild(force bool) Option {
	return func(c *Config) {
		c.ForceRebuild = force
	}
}

// WithPull returns an Option that sets Pull on the config.
func WithPull(pull bool) Option {
	return func(c *Config) {
		c.Pull = pull
	}
}

// WithNoCache returns an Option that sets NoCache on the config.
func WithNoCache(noCache bool) Option {
	return func(c *Config) {
		c.NoCache = noCache
	}
}

// WithCacheDir returns an Option that sets CacheDir on the config.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithTagSuffix returns an Option that sets TagSuffix on the config.
// This is primarily used for test isolation so parallel tests don't
// compete for the same image tags.
func WithTagSuffix(suffix string) Option {
	return func(c *Config) {
		c.TagSuffix = suffix
	}
}

// WithBuildOutput returns an Option that redirects engine build progress.
func WithBuildOutput(w io.Writer) Option {
	return func(c *Config) {
		c.BuildOutput = w
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
