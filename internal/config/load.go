// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"sync"
)

var (
	// configFilePathOverride forces Load to read a specific file (--config flag).
	configFilePathOverride string

	loadMu    sync.Mutex
	loadedCfg *Config
)

// SetConfigFilePathOverride sets a custom config file path for Load.
// Clears any cached configuration so the next Load re-reads.
func SetConfigFilePathOverride(path string) {
	loadMu.Lock()
	defer loadMu.Unlock()
	configFilePathOverride = path
	loadedCfg = nil
}

// Load reads the configuration from the default locations (or the override
// set via SetConfigFilePathOverride) and caches the result for subsequent
// calls.
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if loadedCfg != nil {
		return loadedCfg, nil
	}

	cfg, _, err := loadWithOptions(context.Background(), LoadOptions{
		ConfigFilePath: configFilePathOverride,
	})
	if err != nil {
		return nil, err
	}

	loadedCfg = cfg
	return cfg, nil
}

// InvalidateCache clears the cached configuration so the next Load re-reads
// from disk. Used after Save and in tests.
func InvalidateCache() {
	loadMu.Lock()
	defer loadMu.Unlock()
	loadedCfg = nil
}
