// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"path/filepath"

	"envforge-cli/internal/issue"
	"envforge-cli/pkg/forgefile"

	"github.com/spf13/cobra"
)

// resolveManifestPath turns the optional positional argument into a manifest
// path. A directory argument resolves to the forgefile.cue inside it; no
// argument resolves to forgefile.cue in the current directory.
func resolveManifestPath(args []string) string {
	path := forgefile.DefaultName
	if len(args) > 0 {
		path = args[0]
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, forgefile.DefaultName)
	}
	return path
}

// loadManifest resolves and parses the forgefile for a subcommand. Failures
// are rendered as issue cards and returned as an ExitError so RunE handlers
// can bubble them straight up.
func loadManifest(cmd *cobra.Command, args []string) (*forgefile.Forgefile, error) {
	path := resolveManifestPath(args)

	if _, err := os.Stat(path); err != nil {
		return nil, failWithIssue(cmd, issue.ManifestNotFoundId, err)
	}

	f, err := forgefile.Parse(path)
	if err != nil {
		return nil, failWithIssue(cmd, issue.ManifestParseErrorId, err)
	}
	return f, nil
}
