// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"envforge-cli/pkg/forgefile"

	"github.com/spf13/cobra"
)

// validateCmd checks a forgefile without building anything.
var validateCmd = &cobra.Command{
	Use:   "validate [forgefile]",
	Short: "Validate a forgefile without building",
	Long: `Parse a forgefile and run its static checks without building.

Validation covers CUE schema conformance, per-step field constraints
(each step kind accepts only its own fields), and step ordering (a
build-install step must reference a source tree some earlier fetch
step produced).

Examples:
  envforge validate                    Validate forgefile.cue in the current directory
  envforge validate ./env/forgefile.cue  Validate an explicit manifest`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	path := resolveManifestPath(args)
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	fmt.Fprintln(stdout, TitleStyle.Render("Forgefile Validation"))
	fmt.Fprintf(stdout, "%s Path: %s\n", infoIcon, absPath)
	fmt.Fprintln(stdout)

	if _, statErr := os.Stat(path); statErr != nil {
		fmt.Fprintf(stderr, "%s Manifest not found\n", errorIcon)
		fmt.Fprintln(stderr)
		fmt.Fprintf(stderr, "  %s\n", statErr)
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: 1, Err: statErr}
	}

	f, err := forgefile.Parse(path)
	if err != nil {
		fmt.Fprintf(stderr, "%s Validation failed\n", errorIcon)
		fmt.Fprintln(stderr)
		fmt.Fprintf(stderr, "  %s\n", err)
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Fprintf(stdout, "%s CUE schema validation passed\n", successIcon)
	fmt.Fprintf(stdout, "%s Step field constraints passed\n", successIcon)
	fmt.Fprintf(stdout, "%s Step ordering passed\n", successIcon)

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s Forgefile is valid (%d step(s), base %s)\n", successIcon, len(f.Steps), CmdStyle.Render(f.BaseImage))
	return nil
}
