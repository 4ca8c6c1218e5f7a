// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"envforge-cli/internal/config"
	"envforge-cli/internal/container"
	"envforge-cli/internal/fetch"
	"envforge-cli/internal/issue"
	"envforge-cli/internal/pipeline"

	"github.com/spf13/cobra"
)

// classifyBuildError maps pipeline failures to issue catalog IDs so the CLI
// can render remediation guidance next to the raw error.
func classifyBuildError(err error) issue.Id {
	switch {
	case errors.Is(err, container.ErrNoEngineAvailable):
		return issue.ContainerEngineNotFoundId
	case errors.Is(err, fetch.ErrCorruptPayload):
		return issue.IntegrityFailureId
	case errors.Is(err, fetch.ErrUnreachable):
		return issue.NetworkFailureId
	case errors.Is(err, pipeline.ErrUnresolvable):
		return issue.DependencyFailureId
	case errors.Is(err, pipeline.ErrLockfileDrift):
		return issue.LockfileDriftId
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId
	default:
		return issue.BuildFailureId
	}
}

// failWithIssue renders the catalog entry for id plus the error itself, then
// returns an ExitError with usage/error echoing silenced.
func failWithIssue(cmd *cobra.Command, id issue.Id, err error) error {
	stderr := cmd.ErrOrStderr()

	if rendered, renderErr := issue.Get(id).Render(issueStylePath()); renderErr == nil {
		fmt.Fprint(stderr, rendered)
	}
	fmt.Fprintf(stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: 1, Err: err}
}

// issueStylePath picks the glamour style from the configured color scheme.
func issueStylePath() string {
	cfg, err := config.Load()
	if err != nil || cfg == nil {
		return "dark"
	}
	switch cfg.UI.ColorScheme {
	case config.ColorSchemeLight:
		return "light"
	default:
		return "dark"
	}
}
