// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"envforge-cli/internal/config"
	"envforge-cli/internal/issue"
	"envforge-cli/internal/pipeline"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	planShowDockerfile bool
	planExplain        bool
	planEngine         string

	// planCmd shows what a build would do without building anything.
	planCmd = &cobra.Command{
		Use:   "plan [forgefile]",
		Short: "Show what a build would do without building",
		Long: `Resolve a forgefile into its build plan and print it.

The plan shows the resolved image tag, whether the image is already
cached, and every step in execution order together with the Dockerfile
instructions it renders to. Nothing is downloaded or built.

Examples:
  envforge plan                 Plan forgefile.cue in the current directory
  envforge plan --dockerfile    Also print the full generated Dockerfile
  envforge plan --explain       Render a markdown walkthrough of the plan`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPlan,
	}
)

func init() {
	planCmd.Flags().BoolVar(&planShowDockerfile, "dockerfile", false, "print the full generated Dockerfile")
	planCmd.Flags().BoolVar(&planExplain, "explain", false, "render a markdown walkthrough of the plan")
	planCmd.Flags().StringVar(&planEngine, "engine", "", "container engine to use (podman, docker, auto)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	f, err := loadManifest(cmd, args)
	if err != nil {
		return err
	}

	cfg, _ := config.Load() //nolint:errcheck // Load warning already shown by initRootConfig
	engine, err := selectEngine(cfg, planEngine)
	if err != nil {
		return failWithIssue(cmd, issue.ContainerEngineNotFoundId, err)
	}

	builder := pipeline.NewImageBuilder(engine, buildPipelineConfig(cfg, io.Discard))
	plan, err := builder.Plan(cmd.Context(), f)
	if err != nil {
		return failWithIssue(cmd, classifyBuildError(err), err)
	}

	if planExplain {
		return renderPlanExplanation(cmd.OutOrStdout(), plan)
	}

	renderPlan(cmd.OutOrStdout(), f.FilePath, plan)
	return nil
}

// renderPlan prints the resolved plan: image metadata, each step with its
// rendered instructions, and optionally the whole Dockerfile.
func renderPlan(w io.Writer, manifestPath string, plan *pipeline.Plan) {
	fmt.Fprintln(w, TitleStyle.Render("Plan"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Manifest:"), manifestPath)
	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Base:"), plan.BaseImage)
	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Workdir:"), plan.Workdir)
	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Tag:"), plan.Tag)
	if plan.Cached {
		fmt.Fprintf(w, "  %s image already built, a build would be a no-op\n", successIcon)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, VerboseHighlightStyle.Render("  Steps:"))
	for _, step := range plan.Steps {
		staged := ""
		if step.Staged {
			staged = SubtitleStyle.Render(" (payload staged before build)")
		}
		fmt.Fprintf(w, "    %d. [%s] %s%s\n", step.Index, CmdStyle.Render(string(step.Kind)), step.Name, staged)
		for _, line := range step.Instructions {
			fmt.Fprintf(w, "       %s\n", VerboseStyle.Render(line))
		}
	}

	if planShowDockerfile {
		fmt.Fprintln(w)
		fmt.Fprintln(w, VerboseHighlightStyle.Render("  Dockerfile:"))
		for _, line := range strings.Split(strings.TrimRight(plan.Dockerfile, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	fmt.Fprintln(w)
}

// renderPlanExplanation renders the plan as a glamour markdown document.
func renderPlanExplanation(w io.Writer, plan *pipeline.Plan) error {
	var md strings.Builder

	md.WriteString("# Build plan\n\n")
	fmt.Fprintf(&md, "Starting from `%s`, working in `%s`, producing `%s`.\n\n", plan.BaseImage, plan.Workdir, plan.Tag)
	if plan.Cached {
		md.WriteString("The image is already built; running `envforge build` would reuse it.\n\n")
	}

	md.WriteString("## Steps\n\n")
	for _, step := range plan.Steps {
		fmt.Fprintf(&md, "%d. **%s**: %s", step.Index, step.Kind, step.Name)
		if step.Staged {
			md.WriteString(" (payload downloaded host-side before the build)")
		}
		md.WriteString("\n")
	}

	md.WriteString("\n## Dockerfile\n\n```dockerfile\n")
	md.WriteString(plan.Dockerfile)
	md.WriteString("```\n")

	rendered, err := glamour.Render(md.String(), issueStylePath())
	if err != nil {
		return err
	}
	fmt.Fprint(w, rendered)
	return nil
}
