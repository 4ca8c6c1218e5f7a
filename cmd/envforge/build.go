// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"envforge-cli/internal/config"
	"envforge-cli/internal/container"
	"envforge-cli/internal/issue"
	"envforge-cli/internal/pipeline"
	"envforge-cli/pkg/forgefile"

	"github.com/spf13/cobra"
)

var (
	buildForceRebuild bool
	buildPull         bool
	buildNoCache      bool
	buildTag          string
	buildEngine       string
	buildLocked       bool

	// buildCmd runs the provisioning pipeline against a forgefile.
	buildCmd = &cobra.Command{
		Use:   "build [forgefile]",
		Short: "Build the environment image from a forgefile",
		Long: `Build the environment image described by a forgefile.

Steps run in declaration order inside a single image build. The first
failing step aborts the whole build and no image tag is produced. An
unchanged forgefile reuses its cached image without rebuilding.

Examples:
  envforge build                     Build forgefile.cue in the current directory
  envforge build ./env/forgefile.cue Build an explicit manifest
  envforge build --force-rebuild     Ignore the image cache
  envforge build --locked            Fail if the result drifts from forgefile.lock`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().BoolVar(&buildForceRebuild, "force-rebuild", false, "rebuild even if a cached image exists")
	buildCmd.Flags().BoolVar(&buildPull, "pull", false, "always pull the base image before building")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "disable the engine's layer cache")
	buildCmd.Flags().StringVarP(&buildTag, "tag", "t", "", "override the output image tag")
	buildCmd.Flags().StringVar(&buildEngine, "engine", "", "container engine to use (podman, docker, auto)")
	buildCmd.Flags().BoolVar(&buildLocked, "locked", false, "verify the build against forgefile.lock and fail on drift")
}

func runBuild(cmd *cobra.Command, args []string) error {
	f, err := loadManifest(cmd, args)
	if err != nil {
		return err
	}
	if buildTag != "" {
		f.Tag = buildTag
	}

	cfg, _ := config.Load() //nolint:errcheck // Load warning already shown by initRootConfig
	engine, err := selectEngine(cfg, buildEngine)
	if err != nil {
		return failWithIssue(cmd, issue.ContainerEngineNotFoundId, err)
	}

	builder := pipeline.NewImageBuilder(engine, buildPipelineConfig(cfg, cmd.OutOrStdout()))

	fmt.Fprintln(cmd.OutOrStdout(), TitleStyle.Render("Build"))
	fmt.Fprintf(cmd.OutOrStdout(), "%s Manifest: %s\n", infoIcon, f.FilePath)
	fmt.Fprintf(cmd.OutOrStdout(), "%s Engine:   %s\n", infoIcon, engine.Name())
	fmt.Fprintln(cmd.OutOrStdout())

	result, err := builder.Build(cmd.Context(), f)
	if err != nil {
		return failWithIssue(cmd, classifyBuildError(err), err)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	if err := reconcileLockfile(f, result); err != nil {
		return failWithIssue(cmd, classifyBuildError(err), err)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	if result.CacheHit {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Image up to date: %s\n", successIcon, CmdStyle.Render(result.ImageTag))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Image built: %s\n", successIcon, CmdStyle.Render(result.ImageTag))
	}
	return nil
}

// selectEngine resolves the container engine from the --engine flag, falling
// back to the configured preference.
func selectEngine(cfg *config.Config, flagValue string) (container.Engine, error) {
	preferred := flagValue
	if preferred == "" && cfg != nil {
		preferred = string(cfg.ContainerEngine)
	}
	return container.NewEngine(container.EngineType(preferred))
}

// buildPipelineConfig merges app configuration with the build flags. Flags
// win over config file values.
func buildPipelineConfig(cfg *config.Config, out io.Writer) *pipeline.Config {
	pc := pipeline.DefaultConfig()

	if cfg != nil {
		if cfg.CacheDir != "" {
			pc.Apply(pipeline.WithCacheDir(string(cfg.CacheDir)))
		}
		pc.Apply(
			pipeline.WithPull(cfg.Build.Pull),
			pipeline.WithNoCache(cfg.Build.NoCache),
		)
	}

	pc.Apply(pipeline.WithForceRebuild(buildForceRebuild))
	if buildPull {
		pc.Apply(pipeline.WithPull(true))
	}
	if buildNoCache {
		pc.Apply(pipeline.WithNoCache(true))
	}
	if verbose {
		pc.Apply(pipeline.WithBuildOutput(out))
	} else {
		pc.Apply(pipeline.WithBuildOutput(io.Discard))
	}
	return pc
}

// reconcileLockfile verifies or refreshes forgefile.lock after a build.
// Cache hits stage no payloads, so there is nothing to verify or record.
func reconcileLockfile(f *forgefile.Forgefile, result *pipeline.Result) error {
	if buildLocked {
		lock, err := pipeline.ReadLockfile(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("--locked requires %s: %w", pipeline.LockfileName, pipeline.ErrLockfileDrift)
			}
			return err
		}
		if result.CacheHit {
			return lock.VerifyImage(f, result)
		}
		return lock.Verify(f, result)
	}

	if result.CacheHit {
		return nil
	}
	return pipeline.WriteLockfile(f, result)
}
