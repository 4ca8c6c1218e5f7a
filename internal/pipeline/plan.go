// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"strings"

	"envforge-cli/pkg/forgefile"
)

type (
	// Plan describes what a build would do without running it.
	Plan struct {
		// BaseImage is the image the build starts from.
		BaseImage string
		// Workdir is the in-image working directory.
		Workdir string
		// Tag is the image tag the build would produce.
		Tag string
		// Cached is true when the image already exists and a build would be
		// a no-op.
		Cached bool
		// Steps describes each step in execution order.
		Steps []PlannedStep
		// Dockerfile is the full generated Dockerfile.
		Dockerfile string
	}

	// PlannedStep is one step of a plan.
	PlannedStep struct {
		// Index is the 1-based position in the manifest.
		Index int
		// Kind is the step kind.
		Kind forgefile.StepKind
		// Name is the step's display name.
		Name string
		// Staged is true when the step downloads a payload host-side before
		// the build.
		Staged bool
		// Instructions are the Dockerfile lines the step renders to.
		Instructions []string
	}
)

// Plan computes the build plan for a manifest. The engine is only consulted
// for the cache check; nothing is downloaded or built.
func (b *ImageBuilder) Plan(ctx context.Context, f *forgefile.Forgefile) (*Plan, error) {
	tag, err := b.ImageTag(ctx, f)
	if err != nil {
		return nil, err
	}

	cached := false
	if !b.config.ForceRebuild {
		cached, _ = b.engine.ImageExists(ctx, tag) //nolint:errcheck // Error treated as "not found"
	}

	plan := &Plan{
		BaseImage:  f.BaseImage,
		Workdir:    f.EffectiveWorkdir(),
		Tag:        tag,
		Cached:     cached,
		Dockerfile: generateDockerfile(f),
	}

	for i := range f.Steps {
		step := &f.Steps[i]
		plan.Steps = append(plan.Steps, PlannedStep{
			Index:        i + 1,
			Kind:         step.Kind,
			Name:         step.DisplayName(),
			Staged:       step.Kind == forgefile.StepFetch || step.Kind == forgefile.StepDownload,
			Instructions: instructionLines(renderStep(i, step)),
		})
	}

	return plan, nil
}

// instructionLines splits a rendered step block into its instruction lines,
// dropping continuation indentation.
func instructionLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(block, "\n"), "\n") {
		lines = append(lines, strings.TrimRight(line, " \\"))
	}
	return lines
}
